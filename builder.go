// Copyright 2023 Canonical Ltd.
// Licensed under Apache 2.0, see LICENCE file for details.

package fenix

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/blinkfox/fenix/internal/expr"
)

// Builder assembles SQL in code. Every method returns the Builder so that
// calls can be chained. Condition methods take an optional trailing match
// guard: when any guard is false the call writes nothing.
//
// The first error met is kept and turns the remaining calls into no-ops.
// End reports it.
//
//	info, err := fenix.Start().
//	    Select("u.id", "u.name").
//	    From("t_user AS u").
//	    WhereDynamic(func(b *fenix.Builder) {
//	        b.AndEqual("u.id", id, id != 0).
//	            AndLike("u.name", name, name != "").
//	            AndBetween("u.age", minAge, maxAge)
//	    }).
//	    OrderBy("u.id DESC").
//	    End()
type Builder struct {
	src *BuildSource
	err error
	// texts counts the positional placeholders turned into parameters.
	texts int
}

// Start returns a Builder on the default engine.
func Start() *Builder {
	return Default().Start()
}

// Start returns a Builder on e.
func (e *Engine) Start() *Builder {
	return &Builder{src: &BuildSource{engine: e, info: NewSQLInfo(), act: map[string]any{}}}
}

// End returns the built SQLInfo with its whitespace collapsed, or the first
// error met.
func (b *Builder) End() (*SQLInfo, error) {
	if b.err != nil {
		return nil, b.err
	}
	b.src.info.setSQL(normalize(b.src.info.SQL()))
	return b.src.info, nil
}

// Err returns the first error met so far.
func (b *Builder) Err() error {
	return b.err
}

func matched(match []bool) bool {
	for _, m := range match {
		if !m {
			return false
		}
	}
	return true
}

// keyword writes kw followed by text, if any.
func (b *Builder) keyword(kw string, text string) *Builder {
	if b.err != nil {
		return b
	}
	b.src.info.Append(" " + kw)
	if text != "" {
		b.src.info.Append(" " + text)
	}
	b.src.info.Append(" ")
	return b
}

// Select writes SELECT with the columns joined by commas.
func (b *Builder) Select(columns ...string) *Builder {
	return b.keyword("SELECT", strings.Join(columns, ", "))
}

// From writes FROM table.
func (b *Builder) From(table string) *Builder {
	return b.keyword("FROM", table)
}

// Where writes WHERE followed by the optional text.
func (b *Builder) Where(text ...string) *Builder {
	return b.keyword("WHERE", strings.Join(text, " "))
}

// WhereDynamic runs fn and writes what it produced after WHERE, with any
// leading AND or OR removed. Nothing is written when fn produces nothing.
func (b *Builder) WhereDynamic(fn func(b *Builder)) *Builder {
	if b.err != nil {
		return b
	}
	before := b.src.info.SQL()
	fn(b)
	if b.err != nil {
		return b
	}
	frag := trimLeadingOperator(b.src.info.SQL()[len(before):])
	b.src.info.setSQL(before)
	if frag != "" {
		b.src.info.Append(" WHERE " + frag + " ")
	}
	return b
}

// Join writes JOIN followed by text, e.g. "t_order AS o ON o.user_id = u.id".
func (b *Builder) Join(text string) *Builder {
	return b.keyword("JOIN", text)
}

// LeftJoin is Join writing LEFT JOIN.
func (b *Builder) LeftJoin(text string) *Builder {
	return b.keyword("LEFT JOIN", text)
}

// InnerJoin is Join writing INNER JOIN.
func (b *Builder) InnerJoin(text string) *Builder {
	return b.keyword("INNER JOIN", text)
}

// GroupBy writes GROUP BY with the columns joined by commas.
func (b *Builder) GroupBy(columns ...string) *Builder {
	return b.keyword("GROUP BY", strings.Join(columns, ", "))
}

// Having writes HAVING followed by text.
func (b *Builder) Having(text string) *Builder {
	return b.keyword("HAVING", text)
}

// OrderBy writes ORDER BY with the columns joined by commas, e.g.
// OrderBy("age DESC", "id").
func (b *Builder) OrderBy(columns ...string) *Builder {
	return b.keyword("ORDER BY", strings.Join(columns, ", "))
}

// Limit writes LIMIT n as a literal.
func (b *Builder) Limit(n int) *Builder {
	return b.keyword("LIMIT", strconv.Itoa(n))
}

// Offset writes OFFSET n as a literal.
func (b *Builder) Offset(n int) *Builder {
	return b.keyword("OFFSET", strconv.Itoa(n))
}

// InsertInto writes INSERT INTO table, followed by the column list when
// columns are given.
func (b *Builder) InsertInto(table string, columns ...string) *Builder {
	if len(columns) > 0 {
		table += " (" + strings.Join(columns, ", ") + ")"
	}
	return b.keyword("INSERT INTO", table)
}

// Values writes VALUES with one named parameter per value. Parameters are
// named like the positional ones of Text.
func (b *Builder) Values(values ...any) *Builder {
	if b.err != nil {
		return b
	}
	names := make([]string, len(values))
	for i, v := range values {
		names[i] = ":" + b.nextText(v)
	}
	return b.keyword("VALUES", "("+strings.Join(names, ", ")+")")
}

// Update writes UPDATE table.
func (b *Builder) Update(table string) *Builder {
	return b.keyword("UPDATE", table)
}

// Set writes SET with the given assignments, e.g. Set("name = :name").
func (b *Builder) Set(assignments ...string) *Builder {
	return b.keyword("SET", strings.Join(assignments, ", "))
}

// DeleteFrom writes DELETE FROM table.
func (b *Builder) DeleteFrom(table string) *Builder {
	return b.keyword("DELETE FROM", table)
}

// ResultType sets the result type hint of the SQLInfo.
func (b *Builder) ResultType(resultType string) *Builder {
	if b.err == nil {
		b.src.info.SetResultType(resultType)
	}
	return b
}

func (b *Builder) nextText(value any) string {
	b.texts++
	name := "text" + strconv.Itoa(b.texts)
	b.src.info.SetParam(name, value)
	return name
}

// Text writes free text. Each "?" outside quoted literals and comments is
// replaced by a ":text<N>" parameter bound to the next of args; named
// placeholders are left for Param to bind.
func (b *Builder) Text(text string, args ...any) *Builder {
	if b.err != nil {
		return b
	}
	used := 0
	out := expr.RewritePlaceholders(text, func(name string) string {
		if name != "" {
			return ":" + name
		}
		used++
		if used > len(args) {
			return "?"
		}
		return ":" + b.nextText(args[used-1])
	})
	if used != len(args) {
		b.err = fmt.Errorf("text %q has %d placeholders, got %d values", text, used, len(args))
		return b
	}
	b.src.WriteText(out, nil)
	return b
}

// Param binds value to name.
func (b *Builder) Param(name string, value any) *Builder {
	if b.err == nil {
		b.src.info.SetParam(name, value)
	}
	return b
}

// Params binds every entry of params.
func (b *Builder) Params(params map[string]any) *Builder {
	if b.err == nil {
		for k, v := range params {
			b.src.info.SetParam(k, v)
		}
	}
	return b
}

// stamp sets the prefix and symbol of the next fragment, reporting whether
// the fragment should be written at all.
func (b *Builder) stamp(prefix, symbol string, match []bool) bool {
	if b.err != nil || !matched(match) {
		return false
	}
	b.src.SetPrefix(prefix)
	b.src.SetSymbol(symbol)
	return true
}

func (b *Builder) condition(prefix, symbol, field string, value any, match []bool) *Builder {
	if b.stamp(prefix, symbol, match) {
		b.src.WriteCondition(field, expr.ParamName(field), value)
		b.src.Reset()
	}
	return b
}

func (b *Builder) like(prefix, symbol, field string, value any, mode LikeMode, match []bool) *Builder {
	if b.stamp(prefix, symbol, match) {
		b.src.WriteLike(field, expr.ParamName(field), value, mode)
		b.src.Reset()
	}
	return b
}

func (b *Builder) likePattern(prefix, symbol, field, pattern string, match []bool) *Builder {
	if b.stamp(prefix, symbol, match) {
		b.src.WriteLikePattern(field, pattern)
		b.src.Reset()
	}
	return b
}

func (b *Builder) between(prefix, field string, start, end any, match []bool) *Builder {
	if b.stamp(prefix, SymbolBetween, match) {
		b.src.WriteBetween(field, start, end)
		b.src.Reset()
	}
	return b
}

func (b *Builder) in(prefix, symbol, field string, value any, match []bool) *Builder {
	if b.stamp(prefix, symbol, match) {
		b.err = b.src.WriteIn(field, expr.ParamName(field), value)
		b.src.Reset()
	}
	return b
}

func (b *Builder) isNull(prefix, symbol, field string, match []bool) *Builder {
	if b.stamp(prefix, symbol, match) {
		b.src.WriteIsNull(field)
		b.src.Reset()
	}
	return b
}
// Equal writes "field = :field".
func (b *Builder) Equal(field string, value any, match ...bool) *Builder {
	return b.condition(PrefixNone, SymbolEqual, field, value, match)
}

// AndEqual is Equal prefixed with AND.
func (b *Builder) AndEqual(field string, value any, match ...bool) *Builder {
	return b.condition(PrefixAnd, SymbolEqual, field, value, match)
}

// OrEqual is Equal prefixed with OR.
func (b *Builder) OrEqual(field string, value any, match ...bool) *Builder {
	return b.condition(PrefixOr, SymbolEqual, field, value, match)
}

// NotEqual writes "field <> :field".
func (b *Builder) NotEqual(field string, value any, match ...bool) *Builder {
	return b.condition(PrefixNone, SymbolNotEqual, field, value, match)
}

// AndNotEqual is NotEqual prefixed with AND.
func (b *Builder) AndNotEqual(field string, value any, match ...bool) *Builder {
	return b.condition(PrefixAnd, SymbolNotEqual, field, value, match)
}

// OrNotEqual is NotEqual prefixed with OR.
func (b *Builder) OrNotEqual(field string, value any, match ...bool) *Builder {
	return b.condition(PrefixOr, SymbolNotEqual, field, value, match)
}

// GreaterThan writes "field > :field".
func (b *Builder) GreaterThan(field string, value any, match ...bool) *Builder {
	return b.condition(PrefixNone, SymbolGreaterThan, field, value, match)
}

// AndGreaterThan is GreaterThan prefixed with AND.
func (b *Builder) AndGreaterThan(field string, value any, match ...bool) *Builder {
	return b.condition(PrefixAnd, SymbolGreaterThan, field, value, match)
}

// OrGreaterThan is GreaterThan prefixed with OR.
func (b *Builder) OrGreaterThan(field string, value any, match ...bool) *Builder {
	return b.condition(PrefixOr, SymbolGreaterThan, field, value, match)
}

// LessThan writes "field < :field".
func (b *Builder) LessThan(field string, value any, match ...bool) *Builder {
	return b.condition(PrefixNone, SymbolLessThan, field, value, match)
}

// AndLessThan is LessThan prefixed with AND.
func (b *Builder) AndLessThan(field string, value any, match ...bool) *Builder {
	return b.condition(PrefixAnd, SymbolLessThan, field, value, match)
}

// OrLessThan is LessThan prefixed with OR.
func (b *Builder) OrLessThan(field string, value any, match ...bool) *Builder {
	return b.condition(PrefixOr, SymbolLessThan, field, value, match)
}

// GreaterThanEqual writes "field >= :field".
func (b *Builder) GreaterThanEqual(field string, value any, match ...bool) *Builder {
	return b.condition(PrefixNone, SymbolGreaterThanEqual, field, value, match)
}

// AndGreaterThanEqual is GreaterThanEqual prefixed with AND.
func (b *Builder) AndGreaterThanEqual(field string, value any, match ...bool) *Builder {
	return b.condition(PrefixAnd, SymbolGreaterThanEqual, field, value, match)
}

// OrGreaterThanEqual is GreaterThanEqual prefixed with OR.
func (b *Builder) OrGreaterThanEqual(field string, value any, match ...bool) *Builder {
	return b.condition(PrefixOr, SymbolGreaterThanEqual, field, value, match)
}

// LessThanEqual writes "field <= :field".
func (b *Builder) LessThanEqual(field string, value any, match ...bool) *Builder {
	return b.condition(PrefixNone, SymbolLessThanEqual, field, value, match)
}

// AndLessThanEqual is LessThanEqual prefixed with AND.
func (b *Builder) AndLessThanEqual(field string, value any, match ...bool) *Builder {
	return b.condition(PrefixAnd, SymbolLessThanEqual, field, value, match)
}

// OrLessThanEqual is LessThanEqual prefixed with OR.
func (b *Builder) OrLessThanEqual(field string, value any, match ...bool) *Builder {
	return b.condition(PrefixOr, SymbolLessThanEqual, field, value, match)
}

// Like writes "field LIKE :field" bound to "%value%", literal "%" in value escaped.
func (b *Builder) Like(field string, value any, match ...bool) *Builder {
	return b.like(PrefixNone, SymbolLike, field, value, LikeContains, match)
}

// AndLike is Like prefixed with AND.
func (b *Builder) AndLike(field string, value any, match ...bool) *Builder {
	return b.like(PrefixAnd, SymbolLike, field, value, LikeContains, match)
}

// OrLike is Like prefixed with OR.
func (b *Builder) OrLike(field string, value any, match ...bool) *Builder {
	return b.like(PrefixOr, SymbolLike, field, value, LikeContains, match)
}

// NotLike is the negation of Like.
func (b *Builder) NotLike(field string, value any, match ...bool) *Builder {
	return b.like(PrefixNone, SymbolNotLike, field, value, LikeContains, match)
}

// AndNotLike is NotLike prefixed with AND.
func (b *Builder) AndNotLike(field string, value any, match ...bool) *Builder {
	return b.like(PrefixAnd, SymbolNotLike, field, value, LikeContains, match)
}

// OrNotLike is NotLike prefixed with OR.
func (b *Builder) OrNotLike(field string, value any, match ...bool) *Builder {
	return b.like(PrefixOr, SymbolNotLike, field, value, LikeContains, match)
}

// StartsWith writes "field LIKE :field" bound to "value%".
func (b *Builder) StartsWith(field string, value any, match ...bool) *Builder {
	return b.like(PrefixNone, SymbolLike, field, value, LikeStartsWith, match)
}

// AndStartsWith is StartsWith prefixed with AND.
func (b *Builder) AndStartsWith(field string, value any, match ...bool) *Builder {
	return b.like(PrefixAnd, SymbolLike, field, value, LikeStartsWith, match)
}

// OrStartsWith is StartsWith prefixed with OR.
func (b *Builder) OrStartsWith(field string, value any, match ...bool) *Builder {
	return b.like(PrefixOr, SymbolLike, field, value, LikeStartsWith, match)
}

// NotStartsWith is the negation of StartsWith.
func (b *Builder) NotStartsWith(field string, value any, match ...bool) *Builder {
	return b.like(PrefixNone, SymbolNotLike, field, value, LikeStartsWith, match)
}

// AndNotStartsWith is NotStartsWith prefixed with AND.
func (b *Builder) AndNotStartsWith(field string, value any, match ...bool) *Builder {
	return b.like(PrefixAnd, SymbolNotLike, field, value, LikeStartsWith, match)
}

// OrNotStartsWith is NotStartsWith prefixed with OR.
func (b *Builder) OrNotStartsWith(field string, value any, match ...bool) *Builder {
	return b.like(PrefixOr, SymbolNotLike, field, value, LikeStartsWith, match)
}

// EndsWith writes "field LIKE :field" bound to "%value".
func (b *Builder) EndsWith(field string, value any, match ...bool) *Builder {
	return b.like(PrefixNone, SymbolLike, field, value, LikeEndsWith, match)
}

// AndEndsWith is EndsWith prefixed with AND.
func (b *Builder) AndEndsWith(field string, value any, match ...bool) *Builder {
	return b.like(PrefixAnd, SymbolLike, field, value, LikeEndsWith, match)
}

// OrEndsWith is EndsWith prefixed with OR.
func (b *Builder) OrEndsWith(field string, value any, match ...bool) *Builder {
	return b.like(PrefixOr, SymbolLike, field, value, LikeEndsWith, match)
}

// NotEndsWith is the negation of EndsWith.
func (b *Builder) NotEndsWith(field string, value any, match ...bool) *Builder {
	return b.like(PrefixNone, SymbolNotLike, field, value, LikeEndsWith, match)
}

// AndNotEndsWith is NotEndsWith prefixed with AND.
func (b *Builder) AndNotEndsWith(field string, value any, match ...bool) *Builder {
	return b.like(PrefixAnd, SymbolNotLike, field, value, LikeEndsWith, match)
}

// OrNotEndsWith is NotEndsWith prefixed with OR.
func (b *Builder) OrNotEndsWith(field string, value any, match ...bool) *Builder {
	return b.like(PrefixOr, SymbolNotLike, field, value, LikeEndsWith, match)
}

// LikePattern writes "field LIKE 'pattern'" with pattern embedded as a literal.
func (b *Builder) LikePattern(field, pattern string, match ...bool) *Builder {
	return b.likePattern(PrefixNone, SymbolLike, field, pattern, match)
}

// AndLikePattern is LikePattern prefixed with AND.
func (b *Builder) AndLikePattern(field, pattern string, match ...bool) *Builder {
	return b.likePattern(PrefixAnd, SymbolLike, field, pattern, match)
}

// OrLikePattern is LikePattern prefixed with OR.
func (b *Builder) OrLikePattern(field, pattern string, match ...bool) *Builder {
	return b.likePattern(PrefixOr, SymbolLike, field, pattern, match)
}

// NotLikePattern is the negation of LikePattern.
func (b *Builder) NotLikePattern(field, pattern string, match ...bool) *Builder {
	return b.likePattern(PrefixNone, SymbolNotLike, field, pattern, match)
}

// AndNotLikePattern is NotLikePattern prefixed with AND.
func (b *Builder) AndNotLikePattern(field, pattern string, match ...bool) *Builder {
	return b.likePattern(PrefixAnd, SymbolNotLike, field, pattern, match)
}

// OrNotLikePattern is NotLikePattern prefixed with OR.
func (b *Builder) OrNotLikePattern(field, pattern string, match ...bool) *Builder {
	return b.likePattern(PrefixOr, SymbolNotLike, field, pattern, match)
}

// Between writes "field BETWEEN :field_start AND :field_end". A nil bound
// degrades the condition to ">=" or "<=", two nil bounds write nothing.
func (b *Builder) Between(field string, start, end any, match ...bool) *Builder {
	return b.between(PrefixNone, field, start, end, match)
}

// AndBetween is Between prefixed with AND.
func (b *Builder) AndBetween(field string, start, end any, match ...bool) *Builder {
	return b.between(PrefixAnd, field, start, end, match)
}

// OrBetween is Between prefixed with OR.
func (b *Builder) OrBetween(field string, start, end any, match ...bool) *Builder {
	return b.between(PrefixOr, field, start, end, match)
}

// In writes "field IN :field" binding the whole slice or array.
// Any other value type is an error.
func (b *Builder) In(field string, value any, match ...bool) *Builder {
	return b.in(PrefixNone, SymbolIn, field, value, match)
}

// AndIn is In prefixed with AND.
func (b *Builder) AndIn(field string, value any, match ...bool) *Builder {
	return b.in(PrefixAnd, SymbolIn, field, value, match)
}

// OrIn is In prefixed with OR.
func (b *Builder) OrIn(field string, value any, match ...bool) *Builder {
	return b.in(PrefixOr, SymbolIn, field, value, match)
}

// NotIn is the negation of In.
func (b *Builder) NotIn(field string, value any, match ...bool) *Builder {
	return b.in(PrefixNone, SymbolNotIn, field, value, match)
}

// AndNotIn is NotIn prefixed with AND.
func (b *Builder) AndNotIn(field string, value any, match ...bool) *Builder {
	return b.in(PrefixAnd, SymbolNotIn, field, value, match)
}

// OrNotIn is NotIn prefixed with OR.
func (b *Builder) OrNotIn(field string, value any, match ...bool) *Builder {
	return b.in(PrefixOr, SymbolNotIn, field, value, match)
}

// IsNull writes "field IS NULL".
func (b *Builder) IsNull(field string, match ...bool) *Builder {
	return b.isNull(PrefixNone, SymbolIsNull, field, match)
}

// AndIsNull is IsNull prefixed with AND.
func (b *Builder) AndIsNull(field string, match ...bool) *Builder {
	return b.isNull(PrefixAnd, SymbolIsNull, field, match)
}

// OrIsNull is IsNull prefixed with OR.
func (b *Builder) OrIsNull(field string, match ...bool) *Builder {
	return b.isNull(PrefixOr, SymbolIsNull, field, match)
}

// IsNotNull writes "field IS NOT NULL".
func (b *Builder) IsNotNull(field string, match ...bool) *Builder {
	return b.isNull(PrefixNone, SymbolIsNotNull, field, match)
}

// AndIsNotNull is IsNotNull prefixed with AND.
func (b *Builder) AndIsNotNull(field string, match ...bool) *Builder {
	return b.isNull(PrefixAnd, SymbolIsNotNull, field, match)
}

// OrIsNotNull is IsNotNull prefixed with OR.
func (b *Builder) OrIsNotNull(field string, match ...bool) *Builder {
	return b.isNull(PrefixOr, SymbolIsNotNull, field, match)
}
