// Copyright 2023 Canonical Ltd.
// Licensed under Apache 2.0, see LICENCE file for details.

package fenix

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/blinkfox/fenix/internal/expr"
)

// paramName names the parameter of a tag from its value expression,
// falling back to the field.
func paramName(valueExpr, field string) string {
	if name := expr.ParamName(valueExpr); name != "" {
		return name
	}
	return expr.ParamName(field)
}

// fieldAndValue reads the "field" attribute and evaluates the "value"
// attribute of the current node.
func fieldAndValue(src *BuildSource) (field, valueExpr string, value any, err error) {
	if field, err = src.RequireAttr("field"); err != nil {
		return "", "", nil, err
	}
	if valueExpr, err = src.RequireAttr("value"); err != nil {
		return "", "", nil, err
	}
	value, err = src.EvalValue(valueExpr)
	return field, valueExpr, value, err
}

// ConditionHandler writes "field <symbol> :name". It backs the equality
// and comparison tags.
type ConditionHandler struct{}

func (ConditionHandler) Build(src *BuildSource) error {
	if !src.Match() {
		return nil
	}
	field, valueExpr, value, err := fieldAndValue(src)
	if err != nil {
		return err
	}
	src.WriteCondition(field, paramName(valueExpr, field), value)
	return nil
}

// LikeHandler writes "field LIKE :name" with the value wrapped as
// "%value%". A "pattern" attribute is embedded as a literal instead.
type LikeHandler struct{}

func (LikeHandler) Build(src *BuildSource) error {
	return buildLike(src, LikeContains)
}

// StartsWithHandler is LikeHandler matching "value%".
type StartsWithHandler struct{}

func (StartsWithHandler) Build(src *BuildSource) error {
	return buildLike(src, LikeStartsWith)
}

// EndsWithHandler is LikeHandler matching "%value".
type EndsWithHandler struct{}

func (EndsWithHandler) Build(src *BuildSource) error {
	return buildLike(src, LikeEndsWith)
}

func buildLike(src *BuildSource, mode LikeMode) error {
	if !src.Match() {
		return nil
	}
	if pattern, ok := src.Attr("pattern"); ok && pattern != "" {
		field, err := src.RequireAttr("field")
		if err != nil {
			return err
		}
		pattern, err = src.Render(pattern)
		if err != nil {
			return err
		}
		src.WriteLikePattern(field, pattern)
		return nil
	}
	field, valueExpr, value, err := fieldAndValue(src)
	if err != nil {
		return err
	}
	src.WriteLike(field, paramName(valueExpr, field), value, mode)
	return nil
}

// BetweenHandler writes a range condition from the "start" and "end"
// attributes. A missing or null bound degrades the condition.
type BetweenHandler struct{}

func (BetweenHandler) Build(src *BuildSource) error {
	if !src.Match() {
		return nil
	}
	field, err := src.RequireAttr("field")
	if err != nil {
		return err
	}
	start, err := optionalValue(src, "start")
	if err != nil {
		return err
	}
	end, err := optionalValue(src, "end")
	if err != nil {
		return err
	}
	src.WriteBetween(field, start, end)
	return nil
}

func optionalValue(src *BuildSource, attr string) (any, error) {
	e, _ := src.Attr(attr)
	if e == "" {
		return nil, nil
	}
	return src.EvalValue(e)
}

// InHandler writes "field IN :name", binding the whole sequence.
type InHandler struct{}

func (InHandler) Build(src *BuildSource) error {
	if !src.Match() {
		return nil
	}
	field, valueExpr, value, err := fieldAndValue(src)
	if err != nil {
		return err
	}
	return src.WriteIn(field, paramName(valueExpr, field), value)
}

// IsNullHandler writes "field IS NULL" or "field IS NOT NULL".
type IsNullHandler struct{}

func (IsNullHandler) Build(src *BuildSource) error {
	if !src.Match() {
		return nil
	}
	field, err := src.RequireAttr("field")
	if err != nil {
		return err
	}
	src.WriteIsNull(field)
	return nil
}

// TextHandler writes the text body of its node. The optional "value"
// attribute must evaluate to a map, whose entries are bound as parameters.
type TextHandler struct{}

func (TextHandler) Build(src *BuildSource) error {
	node, err := src.requireNode("text")
	if err != nil {
		return err
	}
	if !src.Match() {
		return nil
	}
	text, err := src.Render(node.InnerText())
	if err != nil {
		return err
	}
	var params map[string]any
	if valueExpr, _ := src.Attr("value"); valueExpr != "" {
		v, err := src.EvalValue(valueExpr)
		if err != nil {
			return err
		}
		m, ok := v.(map[string]any)
		if !ok && !isNil(v) {
			return fmt.Errorf("%w: text value %q must be a map, got %T", ErrTypeMismatch, valueExpr, v)
		}
		params = m
	}
	src.WriteText(strings.TrimSpace(text), params)
	return nil
}

// maxImports bounds nested import tags.
const maxImports = 16

// ImportHandler expands another template in place. "fenixId" names the
// template, either as "namespace.id" or as a bare id of the current
// namespace; the optional "value" expression gives it its own context.
type ImportHandler struct{}

func (ImportHandler) Build(src *BuildSource) error {
	if !src.Match() {
		return nil
	}
	id, err := src.RequireAttr("fenixId")
	if err != nil {
		return err
	}
	namespace, local, err := ParseID(id)
	if err != nil {
		namespace, local = src.Namespace(), id
	}
	if src.imports >= maxImports {
		return fmt.Errorf("%w: imports nested deeper than %d levels at %q", ErrInvalidNode, maxImports, id)
	}

	node, err := src.engine.docs.Lookup(namespace, local)
	if err != nil {
		return err
	}
	ctx := src.Context()
	if valueExpr, _ := src.Attr("value"); valueExpr != "" {
		if ctx, err = src.EvalValue(valueExpr); err != nil {
			return err
		}
	}
	info, err := src.engine.buildNode(namespace, node, ctx, src.imports+1)
	if err != nil {
		return err
	}
	src.WriteText(info.SQL(), info.params)
	return nil
}

// ChooseHandler writes the "then" text of the first "when" expression that
// holds, trying "when", "when2", "when3" and so on, and the "else" text
// when none does.
type ChooseHandler struct{}

func (ChooseHandler) Build(src *BuildSource) error {
	if _, err := src.requireNode("choose"); err != nil {
		return err
	}
	if !src.Match() {
		return nil
	}
	for i := 1; ; i++ {
		suffix := ""
		if i > 1 {
			suffix = strconv.Itoa(i)
		}
		when, ok := src.Attr("when" + suffix)
		if !ok {
			break
		}
		if !src.IsTrue(when) {
			continue
		}
		then, _ := src.Attr("then" + suffix)
		return writeRendered(src, then)
	}
	if other, ok := src.Attr("else"); ok {
		return writeRendered(src, other)
	}
	return nil
}

func writeRendered(src *BuildSource, tmpl string) error {
	if tmpl == "" {
		return nil
	}
	text, err := src.Render(tmpl)
	if err != nil {
		return err
	}
	src.WriteText(text, nil)
	return nil
}

// WhereHandler walks its children and, when they produce anything, writes
// " WHERE " followed by their text with any leading AND or OR removed.
type WhereHandler struct{}

func (WhereHandler) Build(src *BuildSource) error {
	node, err := src.requireNode("where")
	if err != nil {
		return err
	}
	if !src.Match() {
		return nil
	}
	before := src.info.SQL()
	if err := src.WalkChildren(node); err != nil {
		return err
	}
	frag := trimLeadingOperator(src.info.SQL()[len(before):])
	src.info.setSQL(before)
	if frag != "" {
		src.info.Append(" WHERE " + frag)
	}
	return nil
}

// trimLeadingOperator strips blanks and one leading AND or OR keyword.
func trimLeadingOperator(s string) string {
	s = strings.TrimSpace(s)
	for _, op := range []string{"AND", "OR"} {
		if len(s) > len(op) && strings.EqualFold(s[:len(op)], op) && isBlank(s[len(op)]) {
			return strings.TrimSpace(s[len(op):])
		}
	}
	return s
}

func isBlank(c byte) bool {
	return c == ' ' || c == '\t' || c == '\n' || c == '\r'
}
