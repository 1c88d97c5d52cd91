// Copyright 2023 Canonical Ltd.
// Licensed under Apache 2.0, see LICENCE file for details.

package fenix

import (
	"fmt"
	"reflect"
	"strings"

	"github.com/blinkfox/fenix/document"
	"github.com/blinkfox/fenix/internal/expr"
)

// Prefixes stamped by the built-in tags and builder methods.
const (
	PrefixNone = ""
	PrefixAnd  = " AND "
	PrefixOr   = " OR "
)

// LikeMode selects how a LIKE value is wrapped in wildcards.
type LikeMode int

const (
	// LikeContains matches the value anywhere: "%value%".
	LikeContains LikeMode = iota
	// LikeStartsWith matches a leading value: "value%".
	LikeStartsWith
	// LikeEndsWith matches a trailing value: "%value".
	LikeEndsWith
)

// BuildSource is the mutable state of one build. It owns the SQLInfo being
// built and the prefix and operator symbol of the fragment under
// construction. A BuildSource must not be shared between builds.
type BuildSource struct {
	engine    *Engine
	info      *SQLInfo
	namespace string
	node      *document.Node
	ctx       any
	act       map[string]any
	prefix    string
	symbol    string
	// imports counts the import tags being expanded above this source.
	imports int
}

// NewSource returns a BuildSource evaluating expressions against ctx.
// namespace and node may be empty when the build is not driven by a
// document.
func (e *Engine) NewSource(namespace string, node *document.Node, ctx any) (*BuildSource, error) {
	act, err := activation(ctx)
	if err != nil {
		return nil, err
	}
	return &BuildSource{
		engine:    e,
		info:      NewSQLInfo(),
		namespace: namespace,
		node:      node,
		ctx:       ctx,
		act:       act,
	}, nil
}

// Info returns the SQLInfo being built.
func (s *BuildSource) Info() *SQLInfo { return s.info }

// Prefix returns the operator written before the next condition, such as
// " AND ".
func (s *BuildSource) Prefix() string { return s.prefix }

// SetPrefix sets the operator written before the next condition.
func (s *BuildSource) SetPrefix(prefix string) { s.prefix = prefix }

// Symbol returns the comparison operator of the tag being handled.
func (s *BuildSource) Symbol() string { return s.symbol }

// SetSymbol sets the comparison operator of the tag being handled.
func (s *BuildSource) SetSymbol(symbol string) { s.symbol = symbol }

// Reset restores the neutral prefix and symbol.
func (s *BuildSource) Reset() {
	s.prefix = PrefixNone
	s.symbol = ""
}

// Node returns the document node being handled, nil outside a document
// walk.
func (s *BuildSource) Node() *document.Node { return s.node }

// Namespace returns the namespace of the template being built.
func (s *BuildSource) Namespace() string { return s.namespace }

// Context returns the context value as the caller passed it.
func (s *BuildSource) Context() any { return s.ctx }

// Engine returns the engine running the build.
func (s *BuildSource) Engine() *Engine { return s.engine }

// Attr returns the trimmed value of an attribute of the current node.
func (s *BuildSource) Attr(name string) (string, bool) {
	if s.node == nil {
		return "", false
	}
	v, ok := s.node.Attr(name)
	return strings.TrimSpace(v), ok
}

// requireNode returns the node being handled. Tags reading the node body
// fail outside a document walk.
func (s *BuildSource) requireNode(tag string) (*document.Node, error) {
	if s.node == nil {
		return nil, fmt.Errorf("%w: <%s> needs a document node", ErrInvalidNode, tag)
	}
	return s.node, nil
}

// RequireAttr is Attr for attributes that must be present and not blank.
func (s *BuildSource) RequireAttr(name string) (string, error) {
	v, _ := s.Attr(name)
	if v != "" {
		return v, nil
	}
	if s.node == nil {
		return "", fmt.Errorf("%w: no node to read attribute %q from", ErrInvalidNode, name)
	}
	if s.node.Line > 0 {
		return "", fmt.Errorf("%w: <%s> on line %d needs a %q attribute", ErrInvalidNode, s.node.Name, s.node.Line, name)
	}
	return "", fmt.Errorf("%w: <%s> needs a %q attribute", ErrInvalidNode, s.node.Name, name)
}

// Match reports whether the current node should contribute anything. A
// node without a "match" attribute always does. A failing match
// expression is logged and counts as false.
func (s *BuildSource) Match() bool {
	m, _ := s.Attr("match")
	if m == "" {
		return true
	}
	return s.IsTrue(m)
}

// EvalValue evaluates an expression against the context.
func (s *BuildSource) EvalValue(src string) (any, error) {
	return s.engine.eval.EvalValue(src, s.act)
}

// IsTrue evaluates a boolean expression against the context, reading any
// failure as false.
func (s *BuildSource) IsTrue(src string) bool {
	return s.engine.eval.IsTrue(src, s.act)
}

// Render substitutes the "@{expr}" markers of a template.
func (s *BuildSource) Render(tmpl string) (string, error) {
	return s.engine.eval.Render(tmpl, s.act)
}

// lead keeps an unprefixed fragment from running into the text before it.
func (s *BuildSource) lead() {
	if s.prefix != PrefixNone {
		return
	}
	sql := s.info.SQL()
	if sql == "" {
		return
	}
	switch sql[len(sql)-1] {
	case ' ', '\n', '\t', '\r', '(':
		return
	}
	s.info.Append(" ")
}

// WriteCondition writes "<prefix><field> <symbol> :name" and binds value to
// name.
func (s *BuildSource) WriteCondition(field, name string, value any) {
	s.lead()
	s.info.Append(s.prefix + field + " " + s.symbol + " :" + name)
	s.info.SetParam(name, value)
}

// WriteLike writes a LIKE condition. Backslashes and literal "%" chars in
// value are escaped before the value is wrapped in wildcards.
func (s *BuildSource) WriteLike(field, name string, value any, mode LikeMode) {
	var v string
	if !isNil(value) {
		v = likeEscaper.Replace(fmt.Sprint(value))
	}
	switch mode {
	case LikeStartsWith:
		v = v + "%"
	case LikeEndsWith:
		v = "%" + v
	default:
		v = "%" + v + "%"
	}
	s.WriteCondition(field, name, v)
}

var likeEscaper = strings.NewReplacer(`\`, `\\`, "%", `\%`)

// WriteLikePattern writes a LIKE condition with pattern embedded as a
// quoted literal.
func (s *BuildSource) WriteLikePattern(field, pattern string) {
	s.lead()
	s.info.Append(s.prefix + field + " " + s.symbol + " '" + strings.ReplaceAll(pattern, "'", "''") + "'")
}

// WriteBetween writes a range condition on field. Parameters are named
// after the field with "_start" and "_end" suffixes. With a single bound the
// condition degrades to ">=" or "<="; with none nothing is written.
func (s *BuildSource) WriteBetween(field string, start, end any) {
	base := expr.ParamName(field)
	startName, endName := base+"_start", base+"_end"
	hasStart, hasEnd := !isNil(start), !isNil(end)

	switch {
	case hasStart && hasEnd:
		s.lead()
		s.info.Append(s.prefix + field + " " + s.symbol + " :" + startName + " AND :" + endName)
		s.info.SetParam(startName, start)
		s.info.SetParam(endName, end)
	case hasStart:
		s.lead()
		s.info.Append(s.prefix + field + " >= :" + startName)
		s.info.SetParam(startName, start)
	case hasEnd:
		s.lead()
		s.info.Append(s.prefix + field + " <= :" + endName)
		s.info.SetParam(endName, end)
	}
}

// WriteIn writes an IN style condition binding the whole of value, which
// must be a slice or an array, as a single parameter.
func (s *BuildSource) WriteIn(field, name string, value any) error {
	if value == nil {
		return fmt.Errorf("%w: %s %s needs a slice or an array, got nil", ErrTypeMismatch, field, s.symbol)
	}
	switch reflect.TypeOf(value).Kind() {
	case reflect.Slice, reflect.Array:
	default:
		return fmt.Errorf("%w: %s %s needs a slice or an array, got %T", ErrTypeMismatch, field, s.symbol, value)
	}
	s.WriteCondition(field, name, value)
	return nil
}

// WriteIsNull writes "<prefix><field> <symbol>", the symbol being IS NULL
// or IS NOT NULL.
func (s *BuildSource) WriteIsNull(field string) {
	s.lead()
	s.info.Append(s.prefix + field + " " + s.symbol)
}

// WriteText writes free text and binds params.
func (s *BuildSource) WriteText(text string, params map[string]any) {
	s.lead()
	s.info.Append(s.prefix + text)
	for k, v := range params {
		s.info.SetParam(k, v)
	}
}

// isNil reports whether v is nil or a nil pointer, map, slice or interface.
func isNil(v any) bool {
	if v == nil {
		return true
	}
	rv := reflect.ValueOf(v)
	switch rv.Kind() {
	case reflect.Pointer, reflect.Map, reflect.Slice, reflect.Interface, reflect.Func, reflect.Chan:
		return rv.IsNil()
	}
	return false
}
