// Copyright 2023 Canonical Ltd.
// Licensed under Apache 2.0, see LICENCE file for details.

package fenix

import (
	"strings"
	"sync"
)

// Operator symbols of the built-in tags.
const (
	SymbolEqual            = "="
	SymbolNotEqual         = "<>"
	SymbolGreaterThan      = ">"
	SymbolLessThan         = "<"
	SymbolGreaterThanEqual = ">="
	SymbolLessThanEqual    = "<="
	SymbolLike             = "LIKE"
	SymbolNotLike          = "NOT LIKE"
	SymbolBetween          = "BETWEEN"
	SymbolIn               = "IN"
	SymbolNotIn            = "NOT IN"
	SymbolIsNull           = "IS NULL"
	SymbolIsNotNull        = "IS NOT NULL"
)

// conditionTags are registered three times: as is, with an "and" prefix and
// with an "or" prefix, e.g. "equal", "andEqual" and "orEqual".
var conditionTags = []struct {
	name   string
	symbol string
	sample Handler
}{
	{"equal", SymbolEqual, ConditionHandler{}},
	{"notEqual", SymbolNotEqual, ConditionHandler{}},
	{"greaterThan", SymbolGreaterThan, ConditionHandler{}},
	{"lessThan", SymbolLessThan, ConditionHandler{}},
	{"greaterThanEqual", SymbolGreaterThanEqual, ConditionHandler{}},
	{"lessThanEqual", SymbolLessThanEqual, ConditionHandler{}},
	{"like", SymbolLike, LikeHandler{}},
	{"notLike", SymbolNotLike, LikeHandler{}},
	{"startsWith", SymbolLike, StartsWithHandler{}},
	{"notStartsWith", SymbolNotLike, StartsWithHandler{}},
	{"endsWith", SymbolLike, EndsWithHandler{}},
	{"notEndsWith", SymbolNotLike, EndsWithHandler{}},
	{"between", SymbolBetween, BetweenHandler{}},
	{"in", SymbolIn, InHandler{}},
	{"notIn", SymbolNotIn, InHandler{}},
	{"isNull", SymbolIsNull, IsNullHandler{}},
	{"isNotNull", SymbolIsNotNull, IsNullHandler{}},
}

var plainTags = []struct {
	name   string
	sample Handler
}{
	{"text", TextHandler{}},
	{"import", ImportHandler{}},
	{"choose", ChooseHandler{}},
	{"where", WhereHandler{}},
}

// builtinKinds are the handler kinds descriptors may refer to.
var builtinKinds = map[string]Handler{
	"condition":  ConditionHandler{},
	"like":       LikeHandler{},
	"startsWith": StartsWithHandler{},
	"endsWith":   EndsWithHandler{},
	"between":    BetweenHandler{},
	"in":         InHandler{},
	"isNull":     IsNullHandler{},
	"text":       TextHandler{},
	"import":     ImportHandler{},
	"choose":     ChooseHandler{},
	"where":      WhereHandler{},
}

// RegisterBuiltins adds the built-in tags and kinds to r.
func RegisterBuiltins(r *Registry) {
	for _, t := range conditionTags {
		for _, p := range []struct{ name, prefix string }{
			{t.name, PrefixNone},
			{"and" + upperFirst(t.name), PrefixAnd},
			{"or" + upperFirst(t.name), PrefixOr},
		} {
			// Built-in samples are never nil.
			_ = r.RegisterType(p.name, p.prefix, t.symbol, t.sample)
		}
	}
	for _, t := range plainTags {
		_ = r.RegisterType(t.name, PrefixNone, "", t.sample)
	}
	for kind, sample := range builtinKinds {
		_ = r.RegisterKind(kind, sample)
	}
}

func upperFirst(s string) string {
	return strings.ToUpper(s[:1]) + s[1:]
}

var (
	defaultRegistry     *Registry
	defaultRegistryOnce sync.Once
)

// DefaultRegistry returns the process wide registry holding the built-in
// tags. Tags registered on it are seen by every engine using it.
func DefaultRegistry() *Registry {
	defaultRegistryOnce.Do(func() {
		defaultRegistry = NewRegistry()
		RegisterBuiltins(defaultRegistry)
	})
	return defaultRegistry
}
