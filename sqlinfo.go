// Copyright 2023 Canonical Ltd.
// Licensed under Apache 2.0, see LICENCE file for details.

package fenix

import (
	"database/sql"
	"fmt"
	"maps"
	"slices"
	"strings"

	"github.com/jackc/pgx/v5"

	"github.com/blinkfox/fenix/internal/expr"
)

// M is a convenience type for passing a context by key. Any map with string
// keys, or any struct, works just as well.
type M map[string]any

// SQLInfo is the result of a build: query text using ":name" placeholders
// and the values to bind to them.
type SQLInfo struct {
	join       strings.Builder
	params     map[string]any
	resultType string
}

// NewSQLInfo returns an empty SQLInfo.
func NewSQLInfo() *SQLInfo {
	return &SQLInfo{params: map[string]any{}}
}

// SQL returns the query text.
func (i *SQLInfo) SQL() string {
	return i.join.String()
}

// Params returns a copy of the named parameters.
func (i *SQLInfo) Params() map[string]any {
	return maps.Clone(i.ensureParams())
}

// Param returns the value bound to name.
func (i *SQLInfo) Param(name string) (any, bool) {
	v, ok := i.params[name]
	return v, ok
}

// ResultType returns the result type hint of the template, if any.
func (i *SQLInfo) ResultType() string {
	return i.resultType
}

// SetResultType sets the result type hint, e.g. the resultType attribute
// of a template.
func (i *SQLInfo) SetResultType(resultType string) {
	i.resultType = resultType
}

// Append appends text verbatim to the query text.
func (i *SQLInfo) Append(text string) {
	i.join.WriteString(text)
}

// SetParam binds value to name. Binding a name twice keeps the last value.
func (i *SQLInfo) SetParam(name string, value any) {
	i.ensureParams()[name] = value
}

func (i *SQLInfo) setSQL(sql string) {
	i.join.Reset()
	i.join.WriteString(sql)
}

func (i *SQLInfo) ensureParams() map[string]any {
	if i.params == nil {
		i.params = map[string]any{}
	}
	return i.params
}

// Args returns the parameters as sql.NamedArg values sorted by name, ready
// to be passed to database/sql along with SQL().
func (i *SQLInfo) Args() []any {
	names := slices.Sorted(maps.Keys(i.params))
	args := make([]any, 0, len(names))
	for _, name := range names {
		args = append(args, sql.Named(name, i.params[name]))
	}
	return args
}

// PgxArgs returns the query text with every ":name" placeholder turned into
// the "@name" form understood by pgx, along with the parameters.
func (i *SQLInfo) PgxArgs() (string, pgx.NamedArgs) {
	query := expr.RewritePlaceholders(i.SQL(), func(name string) string {
		if name == "" {
			return "?"
		}
		return "@" + name
	})
	return query, pgx.NamedArgs(i.Params())
}

// String returns the SQL followed by the parameters sorted by name.
func (i *SQLInfo) String() string {
	names := slices.Sorted(maps.Keys(i.params))
	var b strings.Builder
	b.WriteString("SQLInfo[")
	b.WriteString(i.SQL())
	b.WriteString("]")
	for _, name := range names {
		fmt.Fprintf(&b, " %s=%#v", name, i.params[name])
	}
	return b.String()
}
