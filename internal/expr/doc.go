// Copyright 2023 Canonical Ltd.
// Licensed under Apache 2.0, see LICENCE file for details.

/*
Package expr evaluates the expressions embedded in fenix documents against a
build context. It covers three uses of the same expression language:

# Match expressions

Boolean expressions deciding whether a conditional fragment contributes any
output, e.g. the match attribute of a tag:

	<andEqual field="u.name" value="user.name" match="user.name != ''"/>

# Value expressions

Expressions whose result is bound as a query parameter, e.g. the value
attribute above or the source of a "#{user.name}" marker.

# Templates

Literal text with "@{expr}" interpolations. Interpolated values are written
into the text itself, they are never bound as parameters.

Expressions are written in CEL (https://cel.dev). They are parsed without a
type check, so identifiers are resolved at evaluation time against the
activation built from the caller's context. Compiled programs and parsed
templates are kept in size and age bounded caches; a cache miss only costs a
recompilation, never a different result.
*/
package expr
