// Copyright 2023 Canonical Ltd.
// Licensed under Apache 2.0, see LICENCE file for details.

package expr

import (
	"strings"
	"unicode"
)

// ParamName derives a bind parameter name from expression or field text.
// Every run of chars that cannot appear in an identifier becomes a single
// underscore, so "user.name" becomes "user_name" and "u.id" becomes "u_id".
// The result is empty when src holds no identifier chars at all.
func ParamName(src string) string {
	var b strings.Builder
	b.Grow(len(src))
	pending := false
	for _, r := range strings.TrimSpace(src) {
		if unicode.IsLetter(r) || unicode.IsDigit(r) || r == '_' {
			if pending && b.Len() > 0 {
				b.WriteByte('_')
			}
			pending = false
			b.WriteRune(r)
			continue
		}
		pending = true
	}
	name := b.String()
	if name != "" && unicode.IsDigit(rune(name[0])) {
		name = "p_" + name
	}
	return name
}
