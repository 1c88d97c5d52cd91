// Copyright 2023 Canonical Ltd.
// Licensed under Apache 2.0, see LICENCE file for details.

package expr

import (
	"strings"
)

// RewritePlaceholders walks SQL text and replaces every bind placeholder
// found outside quoted literals and comments with the result of fn. A
// positional placeholder "?" is reported with an empty name, a named
// placeholder ":name" with its name. Postgres casts ("::") are left alone.
func RewritePlaceholders(sql string, fn func(name string) string) string {
	var buf strings.Builder
	buf.Grow(len(sql) + 16)

	// State machine for safe walking through strings and comments.
	const (
		sText = iota
		sSQ   // '...'
		sDQ   // "..."
		sLC   // line comment --
		sBC   // block comment /* ... */
	)
	state := sText

	for i := 0; i < len(sql); {
		c := sql[i]

		switch state {
		case sText:
			switch {
			case c == '-' && i+1 < len(sql) && sql[i+1] == '-':
				state = sLC
				buf.WriteString("--")
				i += 2
				continue
			case c == '/' && i+1 < len(sql) && sql[i+1] == '*':
				state = sBC
				buf.WriteString("/*")
				i += 2
				continue
			case c == '\'':
				state = sSQ
			case c == '"':
				state = sDQ
			case c == '?':
				buf.WriteString(fn(""))
				i++
				continue
			case c == ':' && i+1 < len(sql) && sql[i+1] == ':':
				buf.WriteString("::")
				i += 2
				continue
			case c == ':' && i+1 < len(sql) && isInitialNameByte(sql[i+1]):
				j := i + 1
				for j < len(sql) && isNameByte(sql[j]) {
					j++
				}
				buf.WriteString(fn(sql[i+1 : j]))
				i = j
				continue
			}
			buf.WriteByte(c)
			i++

		case sSQ, sDQ:
			quote := byte('\'')
			if state == sDQ {
				quote = '"'
			}
			buf.WriteByte(c)
			i++
			if c == quote {
				// A doubled quote is an escaped quote.
				if i < len(sql) && sql[i] == quote {
					buf.WriteByte(quote)
					i++
					continue
				}
				state = sText
			}

		case sLC:
			buf.WriteByte(c)
			i++
			if c == '\n' {
				state = sText
			}

		case sBC:
			if c == '*' && i+1 < len(sql) && sql[i+1] == '/' {
				buf.WriteString("*/")
				i += 2
				state = sText
				continue
			}
			buf.WriteByte(c)
			i++
		}
	}
	return buf.String()
}

func isInitialNameByte(c byte) bool {
	return c == '_' || (c >= 'a' && c <= 'z') || (c >= 'A' && c <= 'Z')
}

func isNameByte(c byte) bool {
	return isInitialNameByte(c) || (c >= '0' && c <= '9')
}
