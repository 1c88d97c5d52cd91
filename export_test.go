// Copyright 2023 Canonical Ltd.
// Licensed under Apache 2.0, see LICENCE file for details.

package fenix

func Normalize(s string) string {
	return normalize(s)
}

func TrimLeadingOperator(s string) string {
	return trimLeadingOperator(s)
}

func (e *Engine) CacheLen() (programs, templates int) {
	return e.eval.CacheLen()
}
