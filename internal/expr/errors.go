// Copyright 2023 Canonical Ltd.
// Licensed under Apache 2.0, see LICENCE file for details.

package expr

import (
	"errors"
	"fmt"
)

// ErrExpression matches every *Error with errors.Is.
var ErrExpression = errors.New("fenix: expression error")

// Error reports a malformed expression or template, or one that failed to
// evaluate. Source is the offending text.
type Error struct {
	Source string
	Err    error
}

func (e *Error) Error() string {
	return fmt.Sprintf("expression %q: %v", e.Source, e.Err)
}

func (e *Error) Unwrap() error {
	return e.Err
}

// Is makes errors.Is(err, ErrExpression) hold for every *Error.
func (e *Error) Is(target error) bool {
	return target == ErrExpression
}

func newError(source string, err error) error {
	var ee *Error
	if errors.As(err, &ee) && ee.Source == source {
		return err
	}
	return &Error{Source: source, Err: err}
}
