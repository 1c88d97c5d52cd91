// Copyright 2023 Canonical Ltd.
// Licensed under Apache 2.0, see LICENCE file for details.

package fenix

import (
	"errors"
	"fmt"

	"github.com/blinkfox/fenix/internal/expr"
)

var (
	// ErrNotFound is returned for unknown tags and for unknown namespaces
	// or template ids.
	ErrNotFound = errors.New("fenix: not found")
	// ErrInstantiation is matched by every *InstantiationError.
	ErrInstantiation = errors.New("fenix: cannot instantiate handler")
	// ErrTypeMismatch is returned when a value has a type a condition
	// cannot bind, e.g. an IN value that is not a slice or an array.
	ErrTypeMismatch = errors.New("fenix: type mismatch")
	// ErrInvalidNode is returned for documents and nodes missing a required
	// part, such as a blank namespace or a tag without its field.
	ErrInvalidNode = errors.New("fenix: invalid node")
	// ErrInvalidID is returned for malformed fenix identifiers.
	ErrInvalidID = errors.New("fenix: invalid fenix id")
	// ErrExpression is matched by every *ExpressionError.
	ErrExpression = expr.ErrExpression
)

// ExpressionError reports a malformed expression or template, or one that
// failed to evaluate. Source holds the offending text.
type ExpressionError = expr.Error

// InstantiationError reports a handler that could not be created for a
// tag. Type names the handler type or factory.
type InstantiationError struct {
	Type string
	Err  error
}

func (e *InstantiationError) Error() string {
	return fmt.Sprintf("cannot instantiate handler %s: %v", e.Type, e.Err)
}

func (e *InstantiationError) Unwrap() error {
	return e.Err
}

func (e *InstantiationError) Is(target error) bool {
	return target == ErrInstantiation
}
