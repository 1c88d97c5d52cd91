// Copyright 2023 Canonical Ltd.
// Licensed under Apache 2.0, see LICENCE file for details.

// Package cli holds the configuration, logging and commands of the fenix
// command line tool.
package cli

import (
	"errors"
	"fmt"
	"io"
)

// Exit codes.
const (
	ExitSuccess  = 0
	ExitGeneral  = 1
	ExitConfig   = 2
	ExitDocument = 3
	ExitBuild    = 4
)

// ExitError wraps an error with an exit code.
type ExitError struct {
	Code    int
	Message string
	Err     error
}

func (e *ExitError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

func (e *ExitError) Unwrap() error {
	return e.Err
}

// ExitCode returns the code the process should exit with after err.
func ExitCode(err error) int {
	if err == nil {
		return ExitSuccess
	}
	var exitErr *ExitError
	if errors.As(err, &exitErr) {
		return exitErr.Code
	}
	return ExitGeneral
}

// PrintError writes err to w the way the CLI reports failures.
func PrintError(w io.Writer, err error) {
	fmt.Fprintln(w, "Error:", err)
}

// ConfigError creates an ExitError with ExitConfig code.
func ConfigError(msg string, err error) *ExitError {
	return &ExitError{Code: ExitConfig, Message: msg, Err: err}
}

// DocumentError creates an ExitError with ExitDocument code.
func DocumentError(msg string, err error) *ExitError {
	return &ExitError{Code: ExitDocument, Message: msg, Err: err}
}

// BuildError creates an ExitError with ExitBuild code.
func BuildError(msg string, err error) *ExitError {
	return &ExitError{Code: ExitBuild, Message: msg, Err: err}
}

// GeneralError creates an ExitError with ExitGeneral code.
func GeneralError(msg string, err error) *ExitError {
	return &ExitError{Code: ExitGeneral, Message: msg, Err: err}
}
