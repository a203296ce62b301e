// Copyright (C) 2025 Dyne.org foundation
// designed, written and maintained by Denis Roio <jaromil@dyne.org>
//
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as
// published by the Free Software Foundation, either version 3 of the
// License, or (at your option) any later version.
//
// This program is distributed in the hope that it will be useful,
// but WITHOUT ANY WARRANTY; without even the implied warranty of
// MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE.  See the
// GNU Affero General Public License for more details.
//
// You should have received a copy of the GNU Affero General Public License
// along with this program.  If not, see <https://www.gnu.org/licenses/>.

package errors

import (
	"errors"
	"fmt"
	"net/http"
)

// Code identifies a class of error for programmatic handling.
type Code string

const (
	CodePathEscape         Code = "path_escape"
	CodeUnknownOperation   Code = "unknown_operation"
	CodeMissingArgument    Code = "missing_argument"
	CodeUnexpectedArgument Code = "unexpected_argument"
	CodeArgumentType       Code = "argument_type"
	CodeMalformedArguments Code = "malformed_arguments"
	CodeUpstream           Code = "upstream"
	CodeNoDecision         Code = "no_decision"
	CodeOperationFailed    Code = "operation_failed"
	CodeNotFound           Code = "not_found"
	CodeInvalidRequest     Code = "invalid_request"
)

// Stage names the pipeline step that produced an error.
type Stage string

const (
	StageDispatch Stage = "dispatch"
	StageValidate Stage = "validate"
	StageSandbox  Stage = "sandbox"
	StageExecute  Stage = "execute"
	StageRead     Stage = "read"
)

// Error wraps an underlying error with a code, the failing stage and an
// optional operation/field context.
type Error struct {
	Code      Code
	Stage     Stage
	Operation string
	Field     string
	Message   string
	Err       error
}

func (e *Error) Error() string {
	if e == nil {
		return ""
	}
	if e.Message == "" {
		if e.Err != nil {
			return e.Err.Error()
		}
		return string(e.Code)
	}
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

// Unwrap returns the underlying error.
func (e *Error) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.Err
}

// Is reports whether target is an *Error carrying the same code.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok || e == nil {
		return false
	}
	return t.Code == e.Code && t.Message == "" && t.Err == nil
}

// WithStage sets the stage if it has not been set yet.
func (e *Error) WithStage(stage Stage) *Error {
	if e.Stage == "" {
		e.Stage = stage
	}
	return e
}

// WithOperation records the operation the error refers to.
func (e *Error) WithOperation(name string) *Error {
	e.Operation = name
	return e
}

// WithField records the argument the error refers to.
func (e *Error) WithField(name string) *Error {
	e.Field = name
	return e
}

// New creates a new coded error with a message.
func New(code Code, message string) *Error {
	return &Error{Code: code, Message: message}
}

// Newf creates a new coded error with a formatted message.
func Newf(code Code, format string, args ...interface{}) *Error {
	return &Error{Code: code, Message: fmt.Sprintf(format, args...)}
}

// Wrap creates a new coded error that wraps an underlying error.
func Wrap(code Code, message string, err error) *Error {
	return &Error{Code: code, Message: message, Err: err}
}

// Sentinel returns a bare error of the given code for use with errors.Is.
func Sentinel(code Code) *Error {
	return &Error{Code: code}
}

// As extracts the first *Error in err's chain.
func As(err error) (*Error, bool) {
	var coded *Error
	if errors.As(err, &coded) {
		return coded, true
	}
	return nil, false
}

// CodeOf returns the code of the first *Error in err's chain, or
// CodeOperationFailed when err carries no code.
func CodeOf(err error) Code {
	if coded, ok := As(err); ok {
		return coded.Code
	}
	return CodeOperationFailed
}

// HTTPStatus maps an error code to the status reported by the HTTP surface.
func HTTPStatus(code Code) int {
	switch code {
	case CodePathEscape:
		return http.StatusForbidden
	case CodeUnknownOperation, CodeMissingArgument, CodeUnexpectedArgument, CodeArgumentType:
		return http.StatusUnprocessableEntity
	case CodeUpstream:
		return http.StatusServiceUnavailable
	case CodeNoDecision, CodeMalformedArguments:
		return http.StatusBadGateway
	case CodeNotFound:
		return http.StatusNotFound
	case CodeInvalidRequest:
		return http.StatusBadRequest
	default:
		return http.StatusInternalServerError
	}
}
