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

package tools

import (
	"fmt"

	apperrors "taskagent/internal/errors"
)

// ArgumentTypeError reports an argument whose string value cannot be turned
// into what the operation needs.
func ArgumentTypeError(operation, field, format string, args ...interface{}) *apperrors.Error {
	return apperrors.Newf(apperrors.CodeArgumentType, "argument %q %s", field, fmt.Sprintf(format, args...)).
		WithStage(apperrors.StageValidate).
		WithOperation(operation).
		WithField(field)
}

// UpstreamError reports a failing network dependency of an operation.
func UpstreamError(operation, message string, err error) *apperrors.Error {
	return apperrors.Wrap(apperrors.CodeUpstream, message, err).
		WithStage(apperrors.StageExecute).
		WithOperation(operation)
}

// NewOperationError wraps a handler failure. Errors that already carry a
// code reported to callers as-is (path escapes, argument type errors and
// upstream failures detected inside a handler) keep that code.
func NewOperationError(operation string, err error) *apperrors.Error {
	if coded, ok := apperrors.As(err); ok {
		switch coded.Code {
		case apperrors.CodePathEscape, apperrors.CodeArgumentType, apperrors.CodeUpstream:
			if coded.Operation == "" {
				coded.Operation = operation
			}
			return coded.WithStage(apperrors.StageExecute)
		}
	}
	return apperrors.Wrap(apperrors.CodeOperationFailed, fmt.Sprintf("operation %s failed", operation), err).
		WithStage(apperrors.StageExecute).
		WithOperation(operation)
}
