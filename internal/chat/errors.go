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

package chat

import (
	"fmt"

	apperrors "taskagent/internal/errors"
)

// APIError represents an error from the OpenAI API.
type APIError struct {
	Operation string
	Err       error
}

func (e *APIError) Error() string {
	return fmt.Sprintf("API error during %s: %v", e.Operation, e.Err)
}

func (e *APIError) Unwrap() error {
	return e.Err
}

// upstream reports a failed or timed-out model round trip.
func upstream(operation string, err error) *apperrors.Error {
	return apperrors.Wrap(apperrors.CodeUpstream, "language model unavailable", &APIError{Operation: operation, Err: err})
}

func noDecision(message string) *apperrors.Error {
	return apperrors.New(apperrors.CodeNoDecision, message).WithStage(apperrors.StageDispatch)
}

func malformed(operation, format string, args ...interface{}) *apperrors.Error {
	return apperrors.Newf(apperrors.CodeMalformedArguments, format, args...).
		WithStage(apperrors.StageDispatch).
		WithOperation(operation)
}
