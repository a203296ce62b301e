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
	"context"
	"io"
	"net/http"

	"github.com/rs/zerolog"
	"taskagent/internal/sandbox"
)

// Role describes how a parameter's string value is interpreted once it has
// crossed the model boundary.
type Role int

const (
	// RoleText values are passed through unchanged.
	RoleText Role = iota
	// RolePath values are resolved through the sandbox guard.
	RolePath
	// RoleInteger values are parsed as base-10 integers.
	RoleInteger
)

func (r Role) String() string {
	switch r {
	case RolePath:
		return "path"
	case RoleInteger:
		return "integer"
	default:
		return "text"
	}
}

// Param declares one operation parameter. Every parameter is a string at the
// model boundary; Role and Enum drive the conversion done during validation.
type Param struct {
	Name        string
	Description string
	Role        Role
	Required    bool
	// Default is used when an optional parameter is absent or empty.
	Default string
	// Enum restricts the accepted values (compared case-insensitively).
	Enum []string
}

// HandlerFunc runs an operation with fully validated arguments and returns a
// one-line result message.
type HandlerFunc func(ctx context.Context, env *Env, args Args) (string, error)

// Operation is one entry of the closed registry.
type Operation struct {
	Name        string
	Description string
	Params      []Param
	Handler     HandlerFunc
}

// Param returns the declared parameter with the given name.
func (o *Operation) Param(name string) (Param, bool) {
	for _, p := range o.Params {
		if p.Name == name {
			return p, true
		}
	}
	return Param{}, false
}

// Decision is the model's proposed action. It is never trusted: Bind checks
// it against the registry before anything runs.
type Decision struct {
	Operation string
	Arguments map[string]string
}

// ModelService is the subset of the language-model service that operation
// bodies call into.
type ModelService interface {
	Complete(ctx context.Context, prompt string) (string, error)
	Embed(ctx context.Context, inputs []string) ([][]float32, error)
	Transcribe(ctx context.Context, filename string, audio io.Reader) (string, error)
}

// CommandRunner spawns external processes. Run returns the process stdout.
type CommandRunner interface {
	Run(ctx context.Context, dir, name string, args ...string) ([]byte, error)
}

// HTTPDoer sends outbound HTTP requests on behalf of network operations.
type HTTPDoer interface {
	Do(req *http.Request) (*http.Response, error)
}

// Env carries the collaborators an operation may use. It is built once at
// startup and shared read-only by all invocations.
type Env struct {
	Guard         *sandbox.Guard
	Model         ModelService
	HTTP          HTTPDoer
	Runner        CommandRunner
	Limits        Limits
	Timeouts      TimeoutConfig
	OutputFilters OutputFilterConfig
	Logger        zerolog.Logger
}
