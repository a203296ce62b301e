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
	"regexp"
	"strings"

	apperrors "taskagent/internal/errors"
)

var identifierPattern = regexp.MustCompile(`^[a-z][a-z0-9_]*$`)

// Registry holds the closed set of operations. It is populated once by
// NewRegistry and never mutated afterwards, so it is safe for concurrent use
// without locking.
type Registry struct {
	ops   []*Operation
	index map[string]*Operation
}

// NewRegistry builds a registry from ops, preserving their order. It rejects
// duplicate names, malformed identifiers, duplicate parameters, missing
// handlers and inconsistent defaults.
func NewRegistry(ops ...Operation) (*Registry, error) {
	r := &Registry{
		ops:   make([]*Operation, 0, len(ops)),
		index: make(map[string]*Operation, len(ops)),
	}
	for i := range ops {
		op := ops[i]
		if err := checkOperation(&op); err != nil {
			return nil, err
		}
		if _, exists := r.index[op.Name]; exists {
			return nil, fmt.Errorf("operation %q registered twice", op.Name)
		}
		op.Params = append([]Param(nil), op.Params...)
		r.ops = append(r.ops, &op)
		r.index[op.Name] = &op
	}
	return r, nil
}

// MustNewRegistry is NewRegistry that panics on error.
func MustNewRegistry(ops ...Operation) *Registry {
	r, err := NewRegistry(ops...)
	if err != nil {
		panic(err)
	}
	return r
}

// NewDefaultRegistry returns the registry of built-in operations.
func NewDefaultRegistry() *Registry {
	return MustNewRegistry(BuiltinOperations()...)
}

func checkOperation(op *Operation) error {
	if !identifierPattern.MatchString(op.Name) {
		return fmt.Errorf("invalid operation name %q", op.Name)
	}
	if strings.TrimSpace(op.Description) == "" {
		return fmt.Errorf("operation %q has no description", op.Name)
	}
	if op.Handler == nil {
		return fmt.Errorf("operation %q has no handler", op.Name)
	}
	seen := make(map[string]bool, len(op.Params))
	for _, p := range op.Params {
		if !identifierPattern.MatchString(p.Name) {
			return fmt.Errorf("operation %q: invalid parameter name %q", op.Name, p.Name)
		}
		if seen[p.Name] {
			return fmt.Errorf("operation %q: parameter %q declared twice", op.Name, p.Name)
		}
		seen[p.Name] = true
		if strings.TrimSpace(p.Description) == "" {
			return fmt.Errorf("operation %q: parameter %q has no description", op.Name, p.Name)
		}
		if p.Required && p.Default != "" {
			return fmt.Errorf("operation %q: required parameter %q cannot have a default", op.Name, p.Name)
		}
		if p.Default != "" && len(p.Enum) > 0 && !containsFold(p.Enum, p.Default) {
			return fmt.Errorf("operation %q: default %q of %q is not an allowed value", op.Name, p.Default, p.Name)
		}
	}
	return nil
}

// Lookup resolves name by exact match. Unknown names fail with an
// unknown_operation error.
func (r *Registry) Lookup(name string) (*Operation, error) {
	op, ok := r.index[name]
	if !ok {
		return nil, apperrors.Newf(apperrors.CodeUnknownOperation, "operation %q is not registered", name).
			WithStage(apperrors.StageValidate).
			WithOperation(name)
	}
	return op, nil
}

// All returns the operations in registration order.
func (r *Registry) All() []*Operation {
	return append([]*Operation(nil), r.ops...)
}

// Names returns the operation names in registration order.
func (r *Registry) Names() []string {
	names := make([]string, 0, len(r.ops))
	for _, op := range r.ops {
		names = append(names, op.Name)
	}
	return names
}

// Len returns the number of registered operations.
func (r *Registry) Len() int {
	return len(r.ops)
}

func containsFold(values []string, v string) bool {
	for _, candidate := range values {
		if strings.EqualFold(candidate, v) {
			return true
		}
	}
	return false
}
