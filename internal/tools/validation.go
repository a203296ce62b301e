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
	"sort"
	"strconv"
	"strings"

	apperrors "taskagent/internal/errors"
	"taskagent/internal/sandbox"
)

// Args holds the validated arguments of one invocation. Path parameters are
// only available as sandbox.Path values and integer parameters only as ints.
type Args struct {
	values map[string]string
	paths  map[string]sandbox.Path
	ints   map[string]int
}

// String returns a text parameter, or the raw string of any other parameter.
func (a Args) String(name string) string {
	return a.values[name]
}

// Path returns a resolved path parameter. Unset optional paths return the
// zero Path.
func (a Args) Path(name string) sandbox.Path {
	return a.paths[name]
}

// Int returns a parsed integer parameter.
func (a Args) Int(name string) int {
	return a.ints[name]
}

// Has reports whether a value (given or defaulted) is present for name.
func (a Args) Has(name string) bool {
	v, ok := a.values[name]
	return ok && v != ""
}

// Bind turns an untrusted decision into an operation and its validated
// arguments. Checks run in a fixed order: the operation must be registered,
// every required parameter must be present, no undeclared argument may be
// sent, and finally path and integer parameters are converted. Nothing is
// executed here.
func (r *Registry) Bind(guard *sandbox.Guard, d Decision) (*Operation, Args, error) {
	op, err := r.Lookup(d.Operation)
	if err != nil {
		return nil, Args{}, err
	}

	for _, p := range op.Params {
		if !p.Required {
			continue
		}
		if v, ok := d.Arguments[p.Name]; !ok || strings.TrimSpace(v) == "" {
			return nil, Args{}, apperrors.Newf(apperrors.CodeMissingArgument, "missing required argument %q", p.Name).
				WithStage(apperrors.StageValidate).
				WithOperation(op.Name).
				WithField(p.Name)
		}
	}

	var unexpected []string
	for key := range d.Arguments {
		if _, ok := op.Param(key); !ok {
			unexpected = append(unexpected, key)
		}
	}
	if len(unexpected) > 0 {
		sort.Strings(unexpected)
		return nil, Args{}, apperrors.Newf(apperrors.CodeUnexpectedArgument, "unexpected argument %q", unexpected[0]).
			WithStage(apperrors.StageValidate).
			WithOperation(op.Name).
			WithField(unexpected[0])
	}

	args := Args{
		values: make(map[string]string, len(op.Params)),
		paths:  make(map[string]sandbox.Path),
		ints:   make(map[string]int),
	}
	for _, p := range op.Params {
		value := strings.TrimSpace(d.Arguments[p.Name])
		if value == "" {
			value = p.Default
		}
		if value == "" {
			continue
		}

		if len(p.Enum) > 0 {
			canonical, ok := matchEnum(p.Enum, value)
			if !ok {
				return nil, Args{}, ArgumentTypeError(op.Name, p.Name, "must be one of %s, got %q", strings.Join(p.Enum, ", "), value)
			}
			value = canonical
		}

		switch p.Role {
		case RolePath:
			resolved, err := guard.Resolve(value)
			if err != nil {
				coded, _ := apperrors.As(err)
				if coded == nil {
					coded = apperrors.Wrap(apperrors.CodePathEscape, "path rejected", err)
				}
				return nil, Args{}, coded.WithStage(apperrors.StageSandbox).WithOperation(op.Name).WithField(p.Name)
			}
			args.paths[p.Name] = resolved
		case RoleInteger:
			n, err := strconv.Atoi(value)
			if err != nil {
				return nil, Args{}, ArgumentTypeError(op.Name, p.Name, "expected an integer, got %q", value)
			}
			args.ints[p.Name] = n
		}
		args.values[p.Name] = value
	}

	return op, args, nil
}

func matchEnum(values []string, v string) (string, bool) {
	for _, candidate := range values {
		if strings.EqualFold(candidate, v) {
			return candidate, true
		}
	}
	return "", false
}
