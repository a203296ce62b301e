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
	"fmt"
	"runtime/debug"
	"sort"
	"time"

	"github.com/rs/zerolog"
)

// Result describes a completed invocation.
type Result struct {
	Operation string
	Message   string
	Truncated bool
	Duration  time.Duration
}

// Executor validates decisions against a registry and runs the matching
// handler exactly once.
type Executor struct {
	registry *Registry
	env      *Env
	logger   zerolog.Logger
}

// NewExecutor creates an executor for registry using env.
func NewExecutor(registry *Registry, env *Env) *Executor {
	return &Executor{
		registry: registry,
		env:      env,
		logger:   env.Logger,
	}
}

// Registry returns the registry the executor validates against.
func (e *Executor) Registry() *Registry {
	return e.registry
}

// Execute validates d and, when it passes, invokes the handler. Validation
// failures return before any side effect. The handler runs detached from
// ctx cancellation and bounded by the operation's own timeout; a panic or
// error is reported as operation_failed.
func (e *Executor) Execute(ctx context.Context, d Decision) (*Result, error) {
	op, args, err := e.registry.Bind(e.env.Guard, d)
	if err != nil {
		e.logger.Warn().
			Err(err).
			Str("operation", d.Operation).
			Strs("argument_keys", argumentKeys(d.Arguments)).
			Msg("Decision rejected")
		return nil, err
	}

	timeout := e.env.Timeouts.TimeoutForOperation(op.Name)
	runCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), timeout)
	defer cancel()

	e.logger.Info().
		Str("operation", op.Name).
		Strs("argument_keys", argumentKeys(d.Arguments)).
		Dur("timeout", timeout).
		Msg("Executing operation")

	start := time.Now()
	message, err := e.invoke(runCtx, op, args)
	duration := time.Since(start)
	if err != nil {
		opErr := NewOperationError(op.Name, err)
		e.logger.Error().
			Err(err).
			Str("operation", op.Name).
			Dur("duration_ms", duration).
			Msg("Operation failed")
		return nil, opErr
	}

	sanitized, truncated := e.env.OutputFilters.Sanitize(message)
	e.logger.Debug().
		Str("operation", op.Name).
		Int("result_length", len(message)).
		Dur("duration_ms", duration).
		Msg("Operation completed")

	return &Result{
		Operation: op.Name,
		Message:   sanitized,
		Truncated: truncated,
		Duration:  duration,
	}, nil
}

func (e *Executor) invoke(ctx context.Context, op *Operation, args Args) (message string, err error) {
	defer func() {
		if rec := recover(); rec != nil {
			e.logger.Error().
				Str("operation", op.Name).
				Str("stack", string(debug.Stack())).
				Msg("Operation panicked")
			err = fmt.Errorf("panic: %v", rec)
		}
	}()
	return op.Handler(ctx, e.env, args)
}

func argumentKeys(args map[string]string) []string {
	keys := make([]string, 0, len(args))
	for key := range args {
		keys = append(keys, key)
	}
	sort.Strings(keys)
	return keys
}
