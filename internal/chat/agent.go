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
	"context"
	"sort"
	"strings"

	"github.com/rs/zerolog"
	"github.com/sashabaranov/go-openai"
	apperrors "taskagent/internal/errors"
	"taskagent/internal/tools"
)

// Decider picks an operation for a task.
type Decider interface {
	Decide(ctx context.Context, task string, defs []openai.Tool) (tools.Decision, error)
}

// Outcome is the result of running one task.
type Outcome struct {
	Decision tools.Decision
	Result   *tools.Result
}

// Agent runs the full pipeline for a task: one model decision, validation,
// then a single handler invocation.
type Agent struct {
	decider  Decider
	executor *tools.Executor
	defs     []openai.Tool
	logger   zerolog.Logger
}

// NewAgent creates an agent. The schema list is generated once from the
// executor's registry and reused for every task.
func NewAgent(decider Decider, executor *tools.Executor, logger zerolog.Logger) *Agent {
	return &Agent{
		decider:  decider,
		executor: executor,
		defs:     executor.Registry().OpenAITools(),
		logger:   logger,
	}
}

// Run executes task. A failure at any stage is returned as a coded error;
// the decision is returned alongside when one was made.
func (a *Agent) Run(ctx context.Context, task string) (*Outcome, error) {
	logger := zerolog.Ctx(ctx)
	if logger.GetLevel() == zerolog.Disabled {
		logger = &a.logger
	}

	task = strings.TrimSpace(task)
	if task == "" {
		return nil, apperrors.New(apperrors.CodeInvalidRequest, "task description is required").
			WithStage(apperrors.StageDispatch)
	}

	decision, err := a.decider.Decide(ctx, task, a.defs)
	if err != nil {
		logger.Warn().Err(err).Str("task", task).Msg("No usable decision")
		return nil, err
	}

	keys := make([]string, 0, len(decision.Arguments))
	for key := range decision.Arguments {
		keys = append(keys, key)
	}
	sort.Strings(keys)
	logger.Info().
		Str("task", task).
		Str("operation", decision.Operation).
		Strs("argument_keys", keys).
		Msg("Model selected operation")

	result, err := a.executor.Execute(ctx, decision)
	return &Outcome{Decision: decision, Result: result}, err
}
