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

package main

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	"taskagent/internal/app"
)

var errNoTask = errors.New("no task on input")

// runBatch runs the first non-empty input line as a task and prints the
// result message.
func runBatch(ctx context.Context, a *app.App, in io.Reader, out io.Writer) error {
	a.Logger.Debug().Msg("Running in batch mode")

	scanner := bufio.NewScanner(in)
	for scanner.Scan() {
		task := strings.TrimSpace(scanner.Text())
		if task == "" {
			continue
		}
		a.Logger.Info().Str("task", task).Msg("Task received")

		start := time.Now()
		outcome, err := a.Agent.Run(ctx, task)
		if err != nil {
			return err
		}
		a.Logger.Info().
			Str("operation", outcome.Result.Operation).
			Dur("duration_ms", time.Since(start)).
			Msg("Task completed")

		fmt.Fprintln(out, outcome.Result.Message)
		return nil
	}
	if err := scanner.Err(); err != nil {
		return fmt.Errorf("error reading input: %w", err)
	}
	return errNoTask
}
