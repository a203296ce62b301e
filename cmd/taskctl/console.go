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
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"
	"time"

	"github.com/chzyer/readline"
	"github.com/rs/zerolog"
	"taskagent/internal/app"
)

// console holds the interactive session state.
type console struct {
	app      *app.App
	out      io.Writer
	logger   zerolog.Logger
	verbose  bool
	canceler *taskCanceler
}

func newConsole(a *app.App, out io.Writer, logger zerolog.Logger) *console {
	return &console{
		app:      a,
		out:      out,
		logger:   logger,
		verbose:  *debugMode,
		canceler: &taskCanceler{},
	}
}

func runConsole(a *app.App, logger zerolog.Logger) error {
	logger.Debug().Msg("Running in console mode")

	rl, err := readline.NewEx(&readline.Config{
		Prompt:              "❯ ",
		HistoryFile:         *historyFile,
		AutoComplete:        getCommandCompleter(),
		InterruptPrompt:     "^C",
		EOFPrompt:           "exit",
		FuncFilterInputRune: filterInputRune,
	})
	if err != nil {
		return fmt.Errorf("failed to initialize readline: %w", err)
	}
	defer rl.Close()

	c := newConsole(a, rl.Stdout(), logger)

	// At the prompt readline reports Ctrl+C as ErrInterrupt; while a task
	// runs the terminal is cooked and it arrives as SIGINT.
	signals := make(chan os.Signal, 1)
	signal.Notify(signals, os.Interrupt)
	defer signal.Stop(signals)
	stop := make(chan struct{})
	defer close(stop)
	go c.canceler.watch(signals, stop, logger)

	fmt.Fprintln(c.out, "Taskctl by Dyne.org")
	fmt.Fprintf(c.out, "Data root:    %s\n", a.Guard.Root())
	fmt.Fprintf(c.out, "Model in use: %s\n", a.Config.Model)
	fmt.Fprintln(c.out, "Type /help for commands, Ctrl+D or /quit to exit")
	fmt.Fprintln(c.out)

	for {
		line, err := rl.Readline()
		switch classifyReadline(line, err) {
		case readlineExit:
			logger.Info().Msg("Session ended")
			return nil
		case readlineSkip:
			continue
		case readlineFail:
			return fmt.Errorf("readline failed: %w", err)
		}

		line = strings.TrimSpace(sanitizeInputLine(line))
		if line == "" {
			continue
		}
		if strings.HasPrefix(line, "/") {
			if c.handleCommand(line) {
				logger.Info().Msg("Session ended")
				return nil
			}
			continue
		}
		c.runTask(line)
	}
}

func (c *console) runTask(task string) {
	c.logger.Info().Str("task", task).Msg("Task received")

	ctx, done := c.canceler.begin(context.Background())
	defer done()

	start := time.Now()
	outcome, err := c.app.Agent.Run(ctx, task)
	event := c.logger.Info()
	if err != nil {
		event = c.logger.Error().Err(err)
	}
	event.Dur("duration_ms", time.Since(start)).Msg("Task finished")

	printOutcome(c.out, outcome, err, c.verbose)
	fmt.Fprintln(c.out)
}
