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
	"os"
	"sync"

	"github.com/chzyer/readline"
	"github.com/rs/zerolog"
)

// taskCanceler aborts the task in flight when the operator presses Ctrl+C.
// Only the model decision honours cancellation; an operation that already
// started runs until its own timeout.
type taskCanceler struct {
	mu     sync.Mutex
	cancel context.CancelFunc
}

// begin derives the context for one task. The returned func ends the task.
func (c *taskCanceler) begin(parent context.Context) (context.Context, func()) {
	ctx, cancel := context.WithCancel(parent)
	c.mu.Lock()
	c.cancel = cancel
	c.mu.Unlock()
	return ctx, func() {
		c.mu.Lock()
		c.cancel = nil
		c.mu.Unlock()
		cancel()
	}
}

// interrupt cancels the running task and reports whether there was one.
func (c *taskCanceler) interrupt() bool {
	c.mu.Lock()
	cancel := c.cancel
	c.mu.Unlock()
	if cancel == nil {
		return false
	}
	cancel()
	return true
}

// watch forwards signals to interrupt until stop is closed.
func (c *taskCanceler) watch(signals <-chan os.Signal, stop <-chan struct{}, logger zerolog.Logger) {
	for {
		select {
		case <-signals:
			if c.interrupt() {
				logger.Debug().Msg("Task cancelled")
			}
		case <-stop:
			return
		}
	}
}

// filterInputRune drops Ctrl+G, which readline would otherwise echo as a
// bell inside the prompt.
func filterInputRune(r rune) (rune, bool) {
	if r == readline.CharBell {
		return 0, false
	}
	return r, true
}
