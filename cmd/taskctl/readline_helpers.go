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
	"errors"
	"io"
	"strings"

	"github.com/chzyer/readline"
)

type readlineAction int

const (
	// readlineProcess means the line should be handled.
	readlineProcess readlineAction = iota
	readlineSkip
	readlineExit
	readlineFail
)

// classifyReadline maps a Readline result to what the console does next.
// Ctrl+C at the prompt discards the line; Ctrl+D on an empty line exits.
func classifyReadline(line string, err error) readlineAction {
	switch {
	case err == nil:
		if strings.TrimSpace(line) == "" {
			return readlineSkip
		}
		return readlineProcess
	case errors.Is(err, readline.ErrInterrupt):
		return readlineSkip
	case errors.Is(err, io.EOF):
		if strings.TrimSpace(line) == "" {
			return readlineExit
		}
		return readlineSkip
	default:
		return readlineFail
	}
}

// sanitizeInputLine drops control characters a terminal can leave in a
// pasted line. Tabs survive as spaces.
func sanitizeInputLine(line string) string {
	return strings.Map(func(r rune) rune {
		switch {
		case r == '\t':
			return ' '
		case r < 0x20 || r == 0x7f:
			return -1
		default:
			return r
		}
	}, line)
}
