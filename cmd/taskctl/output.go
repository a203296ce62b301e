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
	"fmt"
	"io"
	"sort"
	"strings"

	"taskagent/internal/chat"
	apperrors "taskagent/internal/errors"
)

// printOutcome renders a task result or failure. When verbose is set the
// model's decision is shown first.
func printOutcome(w io.Writer, outcome *chat.Outcome, err error, verbose bool) {
	if verbose && outcome != nil {
		fmt.Fprintf(w, "🔧 [%s] %s\n", outcome.Decision.Operation, formatArguments(outcome.Decision.Arguments))
	}

	if err != nil {
		coded, ok := apperrors.As(err)
		if !ok {
			fmt.Fprintf(w, "✗ Error: %v\n", err)
			return
		}
		label := string(coded.Code)
		if coded.Stage != "" {
			label = string(coded.Stage) + "/" + label
		}
		fmt.Fprintf(w, "✗ [%s] %v\n", label, err)
		return
	}

	fmt.Fprintf(w, "⟫ [%s] %s\n", outcome.Result.Operation, outcome.Result.Message)
	if outcome.Result.Truncated {
		fmt.Fprintln(w, "  (output truncated)")
	}
}

func formatArguments(args map[string]string) string {
	keys := make([]string, 0, len(args))
	for k := range args {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	parts := make([]string, len(keys))
	for i, k := range keys {
		parts[i] = fmt.Sprintf("%s=%q", k, args[k])
	}
	return strings.Join(parts, " ")
}
