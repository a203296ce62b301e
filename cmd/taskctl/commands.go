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
	"strings"
	"text/tabwriter"

	"github.com/chzyer/readline"
)

// Command represents a slash command
type Command struct {
	Name        string
	Usage       string
	Description string
}

func getAvailableCommands() []Command {
	return []Command{
		{Name: "help", Description: "Show available commands"},
		{Name: "operations", Description: "List the operations the model can choose"},
		{Name: "read", Usage: "<path>", Description: "Print a file from the data root"},
		{Name: "debug", Description: "Toggle display of model decisions"},
		{Name: "quit", Description: "Exit the console"},
		{Name: "exit", Description: "Exit the console"},
	}
}

// getCommandCompleter builds a readline completer from available commands
func getCommandCompleter() *readline.PrefixCompleter {
	commands := getAvailableCommands()
	items := make([]readline.PrefixCompleterInterface, len(commands))
	for i, cmd := range commands {
		items[i] = readline.PcItem("/" + cmd.Name)
	}
	return readline.NewPrefixCompleter(items...)
}

// handleCommand processes slash commands, returns true if the console should quit
func (c *console) handleCommand(input string) bool {
	fields := strings.Fields(strings.TrimPrefix(input, "/"))
	if len(fields) == 0 {
		c.showHelp()
		return false
	}
	name := strings.ToLower(fields[0])
	args := fields[1:]

	c.logger.Debug().Str("command", name).Msg("Executing command")

	switch name {
	case "help":
		c.showHelp()
	case "operations", "ops":
		c.showOperations()
	case "read":
		if len(args) != 1 {
			fmt.Fprintln(c.out, "✗ Usage: /read <path>")
			return false
		}
		c.readFile(args[0])
	case "debug":
		c.verbose = !c.verbose
		if c.verbose {
			fmt.Fprintln(c.out, "✓ Debug mode enabled")
		} else {
			fmt.Fprintln(c.out, "✓ Debug mode disabled")
		}
	case "quit", "exit":
		return true
	default:
		fmt.Fprintf(c.out, "✗ Unknown command: /%s (type /help for available commands)\n", name)
	}
	return false
}

func (c *console) showHelp() {
	fmt.Fprintln(c.out, "\nAvailable Commands:")
	for _, cmd := range getAvailableCommands() {
		name := cmd.Name
		if cmd.Usage != "" {
			name += " " + cmd.Usage
		}
		fmt.Fprintf(c.out, "  /%-16s - %s\n", name, cmd.Description)
	}
	fmt.Fprintln(c.out, "\nAnything else is sent to the model as a task.")
	fmt.Fprintln(c.out)
}

func (c *console) showOperations() {
	ops := c.app.Registry.All()
	if len(ops) == 0 {
		fmt.Fprintln(c.out, "No operations registered")
		return
	}

	fmt.Fprintln(c.out, "\nOperations:")
	w := tabwriter.NewWriter(c.out, 0, 8, 2, ' ', 0)
	fmt.Fprintln(w, "Name\tParameters")
	fmt.Fprintln(w, "────\t──────────")
	for _, op := range ops {
		names := make([]string, len(op.Params))
		for i, p := range op.Params {
			names[i] = p.Name
		}
		fmt.Fprintf(w, "%s\t%s\n", op.Name, strings.Join(names, ", "))
	}
	w.Flush()
	fmt.Fprintln(c.out)
}

func (c *console) readFile(raw string) {
	p, err := c.app.Guard.Resolve(raw)
	if err != nil {
		fmt.Fprintf(c.out, "✗ %v\n", err)
		return
	}
	data, err := c.app.Guard.ReadFile(p, c.app.Config.LimitsConfig().MaxFileSizeBytes)
	if err != nil {
		fmt.Fprintf(c.out, "✗ %v\n", err)
		return
	}
	c.out.Write(data)
	if len(data) > 0 && data[len(data)-1] != '\n' {
		fmt.Fprintln(c.out)
	}
}
