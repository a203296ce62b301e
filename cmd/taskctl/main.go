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
	"flag"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/rs/zerolog"
	"golang.org/x/term"
	"taskagent/internal/app"
	"taskagent/internal/config"
)

var (
	configPath  = flag.String("config", "config.json", "Configuration file path")
	debugMode   = flag.Bool("d", false, "Enable debug mode")
	logFile     = flag.String("log-file", "", "Log file path (logs disabled by default)")
	historyFile = flag.String("history", ".taskctl_history", "Readline history file")
)

func main() {
	flag.Parse()

	logger, closer, err := initLogger(*debugMode, *logFile)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
	if closer != nil {
		defer closer.Close()
	}
	logger.Info().Msg("Taskctl starting")

	if err := run(logger, flag.Args()); err != nil {
		logger.Error().Err(err).Msg("Taskctl failed")
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		if closer != nil {
			closer.Close()
		}
		os.Exit(1)
	}
}

func run(logger zerolog.Logger, args []string) error {
	if err := config.LoadDotEnv(); err != nil {
		return fmt.Errorf("failed to load .env: %w", err)
	}
	cfg, err := config.LoadConfig(*configPath)
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}
	a, err := app.New(cfg, logger)
	if err != nil {
		return err
	}

	ctx := context.Background()
	switch {
	case len(args) > 0 && args[0] == "-":
		return runBatch(ctx, a, os.Stdin, os.Stdout)
	case len(args) > 0:
		return runBatch(ctx, a, strings.NewReader(strings.Join(args, " ")), os.Stdout)
	case !term.IsTerminal(int(os.Stdin.Fd())):
		return runBatch(ctx, a, os.Stdin, os.Stdout)
	}
	return runConsole(a, logger)
}

func initLogger(debug bool, logFilePath string) (zerolog.Logger, io.Closer, error) {
	zerolog.SetGlobalLevel(zerolog.InfoLevel)
	if debug {
		zerolog.SetGlobalLevel(zerolog.DebugLevel)
	}

	// The console owns stdout and stderr, so logs only go to a file.
	if logFilePath == "" {
		return zerolog.New(io.Discard), nil, nil
	}
	file, err := os.OpenFile(logFilePath, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return zerolog.Nop(), nil, fmt.Errorf("failed to open log file: %w", err)
	}
	return zerolog.New(file).With().Timestamp().Logger(), file, nil
}
