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

// Package app assembles the dispatch pipeline shared by the daemon and the
// operator console.
package app

import (
	"fmt"
	"net/http"
	"os"

	"github.com/rs/zerolog"
	"taskagent/internal/chat"
	"taskagent/internal/config"
	"taskagent/internal/sandbox"
	"taskagent/internal/server"
	"taskagent/internal/tools"
)

// App holds the wired components for one data root.
type App struct {
	Config   *config.Config
	Guard    *sandbox.Guard
	Registry *tools.Registry
	Executor *tools.Executor
	Client   *chat.Client
	Agent    *chat.Agent
	Logger   zerolog.Logger
}

// New builds the pipeline against the configured model service.
func New(cfg *config.Config, logger zerolog.Logger) (*App, error) {
	client, err := chat.NewClient(cfg, logger)
	if err != nil {
		return nil, fmt.Errorf("failed to create model client: %w", err)
	}
	return build(cfg, client, logger)
}

// NewWithAPI builds the pipeline with a provided model API (for testing).
func NewWithAPI(cfg *config.Config, api chat.ChatClient, logger zerolog.Logger) (*App, error) {
	client, err := chat.NewClientWithAPI(cfg, api, logger)
	if err != nil {
		return nil, fmt.Errorf("failed to create model client: %w", err)
	}
	return build(cfg, client, logger)
}

func build(cfg *config.Config, client *chat.Client, logger zerolog.Logger) (*App, error) {
	guard, err := prepareDataRoot(cfg, logger)
	if err != nil {
		return nil, err
	}

	registry := tools.NewDefaultRegistry()
	for _, w := range cfg.Validate(registry) {
		logger.Warn().Str("field", w.Field).Msg(w.Message)
	}

	env := &tools.Env{
		Guard:         guard,
		Model:         client,
		HTTP:          &http.Client{Timeout: cfg.HTTPTimeout()},
		Runner:        tools.ExecRunner{},
		Limits:        cfg.LimitsConfig(),
		Timeouts:      cfg.TimeoutsConfig(),
		OutputFilters: cfg.OutputFiltersConfig(),
		Logger:        logger,
	}
	executor := tools.NewExecutor(registry, env)

	return &App{
		Config:   cfg,
		Guard:    guard,
		Registry: registry,
		Executor: executor,
		Client:   client,
		Agent:    chat.NewAgent(client, executor, logger),
		Logger:   logger,
	}, nil
}

func prepareDataRoot(cfg *config.Config, logger zerolog.Logger) (*sandbox.Guard, error) {
	if cfg.CreateDataRoot {
		if err := os.MkdirAll(cfg.DataRoot, 0o755); err != nil {
			return nil, fmt.Errorf("failed to create data root %s: %w", cfg.DataRoot, err)
		}
	}
	guard, err := sandbox.New(cfg.DataRoot)
	if err != nil {
		return nil, fmt.Errorf("failed to open data root %s: %w", cfg.DataRoot, err)
	}
	logger.Info().Str("data_root", guard.Root()).Msg("Sandbox initialized")
	return guard, nil
}

// Server returns the HTTP surface over this pipeline.
func (a *App) Server() *server.Server {
	return server.New(server.Options{
		Runner:         a.Agent,
		Guard:          a.Guard,
		Registry:       a.Registry,
		Limits:         a.Config.LimitsConfig(),
		AllowedOrigins: a.Config.CORSAllowedOrigins,
		Logger:         a.Logger,
	})
}
