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

// Package server exposes the task pipeline over HTTP.
package server

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"os"
	"runtime/debug"
	"time"

	"github.com/google/uuid"
	"github.com/rs/cors"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/hlog"
	"taskagent/internal/chat"
	apperrors "taskagent/internal/errors"
	"taskagent/internal/sandbox"
	"taskagent/internal/tools"
)

// Runner runs one task end to end.
type Runner interface {
	Run(ctx context.Context, task string) (*chat.Outcome, error)
}

// Options configures a Server.
type Options struct {
	Runner         Runner
	Guard          *sandbox.Guard
	Registry       *tools.Registry
	Limits         tools.Limits
	AllowedOrigins []string
	Logger         zerolog.Logger
}

// Server serves /run, /read, /healthz and /operations. It keeps no state
// between requests.
type Server struct {
	runner   Runner
	guard    *sandbox.Guard
	registry *tools.Registry
	limits   tools.Limits
	origins  []string
	logger   zerolog.Logger
}

const requestIDHeader = "X-Request-Id"

type requestIDKey struct{}

// New creates a server from opts.
func New(opts Options) *Server {
	origins := opts.AllowedOrigins
	if len(origins) == 0 {
		origins = []string{"*"}
	}
	return &Server{
		runner:   opts.Runner,
		guard:    opts.Guard,
		registry: opts.Registry,
		limits:   opts.Limits.Normalize(),
		origins:  origins,
		logger:   opts.Logger,
	}
}

// Handler returns the HTTP handler with logging, request ids, panic
// recovery and CORS applied.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("POST /run", s.handleRun)
	mux.HandleFunc("GET /read", s.handleRead)
	mux.HandleFunc("GET /healthz", s.handleHealth)
	mux.HandleFunc("GET /operations", s.handleOperations)

	var h http.Handler = mux
	h = s.recoverer(h)
	h = cors.New(cors.Options{
		AllowedOrigins: s.origins,
		AllowedMethods: []string{http.MethodGet, http.MethodPost},
		AllowedHeaders: []string{"*"},
		ExposedHeaders: []string{requestIDHeader},
	}).Handler(h)
	h = hlog.AccessHandler(func(r *http.Request, status, size int, duration time.Duration) {
		hlog.FromRequest(r).Info().
			Str("method", r.Method).
			Str("path", r.URL.Path).
			Int("status", status).
			Int("size", size).
			Dur("duration", duration).
			Msg("Request handled")
	})(h)
	h = requestID(h)
	h = hlog.NewHandler(s.logger)(h)
	return h
}

// requestID assigns every request an id, taken from X-Request-Id when the
// caller sent a valid UUID, and adds it to the request logger.
func requestID(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id := r.Header.Get(requestIDHeader)
		if _, err := uuid.Parse(id); err != nil {
			id = uuid.NewString()
		}
		w.Header().Set(requestIDHeader, id)

		logger := hlog.FromRequest(r)
		logger.UpdateContext(func(c zerolog.Context) zerolog.Context {
			return c.Str("request_id", id)
		})
		ctx := context.WithValue(r.Context(), requestIDKey{}, id)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

func requestIDFrom(ctx context.Context) string {
	id, _ := ctx.Value(requestIDKey{}).(string)
	return id
}

func (s *Server) recoverer(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		defer func() {
			if rec := recover(); rec != nil {
				if rec == http.ErrAbortHandler {
					panic(rec)
				}
				hlog.FromRequest(r).Error().
					Interface("panic", rec).
					Str("stack", string(debug.Stack())).
					Msg("Handler panicked")
				writeError(w, r, apperrors.New(apperrors.CodeOperationFailed, "internal error"))
			}
		}()
		next.ServeHTTP(w, r)
	})
}

type runResponse struct {
	Status    string `json:"status"`
	Message   string `json:"message"`
	Operation string `json:"operation"`
	Truncated bool   `json:"truncated,omitempty"`
	RequestID string `json:"request_id,omitempty"`
}

type errorResponse struct {
	Status    string `json:"status"`
	Stage     string `json:"stage,omitempty"`
	Code      string `json:"code"`
	Operation string `json:"operation,omitempty"`
	Field     string `json:"field,omitempty"`
	Message   string `json:"message"`
	RequestID string `json:"request_id,omitempty"`
}

func (s *Server) handleRun(w http.ResponseWriter, r *http.Request) {
	task := r.URL.Query().Get("task")
	if task == "" {
		writeError(w, r, apperrors.New(apperrors.CodeInvalidRequest, "query parameter task is required").
			WithStage(apperrors.StageDispatch))
		return
	}

	outcome, err := s.runner.Run(r.Context(), task)
	logger := hlog.FromRequest(r)
	if err != nil {
		event := logger.Warn().Err(err).Str("code", string(apperrors.CodeOf(err)))
		if outcome != nil {
			event = event.Str("operation", outcome.Decision.Operation)
		}
		event.Msg("Task failed")
		writeError(w, r, err)
		return
	}

	logger.Info().
		Str("operation", outcome.Result.Operation).
		Dur("duration_ms", outcome.Result.Duration).
		Msg("Task succeeded")
	writeJSON(w, http.StatusOK, runResponse{
		Status:    "success",
		Message:   outcome.Result.Message,
		Operation: outcome.Result.Operation,
		Truncated: outcome.Result.Truncated,
		RequestID: requestIDFrom(r.Context()),
	})
}

func (s *Server) handleRead(w http.ResponseWriter, r *http.Request) {
	raw := r.URL.Query().Get("path")
	if raw == "" {
		writeError(w, r, apperrors.New(apperrors.CodeInvalidRequest, "query parameter path is required").
			WithStage(apperrors.StageRead))
		return
	}

	p, err := s.guard.Resolve(raw)
	if err != nil {
		coded, ok := apperrors.As(err)
		if !ok {
			coded = apperrors.Wrap(apperrors.CodePathEscape, "path rejected", err)
		}
		writeError(w, r, coded.WithStage(apperrors.StageRead).WithField("path"))
		return
	}

	info, err := os.Stat(p.String())
	if err != nil || !info.Mode().IsRegular() {
		writeError(w, r, apperrors.New(apperrors.CodeNotFound, "file not found").
			WithStage(apperrors.StageRead).
			WithField("path"))
		return
	}

	data, err := s.guard.ReadFile(p, s.limits.MaxFileSizeBytes)
	if err != nil {
		switch {
		case errors.Is(err, sandbox.ErrFileTooLarge):
			err = apperrors.Wrap(apperrors.CodeInvalidRequest, "file exceeds the size limit", err)
		case errors.Is(err, os.ErrNotExist):
			err = apperrors.Wrap(apperrors.CodeNotFound, "file not found", err)
		}
		if coded, ok := apperrors.As(err); ok {
			err = coded.WithStage(apperrors.StageRead).WithField("path")
		}
		writeError(w, r, err)
		return
	}

	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	w.Write(data)
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.Write([]byte("ok\n"))
}

func (s *Server) handleOperations(w http.ResponseWriter, r *http.Request) {
	schema, err := s.registry.SchemaJSON()
	if err != nil {
		writeError(w, r, err)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	w.Write(schema)
}

func writeError(w http.ResponseWriter, r *http.Request, err error) {
	coded, ok := apperrors.As(err)
	if !ok {
		coded = apperrors.Wrap(apperrors.CodeOperationFailed, "internal error", err)
	}
	writeJSON(w, apperrors.HTTPStatus(coded.Code), errorResponse{
		Status:    "error",
		Stage:     string(coded.Stage),
		Code:      string(coded.Code),
		Operation: coded.Operation,
		Field:     coded.Field,
		Message:   err.Error(),
		RequestID: requestIDFrom(r.Context()),
	})
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	enc := json.NewEncoder(w)
	enc.SetEscapeHTML(false)
	enc.Encode(v)
}
