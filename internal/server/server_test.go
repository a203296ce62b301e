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

package server

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"net/url"
	"os"
	"path/filepath"
	"sync"
	"testing"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/sashabaranov/go-openai"
	"taskagent/internal/chat"
	"taskagent/internal/config"
	"taskagent/internal/sandbox"
	"taskagent/internal/tools"
)

// fakeModel answers every completion with a fixed tool call, or blocks until
// the request context ends when block is set.
type fakeModel struct {
	mu        sync.Mutex
	operation string
	arguments string
	block     bool
	calls     int
}

func (m *fakeModel) CreateChatCompletion(ctx context.Context, req openai.ChatCompletionRequest) (openai.ChatCompletionResponse, error) {
	m.mu.Lock()
	m.calls++
	m.mu.Unlock()
	if m.block {
		<-ctx.Done()
		return openai.ChatCompletionResponse{}, ctx.Err()
	}
	return openai.ChatCompletionResponse{
		Choices: []openai.ChatCompletionChoice{{
			Message: openai.ChatCompletionMessage{
				ToolCalls: []openai.ToolCall{{
					Type:     openai.ToolTypeFunction,
					Function: openai.FunctionCall{Name: m.operation, Arguments: m.arguments},
				}},
			},
		}},
	}, nil
}

func (m *fakeModel) CreateEmbeddings(ctx context.Context, conv openai.EmbeddingRequestConverter) (openai.EmbeddingResponse, error) {
	return openai.EmbeddingResponse{}, nil
}

func (m *fakeModel) CreateTranscription(ctx context.Context, req openai.AudioRequest) (openai.AudioResponse, error) {
	return openai.AudioResponse{}, nil
}

type testServer struct {
	*httptest.Server
	root  string
	model *fakeModel
}

func newTestServer(t *testing.T, model *fakeModel) *testServer {
	t.Helper()
	guard, err := sandbox.New(t.TempDir())
	if err != nil {
		t.Fatalf("sandbox.New: %v", err)
	}

	cfg := config.DefaultConfig()
	cfg.APIKey = "test-key"
	cfg.DataRoot = guard.Root()
	cfg.ModelTimeoutSeconds = 1

	client, err := chat.NewClientWithAPI(cfg, model, zerolog.Nop())
	if err != nil {
		t.Fatalf("NewClientWithAPI: %v", err)
	}
	registry := tools.NewDefaultRegistry()
	env := &tools.Env{
		Guard:         guard,
		Model:         client,
		HTTP:          http.DefaultClient,
		Runner:        tools.ExecRunner{},
		Limits:        cfg.LimitsConfig(),
		Timeouts:      cfg.TimeoutsConfig(),
		OutputFilters: cfg.OutputFiltersConfig(),
		Logger:        zerolog.Nop(),
	}
	agent := chat.NewAgent(client, tools.NewExecutor(registry, env), zerolog.Nop())

	srv := New(Options{
		Runner:         agent,
		Guard:          guard,
		Registry:       registry,
		Limits:         cfg.LimitsConfig(),
		AllowedOrigins: cfg.CORSAllowedOrigins,
		Logger:         zerolog.Nop(),
	})
	ts := httptest.NewServer(srv.Handler())
	t.Cleanup(ts.Close)
	return &testServer{Server: ts, root: guard.Root(), model: model}
}

func (s *testServer) run(t *testing.T, task string) (*http.Response, map[string]interface{}) {
	t.Helper()
	resp, err := http.Post(s.URL+"/run?task="+url.QueryEscape(task), "text/plain", nil)
	if err != nil {
		t.Fatalf("POST /run: %v", err)
	}
	defer resp.Body.Close()
	var body map[string]interface{}
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		t.Fatalf("decode /run response: %v", err)
	}
	return resp, body
}

func (s *testServer) read(t *testing.T, path string) (int, string) {
	t.Helper()
	resp, err := http.Get(s.URL + "/read?path=" + url.QueryEscape(path))
	if err != nil {
		t.Fatalf("GET /read: %v", err)
	}
	defer resp.Body.Close()
	buf, err := io.ReadAll(resp.Body)
	if err != nil {
		t.Fatalf("read /read body: %v", err)
	}
	return resp.StatusCode, string(buf)
}

func argumentsJSON(t *testing.T, args map[string]string) string {
	t.Helper()
	data, err := json.Marshal(args)
	if err != nil {
		t.Fatal(err)
	}
	return string(data)
}

func TestRunCountsSundays(t *testing.T) {
	model := &fakeModel{operation: "count_specific_weekday"}
	ts := newTestServer(t, model)
	dates := "2024-03-10\n2024-03-11\n2024/03/12\nMarch 13, 2024\n2024-03-14\n2023/01/01\n2024-03-16\n"
	if err := os.WriteFile(filepath.Join(ts.root, "dates.txt"), []byte(dates), 0o644); err != nil {
		t.Fatal(err)
	}
	model.arguments = argumentsJSON(t, map[string]string{
		"input_file":  filepath.Join(ts.root, "dates.txt"),
		"output_file": filepath.Join(ts.root, "out.txt"),
		"weekday":     "6",
	})

	resp, body := ts.run(t, "count how many lines in dates.txt are Sundays, write to out.txt")
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected 200, got %d: %v", resp.StatusCode, body)
	}
	if body["status"] != "success" || body["operation"] != "count_specific_weekday" {
		t.Fatalf("unexpected body %v", body)
	}
	if _, err := uuid.Parse(resp.Header.Get("X-Request-Id")); err != nil {
		t.Fatalf("expected request id header, got %q", resp.Header.Get("X-Request-Id"))
	}
	if body["request_id"] != resp.Header.Get("X-Request-Id") {
		t.Fatalf("request id mismatch: %v vs %s", body["request_id"], resp.Header.Get("X-Request-Id"))
	}

	status, content := ts.read(t, filepath.Join(ts.root, "out.txt"))
	if status != http.StatusOK || content != "2" {
		t.Fatalf("unexpected /read result %d %q", status, content)
	}
}

func TestRunRejectsPathOutsideSandbox(t *testing.T) {
	model := &fakeModel{operation: "count_specific_weekday"}
	ts := newTestServer(t, model)
	model.arguments = argumentsJSON(t, map[string]string{
		"input_file":  filepath.Join(ts.root, "dates.txt"),
		"output_file": "/etc/out.txt",
		"weekday":     "6",
	})

	resp, body := ts.run(t, "count Sundays and write to /etc/out.txt")
	if resp.StatusCode != http.StatusForbidden {
		t.Fatalf("expected 403, got %d: %v", resp.StatusCode, body)
	}
	if body["status"] != "error" || body["code"] != "path_escape" || body["field"] != "output_file" {
		t.Fatalf("unexpected error body %v", body)
	}
	if _, err := os.Stat("/etc/out.txt"); err == nil {
		t.Fatal("file written outside the sandbox")
	}
}

func TestRunModelTimeout(t *testing.T) {
	model := &fakeModel{block: true}
	ts := newTestServer(t, model)

	resp, body := ts.run(t, "count Sundays")
	if resp.StatusCode != http.StatusServiceUnavailable {
		t.Fatalf("expected 503, got %d: %v", resp.StatusCode, body)
	}
	if body["code"] != "upstream" || body["stage"] != "dispatch" {
		t.Fatalf("unexpected error body %v", body)
	}
	entries, _ := os.ReadDir(ts.root)
	if len(entries) != 0 {
		t.Fatalf("sandbox modified after upstream failure: %v", entries)
	}
}

func TestRunErrorStatuses(t *testing.T) {
	tests := []struct {
		name      string
		operation string
		arguments string
		status    int
		code      string
	}{
		{"unknown operation", "delete_everything", `{}`, http.StatusUnprocessableEntity, "unknown_operation"},
		{"missing argument", "convert_md_to_html", `{"input_file":"a.md"}`, http.StatusUnprocessableEntity, "missing_argument"},
		{"unexpected argument", "convert_md_to_html", `{"input_file":"a.md","output_file":"a.html","force":"yes"}`, http.StatusUnprocessableEntity, "unexpected_argument"},
		{"malformed arguments", "convert_md_to_html", `{"input_file":["a.md"]}`, http.StatusBadGateway, "malformed_arguments"},
		{"no decision", "", "", http.StatusBadGateway, "no_decision"},
		{"operation failed", "convert_md_to_html", `{"input_file":"missing.md","output_file":"a.html"}`, http.StatusInternalServerError, "operation_failed"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ts := newTestServer(t, &fakeModel{operation: tt.operation, arguments: tt.arguments})
			resp, body := ts.run(t, "do something")
			if resp.StatusCode != tt.status || body["code"] != tt.code {
				t.Fatalf("expected %d %s, got %d %v", tt.status, tt.code, resp.StatusCode, body)
			}
		})
	}
}

func TestRunRequiresTask(t *testing.T) {
	model := &fakeModel{}
	ts := newTestServer(t, model)

	resp, err := http.Post(ts.URL+"/run", "text/plain", nil)
	if err != nil {
		t.Fatal(err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", resp.StatusCode)
	}
	if model.calls != 0 {
		t.Fatal("model called without a task")
	}

	resp, err = http.Get(ts.URL + "/run?task=x")
	if err != nil {
		t.Fatal(err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusMethodNotAllowed {
		t.Fatalf("expected 405 for GET /run, got %d", resp.StatusCode)
	}
}

func TestRead(t *testing.T) {
	ts := newTestServer(t, &fakeModel{})
	if err := os.MkdirAll(filepath.Join(ts.root, "sub"), 0o755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(ts.root, "sub", "file.txt"), []byte("hello\n"), 0o644); err != nil {
		t.Fatal(err)
	}

	tests := []struct {
		path   string
		status int
		body   string
	}{
		{filepath.Join(ts.root, "sub", "file.txt"), http.StatusOK, "hello\n"},
		{"sub/file.txt", http.StatusOK, "hello\n"},
		{filepath.Join(ts.root, "..", "..", "etc", "passwd"), http.StatusForbidden, ""},
		{"/etc/passwd", http.StatusForbidden, ""},
		{filepath.Join(ts.root, "missing.txt"), http.StatusNotFound, ""},
		{filepath.Join(ts.root, "sub"), http.StatusNotFound, ""},
		{"", http.StatusBadRequest, ""},
	}
	for _, tt := range tests {
		status, body := ts.read(t, tt.path)
		if status != tt.status {
			t.Fatalf("%s: expected %d, got %d (%s)", tt.path, tt.status, status, body)
		}
		if tt.body != "" && body != tt.body {
			t.Fatalf("%s: unexpected body %q", tt.path, body)
		}
	}
}

func TestHealthAndOperations(t *testing.T) {
	ts := newTestServer(t, &fakeModel{})

	resp, err := http.Get(ts.URL + "/healthz")
	if err != nil {
		t.Fatal(err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected 200 from /healthz, got %d", resp.StatusCode)
	}

	resp, err = http.Get(ts.URL + "/operations")
	if err != nil {
		t.Fatal(err)
	}
	defer resp.Body.Close()
	var defs []openai.Tool
	if err := json.NewDecoder(resp.Body).Decode(&defs); err != nil {
		t.Fatalf("decode /operations: %v", err)
	}
	if len(defs) != tools.NewDefaultRegistry().Len() {
		t.Fatalf("expected %d operations, got %d", tools.NewDefaultRegistry().Len(), len(defs))
	}
}

func TestRequestIDAndCORS(t *testing.T) {
	ts := newTestServer(t, &fakeModel{})
	id := uuid.NewString()

	req, _ := http.NewRequest(http.MethodGet, ts.URL+"/healthz", nil)
	req.Header.Set("X-Request-Id", id)
	req.Header.Set("Origin", "https://dashboard.example")
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatal(err)
	}
	resp.Body.Close()

	if got := resp.Header.Get("X-Request-Id"); got != id {
		t.Fatalf("expected request id %s to be echoed, got %s", id, got)
	}
	if got := resp.Header.Get("Access-Control-Allow-Origin"); got != "*" {
		t.Fatalf("expected CORS header, got %q", got)
	}
}
