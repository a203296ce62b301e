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

package tools

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"

	"github.com/rs/zerolog"
	apperrors "taskagent/internal/errors"
	"taskagent/internal/sandbox"
)

type fakeModel struct {
	mu          sync.Mutex
	completion  string
	vectors     [][]float32
	transcript  string
	err         error
	prompts     []string
	embedInputs []string
}

func (m *fakeModel) Complete(ctx context.Context, prompt string) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.prompts = append(m.prompts, prompt)
	return m.completion, m.err
}

func (m *fakeModel) Embed(ctx context.Context, inputs []string) ([][]float32, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.embedInputs = append(m.embedInputs, inputs...)
	return m.vectors, m.err
}

func (m *fakeModel) Transcribe(ctx context.Context, filename string, audio io.Reader) (string, error) {
	if _, err := io.ReadAll(audio); err != nil {
		return "", err
	}
	return m.transcript, m.err
}

type runCall struct {
	Dir  string
	Name string
	Args []string
}

type fakeRunner struct {
	mu     sync.Mutex
	calls  []runCall
	output []byte
	err    error
}

func (r *fakeRunner) Run(ctx context.Context, dir, name string, args ...string) ([]byte, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.calls = append(r.calls, runCall{Dir: dir, Name: name, Args: append([]string(nil), args...)})
	return r.output, r.err
}

type testEnv struct {
	*Env
	root   string
	model  *fakeModel
	runner *fakeRunner
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	guard, err := sandbox.New(t.TempDir())
	if err != nil {
		t.Fatalf("failed to create sandbox: %v", err)
	}
	model := &fakeModel{}
	runner := &fakeRunner{}
	return &testEnv{
		Env: &Env{
			Guard:         guard,
			Model:         model,
			HTTP:          http.DefaultClient,
			Runner:        runner,
			Limits:        DefaultLimits(),
			Timeouts:      DefaultTimeoutConfig(),
			OutputFilters: DefaultOutputFilterConfig(),
			Logger:        zerolog.Nop(),
		},
		root:   guard.Root(),
		model:  model,
		runner: runner,
	}
}

func (e *testEnv) path(elem ...string) string {
	return filepath.Join(append([]string{e.root}, elem...)...)
}

func (e *testEnv) write(t *testing.T, rel, content string) string {
	t.Helper()
	p := e.path(rel)
	if err := os.MkdirAll(filepath.Dir(p), 0o755); err != nil {
		t.Fatalf("mkdir: %v", err)
	}
	if err := os.WriteFile(p, []byte(content), 0o644); err != nil {
		t.Fatalf("write %s: %v", rel, err)
	}
	return p
}

func (e *testEnv) read(t *testing.T, rel string) string {
	t.Helper()
	data, err := os.ReadFile(e.path(rel))
	if err != nil {
		t.Fatalf("read %s: %v", rel, err)
	}
	return string(data)
}

func (e *testEnv) run(t *testing.T, operation string, args map[string]string) (*Result, error) {
	t.Helper()
	return NewExecutor(NewDefaultRegistry(), e.Env).Execute(context.Background(), Decision{
		Operation: operation,
		Arguments: args,
	})
}

func (e *testEnv) mustRun(t *testing.T, operation string, args map[string]string) *Result {
	t.Helper()
	result, err := e.run(t, operation, args)
	if err != nil {
		t.Fatalf("%s failed: %v", operation, err)
	}
	return result
}

func requireCode(t *testing.T, err error, code apperrors.Code) *apperrors.Error {
	t.Helper()
	if err == nil {
		t.Fatalf("expected %s error, got nil", code)
	}
	coded, ok := apperrors.As(err)
	if !ok {
		t.Fatalf("expected coded error, got %T: %v", err, err)
	}
	if coded.Code != code {
		t.Fatalf("expected code %s, got %s (%v)", code, coded.Code, err)
	}
	return coded
}

func mustExist(t *testing.T, path string, want bool) {
	t.Helper()
	_, err := os.Stat(path)
	exists := err == nil
	if exists != want {
		t.Fatalf("expected exists=%v for %s, err=%v", want, path, err)
	}
}

var errBoom = errors.New("boom")

func contains(t *testing.T, haystack, needle string) {
	t.Helper()
	if !strings.Contains(haystack, needle) {
		t.Fatalf("expected %q to contain %q", haystack, needle)
	}
}

func countingOperation(calls *int, params ...Param) Operation {
	return Operation{
		Name:        "count_calls",
		Description: "Counts invocations",
		Params:      params,
		Handler: func(ctx context.Context, env *Env, args Args) (string, error) {
			*calls++
			return fmt.Sprintf("call %d", *calls), nil
		},
	}
}
