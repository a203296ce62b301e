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

package chat

import (
	"context"
	"net/http"
	"os"
	"path/filepath"
	"testing"

	"github.com/rs/zerolog"
	"github.com/sashabaranov/go-openai"
	apperrors "taskagent/internal/errors"
	"taskagent/internal/sandbox"
	"taskagent/internal/tools"
)

type staticDecider struct {
	decision tools.Decision
	err      error
	calls    int
}

func (d *staticDecider) Decide(ctx context.Context, task string, defs []openai.Tool) (tools.Decision, error) {
	d.calls++
	return d.decision, d.err
}

func newTestAgent(t *testing.T, decider Decider) (*Agent, string) {
	t.Helper()
	guard, err := sandbox.New(t.TempDir())
	if err != nil {
		t.Fatalf("sandbox.New: %v", err)
	}
	env := &tools.Env{
		Guard:         guard,
		HTTP:          http.DefaultClient,
		Runner:        tools.ExecRunner{},
		Limits:        tools.DefaultLimits(),
		Timeouts:      tools.DefaultTimeoutConfig(),
		OutputFilters: tools.DefaultOutputFilterConfig(),
		Logger:        zerolog.Nop(),
	}
	executor := tools.NewExecutor(tools.NewDefaultRegistry(), env)
	return NewAgent(decider, executor, zerolog.Nop()), guard.Root()
}

func TestAgentCountsSundaysEndToEnd(t *testing.T) {
	mock := &MockChatClient{}
	client := newTestClient(t, mock)
	agent, root := newTestAgent(t, client)

	dates := "2024-03-10\n2024-03-11\n2024/03/12\nMarch 13, 2024\n2024-03-14\n2023/01/01\n2024-03-16\n"
	if err := os.WriteFile(filepath.Join(root, "dates.txt"), []byte(dates), 0o644); err != nil {
		t.Fatal(err)
	}
	mock.CreateCompletionFunc = func(ctx context.Context, req openai.ChatCompletionRequest) (openai.ChatCompletionResponse, error) {
		args := `{"input_file":"` + filepath.Join(root, "dates.txt") + `","output_file":"` + filepath.Join(root, "out.txt") + `","weekday":"6"}`
		return toolCallResponse("count_specific_weekday", args), nil
	}

	outcome, err := agent.Run(context.Background(), "count how many lines in dates.txt are Sundays, write to out.txt")
	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}
	if outcome.Decision.Operation != "count_specific_weekday" || outcome.Result == nil {
		t.Fatalf("unexpected outcome %+v", outcome)
	}
	data, err := os.ReadFile(filepath.Join(root, "out.txt"))
	if err != nil {
		t.Fatalf("read output: %v", err)
	}
	if string(data) != "2" {
		t.Fatalf("expected 2, got %q", data)
	}
}

func TestAgentRejectsPathOutsideSandbox(t *testing.T) {
	decider := &staticDecider{decision: tools.Decision{
		Operation: "convert_md_to_html",
		Arguments: map[string]string{"input_file": "/etc/hosts", "output_file": "/etc/out.txt"},
	}}
	agent, _ := newTestAgent(t, decider)

	_, err := agent.Run(context.Background(), "convert /etc/hosts")
	coded := requireCode(t, err, apperrors.CodePathEscape)
	if apperrors.HTTPStatus(coded.Code) != http.StatusForbidden {
		t.Fatalf("expected 403 mapping, got %d", apperrors.HTTPStatus(coded.Code))
	}
	if _, statErr := os.Stat("/etc/out.txt"); statErr == nil {
		t.Fatal("output written outside the sandbox")
	}
}

func TestAgentRequiresTask(t *testing.T) {
	decider := &staticDecider{}
	agent, _ := newTestAgent(t, decider)

	_, err := agent.Run(context.Background(), "   ")
	requireCode(t, err, apperrors.CodeInvalidRequest)
	if decider.calls != 0 {
		t.Fatal("model consulted for an empty task")
	}
}

func TestAgentUpstreamSkipsExecution(t *testing.T) {
	decider := &staticDecider{err: upstream("create_completion", context.DeadlineExceeded)}
	agent, root := newTestAgent(t, decider)

	outcome, err := agent.Run(context.Background(), "anything")
	requireCode(t, err, apperrors.CodeUpstream)
	if outcome != nil {
		t.Fatalf("expected no outcome, got %+v", outcome)
	}
	entries, _ := os.ReadDir(root)
	if len(entries) != 0 {
		t.Fatalf("sandbox modified: %v", entries)
	}
}
