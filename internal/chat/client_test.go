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
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/sashabaranov/go-openai"
	"taskagent/internal/config"
	apperrors "taskagent/internal/errors"
	"taskagent/internal/tools"
)

func testConfig() *config.Config {
	cfg := config.DefaultConfig()
	cfg.APIKey = "test-key"
	cfg.DataRoot = "/srv/data"
	return cfg
}

func newTestClient(t *testing.T, api ChatClient) *Client {
	t.Helper()
	client, err := NewClientWithAPI(testConfig(), api, zerolog.Nop())
	if err != nil {
		t.Fatalf("NewClientWithAPI: %v", err)
	}
	return client
}

func requireCode(t *testing.T, err error, code apperrors.Code) *apperrors.Error {
	t.Helper()
	coded, ok := apperrors.As(err)
	if !ok {
		t.Fatalf("expected %s error, got %v", code, err)
	}
	if coded.Code != code {
		t.Fatalf("expected code %s, got %s (%v)", code, coded.Code, err)
	}
	return coded
}

func TestDecideSendsSchemaAndPrompt(t *testing.T) {
	mock := &MockChatClient{
		CreateCompletionFunc: func(ctx context.Context, req openai.ChatCompletionRequest) (openai.ChatCompletionResponse, error) {
			return toolCallResponse("count_specific_weekday",
				`{"input_file":"/srv/data/dates.txt","output_file":"/srv/data/out.txt","weekday":"2"}`), nil
		},
	}
	client := newTestClient(t, mock)
	defs := tools.NewDefaultRegistry().OpenAITools()

	decision, err := client.Decide(context.Background(), "Count Wednesdays in /srv/data/dates.txt", defs)
	if err != nil {
		t.Fatalf("Decide failed: %v", err)
	}
	if decision.Operation != "count_specific_weekday" || decision.Arguments["weekday"] != "2" {
		t.Fatalf("unexpected decision %+v", decision)
	}

	if len(mock.CompletionCalls) != 1 {
		t.Fatalf("expected exactly one model call, got %d", len(mock.CompletionCalls))
	}
	req := mock.CompletionCalls[0]
	if req.Model != "gpt-4o-mini" || req.ToolChoice != "auto" || len(req.Tools) != len(defs) {
		t.Fatalf("unexpected request model=%s choice=%v tools=%d", req.Model, req.ToolChoice, len(req.Tools))
	}
	if req.MaxTokens != 200 || req.Temperature != 0.2 {
		t.Fatalf("unexpected sampling settings %d %v", req.MaxTokens, req.Temperature)
	}
	system := req.Messages[0]
	if system.Role != openai.ChatMessageRoleSystem || !strings.Contains(system.Content, "/srv/data") {
		t.Fatalf("system prompt missing data root: %q", system.Content)
	}
	if strings.Contains(system.Content, dataRootPlaceholder) {
		t.Fatal("placeholder left in system prompt")
	}
	if req.Messages[1].Content != "Count Wednesdays in /srv/data/dates.txt" {
		t.Fatalf("unexpected user message %q", req.Messages[1].Content)
	}
}

func TestDecideLegacyFunctionCall(t *testing.T) {
	mock := &MockChatClient{
		CreateCompletionFunc: func(ctx context.Context, req openai.ChatCompletionRequest) (openai.ChatCompletionResponse, error) {
			return openai.ChatCompletionResponse{
				Choices: []openai.ChatCompletionChoice{{
					Message: openai.ChatCompletionMessage{
						FunctionCall: &openai.FunctionCall{Name: "convert_md_to_html", Arguments: `{"input_file":"a.md","output_file":"a.html"}`},
					},
				}},
			}, nil
		},
	}
	decision, err := newTestClient(t, mock).Decide(context.Background(), "convert", nil)
	if err != nil {
		t.Fatalf("Decide failed: %v", err)
	}
	if decision.Operation != "convert_md_to_html" || decision.Arguments["output_file"] != "a.html" {
		t.Fatalf("unexpected decision %+v", decision)
	}
}

func TestDecideNoDecision(t *testing.T) {
	responses := map[string]openai.ChatCompletionResponse{
		"no choices": {},
		"prose only": {Choices: []openai.ChatCompletionChoice{{Message: openai.ChatCompletionMessage{Content: "I cannot do that"}}}},
		"empty name": toolCallResponse(" ", `{}`),
	}
	for name, resp := range responses {
		t.Run(name, func(t *testing.T) {
			mock := &MockChatClient{
				CreateCompletionFunc: func(ctx context.Context, req openai.ChatCompletionRequest) (openai.ChatCompletionResponse, error) {
					return resp, nil
				},
			}
			_, err := newTestClient(t, mock).Decide(context.Background(), "task", nil)
			coded := requireCode(t, err, apperrors.CodeNoDecision)
			if coded.Stage != apperrors.StageDispatch {
				t.Fatalf("expected dispatch stage, got %s", coded.Stage)
			}
		})
	}
}

func TestDecideMalformedArguments(t *testing.T) {
	payloads := []string{
		`not json`,
		`null`,
		` null `,
		`["a", "b"]`,
		`{"input_file": {"nested": true}}`,
		`{"input_file": ["a"]}`,
		`{"input_file": null}`,
		`{"a": "1"} {"b": "2"}`,
	}
	for _, payload := range payloads {
		mock := &MockChatClient{
			CreateCompletionFunc: func(ctx context.Context, req openai.ChatCompletionRequest) (openai.ChatCompletionResponse, error) {
				return toolCallResponse("convert_md_to_html", payload), nil
			},
		}
		_, err := newTestClient(t, mock).Decide(context.Background(), "task", nil)
		coded := requireCode(t, err, apperrors.CodeMalformedArguments)
		if coded.Operation != "convert_md_to_html" {
			t.Fatalf("expected operation on error for %s, got %q", payload, coded.Operation)
		}
	}
}

func TestParseArgumentsCoercesScalars(t *testing.T) {
	args, err := parseArguments("op", `{"width": 640, "ratio": 1.5, "text_only": true, "name": "x"}`)
	if err != nil {
		t.Fatalf("parseArguments: %v", err)
	}
	want := map[string]string{"width": "640", "ratio": "1.5", "text_only": "true", "name": "x"}
	for k, v := range want {
		if args[k] != v {
			t.Fatalf("args[%s] = %q, want %q", k, args[k], v)
		}
	}

	empty, err := parseArguments("op", "  ")
	if err != nil || len(empty) != 0 {
		t.Fatalf("expected empty arguments, got %v %v", empty, err)
	}
}

func TestDecideUpstreamFailure(t *testing.T) {
	mock := &MockChatClient{
		CreateCompletionFunc: func(ctx context.Context, req openai.ChatCompletionRequest) (openai.ChatCompletionResponse, error) {
			return openai.ChatCompletionResponse{}, &openai.APIError{HTTPStatusCode: 500, Message: "server error"}
		},
	}
	_, err := newTestClient(t, mock).Decide(context.Background(), "task", nil)
	requireCode(t, err, apperrors.CodeUpstream)

	var apiErr *openai.APIError
	if !errors.As(err, &apiErr) {
		t.Fatal("expected the openai error to stay reachable")
	}
}

func TestDecideTimeout(t *testing.T) {
	mock := &MockChatClient{
		CreateCompletionFunc: func(ctx context.Context, req openai.ChatCompletionRequest) (openai.ChatCompletionResponse, error) {
			<-ctx.Done()
			return openai.ChatCompletionResponse{}, ctx.Err()
		},
	}
	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	_, err := newTestClient(t, mock).Decide(ctx, "task", nil)
	requireCode(t, err, apperrors.CodeUpstream)
	if !errors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("expected deadline exceeded, got %v", err)
	}
}

func TestComplete(t *testing.T) {
	mock := &MockChatClient{
		CreateCompletionFunc: func(ctx context.Context, req openai.ChatCompletionRequest) (openai.ChatCompletionResponse, error) {
			return openai.ChatCompletionResponse{
				Choices: []openai.ChatCompletionChoice{{Message: openai.ChatCompletionMessage{Content: "  user@example.com \n"}}},
			}, nil
		},
	}
	got, err := newTestClient(t, mock).Complete(context.Background(), "Extract the email")
	if err != nil {
		t.Fatalf("Complete failed: %v", err)
	}
	if got != "user@example.com" {
		t.Fatalf("unexpected completion %q", got)
	}
	req := mock.CompletionCalls[0]
	if len(req.Tools) != 0 || req.MaxTokens != 150 {
		t.Fatalf("unexpected completion request tools=%d max_tokens=%d", len(req.Tools), req.MaxTokens)
	}
}

func TestCompleteWithoutChoicesIsUpstream(t *testing.T) {
	mock := &MockChatClient{
		CreateCompletionFunc: func(ctx context.Context, req openai.ChatCompletionRequest) (openai.ChatCompletionResponse, error) {
			return openai.ChatCompletionResponse{}, nil
		},
	}
	_, err := newTestClient(t, mock).Complete(context.Background(), "x")
	requireCode(t, err, apperrors.CodeUpstream)
}

func TestEmbedOrdersByIndex(t *testing.T) {
	mock := &MockChatClient{
		CreateEmbeddingsFunc: func(ctx context.Context, req openai.EmbeddingRequest) (openai.EmbeddingResponse, error) {
			return openai.EmbeddingResponse{Data: []openai.Embedding{
				{Index: 1, Embedding: []float32{0, 1}},
				{Index: 0, Embedding: []float32{1, 0}},
			}}, nil
		},
	}
	vectors, err := newTestClient(t, mock).Embed(context.Background(), []string{"a", "b"})
	if err != nil {
		t.Fatalf("Embed failed: %v", err)
	}
	if vectors[0][0] != 1 || vectors[1][1] != 1 {
		t.Fatalf("embeddings not ordered by index: %v", vectors)
	}
	if mock.EmbeddingCalls[0].Model != openai.EmbeddingModel("text-embedding-3-small") {
		t.Fatalf("unexpected embedding model %s", mock.EmbeddingCalls[0].Model)
	}
}

func TestEmbedCountMismatch(t *testing.T) {
	mock := &MockChatClient{
		CreateEmbeddingsFunc: func(ctx context.Context, req openai.EmbeddingRequest) (openai.EmbeddingResponse, error) {
			return openai.EmbeddingResponse{Data: []openai.Embedding{{Index: 0}}}, nil
		},
	}
	_, err := newTestClient(t, mock).Embed(context.Background(), []string{"a", "b"})
	requireCode(t, err, apperrors.CodeUpstream)
}

func TestTranscribe(t *testing.T) {
	mock := &MockChatClient{}
	got, err := newTestClient(t, mock).Transcribe(context.Background(), "memo.mp3", strings.NewReader("audio bytes"))
	if err != nil {
		t.Fatalf("Transcribe failed: %v", err)
	}
	if got != "mock transcript" {
		t.Fatalf("unexpected transcript %q", got)
	}
	req := mock.TranscriptionCalls[0]
	if req.Model != "whisper-1" || req.FilePath != "memo.mp3" || string(mock.TranscribedAudio[0]) != "audio bytes" {
		t.Fatalf("unexpected transcription request %+v", req)
	}
}
