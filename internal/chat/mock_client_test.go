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
	"io"
	"sync"

	"github.com/sashabaranov/go-openai"
)

// MockChatClient is a mock implementation of ChatClient for testing.
type MockChatClient struct {
	// Functions to override behavior
	CreateCompletionFunc    func(ctx context.Context, req openai.ChatCompletionRequest) (openai.ChatCompletionResponse, error)
	CreateEmbeddingsFunc    func(ctx context.Context, req openai.EmbeddingRequest) (openai.EmbeddingResponse, error)
	CreateTranscriptionFunc func(ctx context.Context, req openai.AudioRequest) (openai.AudioResponse, error)

	// Call tracking
	mu                 sync.Mutex
	CompletionCalls    []openai.ChatCompletionRequest
	EmbeddingCalls     []openai.EmbeddingRequest
	TranscriptionCalls []openai.AudioRequest
	TranscribedAudio   [][]byte
}

// CreateChatCompletion implements ChatClient.
func (m *MockChatClient) CreateChatCompletion(ctx context.Context, req openai.ChatCompletionRequest) (openai.ChatCompletionResponse, error) {
	m.mu.Lock()
	m.CompletionCalls = append(m.CompletionCalls, req)
	m.mu.Unlock()
	if m.CreateCompletionFunc != nil {
		return m.CreateCompletionFunc(ctx, req)
	}
	// Default mock response
	return openai.ChatCompletionResponse{
		Choices: []openai.ChatCompletionChoice{
			{
				Message: openai.ChatCompletionMessage{
					Role:    openai.ChatMessageRoleAssistant,
					Content: "mock response",
				},
			},
		},
	}, nil
}

// CreateEmbeddings implements ChatClient.
func (m *MockChatClient) CreateEmbeddings(ctx context.Context, conv openai.EmbeddingRequestConverter) (openai.EmbeddingResponse, error) {
	req := conv.Convert()
	m.mu.Lock()
	m.EmbeddingCalls = append(m.EmbeddingCalls, req)
	m.mu.Unlock()
	if m.CreateEmbeddingsFunc != nil {
		return m.CreateEmbeddingsFunc(ctx, req)
	}
	return openai.EmbeddingResponse{}, nil
}

// CreateTranscription implements ChatClient.
func (m *MockChatClient) CreateTranscription(ctx context.Context, req openai.AudioRequest) (openai.AudioResponse, error) {
	var audio []byte
	if req.Reader != nil {
		audio, _ = io.ReadAll(req.Reader)
	}
	m.mu.Lock()
	m.TranscriptionCalls = append(m.TranscriptionCalls, req)
	m.TranscribedAudio = append(m.TranscribedAudio, audio)
	m.mu.Unlock()
	if m.CreateTranscriptionFunc != nil {
		return m.CreateTranscriptionFunc(ctx, req)
	}
	return openai.AudioResponse{Text: "mock transcript"}, nil
}

// toolCallResponse builds a completion that calls name with raw JSON arguments.
func toolCallResponse(name, arguments string) openai.ChatCompletionResponse {
	return openai.ChatCompletionResponse{
		Choices: []openai.ChatCompletionChoice{
			{
				Message: openai.ChatCompletionMessage{
					Role: openai.ChatMessageRoleAssistant,
					ToolCalls: []openai.ToolCall{
						{
							ID:   "call_1",
							Type: openai.ToolTypeFunction,
							Function: openai.FunctionCall{
								Name:      name,
								Arguments: arguments,
							},
						},
					},
				},
			},
		},
	}
}
