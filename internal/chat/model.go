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
	"fmt"
	"io"
	"sort"
	"strings"

	"github.com/sashabaranov/go-openai"
	apperrors "taskagent/internal/errors"
)

// Complete runs a plain completion with the extraction system prompt and
// returns the trimmed reply.
func (c *Client) Complete(ctx context.Context, prompt string) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, c.cfg.ModelTimeout())
	defer cancel()

	req := openai.ChatCompletionRequest{
		Model: c.cfg.Model,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleSystem, Content: c.extractionPrompt},
			{Role: openai.ChatMessageRoleUser, Content: prompt},
		},
	}
	if c.cfg.Temperature != nil {
		req.Temperature = *c.cfg.Temperature
	}
	if c.cfg.CompletionMaxTokens != nil {
		req.MaxTokens = *c.cfg.CompletionMaxTokens
	}

	resp, err := c.api.CreateChatCompletion(ctx, req)
	if err != nil {
		return "", upstream("create_completion", err).WithStage(apperrors.StageExecute)
	}
	if len(resp.Choices) == 0 {
		return "", upstream("create_completion", fmt.Errorf("no choices in response")).WithStage(apperrors.StageExecute)
	}
	return strings.TrimSpace(resp.Choices[0].Message.Content), nil
}

// Embed returns one embedding per input, in input order.
func (c *Client) Embed(ctx context.Context, inputs []string) ([][]float32, error) {
	ctx, cancel := context.WithTimeout(ctx, c.cfg.ModelTimeout())
	defer cancel()

	resp, err := c.api.CreateEmbeddings(ctx, openai.EmbeddingRequest{
		Input: inputs,
		Model: openai.EmbeddingModel(c.cfg.EmbeddingModel),
	})
	if err != nil {
		return nil, upstream("create_embeddings", err).WithStage(apperrors.StageExecute)
	}
	if len(resp.Data) != len(inputs) {
		return nil, upstream("create_embeddings", fmt.Errorf("expected %d embeddings, got %d", len(inputs), len(resp.Data))).
			WithStage(apperrors.StageExecute)
	}

	data := append([]openai.Embedding(nil), resp.Data...)
	sort.SliceStable(data, func(i, j int) bool { return data[i].Index < data[j].Index })

	vectors := make([][]float32, len(data))
	for i, e := range data {
		vectors[i] = e.Embedding
	}
	return vectors, nil
}

// Transcribe converts speech to text. filename is only used to tell the
// service the audio format.
func (c *Client) Transcribe(ctx context.Context, filename string, audio io.Reader) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, c.cfg.ModelTimeout())
	defer cancel()

	resp, err := c.api.CreateTranscription(ctx, openai.AudioRequest{
		Model:    c.cfg.TranscriptionModel,
		FilePath: filename,
		Reader:   audio,
	})
	if err != nil {
		return "", upstream("create_transcription", err).WithStage(apperrors.StageExecute)
	}
	return strings.TrimSpace(resp.Text), nil
}
