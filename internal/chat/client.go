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
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"
	"strings"

	"github.com/rs/zerolog"
	"github.com/sashabaranov/go-openai"
	"taskagent/internal/config"
	apperrors "taskagent/internal/errors"
	"taskagent/internal/tools"
	systemprompt "taskagent/system_prompt"
)

// Client talks to the language-model service. It turns a task into a single
// operation decision and serves the completion, embedding and transcription
// calls operation bodies make.
//
// Client holds no per-request state and is safe for concurrent use.
type Client struct {
	api              ChatClient
	cfg              *config.Config
	logger           zerolog.Logger
	dispatchPrompt   string
	extractionPrompt string
}

const dataRootPlaceholder = "{{data_root}}"

var _ tools.ModelService = (*Client)(nil)

// NewClient creates a client backed by the OpenAI API (or a compatible
// proxy when api_url is set).
func NewClient(cfg *config.Config, logger zerolog.Logger) (*Client, error) {
	clientConfig := openai.DefaultConfig(cfg.APIKey)
	if cfg.APIURL != "" {
		clientConfig.BaseURL = cfg.APIURL
	}
	clientConfig.HTTPClient = &http.Client{Timeout: cfg.ModelTimeout()}

	return NewClientWithAPI(cfg, openai.NewClientWithConfig(clientConfig), logger)
}

// NewClientWithAPI creates a client with a provided API implementation (for testing).
func NewClientWithAPI(cfg *config.Config, api ChatClient, logger zerolog.Logger) (*Client, error) {
	dispatch, err := systemprompt.Dispatch()
	if err != nil {
		return nil, err
	}
	extraction, err := systemprompt.Extraction()
	if err != nil {
		return nil, err
	}
	return &Client{
		api:              api,
		cfg:              cfg,
		logger:           logger,
		dispatchPrompt:   strings.ReplaceAll(dispatch, dataRootPlaceholder, cfg.DataRoot),
		extractionPrompt: extraction,
	}, nil
}

// Decide sends task and the operation schema to the model and returns the
// operation it picked. The model is asked exactly once. The decision is
// untrusted: it still has to pass the registry's validation.
func (c *Client) Decide(ctx context.Context, task string, defs []openai.Tool) (tools.Decision, error) {
	ctx, cancel := context.WithTimeout(ctx, c.cfg.ModelTimeout())
	defer cancel()

	req := openai.ChatCompletionRequest{
		Model: c.cfg.Model,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleSystem, Content: c.dispatchPrompt},
			{Role: openai.ChatMessageRoleUser, Content: task},
		},
		Tools:      defs,
		ToolChoice: "auto",
	}
	if c.cfg.Temperature != nil {
		req.Temperature = *c.cfg.Temperature
	}
	if c.cfg.MaxTokens != nil {
		req.MaxTokens = *c.cfg.MaxTokens
	}

	c.logger.Debug().
		Str("model", req.Model).
		Int("tools", len(defs)).
		Msg("Requesting decision")

	resp, err := c.api.CreateChatCompletion(ctx, req)
	if err != nil {
		return tools.Decision{}, upstream("create_completion", err).WithStage(apperrors.StageDispatch)
	}
	if len(resp.Choices) == 0 {
		return tools.Decision{}, noDecision("model response contained no choices")
	}

	msg := resp.Choices[0].Message
	var name, rawArgs string
	switch {
	case len(msg.ToolCalls) > 0:
		if len(msg.ToolCalls) > 1 {
			c.logger.Warn().
				Int("tool_calls", len(msg.ToolCalls)).
				Msg("Model proposed several calls; using the first")
		}
		name, rawArgs = msg.ToolCalls[0].Function.Name, msg.ToolCalls[0].Function.Arguments
	case msg.FunctionCall != nil:
		name, rawArgs = msg.FunctionCall.Name, msg.FunctionCall.Arguments
	default:
		return tools.Decision{}, noDecision("model did not pick an operation")
	}
	if strings.TrimSpace(name) == "" {
		return tools.Decision{}, noDecision("model picked an operation without a name")
	}

	args, err := parseArguments(name, rawArgs)
	if err != nil {
		return tools.Decision{}, err
	}

	c.logger.Debug().
		Str("operation", name).
		Int("arguments", len(args)).
		Msg("Model decision received")

	return tools.Decision{Operation: name, Arguments: args}, nil
}

// parseArguments decodes the model's argument payload into a flat
// string-to-string mapping. Numbers and booleans are accepted and kept in
// their JSON spelling; null, arrays and objects are rejected.
func parseArguments(operation, raw string) (map[string]string, error) {
	args := map[string]string{}
	if strings.TrimSpace(raw) == "" {
		return args, nil
	}

	dec := json.NewDecoder(bytes.NewReader([]byte(raw)))
	dec.UseNumber()
	var decoded map[string]interface{}
	if err := dec.Decode(&decoded); err != nil {
		return nil, malformed(operation, "arguments are not a JSON object: %v", err)
	}
	if decoded == nil {
		return nil, malformed(operation, "arguments are null")
	}
	if dec.More() {
		return nil, malformed(operation, "arguments contain trailing data")
	}

	for key, value := range decoded {
		switch v := value.(type) {
		case string:
			args[key] = v
		case json.Number:
			args[key] = v.String()
		case bool:
			args[key] = strconv.FormatBool(v)
		case nil:
			return nil, malformed(operation, "argument %q is null", key).WithField(key)
		default:
			return nil, malformed(operation, "argument %q must be a string, got %s", key, jsonKind(v)).WithField(key)
		}
	}
	return args, nil
}

func jsonKind(v interface{}) string {
	switch v.(type) {
	case []interface{}:
		return "array"
	case map[string]interface{}:
		return "object"
	default:
		return fmt.Sprintf("%T", v)
	}
}
