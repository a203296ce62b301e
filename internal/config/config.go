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

package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"taskagent/internal/tools"
)

// Config represents the application configuration
type Config struct {
	APIKey                  string         `json:"api_key"`
	APIURL                  string         `json:"api_url,omitempty"`
	Model                   string         `json:"model"`
	EmbeddingModel          string         `json:"embedding_model"`
	TranscriptionModel      string         `json:"transcription_model"`
	Temperature             *float32       `json:"temperature,omitempty"`
	MaxTokens               *int           `json:"max_tokens,omitempty"`
	CompletionMaxTokens     *int           `json:"completion_max_tokens,omitempty"`
	DataRoot                string         `json:"data_root"`
	CreateDataRoot          bool           `json:"create_data_root"`
	ListenAddr              string         `json:"listen_addr"`
	ModelTimeoutSeconds     int            `json:"model_timeout_seconds"`
	HTTPTimeoutSeconds      int            `json:"http_timeout_seconds"`
	ProcessTimeoutSeconds   int            `json:"process_timeout_seconds"`
	OperationTimeoutSeconds map[string]int `json:"operation_timeout_seconds,omitempty"`
	MaxFileSizeBytes        int64          `json:"max_file_size_bytes"`
	MaxDirectoryEntries     int            `json:"max_directory_entries"`
	MaxResponseBytes        int64          `json:"max_response_bytes"`
	OutputMaxChars          int            `json:"output_max_chars"`
	CORSAllowedOrigins      []string       `json:"cors_allowed_origins"`
}

const (
	defaultModel               = "gpt-4o-mini"
	defaultEmbeddingModel      = "text-embedding-3-small"
	defaultTranscriptionModel  = "whisper-1"
	defaultDataRoot            = "/data"
	defaultListenAddr          = ":8000"
	defaultModelTimeoutSeconds = 30
	defaultHTTPTimeoutSeconds  = 10
	defaultTemperature         = float32(0.2)
	defaultMaxTokens           = 200
	defaultCompletionMaxTokens = 150
	chatCompletionsSuffix      = "/chat/completions"
)

// DefaultConfig returns a config with default values
func DefaultConfig() *Config {
	temperature := defaultTemperature
	maxTokens := defaultMaxTokens
	completionMaxTokens := defaultCompletionMaxTokens
	timeouts := tools.DefaultTimeoutConfig()
	perOperation := make(map[string]int, len(timeouts.PerOperation))
	for name, d := range timeouts.PerOperation {
		perOperation[name] = int(d.Seconds())
	}
	return &Config{
		Model:                   defaultModel,
		EmbeddingModel:          defaultEmbeddingModel,
		TranscriptionModel:      defaultTranscriptionModel,
		Temperature:             &temperature,
		MaxTokens:               &maxTokens,
		CompletionMaxTokens:     &completionMaxTokens,
		DataRoot:                defaultDataRoot,
		CreateDataRoot:          true,
		ListenAddr:              defaultListenAddr,
		ModelTimeoutSeconds:     defaultModelTimeoutSeconds,
		HTTPTimeoutSeconds:      defaultHTTPTimeoutSeconds,
		ProcessTimeoutSeconds:   int(timeouts.Default.Seconds()),
		OperationTimeoutSeconds: perOperation,
		MaxFileSizeBytes:        tools.DefaultLimits().MaxFileSizeBytes,
		MaxDirectoryEntries:     tools.DefaultLimits().MaxDirectoryEntries,
		MaxResponseBytes:        tools.DefaultLimits().MaxResponseBytes,
		OutputMaxChars:          tools.DefaultOutputFilterConfig().MaxChars,
		CORSAllowedOrigins:      []string{"*"},
	}
}

// LoadDotEnv loads variables from the given .env files (default ".env")
// without overriding variables already set. Missing files are ignored.
func LoadDotEnv(paths ...string) error {
	if len(paths) == 0 {
		paths = []string{".env"}
	}
	for _, path := range paths {
		if err := godotenv.Load(path); err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				continue
			}
			return fmt.Errorf("failed to load %s: %w", path, err)
		}
	}
	return nil
}

// LoadConfig loads configuration from a JSON file, applies env overrides, and validates required fields.
func LoadConfig(path string) (*Config, error) {
	config := DefaultConfig()

	// A missing config file is not an error
	if _, err := os.Stat(path); err == nil {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, err
		}
		normalized, err := normalizeConfigJSON(data)
		if err != nil {
			return nil, err
		}
		if err := json.Unmarshal(normalized, config); err != nil {
			return nil, err
		}
	}

	config.applyEnv()

	if config.Model == "" {
		config.Model = defaultModel
	}
	if config.EmbeddingModel == "" {
		config.EmbeddingModel = defaultEmbeddingModel
	}
	if config.TranscriptionModel == "" {
		config.TranscriptionModel = defaultTranscriptionModel
	}
	if config.ListenAddr == "" {
		config.ListenAddr = defaultListenAddr
	}
	if config.DataRoot == "" {
		config.DataRoot = defaultDataRoot
	}

	if config.APIKey == "" {
		return nil, fmt.Errorf("API key is required (set api_key in config.json or AIPROXY_TOKEN/OPENAI_API_KEY)")
	}
	if !filepath.IsAbs(config.DataRoot) {
		return nil, fmt.Errorf("data_root must be an absolute path, got %q", config.DataRoot)
	}
	config.DataRoot = filepath.Clean(config.DataRoot)

	return config, nil
}

// applyEnv overrides file values with environment variables. AIPROXY_TOKEN
// wins over OPENAI_API_KEY, and AIPROXY_CHAT_URL (a full chat completions
// endpoint) wins over OPENAI_API_URL (a base URL).
func (c *Config) applyEnv() {
	if val := os.Getenv("AIPROXY_TOKEN"); val != "" {
		c.APIKey = val
	} else if val := os.Getenv("OPENAI_API_KEY"); val != "" {
		c.APIKey = val
	}

	if val := os.Getenv("AIPROXY_CHAT_URL"); val != "" {
		c.APIURL = BaseURLFromChatURL(val)
	} else if val := os.Getenv("OPENAI_API_URL"); val != "" {
		c.APIURL = val
	}

	if val := os.Getenv("TASKAGENT_DATA_ROOT"); val != "" {
		c.DataRoot = val
	}
	if val := os.Getenv("TASKAGENT_LISTEN_ADDR"); val != "" {
		c.ListenAddr = val
	}
}

// BaseURLFromChatURL derives the API base URL from a chat completions
// endpoint such as https://proxy.example/openai/v1/chat/completions.
func BaseURLFromChatURL(chatURL string) string {
	base := strings.TrimRight(strings.TrimSpace(chatURL), "/")
	return strings.TrimSuffix(base, chatCompletionsSuffix)
}

// ModelTimeout bounds one round trip to the language-model service.
func (c *Config) ModelTimeout() time.Duration {
	return secondsOr(c.ModelTimeoutSeconds, defaultModelTimeoutSeconds)
}

// HTTPTimeout bounds outbound HTTP requests made by operations.
func (c *Config) HTTPTimeout() time.Duration {
	return secondsOr(c.HTTPTimeoutSeconds, defaultHTTPTimeoutSeconds)
}

// LimitsConfig returns operation limits for runtime enforcement.
func (c *Config) LimitsConfig() tools.Limits {
	return tools.Limits{
		MaxFileSizeBytes:    c.MaxFileSizeBytes,
		MaxDirectoryEntries: c.MaxDirectoryEntries,
		MaxResponseBytes:    c.MaxResponseBytes,
	}.Normalize()
}

// TimeoutsConfig returns timeout configuration for operations.
func (c *Config) TimeoutsConfig() tools.TimeoutConfig {
	perOperation := make(map[string]time.Duration, len(c.OperationTimeoutSeconds))
	for name, seconds := range c.OperationTimeoutSeconds {
		if seconds <= 0 {
			continue
		}
		perOperation[name] = time.Duration(seconds) * time.Second
	}

	var defaultTimeout time.Duration
	if c.ProcessTimeoutSeconds > 0 {
		defaultTimeout = time.Duration(c.ProcessTimeoutSeconds) * time.Second
	}

	return tools.TimeoutConfig{
		Default:      defaultTimeout,
		PerOperation: perOperation,
	}
}

// OutputFiltersConfig returns output filter configuration for result messages.
func (c *Config) OutputFiltersConfig() tools.OutputFilterConfig {
	filters := tools.DefaultOutputFilterConfig()
	filters.MaxChars = c.OutputMaxChars
	return filters.Normalize()
}

// ValidationWarning represents a non-fatal configuration issue
type ValidationWarning struct {
	Field   string
	Message string
}

// Validate checks the configuration for common issues and returns warnings
func (c *Config) Validate(registry *tools.Registry) []ValidationWarning {
	var warnings []ValidationWarning

	// OpenAI expects 0-2
	if c.Temperature != nil {
		temp := *c.Temperature
		if temp < 0 || temp > 2 {
			warnings = append(warnings, ValidationWarning{
				Field:   "temperature",
				Message: fmt.Sprintf("temperature %.2f is outside recommended range [0, 2]", temp),
			})
		}
	}

	if c.MaxTokens != nil && *c.MaxTokens <= 0 {
		warnings = append(warnings, ValidationWarning{
			Field:   "max_tokens",
			Message: fmt.Sprintf("max_tokens %d must be positive", *c.MaxTokens),
		})
	}
	if c.CompletionMaxTokens != nil && *c.CompletionMaxTokens <= 0 {
		warnings = append(warnings, ValidationWarning{
			Field:   "completion_max_tokens",
			Message: fmt.Sprintf("completion_max_tokens %d must be positive", *c.CompletionMaxTokens),
		})
	}

	if registry != nil {
		names := make([]string, 0, len(c.OperationTimeoutSeconds))
		for name := range c.OperationTimeoutSeconds {
			names = append(names, name)
		}
		sort.Strings(names)
		for _, name := range names {
			if _, err := registry.Lookup(name); err != nil {
				warnings = append(warnings, ValidationWarning{
					Field:   "operation_timeout_seconds",
					Message: fmt.Sprintf("operation %q is not registered", name),
				})
			}
		}
	}

	if len(c.CORSAllowedOrigins) == 0 {
		warnings = append(warnings, ValidationWarning{
			Field:   "cors_allowed_origins",
			Message: "no origins allowed; browsers will be unable to call the API",
		})
	}

	return warnings
}

func secondsOr(seconds, fallback int) time.Duration {
	if seconds <= 0 {
		seconds = fallback
	}
	return time.Duration(seconds) * time.Second
}
