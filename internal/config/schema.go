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
	"fmt"
	"sort"
)

// SchemaJSON returns the JSON schema for config.json.
func SchemaJSON() string {
	return configSchemaJSON
}

// ExampleConfigJSON returns a minimal example config derived from the schema.
func ExampleConfigJSON() string {
	return exampleConfigJSON
}

func normalizeConfigJSON(data []byte) ([]byte, error) {
	var raw map[string]interface{}
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, err
	}
	migrateLegacyConfig(raw)
	if err := validateConfigMap(raw, ""); err != nil {
		return nil, err
	}
	normalized, err := json.Marshal(raw)
	if err != nil {
		return nil, err
	}
	return normalized, nil
}

// migrateLegacyConfig accepts the proxy-style key names used by older
// deployments.
func migrateLegacyConfig(raw map[string]interface{}) {
	if token, ok := raw["aiproxy_token"]; ok {
		if _, exists := raw["api_key"]; !exists {
			raw["api_key"] = token
		}
		delete(raw, "aiproxy_token")
	}
	if chatURL, ok := raw["aiproxy_chat_url"].(string); ok {
		if _, exists := raw["api_url"]; !exists {
			raw["api_url"] = BaseURLFromChatURL(chatURL)
		}
		delete(raw, "aiproxy_chat_url")
	}
}

func validateConfigMap(raw map[string]interface{}, prefix string) error {
	allowed := map[string]func(interface{}) error{
		"api_key":                 func(v interface{}) error { return validateString(v, prefix+"api_key") },
		"api_url":                 func(v interface{}) error { return validateString(v, prefix+"api_url") },
		"model":                   func(v interface{}) error { return validateString(v, prefix+"model") },
		"embedding_model":         func(v interface{}) error { return validateString(v, prefix+"embedding_model") },
		"transcription_model":     func(v interface{}) error { return validateString(v, prefix+"transcription_model") },
		"temperature":             func(v interface{}) error { return validateNumber(v, prefix+"temperature") },
		"max_tokens":              func(v interface{}) error { return validateInteger(v, prefix+"max_tokens") },
		"completion_max_tokens":   func(v interface{}) error { return validateInteger(v, prefix+"completion_max_tokens") },
		"data_root":               func(v interface{}) error { return validateString(v, prefix+"data_root") },
		"create_data_root":        func(v interface{}) error { return validateBool(v, prefix+"create_data_root") },
		"listen_addr":             func(v interface{}) error { return validateString(v, prefix+"listen_addr") },
		"model_timeout_seconds":   func(v interface{}) error { return validateInteger(v, prefix+"model_timeout_seconds") },
		"http_timeout_seconds":    func(v interface{}) error { return validateInteger(v, prefix+"http_timeout_seconds") },
		"process_timeout_seconds": func(v interface{}) error { return validateInteger(v, prefix+"process_timeout_seconds") },
		"operation_timeout_seconds": func(v interface{}) error {
			return validateStringNumberMap(v, prefix+"operation_timeout_seconds")
		},
		"max_file_size_bytes":   func(v interface{}) error { return validateInteger(v, prefix+"max_file_size_bytes") },
		"max_directory_entries": func(v interface{}) error { return validateInteger(v, prefix+"max_directory_entries") },
		"max_response_bytes":    func(v interface{}) error { return validateInteger(v, prefix+"max_response_bytes") },
		"output_max_chars":      func(v interface{}) error { return validateInteger(v, prefix+"output_max_chars") },
		"cors_allowed_origins": func(v interface{}) error {
			return validateStringArray(v, prefix+"cors_allowed_origins")
		},
	}
	return validateSection(raw, allowed, prefix)
}

func validateSection(section map[string]interface{}, allowed map[string]func(interface{}) error, prefix string) error {
	keys := make([]string, 0, len(section))
	for key := range section {
		keys = append(keys, key)
	}
	sort.Strings(keys)
	for _, key := range keys {
		validator, ok := allowed[key]
		if !ok {
			return fmt.Errorf("unknown configuration field %q", prefix+key)
		}
		if err := validator(section[key]); err != nil {
			return err
		}
	}
	return nil
}

func validateString(value interface{}, name string) error {
	if _, ok := value.(string); !ok {
		return fmt.Errorf("%s must be a string", name)
	}
	return nil
}

func validateNumber(value interface{}, name string) error {
	if _, ok := value.(float64); !ok {
		return fmt.Errorf("%s must be a number", name)
	}
	return nil
}

func validateInteger(value interface{}, name string) error {
	n, ok := value.(float64)
	if !ok || n != float64(int64(n)) {
		return fmt.Errorf("%s must be an integer", name)
	}
	return nil
}

func validateBool(value interface{}, name string) error {
	if _, ok := value.(bool); !ok {
		return fmt.Errorf("%s must be a boolean", name)
	}
	return nil
}

func validateStringArray(value interface{}, name string) error {
	list, ok := value.([]interface{})
	if !ok {
		return fmt.Errorf("%s must be an array of strings", name)
	}
	for _, item := range list {
		if _, ok := item.(string); !ok {
			return fmt.Errorf("%s must be an array of strings", name)
		}
	}
	return nil
}

func validateStringNumberMap(value interface{}, name string) error {
	section, ok := value.(map[string]interface{})
	if !ok {
		return fmt.Errorf("%s must be an object of number values", name)
	}
	for key, entry := range section {
		if err := validateInteger(entry, name+"."+key); err != nil {
			return err
		}
	}
	return nil
}

const configSchemaJSON = `{
  "$schema": "https://json-schema.org/draft/2020-12/schema",
  "title": "Taskagent Config",
  "type": "object",
  "additionalProperties": false,
  "properties": {
    "api_key": { "type": "string" },
    "api_url": { "type": "string" },
    "model": { "type": "string" },
    "embedding_model": { "type": "string" },
    "transcription_model": { "type": "string" },
    "temperature": { "type": "number" },
    "max_tokens": { "type": "integer" },
    "completion_max_tokens": { "type": "integer" },
    "data_root": { "type": "string" },
    "create_data_root": { "type": "boolean" },
    "listen_addr": { "type": "string" },
    "model_timeout_seconds": { "type": "integer" },
    "http_timeout_seconds": { "type": "integer" },
    "process_timeout_seconds": { "type": "integer" },
    "operation_timeout_seconds": { "type": "object", "additionalProperties": { "type": "integer" } },
    "max_file_size_bytes": { "type": "integer" },
    "max_directory_entries": { "type": "integer" },
    "max_response_bytes": { "type": "integer" },
    "output_max_chars": { "type": "integer" },
    "cors_allowed_origins": { "type": "array", "items": { "type": "string" } }
  }
}`

const exampleConfigJSON = `{
  "api_key": "sk-...",
  "api_url": "https://api.openai.com/v1",
  "model": "gpt-4o-mini",
  "data_root": "/data",
  "listen_addr": ":8000",
  "operation_timeout_seconds": {
    "install_and_run_script": 300,
    "clone_repo_and_commit": 300
  }
}`
