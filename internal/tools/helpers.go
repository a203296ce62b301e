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
	"bytes"
	"encoding/json"
	"fmt"
	"net/url"
	"strings"

	"taskagent/internal/sandbox"
)

func readText(env *Env, p sandbox.Path) (string, error) {
	data, err := env.Guard.ReadFile(p, env.Limits.MaxFileSizeBytes)
	if err != nil {
		return "", err
	}
	return string(data), nil
}

func writeText(env *Env, p sandbox.Path, content string) error {
	return env.Guard.WriteFile(p, []byte(content))
}

// writeJSON writes v indented by two spaces without HTML escaping.
func writeJSON(env *Env, p sandbox.Path, v interface{}) error {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	enc.SetIndent("", "  ")
	if err := enc.Encode(v); err != nil {
		return err
	}
	return env.Guard.WriteFile(p, bytes.TrimRight(buf.Bytes(), "\n"))
}

// splitLines splits on \n and \r\n without yielding a trailing empty line.
func splitLines(s string) []string {
	s = strings.ReplaceAll(s, "\r\n", "\n")
	s = strings.TrimSuffix(s, "\n")
	if s == "" {
		return nil
	}
	return strings.Split(s, "\n")
}

// requireHTTPURL only lets http and https URLs through; file:// and similar
// schemes would reach outside the sandbox.
func requireHTTPURL(operation, field, raw string) (*url.URL, error) {
	u, err := url.Parse(raw)
	if err != nil {
		return nil, ArgumentTypeError(operation, field, "is not a valid URL: %v", err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return nil, ArgumentTypeError(operation, field, "must use http or https, got %q", u.Scheme)
	}
	if u.Host == "" {
		return nil, ArgumentTypeError(operation, field, "has no host")
	}
	return u, nil
}

// rejectFlag keeps model-supplied values from being parsed as command flags.
func rejectFlag(operation, field, value string) error {
	if strings.HasPrefix(value, "-") {
		return ArgumentTypeError(operation, field, "must not start with '-'")
	}
	return nil
}

func wroteMessage(p sandbox.Path, format string, args ...interface{}) string {
	return fmt.Sprintf("%s; wrote %s", fmt.Sprintf(format, args...), p.String())
}
