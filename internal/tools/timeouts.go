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

import "time"

const defaultOperationTimeout = 2 * time.Minute

// TimeoutConfig configures per-operation execution timeouts.
type TimeoutConfig struct {
	Default      time.Duration
	PerOperation map[string]time.Duration
}

// DefaultTimeoutConfig returns the default timeout configuration.
func DefaultTimeoutConfig() TimeoutConfig {
	return TimeoutConfig{
		Default: defaultOperationTimeout,
		PerOperation: map[string]time.Duration{
			"install_and_run_script": 5 * time.Minute,
			"clone_repo_and_commit":  5 * time.Minute,
		},
	}
}

// TimeoutForOperation returns the timeout for an operation.
func (t TimeoutConfig) TimeoutForOperation(name string) time.Duration {
	if t.PerOperation != nil {
		if timeout, ok := t.PerOperation[name]; ok && timeout > 0 {
			return timeout
		}
	}
	if t.Default > 0 {
		return t.Default
	}
	return defaultOperationTimeout
}
