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

// Limits bounds how much data a single operation may pull in.
type Limits struct {
	// MaxFileSizeBytes caps any file read from the sandbox.
	MaxFileSizeBytes int64
	// MaxDirectoryEntries caps entries visited by recursive walks.
	MaxDirectoryEntries int
	// MaxResponseBytes caps HTTP response bodies from fetch and scrape.
	MaxResponseBytes int64
}

// DefaultLimits returns the limits used when none are configured.
func DefaultLimits() Limits {
	return Limits{
		MaxFileSizeBytes:    10 << 20,
		MaxDirectoryEntries: 10000,
		MaxResponseBytes:    20 << 20,
	}
}

// Normalize replaces non-positive limits with their defaults.
func (l Limits) Normalize() Limits {
	d := DefaultLimits()
	if l.MaxFileSizeBytes <= 0 {
		l.MaxFileSizeBytes = d.MaxFileSizeBytes
	}
	if l.MaxDirectoryEntries <= 0 {
		l.MaxDirectoryEntries = d.MaxDirectoryEntries
	}
	if l.MaxResponseBytes <= 0 {
		l.MaxResponseBytes = d.MaxResponseBytes
	}
	return l
}
