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

// Package sandbox confines filesystem access to a single root directory.
//
// Every path that reaches a filesystem or process-spawning operation must
// first be turned into a Path by Guard.Resolve. Resolution works on the fully
// resolved form of the candidate (relative segments, "..", symbolic links and
// backslash separators are all normalized first), so the containment check is
// never made against the literal string.
package sandbox

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	apperrors "taskagent/internal/errors"
)

// Path is a location proven to lie within a Guard's root. The zero value is
// not a valid path; only Guard.Resolve produces usable values.
type Path struct {
	abs string
	rel string
}

// String returns the resolved absolute path.
func (p Path) String() string {
	return p.abs
}

// Rel returns the path relative to the sandbox root ("." for the root itself).
func (p Path) Rel() string {
	return p.rel
}

// IsZero reports whether p was never resolved.
func (p Path) IsZero() bool {
	return p.abs == ""
}

// Dir returns the parent directory, clamped to the root.
func (p Path) Dir() Path {
	if p.rel == "." || p.IsZero() {
		return p
	}
	rel := filepath.Dir(p.rel)
	return Path{abs: filepath.Dir(p.abs), rel: rel}
}

// Base returns the last element of the path.
func (p Path) Base() string {
	return filepath.Base(p.abs)
}

// Guard resolves untrusted path strings against a fixed root directory.
// A Guard is immutable and safe for concurrent use.
type Guard struct {
	root string
}

// New creates a guard rooted at dir. The directory must exist.
func New(dir string) (*Guard, error) {
	if strings.TrimSpace(dir) == "" {
		return nil, fmt.Errorf("sandbox root cannot be empty")
	}
	abs, err := filepath.Abs(dir)
	if err != nil {
		return nil, fmt.Errorf("invalid sandbox root: %w", err)
	}
	resolved, err := filepath.EvalSymlinks(abs)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve sandbox root: %w", err)
	}
	info, err := os.Stat(resolved)
	if err != nil {
		return nil, fmt.Errorf("failed to stat sandbox root: %w", err)
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("sandbox root %s is not a directory", resolved)
	}
	return &Guard{root: resolved}, nil
}

// Root returns the resolved absolute root directory.
func (g *Guard) Root() string {
	return g.root
}

// RootPath returns the root as a Path.
func (g *Guard) RootPath() Path {
	return Path{abs: g.root, rel: "."}
}

// Resolve turns candidate into a Path. It fails with a path_escape error when
// the fully resolved form of candidate is neither the root nor a descendant
// of it. Relative candidates are interpreted relative to the root.
func (g *Guard) Resolve(candidate string) (Path, error) {
	if err := checkCandidate(candidate); err != nil {
		return Path{}, g.escape(candidate, err)
	}

	normalized := filepath.FromSlash(strings.ReplaceAll(candidate, `\`, "/"))
	if !filepath.IsAbs(normalized) {
		normalized = filepath.Join(g.root, normalized)
	}
	cleaned := filepath.Clean(normalized)

	resolved, err := resolveExisting(cleaned)
	if err != nil {
		return Path{}, g.escape(candidate, err)
	}
	if !within(g.root, resolved) {
		return Path{}, g.escape(candidate, nil)
	}

	rel, err := filepath.Rel(g.root, resolved)
	if err != nil {
		return Path{}, g.escape(candidate, err)
	}
	return Path{abs: resolved, rel: rel}, nil
}

// Contains reports whether candidate resolves inside the root.
func (g *Guard) Contains(candidate string) bool {
	_, err := g.Resolve(candidate)
	return err == nil
}

func (g *Guard) escape(candidate string, cause error) *apperrors.Error {
	msg := fmt.Sprintf("path escapes %s: %s", g.root, candidate)
	var err *apperrors.Error
	if cause != nil {
		err = apperrors.Wrap(apperrors.CodePathEscape, msg, cause)
	} else {
		err = apperrors.New(apperrors.CodePathEscape, msg)
	}
	return err.WithStage(apperrors.StageSandbox)
}

// resolveExisting evaluates symlinks on the longest existing prefix of path
// and re-appends the components that do not exist yet.
func resolveExisting(path string) (string, error) {
	var missing []string
	current := path
	for {
		_, err := os.Lstat(current)
		if err == nil {
			resolved, err := filepath.EvalSymlinks(current)
			if err != nil {
				return "", fmt.Errorf("failed to resolve path: %w", err)
			}
			return filepath.Join(append([]string{resolved}, missing...)...), nil
		}
		if !isMissing(err) {
			return "", fmt.Errorf("failed to stat path: %w", err)
		}
		parent := filepath.Dir(current)
		if parent == current {
			return path, nil
		}
		missing = append([]string{filepath.Base(current)}, missing...)
		current = parent
	}
}
