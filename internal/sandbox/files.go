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

package sandbox

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
)

// ErrFileTooLarge is returned when a read exceeds the configured limit.
var ErrFileTooLarge = errors.New("file exceeds maximum size")

// Open opens p read-only.
func (g *Guard) Open(p Path) (*os.File, error) {
	return g.openFile(p, os.O_RDONLY, 0)
}

// Create creates or truncates p for writing. Missing parent directories
// inside the root are created.
func (g *Guard) Create(p Path) (*os.File, error) {
	if err := g.MkdirAll(p.Dir()); err != nil {
		return nil, err
	}
	return g.openFile(p, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0o644)
}

// MkdirAll creates p and any missing parents.
func (g *Guard) MkdirAll(p Path) error {
	if p.IsZero() {
		return fmt.Errorf("unresolved path")
	}
	return os.MkdirAll(p.abs, 0o755)
}

// ReadFile reads p in full. A positive limit bounds the number of bytes read.
func (g *Guard) ReadFile(p Path, limit int64) ([]byte, error) {
	f, err := g.Open(p)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	info, err := f.Stat()
	if err != nil {
		return nil, err
	}
	if info.IsDir() {
		return nil, fmt.Errorf("%s is a directory", p.abs)
	}
	if limit > 0 && info.Size() > limit {
		return nil, fmt.Errorf("%w of %d bytes: %s", ErrFileTooLarge, limit, p.abs)
	}

	var r io.Reader = f
	if limit > 0 {
		r = io.LimitReader(f, limit+1)
	}
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, err
	}
	if limit > 0 && int64(len(data)) > limit {
		return nil, fmt.Errorf("%w of %d bytes: %s", ErrFileTooLarge, limit, p.abs)
	}
	return data, nil
}

// WriteFile creates or truncates p and writes data to it.
func (g *Guard) WriteFile(p Path, data []byte) error {
	f, err := g.Create(p)
	if err != nil {
		return err
	}
	if _, err := f.Write(data); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}

// Join resolves elem relative to p, re-checking containment.
func (g *Guard) Join(p Path, elem ...string) (Path, error) {
	return g.Resolve(filepath.Join(append([]string{p.abs}, elem...)...))
}
