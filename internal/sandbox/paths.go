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
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"syscall"
	"unicode"
	"unicode/utf8"
)

const maxPathLength = 4096

var (
	errEmptyPath     = errors.New("path is empty")
	errNullByte      = errors.New("path contains a null byte")
	errInvalidUTF8   = errors.New("path is not valid UTF-8")
	errCombiningMark = errors.New("path contains a unicode combining mark")
)

// checkCandidate rejects raw path arguments that cannot name a file under
// the root, before any filesystem access.
func checkCandidate(candidate string) error {
	switch {
	case strings.TrimSpace(candidate) == "":
		return errEmptyPath
	case strings.IndexByte(candidate, 0) >= 0:
		return errNullByte
	case !utf8.ValidString(candidate):
		return errInvalidUTF8
	case len(candidate) > maxPathLength:
		return fmt.Errorf("path is longer than %d bytes", maxPathLength)
	}
	// Combining marks allow visually identical names for different files.
	if strings.IndexFunc(candidate, func(r rune) bool { return unicode.In(r, unicode.Mn, unicode.Mc, unicode.Me) }) >= 0 {
		return errCombiningMark
	}
	return nil
}

// within reports whether path is root or one of its descendants. Both must
// be cleaned absolute paths.
func within(root, path string) bool {
	rel, err := filepath.Rel(root, path)
	if err != nil {
		return false
	}
	return rel == "." || (rel != ".." && !strings.HasPrefix(rel, ".."+string(os.PathSeparator)))
}

// isMissing treats a non-directory parent like a missing one, so the
// remaining components are carried over unresolved.
func isMissing(err error) bool {
	return errors.Is(err, fs.ErrNotExist) || errors.Is(err, syscall.ENOTDIR)
}
