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

//go:build linux

package sandbox

import (
	"errors"
	"os"

	"golang.org/x/sys/unix"
)

// openFile opens p with openat2(RESOLVE_BENEATH) relative to the root so a
// symlink swapped in after Resolve cannot redirect the open outside of it.
// Kernels without openat2 fall back to a plain open of the resolved path.
func (g *Guard) openFile(p Path, flag int, perm os.FileMode) (*os.File, error) {
	if p.IsZero() {
		return nil, &os.PathError{Op: "open", Path: "", Err: os.ErrInvalid}
	}

	rootFD, err := unix.Open(g.root, unix.O_PATH|unix.O_DIRECTORY|unix.O_CLOEXEC, 0)
	if err != nil {
		return nil, &os.PathError{Op: "open", Path: g.root, Err: err}
	}
	defer unix.Close(rootFD)

	how := &unix.OpenHow{
		Flags:   uint64(flag | unix.O_CLOEXEC),
		Resolve: unix.RESOLVE_BENEATH | unix.RESOLVE_NO_MAGICLINKS,
	}
	if flag&os.O_CREATE != 0 {
		how.Mode = uint64(perm.Perm())
	}

	fd, err := unix.Openat2(rootFD, p.rel, how)
	switch {
	case errors.Is(err, unix.ENOSYS):
		return os.OpenFile(p.abs, flag, perm)
	case errors.Is(err, unix.EXDEV), errors.Is(err, unix.ELOOP):
		return nil, g.escape(p.abs, err)
	case err != nil:
		return nil, &os.PathError{Op: "openat2", Path: p.abs, Err: err}
	}
	return os.NewFile(uintptr(fd), p.abs), nil
}
