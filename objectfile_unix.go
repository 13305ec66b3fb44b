//go:build unix

package dwarfinc

import (
	"fmt"

	"golang.org/x/sys/unix"
)

// PwritevAll issues one pwritev(2) so the NOP Padding Writer's
// prev-padding/payload/next-padding/terminator iovecs land in a single
// syscall (spec.md §4.6), matching how the teacher gates platform-specific
// paths behind build tags (filewatcher_unix.go / filewatcher_darwin.go /
// filewatcher_windows.go) rather than runtime branching.
func (fo *FileObjectFile) PwritevAll(iovecs [][]byte, offset uint64) error {
	fo.mu.Lock()
	defer fo.mu.Unlock()

	total := 0
	uiov := make([]unix.Iovec, 0, len(iovecs))
	for _, b := range iovecs {
		if len(b) == 0 {
			continue
		}
		var v unix.Iovec
		v.SetLen(len(b))
		v.Base = &b[0]
		uiov = append(uiov, v)
		total += len(b)
	}
	if len(uiov) == 0 {
		return nil
	}

	n, err := unix.Pwritev(int(fo.f.Fd()), uiov, int64(offset))
	if err != nil {
		return ioError("", fmt.Sprintf("pwritev at %d: %v", offset, err))
	}
	if n != total {
		return ioError("", fmt.Sprintf("short pwritev at %d: wrote %d of %d", offset, n, total))
	}
	return nil
}
