package sbuf

import (
	"fmt"
	"os"

	"golang.org/x/sys/unix"
)

// MapFile maps a file read-only and returns an owning buffer over its
// contents with an empty provenance path. The mapping is released by
// Close once all borrowed views are gone. Empty files yield an empty
// owning buffer rather than a mapping.
func MapFile(path string) (*Buffer, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("sbuf: map %s: %w", path, err)
	}
	defer f.Close()

	st, err := f.Stat()
	if err != nil {
		return nil, fmt.Errorf("sbuf: stat %s: %w", path, err)
	}
	size := st.Size()
	if size == 0 {
		return New(Address{}, nil, 0), nil
	}

	data, err := unix.Mmap(int(f.Fd()), 0, int(size), unix.PROT_READ, unix.MAP_SHARED)
	if err != nil {
		return nil, fmt.Errorf("sbuf: mmap %s: %w", path, err)
	}

	b := New(Address{}, data, len(data))
	b.release = func() error {
		return unix.Munmap(data)
	}
	return b, nil
}
