package main

import (
	"io"
	"os"
	"sync"
)

// Host is the boundary between the VM and the outside world: every syscall
// opcode that touches real files goes through it, so embedders can sandbox
// or fake the filesystem entirely (SPEC_FULL.md §3.3). Grounded on gothird's
// own pattern of injecting io.Reader/io.Writer via options (options.go,
// WithInput/WithOutput) rather than reaching for os.Stdin/os.Open directly.
type Host interface {
	// Open opens path with the given C open(2)-style flags (spec.md's OPEN
	// syscall passes its second argument through unexamined) and returns a
	// file descriptor usable with Read/Close, or an error.
	Open(path string, flags int64) (fd int, err error)
	// Read reads up to len(buf) bytes from fd.
	Read(fd int, buf []byte) (n int, err error)
	// Close closes fd.
	Close(fd int) error
}

// osHost is the default Host, backed by the real filesystem. Descriptors it
// hands out are small ints private to this Host, distinct from the OS's own
// fd numbers, so a hosted program can never address a file it didn't open.
type osHost struct {
	mu    sync.Mutex
	next  int
	files map[int]*os.File
}

func (h *osHost) Open(path string, flags int64) (int, error) {
	f, err := os.OpenFile(path, int(flags), 0644)
	if err != nil {
		return -1, err
	}
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.files == nil {
		h.files = make(map[int]*os.File)
	}
	h.next++
	fd := h.next
	h.files[fd] = f
	return fd, nil
}

func (h *osHost) Read(fd int, buf []byte) (int, error) {
	f := h.lookup(fd)
	if f == nil {
		return 0, os.ErrClosed
	}
	n, err := f.Read(buf)
	if err == io.EOF {
		err = nil
	}
	return n, err
}

func (h *osHost) Close(fd int) error {
	h.mu.Lock()
	f := h.files[fd]
	delete(h.files, fd)
	h.mu.Unlock()
	if f == nil {
		return os.ErrClosed
	}
	return f.Close()
}

func (h *osHost) lookup(fd int) *os.File {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.files[fd]
}
