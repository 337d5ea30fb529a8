// Package tempfile owns the on-disk artifacts of a single job. Every handle
// acquired through a Scope is released exactly once when the Scope closes.
package tempfile

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sync"

	"github.com/bnema/ytaudio/internal/infrastructure/logger"
)

type Kind int

const (
	KindFile Kind = iota
	KindDir
)

// Handle tracks one path owned by a job.
type Handle struct {
	path string
	kind Kind

	once sync.Once
	err  error
}

func (h *Handle) Path() string {
	return h.path
}

func (h *Handle) Kind() Kind {
	return h.kind
}

// Release deletes the path. A missing path is not an error and later calls
// return the result of the first one without touching the filesystem.
func (h *Handle) Release() error {
	h.once.Do(func() {
		var err error
		switch h.kind {
		case KindDir:
			err = os.RemoveAll(h.path)
		default:
			err = os.Remove(h.path)
		}
		if err != nil && !errors.Is(err, fs.ErrNotExist) {
			h.err = fmt.Errorf("remove %s: %w", h.path, err)
		}
	})
	return h.err
}

// Scope groups the handles of one job. It is not safe for concurrent use;
// a job runs sequentially.
type Scope struct {
	dir     string
	handles []*Handle
	closed  bool
}

// NewScope returns a scope rooted at dir. dir itself is not owned unless
// MkdirTemp is used.
func NewScope(dir string) *Scope {
	return &Scope{dir: dir}
}

func (s *Scope) Dir() string {
	return s.dir
}

// Acquire registers name (relative to the scope dir) without creating it.
func (s *Scope) Acquire(name string) *Handle {
	path := name
	if !filepath.IsAbs(name) {
		path = filepath.Join(s.dir, name)
	}
	return s.track(path, KindFile)
}

// MkdirTemp creates a unique directory under the scope dir, acquires it and
// makes it the new scope dir, so later Acquire calls land inside it.
func (s *Scope) MkdirTemp(pattern string) (*Handle, error) {
	path, err := os.MkdirTemp(s.dir, pattern)
	if err != nil {
		return nil, fmt.Errorf("create job directory: %w", err)
	}
	h := s.track(path, KindDir)
	s.dir = path
	return h, nil
}

// CreateTemp creates a unique 0600 file holding data verbatim. The handle is
// acquired before data is written so a failed write is still cleaned up.
func (s *Scope) CreateTemp(pattern string, data []byte) (*Handle, error) {
	f, err := os.CreateTemp(s.dir, pattern)
	if err != nil {
		return nil, fmt.Errorf("create temp file: %w", err)
	}
	h := s.track(f.Name(), KindFile)

	if err := f.Chmod(0600); err != nil {
		_ = f.Close()
		return nil, fmt.Errorf("chmod temp file: %w", err)
	}
	if _, err := f.Write(data); err != nil {
		_ = f.Close()
		return nil, fmt.Errorf("write temp file: %w", err)
	}
	if err := f.Close(); err != nil {
		return nil, fmt.Errorf("close temp file: %w", err)
	}
	return h, nil
}

// Len reports how many handles the scope tracks.
func (s *Scope) Len() int {
	return len(s.handles)
}

// Close releases every handle in reverse acquisition order. Failures are
// logged and never returned; a cleanup error must not replace a job result.
func (s *Scope) Close() {
	if s.closed {
		return
	}
	s.closed = true

	for i := len(s.handles) - 1; i >= 0; i-- {
		if err := s.handles[i].Release(); err != nil {
			logger.Warn.Printf("temp cleanup failed: %v", err)
		}
	}
	s.handles = nil
}

func (s *Scope) track(path string, kind Kind) *Handle {
	h := &Handle{path: path, kind: kind}
	s.handles = append(s.handles, h)
	return h
}
