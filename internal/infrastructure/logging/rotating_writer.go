package logging

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"sync"
)

const megabyte = 1 << 20

// RotatingWriter appends to a log file and shifts it into numbered backups
// once a write would push it past maxBytes. Generation 1 is the newest
// backup; generations beyond keep are discarded.
type RotatingWriter struct {
	mu       sync.Mutex
	path     string
	maxBytes int64
	keep     int
	out      *os.File
	written  int64
}

func NewRotatingWriter(path string, maxSizeMB, maxBackups int) (*RotatingWriter, error) {
	if strings.TrimSpace(path) == "" {
		return nil, errors.New("log file path is required")
	}
	if maxSizeMB <= 0 {
		maxSizeMB = 100
	}
	return newRotatingWriter(path, int64(maxSizeMB)*megabyte, maxBackups)
}

func newRotatingWriter(path string, maxBytes int64, keep int) (*RotatingWriter, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("create log dir: %w", err)
	}
	w := &RotatingWriter{path: path, maxBytes: maxBytes, keep: max(keep, 0)}
	if err := w.open(os.O_APPEND); err != nil {
		return nil, err
	}
	return w, nil
}

func (w *RotatingWriter) Write(p []byte) (int, error) {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.out == nil {
		if err := w.open(os.O_APPEND); err != nil {
			return 0, err
		}
	}
	// An oversized record still lands in a fresh file rather than looping.
	if w.maxBytes > 0 && w.written > 0 && w.written+int64(len(p)) > w.maxBytes {
		if err := w.roll(); err != nil {
			return 0, fmt.Errorf("rotate %s: %w", w.path, err)
		}
	}
	n, err := w.out.Write(p)
	w.written += int64(n)
	return n, err
}

func (w *RotatingWriter) Close() error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.out == nil {
		return nil
	}
	err := w.out.Close()
	w.out, w.written = nil, 0
	return err
}

func (w *RotatingWriter) roll() error {
	if err := w.out.Close(); err != nil {
		return err
	}
	w.out = nil
	if w.keep > 0 {
		if err := removeIfExists(w.generation(w.keep)); err != nil {
			return err
		}
		for gen := w.keep - 1; gen >= 0; gen-- {
			if err := renameIfExists(w.generation(gen), w.generation(gen+1)); err != nil {
				return err
			}
		}
	}
	return w.open(os.O_TRUNC)
}

func (w *RotatingWriter) open(mode int) error {
	file, err := os.OpenFile(w.path, os.O_CREATE|os.O_WRONLY|mode, 0o644)
	if err != nil {
		return err
	}
	info, err := file.Stat()
	if err != nil {
		_ = file.Close()
		return err
	}
	w.out, w.written = file, info.Size()
	return nil
}

// generation 0 is the live file.
func (w *RotatingWriter) generation(gen int) string {
	if gen == 0 {
		return w.path
	}
	return w.path + "." + strconv.Itoa(gen)
}

func renameIfExists(from, to string) error {
	if err := os.Rename(from, to); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return err
	}
	return nil
}

func removeIfExists(path string) error {
	if err := os.Remove(path); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return err
	}
	return nil
}
