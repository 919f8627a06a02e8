package atomic

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/google/uuid"
)

// SafeWriter stages content in a temporary file next to its destination.
// Nothing appears at the destination until Commit succeeds.
type SafeWriter struct {
	path     string
	file     *os.File
	finished bool
}

// NewSafeWriter creates the staging file for dst
func NewSafeWriter(dst string) (*SafeWriter, error) {
	dir, base := filepath.Split(dst)
	if base == "" {
		return nil, ErrInvalidPath
	}
	if dir == "" {
		dir = "."
	}
	path := filepath.Join(dir, fmt.Sprintf(".%s.%s.tmp", base, uuid.NewString()))
	f, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0o600)
	if err != nil {
		return nil, fmt.Errorf("create temp file: %w", err)
	}
	return &SafeWriter{path: path, file: f}, nil
}

// Path is the staging path
func (w *SafeWriter) Path() string { return w.path }

func (w *SafeWriter) Write(p []byte) (int, error) {
	if w.finished {
		return 0, ErrFinished
	}
	return w.file.Write(p)
}

// ReadFrom copies r into the staging file
func (w *SafeWriter) ReadFrom(r io.Reader) (int64, error) {
	if w.finished {
		return 0, ErrFinished
	}
	return io.Copy(w.file, r)
}

// Commit moves the staged file into place. Without overwrite an
// existing destination fails with ErrDestinationExists and the staged
// content is discarded.
func (w *SafeWriter) Commit(dst string, overwrite bool) (err error) {
	if w.finished {
		return ErrFinished
	}
	w.finished = true
	defer func() {
		if err != nil {
			_ = os.Remove(w.path)
		}
	}()

	if err := w.file.Sync(); err != nil {
		w.file.Close()
		return fmt.Errorf("sync file: %w", err)
	}
	if err := w.file.Close(); err != nil {
		return fmt.Errorf("close file: %w", err)
	}
	if err := os.Chmod(w.path, 0o644); err != nil {
		return err
	}

	if !overwrite {
		// a hard link never replaces an existing name
		if err := os.Link(w.path, dst); err != nil {
			if errors.Is(err, os.ErrExist) {
				return ErrDestinationExists
			}
			if _, statErr := os.Lstat(dst); statErr == nil {
				return ErrDestinationExists
			}
			return os.Rename(w.path, dst)
		}
		return os.Remove(w.path)
	}

	if err := os.Rename(w.path, dst); err != nil {
		return fmt.Errorf("rename to destination: %w", err)
	}
	return nil
}

// Cleanup discards the staged content. It is a no-op after Commit.
func (w *SafeWriter) Cleanup() error {
	if w.finished {
		return nil
	}
	w.finished = true
	w.file.Close()
	if err := os.Remove(w.path); err != nil && !errors.Is(err, os.ErrNotExist) {
		return &CleanupError{Path: w.path, Err: err}
	}
	return nil
}
