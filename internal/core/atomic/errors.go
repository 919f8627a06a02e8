package atomic

import (
	"errors"
	"fmt"
	"io/fs"
)

// pathError is a sentinel that also matches an io/fs sentinel, so callers
// classifying with errors.Is(err, fs.ErrExist) see it without knowing this
// package.
type pathError struct {
	msg  string
	also error
}

func (e *pathError) Error() string        { return e.msg }
func (e *pathError) Is(target error) bool { return target == e.also }

var (
	ErrDestinationExists error = &pathError{"destination already exists", fs.ErrExist}
	ErrSourceNotFound    error = &pathError{"source not found", fs.ErrNotExist}
	ErrInvalidPath       error = &pathError{"invalid path", fs.ErrInvalid}

	// ErrFinished is returned by a SafeWriter used after Commit or Cleanup
	ErrFinished = errors.New("writer already finished")
)

// MoveError records which step of Move failed
type MoveError struct {
	Step string
	Src  string
	Dst  string
	Err  error
}

func (e *MoveError) Error() string {
	return fmt.Sprintf("move %q -> %q: %s: %v", e.Src, e.Dst, e.Step, e.Err)
}

func (e *MoveError) Unwrap() error { return e.Err }

// CleanupError is returned when a staged temp file cannot be removed
type CleanupError struct {
	Path string
	Err  error
}

func (e *CleanupError) Error() string {
	return fmt.Sprintf("remove staged %q: %v", e.Path, e.Err)
}

func (e *CleanupError) Unwrap() error { return e.Err }

func IsDestinationExists(err error) bool {
	return errors.Is(err, ErrDestinationExists)
}
