package atomic

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	cp "github.com/otiai10/copy"
)

// MoveOptions specifies options for move operations
type MoveOptions struct {
	// Overwrite replaces an existing regular file at the destination
	Overwrite bool
}

// Move renames src to dst, falling back to copy and delete when the
// two sit on different devices
func Move(src, dst string, opts MoveOptions) error {
	if src == "" || dst == "" {
		return ErrInvalidPath
	}
	if _, err := os.Lstat(src); err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return ErrSourceNotFound
		}
		return err
	}

	if err := os.MkdirAll(filepath.Dir(dst), 0o755); err != nil {
		return &MoveError{Step: "create_parent", Src: src, Dst: dst, Err: err}
	}

	if fi, err := os.Lstat(dst); err == nil {
		if !opts.Overwrite || fi.IsDir() {
			return ErrDestinationExists
		}
	}

	if err := os.Rename(src, dst); err == nil {
		return nil
	}
	return copyAndDelete(src, dst)
}

func copyAndDelete(src, dst string) error {
	opts := cp.Options{
		OnSymlink: func(string) cp.SymlinkAction {
			return cp.Shallow
		},
		PreserveTimes: true,
		Sync:          true,
	}

	if err := cp.Copy(src, dst, opts); err != nil {
		return &MoveError{Step: "copy", Src: src, Dst: dst, Err: err}
	}

	if err := os.RemoveAll(src); err != nil {
		if rmErr := os.RemoveAll(dst); rmErr != nil {
			return &MoveError{
				Step: "cleanup",
				Src:  src,
				Dst:  dst,
				Err:  fmt.Errorf("failed to remove both source and destination: %w", errors.Join(err, rmErr)),
			}
		}
		return &MoveError{Step: "remove_source", Src: src, Dst: dst, Err: err}
	}
	return nil
}
