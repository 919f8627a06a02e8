//go:build !windows

package xdg

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"syscall"

	"github.com/moby/sys/mountinfo"
)

// mountPoint returns the longest mount point holding path
func mountPoint(path string) (string, error) {
	abs, err := filepath.Abs(path)
	if err != nil {
		return "", err
	}
	mounts, err := mountinfo.GetMounts(mountinfo.ParentsFilter(abs))
	if err != nil {
		return "", fmt.Errorf("failed to get mount info: %w", err)
	}
	longest := "/"
	for _, m := range mounts {
		if len(m.Mountpoint) > len(longest) {
			longest = m.Mountpoint
		}
	}
	return longest, nil
}

// sameDevice reports whether two existing paths share a device
func sameDevice(a, b string) (bool, error) {
	ia, err := os.Stat(a)
	if err != nil {
		return false, err
	}
	ib, err := os.Stat(b)
	if err != nil {
		return false, err
	}
	sa, ok1 := ia.Sys().(*syscall.Stat_t)
	sb, ok2 := ib.Sys().(*syscall.Stat_t)
	if !ok1 || !ok2 {
		return false, fmt.Errorf("no device information")
	}
	return sa.Dev == sb.Dev, nil
}

// validExternalTrash checks an existing $topdir trash the way the
// freedesktop.org trash layout demands: a real directory, sticky when shared
func validExternalTrash(path string) bool {
	info, err := os.Lstat(path)
	if err != nil {
		return false
	}
	if !info.IsDir() || info.Mode()&os.ModeSymlink != 0 {
		slog.Debug("not a usable trash directory", "path", path)
		return false
	}
	if filepath.Base(path) == ".Trash" && info.Mode()&os.ModeSticky == 0 {
		slog.Debug("missing sticky bit", "path", path)
		return false
	}
	return true
}
