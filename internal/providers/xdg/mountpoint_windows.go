//go:build windows

package xdg

import (
	"path/filepath"
	"strings"
)

func mountPoint(path string) (string, error) {
	abs, err := filepath.Abs(path)
	if err != nil {
		return "", err
	}
	return filepath.VolumeName(abs) + `\`, nil
}

func sameDevice(a, b string) (bool, error) {
	return strings.EqualFold(filepath.VolumeName(a), filepath.VolumeName(b)), nil
}

func validExternalTrash(string) bool { return false }
