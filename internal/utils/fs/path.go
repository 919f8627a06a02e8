package fs

import (
	"path"
	"strings"
)

// IsUnsafePath reports whether raw names something that must never be
// deleted as a whole: a provider root, the current or parent folder.
// Id addresses are never unsafe.
func IsUnsafePath(raw string) bool {
	if strings.HasPrefix(raw, "id:") {
		return false
	}
	if raw == "" || strings.HasPrefix(raw, "//") {
		return true
	}

	// the original base keeps "." and ".." before cleaning folds them
	if base := path.Base(raw); base == "." || base == ".." {
		return true
	}
	if cleaned := path.Clean(raw); cleaned == "/" {
		return true
	}

	// s3://bucket and s3://bucket/ are bucket roots
	if _, rest, ok := strings.Cut(raw, "://"); ok {
		_, key, _ := strings.Cut(rest, "/")
		return strings.Trim(key, "/") == ""
	}
	return false
}
