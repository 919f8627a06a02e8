package xdg

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"time"
)

const (
	trashInfoHeader = "[Trash Info]"
	trashInfoExt    = ".trashinfo"
	timeFormat      = "2006-01-02T15:04:05"
)

var errMalformedInfo = errors.New("malformed trash info")

// TrashInfo is the content of a .trashinfo file
type TrashInfo struct {
	// Path is the original path, absolute or relative to MountRoot
	Path string

	DeletionDate time.Time

	// MountRoot resolves relative paths in external trashes
	MountRoot string
}

// ParseInfo reads the key/value body of a .trashinfo file
func ParseInfo(r io.Reader) (*TrashInfo, error) {
	scanner := bufio.NewScanner(r)
	info := &TrashInfo{}
	var headerFound bool

	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		if line == trashInfoHeader {
			headerFound = true
			continue
		}
		if !headerFound {
			continue
		}

		key, value, ok := strings.Cut(line, "=")
		if !ok {
			continue
		}
		switch strings.TrimSpace(key) {
		case "Path":
			p, err := url.PathUnescape(strings.TrimSpace(value))
			if err != nil {
				return nil, fmt.Errorf("%w: Path encoding: %v", errMalformedInfo, err)
			}
			info.Path = p
		case "DeletionDate":
			date, err := time.ParseInLocation(timeFormat, strings.TrimSpace(value), time.Local)
			if err != nil {
				return nil, fmt.Errorf("%w: DeletionDate: %v", errMalformedInfo, err)
			}
			info.DeletionDate = date
		}
	}
	if err := scanner.Err(); err != nil {
		return nil, err
	}

	switch {
	case !headerFound:
		return nil, fmt.Errorf("%w: missing %s header", errMalformedInfo, trashInfoHeader)
	case info.Path == "":
		return nil, fmt.Errorf("%w: missing Path", errMalformedInfo)
	case info.DeletionDate.IsZero():
		return nil, fmt.Errorf("%w: missing DeletionDate", errMalformedInfo)
	}
	return info, nil
}

// AbsolutePath resolves a relative Path against the mount root
func (i *TrashInfo) AbsolutePath() string {
	if filepath.IsAbs(i.Path) || i.MountRoot == "" {
		return i.Path
	}
	return filepath.Join(i.MountRoot, i.Path)
}

// relativePath is what external trashes store
func (i *TrashInfo) relativePath() string {
	if i.MountRoot == "" || !filepath.IsAbs(i.Path) {
		return i.Path
	}
	rel, err := filepath.Rel(i.MountRoot, i.Path)
	if err != nil {
		return i.Path
	}
	return rel
}

// Save writes the info file. It refuses to replace an existing one; the
// exclusive create is what reserves the trash name.
func (i *TrashInfo) Save(path string) error {
	var b strings.Builder
	fmt.Fprintln(&b, trashInfoHeader)
	fmt.Fprintf(&b, "Path=%s\n", encodeTrashPath(i.relativePath()))
	fmt.Fprintf(&b, "DeletionDate=%s\n", i.DeletionDate.In(time.Local).Format(timeFormat))

	f, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0o600)
	if err != nil {
		return err
	}
	defer f.Close()

	if _, err := f.WriteString(b.String()); err != nil {
		os.Remove(path)
		return fmt.Errorf("write info file: %w", err)
	}
	return nil
}

// encodeTrashPath percent-encodes each segment, keeping slashes
func encodeTrashPath(path string) string {
	parts := strings.Split(path, "/")
	for i, part := range parts {
		parts[i] = url.PathEscape(part)
	}
	return strings.Join(parts, "/")
}

func loadTrashInfo(path, mountRoot string) (*TrashInfo, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	info, err := ParseInfo(f)
	if err != nil {
		return nil, err
	}
	info.MountRoot = mountRoot
	return info, nil
}
