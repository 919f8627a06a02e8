package log

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/babarot/kura/internal/config"
	"github.com/docker/go-units"
)

const defaultMaxSize = 10 * units.MB

// RotateWriter is a log file that is renamed aside once it grows past
// its size limit. At most maxFiles old files are kept.
type RotateWriter struct {
	mu       sync.Mutex
	file     *os.File
	size     int64
	maxSize  int64
	maxFiles int
	path     string
	now      func() time.Time
}

func NewRotateWriter(path string, cfg config.RotationConfig) (*RotateWriter, error) {
	maxSize := int64(defaultMaxSize)
	if cfg.MaxSize != "" {
		n, err := units.FromHumanSize(cfg.MaxSize)
		if err != nil {
			return nil, fmt.Errorf("invalid max size format: %w", err)
		}
		maxSize = n
	}

	w := &RotateWriter{
		maxSize:  maxSize,
		maxFiles: cfg.MaxFiles,
		path:     path,
		now:      time.Now,
	}
	if err := w.openFile(); err != nil {
		return nil, err
	}
	return w, nil
}

func (w *RotateWriter) Write(p []byte) (int, error) {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.size > 0 && w.size+int64(len(p)) > w.maxSize {
		if err := w.rotate(); err != nil {
			return 0, err
		}
	}
	n, err := w.file.Write(p)
	w.size += int64(n)
	return n, err
}

func (w *RotateWriter) Close() error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.file == nil {
		return nil
	}
	err := w.file.Close()
	w.file = nil
	return err
}

func (w *RotateWriter) openFile() error {
	if err := os.MkdirAll(filepath.Dir(w.path), 0o755); err != nil {
		return fmt.Errorf("failed to create log directory: %w", err)
	}
	f, err := os.OpenFile(w.path, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
	if err != nil {
		return err
	}
	info, err := f.Stat()
	if err != nil {
		f.Close()
		return err
	}
	w.file = f
	w.size = info.Size()
	return nil
}

// rotate is called with w.mu held
func (w *RotateWriter) rotate() error {
	if w.file != nil {
		w.file.Close()
		w.file = nil
	}

	backup := fmt.Sprintf("%s.%s", w.path, w.now().Format("20060102-150405.000000"))
	if err := os.Rename(w.path, backup); err != nil && !os.IsNotExist(err) {
		return err
	}
	if err := w.removeOldFiles(); err != nil {
		return err
	}
	return w.openFile()
}

func (w *RotateWriter) removeOldFiles() error {
	if w.maxFiles <= 0 {
		return nil
	}
	dir, base := filepath.Dir(w.path), filepath.Base(w.path)

	entries, err := os.ReadDir(dir)
	if err != nil {
		return err
	}
	var backups []string
	for _, e := range entries {
		if !e.IsDir() && strings.HasPrefix(e.Name(), base+".") {
			backups = append(backups, e.Name())
		}
	}
	if len(backups) <= w.maxFiles {
		return nil
	}
	sort.Strings(backups)
	for _, name := range backups[:len(backups)-w.maxFiles] {
		if err := os.Remove(filepath.Join(dir, name)); err != nil {
			return err
		}
	}
	return nil
}
