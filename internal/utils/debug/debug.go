// Package debug prints the kura log file
package debug

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"

	"github.com/babarot/kura/internal/config"
	"github.com/mattn/go-isatty"
	"github.com/nxadm/tail"
)

var (
	ErrLoggingDisabled = errors.New("logging is not enabled in config")
	ErrNoLogFile       = errors.New("no log file exists yet")
)

// Logs writes the log file at path to w. With live it follows new
// records, as long as stdout is a terminal.
func Logs(w io.Writer, path string, cfg config.LoggingConfig, live bool) error {
	if live {
		return follow(w, path, cfg)
	}
	return show(w, path, cfg)
}

func follow(w io.Writer, path string, cfg config.LoggingConfig) error {
	if !cfg.Enabled {
		return fmt.Errorf("%w: enable logging for live debugging", ErrLoggingDisabled)
	}

	following := isatty.IsTerminal(os.Stdout.Fd())
	t, err := tail.TailFile(path, tail.Config{
		ReOpen: following,
		Follow: following,
		Poll:   true,
		Logger: tail.DiscardingLogger,
		Location: &tail.SeekInfo{
			Offset: 0,
			Whence: io.SeekEnd,
		},
	})
	if err != nil {
		if os.IsNotExist(err) {
			return ErrNoLogFile
		}
		return err
	}
	defer t.Cleanup()
	slog.Info("live tail started", "path", path)

	for line := range t.Lines {
		if line.Err != nil {
			return line.Err
		}
		fmt.Fprintln(w, line.Text)
	}
	return t.Err()
}

func show(w io.Writer, path string, cfg config.LoggingConfig) error {
	f, err := os.Open(path)
	if os.IsNotExist(err) {
		if !cfg.Enabled {
			return fmt.Errorf("%w: enable logging to create log files", ErrLoggingDisabled)
		}
		return ErrNoLogFile
	}
	if err != nil {
		return err
	}
	defer f.Close()

	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		fmt.Fprintln(w, scanner.Text())
	}
	return scanner.Err()
}
