// Package log builds the slog loggers used across kura. Records are
// rendered by charmbracelet/log.
package log

import (
	"context"
	"io"
	"log/slog"
	"os"

	"github.com/babarot/kura/internal/config"
	"github.com/babarot/kura/internal/env"
	charmlog "github.com/charmbracelet/log"
	"github.com/rs/xid"
)

// New creates a new logger with the given options
func New(opts ...Option) *slog.Logger {
	o := DefaultOptions()
	o.Apply(opts...)

	handler := charmlog.NewWithOptions(o.Writer, o.Options)
	handler.SetStyles(o.Styles)

	logger := slog.New(handler)
	if len(o.Attrs) > 0 {
		logger = logger.With(o.Attrs...)
	}
	if o.Default {
		charmlog.SetDefault(handler)
		slog.SetDefault(logger)
	}
	return logger
}

// NewRunID returns an id that tags every record of one invocation
func NewRunID() string {
	return xid.New().String()
}

// FromConfig builds the logger described by cfg. When logging is
// disabled records are dropped unless debug asks for them on stderr.
// The returned closer releases the log file.
func FromConfig(cfg config.LoggingConfig, runID string, debug bool, opts ...Option) (*slog.Logger, io.Closer, error) {
	level, err := ParseLevel(cfg.Level)
	if err != nil {
		return nil, nil, err
	}

	var (
		out    io.Writer = io.Discard
		closer io.Closer = nopCloser{}
	)
	switch {
	case cfg.Enabled:
		w, err := NewRotateWriter(env.KURA_LOG_PATH, cfg.Rotation)
		if err != nil {
			return nil, nil, err
		}
		out, closer = w, w
	case debug:
		out = os.Stderr
	}
	if debug {
		level = DebugLevel
	}

	base := []Option{
		UseLevel(level),
		UseOutput(out),
		UseReportTimestamp(cfg.Enabled),
		UseReportCaller(debug),
		UseFormatter(formatter(cfg.Format)),
		UseAttrs("run", runID),
	}
	return New(append(base, opts...)...), closer, nil
}

func formatter(name string) charmlog.Formatter {
	switch name {
	case "json":
		return charmlog.JSONFormatter
	case "logfmt":
		return charmlog.LogfmtFormatter
	default:
		return charmlog.TextFormatter
	}
}

type nopCloser struct{}

func (nopCloser) Close() error { return nil }

// Notice logs at NoticeLevel
func Notice(ctx context.Context, l *slog.Logger, msg string, args ...any) {
	l.Log(ctx, slog.Level(NoticeLevel), msg, args...)
}
