package log

import (
	"io"
	"os"

	charmlog "github.com/charmbracelet/log"
)

// Options represents logger configuration options
type Options struct {
	charmlog.Options
	Writer  io.Writer
	Styles  *Styles
	Default bool
	Attrs   []any
}

// DefaultOptions returns the default logger options
func DefaultOptions() *Options {
	return &Options{
		Options: charmlog.Options{
			Level:           InfoLevel,
			ReportTimestamp: false,
		},
		Writer: os.Stderr,
		Styles: newStyles(),
	}
}

// Apply applies the given options
func (o *Options) Apply(opts ...Option) {
	for _, opt := range opts {
		opt(o)
	}
}

type Option func(*Options)

func UseLevel(l Level) Option {
	return func(o *Options) { o.Level = l }
}

func UseOutput(w io.Writer) Option {
	return func(o *Options) { o.Writer = w }
}

func UseReportTimestamp(report bool) Option {
	return func(o *Options) { o.ReportTimestamp = report }
}

func UseReportCaller(report bool) Option {
	return func(o *Options) { o.ReportCaller = report }
}

func UseFormatter(f charmlog.Formatter) Option {
	return func(o *Options) { o.Formatter = f }
}

// UseAttrs attaches key value pairs to every record
func UseAttrs(args ...any) Option {
	return func(o *Options) { o.Attrs = append(o.Attrs, args...) }
}

func AsDefault() Option {
	return func(o *Options) { o.Default = true }
}
