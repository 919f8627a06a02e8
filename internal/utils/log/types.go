package log

import (
	"fmt"
	"strings"

	charmlog "github.com/charmbracelet/log"
)

type (
	Level  = charmlog.Level
	Styles = charmlog.Styles
)

const (
	DebugLevel = charmlog.DebugLevel
	InfoLevel  = charmlog.InfoLevel
	WarnLevel  = charmlog.WarnLevel
	ErrorLevel = charmlog.ErrorLevel
	FatalLevel = charmlog.FatalLevel

	// NoticeLevel is for lifecycle events that should show even when
	// warnings are filtered, such as a quota eviction
	NoticeLevel = ErrorLevel + 1
)

// LevelString is Level.String with the notice level added
func LevelString(l Level) string {
	if l == NoticeLevel {
		return "notice"
	}
	return l.String()
}

// ParseLevel accepts debug, info, warn and error. Empty means info.
func ParseLevel(s string) (Level, error) {
	if strings.TrimSpace(s) == "" {
		return InfoLevel, nil
	}
	l, err := charmlog.ParseLevel(s)
	if err != nil {
		return InfoLevel, fmt.Errorf("invalid log level %q", s)
	}
	return l, nil
}
