package config

import (
	"os"
	"path/filepath"
	"regexp"
	"slices"
	"strings"
	"time"

	"github.com/babarot/kura/internal/utils/duration"
	"github.com/go-playground/validator/v10"
	"github.com/gobwas/glob"
)

var sizePattern = regexp.MustCompile(`^\d+(B|KB|MB|GB|TB|PB)$`)

// validateSize validates the size format (e.g., "10MB", "1GB")
func validateSize(fl validator.FieldLevel) bool {
	return sizePattern.MatchString(strings.ToUpper(fl.Field().String()))
}

// validateDuration accepts the h/d/w/m/y syntax of utils/duration
func validateDuration(fl validator.FieldLevel) bool {
	_, err := duration.Parse(fl.Field().String())
	return err == nil
}

func validateGlob(fl validator.FieldLevel) bool {
	_, err := glob.Compile(fl.Field().String(), '/')
	return err == nil
}

func validateConflict(fl validator.FieldLevel) bool {
	value := strings.ToLower(fl.Field().String())
	return slices.Contains([]string{"rename", "fail", "overwrite"}, value)
}

// expandPath expands environment variables and "~" in paths
func expandPath(path string) (string, error) {
	if path == "" {
		return "", nil
	}
	if path == "~" || strings.HasPrefix(path, "~/") {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", err
		}
		path = filepath.Join(home, strings.TrimPrefix(path[1:], "/"))
	}

	path = os.ExpandEnv(path)

	abs, err := filepath.Abs(path)
	if err != nil {
		return "", err
	}
	return abs, nil
}

// Deprecation contains metadata about field deprecation
type Deprecation struct {
	DeprecatedAt time.Time
	RemovalDate  time.Time
	Alternative  string
	StrictMode   bool
}

var deprecations = map[string]Deprecation{
	"retention_days": {
		DeprecatedAt: time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC),
		RemovalDate:  time.Date(2026, 6, 1, 0, 0, 0, 0, time.UTC),
		Alternative:  "trash.retention",
	},
}

// validateDeprecated warns about deprecated fields and fails the
// retired ones
func validateDeprecated(fl validator.FieldLevel) bool {
	if fl.Field().IsZero() {
		return true
	}

	name := fl.FieldName()
	info, exists := deprecations[name]
	if !exists {
		printWarningDeprecated(name, nil)
		return true
	}

	if info.StrictMode || time.Now().After(info.RemovalDate) {
		printErrorDeprecated(name, info)
		return false
	}

	printWarningDeprecated(name, &info)
	return true
}
