package env

import (
	"os"
	"path/filepath"
)

const (
	appName = "kura"

	defaultXDGConfigDirname = ".config"
	defaultXDGDataDirname   = ".local/share"
)

var (
	KURA_CONFIG_PATH string

	KURA_LOG_PATH string
)

func init() {
	// https://github.com/charmbracelet/log/issues/35
	os.Setenv("CLICOLOR_FORCE", "1")

	KURA_CONFIG_PATH = resolve("KURA_CONFIG_PATH", "XDG_CONFIG_HOME", defaultXDGConfigDirname, "config.yaml")
	KURA_LOG_PATH = resolve("KURA_LOG_PATH", "XDG_DATA_HOME", defaultXDGDataDirname, "debug.log")
}

// resolve follows https://specifications.freedesktop.org/basedir-spec/latest/
// unless the explicit variable is set
func resolve(explicit, xdgVar, fallback, file string) string {
	if p := os.Getenv(explicit); p != "" {
		return p
	}
	dir := os.Getenv(xdgVar)
	if dir == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			panic(err)
		}
		dir = filepath.Join(home, fallback)
	}
	return filepath.Join(dir, appName, file)
}
