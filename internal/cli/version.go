package cli

import (
	"fmt"
	"runtime"
	"runtime/debug"
	"strings"
)

const appURL = "https://github.com/babarot/kura"

// Version is stamped at build time
type Version struct {
	AppName   string
	Version   string
	Revision  string
	BuildDate string
}

// resolved fills an unstamped version from the module build info
func (v Version) resolved() Version {
	switch v.Version {
	case "", "unset", "unknown", "develop":
		if info, ok := debug.ReadBuildInfo(); ok && info.Main.Version != "" {
			v.Version = info.Main.Version
		}
	}
	return v
}

func (v Version) String() string {
	v = v.resolved()
	return fmt.Sprintf("%s %s (%s)", v.AppName, v.Version, v.Revision)
}

func (v Version) Print() string {
	v = v.resolved()
	var s strings.Builder
	fmt.Fprintf(&s, "%s - one file API over local disks, drives and buckets\n", v.AppName)
	fmt.Fprintf(&s, "%s\n\n", appURL)
	fmt.Fprintf(&s, "version:   %s\n", v.Version)
	fmt.Fprintf(&s, "revision:  %s\n", v.Revision)
	fmt.Fprintf(&s, "buildDate: %s\n", v.BuildDate)
	fmt.Fprintf(&s, "platform:  %s/%s %s\n", runtime.GOOS, runtime.GOARCH, runtime.Version())
	return s.String()
}
