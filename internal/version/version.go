// Package version reports the ralph build version.
package version

import (
	"fmt"
	"runtime"
	"runtime/debug"
	"strings"
	"time"
)

const defaultModule = "pkt.systems/ralph"

// buildVersion is set via -ldflags "-X pkt.systems/ralph/internal/version.buildVersion=...".
var buildVersion = ""

// Info describes the running binary.
type Info struct {
	Version   string
	Module    string
	Revision  string
	Dirty     bool
	GoVersion string
}

// String renders the one-line form printed by `ralph version`.
func (i Info) String() string {
	line := fmt.Sprintf("ralph %s (%s)", i.Version, i.GoVersion)
	if i.Revision != "" {
		line += " rev " + i.Revision
		if i.Dirty {
			line += "+dirty"
		}
	}
	return line
}

// Current returns the best available version string without a dirty suffix.
func Current() string {
	return Read().Version
}

// Read collects version details from the linker flag and build info.
func Read() Info {
	info, _ := debug.ReadBuildInfo()
	return fromBuildInfo(info, buildVersion)
}

func fromBuildInfo(info *debug.BuildInfo, override string) Info {
	out := Info{
		Version:   "v0.0.0-unknown",
		Module:    defaultModule,
		GoVersion: runtime.Version(),
	}
	if info != nil {
		if path := strings.TrimSpace(info.Main.Path); path != "" {
			out.Module = path
		}
		if info.GoVersion != "" {
			out.GoVersion = info.GoVersion
		}
		rev, stamp, dirty := vcsSettings(info)
		if len(rev) > 12 {
			rev = rev[:12]
		}
		out.Revision = rev
		out.Dirty = dirty
		switch v := strings.TrimSpace(info.Main.Version); {
		case v != "" && v != "(devel)":
			out.Version = v
		case rev != "" && !stamp.IsZero():
			out.Version = "v0.0.0-" + stamp.UTC().Format("20060102150405") + "-" + rev
		}
	}
	if v := strings.TrimSpace(override); v != "" {
		out.Version = v
	}
	out.Version = strings.TrimSuffix(out.Version, "+dirty")
	return out
}

func vcsSettings(info *debug.BuildInfo) (revision string, stamp time.Time, modified bool) {
	for _, setting := range info.Settings {
		switch setting.Key {
		case "vcs.revision":
			revision = setting.Value
		case "vcs.time":
			if parsed, err := time.Parse(time.RFC3339, setting.Value); err == nil {
				stamp = parsed
			}
		case "vcs.modified":
			modified = setting.Value == "true"
		}
	}
	return revision, stamp, modified
}
