package version

import (
	"fmt"
	"runtime"
	"runtime/debug"
	"strings"

	"golang.org/x/mod/semver"
)

var (
	// These variables are set at build time using -ldflags
	Version   = "dev"
	GitCommit = ""
	BuildTime = ""
	// Platform identifies the client to the server, e.g. "ios" or "android".
	Platform = runtime.GOOS
)

// Info represents version information.
type Info struct {
	Version   string `json:"version"`
	GitCommit string `json:"git_commit"`
	BuildTime string `json:"build_time"`
	GoVersion string `json:"go_version"`
	Platform  string `json:"platform"`
	IsRelease bool   `json:"is_release"`
	IsDirty   bool   `json:"is_dirty"`
}

// GetVersionInfo returns the version of the running binary, filling commit
// details from the embedded VCS stamp when ldflags left them empty.
func GetVersionInfo() *Info {
	info := &Info{
		Version:   Version,
		GitCommit: GitCommit,
		BuildTime: BuildTime,
		GoVersion: runtime.Version(),
		Platform:  Platform,
		IsRelease: IsValid(Version) && !strings.Contains(Version, "dirty"),
	}

	if buildInfo, ok := debug.ReadBuildInfo(); ok {
		for _, setting := range buildInfo.Settings {
			switch setting.Key {
			case "vcs.revision":
				if info.GitCommit == "" {
					info.GitCommit = setting.Value
				}
			case "vcs.modified":
				info.IsDirty = setting.Value == "true"
			case "vcs.time":
				if info.BuildTime == "" {
					info.BuildTime = setting.Value
				}
			}
		}
	}
	if len(info.GitCommit) > 7 {
		info.GitCommit = info.GitCommit[:7]
	}
	return info
}

// GetShortVersion returns the version with the short commit appended.
func GetShortVersion() string {
	info := GetVersionInfo()
	if info.GitCommit == "" {
		return info.Version
	}
	if info.IsDirty {
		return fmt.Sprintf("%s-%s-dirty", info.Version, info.GitCommit)
	}
	return fmt.Sprintf("%s-%s", info.Version, info.GitCommit)
}

// UserAgent returns the User-Agent string the client sends.
func UserAgent(app string) string {
	return fmt.Sprintf("%s/%s (%s)", app, Version, Platform)
}

// IsValid reports whether v is a semantic version, with or without the
// leading "v".
func IsValid(v string) bool {
	return semver.IsValid(canonical(v))
}

// Compare returns -1, 0 or 1 as a is older than, equal to or newer than b.
// An invalid version sorts before every valid one, so "dev" builds are
// always considered outdated by a server that sets a minimum.
func Compare(a, b string) int {
	return semver.Compare(canonical(a), canonical(b))
}

// AtLeast reports whether v is min or newer.
func AtLeast(v, min string) bool {
	return Compare(v, min) >= 0
}

func canonical(v string) string {
	if v != "" && !strings.HasPrefix(v, "v") {
		return "v" + v
	}
	return v
}
