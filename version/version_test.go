package version

import (
	"strings"
	"testing"
)

func saveAndRestore() func() {
	origVersion, origCommit, origBuildTime, origPlatform := Version, GitCommit, BuildTime, Platform
	return func() {
		Version = origVersion
		GitCommit = origCommit
		BuildTime = origBuildTime
		Platform = origPlatform
	}
}

func TestGetVersionInfoDefaults(t *testing.T) {
	defer saveAndRestore()()
	Version = "dev"

	info := GetVersionInfo()
	if info.Version != "dev" {
		t.Errorf("expected version 'dev', got %q", info.Version)
	}
	if info.IsRelease {
		t.Error("dev should not be a release")
	}
	if info.GoVersion == "" {
		t.Error("expected go version")
	}
}

func TestGetVersionInfoRelease(t *testing.T) {
	defer saveAndRestore()()
	Version = "2.4.1"
	GitCommit = "abc1234def"
	Platform = "ios"

	info := GetVersionInfo()
	if !info.IsRelease {
		t.Error("2.4.1 should be a release")
	}
	if info.GitCommit != "abc1234" {
		t.Errorf("expected commit truncated to 'abc1234', got %q", info.GitCommit)
	}
	if info.Platform != "ios" {
		t.Errorf("expected platform ios, got %q", info.Platform)
	}
}

func TestGetShortVersion(t *testing.T) {
	defer saveAndRestore()()
	Version = "1.0.0"
	GitCommit = "abc1234"

	if got := GetShortVersion(); !strings.HasPrefix(got, "1.0.0-abc1234") {
		t.Errorf("unexpected short version %q", got)
	}
}

func TestUserAgent(t *testing.T) {
	defer saveAndRestore()()
	Version = "3.1.0"
	Platform = "android"

	if got := UserAgent("shopkit"); got != "shopkit/3.1.0 (android)" {
		t.Errorf("unexpected user agent %q", got)
	}
}

func TestCompare(t *testing.T) {
	tests := []struct {
		a, b string
		want int
	}{
		{"1.2.0", "1.2.0", 0},
		{"1.2.0", "v1.2.0", 0},
		{"1.10.0", "1.9.3", 1},
		{"2.0.0", "10.0.0", -1},
		{"dev", "1.0.0", -1},
		{"1.0.0-beta.1", "1.0.0", -1},
	}
	for _, tt := range tests {
		t.Run(tt.a+"_vs_"+tt.b, func(t *testing.T) {
			if got := Compare(tt.a, tt.b); got != tt.want {
				t.Errorf("Compare(%q, %q) = %d, want %d", tt.a, tt.b, got, tt.want)
			}
		})
	}
}

func TestAtLeast(t *testing.T) {
	if !AtLeast("3.0.0", "2.9.9") {
		t.Error("3.0.0 should satisfy minimum 2.9.9")
	}
	if AtLeast("2.9.9", "3.0.0") {
		t.Error("2.9.9 should not satisfy minimum 3.0.0")
	}
	if AtLeast("dev", "0.0.1") {
		t.Error("dev should never satisfy a minimum")
	}
}
