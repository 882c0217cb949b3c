// Package version exposes build identification for the repokit binary.
// Release builds stamp the variables below with -ldflags; development builds
// fall back to whatever the Go toolchain embedded.
package version

import (
	"fmt"
	"runtime"
	"runtime/debug"
	"strings"
)

// Set at build time:
//
//	go build -ldflags "-X github.com/repokit/repokit/internal/version.Version=v1.2.0 \
//	  -X github.com/repokit/repokit/internal/version.GitCommit=$(git rev-parse HEAD)"
var (
	Version   = "dev"
	GitCommit = "unknown"
	BuildTime = "unknown"
)

// Info bundles everything the version command prints.
type Info struct {
	Version   string `json:"version"`
	GitCommit string `json:"git_commit"`
	BuildTime string `json:"build_time,omitempty"`
	GoVersion string `json:"go_version"`
	Platform  string `json:"platform"`
}

// Get resolves the build identification, preferring ldflags values and
// falling back to the embedded VCS metadata.
func Get() Info {
	return Info{
		Version:   resolveVersion(),
		GitCommit: resolveCommit(),
		BuildTime: resolveOptional(BuildTime),
		GoVersion: runtime.Version(),
		Platform:  fmt.Sprintf("%s/%s", runtime.GOOS, runtime.GOARCH),
	}
}

// Short returns a one-line version string for log headers and --version.
func Short() string {
	info := Get()
	if info.GitCommit != "unknown" && len(info.GitCommit) >= 7 {
		return fmt.Sprintf("%s (%s)", info.Version, info.GitCommit[:7])
	}
	return info.Version
}

// Detailed returns the multi-line form used by the version command.
func Detailed() string {
	info := Get()
	lines := []string{
		fmt.Sprintf("Version:  %s", info.Version),
		fmt.Sprintf("Commit:   %s", info.GitCommit),
	}
	if info.BuildTime != "" {
		lines = append(lines, fmt.Sprintf("Built:    %s", info.BuildTime))
	}
	lines = append(lines,
		fmt.Sprintf("Go:       %s", info.GoVersion),
		fmt.Sprintf("Platform: %s", info.Platform),
	)
	return strings.Join(lines, "\n")
}

func resolveVersion() string {
	if Version != "" && Version != "dev" {
		return Version
	}
	if info, ok := debug.ReadBuildInfo(); ok {
		if info.Main.Version != "" && info.Main.Version != "(devel)" {
			return info.Main.Version
		}
	}
	return "dev"
}

func resolveCommit() string {
	if GitCommit != "" && GitCommit != "unknown" {
		return GitCommit
	}
	if info, ok := debug.ReadBuildInfo(); ok {
		for _, setting := range info.Settings {
			if setting.Key == "vcs.revision" {
				return setting.Value
			}
		}
	}
	return "unknown"
}

func resolveOptional(v string) string {
	if v == "unknown" {
		return ""
	}
	return v
}
