// Package version carries build metadata injected with -ldflags.
package version

import (
	"fmt"
	"strings"
)

// Set at build time, e.g.
//
//	-ldflags "-X focus-blocks/internal/version.AppVersion=v0.3.0"
var (
	AppVersion = "dev"
	GitCommit  = "unknown"
	BuildTime  = "unknown"
)

// Info describes the running binary.
type Info struct {
	Version   string `json:"version"`
	Commit    string `json:"commit"`
	BuildTime string `json:"buildTime"`
}

// Current returns the metadata of this binary with blanks filled in.
func Current() Info {
	return Info{
		Version:   orDefault(AppVersion, "dev"),
		Commit:    orDefault(GitCommit, "unknown"),
		BuildTime: orDefault(BuildTime, "unknown"),
	}
}

func (i Info) String() string {
	return fmt.Sprintf("focusblocks %s (commit %s, built %s)",
		orDefault(i.Version, "dev"), orDefault(i.Commit, "unknown"), orDefault(i.BuildTime, "unknown"))
}

// UserAgent identifies the CLI and popup to the daemon.
func (i Info) UserAgent() string {
	return "focusblocks/" + orDefault(i.Version, "dev")
}

// Dev reports whether this is an unreleased build.
func (i Info) Dev() bool {
	return orDefault(i.Version, "dev") == "dev"
}

func orDefault(value, fallback string) string {
	value = strings.TrimSpace(value)
	if value == "" {
		return fallback
	}
	return value
}
