package version

import (
	"strings"
	"testing"
)

func TestCurrentUsesBuildVars(t *testing.T) {
	origVersion, origCommit, origBuild := AppVersion, GitCommit, BuildTime
	t.Cleanup(func() {
		AppVersion, GitCommit, BuildTime = origVersion, origCommit, origBuild
	})

	AppVersion = " v1.2.3 "
	GitCommit = "abc1234"
	BuildTime = ""

	info := Current()
	if info.Version != "v1.2.3" || info.Commit != "abc1234" || info.BuildTime != "unknown" {
		t.Fatalf("unexpected metadata: %+v", info)
	}
	if info.Dev() {
		t.Fatalf("tagged build should not report dev")
	}
}

func TestInfoStringIncludesAllFields(t *testing.T) {
	text := Info{Version: "v1.2.3", Commit: "abc1234", BuildTime: "2026-02-22T12:00:00Z"}.String()
	for _, token := range []string{"focusblocks", "v1.2.3", "abc1234", "2026-02-22T12:00:00Z"} {
		if !strings.Contains(text, token) {
			t.Fatalf("expected %q in %q", token, text)
		}
	}
}

func TestUserAgent(t *testing.T) {
	if got := (Info{}).UserAgent(); got != "focusblocks/dev" {
		t.Fatalf("unexpected user agent %q", got)
	}
	if !(Info{}).Dev() {
		t.Fatalf("empty version should be dev")
	}
}
