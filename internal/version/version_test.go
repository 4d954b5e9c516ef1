package version

import (
	"runtime/debug"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestFromBuildInfo(t *testing.T) {
	bi := &debug.BuildInfo{
		Main: debug.Module{Path: "evalgo.org/sitesync", Version: "v1.2.0"},
		Settings: []debug.BuildSetting{
			{Key: "vcs.revision", Value: "abc123"},
			{Key: "vcs.time", Value: "2026-01-02T03:04:05Z"},
		},
	}

	info := Info{Version: "dev", GitCommit: "unknown", BuildTime: "unknown"}
	fromBuildInfo(&info, bi)
	assert.Equal(t, "v1.2.0", info.Version)
	assert.Equal(t, "abc123", info.GitCommit)
	assert.Equal(t, "2026-01-02T03:04:05Z", info.BuildTime)

	// ldflags values win
	info = Info{Version: "v2.0.0", GitCommit: "fff", BuildTime: "today"}
	fromBuildInfo(&info, bi)
	assert.Equal(t, "v2.0.0", info.Version)
	assert.Equal(t, "fff", info.GitCommit)
}

func TestFromBuildInfo_Devel(t *testing.T) {
	info := Info{Version: "dev"}
	fromBuildInfo(&info, &debug.BuildInfo{Main: debug.Module{Version: "(devel)"}})
	assert.Equal(t, "dev", info.Version)
}

func TestInfoString(t *testing.T) {
	info := Info{Version: "v1", GitCommit: "c", BuildTime: "t", Platform: "linux/amd64"}
	assert.Equal(t, "SiteSync v1 (c) built at t on linux/amd64", info.String())
}
