package internal

import (
	"runtime/debug"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestFromDebug_LinkTimeVersionWins(t *testing.T) {
	bi := &debug.BuildInfo{GoVersion: "go1.25.7", Main: debug.Module{Version: "v0.0.0-abc"}}

	info := fromDebug(BuildInfo{Version: "1.2.3"}, bi)
	assert.Equal(t, "1.2.3", info.Version)
	assert.Equal(t, "go1.25.7", info.Go)
}

func TestFromDebug_DevelAndVCS(t *testing.T) {
	bi := &debug.BuildInfo{
		Main: debug.Module{Version: "(devel)"},
		Settings: []debug.BuildSetting{
			{Key: "vcs.revision", Value: "0123456789abcdef0123"},
			{Key: "vcs.modified", Value: "true"},
		},
	}

	info := fromDebug(BuildInfo{Go: "go1.25.7"}, bi)
	assert.Equal(t, "dev", info.Version)
	assert.Equal(t, "go1.25.7", info.Go)
	assert.Equal(t, map[string]any{
		"version":  "dev",
		"go":       "go1.25.7",
		"revision": "0123456789ab+dirty",
	}, info.Fields())
}

func TestReadBuildInfo_NeverEmpty(t *testing.T) {
	info := ReadBuildInfo()
	assert.NotEmpty(t, info.Version)
	assert.NotEmpty(t, info.Go)
}
