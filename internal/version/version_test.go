package version

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestParseTime(t *testing.T) {
	testCases := []struct {
		in   string
		want time.Time
	}{
		{"2026-03-01T10:00:00Z", time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)},
		{"2026-03-01T10:00:00", time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)},
		{"2026-03-01 10:00:00", time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)},
		{"unknown", time.Time{}},
		{"", time.Time{}},
		{"yesterday", time.Time{}},
	}
	for _, tc := range testCases {
		t.Run(tc.in, func(t *testing.T) {
			assert.True(t, tc.want.Equal(parseTime(tc.in)))
		})
	}
}

func TestShort(t *testing.T) {
	assert.Equal(t, "v1.2.0 (3f2a9c1)", BuildInfo{Version: "v1.2.0", GitCommit: "3f2a9c1d004e"}.Short())
	assert.Equal(t, "dev", BuildInfo{Version: "dev", GitCommit: "unknown"}.Short())
	assert.Equal(t, "dev (abcdefg) (dirty)", BuildInfo{Version: "dev", GitCommit: "abcdefg", Dirty: true}.Short())
}

func TestIsRelease(t *testing.T) {
	assert.True(t, BuildInfo{Version: "v0.3.1"}.IsRelease())
	assert.False(t, BuildInfo{Version: "dev"}.IsRelease())
	assert.False(t, BuildInfo{}.IsRelease())
}

func TestGetUsesLdflags(t *testing.T) {
	old := Version
	Version = "v9.9.9"
	defer func() { Version = old }()

	info := Get()
	assert.Equal(t, "v9.9.9", info.Version)
	assert.NotEmpty(t, info.GoVersion)
	assert.Contains(t, info.Platform, "/")
}
