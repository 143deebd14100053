package version

import (
	"runtime"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestGetVersionInfo(t *testing.T) {
	oldVersion, oldBuild, oldCommit := Version, BuildTime, Commit
	t.Cleanup(func() { Version, BuildTime, Commit = oldVersion, oldBuild, oldCommit })

	Version, BuildTime, Commit = "1.2.3", "2026-10-18", ""
	assert.Equal(t, "1.2.3", GetVersion())
	assert.Equal(t, "2026-10-18", GetBuildTime())
	assert.Equal(t, "marquee 1.2.3 (built 2026-10-18)", GetVersionInfo())

	t.Run("WithCommit", func(t *testing.T) {
		Commit = "abc123"
		assert.Equal(t, "marquee 1.2.3 (built 2026-10-18, commit abc123)", GetVersionInfo())
	})
}

func TestPlatform(t *testing.T) {
	assert.Equal(t, runtime.GOOS+"/"+runtime.GOARCH, Platform())
}
