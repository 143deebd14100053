package version

import (
	"fmt"
	"runtime"
)

// These variables are populated at build time using -ldflags
var (
	// Version is the semantic version of the application
	Version = "dev"

	// BuildTime is the time the binary was built
	BuildTime = "unknown"

	// Commit is the source revision, empty for local builds
	Commit = ""
)

// GetVersion returns the current version of the application
func GetVersion() string {
	return Version
}

// GetBuildTime returns the build time of the binary
func GetBuildTime() string {
	return BuildTime
}

// GetVersionInfo returns a formatted string with version information
func GetVersionInfo() string {
	info := fmt.Sprintf("marquee %s (built %s", Version, BuildTime)
	if Commit != "" {
		info += ", commit " + Commit
	}
	return info + ")"
}

// Platform names the OS and architecture the binary was built for
func Platform() string {
	return runtime.GOOS + "/" + runtime.GOARCH
}
