// Package version holds the build version, overridable with -ldflags.
package version

// Version is the release version.
var Version = "v0.3.0"
