// Package version holds the launcher version.
package version

// Version is the current version of the launcher. It is overridden at link
// time for release builds.
var Version = "dev"
