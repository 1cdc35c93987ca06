package main

import "fmt"

// Build metadata, overridden with -ldflags "-X main.Version=..." by the release build.
var (
	Version   = "dev"
	Commit    = "unknown"
	BuildTime = "unknown"
)

// userAgent identifies talkrec to the release API.
func userAgent() string {
	return "zwfm-talkrec/" + normalizeVersion(Version)
}

// versionString is the one-line summary printed by -version.
func versionString() string {
	return fmt.Sprintf("talkrec %s (commit %s, built %s)", normalizeVersion(Version), Commit, BuildTime)
}
