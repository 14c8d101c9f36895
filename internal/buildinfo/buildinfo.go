// Package buildinfo exposes link-time build identifiers. Version doubles as
// the discriminator for the on-disk config cache so an app update never
// reads a cache written against an older schema.
package buildinfo

// Version is set at link-time with -ldflags.
var Version = "v0.3.0"

// Commit is set at link-time with -ldflags.
// Default is "unknown" so tests and "go run ." still work.
var Commit = "unknown"

// DebugBuild is set to "true" at link-time for development builds.
var DebugBuild = "false"

// Debug reports whether this is a development build. Development builds
// always refetch remote config instead of honouring the provider's
// minimum fetch interval.
func Debug() bool { return DebugBuild == "true" }
