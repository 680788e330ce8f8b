// Package version exposes build metadata for the safety binaries.
//
// Version, Commit and BuildTime are injected via ldflags.
package version
