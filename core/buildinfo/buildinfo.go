// Package buildinfo reports the identity of the running binary.
package buildinfo

import (
	"fmt"
	"runtime"
	"runtime/debug"
)

// Set at link time:
//
//	-X 'github.com/m3rciful/guideshop/core/buildinfo.Version=v1.2.3'
//	-X 'github.com/m3rciful/guideshop/core/buildinfo.Commit=abcdef0'
//	-X 'github.com/m3rciful/guideshop/core/buildinfo.Date=2026-10-01T12:00:00Z'
var (
	Version = "dev"
	Commit  = "local"
	// Date is RFC 3339.
	Date = ""
)

// resolved returns the link-time values, filling gaps from the module build info
// when the binary came from `go install`.
func resolved() (version, commit string) {
	version, commit = Version, Commit
	info, ok := debug.ReadBuildInfo()
	if !ok {
		return version, commit
	}
	if version == "dev" && info.Main.Version != "" && info.Main.Version != "(devel)" {
		version = info.Main.Version
	}
	if commit == "local" {
		for _, s := range info.Settings {
			if s.Key == "vcs.revision" && len(s.Value) >= 7 {
				commit = s.Value[:7]
			}
		}
	}
	return version, commit
}

// String renders "version (commit, date) goX.Y" for the version command.
func String() string {
	version, commit := resolved()
	meta := commit
	if Date != "" {
		meta += ", " + Date
	}
	return fmt.Sprintf("%s (%s) %s", version, meta, runtime.Version())
}
