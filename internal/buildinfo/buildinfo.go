// Package buildinfo exposes the daemon version stamped at build time.
package buildinfo

// Version is replaced at release time via:
//
//	go build -ldflags "-X github.com/vsbuildlogger/vsbuildlogger/internal/buildinfo.Version=v1.2.0"
//
// Development builds report "dev".
var Version = "dev"

// String returns the version string reported by the version command,
// the status API, and the extension_version tag on every build record.
func String() string {
	return Version
}
