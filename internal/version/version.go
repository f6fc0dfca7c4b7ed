// Package version holds build metadata injected via -ldflags.
package version

import "fmt"

// Set at build time:
//
//	go build -ldflags "-X github.com/sydlexius/modcheck/internal/version.Version=v1.2.3"
var (
	Version = "dev"
	Commit  = "unknown"
)

// UserAgent returns the User-Agent header sent to upstream APIs.
// Modrinth asks clients to identify themselves with a contact URL.
func UserAgent() string {
	return fmt.Sprintf("modcheck/%s (https://github.com/sydlexius/modcheck)", Version)
}
