// ABOUTME: Build and product identification
// ABOUTME: Version is overridden at link time with -ldflags
package version

import "fmt"

// Version is the release version, set with -ldflags "-X .../internal/version.Version=1.2.3"
var Version = "dev"

const (
	Product      = "narrator"
	Manufacturer = "harperreed"
)

// UserAgent identifies HTTP and websocket requests
func UserAgent() string {
	return fmt.Sprintf("%s-go/%s", Product, Version)
}

// String returns the human-readable version line
func String() string {
	return fmt.Sprintf("%s %s", Product, Version)
}
