// ABOUTME: Build and product identification
// ABOUTME: Shown in the player header, server names and the controller banner
package version

import "fmt"

const (
	Product      = "SyncSource"
	Manufacturer = "Resonate Protocol"
)

// Version is set at build time with -ldflags "-X .../internal/version.Version=..."
var Version = "0.1.0"

// String returns "Product Version"
func String() string {
	return fmt.Sprintf("%s %s", Product, Version)
}
