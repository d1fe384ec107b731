// ABOUTME: Product and version constants
// ABOUTME: Reported in server hellos, mDNS records and the CLI
package version

// Version is the release version, overridden at build time with -ldflags
var Version = "0.1.0"

const (
	// Product is the product name
	Product = "castvox"

	// Manufacturer is reported alongside the product name
	Manufacturer = "castvox"
)

// UserAgent returns the HTTP user agent for outgoing requests
func UserAgent() string {
	return Product + "/" + Version
}
