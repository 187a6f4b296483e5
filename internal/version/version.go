package version

// version is overridden at build time via -ldflags.
var version = "0.1.0"

// GetVersion returns the build version string.
func GetVersion() string {
	return version
}
