//go:build !unix && !windows

package platform

// Identify returns what the Go runtime knows about the platform
func Identify() Info {
	return fallback()
}
