// Package env holds the one-off lookups that happen before config loads,
// such as the PORT/DYNO wiring in the binaries.
package env

import "os"

// Get reads an environment variable, returning fallback when it is unset
// or empty.
func Get(key, fallback string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return fallback
}
