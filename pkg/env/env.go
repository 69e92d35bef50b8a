package env

import "os"

// Get reads key from the process environment. Unset and empty both yield the
// fallback so a blank override cannot disable a default.
func Get(key, fallback string) string {
	value, ok := os.LookupEnv(key)
	if !ok || value == "" {
		return fallback
	}
	return value
}
