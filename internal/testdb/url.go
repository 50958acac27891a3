package testdb

import (
	"os"
	"testing"
)

// urlVars are checked in order for the test database URL.
var urlVars = []string{"FARE_TEST_DATABASE_URL", "DATABASE_URL"}

// DatabaseURL returns the configured test database URL, skipping t when none
// is set.
func DatabaseURL(t testing.TB) string {
	t.Helper()
	for _, name := range urlVars {
		if v := os.Getenv(name); v != "" {
			return v
		}
	}
	t.Skipf("no test database configured (set one of %v)", urlVars)
	return ""
}
