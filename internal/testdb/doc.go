// Package testdb provides helpers for tests that run against a real
// PostgreSQL database. Tests using it are skipped when no database URL is
// configured.
package testdb
