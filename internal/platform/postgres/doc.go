// Package postgres provides the PostgreSQL implementations of the flight and
// enrichment task stores defined in internal/store, the transactor that lets
// both share a transaction, and the embedded goose migrations that create
// their tables.
package postgres
