// Package store defines interfaces for data persistence operations.
// These interfaces abstract the underlying data storage mechanism from
// the enrichment pipeline, so the ingestion service and the worker can be
// exercised against test doubles.
package store
