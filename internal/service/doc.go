// Package service implements the application operations behind the HTTP API:
// flight ingestion, which stores the flight and queues its enrichment, and
// read access to tasks and flights.
package service
