// Package domain contains the flight and enrichment task entities together with
// the rules that govern them: how a flight is reset on re-ingestion, how an
// enrichment result is applied, and which task status transitions are legal.
// It has no knowledge of storage, queues or HTTP.
package domain
