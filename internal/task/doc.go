// Package task runs flight enrichment in the background.
//
// An Enricher processes one queue message to completion: it looks up the
// flight and its task, queries the pricing API, stores the extracted price
// and records the outcome on the task, retrying transient failures according
// to a RetryPolicy. A WorkerPool runs several enrichers against a queue.
package task
