// Package api handles incoming HTTP requests, request validation and response
// formatting. It adapts HTTP clients to the enrichment service: flights are
// accepted for enrichment and task progress is reported back.
package api
