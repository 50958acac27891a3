// Package middleware provides HTTP middleware for request tracing and metrics.
package middleware
