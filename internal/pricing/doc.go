// Package pricing talks to the third-party flight search API and turns its
// responses into a retail price.
//
// ExtractRetailPrice is pure and safe to call from anywhere. Client performs
// the outbound HTTP call, rate limited and bounded by a timeout. Both report
// failures through the ErrUpstream and ErrExtraction sentinels so callers can
// classify them without inspecting messages.
package pricing
