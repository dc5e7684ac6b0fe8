// Package poller periodically refreshes quote snapshots and daily bar
// history for the configured watchlist via the REST API.
//
// Fetches fan out with bounded concurrency; the shared API client's
// rate limiter throttles the aggregate request rate.
package poller
