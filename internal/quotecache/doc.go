// Package quotecache keeps the latest quote per stock behind a small
// Cache interface with in-memory and Redis backends.
package quotecache
