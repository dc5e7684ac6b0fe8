// Package metrics provides Prometheus metrics for monitoring.
//
// Key metrics:
//   - WebSocket frame rates, reconnects, subscription count
//   - Router throughput, parse errors, buffer depth
//   - Writer inserts, conflicts, and errors per table
//   - REST request outcomes and circuit breaker state
//   - Order flow and current exposure
package metrics
