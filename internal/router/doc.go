// Package router parses REAL frames from the stream Manager and fans
// entries out to typed buffers consumed by the Writers.
//
// Each REAL frame carries an array of entries keyed by a two-character
// real-time type code; field values inside an entry are keyed by the
// broker's numeric field codes. The router translates both into typed
// messages (ticks, best quotes, own-order fills, balance updates) with
// decimal prices and microsecond timestamps.
//
// Output buffers are GrowableBuffers rather than fixed channels so a
// temporarily slow database writer backs up in memory instead of
// dropping market data.
package router
