// Package database provides connection pool management for TimescaleDB.
//
// A single TimescaleDB pool backs the time-series tables (ticks, best
// quotes, candles, fills) and the relational ones (orders, journal).
package database
