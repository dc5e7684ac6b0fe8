// Package portfolio tracks positions from streaming fills with
// periodic reconciliation against REST holdings snapshots.
package portfolio
