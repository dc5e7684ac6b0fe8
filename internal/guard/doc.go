// Package guard enforces pre-trade limits: per-order notional,
// per-symbol position notional, open position count, and cash
// sufficiency. Every rejection is a typed *LimitError naming the
// limit that fired.
package guard
