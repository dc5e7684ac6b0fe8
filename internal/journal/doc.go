// Package journal persists trading events (orders, fills, cancels,
// rejections) to the database for audit and reporting.
package journal
