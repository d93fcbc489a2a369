// Package storage defines persistence contracts for admin console state:
// staff accounts, login sessions and the action log.
//
// Handlers depend on these interfaces so they stay testable without a
// concrete SQLite schema.
package storage
