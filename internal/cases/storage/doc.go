// Package storage defines persistence contracts for case-tracking entities.
//
// Admin code depends on these interfaces so changelist, form and import logic
// stay testable and independent of the SQLite schema.
package storage
