// Package sqlite provides SQLite-backed admin persistence.
//
// It holds console state only and is kept apart from the case-tracking
// database.
package sqlite
