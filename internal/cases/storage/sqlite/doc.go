// Package sqlite provides the SQLite-backed case-tracking store.
//
// Relations are resolved from a small static schema so lookups, searches and
// related-only filter choices can follow double-underscore paths such as
// "letter__institution__tags" without per-path SQL.
package sqlite
