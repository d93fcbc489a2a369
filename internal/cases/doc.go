// Package cases defines the case-tracking entities presented by the admin
// console: cases, the letters exchanged with institutions about them, and the
// reference data (tags, people, channels, dictionaries) they point at.
//
// The types are plain values. Relations are carried as embedded slices or
// foreign-key ids plus a display label so list views never need a second
// lookup per row.
package cases
