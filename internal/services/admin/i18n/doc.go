// Package i18n provides localization helpers for the admin UI.
//
// Message catalogs for English and Polish are registered with
// golang.org/x/text/message at init; keys are shared by templates, field
// validation messages and flash notices.
package i18n
