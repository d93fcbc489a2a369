// Package admin implements the operator admin console for case tracking.
//
// A Site holds one ModelAdmin per entity. Each ModelAdmin declares how its
// model is listed, filtered, searched and edited; the Handler turns those
// declarations into changelist, change form, delete and import/export pages
// backed by the case store.
package admin
