package static

import "embed"

// FS exposes admin static assets for HTTP serving.
//
//go:embed *.css *.js
var FS embed.FS
