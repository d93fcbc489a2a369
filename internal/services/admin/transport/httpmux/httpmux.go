package httpmux

import (
	"io/fs"
	"net/http"
	"strings"

	routepath "github.com/watchdogpolska/small-eod/internal/services/admin/routepath"
)

// MountStatic wires static asset serving into the root mux.
func MountStatic(rootMux *http.ServeMux, staticFS fs.FS, withStaticMime func(http.Handler) http.Handler) {
	if rootMux == nil || staticFS == nil {
		return
	}
	staticHandler := http.StripPrefix(routepath.StaticPrefix, http.FileServer(http.FS(staticFS)))
	if withStaticMime != nil {
		staticHandler = withStaticMime(staticHandler)
	}
	rootMux.Handle(routepath.StaticPrefix, staticHandler)
}

// MountAdminRoutes mounts admin application routes under root path.
func MountAdminRoutes(rootMux *http.ServeMux, admin http.Handler) {
	if rootMux == nil || admin == nil {
		return
	}
	rootMux.Handle(routepath.Root, admin)
}

// WithStaticMime pins content types of embedded assets.
func WithStaticMime(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch path := strings.ToLower(r.URL.Path); {
		case strings.HasSuffix(path, ".css"):
			w.Header().Set("Content-Type", "text/css; charset=utf-8")
		case strings.HasSuffix(path, ".js"):
			w.Header().Set("Content-Type", "application/javascript")
		}
		next.ServeHTTP(w, r)
	})
}
