package httpmux

import (
	"io/fs"
	"net/http"
	"net/http/httptest"
	"testing"
	"testing/fstest"
)

func TestMountStaticServesAssets(t *testing.T) {
	t.Parallel()

	rootMux := http.NewServeMux()
	staticFS := fstest.MapFS{
		"admin.css": &fstest.MapFile{Data: []byte("body{}")},
	}
	MountStatic(rootMux, staticFS, nil)

	req := httptest.NewRequest(http.MethodGet, "/static/admin.css", nil)
	rec := httptest.NewRecorder()
	rootMux.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want %d", rec.Code, http.StatusOK)
	}
}

func TestMountAdminRoutesMountsRoot(t *testing.T) {
	t.Parallel()

	rootMux := http.NewServeMux()
	adminMux := http.NewServeMux()
	adminMux.HandleFunc("/cases/case", func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte("cases"))
	})

	MountAdminRoutes(rootMux, adminMux)

	req := httptest.NewRequest(http.MethodGet, "/cases/case", nil)
	rec := httptest.NewRecorder()
	rootMux.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want %d", rec.Code, http.StatusOK)
	}
	if body := rec.Body.String(); body != "cases" {
		t.Fatalf("body = %q, want %q", body, "cases")
	}
}

func TestMountNoopsOnNilInputs(t *testing.T) {
	t.Parallel()

	rootMux := http.NewServeMux()
	MountStatic(nil, fstest.MapFS{}, nil)
	MountStatic(rootMux, fs.FS(nil), nil)
	MountAdminRoutes(nil, http.NewServeMux())
	MountAdminRoutes(rootMux, nil)
}

func TestWithStaticMimeSetsContentType(t *testing.T) {
	t.Parallel()

	tests := []struct {
		path string
		want string
	}{
		{path: "/static/admin.css", want: "text/css; charset=utf-8"},
		{path: "/static/admin.js", want: "application/javascript"},
		{path: "/static/readme.txt", want: ""},
	}
	for _, tt := range tests {
		handler := WithStaticMime(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {}))
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, tt.path, nil))
		if got := rec.Header().Get("Content-Type"); got != tt.want {
			t.Fatalf("%s content type = %q, want %q", tt.path, got, tt.want)
		}
	}
}
