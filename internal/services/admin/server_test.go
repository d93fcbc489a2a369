package admin

import (
	"context"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"
	"time"

	"github.com/watchdogpolska/small-eod/internal/platform/timeouts"
)

func TestNewServerRequiresHTTPAddr(t *testing.T) {
	if _, err := NewServer(Config{}); err == nil {
		t.Fatal("expected error for empty http address")
	}
}

func TestNewServerRequiresDBPath(t *testing.T) {
	if _, err := NewServer(Config{HTTPAddr: "127.0.0.1:0"}); err == nil {
		t.Fatal("expected error for empty db path")
	}
}

func TestNewServerOpensStores(t *testing.T) {
	dir := t.TempDir()
	server, err := NewServer(Config{
		HTTPAddr:    "127.0.0.1:0",
		DBPath:      filepath.Join(dir, "nested", "eod.db"),
		AdminDBPath: filepath.Join(dir, "admin.db"),
		Auth:        AuthConfig{Secret: "test-secret"},
	})
	if err != nil {
		t.Fatalf("new server: %v", err)
	}
	defer server.Close()

	if server.caseStore == nil || server.adminStore == nil {
		t.Fatal("expected both stores to be open")
	}

	rec := httptest.NewRecorder()
	server.httpServer.Handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/static/admin.css", nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("static status = %d, want %d", rec.Code, http.StatusOK)
	}

	rec = httptest.NewRecorder()
	server.httpServer.Handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/cases/case", nil))
	if rec.Code != http.StatusFound {
		t.Fatalf("anonymous status = %d, want %d", rec.Code, http.StatusFound)
	}
}

func TestServerListenAndServeStopsOnCancel(t *testing.T) {
	dir := t.TempDir()
	server, err := NewServer(Config{
		HTTPAddr:    "127.0.0.1:0",
		DBPath:      filepath.Join(dir, "eod.db"),
		AdminDBPath: filepath.Join(dir, "admin.db"),
	})
	if err != nil {
		t.Fatalf("new server: %v", err)
	}
	defer server.Close()

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- server.ListenAndServe(ctx) }()
	cancel()

	select {
	case err := <-done:
		if err != nil {
			t.Fatalf("listen and serve: %v", err)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("server did not stop after cancel")
	}
}

func TestServerNilSafe(t *testing.T) {
	var s *Server
	if err := s.ListenAndServe(context.Background()); err == nil {
		t.Fatal("expected error for nil server")
	}
	s.Close()
}

func TestWithRequestTimeout(t *testing.T) {
	tests := []struct {
		path    string
		timeout time.Duration
		min     time.Duration
	}{
		{path: "/cases/case", timeout: time.Second, min: 0},
		{path: "/cases/institution/import", timeout: time.Second, min: timeouts.Import - time.Minute},
	}
	for _, tt := range tests {
		var remaining time.Duration
		handler := withRequestTimeout(http.HandlerFunc(func(_ http.ResponseWriter, r *http.Request) {
			deadline, ok := r.Context().Deadline()
			if !ok {
				t.Fatalf("%s: expected deadline", tt.path)
			}
			remaining = time.Until(deadline)
		}), tt.timeout)
		handler.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, tt.path, nil))
		if remaining <= 0 || remaining < tt.min {
			t.Fatalf("%s: remaining = %v, want at least %v", tt.path, remaining, tt.min)
		}
	}
}
