package admin

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"

	casesqlite "github.com/watchdogpolska/small-eod/internal/cases/storage/sqlite"
	platformotel "github.com/watchdogpolska/small-eod/internal/platform/otel"
	"github.com/watchdogpolska/small-eod/internal/platform/timeouts"
	"github.com/watchdogpolska/small-eod/internal/services/admin/static"
	adminsqlite "github.com/watchdogpolska/small-eod/internal/services/admin/storage/sqlite"
	"github.com/watchdogpolska/small-eod/internal/services/admin/transport/httpmux"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

var tracer = platformotel.Tracer("github.com/watchdogpolska/small-eod/internal/services/admin")

// Config defines the inputs for the admin process.
type Config struct {
	HTTPAddr string
	// DBPath is the case-tracking database.
	DBPath string
	// AdminDBPath holds staff, sessions and the action log.
	AdminDBPath string
	// Auth enables staff login when Auth.Secret is set.
	Auth AuthConfig
	// RequestTimeout caps storage work per request; zero uses
	// timeouts.Request.
	RequestTimeout time.Duration
}

// Server hosts the admin site over HTTP.
type Server struct {
	httpAddr   string
	httpServer *http.Server
	caseStore  *casesqlite.Store
	adminStore *adminsqlite.Store
}

// NewServer opens both stores and wires the admin handler.
func NewServer(config Config) (*Server, error) {
	httpAddr := strings.TrimSpace(config.HTTPAddr)
	if httpAddr == "" {
		return nil, errors.New("http address is required")
	}
	if config.RequestTimeout <= 0 {
		config.RequestTimeout = timeouts.Request
	}

	caseStore, err := OpenCaseStore(config.DBPath)
	if err != nil {
		return nil, err
	}
	adminStore, err := OpenAdminStore(config.AdminDBPath)
	if err != nil {
		_ = caseStore.Close()
		return nil, err
	}

	closeStores := func() {
		_ = caseStore.Close()
		_ = adminStore.Close()
	}
	site, err := NewDefaultSite()
	if err != nil {
		closeStores()
		return nil, err
	}
	auth, err := NewAuthenticator(adminStore, config.Auth)
	if err != nil {
		closeStores()
		return nil, err
	}
	if auth == nil {
		log.Printf("admin auth disabled: no session secret configured")
	}

	rootMux := http.NewServeMux()
	httpmux.MountStatic(rootMux, static.FS, httpmux.WithStaticMime)
	httpmux.MountAdminRoutes(rootMux, NewHandler(HandlerConfig{
		Site:  site,
		Store: caseStore,
		Logs:  adminStore,
		Auth:  auth,
	}))

	httpServer := &http.Server{
		Addr:              httpAddr,
		Handler:           withTracing(withRequestTimeout(rootMux, config.RequestTimeout)),
		ReadHeaderTimeout: timeouts.ReadHeader,
	}
	return &Server{
		httpAddr:   httpAddr,
		httpServer: httpServer,
		caseStore:  caseStore,
		adminStore: adminStore,
	}, nil
}

// withRequestTimeout bounds the request context. Imports get a longer budget.
func withRequestTimeout(next http.Handler, timeout time.Duration) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		limit := timeout
		if strings.HasSuffix(strings.TrimSuffix(r.URL.Path, "/"), "/import") && limit < timeouts.Import {
			limit = timeouts.Import
		}
		ctx, cancel := context.WithTimeout(r.Context(), limit)
		defer cancel()
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// withTracing opens one server span per request.
func withTracing(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ctx, span := tracer.Start(r.Context(), r.Method+" admin",
			trace.WithSpanKind(trace.SpanKindServer),
			trace.WithAttributes(
				attribute.String("http.request.method", r.Method),
				attribute.String("url.path", r.URL.Path),
			),
		)
		defer span.End()
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// ListenAndServe runs the HTTP server until the context ends.
func (s *Server) ListenAndServe(ctx context.Context) error {
	if s == nil {
		return errors.New("admin server is nil")
	}
	if ctx == nil {
		ctx = context.Background()
	}

	serveErr := make(chan error, 1)
	log.Printf("admin listening on %s", s.httpAddr)
	go func() {
		serveErr <- s.httpServer.ListenAndServe()
	}()

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), timeouts.Shutdown)
		err := s.httpServer.Shutdown(shutdownCtx)
		cancel()
		if err != nil {
			return fmt.Errorf("shutdown http server: %w", err)
		}
		return nil
	case err := <-serveErr:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return fmt.Errorf("serve http: %w", err)
	}
}

// Close releases both stores.
func (s *Server) Close() {
	if s == nil {
		return
	}
	if s.caseStore != nil {
		if err := s.caseStore.Close(); err != nil {
			log.Printf("close case store: %v", err)
		}
	}
	if s.adminStore != nil {
		if err := s.adminStore.Close(); err != nil {
			log.Printf("close admin store: %v", err)
		}
	}
}

// OpenCaseStore opens the case database, creating its directory.
func OpenCaseStore(path string) (*casesqlite.Store, error) {
	if err := ensureDir(path); err != nil {
		return nil, err
	}
	store, err := casesqlite.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open case sqlite store: %w", err)
	}
	return store, nil
}

// OpenAdminStore opens the admin database, creating its directory.
func OpenAdminStore(path string) (*adminsqlite.Store, error) {
	if err := ensureDir(path); err != nil {
		return nil, err
	}
	store, err := adminsqlite.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open admin sqlite store: %w", err)
	}
	return store, nil
}

func ensureDir(path string) error {
	if strings.TrimSpace(path) == "" {
		return errors.New("db path is required")
	}
	if dir := filepath.Dir(filepath.Clean(path)); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create storage dir: %w", err)
		}
	}
	return nil
}
