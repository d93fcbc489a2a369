package sqlite

import (
	"context"
	"database/sql"
	"database/sql/driver"
	"errors"
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"github.com/watchdogpolska/small-eod/internal/cases"
	"github.com/watchdogpolska/small-eod/internal/cases/filter"
	"github.com/watchdogpolska/small-eod/internal/cases/storage"
	"github.com/watchdogpolska/small-eod/internal/cases/storage/sqlite/migrations"
	platformotel "github.com/watchdogpolska/small-eod/internal/platform/otel"
	sqlitemigrate "github.com/watchdogpolska/small-eod/internal/platform/storage/sqlitemigrate"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	sqlitedriver "modernc.org/sqlite"
)

const timeFormat = filter.TimestampLayout

var tracer = platformotel.Tracer("github.com/watchdogpolska/small-eod/internal/cases/storage/sqlite")

func init() {
	// casefold backs every case-insensitive match. SQLite's lower() only
	// folds ASCII, which misses Polish institution names.
	sqlitedriver.MustRegisterDeterministicScalarFunction("casefold", 1, casefold)
}

func casefold(_ *sqlitedriver.FunctionContext, args []driver.Value) (driver.Value, error) {
	switch v := args[0].(type) {
	case nil:
		return nil, nil
	case string:
		return strings.ToLower(v), nil
	case []byte:
		return strings.ToLower(string(v)), nil
	default:
		return strings.ToLower(fmt.Sprint(v)), nil
	}
}

// Store provides SQLite-backed persistence for cases and their related rows.
type Store struct {
	sqlDB *sql.DB
	// tx is set on the view passed to InTx callbacks.
	tx *sql.Tx
}

type queryer interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

type scanner func(dest ...any) error

// Open opens a case-tracking SQLite store at the provided path.
func Open(path string) (*Store, error) {
	if strings.TrimSpace(path) == "" {
		return nil, fmt.Errorf("storage path is required")
	}

	cleanPath := filepath.Clean(path)
	dsn := cleanPath + "?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)&_pragma=synchronous(NORMAL)&_pragma=foreign_keys(ON)"
	sqlDB, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open sqlite db: %w", err)
	}
	if err := sqlDB.Ping(); err != nil {
		_ = sqlDB.Close()
		return nil, fmt.Errorf("ping sqlite db: %w", err)
	}
	if err := ensureForeignKeysEnabled(sqlDB); err != nil {
		_ = sqlDB.Close()
		return nil, err
	}

	store := &Store{sqlDB: sqlDB}
	if err := store.runMigrations(); err != nil {
		_ = sqlDB.Close()
		return nil, fmt.Errorf("run migrations: %w", err)
	}
	return store, nil
}

// Close closes the underlying SQLite database.
func (s *Store) Close() error {
	if s == nil || s.sqlDB == nil {
		return nil
	}
	if s.tx != nil {
		return fmt.Errorf("close called inside a transaction")
	}
	return s.sqlDB.Close()
}

func (s *Store) runMigrations() error {
	_, err := sqlitemigrate.Apply(context.Background(), s.sqlDB, migrations.FS, ".")
	return err
}

func ensureForeignKeysEnabled(db *sql.DB) error {
	var enabled int
	if err := db.QueryRow("PRAGMA foreign_keys").Scan(&enabled); err != nil {
		return fmt.Errorf("check sqlite foreign key pragma: %w", err)
	}
	if enabled != 1 {
		return fmt.Errorf("sqlite foreign keys are disabled")
	}
	return nil
}

func (s *Store) ready(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if s == nil || s.sqlDB == nil {
		return fmt.Errorf("storage is not configured")
	}
	return nil
}

func (s *Store) conn() queryer {
	if s.tx != nil {
		return s.tx
	}
	return s.sqlDB
}

// InTx runs fn against a view of the store bound to one transaction. A call
// made from inside another InTx joins the outer transaction.
func (s *Store) InTx(ctx context.Context, dryRun bool, fn func(storage.Store) error) error {
	if err := s.ready(ctx); err != nil {
		return err
	}
	if s.tx != nil {
		return fn(s)
	}

	tx, err := s.sqlDB.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	if err := fn(&Store{sqlDB: s.sqlDB, tx: tx}); err != nil {
		if rollbackErr := tx.Rollback(); rollbackErr != nil {
			return fmt.Errorf("%w: rollback: %v", err, rollbackErr)
		}
		return err
	}
	if dryRun {
		if err := tx.Rollback(); err != nil {
			return fmt.Errorf("rollback dry run: %w", err)
		}
		return nil
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit transaction: %w", err)
	}
	return nil
}

// write runs fn inside the current transaction, or a fresh one.
func (s *Store) write(ctx context.Context, action string, fn func(q queryer) error) error {
	if s.tx != nil {
		return fn(s.tx)
	}
	tx, err := s.sqlDB.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin %s: %w", action, err)
	}
	if err := fn(tx); err != nil {
		if rollbackErr := tx.Rollback(); rollbackErr != nil {
			return fmt.Errorf("%w: rollback %s: %v", err, action, rollbackErr)
		}
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit %s: %w", action, err)
	}
	return nil
}

func startSpan(ctx context.Context, name string, model cases.Model) (context.Context, trace.Span) {
	return tracer.Start(ctx, "cases.storage."+name, trace.WithAttributes(
		attribute.String("eod.model", string(model)),
	))
}

func endSpan(span trace.Span, err error) {
	if err != nil && !errors.Is(err, storage.ErrNotFound) {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	}
	span.End()
}

func formatTime(t time.Time) string {
	return t.UTC().Format(timeFormat)
}

func parseTime(value string) (time.Time, error) {
	t, err := time.Parse(time.RFC3339Nano, value)
	if err != nil {
		return time.Time{}, fmt.Errorf("parse timestamp %q: %w", value, err)
	}
	return t, nil
}

func now() time.Time {
	return time.Now().UTC()
}

func isForeignKeyError(err error) bool {
	return err != nil && strings.Contains(err.Error(), "FOREIGN KEY constraint failed")
}

func isUniqueError(err error) bool {
	return err != nil && strings.Contains(err.Error(), "UNIQUE constraint failed")
}

var _ storage.Store = (*Store)(nil)
