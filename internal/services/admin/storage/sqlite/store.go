package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"path/filepath"
	"sort"
	"strings"
	"time"

	sqlitemigrate "github.com/watchdogpolska/small-eod/internal/platform/storage/sqlitemigrate"
	"github.com/watchdogpolska/small-eod/internal/services/admin/storage"
	"github.com/watchdogpolska/small-eod/internal/services/admin/storage/sqlite/migrations"
	_ "modernc.org/sqlite"
)

// timeFormat has a fixed-width fraction so text order matches time order.
const timeFormat = "2006-01-02T15:04:05.000000000Z07:00"

// Store provides a SQLite-backed store implementing admin storage interfaces.
type Store struct {
	sqlDB *sql.DB
}

// Open opens a SQLite store at the provided path.
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
	return s.sqlDB.Close()
}

// runMigrations runs embedded SQL migrations.
func (s *Store) runMigrations() error {
	_, err := sqlitemigrate.Apply(context.Background(), s.sqlDB, migrations.FS, ".")
	return err
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

// PutStaff creates or replaces a staff account and its permissions.
func (s *Store) PutStaff(ctx context.Context, staff storage.Staff) error {
	if err := s.ready(ctx); err != nil {
		return err
	}
	staff.Username = strings.TrimSpace(staff.Username)
	if staff.Username == "" {
		return fmt.Errorf("username is required")
	}
	if staff.PasswordHash == "" {
		return fmt.Errorf("password hash is required")
	}
	if staff.CreatedAt.IsZero() {
		staff.CreatedAt = time.Now().UTC()
	}

	tx, err := s.sqlDB.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin put staff: %w", err)
	}
	rollbackWith := func(cause error) error {
		if rollbackErr := tx.Rollback(); rollbackErr != nil {
			return fmt.Errorf("%w: rollback put staff: %v", cause, rollbackErr)
		}
		return cause
	}

	if _, err := tx.ExecContext(ctx, `
INSERT INTO staff (username, password_hash, superuser, active, created_at)
VALUES (?, ?, ?, ?, ?)
ON CONFLICT (username) DO UPDATE SET
    password_hash = excluded.password_hash,
    superuser = excluded.superuser,
    active = excluded.active
`, staff.Username, staff.PasswordHash, staff.Superuser, staff.Active, staff.CreatedAt.UTC().Format(timeFormat)); err != nil {
		return rollbackWith(fmt.Errorf("put staff: %w", err))
	}
	if _, err := tx.ExecContext(ctx, "DELETE FROM staff_permissions WHERE username = ?", staff.Username); err != nil {
		return rollbackWith(fmt.Errorf("clear staff permissions: %w", err))
	}
	for _, codename := range staff.Permissions {
		codename = strings.TrimSpace(codename)
		if codename == "" {
			continue
		}
		if _, err := tx.ExecContext(ctx,
			"INSERT OR IGNORE INTO staff_permissions (username, codename) VALUES (?, ?)", staff.Username, codename); err != nil {
			return rollbackWith(fmt.Errorf("put staff permission: %w", err))
		}
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit put staff: %w", err)
	}
	return nil
}

// GetStaff loads one staff account with its permissions.
func (s *Store) GetStaff(ctx context.Context, username string) (storage.Staff, error) {
	if err := s.ready(ctx); err != nil {
		return storage.Staff{}, err
	}

	var staff storage.Staff
	var createdAt string
	err := s.sqlDB.QueryRowContext(ctx,
		"SELECT username, password_hash, superuser, active, created_at FROM staff WHERE username = ?",
		strings.TrimSpace(username)).Scan(&staff.Username, &staff.PasswordHash, &staff.Superuser, &staff.Active, &createdAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return storage.Staff{}, storage.ErrNotFound
		}
		return storage.Staff{}, fmt.Errorf("get staff: %w", err)
	}
	if staff.CreatedAt, err = time.Parse(time.RFC3339Nano, createdAt); err != nil {
		return storage.Staff{}, fmt.Errorf("parse staff created_at: %w", err)
	}

	rows, err := s.sqlDB.QueryContext(ctx, "SELECT codename FROM staff_permissions WHERE username = ?", staff.Username)
	if err != nil {
		return storage.Staff{}, fmt.Errorf("list staff permissions: %w", err)
	}
	defer rows.Close()
	for rows.Next() {
		var codename string
		if err := rows.Scan(&codename); err != nil {
			return storage.Staff{}, fmt.Errorf("scan staff permission: %w", err)
		}
		staff.Permissions = append(staff.Permissions, codename)
	}
	if err := rows.Err(); err != nil {
		return storage.Staff{}, fmt.Errorf("iterate staff permissions: %w", err)
	}
	sort.Strings(staff.Permissions)
	return staff, nil
}

// PutUserSession persists a user session record.
func (s *Store) PutUserSession(ctx context.Context, session storage.Session) error {
	if err := s.ready(ctx); err != nil {
		return err
	}
	if strings.TrimSpace(session.ID) == "" {
		return fmt.Errorf("session id is required")
	}
	if strings.TrimSpace(session.Username) == "" {
		return fmt.Errorf("session username is required")
	}
	if session.CreatedAt.IsZero() {
		session.CreatedAt = time.Now().UTC()
	}
	if session.ExpiresAt.IsZero() {
		return fmt.Errorf("session expiry is required")
	}

	_, err := s.sqlDB.ExecContext(ctx,
		"INSERT INTO user_sessions (session_id, username, created_at, expires_at) VALUES (?, ?, ?, ?)",
		session.ID, session.Username, session.CreatedAt.UTC().Format(timeFormat), session.ExpiresAt.UTC().Format(timeFormat))
	if err != nil {
		return fmt.Errorf("put user session: %w", err)
	}
	return nil
}

// GetUserSession loads one session.
func (s *Store) GetUserSession(ctx context.Context, sessionID string) (storage.Session, error) {
	if err := s.ready(ctx); err != nil {
		return storage.Session{}, err
	}

	var session storage.Session
	var createdAt, expiresAt string
	err := s.sqlDB.QueryRowContext(ctx,
		"SELECT session_id, username, created_at, expires_at FROM user_sessions WHERE session_id = ?",
		sessionID).Scan(&session.ID, &session.Username, &createdAt, &expiresAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return storage.Session{}, storage.ErrNotFound
		}
		return storage.Session{}, fmt.Errorf("get user session: %w", err)
	}
	if session.CreatedAt, err = time.Parse(time.RFC3339Nano, createdAt); err != nil {
		return storage.Session{}, fmt.Errorf("parse session created_at: %w", err)
	}
	if session.ExpiresAt, err = time.Parse(time.RFC3339Nano, expiresAt); err != nil {
		return storage.Session{}, fmt.Errorf("parse session expires_at: %w", err)
	}
	return session, nil
}

// DeleteUserSession removes a session. Deleting a missing session is not an error.
func (s *Store) DeleteUserSession(ctx context.Context, sessionID string) error {
	if err := s.ready(ctx); err != nil {
		return err
	}
	if _, err := s.sqlDB.ExecContext(ctx, "DELETE FROM user_sessions WHERE session_id = ?", sessionID); err != nil {
		return fmt.Errorf("delete user session: %w", err)
	}
	return nil
}

// AddLogEntry records one admin action.
func (s *Store) AddLogEntry(ctx context.Context, entry storage.LogEntry) error {
	if err := s.ready(ctx); err != nil {
		return err
	}
	if entry.ActionTime.IsZero() {
		entry.ActionTime = time.Now().UTC()
	}
	if entry.Model == "" {
		return fmt.Errorf("log entry model is required")
	}
	_, err := s.sqlDB.ExecContext(ctx, `
INSERT INTO log_entries (action_time, username, model, object_id, object_repr, action, message)
VALUES (?, ?, ?, ?, ?, ?, ?)
`, entry.ActionTime.UTC().Format(timeFormat), entry.Username, entry.Model, entry.ObjectID, entry.ObjectRepr, int(entry.Action), entry.Message)
	if err != nil {
		return fmt.Errorf("add log entry: %w", err)
	}
	return nil
}

// ListLogEntries returns the newest entries first. An empty username lists
// every user's entries.
func (s *Store) ListLogEntries(ctx context.Context, username string, limit int) ([]storage.LogEntry, error) {
	if err := s.ready(ctx); err != nil {
		return nil, err
	}
	if limit <= 0 {
		return nil, fmt.Errorf("limit must be greater than zero")
	}

	query := "SELECT id, action_time, username, model, object_id, object_repr, action, message FROM log_entries"
	args := []any{}
	if username != "" {
		query += " WHERE username = ?"
		args = append(args, username)
	}
	query += " ORDER BY action_time DESC, id DESC LIMIT ?"
	args = append(args, limit)

	rows, err := s.sqlDB.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list log entries: %w", err)
	}
	defer rows.Close()

	var entries []storage.LogEntry
	for rows.Next() {
		var entry storage.LogEntry
		var actionTime string
		var action int
		if err := rows.Scan(&entry.ID, &actionTime, &entry.Username, &entry.Model, &entry.ObjectID, &entry.ObjectRepr, &action, &entry.Message); err != nil {
			return nil, fmt.Errorf("scan log entry: %w", err)
		}
		if entry.ActionTime, err = time.Parse(time.RFC3339Nano, actionTime); err != nil {
			return nil, fmt.Errorf("parse log entry time: %w", err)
		}
		entry.Action = storage.LogAction(action)
		entries = append(entries, entry)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate log entries: %w", err)
	}
	return entries, nil
}

var _ storage.Store = (*Store)(nil)
