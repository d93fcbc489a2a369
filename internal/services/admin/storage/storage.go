package storage

import (
	"context"
	"time"

	eoderrors "github.com/watchdogpolska/small-eod/internal/platform/errors"
)

// ErrNotFound matches missing admin rows through errors.Is.
var ErrNotFound = eoderrors.New(eoderrors.CodeNotFound, "admin record not found")

// Staff is an operator account.
type Staff struct {
	Username     string
	PasswordHash string
	Superuser    bool
	Active       bool
	// Permissions are codenames such as "change_letter".
	Permissions []string
	CreatedAt   time.Time
}

// Session is one persisted login.
type Session struct {
	ID        string
	Username  string
	CreatedAt time.Time
	ExpiresAt time.Time
}

// LogAction is the kind of change recorded in the action log.
type LogAction int

const (
	LogAddition LogAction = 1
	LogChange   LogAction = 2
	LogDeletion LogAction = 3
)

// LogEntry is one recent-actions row.
type LogEntry struct {
	ID         int64
	ActionTime time.Time
	Username   string
	Model      string
	ObjectID   int64
	ObjectRepr string
	Action     LogAction
	// Message lists changed fields for LogChange entries.
	Message string
}

// StaffStore persists staff accounts.
type StaffStore interface {
	PutStaff(ctx context.Context, staff Staff) error
	GetStaff(ctx context.Context, username string) (Staff, error)
}

// UserSessionStore persists admin user session records.
type UserSessionStore interface {
	PutUserSession(ctx context.Context, session Session) error
	GetUserSession(ctx context.Context, sessionID string) (Session, error)
	DeleteUserSession(ctx context.Context, sessionID string) error
}

// LogStore records admin actions.
type LogStore interface {
	AddLogEntry(ctx context.Context, entry LogEntry) error
	// ListLogEntries returns the newest entries, optionally for one user.
	ListLogEntries(ctx context.Context, username string, limit int) ([]LogEntry, error)
}

// Store is a composite interface for admin storage concerns.
type Store interface {
	StaffStore
	UserSessionStore
	LogStore
	Close() error
}
