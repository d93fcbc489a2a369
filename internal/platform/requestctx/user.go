package requestctx

import "context"

// Staff describes the authenticated operator for the current request.
type Staff struct {
	Username    string
	SessionID   string
	Superuser   bool
	Permissions map[string]bool
}

// HasPerm reports whether the operator holds codename, e.g. "change_case".
func (s Staff) HasPerm(codename string) bool {
	if s.Superuser {
		return true
	}
	return s.Permissions[codename]
}

// staffContextKey is the context key for authenticated staff identity.
type staffContextKey struct{}

// WithStaff stores the authenticated operator in context.
func WithStaff(ctx context.Context, staff Staff) context.Context {
	if ctx == nil {
		ctx = context.Background()
	}
	return context.WithValue(ctx, staffContextKey{}, staff)
}

// StaffFromContext returns the operator stored in context.
func StaffFromContext(ctx context.Context) (Staff, bool) {
	if ctx == nil {
		return Staff{}, false
	}
	value, ok := ctx.Value(staffContextKey{}).(Staff)
	return value, ok
}
