package admin

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	eoderrors "github.com/watchdogpolska/small-eod/internal/platform/errors"
	"github.com/watchdogpolska/small-eod/internal/platform/requestctx"
	routepath "github.com/watchdogpolska/small-eod/internal/services/admin/routepath"
	adminstorage "github.com/watchdogpolska/small-eod/internal/services/admin/storage"
	"github.com/watchdogpolska/small-eod/internal/services/admin/templates"
	"golang.org/x/crypto/bcrypt"
)

// tokenCookieName carries the signed staff session token.
const tokenCookieName = "eod_admin_token"

// DefaultSessionTTL is how long a login lasts when no TTL is configured.
const DefaultSessionTTL = 12 * time.Hour

// tokenIssuer is the iss claim of session tokens.
const tokenIssuer = "small-eod-admin"

var (
	errInvalidToken   = eoderrors.New(eoderrors.CodeUnauthenticated, "invalid session token")
	errBadCredentials = eoderrors.New(eoderrors.CodeUnauthenticated, "invalid username or password")
	errInactiveStaff  = eoderrors.New(eoderrors.CodePermissionDenied, "staff account is inactive")
)

// AuthConfig enables staff login.
type AuthConfig struct {
	// Secret signs session tokens with HS256.
	Secret string
	// TTL bounds a session; zero uses DefaultSessionTTL.
	TTL time.Duration
}

// Authenticator verifies staff credentials and session cookies.
type Authenticator struct {
	store  adminstorage.Store
	secret []byte
	ttl    time.Duration
	now    func() time.Time
}

// NewAuthenticator returns nil when cfg carries no secret, which leaves the
// admin open to everyone as a superuser.
func NewAuthenticator(store adminstorage.Store, cfg AuthConfig) (*Authenticator, error) {
	secret := strings.TrimSpace(cfg.Secret)
	if secret == "" {
		return nil, nil
	}
	if store == nil {
		return nil, errors.New("admin store is required for staff login")
	}
	ttl := cfg.TTL
	if ttl <= 0 {
		ttl = DefaultSessionTTL
	}
	return &Authenticator{store: store, secret: []byte(secret), ttl: ttl, now: time.Now}, nil
}

// HashPassword returns the bcrypt hash stored for a staff password.
func HashPassword(password string) (string, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return "", fmt.Errorf("hash password: %w", err)
	}
	return string(hash), nil
}

// CheckPassword reports whether password matches hash.
func CheckPassword(hash, password string) bool {
	return bcrypt.CompareHashAndPassword([]byte(hash), []byte(password)) == nil
}

// sessionClaims is the JWT payload of a session cookie.
type sessionClaims struct {
	jwt.RegisteredClaims
}

// Login checks credentials and starts a session, returning the signed token.
func (a *Authenticator) Login(ctx context.Context, username, password string) (string, time.Time, error) {
	staff, err := a.store.GetStaff(ctx, username)
	if errors.Is(err, adminstorage.ErrNotFound) {
		return "", time.Time{}, errBadCredentials
	}
	if err != nil {
		return "", time.Time{}, fmt.Errorf("get staff: %w", err)
	}
	if !CheckPassword(staff.PasswordHash, password) {
		return "", time.Time{}, errBadCredentials
	}
	if !staff.Active {
		return "", time.Time{}, errInactiveStaff
	}

	now := a.now().UTC()
	session := adminstorage.Session{
		ID:        uuid.NewString(),
		Username:  staff.Username,
		CreatedAt: now,
		ExpiresAt: now.Add(a.ttl),
	}
	if err := a.store.PutUserSession(ctx, session); err != nil {
		return "", time.Time{}, fmt.Errorf("put session: %w", err)
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, sessionClaims{
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    tokenIssuer,
			Subject:   staff.Username,
			ID:        session.ID,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(session.ExpiresAt),
		},
	})
	signed, err := token.SignedString(a.secret)
	if err != nil {
		return "", time.Time{}, fmt.Errorf("sign session token: %w", err)
	}
	return signed, session.ExpiresAt, nil
}

// Authenticate resolves a session token to the staff member behind it.
func (a *Authenticator) Authenticate(ctx context.Context, raw string) (requestctx.Staff, error) {
	var claims sessionClaims
	_, err := jwt.ParseWithClaims(raw, &claims, func(*jwt.Token) (any, error) {
		return a.secret, nil
	},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithIssuer(tokenIssuer),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(a.now),
	)
	if err != nil {
		return requestctx.Staff{}, eoderrors.Wrap(eoderrors.CodeUnauthenticated, "parse session token", err)
	}
	if claims.ID == "" || claims.Subject == "" {
		return requestctx.Staff{}, errInvalidToken
	}

	session, err := a.store.GetUserSession(ctx, claims.ID)
	if errors.Is(err, adminstorage.ErrNotFound) {
		return requestctx.Staff{}, errInvalidToken
	}
	if err != nil {
		return requestctx.Staff{}, fmt.Errorf("get session: %w", err)
	}
	if session.Username != claims.Subject || !session.ExpiresAt.After(a.now()) {
		return requestctx.Staff{}, errInvalidToken
	}

	staff, err := a.store.GetStaff(ctx, session.Username)
	if errors.Is(err, adminstorage.ErrNotFound) {
		return requestctx.Staff{}, errInvalidToken
	}
	if err != nil {
		return requestctx.Staff{}, fmt.Errorf("get staff: %w", err)
	}
	if !staff.Active {
		return requestctx.Staff{}, errInactiveStaff
	}
	perms := make(map[string]bool, len(staff.Permissions))
	for _, p := range staff.Permissions {
		perms[p] = true
	}
	return requestctx.Staff{
		Username:    staff.Username,
		SessionID:   session.ID,
		Superuser:   staff.Superuser,
		Permissions: perms,
	}, nil
}

// Logout revokes a session.
func (a *Authenticator) Logout(ctx context.Context, sessionID string) error {
	if sessionID == "" {
		return nil
	}
	err := a.store.DeleteUserSession(ctx, sessionID)
	if err != nil && !errors.Is(err, adminstorage.ErrNotFound) {
		return fmt.Errorf("delete session: %w", err)
	}
	return nil
}

// Require lets only authenticated, active staff through. Static assets and
// the login page stay public.
func (a *Authenticator) Require(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if isAuthExempt(r.URL.Path) {
			next.ServeHTTP(w, r)
			return
		}
		cookie, err := r.Cookie(tokenCookieName)
		if err != nil || strings.TrimSpace(cookie.Value) == "" {
			http.Redirect(w, r, routepath.LoginNext(r.URL.RequestURI()), http.StatusFound)
			return
		}
		staff, err := a.Authenticate(r.Context(), cookie.Value)
		switch {
		case err == nil:
		case eoderrors.IsCode(err, eoderrors.CodePermissionDenied):
			http.Error(w, http.StatusText(http.StatusForbidden), http.StatusForbidden)
			return
		case eoderrors.IsCode(err, eoderrors.CodeUnauthenticated):
			clearTokenCookie(w, r)
			http.Redirect(w, r, routepath.LoginNext(r.URL.RequestURI()), http.StatusFound)
			return
		default:
			log.Printf("admin auth: %v", err)
			http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
			return
		}
		next.ServeHTTP(w, r.WithContext(requestctx.WithStaff(r.Context(), staff)))
	})
}

// isAuthExempt returns true for paths that should bypass authentication.
func isAuthExempt(path string) bool {
	return path == routepath.Login || strings.HasPrefix(path, routepath.StaticPrefix)
}

func setTokenCookie(w http.ResponseWriter, r *http.Request, token string, expires time.Time) {
	http.SetCookie(w, &http.Cookie{
		Name:     tokenCookieName,
		Value:    token,
		Path:     routepath.Root,
		Expires:  expires,
		HttpOnly: true,
		Secure:   isHTTPS(r),
		SameSite: http.SameSiteLaxMode,
	})
}

func clearTokenCookie(w http.ResponseWriter, r *http.Request) {
	http.SetCookie(w, &http.Cookie{
		Name:     tokenCookieName,
		Value:    "",
		Path:     routepath.Root,
		MaxAge:   -1,
		HttpOnly: true,
		Secure:   isHTTPS(r),
		SameSite: http.SameSiteLaxMode,
	})
}

// handleLogin renders and processes the sign-in form.
func (h *Handler) handleLogin(w http.ResponseWriter, r *http.Request) {
	if h.auth == nil {
		http.Redirect(w, r, routepath.Root, http.StatusFound)
		return
	}
	switch r.Method {
	case http.MethodGet, http.MethodHead:
		page, _ := h.pageContext(w, r)
		h.render(w, r, http.StatusOK, templates.LoginPage(page, templates.LoginView{
			Next: routepath.SafeNext(r.URL.Query().Get("next")),
		}))
	case http.MethodPost:
		loc, _ := h.localizer(w, r)
		if !parsePost(w, r, loc) {
			return
		}
		username := strings.TrimSpace(r.PostForm.Get("username"))
		next := routepath.SafeNext(r.PostForm.Get("next"))
		token, expires, err := h.auth.Login(r.Context(), username, r.PostForm.Get("password"))
		if err != nil {
			view := templates.LoginView{Next: next, Username: username}
			status := eoderrors.HTTPStatus(err)
			switch {
			case eoderrors.IsCode(err, eoderrors.CodeUnauthenticated):
				view.Error = templates.T(loc, "login.invalid")
			case eoderrors.IsCode(err, eoderrors.CodePermissionDenied):
				view.Error = templates.T(loc, "login.inactive")
			default:
				h.renderServerError(w, r, "login", err)
				return
			}
			page, _ := h.pageContext(w, r)
			h.render(w, r, status, templates.LoginPage(page, view))
			return
		}
		setTokenCookie(w, r, token, expires)
		http.Redirect(w, r, next, http.StatusSeeOther)
	default:
		w.Header().Set("Allow", "GET, HEAD, POST")
		http.Error(w, http.StatusText(http.StatusMethodNotAllowed), http.StatusMethodNotAllowed)
	}
}

// handleLogout ends the current session.
func (h *Handler) handleLogout(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		w.Header().Set("Allow", "POST")
		http.Error(w, http.StatusText(http.StatusMethodNotAllowed), http.StatusMethodNotAllowed)
		return
	}
	loc, _ := h.localizer(w, r)
	if !requireSameOrigin(w, r, loc) {
		return
	}
	if h.auth != nil {
		if err := h.auth.Logout(r.Context(), staffFromRequest(r).SessionID); err != nil {
			log.Printf("admin logout: %v", err)
		}
		clearTokenCookie(w, r)
	}
	http.Redirect(w, r, routepath.Login, http.StatusSeeOther)
}
