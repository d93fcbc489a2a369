package admin

import (
	"context"
	"encoding/base64"
	"errors"
	"log"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/a-h/templ"
	"github.com/watchdogpolska/small-eod/internal/cases"
	"github.com/watchdogpolska/small-eod/internal/cases/storage"
	eoderrors "github.com/watchdogpolska/small-eod/internal/platform/errors"
	"github.com/watchdogpolska/small-eod/internal/platform/requestctx"
	"github.com/watchdogpolska/small-eod/internal/services/admin/i18n"
	routepath "github.com/watchdogpolska/small-eod/internal/services/admin/routepath"
	adminstorage "github.com/watchdogpolska/small-eod/internal/services/admin/storage"
	"github.com/watchdogpolska/small-eod/internal/services/admin/templates"
	"golang.org/x/text/message"
)

const (
	// flashCookieName carries one message across a post/redirect/get.
	flashCookieName = "eod_flash"
	// recentActionsLimit caps the operator's actions shown on the index.
	recentActionsLimit = 10
	// maxFormBytes caps urlencoded and multipart request bodies.
	maxFormBytes = 10 << 20
)

// Handler serves the admin site.
type Handler struct {
	site  *Site
	store storage.Store
	logs  adminstorage.LogStore
	auth  *Authenticator
	now   func() time.Time
}

// HandlerConfig wires a Handler's dependencies.
type HandlerConfig struct {
	Site  *Site
	Store storage.Store
	// Logs records admin actions; nil disables the action log.
	Logs adminstorage.LogStore
	// Auth enables staff login; nil serves every request as a superuser.
	Auth *Authenticator
}

// NewHandler builds the HTTP handler for the admin site.
func NewHandler(cfg HandlerConfig) http.Handler {
	return newHandler(cfg).routes()
}

func newHandler(cfg HandlerConfig) *Handler {
	return &Handler{
		site:  cfg.Site,
		store: cfg.Store,
		logs:  cfg.Logs,
		auth:  cfg.Auth,
		now:   time.Now,
	}
}

// routes wires the HTTP routes for the admin handler.
func (h *Handler) routes() http.Handler {
	mux := http.NewServeMux()
	mux.Handle(routepath.Login, http.HandlerFunc(h.handleLogin))
	mux.Handle(routepath.Logout, http.HandlerFunc(h.handleLogout))
	mux.Handle(routepath.Root, http.HandlerFunc(h.handleSite))
	if h.auth == nil {
		return withSuperuser(mux)
	}
	return h.auth.Require(mux)
}

// withSuperuser marks every request as an anonymous superuser.
func withSuperuser(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ctx := requestctx.WithStaff(r.Context(), requestctx.Staff{Superuser: true})
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// handleSite dispatches /{app}/{model}/... paths.
func (h *Handler) handleSite(w http.ResponseWriter, r *http.Request) {
	if routepath.RedirectTrailingSlash(w, r) {
		return
	}
	parts := routepath.SplitPathParts(r.URL.Path)
	if len(parts) == 0 {
		h.handleIndex(w, r, "")
		return
	}
	if parts[0] != cases.AppLabel {
		h.renderNotFound(w, r)
		return
	}
	if len(parts) == 1 {
		h.handleIndex(w, r, parts[0])
		return
	}
	ma, ok := h.site.Get(cases.Model(parts[1]))
	if !ok {
		h.renderNotFound(w, r)
		return
	}

	switch len(parts) {
	case 2:
		h.handleChangeList(w, r, ma)
		return
	case 3:
		switch parts[2] {
		case routepath.ActionAdd:
			h.handleChangeForm(w, r, ma, 0)
			return
		case routepath.ActionImport:
			h.handleImport(w, r, ma)
			return
		case routepath.ActionExport:
			h.handleExport(w, r, ma)
			return
		case routepath.ActionLookup:
			h.handleLookup(w, r, ma)
			return
		}
		if id, ok := parseObjectID(parts[2]); ok {
			http.Redirect(w, r, routepath.Change(cases.AppLabel, string(ma.Model), id), http.StatusFound)
			return
		}
	case 4:
		id, ok := parseObjectID(parts[2])
		if !ok {
			break
		}
		switch parts[3] {
		case routepath.ActionChange:
			h.handleChangeForm(w, r, ma, id)
			return
		case routepath.ActionDelete:
			h.handleDelete(w, r, ma, id)
			return
		}
	}
	h.renderNotFound(w, r)
}

func parseObjectID(value string) (int64, bool) {
	id, err := strconv.ParseInt(value, 10, 64)
	if err != nil || id <= 0 {
		return 0, false
	}
	return id, true
}

// handleIndex lists the models the operator may view, optionally limited to
// one app, plus their recent actions.
func (h *Handler) handleIndex(w http.ResponseWriter, r *http.Request, app string) {
	if r.Method != http.MethodGet && r.Method != http.MethodHead {
		w.Header().Set("Allow", "GET, HEAD")
		http.Error(w, http.StatusText(http.StatusMethodNotAllowed), http.StatusMethodNotAllowed)
		return
	}
	page, loc := h.pageContext(w, r)
	staff := staffFromRequest(r)

	section := templates.AppSection{
		Label: templates.T(loc, "app."+cases.AppLabel),
		URL:   routepath.App(cases.AppLabel),
	}
	for _, ma := range h.site.Admins() {
		if !canView(staff, ma.Model) {
			continue
		}
		link := templates.ModelLink{
			Label: modelPlural(loc, ma.Model),
			URL:   routepath.ChangeList(cases.AppLabel, string(ma.Model)),
		}
		if staff.HasPerm(permCodename(permAdd, ma.Model)) {
			link.AddURL = routepath.Add(cases.AppLabel, string(ma.Model))
		}
		section.Models = append(section.Models, link)
	}

	var view templates.IndexView
	if len(section.Models) > 0 {
		view.Apps = append(view.Apps, section)
	}
	view.RecentActions = h.recentActions(r.Context(), loc, staff)
	if app != "" {
		page.Breadcrumbs = append(page.Breadcrumbs, templates.Breadcrumb{Label: section.Label})
	}
	h.render(w, r, http.StatusOK, templates.IndexPage(page, view))
}

func (h *Handler) recentActions(ctx context.Context, loc *message.Printer, staff requestctx.Staff) []templates.RecentAction {
	if h.logs == nil || staff.Username == "" {
		return nil
	}
	entries, err := h.logs.ListLogEntries(ctx, staff.Username, recentActionsLimit)
	if err != nil {
		log.Printf("list log entries: %v", err)
		return nil
	}
	actions := make([]templates.RecentAction, 0, len(entries))
	for _, entry := range entries {
		model := cases.Model(entry.Model)
		action := templates.RecentAction{
			Kind:       logKind(entry.Action),
			Label:      entry.ObjectRepr,
			ModelLabel: modelName(loc, model),
		}
		if entry.Action != adminstorage.LogDeletion && model.Valid() {
			action.URL = routepath.Change(cases.AppLabel, entry.Model, entry.ObjectID)
		}
		actions = append(actions, action)
	}
	return actions
}

func logKind(action adminstorage.LogAction) string {
	switch action {
	case adminstorage.LogAddition:
		return "addition"
	case adminstorage.LogDeletion:
		return "deletion"
	default:
		return "change"
	}
}

// localizer resolves the request language, persisting an explicit choice.
func (h *Handler) localizer(w http.ResponseWriter, r *http.Request) (*message.Printer, string) {
	tag, persist := i18n.ResolveTag(r)
	if persist {
		i18n.SetLanguageCookie(w, tag)
	}
	return i18n.Printer(tag), tag.String()
}

func (h *Handler) pageContext(w http.ResponseWriter, r *http.Request) (templates.PageContext, *message.Printer) {
	loc, lang := h.localizer(w, r)
	page := templates.PageContext{
		Lang:         lang,
		Loc:          loc,
		CurrentPath:  r.URL.Path,
		CurrentQuery: r.URL.RawQuery,
		Username:     staffFromRequest(r).Username,
	}
	if msg, ok := popFlash(w, r); ok {
		page.Messages = append(page.Messages, msg)
	}
	return page, loc
}

func staffFromRequest(r *http.Request) requestctx.Staff {
	staff, _ := requestctx.StaffFromContext(r.Context())
	return staff
}

// modelKey is the message key of a model's singular name.
func modelKey(model cases.Model) string {
	return "model." + string(model)
}

func modelName(loc templates.Localizer, model cases.Model) string {
	return templates.T(loc, modelKey(model))
}

func modelPlural(loc templates.Localizer, model cases.Model) string {
	return templates.T(loc, modelKey(model)+".plural")
}

// modelBreadcrumbs links home, the app and the model's changelist.
func modelBreadcrumbs(loc templates.Localizer, model cases.Model) []templates.Breadcrumb {
	return []templates.Breadcrumb{
		{Label: templates.T(loc, "app."+cases.AppLabel), URL: routepath.App(cases.AppLabel)},
		{Label: modelPlural(loc, model), URL: routepath.ChangeList(cases.AppLabel, string(model))},
	}
}

// Permission actions, combined with a model name into codenames such as
// "change_case".
const (
	permView   = "view"
	permAdd    = "add"
	permChange = "change"
	permDelete = "delete"
)

func permCodename(action string, model cases.Model) string {
	return action + "_" + string(model)
}

// canView is granted by either the view or the change permission.
func canView(staff requestctx.Staff, model cases.Model) bool {
	return staff.HasPerm(permCodename(permView, model)) || staff.HasPerm(permCodename(permChange, model))
}

// requirePerm renders 403 unless the operator holds every codename.
func (h *Handler) requirePerm(w http.ResponseWriter, r *http.Request, allowed bool) bool {
	if allowed {
		return true
	}
	page, loc := h.pageContext(w, r)
	h.render(w, r, eoderrors.CodePermissionDenied.HTTPStatus(), templates.ErrorPage(page,
		templates.T(loc, "error.permission_denied_title"),
		templates.T(loc, "error.permission_denied")))
	return false
}

// requireSameOrigin rejects cross-site form posts by their Origin or Referer.
func requireSameOrigin(w http.ResponseWriter, r *http.Request, loc *message.Printer) bool {
	if origin := strings.TrimSpace(r.Header.Get("Origin")); origin != "" {
		if !sameOrigin(origin, r) {
			http.Error(w, loc.Sprintf("error.csrf_invalid"), http.StatusForbidden)
			return false
		}
		return true
	}
	if referer := strings.TrimSpace(r.Referer()); referer != "" {
		if !sameOrigin(referer, r) {
			http.Error(w, loc.Sprintf("error.csrf_invalid"), http.StatusForbidden)
			return false
		}
		return true
	}
	http.Error(w, loc.Sprintf("error.csrf_invalid"), http.StatusForbidden)
	return false
}

func sameOrigin(rawURL string, r *http.Request) bool {
	if rawURL == "" || rawURL == "null" || r == nil {
		return false
	}
	parsed, err := url.Parse(rawURL)
	if err != nil || parsed.Host == "" {
		return false
	}
	if !strings.EqualFold(parsed.Host, r.Host) {
		return false
	}
	if parsed.Scheme != "" {
		return strings.EqualFold(parsed.Scheme, requestScheme(r))
	}
	return true
}

func requestScheme(r *http.Request) string {
	if r == nil {
		return "http"
	}
	if proto := strings.TrimSpace(r.Header.Get("X-Forwarded-Proto")); proto != "" {
		parts := strings.Split(proto, ",")
		return strings.ToLower(strings.TrimSpace(parts[0]))
	}
	if r.TLS != nil {
		return "https"
	}
	return "http"
}

func isHTTPS(r *http.Request) bool {
	return requestScheme(r) == "https"
}

// parsePost checks the origin and parses the body of a form submission,
// urlencoded or multipart.
func parsePost(w http.ResponseWriter, r *http.Request, loc *message.Printer) bool {
	if !requireSameOrigin(w, r, loc) {
		return false
	}
	r.Body = http.MaxBytesReader(w, r.Body, maxFormBytes)
	var err error
	if strings.HasPrefix(r.Header.Get("Content-Type"), "multipart/form-data") {
		err = r.ParseMultipartForm(maxFormBytes)
	} else {
		err = r.ParseForm()
	}
	if err != nil {
		http.Error(w, loc.Sprintf("error.invalid_form"), http.StatusBadRequest)
		return false
	}
	return true
}

// setFlash stores msg for the next rendered page.
func setFlash(w http.ResponseWriter, r *http.Request, msg templates.Message) {
	value := url.Values{"level": {string(msg.Level)}, "text": {msg.Text}}.Encode()
	http.SetCookie(w, &http.Cookie{
		Name:     flashCookieName,
		Value:    base64.RawURLEncoding.EncodeToString([]byte(value)),
		Path:     routepath.Root,
		HttpOnly: true,
		Secure:   isHTTPS(r),
		SameSite: http.SameSiteLaxMode,
	})
}

// popFlash reads and clears the pending message.
func popFlash(w http.ResponseWriter, r *http.Request) (templates.Message, bool) {
	cookie, err := r.Cookie(flashCookieName)
	if err != nil {
		return templates.Message{}, false
	}
	http.SetCookie(w, &http.Cookie{Name: flashCookieName, Value: "", Path: routepath.Root, MaxAge: -1})
	raw, err := base64.RawURLEncoding.DecodeString(cookie.Value)
	if err != nil {
		return templates.Message{}, false
	}
	values, err := url.ParseQuery(string(raw))
	if err != nil || values.Get("text") == "" {
		return templates.Message{}, false
	}
	level := templates.MessageLevel(values.Get("level"))
	switch level {
	case templates.LevelSuccess, templates.LevelWarning, templates.LevelError:
	default:
		level = templates.LevelSuccess
	}
	return templates.Message{Level: level, Text: values.Get("text")}, true
}

// logAction records one admin action. Failures are logged, not surfaced.
func (h *Handler) logAction(ctx context.Context, action adminstorage.LogAction, model cases.Model, id int64, repr string, msg string) {
	if h.logs == nil {
		return
	}
	staff, _ := requestctx.StaffFromContext(ctx)
	entry := adminstorage.LogEntry{
		ActionTime: h.now().UTC(),
		Username:   staff.Username,
		Model:      string(model),
		ObjectID:   id,
		ObjectRepr: repr,
		Action:     action,
		Message:    msg,
	}
	if err := h.logs.AddLogEntry(ctx, entry); err != nil {
		log.Printf("add log entry for %s %d: %v", model, id, err)
	}
}

// loadObject fetches one object, rendering 404 when it does not exist.
func (h *Handler) loadObject(w http.ResponseWriter, r *http.Request, ma *ModelAdmin, id int64) (Object, bool) {
	obj, err := ma.source.get(r.Context(), h.store, id)
	if err == nil {
		return obj, true
	}
	if errors.Is(err, storage.ErrNotFound) {
		h.renderNotFound(w, r)
		return nil, false
	}
	h.renderServerError(w, r, "get "+string(ma.Model), err)
	return nil, false
}

func (h *Handler) render(w http.ResponseWriter, r *http.Request, status int, component templ.Component) {
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(status)
	if r.Method == http.MethodHead {
		return
	}
	if err := component.Render(r.Context(), w); err != nil {
		log.Printf("render %s: %v", r.URL.Path, err)
	}
}

func (h *Handler) renderNotFound(w http.ResponseWriter, r *http.Request) {
	page, loc := h.pageContext(w, r)
	h.render(w, r, http.StatusNotFound, templates.ErrorPage(page,
		templates.T(loc, "error.not_found_title"),
		templates.T(loc, "error.not_found")))
}

// renderServerError logs err and shows a generic message.
func (h *Handler) renderServerError(w http.ResponseWriter, r *http.Request, op string, err error) {
	log.Printf("%s: %v", op, err)
	page, loc := h.pageContext(w, r)
	h.render(w, r, http.StatusInternalServerError, templates.ErrorPage(page,
		templates.T(loc, "error.server_title"),
		templates.T(loc, "error.server")))
}
