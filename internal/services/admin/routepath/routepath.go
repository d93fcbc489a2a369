package routepath

import (
	"net/http"
	"net/url"
	"strconv"
	"strings"
)

const (
	Root = "/"
)

const (
	StaticPrefix = "/static/"
)

const (
	Login  = "/login"
	Logout = "/logout"
)

// Model action segments following "/{app}/{model}".
const (
	ActionAdd    = "add"
	ActionChange = "change"
	ActionDelete = "delete"
	ActionImport = "import"
	ActionExport = "export"
	ActionLookup = "lookup"
)

// App returns the index of one application.
func App(app string) string {
	return "/" + escapeSegment(app)
}

// ChangeList returns the listing of one model.
func ChangeList(app string, model string) string {
	return App(app) + "/" + escapeSegment(model)
}

func Add(app string, model string) string {
	return ChangeList(app, model) + "/" + ActionAdd
}

func Change(app string, model string, id int64) string {
	return ChangeList(app, model) + "/" + strconv.FormatInt(id, 10) + "/" + ActionChange
}

func Delete(app string, model string, id int64) string {
	return ChangeList(app, model) + "/" + strconv.FormatInt(id, 10) + "/" + ActionDelete
}

func Import(app string, model string) string {
	return ChangeList(app, model) + "/" + ActionImport
}

func Export(app string, model string) string {
	return ChangeList(app, model) + "/" + ActionExport
}

// Lookup returns the autocomplete endpoint used by raw-id widgets.
func Lookup(app string, model string) string {
	return ChangeList(app, model) + "/" + ActionLookup
}

// LoginNext returns the login page that redirects back to next.
func LoginNext(next string) string {
	if next == "" || next == Root {
		return Login
	}
	return Login + "?next=" + url.QueryEscape(next)
}

// SafeNext accepts only local absolute paths as redirect targets.
func SafeNext(next string) string {
	if !strings.HasPrefix(next, "/") || strings.HasPrefix(next, "//") || strings.HasPrefix(next, "/\\") {
		return Root
	}
	return next
}

// SplitPathParts normalizes a slash-delimited route suffix into non-empty path segments.
func SplitPathParts(path string) []string {
	rawParts := strings.Split(path, "/")
	parts := make([]string, 0, len(rawParts))
	for _, part := range rawParts {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		parts = append(parts, part)
	}
	return parts
}

// RedirectTrailingSlash canonicalizes request paths by stripping trailing "/"
// characters, keeping the query string.
//
// It returns true when a redirect was written.
func RedirectTrailingSlash(w http.ResponseWriter, r *http.Request) bool {
	if w == nil || r == nil || r.URL == nil {
		return false
	}

	originalPath := r.URL.Path
	canonical := strings.TrimRight(originalPath, "/")
	if canonical == "" {
		canonical = "/"
	}
	if canonical == originalPath {
		return false
	}
	if r.URL.RawQuery != "" {
		canonical += "?" + r.URL.RawQuery
	}

	http.Redirect(w, r, canonical, http.StatusMovedPermanently)
	return true
}

func escapeSegment(value string) string {
	return url.PathEscape(value)
}
