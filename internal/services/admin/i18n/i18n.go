package i18n

import (
	"net/http"
	"strings"
	"time"

	"github.com/watchdogpolska/small-eod/internal/platform/i18n/catalog"
	"golang.org/x/text/language"
	"golang.org/x/text/message"
)

const (
	// LangParam switches the admin language for the request and persists it.
	LangParam = "lang"
	// LangCookieName stores the staff member's language choice.
	LangCookieName = "eod_lang"

	langCookieMaxAge = 365 * 24 * time.Hour
)

var (
	// messages registers the embedded catalogs before any printer is built.
	messages = catalog.Default()

	supportedTags = catalogTags(messages)
	tagMatcher    = language.NewMatcher(supportedTags)
)

// catalogTags lists the base languages that have a catalog, with the base
// locale's language first so the matcher falls back to it.
func catalogTags(bundle *catalog.Bundle) []language.Tag {
	tags := []language.Tag{baseOf(catalog.BaseLocale)}
	for _, locale := range bundle.Locales() {
		tag := baseOf(locale)
		if tag.IsRoot() || containsTag(tags, tag) {
			continue
		}
		tags = append(tags, tag)
	}
	return tags
}

func baseOf(locale string) language.Tag {
	tag, err := language.Parse(locale)
	if err != nil {
		return language.Und
	}
	base, _ := tag.Base()
	tag, err = language.Compose(base)
	if err != nil {
		return language.Und
	}
	return tag
}

func containsTag(tags []language.Tag, tag language.Tag) bool {
	for _, t := range tags {
		if t.String() == tag.String() {
			return true
		}
	}
	return false
}

// Supported returns the languages the admin can render, default first.
func Supported() []language.Tag {
	return append([]language.Tag(nil), supportedTags...)
}

// Default returns the language of the base catalog.
func Default() language.Tag {
	return supportedTags[0]
}

// Catalog returns the message bundle backing the admin printers.
func Catalog() *catalog.Bundle {
	return messages
}

// Printer returns a message printer for tag.
func Printer(tag language.Tag) *message.Printer {
	return message.NewPrinter(tag)
}

// ResolveTag picks the request language from the lang parameter, the language
// cookie and Accept-Language, in that order. The bool reports an explicit
// choice that should be written back as a cookie.
func ResolveTag(r *http.Request) (language.Tag, bool) {
	if r == nil {
		return Default(), false
	}
	if tag, ok := parseTag(r.URL.Query().Get(LangParam)); ok {
		return tag, true
	}
	if cookie, err := r.Cookie(LangCookieName); err == nil {
		if tag, ok := parseTag(cookie.Value); ok {
			return tag, false
		}
	}
	if accept := strings.TrimSpace(r.Header.Get("Accept-Language")); accept != "" {
		if tags, _, err := language.ParseAcceptLanguage(accept); err == nil {
			_, index, confidence := tagMatcher.Match(tags...)
			if confidence != language.No {
				return supportedTags[index], false
			}
		}
	}
	return Default(), false
}

// SetLanguageCookie persists tag for a year.
func SetLanguageCookie(w http.ResponseWriter, tag language.Tag) {
	if w == nil {
		return
	}
	http.SetCookie(w, &http.Cookie{
		Name:     LangCookieName,
		Value:    tag.String(),
		Path:     "/",
		MaxAge:   int(langCookieMaxAge.Seconds()),
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
	})
}

func parseTag(value string) (language.Tag, bool) {
	value = strings.TrimSpace(value)
	if value == "" {
		return language.Tag{}, false
	}
	tag := baseOf(value)
	if tag.IsRoot() || !containsTag(supportedTags, tag) {
		return language.Tag{}, false
	}
	return tag, true
}
