package templates

import (
	"net/url"

	admini18n "github.com/watchdogpolska/small-eod/internal/services/admin/i18n"
)

// LanguageOption represents a supported language option in the admin UI.
type LanguageOption struct {
	Tag    string
	Label  string
	URL    string
	Active bool
}

// LanguageOptions returns supported language options with active selection.
func LanguageOptions(page PageContext, loc Localizer) []LanguageOption {
	tags := admini18n.Supported()
	options := make([]LanguageOption, 0, len(tags))
	for _, tag := range tags {
		value := tag.String()
		options = append(options, LanguageOption{
			Tag:    value,
			Label:  T(loc, "language."+value),
			URL:    LanguageURL(page, value),
			Active: value == page.Lang,
		})
	}
	return options
}

// LanguageURL returns the current URL with the language param updated.
func LanguageURL(page PageContext, tag string) string {
	values, err := url.ParseQuery(page.CurrentQuery)
	if err != nil {
		values = url.Values{}
	}
	values.Set(admini18n.LangParam, tag)
	path := page.CurrentPath
	if path == "" {
		path = "/"
	}
	return path + "?" + values.Encode()
}
