package templates

import (
	"context"

	"github.com/a-h/templ"
	routepath "github.com/watchdogpolska/small-eod/internal/services/admin/routepath"
)

// ComposePageTitle appends the site title to a page title.
func ComposePageTitle(loc Localizer, title string) string {
	site := T(loc, "site.title")
	if title == "" {
		return site
	}
	return title + " | " + site
}

// Layout wraps body in the admin chrome: header, breadcrumbs and messages.
func Layout(page PageContext, heading PageHeading, body templ.Component) templ.Component {
	return component(func(ctx context.Context, h *html) {
		h.raw("<!DOCTYPE html>")
		h.open("html", "lang", page.Lang)
		h.raw("<head>", `<meta charset="utf-8">`, `<meta name="viewport" content="width=device-width, initial-scale=1">`)
		h.elem("title", ComposePageTitle(page.Loc, heading.Title))
		h.open("link", "rel", "stylesheet", "href", routepath.StaticPrefix+"admin.css")
		h.open("script", "src", routepath.StaticPrefix+"admin.js", "defer?", "on")
		h.close("script")
		h.raw("</head><body>")

		h.open("header", "id", "header")
		h.link(routepath.Root, T(page.Loc, "site.header"), "id", "site-name")
		h.open("div", "id", "user-tools")
		if page.Username != "" {
			h.text(T(page.Loc, "layout.welcome", page.Username))
			h.raw(" ")
			h.open("form", "method", "post", "action", routepath.Logout, "class", "inline")
			h.elem("button", T(page.Loc, "layout.logout"), "type", "submit")
			h.close("form")
		}
		h.open("ul", "class", "languages")
		for _, option := range LanguageOptions(page, page.Loc) {
			h.raw("<li>")
			if option.Active {
				h.elem("strong", option.Label)
			} else {
				h.link(option.URL, option.Label, "hreflang", option.Tag)
			}
			h.raw("</li>")
		}
		h.close("ul")
		h.close("div")
		h.close("header")

		breadcrumbs(h, page, heading)

		if len(page.Messages) > 0 {
			h.open("ul", "class", "messagelist")
			for _, msg := range page.Messages {
				h.elem("li", msg.Text, "class", string(msg.Level))
			}
			h.close("ul")
		}

		h.open("main", "id", "content")
		h.open("div", "class", "page-heading")
		h.elem("h1", heading.Title)
		if heading.ActionURL != "" {
			h.link(heading.ActionURL, heading.ActionLabel, "class", "button addlink")
		}
		h.close("div")
		h.render(ctx, body)
		h.close("main")
		h.raw("</body></html>")
	})
}

func breadcrumbs(h *html, page PageContext, heading PageHeading) {
	crumbs := heading.Breadcrumbs
	if len(crumbs) == 0 {
		crumbs = page.Breadcrumbs
	}
	if len(crumbs) == 0 {
		return
	}
	h.open("nav", "class", "breadcrumbs")
	h.link(routepath.Root, T(page.Loc, "layout.home"))
	for _, crumb := range crumbs {
		h.raw(" &rsaquo; ")
		if crumb.URL == "" {
			h.text(crumb.Label)
			continue
		}
		h.link(crumb.URL, crumb.Label)
	}
	h.close("nav")
}

// ErrorPage renders a localized error message.
func ErrorPage(page PageContext, title string, message string) templ.Component {
	return Layout(page, PageHeading{Title: title}, component(func(_ context.Context, h *html) {
		h.elem("p", message, "class", "errornote")
		h.link(routepath.Root, T(page.Loc, "layout.back_home"))
	}))
}
