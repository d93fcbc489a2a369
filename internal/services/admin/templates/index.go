package templates

import (
	"context"

	"github.com/a-h/templ"
)

// IndexView provides data for the admin index page.
type IndexView struct {
	Apps          []AppSection
	RecentActions []RecentAction
}

// AppSection lists the models of one application.
type AppSection struct {
	Label  string
	URL    string
	Models []ModelLink
}

// ModelLink points at one model's changelist. AddURL is empty when the
// operator may not add objects.
type ModelLink struct {
	Label  string
	URL    string
	AddURL string
}

// RecentAction is one of the operator's own log entries.
type RecentAction struct {
	// Kind is "addition", "change" or "deletion".
	Kind       string
	Label      string
	ModelLabel string
	// URL is empty for deleted objects.
	URL string
}

// IndexPage renders the application list and the recent actions module.
func IndexPage(page PageContext, view IndexView) templ.Component {
	heading := PageHeading{Title: T(page.Loc, "index.title")}
	return Layout(page, heading, component(func(_ context.Context, h *html) {
		h.open("div", "id", "content-main")
		if len(view.Apps) == 0 {
			h.elem("p", T(page.Loc, "index.no_permissions"))
		}
		for _, app := range view.Apps {
			h.open("table", "class", "module")
			h.raw("<caption>")
			h.link(app.URL, app.Label, "class", "section")
			h.raw("</caption>")
			for _, model := range app.Models {
				h.raw("<tr><th scope=\"row\">")
				h.link(model.URL, model.Label)
				h.raw("</th><td>")
				if model.AddURL != "" {
					h.link(model.AddURL, T(page.Loc, "index.add"), "class", "addlink")
				}
				h.raw("</td></tr>")
			}
			h.close("table")
		}
		h.close("div")

		h.open("div", "id", "content-related")
		h.open("div", "class", "module", "id", "recent-actions-module")
		h.elem("h2", T(page.Loc, "index.recent_actions"))
		h.elem("h3", T(page.Loc, "index.my_actions"))
		if len(view.RecentActions) == 0 {
			h.elem("p", T(page.Loc, "index.none_available"))
		} else {
			h.open("ul", "class", "actionlist")
			for _, action := range view.RecentActions {
				h.open("li", "class", action.Kind+"link")
				if action.URL != "" {
					h.link(action.URL, action.Label)
				} else {
					h.text(action.Label)
				}
				h.raw("<br>")
				h.elem("span", action.ModelLabel, "class", "mini quiet")
				h.close("li")
			}
			h.close("ul")
		}
		h.close("div")
		h.close("div")
	}))
}
