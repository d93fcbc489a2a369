package templates

import (
	"context"

	"github.com/a-h/templ"
	routepath "github.com/watchdogpolska/small-eod/internal/services/admin/routepath"
)

// LoginView provides data for the staff sign-in form.
type LoginView struct {
	Next     string
	Username string
	Error    string
}

// LoginPage renders the sign-in form.
func LoginPage(page PageContext, view LoginView) templ.Component {
	heading := PageHeading{Title: T(page.Loc, "login.title")}
	return Layout(page, heading, component(func(_ context.Context, h *html) {
		if view.Error != "" {
			h.elem("p", view.Error, "class", "errornote")
		}
		h.open("form", "method", "post", "action", routepath.Login, "id", "login-form")
		h.hidden("next", view.Next)
		h.raw(`<div class="form-row">`)
		h.elem("label", T(page.Loc, "login.username"), "for", "id_username")
		h.open("input", "type", "text", "name", "username", "id", "id_username", "value", view.Username, "autocomplete", "username", "required?", "on", "autofocus?", "on")
		h.raw(`</div><div class="form-row">`)
		h.elem("label", T(page.Loc, "login.password"), "for", "id_password")
		h.open("input", "type", "password", "name", "password", "id", "id_password", "autocomplete", "current-password", "required?", "on")
		h.raw(`</div><div class="submit-row">`)
		h.elem("button", T(page.Loc, "login.submit"), "type", "submit")
		h.raw(`</div>`)
		h.close("form")
	}))
}
