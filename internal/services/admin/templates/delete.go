package templates

import (
	"context"
	"strconv"

	"github.com/a-h/templ"
)

// DeleteView provides data for the delete confirmation page.
type DeleteView struct {
	Heading PageHeading
	Action  string
	// Objects are the labels of the objects being deleted.
	Objects []string
	// Cascade lists related objects deleted with them.
	Cascade []string
	// Protected lists related objects that block the deletion.
	Protected []string
	// IDs are re-posted for bulk deletes.
	IDs       []int64
	CancelURL string
}

// DeleteConfirmPage renders the "are you sure" page.
func DeleteConfirmPage(page PageContext, view DeleteView) templ.Component {
	return Layout(page, view.Heading, component(func(_ context.Context, h *html) {
		loc := page.Loc
		if len(view.Protected) > 0 {
			h.elem("p", T(loc, "delete.protected"))
			h.raw("<ul>")
			for _, label := range view.Protected {
				h.elem("li", label)
			}
			h.raw("</ul>")
			h.link(view.CancelURL, T(loc, "delete.back"), "class", "button cancel-link")
			return
		}

		h.elem("p", T(loc, "delete.confirm"))
		h.open("ul", "class", "deleted-objects")
		for _, label := range view.Objects {
			h.elem("li", label)
		}
		for _, label := range view.Cascade {
			h.elem("li", label, "class", "cascade")
		}
		h.close("ul")

		h.open("form", "method", "post", "action", view.Action)
		for _, id := range view.IDs {
			h.hidden(ActionSelectAll, strconv.FormatInt(id, 10))
		}
		if len(view.IDs) > 0 {
			h.hidden("action", "delete_selected")
		}
		h.hidden("post", "yes")
		h.elem("button", T(loc, "delete.submit"), "type", "submit")
		h.raw(" ")
		h.link(view.CancelURL, T(loc, "delete.cancel"), "class", "button cancel-link")
		h.close("form")
	}))
}
