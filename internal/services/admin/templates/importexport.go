package templates

import (
	"context"
	"strconv"

	"github.com/a-h/templ"
)

// ImportView provides data for the import upload and preview page.
type ImportView struct {
	Heading PageHeading
	Action  string
	Formats []Option
	Errors  []string
	// Result is set after an upload; Payload and Format are re-posted to
	// confirm a clean dry run.
	Result  *ImportResultView
	Payload string
	Format  string
}

// ImportResultView previews or reports one import.
type ImportResultView struct {
	Headers   []string
	Rows      []ImportRowView
	Totals    []ImportTotal
	HasErrors bool
	Committed bool
}

// ImportRowView is one previewed row.
type ImportRowView struct {
	Number int
	// Type is "new", "update", "skip" or "error".
	Type      string
	TypeLabel string
	Object    string
	Values    []string
	Errors    []string
}

// ImportTotal counts rows of one type.
type ImportTotal struct {
	Label string
	Count int
}

// ImportPage renders the upload form, or the preview with a confirm form.
func ImportPage(page PageContext, view ImportView) templ.Component {
	return Layout(page, view.Heading, component(func(_ context.Context, h *html) {
		loc := page.Loc
		errorList(h, view.Errors, "errorlist nonfield")

		result := view.Result
		if result != nil && !result.HasErrors && !result.Committed {
			h.elem("p", T(loc, "import.preview_ok"))
			h.open("form", "method", "post", "action", view.Action, "id", "import-confirm")
			h.hidden("format", view.Format)
			h.hidden("payload", view.Payload)
			h.hidden("confirm", "1")
			h.elem("button", T(loc, "import.confirm"), "type", "submit")
			h.close("form")
		}

		if result == nil || result.HasErrors {
			h.open("form", "method", "post", "action", view.Action, "enctype", "multipart/form-data", "id", "import-form")
			h.open("fieldset", "class", "module aligned")
			h.raw(`<div class="form-row">`)
			h.elem("label", T(loc, "import.file"), "for", "id_import_file", "class", "required")
			h.open("input", "type", "file", "name", "import_file", "id", "id_import_file", "required?", "on")
			h.raw(`</div><div class="form-row">`)
			h.elem("label", T(loc, "import.format"), "for", "id_format", "class", "required")
			h.open("select", "name", "format", "id", "id_format")
			for _, opt := range view.Formats {
				h.open("option", "value", opt.Value, "selected?", flag(opt.Selected))
				h.text(opt.Label)
				h.close("option")
			}
			h.close("select")
			h.raw(`</div>`)
			h.close("fieldset")
			h.open("div", "class", "submit-row")
			h.elem("button", T(loc, "import.submit"), "type", "submit")
			h.close("div")
			h.close("form")
		}

		if result == nil {
			return
		}
		if result.HasErrors {
			h.elem("p", T(loc, "import.has_errors"), "class", "errornote")
		}
		h.open("ul", "class", "import-totals")
		for _, total := range result.Totals {
			h.elem("li", total.Label+": "+strconv.Itoa(total.Count))
		}
		h.close("ul")

		h.open("table", "class", "import-preview")
		h.raw("<thead><tr><th></th><th></th><th></th>")
		for _, header := range result.Headers {
			h.elem("th", header)
		}
		h.raw("</tr></thead><tbody>")
		for _, row := range result.Rows {
			h.open("tr", "class", "row-"+row.Type)
			h.elem("td", strconv.Itoa(row.Number))
			h.elem("td", row.TypeLabel, "class", "import-type")
			h.elem("td", row.Object)
			for _, value := range row.Values {
				h.elem("td", value)
			}
			h.raw("</tr>")
			if len(row.Errors) > 0 {
				h.raw(`<tr class="row-errors"><td></td>`)
				h.open("td", "colspan", strconv.Itoa(len(result.Headers)+2))
				errorList(h, row.Errors, "errorlist")
				h.close("td")
				h.raw("</tr>")
			}
		}
		h.raw("</tbody>")
		h.close("table")
	}))
}
