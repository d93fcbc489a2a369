package templates

import (
	"context"
	"strconv"

	"github.com/a-h/templ"
)

// Widget selects how a form field is rendered.
type Widget string

const (
	WidgetText             Widget = "text"
	WidgetTextarea         Widget = "textarea"
	WidgetDate             Widget = "date"
	WidgetNumber           Widget = "number"
	WidgetCheckbox         Widget = "checkbox"
	WidgetEmail            Widget = "email"
	WidgetSelect           Widget = "select"
	WidgetSelectMultiple   Widget = "select_multiple"
	WidgetCheckboxMultiple Widget = "checkbox_multiple"
	// WidgetRawID is a text input holding one id, or comma-separated ids
	// when Multiple is set.
	WidgetRawID Widget = "raw_id"
)

// Submit button names understood by the change form handler.
const (
	SubmitSave       = "_save"
	SubmitContinue   = "_continue"
	SubmitAddAnother = "_addanother"
	SubmitAddInline  = "_addinline"
	SubmitMoveInline = "_moveinline"
)

// FormField is one rendered form input.
type FormField struct {
	Name     string
	ID       string
	Label    string
	Widget   Widget
	Multiple bool
	Required bool
	Value    string
	Options  []Option
	Errors   []string
	// LookupURL and AutocompleteURL are set for raw-id widgets.
	LookupURL       string
	AutocompleteURL string
	RelatedLabels   []RelatedLabel
}

// Option is one choice of a select or checkbox list.
type Option struct {
	Value    string
	Label    string
	Selected bool
}

// RelatedLabel names an object currently referenced by a raw-id widget.
type RelatedLabel struct {
	Label string
	URL   string
}

// InlineView is a stacked inline formset.
type InlineView struct {
	Prefix       string
	Title        string
	AddLabel     string
	TotalForms   int
	InitialForms int
	Forms        []InlineForm
}

// InlineForm is one object of an inline formset.
type InlineForm struct {
	Index     int
	Title     string
	ChangeURL string
	ID        int64
	Fields    []FormField
	Errors    []string
	// DeleteName is the checkbox name; empty for forms of new objects.
	DeleteName string
	Delete     bool
	First      bool
	Last       bool
}

// ChangeFormView provides data for the add and change pages.
type ChangeFormView struct {
	Heading   PageHeading
	Action    string
	Fields    []FormField
	Errors    []string
	Inlines   []InlineView
	DeleteURL string
	// HasErrors shows the "please correct" note.
	HasErrors      bool
	ShowSaveAndAdd bool
	ShowContinue   bool
}

// ChangeFormPage renders the add/change form.
func ChangeFormPage(page PageContext, view ChangeFormView) templ.Component {
	return Layout(page, view.Heading, component(func(_ context.Context, h *html) {
		loc := page.Loc
		h.open("form", "method", "post", "action", view.Action, "id", "change-form", "novalidate?", "on")
		if view.HasErrors {
			h.elem("p", T(loc, "changeform.correct_errors"), "class", "errornote")
		}
		errorList(h, view.Errors, "errorlist nonfield")

		h.open("fieldset", "class", "module aligned")
		for _, field := range view.Fields {
			formRow(h, loc, field)
		}
		h.close("fieldset")

		for _, inline := range view.Inlines {
			inlineGroup(h, loc, inline)
		}

		h.open("div", "class", "submit-row")
		h.elem("button", T(loc, "changeform.save"), "type", "submit", "name", SubmitSave, "value", "1", "class", "default")
		if view.ShowSaveAndAdd {
			h.elem("button", T(loc, "changeform.save_add_another"), "type", "submit", "name", SubmitAddAnother, "value", "1")
		}
		if view.ShowContinue {
			h.elem("button", T(loc, "changeform.save_continue"), "type", "submit", "name", SubmitContinue, "value", "1")
		}
		if view.DeleteURL != "" {
			h.link(view.DeleteURL, T(loc, "changeform.delete"), "class", "deletelink")
		}
		h.close("div")
		h.close("form")
	}))
}

func errorList(h *html, errs []string, class string) {
	if len(errs) == 0 {
		return
	}
	h.open("ul", "class", class)
	for _, msg := range errs {
		h.elem("li", msg)
	}
	h.close("ul")
}

func formRow(h *html, loc Localizer, field FormField) {
	class := "form-row field-" + field.Name
	if len(field.Errors) > 0 {
		class += " errors"
	}
	h.open("div", "class", class)
	errorList(h, field.Errors, "errorlist")
	labelClass := ""
	if field.Required {
		labelClass = "required"
	}
	if field.Widget == WidgetCheckbox {
		widget(h, loc, field)
		h.elem("label", field.Label, "for", field.ID, "class", "vCheckboxLabel "+labelClass)
	} else {
		h.elem("label", field.Label, "for", field.ID, "class", labelClass)
		widget(h, loc, field)
	}
	h.close("div")
}

func widget(h *html, loc Localizer, field FormField) {
	required := flag(field.Required)
	switch field.Widget {
	case WidgetTextarea:
		h.open("textarea", "name", field.Name, "id", field.ID, "rows", "5", "cols", "40")
		h.text(field.Value)
		h.close("textarea")
	case WidgetDate:
		h.open("input", "type", "date", "name", field.Name, "id", field.ID, "value", field.Value, "required?", required)
	case WidgetNumber:
		h.open("input", "type", "number", "name", field.Name, "id", field.ID, "value", field.Value, "class", "vIntegerField")
	case WidgetEmail:
		h.open("input", "type", "email", "name", field.Name, "id", field.ID, "value", field.Value, "class", "vTextField")
	case WidgetCheckbox:
		h.open("input", "type", "checkbox", "name", field.Name, "id", field.ID, "checked?", flag(field.Value != ""))
	case WidgetSelect, WidgetSelectMultiple:
		multiple := flag(field.Widget == WidgetSelectMultiple)
		h.open("select", "name", field.Name, "id", field.ID, "multiple?", multiple, "required?", required)
		if field.Widget == WidgetSelect {
			h.elem("option", "---------", "value", "")
		}
		for _, opt := range field.Options {
			h.open("option", "value", opt.Value, "selected?", flag(opt.Selected))
			h.text(opt.Label)
			h.close("option")
		}
		h.close("select")
	case WidgetCheckboxMultiple:
		h.open("ul", "id", field.ID, "class", "checkbox-multiple")
		for i, opt := range field.Options {
			optID := field.ID + "_" + strconv.Itoa(i)
			h.raw("<li>")
			h.open("label", "for", optID)
			h.open("input", "type", "checkbox", "name", field.Name, "value", opt.Value, "id", optID, "checked?", flag(opt.Selected))
			h.text(" " + opt.Label)
			h.close("label")
			h.raw("</li>")
		}
		h.close("ul")
	case WidgetRawID:
		class := "vForeignKeyRawIdAdminField"
		if field.Multiple {
			class = "vManyToManyRawIdAdminField"
		}
		h.open("input", "type", "text", "name", field.Name, "id", field.ID, "value", field.Value, "class", class,
			"data-autocomplete-url", field.AutocompleteURL)
		if field.LookupURL != "" {
			h.raw(" ")
			h.link(field.LookupURL, T(loc, "changeform.lookup"), "class", "related-lookup", "target", "_blank", "rel", "noopener")
		}
		for _, related := range field.RelatedLabels {
			h.raw(" ")
			h.open("strong", "class", "related-label")
			if related.URL != "" {
				h.link(related.URL, related.Label)
			} else {
				h.text(related.Label)
			}
			h.close("strong")
		}
	default:
		h.open("input", "type", "text", "name", field.Name, "id", field.ID, "value", field.Value, "class", "vTextField", "required?", required)
	}
}

func inlineGroup(h *html, loc Localizer, inline InlineView) {
	h.open("div", "class", "inline-group", "id", inline.Prefix+"-group")
	h.elem("h2", inline.Title)
	h.hidden(inline.Prefix+"-TOTAL_FORMS", strconv.Itoa(inline.TotalForms))
	h.hidden(inline.Prefix+"-INITIAL_FORMS", strconv.Itoa(inline.InitialForms))
	for _, form := range inline.Forms {
		prefix := inline.Prefix + "-" + strconv.Itoa(form.Index)
		h.open("div", "class", "inline-related", "id", prefix)
		h.open("h3")
		h.elem("b", form.Title)
		if form.ChangeURL != "" {
			h.raw(" ")
			h.link(form.ChangeURL, T(loc, "changeform.inline_change"), "class", "inlinechangelink")
		}
		h.open("span", "class", "inline-sortable")
		if !form.First {
			h.elem("button", "↑", "type", "submit", "name", SubmitMoveInline, "value", prefix+":up", "title", T(loc, "changeform.move_up"))
		}
		if !form.Last {
			h.elem("button", "↓", "type", "submit", "name", SubmitMoveInline, "value", prefix+":down", "title", T(loc, "changeform.move_down"))
		}
		h.close("span")
		if form.DeleteName != "" {
			h.open("span", "class", "delete")
			h.open("input", "type", "checkbox", "name", form.DeleteName, "id", "id_"+form.DeleteName, "checked?", flag(form.Delete))
			h.elem("label", T(loc, "changeform.inline_delete"), "for", "id_"+form.DeleteName, "class", "inline")
			h.close("span")
		}
		h.close("h3")
		errorList(h, form.Errors, "errorlist nonfield")
		if form.ID > 0 {
			h.hidden(prefix+"-id", strconv.FormatInt(form.ID, 10))
		}
		h.open("fieldset", "class", "module aligned")
		for _, field := range form.Fields {
			formRow(h, loc, field)
		}
		h.close("fieldset")
		h.close("div")
	}
	h.open("div", "class", "add-row")
	h.elem("button", inline.AddLabel, "type", "submit", "name", SubmitAddInline, "value", inline.Prefix)
	h.close("div")
	h.close("div")
}
