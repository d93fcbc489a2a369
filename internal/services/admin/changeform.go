package admin

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"sort"
	"strconv"
	"strings"

	"github.com/watchdogpolska/small-eod/internal/cases"
	"github.com/watchdogpolska/small-eod/internal/cases/storage"
	routepath "github.com/watchdogpolska/small-eod/internal/services/admin/routepath"
	adminstorage "github.com/watchdogpolska/small-eod/internal/services/admin/storage"
	"github.com/watchdogpolska/small-eod/internal/services/admin/templates"
	"golang.org/x/text/message"
)

// inline returns the model's inline, if any.
func (ma *ModelAdmin) inline() Inline {
	if len(ma.Inlines) == 0 {
		return nil
	}
	return ma.Inlines[0]
}

// changeForm is the state rendered by one change form response.
type changeForm struct {
	ma     *ModelAdmin
	obj    Object
	values url.Values
	forms  []inlineForm
	errs   *cases.ValidationError
}

func (h *Handler) handleChangeForm(w http.ResponseWriter, r *http.Request, ma *ModelAdmin, id int64) {
	if r.Method != http.MethodGet && r.Method != http.MethodHead && r.Method != http.MethodPost {
		w.Header().Set("Allow", "GET, HEAD, POST")
		http.Error(w, http.StatusText(http.StatusMethodNotAllowed), http.StatusMethodNotAllowed)
		return
	}
	staff := staffFromRequest(r)
	adding := id == 0
	var allowed bool
	switch {
	case adding:
		allowed = staff.HasPerm(permCodename(permAdd, ma.Model))
	case r.Method == http.MethodPost:
		allowed = staff.HasPerm(permCodename(permChange, ma.Model))
	default:
		allowed = canView(staff, ma.Model)
	}
	if !h.requirePerm(w, r, allowed) {
		return
	}

	obj := ma.source.blank()
	if !adding {
		var ok bool
		if obj, ok = h.loadObject(w, r, ma, id); !ok {
			return
		}
	}
	if r.Method == http.MethodPost {
		h.submitChangeForm(w, r, ma, obj)
		return
	}

	ctx := r.Context()
	form := changeForm{ma: ma, obj: obj, values: ma.source.values(obj)}
	if adding {
		form.values = initialValues(ma, r.URL.Query())
	}
	if inline := ma.inline(); inline != nil {
		forms, err := inline.initial(ctx, h.store, obj.PK())
		if err != nil {
			h.renderServerError(w, r, "load inline", err)
			return
		}
		for i := 0; i < inline.Extra(); i++ {
			forms = addBlankForm(inline, forms)
		}
		form.forms = forms
	}
	h.renderChangeForm(w, r, form)
}

// initialValues prefills an add form from query params naming its fields.
func initialValues(ma *ModelAdmin, query url.Values) url.Values {
	values := url.Values{}
	for _, f := range ma.source.fields() {
		if v, ok := query[f.Name]; ok {
			values[f.Name] = v
		}
	}
	return values
}

// submitChangeForm handles the inline buttons and the save buttons.
func (h *Handler) submitChangeForm(w http.ResponseWriter, r *http.Request, ma *ModelAdmin, obj Object) {
	loc, _ := h.localizer(w, r)
	if !parsePost(w, r, loc) {
		return
	}
	ctx := r.Context()
	posted := r.PostForm
	form := changeForm{ma: ma, obj: obj, values: posted}

	inline := ma.inline()
	if inline != nil {
		form.forms = parseFormset(inline, posted)
		if err := h.fillInlineLabels(ctx, inline, obj, form.forms); err != nil {
			h.renderServerError(w, r, "load inline", err)
			return
		}
		if posted.Get(templates.SubmitAddInline) == inline.Prefix() {
			form.forms = addBlankForm(inline, form.forms)
			h.renderChangeForm(w, r, form)
			return
		}
		if move := posted.Get(templates.SubmitMoveInline); move != "" {
			if index, direction, ok := parseMove(inline.Prefix(), move); ok {
				form.forms = moveForm(inline, form.forms, index, direction)
			}
			h.renderChangeForm(w, r, form)
			return
		}
	}

	reader := newFormReader(posted, "")
	bound := ma.source.bind(obj, reader)
	errs := reader.errs
	mergeValidation(&errs, bound.Validate())
	if inline != nil {
		if err := inline.check(ctx, h.store, bound, form.forms, &errs); err != nil {
			h.renderServerError(w, r, "check inline", err)
			return
		}
	}
	if !errs.Empty() {
		form.errs = &errs
		h.renderChangeForm(w, r, form)
		return
	}

	var (
		saved Object
		err   error
	)
	if inline != nil {
		saved, err = inline.saveWithParent(ctx, h.store, bound, form.forms)
	} else {
		saved, err = ma.source.save(ctx, h.store, bound)
	}
	if err != nil {
		if mergeValidation(&errs, err) {
			form.errs = &errs
			h.renderChangeForm(w, r, form)
			return
		}
		h.renderServerError(w, r, "save "+string(ma.Model), err)
		return
	}

	adding := obj.PK() == 0
	if adding {
		h.logAction(ctx, adminstorage.LogAddition, ma.Model, saved.PK(), saved.String(), "")
	} else {
		changed := changedFields(ma.source.fields(), ma.source.values(obj), ma.source.values(saved))
		if inline != nil && len(form.forms) > 0 {
			changed = append(changed, string(inline.Model()))
		}
		h.logAction(ctx, adminstorage.LogChange, ma.Model, saved.PK(), saved.String(), strings.Join(changed, ", "))
	}

	key := "changeform.changed"
	if adding {
		key = "changeform.added"
	}
	setFlash(w, r, templates.Message{
		Level: templates.LevelSuccess,
		Text:  templates.T(loc, key, modelName(loc, ma.Model), saved.String()),
	})

	target := routepath.ChangeList(cases.AppLabel, string(ma.Model))
	switch {
	case posted.Get(templates.SubmitContinue) != "":
		target = routepath.Change(cases.AppLabel, string(ma.Model), saved.PK())
	case posted.Get(templates.SubmitAddAnother) != "":
		target = routepath.Add(cases.AppLabel, string(ma.Model))
	}
	http.Redirect(w, r, target, http.StatusSeeOther)
}

// mergeValidation folds a validation error into errs. It reports false for
// any other non-nil error.
func mergeValidation(errs *cases.ValidationError, err error) bool {
	if err == nil {
		return true
	}
	var verr *cases.ValidationError
	if !errors.As(err, &verr) {
		return false
	}
	errs.Merge("", verr)
	return true
}

// fillInlineLabels restores the titles of existing forms after a post.
func (h *Handler) fillInlineLabels(ctx context.Context, inline Inline, parent Object, forms []inlineForm) error {
	if parent.PK() <= 0 {
		return nil
	}
	initial, err := inline.initial(ctx, h.store, parent.PK())
	if err != nil {
		return err
	}
	labels := make(map[int64]string, len(initial))
	for _, f := range initial {
		labels[f.id] = f.label
	}
	for i := range forms {
		if forms[i].id > 0 {
			forms[i].label = labels[forms[i].id]
		}
	}
	return nil
}

func (h *Handler) renderChangeForm(w http.ResponseWriter, r *http.Request, form changeForm) {
	page, loc := h.pageContext(w, r)
	view, err := h.changeFormView(r.Context(), loc, staffFromRequest(r).HasPerm, form)
	if err != nil {
		h.renderServerError(w, r, "build change form", err)
		return
	}
	h.render(w, r, http.StatusOK, templates.ChangeFormPage(page, view))
}

func (h *Handler) changeFormView(ctx context.Context, loc *message.Printer, hasPerm func(string) bool, form changeForm) (templates.ChangeFormView, error) {
	ma := form.ma
	model := string(ma.Model)
	adding := form.obj.PK() == 0

	view := templates.ChangeFormView{
		Heading: templates.PageHeading{
			Title:       templates.T(loc, "changeform.change_title", modelName(loc, ma.Model)),
			Breadcrumbs: modelBreadcrumbs(loc, ma.Model),
		},
		HasErrors:      !form.errs.Empty(),
		ShowSaveAndAdd: hasPerm(permCodename(permAdd, ma.Model)),
		ShowContinue:   true,
	}
	if adding {
		view.Heading.Title = templates.T(loc, "changeform.add_title", modelName(loc, ma.Model))
		view.Action = routepath.Add(cases.AppLabel, model)
		view.Heading.Trail(view.Heading.Title)
	} else {
		view.Action = routepath.Change(cases.AppLabel, model, form.obj.PK())
		view.Heading.Trail(form.obj.String())
		if hasPerm(permCodename(permDelete, ma.Model)) {
			view.DeleteURL = routepath.Delete(cases.AppLabel, model, form.obj.PK())
		}
	}

	b := newFormBuilder(ctx, h.store, loc, form.errs)
	for _, f := range ma.source.fields() {
		field, err := b.field(f, ma.widgetFor(f), f.Name, form.values[f.Name], ma.autocomplete(f.Name))
		if err != nil {
			return view, err
		}
		view.Fields = append(view.Fields, field)
	}

	if inline := ma.inline(); inline != nil {
		iv, err := b.inline(inline, form.forms)
		if err != nil {
			return view, err
		}
		view.Inlines = append(view.Inlines, iv)
	}
	view.Errors = b.remaining()
	return view, nil
}

// formBuilder turns fields and values into form field views, consuming the
// validation messages it places next to fields.
type formBuilder struct {
	ctx     context.Context
	store   storage.Store
	loc     *message.Printer
	errs    *cases.ValidationError
	used    map[string]bool
	choices map[cases.Model][]storage.Choice
}

func newFormBuilder(ctx context.Context, store storage.Store, loc *message.Printer, errs *cases.ValidationError) *formBuilder {
	return &formBuilder{
		ctx:     ctx,
		store:   store,
		loc:     loc,
		errs:    errs,
		used:    map[string]bool{},
		choices: map[cases.Model][]storage.Choice{},
	}
}

// errors returns the localized messages stored under key.
func (b *formBuilder) errors(key string) []string {
	b.used[key] = true
	if b.errs.Empty() {
		return nil
	}
	msgs := b.errs.Fields[key]
	out := make([]string, len(msgs))
	for i, msg := range msgs {
		out[i] = templates.T(b.loc, msg)
	}
	return out
}

// remaining returns non-field messages plus any message whose field is not
// on the form.
func (b *formBuilder) remaining() []string {
	out := b.errors(cases.NonFieldErrors)
	if b.errs.Empty() {
		return out
	}
	keys := make([]string, 0, len(b.errs.Fields))
	for key := range b.errs.Fields {
		if !b.used[key] {
			keys = append(keys, key)
		}
	}
	sort.Strings(keys)
	for _, key := range keys {
		for _, msg := range b.errs.Fields[key] {
			out = append(out, key+": "+templates.T(b.loc, msg))
		}
	}
	return out
}

func (b *formBuilder) relatedChoices(model cases.Model) ([]storage.Choice, error) {
	if choices, ok := b.choices[model]; ok {
		return choices, nil
	}
	choices, err := b.store.Choices(b.ctx, model)
	if err != nil {
		return nil, fmt.Errorf("choices for %s: %w", model, err)
	}
	b.choices[model] = choices
	return choices, nil
}

func (b *formBuilder) field(f Field, widget templates.Widget, name string, values []string, autocomplete bool) (templates.FormField, error) {
	field := templates.FormField{
		Name:     name,
		ID:       "id_" + name,
		Label:    templates.T(b.loc, f.LabelKey()),
		Widget:   widget,
		Required: f.Required,
		Multiple: f.Kind == KindManyToMany,
		Errors:   b.errors(name),
	}

	switch widget {
	case templates.WidgetSelect, templates.WidgetSelectMultiple, templates.WidgetCheckboxMultiple:
		selected := map[string]bool{}
		for _, v := range splitIDs(values) {
			selected[v] = true
		}
		if f.Kind == KindChoice {
			for _, choice := range f.Choices {
				field.Options = append(field.Options, templates.Option{
					Value:    choice.Value,
					Label:    templates.T(b.loc, choice.LabelKey),
					Selected: selected[choice.Value],
				})
			}
			return field, nil
		}
		choices, err := b.relatedChoices(f.Related)
		if err != nil {
			return field, err
		}
		for _, choice := range choices {
			value := strconv.FormatInt(choice.ID, 10)
			field.Options = append(field.Options, templates.Option{Value: value, Label: choice.Label, Selected: selected[value]})
		}
	case templates.WidgetRawID:
		tokens := splitIDs(values)
		field.Value = strings.Join(tokens, ",")
		field.LookupURL = routepath.ChangeList(cases.AppLabel, string(f.Related))
		if autocomplete {
			field.AutocompleteURL = routepath.Lookup(cases.AppLabel, string(f.Related))
		}
		var ids []int64
		for _, token := range tokens {
			if id, ok := parseObjectID(token); ok {
				ids = append(ids, id)
			}
		}
		if len(ids) == 0 {
			return field, nil
		}
		labels, err := b.store.Labels(b.ctx, f.Related, ids)
		if err != nil {
			return field, fmt.Errorf("labels for %s: %w", f.Related, err)
		}
		for _, id := range ids {
			if label, ok := labels[id]; ok {
				field.RelatedLabels = append(field.RelatedLabels, templates.RelatedLabel{
					Label: label,
					URL:   routepath.Change(cases.AppLabel, string(f.Related), id),
				})
			}
		}
	case templates.WidgetCheckbox:
		if len(values) > 0 {
			field.Value = formatBool(parseBool(values[0]))
		}
	default:
		if len(values) > 0 {
			field.Value = values[0]
		}
	}
	return field, nil
}

func (b *formBuilder) inline(inline Inline, forms []inlineForm) (templates.InlineView, error) {
	model := inline.Model()
	view := templates.InlineView{
		Prefix:     inline.Prefix(),
		Title:      modelPlural(b.loc, model),
		AddLabel:   templates.T(b.loc, "changeform.add_inline", modelName(b.loc, model)),
		TotalForms: len(forms),
	}
	for i, form := range forms {
		prefix := inlineFormPrefix(inline.Prefix(), i)
		fv := templates.InlineForm{
			Index: i,
			ID:    form.id,
			First: i == 0,
			Last:  i == len(forms)-1,
		}
		if form.id > 0 {
			view.InitialForms++
			fv.Title = modelName(b.loc, model) + ": " + form.label
			fv.ChangeURL = routepath.Change(cases.AppLabel, string(model), form.id)
			fv.DeleteName = prefix + inlineDeleteField
			fv.Delete = form.delete
		} else {
			fv.Title = templates.T(b.loc, "changeform.inline_new", modelName(b.loc, model), i+1)
		}
		for _, f := range inline.fields() {
			field, err := b.field(f, resolveWidget(f, nil, nil), prefix+f.Name, form.values[f.Name], false)
			if err != nil {
				return view, err
			}
			fv.Fields = append(fv.Fields, field)
		}
		fv.Errors = b.errors(prefix + cases.NonFieldErrors)
		view.Forms = append(view.Forms, fv)
	}
	return view, nil
}
