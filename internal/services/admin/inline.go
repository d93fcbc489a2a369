package admin

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"strconv"
	"strings"

	"github.com/watchdogpolska/small-eod/internal/cases"
	"github.com/watchdogpolska/small-eod/internal/cases/storage"
)

// maxInlineForms caps TOTAL_FORMS read from a submitted formset.
const maxInlineForms = 1000

// Formset management and per-form control field names.
const (
	totalFormsField   = "TOTAL_FORMS"
	initialFormsField = "INITIAL_FORMS"
	inlineIDField     = "id"
	inlineDeleteField = "DELETE"
)

// Inline edits the child objects of a parent inside the parent's form.
type Inline interface {
	ParentModel() cases.Model
	Model() cases.Model
	Prefix() string
	// Extra is the number of blank forms shown on a fresh page.
	Extra() int
	fields() []Field
	// sortField names the field forms are ordered by; empty when unsorted.
	sortField() string
	initial(ctx context.Context, store storage.Store, parentID int64) ([]inlineForm, error)
	// check binds every form and records problems under prefixed keys.
	check(ctx context.Context, store storage.Store, parent Object, forms []inlineForm, errs *cases.ValidationError) error
	// saveWithParent writes the parent and its children atomically.
	saveWithParent(ctx context.Context, store storage.Store, parent Object, forms []inlineForm) (Object, error)
}

// inlineForm is one child form in unprefixed form values.
type inlineForm struct {
	id     int64
	label  string
	values url.Values
	delete bool
}

// changed reports whether a blank form was filled in. The sort field is
// ignored because it is prefilled.
func (f inlineForm) changed(fields []Field, sortField string) bool {
	for _, field := range fields {
		if field.Name == sortField {
			continue
		}
		if strings.TrimSpace(f.values.Get(field.Name)) != "" {
			return true
		}
	}
	return false
}

func inlineFormPrefix(prefix string, index int) string {
	return prefix + "-" + strconv.Itoa(index) + "-"
}

// parseFormset reads the submitted forms of inline in submission order.
func parseFormset(inline Inline, form url.Values) []inlineForm {
	prefix := inline.Prefix()
	total, err := strconv.Atoi(form.Get(prefix + "-" + totalFormsField))
	if err != nil || total < 0 {
		total = 0
	}
	if total > maxInlineForms {
		total = maxInlineForms
	}
	forms := make([]inlineForm, 0, total)
	for i := 0; i < total; i++ {
		p := inlineFormPrefix(prefix, i)
		f := inlineForm{values: url.Values{}}
		if id, err := strconv.ParseInt(form.Get(p+inlineIDField), 10, 64); err == nil && id > 0 {
			f.id = id
		}
		f.delete = form.Get(p+inlineDeleteField) != ""
		for _, field := range inline.fields() {
			if values, ok := form[p+field.Name]; ok {
				f.values[field.Name] = append([]string(nil), values...)
			}
		}
		forms = append(forms, f)
	}
	return forms
}

// addBlankForm appends one empty form, prefilling the sort field with the
// next position.
func addBlankForm(inline Inline, forms []inlineForm) []inlineForm {
	blank := inlineForm{values: url.Values{}}
	if field := inline.sortField(); field != "" {
		next := 0
		for _, f := range forms {
			if n, err := strconv.Atoi(f.values.Get(field)); err == nil && n >= next {
				next = n + 1
			}
		}
		blank.values.Set(field, strconv.Itoa(next))
	}
	return append(forms, blank)
}

// moveForm swaps form index with its neighbour in direction ("up" or
// "down") and renumbers the sort field to match the new positions.
func moveForm(inline Inline, forms []inlineForm, index int, direction string) []inlineForm {
	target := index - 1
	if direction == "down" {
		target = index + 1
	}
	if index < 0 || index >= len(forms) || target < 0 || target >= len(forms) {
		return forms
	}
	forms[index], forms[target] = forms[target], forms[index]
	if field := inline.sortField(); field != "" {
		for i := range forms {
			forms[i].values.Set(field, strconv.Itoa(i))
		}
	}
	return forms
}

// parseMove splits a move button value such as "letter_set-2:up".
func parseMove(prefix, value string) (int, string, bool) {
	target, direction, ok := strings.Cut(value, ":")
	if !ok || (direction != "up" && direction != "down") {
		return 0, "", false
	}
	index, err := strconv.Atoi(strings.TrimPrefix(target, prefix+"-"))
	if err != nil || !strings.HasPrefix(target, prefix+"-") {
		return 0, "", false
	}
	return index, direction, true
}

// LetterInline edits a case's letters as stacked forms sorted by ordering.
type LetterInline struct {
	ExtraForms int
}

func (LetterInline) ParentModel() cases.Model { return cases.ModelCase }
func (LetterInline) Model() cases.Model       { return cases.ModelLetter }
func (LetterInline) Prefix() string           { return "letter_set" }
func (i LetterInline) Extra() int             { return i.ExtraForms }
func (LetterInline) fields() []Field          { return letterFields(false) }
func (LetterInline) sortField() string        { return "ordering" }

func (LetterInline) initial(ctx context.Context, store storage.Store, parentID int64) ([]inlineForm, error) {
	if parentID <= 0 {
		return nil, nil
	}
	letters, err := store.ListCaseLetters(ctx, parentID)
	if err != nil {
		return nil, fmt.Errorf("list case letters: %w", err)
	}
	forms := make([]inlineForm, len(letters))
	for n, l := range letters {
		values := letterValues(l)
		values.Del("case")
		forms[n] = inlineForm{id: l.ID, label: l.String(), values: values}
	}
	return forms, nil
}

func (i LetterInline) check(ctx context.Context, store storage.Store, parent Object, forms []inlineForm, errs *cases.ValidationError) error {
	_, _, err := i.bindForms(ctx, store, parent, forms, errs)
	return err
}

func (i LetterInline) saveWithParent(ctx context.Context, store storage.Store, parent Object, forms []inlineForm) (Object, error) {
	var errs cases.ValidationError
	batch, formIndex, err := i.bindForms(ctx, store, parent, forms, &errs)
	if err != nil {
		return nil, err
	}
	if err := errs.Err(); err != nil {
		return nil, err
	}

	c := parent.(cases.Case)
	err = store.SaveCaseWithLetters(ctx, &c, batch)
	var verr *cases.ValidationError
	if errors.As(err, &verr) {
		return nil, i.remapErrors(verr, formIndex)
	}
	if err != nil {
		return nil, err
	}
	return c, nil
}

// bindForms turns forms into storage writes. formIndex maps each saved
// letter to the form it came from.
func (i LetterInline) bindForms(ctx context.Context, store storage.Store, parent Object, forms []inlineForm, errs *cases.ValidationError) (storage.InlineLetters, []int, error) {
	var batch storage.InlineLetters
	var formIndex []int

	owned := map[int64]bool{}
	if parent.PK() > 0 {
		letters, err := store.ListCaseLetters(ctx, parent.PK())
		if err != nil {
			return batch, nil, fmt.Errorf("list case letters: %w", err)
		}
		for _, l := range letters {
			owned[l.ID] = true
		}
	}

	fields := i.fields()
	for n, form := range forms {
		prefix := inlineFormPrefix(i.Prefix(), n)
		if form.id > 0 && !owned[form.id] {
			errs.Add(prefix+cases.NonFieldErrors, "error.invalid_related")
			continue
		}
		if form.delete {
			if form.id > 0 {
				batch.Delete = append(batch.Delete, form.id)
			}
			continue
		}
		if form.id == 0 && !form.changed(fields, i.sortField()) {
			continue
		}

		reader := newFormReader(form.values, "")
		l := cases.Letter{ID: form.id, CaseID: parent.PK()}
		bindLetter(&l, reader)
		if strings.TrimSpace(form.values.Get(i.sortField())) == "" {
			l.Ordering = n
		}
		errs.Merge(prefix, &reader.errs)
		var verr *cases.ValidationError
		if errors.As(l.Validate(), &verr) {
			// The parent case is assigned on save.
			delete(verr.Fields, "case")
			errs.Merge(prefix, verr)
		}
		batch.Save = append(batch.Save, l)
		formIndex = append(formIndex, n)
	}
	return batch, formIndex, nil
}

// remapErrors moves storage keys of saved letters onto their form prefixes.
func (i LetterInline) remapErrors(verr *cases.ValidationError, formIndex []int) *cases.ValidationError {
	var out cases.ValidationError
	for key, msgs := range verr.Fields {
		target := key
		for j, n := range formIndex {
			if p := storage.InlineLetterPrefix(j); strings.HasPrefix(key, p) {
				target = inlineFormPrefix(i.Prefix(), n) + strings.TrimPrefix(key, p)
				break
			}
		}
		for _, msg := range msgs {
			out.Add(target, msg)
		}
	}
	return &out
}
