package admin

import (
	"context"
	"fmt"
	"net/url"
	"strconv"
	"strings"

	"github.com/watchdogpolska/small-eod/internal/cases"
	"github.com/watchdogpolska/small-eod/internal/cases/storage"
	"github.com/watchdogpolska/small-eod/internal/services/admin/templates"
)

// Lookup query parameter suffixes.
const (
	exactSuffix  = "__exact"
	isNullSuffix = "__isnull"
)

// ListFilter is one changelist sidebar filter.
type ListFilter interface {
	// Param is the query parameter the filter reads.
	Param() string
	Title(loc templates.Localizer) string
	// Lookup returns the condition for value.
	Lookup(value string) storage.Lookup
	// EmptyParam selects rows with nothing behind the filtered relation; it
	// is empty for filters without an empty choice.
	EmptyParam() string
	// EmptyLookup reads an EmptyParam value ("True" or "False").
	EmptyLookup(value string) (storage.Lookup, bool)
	Choices(ctx context.Context, store storage.Store, loc templates.Localizer, links filterLinks) ([]templates.FilterChoice, error)
	bind(ma *ModelAdmin) error
}

// filterLinks builds sidebar URLs that keep the other changelist params.
type filterLinks struct {
	path  string
	query url.Values
}

// with sets param and drops the page and any params in drop.
func (l filterLinks) with(param, value string, drop ...string) string {
	q := cloneValues(l.query)
	q.Del(pageParam)
	for _, d := range drop {
		q.Del(d)
	}
	q.Set(param, value)
	return l.path + "?" + q.Encode()
}

func (l filterLinks) without(params ...string) string {
	q := cloneValues(l.query)
	q.Del(pageParam)
	for _, p := range params {
		q.Del(p)
	}
	if len(q) == 0 {
		return l.path
	}
	return l.path + "?" + q.Encode()
}

func cloneValues(v url.Values) url.Values {
	out := make(url.Values, len(v))
	for key, values := range v {
		out[key] = append([]string(nil), values...)
	}
	return out
}

// choiceLinks lists "All", one link per option and, when emptyParam is set,
// a trailing "-" choice for rows without a related object.
func choiceLinks(loc templates.Localizer, links filterLinks, param, emptyParam string, options []storage.Choice) []templates.FilterChoice {
	current := links.query.Get(param)
	empty := ""
	if emptyParam != "" {
		empty = links.query.Get(emptyParam)
	}
	out := make([]templates.FilterChoice, 0, len(options)+2)
	out = append(out, templates.FilterChoice{
		Label:    templates.T(loc, "changelist.filter_all"),
		URL:      links.without(param, emptyParam),
		Selected: current == "" && empty == "",
	})
	for _, opt := range options {
		value := strconv.FormatInt(opt.ID, 10)
		out = append(out, templates.FilterChoice{
			Label:    opt.Label,
			URL:      links.with(param, value, emptyParam),
			Selected: current == value && empty == "",
		})
	}
	if emptyParam != "" {
		out = append(out, templates.FilterChoice{
			Label:    emptyValueDisplay,
			URL:      links.with(emptyParam, "True", param),
			Selected: empty == "True",
		})
	}
	return out
}

// parseIsNull accepts the boolean spellings of an __isnull parameter.
func parseIsNull(value string) (isNull bool, ok bool) {
	switch value {
	case "True", "true", "1":
		return true, true
	case "False", "false", "0":
		return false, true
	}
	return false, false
}

// RelatedFieldListFilter filters by the id of a related object reached
// through Path. Its choices are every object of the related model, or with
// RelatedOnly set only the objects reachable from the listed model's rows.
// Many-to-many and optional relations also get an empty choice.
type RelatedFieldListFilter struct {
	Path        string
	TitleKey    string
	RelatedOnly bool

	model     cases.Model
	related   cases.Model
	withEmpty bool
}

// RelatedFilter filters by a direct relation field.
func RelatedFilter(field string) *RelatedFieldListFilter {
	return &RelatedFieldListFilter{Path: field}
}

// RelatedOnlyFilter filters by the objects actually reachable through path.
func RelatedOnlyFilter(path string) *RelatedFieldListFilter {
	return &RelatedFieldListFilter{Path: path, RelatedOnly: true}
}

// InstitutionTagFilter filters cases by the tags of the institutions their
// letters were exchanged with.
func InstitutionTagFilter() *RelatedFieldListFilter {
	f := RelatedOnlyFilter("letter__institution__tags")
	f.TitleKey = "filter.institution_tags_by_letters"
	return f
}

func (f *RelatedFieldListFilter) Param() string {
	return f.Path + "__id" + exactSuffix
}

func (f *RelatedFieldListFilter) Title(loc templates.Localizer) string {
	if f.TitleKey != "" {
		return templates.T(loc, f.TitleKey)
	}
	return templates.T(loc, "field."+f.Path)
}

func (f *RelatedFieldListFilter) Lookup(value string) storage.Lookup {
	return storage.Lookup{Path: f.Path + "__id", Value: value}
}

func (f *RelatedFieldListFilter) EmptyParam() string {
	if !f.withEmpty {
		return ""
	}
	return f.Path + isNullSuffix
}

func (f *RelatedFieldListFilter) EmptyLookup(value string) (storage.Lookup, bool) {
	isNull, ok := parseIsNull(value)
	if !ok || !f.withEmpty {
		return storage.Lookup{}, false
	}
	op := storage.LookupNotNull
	if isNull {
		op = storage.LookupIsNull
	}
	return storage.Lookup{Path: f.Path, Op: op}, true
}

func (f *RelatedFieldListFilter) Choices(ctx context.Context, store storage.Store, loc templates.Localizer, links filterLinks) ([]templates.FilterChoice, error) {
	var (
		options []storage.Choice
		err     error
	)
	if f.RelatedOnly {
		options, err = store.RelatedChoices(ctx, f.model, f.Path)
	} else {
		options, err = store.Choices(ctx, f.related)
	}
	if err != nil {
		return nil, fmt.Errorf("filter %s choices: %w", f.Path, err)
	}
	return choiceLinks(loc, links, f.Param(), f.EmptyParam(), options), nil
}

func (f *RelatedFieldListFilter) bind(ma *ModelAdmin) error {
	f.model = ma.Model
	if !f.RelatedOnly && strings.Contains(f.Path, "__") {
		return fmt.Errorf("related filter %q must name a field of %s", f.Path, ma.Model)
	}
	field, ok := pathField(ma.Model, f.Path)
	if !ok || !field.Kind.Relational() {
		return fmt.Errorf("related filter %q is not a relation", f.Path)
	}
	f.related = field.Related
	f.withEmpty = field.Kind == KindManyToMany || !field.Required
	return nil
}

// pathField resolves the last field of a double-underscore path. Segments
// that are not fields of the current model are taken as reverse relations
// named after the related model, as "letter" from a case.
func pathField(model cases.Model, path string) (Field, bool) {
	segments := strings.Split(path, "__")
	for i, seg := range segments {
		src, ok := sources[model]
		if !ok {
			return Field{}, false
		}
		var (
			field Field
			found bool
		)
		for _, f := range src.fields() {
			if f.Name == seg {
				field, found = f, true
				break
			}
		}
		if i == len(segments)-1 {
			return field, found
		}
		switch {
		case found && field.Kind.Relational():
			model = field.Related
		case !found && cases.Model(seg).Valid():
			model = cases.Model(seg)
		default:
			return Field{}, false
		}
	}
	return Field{}, false
}

// ChoicesFieldListFilter filters by one of a field's fixed choices.
type ChoicesFieldListFilter struct {
	Field string

	choices []FieldChoice
}

// ChoicesFilter filters by a KindChoice field.
func ChoicesFilter(field string) *ChoicesFieldListFilter {
	return &ChoicesFieldListFilter{Field: field}
}

func (f *ChoicesFieldListFilter) Param() string {
	return f.Field + exactSuffix
}

func (f *ChoicesFieldListFilter) Title(loc templates.Localizer) string {
	return templates.T(loc, "field."+f.Field)
}

func (f *ChoicesFieldListFilter) Lookup(value string) storage.Lookup {
	return storage.Lookup{Path: f.Field, Value: value}
}

func (f *ChoicesFieldListFilter) EmptyParam() string { return "" }

func (f *ChoicesFieldListFilter) EmptyLookup(string) (storage.Lookup, bool) {
	return storage.Lookup{}, false
}

func (f *ChoicesFieldListFilter) Choices(_ context.Context, _ storage.Store, loc templates.Localizer, links filterLinks) ([]templates.FilterChoice, error) {
	param := f.Param()
	current := links.query.Get(param)
	out := []templates.FilterChoice{{
		Label:    templates.T(loc, "changelist.filter_all"),
		URL:      links.without(param),
		Selected: current == "",
	}}
	for _, choice := range f.choices {
		out = append(out, templates.FilterChoice{
			Label:    templates.T(loc, choice.LabelKey),
			URL:      links.with(param, choice.Value),
			Selected: current == choice.Value,
		})
	}
	return out, nil
}

func (f *ChoicesFieldListFilter) bind(ma *ModelAdmin) error {
	field, ok := ma.fields[f.Field]
	if !ok || field.Kind != KindChoice {
		return fmt.Errorf("choices filter %q is not a choice field", f.Field)
	}
	f.choices = field.Choices
	return nil
}
