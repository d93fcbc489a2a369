package admin

import (
	"context"
	"fmt"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/watchdogpolska/small-eod/internal/cases"
	"github.com/watchdogpolska/small-eod/internal/cases/storage"
	"github.com/watchdogpolska/small-eod/internal/services/admin/templates"
)

const displayTimeLayout = "2006-01-02 15:04"

// emptyValueDisplay is shown for blank cells.
const emptyValueDisplay = "-"

// dependent is a model whose rows reference the edited model.
type dependent struct {
	model cases.Model
	// lookup selects the dependent rows of one parent id.
	lookup string
	// protect blocks deletion instead of cascading.
	protect bool
}

// source adapts one model's typed storage methods to Object values.
type source interface {
	fields() []Field
	dependents() []dependent
	list(ctx context.Context, store storage.Store, q storage.ListQuery) (storage.Page[Object], error)
	get(ctx context.Context, store storage.Store, id int64) (Object, error)
	blank() Object
	// values returns the form representation of obj.
	values(obj Object) url.Values
	// bind copies submitted values onto a copy of obj.
	bind(obj Object, form *formReader) Object
	display(obj Object, field string, loc templates.Localizer) (string, bool)
	save(ctx context.Context, store storage.Store, obj Object) (Object, error)
	remove(ctx context.Context, store storage.Store, id int64) error
}

type modelSource[T Object] struct {
	fieldList []Field
	deps      []dependent
	listFn    func(storage.Store, context.Context, storage.ListQuery) (storage.Page[T], error)
	getFn     func(storage.Store, context.Context, int64) (T, error)
	saveFn    func(storage.Store, context.Context, *T) error
	removeFn  func(storage.Store, context.Context, int64) error
	valuesFn  func(T) url.Values
	bindFn    func(*T, *formReader)
	displayFn func(T, string, templates.Localizer) (string, bool)
}

func (s modelSource[T]) fields() []Field         { return s.fieldList }
func (s modelSource[T]) dependents() []dependent { return s.deps }

func (s modelSource[T]) list(ctx context.Context, store storage.Store, q storage.ListQuery) (storage.Page[Object], error) {
	page, err := s.listFn(store, ctx, q)
	if err != nil {
		return storage.Page[Object]{}, err
	}
	items := make([]Object, len(page.Items))
	for i, item := range page.Items {
		items[i] = item
	}
	return storage.Page[Object]{Items: items, Total: page.Total}, nil
}

func (s modelSource[T]) get(ctx context.Context, store storage.Store, id int64) (Object, error) {
	obj, err := s.getFn(store, ctx, id)
	if err != nil {
		return nil, err
	}
	return obj, nil
}

func (s modelSource[T]) blank() Object {
	var zero T
	return zero
}

func (s modelSource[T]) values(obj Object) url.Values {
	return s.valuesFn(obj.(T))
}

func (s modelSource[T]) bind(obj Object, form *formReader) Object {
	typed := obj.(T)
	s.bindFn(&typed, form)
	return typed
}

func (s modelSource[T]) display(obj Object, field string, loc templates.Localizer) (string, bool) {
	return s.displayFn(obj.(T), field, loc)
}

func (s modelSource[T]) save(ctx context.Context, store storage.Store, obj Object) (Object, error) {
	typed := obj.(T)
	if err := s.saveFn(store, ctx, &typed); err != nil {
		return nil, err
	}
	return typed, nil
}

func (s modelSource[T]) remove(ctx context.Context, store storage.Store, id int64) error {
	return s.removeFn(store, ctx, id)
}

var sources = map[cases.Model]source{
	cases.ModelCase:        caseSource,
	cases.ModelLetter:      letterSource,
	cases.ModelInstitution: institutionSource,
	cases.ModelTag:         tagSource,
	cases.ModelPerson:      personSource,
	cases.ModelChannel:     channelSource,
	cases.ModelDictionary:  dictionarySource,
}

func displayTime(t time.Time) string {
	if t.IsZero() {
		return emptyValueDisplay
	}
	return t.UTC().Format(displayTimeLayout)
}

func displayText(s string) string {
	if strings.TrimSpace(s) == "" {
		return emptyValueDisplay
	}
	return s
}

func displayBool(loc templates.Localizer, b bool) string {
	if b {
		return templates.T(loc, "value.yes")
	}
	return templates.T(loc, "value.no")
}

func idValues(ids []int64) []string {
	out := make([]string, len(ids))
	for i, id := range ids {
		out[i] = strconv.FormatInt(id, 10)
	}
	return out
}

func tagIDs(tags []cases.Tag) []int64 {
	ids := make([]int64, len(tags))
	for i, t := range tags {
		ids[i] = t.ID
	}
	return ids
}

func tagRefs(ids []int64) []cases.Tag {
	tags := make([]cases.Tag, len(ids))
	for i, id := range ids {
		tags[i] = cases.Tag{ID: id}
	}
	return tags
}

func tagNames(tags []cases.Tag) string {
	names := make([]string, len(tags))
	for i, t := range tags {
		names[i] = t.Name
	}
	return strings.Join(names, ", ")
}

var caseSource = modelSource[cases.Case]{
	fieldList: []Field{
		{Name: "name", Kind: KindChar, Required: true},
		{Name: "comment", Kind: KindText},
		{Name: "responsible_people", Kind: KindManyToMany, Related: cases.ModelPerson},
		{Name: "tags", Kind: KindManyToMany, Related: cases.ModelTag},
	},
	deps:   []dependent{{model: cases.ModelLetter, lookup: "case__id"}},
	listFn: storage.Store.ListCases,
	getFn: func(s storage.Store, ctx context.Context, id int64) (cases.Case, error) {
		return s.GetCase(ctx, id, storage.AnnotateLetterCount)
	},
	saveFn:   storage.Store.SaveCase,
	removeFn: storage.Store.DeleteCase,
	valuesFn: func(c cases.Case) url.Values {
		people := make([]int64, len(c.ResponsiblePeople))
		for i, p := range c.ResponsiblePeople {
			people[i] = p.ID
		}
		return url.Values{
			"name":               {c.Name},
			"comment":            {c.Comment},
			"responsible_people": idValues(people),
			"tags":               idValues(tagIDs(c.Tags)),
		}
	},
	bindFn: func(c *cases.Case, f *formReader) {
		c.Name = f.text("name")
		c.Comment = f.raw("comment")
		ids := f.ids("responsible_people")
		c.ResponsiblePeople = make([]cases.Person, len(ids))
		for i, id := range ids {
			c.ResponsiblePeople[i] = cases.Person{ID: id}
		}
		c.Tags = tagRefs(f.ids("tags"))
	},
	displayFn: func(c cases.Case, field string, loc templates.Localizer) (string, bool) {
		switch field {
		case "id":
			return strconv.FormatInt(c.ID, 10), true
		case "name":
			return c.Name, true
		case "comment":
			return displayText(c.Comment), true
		case "created":
			return displayTime(c.Created), true
		case "modified":
			return displayTime(c.Modified), true
		case "tags":
			return displayText(tagNames(c.Tags)), true
		case "letter_count":
			return strconv.Itoa(c.LetterCount), true
		}
		return "", false
	},
}

var letterSource = modelSource[cases.Letter]{
	fieldList: letterFields(true),
	listFn:    storage.Store.ListLetters,
	getFn:     storage.Store.GetLetter,
	saveFn:    storage.Store.SaveLetter,
	removeFn:  storage.Store.DeleteLetter,
	valuesFn:  letterValues,
	bindFn: func(l *cases.Letter, f *formReader) {
		bindLetter(l, f)
		l.CaseID = f.id("case")
	},
	displayFn: func(l cases.Letter, field string, loc templates.Localizer) (string, bool) {
		switch field {
		case "id":
			return strconv.FormatInt(l.ID, 10), true
		case "name":
			return l.Name, true
		case "direction":
			return templates.T(loc, l.Direction.LabelKey()), true
		case "data":
			return displayText(formatDate(l.Data)), true
		case "identifier":
			return displayText(l.Identifier), true
		case "comment":
			return displayText(l.Comment), true
		case "created":
			return displayTime(l.Created), true
		case "modified":
			return displayTime(l.Modified), true
		case "case":
			return l.CaseName, true
		case "institution":
			return l.InstitutionName, true
		case "channel":
			return displayText(l.ChannelName), true
		case "ordering":
			return strconv.Itoa(l.Ordering), true
		}
		return "", false
	},
}

// letterFields lists the editable letter fields; the case field is left out
// when letters are edited inline under their case.
func letterFields(withCase bool) []Field {
	directions := make([]FieldChoice, 0, 2)
	for _, d := range cases.Directions() {
		directions = append(directions, FieldChoice{Value: string(d), LabelKey: d.LabelKey()})
	}
	fields := []Field{
		{Name: "name", Kind: KindChar, Required: true},
		{Name: "direction", Kind: KindChoice, Required: true, Choices: directions},
		{Name: "data", Kind: KindDate},
		{Name: "identifier", Kind: KindChar},
		{Name: "comment", Kind: KindText},
	}
	if withCase {
		fields = append(fields, Field{Name: "case", Kind: KindForeignKey, Required: true, Related: cases.ModelCase})
	}
	return append(fields,
		Field{Name: "institution", Kind: KindForeignKey, Required: true, Related: cases.ModelInstitution},
		Field{Name: "channel", Kind: KindForeignKey, Related: cases.ModelChannel},
		Field{Name: "ordering", Kind: KindInt},
	)
}

func letterValues(l cases.Letter) url.Values {
	return url.Values{
		"name":        {l.Name},
		"direction":   {string(l.Direction)},
		"data":        {formatDate(l.Data)},
		"identifier":  {l.Identifier},
		"comment":     {l.Comment},
		"case":        {formatID(l.CaseID)},
		"institution": {formatID(l.InstitutionID)},
		"channel":     {formatID(l.ChannelID)},
		"ordering":    {strconv.Itoa(l.Ordering)},
	}
}

func bindLetter(l *cases.Letter, f *formReader) {
	l.Name = f.text("name")
	l.Direction = cases.Direction(f.text("direction"))
	l.Data = f.date("data")
	l.Identifier = f.text("identifier")
	l.Comment = f.raw("comment")
	l.InstitutionID = f.id("institution")
	l.ChannelID = f.id("channel")
	l.Ordering = f.integer("ordering")
}

var institutionSource = modelSource[cases.Institution]{
	fieldList: []Field{
		{Name: "name", Kind: KindChar, Required: true},
		{Name: "comment", Kind: KindText},
		{Name: "tags", Kind: KindManyToMany, Related: cases.ModelTag},
	},
	deps:     []dependent{{model: cases.ModelLetter, lookup: "institution__id", protect: true}},
	listFn:   storage.Store.ListInstitutions,
	getFn:    storage.Store.GetInstitution,
	saveFn:   storage.Store.SaveInstitution,
	removeFn: storage.Store.DeleteInstitution,
	valuesFn: func(i cases.Institution) url.Values {
		return url.Values{
			"name":    {i.Name},
			"comment": {i.Comment},
			"tags":    idValues(tagIDs(i.Tags)),
		}
	},
	bindFn: func(i *cases.Institution, f *formReader) {
		i.Name = f.text("name")
		i.Comment = f.raw("comment")
		i.Tags = tagRefs(f.ids("tags"))
	},
	displayFn: func(i cases.Institution, field string, _ templates.Localizer) (string, bool) {
		switch field {
		case "id":
			return strconv.FormatInt(i.ID, 10), true
		case "name":
			return i.Name, true
		case "comment":
			return displayText(i.Comment), true
		case "created":
			return displayTime(i.Created), true
		case "modified":
			return displayTime(i.Modified), true
		case "tags":
			return displayText(tagNames(i.Tags)), true
		}
		return "", false
	},
}

var tagSource = modelSource[cases.Tag]{
	fieldList: []Field{{Name: "name", Kind: KindChar, Required: true}},
	listFn:    storage.Store.ListTags,
	getFn:     storage.Store.GetTag,
	saveFn:    storage.Store.SaveTag,
	removeFn:  storage.Store.DeleteTag,
	valuesFn: func(t cases.Tag) url.Values {
		return url.Values{"name": {t.Name}}
	},
	bindFn: func(t *cases.Tag, f *formReader) {
		t.Name = f.text("name")
	},
	displayFn: func(t cases.Tag, field string, _ templates.Localizer) (string, bool) {
		switch field {
		case "id":
			return strconv.FormatInt(t.ID, 10), true
		case "name":
			return t.Name, true
		}
		return "", false
	},
}

var personSource = modelSource[cases.Person]{
	fieldList: []Field{
		{Name: "name", Kind: KindChar, Required: true},
		{Name: "email", Kind: KindEmail},
	},
	listFn:   storage.Store.ListPeople,
	getFn:    storage.Store.GetPerson,
	saveFn:   storage.Store.SavePerson,
	removeFn: storage.Store.DeletePerson,
	valuesFn: func(p cases.Person) url.Values {
		return url.Values{"name": {p.Name}, "email": {p.Email}}
	},
	bindFn: func(p *cases.Person, f *formReader) {
		p.Name = f.text("name")
		p.Email = f.text("email")
	},
	displayFn: func(p cases.Person, field string, _ templates.Localizer) (string, bool) {
		switch field {
		case "id":
			return strconv.FormatInt(p.ID, 10), true
		case "name":
			return p.Name, true
		case "email":
			return displayText(p.Email), true
		}
		return "", false
	},
}

var channelSource = modelSource[cases.Channel]{
	fieldList: []Field{{Name: "name", Kind: KindChar, Required: true}},
	listFn:    storage.Store.ListChannels,
	getFn:     storage.Store.GetChannel,
	saveFn:    storage.Store.SaveChannel,
	removeFn:  storage.Store.DeleteChannel,
	valuesFn: func(c cases.Channel) url.Values {
		return url.Values{"name": {c.Name}}
	},
	bindFn: func(c *cases.Channel, f *formReader) {
		c.Name = f.text("name")
	},
	displayFn: func(c cases.Channel, field string, _ templates.Localizer) (string, bool) {
		switch field {
		case "id":
			return strconv.FormatInt(c.ID, 10), true
		case "name":
			return c.Name, true
		}
		return "", false
	},
}

var dictionarySource = modelSource[cases.Dictionary]{
	fieldList: []Field{
		{Name: "name", Kind: KindChar, Required: true},
		{Name: "active", Kind: KindBool},
	},
	listFn:   storage.Store.ListDictionaries,
	getFn:    storage.Store.GetDictionary,
	saveFn:   storage.Store.SaveDictionary,
	removeFn: storage.Store.DeleteDictionary,
	valuesFn: func(d cases.Dictionary) url.Values {
		return url.Values{"name": {d.Name}, "active": {formatBool(d.Active)}}
	},
	bindFn: func(d *cases.Dictionary, f *formReader) {
		d.Name = f.text("name")
		d.Active = f.boolean("active")
	},
	displayFn: func(d cases.Dictionary, field string, loc templates.Localizer) (string, bool) {
		switch field {
		case "id":
			return strconv.FormatInt(d.ID, 10), true
		case "name":
			return d.Name, true
		case "active":
			return displayBool(loc, d.Active), true
		}
		return "", false
	},
}

// changedFields lists the fields whose form values differ.
func changedFields(fields []Field, before, after url.Values) []string {
	var changed []string
	for _, f := range fields {
		if strings.Join(before[f.Name], ",") != strings.Join(after[f.Name], ",") {
			changed = append(changed, f.Name)
		}
	}
	return changed
}

func objectLabel(loc templates.Localizer, model cases.Model, obj Object) string {
	return fmt.Sprintf("%s: %s", templates.T(loc, modelKey(model)), obj.String())
}
