package admin

import (
	"context"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/a-h/templ"
	"github.com/watchdogpolska/small-eod/internal/cases"
	"github.com/watchdogpolska/small-eod/internal/cases/storage"
	routepath "github.com/watchdogpolska/small-eod/internal/services/admin/routepath"
	"github.com/watchdogpolska/small-eod/internal/services/admin/templates"
)

// TagHolder is an object carrying its tags in relation order.
type TagHolder interface {
	TagList() []cases.Tag
}

// LetterCounter is a case annotated with its letter count.
type LetterCounter interface {
	PK() int64
	AnnotatedLetterCount() int
}

// DisplayTags joins the tag names with ", ", or returns "-" without tags.
func DisplayTags(obj TagHolder) string {
	tags := obj.TagList()
	if len(tags) == 0 {
		return emptyValueDisplay
	}
	names := make([]string, len(tags))
	for i, t := range tags {
		names[i] = t.Name
	}
	return strings.Join(names, ", ")
}

// LinkToLetters links to the letters of one case, showing their count.
func LinkToLetters(obj LetterCounter, loc templates.Localizer) templ.Component {
	href := templates.AppendQueryParam(
		routepath.ChangeList(cases.AppLabel, string(cases.ModelLetter)),
		"case__id__exact", strconv.FormatInt(obj.PK(), 10))
	label := templates.T(loc, "display.view_letters", obj.AnnotatedLetterCount())
	return templ.ComponentFunc(func(_ context.Context, w io.Writer) error {
		_, err := fmt.Fprintf(w, `<a href="%s">%s</a>`, templ.EscapeString(href), templ.EscapeString(label))
		return err
	})
}

// Column is one list_display entry.
type Column struct {
	Name     string
	LabelKey string
	// OrderField is the storage ordering field; empty columns are not sortable.
	OrderField string
	Render     func(obj Object, loc templates.Localizer) templ.Component
}

// FieldColumn shows one model field.
func FieldColumn(name string) Column {
	return Column{Name: name, LabelKey: "field." + name, OrderField: name}
}

// StrColumn shows the object's string representation.
func StrColumn() Column {
	return Column{
		Name: "__str__",
		Render: func(obj Object, _ templates.Localizer) templ.Component {
			return templates.Text(obj.String())
		},
	}
}

// DisplayTagsColumn renders DisplayTags under the "Tags" header.
func DisplayTagsColumn() Column {
	return Column{
		Name:     "display_tags",
		LabelKey: "display.tags",
		Render: func(obj Object, _ templates.Localizer) templ.Component {
			holder, ok := obj.(TagHolder)
			if !ok {
				return templates.Text(emptyValueDisplay)
			}
			return templates.Text(DisplayTags(holder))
		},
	}
}

// LinkToLettersColumn renders LinkToLetters under the "Letters" header.
func LinkToLettersColumn() Column {
	return Column{
		Name:       "link_to_letters",
		LabelKey:   "display.letters",
		OrderField: storage.AnnotateLetterCount,
		Render: func(obj Object, loc templates.Localizer) templ.Component {
			counter, ok := obj.(LetterCounter)
			if !ok {
				return templates.Text(emptyValueDisplay)
			}
			return LinkToLetters(counter, loc)
		},
	}
}

func (c *Column) bind(ma *ModelAdmin) error {
	if c.Render != nil {
		return nil
	}
	src := ma.source
	if _, ok := src.display(src.blank(), c.Name, nil); !ok {
		return fmt.Errorf("list display %q is not a field", c.Name)
	}
	if f, ok := ma.fields[c.Name]; ok && f.Kind == KindManyToMany {
		c.OrderField = ""
	}
	name := c.Name
	c.Render = func(obj Object, loc templates.Localizer) templ.Component {
		value, _ := src.display(obj, name, loc)
		return templates.Text(value)
	}
	return nil
}

// Label returns the localized column header.
func (c Column) Label(loc templates.Localizer, model cases.Model) string {
	if c.LabelKey == "" {
		return templates.T(loc, modelKey(model))
	}
	return templates.T(loc, c.LabelKey)
}
