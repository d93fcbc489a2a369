package admin

import (
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/watchdogpolska/small-eod/internal/cases"
	"github.com/watchdogpolska/small-eod/internal/services/admin/templates"
)

// FieldKind classifies a form field.
type FieldKind int

const (
	KindChar FieldKind = iota
	KindText
	KindEmail
	KindDate
	KindBool
	KindInt
	KindChoice
	KindForeignKey
	KindManyToMany
)

// Relational reports whether the kind references another model.
func (k FieldKind) Relational() bool {
	return k == KindForeignKey || k == KindManyToMany
}

// Field is one editable attribute of a model.
type Field struct {
	Name     string
	Kind     FieldKind
	Required bool
	// Related is the target model of relational fields.
	Related cases.Model
	// Choices are the allowed values of KindChoice fields.
	Choices []FieldChoice
}

// FieldChoice is one allowed value with its message key.
type FieldChoice struct {
	Value    string
	LabelKey string
}

// LabelKey returns the message key of the field's label.
func (f Field) LabelKey() string {
	return "field." + f.Name
}

func defaultWidget(kind FieldKind) templates.Widget {
	switch kind {
	case KindText:
		return templates.WidgetTextarea
	case KindEmail:
		return templates.WidgetEmail
	case KindDate:
		return templates.WidgetDate
	case KindBool:
		return templates.WidgetCheckbox
	case KindInt:
		return templates.WidgetNumber
	case KindChoice, KindForeignKey:
		return templates.WidgetSelect
	case KindManyToMany:
		return templates.WidgetSelectMultiple
	default:
		return templates.WidgetText
	}
}

func resolveWidget(f Field, overrides map[FieldKind]templates.Widget, rawID map[string]bool) templates.Widget {
	if w, ok := overrides[f.Kind]; ok {
		return w
	}
	if rawID[f.Name] && f.Kind.Relational() {
		return templates.WidgetRawID
	}
	return defaultWidget(f.Kind)
}

// formReader parses submitted values for one form, collecting parse errors
// under unprefixed field names.
type formReader struct {
	values url.Values
	prefix string
	errs   cases.ValidationError
}

func newFormReader(values url.Values, prefix string) *formReader {
	return &formReader{values: values, prefix: prefix}
}

func (f *formReader) raw(name string) string {
	return f.values.Get(f.prefix + name)
}

func (f *formReader) text(name string) string {
	return strings.TrimSpace(f.raw(name))
}

func (f *formReader) boolean(name string) bool {
	return parseBool(f.raw(name))
}

// parseBool treats any value but "", "0" and "false" as a checked box.
func parseBool(v string) bool {
	return v != "" && v != "0" && !strings.EqualFold(v, "false")
}

func (f *formReader) integer(name string) int {
	v := f.text(name)
	if v == "" {
		return 0
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		f.errs.Add(name, "error.invalid_number")
		return 0
	}
	return n
}

func (f *formReader) date(name string) time.Time {
	v := f.text(name)
	if v == "" {
		return time.Time{}
	}
	t, err := time.Parse(cases.DateLayout, v)
	if err != nil {
		f.errs.Add(name, "error.invalid_date")
		return time.Time{}
	}
	return t
}

func (f *formReader) id(name string) int64 {
	v := f.text(name)
	if v == "" {
		return 0
	}
	n, err := strconv.ParseInt(v, 10, 64)
	if err != nil || n <= 0 {
		f.errs.Add(name, "error.invalid_number")
		return 0
	}
	return n
}

// ids accepts repeated values and comma-separated lists alike.
func (f *formReader) ids(name string) []int64 {
	var out []int64
	seen := map[int64]bool{}
	for _, token := range splitIDs(f.values[f.prefix+name]) {
		n, err := strconv.ParseInt(token, 10, 64)
		if err != nil || n <= 0 {
			f.errs.Add(name, "error.invalid_number")
			return nil
		}
		if !seen[n] {
			seen[n] = true
			out = append(out, n)
		}
	}
	return out
}

func splitIDs(values []string) []string {
	var out []string
	for _, v := range values {
		for _, token := range strings.Split(v, ",") {
			if token = strings.TrimSpace(token); token != "" {
				out = append(out, token)
			}
		}
	}
	return out
}

func formatID(id int64) string {
	if id <= 0 {
		return ""
	}
	return strconv.FormatInt(id, 10)
}

func formatDate(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.Format(cases.DateLayout)
}

func formatBool(b bool) string {
	if b {
		return "on"
	}
	return ""
}
