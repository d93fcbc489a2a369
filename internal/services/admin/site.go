package admin

import (
	"errors"
	"fmt"
	"sort"

	"github.com/watchdogpolska/small-eod/internal/cases"
	"github.com/watchdogpolska/small-eod/internal/cases/resources"
	"github.com/watchdogpolska/small-eod/internal/cases/storage"
	"github.com/watchdogpolska/small-eod/internal/services/admin/templates"
)

// ErrAlreadyRegistered is returned when a model is registered twice.
var ErrAlreadyRegistered = errors.New("model is already registered")

// Object is a row the admin lists and edits.
type Object interface {
	PK() int64
	String() string
	Validate() error
}

// AutocompleteLookup names the raw-id fields that get the JSON lookup
// endpoint of their related model.
type AutocompleteLookup struct {
	FK  []string
	M2M []string
}

// ModelAdmin declares how one model is presented.
type ModelAdmin struct {
	Model cases.Model
	// ListDisplay defaults to the object's string representation.
	ListDisplay  []Column
	ListFilter   []ListFilter
	SearchFields []string
	RawIDFields  []string
	// FormfieldOverrides picks the widget for every field of a kind. It
	// takes precedence over RawIDFields.
	FormfieldOverrides map[FieldKind]templates.Widget
	AutocompleteLookup AutocompleteLookup
	Inlines            []Inline
	// Resource enables import and export.
	Resource resources.Resource
	// Annotations are requested on every changelist query.
	Annotations []string
	// Ordering defaults to newest first.
	Ordering []storage.Order

	source source
	rawID  map[string]bool
	fields map[string]Field
}

// Site is the registry of model admins.
type Site struct {
	admins map[cases.Model]*ModelAdmin
}

// NewSite returns an empty registry.
func NewSite() *Site {
	return &Site{admins: make(map[cases.Model]*ModelAdmin)}
}

// Register validates ma and adds it to the site.
func (s *Site) Register(ma *ModelAdmin) error {
	if ma == nil {
		return errors.New("model admin is required")
	}
	if _, ok := s.admins[ma.Model]; ok {
		return fmt.Errorf("register %s: %w", ma.Model, ErrAlreadyRegistered)
	}
	src, ok := sources[ma.Model]
	if !ok {
		return fmt.Errorf("register %s: unknown model", ma.Model)
	}
	ma.source = src
	ma.fields = make(map[string]Field)
	for _, f := range src.fields() {
		ma.fields[f.Name] = f
	}

	ma.rawID = make(map[string]bool, len(ma.RawIDFields))
	for _, name := range ma.RawIDFields {
		f, ok := ma.fields[name]
		if !ok || !f.Kind.Relational() {
			return fmt.Errorf("register %s: raw id field %q is not a relation", ma.Model, name)
		}
		ma.rawID[name] = true
	}
	for _, name := range ma.AutocompleteLookup.FK {
		if f := ma.fields[name]; f.Kind != KindForeignKey || !ma.rawID[name] {
			return fmt.Errorf("register %s: autocomplete fk %q must be a raw id foreign key", ma.Model, name)
		}
	}
	for _, name := range ma.AutocompleteLookup.M2M {
		if f := ma.fields[name]; f.Kind != KindManyToMany || !ma.rawID[name] {
			return fmt.Errorf("register %s: autocomplete m2m %q must be a raw id many-to-many field", ma.Model, name)
		}
	}
	if len(ma.Inlines) > 1 {
		return fmt.Errorf("register %s: at most one inline is supported", ma.Model)
	}
	for _, inline := range ma.Inlines {
		if inline.ParentModel() != ma.Model {
			return fmt.Errorf("register %s: inline belongs to %s", ma.Model, inline.ParentModel())
		}
	}
	if ma.Resource != nil && ma.Resource.Model() != ma.Model {
		return fmt.Errorf("register %s: resource exports %s", ma.Model, ma.Resource.Model())
	}
	for _, filter := range ma.ListFilter {
		if err := filter.bind(ma); err != nil {
			return fmt.Errorf("register %s: %w", ma.Model, err)
		}
	}

	if len(ma.ListDisplay) == 0 {
		ma.ListDisplay = []Column{StrColumn()}
	}
	for i := range ma.ListDisplay {
		if err := ma.ListDisplay[i].bind(ma); err != nil {
			return fmt.Errorf("register %s: %w", ma.Model, err)
		}
	}
	ma.SearchFields = uniqueStrings(ma.SearchFields)
	if len(ma.Ordering) == 0 {
		ma.Ordering = []storage.Order{{Field: "id", Desc: true}}
	}

	s.admins[ma.Model] = ma
	return nil
}

// MustRegister is Register for package-level setup.
func (s *Site) MustRegister(ma *ModelAdmin) {
	if err := s.Register(ma); err != nil {
		panic(err)
	}
}

// Get returns the admin registered for model.
func (s *Site) Get(model cases.Model) (*ModelAdmin, bool) {
	if s == nil {
		return nil, false
	}
	ma, ok := s.admins[model]
	return ma, ok
}

// Admins returns the registered admins sorted by model name.
func (s *Site) Admins() []*ModelAdmin {
	out := make([]*ModelAdmin, 0, len(s.admins))
	for _, ma := range s.admins {
		out = append(out, ma)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Model < out[j].Model })
	return out
}

// Field returns the form field called name.
func (ma *ModelAdmin) Field(name string) (Field, bool) {
	f, ok := ma.fields[name]
	return f, ok
}

// widgetFor resolves the widget of f: formfield override, then raw id,
// then the kind's default.
func (ma *ModelAdmin) widgetFor(f Field) templates.Widget {
	return resolveWidget(f, ma.FormfieldOverrides, ma.rawID)
}

func (ma *ModelAdmin) autocomplete(name string) bool {
	for _, n := range ma.AutocompleteLookup.FK {
		if n == name {
			return true
		}
	}
	for _, n := range ma.AutocompleteLookup.M2M {
		if n == name {
			return true
		}
	}
	return false
}

func uniqueStrings(values []string) []string {
	seen := make(map[string]bool, len(values))
	out := make([]string, 0, len(values))
	for _, v := range values {
		if v == "" || seen[v] {
			continue
		}
		seen[v] = true
		out = append(out, v)
	}
	return out
}
