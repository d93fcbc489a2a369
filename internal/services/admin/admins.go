package admin

import (
	"github.com/watchdogpolska/small-eod/internal/cases"
	"github.com/watchdogpolska/small-eod/internal/cases/resources"
	"github.com/watchdogpolska/small-eod/internal/cases/storage"
	"github.com/watchdogpolska/small-eod/internal/services/admin/templates"
)

// CaseAdmin lists cases with their tags and a link to their letters, and
// edits letters inline.
func CaseAdmin() *ModelAdmin {
	return &ModelAdmin{
		Model: cases.ModelCase,
		ListDisplay: []Column{
			FieldColumn("name"),
			FieldColumn("comment"),
			FieldColumn("created"),
			FieldColumn("modified"),
			DisplayTagsColumn(),
			LinkToLettersColumn(),
		},
		ListFilter: []ListFilter{
			RelatedFilter("responsible_people"),
			RelatedFilter("tags"),
			InstitutionTagFilter(),
		},
		RawIDFields: []string{"responsible_people", "tags"},
		FormfieldOverrides: map[FieldKind]templates.Widget{
			KindManyToMany: templates.WidgetCheckboxMultiple,
		},
		AutocompleteLookup: AutocompleteLookup{M2M: []string{"responsible_people", "tags"}},
		Inlines:            []Inline{LetterInline{}},
		Annotations:        []string{storage.AnnotateLetterCount},
	}
}

// InstitutionAdmin adds import and export of institutions.
func InstitutionAdmin() *ModelAdmin {
	return &ModelAdmin{
		Model:    cases.ModelInstitution,
		Resource: mustResource(cases.ModelInstitution),
		ListDisplay: []Column{
			FieldColumn("name"),
			FieldColumn("comment"),
			FieldColumn("created"),
			FieldColumn("modified"),
			DisplayTagsColumn(),
		},
		SearchFields:       []string{"name", "comment"},
		RawIDFields:        []string{"tags"},
		AutocompleteLookup: AutocompleteLookup{M2M: []string{"tags"}},
	}
}

// LetterAdmin lists letters with their related names.
func LetterAdmin() *ModelAdmin {
	return &ModelAdmin{
		Model: cases.ModelLetter,
		ListDisplay: []Column{
			FieldColumn("name"),
			FieldColumn("direction"),
			FieldColumn("institution"),
			FieldColumn("data"),
			FieldColumn("identifier"),
			FieldColumn("case"),
			FieldColumn("comment"),
			FieldColumn("created"),
			FieldColumn("modified"),
			FieldColumn("channel"),
		},
		ListFilter: []ListFilter{
			RelatedFilter("institution"),
			ChoicesFilter("direction"),
			RelatedFilter("case"),
			RelatedFilter("channel"),
		},
		SearchFields:       []string{"name", "comment", "identifier", "comment", "institution__name"},
		RawIDFields:        []string{"institution", "case"},
		AutocompleteLookup: AutocompleteLookup{FK: []string{"institution", "case"}},
	}
}

// TagAdmin adds import and export of tags.
func TagAdmin() *ModelAdmin {
	return &ModelAdmin{
		Model:    cases.ModelTag,
		Resource: mustResource(cases.ModelTag),
	}
}

// NewDefaultSite registers every model: the declared admins plus default
// ones for people, dictionaries and channels.
func NewDefaultSite() (*Site, error) {
	site := NewSite()
	for _, ma := range []*ModelAdmin{
		{Model: cases.ModelPerson},
		{Model: cases.ModelDictionary},
		{Model: cases.ModelChannel},
		TagAdmin(),
		CaseAdmin(),
		InstitutionAdmin(),
		LetterAdmin(),
	} {
		if err := site.Register(ma); err != nil {
			return nil, err
		}
	}
	return site, nil
}

func mustResource(model cases.Model) resources.Resource {
	res, ok := resources.ForModel(model)
	if !ok {
		panic("no import resource for " + string(model))
	}
	return res
}
