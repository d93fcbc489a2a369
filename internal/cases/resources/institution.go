package resources

import (
	"context"
	"errors"
	"strconv"
	"time"

	"github.com/watchdogpolska/small-eod/internal/cases"
	"github.com/watchdogpolska/small-eod/internal/cases/storage"
)

// InstitutionResource exports institutions with their tag names. Unknown tag
// names are created on import.
type InstitutionResource struct{}

func (InstitutionResource) Model() cases.Model { return cases.ModelInstitution }

func (InstitutionResource) Fields() []Field {
	return []Field{
		{Name: IDField, Integer: true},
		{Name: "name"},
		{Name: "comment"},
		{Name: "tags"},
		{Name: "created", Readonly: true},
		{Name: "modified", Readonly: true},
	}
}

func (r InstitutionResource) row(i cases.Institution) []string {
	return []string{
		strconv.FormatInt(i.ID, 10),
		i.Name,
		i.Comment,
		joinTagNames(i.Tags),
		i.Created.UTC().Format(time.RFC3339Nano),
		i.Modified.UTC().Format(time.RFC3339Nano),
	}
}

func (r InstitutionResource) ExportRows(ctx context.Context, store storage.Store, q storage.ListQuery) ([][]string, error) {
	page, err := store.ListInstitutions(ctx, q)
	if err != nil {
		return nil, err
	}
	rows := make([][]string, len(page.Items))
	for n, inst := range page.Items {
		rows[n] = r.row(inst)
	}
	return rows, nil
}

func (r InstitutionResource) ImportRow(ctx context.Context, store storage.Store, d Dataset, row int) (RowResult, error) {
	var errs cases.ValidationError
	id := parseID(d, row, &errs)
	if err := errs.Err(); err != nil {
		return RowResult{}, err
	}

	inst := cases.Institution{ID: id}
	existing := false
	if id > 0 {
		found, err := store.GetInstitution(ctx, id)
		switch {
		case err == nil:
			inst, existing = found, true
		case !errors.Is(err, storage.ErrNotFound):
			return RowResult{}, err
		}
	}
	before := inst

	if d.Has("name") {
		inst.Name = d.Value(row, "name")
	}
	if d.Has("comment") {
		inst.Comment = d.Value(row, "comment")
	}
	if d.Has("tags") {
		tags, err := ensureTags(ctx, store, splitNames(d.Value(row, "tags")))
		if err != nil {
			return RowResult{}, err
		}
		inst.Tags = tags
	}

	if existing && before.Name == inst.Name && before.Comment == inst.Comment && sameTags(before.Tags, inst.Tags) {
		return RowResult{Type: RowSkip, ObjectID: inst.ID, ObjectRepr: inst.String(), Values: r.row(inst)}, nil
	}
	if err := store.SaveInstitution(ctx, &inst); err != nil {
		return RowResult{}, err
	}
	rowType := RowNew
	if existing {
		rowType = RowUpdate
	}
	return RowResult{Type: rowType, ObjectID: inst.ID, ObjectRepr: inst.String(), Values: r.row(inst)}, nil
}

// ensureTags looks tags up by name, creating the missing ones.
func ensureTags(ctx context.Context, store storage.Store, names []string) ([]cases.Tag, error) {
	tags := make([]cases.Tag, 0, len(names))
	for _, name := range names {
		tag, err := store.GetTagByName(ctx, name)
		if errors.Is(err, storage.ErrNotFound) {
			tag = cases.Tag{Name: name}
			err = store.SaveTag(ctx, &tag)
		}
		if err != nil {
			return nil, err
		}
		tags = append(tags, tag)
	}
	return tags, nil
}
