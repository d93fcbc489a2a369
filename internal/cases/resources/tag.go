package resources

import (
	"context"
	"errors"
	"strconv"

	"github.com/watchdogpolska/small-eod/internal/cases"
	"github.com/watchdogpolska/small-eod/internal/cases/storage"
)

// TagResource exports tags as id and name.
type TagResource struct{}

func (TagResource) Model() cases.Model { return cases.ModelTag }

func (TagResource) Fields() []Field {
	return []Field{{Name: IDField, Integer: true}, {Name: "name"}}
}

func (TagResource) ExportRows(ctx context.Context, store storage.Store, q storage.ListQuery) ([][]string, error) {
	page, err := store.ListTags(ctx, q)
	if err != nil {
		return nil, err
	}
	rows := make([][]string, len(page.Items))
	for i, t := range page.Items {
		rows[i] = []string{strconv.FormatInt(t.ID, 10), t.Name}
	}
	return rows, nil
}

func (TagResource) ImportRow(ctx context.Context, store storage.Store, d Dataset, row int) (RowResult, error) {
	var errs cases.ValidationError
	id := parseID(d, row, &errs)
	if err := errs.Err(); err != nil {
		return RowResult{}, err
	}

	tag := cases.Tag{ID: id}
	existing := false
	if id > 0 {
		found, err := store.GetTag(ctx, id)
		switch {
		case err == nil:
			tag, existing = found, true
		case !errors.Is(err, storage.ErrNotFound):
			return RowResult{}, err
		}
	}
	before := tag
	if d.Has("name") {
		tag.Name = d.Value(row, "name")
	}

	values := func() []string { return []string{strconv.FormatInt(tag.ID, 10), tag.Name} }
	if existing && before.Name == tag.Name {
		return RowResult{Type: RowSkip, ObjectID: tag.ID, ObjectRepr: tag.String(), Values: values()}, nil
	}
	if err := store.SaveTag(ctx, &tag); err != nil {
		return RowResult{}, err
	}
	rowType := RowNew
	if existing {
		rowType = RowUpdate
	}
	return RowResult{Type: rowType, ObjectID: tag.ID, ObjectRepr: tag.String(), Values: values()}, nil
}
