package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/watchdogpolska/small-eod/internal/cases"
	"github.com/watchdogpolska/small-eod/internal/cases/storage"
)

var institutionSpec = listSpec[cases.Institution]{
	model:   cases.ModelInstitution,
	columns: "institutions.id, institutions.name, institutions.comment, institutions.created, institutions.modified",
	from:    "institutions",
	scan:    scanInstitution,
}

func scanInstitution(scan scanner) (cases.Institution, error) {
	var i cases.Institution
	var created, modified string
	if err := scan(&i.ID, &i.Name, &i.Comment, &created, &modified); err != nil {
		return cases.Institution{}, err
	}
	var err error
	if i.Created, err = parseTime(created); err != nil {
		return cases.Institution{}, err
	}
	if i.Modified, err = parseTime(modified); err != nil {
		return cases.Institution{}, err
	}
	return i, nil
}

func loadInstitutionTags(ctx context.Context, db queryer, items []cases.Institution) error {
	if len(items) == 0 {
		return nil
	}
	index := make(map[int64]int, len(items))
	ids := make([]int64, len(items))
	for i, inst := range items {
		index[inst.ID] = i
		ids[i] = inst.ID
	}
	links, err := loadLinks(ctx, db, tables[cases.ModelInstitution].relations["tags"], ids, "")
	if err != nil {
		return err
	}
	for _, link := range links {
		inst := &items[index[link.ownerID]]
		inst.Tags = append(inst.Tags, cases.Tag{ID: link.id, Name: link.label})
	}
	return nil
}

// ListInstitutions returns a page of institutions with their tags loaded.
func (s *Store) ListInstitutions(ctx context.Context, q storage.ListQuery) (_ storage.Page[cases.Institution], err error) {
	if err := s.ready(ctx); err != nil {
		return storage.Page[cases.Institution]{}, err
	}
	ctx, span := startSpan(ctx, "ListInstitutions", cases.ModelInstitution)
	defer func() { endSpan(span, err) }()

	page, err := listRows(ctx, s.conn(), institutionSpec, q)
	if err != nil {
		return storage.Page[cases.Institution]{}, err
	}
	if err := loadInstitutionTags(ctx, s.conn(), page.Items); err != nil {
		return storage.Page[cases.Institution]{}, err
	}
	return page, nil
}

// GetInstitution loads one institution.
func (s *Store) GetInstitution(ctx context.Context, id int64) (cases.Institution, error) {
	if err := s.ready(ctx); err != nil {
		return cases.Institution{}, err
	}
	inst, err := getRow(ctx, s.conn(), institutionSpec, id)
	if err != nil {
		return cases.Institution{}, err
	}
	items := []cases.Institution{inst}
	if err := loadInstitutionTags(ctx, s.conn(), items); err != nil {
		return cases.Institution{}, err
	}
	return items[0], nil
}

// SaveInstitution inserts or updates i and replaces its tags.
func (s *Store) SaveInstitution(ctx context.Context, i *cases.Institution) (err error) {
	if err := s.ready(ctx); err != nil {
		return err
	}
	if i == nil {
		return fmt.Errorf("institution is required")
	}
	ctx, span := startSpan(ctx, "SaveInstitution", cases.ModelInstitution)
	defer func() { endSpan(span, err) }()

	if err := i.Validate(); err != nil {
		return err
	}
	return s.write(ctx, "save institution", func(db queryer) error {
		return saveInstitution(ctx, db, i)
	})
}

func saveInstitution(ctx context.Context, db queryer, i *cases.Institution) error {
	var errs cases.ValidationError
	tagIDs := make([]int64, len(i.Tags))
	for n, t := range i.Tags {
		tagIDs[n] = t.ID
	}
	if err := checkRelated(ctx, db, &errs, "tags", cases.ModelTag, tagIDs...); err != nil {
		return err
	}
	if err := errs.Err(); err != nil {
		return err
	}

	ts := now()
	updated := false
	if i.ID > 0 {
		var created string
		err := db.QueryRowContext(ctx,
			"UPDATE institutions SET name = ?, comment = ?, modified = ? WHERE id = ? RETURNING created",
			i.Name, i.Comment, formatTime(ts), i.ID).Scan(&created)
		switch {
		case err == nil:
			updated = true
			if i.Created, err = parseTime(created); err != nil {
				return err
			}
		case !errors.Is(err, sql.ErrNoRows):
			return fmt.Errorf("update institution %d: %w", i.ID, err)
		}
	}
	if !updated {
		i.Created = ts
		var id any
		if i.ID > 0 {
			id = i.ID
		}
		result, err := db.ExecContext(ctx,
			"INSERT INTO institutions (id, name, comment, created, modified) VALUES (?, ?, ?, ?, ?)",
			id, i.Name, i.Comment, formatTime(ts), formatTime(ts))
		if err != nil {
			return fmt.Errorf("insert institution: %w", err)
		}
		if i.ID, err = result.LastInsertId(); err != nil {
			return fmt.Errorf("institution id: %w", err)
		}
	}
	i.Modified = ts
	return syncLinks(ctx, db, tables[cases.ModelInstitution].relations["tags"], i.ID, tagIDs)
}

// DeleteInstitution removes an institution. Institutions with letters are
// protected.
func (s *Store) DeleteInstitution(ctx context.Context, id int64) (err error) {
	if err := s.ready(ctx); err != nil {
		return err
	}
	ctx, span := startSpan(ctx, "DeleteInstitution", cases.ModelInstitution)
	defer func() { endSpan(span, err) }()
	return deleteRow(ctx, s.conn(), cases.ModelInstitution, id)
}
