package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/watchdogpolska/small-eod/internal/cases"
	"github.com/watchdogpolska/small-eod/internal/cases/storage"
)

const letterCountColumn = "(SELECT COUNT(*) FROM letters lc WHERE lc.case_id = cases.id) AS letter_count"

func caseSpec(annotated bool) listSpec[cases.Case] {
	count := "0"
	if annotated {
		count = letterCountColumn
	}
	return listSpec[cases.Case]{
		model:   cases.ModelCase,
		columns: "cases.id, cases.name, cases.comment, cases.created, cases.modified, " + count,
		from:    "cases",
		scan:    scanCase,
	}
}

func scanCase(scan scanner) (cases.Case, error) {
	var c cases.Case
	var created, modified string
	if err := scan(&c.ID, &c.Name, &c.Comment, &created, &modified, &c.LetterCount); err != nil {
		return cases.Case{}, err
	}
	var err error
	if c.Created, err = parseTime(created); err != nil {
		return cases.Case{}, err
	}
	if c.Modified, err = parseTime(modified); err != nil {
		return cases.Case{}, err
	}
	return c, nil
}

// ListCases returns a page of cases with their people and tags loaded.
func (s *Store) ListCases(ctx context.Context, q storage.ListQuery) (_ storage.Page[cases.Case], err error) {
	if err := s.ready(ctx); err != nil {
		return storage.Page[cases.Case]{}, err
	}
	ctx, span := startSpan(ctx, "ListCases", cases.ModelCase)
	defer func() { endSpan(span, err) }()

	page, err := listRows(ctx, s.conn(), caseSpec(q.Annotated(storage.AnnotateLetterCount)), q)
	if err != nil {
		return storage.Page[cases.Case]{}, err
	}
	if err := loadCaseRelations(ctx, s.conn(), page.Items); err != nil {
		return storage.Page[cases.Case]{}, err
	}
	return page, nil
}

// GetCase loads one case. Pass storage.AnnotateLetterCount to fill LetterCount.
func (s *Store) GetCase(ctx context.Context, id int64, annotations ...string) (cases.Case, error) {
	if err := s.ready(ctx); err != nil {
		return cases.Case{}, err
	}
	return getCase(ctx, s.conn(), id, annotations...)
}

func getCase(ctx context.Context, db queryer, id int64, annotations ...string) (cases.Case, error) {
	annotated := storage.ListQuery{Annotations: annotations}.Annotated(storage.AnnotateLetterCount)
	c, err := getRow(ctx, db, caseSpec(annotated), id, annotations...)
	if err != nil {
		return cases.Case{}, err
	}
	items := []cases.Case{c}
	if err := loadCaseRelations(ctx, db, items); err != nil {
		return cases.Case{}, err
	}
	return items[0], nil
}

func loadCaseRelations(ctx context.Context, db queryer, items []cases.Case) error {
	if len(items) == 0 {
		return nil
	}
	index := make(map[int64]int, len(items))
	ids := make([]int64, len(items))
	for i, c := range items {
		index[c.ID] = i
		ids[i] = c.ID
	}
	rels := tables[cases.ModelCase].relations

	people, err := loadLinks(ctx, db, rels["responsible_people"], ids, "email")
	if err != nil {
		return err
	}
	for _, link := range people {
		c := &items[index[link.ownerID]]
		c.ResponsiblePeople = append(c.ResponsiblePeople, cases.Person{ID: link.id, Name: link.label, Email: link.extra})
	}

	tags, err := loadLinks(ctx, db, rels["tags"], ids, "")
	if err != nil {
		return err
	}
	for _, link := range tags {
		c := &items[index[link.ownerID]]
		c.Tags = append(c.Tags, cases.Tag{ID: link.id, Name: link.label})
	}
	return nil
}

// SaveCase inserts or updates c and replaces its people and tags.
func (s *Store) SaveCase(ctx context.Context, c *cases.Case) error {
	return s.SaveCaseWithLetters(ctx, c, storage.InlineLetters{})
}

// SaveCaseWithLetters saves c, then deletes and saves its inline letters in
// the same transaction. Saved letters are attached to c.
func (s *Store) SaveCaseWithLetters(ctx context.Context, c *cases.Case, letters storage.InlineLetters) (err error) {
	if err := s.ready(ctx); err != nil {
		return err
	}
	if c == nil {
		return fmt.Errorf("case is required")
	}
	ctx, span := startSpan(ctx, "SaveCase", cases.ModelCase)
	defer func() { endSpan(span, err) }()

	if err := c.Validate(); err != nil {
		return err
	}
	return s.write(ctx, "save case", func(db queryer) error {
		if err := saveCase(ctx, db, c); err != nil {
			return err
		}
		for _, id := range letters.Delete {
			if _, err := db.ExecContext(ctx, "DELETE FROM letters WHERE id = ? AND case_id = ?", id, c.ID); err != nil {
				return fmt.Errorf("delete inline letter %d: %w", id, err)
			}
		}
		for i := range letters.Save {
			letter := &letters.Save[i]
			letter.CaseID = c.ID
			err := letter.Validate()
			if err == nil {
				err = saveLetter(ctx, db, letter)
			}
			var verr *cases.ValidationError
			if errors.As(err, &verr) {
				var inline cases.ValidationError
				inline.Merge(storage.InlineLetterPrefix(i), verr)
				return &inline
			}
			if err != nil {
				return err
			}
		}
		return nil
	})
}

func saveCase(ctx context.Context, db queryer, c *cases.Case) error {
	var errs cases.ValidationError
	personIDs := make([]int64, len(c.ResponsiblePeople))
	for i, p := range c.ResponsiblePeople {
		personIDs[i] = p.ID
	}
	tagIDs := make([]int64, len(c.Tags))
	for i, t := range c.Tags {
		tagIDs[i] = t.ID
	}
	if err := checkRelated(ctx, db, &errs, "responsible_people", cases.ModelPerson, personIDs...); err != nil {
		return err
	}
	if err := checkRelated(ctx, db, &errs, "tags", cases.ModelTag, tagIDs...); err != nil {
		return err
	}
	if err := errs.Err(); err != nil {
		return err
	}

	ts := now()
	updated := false
	if c.ID > 0 {
		var created string
		err := db.QueryRowContext(ctx,
			"UPDATE cases SET name = ?, comment = ?, modified = ? WHERE id = ? RETURNING created",
			c.Name, c.Comment, formatTime(ts), c.ID).Scan(&created)
		switch {
		case err == nil:
			updated = true
			if c.Created, err = parseTime(created); err != nil {
				return err
			}
		case !errors.Is(err, sql.ErrNoRows):
			return fmt.Errorf("update case %d: %w", c.ID, err)
		}
	}
	if !updated {
		c.Created = ts
		var id any
		if c.ID > 0 {
			id = c.ID
		}
		result, err := db.ExecContext(ctx,
			"INSERT INTO cases (id, name, comment, created, modified) VALUES (?, ?, ?, ?, ?)",
			id, c.Name, c.Comment, formatTime(ts), formatTime(ts))
		if err != nil {
			return fmt.Errorf("insert case: %w", err)
		}
		if c.ID, err = result.LastInsertId(); err != nil {
			return fmt.Errorf("case id: %w", err)
		}
	}
	c.Modified = ts

	rels := tables[cases.ModelCase].relations
	if err := syncLinks(ctx, db, rels["responsible_people"], c.ID, personIDs); err != nil {
		return err
	}
	return syncLinks(ctx, db, rels["tags"], c.ID, tagIDs)
}

// DeleteCase removes a case; its letters go with it.
func (s *Store) DeleteCase(ctx context.Context, id int64) (err error) {
	if err := s.ready(ctx); err != nil {
		return err
	}
	ctx, span := startSpan(ctx, "DeleteCase", cases.ModelCase)
	defer func() { endSpan(span, err) }()
	return deleteRow(ctx, s.conn(), cases.ModelCase, id)
}

// deleteRow removes one row by id. Rows still referenced through a
// restricting foreign key yield storage.ErrProtected.
func deleteRow(ctx context.Context, db queryer, model cases.Model, id int64) error {
	t, err := tableFor(model)
	if err != nil {
		return err
	}
	result, err := db.ExecContext(ctx, "DELETE FROM "+t.name+" WHERE id = ?", id)
	if err != nil {
		if isForeignKeyError(err) {
			return fmt.Errorf("delete %s %d: %w", model, id, storage.ErrProtected)
		}
		return fmt.Errorf("delete %s %d: %w", model, id, err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("delete %s rows affected: %w", model, err)
	}
	if affected == 0 {
		return storage.ErrNotFound
	}
	return nil
}
