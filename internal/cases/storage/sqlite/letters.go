package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/watchdogpolska/small-eod/internal/cases"
	"github.com/watchdogpolska/small-eod/internal/cases/storage"
)

var letterSpec = listSpec[cases.Letter]{
	model: cases.ModelLetter,
	columns: `letters.id, letters.name, letters.direction, letters.data, letters.identifier, letters.comment,
letters.created, letters.modified, letters.case_id, lcase.name, letters.institution_id, linst.name,
COALESCE(letters.channel_id, 0), COALESCE(lchan.name, ''), letters.ordering`,
	from: `letters
JOIN cases lcase ON lcase.id = letters.case_id
JOIN institutions linst ON linst.id = letters.institution_id
LEFT JOIN channels lchan ON lchan.id = letters.channel_id`,
	scan: scanLetter,
}

func scanLetter(scan scanner) (cases.Letter, error) {
	var l cases.Letter
	var direction, data, created, modified string
	if err := scan(&l.ID, &l.Name, &direction, &data, &l.Identifier, &l.Comment,
		&created, &modified, &l.CaseID, &l.CaseName, &l.InstitutionID, &l.InstitutionName,
		&l.ChannelID, &l.ChannelName, &l.Ordering); err != nil {
		return cases.Letter{}, err
	}
	l.Direction = cases.Direction(direction)
	var err error
	if data != "" {
		if l.Data, err = time.Parse(cases.DateLayout, data); err != nil {
			return cases.Letter{}, fmt.Errorf("parse letter date %q: %w", data, err)
		}
	}
	if l.Created, err = parseTime(created); err != nil {
		return cases.Letter{}, err
	}
	if l.Modified, err = parseTime(modified); err != nil {
		return cases.Letter{}, err
	}
	return l, nil
}

// ListLetters returns a page of letters with case, institution and channel labels.
func (s *Store) ListLetters(ctx context.Context, q storage.ListQuery) (_ storage.Page[cases.Letter], err error) {
	if err := s.ready(ctx); err != nil {
		return storage.Page[cases.Letter]{}, err
	}
	ctx, span := startSpan(ctx, "ListLetters", cases.ModelLetter)
	defer func() { endSpan(span, err) }()
	return listRows(ctx, s.conn(), letterSpec, q)
}

// ListCaseLetters returns a case's letters sorted by ordering, then id.
func (s *Store) ListCaseLetters(ctx context.Context, caseID int64) ([]cases.Letter, error) {
	if err := s.ready(ctx); err != nil {
		return nil, err
	}
	page, err := listRows(ctx, s.conn(), letterSpec, storage.ListQuery{
		Lookups: []storage.Lookup{{Path: "case_id", Value: fmt.Sprint(caseID)}},
		OrderBy: []storage.Order{{Field: "ordering"}, {Field: "id"}},
		Limit:   storage.NoLimit,
	})
	if err != nil {
		return nil, err
	}
	return page.Items, nil
}

// GetLetter loads one letter.
func (s *Store) GetLetter(ctx context.Context, id int64) (cases.Letter, error) {
	if err := s.ready(ctx); err != nil {
		return cases.Letter{}, err
	}
	return getRow(ctx, s.conn(), letterSpec, id)
}

// SaveLetter inserts or updates l.
func (s *Store) SaveLetter(ctx context.Context, l *cases.Letter) (err error) {
	if err := s.ready(ctx); err != nil {
		return err
	}
	if l == nil {
		return fmt.Errorf("letter is required")
	}
	ctx, span := startSpan(ctx, "SaveLetter", cases.ModelLetter)
	defer func() { endSpan(span, err) }()

	if err := l.Validate(); err != nil {
		return err
	}
	return s.write(ctx, "save letter", func(db queryer) error {
		return saveLetter(ctx, db, l)
	})
}

func saveLetter(ctx context.Context, db queryer, l *cases.Letter) error {
	var errs cases.ValidationError
	if err := checkRelated(ctx, db, &errs, "case", cases.ModelCase, l.CaseID); err != nil {
		return err
	}
	if err := checkRelated(ctx, db, &errs, "institution", cases.ModelInstitution, l.InstitutionID); err != nil {
		return err
	}
	if err := checkRelated(ctx, db, &errs, "channel", cases.ModelChannel, l.ChannelID); err != nil {
		return err
	}
	if err := errs.Err(); err != nil {
		return err
	}

	var channel any
	if l.ChannelID > 0 {
		channel = l.ChannelID
	}
	data := ""
	if !l.Data.IsZero() {
		data = l.Data.Format(cases.DateLayout)
	}

	ts := now()
	updated := false
	if l.ID > 0 {
		var created string
		err := db.QueryRowContext(ctx, `
UPDATE letters
SET name = ?, direction = ?, data = ?, identifier = ?, comment = ?, modified = ?,
    case_id = ?, institution_id = ?, channel_id = ?, ordering = ?
WHERE id = ?
RETURNING created`,
			l.Name, string(l.Direction), data, l.Identifier, l.Comment, formatTime(ts),
			l.CaseID, l.InstitutionID, channel, l.Ordering, l.ID).Scan(&created)
		switch {
		case err == nil:
			updated = true
			if l.Created, err = parseTime(created); err != nil {
				return err
			}
		case !errors.Is(err, sql.ErrNoRows):
			return fmt.Errorf("update letter %d: %w", l.ID, err)
		}
	}
	if !updated {
		l.Created = ts
		var id any
		if l.ID > 0 {
			id = l.ID
		}
		result, err := db.ExecContext(ctx, `
INSERT INTO letters (id, name, direction, data, identifier, comment, created, modified, case_id, institution_id, channel_id, ordering)
VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
			id, l.Name, string(l.Direction), data, l.Identifier, l.Comment, formatTime(ts), formatTime(ts),
			l.CaseID, l.InstitutionID, channel, l.Ordering)
		if err != nil {
			return fmt.Errorf("insert letter: %w", err)
		}
		if l.ID, err = result.LastInsertId(); err != nil {
			return fmt.Errorf("letter id: %w", err)
		}
	}
	l.Modified = ts
	return nil
}

// DeleteLetter removes one letter.
func (s *Store) DeleteLetter(ctx context.Context, id int64) (err error) {
	if err := s.ready(ctx); err != nil {
		return err
	}
	ctx, span := startSpan(ctx, "DeleteLetter", cases.ModelLetter)
	defer func() { endSpan(span, err) }()
	return deleteRow(ctx, s.conn(), cases.ModelLetter, id)
}
