package sqlite

import (
	"context"
	"fmt"
	"strings"

	"github.com/watchdogpolska/small-eod/internal/cases"
	"github.com/watchdogpolska/small-eod/internal/cases/filter"
	"github.com/watchdogpolska/small-eod/internal/cases/storage"
)

// RelatedChoices returns the distinct objects reachable from model's rows
// through path, ordered by label.
func (s *Store) RelatedChoices(ctx context.Context, model cases.Model, path string) (_ []storage.Choice, err error) {
	if err := s.ready(ctx); err != nil {
		return nil, err
	}
	ctx, span := startSpan(ctx, "RelatedChoices", model)
	defer func() { endSpan(span, err) }()

	base, err := tableFor(model)
	if err != nil {
		return nil, err
	}
	resolved, err := resolvePath(model, path)
	if err != nil {
		return nil, err
	}
	if !resolved.relation {
		return nil, invalidLookup(path)
	}
	target := tables[resolved.model]

	query := "SELECT DISTINCT " + resolved.alias + ".id, " + resolved.alias + "." + target.label +
		" FROM " + base.name + resolved.joins() +
		" ORDER BY " + resolved.alias + "." + target.label + ", " + resolved.alias + ".id"
	return s.queryChoices(ctx, query)
}

// Choices returns every object of model ordered by label.
func (s *Store) Choices(ctx context.Context, model cases.Model) ([]storage.Choice, error) {
	if err := s.ready(ctx); err != nil {
		return nil, err
	}
	t, err := tableFor(model)
	if err != nil {
		return nil, err
	}
	return s.queryChoices(ctx, "SELECT id, "+t.label+" FROM "+t.name+" ORDER BY "+t.label+", id")
}

// Labels returns labels for the given ids; missing ids are absent.
func (s *Store) Labels(ctx context.Context, model cases.Model, ids []int64) (map[int64]string, error) {
	if err := s.ready(ctx); err != nil {
		return nil, err
	}
	return labels(ctx, s.conn(), model, ids)
}

// SearchChoices returns up to limit objects whose label contains term.
func (s *Store) SearchChoices(ctx context.Context, model cases.Model, term string, limit int) ([]storage.Choice, error) {
	if err := s.ready(ctx); err != nil {
		return nil, err
	}
	t, err := tableFor(model)
	if err != nil {
		return nil, err
	}
	if limit <= 0 {
		limit = storage.DefaultPageSize
	}
	return s.queryChoices(ctx,
		"SELECT id, "+t.label+" FROM "+t.name+
			" WHERE casefold("+t.label+") LIKE ? ESCAPE '\\' ORDER BY "+t.label+", id LIMIT ?",
		filter.ContainsPattern(strings.TrimSpace(term)), limit)
}

func (s *Store) queryChoices(ctx context.Context, query string, args ...any) ([]storage.Choice, error) {
	rows, err := s.conn().QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query choices: %w", err)
	}
	defer rows.Close()

	var choices []storage.Choice
	for rows.Next() {
		var c storage.Choice
		if err := rows.Scan(&c.ID, &c.Label); err != nil {
			return nil, fmt.Errorf("scan choice: %w", err)
		}
		choices = append(choices, c)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate choices: %w", err)
	}
	return choices, nil
}

func labels(ctx context.Context, db queryer, model cases.Model, ids []int64) (map[int64]string, error) {
	t, err := tableFor(model)
	if err != nil {
		return nil, err
	}
	ids = uniqueIDs(ids)
	out := make(map[int64]string, len(ids))
	if len(ids) == 0 {
		return out, nil
	}
	rows, err := db.QueryContext(ctx,
		"SELECT id, "+t.label+" FROM "+t.name+" WHERE id IN ("+placeholders(len(ids))+")", int64Args(ids)...)
	if err != nil {
		return nil, fmt.Errorf("load %s labels: %w", t.name, err)
	}
	defer rows.Close()
	for rows.Next() {
		var id int64
		var label string
		if err := rows.Scan(&id, &label); err != nil {
			return nil, fmt.Errorf("scan %s label: %w", t.name, err)
		}
		out[id] = label
	}
	return out, rows.Err()
}

// checkRelated records error.invalid_related on field for ids that do not exist.
func checkRelated(ctx context.Context, db queryer, errs *cases.ValidationError, field string, model cases.Model, ids ...int64) error {
	ids = uniqueIDs(ids)
	if len(ids) == 0 {
		return nil
	}
	found, err := labels(ctx, db, model, ids)
	if err != nil {
		return err
	}
	for _, id := range ids {
		if _, ok := found[id]; !ok {
			errs.Add(field, "error.invalid_related")
			return nil
		}
	}
	return nil
}

// linkRow is one row of a many-to-many through table joined to its target.
type linkRow struct {
	ownerID int64
	id      int64
	label   string
	extra   string
}

// loadLinks returns the targets linked to owners, in link insertion order.
func loadLinks(ctx context.Context, db queryer, rel relation, owners []int64, extraCol string) ([]linkRow, error) {
	if len(owners) == 0 {
		return nil, nil
	}
	target := tables[rel.target]
	extra := "''"
	if extraCol != "" {
		extra = "t." + extraCol
	}
	query := "SELECT l." + rel.ownCol + ", t.id, t." + target.label + ", " + extra +
		" FROM " + rel.through + " l JOIN " + target.name + " t ON t.id = l." + rel.targetCol +
		" WHERE l." + rel.ownCol + " IN (" + placeholders(len(owners)) + ") ORDER BY l.rowid"
	rows, err := db.QueryContext(ctx, query, int64Args(owners)...)
	if err != nil {
		return nil, fmt.Errorf("load %s: %w", rel.through, err)
	}
	defer rows.Close()

	var links []linkRow
	for rows.Next() {
		var link linkRow
		if err := rows.Scan(&link.ownerID, &link.id, &link.label, &link.extra); err != nil {
			return nil, fmt.Errorf("scan %s: %w", rel.through, err)
		}
		links = append(links, link)
	}
	return links, rows.Err()
}

// syncLinks makes owner linked to exactly ids. Surviving links keep their
// position; new ones are appended in the given order.
func syncLinks(ctx context.Context, db queryer, rel relation, owner int64, ids []int64) error {
	ids = uniqueIDs(ids)
	rows, err := db.QueryContext(ctx,
		"SELECT "+rel.targetCol+" FROM "+rel.through+" WHERE "+rel.ownCol+" = ?", owner)
	if err != nil {
		return fmt.Errorf("load %s: %w", rel.through, err)
	}
	existing := make(map[int64]bool)
	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			rows.Close()
			return fmt.Errorf("scan %s: %w", rel.through, err)
		}
		existing[id] = true
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return fmt.Errorf("iterate %s: %w", rel.through, err)
	}

	wanted := make(map[int64]bool, len(ids))
	for _, id := range ids {
		wanted[id] = true
		if existing[id] {
			continue
		}
		if _, err := db.ExecContext(ctx,
			"INSERT INTO "+rel.through+" ("+rel.ownCol+", "+rel.targetCol+") VALUES (?, ?)", owner, id); err != nil {
			return fmt.Errorf("link %s: %w", rel.through, err)
		}
	}
	for id := range existing {
		if wanted[id] {
			continue
		}
		if _, err := db.ExecContext(ctx,
			"DELETE FROM "+rel.through+" WHERE "+rel.ownCol+" = ? AND "+rel.targetCol+" = ?", owner, id); err != nil {
			return fmt.Errorf("unlink %s: %w", rel.through, err)
		}
	}
	return nil
}
