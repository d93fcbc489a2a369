package sqlite

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"unicode"

	"github.com/watchdogpolska/small-eod/internal/cases"
	"github.com/watchdogpolska/small-eod/internal/cases/filter"
	"github.com/watchdogpolska/small-eod/internal/cases/storage"
	eoderrors "github.com/watchdogpolska/small-eod/internal/platform/errors"
)

// listSpec describes how one model is selected.
type listSpec[T any] struct {
	model cases.Model
	// columns is the SELECT list; it may reference aliases declared in from.
	columns string
	from    string
	scan    func(scanner) (T, error)
}

// whereClause builds the WHERE fragment shared by the count and page queries.
func whereClause(model cases.Model, q storage.ListQuery) (string, []any, error) {
	t, err := tableFor(model)
	if err != nil {
		return "", nil, err
	}

	var conds []string
	var args []any

	for _, lookup := range q.Lookups {
		path, err := resolvePath(model, lookup.Path)
		if err != nil {
			return "", nil, err
		}
		if lookup.Op == storage.LookupIsNull || lookup.Op == storage.LookupNotNull {
			cond := path.where(path.column + " IS NOT NULL")
			if lookup.Op == storage.LookupIsNull {
				cond = "NOT (" + cond + ")"
			}
			conds = append(conds, cond)
			continue
		}
		var value any = lookup.Value
		if path.integer {
			id, err := strconv.ParseInt(strings.TrimSpace(lookup.Value), 10, 64)
			if err != nil {
				return "", nil, eoderrors.Newf(eoderrors.CodeInvalidLookup, "lookup %s expects a number, got %q", lookup.Path, lookup.Value).
					WithMetadata("path", lookup.Path)
			}
			value = id
		}
		conds = append(conds, path.where(path.column+" = ?"))
		args = append(args, value)
	}

	if len(q.IDs) > 0 {
		conds = append(conds, t.name+".id IN ("+placeholders(len(q.IDs))+")")
		for _, id := range q.IDs {
			args = append(args, id)
		}
	}

	if terms := searchTerms(q.Search); len(terms) > 0 && len(q.SearchFields) > 0 {
		fields := uniqueStrings(q.SearchFields)
		paths := make([]resolvedPath, 0, len(fields))
		for _, field := range fields {
			path, err := resolvePath(model, field)
			if err != nil {
				return "", nil, err
			}
			paths = append(paths, path)
		}
		for _, term := range terms {
			pattern := filter.ContainsPattern(term)
			alts := make([]string, 0, len(paths))
			for _, path := range paths {
				alts = append(alts, path.where("casefold("+path.column+") LIKE ? ESCAPE '\\'"))
				args = append(args, pattern)
			}
			conds = append(conds, "("+strings.Join(alts, " OR ")+")")
		}
	}

	if strings.TrimSpace(q.Filter) != "" {
		cond, err := t.filter.Parse(q.Filter)
		if err != nil {
			return "", nil, eoderrors.Wrap(eoderrors.CodeInvalidFilter, "invalid filter", err)
		}
		if !cond.Empty() {
			conds = append(conds, cond.Clause)
			args = append(args, cond.Params...)
		}
	}

	if len(conds) == 0 {
		return "", nil, nil
	}
	return " WHERE " + strings.Join(conds, " AND "), args, nil
}

// orderClause renders q.OrderBy, defaulting to newest first. The primary key
// is always the last key so pages are stable.
func orderClause(model cases.Model, q storage.ListQuery) (string, error) {
	t, err := tableFor(model)
	if err != nil {
		return "", err
	}
	orders := q.OrderBy
	if len(orders) == 0 {
		orders = []storage.Order{{Field: "id", Desc: true}}
	}

	keys := make([]string, 0, len(orders)+1)
	hasID := false
	for _, o := range orders {
		expr, ok := t.order[o.Field]
		if o.Field == storage.AnnotateLetterCount && model == cases.ModelCase && q.Annotated(storage.AnnotateLetterCount) {
			expr, ok = storage.AnnotateLetterCount, true
		}
		if !ok {
			return "", eoderrors.Newf(eoderrors.CodeInvalidOrderBy, "cannot order by %q", o.Field).WithMetadata("field", o.Field)
		}
		if o.Field == "id" {
			hasID = true
		}
		if o.Desc {
			expr += " DESC"
		}
		keys = append(keys, expr)
	}
	if !hasID {
		keys = append(keys, t.name+".id DESC")
	}
	return " ORDER BY " + strings.Join(keys, ", "), nil
}

func limitClause(q storage.ListQuery) (string, []any) {
	limit := q.Limit
	if limit == 0 {
		limit = storage.DefaultPageSize
	}
	offset := q.Offset
	if offset < 0 {
		offset = 0
	}
	if limit < 0 {
		if offset == 0 {
			return "", nil
		}
		return " LIMIT -1 OFFSET ?", []any{offset}
	}
	return " LIMIT ? OFFSET ?", []any{limit, offset}
}

// listRows runs the count and page queries for def.
func listRows[T any](ctx context.Context, db queryer, def listSpec[T], q storage.ListQuery) (storage.Page[T], error) {
	t, err := tableFor(def.model)
	if err != nil {
		return storage.Page[T]{}, err
	}
	where, args, err := whereClause(def.model, q)
	if err != nil {
		return storage.Page[T]{}, err
	}
	order, err := orderClause(def.model, q)
	if err != nil {
		return storage.Page[T]{}, err
	}

	var total int
	if err := db.QueryRowContext(ctx, "SELECT COUNT(*) FROM "+t.name+where, args...).Scan(&total); err != nil {
		return storage.Page[T]{}, fmt.Errorf("count %s: %w", t.name, err)
	}

	limit, limitArgs := limitClause(q)
	query := "SELECT " + def.columns + " FROM " + def.from + where + order + limit
	rows, err := db.QueryContext(ctx, query, append(args, limitArgs...)...)
	if err != nil {
		return storage.Page[T]{}, fmt.Errorf("list %s: %w", t.name, err)
	}
	defer rows.Close()

	page := storage.Page[T]{Total: total}
	for rows.Next() {
		item, err := def.scan(rows.Scan)
		if err != nil {
			return storage.Page[T]{}, fmt.Errorf("scan %s row: %w", t.name, err)
		}
		page.Items = append(page.Items, item)
	}
	if err := rows.Err(); err != nil {
		return storage.Page[T]{}, fmt.Errorf("iterate %s rows: %w", t.name, err)
	}
	return page, nil
}

// getRow loads one row by primary key through def.
func getRow[T any](ctx context.Context, db queryer, def listSpec[T], id int64, annotations ...string) (T, error) {
	var zero T
	page, err := listRows(ctx, db, def, storage.ListQuery{IDs: []int64{id}, Annotations: annotations, Limit: 1})
	if err != nil {
		return zero, err
	}
	if len(page.Items) == 0 {
		return zero, storage.ErrNotFound
	}
	return page.Items[0], nil
}

// searchTerms splits a search box value on whitespace, keeping quoted
// phrases together without their quotes.
func searchTerms(q string) []string {
	var terms []string
	var b strings.Builder
	var quote rune
	flush := func() {
		if b.Len() > 0 {
			terms = append(terms, b.String())
			b.Reset()
		}
	}
	for _, r := range q {
		switch {
		case quote != 0 && r == quote:
			quote = 0
		case quote == 0 && (r == '"' || r == '\''):
			quote = r
		case quote == 0 && unicode.IsSpace(r):
			flush()
		default:
			b.WriteRune(r)
		}
	}
	flush()
	return terms
}

func uniqueStrings(values []string) []string {
	seen := make(map[string]bool, len(values))
	out := make([]string, 0, len(values))
	for _, v := range values {
		if seen[v] {
			continue
		}
		seen[v] = true
		out = append(out, v)
	}
	return out
}

func uniqueIDs(ids []int64) []int64 {
	seen := make(map[int64]bool, len(ids))
	out := make([]int64, 0, len(ids))
	for _, id := range ids {
		if id <= 0 || seen[id] {
			continue
		}
		seen[id] = true
		out = append(out, id)
	}
	return out
}

func placeholders(n int) string {
	if n <= 0 {
		return ""
	}
	return strings.TrimSuffix(strings.Repeat("?,", n), ",")
}

func int64Args(ids []int64) []any {
	args := make([]any, len(ids))
	for i, id := range ids {
		args[i] = id
	}
	return args
}
