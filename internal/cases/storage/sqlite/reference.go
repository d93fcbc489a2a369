package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/watchdogpolska/small-eod/internal/cases"
	"github.com/watchdogpolska/small-eod/internal/cases/storage"
)

// upsert updates the row with *id, or inserts it (keeping a non-zero *id)
// when no such row exists.
func upsert(ctx context.Context, db queryer, tbl string, id *int64, cols []string, vals []any) error {
	if *id > 0 {
		set := make([]string, len(cols))
		for i, col := range cols {
			set[i] = col + " = ?"
		}
		result, err := db.ExecContext(ctx,
			"UPDATE "+tbl+" SET "+strings.Join(set, ", ")+" WHERE id = ?", append(vals, *id)...)
		if err != nil {
			return err
		}
		affected, err := result.RowsAffected()
		if err != nil {
			return err
		}
		if affected > 0 {
			return nil
		}
	}
	var rowID any
	if *id > 0 {
		rowID = *id
	}
	result, err := db.ExecContext(ctx,
		"INSERT INTO "+tbl+" (id, "+strings.Join(cols, ", ")+") VALUES (?, "+placeholders(len(cols))+")",
		append([]any{rowID}, vals...)...)
	if err != nil {
		return err
	}
	newID, err := result.LastInsertId()
	if err != nil {
		return err
	}
	*id = newID
	return nil
}

var tagSpec = listSpec[cases.Tag]{
	model:   cases.ModelTag,
	columns: "tags.id, tags.name",
	from:    "tags",
	scan: func(scan scanner) (cases.Tag, error) {
		var t cases.Tag
		err := scan(&t.ID, &t.Name)
		return t, err
	},
}

// ListTags returns a page of tags.
func (s *Store) ListTags(ctx context.Context, q storage.ListQuery) (_ storage.Page[cases.Tag], err error) {
	if err := s.ready(ctx); err != nil {
		return storage.Page[cases.Tag]{}, err
	}
	ctx, span := startSpan(ctx, "ListTags", cases.ModelTag)
	defer func() { endSpan(span, err) }()
	return listRows(ctx, s.conn(), tagSpec, q)
}

// GetTag loads one tag.
func (s *Store) GetTag(ctx context.Context, id int64) (cases.Tag, error) {
	if err := s.ready(ctx); err != nil {
		return cases.Tag{}, err
	}
	return getRow(ctx, s.conn(), tagSpec, id)
}

// GetTagByName loads the tag with exactly name.
func (s *Store) GetTagByName(ctx context.Context, name string) (cases.Tag, error) {
	if err := s.ready(ctx); err != nil {
		return cases.Tag{}, err
	}
	t, err := tagSpec.scan(s.conn().QueryRowContext(ctx, "SELECT id, name FROM tags WHERE name = ?", name).Scan)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return cases.Tag{}, storage.ErrNotFound
		}
		return cases.Tag{}, fmt.Errorf("get tag by name: %w", err)
	}
	return t, nil
}

// SaveTag inserts or updates t. Tag names are unique.
func (s *Store) SaveTag(ctx context.Context, t *cases.Tag) (err error) {
	if err := s.ready(ctx); err != nil {
		return err
	}
	if t == nil {
		return fmt.Errorf("tag is required")
	}
	ctx, span := startSpan(ctx, "SaveTag", cases.ModelTag)
	defer func() { endSpan(span, err) }()

	if err := t.Validate(); err != nil {
		return err
	}
	t.Name = strings.TrimSpace(t.Name)
	if err := upsert(ctx, s.conn(), "tags", &t.ID, []string{"name"}, []any{t.Name}); err != nil {
		if isUniqueError(err) {
			var errs cases.ValidationError
			errs.Add("name", "error.duplicate")
			return &errs
		}
		return fmt.Errorf("save tag: %w", err)
	}
	return nil
}

// DeleteTag removes a tag and its links.
func (s *Store) DeleteTag(ctx context.Context, id int64) (err error) {
	if err := s.ready(ctx); err != nil {
		return err
	}
	ctx, span := startSpan(ctx, "DeleteTag", cases.ModelTag)
	defer func() { endSpan(span, err) }()
	return deleteRow(ctx, s.conn(), cases.ModelTag, id)
}

var personSpec = listSpec[cases.Person]{
	model:   cases.ModelPerson,
	columns: "people.id, people.name, people.email",
	from:    "people",
	scan: func(scan scanner) (cases.Person, error) {
		var p cases.Person
		err := scan(&p.ID, &p.Name, &p.Email)
		return p, err
	},
}

// ListPeople returns a page of people.
func (s *Store) ListPeople(ctx context.Context, q storage.ListQuery) (_ storage.Page[cases.Person], err error) {
	if err := s.ready(ctx); err != nil {
		return storage.Page[cases.Person]{}, err
	}
	ctx, span := startSpan(ctx, "ListPeople", cases.ModelPerson)
	defer func() { endSpan(span, err) }()
	return listRows(ctx, s.conn(), personSpec, q)
}

// GetPerson loads one person.
func (s *Store) GetPerson(ctx context.Context, id int64) (cases.Person, error) {
	if err := s.ready(ctx); err != nil {
		return cases.Person{}, err
	}
	return getRow(ctx, s.conn(), personSpec, id)
}

// SavePerson inserts or updates p.
func (s *Store) SavePerson(ctx context.Context, p *cases.Person) (err error) {
	if err := s.ready(ctx); err != nil {
		return err
	}
	if p == nil {
		return fmt.Errorf("person is required")
	}
	ctx, span := startSpan(ctx, "SavePerson", cases.ModelPerson)
	defer func() { endSpan(span, err) }()

	if err := p.Validate(); err != nil {
		return err
	}
	if err := upsert(ctx, s.conn(), "people", &p.ID, []string{"name", "email"}, []any{p.Name, strings.TrimSpace(p.Email)}); err != nil {
		return fmt.Errorf("save person: %w", err)
	}
	return nil
}

// DeletePerson removes a person and unassigns them from cases.
func (s *Store) DeletePerson(ctx context.Context, id int64) (err error) {
	if err := s.ready(ctx); err != nil {
		return err
	}
	ctx, span := startSpan(ctx, "DeletePerson", cases.ModelPerson)
	defer func() { endSpan(span, err) }()
	return deleteRow(ctx, s.conn(), cases.ModelPerson, id)
}

var channelSpec = listSpec[cases.Channel]{
	model:   cases.ModelChannel,
	columns: "channels.id, channels.name",
	from:    "channels",
	scan: func(scan scanner) (cases.Channel, error) {
		var c cases.Channel
		err := scan(&c.ID, &c.Name)
		return c, err
	},
}

// ListChannels returns a page of channels.
func (s *Store) ListChannels(ctx context.Context, q storage.ListQuery) (_ storage.Page[cases.Channel], err error) {
	if err := s.ready(ctx); err != nil {
		return storage.Page[cases.Channel]{}, err
	}
	ctx, span := startSpan(ctx, "ListChannels", cases.ModelChannel)
	defer func() { endSpan(span, err) }()
	return listRows(ctx, s.conn(), channelSpec, q)
}

// GetChannel loads one channel.
func (s *Store) GetChannel(ctx context.Context, id int64) (cases.Channel, error) {
	if err := s.ready(ctx); err != nil {
		return cases.Channel{}, err
	}
	return getRow(ctx, s.conn(), channelSpec, id)
}

// SaveChannel inserts or updates c.
func (s *Store) SaveChannel(ctx context.Context, c *cases.Channel) (err error) {
	if err := s.ready(ctx); err != nil {
		return err
	}
	if c == nil {
		return fmt.Errorf("channel is required")
	}
	ctx, span := startSpan(ctx, "SaveChannel", cases.ModelChannel)
	defer func() { endSpan(span, err) }()

	if err := c.Validate(); err != nil {
		return err
	}
	if err := upsert(ctx, s.conn(), "channels", &c.ID, []string{"name"}, []any{c.Name}); err != nil {
		return fmt.Errorf("save channel: %w", err)
	}
	return nil
}

// DeleteChannel removes a channel; letters sent through it keep no channel.
func (s *Store) DeleteChannel(ctx context.Context, id int64) (err error) {
	if err := s.ready(ctx); err != nil {
		return err
	}
	ctx, span := startSpan(ctx, "DeleteChannel", cases.ModelChannel)
	defer func() { endSpan(span, err) }()
	return deleteRow(ctx, s.conn(), cases.ModelChannel, id)
}

var dictionarySpec = listSpec[cases.Dictionary]{
	model:   cases.ModelDictionary,
	columns: "dictionaries.id, dictionaries.name, dictionaries.active",
	from:    "dictionaries",
	scan: func(scan scanner) (cases.Dictionary, error) {
		var d cases.Dictionary
		err := scan(&d.ID, &d.Name, &d.Active)
		return d, err
	},
}

// ListDictionaries returns a page of dictionary entries.
func (s *Store) ListDictionaries(ctx context.Context, q storage.ListQuery) (_ storage.Page[cases.Dictionary], err error) {
	if err := s.ready(ctx); err != nil {
		return storage.Page[cases.Dictionary]{}, err
	}
	ctx, span := startSpan(ctx, "ListDictionaries", cases.ModelDictionary)
	defer func() { endSpan(span, err) }()
	return listRows(ctx, s.conn(), dictionarySpec, q)
}

// GetDictionary loads one dictionary entry.
func (s *Store) GetDictionary(ctx context.Context, id int64) (cases.Dictionary, error) {
	if err := s.ready(ctx); err != nil {
		return cases.Dictionary{}, err
	}
	return getRow(ctx, s.conn(), dictionarySpec, id)
}

// SaveDictionary inserts or updates d.
func (s *Store) SaveDictionary(ctx context.Context, d *cases.Dictionary) (err error) {
	if err := s.ready(ctx); err != nil {
		return err
	}
	if d == nil {
		return fmt.Errorf("dictionary is required")
	}
	ctx, span := startSpan(ctx, "SaveDictionary", cases.ModelDictionary)
	defer func() { endSpan(span, err) }()

	if err := d.Validate(); err != nil {
		return err
	}
	if err := upsert(ctx, s.conn(), "dictionaries", &d.ID, []string{"name", "active"}, []any{d.Name, d.Active}); err != nil {
		return fmt.Errorf("save dictionary: %w", err)
	}
	return nil
}

// DeleteDictionary removes one dictionary entry.
func (s *Store) DeleteDictionary(ctx context.Context, id int64) (err error) {
	if err := s.ready(ctx); err != nil {
		return err
	}
	ctx, span := startSpan(ctx, "DeleteDictionary", cases.ModelDictionary)
	defer func() { endSpan(span, err) }()
	return deleteRow(ctx, s.conn(), cases.ModelDictionary, id)
}
