package sqlite

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/watchdogpolska/small-eod/internal/cases"
	"github.com/watchdogpolska/small-eod/internal/cases/filter"
	eoderrors "github.com/watchdogpolska/small-eod/internal/platform/errors"
)

type relationKind int

const (
	// relForeignKey: column on this table holds the target id.
	relForeignKey relationKind = iota
	// relReverse: column on the target table holds this table's id.
	relReverse
	// relManyToMany: a through table links both ids.
	relManyToMany
)

type relation struct {
	kind   relationKind
	target cases.Model
	column string

	through   string
	ownCol    string
	targetCol string
}

type table struct {
	name  string
	label string
	// columns maps field names usable at the end of a lookup path.
	columns   map[string]string
	relations map[string]relation
	// order maps sortable fields to SQL expressions.
	order  map[string]string
	filter *filter.Schema
}

var tables = map[cases.Model]table{
	cases.ModelCase: {
		name:  "cases",
		label: "name",
		columns: map[string]string{
			"id": "id", "name": "name", "comment": "comment", "created": "created", "modified": "modified",
		},
		relations: map[string]relation{
			"responsible_people": {kind: relManyToMany, target: cases.ModelPerson, through: "case_responsible_people", ownCol: "case_id", targetCol: "person_id"},
			"tags":               {kind: relManyToMany, target: cases.ModelTag, through: "case_tags", ownCol: "case_id", targetCol: "tag_id"},
			"letter":             {kind: relReverse, target: cases.ModelLetter, column: "case_id"},
		},
		order: map[string]string{
			"id": "cases.id", "name": "cases.name", "comment": "cases.comment",
			"created": "cases.created", "modified": "cases.modified",
		},
		filter: filter.MustSchema(
			filter.Field{Name: "id", Column: "cases.id", Type: filter.TypeInt},
			filter.Field{Name: "name", Column: "cases.name", Type: filter.TypeString},
			filter.Field{Name: "comment", Column: "cases.comment", Type: filter.TypeString},
			filter.Field{Name: "created", Column: "cases.created", Type: filter.TypeTimestamp},
			filter.Field{Name: "modified", Column: "cases.modified", Type: filter.TypeTimestamp},
		),
	},
	cases.ModelLetter: {
		name:  "letters",
		label: "name",
		columns: map[string]string{
			"id": "id", "name": "name", "direction": "direction", "data": "data", "identifier": "identifier",
			"comment": "comment", "created": "created", "modified": "modified", "ordering": "ordering",
			"case_id": "case_id", "institution_id": "institution_id", "channel_id": "channel_id",
		},
		relations: map[string]relation{
			"case":        {kind: relForeignKey, target: cases.ModelCase, column: "case_id"},
			"institution": {kind: relForeignKey, target: cases.ModelInstitution, column: "institution_id"},
			"channel":     {kind: relForeignKey, target: cases.ModelChannel, column: "channel_id"},
		},
		order: map[string]string{
			"id": "letters.id", "name": "letters.name", "direction": "letters.direction", "data": "letters.data",
			"identifier": "letters.identifier", "comment": "letters.comment", "created": "letters.created",
			"modified": "letters.modified", "ordering": "letters.ordering",
			"case": "lcase.name", "institution": "linst.name", "channel": "lchan.name",
		},
		filter: filter.MustSchema(
			filter.Field{Name: "id", Column: "letters.id", Type: filter.TypeInt},
			filter.Field{Name: "name", Column: "letters.name", Type: filter.TypeString},
			filter.Field{Name: "direction", Column: "letters.direction", Type: filter.TypeString},
			filter.Field{Name: "data", Column: "letters.data", Type: filter.TypeDate},
			filter.Field{Name: "identifier", Column: "letters.identifier", Type: filter.TypeString},
			filter.Field{Name: "comment", Column: "letters.comment", Type: filter.TypeString},
			filter.Field{Name: "created", Column: "letters.created", Type: filter.TypeTimestamp},
			filter.Field{Name: "modified", Column: "letters.modified", Type: filter.TypeTimestamp},
			filter.Field{Name: "ordering", Column: "letters.ordering", Type: filter.TypeInt},
			filter.Field{Name: "case_id", Column: "letters.case_id", Type: filter.TypeInt},
			filter.Field{Name: "institution_id", Column: "letters.institution_id", Type: filter.TypeInt},
		),
	},
	cases.ModelInstitution: {
		name:  "institutions",
		label: "name",
		columns: map[string]string{
			"id": "id", "name": "name", "comment": "comment", "created": "created", "modified": "modified",
		},
		relations: map[string]relation{
			"tags":   {kind: relManyToMany, target: cases.ModelTag, through: "institution_tags", ownCol: "institution_id", targetCol: "tag_id"},
			"letter": {kind: relReverse, target: cases.ModelLetter, column: "institution_id"},
		},
		order: map[string]string{
			"id": "institutions.id", "name": "institutions.name", "comment": "institutions.comment",
			"created": "institutions.created", "modified": "institutions.modified",
		},
		filter: filter.MustSchema(
			filter.Field{Name: "id", Column: "institutions.id", Type: filter.TypeInt},
			filter.Field{Name: "name", Column: "institutions.name", Type: filter.TypeString},
			filter.Field{Name: "comment", Column: "institutions.comment", Type: filter.TypeString},
			filter.Field{Name: "created", Column: "institutions.created", Type: filter.TypeTimestamp},
			filter.Field{Name: "modified", Column: "institutions.modified", Type: filter.TypeTimestamp},
		),
	},
	cases.ModelTag: {
		name:    "tags",
		label:   "name",
		columns: map[string]string{"id": "id", "name": "name"},
		relations: map[string]relation{
			"case":        {kind: relManyToMany, target: cases.ModelCase, through: "case_tags", ownCol: "tag_id", targetCol: "case_id"},
			"institution": {kind: relManyToMany, target: cases.ModelInstitution, through: "institution_tags", ownCol: "tag_id", targetCol: "institution_id"},
		},
		order: map[string]string{"id": "tags.id", "name": "tags.name"},
		filter: filter.MustSchema(
			filter.Field{Name: "id", Column: "tags.id", Type: filter.TypeInt},
			filter.Field{Name: "name", Column: "tags.name", Type: filter.TypeString},
		),
	},
	cases.ModelPerson: {
		name:    "people",
		label:   "name",
		columns: map[string]string{"id": "id", "name": "name", "email": "email"},
		relations: map[string]relation{
			"case": {kind: relManyToMany, target: cases.ModelCase, through: "case_responsible_people", ownCol: "person_id", targetCol: "case_id"},
		},
		order: map[string]string{"id": "people.id", "name": "people.name", "email": "people.email"},
		filter: filter.MustSchema(
			filter.Field{Name: "id", Column: "people.id", Type: filter.TypeInt},
			filter.Field{Name: "name", Column: "people.name", Type: filter.TypeString},
			filter.Field{Name: "email", Column: "people.email", Type: filter.TypeString},
		),
	},
	cases.ModelChannel: {
		name:    "channels",
		label:   "name",
		columns: map[string]string{"id": "id", "name": "name"},
		relations: map[string]relation{
			"letter": {kind: relReverse, target: cases.ModelLetter, column: "channel_id"},
		},
		order: map[string]string{"id": "channels.id", "name": "channels.name"},
		filter: filter.MustSchema(
			filter.Field{Name: "id", Column: "channels.id", Type: filter.TypeInt},
			filter.Field{Name: "name", Column: "channels.name", Type: filter.TypeString},
		),
	},
	cases.ModelDictionary: {
		name:      "dictionaries",
		label:     "name",
		columns:   map[string]string{"id": "id", "name": "name", "active": "active"},
		relations: map[string]relation{},
		order:     map[string]string{"id": "dictionaries.id", "name": "dictionaries.name", "active": "dictionaries.active"},
		filter: filter.MustSchema(
			filter.Field{Name: "id", Column: "dictionaries.id", Type: filter.TypeInt},
			filter.Field{Name: "name", Column: "dictionaries.name", Type: filter.TypeString},
			filter.Field{Name: "active", Column: "dictionaries.active", Type: filter.TypeBool},
		),
	},
}

func tableFor(model cases.Model) (table, error) {
	t, ok := tables[model]
	if !ok {
		return table{}, fmt.Errorf("unknown model %q", model)
	}
	return t, nil
}

// hop is one table joined while walking a lookup path.
type hop struct {
	table string
	alias string
	on    string
}

// resolvedPath is a lookup path turned into joins plus a final column.
type resolvedPath struct {
	hops []hop
	// alias is the table alias the path ends on.
	alias  string
	column string
	model  cases.Model
	// integer reports whether column holds ids.
	integer bool
	// relation reports whether the path ended on a relation rather than a column.
	relation bool
}

// resolvePath walks a double-underscore path starting at model, e.g.
// "letter__institution__tags__id" from cases.
func resolvePath(model cases.Model, path string) (resolvedPath, error) {
	t, err := tableFor(model)
	if err != nil {
		return resolvedPath{}, err
	}
	if strings.TrimSpace(path) == "" {
		return resolvedPath{}, invalidLookup(path)
	}

	res := resolvedPath{alias: t.name, model: model}
	segments := strings.Split(path, "__")
	for i, seg := range segments {
		cur := tables[res.model]
		if rel, ok := cur.relations[seg]; ok {
			target := tables[rel.target]
			next := "r" + strconv.Itoa(len(res.hops)+1)
			switch rel.kind {
			case relForeignKey:
				res.hops = append(res.hops, hop{table: target.name, alias: next, on: next + ".id = " + res.alias + "." + rel.column})
			case relReverse:
				res.hops = append(res.hops, hop{table: target.name, alias: next, on: next + "." + rel.column + " = " + res.alias + ".id"})
			case relManyToMany:
				res.hops = append(res.hops, hop{table: rel.through, alias: next, on: next + "." + rel.ownCol + " = " + res.alias + ".id"})
				through := next
				next = "r" + strconv.Itoa(len(res.hops)+1)
				res.hops = append(res.hops, hop{table: target.name, alias: next, on: next + ".id = " + through + "." + rel.targetCol})
			}
			res.alias = next
			res.model = rel.target
			continue
		}
		if col, ok := cur.columns[seg]; ok && i == len(segments)-1 {
			res.column = res.alias + "." + col
			res.integer = col == "id" || strings.HasSuffix(col, "_id") || col == "ordering"
			return res, nil
		}
		return resolvedPath{}, invalidLookup(path)
	}

	res.column = res.alias + ".id"
	res.integer = true
	res.relation = true
	return res, nil
}

// where wraps cond so it is evaluated across the path's joins.
func (p resolvedPath) where(cond string) string {
	if len(p.hops) == 0 {
		return cond
	}
	var b strings.Builder
	b.WriteString("EXISTS (SELECT 1 FROM ")
	b.WriteString(p.hops[0].table + " " + p.hops[0].alias)
	for _, h := range p.hops[1:] {
		b.WriteString(" JOIN " + h.table + " " + h.alias + " ON " + h.on)
	}
	b.WriteString(" WHERE " + p.hops[0].on + " AND " + cond + ")")
	return b.String()
}

// joins renders the path as inner joins hanging off the base table.
func (p resolvedPath) joins() string {
	var b strings.Builder
	for _, h := range p.hops {
		b.WriteString(" JOIN " + h.table + " " + h.alias + " ON " + h.on)
	}
	return b.String()
}

func invalidLookup(path string) error {
	return eoderrors.Newf(eoderrors.CodeInvalidLookup, "invalid lookup path %q", path).WithMetadata("path", path)
}
