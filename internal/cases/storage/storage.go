package storage

import (
	"context"
	"strconv"

	"github.com/watchdogpolska/small-eod/internal/cases"
	eoderrors "github.com/watchdogpolska/small-eod/internal/platform/errors"
)

// ErrNotFound matches missing rows through errors.Is.
var ErrNotFound = eoderrors.New(eoderrors.CodeNotFound, "record not found")

// ErrProtected matches deletes refused because other rows still reference the target.
var ErrProtected = eoderrors.New(eoderrors.CodeProtected, "record is referenced")

// AnnotateLetterCount asks ListCases/GetCase to fill Case.LetterCount.
const AnnotateLetterCount = "letter_count"

// DefaultPageSize is used when a query sets no limit.
const DefaultPageSize = 100

// NoLimit as ListQuery.Limit returns every matching row.
const NoLimit = -1

// LookupOp selects how a Lookup compares.
type LookupOp int

const (
	// LookupExact matches Value.
	LookupExact LookupOp = iota
	// LookupIsNull matches rows with nothing reachable through Path.
	LookupIsNull
	// LookupNotNull matches rows with at least one object behind Path.
	LookupNotNull
)

// Lookup is a condition on a double-underscore field path, e.g.
// {Path: "letter__institution__tags__id", Value: "4"}. Value is ignored by
// the null operators.
type Lookup struct {
	Path  string
	Value string
	Op    LookupOp
}

// Order sorts by one field.
type Order struct {
	Field string
	Desc  bool
}

// ListQuery selects a page of rows.
type ListQuery struct {
	Lookups []Lookup
	// Search is matched term by term against SearchFields.
	Search       string
	SearchFields []string
	// Filter is an AIP-160 expression over the model's scalar fields.
	Filter      string
	OrderBy     []Order
	Annotations []string
	// IDs restricts the result to these primary keys when non-empty.
	IDs    []int64
	Offset int
	// Limit 0 means DefaultPageSize.
	Limit int
}

// Annotated reports whether name was requested.
func (q ListQuery) Annotated(name string) bool {
	for _, a := range q.Annotations {
		if a == name {
			return true
		}
	}
	return false
}

// Page is one slice of a listing plus the count of all matching rows.
type Page[T any] struct {
	Items []T
	Total int
}

// Choice is an id/label pair used by filters, raw-id widgets and lookups.
type Choice struct {
	ID    int64
	Label string
}

// InlineLetters describes the letter rows edited together with a case.
// Validation messages for Save[i] are keyed under InlineLetterPrefix(i).
type InlineLetters struct {
	Save   []cases.Letter
	Delete []int64
}

// InlineLetterPrefix prefixes the field names of the i-th saved inline letter.
func InlineLetterPrefix(i int) string {
	return "letters." + strconv.Itoa(i) + "."
}

// CaseStore persists cases.
type CaseStore interface {
	ListCases(ctx context.Context, q ListQuery) (Page[cases.Case], error)
	GetCase(ctx context.Context, id int64, annotations ...string) (cases.Case, error)
	SaveCase(ctx context.Context, c *cases.Case) error
	// SaveCaseWithLetters saves a case and its inline letters atomically.
	SaveCaseWithLetters(ctx context.Context, c *cases.Case, letters InlineLetters) error
	DeleteCase(ctx context.Context, id int64) error
}

// LetterStore persists letters.
type LetterStore interface {
	ListLetters(ctx context.Context, q ListQuery) (Page[cases.Letter], error)
	// ListCaseLetters returns a case's letters sorted by ordering, then id.
	ListCaseLetters(ctx context.Context, caseID int64) ([]cases.Letter, error)
	GetLetter(ctx context.Context, id int64) (cases.Letter, error)
	SaveLetter(ctx context.Context, l *cases.Letter) error
	DeleteLetter(ctx context.Context, id int64) error
}

// InstitutionStore persists institutions.
type InstitutionStore interface {
	ListInstitutions(ctx context.Context, q ListQuery) (Page[cases.Institution], error)
	GetInstitution(ctx context.Context, id int64) (cases.Institution, error)
	SaveInstitution(ctx context.Context, i *cases.Institution) error
	DeleteInstitution(ctx context.Context, id int64) error
}

// TagStore persists tags.
type TagStore interface {
	ListTags(ctx context.Context, q ListQuery) (Page[cases.Tag], error)
	GetTag(ctx context.Context, id int64) (cases.Tag, error)
	// GetTagByName matches the exact name.
	GetTagByName(ctx context.Context, name string) (cases.Tag, error)
	SaveTag(ctx context.Context, t *cases.Tag) error
	DeleteTag(ctx context.Context, id int64) error
}

// PersonStore persists people.
type PersonStore interface {
	ListPeople(ctx context.Context, q ListQuery) (Page[cases.Person], error)
	GetPerson(ctx context.Context, id int64) (cases.Person, error)
	SavePerson(ctx context.Context, p *cases.Person) error
	DeletePerson(ctx context.Context, id int64) error
}

// ChannelStore persists channels.
type ChannelStore interface {
	ListChannels(ctx context.Context, q ListQuery) (Page[cases.Channel], error)
	GetChannel(ctx context.Context, id int64) (cases.Channel, error)
	SaveChannel(ctx context.Context, c *cases.Channel) error
	DeleteChannel(ctx context.Context, id int64) error
}

// DictionaryStore persists dictionary entries.
type DictionaryStore interface {
	ListDictionaries(ctx context.Context, q ListQuery) (Page[cases.Dictionary], error)
	GetDictionary(ctx context.Context, id int64) (cases.Dictionary, error)
	SaveDictionary(ctx context.Context, d *cases.Dictionary) error
	DeleteDictionary(ctx context.Context, id int64) error
}

// RelationStore answers the generic questions filters and widgets ask.
type RelationStore interface {
	// RelatedChoices returns the distinct objects reachable from model's rows
	// through path, e.g. (case, "letter__institution__tags").
	RelatedChoices(ctx context.Context, model cases.Model, path string) ([]Choice, error)
	// Choices returns every object of model ordered by label.
	Choices(ctx context.Context, model cases.Model) ([]Choice, error)
	// Labels returns labels for the given ids; missing ids are absent.
	Labels(ctx context.Context, model cases.Model, ids []int64) (map[int64]string, error)
	// SearchChoices returns up to limit objects whose label contains term.
	SearchChoices(ctx context.Context, model cases.Model, term string, limit int) ([]Choice, error)
}

// Store is the composite interface for case-tracking storage.
type Store interface {
	CaseStore
	LetterStore
	InstitutionStore
	TagStore
	PersonStore
	ChannelStore
	DictionaryStore
	RelationStore
	// InTx runs fn against a transactional view of the store. When dryRun is
	// true the transaction is rolled back even if fn succeeds.
	InTx(ctx context.Context, dryRun bool, fn func(Store) error) error
	Close() error
}
