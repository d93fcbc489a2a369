package sqlite

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/watchdogpolska/small-eod/internal/cases"
	"github.com/watchdogpolska/small-eod/internal/cases/storage"
	eoderrors "github.com/watchdogpolska/small-eod/internal/platform/errors"
)

func TestOpenRequiresPath(t *testing.T) {
	t.Parallel()

	if _, err := Open(""); err == nil {
		t.Fatal("expected empty path error")
	}
}

func TestListCasesLetterCountIsZeroWithoutLetters(t *testing.T) {
	t.Parallel()

	store := openTempStore(t)
	ctx := context.Background()
	f := seed(t, store)

	page, err := store.ListCases(ctx, storage.ListQuery{Annotations: []string{storage.AnnotateLetterCount}})
	if err != nil {
		t.Fatalf("list cases: %v", err)
	}
	counts := map[string]int{}
	for _, c := range page.Items {
		counts[c.Name] = c.LetterCount
	}
	want := map[string]int{"Smog": 2, "Water": 1, "Empty": 0}
	for name, n := range want {
		if counts[name] != n {
			t.Fatalf("case %s: expected %d letters, got %d (all: %v)", name, n, counts[name], counts)
		}
	}

	got, err := store.GetCase(ctx, f.empty.ID, storage.AnnotateLetterCount)
	if err != nil {
		t.Fatalf("get case: %v", err)
	}
	if got.LetterCount != 0 {
		t.Fatalf("expected 0 letters, got %d", got.LetterCount)
	}
}

func TestListCasesFiltersByTag(t *testing.T) {
	t.Parallel()

	store := openTempStore(t)
	f := seed(t, store)

	page, err := store.ListCases(context.Background(), storage.ListQuery{
		Lookups: []storage.Lookup{{Path: "tags__id", Value: fmt.Sprint(f.urgent.ID)}},
	})
	if err != nil {
		t.Fatalf("list cases: %v", err)
	}
	if page.Total != 1 || len(page.Items) != 1 || page.Items[0].ID != f.smog.ID {
		t.Fatalf("expected only the smog case, got %+v", page.Items)
	}
	hasTag := false
	for _, tag := range page.Items[0].Tags {
		if tag.ID == f.urgent.ID {
			hasTag = true
		}
	}
	if !hasTag {
		t.Fatalf("expected returned case to carry the tag, got %+v", page.Items[0].Tags)
	}
}

func TestListCasesFiltersByInstitutionTagThroughLetters(t *testing.T) {
	t.Parallel()

	store := openTempStore(t)
	f := seed(t, store)

	page, err := store.ListCases(context.Background(), storage.ListQuery{
		Lookups: []storage.Lookup{{Path: "letter__institution__tags__id", Value: fmt.Sprint(f.public.ID)}},
	})
	if err != nil {
		t.Fatalf("list cases: %v", err)
	}
	if page.Total != 1 || page.Items[0].ID != f.smog.ID {
		t.Fatalf("expected only the smog case, got %+v", page.Items)
	}
}

func TestNullLookups(t *testing.T) {
	t.Parallel()

	store := openTempStore(t)
	ctx := context.Background()
	seed(t, store)

	caseNames := func(lookup storage.Lookup) []string {
		t.Helper()
		page, err := store.ListCases(ctx, storage.ListQuery{
			Lookups: []storage.Lookup{lookup},
			OrderBy: []storage.Order{{Field: "id"}},
		})
		if err != nil {
			t.Fatalf("list cases %+v: %v", lookup, err)
		}
		var names []string
		for _, c := range page.Items {
			names = append(names, c.Name)
		}
		return names
	}

	tests := []struct {
		name   string
		lookup storage.Lookup
		want   string
	}{
		{name: "no tags", lookup: storage.Lookup{Path: "tags", Op: storage.LookupIsNull}, want: "Empty"},
		{name: "some tags", lookup: storage.Lookup{Path: "tags", Op: storage.LookupNotNull}, want: "Smog,Water"},
		{name: "nobody responsible", lookup: storage.Lookup{Path: "responsible_people", Op: storage.LookupIsNull}, want: "Water,Empty"},
		{name: "no institution tag through letters", lookup: storage.Lookup{Path: "letter__institution__tags", Op: storage.LookupIsNull}, want: "Water,Empty"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := fmt.Sprint(caseNames(tt.lookup))
			want := fmt.Sprint(strings.Split(tt.want, ","))
			if got != want {
				t.Fatalf("cases = %s, want %s", got, want)
			}
		})
	}

	page, err := store.ListLetters(ctx, storage.ListQuery{
		Lookups: []storage.Lookup{{Path: "channel", Op: storage.LookupIsNull}},
	})
	if err != nil {
		t.Fatalf("list letters: %v", err)
	}
	if page.Total != 1 || page.Items[0].Name != "Odpowiedź" {
		t.Fatalf("letters without channel = %+v", page.Items)
	}

	if _, err := store.ListCases(ctx, storage.ListQuery{
		Lookups: []storage.Lookup{{Path: "nope", Op: storage.LookupIsNull}},
	}); !eoderrors.IsCode(err, eoderrors.CodeInvalidLookup) {
		t.Fatalf("unknown null lookup = %v, want invalid lookup", err)
	}
}

func TestRelatedChoicesOnlyReachableObjects(t *testing.T) {
	t.Parallel()

	store := openTempStore(t)
	f := seed(t, store)

	choices, err := store.RelatedChoices(context.Background(), cases.ModelCase, "letter__institution__tags")
	if err != nil {
		t.Fatalf("related choices: %v", err)
	}
	if len(choices) != 1 || choices[0].ID != f.public.ID || choices[0].Label != "public" {
		t.Fatalf("expected only the public tag, got %+v", choices)
	}

	institutions, err := store.RelatedChoices(context.Background(), cases.ModelLetter, "institution")
	if err != nil {
		t.Fatalf("related institutions: %v", err)
	}
	if len(institutions) != 2 {
		t.Fatalf("expected two institutions with letters, got %+v", institutions)
	}

	if _, err := store.RelatedChoices(context.Background(), cases.ModelCase, "name"); !eoderrors.IsCode(err, eoderrors.CodeInvalidLookup) {
		t.Fatalf("expected invalid lookup for a scalar path, got %v", err)
	}
}

func TestSearchLettersByInstitutionName(t *testing.T) {
	t.Parallel()

	store := openTempStore(t)
	f := seed(t, store)

	tests := []struct {
		name   string
		search string
		want   int
	}{
		{name: "lowercase", search: "urząd", want: 2},
		{name: "uppercase unicode", search: "URZĄD", want: 2},
		{name: "quoted phrase", search: `"Urząd Miasta"`, want: 2},
		{name: "two terms anded", search: "urząd sprawa", want: 1},
		{name: "no match", search: "prokuratura", want: 0},
		{name: "like wildcards are literal", search: "%", want: 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			page, err := store.ListLetters(context.Background(), storage.ListQuery{
				Search:       tt.search,
				SearchFields: []string{"name", "comment", "identifier", "comment", "institution__name"},
			})
			if err != nil {
				t.Fatalf("list letters: %v", err)
			}
			if page.Total != tt.want {
				t.Fatalf("expected %d letters, got %d", tt.want, page.Total)
			}
			for _, l := range page.Items {
				if l.InstitutionID != f.cityHall.ID && tt.want > 0 {
					t.Fatalf("unexpected institution %q", l.InstitutionName)
				}
			}
		})
	}
}

func TestListLettersLookupsAndLabels(t *testing.T) {
	t.Parallel()

	store := openTempStore(t)
	f := seed(t, store)

	page, err := store.ListLetters(context.Background(), storage.ListQuery{
		Lookups: []storage.Lookup{
			{Path: "case__id", Value: fmt.Sprint(f.smog.ID)},
			{Path: "direction", Value: string(cases.DirectionOut)},
		},
	})
	if err != nil {
		t.Fatalf("list letters: %v", err)
	}
	if page.Total != 1 {
		t.Fatalf("expected one outgoing smog letter, got %d", page.Total)
	}
	l := page.Items[0]
	if l.CaseName != "Smog" || l.InstitutionName == "" || l.ChannelName != "e-mail" {
		t.Fatalf("expected labels to be loaded, got %+v", l)
	}

	if _, err := store.ListLetters(context.Background(), storage.ListQuery{
		Lookups: []storage.Lookup{{Path: "case__id", Value: "abc"}},
	}); !eoderrors.IsCode(err, eoderrors.CodeInvalidLookup) {
		t.Fatalf("expected invalid lookup for non-numeric id, got %v", err)
	}
	if _, err := store.ListLetters(context.Background(), storage.ListQuery{
		Lookups: []storage.Lookup{{Path: "case__secret", Value: "1"}},
	}); !eoderrors.IsCode(err, eoderrors.CodeInvalidLookup) {
		t.Fatalf("expected invalid lookup for unknown field, got %v", err)
	}
}

func TestListOrderingFilterAndPaging(t *testing.T) {
	t.Parallel()

	store := openTempStore(t)
	ctx := context.Background()
	seed(t, store)

	page, err := store.ListCases(ctx, storage.ListQuery{OrderBy: []storage.Order{{Field: "name"}}, Limit: 2})
	if err != nil {
		t.Fatalf("list cases: %v", err)
	}
	if page.Total != 3 || len(page.Items) != 2 || page.Items[0].Name != "Empty" || page.Items[1].Name != "Smog" {
		t.Fatalf("unexpected first page %+v (total %d)", page.Items, page.Total)
	}

	page, err = store.ListCases(ctx, storage.ListQuery{OrderBy: []storage.Order{{Field: "name"}}, Limit: 2, Offset: 2})
	if err != nil {
		t.Fatalf("list cases page 2: %v", err)
	}
	if len(page.Items) != 1 || page.Items[0].Name != "Water" {
		t.Fatalf("unexpected second page %+v", page.Items)
	}

	page, err = store.ListCases(ctx, storage.ListQuery{Filter: `name:"mog"`})
	if err != nil {
		t.Fatalf("filter cases: %v", err)
	}
	if page.Total != 1 || page.Items[0].Name != "Smog" {
		t.Fatalf("unexpected filter result %+v", page.Items)
	}

	if _, err := store.ListCases(ctx, storage.ListQuery{OrderBy: []storage.Order{{Field: "secret"}}}); !eoderrors.IsCode(err, eoderrors.CodeInvalidOrderBy) {
		t.Fatalf("expected invalid order by, got %v", err)
	}
	if _, err := store.ListCases(ctx, storage.ListQuery{Filter: "nope = 1"}); !eoderrors.IsCode(err, eoderrors.CodeInvalidFilter) {
		t.Fatalf("expected invalid filter, got %v", err)
	}

	page, err = store.ListCases(ctx, storage.ListQuery{
		Annotations: []string{storage.AnnotateLetterCount},
		OrderBy:     []storage.Order{{Field: storage.AnnotateLetterCount, Desc: true}},
	})
	if err != nil {
		t.Fatalf("order by letter count: %v", err)
	}
	if page.Items[0].Name != "Smog" {
		t.Fatalf("expected case with most letters first, got %s", page.Items[0].Name)
	}
}

func TestSaveCaseKeepsRelationOrderAndRejectsUnknownIDs(t *testing.T) {
	t.Parallel()

	store := openTempStore(t)
	ctx := context.Background()
	f := seed(t, store)

	c, err := store.GetCase(ctx, f.smog.ID)
	if err != nil {
		t.Fatalf("get case: %v", err)
	}
	if got := tagNames(c.Tags); got != "urgent,air" {
		t.Fatalf("expected link order urgent,air, got %s", got)
	}
	firstCreated := c.Created

	c.Tags = []cases.Tag{{ID: f.air.ID}}
	c.Name = "Smog 2"
	if err := store.SaveCase(ctx, &c); err != nil {
		t.Fatalf("save case: %v", err)
	}
	reloaded, err := store.GetCase(ctx, c.ID)
	if err != nil {
		t.Fatalf("reload case: %v", err)
	}
	if reloaded.Name != "Smog 2" || tagNames(reloaded.Tags) != "air" {
		t.Fatalf("unexpected reloaded case %+v", reloaded)
	}
	if !reloaded.Created.Equal(firstCreated) {
		t.Fatalf("created changed on update: %v -> %v", firstCreated, reloaded.Created)
	}

	c.Tags = []cases.Tag{{ID: 9999}}
	err = store.SaveCase(ctx, &c)
	var verr *cases.ValidationError
	if !errors.As(err, &verr) || len(verr.Fields["tags"]) == 0 {
		t.Fatalf("expected tags validation error, got %v", err)
	}
	if !errors.Is(err, cases.ErrValidation) {
		t.Fatalf("expected errors.Is validation, got %v", err)
	}
}

func TestSaveCaseWithLettersIsAtomic(t *testing.T) {
	t.Parallel()

	store := openTempStore(t)
	ctx := context.Background()
	f := seed(t, store)

	existing, err := store.ListCaseLetters(ctx, f.water.ID)
	if err != nil {
		t.Fatalf("list case letters: %v", err)
	}
	c, err := store.GetCase(ctx, f.water.ID)
	if err != nil {
		t.Fatalf("get case: %v", err)
	}

	err = store.SaveCaseWithLetters(ctx, &c, storage.InlineLetters{
		Delete: []int64{existing[0].ID},
		Save: []cases.Letter{
			{Name: "Reply", Direction: cases.DirectionIn, InstitutionID: 9999, Ordering: 1},
		},
	})
	var verr *cases.ValidationError
	if !errors.As(err, &verr) {
		t.Fatalf("expected validation error for unknown institution, got %v", err)
	}
	if got := verr.Fields[storage.InlineLetterPrefix(0)+"institution"]; len(got) != 1 || got[0] != "error.invalid_related" {
		t.Fatalf("expected inline institution error, got %v", verr.Fields)
	}
	after, err := store.ListCaseLetters(ctx, f.water.ID)
	if err != nil {
		t.Fatalf("list case letters: %v", err)
	}
	if len(after) != 1 {
		t.Fatalf("expected delete to be rolled back, got %d letters", len(after))
	}

	err = store.SaveCaseWithLetters(ctx, &c, storage.InlineLetters{
		Save: []cases.Letter{
			{Name: "Second", Direction: cases.DirectionIn, InstitutionID: f.cityHall.ID, Ordering: 0},
			{ID: existing[0].ID, Name: existing[0].Name, Direction: existing[0].Direction, InstitutionID: existing[0].InstitutionID, Ordering: 1},
		},
	})
	if err != nil {
		t.Fatalf("save case with letters: %v", err)
	}
	after, err = store.ListCaseLetters(ctx, f.water.ID)
	if err != nil {
		t.Fatalf("list case letters: %v", err)
	}
	if len(after) != 2 || after[0].Name != "Second" || after[1].ID != existing[0].ID {
		t.Fatalf("expected letters sorted by ordering, got %+v", after)
	}
}

func TestDeleteSemantics(t *testing.T) {
	t.Parallel()

	store := openTempStore(t)
	ctx := context.Background()
	f := seed(t, store)

	if err := store.DeleteInstitution(ctx, f.cityHall.ID); !errors.Is(err, storage.ErrProtected) {
		t.Fatalf("expected protected institution, got %v", err)
	}
	if err := store.DeleteCase(ctx, f.smog.ID); err != nil {
		t.Fatalf("delete case: %v", err)
	}
	page, err := store.ListLetters(ctx, storage.ListQuery{Lookups: []storage.Lookup{{Path: "case_id", Value: fmt.Sprint(f.smog.ID)}}})
	if err != nil {
		t.Fatalf("list letters: %v", err)
	}
	if page.Total != 0 {
		t.Fatalf("expected letters to cascade, got %d", page.Total)
	}
	if err := store.DeleteCase(ctx, f.smog.ID); !errors.Is(err, storage.ErrNotFound) {
		t.Fatalf("expected not found on second delete, got %v", err)
	}
	if err := store.DeleteChannel(ctx, f.email.ID); err != nil {
		t.Fatalf("delete channel: %v", err)
	}
	letters, err := store.ListCaseLetters(ctx, f.water.ID)
	if err != nil {
		t.Fatalf("list letters: %v", err)
	}
	for _, l := range letters {
		if l.ChannelID != 0 {
			t.Fatalf("expected channel to be cleared, got %d", l.ChannelID)
		}
	}
}

func TestInTxDryRunRollsBack(t *testing.T) {
	t.Parallel()

	store := openTempStore(t)
	ctx := context.Background()

	err := store.InTx(ctx, true, func(tx storage.Store) error {
		tag := cases.Tag{Name: "draft"}
		if err := tx.SaveTag(ctx, &tag); err != nil {
			return err
		}
		if _, err := tx.GetTagByName(ctx, "draft"); err != nil {
			return fmt.Errorf("expected tag visible inside tx: %w", err)
		}
		return nil
	})
	if err != nil {
		t.Fatalf("dry run: %v", err)
	}
	if _, err := store.GetTagByName(ctx, "draft"); !errors.Is(err, storage.ErrNotFound) {
		t.Fatalf("expected dry run to roll back, got %v", err)
	}

	err = store.InTx(ctx, false, func(tx storage.Store) error {
		tag := cases.Tag{Name: "kept"}
		return tx.SaveTag(ctx, &tag)
	})
	if err != nil {
		t.Fatalf("commit: %v", err)
	}
	if _, err := store.GetTagByName(ctx, "kept"); err != nil {
		t.Fatalf("expected committed tag: %v", err)
	}
}

func TestSaveTagRejectsDuplicateName(t *testing.T) {
	t.Parallel()

	store := openTempStore(t)
	ctx := context.Background()
	seed(t, store)

	dup := cases.Tag{Name: "urgent"}
	err := store.SaveTag(ctx, &dup)
	var verr *cases.ValidationError
	if !errors.As(err, &verr) || verr.Fields["name"][0] != "error.duplicate" {
		t.Fatalf("expected duplicate name error, got %v", err)
	}
}

func TestSaveWithExplicitIDInserts(t *testing.T) {
	t.Parallel()

	store := openTempStore(t)
	ctx := context.Background()

	tag := cases.Tag{ID: 42, Name: "imported"}
	if err := store.SaveTag(ctx, &tag); err != nil {
		t.Fatalf("save tag: %v", err)
	}
	got, err := store.GetTag(ctx, 42)
	if err != nil {
		t.Fatalf("get tag: %v", err)
	}
	if got.Name != "imported" {
		t.Fatalf("unexpected tag %+v", got)
	}
}

func TestChoicesLabelsAndSearch(t *testing.T) {
	t.Parallel()

	store := openTempStore(t)
	ctx := context.Background()
	f := seed(t, store)

	all, err := store.Choices(ctx, cases.ModelTag)
	if err != nil {
		t.Fatalf("choices: %v", err)
	}
	if len(all) != 3 || all[0].Label != "air" {
		t.Fatalf("expected tags sorted by name, got %+v", all)
	}

	labels, err := store.Labels(ctx, cases.ModelTag, []int64{f.air.ID, 9999})
	if err != nil {
		t.Fatalf("labels: %v", err)
	}
	if len(labels) != 1 || labels[f.air.ID] != "air" {
		t.Fatalf("unexpected labels %v", labels)
	}

	found, err := store.SearchChoices(ctx, cases.ModelInstitution, "MIASTA", 10)
	if err != nil {
		t.Fatalf("search choices: %v", err)
	}
	if len(found) != 1 || found[0].ID != f.cityHall.ID {
		t.Fatalf("unexpected search result %+v", found)
	}
}

func TestSearchTerms(t *testing.T) {
	t.Parallel()

	tests := []struct {
		in   string
		want []string
	}{
		{in: "", want: nil},
		{in: "  a  b ", want: []string{"a", "b"}},
		{in: `"Urząd Miasta" łódź`, want: []string{"Urząd Miasta", "łódź"}},
		{in: `'single quoted' x`, want: []string{"single quoted", "x"}},
	}
	for _, tt := range tests {
		got := searchTerms(tt.in)
		if fmt.Sprint(got) != fmt.Sprint(tt.want) {
			t.Fatalf("searchTerms(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

type fixture struct {
	smog, water, empty  cases.Case
	urgent, air, public cases.Tag
	cityHall, ministry  cases.Institution
	email               cases.Channel
	person              cases.Person
}

func seed(t *testing.T, store *Store) fixture {
	t.Helper()
	ctx := context.Background()
	var f fixture

	f.urgent = cases.Tag{Name: "urgent"}
	f.air = cases.Tag{Name: "air"}
	f.public = cases.Tag{Name: "public"}
	for _, tag := range []*cases.Tag{&f.urgent, &f.air, &f.public} {
		if err := store.SaveTag(ctx, tag); err != nil {
			t.Fatalf("save tag: %v", err)
		}
	}
	f.person = cases.Person{Name: "Anna", Email: "anna@example.org"}
	if err := store.SavePerson(ctx, &f.person); err != nil {
		t.Fatalf("save person: %v", err)
	}
	f.email = cases.Channel{Name: "e-mail"}
	if err := store.SaveChannel(ctx, &f.email); err != nil {
		t.Fatalf("save channel: %v", err)
	}

	f.cityHall = cases.Institution{Name: "Urząd Miasta Łodzi", Tags: []cases.Tag{f.public}}
	f.ministry = cases.Institution{Name: "Ministerstwo Klimatu"}
	for _, inst := range []*cases.Institution{&f.cityHall, &f.ministry} {
		if err := store.SaveInstitution(ctx, inst); err != nil {
			t.Fatalf("save institution: %v", err)
		}
	}

	f.smog = cases.Case{Name: "Smog", ResponsiblePeople: []cases.Person{f.person}, Tags: []cases.Tag{f.urgent, f.air}}
	f.water = cases.Case{Name: "Water", Tags: []cases.Tag{f.air}}
	f.empty = cases.Case{Name: "Empty"}
	for _, c := range []*cases.Case{&f.smog, &f.water, &f.empty} {
		if err := store.SaveCase(ctx, c); err != nil {
			t.Fatalf("save case: %v", err)
		}
	}

	letters := []cases.Letter{
		{Name: "Wniosek", Direction: cases.DirectionOut, CaseID: f.smog.ID, InstitutionID: f.cityHall.ID, ChannelID: f.email.ID, Data: time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC)},
		{Name: "Odpowiedź", Comment: "sprawa zamknięta", Direction: cases.DirectionIn, CaseID: f.smog.ID, InstitutionID: f.cityHall.ID},
		{Name: "Pismo", Direction: cases.DirectionOut, CaseID: f.water.ID, InstitutionID: f.ministry.ID, ChannelID: f.email.ID},
	}
	for i := range letters {
		if err := store.SaveLetter(ctx, &letters[i]); err != nil {
			t.Fatalf("save letter: %v", err)
		}
	}
	return f
}

func tagNames(tags []cases.Tag) string {
	out := ""
	for i, tag := range tags {
		if i > 0 {
			out += ","
		}
		out += tag.Name
	}
	return out
}

func openTempStore(t *testing.T) *Store {
	t.Helper()

	path := filepath.Join(t.TempDir(), "small_eod.db")
	store, err := Open(path)
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	t.Cleanup(func() {
		if err := store.Close(); err != nil {
			t.Fatalf("close store: %v", err)
		}
	})
	return store
}

func TestTimestampsSortWithinOneSecond(t *testing.T) {
	t.Parallel()

	store := openTempStore(t)
	ctx := context.Background()
	base := time.Date(2021, 3, 4, 5, 6, 7, 0, time.UTC)
	stamps := map[string]time.Time{
		"earlier": base.Add(123400 * time.Microsecond),
		"later":   base.Add(123450 * time.Microsecond),
	}
	if formatTime(stamps["earlier"]) >= formatTime(stamps["later"]) {
		t.Fatalf("%s should sort before %s", formatTime(stamps["earlier"]), formatTime(stamps["later"]))
	}
	for name, ts := range stamps {
		inst := cases.Institution{Name: name}
		if err := store.SaveInstitution(ctx, &inst); err != nil {
			t.Fatalf("save institution: %v", err)
		}
		if _, err := store.sqlDB.ExecContext(ctx, "UPDATE institutions SET created = ? WHERE id = ?", formatTime(ts), inst.ID); err != nil {
			t.Fatalf("set created: %v", err)
		}
	}

	page, err := store.ListInstitutions(ctx, storage.ListQuery{OrderBy: []storage.Order{{Field: "created", Desc: true}}, Limit: storage.NoLimit})
	if err != nil {
		t.Fatalf("list institutions: %v", err)
	}
	if len(page.Items) != 2 || page.Items[0].Name != "later" || page.Items[1].Name != "earlier" {
		t.Fatalf("institutions = %+v", page.Items)
	}
	if !page.Items[1].Created.Equal(stamps["earlier"]) {
		t.Fatalf("created = %v, want %v", page.Items[1].Created, stamps["earlier"])
	}

	page, err = store.ListInstitutions(ctx, storage.ListQuery{Limit: storage.NoLimit, Filter: `created > timestamp("2021-03-04T05:06:07.1234Z")`})
	if err != nil {
		t.Fatalf("filter institutions: %v", err)
	}
	if len(page.Items) != 1 || page.Items[0].Name != "later" {
		t.Fatalf("filtered institutions = %+v", page.Items)
	}
}
