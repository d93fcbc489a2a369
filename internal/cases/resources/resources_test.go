package resources

import (
	"bytes"
	"context"
	"encoding/json"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/watchdogpolska/small-eod/internal/cases"
	"github.com/watchdogpolska/small-eod/internal/cases/storage"
	"github.com/watchdogpolska/small-eod/internal/cases/storage/sqlite"
	eoderrors "github.com/watchdogpolska/small-eod/internal/platform/errors"
	"gopkg.in/yaml.v3"
)

func TestParseFormat(t *testing.T) {
	t.Parallel()

	tests := []struct {
		in      string
		want    Format
		wantErr bool
	}{
		{in: "csv", want: FormatCSV},
		{in: " JSON ", want: FormatJSON},
		{in: "yml", want: FormatYAML},
		{in: "xlsx", wantErr: true},
	}
	for _, tt := range tests {
		got, err := ParseFormat(tt.in)
		if tt.wantErr {
			if !eoderrors.IsCode(err, eoderrors.CodeImportFormat) {
				t.Fatalf("ParseFormat(%q): expected format error, got %v", tt.in, err)
			}
			continue
		}
		if err != nil || got != tt.want {
			t.Fatalf("ParseFormat(%q) = %q, %v", tt.in, got, err)
		}
	}
}

func TestFilename(t *testing.T) {
	t.Parallel()

	got := Filename("Institution", time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC), FormatCSV)
	if got != "Institution-2024-03-01.csv" {
		t.Fatalf("unexpected filename %q", got)
	}
}

func TestExportInstitutionsAllFormats(t *testing.T) {
	t.Parallel()

	store := openTempStore(t)
	ctx := context.Background()
	seedInstitutions(t, store)

	var csvOut bytes.Buffer
	if err := Export(ctx, &csvOut, InstitutionResource{}, store, storage.ListQuery{OrderBy: []storage.Order{{Field: "id"}}}, FormatCSV); err != nil {
		t.Fatalf("export csv: %v", err)
	}
	lines := strings.Split(strings.TrimSpace(csvOut.String()), "\n")
	if lines[0] != "id,name,comment,tags,created,modified" {
		t.Fatalf("unexpected header %q", lines[0])
	}
	if len(lines) != 3 || !strings.HasPrefix(lines[1], `1,Urząd Miasta,,"public,city",`) {
		t.Fatalf("unexpected csv rows %q", lines)
	}

	var jsonOut bytes.Buffer
	if err := Export(ctx, &jsonOut, InstitutionResource{}, store, storage.ListQuery{}, FormatJSON); err != nil {
		t.Fatalf("export json: %v", err)
	}
	var records []map[string]any
	if err := json.Unmarshal(jsonOut.Bytes(), &records); err != nil {
		t.Fatalf("decode json: %v", err)
	}
	if len(records) != 2 {
		t.Fatalf("expected 2 json records, got %d", len(records))
	}
	if _, ok := records[0]["id"].(float64); !ok {
		t.Fatalf("expected numeric id, got %T", records[0]["id"])
	}

	var yamlOut bytes.Buffer
	if err := Export(ctx, &yamlOut, TagResource{}, store, storage.ListQuery{OrderBy: []storage.Order{{Field: "name"}}}, FormatYAML); err != nil {
		t.Fatalf("export yaml: %v", err)
	}
	var tags []map[string]any
	if err := yaml.Unmarshal(yamlOut.Bytes(), &tags); err != nil {
		t.Fatalf("decode yaml: %v", err)
	}
	if len(tags) != 2 || tags[0]["name"] != "city" {
		t.Fatalf("unexpected yaml tags %v", tags)
	}
}

func TestImportDryRunThenApply(t *testing.T) {
	t.Parallel()

	store := openTempStore(t)
	ctx := context.Background()
	seedInstitutions(t, store)

	input := "id,name,comment,tags\n" +
		"1,Urząd Miasta,,\"public,city\"\n" +
		"2,Sąd Rejonowy,nowy komentarz,courts\n" +
		",Prokuratura,,\"public, new-tag\"\n"
	d, err := Decode(strings.NewReader(input), FormatCSV)
	if err != nil {
		t.Fatalf("decode: %v", err)
	}

	preview, err := Import(ctx, InstitutionResource{}, store, d, true)
	if err != nil {
		t.Fatalf("dry run: %v", err)
	}
	want := []RowType{RowSkip, RowUpdate, RowNew}
	for i, row := range preview.Rows {
		if row.Type != want[i] {
			t.Fatalf("row %d: expected %s, got %s", i+1, want[i], row.Type)
		}
	}
	if preview.Committed {
		t.Fatal("dry run must not commit")
	}
	if _, err := store.GetTagByName(ctx, "new-tag"); err == nil {
		t.Fatal("dry run must not create tags")
	}

	applied, err := Import(ctx, InstitutionResource{}, store, d, false)
	if err != nil {
		t.Fatalf("import: %v", err)
	}
	if !applied.Committed || applied.Totals()[RowNew] != 1 || applied.Totals()[RowUpdate] != 1 {
		t.Fatalf("unexpected import result %+v", applied)
	}
	updated, err := store.GetInstitution(ctx, 2)
	if err != nil {
		t.Fatalf("get institution: %v", err)
	}
	if updated.Comment != "nowy komentarz" || joinTagNames(updated.Tags) != "courts" {
		t.Fatalf("unexpected updated institution %+v", updated)
	}
	created, err := store.GetInstitution(ctx, applied.Rows[2].ObjectID)
	if err != nil {
		t.Fatalf("get created institution: %v", err)
	}
	if joinTagNames(created.Tags) != "public,new-tag" {
		t.Fatalf("expected tags created by name, got %q", joinTagNames(created.Tags))
	}
}

func TestImportRowErrorsRollBackEverything(t *testing.T) {
	t.Parallel()

	store := openTempStore(t)
	ctx := context.Background()

	d, err := Decode(strings.NewReader(`[{"id": 10, "name": "fine"}, {"id": "x", "name": "bad id"}, {"name": ""}]`), FormatJSON)
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	result, err := Import(ctx, TagResource{}, store, d, false)
	if err != nil {
		t.Fatalf("import: %v", err)
	}
	if !result.HasErrors() || result.Committed {
		t.Fatalf("expected uncommitted result with errors, got %+v", result)
	}
	if result.Rows[1].Errors["id"][0] != "error.invalid_number" {
		t.Fatalf("unexpected row 2 errors %v", result.Rows[1].Errors)
	}
	if result.Rows[2].Errors["name"][0] != "error.field_required" {
		t.Fatalf("unexpected row 3 errors %v", result.Rows[2].Errors)
	}
	if _, err := store.GetTag(ctx, 10); err == nil {
		t.Fatal("expected valid row to be rolled back")
	}
}

func TestImportRequiresIDColumn(t *testing.T) {
	t.Parallel()

	store := openTempStore(t)
	d, err := Decode(strings.NewReader("- name: a\n"), FormatYAML)
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if _, err := Import(context.Background(), TagResource{}, store, d, true); !eoderrors.IsCode(err, eoderrors.CodeImportInvalidRow) {
		t.Fatalf("expected missing column error, got %v", err)
	}
}

func TestDecodeYAMLAndCSVBOM(t *testing.T) {
	t.Parallel()

	d, err := Decode(strings.NewReader("- id: 3\n  name: air\n"), FormatYAML)
	if err != nil {
		t.Fatalf("decode yaml: %v", err)
	}
	if d.Value(0, "id") != "3" || d.Value(0, "name") != "air" {
		t.Fatalf("unexpected yaml dataset %+v", d)
	}

	d, err = Decode(strings.NewReader("\xef\xbb\xbfid,name\n4,water\n"), FormatCSV)
	if err != nil {
		t.Fatalf("decode csv: %v", err)
	}
	if !d.Has("id") || d.Value(0, "name") != "water" {
		t.Fatalf("unexpected csv dataset %+v", d)
	}
}

func seedInstitutions(t *testing.T, store *sqlite.Store) {
	t.Helper()
	ctx := context.Background()
	public := cases.Tag{Name: "public"}
	city := cases.Tag{Name: "city"}
	for _, tag := range []*cases.Tag{&public, &city} {
		if err := store.SaveTag(ctx, tag); err != nil {
			t.Fatalf("save tag: %v", err)
		}
	}
	for _, inst := range []cases.Institution{
		{Name: "Urząd Miasta", Tags: []cases.Tag{public, city}},
		{Name: "Sąd Rejonowy"},
	} {
		if err := store.SaveInstitution(ctx, &inst); err != nil {
			t.Fatalf("save institution: %v", err)
		}
	}
}

func openTempStore(t *testing.T) *sqlite.Store {
	t.Helper()

	store, err := sqlite.Open(filepath.Join(t.TempDir(), "small_eod.db"))
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
