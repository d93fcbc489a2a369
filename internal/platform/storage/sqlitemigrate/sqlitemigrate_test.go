package sqlitemigrate

import (
	"context"
	"database/sql"
	"errors"
	"testing"
	"testing/fstest"

	_ "modernc.org/sqlite"
)

func TestApplyRecordsAppliedInOrder(t *testing.T) {
	db := openInMemoryDB(t)

	migrations := fstest.MapFS{
		"002_letters.sql": &fstest.MapFile{Data: []byte("-- +migrate Up\nCREATE TABLE letters(id INTEGER PRIMARY KEY, case_id INTEGER REFERENCES cases(id));\n-- +migrate Down\nDROP TABLE letters;")},
		"001_cases.sql":   &fstest.MapFile{Data: []byte("-- +migrate Up\nCREATE TABLE cases(id INTEGER PRIMARY KEY);")},
		"README.md":       &fstest.MapFile{Data: []byte("not a migration")},
	}

	applied, err := Apply(context.Background(), db, migrations, "")
	if err != nil {
		t.Fatalf("apply migrations: %v", err)
	}
	if len(applied) != 2 || applied[0] != "001_cases.sql" || applied[1] != "002_letters.sql" {
		t.Fatalf("unexpected applied list %v", applied)
	}
	if !tableExists(t, db, "letters") {
		t.Fatal("expected letters table")
	}
}

func TestApplySkipsAlreadyApplied(t *testing.T) {
	db := openInMemoryDB(t)
	migrations := fstest.MapFS{
		"001_cases.sql": &fstest.MapFile{Data: []byte("CREATE TABLE cases(id INTEGER PRIMARY KEY);")},
	}
	if _, err := Apply(context.Background(), db, migrations, ""); err != nil {
		t.Fatalf("apply initial migrations: %v", err)
	}
	applied, err := Apply(context.Background(), db, migrations, "")
	if err != nil {
		t.Fatalf("re-apply migrations should be idempotent: %v", err)
	}
	if len(applied) != 0 {
		t.Fatalf("expected nothing applied on replay, got %v", applied)
	}
}

func TestApplyDoesNotRecordFailedMigration(t *testing.T) {
	db := openInMemoryDB(t)
	bad := fstest.MapFS{
		"001_bad.sql": &fstest.MapFile{Data: []byte("-- +migrate Up\nCREAT table things(id INT);")},
	}
	if _, err := Apply(context.Background(), db, bad, ""); err == nil {
		t.Fatal("expected bad migration to fail")
	}
	var rows int
	if err := db.QueryRow("SELECT COUNT(*) FROM schema_migrations").Scan(&rows); err != nil {
		t.Fatalf("count migrations: %v", err)
	}
	if rows != 0 {
		t.Fatalf("expected failed migration to stay unrecorded, got %d rows", rows)
	}
}

func TestApplyReadsSubdirectory(t *testing.T) {
	db := openInMemoryDB(t)
	migrations := fstest.MapFS{
		"sql/001_tags.sql": &fstest.MapFile{Data: []byte("CREATE TABLE tags(id INTEGER PRIMARY KEY);")},
	}
	if _, err := Apply(context.Background(), db, migrations, "sql"); err != nil {
		t.Fatalf("apply: %v", err)
	}
	if !tableExists(t, db, "tags") {
		t.Fatal("expected tags table")
	}
}

func TestExtractUpMigration(t *testing.T) {
	tests := []struct {
		name    string
		content string
		want    string
	}{
		{name: "no markers", content: "CREATE TABLE a(id INT);", want: "CREATE TABLE a(id INT);"},
		{name: "up only", content: "-- +migrate Up\nCREATE TABLE a(id INT);", want: "\nCREATE TABLE a(id INT);"},
		{name: "up and down", content: "-- +migrate Up\nUP;\n-- +migrate Down\nDOWN;", want: "\nUP;\n"},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			if got := ExtractUpMigration(tc.content); got != tc.want {
				t.Fatalf("ExtractUpMigration = %q, want %q", got, tc.want)
			}
		})
	}
}

func TestIsAlreadyExistsError(t *testing.T) {
	if !IsAlreadyExistsError(errors.New("table cases already exists")) {
		t.Fatal("expected already exists match")
	}
	if IsAlreadyExistsError(errors.New("syntax error")) {
		t.Fatal("expected syntax error not to match")
	}
	if IsAlreadyExistsError(nil) {
		t.Fatal("expected nil not to match")
	}
}

func openInMemoryDB(t *testing.T) *sql.DB {
	t.Helper()
	db, err := sql.Open("sqlite", ":memory:")
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	db.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = db.Close() })
	return db
}

func tableExists(t *testing.T, db *sql.DB, name string) bool {
	t.Helper()
	var found string
	err := db.QueryRow("SELECT name FROM sqlite_master WHERE type = 'table' AND name = ?", name).Scan(&found)
	if errors.Is(err, sql.ErrNoRows) {
		return false
	}
	if err != nil {
		t.Fatalf("query sqlite_master: %v", err)
	}
	return found == name
}
