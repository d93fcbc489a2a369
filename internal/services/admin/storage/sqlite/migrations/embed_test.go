package migrations

import (
	"io/fs"
	"sort"
	"testing"
)

func TestMigrationsEmbedded(t *testing.T) {
	entries, err := fs.ReadDir(FS, ".")
	if err != nil {
		t.Fatalf("read migrations dir: %v", err)
	}

	files := make([]string, 0, len(entries))
	for _, entry := range entries {
		if !entry.IsDir() && entry.Name() != "embed.go" {
			files = append(files, entry.Name())
		}
	}
	sort.Strings(files)

	want := []string{"001_user_sessions.sql", "002_log_entries.sql"}
	if len(files) != len(want) {
		t.Fatalf("expected %d migrations, got %v", len(want), files)
	}
	for i := range want {
		if files[i] != want[i] {
			t.Fatalf("migration %d: expected %s, got %s", i, want[i], files[i])
		}
	}
}
