package eodctl

import (
	"bytes"
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/watchdogpolska/small-eod/internal/services/admin"
)

func runCLI(t *testing.T, dir string, args ...string) (string, error) {
	t.Helper()
	t.Setenv("EOD_DB_PATH", filepath.Join(dir, "eod.db"))
	t.Setenv("EOD_ADMIN_DB_PATH", filepath.Join(dir, "admin.db"))
	cmd, err := NewRootCmd()
	if err != nil {
		t.Fatalf("new root cmd: %v", err)
	}
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(&out)
	cmd.SetArgs(args)
	err = cmd.ExecuteContext(context.Background())
	return out.String(), err
}

func TestMigrateCreatesDatabases(t *testing.T) {
	dir := t.TempDir()
	out, err := runCLI(t, dir, "migrate")
	if err != nil {
		t.Fatalf("migrate: %v", err)
	}
	if !strings.Contains(out, "migrations applied") {
		t.Fatalf("output = %q", out)
	}
	for _, name := range []string{"eod.db", "admin.db"} {
		if _, err := os.Stat(filepath.Join(dir, name)); err != nil {
			t.Fatalf("expected %s: %v", name, err)
		}
	}
}

func TestImportThenExportTags(t *testing.T) {
	dir := t.TempDir()
	file := filepath.Join(dir, "tags.csv")
	if err := os.WriteFile(file, []byte("id,name\n,urgent\n,press\n"), 0o644); err != nil {
		t.Fatal(err)
	}

	out, err := runCLI(t, dir, "import", "tag", file, "--dry-run")
	if err != nil {
		t.Fatalf("dry run: %v", err)
	}
	if !strings.Contains(out, "new=2") || !strings.Contains(out, "not committed") {
		t.Fatalf("dry run output = %q", out)
	}

	out, err = runCLI(t, dir, "export", "tag", "--format", "json")
	if err != nil {
		t.Fatalf("export after dry run: %v", err)
	}
	if strings.Contains(out, "urgent") {
		t.Fatalf("dry run saved rows: %q", out)
	}

	if _, err := runCLI(t, dir, "import", "tag", file); err != nil {
		t.Fatalf("import: %v", err)
	}
	out, err = runCLI(t, dir, "export", "tag", "--format", "json")
	if err != nil {
		t.Fatalf("export: %v", err)
	}
	if !strings.Contains(out, "urgent") || !strings.Contains(out, "press") {
		t.Fatalf("export output = %q", out)
	}
}

func TestExportWritesFile(t *testing.T) {
	dir := t.TempDir()
	target := filepath.Join(dir, "institutions.yaml")
	if _, err := runCLI(t, dir, "export", "institution", "--format", "yaml", "--out", target); err != nil {
		t.Fatalf("export: %v", err)
	}
	if _, err := os.Stat(target); err != nil {
		t.Fatalf("expected export file: %v", err)
	}
}

func TestImportRejectsUnknownModel(t *testing.T) {
	dir := t.TempDir()
	file := filepath.Join(dir, "cases.csv")
	if err := os.WriteFile(file, []byte("id,name\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	if _, err := runCLI(t, dir, "import", "case", file); err == nil {
		t.Fatal("expected error for model without resource")
	}
}

func TestImportRejectsUnknownFormat(t *testing.T) {
	dir := t.TempDir()
	file := filepath.Join(dir, "tags.xlsx")
	if err := os.WriteFile(file, []byte("x"), 0o644); err != nil {
		t.Fatal(err)
	}
	if _, err := runCLI(t, dir, "import", "tag", file); err == nil {
		t.Fatal("expected error for unsupported extension")
	}
}

func TestStaffCreate(t *testing.T) {
	dir := t.TempDir()
	if _, err := runCLI(t, dir, "staff", "create", "--username", "ola", "--password", "pw", "--perm", "view_case", "--perm", "change_case"); err != nil {
		t.Fatalf("staff create: %v", err)
	}

	store, err := admin.OpenAdminStore(filepath.Join(dir, "admin.db"))
	if err != nil {
		t.Fatalf("open admin store: %v", err)
	}
	defer store.Close()
	staff, err := store.GetStaff(context.Background(), "ola")
	if err != nil {
		t.Fatalf("get staff: %v", err)
	}
	if !staff.Active || staff.Superuser {
		t.Fatalf("staff flags = active %v superuser %v", staff.Active, staff.Superuser)
	}
	if !admin.CheckPassword(staff.PasswordHash, "pw") {
		t.Fatal("expected stored hash to match password")
	}
	if len(staff.Permissions) != 2 {
		t.Fatalf("permissions = %v", staff.Permissions)
	}
}

func TestStaffCreateRequiresUsername(t *testing.T) {
	if _, err := runCLI(t, t.TempDir(), "staff", "create", "--password", "pw"); err == nil {
		t.Fatal("expected error without username")
	}
}

func TestI18nStatusReportsFullCoverage(t *testing.T) {
	out, err := runCLI(t, t.TempDir(), "i18n-status", "--json")
	if err != nil {
		t.Fatalf("i18n-status: %v", err)
	}
	var rep i18nReport
	if err := json.Unmarshal([]byte(out), &rep); err != nil {
		t.Fatalf("decode report: %v\n%s", err, out)
	}
	if rep.BaseLocale != "en-US" || len(rep.Locales) != 2 {
		t.Fatalf("report = %+v", rep)
	}
	for _, locale := range rep.Locales {
		if locale.Missing != 0 || locale.Completion != 100 {
			t.Fatalf("%s missing %v", locale.Locale, locale.MissingKeys)
		}
	}

	out, err = runCLI(t, t.TempDir(), "i18n-status")
	if err != nil {
		t.Fatalf("i18n-status table: %v", err)
	}
	if !strings.Contains(out, "pl-PL") || strings.Contains(out, "missing ") {
		t.Fatalf("table output = %q", out)
	}
}
