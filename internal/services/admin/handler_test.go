package admin

import (
	"bytes"
	"context"
	"encoding/json"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"net/url"
	"path/filepath"
	"strconv"
	"strings"
	"testing"

	"github.com/watchdogpolska/small-eod/internal/cases"
	"github.com/watchdogpolska/small-eod/internal/cases/storage"
	casesqlite "github.com/watchdogpolska/small-eod/internal/cases/storage/sqlite"
	adminstorage "github.com/watchdogpolska/small-eod/internal/services/admin/storage"
	adminsqlite "github.com/watchdogpolska/small-eod/internal/services/admin/storage/sqlite"
	"golang.org/x/net/html"
)

const testOrigin = "http://example.com"

type testSite struct {
	handler http.Handler
	store   *casesqlite.Store
	logs    *adminsqlite.Store
}

// newTestSite serves the default site over fresh stores. A non-empty secret
// turns staff login on.
func newTestSite(t *testing.T, secret string) *testSite {
	t.Helper()
	dir := t.TempDir()
	store, err := casesqlite.Open(filepath.Join(dir, "eod.db"))
	if err != nil {
		t.Fatalf("open case store: %v", err)
	}
	t.Cleanup(func() { _ = store.Close() })
	logs, err := adminsqlite.Open(filepath.Join(dir, "admin.db"))
	if err != nil {
		t.Fatalf("open admin store: %v", err)
	}
	t.Cleanup(func() { _ = logs.Close() })

	site, err := NewDefaultSite()
	if err != nil {
		t.Fatalf("default site: %v", err)
	}
	auth, err := NewAuthenticator(logs, AuthConfig{Secret: secret})
	if err != nil {
		t.Fatalf("authenticator: %v", err)
	}
	return &testSite{
		handler: NewHandler(HandlerConfig{Site: site, Store: store, Logs: logs, Auth: auth}),
		store:   store,
		logs:    logs,
	}
}

func (s *testSite) get(t *testing.T, target string, cookies ...*http.Cookie) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(http.MethodGet, target, nil)
	for _, c := range cookies {
		req.AddCookie(c)
	}
	rec := httptest.NewRecorder()
	s.handler.ServeHTTP(rec, req)
	return rec
}

func (s *testSite) post(t *testing.T, target string, form url.Values, cookies ...*http.Cookie) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(http.MethodPost, target, strings.NewReader(form.Encode()))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	req.Header.Set("Origin", testOrigin)
	for _, c := range cookies {
		req.AddCookie(c)
	}
	rec := httptest.NewRecorder()
	s.handler.ServeHTTP(rec, req)
	return rec
}

func (s *testSite) addTag(t *testing.T, name string) cases.Tag {
	t.Helper()
	tag := cases.Tag{Name: name}
	if err := s.store.SaveTag(context.Background(), &tag); err != nil {
		t.Fatalf("save tag %q: %v", name, err)
	}
	return tag
}

func casesListAll() storage.ListQuery {
	return storage.ListQuery{OrderBy: []storage.Order{{Field: "id"}}, Limit: storage.NoLimit}
}

func itoa(id int64) string {
	return strconv.FormatInt(id, 10)
}

func cookieNamed(rec *httptest.ResponseRecorder, name string) *http.Cookie {
	for _, c := range rec.Result().Cookies() {
		if c.Name == name {
			return c
		}
	}
	return nil
}

func assertStatus(t *testing.T, rec *httptest.ResponseRecorder, want int) {
	t.Helper()
	if rec.Code != want {
		t.Fatalf("status = %d, want %d; body: %s", rec.Code, want, rec.Body.String())
	}
}

func assertContains(t *testing.T, body string, wants ...string) {
	t.Helper()
	for _, want := range wants {
		if !strings.Contains(body, want) {
			t.Fatalf("body missing %q:\n%s", want, body)
		}
	}
}

// inputValue returns the value attribute of the first input named name.
func inputValue(t *testing.T, body string, name string) (string, bool) {
	t.Helper()
	doc, err := html.Parse(strings.NewReader(body))
	if err != nil {
		t.Fatalf("parse html: %v", err)
	}
	var walk func(*html.Node) (string, bool)
	walk = func(n *html.Node) (string, bool) {
		if n.Type == html.ElementNode && n.Data == "input" {
			var inputName, value string
			for _, attr := range n.Attr {
				switch attr.Key {
				case "name":
					inputName = attr.Val
				case "value":
					value = attr.Val
				}
			}
			if inputName == name {
				return value, true
			}
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			if v, ok := walk(c); ok {
				return v, true
			}
		}
		return "", false
	}
	return walk(doc)
}

func TestIndexListsRegisteredModels(t *testing.T) {
	s := newTestSite(t, "")
	rec := s.get(t, "/")
	assertStatus(t, rec, http.StatusOK)
	assertContains(t, rec.Body.String(), `href="/cases/tag"`, `href="/cases/letter"`, "Site administration")

	rec = s.get(t, "/cases")
	assertStatus(t, rec, http.StatusOK)
	assertContains(t, rec.Body.String(), "Cases")
}

func TestUnknownPathsAreNotFound(t *testing.T) {
	s := newTestSite(t, "")
	for _, path := range []string{"/other", "/cases/nothing", "/cases/tag/abc/change", "/cases/tag/1/unknown", "/cases/tag/999/change"} {
		rec := s.get(t, path)
		assertStatus(t, rec, http.StatusNotFound)
	}
}

func TestObjectIDRedirectsToChange(t *testing.T) {
	s := newTestSite(t, "")
	rec := s.get(t, "/cases/tag/4")
	assertStatus(t, rec, http.StatusFound)
	if got := rec.Header().Get("Location"); got != "/cases/tag/4/change" {
		t.Fatalf("location = %q", got)
	}
}

func TestLanguageSelectionPersists(t *testing.T) {
	s := newTestSite(t, "")
	rec := s.get(t, "/?lang=pl")
	assertStatus(t, rec, http.StatusOK)
	assertContains(t, rec.Body.String(), "Administracja stroną", `lang="pl"`)
	cookie := cookieNamed(rec, "eod_lang")
	if cookie == nil || cookie.Value != "pl" {
		t.Fatalf("language cookie = %+v", cookie)
	}

	rec = s.get(t, "/cases/tag", cookie)
	assertContains(t, rec.Body.String(), "Wybierz tag do zmiany")
}

func TestAddTagThenFlash(t *testing.T) {
	s := newTestSite(t, "")

	rec := s.get(t, "/cases/tag/add")
	assertStatus(t, rec, http.StatusOK)
	if _, ok := inputValue(t, rec.Body.String(), "name"); !ok {
		t.Fatal("expected name input on add form")
	}

	rec = s.post(t, "/cases/tag/add", url.Values{"name": {"urgent"}, "_save": {"1"}})
	assertStatus(t, rec, http.StatusSeeOther)
	if got := rec.Header().Get("Location"); got != "/cases/tag" {
		t.Fatalf("location = %q", got)
	}
	flash := cookieNamed(rec, flashCookieName)
	if flash == nil {
		t.Fatal("expected flash cookie")
	}

	page, err := s.store.ListTags(context.Background(), casesListAll())
	if err != nil {
		t.Fatalf("list tags: %v", err)
	}
	if page.Total != 1 || page.Items[0].Name != "urgent" {
		t.Fatalf("tags = %+v", page.Items)
	}

	rec = s.get(t, "/cases/tag", flash)
	assertStatus(t, rec, http.StatusOK)
	assertContains(t, rec.Body.String(), `class="messagelist"`, "was added successfully", "urgent")
}

func TestAddTagSaveAndContinue(t *testing.T) {
	s := newTestSite(t, "")
	rec := s.post(t, "/cases/tag/add", url.Values{"name": {"air"}, "_continue": {"1"}})
	assertStatus(t, rec, http.StatusSeeOther)
	if got := rec.Header().Get("Location"); !strings.HasSuffix(got, "/change") {
		t.Fatalf("location = %q", got)
	}
	rec = s.post(t, "/cases/tag/add", url.Values{"name": {"public"}, "_addanother": {"1"}})
	if got := rec.Header().Get("Location"); got != "/cases/tag/add" {
		t.Fatalf("location = %q", got)
	}
}

func TestAddTagValidationErrors(t *testing.T) {
	s := newTestSite(t, "")
	rec := s.post(t, "/cases/tag/add", url.Values{"name": {"  "}, "_save": {"1"}})
	assertStatus(t, rec, http.StatusOK)
	assertContains(t, rec.Body.String(), "Please correct the errors below.", "This field is required.")

	s.addTag(t, "urgent")
	rec = s.post(t, "/cases/tag/add", url.Values{"name": {"urgent"}, "_save": {"1"}})
	assertStatus(t, rec, http.StatusOK)
	assertContains(t, rec.Body.String(), "An object with this value already exists.")
}

func TestChangeTagLogsAction(t *testing.T) {
	s := newTestSite(t, "secret")
	cookie := loginAs(t, s, adminstorage.Staff{Username: "ola", Superuser: true, Active: true})
	tag := s.addTag(t, "old")

	path := "/cases/tag/" + itoa(tag.ID) + "/change"
	rec := s.get(t, path, cookie)
	assertStatus(t, rec, http.StatusOK)
	if v, _ := inputValue(t, rec.Body.String(), "name"); v != "old" {
		t.Fatalf("name value = %q", v)
	}

	rec = s.post(t, path, url.Values{"name": {"new"}, "_save": {"1"}}, cookie)
	assertStatus(t, rec, http.StatusSeeOther)

	entries, err := s.logs.ListLogEntries(context.Background(), "ola", 10)
	if err != nil {
		t.Fatalf("list log entries: %v", err)
	}
	if len(entries) != 1 || entries[0].Action != adminstorage.LogChange || entries[0].ObjectRepr != "new" {
		t.Fatalf("log entries = %+v", entries)
	}

	rec = s.get(t, "/", cookie)
	assertContains(t, rec.Body.String(), "Recent actions", "new")
}

func TestChangeListReportsBadParams(t *testing.T) {
	s := newTestSite(t, "")
	s.addTag(t, "urgent")

	tests := []struct {
		query string
		want  string
	}{
		{query: "bogus=1", want: "Unknown lookup parameters were ignored."},
		{query: "order_by=nope", want: "Unknown ordering was ignored."},
		{query: "p=-1", want: "That page does not exist."},
		{query: "filter=" + url.QueryEscape("nope = 1"), want: "The filter could not be applied."},
	}
	for _, tt := range tests {
		rec := s.get(t, "/cases/tag?"+tt.query)
		assertStatus(t, rec, http.StatusOK)
		assertContains(t, rec.Body.String(), tt.want, "urgent")
	}
}

func TestChangeListSearchAndFilter(t *testing.T) {
	s := newTestSite(t, "")
	ctx := context.Background()
	for _, name := range []string{"Urząd Miasta", "Sąd Rejonowy"} {
		inst := cases.Institution{Name: name}
		if err := s.store.SaveInstitution(ctx, &inst); err != nil {
			t.Fatalf("save institution: %v", err)
		}
	}

	rec := s.get(t, "/cases/institution?q=Miasta")
	assertStatus(t, rec, http.StatusOK)
	body := rec.Body.String()
	assertContains(t, body, "Urząd Miasta")
	if strings.Contains(body, "Sąd Rejonowy") {
		t.Fatal("search should exclude non-matching institution")
	}

	rec = s.get(t, "/cases/institution?filter="+url.QueryEscape(`name = "Sąd Rejonowy"`))
	body = rec.Body.String()
	assertContains(t, body, "Sąd Rejonowy")
	if strings.Contains(body, "Urząd Miasta") {
		t.Fatal("filter should exclude non-matching institution")
	}
}

func TestDeleteTagConfirmation(t *testing.T) {
	s := newTestSite(t, "")
	tag := s.addTag(t, "urgent")
	path := "/cases/tag/" + itoa(tag.ID) + "/delete"

	rec := s.get(t, path)
	assertStatus(t, rec, http.StatusOK)
	assertContains(t, rec.Body.String(), "Are you sure?", "urgent")

	rec = s.post(t, path, url.Values{"post": {"yes"}})
	assertStatus(t, rec, http.StatusSeeOther)
	if _, err := s.store.GetTag(context.Background(), tag.ID); err == nil {
		t.Fatal("expected tag to be deleted")
	}
}

func TestBulkDeleteSelected(t *testing.T) {
	s := newTestSite(t, "")
	a := s.addTag(t, "a")
	b := s.addTag(t, "b")
	keep := s.addTag(t, "keep")

	form := url.Values{
		"action":           {actionDeleteSelected},
		"_selected_action": {itoa(a.ID), itoa(b.ID)},
	}
	rec := s.post(t, "/cases/tag", form)
	assertStatus(t, rec, http.StatusOK)
	assertContains(t, rec.Body.String(), "Are you sure?")

	form.Set("post", "yes")
	rec = s.post(t, "/cases/tag", form)
	assertStatus(t, rec, http.StatusSeeOther)

	page, err := s.store.ListTags(context.Background(), casesListAll())
	if err != nil {
		t.Fatalf("list tags: %v", err)
	}
	if page.Total != 1 || page.Items[0].ID != keep.ID {
		t.Fatalf("remaining tags = %+v", page.Items)
	}
}

func TestBulkActionWithoutSelection(t *testing.T) {
	s := newTestSite(t, "")
	rec := s.post(t, "/cases/tag", url.Values{"action": {actionDeleteSelected}})
	assertStatus(t, rec, http.StatusSeeOther)
	if cookieNamed(rec, flashCookieName) == nil {
		t.Fatal("expected warning flash")
	}
}

func TestPostRequiresSameOrigin(t *testing.T) {
	s := newTestSite(t, "")
	req := httptest.NewRequest(http.MethodPost, "/cases/tag/add", strings.NewReader("name=x"))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	req.Header.Set("Origin", "http://evil.example")
	rec := httptest.NewRecorder()
	s.handler.ServeHTTP(rec, req)
	assertStatus(t, rec, http.StatusForbidden)
}

func TestExportTags(t *testing.T) {
	s := newTestSite(t, "")
	s.addTag(t, "urgent")
	s.addTag(t, "air")

	rec := s.get(t, "/cases/tag/export?format=csv&q=ignored")
	assertStatus(t, rec, http.StatusOK)
	if ct := rec.Header().Get("Content-Type"); !strings.HasPrefix(ct, "text/csv") {
		t.Fatalf("content type = %q", ct)
	}
	if cd := rec.Header().Get("Content-Disposition"); !strings.Contains(cd, `filename="Tag-`) || !strings.HasSuffix(cd, `.csv"`) {
		t.Fatalf("content disposition = %q", cd)
	}
	assertContains(t, rec.Body.String(), "id,name", "urgent", "air")

	rec = s.get(t, "/cases/tag/export?format=xml")
	assertStatus(t, rec, http.StatusBadRequest)

	rec = s.get(t, "/cases/case/export")
	assertStatus(t, rec, http.StatusNotFound)
}

func TestImportPreviewThenConfirm(t *testing.T) {
	s := newTestSite(t, "")
	existing := s.addTag(t, "old")

	var body bytes.Buffer
	mw := multipart.NewWriter(&body)
	_ = mw.WriteField("format", "csv")
	fw, err := mw.CreateFormFile("import_file", "tags.csv")
	if err != nil {
		t.Fatalf("create form file: %v", err)
	}
	_, _ = fw.Write([]byte("id,name\n" + itoa(existing.ID) + ",renamed\n,fresh\n"))
	if err := mw.Close(); err != nil {
		t.Fatalf("close multipart: %v", err)
	}
	req := httptest.NewRequest(http.MethodPost, "/cases/tag/import", &body)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	req.Header.Set("Origin", testOrigin)
	rec := httptest.NewRecorder()
	s.handler.ServeHTTP(rec, req)
	assertStatus(t, rec, http.StatusOK)
	assertContains(t, rec.Body.String(), "Confirm import", "fresh", "renamed")

	page, _ := s.store.ListTags(context.Background(), casesListAll())
	if page.Total != 1 {
		t.Fatalf("dry run wrote rows: %+v", page.Items)
	}

	payload, ok := inputValue(t, rec.Body.String(), "payload")
	if !ok || payload == "" {
		t.Fatal("expected payload in confirm form")
	}
	rec = s.post(t, "/cases/tag/import", url.Values{"format": {"csv"}, "payload": {payload}, "confirm": {"1"}})
	assertStatus(t, rec, http.StatusSeeOther)

	page, _ = s.store.ListTags(context.Background(), casesListAll())
	if page.Total != 2 {
		t.Fatalf("tags after import = %+v", page.Items)
	}
	got, err := s.store.GetTag(context.Background(), existing.ID)
	if err != nil || got.Name != "renamed" {
		t.Fatalf("updated tag = %+v, %v", got, err)
	}
}

func TestImportRejectsMissingFile(t *testing.T) {
	s := newTestSite(t, "")
	rec := s.post(t, "/cases/tag/import", url.Values{"format": {"csv"}})
	assertStatus(t, rec, http.StatusOK)
	assertContains(t, rec.Body.String(), "Choose a file to import.")

	rec = s.post(t, "/cases/tag/import", url.Values{"format": {"xls"}})
	assertContains(t, rec.Body.String(), "Unsupported format")
}

func TestLookupReturnsMatches(t *testing.T) {
	s := newTestSite(t, "")
	s.addTag(t, "urgent")
	s.addTag(t, "air")

	rec := s.get(t, "/cases/tag/lookup?term=urg")
	assertStatus(t, rec, http.StatusOK)
	var resp lookupResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(resp.Results) != 1 || resp.Results[0].Text != "urgent" {
		t.Fatalf("results = %+v", resp.Results)
	}
}

func TestAuthRedirectsAnonymous(t *testing.T) {
	s := newTestSite(t, "secret")
	rec := s.get(t, "/cases/tag?q=x")
	assertStatus(t, rec, http.StatusFound)
	if got := rec.Header().Get("Location"); got != "/login?next="+url.QueryEscape("/cases/tag?q=x") {
		t.Fatalf("location = %q", got)
	}

	rec = s.get(t, "/login")
	assertStatus(t, rec, http.StatusOK)
	rec = s.get(t, "/static/admin.css")
	if rec.Code == http.StatusFound {
		t.Fatal("static assets must not require login")
	}
}

func TestLoginFailures(t *testing.T) {
	s := newTestSite(t, "secret")
	putStaff(t, s, adminstorage.Staff{Username: "ola", Active: true}, "pass")
	putStaff(t, s, adminstorage.Staff{Username: "gone", Active: false}, "pass")

	rec := s.post(t, "/login", url.Values{"username": {"ola"}, "password": {"wrong"}})
	assertStatus(t, rec, http.StatusUnauthorized)
	assertContains(t, rec.Body.String(), "Please enter the correct username and password")

	rec = s.post(t, "/login", url.Values{"username": {"gone"}, "password": {"pass"}})
	assertStatus(t, rec, http.StatusForbidden)
	assertContains(t, rec.Body.String(), "This account is inactive.")
}

func TestPermissionsLimitViews(t *testing.T) {
	s := newTestSite(t, "secret")
	cookie := loginAs(t, s, adminstorage.Staff{Username: "viewer", Active: true, Permissions: []string{"view_tag"}})
	tag := s.addTag(t, "urgent")

	assertStatus(t, s.get(t, "/cases/tag", cookie), http.StatusOK)
	assertStatus(t, s.get(t, "/cases/tag/"+itoa(tag.ID)+"/change", cookie), http.StatusOK)
	assertStatus(t, s.get(t, "/cases/tag/add", cookie), http.StatusForbidden)
	assertStatus(t, s.get(t, "/cases/case", cookie), http.StatusForbidden)
	assertStatus(t, s.get(t, "/cases/tag/import", cookie), http.StatusForbidden)
	assertStatus(t, s.post(t, "/cases/tag/"+itoa(tag.ID)+"/change", url.Values{"name": {"x"}}, cookie), http.StatusForbidden)

	rec := s.get(t, "/", cookie)
	body := rec.Body.String()
	assertContains(t, body, `href="/cases/tag"`)
	if strings.Contains(body, `href="/cases/case"`) {
		t.Fatal("index should hide models without view permission")
	}
}

func TestLogoutRevokesSession(t *testing.T) {
	s := newTestSite(t, "secret")
	cookie := loginAs(t, s, adminstorage.Staff{Username: "ola", Superuser: true, Active: true})

	rec := s.post(t, "/logout", url.Values{}, cookie)
	assertStatus(t, rec, http.StatusSeeOther)

	rec = s.get(t, "/", cookie)
	assertStatus(t, rec, http.StatusFound)
}

func putStaff(t *testing.T, s *testSite, staff adminstorage.Staff, password string) {
	t.Helper()
	hash, err := HashPassword(password)
	if err != nil {
		t.Fatalf("hash: %v", err)
	}
	staff.PasswordHash = hash
	if err := s.logs.PutStaff(context.Background(), staff); err != nil {
		t.Fatalf("put staff: %v", err)
	}
}

// loginAs stores staff and returns the session cookie of a fresh login.
func loginAs(t *testing.T, s *testSite, staff adminstorage.Staff) *http.Cookie {
	t.Helper()
	putStaff(t, s, staff, "pass")
	rec := s.post(t, "/login", url.Values{"username": {staff.Username}, "password": {"pass"}, "next": {"/cases/tag"}})
	assertStatus(t, rec, http.StatusSeeOther)
	if got := rec.Header().Get("Location"); got != "/cases/tag" {
		t.Fatalf("login redirect = %q", got)
	}
	cookie := cookieNamed(rec, tokenCookieName)
	if cookie == nil || cookie.Value == "" {
		t.Fatal("expected session cookie")
	}
	return cookie
}

func TestCaseChangeFormSavesLetterInline(t *testing.T) {
	s := newTestSite(t, "")
	ctx := context.Background()
	tag := s.addTag(t, "urgent")
	inst := cases.Institution{Name: "Urząd Miasta"}
	if err := s.store.SaveInstitution(ctx, &inst); err != nil {
		t.Fatalf("save institution: %v", err)
	}

	rec := s.get(t, "/cases/case/add")
	assertStatus(t, rec, http.StatusOK)
	body := rec.Body.String()
	if total, ok := inputValue(t, body, "letter_set-TOTAL_FORMS"); !ok || total != "0" {
		t.Fatalf("TOTAL_FORMS = %q, %v; want 0", total, ok)
	}
	if _, ok := inputValue(t, body, "letter_set-0-name"); ok {
		t.Fatal("add page should render no blank letter forms")
	}
	assertContains(t, body, `type="checkbox" name="tags" value="`+itoa(tag.ID)+`"`)

	form := url.Values{
		"name":                     {"Smog w Łodzi"},
		"tags":                     {itoa(tag.ID)},
		"letter_set-TOTAL_FORMS":   {"2"},
		"letter_set-INITIAL_FORMS": {"0"},
		"letter_set-0-name":        {"Odpowiedź"},
		"letter_set-0-direction":   {string(cases.DirectionIn)},
		"letter_set-0-institution": {itoa(inst.ID)},
		"letter_set-0-ordering":    {"1"},
		"letter_set-1-name":        {"Wniosek"},
		"letter_set-1-direction":   {string(cases.DirectionOut)},
		"letter_set-1-institution": {itoa(inst.ID)},
		"letter_set-1-ordering":    {"0"},
		"_save":                    {"1"},
	}
	rec = s.post(t, "/cases/case/add", form)
	assertStatus(t, rec, http.StatusSeeOther)

	page, err := s.store.ListCases(ctx, casesListAll())
	if err != nil || len(page.Items) != 1 {
		t.Fatalf("cases = %+v, %v", page, err)
	}
	saved := page.Items[0]
	letters, err := s.store.ListCaseLetters(ctx, saved.ID)
	if err != nil {
		t.Fatalf("list case letters: %v", err)
	}
	if len(letters) != 2 || letters[0].Name != "Wniosek" || letters[1].Name != "Odpowiedź" {
		t.Fatalf("letters = %+v, want Wniosek then Odpowiedź", letters)
	}

	rec = s.get(t, "/cases/case")
	assertStatus(t, rec, http.StatusOK)
	assertContains(t, rec.Body.String(), "case__id__exact="+itoa(saved.ID), "View 2 letters")
}

func TestChangeListEmptyRelationChoice(t *testing.T) {
	s := newTestSite(t, "")
	ctx := context.Background()
	tag := s.addTag(t, "urgent")
	for _, c := range []cases.Case{
		{Name: "Smog w Krakowie", Tags: []cases.Tag{tag}},
		{Name: "Sprawa bez etykiet"},
	} {
		if err := s.store.SaveCase(ctx, &c); err != nil {
			t.Fatalf("save case: %v", err)
		}
	}

	rec := s.get(t, "/cases/case")
	assertContains(t, rec.Body.String(), "tags__isnull=True", "letter__institution__tags__isnull=True")

	rec = s.get(t, "/cases/case?tags__isnull=True")
	assertStatus(t, rec, http.StatusOK)
	body := rec.Body.String()
	assertContains(t, body, "Sprawa bez etykiet")
	if strings.Contains(body, "Smog w Krakowie") {
		t.Fatal("empty choice should exclude tagged case")
	}

	rec = s.get(t, "/cases/case?tags__isnull=maybe")
	body = rec.Body.String()
	assertContains(t, body, "Unknown lookup parameters were ignored.", "Smog w Krakowie", "Sprawa bez etykiet")
}

func TestBadLookupKeepsFilter(t *testing.T) {
	s := newTestSite(t, "")
	ctx := context.Background()
	for _, c := range []cases.Case{{Name: "Smog w Krakowie"}, {Name: "Woda w Gdańsku"}} {
		if err := s.store.SaveCase(ctx, &c); err != nil {
			t.Fatalf("save case: %v", err)
		}
	}

	rec := s.get(t, "/cases/case?tags__id__exact=abc&filter="+url.QueryEscape(`name = "Smog w Krakowie"`))
	assertStatus(t, rec, http.StatusOK)
	body := rec.Body.String()
	assertContains(t, body, "Unknown lookup parameters were ignored.", "Smog w Krakowie")
	if strings.Contains(body, "The filter could not be applied.") {
		t.Fatal("a bad lookup should not discard the filter")
	}
	if strings.Contains(body, "Woda w Gdańsku") {
		t.Fatal("filter should still exclude non-matching case")
	}
	if strings.Contains(body, "tags__id__exact=abc") {
		t.Fatal("links should not carry the rejected lookup")
	}
}
