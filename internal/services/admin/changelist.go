package admin

import (
	"math"
	"net/http"
	"net/url"
	"sort"
	"strconv"
	"strings"

	"github.com/watchdogpolska/small-eod/internal/cases"
	"github.com/watchdogpolska/small-eod/internal/cases/resources"
	"github.com/watchdogpolska/small-eod/internal/cases/storage"
	eoderrors "github.com/watchdogpolska/small-eod/internal/platform/errors"
	"github.com/watchdogpolska/small-eod/internal/services/admin/i18n"
	routepath "github.com/watchdogpolska/small-eod/internal/services/admin/routepath"
	"github.com/watchdogpolska/small-eod/internal/services/admin/templates"
	"go.einride.tech/aip/ordering"
	"golang.org/x/text/message"
)

// Changelist query parameters besides the filter lookups.
const (
	pageParam    = "p"
	searchParam  = "q"
	orderParam   = "order_by"
	filterParam  = "filter"
	actionParam  = "action"
	confirmParam = "post"

	actionDeleteSelected = "delete_selected"
)

const (
	// listPerPage is the number of rows on one changelist page.
	listPerPage = storage.DefaultPageSize
	// pagesOnEachSide and pagesOnEnds shape the elided paginator.
	pagesOnEachSide = 3
	pagesOnEnds     = 2
)

// changeListQuery is the validated state of one changelist request.
type changeListQuery struct {
	// params keeps only the recognized parameters, for building links.
	params  url.Values
	lookups []storage.Lookup
	order   ordering.OrderBy
	search  string
	filter  string
	page    int
	// problems are message keys for rejected parameters.
	problems []string
}

// parseChangeList validates query params against ma. Unknown lookups reset
// every lookup, a bad order_by falls back to the default ordering and a bad
// page number to the first page.
func parseChangeList(ma *ModelAdmin, query url.Values) changeListQuery {
	out := changeListQuery{params: url.Values{}}
	filters := make(map[string]ListFilter, len(ma.ListFilter))
	for _, f := range ma.ListFilter {
		filters[f.Param()] = f
		if p := f.EmptyParam(); p != "" {
			filters[p] = f
		}
	}

	invalidLookup := false
	for key := range query {
		switch key {
		case searchParam, orderParam, filterParam, pageParam, i18n.LangParam:
			continue
		}
		if _, ok := filters[key]; !ok {
			invalidLookup = true
		}
	}
	if invalidLookup {
		out.problems = append(out.problems, "changelist.invalid_lookup")
	} else {
		for _, f := range ma.ListFilter {
			if value := strings.TrimSpace(query.Get(f.Param())); value != "" {
				out.lookups = append(out.lookups, f.Lookup(value))
				out.params.Set(f.Param(), value)
			}
			p := f.EmptyParam()
			if p == "" {
				continue
			}
			if value := strings.TrimSpace(query.Get(p)); value != "" {
				lookup, ok := f.EmptyLookup(value)
				if !ok {
					invalidLookup = true
					continue
				}
				out.lookups = append(out.lookups, lookup)
				out.params.Set(p, value)
			}
		}
		if invalidLookup {
			out.problems = append(out.problems, "changelist.invalid_lookup")
			out.dropLookups(ma)
		}
	}

	if len(ma.SearchFields) > 0 {
		if q := strings.TrimSpace(query.Get(searchParam)); q != "" {
			out.search = q
			out.params.Set(searchParam, q)
		}
	}
	if expr := strings.TrimSpace(query.Get(filterParam)); expr != "" {
		out.filter = expr
		out.params.Set(filterParam, expr)
	}

	if raw := strings.TrimSpace(query.Get(orderParam)); raw != "" {
		var order ordering.OrderBy
		err := order.UnmarshalString(raw)
		if err == nil {
			err = order.ValidateForPaths(sortablePaths(ma)...)
		}
		if err != nil {
			out.problems = append(out.problems, "changelist.invalid_order")
		} else {
			out.order = order
			out.params.Set(orderParam, formatOrderBy(order))
		}
	}

	if raw := strings.TrimSpace(query.Get(pageParam)); raw != "" {
		page, err := strconv.Atoi(raw)
		if err != nil || page < 0 {
			out.problems = append(out.problems, "changelist.invalid_page")
		} else {
			out.page = page
		}
	}
	return out
}

// dropLookups clears every lookup together with its query parameter.
func (cl *changeListQuery) dropLookups(ma *ModelAdmin) {
	cl.lookups = nil
	for _, f := range ma.ListFilter {
		cl.params.Del(f.Param())
		if p := f.EmptyParam(); p != "" {
			cl.params.Del(p)
		}
	}
}

// formatOrderBy renders order in the AIP-132 form that UnmarshalString reads.
func formatOrderBy(order ordering.OrderBy) string {
	parts := make([]string, 0, len(order.Fields))
	for _, f := range order.Fields {
		if f.Desc {
			parts = append(parts, f.Path+" desc")
			continue
		}
		parts = append(parts, f.Path)
	}
	return strings.Join(parts, ", ")
}

// sortablePaths lists the order_by fields ma accepts.
func sortablePaths(ma *ModelAdmin) []string {
	paths := []string{"id"}
	for _, col := range ma.ListDisplay {
		if col.OrderField != "" {
			paths = append(paths, col.OrderField)
		}
	}
	return uniqueStrings(paths)
}

// orders returns the storage ordering, ending with id for stable pages.
func (q changeListQuery) orders(ma *ModelAdmin) []storage.Order {
	var out []storage.Order
	for _, field := range q.order.Fields {
		out = append(out, storage.Order{Field: field.Path, Desc: field.Desc})
	}
	if len(out) == 0 {
		out = append(out, ma.Ordering...)
	}
	for _, o := range out {
		if o.Field == "id" {
			return out
		}
	}
	return append(out, storage.Order{Field: "id", Desc: true})
}

func (q changeListQuery) listQuery(ma *ModelAdmin) storage.ListQuery {
	return storage.ListQuery{
		Lookups:      q.lookups,
		Search:       q.search,
		SearchFields: ma.SearchFields,
		Filter:       q.filter,
		OrderBy:      q.orders(ma),
		Annotations:  ma.Annotations,
		Offset:       q.page * listPerPage,
		Limit:        listPerPage,
	}
}

func (q changeListQuery) narrowed() bool {
	return len(q.lookups) > 0 || q.search != "" || q.filter != ""
}

// link returns path with the current params changed by edit.
func (q changeListQuery) link(path string, edit func(url.Values)) string {
	params := cloneValues(q.params)
	edit(params)
	if len(params) == 0 {
		return path
	}
	return path + "?" + params.Encode()
}

func (h *Handler) handleChangeList(w http.ResponseWriter, r *http.Request, ma *ModelAdmin) {
	staff := staffFromRequest(r)
	switch r.Method {
	case http.MethodGet, http.MethodHead:
		if !h.requirePerm(w, r, canView(staff, ma.Model)) {
			return
		}
		h.renderChangeList(w, r, ma)
	case http.MethodPost:
		h.handleChangeListAction(w, r, ma)
	default:
		w.Header().Set("Allow", "GET, HEAD, POST")
		http.Error(w, http.StatusText(http.StatusMethodNotAllowed), http.StatusMethodNotAllowed)
	}
}

func (h *Handler) renderChangeList(w http.ResponseWriter, r *http.Request, ma *ModelAdmin) {
	page, loc := h.pageContext(w, r)
	ctx := r.Context()
	staff := staffFromRequest(r)
	path := routepath.ChangeList(cases.AppLabel, string(ma.Model))

	cl := parseChangeList(ma, r.URL.Query())
	for _, key := range cl.problems {
		page.Messages = append(page.Messages, templates.Message{Level: templates.LevelError, Text: templates.T(loc, key)})
	}

	result, err := ma.source.list(ctx, h.store, cl.listQuery(ma))
	// Drop a rejected lookup or filter and list again; both may be bad.
	for retry := 0; retry < 2 && err != nil; retry++ {
		var key string
		switch eoderrors.GetCode(err) {
		case eoderrors.CodeInvalidLookup:
			key = "changelist.invalid_lookup"
			cl.dropLookups(ma)
		case eoderrors.CodeInvalidFilter:
			key = "changelist.invalid_filter"
			cl.filter = ""
			cl.params.Del(filterParam)
		}
		if key == "" {
			break
		}
		page.Messages = append(page.Messages, templates.Message{Level: templates.LevelError, Text: templates.T(loc, key)})
		result, err = ma.source.list(ctx, h.store, cl.listQuery(ma))
	}
	if err != nil {
		h.renderServerError(w, r, "list "+string(ma.Model), err)
		return
	}
	// Page links and the action form keep only the accepted parameters.
	keepPage := func(v url.Values) {
		if cl.page > 0 {
			v.Set(pageParam, strconv.Itoa(cl.page))
		}
	}
	page.CurrentQuery = strings.TrimPrefix(cl.link("", keepPage), "?")

	fullCount := result.Total
	if cl.narrowed() {
		all, err := ma.source.list(ctx, h.store, storage.ListQuery{Limit: 1})
		if err != nil {
			h.renderServerError(w, r, "count "+string(ma.Model), err)
			return
		}
		fullCount = all.Total
	}

	view := templates.ChangeListView{
		Heading: templates.PageHeading{
			Title:       templates.T(loc, "changelist.title", modelName(loc, ma.Model)),
			Breadcrumbs: modelBreadcrumbs(loc, ma.Model)[:1],
		},
		Search: templates.SearchView{
			Enabled: len(ma.SearchFields) > 0,
			Query:   cl.search,
			ClearURL: cl.link(path, func(v url.Values) {
				v.Del(searchParam)
				v.Del(filterParam)
			}),
		},
		FilterExpr:  cl.filter,
		ResultCount: result.Total,
		FullCount:   fullCount,
	}
	view.Heading.Trail(modelPlural(loc, ma.Model))
	if staff.HasPerm(permCodename(permAdd, ma.Model)) {
		view.Heading.ActionURL = routepath.Add(cases.AppLabel, string(ma.Model))
		view.Heading.ActionLabel = templates.T(loc, "changelist.add", modelName(loc, ma.Model))
	}
	if staff.HasPerm(permCodename(permDelete, ma.Model)) {
		view.ActionURL = cl.link(path, keepPage)
	}
	if ma.Resource != nil {
		if staff.HasPerm(permCodename(permAdd, ma.Model)) && staff.HasPerm(permCodename(permChange, ma.Model)) {
			view.ImportURL = routepath.Import(cases.AppLabel, string(ma.Model))
		}
		view.ExportURL = cl.link(routepath.Export(cases.AppLabel, string(ma.Model)), func(v url.Values) {
			v.Del(pageParam)
		})
		for _, f := range resources.Formats() {
			view.Formats = append(view.Formats, string(f))
		}
	}
	for name, values := range cl.params {
		if name == searchParam || name == filterParam {
			continue
		}
		for _, value := range values {
			view.Preserved = append(view.Preserved, templates.Param{Name: name, Value: value})
		}
	}
	sort.Slice(view.Preserved, func(i, j int) bool { return view.Preserved[i].Name < view.Preserved[j].Name })

	view.Columns = columnHeaders(loc, ma, cl, path)
	for _, obj := range result.Items {
		row := templates.ChangeListRow{
			ID:        obj.PK(),
			ChangeURL: routepath.Change(cases.AppLabel, string(ma.Model), obj.PK()),
		}
		for _, col := range ma.ListDisplay {
			row.Cells = append(row.Cells, col.Render(obj, loc))
		}
		view.Rows = append(view.Rows, row)
	}

	links := filterLinks{path: path, query: cl.params}
	for _, f := range ma.ListFilter {
		choices, err := f.Choices(ctx, h.store, loc, links)
		if err != nil {
			h.renderServerError(w, r, "list filter", err)
			return
		}
		view.Filters = append(view.Filters, templates.FilterView{Title: f.Title(loc), Choices: choices})
	}

	view.Pages = paginate(cl, path, result.Total)
	h.render(w, r, http.StatusOK, templates.ChangeListPage(page, view))
}

func columnHeaders(loc *message.Printer, ma *ModelAdmin, cl changeListQuery, path string) []templates.ColumnHeader {
	var primary ordering.Field
	if len(cl.order.Fields) > 0 {
		primary = cl.order.Fields[0]
	}
	headers := make([]templates.ColumnHeader, 0, len(ma.ListDisplay))
	for _, col := range ma.ListDisplay {
		header := templates.ColumnHeader{Label: col.Label(loc, ma.Model)}
		if col.OrderField != "" {
			next := ordering.OrderBy{Fields: []ordering.Field{{Path: col.OrderField}}}
			if primary.Path == col.OrderField {
				header.Sorted = "asc"
				if primary.Desc {
					header.Sorted = "desc"
				}
				next.Fields[0].Desc = !primary.Desc
			}
			header.SortURL = cl.link(path, func(v url.Values) {
				v.Del(pageParam)
				v.Set(orderParam, formatOrderBy(next))
			})
		}
		headers = append(headers, header)
	}
	return headers
}

// paginate builds zero-based page links, eliding long runs with "…".
func paginate(cl changeListQuery, path string, total int) []templates.PageLink {
	pages := int(math.Ceil(float64(total) / float64(listPerPage)))
	if pages <= 1 {
		return nil
	}
	pageLink := func(n int) templates.PageLink {
		return templates.PageLink{
			Label:   strconv.Itoa(n + 1),
			Current: n == cl.page,
			URL: cl.link(path, func(v url.Values) {
				if n == 0 {
					v.Del(pageParam)
					return
				}
				v.Set(pageParam, strconv.Itoa(n))
			}),
		}
	}
	gap := templates.PageLink{Label: "…"}

	var links []templates.PageLink
	if pages <= 2*(pagesOnEachSide+pagesOnEnds)+1 {
		for n := 0; n < pages; n++ {
			links = append(links, pageLink(n))
		}
		return links
	}
	lo := max(cl.page-pagesOnEachSide, 0)
	hi := min(cl.page+pagesOnEachSide, pages-1)
	if lo > pagesOnEnds {
		for n := 0; n < pagesOnEnds; n++ {
			links = append(links, pageLink(n))
		}
		links = append(links, gap)
	} else {
		lo = 0
	}
	for n := lo; n <= hi; n++ {
		links = append(links, pageLink(n))
	}
	if hi < pages-1-pagesOnEnds {
		links = append(links, gap)
		for n := pages - pagesOnEnds; n < pages; n++ {
			links = append(links, pageLink(n))
		}
	} else {
		for n := hi + 1; n < pages; n++ {
			links = append(links, pageLink(n))
		}
	}
	return links
}

// handleChangeListAction runs a bulk action on the checked rows.
func (h *Handler) handleChangeListAction(w http.ResponseWriter, r *http.Request, ma *ModelAdmin) {
	loc, _ := h.localizer(w, r)
	if !parsePost(w, r, loc) {
		return
	}
	back := r.URL.RequestURI()
	if r.PostForm.Get(actionParam) != actionDeleteSelected {
		setFlash(w, r, templates.Message{Level: templates.LevelWarning, Text: templates.T(loc, "changelist.no_action")})
		http.Redirect(w, r, back, http.StatusSeeOther)
		return
	}
	var ids []int64
	for _, raw := range r.PostForm[templates.ActionSelectAll] {
		if id, ok := parseObjectID(raw); ok {
			ids = append(ids, id)
		}
	}
	if len(ids) == 0 {
		setFlash(w, r, templates.Message{Level: templates.LevelWarning, Text: templates.T(loc, "changelist.no_selection")})
		http.Redirect(w, r, back, http.StatusSeeOther)
		return
	}
	if !h.requirePerm(w, r, staffFromRequest(r).HasPerm(permCodename(permDelete, ma.Model))) {
		return
	}
	h.deleteObjects(w, r, ma, ids, back)
}
