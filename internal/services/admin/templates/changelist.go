package templates

import (
	"context"
	"strconv"

	"github.com/a-h/templ"
)

// ActionSelectAll is the checkbox name carrying selected primary keys.
const ActionSelectAll = "_selected_action"

// ChangeListView provides data for a model listing.
type ChangeListView struct {
	Heading PageHeading
	Columns []ColumnHeader
	Rows    []ChangeListRow
	Filters []FilterView
	Search  SearchView
	// FilterExpr is the advanced AIP-160 filter currently applied.
	FilterExpr string
	Pages      []PageLink
	// ResultCount counts rows matching the current query; FullCount counts
	// every row of the model.
	ResultCount int
	FullCount   int
	// ActionURL receives bulk actions; empty hides the action bar.
	ActionURL string
	// Preserved are the query params carried by the search form.
	Preserved []Param
	ImportURL string
	ExportURL string
	Formats   []string
}

// ColumnHeader describes one list_display column.
type ColumnHeader struct {
	Label string
	// SortURL is empty for columns that cannot be sorted.
	SortURL string
	// Sorted is "asc", "desc" or empty.
	Sorted string
}

// ChangeListRow is one listed object.
type ChangeListRow struct {
	ID        int64
	ChangeURL string
	Cells     []templ.Component
}

// FilterView is one sidebar filter.
type FilterView struct {
	Title   string
	Choices []FilterChoice
}

// FilterChoice is one link in a sidebar filter.
type FilterChoice struct {
	Label    string
	URL      string
	Selected bool
}

// SearchView configures the search bar. Disabled models have no search fields.
type SearchView struct {
	Enabled  bool
	Query    string
	ClearURL string
}

// PageLink is one pagination link; an empty URL marks the current page.
type PageLink struct {
	Label   string
	URL     string
	Current bool
}

// Param is one query parameter.
type Param struct {
	Name  string
	Value string
}

// ChangeListPage renders the changelist with its filters, search and actions.
func ChangeListPage(page PageContext, view ChangeListView) templ.Component {
	return Layout(page, view.Heading, component(func(ctx context.Context, h *html) {
		loc := page.Loc
		h.open("div", "id", "changelist", "class", "module filtered")

		h.open("div", "class", "changelist-tools")
		if view.ImportURL != "" {
			h.link(view.ImportURL, T(loc, "changelist.import"), "class", "button importlink")
		}
		if view.ExportURL != "" {
			for _, format := range view.Formats {
				h.link(AppendQueryParam(view.ExportURL, "format", format), T(loc, "changelist.export", format), "class", "button exportlink")
			}
		}
		h.close("div")

		h.open("form", "method", "get", "id", "changelist-search")
		for _, param := range view.Preserved {
			h.hidden(param.Name, param.Value)
		}
		if view.Search.Enabled {
			h.elem("label", T(loc, "changelist.search"), "for", "searchbar")
			h.open("input", "type", "text", "name", "q", "id", "searchbar", "value", view.Search.Query)
		}
		h.elem("label", T(loc, "changelist.filter_expr"), "for", "filterbar")
		h.open("input", "type", "text", "name", "filter", "id", "filterbar", "value", view.FilterExpr, "placeholder", `name = "Smog"`)
		h.elem("button", T(loc, "changelist.search_submit"), "type", "submit")
		if view.Search.Query != "" || view.FilterExpr != "" {
			h.open("span", "class", "small quiet")
			h.text(T(loc, "changelist.result_count", view.ResultCount, view.FullCount) + " ")
			h.link(view.Search.ClearURL, T(loc, "changelist.show_all", view.FullCount))
			h.close("span")
		}
		h.close("form")

		if len(view.Filters) > 0 {
			h.open("div", "id", "changelist-filter")
			h.elem("h2", T(loc, "changelist.filter"))
			for _, filter := range view.Filters {
				h.elem("h3", T(loc, "changelist.filter_by", filter.Title))
				h.raw("<ul>")
				for _, choice := range filter.Choices {
					h.open("li", "class", classIf(choice.Selected, "selected"))
					h.link(choice.URL, choice.Label)
					h.close("li")
				}
				h.raw("</ul>")
			}
			h.close("div")
		}

		h.open("form", "method", "post", "action", view.ActionURL, "id", "changelist-form")
		if view.ActionURL != "" {
			h.open("div", "class", "actions")
			h.open("select", "name", "action")
			h.elem("option", "---------", "value", "")
			h.elem("option", T(loc, "changelist.delete_selected"), "value", "delete_selected")
			h.close("select")
			h.elem("button", T(loc, "changelist.go"), "type", "submit", "name", "index", "value", "0")
			h.close("div")
		}

		if len(view.Rows) == 0 {
			h.elem("p", T(loc, "changelist.empty"), "class", "paginator")
		} else {
			h.open("table", "id", "result_list")
			h.raw("<thead><tr>")
			if view.ActionURL != "" {
				h.raw(`<th scope="col" class="action-checkbox-column"><input type="checkbox" id="action-toggle"></th>`)
			}
			for _, col := range view.Columns {
				h.open("th", "scope", "col", "class", sortedClass(col))
				if col.SortURL != "" {
					h.link(col.SortURL, col.Label)
				} else {
					h.text(col.Label)
				}
				h.close("th")
			}
			h.raw("</tr></thead><tbody>")
			for _, row := range view.Rows {
				h.raw("<tr>")
				if view.ActionURL != "" {
					h.raw(`<td class="action-checkbox">`)
					h.open("input", "type", "checkbox", "name", ActionSelectAll, "value", strconv.FormatInt(row.ID, 10), "class", "action-select")
					h.raw("</td>")
				}
				for i, cell := range row.Cells {
					if i == 0 {
						h.raw(`<th scope="row">`)
						h.open("a", "href", row.ChangeURL)
						h.render(ctx, cell)
						h.raw("</a></th>")
						continue
					}
					h.raw("<td>")
					h.render(ctx, cell)
					h.raw("</td>")
				}
				h.raw("</tr>")
			}
			h.raw("</tbody>")
			h.close("table")
		}
		h.close("form")

		h.open("p", "class", "paginator")
		for _, link := range view.Pages {
			if link.Current {
				h.elem("span", link.Label, "class", "this-page")
			} else if link.URL == "" {
				h.text(link.Label)
			} else {
				h.link(link.URL, link.Label)
			}
			h.raw(" ")
		}
		h.text(T(loc, "changelist.total", view.ResultCount))
		h.close("p")

		h.close("div")
	}))
}

func sortedClass(col ColumnHeader) string {
	if col.SortURL == "" {
		return "column"
	}
	switch col.Sorted {
	case "asc":
		return "sortable sorted ascending"
	case "desc":
		return "sortable sorted descending"
	default:
		return "sortable"
	}
}
