package templates

import (
	"net/url"
	"strings"
)

// PageHeading is the title row of an admin page.
type PageHeading struct {
	Title string
	// Breadcrumbs lead from the index to the current page; the last one is
	// rendered without a link.
	Breadcrumbs []Breadcrumb
	// ActionURL renders an object tool such as "Add tag" next to the title.
	ActionURL   string
	ActionLabel string
}

// Breadcrumb is one step of the navigation trail.
type Breadcrumb struct {
	Label string
	URL   string
}

// Trail appends the unlinked crumb for the current page.
func (p *PageHeading) Trail(label string) {
	p.Breadcrumbs = append(p.Breadcrumbs, Breadcrumb{Label: label})
}

// AppendQueryParam adds key=value to a URL, keeping its other parameters.
func AppendQueryParam(baseURL string, key string, value string) string {
	u, err := url.Parse(baseURL)
	if err != nil {
		sep := "?"
		if strings.Contains(baseURL, "?") {
			sep = "&"
		}
		return baseURL + sep + url.QueryEscape(key) + "=" + url.QueryEscape(value)
	}
	query := u.Query()
	query.Add(key, value)
	u.RawQuery = query.Encode()
	return u.String()
}
