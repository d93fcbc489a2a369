package templates

import (
	"context"
	"io"
	"sort"
	"strings"

	"github.com/a-h/templ"
)

// html is a sticky-error writer used by the hand-written components.
type html struct {
	w   io.Writer
	err error
}

func (h *html) raw(parts ...string) {
	for _, part := range parts {
		if h.err != nil {
			return
		}
		_, h.err = io.WriteString(h.w, part)
	}
}

func (h *html) text(value string) {
	h.raw(templ.EscapeString(value))
}

// open writes a start tag; attrs alternate name, value. Empty values are
// written as bare boolean attributes when the name ends with "?".
func (h *html) open(tag string, attrs ...string) {
	h.raw("<", tag)
	for i := 0; i+1 < len(attrs); i += 2 {
		name, value := attrs[i], attrs[i+1]
		if strings.HasSuffix(name, "?") {
			if value != "" {
				h.raw(" ", strings.TrimSuffix(name, "?"))
			}
			continue
		}
		h.raw(" ", name, `="`, templ.EscapeString(value), `"`)
	}
	h.raw(">")
}

func (h *html) close(tag string) {
	h.raw("</", tag, ">")
}

// elem writes a complete element with escaped text content.
func (h *html) elem(tag string, content string, attrs ...string) {
	h.open(tag, attrs...)
	h.text(content)
	h.close(tag)
}

func (h *html) link(href string, label string, attrs ...string) {
	h.elem("a", label, append([]string{"href", href}, attrs...)...)
}

func (h *html) hidden(name string, value string) {
	h.open("input", "type", "hidden", "name", name, "value", value)
}

func (h *html) render(ctx context.Context, c templ.Component) {
	if h.err != nil || c == nil {
		return
	}
	h.err = c.Render(ctx, h.w)
}

func component(fn func(ctx context.Context, h *html)) templ.Component {
	return templ.ComponentFunc(func(ctx context.Context, w io.Writer) error {
		h := &html{w: w}
		fn(ctx, h)
		return h.err
	})
}

// Text renders escaped text as a component.
func Text(value string) templ.Component {
	return component(func(_ context.Context, h *html) {
		h.text(value)
	})
}

func flag(on bool) string {
	return classIf(on, "on")
}

func classIf(on bool, class string) string {
	if on {
		return class
	}
	return ""
}

func sortedKeys(m map[string][]string) []string {
	keys := make([]string, 0, len(m))
	for key := range m {
		keys = append(keys, key)
	}
	sort.Strings(keys)
	return keys
}
