package templates

import "golang.org/x/text/message"

// Localizer is satisfied by *message.Printer.
type Localizer interface {
	Sprintf(key message.Reference, args ...any) string
}

// T translates key. Without a localizer the raw key is rendered so pages
// built outside a request stay readable.
func T(loc Localizer, key message.Reference, args ...any) string {
	if loc != nil {
		return loc.Sprintf(key, args...)
	}
	s, _ := key.(string)
	return s
}
