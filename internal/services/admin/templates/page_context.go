package templates

// PageContext provides shared layout context for admin pages.
type PageContext struct {
	Lang         string
	Loc          Localizer
	CurrentPath  string
	CurrentQuery string
	// Username is empty when authentication is disabled.
	Username    string
	Breadcrumbs []Breadcrumb
	Messages    []Message
}

// MessageLevel mirrors the classes of the admin message list.
type MessageLevel string

const (
	LevelSuccess MessageLevel = "success"
	LevelWarning MessageLevel = "warning"
	LevelError   MessageLevel = "error"
)

// Message is one already-localized notice shown above the page content.
type Message struct {
	Level MessageLevel
	Text  string
}
