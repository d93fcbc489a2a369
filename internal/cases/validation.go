package cases

import (
	"sort"
	"strings"
	"unicode/utf8"

	eoderrors "github.com/watchdogpolska/small-eod/internal/platform/errors"
)

// Field length limits mirrored by the schema.
const (
	MaxNameLength       = 256
	MaxIdentifierLength = 256
	MaxEmailLength      = 254
)

// NonFieldErrors keys errors that do not belong to one field.
const NonFieldErrors = "__all__"

// ValidationError collects per-field messages. Messages are message keys.
type ValidationError struct {
	Fields map[string][]string
}

// Add records msg for field.
func (e *ValidationError) Add(field, msg string) {
	if e.Fields == nil {
		e.Fields = make(map[string][]string)
	}
	e.Fields[field] = append(e.Fields[field], msg)
}

// Merge copies other's messages under prefix+field.
func (e *ValidationError) Merge(prefix string, other *ValidationError) {
	if other == nil {
		return
	}
	for field, msgs := range other.Fields {
		for _, msg := range msgs {
			e.Add(prefix+field, msg)
		}
	}
}

// Empty reports whether no messages were recorded.
func (e *ValidationError) Empty() bool {
	return e == nil || len(e.Fields) == 0
}

// Err returns e as an error, or nil when empty.
func (e *ValidationError) Err() error {
	if e.Empty() {
		return nil
	}
	return e
}

func (e *ValidationError) Error() string {
	fields := make([]string, 0, len(e.Fields))
	for field := range e.Fields {
		fields = append(fields, field)
	}
	sort.Strings(fields)
	parts := make([]string, 0, len(fields))
	for _, field := range fields {
		parts = append(parts, field+": "+strings.Join(e.Fields[field], ", "))
	}
	return "validation failed: " + strings.Join(parts, "; ")
}

// Is lets errors.Is match validation errors against the VALIDATION code.
func (e *ValidationError) Is(target error) bool {
	t, ok := target.(*eoderrors.Error)
	return ok && t.Code == eoderrors.CodeValidation
}

// ErrValidation matches any *ValidationError through errors.Is.
var ErrValidation = eoderrors.New(eoderrors.CodeValidation, "validation failed")

func requireName(errs *ValidationError, field, value string, max int) {
	value = strings.TrimSpace(value)
	switch {
	case value == "":
		errs.Add(field, "error.field_required")
	case utf8.RuneCountInString(value) > max:
		errs.Add(field, "error.field_too_long")
	}
}

// Validate checks a case before it is saved.
func (c Case) Validate() error {
	var errs ValidationError
	requireName(&errs, "name", c.Name, MaxNameLength)
	return errs.Err()
}

// Validate checks an institution before it is saved.
func (i Institution) Validate() error {
	var errs ValidationError
	requireName(&errs, "name", i.Name, MaxNameLength)
	return errs.Err()
}

// Validate checks a tag before it is saved.
func (t Tag) Validate() error {
	var errs ValidationError
	requireName(&errs, "name", t.Name, MaxNameLength)
	return errs.Err()
}

// Validate checks a person before it is saved.
func (p Person) Validate() error {
	var errs ValidationError
	requireName(&errs, "name", p.Name, MaxNameLength)
	if email := strings.TrimSpace(p.Email); email != "" {
		if len(email) > MaxEmailLength || !strings.Contains(email, "@") {
			errs.Add("email", "error.invalid_email")
		}
	}
	return errs.Err()
}

// Validate checks a channel before it is saved.
func (c Channel) Validate() error {
	var errs ValidationError
	requireName(&errs, "name", c.Name, MaxNameLength)
	return errs.Err()
}

// Validate checks a dictionary entry before it is saved.
func (d Dictionary) Validate() error {
	var errs ValidationError
	requireName(&errs, "name", d.Name, MaxNameLength)
	return errs.Err()
}

// Validate checks a letter before it is saved. Existence of the referenced
// rows is checked by storage.
func (l Letter) Validate() error {
	var errs ValidationError
	requireName(&errs, "name", l.Name, MaxNameLength)
	if !l.Direction.Valid() {
		errs.Add("direction", "error.invalid_choice")
	}
	if utf8.RuneCountInString(l.Identifier) > MaxIdentifierLength {
		errs.Add("identifier", "error.field_too_long")
	}
	if l.CaseID <= 0 {
		errs.Add("case", "error.field_required")
	}
	if l.InstitutionID <= 0 {
		errs.Add("institution", "error.field_required")
	}
	if l.Ordering < 0 {
		errs.Add("ordering", "error.invalid_number")
	}
	return errs.Err()
}
