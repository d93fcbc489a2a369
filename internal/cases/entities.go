package cases

import (
	"time"
)

// Tag is a free-form label applied to cases and institutions.
type Tag struct {
	ID   int64
	Name string
}

func (t Tag) PK() int64      { return t.ID }
func (t Tag) String() string { return t.Name }

// Person is someone responsible for a case.
type Person struct {
	ID    int64
	Name  string
	Email string
}

func (p Person) PK() int64      { return p.ID }
func (p Person) String() string { return p.Name }

// Channel is the medium a letter travelled through (post, e-mail, ePUAP).
type Channel struct {
	ID   int64
	Name string
}

func (c Channel) PK() int64      { return c.ID }
func (c Channel) String() string { return c.Name }

// Dictionary is a generic controlled-vocabulary entry.
type Dictionary struct {
	ID     int64
	Name   string
	Active bool
}

func (d Dictionary) PK() int64      { return d.ID }
func (d Dictionary) String() string { return d.Name }

// Institution is an external organisation letters are exchanged with.
type Institution struct {
	ID       int64
	Name     string
	Comment  string
	Created  time.Time
	Modified time.Time
	Tags     []Tag
}

func (i Institution) PK() int64      { return i.ID }
func (i Institution) String() string { return i.Name }
func (i Institution) TagList() []Tag { return i.Tags }

// Case is a unit of tracked correspondence.
//
// LetterCount is a read-time aggregate filled only when the query asked for
// the letter_count annotation.
type Case struct {
	ID                int64
	Name              string
	Comment           string
	Created           time.Time
	Modified          time.Time
	ResponsiblePeople []Person
	Tags              []Tag
	LetterCount       int
}

func (c Case) PK() int64                 { return c.ID }
func (c Case) String() string            { return c.Name }
func (c Case) TagList() []Tag            { return c.Tags }
func (c Case) AnnotatedLetterCount() int { return c.LetterCount }

// Direction tells whether a letter was received or sent.
type Direction string

const (
	DirectionIn  Direction = "IN"
	DirectionOut Direction = "OUT"
)

// Directions lists the valid directions in display order.
func Directions() []Direction {
	return []Direction{DirectionIn, DirectionOut}
}

// Valid reports whether d is a known direction.
func (d Direction) Valid() bool {
	return d == DirectionIn || d == DirectionOut
}

// LabelKey returns the message key used to display d.
func (d Direction) LabelKey() string {
	switch d {
	case DirectionIn:
		return "direction.in"
	case DirectionOut:
		return "direction.out"
	default:
		return string(d)
	}
}

// Letter is one inbound or outbound piece of correspondence.
//
// CaseName, InstitutionName and ChannelName are display labels loaded with the
// row; writes only look at the ids. ChannelID 0 means no channel.
type Letter struct {
	ID              int64
	Name            string
	Direction       Direction
	Data            time.Time
	Identifier      string
	Comment         string
	Created         time.Time
	Modified        time.Time
	CaseID          int64
	CaseName        string
	InstitutionID   int64
	InstitutionName string
	ChannelID       int64
	ChannelName     string
	Ordering        int
}

func (l Letter) PK() int64      { return l.ID }
func (l Letter) String() string { return l.Name }

// DateLayout is the wire and form layout of Letter.Data.
const DateLayout = "2006-01-02"
