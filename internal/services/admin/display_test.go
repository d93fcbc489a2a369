package admin

import (
	"bytes"
	"context"
	"testing"

	"github.com/watchdogpolska/small-eod/internal/cases"
	"github.com/watchdogpolska/small-eod/internal/services/admin/i18n"
	"golang.org/x/text/language"
)

func TestDisplayTags(t *testing.T) {
	tests := []struct {
		name string
		tags []cases.Tag
		want string
	}{
		{name: "no tags", want: "-"},
		{name: "one", tags: []cases.Tag{{ID: 1, Name: "smog"}}, want: "smog"},
		{name: "relation order", tags: []cases.Tag{{ID: 2, Name: "waste"}, {ID: 1, Name: "smog"}}, want: "waste, smog"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := DisplayTags(cases.Case{Tags: tt.tags}); got != tt.want {
				t.Fatalf("DisplayTags = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestLinkToLetters(t *testing.T) {
	tests := []struct {
		lang  string
		count int
		want  string
	}{
		{lang: "en", count: 0, want: `<a href="/cases/letter?case__id__exact=7">View 0 letters</a>`},
		{lang: "en", count: 1, want: `<a href="/cases/letter?case__id__exact=7">View 1 letter</a>`},
		{lang: "en", count: 4, want: `<a href="/cases/letter?case__id__exact=7">View 4 letters</a>`},
		{lang: "pl", count: 0, want: `<a href="/cases/letter?case__id__exact=7">Zobacz 0 listów</a>`},
		{lang: "pl", count: 3, want: `<a href="/cases/letter?case__id__exact=7">Zobacz 3 listy</a>`},
		{lang: "pl", count: 12, want: `<a href="/cases/letter?case__id__exact=7">Zobacz 12 listów</a>`},
	}
	for _, tt := range tests {
		loc := i18n.Printer(language.MustParse(tt.lang))
		var buf bytes.Buffer
		err := LinkToLetters(cases.Case{ID: 7, LetterCount: tt.count}, loc).Render(context.Background(), &buf)
		if err != nil {
			t.Fatalf("render: %v", err)
		}
		if buf.String() != tt.want {
			t.Fatalf("%s/%d: got %q, want %q", tt.lang, tt.count, buf.String(), tt.want)
		}
	}
}

func TestComputedColumnsOnOtherModels(t *testing.T) {
	var buf bytes.Buffer
	if err := DisplayTagsColumn().Render(cases.Tag{ID: 1, Name: "x"}, nil).Render(context.Background(), &buf); err != nil {
		t.Fatalf("render: %v", err)
	}
	if buf.String() != "-" {
		t.Fatalf("tags column on a tag = %q", buf.String())
	}
	if LinkToLettersColumn().OrderField == "" {
		t.Fatal("letter count column should be sortable")
	}
}
