package compose

import (
	"strings"
	"testing"
)

func TestComposeButtons_ExactlyThreePasses(t *testing.T) {
	c := NewComposer()
	buttons := []Button{{ID: "a", Title: "A"}, {ID: "b", Title: "B"}, {ID: "c", Title: "C"}}
	if _, err := c.ComposeButtons("body", "", "", buttons); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestComposeButtons_FourRaisesComposeError(t *testing.T) {
	c := NewComposer()
	buttons := []Button{{ID: "a", Title: "A"}, {ID: "b", Title: "B"}, {ID: "c", Title: "C"}, {ID: "d", Title: "D"}}
	_, err := c.ComposeButtons("body", "", "", buttons)
	if _, ok := err.(*Error); !ok {
		t.Fatalf("expected ComposeError, got %v", err)
	}
}

func TestComposeButtons_TitleTooLongFails(t *testing.T) {
	c := NewComposer()
	buttons := []Button{{ID: "a", Title: strings.Repeat("x", 21)}}
	_, err := c.ComposeButtons("body", "", "", buttons)
	if _, ok := err.(*Error); !ok {
		t.Fatalf("expected ComposeError, got %v", err)
	}
}

func TestComposeList_TenRowsOneSectionPasses(t *testing.T) {
	c := NewComposer()
	rows := make([]Row, 10)
	for i := range rows {
		rows[i] = Row{ID: "p", Title: "Product"}
	}
	if _, err := c.ComposeList("body", "", "", "Select", []Section{{Title: "Mains", Rows: rows}}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestComposeList_ElevenRowsFails(t *testing.T) {
	c := NewComposer()
	rows := make([]Row, 11)
	for i := range rows {
		rows[i] = Row{ID: "p", Title: "Product"}
	}
	_, err := c.ComposeList("body", "", "", "Select", []Section{{Title: "Mains", Rows: rows}})
	if _, ok := err.(*Error); !ok {
		t.Fatalf("expected ComposeError, got %v", err)
	}
}

func TestComposeList_RowDescriptionTooLongFails(t *testing.T) {
	c := NewComposer()
	rows := []Row{{ID: "p", Title: "Product", Description: strings.Repeat("x", 73)}}
	_, err := c.ComposeList("body", "", "", "Select", []Section{{Title: "Mains", Rows: rows}})
	if _, ok := err.(*Error); !ok {
		t.Fatalf("expected ComposeError, got %v", err)
	}
}

func TestComposeCarousel_OneCardFails(t *testing.T) {
	c := NewComposer()
	cards := []Card{{Index: 0, HeaderType: HeaderImage, Body: "b", Button: CardButton{Text: "View", URL: "https://x"}}}
	_, err := c.ComposeCarousel("body", cards)
	if _, ok := err.(*Error); !ok {
		t.Fatalf("expected ComposeError for 1-card carousel, got %v", err)
	}
}

func TestComposeCarousel_TwoToTenCardsPass(t *testing.T) {
	c := NewComposer()
	cards := make([]Card, 10)
	for i := range cards {
		cards[i] = Card{Index: i, HeaderType: HeaderImage, Body: "b", Button: CardButton{Text: "View", URL: "https://x"}}
	}
	if _, err := c.ComposeCarousel("body", cards); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestComposeCarousel_MixedHeaderTypesFails(t *testing.T) {
	c := NewComposer()
	cards := []Card{
		{Index: 0, HeaderType: HeaderImage, Body: "b", Button: CardButton{Text: "View", URL: "https://x"}},
		{Index: 1, HeaderType: HeaderVideo, Body: "b", Button: CardButton{Text: "View", URL: "https://x"}},
	}
	_, err := c.ComposeCarousel("body", cards)
	if _, ok := err.(*Error); !ok {
		t.Fatalf("expected ComposeError for mixed header types, got %v", err)
	}
}

func TestComposeCarousel_DuplicateIndexFails(t *testing.T) {
	c := NewComposer()
	cards := []Card{
		{Index: 0, HeaderType: HeaderImage, Body: "b", Button: CardButton{Text: "View", URL: "https://x"}},
		{Index: 0, HeaderType: HeaderImage, Body: "b", Button: CardButton{Text: "View", URL: "https://x"}},
	}
	_, err := c.ComposeCarousel("body", cards)
	if _, ok := err.(*Error); !ok {
		t.Fatalf("expected ComposeError for duplicate index, got %v", err)
	}
}

func TestTruncateWordBoundary_CutsOnWordBoundaryDeterministically(t *testing.T) {
	s := "The quick brown fox jumps over the lazy dog"
	a := TruncateWordBoundary(s, 20)
	b := TruncateWordBoundary(s, 20)
	if a != b {
		t.Fatalf("expected deterministic truncation, got %q vs %q", a, b)
	}
	if len([]rune(a)) > 20 {
		t.Fatalf("truncated string %q exceeds limit", a)
	}
	if !strings.HasSuffix(a, "…") {
		t.Fatalf("expected ellipsis suffix, got %q", a)
	}
}

func TestTruncateWordBoundary_ShortStringUnchanged(t *testing.T) {
	s := "short"
	if got := TruncateWordBoundary(s, 20); got != s {
		t.Fatalf("expected unchanged string, got %q", got)
	}
}

func TestNormalizeProductFieldNames_AcceptsBothSpellings(t *testing.T) {
	a := NormalizeProductFieldNames(map[string]interface{}{"price": "10.00", "image_url": "http://x"})
	if a["basePrice"] != "10.00" || a["imageUrl"] != "http://x" {
		t.Fatalf("unexpected normalization: %+v", a)
	}
	b := NormalizeProductFieldNames(map[string]interface{}{"basePrice": "10.00", "imageUrl": "http://x"})
	if b["basePrice"] != "10.00" || b["imageUrl"] != "http://x" {
		t.Fatalf("unexpected normalization: %+v", b)
	}
}
