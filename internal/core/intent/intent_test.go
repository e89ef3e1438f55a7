package intent

import "testing"

func classifier() *Classifier { return NewClassifier(DefaultKeywordSets()) }

func TestClassify_StructuredButtonPrefix(t *testing.T) {
	r := classifier().Classify("[Button clicked: Confirm (ID: confirm)]")
	if r.Intent != Choice || r.Tag != "button:confirm" {
		t.Fatalf("unexpected result: %+v", r)
	}
}

func TestClassify_StructuredListSelPrefix(t *testing.T) {
	r := classifier().Classify("[List selection: Burger (ID: add_product_PROD1)]")
	if r.Intent != Choice || r.Tag != "listSel:add_product_PROD1" {
		t.Fatalf("unexpected result: %+v", r)
	}
}

func TestClassify_StructuredLocationPrefix(t *testing.T) {
	r := classifier().Classify("[Location shared: Home at (-12.0464,-77.0428) – Jl. Sudirman]")
	if r.Intent != Location || r.Tag != "locationShared" {
		t.Fatalf("unexpected result: %+v", r)
	}
	if r.Lat != -12.0464 || r.Lng != -77.0428 {
		t.Fatalf("unexpected coords: %+v", r)
	}
}

func TestClassify_KeywordList(t *testing.T) {
	r := classifier().Classify("Show me the menu please")
	if r.Intent != List {
		t.Fatalf("expected list intent, got %+v", r)
	}
}

func TestClassify_KeywordConfirmation(t *testing.T) {
	r := classifier().Classify("yes, please confirm")
	if r.Intent != Confirmation {
		t.Fatalf("expected confirmation intent, got %+v", r)
	}
}

func TestClassify_NoMatchIsNone(t *testing.T) {
	r := classifier().Classify("asdkjfh qwer")
	if r.Intent != None {
		t.Fatalf("expected none, got %+v", r)
	}
}

func TestClassify_IsPureAndDeterministic(t *testing.T) {
	c := classifier()
	a := c.Classify("show me the menu")
	b := c.Classify("show me the menu")
	if a != b {
		t.Fatalf("expected identical results for identical input: %+v vs %+v", a, b)
	}
}

func TestClassify_StructuredPrefixTakesPriorityOverKeywords(t *testing.T) {
	// "menu" keyword present inside the title, but structured prefix wins.
	r := classifier().Classify("[Button clicked: Show menu (ID: show_menu)]")
	if r.Intent != Choice || r.Tag != "button:show_menu" {
		t.Fatalf("expected structured prefix priority, got %+v", r)
	}
}
