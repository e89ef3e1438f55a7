// Package intent implements IntentClassifier: a pure, deterministic,
// network-free classification of either raw user text or a structured
// event summary into one of a small set of intent tags.
package intent

import (
	"fmt"
	"regexp"
	"strings"
)

// Intent is the classifier's output tag.
type Intent string

const (
	Binary       Intent = "binary"
	Confirmation Intent = "confirmation"
	Choice       Intent = "choice"
	List         Intent = "list"
	Location     Intent = "location"
	None         Intent = "none"
)

// Result is the classifier's full output: the Intent tag plus, for the
// structured-prefix cases, the extracted id/fields.
type Result struct {
	Intent   Intent
	ButtonID string // set when Intent == "button:<id>" conceptually; Tag carries the full form
	Tag      string // the exact tag the spec documents, e.g. "button:confirm", "listSel:add_product_1"
	Lat, Lng float64
	Address  string
}

var (
	buttonPrefix   = regexp.MustCompile(`^\[Button clicked: (.+?) \(ID: (.+?)\)\]$`)
	listSelPrefix  = regexp.MustCompile(`^\[List selection: (.+?) \(ID: (.+?)\)\]$`)
	locationPrefix = regexp.MustCompile(`^\[Location shared: (.*?) at \((-?[0-9.]+),(-?[0-9.]+)\)\s*[–-]\s*(.*)\]$`)
	contactPrefix  = regexp.MustCompile(`^\[Contact\(s\) shared: (.+)\]$`)
)

// KeywordSets holds the (tenant-configurable) keyword lists the
// classifier matches against plain text. DefaultKeywordSets reproduces
// spec.md's documented defaults.
type KeywordSets struct {
	Binary       []string
	Confirmation []string
	List         []string
	Location     []string
}

// DefaultKeywordSets is the keyword configuration spec.md §4.5 documents.
func DefaultKeywordSets() KeywordSets {
	return KeywordSets{
		Binary:       []string{"do you", "would you", "should i", "shall we", "can you help", "ready to", "want me to", "interested in"},
		Confirmation: []string{"confirm", "verify", "are you sure", "proceed", "ready to"},
		List:         []string{"menu", "show me", "what are", "list", "browse", "options", "catalog"},
		Location:     []string{"delivery", "where", "address", "location"},
	}
}

// Classifier is a pure function object: same input always yields the
// same output, and it never touches the network.
type Classifier struct {
	keywords KeywordSets
}

// NewClassifier builds a Classifier with the given keyword configuration.
func NewClassifier(keywords KeywordSets) *Classifier {
	return &Classifier{keywords: keywords}
}

// Classify applies the structured-prefix rules first (priority 1), then
// the keyword sets (priority 2), then falls back to None.
func (c *Classifier) Classify(input string) Result {
	if m := buttonPrefix.FindStringSubmatch(input); m != nil {
		return Result{Intent: Choice, ButtonID: m[2], Tag: fmt.Sprintf("button:%s", m[2])}
	}
	if m := listSelPrefix.FindStringSubmatch(input); m != nil {
		return Result{Intent: Choice, Tag: fmt.Sprintf("listSel:%s", m[2])}
	}
	if m := locationPrefix.FindStringSubmatch(input); m != nil {
		var lat, lng float64
		fmt.Sscanf(m[2], "%g", &lat)
		fmt.Sscanf(m[3], "%g", &lng)
		return Result{Intent: Location, Tag: "locationShared", Lat: lat, Lng: lng, Address: m[4]}
	}
	if contactPrefix.MatchString(input) {
		return Result{Intent: Choice, Tag: "contactShared"}
	}

	text := strings.ToLower(strings.TrimSpace(input))
	switch {
	case containsAny(text, c.keywords.Binary):
		return Result{Intent: Binary, Tag: string(Binary)}
	case containsAny(text, c.keywords.Confirmation):
		return Result{Intent: Confirmation, Tag: string(Confirmation)}
	case containsAny(text, c.keywords.List):
		return Result{Intent: List, Tag: string(List)}
	case containsAny(text, c.keywords.Location):
		return Result{Intent: Location, Tag: string(Location)}
	default:
		return Result{Intent: None, Tag: string(None)}
	}
}

func containsAny(text string, keywords []string) bool {
	for _, kw := range keywords {
		if strings.Contains(text, kw) {
			return true
		}
	}
	return false
}
