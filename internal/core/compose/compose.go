// Package compose implements MessageComposer: builds outbound WhatsApp
// interactive payloads (buttons, lists, carousels, location, contacts)
// and rejects anything that would violate the API's cardinality/length
// limits with a ComposeError rather than silently emitting a malformed
// payload.
package compose

import (
	"fmt"
	"strings"
)

// Kind enumerates the composer's error taxonomy.
type Kind string

const KindCompose Kind = "compose_error"

// Error is raised whenever a requested payload would violate a documented
// limit. Callers must downgrade to a plain TextOut on this error — the
// composer never returns a partially-valid payload.
type Error struct {
	Message string
}

func (e *Error) Error() string { return fmt.Sprintf("compose: %s: %s", KindCompose, e.Message) }

func newError(format string, args ...interface{}) *Error {
	return &Error{Message: fmt.Sprintf(format, args...)}
}

// --- payload types ------------------------------------------------------

// TextOut is the universal fallback payload.
type TextOut struct {
	Text string `json:"text"`
}

// Button is one button in a ButtonsOut payload.
type Button struct {
	ID    string `json:"id"`
	Title string `json:"title"`
}

// ButtonsOut is 1-3 buttons with an optional header/footer.
type ButtonsOut struct {
	Body    string   `json:"body"`
	Header  string   `json:"header,omitempty"`
	Footer  string   `json:"footer,omitempty"`
	Buttons []Button `json:"buttons"`
}

// Row is one row within a ListOut section.
type Row struct {
	ID          string `json:"id"`
	Title       string `json:"title"`
	Description string `json:"description,omitempty"`
}

// Section groups rows under a title within a ListOut.
type Section struct {
	Title string `json:"title"`
	Rows  []Row  `json:"rows"`
}

// ListOut is 1-10 sections, at most 10 rows total.
type ListOut struct {
	Body       string    `json:"body"`
	Header     string    `json:"header,omitempty"`
	Footer     string    `json:"footer,omitempty"`
	ActionText string    `json:"actionText"`
	Sections   []Section `json:"sections"`
}

// CardHeaderType distinguishes image vs video carousel cards; a single
// carousel may not mix the two.
type CardHeaderType string

const (
	HeaderImage CardHeaderType = "image"
	HeaderVideo CardHeaderType = "video"
)

// CardButton is a carousel card's single call-to-action.
type CardButton struct {
	Text string `json:"text"`
	URL  string `json:"url"`
}

// Card is one carousel card.
type Card struct {
	Index      int            `json:"index"`
	HeaderType CardHeaderType `json:"headerType"`
	HeaderLink string         `json:"headerLink"`
	Body       string         `json:"body"`
	Button     CardButton     `json:"button"`
}

// CarouselOut is 2-10 cards sharing one header type.
type CarouselOut struct {
	Body  string `json:"body"`
	Cards []Card `json:"cards"`
}

// LocationOut shares a pinned location.
type LocationOut struct {
	Lat     float64 `json:"lat"`
	Lng     float64 `json:"lng"`
	Name    string  `json:"name,omitempty"`
	Address string  `json:"address,omitempty"`
}

// LocationRequestOut asks the user to share their location.
type LocationRequestOut struct {
	Body string `json:"body"`
}

// Contact is one WhatsApp contact card entry.
type Contact struct {
	Name      string   `json:"name"`
	Phones    []string `json:"phones"`
	Emails    []string `json:"emails,omitempty"`
	Org       string   `json:"org,omitempty"`
	Addresses []string `json:"addresses,omitempty"`
}

// ContactsOut is one or more contacts.
type ContactsOut struct {
	Contacts []Contact `json:"contacts"`
}

// --- limits ---------------------------------------------------------------

const (
	maxButtonTitle = 20
	minButtons     = 1
	maxButtons     = 3
	maxButtonsBody = 1024
	maxHeaderLen   = 60
	maxFooterLen   = 60

	maxListSections  = 10
	maxListRows      = 10
	maxRowTitle      = 24
	maxRowDesc       = 72
	maxActionText    = 20

	minCards          = 2
	maxCards          = 10
	maxCarouselBody   = 1024
	maxCardBody       = 160
	maxCardButtonText = 20
)

// --- composer ---------------------------------------------------------------

// Composer builds and validates every outbound payload type.
type Composer struct{}

// NewComposer builds a Composer. It carries no state: every method is a
// pure function of its arguments.
func NewComposer() *Composer { return &Composer{} }

// ComposeButtons validates and builds a ButtonsOut.
func (c *Composer) ComposeButtons(body, header, footer string, buttons []Button) (*ButtonsOut, error) {
	if len(buttons) < minButtons || len(buttons) > maxButtons {
		return nil, newError("buttons count %d outside [%d,%d]", len(buttons), minButtons, maxButtons)
	}
	if len(body) == 0 || len(body) > maxButtonsBody {
		return nil, newError("body length %d outside [1,%d]", len(body), maxButtonsBody)
	}
	if len(header) > maxHeaderLen {
		return nil, newError("header length %d exceeds %d", len(header), maxHeaderLen)
	}
	if len(footer) > maxFooterLen {
		return nil, newError("footer length %d exceeds %d", len(footer), maxFooterLen)
	}
	for _, b := range buttons {
		if len(b.Title) < 1 || len(b.Title) > maxButtonTitle {
			return nil, newError("button title %q length outside [1,%d]", b.Title, maxButtonTitle)
		}
	}
	return &ButtonsOut{Body: body, Header: header, Footer: footer, Buttons: buttons}, nil
}

// ComposeList validates and builds a ListOut. Callers needing pagination
// for more than 10 rows must split into multiple ComposeList calls
// themselves (see spec.md §4.6's "More" row tie-break).
func (c *Composer) ComposeList(body, header, footer, actionText string, sections []Section) (*ListOut, error) {
	if len(sections) < 1 || len(sections) > maxListSections {
		return nil, newError("sections count %d outside [1,%d]", len(sections), maxListSections)
	}
	if len(actionText) < 1 || len(actionText) > maxActionText {
		return nil, newError("action text length %d outside [1,%d]", len(actionText), maxActionText)
	}
	totalRows := 0
	for _, s := range sections {
		totalRows += len(s.Rows)
		for _, r := range s.Rows {
			if len(r.Title) < 1 || len(r.Title) > maxRowTitle {
				return nil, newError("row title %q length outside [1,%d]", r.Title, maxRowTitle)
			}
			if len(r.Description) > maxRowDesc {
				return nil, newError("row description length %d exceeds %d", len(r.Description), maxRowDesc)
			}
		}
	}
	if totalRows > maxListRows {
		return nil, newError("total rows %d exceeds %d", totalRows, maxListRows)
	}
	return &ListOut{Body: body, Header: header, Footer: footer, ActionText: actionText, Sections: sections}, nil
}

// ComposeCarousel validates and builds a CarouselOut: 2-10 cards sharing
// one header type, unique zero-based indices.
func (c *Composer) ComposeCarousel(body string, cards []Card) (*CarouselOut, error) {
	if len(cards) < minCards || len(cards) > maxCards {
		return nil, newError("cards count %d outside [%d,%d]", len(cards), minCards, maxCards)
	}
	if len(body) > maxCarouselBody {
		return nil, newError("body length %d exceeds %d", len(body), maxCarouselBody)
	}

	headerType := cards[0].HeaderType
	seenIndex := make(map[int]bool, len(cards))
	for _, card := range cards {
		if card.HeaderType != headerType {
			return nil, newError("carousel mixes header types %q and %q", headerType, card.HeaderType)
		}
		if seenIndex[card.Index] {
			return nil, newError("duplicate card index %d", card.Index)
		}
		seenIndex[card.Index] = true
		if len(card.Body) > maxCardBody {
			return nil, newError("card body length %d exceeds %d", len(card.Body), maxCardBody)
		}
		if len(card.Button.Text) < 1 || len(card.Button.Text) > maxCardButtonText {
			return nil, newError("card button text %q length outside [1,%d]", card.Button.Text, maxCardButtonText)
		}
	}
	return &CarouselOut{Body: body, Cards: cards}, nil
}

// ComposeLocation builds a LocationOut; coordinates are never validated
// beyond presence — the FSM is responsible for ensuring they came from a
// real Location event.
func (c *Composer) ComposeLocation(lat, lng float64, name, address string) *LocationOut {
	return &LocationOut{Lat: lat, Lng: lng, Name: name, Address: address}
}

// ComposeLocationRequest builds a prompt-only location request.
func (c *Composer) ComposeLocationRequest(body string) *LocationRequestOut {
	return &LocationRequestOut{Body: body}
}

// ComposeContacts builds a ContactsOut from one or more contacts.
func (c *Composer) ComposeContacts(contacts []Contact) (*ContactsOut, error) {
	if len(contacts) == 0 {
		return nil, newError("at least one contact is required")
	}
	return &ContactsOut{Contacts: contacts}, nil
}

// TruncateWordBoundary truncates s to at most limit runes, cutting on the
// last word boundary before the limit and appending an ellipsis, so two
// calls on the same (s, limit) pair always agree (deterministic).
func TruncateWordBoundary(s string, limit int) string {
	runes := []rune(s)
	if len(runes) <= limit {
		return s
	}
	if limit <= 1 {
		return string(runes[:limit])
	}
	cut := limit - 1 // room for the ellipsis
	truncated := string(runes[:cut])
	if idx := strings.LastIndexByte(truncated, ' '); idx > 0 {
		truncated = truncated[:idx]
	}
	return truncated + "…"
}

// NormalizeProductFieldNames accepts either basePrice|price and
// imageUrl|image_url in a raw decoded-JSON map and returns the canonical
// internal shape ("basePrice", "imageUrl").
func NormalizeProductFieldNames(raw map[string]interface{}) map[string]interface{} {
	out := make(map[string]interface{}, len(raw))
	for k, v := range raw {
		out[k] = v
	}
	if _, ok := out["basePrice"]; !ok {
		if price, ok := out["price"]; ok {
			out["basePrice"] = price
		}
	}
	if _, ok := out["imageUrl"]; !ok {
		if img, ok := out["image_url"]; ok {
			out["imageUrl"] = img
		}
	}
	delete(out, "price")
	delete(out, "image_url")
	return out
}
