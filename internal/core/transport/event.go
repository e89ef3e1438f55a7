package transport

import (
	"encoding/json"
	"fmt"

	"whatsapp-commerce-gateway/internal/core/waproto"
)

// Event is the transport-agnostic inbound message the FSM consumes.
// Exactly one of the Body variants is populated, selected by Kind.
type Event struct {
	Tenant string
	User   string
	TS     int64
	Kind   EventKind
	Body   interface{} // one of Text, Button, ListSel, Location, Contact
}

type EventKind string

const (
	EventText     EventKind = "text"
	EventButton   EventKind = "button"
	EventListSel  EventKind = "list_sel"
	EventLocation EventKind = "location"
	EventContact  EventKind = "contact"
)

type Text struct {
	Text string
}

type Button struct {
	ID    string
	Title string
}

type ListSel struct {
	ID          string
	Title       string
	Description string
}

type Location struct {
	Lat     float64
	Lng     float64
	Name    string
	Address string
}

type ContactEntry struct {
	Name   string
	Phones []string
	Emails []string
}

type Contact struct {
	Contacts []ContactEntry
}

// cloudWebhook mirrors the subset of the WhatsApp Cloud API webhook
// envelope this adapter understands: a list of messages, nested three
// levels deep under entry/changes/value, matching the Cloud API's
// documented shape.
type cloudWebhook struct {
	Entry []struct {
		Changes []struct {
			Value struct {
				Messages []cloudMessage `json:"messages"`
			} `json:"value"`
		} `json:"changes"`
	} `json:"entry"`
}

type cloudMessage struct {
	From      string `json:"from"`
	Timestamp string `json:"timestamp"`
	Type      string `json:"type"`
	Text      struct {
		Body string `json:"body"`
	} `json:"text"`
	Interactive struct {
		Type        string `json:"type"`
		ButtonReply struct {
			ID    string `json:"id"`
			Title string `json:"title"`
		} `json:"button_reply"`
		ListReply struct {
			ID          string `json:"id"`
			Title       string `json:"title"`
			Description string `json:"description"`
		} `json:"list_reply"`
	} `json:"interactive"`
	Location struct {
		Latitude  float64 `json:"latitude"`
		Longitude float64 `json:"longitude"`
		Name      string  `json:"name"`
		Address   string  `json:"address"`
	} `json:"location"`
	Contacts []struct {
		Name struct {
			FormattedName string `json:"formatted_name"`
		} `json:"name"`
		Phones []struct {
			Phone string `json:"phone"`
		} `json:"phones"`
		Emails []struct {
			Email string `json:"email"`
		} `json:"emails"`
	} `json:"contacts"`
}

// ParseWebhook decodes a raw Cloud API webhook delivery for the given
// tenant into zero or more Events (a delivery batch may carry several
// messages). Deliveries carrying no message (e.g. status callbacks)
// yield an empty, non-error result.
func ParseWebhook(tenant string, raw []byte) ([]Event, error) {
	var payload cloudWebhook
	if err := json.Unmarshal(raw, &payload); err != nil {
		return nil, fmt.Errorf("transport: decode webhook: %w", err)
	}

	var events []Event
	for _, entry := range payload.Entry {
		for _, change := range entry.Changes {
			for _, msg := range change.Value.Messages {
				ev, err := eventFromMessage(tenant, msg)
				if err != nil {
					return nil, err
				}
				events = append(events, ev)
			}
		}
	}
	return events, nil
}

func eventFromMessage(tenant string, msg cloudMessage) (Event, error) {
	user := waproto.CleanPhoneNumber(msg.From)
	ts := parseUnixTimestamp(msg.Timestamp)

	base := Event{Tenant: tenant, User: user, TS: ts}

	switch msg.Type {
	case "text":
		base.Kind = EventText
		base.Body = Text{Text: msg.Text.Body}
	case "interactive":
		switch msg.Interactive.Type {
		case "button_reply":
			base.Kind = EventButton
			base.Body = Button{ID: msg.Interactive.ButtonReply.ID, Title: msg.Interactive.ButtonReply.Title}
		case "list_reply":
			base.Kind = EventListSel
			base.Body = ListSel{
				ID:          msg.Interactive.ListReply.ID,
				Title:       msg.Interactive.ListReply.Title,
				Description: msg.Interactive.ListReply.Description,
			}
		default:
			return Event{}, fmt.Errorf("transport: unsupported interactive reply type %q", msg.Interactive.Type)
		}
	case "location":
		base.Kind = EventLocation
		base.Body = Location{
			Lat:     msg.Location.Latitude,
			Lng:     msg.Location.Longitude,
			Name:    msg.Location.Name,
			Address: msg.Location.Address,
		}
	case "contacts":
		entries := make([]ContactEntry, len(msg.Contacts))
		for i, c := range msg.Contacts {
			phones := make([]string, len(c.Phones))
			for j, p := range c.Phones {
				phones[j] = p.Phone
			}
			emails := make([]string, len(c.Emails))
			for j, e := range c.Emails {
				emails[j] = e.Email
			}
			entries[i] = ContactEntry{Name: c.Name.FormattedName, Phones: phones, Emails: emails}
		}
		base.Kind = EventContact
		base.Body = Contact{Contacts: entries}
	default:
		return Event{}, fmt.Errorf("transport: unsupported message type %q", msg.Type)
	}

	return base, nil
}

func parseUnixTimestamp(s string) int64 {
	var ts int64
	_, _ = fmt.Sscanf(s, "%d", &ts)
	return ts
}
