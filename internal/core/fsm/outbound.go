package fsm

import "whatsapp-commerce-gateway/internal/core/compose"

// OutboundKind tags which field of an Outbound is populated.
type OutboundKind string

const (
	OutText            OutboundKind = "text"
	OutButtons         OutboundKind = "buttons"
	OutList            OutboundKind = "list"
	OutCarousel        OutboundKind = "carousel"
	OutLocation        OutboundKind = "location"
	OutLocationRequest OutboundKind = "location_request"
	OutContacts        OutboundKind = "contacts"
)

// Outbound is one typed payload in an OutboundPlan. Exactly one pointer
// field matching Kind is non-nil.
type Outbound struct {
	Kind            OutboundKind
	Text            *compose.TextOut
	Buttons         *compose.ButtonsOut
	List            *compose.ListOut
	Carousel        *compose.CarouselOut
	Location        *compose.LocationOut
	LocationRequest *compose.LocationRequestOut
	Contacts        *compose.ContactsOut
}

// OutboundPlan is the ordered sequence of payloads one FSM step emits;
// the Dispatcher transmits the payloads in this order.
type OutboundPlan []Outbound

func outText(text string) Outbound {
	return Outbound{Kind: OutText, Text: &compose.TextOut{Text: text}}
}

func outButtons(b *compose.ButtonsOut) Outbound { return Outbound{Kind: OutButtons, Buttons: b} }
func outList(l *compose.ListOut) Outbound       { return Outbound{Kind: OutList, List: l} }
func outCarousel(c *compose.CarouselOut) Outbound {
	return Outbound{Kind: OutCarousel, Carousel: c}
}
func outLocation(l *compose.LocationOut) Outbound { return Outbound{Kind: OutLocation, Location: l} }
func outLocationRequest(l *compose.LocationRequestOut) Outbound {
	return Outbound{Kind: OutLocationRequest, LocationRequest: l}
}
func outContacts(c *compose.ContactsOut) Outbound { return Outbound{Kind: OutContacts, Contacts: c} }
