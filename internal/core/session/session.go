// Package session defines the per-(tenant,user) conversation context the
// FSM advances. A Session belongs to exactly one dispatcher worker at a
// time; it is never shared across goroutines concurrently.
package session

import (
	"time"

	"whatsapp-commerce-gateway/internal/core/cart"
	"whatsapp-commerce-gateway/internal/core/ids"
	"whatsapp-commerce-gateway/internal/core/money"
)

// OrderStage is the FSM's position within one conversation's order
// lifecycle. Distinct from order.Status, which tracks the backend order
// after creation.
type OrderStage string

const (
	StageBrowsing               OrderStage = "browsing"
	StageSelectingCategory      OrderStage = "selectingCategory"
	StageViewingProducts        OrderStage = "viewingProducts"
	StageCustomizing            OrderStage = "customizing"
	StageReviewingCart          OrderStage = "reviewingCart"
	StageCheckoutStart          OrderStage = "checkoutStart"
	StageAwaitingDeliveryMethod OrderStage = "awaitingDeliveryMethod"
	StageAwaitingLocation       OrderStage = "awaitingLocation"
	StageAwaitingPhone          OrderStage = "awaitingPhone"
	StageAwaitingPayment        OrderStage = "awaitingPayment"
	StageConfirming             OrderStage = "confirming"
	StageConfirmed              OrderStage = "confirmed"
	StageTracking               OrderStage = "tracking"
)

// trailCap bounds messageTrail so a long-lived session never grows
// memory unboundedly; only the most recent exchanges matter for
// recap/debugging.
const trailCap = 20

// TrailEntry is one summarized exchange kept for recap/debugging; it is
// not the system of record (ConversationStore is) and may be discarded
// on eviction.
type TrailEntry struct {
	Direction string // "user" | "bot"
	Summary   string
	At        time.Time
}

// PendingOrder carries everything accumulated across checkoutStart…
// confirming before an order is actually created.
type PendingOrder struct {
	DeliveryMethod   string
	PaymentMethod    string
	CustomerName     string
	CustomerPhone    string
	CustomerAddress  string
	DeliveryLat      float64
	DeliveryLng      float64
	ZoneID           string
	DistanceKm       float64
	DeliveryFee      money.Money
	FreeApplied      bool
	IdempotencyKey   ids.IdempotencyKey
	OrderCreateTries int
}

// Flags carries small named booleans the FSM consults across steps
// without growing the struct for every one-off condition (e.g. whether
// the out-of-zone pickup suggestion has already been shown once).
type Flags map[string]bool

// Session is the per-(tenant,user) conversation context.
type Session struct {
	ID             ids.SessionId
	Tenant         ids.TenantId
	User           ids.UserRef
	Stage          OrderStage
	Cart           *cart.Cart
	Pending        *PendingOrder
	OrderID        ids.OrderId
	LastIntent     string
	Flags          Flags
	LastActivityAt time.Time
	CreatedAt      time.Time
	messageTrail   []TrailEntry
	CategoryOffset int // index of the next unshown product for pagination
	LastCategoryID string
}

// New creates a fresh Session in the browsing stage with an empty cart.
func New(id ids.SessionId, tenant ids.TenantId, user ids.UserRef, now time.Time) *Session {
	return &Session{
		ID:             id,
		Tenant:         tenant,
		User:           user,
		Stage:          StageBrowsing,
		Cart:           cart.New(string(id), now),
		Flags:          make(Flags),
		LastActivityAt: now,
		CreatedAt:      now,
	}
}

// Touch records activity, updating LastActivityAt for TTL purposes.
func (s *Session) Touch(now time.Time) { s.LastActivityAt = now }

// Expired reports whether the session has been idle longer than ttl.
func (s *Session) Expired(now time.Time, ttl time.Duration) bool {
	return now.Sub(s.LastActivityAt) > ttl
}

// AppendTrail records a summarized exchange, evicting the oldest entry
// once the bounded ring is full.
func (s *Session) AppendTrail(direction, summary string, at time.Time) {
	s.messageTrail = append(s.messageTrail, TrailEntry{Direction: direction, Summary: summary, At: at})
	if len(s.messageTrail) > trailCap {
		s.messageTrail = s.messageTrail[len(s.messageTrail)-trailCap:]
	}
}

// Trail returns a read-only snapshot of the recent message trail.
func (s *Session) Trail() []TrailEntry {
	out := make([]TrailEntry, len(s.messageTrail))
	copy(out, s.messageTrail)
	return out
}

// Reset clears pendingOrder and returns the session to browsing, per the
// TTL-expiry transition; the cart is retained until an explicit clear.
func (s *Session) Reset(now time.Time) {
	s.Stage = StageBrowsing
	s.Pending = nil
	s.OrderID = ""
	s.LastIntent = ""
	s.CategoryOffset = 0
	s.LastCategoryID = ""
	s.Touch(now)
}
