// Package ids holds the typed identifier primitives shared across the
// gateway: opaque tenant/branch/user references, server-assigned session
// and order ids, and client-generated idempotency keys.
package ids

import (
	"fmt"
	"regexp"

	"github.com/google/uuid"
)

// TenantId is an opaque per-business identifier.
type TenantId string

// BranchId is an opaque per-branch identifier, scoped to a TenantId.
type BranchId string

// UserRef is a WhatsApp end-user phone number in E.164-lax form
// (see Validate).
type UserRef string

var e164Lax = regexp.MustCompile(`^\+?\d{7,15}$`)

// Validate enforces spec.md's loose E.164 rule: an optional leading '+'
// followed by 7 to 15 digits. Stricter formats are left to configuration,
// not hardcoded here.
func (u UserRef) Validate() error {
	if !e164Lax.MatchString(string(u)) {
		return fmt.Errorf("ids: %q is not a valid phone reference", string(u))
	}
	return nil
}

// SessionId is assigned by the remote ConversationStore on first contact
// for a (tenant, user) pair.
type SessionId string

// OrderId is assigned by the remote backend on successful order creation.
type OrderId string

// CartItemId uniquely identifies one line in a cart; client-generated so
// that repeated adds of the same menu item are trackable independently.
type CartItemId string

// NewCartItemId mints a fresh CartItemId.
func NewCartItemId() CartItemId {
	return CartItemId(uuid.NewString())
}

// IdempotencyKey is attached to every order-create attempt so that
// RemoteClient retries over the transport can never duplicate an order.
type IdempotencyKey string

// NewIdempotencyKey mints a fresh IdempotencyKey. Callers rotate it only
// when the FSM judges the previous attempt logically dead (e.g. after a
// phone-collection detour), never on a bare transport retry.
func NewIdempotencyKey() IdempotencyKey {
	return IdempotencyKey(uuid.NewString())
}

func (k IdempotencyKey) String() string { return string(k) }
func (i OrderId) String() string        { return string(i) }
func (s SessionId) String() string      { return string(s) }
func (t TenantId) String() string       { return string(t) }
func (b BranchId) String() string       { return string(b) }
func (u UserRef) String() string        { return string(u) }
func (c CartItemId) String() string     { return string(c) }
