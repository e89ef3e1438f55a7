// Package order implements the Order entity: its status lifecycle,
// invariants, and the cart-snapshot-is-immutable-once-confirmed rule.
package order

import (
	"fmt"
	"time"

	"whatsapp-commerce-gateway/internal/core/cart"
	"whatsapp-commerce-gateway/internal/core/ids"
	"whatsapp-commerce-gateway/internal/core/money"
)

// Status is the order lifecycle state.
type Status string

const (
	StatusPending     Status = "pending"
	StatusConfirmed   Status = "confirmed"
	StatusPreparing   Status = "preparing"
	StatusReady       Status = "ready"
	StatusDispatched  Status = "dispatched"
	StatusDelivered   Status = "delivered"
	StatusCancelled   Status = "cancelled"
	StatusRejected    Status = "rejected"
)

// terminal states: no further transition is valid out of these.
var terminal = map[Status]bool{
	StatusDelivered: true,
	StatusCancelled: true,
	StatusRejected:  true,
}

// forward is the documented happy-path lifecycle; cancellation can occur
// from any non-terminal state and rejection only from pending, and
// neither is listed here.
var forward = map[Status]Status{
	StatusPending:    StatusConfirmed,
	StatusConfirmed:  StatusPreparing,
	StatusPreparing:  StatusReady,
	StatusReady:      StatusDispatched,
	StatusDispatched: StatusDelivered,
}

// DeliveryMethod mirrors spec.md's fulfillment type.
type DeliveryMethod string

const (
	MethodDelivery DeliveryMethod = "delivery"
	MethodPickup   DeliveryMethod = "pickup"
	MethodDineIn   DeliveryMethod = "dinein"
)

// PaymentMethod mirrors the order-create payload's allowed values.
type PaymentMethod string

const (
	PaymentCash         PaymentMethod = "cash"
	PaymentCard         PaymentMethod = "card"
	PaymentYape         PaymentMethod = "yape"
	PaymentPlin         PaymentMethod = "plin"
	PaymentMercadoPago  PaymentMethod = "mercado_pago"
	PaymentBankTransfer PaymentMethod = "bank_transfer"
)

// Customer is the buyer's contact/delivery detail set.
type Customer struct {
	Name    string
	Phone   ids.UserRef
	Address string
}

// Order is the confirmed (or in-flight) purchase: a cart snapshot plus
// pricing, fulfillment, and lifecycle fields.
type Order struct {
	ID                 ids.OrderId
	CartSnapshot        []cart.CartItem
	Status             Status
	DeliveryMethod      DeliveryMethod
	PaymentMethod       PaymentMethod
	Customer           Customer
	DeliveryZoneID      string
	DeliveryDistanceKm  float64
	Subtotal           money.Money
	TaxRate            string
	TaxAmount          money.Money
	DeliveryFee        money.Money
	Discount           money.Money
	Total              money.Money
	CreatedAt          time.Time
	ConfirmedAt        *time.Time
	EstimatedReadyAt   *time.Time
}

// Kind enumerates the order package's own error taxonomy.
type Kind string

const (
	KindInvalidTransition Kind = "invalid_transition"
	KindInvariantViolated Kind = "invariant_violated"
)

// Error is the order package's typed error.
type Error struct {
	Kind    Kind
	Message string
}

func (e *Error) Error() string { return fmt.Sprintf("order: %s: %s", e.Kind, e.Message) }

// New builds a pending Order from a cart snapshot and computed totals,
// enforcing total = subtotal + taxAmount + deliveryFee - discount.
func New(id ids.OrderId, snapshot []cart.CartItem, method DeliveryMethod, payment PaymentMethod, customer Customer, zoneID string, distanceKm float64, subtotal, taxAmount, deliveryFee, discount money.Money, taxRate string, now time.Time) (*Order, error) {
	total := subtotal.Add(taxAmount).Add(deliveryFee).Sub(discount)
	if total.IsNegative() {
		return nil, &Error{Kind: KindInvariantViolated, Message: "computed total is negative"}
	}

	return &Order{
		ID:                 id,
		CartSnapshot:       append([]cart.CartItem(nil), snapshot...),
		Status:             StatusPending,
		DeliveryMethod:     method,
		PaymentMethod:      payment,
		Customer:           customer,
		DeliveryZoneID:     zoneID,
		DeliveryDistanceKm: distanceKm,
		Subtotal:           subtotal,
		TaxRate:            taxRate,
		TaxAmount:          taxAmount,
		DeliveryFee:        deliveryFee,
		Discount:           discount,
		Total:              total,
		CreatedAt:          now,
	}, nil
}

// Confirm stamps the order confirmed. Once confirmed, CartSnapshot must
// never be mutated by callers. New copies the items into a slice of its
// own, so later edits to the live cart.Cart's items do not reach it.
func (o *Order) Confirm(now time.Time) error {
	if o.Status != StatusPending {
		return &Error{Kind: KindInvalidTransition, Message: fmt.Sprintf("cannot confirm from status %q", o.Status)}
	}
	o.Status = StatusConfirmed
	o.ConfirmedAt = &now
	return nil
}

// Advance moves the order to the next forward lifecycle status.
func (o *Order) Advance() error {
	if terminal[o.Status] {
		return &Error{Kind: KindInvalidTransition, Message: fmt.Sprintf("status %q is terminal", o.Status)}
	}
	next, ok := forward[o.Status]
	if !ok {
		return &Error{Kind: KindInvalidTransition, Message: fmt.Sprintf("no forward transition from %q", o.Status)}
	}
	o.Status = next
	return nil
}

// Cancel moves a non-terminal order to cancelled.
func (o *Order) Cancel() error {
	if terminal[o.Status] {
		return &Error{Kind: KindInvalidTransition, Message: fmt.Sprintf("cannot cancel from terminal status %q", o.Status)}
	}
	o.Status = StatusCancelled
	return nil
}

// Reject moves a pending order to rejected (e.g. backend refused
// creation after retries were exhausted).
func (o *Order) Reject() error {
	if o.Status != StatusPending {
		return &Error{Kind: KindInvalidTransition, Message: fmt.Sprintf("cannot reject from status %q", o.Status)}
	}
	o.Status = StatusRejected
	return nil
}

// DTO is the serializable shape of an Order, used at RemoteClient and
// ConversationStore boundaries.
type DTO struct {
	ID                 string    `json:"id"`
	Status             string    `json:"status"`
	DeliveryMethod     string    `json:"deliveryMethod"`
	PaymentMethod      string    `json:"paymentMethod"`
	CustomerName       string    `json:"customerName"`
	CustomerPhone      string    `json:"customerPhone"`
	CustomerAddress    string    `json:"customerAddress,omitempty"`
	DeliveryZoneID     string    `json:"deliveryZoneId,omitempty"`
	DeliveryDistanceKm float64   `json:"deliveryDistanceKm,omitempty"`
	Subtotal           string    `json:"subtotal"`
	TaxRate            string    `json:"taxRate"`
	TaxAmount          string    `json:"taxAmount"`
	DeliveryFee        string    `json:"deliveryFee"`
	Discount           string    `json:"discount"`
	Total              string    `json:"total"`
	CreatedAt          time.Time `json:"createdAt"`
	ConfirmedAt        *time.Time `json:"confirmedAt,omitempty"`
}

// ToDTO converts o into its serializable form. cart.CartItem itself isn't
// part of the DTO; only the priced totals round-trip, matching what the
// remote backend actually persists.
func (o *Order) ToDTO() DTO {
	return DTO{
		ID:                 o.ID.String(),
		Status:             string(o.Status),
		DeliveryMethod:     string(o.DeliveryMethod),
		PaymentMethod:      string(o.PaymentMethod),
		CustomerName:       o.Customer.Name,
		CustomerPhone:      o.Customer.Phone.String(),
		CustomerAddress:    o.Customer.Address,
		DeliveryZoneID:     o.DeliveryZoneID,
		DeliveryDistanceKm: o.DeliveryDistanceKm,
		Subtotal:           o.Subtotal.String(),
		TaxRate:            o.TaxRate,
		TaxAmount:          o.TaxAmount.String(),
		DeliveryFee:        o.DeliveryFee.String(),
		Discount:           o.Discount.String(),
		Total:              o.Total.String(),
		CreatedAt:          o.CreatedAt,
		ConfirmedAt:        o.ConfirmedAt,
	}
}

// FromDTO reconstructs the priced/lifecycle fields of an Order from its
// DTO. CartSnapshot is not recoverable from the DTO alone (the backend
// doesn't echo line items back in this minimal shape) and is left nil;
// callers that need it keep their own copy from order creation time.
func FromDTO(d DTO) (*Order, error) {
	subtotal, err := money.New(d.Subtotal)
	if err != nil {
		return nil, fmt.Errorf("order: invalid subtotal in DTO: %w", err)
	}
	tax, err := money.New(d.TaxAmount)
	if err != nil {
		return nil, fmt.Errorf("order: invalid taxAmount in DTO: %w", err)
	}
	fee, err := money.New(d.DeliveryFee)
	if err != nil {
		return nil, fmt.Errorf("order: invalid deliveryFee in DTO: %w", err)
	}
	discount, err := money.New(d.Discount)
	if err != nil {
		return nil, fmt.Errorf("order: invalid discount in DTO: %w", err)
	}
	total, err := money.New(d.Total)
	if err != nil {
		return nil, fmt.Errorf("order: invalid total in DTO: %w", err)
	}

	return &Order{
		ID:                 ids.OrderId(d.ID),
		Status:             Status(d.Status),
		DeliveryMethod:     DeliveryMethod(d.DeliveryMethod),
		PaymentMethod:      PaymentMethod(d.PaymentMethod),
		Customer: Customer{
			Name:    d.CustomerName,
			Phone:   ids.UserRef(d.CustomerPhone),
			Address: d.CustomerAddress,
		},
		DeliveryZoneID:     d.DeliveryZoneID,
		DeliveryDistanceKm: d.DeliveryDistanceKm,
		Subtotal:           subtotal,
		TaxRate:            d.TaxRate,
		TaxAmount:          tax,
		DeliveryFee:        fee,
		Discount:           discount,
		Total:              total,
		CreatedAt:          d.CreatedAt,
		ConfirmedAt:        d.ConfirmedAt,
	}, nil
}
