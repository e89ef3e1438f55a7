// Package cart implements the shopping-cart data model and the
// CartEngine operations that mutate it: adding/removing items, resolving
// customizations against an injected menu lookup, and computing
// deterministic totals. Every amount is a money.Money; no arithmetic ever
// touches float64.
package cart

import (
	"context"
	"fmt"
	"time"

	"whatsapp-commerce-gateway/internal/core/ids"
	"whatsapp-commerce-gateway/internal/core/money"
)

// Size is one of the four customization sizes the engine understands.
type Size string

const (
	SizeNone   Size = ""
	SizeSmall  Size = "small"
	SizeMedium Size = "medium"
	SizeLarge  Size = "large"
	SizeXLarge Size = "xlarge"
)

// SizeMultipliers are applied to a product's base price before per-unit
// add-ons, per spec: small 0.8, medium 1.0 (and no-size), large 1.3,
// xlarge 1.5.
var SizeMultipliers = map[Size]string{
	SizeNone:   "1.0",
	SizeSmall:  "0.8",
	SizeMedium: "1.0",
	SizeLarge:  "1.3",
	SizeXLarge: "1.5",
}

// Customization captures the size, extras, and free-text note attached to
// one cart line.
type Customization struct {
	Size                Size
	Extras              []string // extra ids, order not meaningful
	SpecialInstructions string
	PriceAdjustment     money.Money // sum of extras' price, computed at add time
}

// CartItem is one line in a cart. Identity is per-add: two adds of the
// same menu item produce two distinct CartItems, so a customer can track
// repeats (e.g. "the first burger, no pickles") independently.
type CartItem struct {
	ID            ids.CartItemId
	MenuItemID    string
	Name          string
	BasePrice     money.Money
	Quantity      int
	Customization Customization
}

// ItemTotal computes (basePrice × sizeMultiplier + priceAdjustment) × quantity.
func (i CartItem) ItemTotal() money.Money {
	unit, err := i.BasePrice.MulFactor(SizeMultipliers[i.Customization.Size])
	if err != nil {
		unit = i.BasePrice
	}
	unit = unit.Add(i.Customization.PriceAdjustment)
	return unit.MulInt(i.Quantity)
}

// Cart is an ordered list of CartItems plus bookkeeping timestamps.
type Cart struct {
	ID        string
	Items     []CartItem
	CreatedAt time.Time
	UpdatedAt time.Time
}

// IsEmpty reports whether the cart has no items.
func (c *Cart) IsEmpty() bool { return len(c.Items) == 0 }

// Subtotal sums every item's ItemTotal.
func (c *Cart) Subtotal() money.Money {
	sum := money.Zero
	for _, item := range c.Items {
		sum = sum.Add(item.ItemTotal())
	}
	return sum
}

// New builds an empty cart, stamped with now.
func New(id string, now time.Time) *Cart {
	return &Cart{ID: id, CreatedAt: now, UpdatedAt: now}
}

// --- errors -----------------------------------------------------------

// Kind enumerates the CartEngine's own error taxonomy; separate from
// remote.Kind because these are local validation failures, never backend
// failures.
type Kind string

const (
	KindItemNotFound    Kind = "item_not_found"
	KindItemUnavailable Kind = "item_unavailable"
	KindInvalidQuantity Kind = "invalid_quantity"
	KindLineNotFound    Kind = "line_not_found"
)

// Error is the CartEngine's typed error.
type Error struct {
	Kind    Kind
	Message string
}

func (e *Error) Error() string { return fmt.Sprintf("cart: %s: %s", e.Kind, e.Message) }

func newError(kind Kind, format string, args ...interface{}) *Error {
	return &Error{Kind: kind, Message: fmt.Sprintf(format, args...)}
}

// --- menu lookup capability --------------------------------------------

// ProductInfo is everything the engine needs from the menu catalog to
// price and validate an add. Resolving this is the injected capability;
// the engine never talks to RemoteClient or the catalog cache directly.
type ProductInfo struct {
	Name      string
	BasePrice money.Money
	Available bool
}

// MenuLookup resolves a menu item and an extras price table. Both the
// extras table and the size multipliers above are tenant-configurable
// but the engine only ever reads them.
type MenuLookup interface {
	ResolveProduct(ctx context.Context, subDomain, localID, menuItemID string) (ProductInfo, error)
	ResolveExtrasPrice(ctx context.Context, subDomain, localID string, extraIDs []string) (money.Money, error)
}

// Engine implements the CartEngine operations of the spec: addItem,
// updateQuantity, removeItem, clear, summary, totals.
type Engine struct {
	lookup MenuLookup
}

// NewEngine builds a CartEngine backed by lookup.
func NewEngine(lookup MenuLookup) *Engine {
	return &Engine{lookup: lookup}
}

// AddItem resolves menuItemID via the injected MenuLookup and appends a
// new CartItem. It never merges with an existing identical line.
func (e *Engine) AddItem(ctx context.Context, c *Cart, subDomain, localID, menuItemID string, qty int, size Size, extras []string, instructions string, now time.Time) (CartItem, error) {
	if qty < 1 {
		return CartItem{}, newError(KindInvalidQuantity, "quantity must be >= 1, got %d", qty)
	}

	info, err := e.lookup.ResolveProduct(ctx, subDomain, localID, menuItemID)
	if err != nil {
		return CartItem{}, newError(KindItemNotFound, "menu item %q not found: %v", menuItemID, err)
	}
	if !info.Available {
		return CartItem{}, newError(KindItemUnavailable, "menu item %q is currently unavailable", menuItemID)
	}

	adjustment := money.Zero
	if len(extras) > 0 {
		adjustment, err = e.lookup.ResolveExtrasPrice(ctx, subDomain, localID, extras)
		if err != nil {
			return CartItem{}, newError(KindItemNotFound, "could not price extras: %v", err)
		}
	}

	item := CartItem{
		ID:         ids.NewCartItemId(),
		MenuItemID: menuItemID,
		Name:       info.Name,
		BasePrice:  info.BasePrice,
		Quantity:   qty,
		Customization: Customization{
			Size:                size,
			Extras:              extras,
			SpecialInstructions: instructions,
			PriceAdjustment:     adjustment,
		},
	}
	c.Items = append(c.Items, item)
	c.UpdatedAt = now
	return item, nil
}

// UpdateQuantity sets itemID's quantity; qty == 0 removes the line,
// qty < 0 is rejected.
func (e *Engine) UpdateQuantity(c *Cart, itemID ids.CartItemId, qty int, now time.Time) error {
	if qty < 0 {
		return newError(KindInvalidQuantity, "quantity must be >= 0, got %d", qty)
	}
	idx := indexOf(c, itemID)
	if idx < 0 {
		return newError(KindLineNotFound, "cart line %q not found", itemID)
	}
	if qty == 0 {
		c.Items = append(c.Items[:idx], c.Items[idx+1:]...)
	} else {
		c.Items[idx].Quantity = qty
	}
	c.UpdatedAt = now
	return nil
}

// RemoveItem drops itemID from the cart.
func (e *Engine) RemoveItem(c *Cart, itemID ids.CartItemId, now time.Time) error {
	idx := indexOf(c, itemID)
	if idx < 0 {
		return newError(KindLineNotFound, "cart line %q not found", itemID)
	}
	c.Items = append(c.Items[:idx], c.Items[idx+1:]...)
	c.UpdatedAt = now
	return nil
}

// Clear empties the cart.
func (e *Engine) Clear(c *Cart, now time.Time) {
	c.Items = nil
	c.UpdatedAt = now
}

func indexOf(c *Cart, itemID ids.CartItemId) int {
	for i, item := range c.Items {
		if item.ID == itemID {
			return i
		}
	}
	return -1
}

// Totals is the {subtotal, tax} pair computed for a given tax rate.
type Totals struct {
	Subtotal money.Money
	Tax      money.Money
}

// Totals computes subtotal and tax (round(subtotal × taxRate)) for c.
func (e *Engine) Totals(c *Cart, taxRate string) (Totals, error) {
	subtotal := c.Subtotal()
	tax, err := subtotal.MulFactor(taxRate)
	if err != nil {
		return Totals{}, fmt.Errorf("cart: invalid tax rate %q: %w", taxRate, err)
	}
	return Totals{Subtotal: subtotal, Tax: tax}, nil
}

// Summary renders a human-presentable line-by-line listing, used as the
// text fallback and as the body of reviewingCart composer payloads.
func (e *Engine) Summary(c *Cart) string {
	if c.IsEmpty() {
		return "Keranjang Anda masih kosong."
	}
	out := ""
	for _, item := range c.Items {
		line := fmt.Sprintf("%dx %s", item.Quantity, item.Name)
		if item.Customization.Size != SizeNone {
			line += fmt.Sprintf(" (%s)", item.Customization.Size)
		}
		line += fmt.Sprintf(" - %s\n", item.ItemTotal())
		out += line
	}
	out += fmt.Sprintf("Subtotal: %s", c.Subtotal())
	return out
}
