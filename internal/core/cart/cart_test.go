package cart

import (
	"context"
	"testing"
	"time"

	"whatsapp-commerce-gateway/internal/core/ids"
	"whatsapp-commerce-gateway/internal/core/money"
)

type fakeLookup struct {
	products map[string]ProductInfo
	extras   map[string]string // extra id -> price string
}

func (f *fakeLookup) ResolveProduct(ctx context.Context, subDomain, localID, menuItemID string) (ProductInfo, error) {
	p, ok := f.products[menuItemID]
	if !ok {
		return ProductInfo{}, errNotFound
	}
	return p, nil
}

func (f *fakeLookup) ResolveExtrasPrice(ctx context.Context, subDomain, localID string, extraIDs []string) (money.Money, error) {
	total := money.Zero
	for _, id := range extraIDs {
		priceStr, ok := f.extras[id]
		if !ok {
			return money.Zero, errNotFound
		}
		p, err := money.New(priceStr)
		if err != nil {
			return money.Zero, err
		}
		total = total.Add(p)
	}
	return total, nil
}

type sentinelErr string

func (e sentinelErr) Error() string { return string(e) }

const errNotFound = sentinelErr("not found")

func newFixture() (*Engine, *Cart) {
	lookup := &fakeLookup{
		products: map[string]ProductInfo{
			"burger": {Name: "Burger", BasePrice: money.MustNew("10.00"), Available: true},
			"soda":   {Name: "Soda", BasePrice: money.MustNew("3.00"), Available: false},
		},
		extras: map[string]string{
			"cheese": "1.50",
			"bacon":  "2.00",
		},
	}
	engine := NewEngine(lookup)
	c := New("cart-1", time.Now())
	return engine, c
}

func TestAddItem_AppliesSizeMultiplierAndExtras(t *testing.T) {
	engine, c := newFixture()
	item, err := engine.AddItem(context.Background(), c, "acme", "br1", "burger", 2, SizeLarge, []string{"cheese", "bacon"}, "no onions", time.Now())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	// unit = 10.00*1.3 + 3.50 = 13.00 + 3.50 = 16.50; total = 33.00
	want := money.MustNew("33.00")
	if got := item.ItemTotal(); got.Cmp(want) != 0 {
		t.Fatalf("ItemTotal = %s, want %s", got, want)
	}
}

func TestAddItem_NeverMergesIdenticalLines(t *testing.T) {
	engine, c := newFixture()
	ctx := context.Background()
	_, err := engine.AddItem(ctx, c, "acme", "br1", "burger", 1, SizeNone, nil, "", time.Now())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	_, err = engine.AddItem(ctx, c, "acme", "br1", "burger", 1, SizeNone, nil, "", time.Now())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(c.Items) != 2 {
		t.Fatalf("expected 2 distinct lines, got %d", len(c.Items))
	}
	if c.Items[0].ID == c.Items[1].ID {
		t.Fatal("expected distinct CartItemIds")
	}
}

func TestAddItem_UnavailableFails(t *testing.T) {
	engine, c := newFixture()
	_, err := engine.AddItem(context.Background(), c, "acme", "br1", "soda", 1, SizeNone, nil, "", time.Now())
	cerr, ok := err.(*Error)
	if !ok || cerr.Kind != KindItemUnavailable {
		t.Fatalf("expected item_unavailable error, got %#v", err)
	}
}

func TestAddItem_InvalidQuantityFails(t *testing.T) {
	engine, c := newFixture()
	_, err := engine.AddItem(context.Background(), c, "acme", "br1", "burger", 0, SizeNone, nil, "", time.Now())
	cerr, ok := err.(*Error)
	if !ok || cerr.Kind != KindInvalidQuantity {
		t.Fatalf("expected invalid_quantity error, got %#v", err)
	}
}

func TestUpdateQuantity_ZeroRemoves(t *testing.T) {
	engine, c := newFixture()
	ctx := context.Background()
	item, _ := engine.AddItem(ctx, c, "acme", "br1", "burger", 1, SizeNone, nil, "", time.Now())
	if err := engine.UpdateQuantity(c, item.ID, 0, time.Now()); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !c.IsEmpty() {
		t.Fatal("expected cart to be empty after qty=0 update")
	}
}

func TestUpdateQuantity_NegativeFails(t *testing.T) {
	engine, c := newFixture()
	ctx := context.Background()
	item, _ := engine.AddItem(ctx, c, "acme", "br1", "burger", 1, SizeNone, nil, "", time.Now())
	err := engine.UpdateQuantity(c, item.ID, -1, time.Now())
	cerr, ok := err.(*Error)
	if !ok || cerr.Kind != KindInvalidQuantity {
		t.Fatalf("expected invalid_quantity error, got %#v", err)
	}
}

func TestSubtotal_SumsAllLines(t *testing.T) {
	engine, c := newFixture()
	ctx := context.Background()
	_, _ = engine.AddItem(ctx, c, "acme", "br1", "burger", 1, SizeMedium, nil, "", time.Now())
	_, _ = engine.AddItem(ctx, c, "acme", "br1", "burger", 1, SizeSmall, nil, "", time.Now())
	// 10.00 + 8.00 = 18.00
	want := money.MustNew("18.00")
	if got := c.Subtotal(); got.Cmp(want) != 0 {
		t.Fatalf("Subtotal = %s, want %s", got, want)
	}
}

func TestTotals_ComputesTax(t *testing.T) {
	engine, c := newFixture()
	ctx := context.Background()
	_, _ = engine.AddItem(ctx, c, "acme", "br1", "burger", 1, SizeMedium, nil, "", time.Now())
	totals, err := engine.Totals(c, "0.10")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if totals.Subtotal.Cmp(money.MustNew("10.00")) != 0 {
		t.Fatalf("subtotal = %s", totals.Subtotal)
	}
	if totals.Tax.Cmp(money.MustNew("1.00")) != 0 {
		t.Fatalf("tax = %s", totals.Tax)
	}
}

func TestRemoveItem_NotFoundFails(t *testing.T) {
	engine, c := newFixture()
	err := engine.RemoveItem(c, ids.NewCartItemId(), time.Now())
	cerr, ok := err.(*Error)
	if !ok || cerr.Kind != KindLineNotFound {
		t.Fatalf("expected line_not_found error, got %#v", err)
	}
}

func TestClear_EmptiesCart(t *testing.T) {
	engine, c := newFixture()
	ctx := context.Background()
	_, _ = engine.AddItem(ctx, c, "acme", "br1", "burger", 1, SizeNone, nil, "", time.Now())
	engine.Clear(c, time.Now())
	if !c.IsEmpty() {
		t.Fatal("expected cart empty after Clear")
	}
}
