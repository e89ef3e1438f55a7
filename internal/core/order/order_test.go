package order

import (
	"testing"
	"time"

	"whatsapp-commerce-gateway/internal/core/ids"
	"whatsapp-commerce-gateway/internal/core/money"
)

func TestNew_TotalInvariant(t *testing.T) {
	o, err := New(ids.OrderId("o1"), nil, MethodPickup, PaymentCash, Customer{Phone: "+15551234567"}, "", 0,
		money.MustNew("20.00"), money.MustNew("2.00"), money.MustNew("0.00"), money.MustNew("0.00"), "0.10", time.Now())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	want := money.MustNew("22.00")
	if o.Total.Cmp(want) != 0 {
		t.Fatalf("total = %s, want %s", o.Total, want)
	}
}

func TestConfirm_OnlyFromPending(t *testing.T) {
	o, _ := New(ids.OrderId("o1"), nil, MethodPickup, PaymentCash, Customer{}, "", 0,
		money.Zero, money.Zero, money.Zero, money.Zero, "0", time.Now())
	if err := o.Confirm(time.Now()); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if o.Status != StatusConfirmed || o.ConfirmedAt == nil {
		t.Fatalf("expected confirmed with timestamp, got %+v", o)
	}
	if err := o.Confirm(time.Now()); err == nil {
		t.Fatal("expected error confirming twice")
	}
}

func TestAdvance_FollowsLifecycleThenRejectsTerminal(t *testing.T) {
	o, _ := New(ids.OrderId("o1"), nil, MethodPickup, PaymentCash, Customer{}, "", 0,
		money.Zero, money.Zero, money.Zero, money.Zero, "0", time.Now())
	_ = o.Confirm(time.Now())

	sequence := []Status{StatusPreparing, StatusReady, StatusDispatched, StatusDelivered}
	for _, want := range sequence {
		if err := o.Advance(); err != nil {
			t.Fatalf("unexpected error advancing to %s: %v", want, err)
		}
		if o.Status != want {
			t.Fatalf("status = %s, want %s", o.Status, want)
		}
	}
	if err := o.Advance(); err == nil {
		t.Fatal("expected error advancing past terminal status")
	}
}

func TestCancel_NotAllowedFromTerminal(t *testing.T) {
	o, _ := New(ids.OrderId("o1"), nil, MethodPickup, PaymentCash, Customer{}, "", 0,
		money.Zero, money.Zero, money.Zero, money.Zero, "0", time.Now())
	_ = o.Cancel()
	if o.Status != StatusCancelled {
		t.Fatalf("expected cancelled, got %s", o.Status)
	}
	if err := o.Cancel(); err == nil {
		t.Fatal("expected error cancelling an already-terminal order")
	}
}

func TestToDTOFromDTO_RoundTrip(t *testing.T) {
	o, _ := New(ids.OrderId("o1"), nil, MethodDelivery, PaymentCard, Customer{Name: "Budi", Phone: "+15551234567", Address: "Jl. Sudirman"}, "zone-1", 3.5,
		money.MustNew("20.00"), money.MustNew("2.00"), money.MustNew("5.00"), money.MustNew("1.00"), "0.10", time.Now())
	_ = o.Confirm(time.Now())

	dto := o.ToDTO()
	back, err := FromDTO(dto)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if back.Total.Cmp(o.Total) != 0 || back.Status != o.Status || back.Customer.Phone != o.Customer.Phone {
		t.Fatalf("round trip mismatch: got %+v, want %+v", back, o)
	}
}
