package delivery

import (
	"testing"

	"whatsapp-commerce-gateway/internal/core/money"
)

func testZone() *Zone {
	return &Zone{
		ID:                     "z1",
		BaseCost:               money.MustNew("2.00"),
		BaseDistanceKm:         3,
		IncrementalCost:        money.MustNew("0.50"),
		DistanceIncrementKm:    1,
		MinimumOrder:           money.MustNew("10.00"),
		AllowsFreeDelivery:     true,
		MinimumForFreeDelivery: money.MustNew("50.00"),
	}
}

func TestComputeFee_NilZoneIsOutOfZone(t *testing.T) {
	_, _, err := ComputeFee(nil, 5, money.MustNew("20.00"))
	derr, ok := err.(*Error)
	if !ok || derr.Kind != KindOutOfZone {
		t.Fatalf("expected out_of_zone, got %#v", err)
	}
}

func TestComputeFee_BelowMinimumOrder(t *testing.T) {
	zone := testZone()
	_, _, err := ComputeFee(zone, 2, money.MustNew("5.00"))
	derr, ok := err.(*Error)
	if !ok || derr.Kind != KindMinimumNotMet {
		t.Fatalf("expected minimum_not_met, got %#v", err)
	}
	if derr.Delta.Cmp(money.MustNew("5.00")) != 0 {
		t.Fatalf("expected delta 5.00, got %s", derr.Delta)
	}
}

func TestComputeFee_AtBaseDistanceExactlyUsesBaseCost(t *testing.T) {
	zone := testZone()
	fee, free, err := ComputeFee(zone, zone.BaseDistanceKm, money.MustNew("20.00"))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if free {
		t.Fatal("expected free not applied")
	}
	if fee.Cmp(zone.BaseCost) != 0 {
		t.Fatalf("fee = %s, want base cost %s", fee, zone.BaseCost)
	}
}

func TestComputeFee_JustOverBaseDistanceAddsOneIncrement(t *testing.T) {
	zone := testZone()
	fee, _, err := ComputeFee(zone, zone.BaseDistanceKm+0.01, money.MustNew("20.00"))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	want := zone.BaseCost.Add(zone.IncrementalCost) // ceil(0.01/1) = 1 step
	if fee.Cmp(want) != 0 {
		t.Fatalf("fee = %s, want %s", fee, want)
	}
}

func TestComputeFee_SteppedDistanceFormula(t *testing.T) {
	zone := testZone()
	// distance 6km: (6-3)/1 = 3 steps exactly
	fee, _, err := ComputeFee(zone, 6, money.MustNew("20.00"))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	want := zone.BaseCost.Add(zone.IncrementalCost.MulInt(3))
	if fee.Cmp(want) != 0 {
		t.Fatalf("fee = %s, want %s", fee, want)
	}
}

func TestComputeFee_FreeDeliveryAtExactThreshold(t *testing.T) {
	zone := testZone()
	fee, free, err := ComputeFee(zone, 10, zone.MinimumForFreeDelivery)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !free {
		t.Fatal("expected free delivery applied at exact threshold")
	}
	if !fee.IsZero() {
		t.Fatalf("expected zero fee, got %s", fee)
	}
}

func TestComputeFee_JustBelowFreeThresholdIsNotFree(t *testing.T) {
	zone := testZone()
	belowThreshold := zone.MinimumForFreeDelivery.Sub(money.MustNew("0.01"))
	fee, free, err := ComputeFee(zone, 10, belowThreshold)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if free {
		t.Fatal("expected free delivery not applied just below threshold")
	}
	if fee.IsZero() {
		t.Fatal("expected nonzero fee")
	}
}
