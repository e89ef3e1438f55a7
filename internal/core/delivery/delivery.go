// Package delivery implements DeliveryPricer: zone-based fee computation,
// the stepped mileage formula, and the free-delivery / minimum-order
// predicates. Address resolution is delegated to RemoteClient; this
// package only interprets the result.
package delivery

import (
	"context"
	"fmt"
	"math"

	"whatsapp-commerce-gateway/internal/core/money"
	"whatsapp-commerce-gateway/internal/core/remote"
)

// Zone mirrors spec.md's delivery-zone entity, converted from the remote
// wire shape (remote.Zone, all string prices) into Money once at the
// boundary.
type Zone struct {
	ID                     string
	Name                   string
	BaseCost               money.Money
	BaseDistanceKm         float64
	IncrementalCost        money.Money
	DistanceIncrementKm    float64
	MinimumOrder           money.Money
	AllowsFreeDelivery     bool
	MinimumForFreeDelivery money.Money
}

// FromRemote converts the wire Zone into the pricer's Zone. The wire shape
// carries no distance increment, so DistanceIncrementKm is always 1km.
func FromRemote(z remote.Zone) (Zone, error) {
	base, err := money.New(z.BaseFee)
	if err != nil {
		return Zone{}, fmt.Errorf("delivery: invalid baseFee %q: %w", z.BaseFee, err)
	}
	perKm, err := money.New(z.PerKmFee)
	if err != nil {
		return Zone{}, fmt.Errorf("delivery: invalid perKmFee %q: %w", z.PerKmFee, err)
	}
	baseDistance := parseFloatOr(z.BaseDistanceKm, 0)

	out := Zone{
		ID:                  z.ID,
		Name:                z.Name,
		BaseCost:            base,
		BaseDistanceKm:      baseDistance,
		IncrementalCost:     perKm,
		DistanceIncrementKm: 1,
	}
	if z.MinimumOrder != "" {
		minOrder, err := money.New(z.MinimumOrder)
		if err != nil {
			return Zone{}, fmt.Errorf("delivery: invalid minimumOrder %q: %w", z.MinimumOrder, err)
		}
		out.MinimumOrder = minOrder
	}
	if z.MinimumForFreeDelivery != "" {
		min, err := money.New(z.MinimumForFreeDelivery)
		if err != nil {
			return Zone{}, fmt.Errorf("delivery: invalid minimumForFreeDelivery %q: %w", z.MinimumForFreeDelivery, err)
		}
		out.MinimumForFreeDelivery = min
		out.AllowsFreeDelivery = true
	}
	return out, nil
}

func parseFloatOr(s string, def float64) float64 {
	var f float64
	if _, err := fmt.Sscanf(s, "%g", &f); err != nil {
		return def
	}
	return f
}

// Kind enumerates the pricer's own error taxonomy.
type Kind string

const (
	KindOutOfZone     Kind = "out_of_zone"
	KindMinimumNotMet Kind = "minimum_not_met"
)

// Error is the DeliveryPricer's typed error.
type Error struct {
	Kind    Kind
	Message string
	// Delta is set for KindMinimumNotMet: the additional subtotal needed
	// to reach zone.MinimumOrder, so the caller can surface "add N more".
	Delta money.Money
}

func (e *Error) Error() string { return fmt.Sprintf("delivery: %s: %s", e.Kind, e.Message) }

// Pricer implements computeFee and validateAddress.
type Pricer struct {
	client *remote.Client
}

// NewPricer builds a Pricer backed by a RemoteClient for address
// validation.
func NewPricer(client *remote.Client) *Pricer {
	return &Pricer{client: client}
}

// ComputeFee implements the stepped formula and the free-delivery /
// minimum-order predicates. zone == nil means no delivery zone resolved
// (caller already knows this is OutOfZone and shouldn't call ComputeFee
// at all, but a nil zone here still returns the documented error instead
// of panicking).
func ComputeFee(zone *Zone, distanceKm float64, subtotal money.Money) (fee money.Money, freeApplied bool, err error) {
	if zone == nil {
		return money.Zero, false, &Error{Kind: KindOutOfZone, Message: "no zone resolved for this address"}
	}

	if !zone.MinimumOrder.IsZero() && subtotal.LessThan(zone.MinimumOrder) {
		delta := zone.MinimumOrder.Sub(subtotal)
		return money.Zero, false, &Error{
			Kind:    KindMinimumNotMet,
			Message: fmt.Sprintf("subtotal %s is below the zone minimum %s", subtotal, zone.MinimumOrder),
			Delta:   delta,
		}
	}

	if zone.AllowsFreeDelivery && !zone.MinimumForFreeDelivery.IsZero() && subtotal.GreaterThanOrEqual(zone.MinimumForFreeDelivery) {
		return money.Zero, true, nil
	}

	if distanceKm <= zone.BaseDistanceKm {
		return zone.BaseCost, false, nil
	}

	increment := zone.DistanceIncrementKm
	if increment <= 0 {
		increment = 1
	}
	steps := math.Ceil((distanceKm - zone.BaseDistanceKm) / increment)
	extra := zone.IncrementalCost.MulInt(int(steps))
	return zone.BaseCost.Add(extra), false, nil
}

// ValidateAddress resolves a delivery location to a zone + distance via
// RemoteClient, translating a missing zone into OutOfZone.
func (p *Pricer) ValidateAddress(ctx context.Context, subDomain, localID string, restaurant, delivery remote.GeoPoint) (*Zone, float64, error) {
	result, err := p.client.CalculateDeliveryCost(ctx, subDomain, localID, restaurant, delivery)
	if err != nil {
		return nil, 0, err
	}
	if result.Zone == nil {
		return nil, result.DistanceKm, &Error{Kind: KindOutOfZone, Message: "delivery location is outside all configured zones"}
	}
	zone, err := FromRemote(*result.Zone)
	if err != nil {
		return nil, 0, err
	}
	return &zone, result.DistanceKm, nil
}
