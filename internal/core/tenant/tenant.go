// Package tenant models TenantLookup: the external collaborator that
// resolves a (subDomain, localId) branch configuration for a tenant.
// spec.md §1 treats the tenant/business configuration store as an
// external typed interface, not something this module persists — there
// is no SQL or file-backed implementation here, only the capability
// contract and a fixed in-memory implementation useful for tests and for
// single-tenant deployments.
package tenant

import (
	"context"
	"fmt"
	"sync"
)

// Config is everything the rest of the engine needs to know about one
// tenant branch: which remote subdomain/location it maps to, its pricing
// knobs, and its restaurant origin for distance calculations.
type Config struct {
	TenantID      string
	SubDomain     string
	LocalID       string
	RestaurantLat float64
	RestaurantLng float64
	TaxRate       string
	PhraseEnabled bool
}

// Lookup resolves tenant configuration. The conversation engine never
// reaches into a database for this — it asks Lookup, exactly as spec.md
// models `TenantLookup` as an external collaborator.
type Lookup interface {
	Resolve(ctx context.Context, tenantID string) (Config, error)
	ResolveByPhone(ctx context.Context, phone string) (Config, error)
}

// StaticLookup is a fixed in-memory Lookup: every tenant it knows about
// is registered up front. Useful for single-tenant deployments and for
// tests; a multi-tenant production deployment supplies its own Lookup
// (e.g. backed by the business's admin API) without this module needing
// to change.
type StaticLookup struct {
	mu      sync.RWMutex
	byID    map[string]Config
	byPhone map[string]string // phone -> tenantID, for webhook routing by sender
}

// NewStaticLookup builds an empty StaticLookup.
func NewStaticLookup() *StaticLookup {
	return &StaticLookup{
		byID:    make(map[string]Config),
		byPhone: make(map[string]string),
	}
}

// Register adds or replaces a tenant's configuration, optionally routed
// to by a dedicated WhatsApp number.
func (s *StaticLookup) Register(cfg Config, routedPhone string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.byID[cfg.TenantID] = cfg
	if routedPhone != "" {
		s.byPhone[routedPhone] = cfg.TenantID
	}
}

func (s *StaticLookup) Resolve(ctx context.Context, tenantID string) (Config, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	cfg, ok := s.byID[tenantID]
	if !ok {
		return Config{}, fmt.Errorf("tenant: %q not registered", tenantID)
	}
	return cfg, nil
}

func (s *StaticLookup) ResolveByPhone(ctx context.Context, phone string) (Config, error) {
	s.mu.RLock()
	tenantID, ok := s.byPhone[phone]
	s.mu.RUnlock()
	if !ok {
		return Config{}, fmt.Errorf("tenant: no tenant routed to phone %q", phone)
	}
	return s.Resolve(ctx, tenantID)
}
