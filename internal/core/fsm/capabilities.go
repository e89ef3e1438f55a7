package fsm

import (
	"context"
	"fmt"
	"time"

	"whatsapp-commerce-gateway/internal/core/cart"
	"whatsapp-commerce-gateway/internal/core/catalog"
	"whatsapp-commerce-gateway/internal/core/compose"
	"whatsapp-commerce-gateway/internal/core/delivery"
	"whatsapp-commerce-gateway/internal/core/intent"
	"whatsapp-commerce-gateway/internal/core/money"
	"whatsapp-commerce-gateway/internal/core/phrase"
	"whatsapp-commerce-gateway/internal/core/remote"
	"whatsapp-commerce-gateway/internal/core/tenant"
)

// Capabilities bundles every collaborator a FSM step may call. Handlers
// receive this alongside the session. Remote and Pricer are concrete
// types, so tests point them at an httptest server rather than injecting
// fakes.
type Capabilities struct {
	Remote        *remote.Client
	Catalog       catalog.MenuCatalog
	CartEngine    *cart.Engine
	Pricer        *delivery.Pricer
	Classifier    *intent.Classifier
	Composer      *compose.Composer
	PhraseGen     phrase.Generator
	PhraseTimeout time.Duration
	StepDeadline  time.Duration // overall per-step timeout (spec.md §5, default 30s)
}

// catalogMenuLookup adapts a MenuCatalog + a tenant's extras price table
// into the narrow cart.MenuLookup the CartEngine depends on, so cart
// stays decoupled from both remote.Client and catalog's concrete type.
type catalogMenuLookup struct {
	catalog     catalog.MenuCatalog
	extrasPrice map[string]money.Money
}

// NewMenuLookup adapts a MenuCatalog + a shared extras price table into
// the narrow cart.MenuLookup CartEngine depends on. Exported so cmd/gateway
// can wire one CartEngine shared across tenants without duplicating the
// adaptation logic.
func NewMenuLookup(cat catalog.MenuCatalog, extrasPrice map[string]money.Money) cart.MenuLookup {
	return &catalogMenuLookup{catalog: cat, extrasPrice: extrasPrice}
}

func (l *catalogMenuLookup) ResolveProduct(ctx context.Context, subDomain, localID, menuItemID string) (cart.ProductInfo, error) {
	tree, err := l.catalog.GetMenuTree(ctx, subDomain, localID)
	if err != nil {
		return cart.ProductInfo{}, err
	}
	for _, category := range tree.Categories {
		for _, product := range category.Products {
			if product.ID == menuItemID {
				price, err := money.New(product.BasePrice)
				if err != nil {
					return cart.ProductInfo{}, fmt.Errorf("fsm: invalid product price %q: %w", product.BasePrice, err)
				}
				return cart.ProductInfo{Name: product.Name, BasePrice: price, Available: true}, nil
			}
		}
	}
	return cart.ProductInfo{}, fmt.Errorf("fsm: product %q not in menu tree", menuItemID)
}

func (l *catalogMenuLookup) ResolveExtrasPrice(ctx context.Context, subDomain, localID string, extraIDs []string) (money.Money, error) {
	total := money.Zero
	for _, id := range extraIDs {
		price, ok := l.extrasPrice[id]
		if !ok {
			return money.Zero, fmt.Errorf("fsm: extra %q has no configured price", id)
		}
		total = total.Add(price)
	}
	return total, nil
}

// TenantContext is the per-(tenant,branch) configuration a step needs
// beyond the shared Capabilities: the remote routing coordinates and
// pricing knobs that vary per business.
type TenantContext struct {
	Config      tenant.Config
	ExtrasPrice map[string]money.Money
}
