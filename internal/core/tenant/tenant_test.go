package tenant

import (
	"context"
	"testing"
)

func TestStaticLookup_ResolveByIDAndPhone(t *testing.T) {
	l := NewStaticLookup()
	l.Register(Config{TenantID: "t1", SubDomain: "acme", LocalID: "br1"}, "+15550001111")

	ctx := context.Background()
	cfg, err := l.Resolve(ctx, "t1")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.SubDomain != "acme" {
		t.Fatalf("unexpected config: %+v", cfg)
	}

	byPhone, err := l.ResolveByPhone(ctx, "+15550001111")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if byPhone.TenantID != "t1" {
		t.Fatalf("unexpected config: %+v", byPhone)
	}
}

func TestStaticLookup_UnknownTenantErrors(t *testing.T) {
	l := NewStaticLookup()
	if _, err := l.Resolve(context.Background(), "missing"); err == nil {
		t.Fatal("expected error for unknown tenant")
	}
	if _, err := l.ResolveByPhone(context.Background(), "+10000000000"); err == nil {
		t.Fatal("expected error for unrouted phone")
	}
}
