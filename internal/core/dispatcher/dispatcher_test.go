package dispatcher

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"whatsapp-commerce-gateway/internal/core/cart"
	"whatsapp-commerce-gateway/internal/core/catalog"
	"whatsapp-commerce-gateway/internal/core/compose"
	"whatsapp-commerce-gateway/internal/core/delivery"
	"whatsapp-commerce-gateway/internal/core/fsm"
	"whatsapp-commerce-gateway/internal/core/ids"
	"whatsapp-commerce-gateway/internal/core/intent"
	"whatsapp-commerce-gateway/internal/core/money"
	"whatsapp-commerce-gateway/internal/core/remote"
	"whatsapp-commerce-gateway/internal/core/tenant"
	"whatsapp-commerce-gateway/internal/core/transport"
)

// --- test doubles ------------------------------------------------------

type fakeTransport struct {
	mu       sync.Mutex
	texts    []string
	panicOn  string
	panicked bool
}

func (f *fakeTransport) SendText(ctx context.Context, to string, payload compose.TextOut) error {
	if f.panicOn != "" && payload.Text == f.panicOn && !f.panicked {
		f.mu.Lock()
		f.panicked = true
		f.mu.Unlock()
		panic("simulated transport failure")
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.texts = append(f.texts, payload.Text)
	return nil
}
func (f *fakeTransport) SendButtons(ctx context.Context, to string, payload compose.ButtonsOut) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.texts = append(f.texts, "[buttons] "+payload.Body)
	return nil
}
func (f *fakeTransport) SendList(ctx context.Context, to string, payload compose.ListOut) error {
	if f.panicOn != "" && payload.Body == f.panicOn && !f.panicked {
		f.mu.Lock()
		f.panicked = true
		f.mu.Unlock()
		panic("simulated transport failure")
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.texts = append(f.texts, "[list] "+payload.Body)
	return nil
}
func (f *fakeTransport) SendCarousel(ctx context.Context, to string, payload compose.CarouselOut) error {
	return nil
}
func (f *fakeTransport) SendLocation(ctx context.Context, to string, payload compose.LocationOut) error {
	return nil
}
func (f *fakeTransport) SendLocationRequest(ctx context.Context, to string, payload compose.LocationRequestOut) error {
	return nil
}
func (f *fakeTransport) SendContacts(ctx context.Context, to string, payload compose.ContactsOut) error {
	return nil
}

func (f *fakeTransport) snapshot() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]string, len(f.texts))
	copy(out, f.texts)
	return out
}

// fakeStore is an in-memory convstore.Store recording calls in arrival
// order, so tests can assert per-session ordering without a real backend.
type fakeStore struct {
	mu  sync.Mutex
	log []string
}

func (s *fakeStore) record(op string) {
	s.mu.Lock()
	s.log = append(s.log, op)
	s.mu.Unlock()
}

func (s *fakeStore) InitializeConversation(ctx context.Context, tenantID ids.TenantId, user ids.UserRef) (ids.SessionId, error) {
	return ids.SessionId(user.String()), nil
}
func (s *fakeStore) AppendUserMessage(ctx context.Context, sessionID ids.SessionId, text string) {
	s.record("user:" + text)
}
func (s *fakeStore) AppendBotMessage(ctx context.Context, sessionID ids.SessionId, text string) {
	s.record("bot:" + text)
}
func (s *fakeStore) SnapshotState(ctx context.Context, sessionID ids.SessionId, intent string, ctxPatch map[string]interface{}) {
	s.record("snapshot:" + intent)
}
func (s *fakeStore) LinkOrder(ctx context.Context, sessionID ids.SessionId, orderID ids.OrderId) {
	s.record("link:" + orderID.String())
}
func (s *fakeStore) Reset(ctx context.Context, sessionID ids.SessionId) { s.record("reset") }
func (s *fakeStore) Extend(ctx context.Context, sessionID ids.SessionId) { s.record("extend") }
func (s *fakeStore) End(ctx context.Context, sessionID ids.SessionId)   { s.record("end") }

func (s *fakeStore) snapshot() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]string, len(s.log))
	copy(out, s.log)
	return out
}

// --- test engine wiring --------------------------------------------------

func newTestEngine(t *testing.T) *fsm.SessionFSM {
	t.Helper()
	mux := http.NewServeMux()
	mux.HandleFunc("/menu/bot-structure", func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewEncoder(w).Encode(map[string]interface{}{
			"success": true,
			"data": map[string]interface{}{
				"categories": []map[string]interface{}{
					{"id": "cat1", "name": "Mains", "products": []map[string]interface{}{
						{"id": "p1", "name": "Burger", "basePrice": "10.00"},
					}},
				},
			},
		})
	})
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)

	client := remote.New(remote.Config{
		BaseURL:               srv.URL,
		RequestTimeout:        2 * time.Second,
		MaxRetries:            0,
		RetryDelay:            time.Millisecond,
		MaxConcurrentRequests: 4,
	})
	caps := fsm.Capabilities{
		Remote:        client,
		Catalog:       catalog.New(client, time.Minute),
		CartEngine:    cart.NewEngine(newFakeMenuLookup()),
		Pricer:        delivery.NewPricer(client),
		Classifier:    intent.NewClassifier(intent.KeywordSets{List: []string{"menu"}}),
		Composer:      compose.NewComposer(),
		PhraseTimeout: 100 * time.Millisecond,
		StepDeadline:  time.Second,
	}
	return fsm.New(caps)
}

// fakeMenuLookup satisfies cart.MenuLookup minimally; the dispatcher
// tests only drive the browsing->selectingCategory transition, which
// never calls it.
type fakeMenuLookup struct{}

func newFakeMenuLookup() *fakeMenuLookup { return &fakeMenuLookup{} }
func (fakeMenuLookup) ResolveProduct(ctx context.Context, subDomain, localID, menuItemID string) (cart.ProductInfo, error) {
	return cart.ProductInfo{}, fmt.Errorf("not used in dispatcher tests")
}
func (fakeMenuLookup) ResolveExtrasPrice(ctx context.Context, subDomain, localID string, extraIDs []string) (money.Money, error) {
	return money.Zero, nil
}

func newTestDispatcher(t *testing.T, transport *fakeTransport, store *fakeStore, idleTTL time.Duration) *Dispatcher {
	t.Helper()
	lookup := tenant.NewStaticLookup()
	lookup.Register(tenant.Config{
		TenantID:      "t1",
		SubDomain:     "acme",
		LocalID:       "br1",
		RestaurantLat: -12.05,
		RestaurantLng: -77.03,
		TaxRate:       "0.1",
	}, "")

	d := New(Config{
		Engine:      newTestEngine(t),
		Store:       store,
		Transport:   transport,
		Tenants:     lookup,
		ExtrasPrice: map[string]money.Money{},
		IdleTTL:     idleTTL,
	})
	t.Cleanup(d.Stop)
	return d
}

func waitFor(t *testing.T, timeout time.Duration, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatalf("condition not met within %s", timeout)
}

// --- tests ---------------------------------------------------------------

func TestHandle_DeliversListOnMenuIntent(t *testing.T) {
	transport := &fakeTransport{}
	store := &fakeStore{}
	d := newTestDispatcher(t, transport, store, time.Hour)

	ev := transport_Event("t1", "+15551234567", "menu")
	if err := d.Handle(context.Background(), ev); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	waitFor(t, time.Second, func() bool { return len(transport.snapshot()) > 0 })
	got := transport.snapshot()
	if len(got) != 1 || got[0][:7] != "[list] " {
		t.Fatalf("expected a list send, got %+v", got)
	}
}

func TestHandle_SerializesMultipleEventsInArrivalOrder(t *testing.T) {
	transport := &fakeTransport{}
	store := &fakeStore{}
	d := newTestDispatcher(t, transport, store, time.Hour)

	for i := 0; i < 5; i++ {
		ev := transport_Event("t1", "+15551234567", fmt.Sprintf("halo %d", i))
		if err := d.Handle(context.Background(), ev); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
	}

	waitFor(t, 2*time.Second, func() bool {
		count := 0
		for _, l := range store.snapshot() {
			if len(l) >= 5 && l[:5] == "user:" {
				count++
			}
		}
		return count == 5
	})

	var userMsgs []string
	for _, l := range store.snapshot() {
		if len(l) >= 5 && l[:5] == "user:" {
			userMsgs = append(userMsgs, l[5:])
		}
	}
	for i, msg := range userMsgs {
		want := fmt.Sprintf("halo %d", i)
		if msg != want {
			t.Fatalf("expected arrival order, got %v at %d want %q", userMsgs, i, want)
		}
	}
}

func TestHandle_UnknownTenantSendsFallback(t *testing.T) {
	transport := &fakeTransport{}
	store := &fakeStore{}
	d := newTestDispatcher(t, transport, store, time.Hour)

	ev := transport_Event("unknown-tenant", "+15551234567", "menu")
	if err := d.Handle(context.Background(), ev); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	waitFor(t, time.Second, func() bool { return len(transport.snapshot()) > 0 })
	got := transport.snapshot()
	if len(got) != 1 {
		t.Fatalf("expected exactly one fallback text, got %+v", got)
	}
}

func TestProcessEvent_PanicInTransportIsRecoveredAndWorkerSurvives(t *testing.T) {
	transport := &fakeTransport{panicOn: "Silakan pilih kategori menu di bawah ini."}
	store := &fakeStore{}
	d := newTestDispatcher(t, transport, store, time.Hour)

	// First event's send panics inside sendPlan; processEvent must
	// recover and the worker must keep draining its mailbox afterward.
	if err := d.Handle(context.Background(), transport_Event("t1", "+15551234567", "menu")); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	waitFor(t, time.Second, func() bool { return len(transport.snapshot()) > 0 })

	if err := d.Handle(context.Background(), transport_Event("t1", "+15551234567", "still here?")); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	waitFor(t, time.Second, func() bool { return len(transport.snapshot()) > 1 })
}

func TestEvictIdle_RemovesWorkerPastTTL(t *testing.T) {
	transport := &fakeTransport{}
	store := &fakeStore{}
	d := newTestDispatcher(t, transport, store, 10*time.Millisecond)

	if err := d.Handle(context.Background(), transport_Event("t1", "+15551234567", "menu")); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	waitFor(t, time.Second, func() bool { return len(transport.snapshot()) > 0 })

	time.Sleep(20 * time.Millisecond)
	d.evictIdle()

	d.mu.Lock()
	n := len(d.workers)
	d.mu.Unlock()
	if n != 0 {
		t.Fatalf("expected workers evicted, still have %d", n)
	}
}

func transport_Event(tenant, user, text string) transport.Event {
	return transport.Event{
		Tenant: tenant,
		User:   user,
		Kind:   transport.EventText,
		Body:   transport.Text{Text: text},
	}
}
