// Package dispatcher owns every live Session in the process and
// serializes each one's FSM steps through a dedicated per-session
// worker goroutine, so that across sessions there is no global lock
// but within one session events are processed in strict arrival order
// (spec.md §4.7/§5).
package dispatcher

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/rs/zerolog/log"

	"whatsapp-commerce-gateway/internal/core/compose"
	"whatsapp-commerce-gateway/internal/core/convstore"
	"whatsapp-commerce-gateway/internal/core/fsm"
	"whatsapp-commerce-gateway/internal/core/ids"
	"whatsapp-commerce-gateway/internal/core/money"
	"whatsapp-commerce-gateway/internal/core/session"
	"whatsapp-commerce-gateway/internal/core/tenant"
	"whatsapp-commerce-gateway/internal/core/transport"
)

// mailboxCapacity bounds each session's pending-event queue. One
// WhatsApp user sends messages sequentially by nature; this is headroom
// for a burst, not a throughput target. A full mailbox applies
// backpressure (Handle blocks) rather than dropping an inbound message.
const mailboxCapacity = 64

// defaultSweepInterval is how often evictIdle runs; independent of
// SESSION_IDLE_TTL_S, which decides who gets evicted once it runs.
const defaultSweepInterval = "@every 1m"

// sessionWorker owns one session's mailbox and dedicated goroutine.
// Exactly one goroutine ever touches its Session concurrently.
type sessionWorker struct {
	session *session.Session
	mailbox chan transport.Event
	cancel  context.CancelFunc

	mu       sync.Mutex
	lastSeen time.Time
}

func (w *sessionWorker) touch(now time.Time) {
	w.mu.Lock()
	w.lastSeen = now
	w.mu.Unlock()
}

func (w *sessionWorker) idleFor(now time.Time) time.Duration {
	w.mu.Lock()
	defer w.mu.Unlock()
	return now.Sub(w.lastSeen)
}

// Config bundles every collaborator a Dispatcher needs beyond what it
// owns itself (the session map and the worker goroutines).
type Config struct {
	Engine      *fsm.SessionFSM
	Store       convstore.Store
	Transport   transport.Transport
	Tenants     tenant.Lookup
	ExtrasPrice map[string]money.Money
	IdleTTL     time.Duration // SESSION_IDLE_TTL_S
}

// Dispatcher is the process-wide owner of SessionId -> Session. See the
// package doc for the concurrency model.
type Dispatcher struct {
	engine      *fsm.SessionFSM
	store       convstore.Store
	transport   transport.Transport
	tenants     tenant.Lookup
	extrasPrice map[string]money.Money
	idleTTL     time.Duration

	mu      sync.Mutex
	workers map[ids.SessionId]*sessionWorker

	sweep  *cron.Cron
	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// New builds a Dispatcher. Call Start to begin the idle-session sweep
// and Stop to shut every worker down.
func New(cfg Config) *Dispatcher {
	if cfg.IdleTTL <= 0 {
		cfg.IdleTTL = 30 * time.Minute
	}
	ctx, cancel := context.WithCancel(context.Background())
	return &Dispatcher{
		engine:      cfg.Engine,
		store:       cfg.Store,
		transport:   cfg.Transport,
		tenants:     cfg.Tenants,
		extrasPrice: cfg.ExtrasPrice,
		idleTTL:     cfg.IdleTTL,
		workers:     make(map[ids.SessionId]*sessionWorker),
		sweep:       cron.New(),
		ctx:         ctx,
		cancel:      cancel,
	}
}

// Start begins the periodic idle-session eviction sweep, scheduled the
// same way the teacher schedules its workflow cron jobs.
func (d *Dispatcher) Start() error {
	if _, err := d.sweep.AddFunc(defaultSweepInterval, d.evictIdle); err != nil {
		return fmt.Errorf("dispatcher: schedule idle sweep: %w", err)
	}
	d.sweep.Start()
	return nil
}

// Stop halts the sweep, cancels every worker's context, and waits for
// every worker goroutine to return. A worker returns as soon as its
// context is cancelled, so events still queued in its mailbox are not
// processed.
func (d *Dispatcher) Stop() {
	d.sweep.Stop()
	d.cancel()
	d.wg.Wait()
}

// Handle derives this event's session through a synchronous
// ConversationStore.InitializeConversation call, enqueues the event on
// that session's mailbox, and returns; the FSM step itself runs on the
// session's dedicated worker goroutine. While the mailbox is full,
// Handle waits until there is room or ctx is done.
func (d *Dispatcher) Handle(ctx context.Context, ev transport.Event) error {
	tenantID := ids.TenantId(ev.Tenant)
	user := ids.UserRef(ev.User)

	sessionID, err := d.store.InitializeConversation(ctx, tenantID, user)
	if err != nil {
		return fmt.Errorf("dispatcher: initialize conversation: %w", err)
	}

	w := d.getOrSpawnWorker(sessionID, tenantID, user)

	select {
	case w.mailbox <- ev:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (d *Dispatcher) getOrSpawnWorker(sessionID ids.SessionId, tenantID ids.TenantId, user ids.UserRef) *sessionWorker {
	d.mu.Lock()
	defer d.mu.Unlock()

	if w, ok := d.workers[sessionID]; ok {
		return w
	}

	now := time.Now().UTC()
	workerCtx, cancel := context.WithCancel(d.ctx)
	w := &sessionWorker{
		session:  session.New(sessionID, tenantID, user, now),
		mailbox:  make(chan transport.Event, mailboxCapacity),
		cancel:   cancel,
		lastSeen: now,
	}
	d.workers[sessionID] = w

	d.wg.Add(1)
	go func() {
		defer d.wg.Done()
		d.runWorker(workerCtx, w)
	}()

	return w
}

// runWorker drains w's mailbox sequentially until ctx is cancelled —
// either by Dispatcher.Stop or by this worker's own eviction.
func (d *Dispatcher) runWorker(ctx context.Context, w *sessionWorker) {
	for {
		select {
		case <-ctx.Done():
			return
		case ev := <-w.mailbox:
			w.touch(time.Now().UTC())
			d.processEvent(ctx, w, ev)
		}
	}
}

// processEvent runs exactly one FSM step plus its side effects. A panic
// anywhere in the step is caught here, logged, and turned into a
// generic fallback reply rather than taking down the worker.
func (d *Dispatcher) processEvent(ctx context.Context, w *sessionWorker, ev transport.Event) {
	defer func() {
		if r := recover(); r != nil {
			log.Error().
				Interface("panic", r).
				Str("session", w.session.ID.String()).
				Msg("fsm step panicked, recovering with fallback reply")
			d.sendFallback(ctx, w.session)
		}
	}()

	tc, err := d.resolveTenant(ctx, w.session.Tenant.String())
	if err != nil {
		log.Error().Err(err).Str("tenant", w.session.Tenant.String()).Msg("tenant resolution failed")
		d.sendFallback(ctx, w.session)
		return
	}

	now := time.Now().UTC()
	if d.engine.CheckTTL(w.session, now, d.idleTTL) {
		d.store.Reset(ctx, w.session.ID)
	}

	userText := describeEvent(ev)
	priorOrderID := w.session.OrderID

	plan := d.engine.Step(ctx, ev, w.session, tc)

	d.sendPlan(ctx, w.session, plan)

	// Conversation-store writes are ordered (user-msg -> state-snapshot
	// -> bot-msg -> optional order-link) but never block or invalidate
	// the reply already sent above; failures are swallowed inside Store.
	botText := describePlan(plan)
	d.store.AppendUserMessage(ctx, w.session.ID, userText)
	d.store.SnapshotState(ctx, w.session.ID, string(w.session.Stage), map[string]interface{}{
		"stage":      string(w.session.Stage),
		"lastIntent": w.session.LastIntent,
	})
	d.store.AppendBotMessage(ctx, w.session.ID, botText)
	if w.session.OrderID != "" && w.session.OrderID != priorOrderID {
		d.store.LinkOrder(ctx, w.session.ID, w.session.OrderID)
	}

	w.session.AppendTrail("user", userText, now)
	w.session.AppendTrail("bot", botText, now)
}

// sendPlan transmits every Outbound in plan, in order, via d.transport.
// A single failed send is logged and does not abort the rest of the
// plan — the transport ack is independent per message per spec.md §5.
func (d *Dispatcher) sendPlan(ctx context.Context, s *session.Session, plan fsm.OutboundPlan) {
	to := s.User.String()
	for _, out := range plan {
		var err error
		switch out.Kind {
		case fsm.OutText:
			err = d.transport.SendText(ctx, to, *out.Text)
		case fsm.OutButtons:
			err = d.transport.SendButtons(ctx, to, *out.Buttons)
		case fsm.OutList:
			err = d.transport.SendList(ctx, to, *out.List)
		case fsm.OutCarousel:
			err = d.transport.SendCarousel(ctx, to, *out.Carousel)
		case fsm.OutLocation:
			err = d.transport.SendLocation(ctx, to, *out.Location)
		case fsm.OutLocationRequest:
			err = d.transport.SendLocationRequest(ctx, to, *out.LocationRequest)
		case fsm.OutContacts:
			err = d.transport.SendContacts(ctx, to, *out.Contacts)
		}
		if err != nil {
			log.Error().Err(err).Str("session", s.ID.String()).Str("kind", string(out.Kind)).Msg("outbound send failed")
		}
	}
}

// sendFallback is the last line of defense: a single text message, sent
// best-effort, used when a step could not even be attempted.
func (d *Dispatcher) sendFallback(ctx context.Context, s *session.Session) {
	err := d.transport.SendText(ctx, s.User.String(), compose.TextOut{
		Text: "Maaf, terjadi gangguan sementara. Silakan coba lagi dalam beberapa saat.",
	})
	if err != nil {
		log.Error().Err(err).Str("session", s.ID.String()).Msg("fallback send also failed")
	}
}

func (d *Dispatcher) resolveTenant(ctx context.Context, tenantID string) (fsm.TenantContext, error) {
	cfg, err := d.tenants.Resolve(ctx, tenantID)
	if err != nil {
		return fsm.TenantContext{}, err
	}
	return fsm.TenantContext{Config: cfg, ExtrasPrice: d.extrasPrice}, nil
}

// evictIdle drops every worker whose mailbox has been quiet longer than
// idleTTL. Its in-memory Session state (cart, pending order, pagination
// cursor) is discarded; only the conversation's intent/context snapshot
// survives in ConversationStore, so the next inbound event starts a
// fresh in-memory Session in StageBrowsing — matching the TTL-expiry
// transition the FSM itself applies mid-conversation (session.Reset).
func (d *Dispatcher) evictIdle() {
	now := time.Now().UTC()

	d.mu.Lock()
	defer d.mu.Unlock()

	for id, w := range d.workers {
		if w.idleFor(now) <= d.idleTTL {
			continue
		}
		w.cancel()
		delete(d.workers, id)
		log.Debug().Str("session", id.String()).Msg("evicted idle session")
	}
}

// describeEvent renders a short human-readable summary of an inbound
// event, for the message trail and ConversationStore append.
func describeEvent(ev transport.Event) string {
	switch body := ev.Body.(type) {
	case transport.Text:
		return body.Text
	case transport.Button:
		return "[button] " + body.Title
	case transport.ListSel:
		return "[list] " + body.Title
	case transport.Location:
		return fmt.Sprintf("[location] %f,%f", body.Lat, body.Lng)
	case transport.Contact:
		return "[contact share]"
	default:
		return string(ev.Kind)
	}
}

// describePlan renders a short human-readable summary of the first
// outbound message in a plan, for the message trail and ConversationStore
// append; full payload fidelity lives in the transport send itself.
func describePlan(plan fsm.OutboundPlan) string {
	if len(plan) == 0 {
		return ""
	}
	out := plan[0]
	switch out.Kind {
	case fsm.OutText:
		return out.Text.Text
	case fsm.OutButtons:
		return out.Buttons.Body
	case fsm.OutList:
		return out.List.Body
	case fsm.OutCarousel:
		return out.Carousel.Body
	case fsm.OutLocation:
		return "[location shared]"
	case fsm.OutLocationRequest:
		return out.LocationRequest.Body
	case fsm.OutContacts:
		return "[contact shared]"
	default:
		return ""
	}
}
