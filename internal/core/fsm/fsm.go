// Package fsm implements SessionFSM: the central per-session state
// machine that routes one inbound transport.Event to a stage handler,
// mutates the session's cart/pending order, and returns an OutboundPlan.
// A single logical thread owns one session at a time (see Dispatcher);
// this package holds no concurrency of its own.
package fsm

import (
	"context"
	"errors"
	"regexp"
	"strings"
	"time"

	"whatsapp-commerce-gateway/internal/core/cart"
	"whatsapp-commerce-gateway/internal/core/compose"
	"whatsapp-commerce-gateway/internal/core/delivery"
	"whatsapp-commerce-gateway/internal/core/ids"
	"whatsapp-commerce-gateway/internal/core/money"
	"whatsapp-commerce-gateway/internal/core/order"
	"whatsapp-commerce-gateway/internal/core/phrase"
	"whatsapp-commerce-gateway/internal/core/remote"
	"whatsapp-commerce-gateway/internal/core/session"
	"whatsapp-commerce-gateway/internal/core/transport"
)

// maxListRows mirrors compose's list-payload cap: beyond this many
// products a category is paginated, reserving the last row for "More".
const maxListRows = 10

// phoneLax matches spec.md's documented E.164-lax phone format.
var phoneLax = regexp.MustCompile(`^\+?\d{7,15}$`)

// SessionFSM routes events for one tenant's sessions. It holds no
// per-session state itself — every Step call is a pure function of the
// session passed in plus the shared Capabilities.
type SessionFSM struct {
	caps Capabilities
}

// New builds a SessionFSM backed by caps.
func New(caps Capabilities) *SessionFSM {
	if caps.StepDeadline <= 0 {
		caps.StepDeadline = 30 * time.Second
	}
	return &SessionFSM{caps: caps}
}

// Step is the central contract: advances s according to ev, returning
// the (possibly mutated in place) session and the OutboundPlan to send.
// Illegal stage/event combinations never panic — they return s unchanged
// plus a single text prompt.
func (f *SessionFSM) Step(ctx context.Context, ev transport.Event, s *session.Session, tc TenantContext) OutboundPlan {
	stepCtx, cancel := context.WithTimeout(ctx, f.caps.StepDeadline)
	defer cancel()

	s.Touch(time.Now().UTC())

	plan, err := f.dispatch(stepCtx, ev, s, tc)
	if err != nil {
		return f.handleError(stepCtx, s, err)
	}
	return plan
}

func (f *SessionFSM) dispatch(ctx context.Context, ev transport.Event, s *session.Session, tc TenantContext) (OutboundPlan, error) {
	switch s.Stage {
	case session.StageBrowsing:
		return f.handleBrowsing(ctx, ev, s, tc)
	case session.StageSelectingCategory:
		return f.handleSelectingCategory(ctx, ev, s, tc)
	case session.StageViewingProducts:
		return f.handleViewingProducts(ctx, ev, s, tc)
	case session.StageCustomizing:
		return f.handleCustomizing(ctx, ev, s, tc)
	case session.StageReviewingCart:
		return f.handleReviewingCart(ctx, ev, s, tc)
	case session.StageCheckoutStart, session.StageAwaitingDeliveryMethod:
		return f.handleCheckoutStart(ctx, ev, s, tc)
	case session.StageAwaitingLocation:
		return f.handleAwaitingLocation(ctx, ev, s, tc)
	case session.StageAwaitingPayment:
		return f.handleAwaitingPayment(ctx, ev, s, tc)
	case session.StageAwaitingPhone:
		return f.handleAwaitingPhone(ctx, ev, s, tc)
	case session.StageConfirming:
		return f.handleConfirming(ctx, ev, s, tc)
	case session.StageConfirmed, session.StageTracking:
		return f.handleConfirmedOrTracking(ctx, ev, s, tc)
	default:
		return OutboundPlan{outText("Maaf, saya tidak mengerti. Ketik \"menu\" untuk memulai.")}, nil
	}
}

// CheckTTL applies the "any + TTL expiry → browsing" transition,
// clearing pendingOrder but retaining the cart per spec.md §4.6.
func (f *SessionFSM) CheckTTL(s *session.Session, now time.Time, ttl time.Duration) bool {
	if !s.Expired(now, ttl) {
		return false
	}
	s.Reset(now)
	return true
}

// --- browsing -----------------------------------------------------------

func (f *SessionFSM) handleBrowsing(ctx context.Context, ev transport.Event, s *session.Session, tc TenantContext) (OutboundPlan, error) {
	text, isText := ev.Body.(transport.Text)
	if !isText {
		// A structured event while browsing (e.g. a stray button from an
		// old message) still surfaces the menu — any inbound nudge should
		// move the conversation forward rather than stall.
		return f.showCategories(ctx, s, tc)
	}
	result := f.caps.Classifier.Classify(text.Text)
	if result.Intent == "list" {
		return f.showCategories(ctx, s, tc)
	}
	greeting := phrase.Generate(ctx, f.caps.PhraseGen, phrase.KindGreeting, phrase.Context{}, f.caps.PhraseTimeout)
	return OutboundPlan{outText(greeting + " Ketik \"menu\" untuk melihat kategori.")}, nil
}

func (f *SessionFSM) showCategories(ctx context.Context, s *session.Session, tc TenantContext) (OutboundPlan, error) {
	tree, err := f.caps.Catalog.GetMenuTree(ctx, tc.Config.SubDomain, tc.Config.LocalID)
	if err != nil {
		return nil, remote.NewError(remote.KindTransient, 0, "menu tree unavailable", err)
	}
	rows := make([]compose.Row, 0, len(tree.Categories))
	for _, category := range tree.Categories {
		rows = append(rows, compose.Row{ID: "category:" + category.ID, Title: truncatedTitle(category.Name)})
	}
	list, cerr := f.caps.Composer.ComposeList("Silakan pilih kategori menu di bawah ini.", "", "", "Pilih Kategori",
		[]compose.Section{{Title: "Kategori", Rows: rows}})
	if cerr != nil {
		return OutboundPlan{outText("Kategori tersedia: " + joinCategoryNames(tree.Categories))}, nil
	}
	s.Stage = session.StageSelectingCategory
	return OutboundPlan{outList(list)}, nil
}

// --- selectingCategory ----------------------------------------------------

func (f *SessionFSM) handleSelectingCategory(ctx context.Context, ev transport.Event, s *session.Session, tc TenantContext) (OutboundPlan, error) {
	sel, ok := ev.Body.(transport.ListSel)
	if !ok {
		return OutboundPlan{outText("Silakan pilih salah satu kategori dari daftar.")}, nil
	}
	categoryID, matched := cutPrefix(sel.ID, "category:")
	if !matched {
		return OutboundPlan{outText("Pilihan tidak dikenali, silakan coba lagi.")}, nil
	}

	tree, err := f.caps.Catalog.GetMenuTree(ctx, tc.Config.SubDomain, tc.Config.LocalID)
	if err != nil {
		return nil, remote.NewError(remote.KindTransient, 0, "menu tree unavailable", err)
	}
	products := productsInCategory(tree, categoryID)
	if len(products) == 0 {
		return OutboundPlan{outText("Kategori ini belum memiliki produk.")}, nil
	}

	s.LastCategoryID = categoryID
	s.CategoryOffset = 0
	return f.showProductPage(s, products)
}

type productRef struct {
	ID    string
	Name  string
	Price string
}

func productsInCategory(tree *remote.MenuTree, categoryID string) []productRef {
	var products []productRef
	for _, category := range tree.Categories {
		if category.ID != categoryID {
			continue
		}
		for _, p := range category.Products {
			products = append(products, productRef{ID: p.ID, Name: p.Name, Price: p.BasePrice})
		}
	}
	return products
}

// showProductPage renders products[s.CategoryOffset:] as an interactive
// list, reserving the last row for "More" pagination when more than 10
// remain, per spec.md §4.6's tie-break rule.
func (f *SessionFSM) showProductPage(s *session.Session, products []productRef) (OutboundPlan, error) {
	remainder := products[s.CategoryOffset:]
	page := remainder
	hasMore := false
	if len(page) > maxListRows {
		page = page[:maxListRows-1]
		hasMore = true
	}

	rows := make([]compose.Row, 0, len(page)+1)
	for _, p := range page {
		rows = append(rows, compose.Row{ID: "add_product_" + p.ID, Title: truncatedRowTitle(p.Name), Description: p.Price})
	}
	if hasMore {
		rows = append(rows, compose.Row{ID: "more_products", Title: "Lainnya..."})
	}

	list, cerr := f.caps.Composer.ComposeList("Pilih produk yang Anda inginkan.", "", "", "Produk",
		[]compose.Section{{Title: "Produk", Rows: rows}})
	if cerr != nil {
		names := make([]string, 0, len(page))
		for _, p := range page {
			names = append(names, p.Name)
		}
		return OutboundPlan{outText("Produk tersedia: " + joinStrings(names))}, nil
	}
	s.Stage = session.StageViewingProducts
	return OutboundPlan{outList(list)}, nil
}

// --- viewingProducts ------------------------------------------------------

func (f *SessionFSM) handleViewingProducts(ctx context.Context, ev transport.Event, s *session.Session, tc TenantContext) (OutboundPlan, error) {
	sel, ok := ev.Body.(transport.ListSel)
	if !ok {
		return OutboundPlan{outText("Silakan pilih salah satu produk dari daftar.")}, nil
	}

	if sel.ID == "more_products" {
		s.CategoryOffset += maxListRows - 1
		tree, err := f.caps.Catalog.GetMenuTree(ctx, tc.Config.SubDomain, tc.Config.LocalID)
		if err != nil {
			return nil, remote.NewError(remote.KindTransient, 0, "menu tree unavailable", err)
		}
		products := productsInCategory(tree, s.LastCategoryID)
		return f.showProductPage(s, products)
	}

	productID, matched := cutPrefix(sel.ID, "add_product_")
	if !matched {
		return OutboundPlan{outText("Pilihan tidak dikenali, silakan coba lagi.")}, nil
	}

	details, err := f.caps.Remote.GetProductDetails(ctx, tc.Config.SubDomain, tc.Config.LocalID, []string{productID})
	if err != nil {
		return nil, remote.NewError(remote.KindTransient, 0, "product details unavailable", err)
	}
	if len(details) == 0 || len(details[0].Presentations) == 0 {
		item, addErr := f.caps.CartEngine.AddItem(ctx, s.Cart, tc.Config.SubDomain, tc.Config.LocalID, productID, 1, cart.SizeNone, nil, "", time.Now().UTC())
		if addErr != nil {
			return nil, addErr
		}
		added := phrase.Generate(ctx, f.caps.PhraseGen, phrase.KindItemAdded, phrase.Context{ItemName: item.Name}, f.caps.PhraseTimeout)
		s.Stage = session.StageReviewingCart
		return OutboundPlan{outText(added + "\n\n" + f.caps.CartEngine.Summary(s.Cart))}, nil
	}

	buttons := make([]compose.Button, 0, len(details[0].Presentations))
	for _, pres := range details[0].Presentations {
		buttons = append(buttons, compose.Button{ID: "size_" + pres.Size, Title: truncatedButtonTitle(pres.Size)})
	}
	out, cerr := f.caps.Composer.ComposeButtons("Silakan pilih ukuran.", "", "", buttons)
	if cerr != nil {
		return OutboundPlan{outText("Ukuran tersedia: " + joinButtonTitles(buttons))}, nil
	}
	s.Pending = &session.PendingOrder{}
	s.LastIntent = productID
	s.Stage = session.StageCustomizing
	return OutboundPlan{outButtons(out)}, nil
}

// --- customizing ----------------------------------------------------------

func (f *SessionFSM) handleCustomizing(ctx context.Context, ev transport.Event, s *session.Session, tc TenantContext) (OutboundPlan, error) {
	btn, ok := ev.Body.(transport.Button)
	if !ok {
		return OutboundPlan{outText("Silakan pilih ukuran dari tombol yang tersedia.")}, nil
	}
	sizeID, matched := cutPrefix(btn.ID, "size_")
	if !matched {
		return OutboundPlan{outText("Pilihan tidak dikenali, silakan coba lagi.")}, nil
	}

	item, err := f.caps.CartEngine.AddItem(ctx, s.Cart, tc.Config.SubDomain, tc.Config.LocalID, s.LastIntent, 1, cart.Size(sizeID), nil, "", time.Now().UTC())
	if err != nil {
		return nil, err
	}

	added := phrase.Generate(ctx, f.caps.PhraseGen, phrase.KindItemAdded, phrase.Context{ItemName: item.Name}, f.caps.PhraseTimeout)
	out, cerr := f.caps.Composer.ComposeButtons(f.caps.CartEngine.Summary(s.Cart), "", "", []compose.Button{
		{ID: "continue_shopping", Title: "Lanjut Belanja"},
		{ID: "checkout", Title: "Checkout"},
	})
	s.Pending = nil
	s.Stage = session.StageReviewingCart
	if cerr != nil {
		return OutboundPlan{outText(added + "\n\n" + f.caps.CartEngine.Summary(s.Cart))}, nil
	}
	return OutboundPlan{outText(added), outButtons(out)}, nil
}

// --- reviewingCart ----------------------------------------------------------

func (f *SessionFSM) handleReviewingCart(ctx context.Context, ev transport.Event, s *session.Session, tc TenantContext) (OutboundPlan, error) {
	btn, ok := ev.Body.(transport.Button)
	if !ok {
		return OutboundPlan{outText("Ketik \"checkout\" atau pilih salah satu tombol untuk melanjutkan.")}, nil
	}
	switch btn.ID {
	case "checkout":
		out, cerr := f.caps.Composer.ComposeButtons("Bagaimana Anda ingin menerima pesanan ini?", "", "", []compose.Button{
			{ID: "delivery", Title: "Delivery"},
			{ID: "pickup", Title: "Pickup"},
			{ID: "dinein", Title: "Dine-in"},
		})
		if cerr != nil {
			return OutboundPlan{outText("Pilih: delivery, pickup, atau dine-in.")}, nil
		}
		s.Stage = session.StageCheckoutStart
		return OutboundPlan{outButtons(out)}, nil
	case "continue_shopping":
		s.Stage = session.StageBrowsing
		return f.showCategories(ctx, s, tc)
	default:
		return OutboundPlan{outText("Silakan pilih \"Checkout\" atau \"Lanjut Belanja\".")}, nil
	}
}

// --- checkoutStart / awaitingDeliveryMethod ---------------------------------

// handleCheckoutStart serves both StageCheckoutStart (first entry from
// reviewingCart) and StageAwaitingDeliveryMethod (re-entry after an
// out-of-zone location, which only offers pickup going forward) — both
// stages wait on the same delivery/pickup/dinein button reply.
func (f *SessionFSM) handleCheckoutStart(ctx context.Context, ev transport.Event, s *session.Session, tc TenantContext) (OutboundPlan, error) {
	btn, ok := ev.Body.(transport.Button)
	if !ok {
		return OutboundPlan{outText("Silakan pilih salah satu opsi pengiriman.")}, nil
	}

	s.Pending = &session.PendingOrder{}
	switch btn.ID {
	case "delivery":
		s.Pending.DeliveryMethod = string(order.MethodDelivery)
		req := f.caps.Composer.ComposeLocationRequest("Silakan bagikan lokasi pengiriman Anda.")
		s.Stage = session.StageAwaitingLocation
		return OutboundPlan{outLocationRequest(req)}, nil
	case "pickup":
		s.Pending.DeliveryMethod = string(order.MethodPickup)
		return f.enterAwaitingPayment(s)
	case "dinein":
		s.Pending.DeliveryMethod = string(order.MethodDineIn)
		return f.enterAwaitingPayment(s)
	default:
		return OutboundPlan{outText("Pilih: delivery, pickup, atau dine-in.")}, nil
	}
}

func (f *SessionFSM) enterAwaitingPayment(s *session.Session) (OutboundPlan, error) {
	out, cerr := f.caps.Composer.ComposeButtons("Bagaimana Anda ingin membayar?", "", "", []compose.Button{
		{ID: "cash", Title: "Tunai"},
		{ID: "card", Title: "Kartu"},
	})
	s.Stage = session.StageAwaitingPayment
	if cerr != nil {
		return OutboundPlan{outText("Balas dengan metode pembayaran: cash atau card.")}, nil
	}
	return OutboundPlan{outButtons(out)}, nil
}

// --- awaitingLocation -------------------------------------------------------

func (f *SessionFSM) handleAwaitingLocation(ctx context.Context, ev transport.Event, s *session.Session, tc TenantContext) (OutboundPlan, error) {
	loc, ok := ev.Body.(transport.Location)
	if !ok {
		return OutboundPlan{outText("Silakan bagikan lokasi pengiriman Anda menggunakan fitur lokasi WhatsApp.")}, nil
	}

	restaurant := remote.GeoPoint{Lat: tc.Config.RestaurantLat, Lng: tc.Config.RestaurantLng}
	dest := remote.GeoPoint{Lat: loc.Lat, Lng: loc.Lng}
	zone, distanceKm, err := f.caps.Pricer.ValidateAddress(ctx, tc.Config.SubDomain, tc.Config.LocalID, restaurant, dest)
	var derr *delivery.Error
	if errors.As(err, &derr) && derr.Kind == delivery.KindOutOfZone {
		out, cerr := f.caps.Composer.ComposeButtons(
			phrase.StaticFallback(phrase.KindOutOfZone)+" Anda tetap dapat memesan untuk diambil sendiri (pickup).",
			"", "", []compose.Button{{ID: "pickup", Title: "Pickup"}},
		)
		s.Stage = session.StageAwaitingDeliveryMethod
		if cerr != nil {
			return OutboundPlan{outText(phrase.StaticFallback(phrase.KindOutOfZone))}, nil
		}
		return OutboundPlan{outButtons(out)}, nil
	}
	if err != nil {
		return nil, err
	}

	subtotal := s.Cart.Subtotal()
	fee, freeApplied, feeErr := delivery.ComputeFee(zone, distanceKm, subtotal)
	var ferr *delivery.Error
	if errors.As(feeErr, &ferr) && ferr.Kind == delivery.KindMinimumNotMet {
		return OutboundPlan{outText(phrase.StaticFallback(phrase.KindMinimumNotMet) + " (" + ferr.Delta.String() + ")")}, nil
	}
	if feeErr != nil {
		return nil, feeErr
	}

	s.Pending.DeliveryLat = loc.Lat
	s.Pending.DeliveryLng = loc.Lng
	s.Pending.DistanceKm = distanceKm
	s.Pending.ZoneID = zone.ID
	s.Pending.CustomerAddress = loc.Address
	s.Pending.DeliveryFee = fee
	s.Pending.FreeApplied = freeApplied
	if freeApplied {
		s.Flags["freeDeliveryApplied"] = true
	}
	return f.enterAwaitingPayment(s)
}

// --- awaitingPayment ---------------------------------------------------------

func (f *SessionFSM) handleAwaitingPayment(ctx context.Context, ev transport.Event, s *session.Session, tc TenantContext) (OutboundPlan, error) {
	btn, ok := ev.Body.(transport.Button)
	if !ok {
		return OutboundPlan{outText("Silakan pilih metode pembayaran.")}, nil
	}
	if s.Pending == nil {
		s.Pending = &session.PendingOrder{}
	}
	s.Pending.PaymentMethod = btn.ID
	return f.enterConfirming(ctx, s, tc)
}

// enterConfirming checks whether the session already knows the
// customer's phone (from the webhook sender) and either shows the order
// summary or detours to awaitingPhone, per spec.md §4.6.
func (f *SessionFSM) enterConfirming(ctx context.Context, s *session.Session, tc TenantContext) (OutboundPlan, error) {
	if s.Pending.CustomerPhone == "" {
		if phoneLax.MatchString(string(s.User)) {
			s.Pending.CustomerPhone = string(s.User)
		}
	}
	if s.Pending.CustomerPhone == "" {
		s.Stage = session.StageAwaitingPhone
		return OutboundPlan{outText("Boleh minta nomor telepon Anda untuk konfirmasi pesanan?")}, nil
	}
	return f.showOrderSummary(s, tc)
}

func (f *SessionFSM) showOrderSummary(s *session.Session, tc TenantContext) (OutboundPlan, error) {
	totals, err := f.caps.CartEngine.Totals(s.Cart, tc.Config.TaxRate)
	if err != nil {
		return nil, err
	}
	fee := s.Pending.DeliveryFee

	summary := f.caps.CartEngine.Summary(s.Cart) + "\n\nOngkos kirim: " + fee.String() +
		"\nPajak: " + totals.Tax.String()

	out, cerr := f.caps.Composer.ComposeButtons(summary, "Konfirmasi Pesanan", "", []compose.Button{
		{ID: "confirm", Title: "Konfirmasi"},
		{ID: "cancel", Title: "Batal"},
	})
	s.Stage = session.StageConfirming
	if cerr != nil {
		return OutboundPlan{outText(summary + "\n\nBalas \"confirm\" untuk melanjutkan.")}, nil
	}
	return OutboundPlan{outButtons(out)}, nil
}

// --- awaitingPhone ----------------------------------------------------------

func (f *SessionFSM) handleAwaitingPhone(ctx context.Context, ev transport.Event, s *session.Session, tc TenantContext) (OutboundPlan, error) {
	text, ok := ev.Body.(transport.Text)
	trimmed := strings.TrimSpace(text.Text)
	if !ok || !phoneLax.MatchString(trimmed) {
		return OutboundPlan{outText("Mohon kirim nomor telepon yang valid, contoh: +6281234567890.")}, nil
	}
	s.Pending.CustomerPhone = trimmed
	return f.showOrderSummary(s, tc)
}

// --- confirming ---------------------------------------------------------

func (f *SessionFSM) handleConfirming(ctx context.Context, ev transport.Event, s *session.Session, tc TenantContext) (OutboundPlan, error) {
	btn, ok := ev.Body.(transport.Button)
	if !ok {
		return OutboundPlan{outText("Balas \"confirm\" untuk menyelesaikan pesanan, atau \"cancel\" untuk membatalkan.")}, nil
	}
	switch btn.ID {
	case "cancel":
		s.Pending = nil
		s.Stage = session.StageReviewingCart
		return OutboundPlan{outText("Pesanan dibatalkan. Keranjang Anda masih tersimpan.")}, nil
	case "confirm":
		return f.tryCreateOrder(ctx, s, tc)
	default:
		return OutboundPlan{outText("Balas \"confirm\" atau \"cancel\".")}, nil
	}
}

// tryCreateOrder attaches a fresh idempotency key on the first attempt
// and reuses it on transient retries; a key is only rotated when the
// FSM itself decides the prior attempt is logically dead (missing-phone
// recovery), per spec.md §9.
func (f *SessionFSM) tryCreateOrder(ctx context.Context, s *session.Session, tc TenantContext) (OutboundPlan, error) {
	if s.Pending.IdempotencyKey == "" {
		s.Pending.IdempotencyKey = ids.NewIdempotencyKey()
	}

	totals, err := f.caps.CartEngine.Totals(s.Cart, tc.Config.TaxRate)
	if err != nil {
		return nil, err
	}
	fee := s.Pending.DeliveryFee

	payload := buildOrderPayload(s, tc, totals, fee)
	result, createErr := f.caps.Remote.CreateOrder(ctx, tc.Config.SubDomain, tc.Config.LocalID, payload, s.Pending.IdempotencyKey)
	if createErr != nil {
		if isMissingPhone(createErr) {
			s.Pending.CustomerPhone = ""
			s.Pending.IdempotencyKey = "" // prior attempt never reached the server as a persisted order
			s.Stage = session.StageAwaitingPhone
			return OutboundPlan{outText("Nomor telepon belum tercatat. Boleh kirimkan nomor telepon Anda?")}, nil
		}
		return nil, createErr
	}

	s.OrderID = ids.OrderId(result.OrderID)
	confirmed := phrase.Generate(ctx, f.caps.PhraseGen, phrase.KindOrderConfirmed, phrase.Context{Total: totals.Subtotal.Add(totals.Tax).Add(fee).String()}, f.caps.PhraseTimeout)
	s.Stage = session.StageConfirmed
	s.Pending = nil
	return OutboundPlan{outText(confirmed)}, nil
}

// buildOrderPayload maps the cart + accumulated pending-order fields into
// the RemoteClient's order-create wire shape.
func buildOrderPayload(s *session.Session, tc TenantContext, totals cart.Totals, fee money.Money) remote.OrderPayload {
	items := make([]remote.OrderPayloadItem, 0, len(s.Cart.Items))
	for _, item := range s.Cart.Items {
		items = append(items, remote.OrderPayloadItem{
			ProductID:   item.MenuItemID,
			Quantity:    item.Quantity,
			UnitPrice:   item.BasePrice.String(),
			ModifierIDs: item.Customization.Extras,
			Notes:       item.Customization.SpecialInstructions,
		})
	}

	total := totals.Subtotal.Add(totals.Tax).Add(fee)
	payload := remote.OrderPayload{
		TenantID:        string(tc.Config.TenantID),
		BranchID:        tc.Config.LocalID,
		CustomerPhone:   s.Pending.CustomerPhone,
		Items:           items,
		Subtotal:        totals.Subtotal.String(),
		TaxAmount:       totals.Tax.String(),
		DeliveryFee:     fee.String(),
		Discount:        money.Zero.String(),
		Total:           total.String(),
		FulfillmentType: s.Pending.DeliveryMethod,
		ZoneID:          s.Pending.ZoneID,
	}
	if s.Pending.DeliveryMethod == string(order.MethodDelivery) {
		payload.DeliveryLoc = &remote.GeoPoint{Lat: s.Pending.DeliveryLat, Lng: s.Pending.DeliveryLng}
	}
	return payload
}

// isMissingPhone reports whether createErr is the backend's validation
// rejection for an order submitted without a customer phone number —
// the one case tryCreateOrder recovers from instead of just surfacing.
func isMissingPhone(err error) bool {
	var rerr *remote.Error
	if !errors.As(err, &rerr) {
		return false
	}
	if rerr.Kind != remote.KindPermanent && rerr.Kind != remote.KindValidation {
		return false
	}
	return strings.Contains(strings.ToLower(rerr.Message), "phone")
}

// --- confirmed / tracking -----------------------------------------------

func (f *SessionFSM) handleConfirmedOrTracking(ctx context.Context, ev transport.Event, s *session.Session, tc TenantContext) (OutboundPlan, error) {
	btn, ok := ev.Body.(transport.Button)
	if !ok || btn.ID != "track_order" {
		return OutboundPlan{outText("Ketik \"track_order\" untuk melihat status pesanan Anda.")}, nil
	}

	result, err := f.caps.Remote.GetOrder(ctx, s.OrderID)
	if err != nil {
		return nil, err
	}
	update := phrase.Generate(ctx, f.caps.PhraseGen, phrase.KindTrackingUpdate, phrase.Context{Status: result.Status}, f.caps.PhraseTimeout)
	out, cerr := f.caps.Composer.ComposeButtons(update+"\n\nStatus: "+result.Status, "", "", []compose.Button{
		{ID: "track_order", Title: "Refresh"},
	})
	s.Stage = session.StageTracking
	if cerr != nil {
		return OutboundPlan{outText(update + "\n\nStatus: " + result.Status)}, nil
	}
	return OutboundPlan{outButtons(out)}, nil
}

// --- error handling ----------------------------------------------------

// handleError implements spec.md §7's propagation policy: typed errors
// translate into a user-visible prompt plus an optional stage rollback;
// nothing here ever re-panics.
func (f *SessionFSM) handleError(ctx context.Context, s *session.Session, err error) OutboundPlan {
	var rerr *remote.Error
	if errors.As(err, &rerr) {
		switch rerr.Kind {
		case remote.KindNotFound:
			return OutboundPlan{outText("Maaf, data yang diminta tidak ditemukan.")}
		case remote.KindTransient, remote.KindRateLimited:
			return OutboundPlan{outText(phrase.StaticFallback(phrase.KindTransientError))}
		case remote.KindPermanent:
			f.rollbackOnOrderFailure(s)
			return OutboundPlan{outText("Maaf, terjadi kendala saat memproses pesanan Anda. Silakan coba lagi.")}
		default:
			return OutboundPlan{outText(phrase.StaticFallback(phrase.KindTransientError))}
		}
	}
	var cerr *cart.Error
	if errors.As(err, &cerr) {
		return OutboundPlan{outText("Maaf, " + cerr.Message)}
	}
	return OutboundPlan{outText(phrase.StaticFallback(phrase.KindTransientError))}
}

// rollbackOnOrderFailure reverts confirming back to reviewingCart, per
// spec.md §7's PermanentBackend handling for order-create failures.
func (f *SessionFSM) rollbackOnOrderFailure(s *session.Session) {
	if s.Stage == session.StageConfirming {
		s.Stage = session.StageReviewingCart
		s.Pending = nil
	}
}
