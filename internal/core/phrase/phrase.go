// Package phrase models the decorative-phrasing capability the FSM leans on
// for warmer confirmations ("Pesanan Anda sudah dikonfirmasi!" vs a bare
// template). Generating it is never allowed to gate order processing: every
// call site races the generator against PHRASE_TIMEOUT_MS and falls back to
// a guaranteed static template on timeout, error, or a nil Generator.
package phrase

import (
	"context"
	"time"
)

// Kind names a decorative-phrase slot. The static fallback table must have
// an entry for every Kind the FSM can ask for.
type Kind string

const (
	KindGreeting       Kind = "greeting"
	KindItemAdded      Kind = "item_added"
	KindCartSummary    Kind = "cart_summary"
	KindOrderConfirmed Kind = "order_confirmed"
	KindOutOfZone      Kind = "out_of_zone"
	KindMinimumNotMet  Kind = "minimum_not_met"
	KindTransientError Kind = "transient_error"
	KindTrackingUpdate Kind = "tracking_update"
)

// Context carries the data a generator may fold into the phrase; fields are
// optional and a generator must tolerate zero values.
type Context struct {
	CustomerName string
	ItemName     string
	Total        string
	Zone         string
	Distance     string
	Status       string
	Extra        map[string]string
}

// Generator produces a decorative string for a Kind. Implementations may
// call out to a network service; callers NEVER await longer than the
// configured phrase timeout (see Generate below).
type Generator interface {
	Generate(ctx context.Context, kind Kind, pc Context) (string, error)
}

// staticTemplates is the guaranteed fallback table. Every Kind above MUST
// have an entry here; no test checks that coverage.
var staticTemplates = map[Kind]string{
	KindGreeting:       "Halo! Selamat datang, ada yang bisa kami bantu hari ini?",
	KindItemAdded:      "Baik, sudah kami tambahkan ke keranjang Anda.",
	KindCartSummary:    "Berikut ringkasan keranjang belanja Anda.",
	KindOrderConfirmed: "Pesanan Anda sudah kami konfirmasi. Terima kasih!",
	KindOutOfZone:      "Maaf, lokasi Anda berada di luar jangkauan pengiriman kami.",
	KindMinimumNotMet:  "Tambahkan beberapa item lagi untuk memenuhi minimum pemesanan.",
	KindTransientError: "Maaf, sistem sedang sibuk. Silakan coba lagi sebentar lagi.",
	KindTrackingUpdate: "Berikut status terbaru pesanan Anda.",
}

// StaticFallback returns the guaranteed template for kind. It never errors;
// an unknown kind returns a generic apology rather than panicking.
func StaticFallback(kind Kind) string {
	if s, ok := staticTemplates[kind]; ok {
		return s
	}
	return "Baik, akan segera kami proses."
}

// DefaultTimeout matches spec.md's PHRASE_TIMEOUT_MS default (500ms).
const DefaultTimeout = 500 * time.Millisecond

// Generate races gen.Generate against timeout and returns the static
// fallback whenever gen is nil, the call errors, or it doesn't return in
// time. The FSM must never block waiting on a decorative phrase.
func Generate(ctx context.Context, gen Generator, kind Kind, pc Context, timeout time.Duration) string {
	if gen == nil {
		return StaticFallback(kind)
	}
	if timeout <= 0 {
		timeout = DefaultTimeout
	}

	callCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	type result struct {
		text string
		err  error
	}
	done := make(chan result, 1)
	go func() {
		text, err := gen.Generate(callCtx, kind, pc)
		done <- result{text: text, err: err}
	}()

	select {
	case r := <-done:
		if r.err != nil || r.text == "" {
			return StaticFallback(kind)
		}
		return r.text
	case <-callCtx.Done():
		return StaticFallback(kind)
	}
}
