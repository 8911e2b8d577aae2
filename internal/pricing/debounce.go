package pricing

import (
	"context"
	"sync"
	"time"
)

// Observer receives the quote for an input combination. Only the result of
// the most recent submitted combination is ever delivered.
type Observer func(req QuoteRequest, quote Quote, err error)

// Debouncer coalesces rapid quote submissions into a single remote request
// after a quiet period. Supersession is tracked with a monotonically
// increasing sequence number rather than timer cancellation alone: a late
// response whose sequence no longer matches the latest issue is discarded,
// so last-write-wins follows issuance order, not response-arrival order.
type Debouncer struct {
	mu      sync.Mutex
	calc    *Calculator
	quiet   time.Duration
	observe Observer
	seq     uint64
	timer   *time.Timer
	pending QuoteRequest
	closed  bool
}

// NewDebouncer wires a Debouncer over the calculator. A non-positive quiet
// period uses the default 500ms window.
func NewDebouncer(calc *Calculator, quiet time.Duration, observe Observer) *Debouncer {
	if quiet <= 0 {
		quiet = DefaultQuietPeriod
	}
	if observe == nil {
		observe = func(QuoteRequest, Quote, error) {}
	}
	return &Debouncer{calc: calc, quiet: quiet, observe: observe}
}

// Submit registers a new input combination. Earlier pending submissions are
// superseded; the quote fires only after the quiet period elapses without
// another change.
func (d *Debouncer) Submit(ctx context.Context, req QuoteRequest) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.closed {
		return
	}

	d.seq++
	d.pending = req
	issue := d.seq

	if d.timer != nil {
		d.timer.Stop()
	}
	d.timer = time.AfterFunc(d.quiet, func() {
		d.fire(ctx, issue)
	})
}

func (d *Debouncer) fire(ctx context.Context, issue uint64) {
	d.mu.Lock()
	if d.closed || issue != d.seq {
		d.mu.Unlock()
		return
	}
	req := d.pending
	d.mu.Unlock()

	quote, err := d.calc.Quote(ctx, req)

	d.mu.Lock()
	stale := d.closed || issue != d.seq
	d.mu.Unlock()
	if stale {
		return
	}
	d.observe(req, quote, err)
}

// Flush fires the pending submission immediately, bypassing the remaining
// quiet period. Used when the input loses focus.
func (d *Debouncer) Flush(ctx context.Context) {
	d.mu.Lock()
	if d.closed || d.timer == nil {
		d.mu.Unlock()
		return
	}
	d.timer.Stop()
	issue := d.seq
	d.mu.Unlock()

	d.fire(ctx, issue)
}

// Close stops the timer and suppresses any in-flight delivery.
func (d *Debouncer) Close() {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.closed = true
	if d.timer != nil {
		d.timer.Stop()
	}
}
