package main

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/YusufAkin27/hiedra-collection-sub001/internal/domain"
	"github.com/YusufAkin27/hiedra-collection-sub001/internal/platform/httpx"
	"github.com/YusufAkin27/hiedra-collection-sub001/internal/pricing"
	"github.com/YusufAkin27/hiedra-collection-sub001/internal/session"
)

// quoteIdleTTL bounds how long an inactive session keeps its debouncer.
const quoteIdleTTL = time.Hour

// quoteHub keeps a per-session debouncer so a buyer dragging the dimension
// sliders produces one pricing request per quiet period, and stores the most
// recent quote for polling.
type quoteHub struct {
	calc  *pricing.Calculator
	quiet time.Duration
	now   func() time.Time

	mu       sync.Mutex
	sessions map[string]*sessionQuotes
	closed   bool
}

type sessionQuotes struct {
	debouncer *pricing.Debouncer
	lastSeen  time.Time // guarded by quoteHub.mu

	mu     sync.Mutex
	latest *quoteView
}

type quoteView struct {
	ProductID string  `json:"productId"`
	Amount    float64 `json:"amount"`
	Source    string  `json:"source"`
	Degraded  bool    `json:"degraded,omitempty"`
}

func newQuoteHub(calc *pricing.Calculator, quiet time.Duration) *quoteHub {
	if quiet <= 0 {
		quiet = pricing.DefaultQuietPeriod
	}
	return &quoteHub{
		calc:     calc,
		quiet:    quiet,
		now:      time.Now,
		sessions: make(map[string]*sessionQuotes),
	}
}

func (h *quoteHub) forSession(sessionID string) *sessionQuotes {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.closed {
		return nil
	}
	if sq, ok := h.sessions[sessionID]; ok {
		sq.lastSeen = h.now()
		return sq
	}
	sq := &sessionQuotes{lastSeen: h.now()}
	sq.debouncer = pricing.NewDebouncer(h.calc, h.quiet, func(req pricing.QuoteRequest, quote pricing.Quote, err error) {
		if err != nil {
			return
		}
		sq.mu.Lock()
		sq.latest = &quoteView{
			ProductID: req.ProductID,
			Amount:    quote.Amount,
			Source:    string(quote.Source),
			Degraded:  quote.Source == pricing.SourceFallback,
		}
		sq.mu.Unlock()
	})
	h.sessions[sessionID] = sq
	return sq
}

// sweepIdle evicts sessions that have not quoted within maxIdle, closing
// their debouncers. Browsers that wander off would otherwise pin an entry
// for the life of the process.
func (h *quoteHub) sweepIdle(maxIdle time.Duration) int {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.closed {
		return 0
	}
	cutoff := h.now().Add(-maxIdle)
	removed := 0
	for id, sq := range h.sessions {
		if sq.lastSeen.Before(cutoff) {
			sq.debouncer.Close()
			delete(h.sessions, id)
			removed++
		}
	}
	return removed
}

func (h *quoteHub) Close() {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.closed = true
	for _, sq := range h.sessions {
		sq.debouncer.Close()
	}
	h.sessions = make(map[string]*sessionQuotes)
}

type quoteRequestBody struct {
	ProductID string  `json:"productId"`
	UnitRate  float64 `json:"unitRate"`
	Width     float64 `json:"width"`
	Height    float64 `json:"height"`
	PleatType string  `json:"pleatType"`
	Immediate bool    `json:"immediate,omitempty"`
}

// submitQuote prices a panel. The default path is debounced: the request is
// queued and the client polls /api/quotes/latest once the quiet period has
// passed. An immediate request bypasses the debouncer, e.g. on blur.
func (h *handlerSet) submitQuote(w http.ResponseWriter, r *http.Request) {
	var body quoteRequestBody
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		httpx.WriteError(r.Context(), w, httpx.NewError("invalid_body", "request body is not valid JSON", http.StatusBadRequest))
		return
	}

	req := pricing.QuoteRequest{
		ProductID: strings.TrimSpace(body.ProductID),
		Rate:      body.UnitRate,
		Dimensions: domain.Dimensions{
			WidthCM:  body.Width,
			HeightCM: body.Height,
			Pleat:    domain.PleatDensity(strings.TrimSpace(body.PleatType)),
		},
	}

	if body.Immediate {
		quote, err := h.quotes.calc.Quote(r.Context(), req)
		if err != nil {
			httpx.WriteError(r.Context(), w, httpx.NewError("invalid_dimensions", err.Error(), http.StatusUnprocessableEntity))
			return
		}
		httpx.WriteJSON(w, http.StatusOK, quoteView{
			ProductID: req.ProductID,
			Amount:    quote.Amount,
			Source:    string(quote.Source),
			Degraded:  quote.Source == pricing.SourceFallback,
		})
		return
	}

	sq := h.quotes.forSession(session.FromRequest(r).ID)
	if sq == nil {
		httpx.WriteError(r.Context(), w, httpx.NewError("unavailable", "quoting is shutting down", http.StatusServiceUnavailable))
		return
	}
	// The timer outlives the request, so the quote must not die with it.
	sq.debouncer.Submit(context.WithoutCancel(r.Context()), req)
	httpx.WriteJSON(w, http.StatusAccepted, map[string]any{"queued": true})
}

func (h *handlerSet) latestQuote(w http.ResponseWriter, r *http.Request) {
	sq := h.quotes.forSession(session.FromRequest(r).ID)
	if sq == nil {
		httpx.WriteError(r.Context(), w, httpx.NewError("unavailable", "quoting is shutting down", http.StatusServiceUnavailable))
		return
	}
	sq.mu.Lock()
	latest := sq.latest
	sq.mu.Unlock()
	if latest == nil {
		httpx.WriteJSON(w, http.StatusOK, map[string]any{"ready": false})
		return
	}
	httpx.WriteJSON(w, http.StatusOK, latest)
}
