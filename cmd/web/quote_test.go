package main

import (
	"context"
	"testing"
	"time"

	"github.com/YusufAkin27/hiedra-collection-sub001/internal/pricing"
	"github.com/YusufAkin27/hiedra-collection-sub001/internal/storefront"
)

type stubQuoteRemote struct{}

func (stubQuoteRemote) QuotePrice(context.Context, storefront.QuotePayload) (float64, error) {
	return 0, nil
}

func newTestQuoteHub(t *testing.T) *quoteHub {
	t.Helper()
	calc, err := pricing.NewCalculator(pricing.CalculatorDeps{Remote: stubQuoteRemote{}})
	if err != nil {
		t.Fatalf("calculator: %v", err)
	}
	return newQuoteHub(calc, 10*time.Millisecond)
}

func TestQuoteHubSweepsIdleSessions(t *testing.T) {
	hub := newTestQuoteHub(t)
	defer hub.Close()

	current := time.Now()
	hub.now = func() time.Time { return current }

	if hub.forSession("drifter") == nil {
		t.Fatal("expected a session entry")
	}
	current = current.Add(2 * time.Hour)
	if hub.forSession("shopper") == nil {
		t.Fatal("expected a session entry")
	}

	if removed := hub.sweepIdle(time.Hour); removed != 1 {
		t.Fatalf("expected 1 eviction, got %d", removed)
	}
	hub.mu.Lock()
	_, drifterKept := hub.sessions["drifter"]
	_, shopperKept := hub.sessions["shopper"]
	hub.mu.Unlock()
	if drifterKept {
		t.Fatal("idle session survived the sweep")
	}
	if !shopperKept {
		t.Fatal("recently active session was evicted")
	}
}

func TestQuoteHubRevisitResetsIdleClock(t *testing.T) {
	hub := newTestQuoteHub(t)
	defer hub.Close()

	current := time.Now()
	hub.now = func() time.Time { return current }

	hub.forSession("shopper")
	current = current.Add(50 * time.Minute)
	hub.forSession("shopper")
	current = current.Add(50 * time.Minute)

	if removed := hub.sweepIdle(time.Hour); removed != 0 {
		t.Fatalf("revisited session must not be evicted, removed %d", removed)
	}
}
