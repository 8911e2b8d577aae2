package cart

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/YusufAkin27/hiedra-collection-sub001/internal/domain"
	"github.com/YusufAkin27/hiedra-collection-sub001/internal/storefront"
)

type stubRemoteCart struct {
	fetchFunc  func(ctx context.Context, sess domain.Session) (storefront.CartPayload, error)
	createFunc func(ctx context.Context, sess domain.Session, item storefront.LineItemPayload) (storefront.LineItemPayload, error)
	updateFunc func(ctx context.Context, sess domain.Session, lineID string, quantity int) error
	deleteFunc func(ctx context.Context, sess domain.Session, lineID string) error

	fetchCalls  int
	createCalls int
	updateCalls int
	deleteCalls int
}

func (s *stubRemoteCart) FetchCart(ctx context.Context, sess domain.Session) (storefront.CartPayload, error) {
	s.fetchCalls++
	if s.fetchFunc == nil {
		return storefront.CartPayload{}, errors.New("unreachable")
	}
	return s.fetchFunc(ctx, sess)
}

func (s *stubRemoteCart) CreateLineItem(ctx context.Context, sess domain.Session, item storefront.LineItemPayload) (storefront.LineItemPayload, error) {
	s.createCalls++
	if s.createFunc == nil {
		return storefront.LineItemPayload{}, errors.New("unreachable")
	}
	return s.createFunc(ctx, sess, item)
}

func (s *stubRemoteCart) UpdateLineItem(ctx context.Context, sess domain.Session, lineID string, quantity int) error {
	s.updateCalls++
	if s.updateFunc == nil {
		return errors.New("unreachable")
	}
	return s.updateFunc(ctx, sess, lineID, quantity)
}

func (s *stubRemoteCart) DeleteLineItem(ctx context.Context, sess domain.Session, lineID string) error {
	s.deleteCalls++
	if s.deleteFunc == nil {
		return errors.New("unreachable")
	}
	return s.deleteFunc(ctx, sess, lineID)
}

type stubIdentity struct {
	sess domain.Session
}

func (s *stubIdentity) Resolve(context.Context) domain.Session { return s.sess }

func newTestSynchronizer(t *testing.T, remote *stubRemoteCart) *Synchronizer {
	t.Helper()
	cache, err := NewCache(t.TempDir(), time.Hour, time.Now)
	if err != nil {
		t.Fatalf("cache: %v", err)
	}
	sync, err := NewSynchronizer(SynchronizerDeps{
		Remote:   remote,
		Cache:    cache,
		Identity: &stubIdentity{sess: domain.Session{GuestID: "guest-1"}},
	})
	if err != nil {
		t.Fatalf("synchronizer: %v", err)
	}
	return sync
}

func measured() *domain.Dimensions {
	return &domain.Dimensions{WidthCM: 200, HeightCM: 240, Pleat: domain.Pleat1x2}
}

func TestAddConfirmedAttachesRemoteLineID(t *testing.T) {
	remote := &stubRemoteCart{
		createFunc: func(_ context.Context, sess domain.Session, item storefront.LineItemPayload) (storefront.LineItemPayload, error) {
			if sess.Key() != "guest-1" {
				t.Fatalf("unexpected identity %q", sess.Key())
			}
			item.ID = "srv-9"
			item.ComputedAmount = 400
			return item, nil
		},
	}
	sync := newTestSynchronizer(t, remote)

	result, err := sync.Add(context.Background(), "curtain-1", 100, measured(), 1)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if result.Remote != RemoteConfirmed {
		t.Fatalf("expected confirmed, got %q", result.Remote)
	}
	if result.Line.RemoteLineID != "srv-9" {
		t.Fatalf("expected server line id, got %q", result.Line.RemoteLineID)
	}
	if result.Line.Subtotal() != 400 {
		t.Fatalf("expected server amount adopted, got %v", result.Line.Subtotal())
	}
}

func TestAddRetainsLocalLineWhenRemoteFails(t *testing.T) {
	remote := &stubRemoteCart{}
	sync := newTestSynchronizer(t, remote)

	result, err := sync.Add(context.Background(), "curtain-1", 100, measured(), 2)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if result.Remote != RemoteFailed {
		t.Fatalf("expected failed remote state, got %q", result.Remote)
	}

	snapshot := sync.Snapshot()
	if len(snapshot.Lines) != 1 {
		t.Fatalf("optimistic line must be retained, got %d lines", len(snapshot.Lines))
	}
	// rate * (width/100) * multiplier * qty = 100 * 2 * 2 * 2
	if got := snapshot.Lines[0].Subtotal(); got != 800 {
		t.Fatalf("expected locally computed subtotal 800, got %v", got)
	}
}

func TestAddInvalidDimensionsBlocked(t *testing.T) {
	remote := &stubRemoteCart{}
	sync := newTestSynchronizer(t, remote)

	_, err := sync.Add(context.Background(), "curtain-1", 100, &domain.Dimensions{WidthCM: 10, HeightCM: 240, Pleat: domain.Pleat1x1}, 1)
	if !errors.Is(err, domain.ErrDimensionsInvalid) {
		t.Fatalf("expected ErrDimensionsInvalid, got %v", err)
	}
	if remote.createCalls != 0 {
		t.Fatalf("invalid input must not reach the server")
	}
	if len(sync.Snapshot().Lines) != 0 {
		t.Fatal("invalid input must not mutate the cart")
	}
}

func TestAddMergesEqualDimensionTuples(t *testing.T) {
	remote := &stubRemoteCart{
		createFunc: func(_ context.Context, _ domain.Session, item storefront.LineItemPayload) (storefront.LineItemPayload, error) {
			return item, nil
		},
	}
	sync := newTestSynchronizer(t, remote)

	if _, err := sync.Add(context.Background(), "curtain-1", 100, measured(), 1); err != nil {
		t.Fatalf("first add: %v", err)
	}
	if _, err := sync.Add(context.Background(), "curtain-1", 100, measured(), 2); err != nil {
		t.Fatalf("second add: %v", err)
	}
	other := &domain.Dimensions{WidthCM: 300, HeightCM: 240, Pleat: domain.Pleat1x2}
	if _, err := sync.Add(context.Background(), "curtain-1", 100, other, 1); err != nil {
		t.Fatalf("third add: %v", err)
	}

	snapshot := sync.Snapshot()
	if len(snapshot.Lines) != 2 {
		t.Fatalf("expected 2 lines (merged + distinct), got %d", len(snapshot.Lines))
	}
	if snapshot.Lines[0].Quantity != 3 {
		t.Fatalf("expected merged quantity 3, got %d", snapshot.Lines[0].Quantity)
	}
}

func TestUpdateQuantityZeroRemovesLine(t *testing.T) {
	remote := &stubRemoteCart{
		createFunc: func(_ context.Context, _ domain.Session, item storefront.LineItemPayload) (storefront.LineItemPayload, error) {
			item.ID = "srv-1"
			return item, nil
		},
		deleteFunc: func(context.Context, domain.Session, string) error { return nil },
	}
	sync := newTestSynchronizer(t, remote)

	result, err := sync.Add(context.Background(), "curtain-1", 100, measured(), 1)
	if err != nil {
		t.Fatalf("add: %v", err)
	}

	if _, err := sync.UpdateQuantity(context.Background(), result.Line.LineKey, 0); err != nil {
		t.Fatalf("update to zero: %v", err)
	}
	if len(sync.Snapshot().Lines) != 0 {
		t.Fatal("zero quantity must remove the line")
	}
	if remote.deleteCalls != 1 {
		t.Fatalf("expected remote delete, got %d calls", remote.deleteCalls)
	}
}

func TestUpdateQuantityLocalAppliesDespiteRemoteFailure(t *testing.T) {
	remote := &stubRemoteCart{
		createFunc: func(_ context.Context, _ domain.Session, item storefront.LineItemPayload) (storefront.LineItemPayload, error) {
			item.ID = "srv-1"
			return item, nil
		},
	}
	sync := newTestSynchronizer(t, remote)

	added, err := sync.Add(context.Background(), "curtain-1", 100, measured(), 1)
	if err != nil {
		t.Fatalf("add: %v", err)
	}

	result, err := sync.UpdateQuantity(context.Background(), added.Line.LineKey, 4)
	if err != nil {
		t.Fatalf("update: %v", err)
	}
	if result.Remote != RemoteFailed {
		t.Fatalf("expected failed remote state, got %q", result.Remote)
	}
	if result.Line.Quantity != 4 {
		t.Fatalf("local quantity must apply, got %d", result.Line.Quantity)
	}
}

func TestUpdateUnknownLineKey(t *testing.T) {
	sync := newTestSynchronizer(t, &stubRemoteCart{})
	if _, err := sync.UpdateQuantity(context.Background(), "missing", 2); !errors.Is(err, ErrLineNotFound) {
		t.Fatalf("expected ErrLineNotFound, got %v", err)
	}
}

func TestRefreshReplacesLocalViewWholesale(t *testing.T) {
	remote := &stubRemoteCart{
		fetchFunc: func(context.Context, domain.Session) (storefront.CartPayload, error) {
			return storefront.CartPayload{
				ID: "cart-77",
				Items: []storefront.LineItemPayload{
					{ID: "srv-1", ProductID: "curtain-2", Quantity: 1, UnitRate: 80, Width: 150, Height: 200, PleatType: "1x3", ComputedAmount: 360},
					{ID: "srv-2", ProductID: "stale", Quantity: 0, UnitRate: 10},
				},
				CouponCode:     "HIEDRA10",
				DiscountAmount: 36,
			}, nil
		},
		createFunc: func(_ context.Context, _ domain.Session, item storefront.LineItemPayload) (storefront.LineItemPayload, error) {
			return item, nil
		},
	}
	sync := newTestSynchronizer(t, remote)

	if _, err := sync.Add(context.Background(), "curtain-1", 100, measured(), 5); err != nil {
		t.Fatalf("add: %v", err)
	}
	if err := sync.Refresh(context.Background()); err != nil {
		t.Fatalf("refresh: %v", err)
	}

	snapshot := sync.Snapshot()
	if snapshot.ID != "cart-77" || snapshot.CouponCode != "HIEDRA10" {
		t.Fatalf("unexpected cart header %+v", snapshot)
	}
	if len(snapshot.Lines) != 1 {
		t.Fatalf("expected wholesale replacement with 1 valid line, got %d", len(snapshot.Lines))
	}
	line := snapshot.Lines[0]
	if line.ProductID != "curtain-2" || line.RemoteLineID != "srv-1" {
		t.Fatalf("unexpected line %+v", line)
	}
	if line.LineKey != domain.LineKey("curtain-2", line.Dimensions) {
		t.Fatalf("line key must be re-derived, got %q", line.LineKey)
	}
	if snapshot.Total() != 324 {
		t.Fatalf("expected total 324, got %v", snapshot.Total())
	}
}

func TestRefreshFailureLeavesLocalUntouched(t *testing.T) {
	remote := &stubRemoteCart{
		createFunc: func(_ context.Context, _ domain.Session, item storefront.LineItemPayload) (storefront.LineItemPayload, error) {
			return item, nil
		},
	}
	sync := newTestSynchronizer(t, remote)

	if _, err := sync.Add(context.Background(), "curtain-1", 100, measured(), 1); err != nil {
		t.Fatalf("add: %v", err)
	}
	if err := sync.Refresh(context.Background()); err == nil {
		t.Fatal("expected refresh error")
	}
	if len(sync.Snapshot().Lines) != 1 {
		t.Fatal("failed refresh must not mutate the local view")
	}
}

func TestLoadPrimesFromCacheWhenRemoteDown(t *testing.T) {
	dir := t.TempDir()
	cache, err := NewCache(dir, time.Hour, time.Now)
	if err != nil {
		t.Fatalf("cache: %v", err)
	}
	if err := cache.Save([]domain.CartLine{{
		LineKey:   "curtain-1|200x240|1x2",
		ProductID: "curtain-1",
		UnitRate:  100,
		Quantity:  2,
	}}); err != nil {
		t.Fatalf("seed cache: %v", err)
	}

	sync, err := NewSynchronizer(SynchronizerDeps{
		Remote:   &stubRemoteCart{},
		Cache:    cache,
		Identity: &stubIdentity{sess: domain.Session{GuestID: "guest-1"}},
	})
	if err != nil {
		t.Fatalf("synchronizer: %v", err)
	}

	cart := sync.Load(context.Background())
	if len(cart.Lines) != 1 || cart.Lines[0].Quantity != 2 {
		t.Fatalf("expected cached line to survive remote outage, got %+v", cart.Lines)
	}
}

func TestHandleIdentityChangeWipesOnRefreshFailure(t *testing.T) {
	remote := &stubRemoteCart{
		createFunc: func(_ context.Context, _ domain.Session, item storefront.LineItemPayload) (storefront.LineItemPayload, error) {
			return item, nil
		},
	}
	sync := newTestSynchronizer(t, remote)

	if _, err := sync.Add(context.Background(), "curtain-1", 100, measured(), 1); err != nil {
		t.Fatalf("add: %v", err)
	}

	sync.HandleIdentityChange(context.Background(), domain.Session{IsAuthenticated: true, Credential: "token"})
	if len(sync.Snapshot().Lines) != 0 {
		t.Fatal("previous identity's lines must not survive a failed refresh")
	}
}

func TestHandleIdentityChangeAdoptsServerCart(t *testing.T) {
	remote := &stubRemoteCart{
		fetchFunc: func(context.Context, domain.Session) (storefront.CartPayload, error) {
			return storefront.CartPayload{
				Items: []storefront.LineItemPayload{{ID: "srv-1", ProductID: "curtain-9", Quantity: 1, UnitRate: 60}},
			}, nil
		},
		createFunc: func(_ context.Context, _ domain.Session, item storefront.LineItemPayload) (storefront.LineItemPayload, error) {
			return item, nil
		},
	}
	sync := newTestSynchronizer(t, remote)

	if _, err := sync.Add(context.Background(), "curtain-1", 100, measured(), 1); err != nil {
		t.Fatalf("add: %v", err)
	}
	sync.HandleIdentityChange(context.Background(), domain.Session{IsAuthenticated: true, Credential: "token"})

	snapshot := sync.Snapshot()
	if len(snapshot.Lines) != 1 || snapshot.Lines[0].ProductID != "curtain-9" {
		t.Fatalf("expected server cart adopted, got %+v", snapshot.Lines)
	}
}

func TestClearEmptiesLocalAndCache(t *testing.T) {
	dir := t.TempDir()
	cache, err := NewCache(dir, time.Hour, time.Now)
	if err != nil {
		t.Fatalf("cache: %v", err)
	}
	remote := &stubRemoteCart{
		createFunc: func(_ context.Context, _ domain.Session, item storefront.LineItemPayload) (storefront.LineItemPayload, error) {
			return item, nil
		},
	}
	sync, err := NewSynchronizer(SynchronizerDeps{
		Remote:   remote,
		Cache:    cache,
		Identity: &stubIdentity{sess: domain.Session{GuestID: "guest-1"}},
	})
	if err != nil {
		t.Fatalf("synchronizer: %v", err)
	}

	if _, err := sync.Add(context.Background(), "curtain-1", 100, measured(), 1); err != nil {
		t.Fatalf("add: %v", err)
	}
	sync.Clear(context.Background())

	if len(sync.Snapshot().Lines) != 0 {
		t.Fatal("clear must empty the local view")
	}
	if _, ok, _ := cache.Load(); ok {
		t.Fatal("clear must drop the durable cache")
	}
}
