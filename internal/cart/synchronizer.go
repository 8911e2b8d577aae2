package cart

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"

	"go.opentelemetry.io/otel"

	"github.com/YusufAkin27/hiedra-collection-sub001/internal/domain"
	"github.com/YusufAkin27/hiedra-collection-sub001/internal/pricing"
	"github.com/YusufAkin27/hiedra-collection-sub001/internal/storefront"
)

var tracer = otel.Tracer("github.com/YusufAkin27/hiedra-collection-sub001/internal/cart")

var (
	// ErrCartInvalidInput indicates the caller supplied invalid input.
	ErrCartInvalidInput = errors.New("cart: invalid input")
	// ErrLineNotFound indicates no line exists under the given key.
	ErrLineNotFound = errors.New("cart: line not found")

	errCartRemoteRequired   = errors.New("cart: remote client is required")
	errCartCacheRequired    = errors.New("cart: durable cache is required")
	errCartIdentityRequired = errors.New("cart: identity resolver is required")
)

// RemoteState records the outcome of the remote half of a two-phase mutation.
type RemoteState string

const (
	// RemoteConfirmed means the server accepted the mutation.
	RemoteConfirmed RemoteState = "confirmed"
	// RemoteFailed means the server rejected or was unreachable; the local
	// mutation is retained as a best-effort fallback.
	RemoteFailed RemoteState = "failed"
	// RemotePending means no remote call applied (e.g. no server line id).
	RemotePending RemoteState = "pending"
)

// MutationResult is the explicit two-phase outcome: the local mutation always
// applies, the remote confirmation may lag or fail.
type MutationResult struct {
	Line   domain.CartLine
	Remote RemoteState
}

type identityResolver interface {
	Resolve(ctx context.Context) domain.Session
}

type remoteCart interface {
	FetchCart(ctx context.Context, sess domain.Session) (storefront.CartPayload, error)
	CreateLineItem(ctx context.Context, sess domain.Session, item storefront.LineItemPayload) (storefront.LineItemPayload, error)
	UpdateLineItem(ctx context.Context, sess domain.Session, lineID string, quantity int) error
	DeleteLineItem(ctx context.Context, sess domain.Session, lineID string) error
}

// SynchronizerDeps wires the collaborators for cart state synchronisation.
type SynchronizerDeps struct {
	Remote   remoteCart
	Cache    *Cache
	Identity identityResolver
	Logger   func(context.Context, string, map[string]any)
}

// Synchronizer owns the in-memory cart lines, mirrors them into the durable
// cache, and reconciles against the remote cart service. The remote service
// is the system of record; the local view is a bounded-staleness cache that
// is replaced, never merged, when a remote refresh succeeds.
type Synchronizer struct {
	mu       sync.Mutex
	remote   remoteCart
	cache    *Cache
	identity identityResolver
	logger   func(context.Context, string, map[string]any)
	cart     domain.Cart
	loaded   bool
}

// NewSynchronizer constructs a Synchronizer enforcing dependency validation.
func NewSynchronizer(deps SynchronizerDeps) (*Synchronizer, error) {
	if deps.Remote == nil {
		return nil, errCartRemoteRequired
	}
	if deps.Cache == nil {
		return nil, errCartCacheRequired
	}
	if deps.Identity == nil {
		return nil, errCartIdentityRequired
	}
	logger := deps.Logger
	if logger == nil {
		logger = func(context.Context, string, map[string]any) {}
	}
	return &Synchronizer{
		remote:   deps.Remote,
		cache:    deps.Cache,
		identity: deps.Identity,
		logger:   logger,
		cart:     domain.Cart{Lines: []domain.CartLine{}},
	}, nil
}

// Load primes the in-memory cart: unexpired cached lines first, then a remote
// fetch that replaces them wholesale. A broken backend degrades to the cached
// view, or an empty cart when no cache exists, never an error.
func (s *Synchronizer) Load(ctx context.Context) domain.Cart {
	s.mu.Lock()
	if !s.loaded {
		if lines, ok, err := s.cache.Load(); err == nil && ok {
			s.cart.Lines = lines
		} else if err != nil {
			s.logger(ctx, "cart.cache_read_failed", map[string]any{"error": err.Error()})
		}
		s.loaded = true
	}
	s.mu.Unlock()

	if err := s.Refresh(ctx); err != nil {
		s.logger(ctx, "cart.load_degraded", map[string]any{"error": err.Error()})
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	return s.cart.Clone()
}

// Snapshot returns a copy of the current local view without touching the
// network.
func (s *Synchronizer) Snapshot() domain.Cart {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.cart.Clone()
}

// Add inserts or merges a line by its derived key, then attempts the remote
// creation. The optimistic local mutation is retained even when the server is
// unreachable.
func (s *Synchronizer) Add(ctx context.Context, productID string, rate float64, dims *domain.Dimensions, quantity int) (MutationResult, error) {
	productID = strings.TrimSpace(productID)
	if productID == "" {
		return MutationResult{}, fmt.Errorf("%w: product id is required", ErrCartInvalidInput)
	}
	if quantity <= 0 {
		return MutationResult{}, fmt.Errorf("%w: quantity must be greater than zero", ErrCartInvalidInput)
	}
	if dims != nil {
		if err := dims.Validate(); err != nil {
			return MutationResult{}, err
		}
	}

	key := domain.LineKey(productID, dims)

	s.mu.Lock()
	idx := s.indexOfLocked(key)
	if idx >= 0 {
		line := &s.cart.Lines[idx]
		line.Quantity += quantity
		if line.Dimensions != nil {
			subtotal := domain.Round2(pricing.Fallback(line.UnitRate, *line.Dimensions) * float64(line.Quantity))
			line.ComputedSubtotal = &subtotal
		}
	} else {
		line := domain.CartLine{
			LineKey:   key,
			ProductID: productID,
			UnitRate:  rate,
			Quantity:  quantity,
		}
		if dims != nil {
			d := *dims
			line.Dimensions = &d
			subtotal := domain.Round2(pricing.Fallback(rate, d) * float64(quantity))
			line.ComputedSubtotal = &subtotal
		}
		s.cart.Lines = append(s.cart.Lines, line)
		idx = len(s.cart.Lines) - 1
	}
	s.mirrorLocked(ctx)
	payload := lineToPayload(s.cart.Lines[idx])
	s.mu.Unlock()

	sess := s.identity.Resolve(ctx)
	saved, err := s.remote.CreateLineItem(ctx, sess, payload)
	if err != nil {
		s.logger(ctx, "cart.remote_add_failed", map[string]any{"lineKey": key, "error": err.Error()})
		return MutationResult{Line: s.lineCopy(key), Remote: RemoteFailed}, nil
	}

	s.mu.Lock()
	if idx := s.indexOfLocked(key); idx >= 0 {
		s.cart.Lines[idx].RemoteLineID = saved.ID
		if saved.ComputedAmount > 0 {
			amount := domain.Round2(saved.ComputedAmount)
			s.cart.Lines[idx].ComputedSubtotal = &amount
		}
		s.mirrorLocked(ctx)
	}
	s.mu.Unlock()

	return MutationResult{Line: s.lineCopy(key), Remote: RemoteConfirmed}, nil
}

// UpdateQuantity changes a line's quantity; zero or negative removes the line.
// A remote update is attempted first when the line is server-known, but the
// local mutation applies regardless of the remote outcome.
func (s *Synchronizer) UpdateQuantity(ctx context.Context, lineKey string, quantity int) (MutationResult, error) {
	if quantity <= 0 {
		return s.Remove(ctx, lineKey)
	}

	s.mu.Lock()
	idx := s.indexOfLocked(lineKey)
	if idx < 0 {
		s.mu.Unlock()
		return MutationResult{}, ErrLineNotFound
	}
	remoteID := s.cart.Lines[idx].RemoteLineID
	s.mu.Unlock()

	remote := RemotePending
	if remoteID != "" {
		sess := s.identity.Resolve(ctx)
		if err := s.remote.UpdateLineItem(ctx, sess, remoteID, quantity); err != nil {
			s.logger(ctx, "cart.remote_update_failed", map[string]any{"lineKey": lineKey, "error": err.Error()})
			remote = RemoteFailed
		} else {
			remote = RemoteConfirmed
		}
	}

	s.mu.Lock()
	if idx := s.indexOfLocked(lineKey); idx >= 0 {
		line := &s.cart.Lines[idx]
		if line.ComputedSubtotal != nil && line.Quantity > 0 {
			perUnit := *line.ComputedSubtotal / float64(line.Quantity)
			scaled := domain.Round2(perUnit * float64(quantity))
			line.ComputedSubtotal = &scaled
		}
		line.Quantity = quantity
		s.mirrorLocked(ctx)
	}
	s.mu.Unlock()

	return MutationResult{Line: s.lineCopy(lineKey), Remote: remote}, nil
}

// Remove deletes a line locally and, for server-known lines, attempts the
// remote deletion. The local removal applies regardless of the remote outcome.
func (s *Synchronizer) Remove(ctx context.Context, lineKey string) (MutationResult, error) {
	s.mu.Lock()
	idx := s.indexOfLocked(lineKey)
	if idx < 0 {
		s.mu.Unlock()
		return MutationResult{}, ErrLineNotFound
	}
	removed := s.cart.Lines[idx]
	s.cart.Lines = append(s.cart.Lines[:idx], s.cart.Lines[idx+1:]...)
	s.mirrorLocked(ctx)
	s.mu.Unlock()

	remote := RemotePending
	if removed.RemoteLineID != "" {
		sess := s.identity.Resolve(ctx)
		if err := s.remote.DeleteLineItem(ctx, sess, removed.RemoteLineID); err != nil {
			s.logger(ctx, "cart.remote_remove_failed", map[string]any{"lineKey": lineKey, "error": err.Error()})
			remote = RemoteFailed
		} else {
			remote = RemoteConfirmed
		}
	}

	return MutationResult{Line: removed, Remote: remote}, nil
}

// Refresh re-fetches the remote cart and replaces the local view wholesale.
// This is the reconciliation point after coupon application or an identity
// change. On failure the local view is left untouched and the error returned
// for logging; callers never surface it to the user.
func (s *Synchronizer) Refresh(ctx context.Context) error {
	ctx, span := tracer.Start(ctx, "cart.Refresh")
	defer span.End()

	sess := s.identity.Resolve(ctx)
	payload, err := s.remote.FetchCart(ctx, sess)
	if err != nil {
		span.RecordError(err)
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.cart = cartFromPayload(payload)
	s.loaded = true
	s.mirrorLocked(ctx)
	return nil
}

// HandleIdentityChange runs the exactly-once refresh policy for a new
// identity: the previous identity's cached lines must not survive a login.
func (s *Synchronizer) HandleIdentityChange(ctx context.Context, sess domain.Session) {
	s.logger(ctx, "cart.identity_refresh", map[string]any{"authenticated": sess.IsAuthenticated})
	if err := s.Refresh(ctx); err != nil {
		// The previous identity's lines must not leak into the new one.
		s.logger(ctx, "cart.identity_refresh_failed", map[string]any{"error": err.Error()})
		s.mu.Lock()
		s.cart = domain.Cart{Lines: []domain.CartLine{}}
		s.mirrorLocked(ctx)
		s.mu.Unlock()
	}
}

// Clear empties the local state and the durable cache. Used after order
// completion; the server cart is settled by the order itself.
func (s *Synchronizer) Clear(ctx context.Context) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.cart = domain.Cart{Lines: []domain.CartLine{}}
	if err := s.cache.Clear(); err != nil {
		s.logger(ctx, "cart.cache_clear_failed", map[string]any{"error": err.Error()})
	}
}

// Totals reports subtotal, discount and total for the local view.
func (s *Synchronizer) Totals() (subtotal, discount, total float64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.cart.Subtotal(), s.cart.DiscountAmount, s.cart.Total()
}

func (s *Synchronizer) indexOfLocked(lineKey string) int {
	for i, line := range s.cart.Lines {
		if line.LineKey == lineKey {
			return i
		}
	}
	return -1
}

func (s *Synchronizer) mirrorLocked(ctx context.Context) {
	if err := s.cache.Save(s.cart.Lines); err != nil {
		s.logger(ctx, "cart.cache_write_failed", map[string]any{"error": err.Error()})
	}
}

func (s *Synchronizer) lineCopy(lineKey string) domain.CartLine {
	s.mu.Lock()
	defer s.mu.Unlock()
	if idx := s.indexOfLocked(lineKey); idx >= 0 {
		lines := domain.CloneLines(s.cart.Lines[idx : idx+1])
		return lines[0]
	}
	return domain.CartLine{LineKey: lineKey}
}

func lineToPayload(line domain.CartLine) storefront.LineItemPayload {
	payload := storefront.LineItemPayload{
		ID:        line.RemoteLineID,
		ProductID: line.ProductID,
		Quantity:  line.Quantity,
		UnitRate:  line.UnitRate,
	}
	if line.Dimensions != nil {
		payload.Width = line.Dimensions.WidthCM
		payload.Height = line.Dimensions.HeightCM
		payload.PleatType = string(line.Dimensions.Pleat)
	}
	if line.ComputedSubtotal != nil {
		payload.ComputedAmount = *line.ComputedSubtotal
	}
	return payload
}

func cartFromPayload(payload storefront.CartPayload) domain.Cart {
	cart := domain.Cart{
		ID:             strings.TrimSpace(payload.ID),
		Lines:          make([]domain.CartLine, 0, len(payload.Items)),
		CouponCode:     strings.TrimSpace(payload.CouponCode),
		DiscountAmount: domain.Round2(payload.DiscountAmount),
	}
	for _, item := range payload.Items {
		if item.Quantity <= 0 {
			continue
		}
		line := domain.CartLine{
			ProductID:    strings.TrimSpace(item.ProductID),
			UnitRate:     item.UnitRate,
			Quantity:     item.Quantity,
			RemoteLineID: strings.TrimSpace(item.ID),
		}
		if item.Width > 0 || item.Height > 0 || strings.TrimSpace(item.PleatType) != "" {
			pleat, err := domain.ParsePleatDensity(item.PleatType)
			if err != nil {
				pleat = domain.Pleat1x1
			}
			line.Dimensions = &domain.Dimensions{
				WidthCM:  item.Width,
				HeightCM: item.Height,
				Pleat:    pleat,
			}
		}
		if item.ComputedAmount > 0 {
			amount := domain.Round2(item.ComputedAmount)
			line.ComputedSubtotal = &amount
		}
		line.LineKey = domain.LineKey(line.ProductID, line.Dimensions)
		cart.Lines = append(cart.Lines, line)
	}
	return cart
}
