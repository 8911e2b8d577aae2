package coupon

import (
	"context"
	"errors"
	"strings"

	"github.com/microcosm-cc/bluemonday"

	"github.com/YusufAkin27/hiedra-collection-sub001/internal/domain"
	"github.com/YusufAkin27/hiedra-collection-sub001/internal/storefront"
)

const (
	appliedMessage = "Discount code applied."
	removedMessage = "Discount code removed."
	genericFailure = "The discount code could not be applied."
)

var (
	errEngineRemoteRequired   = errors.New("coupon: remote client is required")
	errEngineCartsRequired    = errors.New("coupon: cart synchronizer is required")
	errEngineIdentityRequired = errors.New("coupon: identity resolver is required")
)

// Outcome is the user-facing verdict of a coupon mutation. The message comes
// from the server verbatim (sanitized for display) when one is available.
type Outcome struct {
	Success bool   `json:"success"`
	Message string `json:"message"`
}

type remoteCoupon interface {
	ApplyCoupon(ctx context.Context, sess domain.Session, code string) (storefront.CouponOutcome, error)
	RemoveCoupon(ctx context.Context, sess domain.Session) (storefront.CouponOutcome, error)
}

type cartRefresher interface {
	Refresh(ctx context.Context) error
	Snapshot() domain.Cart
}

type identityResolver interface {
	Resolve(ctx context.Context) domain.Session
}

// EngineDeps wires the collaborators for coupon application.
type EngineDeps struct {
	Remote   remoteCoupon
	Carts    cartRefresher
	Identity identityResolver
	Logger   func(context.Context, string, map[string]any)
}

// Engine applies and removes discount codes against the remote cart. The
// discount itself is never computed client-side; a successful mutation
// triggers a cart refresh so the server's authoritative recomputation lands.
type Engine struct {
	remote   remoteCoupon
	carts    cartRefresher
	identity identityResolver
	logger   func(context.Context, string, map[string]any)
	sanitize *bluemonday.Policy
}

// NewEngine constructs an Engine enforcing dependency validation.
func NewEngine(deps EngineDeps) (*Engine, error) {
	if deps.Remote == nil {
		return nil, errEngineRemoteRequired
	}
	if deps.Carts == nil {
		return nil, errEngineCartsRequired
	}
	if deps.Identity == nil {
		return nil, errEngineIdentityRequired
	}
	logger := deps.Logger
	if logger == nil {
		logger = func(context.Context, string, map[string]any) {}
	}
	return &Engine{
		remote:   deps.Remote,
		carts:    deps.Carts,
		identity: deps.Identity,
		logger:   logger,
		sanitize: bluemonday.StrictPolicy(),
	}, nil
}

// Apply submits a discount code. On acceptance the cart is refreshed so the
// discount amount reflects the server's recomputation; on rejection or remote
// failure the local discount state is left untouched.
func (e *Engine) Apply(ctx context.Context, code string) Outcome {
	normalized := strings.ToUpper(strings.TrimSpace(code))
	if normalized == "" {
		return Outcome{Success: false, Message: genericFailure}
	}

	sess := e.identity.Resolve(ctx)
	verdict, err := e.remote.ApplyCoupon(ctx, sess, normalized)
	if err != nil {
		e.logger(ctx, "coupon.apply_failed", map[string]any{"code": normalized, "error": err.Error()})
		return Outcome{Success: false, Message: genericFailure}
	}
	if !verdict.Accepted {
		return Outcome{Success: false, Message: e.displayMessage(verdict.Message, genericFailure)}
	}

	if err := e.carts.Refresh(ctx); err != nil {
		// The code is applied server-side; totals reconcile on the next refresh.
		e.logger(ctx, "coupon.refresh_failed", map[string]any{"code": normalized, "error": err.Error()})
	}
	return Outcome{Success: true, Message: e.displayMessage(verdict.Message, appliedMessage)}
}

// Remove clears the applied discount code. Removing when none is applied is a
// no-op success.
func (e *Engine) Remove(ctx context.Context) Outcome {
	if strings.TrimSpace(e.carts.Snapshot().CouponCode) == "" {
		return Outcome{Success: true, Message: removedMessage}
	}

	sess := e.identity.Resolve(ctx)
	verdict, err := e.remote.RemoveCoupon(ctx, sess)
	if err != nil {
		e.logger(ctx, "coupon.remove_failed", map[string]any{"error": err.Error()})
		return Outcome{Success: false, Message: genericFailure}
	}
	if !verdict.Accepted {
		return Outcome{Success: false, Message: e.displayMessage(verdict.Message, genericFailure)}
	}

	if err := e.carts.Refresh(ctx); err != nil {
		e.logger(ctx, "coupon.refresh_failed", map[string]any{"error": err.Error()})
	}
	return Outcome{Success: true, Message: e.displayMessage(verdict.Message, removedMessage)}
}

func (e *Engine) displayMessage(raw, fallback string) string {
	cleaned := strings.TrimSpace(e.sanitize.Sanitize(raw))
	if cleaned == "" {
		return fallback
	}
	return cleaned
}
