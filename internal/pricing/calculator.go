package pricing

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/YusufAkin27/hiedra-collection-sub001/internal/domain"
	"github.com/YusufAkin27/hiedra-collection-sub001/internal/storefront"
)

var (
	// ErrPricingInvalidInput indicates the requested dimensions are outside
	// the producible range. Callers block the quote, they do not crash.
	ErrPricingInvalidInput = errors.New("pricing: invalid input")

	errCalculatorRemoteRequired = errors.New("pricing: remote quoter is required")
)

// Source records which path produced a quote.
type Source string

const (
	// SourceNone means no quote was attempted (missing dimensions).
	SourceNone Source = "none"
	// SourceRemote means the pricing service computed the amount.
	SourceRemote Source = "remote"
	// SourceFallback means the local deterministic formula was used.
	SourceFallback Source = "fallback"
)

// QuoteRequest identifies one input combination to price.
type QuoteRequest struct {
	ProductID  string
	Rate       float64
	Dimensions domain.Dimensions
}

// Quote is a monetary amount rounded to two decimals plus its provenance.
type Quote struct {
	Amount float64
	Source Source
}

type remoteQuoter interface {
	QuotePrice(ctx context.Context, payload storefront.QuotePayload) (float64, error)
}

// CalculatorDeps wires the remote pricing collaborator.
type CalculatorDeps struct {
	Remote remoteQuoter
	Logger func(context.Context, string, map[string]any)
}

// Calculator prices a panel for the requested dimensions. The remote pricing
// service is preferred; any failure falls back to the local formula, which is
// numerically identical to what the server is expected to compute.
type Calculator struct {
	remote remoteQuoter
	logger func(context.Context, string, map[string]any)
}

// NewCalculator constructs a Calculator validating required dependencies.
func NewCalculator(deps CalculatorDeps) (*Calculator, error) {
	if deps.Remote == nil {
		return nil, errCalculatorRemoteRequired
	}
	logger := deps.Logger
	if logger == nil {
		logger = func(context.Context, string, map[string]any) {}
	}
	return &Calculator{remote: deps.Remote, logger: logger}, nil
}

// Quote computes the amount for one panel. Missing dimensions yield a zero
// quote without touching the network; out-of-range dimensions are an error.
func (c *Calculator) Quote(ctx context.Context, req QuoteRequest) (Quote, error) {
	if req.Dimensions.IsZero() {
		return Quote{Source: SourceNone}, nil
	}
	if err := req.Dimensions.Validate(); err != nil {
		return Quote{}, fmt.Errorf("%w: %v", ErrPricingInvalidInput, err)
	}

	amount, err := c.remote.QuotePrice(ctx, storefront.QuotePayload{
		ProductID: req.ProductID,
		Width:     req.Dimensions.WidthCM,
		Height:    req.Dimensions.HeightCM,
		PleatType: string(req.Dimensions.Pleat),
		Price:     req.Rate,
	})
	if err != nil {
		c.logger(ctx, "pricing.remote_failed", map[string]any{
			"productId": req.ProductID,
			"error":     err.Error(),
		})
		return Quote{Amount: Fallback(req.Rate, req.Dimensions), Source: SourceFallback}, nil
	}
	return Quote{Amount: domain.Round2(amount), Source: SourceRemote}, nil
}

// Fallback computes the deterministic local price. The formula must stay in
// lockstep with the server's pricing rule so the two paths never visibly
// disagree: rate * (width/100) * pleatMultiplier, rounded to two decimals.
func Fallback(rate float64, dims domain.Dimensions) float64 {
	return domain.Round2(rate * (dims.WidthCM / 100) * dims.Pleat.Multiplier())
}

// DefaultQuietPeriod is the debounce window applied between keystrokes.
const DefaultQuietPeriod = 500 * time.Millisecond
