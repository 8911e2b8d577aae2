package checkout

import (
	"context"
	"errors"
	"strings"
	"sync"
	"time"

	"github.com/YusufAkin27/hiedra-collection-sub001/internal/domain"
	"github.com/YusufAkin27/hiedra-collection-sub001/internal/storefront"
	"go.opentelemetry.io/otel"
)

var tracer = otel.Tracer("hiedra/checkout")

var (
	// ErrSubmissionInFlight is returned when a submission is attempted while
	// a previous one has not yet resolved.
	ErrSubmissionInFlight = errors.New("checkout: submission already in flight")
	// ErrCartEmpty is returned when checkout is attempted with no lines.
	ErrCartEmpty = errors.New("checkout: cart is empty")
)

// State tracks where the orchestrator is in the payment lifecycle.
type State string

const (
	StateIdle             State = "idle"
	StateValidating       State = "validating"
	StateSubmitting       State = "submitting"
	StateAwaitingRedirect State = "awaiting_redirect"
)

// Outcome classifies what the caller should do with a Result.
type Outcome string

const (
	// OutcomeSucceeded means the order is placed and the cart was cleared.
	OutcomeSucceeded Outcome = "succeeded"
	// OutcomeFailed means the payment was declined or could not be sent.
	OutcomeFailed Outcome = "failed"
	// OutcomeChallenge means the gateway returned a step-up HTML document
	// that must take over the page.
	OutcomeChallenge Outcome = "challenge"
	// OutcomeRedirect means the buyer must be sent to an external URL.
	OutcomeRedirect Outcome = "redirect"
)

// Result is the resolved submission handed back to the transport layer.
type Result struct {
	Outcome       Outcome
	OrderRef      string
	Message       string
	ChallengeHTML []byte
	RedirectURL   string
}

// PaymentGateway submits a payment and classifies the gateway response.
type PaymentGateway interface {
	SubmitPayment(ctx context.Context, req storefront.PaymentRequest) (storefront.PaymentResponse, error)
}

// CartAccess is the slice of the cart synchronizer the orchestrator needs.
type CartAccess interface {
	Snapshot() domain.Cart
	Totals() (subtotal, discount, total float64)
	Clear(ctx context.Context)
}

// IdentityResolver yields the session whose identity key the order is
// submitted under.
type IdentityResolver interface {
	Resolve(ctx context.Context) domain.Session
}

// OrchestratorDeps carries the orchestrator's collaborators.
type OrchestratorDeps struct {
	Gateway   PaymentGateway
	Carts     CartAccess
	Identity  IdentityResolver
	Snapshots *SnapshotStore
	IDGen     func() string
	Clock     func() time.Time
	Logger    func(ctx context.Context, event string, fields map[string]any)
}

// Orchestrator drives a checkout submission from validation through the
// gateway verdict, including redirect continuations.
type Orchestrator struct {
	gateway   PaymentGateway
	carts     CartAccess
	identity  IdentityResolver
	snapshots *SnapshotStore
	idGen     func() string
	now       func() time.Time
	logger    func(ctx context.Context, event string, fields map[string]any)

	mu    sync.Mutex
	state State
}

// NewOrchestrator validates dependencies and returns a ready orchestrator.
func NewOrchestrator(deps OrchestratorDeps) (*Orchestrator, error) {
	if deps.Gateway == nil {
		return nil, errors.New("checkout: payment gateway is required")
	}
	if deps.Carts == nil {
		return nil, errors.New("checkout: cart access is required")
	}
	if deps.Identity == nil {
		return nil, errors.New("checkout: identity resolver is required")
	}
	if deps.Snapshots == nil {
		return nil, errors.New("checkout: snapshot store is required")
	}
	if deps.IDGen == nil {
		return nil, errors.New("checkout: id generator is required")
	}
	clock := deps.Clock
	if clock == nil {
		clock = time.Now
	}
	logger := deps.Logger
	if logger == nil {
		logger = func(context.Context, string, map[string]any) {}
	}
	return &Orchestrator{
		gateway:   deps.Gateway,
		carts:     deps.Carts,
		identity:  deps.Identity,
		snapshots: deps.Snapshots,
		idGen:     deps.IDGen,
		now:       func() time.Time { return clock().UTC() },
		logger:    logger,
		state:     StateIdle,
	}, nil
}

// CurrentState reports the lifecycle phase, mainly for the UI layer.
func (o *Orchestrator) CurrentState() State {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.state
}

// Submit runs one checkout attempt. Re-entrant calls while a submission is
// unresolved are rejected rather than queued, so a double-clicked pay button
// produces exactly one payment request.
func (o *Orchestrator) Submit(ctx context.Context, sessionID string, form Form) (Result, error) {
	ctx, span := tracer.Start(ctx, "checkout.Submit")
	defer span.End()

	if err := o.begin(); err != nil {
		return Result{}, err
	}

	result, err := o.submitLocked(ctx, sessionID, form)
	o.settle(result)
	return result, err
}

func (o *Orchestrator) begin() error {
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.state == StateSubmitting || o.state == StateValidating {
		return ErrSubmissionInFlight
	}
	o.state = StateValidating
	return nil
}

func (o *Orchestrator) settle(result Result) {
	o.mu.Lock()
	defer o.mu.Unlock()
	switch result.Outcome {
	case OutcomeChallenge, OutcomeRedirect:
		o.state = StateAwaitingRedirect
	default:
		o.state = StateIdle
	}
}

func (o *Orchestrator) submitLocked(ctx context.Context, sessionID string, form Form) (Result, error) {
	if err := form.Validate(); err != nil {
		return Result{Outcome: OutcomeFailed, Message: err.Error()}, err
	}

	cart := o.carts.Snapshot()
	if len(cart.Lines) == 0 {
		return Result{Outcome: OutcomeFailed, Message: "your cart is empty"}, ErrCartEmpty
	}
	_, discount, total := o.carts.Totals()

	o.mu.Lock()
	o.state = StateSubmitting
	o.mu.Unlock()

	orderRef := "ORD-" + o.idGen()
	req := o.buildRequest(ctx, orderRef, form, cart, total)

	// The submission must resolve even if the buyer navigates away and the
	// inbound request context is cancelled.
	resp, err := o.gateway.SubmitPayment(context.WithoutCancel(ctx), req)
	if err != nil {
		o.logger(ctx, "checkout.submit.unreachable", map[string]any{"order_ref": orderRef, "error": err.Error()})
		return Result{Outcome: OutcomeFailed, Message: "payment could not be processed, please try again"}, nil
	}

	switch resp.Kind {
	case storefront.PaymentKindChallenge:
		o.snapshots.Put(sessionID, o.buildSnapshot(form, cart, total, discount))
		o.logger(ctx, "checkout.submit.challenge", map[string]any{"order_ref": orderRef})
		return Result{Outcome: OutcomeChallenge, OrderRef: orderRef, ChallengeHTML: resp.ChallengeHTML}, nil

	case storefront.PaymentKindRedirect:
		o.snapshots.Put(sessionID, o.buildSnapshot(form, cart, total, discount))
		o.logger(ctx, "checkout.submit.redirect", map[string]any{"order_ref": orderRef})
		return Result{Outcome: OutcomeRedirect, OrderRef: orderRef, RedirectURL: resp.RedirectURL}, nil

	default:
		if resp.Result.Success {
			return o.finalize(ctx, orderRef, resp.Result), nil
		}
		message := strings.TrimSpace(resp.Result.Message)
		if message == "" {
			message = "payment was declined"
		}
		o.logger(ctx, "checkout.submit.declined", map[string]any{"order_ref": orderRef})
		return Result{Outcome: OutcomeFailed, OrderRef: orderRef, Message: message}, nil
	}
}

// HandleCallback resumes a checkout after the buyer returns from an external
// flow. The persisted snapshot is consumed exactly once; a second callback
// for the same session finds nothing and reports failure.
func (o *Orchestrator) HandleCallback(ctx context.Context, sessionID string, verdict PaymentVerdict) Result {
	ctx, span := tracer.Start(ctx, "checkout.HandleCallback")
	defer span.End()

	snapshot, ok := o.snapshots.Take(sessionID)

	o.mu.Lock()
	o.state = StateIdle
	o.mu.Unlock()

	if !ok {
		o.logger(ctx, "checkout.callback.orphaned", map[string]any{"order_id": verdict.OrderID})
		return Result{Outcome: OutcomeFailed, Message: "payment session expired, please try again"}
	}

	if !verdict.Success {
		message := strings.TrimSpace(verdict.Message)
		if message == "" {
			message = "payment was declined"
		}
		o.logger(ctx, "checkout.callback.declined", map[string]any{"order_id": verdict.OrderID})
		return Result{Outcome: OutcomeFailed, OrderRef: verdict.OrderID, Message: message}
	}

	orderRef := strings.TrimSpace(verdict.OrderID)
	if orderRef == "" {
		orderRef = "ORD-" + o.idGen()
	}
	o.logger(ctx, "checkout.callback.succeeded", map[string]any{
		"order_ref": orderRef,
		"total":     snapshot.Total,
	})
	o.carts.Clear(ctx)
	return Result{Outcome: OutcomeSucceeded, OrderRef: orderRef, Message: "order placed"}
}

// PaymentVerdict is the gateway's callback payload after an external flow.
type PaymentVerdict struct {
	Success bool   `json:"success"`
	OrderID string `json:"orderId,omitempty"`
	Message string `json:"message,omitempty"`
}

func (o *Orchestrator) finalize(ctx context.Context, orderRef string, result storefront.PaymentResult) Result {
	if ref := strings.TrimSpace(result.OrderID); ref != "" {
		orderRef = ref
	}
	o.logger(ctx, "checkout.submit.succeeded", map[string]any{"order_ref": orderRef})
	o.carts.Clear(ctx)
	message := strings.TrimSpace(result.Message)
	if message == "" {
		message = "order placed"
	}
	return Result{Outcome: OutcomeSucceeded, OrderRef: orderRef, Message: message}
}

func (o *Orchestrator) buildRequest(ctx context.Context, orderRef string, form Form, cart domain.Cart, total float64) storefront.PaymentRequest {
	sess := o.identity.Resolve(ctx)

	lines := make([]storefront.PaymentLine, 0, len(cart.Lines))
	for _, line := range cart.Lines {
		pl := storefront.PaymentLine{
			ProductID: line.ProductID,
			Quantity:  line.Quantity,
			Amount:    line.Subtotal(),
		}
		if line.Dimensions != nil {
			pl.Width = line.Dimensions.WidthCM
			pl.Height = line.Dimensions.HeightCM
			pl.PleatType = string(line.Dimensions.Pleat)
		}
		lines = append(lines, pl)
	}

	return storefront.PaymentRequest{
		IdentityKey:    sess.Key(),
		Contact:        form.Contact,
		DeliveryAddr:   form.DeliveryAddr,
		InvoiceAddr:    form.EffectiveInvoiceAddr(),
		CardNumber:     strings.ReplaceAll(strings.TrimSpace(form.CardNumber), " ", ""),
		CardExpiry:     strings.TrimSpace(form.CardExpiry),
		CardCVV:        strings.TrimSpace(form.CardCVV),
		Lines:          lines,
		Total:          total,
		CouponCode:     cart.CouponCode,
		IdempotencyKey: orderRef,
	}
}

// buildSnapshot captures everything needed to finish the order after a
// redirect. Card data is deliberately absent.
func (o *Orchestrator) buildSnapshot(form Form, cart domain.Cart, total, discount float64) domain.CheckoutSnapshot {
	return domain.CheckoutSnapshot{
		Contact:        form.Contact,
		DeliveryAddr:   form.DeliveryAddr,
		InvoiceAddr:    form.EffectiveInvoiceAddr(),
		Lines:          domain.CloneLines(cart.Lines),
		Total:          total,
		CouponCode:     cart.CouponCode,
		DiscountAmount: discount,
		CreatedAt:      o.now(),
	}
}
