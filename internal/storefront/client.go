package storefront

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"

	"github.com/YusufAkin27/hiedra-collection-sub001/internal/domain"
)

const (
	defaultTimeout  = 8 * time.Second
	guestHeader     = "X-Guest-Id"
	maxErrorPreview = 256
	maxBodyBytes    = 4 << 20
)

var tracer = otel.Tracer("github.com/YusufAkin27/hiedra-collection-sub001/internal/storefront")

// ErrRemoteUnavailable wraps transport failures and non-2xx statuses from the
// storefront services. Callers degrade rather than surface it.
var ErrRemoteUnavailable = errors.New("storefront: remote unavailable")

// ErrMalformedResponse indicates the remote body could not be decoded.
var ErrMalformedResponse = errors.New("storefront: malformed response")

// Client issues calls against the remote storefront API, the system of record
// for carts, pricing, coupons and payments.
type Client struct {
	baseURL string
	http    *http.Client
}

// NewClient constructs an API client for the given base URL.
func NewClient(baseURL string, timeout time.Duration) *Client {
	if timeout <= 0 {
		timeout = defaultTimeout
	}
	return &Client{
		baseURL: strings.TrimRight(strings.TrimSpace(baseURL), "/"),
		http: &http.Client{
			Timeout: timeout,
		},
	}
}

// LineItemPayload mirrors the remote cart line representation.
type LineItemPayload struct {
	ID             string  `json:"id,omitempty"`
	ProductID      string  `json:"productId"`
	Quantity       int     `json:"quantity"`
	UnitRate       float64 `json:"unitRate"`
	Width          float64 `json:"width,omitempty"`
	Height         float64 `json:"height,omitempty"`
	PleatType      string  `json:"pleatType,omitempty"`
	ComputedAmount float64 `json:"calculatedPrice,omitempty"`
}

// CartPayload mirrors the remote cart representation.
type CartPayload struct {
	ID             string            `json:"id"`
	Items          []LineItemPayload `json:"items"`
	CouponCode     string            `json:"couponCode,omitempty"`
	DiscountAmount float64           `json:"discountAmount"`
}

// CouponOutcome carries the server verdict for a coupon mutation.
type CouponOutcome struct {
	Accepted bool   `json:"success"`
	Message  string `json:"message"`
}

// QuotePayload is the request body for a dimension-based price quote.
type QuotePayload struct {
	ProductID string  `json:"productId"`
	Width     float64 `json:"width"`
	Height    float64 `json:"height"`
	PleatType string  `json:"pleatType"`
	Price     float64 `json:"price"`
}

// FetchCart retrieves the cart for the supplied identity.
func (c *Client) FetchCart(ctx context.Context, sess domain.Session) (CartPayload, error) {
	ctx, span := tracer.Start(ctx, "storefront.FetchCart")
	span.SetAttributes(spanAttributes(sess)...)
	defer span.End()

	var payload CartPayload
	if err := c.do(ctx, sess, http.MethodGet, nil, &payload, "cart"); err != nil {
		span.RecordError(err)
		return CartPayload{}, err
	}
	return payload, nil
}

// CreateLineItem adds a line to the remote cart and returns the stored line,
// including the server-assigned id.
func (c *Client) CreateLineItem(ctx context.Context, sess domain.Session, item LineItemPayload) (LineItemPayload, error) {
	var saved LineItemPayload
	if err := c.do(ctx, sess, http.MethodPost, item, &saved, "cart", "items"); err != nil {
		return LineItemPayload{}, err
	}
	return saved, nil
}

// UpdateLineItem changes the quantity of a server-known line.
func (c *Client) UpdateLineItem(ctx context.Context, sess domain.Session, lineID string, quantity int) error {
	body := map[string]int{"quantity": quantity}
	return c.do(ctx, sess, http.MethodPut, body, nil, "cart", "items", lineID)
}

// DeleteLineItem removes a server-known line.
func (c *Client) DeleteLineItem(ctx context.Context, sess domain.Session, lineID string) error {
	return c.do(ctx, sess, http.MethodDelete, nil, nil, "cart", "items", lineID)
}

// ApplyCoupon submits a discount code for the identity's cart.
func (c *Client) ApplyCoupon(ctx context.Context, sess domain.Session, code string) (CouponOutcome, error) {
	body := map[string]string{"code": code}
	var outcome CouponOutcome
	if err := c.do(ctx, sess, http.MethodPost, body, &outcome, "cart", "coupon"); err != nil {
		return CouponOutcome{}, err
	}
	return outcome, nil
}

// RemoveCoupon clears the applied discount code.
func (c *Client) RemoveCoupon(ctx context.Context, sess domain.Session) (CouponOutcome, error) {
	var outcome CouponOutcome
	if err := c.do(ctx, sess, http.MethodDelete, nil, &outcome, "cart", "coupon"); err != nil {
		return CouponOutcome{}, err
	}
	return outcome, nil
}

// QuotePrice asks the pricing service for the amount of a single panel.
func (c *Client) QuotePrice(ctx context.Context, payload QuotePayload) (float64, error) {
	var resp struct {
		CalculatedPrice float64 `json:"calculatedPrice"`
	}
	if err := c.do(ctx, domain.Session{}, http.MethodPost, payload, &resp, "products", "price"); err != nil {
		return 0, err
	}
	return domain.Round2(resp.CalculatedPrice), nil
}

// ProfilePayload carries read-only prefill data for checkout.
type ProfilePayload struct {
	FirstName string `json:"firstName"`
	LastName  string `json:"lastName"`
	Email     string `json:"email"`
	Phone     string `json:"phone"`
}

// AddressPayload is a saved address offered for selection at checkout.
type AddressPayload struct {
	ID       string `json:"id"`
	Label    string `json:"label,omitempty"`
	Line1    string `json:"line1"`
	City     string `json:"city"`
	District string `json:"district"`
	Postal   string `json:"postal"`
	Country  string `json:"country"`
}

// Profile fetches the authenticated user's contact details.
func (c *Client) Profile(ctx context.Context, sess domain.Session) (ProfilePayload, error) {
	var payload ProfilePayload
	if err := c.do(ctx, sess, http.MethodGet, nil, &payload, "me", "profile"); err != nil {
		return ProfilePayload{}, err
	}
	return payload, nil
}

// Addresses fetches the authenticated user's saved addresses.
func (c *Client) Addresses(ctx context.Context, sess domain.Session) ([]AddressPayload, error) {
	var payload []AddressPayload
	if err := c.do(ctx, sess, http.MethodGet, nil, &payload, "me", "addresses"); err != nil {
		return nil, err
	}
	return payload, nil
}

// do issues a JSON request with identity headers and decodes the response
// into out when provided. Non-2xx statuses and transport failures map to
// ErrRemoteUnavailable; undecodable bodies map to ErrMalformedResponse.
func (c *Client) do(ctx context.Context, sess domain.Session, method string, body, out any, parts ...string) error {
	if c == nil || c.baseURL == "" {
		return fmt.Errorf("%w: no base URL configured", ErrRemoteUnavailable)
	}

	endpoint, err := url.JoinPath(c.baseURL, parts...)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrRemoteUnavailable, err)
	}

	var reader io.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("%w: encode request: %v", ErrMalformedResponse, err)
		}
		reader = bytes.NewReader(payload)
	}

	req, err := http.NewRequestWithContext(ctx, method, endpoint, reader)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrRemoteUnavailable, err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	req.Header.Set("Accept", "application/json")
	c.applyIdentity(req, sess)

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrRemoteUnavailable, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("%w: %s %s status %d: %s", ErrRemoteUnavailable, method, strings.Join(parts, "/"), resp.StatusCode, drainError(resp.Body))
	}

	if out == nil {
		return nil
	}
	if err := json.NewDecoder(io.LimitReader(resp.Body, maxBodyBytes)).Decode(out); err != nil {
		return fmt.Errorf("%w: decode %s %s: %v", ErrMalformedResponse, method, strings.Join(parts, "/"), err)
	}
	return nil
}

func (c *Client) applyIdentity(req *http.Request, sess domain.Session) {
	switch {
	case sess.IsAuthenticated && strings.TrimSpace(sess.Credential) != "":
		req.Header.Set("Authorization", "Bearer "+strings.TrimSpace(sess.Credential))
	case strings.TrimSpace(sess.GuestID) != "":
		req.Header.Set(guestHeader, strings.TrimSpace(sess.GuestID))
	}
}

func drainError(r io.Reader) string {
	if r == nil {
		return ""
	}
	b, _ := io.ReadAll(io.LimitReader(r, maxErrorPreview))
	return strings.TrimSpace(string(b))
}

func spanAttributes(sess domain.Session) []attribute.KeyValue {
	return []attribute.KeyValue{
		attribute.Bool("session.authenticated", sess.IsAuthenticated),
	}
}
