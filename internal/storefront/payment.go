package storefront

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"

	"golang.org/x/net/html"

	"github.com/YusufAkin27/hiedra-collection-sub001/internal/domain"
)

// PaymentKind distinguishes the three response shapes the gateway produces.
type PaymentKind string

const (
	// PaymentKindResult is a structured JSON success or failure verdict.
	PaymentKindResult PaymentKind = "result"
	// PaymentKindChallenge is a raw HTML document carrying a 3-D Secure form.
	PaymentKindChallenge PaymentKind = "challenge"
	// PaymentKindRedirect is a structured result pointing at an external URL.
	PaymentKindRedirect PaymentKind = "redirect"
)

// PaymentLine is a single order line forwarded to the gateway.
type PaymentLine struct {
	ProductID string  `json:"productId"`
	Quantity  int     `json:"quantity"`
	Width     float64 `json:"width,omitempty"`
	Height    float64 `json:"height,omitempty"`
	PleatType string  `json:"pleatType,omitempty"`
	Amount    float64 `json:"amount"`
}

// PaymentRequest is the payment submission payload.
type PaymentRequest struct {
	IdentityKey    string         `json:"identityKey"`
	Contact        domain.Contact `json:"contact"`
	DeliveryAddr   domain.Address `json:"deliveryAddress"`
	InvoiceAddr    domain.Address `json:"invoiceAddress"`
	CardNumber     string         `json:"cardNumber"`
	CardExpiry     string         `json:"cardExpiry"`
	CardCVV        string         `json:"cardCvv"`
	Lines          []PaymentLine  `json:"lines"`
	Total          float64        `json:"total"`
	CouponCode     string         `json:"couponCode,omitempty"`
	IdempotencyKey string         `json:"-"`
}

// PaymentResult is the structured verdict shape.
type PaymentResult struct {
	Success     bool   `json:"success"`
	Message     string `json:"message,omitempty"`
	OrderID     string `json:"orderId,omitempty"`
	RedirectURL string `json:"redirectUrl,omitempty"`
}

// PaymentResponse is the interpreted gateway response. Exactly one of the
// shape fields is populated according to Kind.
type PaymentResponse struct {
	Kind          PaymentKind
	Result        PaymentResult
	ChallengeHTML []byte
	RedirectURL   string
}

// SubmitPayment posts the payment request and classifies the response into
// one of the three shapes: structured verdict, inline HTML challenge, or
// structured verdict with redirect URL.
func (c *Client) SubmitPayment(ctx context.Context, req PaymentRequest) (PaymentResponse, error) {
	ctx, span := tracer.Start(ctx, "storefront.SubmitPayment")
	defer span.End()

	if c == nil || c.baseURL == "" {
		return PaymentResponse{}, fmt.Errorf("%w: no base URL configured", ErrRemoteUnavailable)
	}

	endpoint, err := url.JoinPath(c.baseURL, "payments")
	if err != nil {
		return PaymentResponse{}, fmt.Errorf("%w: %v", ErrRemoteUnavailable, err)
	}

	payload, err := json.Marshal(req)
	if err != nil {
		return PaymentResponse{}, fmt.Errorf("%w: encode request: %v", ErrMalformedResponse, err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(payload))
	if err != nil {
		return PaymentResponse{}, fmt.Errorf("%w: %v", ErrRemoteUnavailable, err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Accept", "application/json, text/html")
	if key := strings.TrimSpace(req.IdempotencyKey); key != "" {
		httpReq.Header.Set("Idempotency-Key", key)
	}

	resp, err := c.http.Do(httpReq)
	if err != nil {
		span.RecordError(err)
		return PaymentResponse{}, fmt.Errorf("%w: %v", ErrRemoteUnavailable, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return PaymentResponse{}, fmt.Errorf("%w: payment status %d: %s", ErrRemoteUnavailable, resp.StatusCode, drainError(resp.Body))
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
	if err != nil {
		return PaymentResponse{}, fmt.Errorf("%w: read payment response: %v", ErrRemoteUnavailable, err)
	}

	return classifyPaymentBody(resp.Header.Get("Content-Type"), body)
}

func classifyPaymentBody(contentType string, body []byte) (PaymentResponse, error) {
	if IsHTMLChallenge(contentType, body) {
		return PaymentResponse{Kind: PaymentKindChallenge, ChallengeHTML: body}, nil
	}

	var result PaymentResult
	if err := json.Unmarshal(body, &result); err != nil {
		return PaymentResponse{}, fmt.Errorf("%w: payment body is neither a verdict nor a challenge: %v", ErrMalformedResponse, err)
	}
	if redirect := strings.TrimSpace(result.RedirectURL); redirect != "" {
		return PaymentResponse{Kind: PaymentKindRedirect, Result: result, RedirectURL: redirect}, nil
	}
	return PaymentResponse{Kind: PaymentKindResult, Result: result}, nil
}

// IsHTMLChallenge reports whether a gateway response body is an HTML document
// carrying a step-up authentication form rather than a JSON verdict.
func IsHTMLChallenge(contentType string, body []byte) bool {
	trimmed := bytes.TrimSpace(body)
	if len(trimmed) == 0 || trimmed[0] == '{' || trimmed[0] == '[' {
		return false
	}
	if strings.Contains(strings.ToLower(contentType), "text/html") {
		return true
	}
	prefix := strings.ToLower(string(trimmed[:min(len(trimmed), 64)]))
	if strings.HasPrefix(prefix, "<!doctype") || strings.HasPrefix(prefix, "<html") {
		return true
	}

	// The parser is forgiving, so only an actual form element counts.
	doc, err := html.Parse(bytes.NewReader(trimmed))
	if err != nil {
		return false
	}
	return containsElement(doc, "form")
}

func containsElement(n *html.Node, tag string) bool {
	if n.Type == html.ElementNode && strings.EqualFold(n.Data, tag) {
		return true
	}
	for child := n.FirstChild; child != nil; child = child.NextSibling {
		if containsElement(child, tag) {
			return true
		}
	}
	return false
}
