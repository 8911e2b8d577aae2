package domain

import (
	"math"
	"strings"
	"time"
)

// Session describes the identity attached to the current browsing context.
// Exactly one of Credential or GuestID is the active identity key; a bearer
// credential always wins when present.
type Session struct {
	IsAuthenticated bool
	Credential      string
	GuestID         string
}

// Key returns the identity key forwarded to the remote cart service.
func (s Session) Key() string {
	if s.IsAuthenticated && strings.TrimSpace(s.Credential) != "" {
		return s.Credential
	}
	return s.GuestID
}

// Round2 rounds a monetary amount to two decimal places. All amounts crossing
// a component boundary are rounded with this helper so the local fallback and
// the server-computed figures stay comparable.
func Round2(v float64) float64 {
	return math.Round(v*100) / 100
}

// CartLine is a single cart entry. Lines are keyed by product plus the full
// dimension tuple; the same product with different measurements forms a
// distinct line.
type CartLine struct {
	LineKey          string      `json:"lineKey"`
	ProductID        string      `json:"productId"`
	UnitRate         float64     `json:"unitRate"`
	Quantity         int         `json:"quantity"`
	Dimensions       *Dimensions `json:"dimensions,omitempty"`
	ComputedSubtotal *float64    `json:"computedSubtotal,omitempty"`
	RemoteLineID     string      `json:"remoteLineId,omitempty"`
}

// LineKey derives the cart line identity for a product and optional dimensions.
func LineKey(productID string, dims *Dimensions) string {
	id := strings.TrimSpace(productID)
	if dims == nil {
		return id
	}
	return id + "|" + dims.Key()
}

// Subtotal returns the line amount, preferring the server-computed figure.
func (l CartLine) Subtotal() float64 {
	if l.ComputedSubtotal != nil {
		return Round2(*l.ComputedSubtotal)
	}
	return Round2(l.UnitRate * float64(l.Quantity))
}

// Cart is the locally cached view of the remote cart. It is a cache, not the
// system of record: a successful remote refresh replaces it wholesale.
type Cart struct {
	ID             string     `json:"id,omitempty"`
	Lines          []CartLine `json:"lines"`
	CouponCode     string     `json:"couponCode,omitempty"`
	DiscountAmount float64    `json:"discountAmount"`
}

// Subtotal sums the line amounts.
func (c Cart) Subtotal() float64 {
	var sum float64
	for _, line := range c.Lines {
		sum += line.Subtotal()
	}
	return Round2(sum)
}

// Total applies the discount, never dropping below zero. The server remains
// authoritative for the actual clamp.
func (c Cart) Total() float64 {
	total := c.Subtotal() - c.DiscountAmount
	if total < 0 {
		total = 0
	}
	return Round2(total)
}

// Clone returns a deep copy safe to hand to callers.
func (c Cart) Clone() Cart {
	dup := c
	dup.Lines = CloneLines(c.Lines)
	return dup
}

// CloneLines deep-copies a line slice.
func CloneLines(lines []CartLine) []CartLine {
	if len(lines) == 0 {
		return []CartLine{}
	}
	dup := make([]CartLine, len(lines))
	copy(dup, lines)
	for i := range dup {
		if dup[i].Dimensions != nil {
			d := *dup[i].Dimensions
			dup[i].Dimensions = &d
		}
		if dup[i].ComputedSubtotal != nil {
			v := *dup[i].ComputedSubtotal
			dup[i].ComputedSubtotal = &v
		}
	}
	return dup
}

// Contact carries the buyer details collected at checkout.
type Contact struct {
	FirstName string `json:"firstName"`
	LastName  string `json:"lastName"`
	Email     string `json:"email"`
	Phone     string `json:"phone"`
}

// Address is either a saved address reference or a manually entered one.
type Address struct {
	SavedID  string `json:"savedId,omitempty"`
	Line1    string `json:"line1,omitempty"`
	City     string `json:"city,omitempty"`
	District string `json:"district,omitempty"`
	Postal   string `json:"postal,omitempty"`
	Country  string `json:"country,omitempty"`
}

// Complete reports whether the address can be shipped to: either a saved
// address was selected or every manual field is filled.
func (a Address) Complete() bool {
	if strings.TrimSpace(a.SavedID) != "" {
		return true
	}
	for _, field := range []string{a.Line1, a.City, a.District, a.Postal, a.Country} {
		if strings.TrimSpace(field) == "" {
			return false
		}
	}
	return true
}

// CheckoutSnapshot preserves the order context across an external redirect.
// It is written immediately before a payment submission that may leave the
// application and consumed exactly once by the callback handler. Card data is
// deliberately absent: it never outlives the payment request.
type CheckoutSnapshot struct {
	Contact        Contact    `json:"contact"`
	DeliveryAddr   Address    `json:"deliveryAddress"`
	InvoiceAddr    Address    `json:"invoiceAddress"`
	Lines          []CartLine `json:"cartLines"`
	Total          float64    `json:"total"`
	CouponCode     string     `json:"couponCode,omitempty"`
	DiscountAmount float64    `json:"discountAmount,omitempty"`
	CreatedAt      time.Time  `json:"createdAt"`
}
