package checkout

import (
	"errors"
	"fmt"
	"strings"

	"github.com/YusufAkin27/hiedra-collection-sub001/internal/domain"
)

// ErrValidation wraps all pre-submission validation failures.
var ErrValidation = errors.New("checkout: validation failed")

// FieldError pins a validation failure to the form field that caused it, so
// the storefront can focus and annotate the offending input.
type FieldError struct {
	Field   string
	Message string
}

func (e *FieldError) Error() string {
	return fmt.Sprintf("checkout: %s: %s", e.Field, e.Message)
}

func (e *FieldError) Unwrap() error { return ErrValidation }

func fieldErr(field, message string) error {
	return &FieldError{Field: field, Message: message}
}

// Form is the full set of buyer inputs gathered across the checkout steps.
type Form struct {
	Contact domain.Contact

	DeliveryAddr          domain.Address
	InvoiceSameAsDelivery bool
	InvoiceAddr           domain.Address

	CardNumber string
	CardExpiry string
	CardCVV    string

	AcceptedSalesContract bool
	AcceptedPrivacyNotice bool
}

// Validate checks the form sequentially and stops at the first failure, so
// the buyer is pointed at a single field at a time.
func (f *Form) Validate() error {
	if err := validateContact(f.Contact); err != nil {
		return err
	}
	if err := validateAddress("deliveryAddress", f.DeliveryAddr); err != nil {
		return err
	}
	if !f.InvoiceSameAsDelivery {
		if err := validateAddress("invoiceAddress", f.InvoiceAddr); err != nil {
			return err
		}
	}
	if err := validateCard(f.CardNumber, f.CardExpiry, f.CardCVV); err != nil {
		return err
	}
	if !f.AcceptedSalesContract {
		return fieldErr("salesContract", "sales contract must be accepted")
	}
	if !f.AcceptedPrivacyNotice {
		return fieldErr("privacyNotice", "privacy notice must be accepted")
	}
	return nil
}

// EffectiveInvoiceAddr resolves the invoice address after the same-as-delivery
// shortcut is applied.
func (f *Form) EffectiveInvoiceAddr() domain.Address {
	if f.InvoiceSameAsDelivery {
		return f.DeliveryAddr
	}
	return f.InvoiceAddr
}

func validateContact(c domain.Contact) error {
	if strings.TrimSpace(c.FirstName) == "" {
		return fieldErr("firstName", "first name is required")
	}
	if strings.TrimSpace(c.LastName) == "" {
		return fieldErr("lastName", "last name is required")
	}
	email := strings.TrimSpace(c.Email)
	if email == "" {
		return fieldErr("email", "email is required")
	}
	at := strings.Index(email, "@")
	if at <= 0 || at == len(email)-1 {
		return fieldErr("email", "email is not valid")
	}
	if digitCount(c.Phone) < 10 {
		return fieldErr("phone", "phone number must have at least 10 digits")
	}
	return nil
}

func validateAddress(field string, a domain.Address) error {
	if !a.Complete() {
		return fieldErr(field, "address is incomplete")
	}
	return nil
}

func validateCard(number, expiry, cvv string) error {
	if digitCount(number) != 16 {
		return fieldErr("cardNumber", "card number must have 16 digits")
	}
	if !validExpiry(expiry) {
		return fieldErr("cardExpiry", "expiry must be in MM/YY format")
	}
	cvv = strings.TrimSpace(cvv)
	if len(cvv) != 3 || digitCount(cvv) != 3 {
		return fieldErr("cardCVV", "security code must have 3 digits")
	}
	return nil
}

func validExpiry(expiry string) bool {
	expiry = strings.TrimSpace(expiry)
	parts := strings.Split(expiry, "/")
	if len(parts) != 2 || len(parts[0]) != 2 || len(parts[1]) != 2 {
		return false
	}
	month := 0
	for _, r := range parts[0] {
		if r < '0' || r > '9' {
			return false
		}
		month = month*10 + int(r-'0')
	}
	if month < 1 || month > 12 {
		return false
	}
	for _, r := range parts[1] {
		if r < '0' || r > '9' {
			return false
		}
	}
	return true
}

func digitCount(s string) int {
	n := 0
	for _, r := range s {
		if r >= '0' && r <= '9' {
			n++
		}
	}
	return n
}
