package checkout

import (
	"errors"
	"testing"

	"github.com/YusufAkin27/hiedra-collection-sub001/internal/domain"
)

func completeForm() Form {
	return Form{
		Contact: domain.Contact{
			FirstName: "Ayşe",
			LastName:  "Yılmaz",
			Email:     "ayse@example.com",
			Phone:     "+90 532 123 45 67",
		},
		DeliveryAddr: domain.Address{
			Line1:    "Bağdat Cad. 42",
			City:     "İstanbul",
			District: "Kadıköy",
			Postal:   "34710",
			Country:  "TR",
		},
		InvoiceSameAsDelivery: true,
		CardNumber:            "4111 1111 1111 1111",
		CardExpiry:            "12/29",
		CardCVV:               "123",
		AcceptedSalesContract: true,
		AcceptedPrivacyNotice: true,
	}
}

func TestValidateAcceptsCompleteForm(t *testing.T) {
	form := completeForm()
	if err := form.Validate(); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestValidateStopsAtFirstFailure(t *testing.T) {
	cases := []struct {
		name      string
		mutate    func(*Form)
		wantField string
	}{
		{"missing first name", func(f *Form) { f.Contact.FirstName = " " }, "firstName"},
		{"missing last name", func(f *Form) { f.Contact.LastName = "" }, "lastName"},
		{"missing email", func(f *Form) { f.Contact.Email = "" }, "email"},
		{"email without at", func(f *Form) { f.Contact.Email = "ayse.example.com" }, "email"},
		{"email at at end", func(f *Form) { f.Contact.Email = "ayse@" }, "email"},
		{"short phone", func(f *Form) { f.Contact.Phone = "532 123" }, "phone"},
		{"incomplete delivery", func(f *Form) { f.DeliveryAddr.City = "" }, "deliveryAddress"},
		{"incomplete invoice", func(f *Form) {
			f.InvoiceSameAsDelivery = false
			f.InvoiceAddr = domain.Address{Line1: "x"}
		}, "invoiceAddress"},
		{"short card number", func(f *Form) { f.CardNumber = "4111 1111" }, "cardNumber"},
		{"bad expiry format", func(f *Form) { f.CardExpiry = "13/29" }, "cardExpiry"},
		{"single digit month", func(f *Form) { f.CardExpiry = "1/29" }, "cardExpiry"},
		{"short cvv", func(f *Form) { f.CardCVV = "12" }, "cardCVV"},
		{"alpha cvv", func(f *Form) { f.CardCVV = "12a" }, "cardCVV"},
		{"sales contract unchecked", func(f *Form) { f.AcceptedSalesContract = false }, "salesContract"},
		{"privacy notice unchecked", func(f *Form) { f.AcceptedPrivacyNotice = false }, "privacyNotice"},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			form := completeForm()
			tc.mutate(&form)

			err := form.Validate()
			if err == nil {
				t.Fatal("expected validation error")
			}
			if !errors.Is(err, ErrValidation) {
				t.Fatalf("expected ErrValidation, got %v", err)
			}
			var fieldErr *FieldError
			if !errors.As(err, &fieldErr) {
				t.Fatalf("expected FieldError, got %T", err)
			}
			if fieldErr.Field != tc.wantField {
				t.Fatalf("expected field %q, got %q", tc.wantField, fieldErr.Field)
			}
		})
	}
}

func TestValidateSavedAddressShortcut(t *testing.T) {
	form := completeForm()
	form.DeliveryAddr = domain.Address{SavedID: "addr-7"}
	if err := form.Validate(); err != nil {
		t.Fatalf("saved address must satisfy completeness: %v", err)
	}
}

func TestEffectiveInvoiceAddr(t *testing.T) {
	form := completeForm()
	if got := form.EffectiveInvoiceAddr(); got != form.DeliveryAddr {
		t.Fatalf("same-as-delivery must mirror the delivery address, got %+v", got)
	}

	form.InvoiceSameAsDelivery = false
	form.InvoiceAddr = domain.Address{SavedID: "addr-9"}
	if got := form.EffectiveInvoiceAddr(); got.SavedID != "addr-9" {
		t.Fatalf("expected explicit invoice address, got %+v", got)
	}
}
