package main

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/YusufAkin27/hiedra-collection-sub001/internal/checkout"
	"github.com/YusufAkin27/hiedra-collection-sub001/internal/domain"
	"github.com/YusufAkin27/hiedra-collection-sub001/internal/platform/httpx"
	"github.com/YusufAkin27/hiedra-collection-sub001/internal/session"
)

type checkoutRequest struct {
	Contact domain.Contact `json:"contact"`

	DeliveryAddress       domain.Address `json:"deliveryAddress"`
	InvoiceSameAsDelivery bool           `json:"invoiceSameAsDelivery"`
	InvoiceAddress        domain.Address `json:"invoiceAddress"`

	CardNumber string `json:"cardNumber"`
	CardExpiry string `json:"cardExpiry"`
	CardCVV    string `json:"cardCvv"`

	AcceptSalesContract bool `json:"acceptSalesContract"`
	AcceptPrivacyNotice bool `json:"acceptPrivacyNotice"`
}

func (req checkoutRequest) form() checkout.Form {
	return checkout.Form{
		Contact:               req.Contact,
		DeliveryAddr:          req.DeliveryAddress,
		InvoiceSameAsDelivery: req.InvoiceSameAsDelivery,
		InvoiceAddr:           req.InvoiceAddress,
		CardNumber:            req.CardNumber,
		CardExpiry:            req.CardExpiry,
		CardCVV:               req.CardCVV,
		AcceptedSalesContract: req.AcceptSalesContract,
		AcceptedPrivacyNotice: req.AcceptPrivacyNotice,
	}
}

// submitCheckout resolves to one of three responses: a JSON verdict, a raw
// HTML page that must take over the browser for step-up authentication, or a
// JSON redirect instruction.
func (h *handlerSet) submitCheckout(w http.ResponseWriter, r *http.Request) {
	var req checkoutRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		httpx.WriteError(r.Context(), w, httpx.NewError("invalid_body", "request body is not valid JSON", http.StatusBadRequest))
		return
	}

	sessionID := session.FromRequest(r).ID
	result, err := h.checkout.Submit(r.Context(), sessionID, req.form())
	if err != nil {
		writeCheckoutError(w, r, err)
		return
	}

	switch result.Outcome {
	case checkout.OutcomeChallenge:
		writeChallengeTakeover(w, result.ChallengeHTML)
	case checkout.OutcomeRedirect:
		httpx.WriteJSON(w, http.StatusOK, map[string]any{
			"outcome":     string(result.Outcome),
			"orderRef":    result.OrderRef,
			"redirectUrl": result.RedirectURL,
		})
	default:
		httpx.WriteJSON(w, http.StatusOK, map[string]any{
			"outcome":  string(result.Outcome),
			"orderRef": result.OrderRef,
			"message":  result.Message,
		})
	}
}

func writeCheckoutError(w http.ResponseWriter, r *http.Request, err error) {
	var fieldErr *checkout.FieldError
	switch {
	case errors.As(err, &fieldErr):
		httpx.WriteError(r.Context(), w, httpx.
			NewError("validation_failed", fieldErr.Message, http.StatusUnprocessableEntity).
			WithField(fieldErr.Field))
	case errors.Is(err, checkout.ErrCartEmpty):
		httpx.WriteError(r.Context(), w, httpx.NewError("cart_empty", "your cart is empty", http.StatusUnprocessableEntity))
	case errors.Is(err, checkout.ErrSubmissionInFlight):
		httpx.WriteError(r.Context(), w, httpx.NewError("in_flight", "a payment is already being processed", http.StatusConflict))
	default:
		httpx.WriteError(r.Context(), w, httpx.NewError("internal", "checkout failed", http.StatusInternalServerError))
	}
}

// writeChallengeTakeover hands the gateway's HTML document to the browser
// unmodified. Anything short of a full page takeover breaks the 3-D Secure
// flow.
func writeChallengeTakeover(w http.ResponseWriter, challenge []byte) {
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.Header().Set("Cache-Control", "no-store")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(challenge)
}

// checkoutCallback resumes an order after the buyer returns from an external
// payment flow.
func (h *handlerSet) checkoutCallback(w http.ResponseWriter, r *http.Request) {
	var verdict checkout.PaymentVerdict
	if err := json.NewDecoder(r.Body).Decode(&verdict); err != nil {
		httpx.WriteError(r.Context(), w, httpx.NewError("invalid_body", "request body is not valid JSON", http.StatusBadRequest))
		return
	}

	result := h.checkout.HandleCallback(r.Context(), session.FromRequest(r).ID, verdict)
	httpx.WriteJSON(w, http.StatusOK, map[string]any{
		"outcome":  string(result.Outcome),
		"orderRef": result.OrderRef,
		"message":  result.Message,
	})
}
