package main

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/YusufAkin27/hiedra-collection-sub001/internal/cart"
	"github.com/YusufAkin27/hiedra-collection-sub001/internal/checkout"
	"github.com/YusufAkin27/hiedra-collection-sub001/internal/coupon"
	"github.com/YusufAkin27/hiedra-collection-sub001/internal/domain"
	"github.com/YusufAkin27/hiedra-collection-sub001/internal/identity"
	"github.com/YusufAkin27/hiedra-collection-sub001/internal/platform/httpx"
	"github.com/YusufAkin27/hiedra-collection-sub001/internal/storefront"
)

type handlerSet struct {
	carts    *cart.Synchronizer
	quotes   *quoteHub
	coupons  *coupon.Engine
	checkout *checkout.Orchestrator
	identity *identity.Resolver
	tokens   *tokenStore
	api      *storefront.Client
}

// Routes mounts every endpoint onto the router.
func (h *handlerSet) Routes(r chi.Router) {
	r.Get("/healthz", h.health)

	r.Route("/api", func(r chi.Router) {
		r.Route("/cart", func(r chi.Router) {
			r.Get("/", h.getCart)
			r.Post("/refresh", h.refreshCart)
			r.Post("/items", h.addItem)
			r.Patch("/items/{lineKey}", h.updateItem)
			r.Delete("/items/{lineKey}", h.removeItem)
			r.Post("/coupon", h.applyCoupon)
			r.Delete("/coupon", h.removeCoupon)
		})

		r.Post("/quotes", h.submitQuote)
		r.Get("/quotes/latest", h.latestQuote)

		r.Route("/checkout", func(r chi.Router) {
			r.Post("/", h.submitCheckout)
			r.Post("/callback", h.checkoutCallback)
		})

		r.Post("/auth/token", h.setToken)
		r.Delete("/auth/token", h.clearToken)

		r.Get("/profile", h.profile)
		r.Get("/addresses", h.addresses)
	})
}

func (h *handlerSet) health(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ok"))
}

type lineView struct {
	LineKey   string   `json:"lineKey"`
	ProductID string   `json:"productId"`
	Quantity  int      `json:"quantity"`
	UnitRate  float64  `json:"unitRate"`
	Width     *float64 `json:"width,omitempty"`
	Height    *float64 `json:"height,omitempty"`
	PleatType string   `json:"pleatType,omitempty"`
	Subtotal  float64  `json:"subtotal"`
	Remote    string   `json:"remote,omitempty"`
}

type cartView struct {
	ID         string     `json:"id,omitempty"`
	Lines      []lineView `json:"lines"`
	Subtotal   float64    `json:"subtotal"`
	Discount   float64    `json:"discount"`
	Total      float64    `json:"total"`
	CouponCode string     `json:"couponCode,omitempty"`
}

func viewOfLine(line domain.CartLine, remote cart.RemoteState) lineView {
	view := lineView{
		LineKey:   line.LineKey,
		ProductID: line.ProductID,
		Quantity:  line.Quantity,
		UnitRate:  line.UnitRate,
		Subtotal:  line.Subtotal(),
		Remote:    string(remote),
	}
	if line.Dimensions != nil {
		width, height := line.Dimensions.WidthCM, line.Dimensions.HeightCM
		view.Width = &width
		view.Height = &height
		view.PleatType = string(line.Dimensions.Pleat)
	}
	return view
}

func viewOfCart(c domain.Cart) cartView {
	lines := make([]lineView, 0, len(c.Lines))
	for _, line := range c.Lines {
		lines = append(lines, viewOfLine(line, ""))
	}
	return cartView{
		ID:         c.ID,
		Lines:      lines,
		Subtotal:   c.Subtotal(),
		Discount:   c.DiscountAmount,
		Total:      c.Total(),
		CouponCode: c.CouponCode,
	}
}

func (h *handlerSet) getCart(w http.ResponseWriter, r *http.Request) {
	httpx.WriteJSON(w, http.StatusOK, viewOfCart(h.carts.Load(r.Context())))
}

func (h *handlerSet) refreshCart(w http.ResponseWriter, r *http.Request) {
	if err := h.carts.Refresh(r.Context()); err != nil {
		httpx.WriteError(r.Context(), w, httpx.NewError("cart_refresh_failed", "cart could not be refreshed", http.StatusBadGateway))
		return
	}
	httpx.WriteJSON(w, http.StatusOK, viewOfCart(h.carts.Snapshot()))
}

type addItemRequest struct {
	ProductID string   `json:"productId"`
	UnitRate  float64  `json:"unitRate"`
	Quantity  int      `json:"quantity"`
	Width     *float64 `json:"width,omitempty"`
	Height    *float64 `json:"height,omitempty"`
	PleatType string   `json:"pleatType,omitempty"`
}

func (req addItemRequest) dimensions() *domain.Dimensions {
	if req.Width == nil && req.Height == nil && strings.TrimSpace(req.PleatType) == "" {
		return nil
	}
	dims := domain.Dimensions{Pleat: domain.PleatDensity(strings.TrimSpace(req.PleatType))}
	if req.Width != nil {
		dims.WidthCM = *req.Width
	}
	if req.Height != nil {
		dims.HeightCM = *req.Height
	}
	return &dims
}

func (h *handlerSet) addItem(w http.ResponseWriter, r *http.Request) {
	var req addItemRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		httpx.WriteError(r.Context(), w, httpx.NewError("invalid_body", "request body is not valid JSON", http.StatusBadRequest))
		return
	}

	result, err := h.carts.Add(r.Context(), req.ProductID, req.UnitRate, req.dimensions(), req.Quantity)
	if err != nil {
		writeCartError(w, r, err)
		return
	}
	httpx.WriteJSON(w, http.StatusOK, viewOfLine(result.Line, result.Remote))
}

type updateItemRequest struct {
	Quantity int `json:"quantity"`
}

func (h *handlerSet) updateItem(w http.ResponseWriter, r *http.Request) {
	var req updateItemRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		httpx.WriteError(r.Context(), w, httpx.NewError("invalid_body", "request body is not valid JSON", http.StatusBadRequest))
		return
	}

	result, err := h.carts.UpdateQuantity(r.Context(), chi.URLParam(r, "lineKey"), req.Quantity)
	if err != nil {
		writeCartError(w, r, err)
		return
	}
	httpx.WriteJSON(w, http.StatusOK, viewOfLine(result.Line, result.Remote))
}

func (h *handlerSet) removeItem(w http.ResponseWriter, r *http.Request) {
	result, err := h.carts.Remove(r.Context(), chi.URLParam(r, "lineKey"))
	if err != nil {
		writeCartError(w, r, err)
		return
	}
	httpx.WriteJSON(w, http.StatusOK, map[string]any{"removed": true, "remote": string(result.Remote)})
}

func writeCartError(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case errors.Is(err, cart.ErrLineNotFound):
		httpx.WriteError(r.Context(), w, httpx.NewError("line_not_found", "no such cart line", http.StatusNotFound))
	case errors.Is(err, domain.ErrDimensionsInvalid), errors.Is(err, cart.ErrCartInvalidInput):
		httpx.WriteError(r.Context(), w, httpx.NewError("invalid_input", err.Error(), http.StatusUnprocessableEntity))
	default:
		httpx.WriteError(r.Context(), w, httpx.NewError("internal", "cart operation failed", http.StatusInternalServerError))
	}
}

type couponRequest struct {
	Code string `json:"code"`
}

func (h *handlerSet) applyCoupon(w http.ResponseWriter, r *http.Request) {
	var req couponRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		httpx.WriteError(r.Context(), w, httpx.NewError("invalid_body", "request body is not valid JSON", http.StatusBadRequest))
		return
	}
	outcome := h.coupons.Apply(r.Context(), req.Code)
	httpx.WriteJSON(w, http.StatusOK, map[string]any{
		"success": outcome.Success,
		"message": outcome.Message,
		"cart":    viewOfCart(h.carts.Snapshot()),
	})
}

func (h *handlerSet) removeCoupon(w http.ResponseWriter, r *http.Request) {
	outcome := h.coupons.Remove(r.Context())
	httpx.WriteJSON(w, http.StatusOK, map[string]any{
		"success": outcome.Success,
		"message": outcome.Message,
		"cart":    viewOfCart(h.carts.Snapshot()),
	})
}

func (h *handlerSet) profile(w http.ResponseWriter, r *http.Request) {
	sess := h.identity.Resolve(r.Context())
	if !sess.IsAuthenticated {
		httpx.WriteError(r.Context(), w, httpx.NewError("unauthenticated", "sign in to view your profile", http.StatusUnauthorized))
		return
	}
	profile, err := h.api.Profile(r.Context(), sess)
	if err != nil {
		httpx.WriteError(r.Context(), w, httpx.NewError("profile_unavailable", "profile could not be loaded", http.StatusBadGateway))
		return
	}
	httpx.WriteJSON(w, http.StatusOK, profile)
}

func (h *handlerSet) addresses(w http.ResponseWriter, r *http.Request) {
	sess := h.identity.Resolve(r.Context())
	if !sess.IsAuthenticated {
		httpx.WriteJSON(w, http.StatusOK, []storefront.AddressPayload{})
		return
	}
	saved, err := h.api.Addresses(r.Context(), sess)
	if err != nil {
		httpx.WriteError(r.Context(), w, httpx.NewError("addresses_unavailable", "saved addresses could not be loaded", http.StatusBadGateway))
		return
	}
	httpx.WriteJSON(w, http.StatusOK, saved)
}
