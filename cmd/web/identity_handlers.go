package main

import (
	"encoding/json"
	"net/http"
	"strings"
	"sync"

	"github.com/YusufAkin27/hiedra-collection-sub001/internal/platform/httpx"
)

// tokenStore holds the bearer credential handed over by the auth frontend.
// It is the identity resolver's TokenSource.
type tokenStore struct {
	mu    sync.RWMutex
	token string
}

func newTokenStore() *tokenStore { return &tokenStore{} }

func (s *tokenStore) Token() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.token
}

func (s *tokenStore) Set(token string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.token = strings.TrimSpace(token)
}

type tokenRequest struct {
	Token string `json:"token"`
}

// setToken installs a credential after login and triggers the identity change
// hook, which refreshes the cart under the new identity.
func (h *handlerSet) setToken(w http.ResponseWriter, r *http.Request) {
	var req tokenRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		httpx.WriteError(r.Context(), w, httpx.NewError("invalid_body", "request body is not valid JSON", http.StatusBadRequest))
		return
	}
	if strings.TrimSpace(req.Token) == "" {
		httpx.WriteError(r.Context(), w, httpx.NewError("invalid_token", "token is required", http.StatusUnprocessableEntity))
		return
	}

	h.tokens.Set(req.Token)
	h.identity.NotifyCredentialChanged(r.Context())

	sess := h.identity.Resolve(r.Context())
	httpx.WriteJSON(w, http.StatusOK, map[string]any{"authenticated": sess.IsAuthenticated})
}

// clearToken drops the credential on logout. The session falls back to the
// persisted guest id and the cart refreshes under it.
func (h *handlerSet) clearToken(w http.ResponseWriter, r *http.Request) {
	h.tokens.Set("")
	h.identity.NotifyCredentialChanged(r.Context())
	httpx.WriteJSON(w, http.StatusOK, map[string]any{"authenticated": false})
}
