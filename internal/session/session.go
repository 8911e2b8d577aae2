package session

import (
	"context"
	"crypto/hmac"
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"encoding/json"
	"net/http"
	"strings"
	"time"
)

const cookieName = "HIEDRA_WEB_SESSION"

type ctxKey struct{}

// Data is the signed, HttpOnly browser session. It only carries what the
// storefront needs to correlate a browser across requests.
type Data struct {
	ID        string    `json:"id"`
	CreatedAt time.Time `json:"createdAt"`

	dirty bool
}

// Manager signs, verifies, and rotates the session cookie.
type Manager struct {
	signKey []byte
	secure  bool
	now     func() time.Time
}

// NewManager builds a manager around the configured signing key. An empty
// key gets a process-ephemeral one, which is fine for local development and
// wrong for anything else.
func NewManager(signKey string, secure bool, clock func() time.Time) *Manager {
	key := []byte(strings.TrimSpace(signKey))
	if len(key) == 0 {
		key = make([]byte, 32)
		if _, err := rand.Read(key); err != nil {
			key = []byte("insecure-dev-key-set-HIEDRA_WEB_SESSION_SIGNING_KEY")
		}
	}
	if clock == nil {
		clock = time.Now
	}
	return &Manager{
		signKey: key,
		secure:  secure,
		now:     func() time.Time { return clock().UTC() },
	}
}

// Middleware loads or initializes the session and stores it in the request
// context. A new or mutated session is written back as a signed cookie.
func (m *Manager) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		data, fromCookie := m.read(r)
		if data.ID == "" {
			data.ID = randID()
			data.CreatedAt = m.now()
			data.dirty = true
		}
		ctx := context.WithValue(r.Context(), ctxKey{}, data)
		if data.dirty || !fromCookie {
			m.write(w, data)
		}
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// FromRequest returns the session attached by Middleware, or an empty one.
func FromRequest(r *http.Request) *Data {
	if v := r.Context().Value(ctxKey{}); v != nil {
		if data, ok := v.(*Data); ok {
			return data
		}
	}
	return &Data{}
}

func (m *Manager) read(r *http.Request) (*Data, bool) {
	c, err := r.Cookie(cookieName)
	if err != nil || c.Value == "" {
		return &Data{}, false
	}
	parts := strings.Split(c.Value, ".")
	if len(parts) != 2 {
		return &Data{}, false
	}
	payload, err := base64.RawURLEncoding.DecodeString(parts[0])
	if err != nil {
		return &Data{}, false
	}
	sig, err := base64.RawURLEncoding.DecodeString(parts[1])
	if err != nil {
		return &Data{}, false
	}
	mac := hmac.New(sha256.New, m.signKey)
	mac.Write(payload)
	if !hmac.Equal(sig, mac.Sum(nil)) {
		return &Data{}, false
	}
	var data Data
	if err := json.Unmarshal(payload, &data); err != nil {
		return &Data{}, false
	}
	return &data, true
}

func (m *Manager) write(w http.ResponseWriter, data *Data) {
	payload, err := json.Marshal(data)
	if err != nil {
		return
	}
	mac := hmac.New(sha256.New, m.signKey)
	mac.Write(payload)
	value := base64.RawURLEncoding.EncodeToString(payload) + "." + base64.RawURLEncoding.EncodeToString(mac.Sum(nil))
	http.SetCookie(w, &http.Cookie{
		Name:     cookieName,
		Value:    value,
		Path:     "/",
		HttpOnly: true,
		Secure:   m.secure,
		SameSite: http.SameSiteLaxMode,
		Expires:  m.now().Add(30 * 24 * time.Hour),
	})
}

func randID() string {
	b := make([]byte, 16)
	if _, err := rand.Read(b); err != nil {
		return ""
	}
	return base64.RawURLEncoding.EncodeToString(b)
}
