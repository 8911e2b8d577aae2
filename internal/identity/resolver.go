package identity

import (
	"context"
	"errors"
	"strings"
	"sync"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/oklog/ulid/v2"

	"github.com/YusufAkin27/hiedra-collection-sub001/internal/domain"
)

const guestIDPrefix = "guest-"

var (
	errStoreRequired = errors.New("identity: guest store is required")
)

// TokenSource supplies the current bearer credential, empty when logged out.
// Token acquisition itself belongs to the auth collaborator.
type TokenSource interface {
	Token() string
}

// Store persists the generated guest id across restarts of the client runtime.
type Store interface {
	Load() (string, error)
	Save(id string) error
}

// ResolverDeps wires the collaborators for identity resolution.
type ResolverDeps struct {
	Tokens TokenSource
	Store  Store
	Clock  func() time.Time
	Logger func(context.Context, string, map[string]any)
}

// Resolver decides whether the session is authenticated or guest. It never
// fails: a missing credential degrades to a generated, persisted guest id.
type Resolver struct {
	mu        sync.Mutex
	tokens    TokenSource
	store     Store
	now       func() time.Time
	logger    func(context.Context, string, map[string]any)
	guestID   string
	lastKey   string
	listeners []func(domain.Session)
}

// NewResolver constructs a Resolver enforcing dependency validation.
func NewResolver(deps ResolverDeps) (*Resolver, error) {
	if deps.Store == nil {
		return nil, errStoreRequired
	}
	clock := deps.Clock
	if clock == nil {
		clock = time.Now
	}
	logger := deps.Logger
	if logger == nil {
		logger = func(context.Context, string, map[string]any) {}
	}
	return &Resolver{
		tokens: deps.Tokens,
		store:  deps.Store,
		now:    func() time.Time { return clock().UTC() },
		logger: logger,
	}, nil
}

// Resolve returns the active identity. A valid credential wins; otherwise the
// persisted guest id is used, generated and saved on first call.
func (r *Resolver) Resolve(ctx context.Context) domain.Session {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.resolveLocked(ctx)
}

func (r *Resolver) resolveLocked(ctx context.Context) domain.Session {
	if r.tokens != nil {
		if credential := strings.TrimSpace(r.tokens.Token()); credential != "" && r.credentialUsable(credential) {
			return domain.Session{IsAuthenticated: true, Credential: credential}
		}
	}
	return domain.Session{GuestID: r.guestIDLocked(ctx)}
}

func (r *Resolver) guestIDLocked(ctx context.Context) string {
	if r.guestID != "" {
		return r.guestID
	}
	if stored, err := r.store.Load(); err == nil && strings.TrimSpace(stored) != "" {
		r.guestID = strings.TrimSpace(stored)
		return r.guestID
	}
	generated := guestIDPrefix + ulid.MustNew(ulid.Timestamp(r.now()), ulid.DefaultEntropy()).String()
	if err := r.store.Save(generated); err != nil {
		r.logger(ctx, "identity.guest_persist_failed", map[string]any{"error": err.Error()})
	}
	r.guestID = generated
	return generated
}

// credentialUsable reports whether the bearer token should be trusted as the
// identity key. Opaque tokens pass through untouched; a token that parses as
// a JWT with an elapsed expiry counts as absent.
func (r *Resolver) credentialUsable(raw string) bool {
	claims := jwt.MapClaims{}
	parser := jwt.NewParser()
	if _, _, err := parser.ParseUnverified(raw, claims); err != nil {
		return true
	}
	exp, err := claims.GetExpirationTime()
	if err != nil || exp == nil {
		return true
	}
	return exp.After(r.now())
}

// OnChange registers a listener fired whenever the resolved identity key
// changes, e.g. when a login completes.
func (r *Resolver) OnChange(fn func(domain.Session)) {
	if fn == nil {
		return
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.listeners = append(r.listeners, fn)
}

// NotifyCredentialChanged re-resolves and fires listeners exactly once when
// the identity key actually changed. Callers invoke it after login/logout.
func (r *Resolver) NotifyCredentialChanged(ctx context.Context) {
	r.mu.Lock()
	sess := r.resolveLocked(ctx)
	changed := sess.Key() != r.lastKey
	r.lastKey = sess.Key()
	listeners := append([]func(domain.Session){}, r.listeners...)
	r.mu.Unlock()

	if !changed {
		return
	}
	r.logger(ctx, "identity.changed", map[string]any{"authenticated": sess.IsAuthenticated})
	for _, fn := range listeners {
		fn(sess)
	}
}
