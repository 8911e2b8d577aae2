package identity

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/YusufAkin27/hiedra-collection-sub001/internal/domain"
)

type fakeTokens struct {
	token string
}

func (f *fakeTokens) Token() string { return f.token }

func signedJWT(t *testing.T, exp time.Time) string {
	t.Helper()
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"sub": "user-1",
		"exp": exp.Unix(),
	})
	signed, err := token.SignedString([]byte("test-key"))
	if err != nil {
		t.Fatalf("sign: %v", err)
	}
	return signed
}

func newTestResolver(t *testing.T, tokens TokenSource) *Resolver {
	t.Helper()
	store, err := NewFileStore(t.TempDir())
	if err != nil {
		t.Fatalf("store: %v", err)
	}
	resolver, err := NewResolver(ResolverDeps{Tokens: tokens, Store: store})
	if err != nil {
		t.Fatalf("resolver: %v", err)
	}
	return resolver
}

func TestResolveGeneratesAndPersistsGuestID(t *testing.T) {
	dir := t.TempDir()
	store, err := NewFileStore(dir)
	if err != nil {
		t.Fatalf("store: %v", err)
	}
	resolver, err := NewResolver(ResolverDeps{Tokens: &fakeTokens{}, Store: store})
	if err != nil {
		t.Fatalf("resolver: %v", err)
	}

	first := resolver.Resolve(context.Background())
	if first.IsAuthenticated {
		t.Fatal("expected guest session")
	}
	if !strings.HasPrefix(first.GuestID, "guest-") {
		t.Fatalf("expected guest- prefix, got %q", first.GuestID)
	}

	second := resolver.Resolve(context.Background())
	if second.GuestID != first.GuestID {
		t.Fatalf("guest id must be stable, got %q then %q", first.GuestID, second.GuestID)
	}

	// A fresh resolver over the same store simulates a restart.
	restartStore, err := NewFileStore(dir)
	if err != nil {
		t.Fatalf("store: %v", err)
	}
	restarted, err := NewResolver(ResolverDeps{Tokens: &fakeTokens{}, Store: restartStore})
	if err != nil {
		t.Fatalf("resolver: %v", err)
	}
	if got := restarted.Resolve(context.Background()).GuestID; got != first.GuestID {
		t.Fatalf("guest id must survive restart, got %q want %q", got, first.GuestID)
	}
}

func TestResolveCredentialWins(t *testing.T) {
	tokens := &fakeTokens{token: "opaque-token-1"}
	resolver := newTestResolver(t, tokens)

	sess := resolver.Resolve(context.Background())
	if !sess.IsAuthenticated || sess.Credential != "opaque-token-1" {
		t.Fatalf("expected authenticated session, got %+v", sess)
	}
	if sess.Key() != "opaque-token-1" {
		t.Fatalf("credential must be the identity key, got %q", sess.Key())
	}
}

func TestResolveExpiredJWTCountsAsAbsent(t *testing.T) {
	tokens := &fakeTokens{token: signedJWT(t, time.Now().Add(-time.Hour))}
	resolver := newTestResolver(t, tokens)

	sess := resolver.Resolve(context.Background())
	if sess.IsAuthenticated {
		t.Fatal("expired credential must degrade to guest")
	}
	if sess.GuestID == "" {
		t.Fatal("expected guest id")
	}
}

func TestResolveLiveJWTAccepted(t *testing.T) {
	tokens := &fakeTokens{token: signedJWT(t, time.Now().Add(time.Hour))}
	resolver := newTestResolver(t, tokens)

	if sess := resolver.Resolve(context.Background()); !sess.IsAuthenticated {
		t.Fatal("live credential must authenticate")
	}
}

func TestNotifyCredentialChangedFiresOncePerKeyChange(t *testing.T) {
	tokens := &fakeTokens{}
	resolver := newTestResolver(t, tokens)

	var fired []domain.Session
	resolver.OnChange(func(sess domain.Session) { fired = append(fired, sess) })

	resolver.NotifyCredentialChanged(context.Background())
	if len(fired) != 1 {
		t.Fatalf("first notification establishes the key, got %d firings", len(fired))
	}

	// Same key again: no firing.
	resolver.NotifyCredentialChanged(context.Background())
	if len(fired) != 1 {
		t.Fatalf("unchanged key must not fire, got %d", len(fired))
	}

	tokens.token = "opaque-token-9"
	resolver.NotifyCredentialChanged(context.Background())
	if len(fired) != 2 {
		t.Fatalf("login must fire exactly once, got %d", len(fired))
	}
	if !fired[1].IsAuthenticated {
		t.Fatalf("expected authenticated session delivered, got %+v", fired[1])
	}

	tokens.token = ""
	resolver.NotifyCredentialChanged(context.Background())
	if len(fired) != 3 {
		t.Fatalf("logout must fire exactly once, got %d", len(fired))
	}
	if fired[2].IsAuthenticated {
		t.Fatalf("expected guest session after logout, got %+v", fired[2])
	}
}
