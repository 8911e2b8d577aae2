package cart

import (
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"time"

	"github.com/YusufAkin27/hiedra-collection-sub001/internal/domain"
)

const cacheFileName = "cart.json"

// DefaultCacheTTL is the durable cart cache expiry window.
const DefaultCacheTTL = 30 * 24 * time.Hour

// Cache mirrors cart lines into a durable client-side file so the cart
// survives a restart of the client runtime. Entries expire after the TTL;
// an expired file is treated as absent and removed on load.
type Cache struct {
	path string
	ttl  time.Duration
	now  func() time.Time
}

type cachePayload struct {
	Items     []domain.CartLine `json:"items"`
	SavedAtMs int64             `json:"savedAtMs"`
	ExpiresMs int64             `json:"expiryTimestampMs"`
}

// NewCache creates the backing directory if needed.
func NewCache(dir string, ttl time.Duration, clock func() time.Time) (*Cache, error) {
	if ttl <= 0 {
		ttl = DefaultCacheTTL
	}
	if clock == nil {
		clock = time.Now
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, err
	}
	return &Cache{
		path: filepath.Join(dir, cacheFileName),
		ttl:  ttl,
		now:  func() time.Time { return clock().UTC() },
	}, nil
}

// Load returns the cached lines and whether a fresh cache was present.
func (c *Cache) Load() ([]domain.CartLine, bool, error) {
	raw, err := os.ReadFile(c.path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, false, nil
		}
		return nil, false, err
	}

	var payload cachePayload
	if err := json.Unmarshal(raw, &payload); err != nil {
		// A corrupt cache is discarded, never surfaced.
		_ = os.Remove(c.path)
		return nil, false, nil
	}

	if payload.ExpiresMs > 0 && c.now().UnixMilli() >= payload.ExpiresMs {
		_ = os.Remove(c.path)
		return nil, false, nil
	}
	return domain.CloneLines(payload.Items), true, nil
}

// Save mirrors the current lines, stamping a fresh expiry window.
func (c *Cache) Save(lines []domain.CartLine) error {
	now := c.now()
	payload := cachePayload{
		Items:     domain.CloneLines(lines),
		SavedAtMs: now.UnixMilli(),
		ExpiresMs: now.Add(c.ttl).UnixMilli(),
	}
	raw, err := json.Marshal(payload)
	if err != nil {
		return err
	}
	tmp := c.path + ".tmp"
	if err := os.WriteFile(tmp, raw, 0o600); err != nil {
		return err
	}
	return os.Rename(tmp, c.path)
}

// Clear deletes the cache file.
func (c *Cache) Clear() error {
	err := os.Remove(c.path)
	if errors.Is(err, os.ErrNotExist) {
		return nil
	}
	return err
}
