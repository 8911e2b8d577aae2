package checkout

import (
	"sync"
	"time"

	"github.com/YusufAkin27/hiedra-collection-sub001/internal/domain"
)

// DefaultSnapshotTTL bounds how long a redirect may take before the order
// context is considered lost.
const DefaultSnapshotTTL = time.Hour

type snapshotRecord struct {
	snapshot  domain.CheckoutSnapshot
	expiresAt time.Time
}

// SnapshotStore is the session-scoped, ephemeral home of a CheckoutSnapshot
// between a submission that redirects and the callback that consumes it.
// Entries are consumed exactly once: Take deletes on read.
type SnapshotStore struct {
	mu      sync.Mutex
	ttl     time.Duration
	now     func() time.Time
	records map[string]snapshotRecord
}

// NewSnapshotStore constructs an empty store.
func NewSnapshotStore(ttl time.Duration, clock func() time.Time) *SnapshotStore {
	if ttl <= 0 {
		ttl = DefaultSnapshotTTL
	}
	if clock == nil {
		clock = time.Now
	}
	return &SnapshotStore{
		ttl:     ttl,
		now:     func() time.Time { return clock().UTC() },
		records: make(map[string]snapshotRecord),
	}
}

// Put stores the snapshot for the session, replacing any previous one.
func (s *SnapshotStore) Put(sessionID string, snapshot domain.CheckoutSnapshot) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.records[sessionID] = snapshotRecord{
		snapshot:  snapshot,
		expiresAt: s.now().Add(s.ttl),
	}
}

// Take returns the snapshot and deletes it. An expired entry counts as absent.
func (s *SnapshotStore) Take(sessionID string) (domain.CheckoutSnapshot, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	record, ok := s.records[sessionID]
	if !ok {
		return domain.CheckoutSnapshot{}, false
	}
	delete(s.records, sessionID)
	if !s.now().Before(record.expiresAt) {
		return domain.CheckoutSnapshot{}, false
	}
	return record.snapshot, true
}

// CleanupExpired drops entries whose redirect never came back.
func (s *SnapshotStore) CleanupExpired() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	now := s.now()
	removed := 0
	for id, record := range s.records {
		if now.Before(record.expiresAt) {
			continue
		}
		delete(s.records, id)
		removed++
	}
	return removed
}
