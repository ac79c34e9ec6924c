// Package cache holds politician records in process memory for the lifetime
// of the server. Records are never evicted.
package cache

import (
	"sync"
	"time"

	"github.com/WessleyAI/polidossier/engine/domain"
	"github.com/WessleyAI/polidossier/pkg/metrics"
)

// DefaultTTL is how long a full record stays fresh.
const DefaultTTL = time.Hour

// Option configures a Store.
type Option func(*Store)

// WithClock replaces time.Now.
func WithClock(now func() time.Time) Option {
	return func(s *Store) { s.now = now }
}

// WithMetrics reports the store size.
func WithMetrics(m *metrics.Metrics) Option {
	return func(s *Store) { s.metrics = m }
}

// Store maps politician ids to records. The mutex guards the map only;
// callers that check then fetch are not coordinated, so two concurrent
// refreshes of one id both reach the oracle and the last Put wins.
type Store struct {
	mu      sync.RWMutex
	records map[string]domain.Politician
	ttl     time.Duration
	now     func() time.Time
	metrics *metrics.Metrics
}

// NewStore creates an empty store. A non-positive ttl uses DefaultTTL.
func NewStore(ttl time.Duration, opts ...Option) *Store {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	s := &Store{
		records: make(map[string]domain.Politician),
		ttl:     ttl,
		now:     time.Now,
	}
	for _, o := range opts {
		o(s)
	}
	return s
}

// Get returns a copy of the record for id.
func (s *Store) Get(id string) (domain.Politician, bool) {
	s.mu.RLock()
	p, ok := s.records[id]
	s.mu.RUnlock()
	if !ok {
		return domain.Politician{}, false
	}
	return p.Clone(), true
}

// Put stores a copy of p under id, replacing any previous record.
func (s *Store) Put(id string, p domain.Politician) {
	s.mu.Lock()
	s.records[id] = p.Clone()
	n := len(s.records)
	s.mu.Unlock()
	s.metrics.SetCacheSize(n)
}

// IsFreshFullDetail reports whether p is a full record updated within the TTL.
func (s *Store) IsFreshFullDetail(p domain.Politician) bool {
	return p.FullDetails && s.now().Sub(p.LastUpdated) < s.ttl
}

// Now returns the store's clock reading, used to stamp records.
func (s *Store) Now() time.Time { return s.now() }

// Len returns the number of records.
func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.records)
}
