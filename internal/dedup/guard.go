// internal/dedup/guard.go
package dedup

import (
	"sync"
	"time"

	"github.com/user/amana/internal/types"
)

// Guard deduplicates retried webhook deliveries. The platform redelivers
// an update when it doesn't get a timely 200, so the same delivery_id can
// arrive more than once; only the first occurrence within the TTL is
// processed.
type Guard struct {
	mu   sync.Mutex
	seen map[types.DeliveryID]time.Time
	ttl  time.Duration
	now  func() time.Time
}

// New creates a Guard with the given TTL.
func New(ttl time.Duration) *Guard {
	return &Guard{
		seen: make(map[types.DeliveryID]time.Time),
		ttl:  ttl,
		now:  time.Now,
	}
}

// Seen records id and reports whether it was already recorded within the
// TTL. Expired entries are swept opportunistically on each call.
func (g *Guard) Seen(id types.DeliveryID) bool {
	g.mu.Lock()
	defer g.mu.Unlock()

	now := g.now()
	for k, ts := range g.seen {
		if now.Sub(ts) > g.ttl {
			delete(g.seen, k)
		}
	}

	if _, ok := g.seen[id]; ok {
		return true
	}
	g.seen[id] = now
	return false
}

// Len returns the number of tracked deliveries.
func (g *Guard) Len() int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return len(g.seen)
}
