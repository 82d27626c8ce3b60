package gate

import (
	"context"
	"sync"
	"time"
)

// CachedResolver wraps an ActorResolver with TTL-based caching.
type CachedResolver struct {
	inner ActorResolver
	cache map[string]*cacheEntry
	mu    sync.RWMutex
	ttl   time.Duration
	now   func() time.Time
}

type cacheEntry struct {
	actor     *Actor
	expiresAt time.Time
}

// NewCachedResolver wraps a resolver with caching.
// ttl is how long actors are cached before re-fetching.
func NewCachedResolver(inner ActorResolver, ttl time.Duration) *CachedResolver {
	return &CachedResolver{
		inner: inner,
		cache: make(map[string]*cacheEntry),
		ttl:   ttl,
		now:   time.Now,
	}
}

// Resolve returns the actor for id, using the cache if available.
func (r *CachedResolver) Resolve(ctx context.Context, id string) (*Actor, error) {
	r.mu.RLock()
	entry, ok := r.cache[id]
	r.mu.RUnlock()

	if ok && r.now().Before(entry.expiresAt) {
		return entry.actor, nil
	}

	a, err := r.inner.Resolve(ctx, id)
	if err != nil {
		return nil, err
	}

	r.mu.Lock()
	r.cache[id] = &cacheEntry{actor: a, expiresAt: r.now().Add(r.ttl)}
	r.mu.Unlock()

	return a, nil
}

// Invalidate removes an actor from the cache.
// Call this when the actor's role changes.
func (r *CachedResolver) Invalidate(id string) {
	r.mu.Lock()
	delete(r.cache, id)
	r.mu.Unlock()
}
