// Package gate provides the Gate/Policy authorization checkpoint used by
// every mutating operation. Callers pass the acting operator explicitly.
package gate

import (
	"context"
	"sync"
)

// Gate maps resource types to policies. U is the subject type; its zero
// value is treated as "nobody".
//
// Batch workers authorize concurrently, so the registry is guarded.
type Gate[U comparable] struct {
	mu       sync.RWMutex
	policies map[string]Policy[U]
}

func NewGate[U comparable]() *Gate[U] {
	return &Gate[U]{policies: make(map[string]Policy[U])}
}

// Register binds p to resourceType, replacing any earlier binding.
func (g *Gate[U]) Register(resourceType string, p Policy[U]) {
	g.mu.Lock()
	g.policies[resourceType] = p
	g.mu.Unlock()
}

// Authorize returns ErrUnauthorized for a zero-value subject or a denied
// action, and ErrNoPolicyDefined when resourceType has no policy.
func (g *Gate[U]) Authorize(ctx context.Context, user U, action Action, resourceType string, resource any) error {
	var zero U
	if user == zero {
		return ErrUnauthorized
	}
	g.mu.RLock()
	p, ok := g.policies[resourceType]
	g.mu.RUnlock()
	switch {
	case !ok:
		return ErrNoPolicyDefined
	case !p.Can(ctx, user, action, resource):
		return ErrUnauthorized
	}
	return nil
}

func (g *Gate[U]) Can(ctx context.Context, user U, action Action, resourceType string, resource any) bool {
	return g.Authorize(ctx, user, action, resourceType, resource) == nil
}
