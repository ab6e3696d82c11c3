package tenant

import (
	"context"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"
)

// lookupTimeout bounds a shared lookup, which runs detached from any single
// caller's context.
const lookupTimeout = 10 * time.Second

type cacheEntry struct {
	teamID  string
	expires time.Time
}

// Resolver caches team lookups for a short TTL and collapses concurrent
// lookups of the same datasource into one query. Failures are not cached.
type Resolver struct {
	lookup Lookup
	ttl    time.Duration
	now    func() time.Time

	group singleflight.Group
	mu    sync.RWMutex
	cache map[string]cacheEntry
}

func NewResolver(lookup Lookup, ttl time.Duration) *Resolver {
	return &Resolver{
		lookup: lookup,
		ttl:    ttl,
		now:    time.Now,
		cache:  make(map[string]cacheEntry),
	}
}

func (r *Resolver) Resolve(ctx context.Context, datasourceID string) (Context, error) {
	if datasourceID == "" {
		return Context{}, ErrEmptyID
	}

	if teamID, ok := r.cached(datasourceID); ok {
		return Context{TeamID: teamID, DatasourceID: datasourceID}, nil
	}

	ch := r.group.DoChan(datasourceID, func() (any, error) {
		lctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), lookupTimeout)
		defer cancel()
		teamID, err := r.lookup.TeamID(lctx, datasourceID)
		if err != nil {
			return "", err
		}
		if r.ttl > 0 {
			r.mu.Lock()
			r.cache[datasourceID] = cacheEntry{teamID: teamID, expires: r.now().Add(r.ttl)}
			r.mu.Unlock()
		}
		return teamID, nil
	})

	select {
	case res := <-ch:
		if res.Err != nil {
			return Context{}, res.Err
		}
		return Context{TeamID: res.Val.(string), DatasourceID: datasourceID}, nil
	case <-ctx.Done():
		return Context{}, ctx.Err()
	}
}

// Forget drops a cached entry, e.g. after a datasource changes owner.
func (r *Resolver) Forget(datasourceID string) {
	r.mu.Lock()
	delete(r.cache, datasourceID)
	r.mu.Unlock()
}

func (r *Resolver) cached(datasourceID string) (string, bool) {
	r.mu.RLock()
	entry, ok := r.cache[datasourceID]
	r.mu.RUnlock()
	if !ok || r.now().After(entry.expires) {
		return "", false
	}
	return entry.teamID, true
}
