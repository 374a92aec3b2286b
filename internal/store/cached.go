package store

import (
	"context"
	"fmt"
	"sync"

	lru "github.com/hashicorp/golang-lru/v2"
	"golang.org/x/sync/singleflight"

	"github.com/signalsfoundry/scenario-editor/model"
)

// Cached is a read-through LRU cache in front of another Store.
// Concurrent loads of the same key share one backend call.
type Cached struct {
	next  Store
	cache *lru.Cache[string, *model.Scenario]
	group singleflight.Group

	// mu orders cache fills against writes. gen counts writes; a load that
	// overlapped one does not fill the cache.
	mu  sync.Mutex
	gen uint64
}

// NewCached wraps next with a cache of up to size scenarios.
func NewCached(next Store, size int) (*Cached, error) {
	cache, err := lru.New[string, *model.Scenario](size)
	if err != nil {
		return nil, fmt.Errorf("scenario cache: %w", err)
	}
	return &Cached{next: next, cache: cache}, nil
}

// List implements Store. Listings are never cached.
func (c *Cached) List(ctx context.Context) ([]model.Summary, error) {
	return c.next.List(ctx)
}

// Load implements Store.
func (c *Cached) Load(ctx context.Context, id string) (*model.Scenario, error) {
	if s, ok := c.cache.Get(id); ok {
		return s.Clone(), nil
	}
	v, err, _ := c.group.Do(id, func() (any, error) {
		gen := c.generation()
		s, err := c.next.Load(ctx, id)
		if err != nil {
			return nil, err
		}
		c.mu.Lock()
		if c.gen == gen {
			c.cache.Add(id, s)
		}
		c.mu.Unlock()
		return s, nil
	})
	if err != nil {
		return nil, err
	}
	return v.(*model.Scenario).Clone(), nil
}

// Save implements Store.
func (c *Cached) Save(ctx context.Context, s *model.Scenario) error {
	c.invalidate(s.ID)
	err := c.next.Save(ctx, s)

	c.mu.Lock()
	defer c.mu.Unlock()
	c.gen++
	if err != nil {
		c.cache.Remove(s.ID)
		return err
	}
	cp := s.Clone()
	cp.Normalize()
	c.cache.Add(s.ID, cp)
	return nil
}

// Delete implements Store.
func (c *Cached) Delete(ctx context.Context, id string) error {
	c.invalidate(id)
	err := c.next.Delete(ctx, id)
	c.invalidate(id)
	return err
}

// invalidate drops id and marks in-flight loads as stale.
func (c *Cached) invalidate(id string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.gen++
	c.cache.Remove(id)
	c.group.Forget(id)
}

func (c *Cached) generation() uint64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.gen
}

// Len returns the number of cached scenarios.
func (c *Cached) Len() int { return c.cache.Len() }
