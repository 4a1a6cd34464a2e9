// Package querycache caches query results by key and replaces reactive
// invalidation with explicit event passing: Invalidate marks entries stale and
// notifies subscribers, which re-run their reads.
package querycache

import (
	"context"
	"strconv"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/singleflight"

	"github.com/willibrandon/studio/internal/logger"
	"github.com/willibrandon/studio/internal/querykey"
)

// Event is published when a key prefix is invalidated.
type Event struct {
	Key querykey.Key
	At  time.Time
}

// Listener reacts to an invalidation, typically by refetching.
type Listener func(ctx context.Context, ev Event) error

type entry struct {
	key       querykey.Key
	value     any
	updatedAt time.Time
	stale     bool
	gen       uint64
}

// generation counts the invalidations that have covered a key. A read
// started at an older generation may only populate the key as stale.
type generation struct {
	key querykey.Key
	n   uint64
}

type subscription struct {
	prefix   querykey.Key
	listener Listener
}

// Cache stores query results keyed by querykey.Key.
type Cache struct {
	mu      sync.Mutex
	entries map[string]*entry
	gens    map[string]*generation
	subs    map[int]subscription
	nextSub int

	group     singleflight.Group
	staleTime time.Duration
	now       func() time.Time
}

// Option configures a Cache.
type Option func(*Cache)

// WithStaleTime makes entries stale after d even without invalidation.
// Zero keeps entries fresh until invalidated.
func WithStaleTime(d time.Duration) Option {
	return func(c *Cache) {
		c.staleTime = d
	}
}

// WithClock overrides the time source.
func WithClock(now func() time.Time) Option {
	return func(c *Cache) {
		c.now = now
	}
}

// New creates an empty cache.
func New(opts ...Option) *Cache {
	c := &Cache{
		entries: make(map[string]*entry),
		gens:    make(map[string]*generation),
		subs:    make(map[int]subscription),
		now:     time.Now,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Fetch returns the fresh cached value for key, or runs fn to populate it.
// Concurrent fetches of the same key share one call to fn. Errors are
// returned to every waiter and never cached.
func Fetch[T any](ctx context.Context, c *Cache, key querykey.Key, fn func(ctx context.Context) (T, error)) (T, error) {
	if v, ok := lookup[T](c, key, true); ok {
		return v, nil
	}
	return Refetch(ctx, c, key, fn)
}

// Refetch runs fn even when a fresh value is cached and stores the result.
// Calls only share fn with reads started since the last invalidation of key,
// so a refetch issued after Invalidate never receives a value read before it.
// A read that an invalidation overtook is stored stale at most.
func Refetch[T any](ctx context.Context, c *Cache, key querykey.Key, fn func(ctx context.Context) (T, error)) (T, error) {
	gen := c.currentGen(key)
	flight := strconv.FormatUint(gen, 10) + ":" + key.ID()

	res, err, _ := c.group.Do(flight, func() (any, error) {
		v, err := fn(ctx)
		if err != nil {
			return nil, err
		}
		c.store(key, v, gen)
		return v, nil
	})
	if err != nil {
		var zero T
		return zero, err
	}

	v, ok := res.(T)
	if !ok {
		var zero T
		return zero, nil
	}
	return v, nil
}

// Get returns the cached value for key whether or not it is stale.
func Get[T any](c *Cache, key querykey.Key) (T, bool) {
	return lookup[T](c, key, false)
}

func lookup[T any](c *Cache, key querykey.Key, freshOnly bool) (T, bool) {
	var zero T

	c.mu.Lock()
	defer c.mu.Unlock()

	e, ok := c.entries[key.ID()]
	if !ok {
		return zero, false
	}
	if freshOnly && c.isStale(e) {
		return zero, false
	}
	v, ok := e.value.(T)
	if !ok {
		return zero, false
	}
	return v, true
}

func (c *Cache) isStale(e *entry) bool {
	if e.stale {
		return true
	}
	return c.staleTime > 0 && c.now().Sub(e.updatedAt) > c.staleTime
}

// Set stores value under key as fresh data.
func (c *Cache) Set(key querykey.Key, value any) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.put(key, value, c.genLocked(key).n, false)
}

// currentGen returns the generation a read of key starts at.
func (c *Cache) currentGen(key querykey.Key) uint64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.genLocked(key).n
}

func (c *Cache) genLocked(key querykey.Key) *generation {
	id := key.ID()
	g, ok := c.gens[id]
	if !ok {
		g = &generation{key: append(querykey.Key(nil), key...)}
		c.gens[id] = g
	}
	return g
}

// store saves the result of a read started at gen. If key was invalidated
// since, the value is kept only as a stale placeholder and never replaces a
// newer entry.
func (c *Cache) store(key querykey.Key, value any, gen uint64) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if gen == c.genLocked(key).n {
		c.put(key, value, gen, false)
		return
	}
	if e, ok := c.entries[key.ID()]; ok && e.gen > gen {
		return
	}
	c.put(key, value, gen, true)
}

func (c *Cache) put(key querykey.Key, value any, gen uint64, stale bool) {
	c.entries[key.ID()] = &entry{
		key:       append(querykey.Key(nil), key...),
		value:     value,
		updatedAt: c.now(),
		stale:     stale,
		gen:       gen,
	}
}

// IsStale reports whether key is missing or stale.
func (c *Cache) IsStale(key querykey.Key) bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	e, ok := c.entries[key.ID()]
	return !ok || c.isStale(e)
}

// Subscribe registers listener for invalidations overlapping prefix and
// returns a function that removes it.
func (c *Cache) Subscribe(prefix querykey.Key, listener Listener) (unsubscribe func()) {
	c.mu.Lock()
	defer c.mu.Unlock()

	id := c.nextSub
	c.nextSub++
	c.subs[id] = subscription{
		prefix:   append(querykey.Key(nil), prefix...),
		listener: listener,
	}

	return func() {
		c.mu.Lock()
		defer c.mu.Unlock()
		delete(c.subs, id)
	}
}

// Invalidate marks every entry under prefix stale, advances the generation
// of every key under prefix so reads already in flight cannot repopulate
// them as fresh, and runs the listeners whose prefix overlaps it. It returns
// once all listeners have finished; the first listener error is returned.
// Invalidating twice is harmless.
func (c *Cache) Invalidate(ctx context.Context, prefix querykey.Key) error {
	ev := Event{Key: append(querykey.Key(nil), prefix...), At: c.now()}

	c.mu.Lock()
	c.bumpLocked(prefix)
	marked := 0
	for _, e := range c.entries {
		if e.key.HasPrefix(prefix) {
			e.stale = true
			marked++
		}
	}
	var listeners []Listener
	for _, sub := range c.subs {
		if sub.prefix.Overlaps(prefix) {
			listeners = append(listeners, sub.listener)
		}
	}
	c.mu.Unlock()

	logger.Debug("Invalidated query cache",
		"key", prefix.String(),
		"entries", marked,
		"listeners", len(listeners),
	)

	if len(listeners) == 0 {
		return nil
	}

	g, gctx := errgroup.WithContext(ctx)
	for _, l := range listeners {
		g.Go(func() error {
			return l(gctx, ev)
		})
	}
	return g.Wait()
}

func (c *Cache) bumpLocked(prefix querykey.Key) {
	for _, g := range c.gens {
		if g.key.HasPrefix(prefix) {
			g.n++
		}
	}
}

// Remove drops every entry under prefix without notifying subscribers.
func (c *Cache) Remove(prefix querykey.Key) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.bumpLocked(prefix)

	for k, e := range c.entries {
		if e.key.HasPrefix(prefix) {
			delete(c.entries, k)
		}
	}
}
