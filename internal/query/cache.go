// Package query is a stale-while-revalidate cache for backend reads.
package query

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/fjod/storefront/internal/logger"
	"golang.org/x/sync/singleflight"
)

const (
	DefaultStaleTime = 5 * time.Minute
	DefaultCacheTime = 10 * time.Minute
	refreshTimeout   = 30 * time.Second
)

// Recorder receives "fresh", "stale" or "miss" per lookup.
type Recorder interface {
	RecordQueryLookup(result string)
}

type entry struct {
	value     any
	fetchedAt time.Time
	invalid   bool
}

// Cache holds query results by key. Keys are built with Key, so a prefix such as "products"
// matches every page and filter of that query. Entries are replaced, never mutated in place.
type Cache struct {
	mu        sync.Mutex
	entries   map[string]entry
	group     singleflight.Group
	staleTime time.Duration
	cacheTime time.Duration
	now       func() time.Time
	log       *slog.Logger
	metrics   Recorder

	refreshes sync.WaitGroup
	baseCtx   context.Context
	cancel    context.CancelFunc
}

type Options struct {
	StaleTime time.Duration
	CacheTime time.Duration
	Logger    *slog.Logger
	Metrics   Recorder
}

func New(opts Options) *Cache {
	if opts.StaleTime <= 0 {
		opts.StaleTime = DefaultStaleTime
	}
	if opts.CacheTime < opts.StaleTime {
		opts.CacheTime = max(DefaultCacheTime, opts.StaleTime)
	}
	ctx, cancel := context.WithCancel(context.Background())
	return &Cache{
		entries:   make(map[string]entry),
		staleTime: opts.StaleTime,
		cacheTime: opts.CacheTime,
		now:       time.Now,
		log:       logger.OrDefault(opts.Logger),
		metrics:   opts.Metrics,
		baseCtx:   ctx,
		cancel:    cancel,
	}
}

// Key joins a query name and its parameters, e.g. Key("products", page, category).
func Key(name string, params ...any) string {
	if len(params) == 0 {
		return name
	}
	parts := make([]string, 0, len(params)+1)
	parts = append(parts, name)
	for _, p := range params {
		parts = append(parts, fmt.Sprint(p))
	}
	return strings.Join(parts, "|")
}

// Fetch returns the cached value for key, calling fn when there is none. A stale value is
// returned at once and refreshed in the background.
func Fetch[T any](ctx context.Context, c *Cache, key string, fn func(ctx context.Context) (T, error)) (T, error) {
	now := c.now()

	c.mu.Lock()
	e, ok := c.entries[key]
	if ok && now.Sub(e.fetchedAt) > c.cacheTime {
		delete(c.entries, key)
		ok = false
	}
	c.mu.Unlock()

	if ok && !e.invalid {
		if v, typed := e.value.(T); typed {
			if now.Sub(e.fetchedAt) <= c.staleTime {
				c.record("fresh")
				return v, nil
			}
			c.record("stale")
			c.refresh(key, func(ctx context.Context) (any, error) { return fn(ctx) })
			return v, nil
		}
	}

	c.record("miss")
	v, err, _ := c.group.Do(key, func() (any, error) {
		return c.load(ctx, key, func(ctx context.Context) (any, error) { return fn(ctx) })
	})
	if err != nil {
		var zero T
		return zero, err
	}
	typed, _ := v.(T)
	return typed, nil
}

func (c *Cache) load(ctx context.Context, key string, fn func(ctx context.Context) (any, error)) (any, error) {
	v, err := fn(ctx)
	if err != nil {
		return nil, err
	}
	c.mu.Lock()
	c.entries[key] = entry{value: v, fetchedAt: c.now()}
	c.mu.Unlock()
	return v, nil
}

func (c *Cache) refresh(key string, fn func(ctx context.Context) (any, error)) {
	if c.baseCtx.Err() != nil {
		return
	}
	c.refreshes.Add(1)
	go func() {
		defer c.refreshes.Done()

		ctx, cancel := context.WithTimeout(c.baseCtx, refreshTimeout)
		defer cancel()

		_, err, _ := c.group.Do(key, func() (any, error) {
			return c.load(ctx, key, fn)
		})
		if err != nil {
			c.log.Debug("background refresh failed", slog.String("key", key), slog.Any("error", err))
		}
	}()
}

// Invalidate marks every key equal to prefix or starting with prefix+"|" as needing a fetch.
func (c *Cache) Invalidate(prefix string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	for k, e := range c.entries {
		if k == prefix || strings.HasPrefix(k, prefix+"|") {
			e.invalid = true
			c.entries[k] = e
		}
	}
}

// Set primes key with a value, as after a mutation that returns the new resource.
func (c *Cache) Set(key string, value any) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries[key] = entry{value: value, fetchedAt: c.now()}
}

func (c *Cache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.entries)
}

// Wait blocks until background refreshes started so far have finished.
func (c *Cache) Wait() {
	c.refreshes.Wait()
}

// Close cancels background refreshes and waits for them.
func (c *Cache) Close() {
	c.cancel()
	c.refreshes.Wait()
}

func (c *Cache) record(result string) {
	if c.metrics != nil {
		c.metrics.RecordQueryLookup(result)
	}
}
