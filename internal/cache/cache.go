package cache

import (
	"container/list"
	"context"
	"hash/fnv"
	"sort"
	"sync"
	"time"

	"github.com/sirupsen/logrus"
	"golang.org/x/sync/singleflight"

	"github.com/ShayCichocki/quoteflow/internal/logging"
	"github.com/ShayCichocki/quoteflow/internal/metrics"
	"github.com/ShayCichocki/quoteflow/pkg/models"
)

const defaultShards = 16

// ComputeFunc produces the result for a cache miss.
type ComputeFunc func(ctx context.Context) (models.TaskResult, error)

// QuoteCache maps subtask text to its TaskResult.
//
// Entries are append-only: the first insert for a key wins. Keys are spread
// over independently locked shards, and GetOrCompute collapses concurrent
// misses for the same key into one computation.
type QuoteCache struct {
	policy  Policy
	shards  []*shard
	flight  singleflight.Group
	store   Store
	metrics *metrics.Metrics
	logger  logrus.FieldLogger
	now     func() time.Time
}

type entry struct {
	result     models.TaskResult
	insertedAt time.Time
	elem       *list.Element
}

type shard struct {
	mu       sync.RWMutex
	entries  map[string]*entry
	order    *list.List // keys, oldest insert first
	capacity int
}

// Option configures a QuoteCache.
type Option func(*QuoteCache)

// WithStore sets the durable store for the persistent scope.
func WithStore(s Store) Option {
	return func(c *QuoteCache) { c.store = s }
}

// WithMetrics records hits and misses.
func WithMetrics(m *metrics.Metrics) Option {
	return func(c *QuoteCache) { c.metrics = m }
}

// WithLogger sets the logger.
func WithLogger(l logrus.FieldLogger) Option {
	return func(c *QuoteCache) { c.logger = l }
}

// WithClock overrides time.Now, for TTL tests.
func WithClock(now func() time.Time) Option {
	return func(c *QuoteCache) { c.now = now }
}

// WithShards sets the number of shards. Session capacity is enforced per
// shard as ceil(Capacity/shards).
func WithShards(n int) Option {
	return func(c *QuoteCache) {
		if n > 0 {
			c.shards = make([]*shard, n)
		}
	}
}

// New creates a cache for the given policy.
func New(policy Policy, opts ...Option) (*QuoteCache, error) {
	if err := policy.Validate(); err != nil {
		return nil, err
	}

	c := &QuoteCache{
		policy: policy,
		logger: logging.Default(),
		now:    time.Now,
	}
	for _, opt := range opts {
		opt(c)
	}

	if policy.Scope == ScopePersistent && c.store == nil {
		return nil, ErrStoreRequired
	}

	n := len(c.shards)
	if n == 0 {
		n = defaultShards
		if policy.Scope == ScopeSession && policy.Capacity > 0 && policy.Capacity < n {
			n = policy.Capacity
		}
	}

	perShard := 0
	if policy.Scope == ScopeSession && policy.Capacity > 0 {
		perShard = (policy.Capacity + n - 1) / n
	}

	c.shards = make([]*shard, n)
	for i := range c.shards {
		c.shards[i] = &shard{
			entries:  make(map[string]*entry),
			order:    list.New(),
			capacity: perShard,
		}
	}
	return c, nil
}

// NewTurn creates a turn-scoped cache.
func NewTurn(opts ...Option) *QuoteCache {
	c, err := New(TurnPolicy(), opts...)
	if err != nil {
		// The turn policy is always valid.
		panic(err)
	}
	return c
}

// Policy returns the cache policy.
func (c *QuoteCache) Policy() Policy {
	return c.policy
}

// ttl is the expiry in effect. Only the session scope expires entries.
func (c *QuoteCache) ttl() time.Duration {
	if c.policy.Scope != ScopeSession {
		return 0
	}
	return c.policy.TTL
}

func (c *QuoteCache) shardFor(key string) *shard {
	h := fnv.New32a()
	_, _ = h.Write([]byte(key))
	return c.shards[h.Sum32()%uint32(len(c.shards))]
}

// Get returns the cached result for text. The persistent scope falls back to
// the store on a memory miss.
func (c *QuoteCache) Get(ctx context.Context, text string) (models.TaskResult, bool) {
	r, ok := c.lookup(ctx, text)
	c.metrics.RecordCacheLookup(string(c.policy.Scope), ok)
	return r, ok
}

func (c *QuoteCache) lookup(ctx context.Context, text string) (models.TaskResult, bool) {
	if r, ok := c.shardFor(text).get(text, c.now(), c.ttl()); ok {
		return r, true
	}
	if c.policy.Scope != ScopePersistent {
		return models.TaskResult{}, false
	}

	r, ok, err := c.store.GetQuote(ctx, text)
	if err != nil {
		c.logger.WithError(err).Warn("quote store read failed")
		return models.TaskResult{}, false
	}
	if !ok {
		return models.TaskResult{}, false
	}
	c.shardFor(text).put(text, r, c.now(), c.ttl())
	return r, true
}

// Put inserts result under its subtask text. It returns false if the key was
// already present or the result is not cacheable. In the persistent scope the
// result is also written to the store; store errors are returned after the
// in-memory insert.
func (c *QuoteCache) Put(ctx context.Context, result models.TaskResult) (bool, error) {
	if !result.Cacheable() {
		return false, nil
	}
	if !c.shardFor(result.Subtask).put(result.Subtask, result, c.now(), c.ttl()) {
		return false, nil
	}
	c.metrics.SetCacheSize(string(c.policy.Scope), c.Len())

	if c.policy.Scope == ScopePersistent {
		if err := c.store.SaveQuote(ctx, result); err != nil {
			return true, err
		}
	}
	return true, nil
}

// GetOrCompute returns the cached result for text, or runs fn and caches its
// result. Concurrent callers for the same text share one call to fn. cached is
// true when this caller did not run fn itself.
//
// Results that are not cacheable (timeouts, cancellations) are returned but
// not stored. An error from fn is returned as is and nothing is stored.
func (c *QuoteCache) GetOrCompute(ctx context.Context, text string, fn ComputeFunc) (models.TaskResult, bool, error) {
	if r, ok := c.Get(ctx, text); ok {
		return r, true, nil
	}

	executed := false
	v, err, _ := c.flight.Do(text, func() (any, error) {
		// Another caller may have finished between our miss and this call.
		if r, ok := c.lookup(ctx, text); ok {
			return r, nil
		}
		executed = true
		r, err := fn(ctx)
		if err != nil {
			return nil, err
		}
		if r.Subtask == "" {
			r.Subtask = text
		}
		if _, err := c.Put(ctx, r); err != nil {
			c.logger.WithError(err).Warn("quote store write failed")
		}
		return r, nil
	})
	if err != nil {
		return models.TaskResult{}, false, err
	}
	return v.(models.TaskResult), !executed, nil
}

// Len returns the number of live entries held in memory.
func (c *QuoteCache) Len() int {
	now := c.now()
	n := 0
	for _, s := range c.shards {
		n += s.len(now, c.ttl())
	}
	return n
}

// Snapshot returns the live in-memory entries sorted by subtask text.
func (c *QuoteCache) Snapshot() []models.TaskResult {
	now := c.now()
	var out []models.TaskResult
	for _, s := range c.shards {
		out = append(out, s.snapshot(now, c.ttl())...)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Subtask < out[j].Subtask })
	return out
}

// Reset drops every in-memory entry. Durable entries are kept.
func (c *QuoteCache) Reset() {
	for _, s := range c.shards {
		s.reset()
	}
	c.metrics.SetCacheSize(string(c.policy.Scope), 0)
}

func expired(e *entry, now time.Time, ttl time.Duration) bool {
	return ttl > 0 && now.Sub(e.insertedAt) > ttl
}

func (s *shard) get(key string, now time.Time, ttl time.Duration) (models.TaskResult, bool) {
	s.mu.RLock()
	e, ok := s.entries[key]
	s.mu.RUnlock()
	if !ok || expired(e, now, ttl) {
		return models.TaskResult{}, false
	}
	return e.result, true
}

// put inserts key unless a live entry exists. An expired entry is replaced.
func (s *shard) put(key string, r models.TaskResult, now time.Time, ttl time.Duration) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	if e, ok := s.entries[key]; ok {
		if !expired(e, now, ttl) {
			return false
		}
		s.order.Remove(e.elem)
		delete(s.entries, key)
	}

	e := &entry{result: r, insertedAt: now}
	e.elem = s.order.PushBack(key)
	s.entries[key] = e

	for s.capacity > 0 && len(s.entries) > s.capacity {
		oldest := s.order.Front()
		s.order.Remove(oldest)
		delete(s.entries, oldest.Value.(string))
	}
	return true
}

func (s *shard) len(now time.Time, ttl time.Duration) int {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if ttl <= 0 {
		return len(s.entries)
	}
	n := 0
	for _, e := range s.entries {
		if !expired(e, now, ttl) {
			n++
		}
	}
	return n
}

func (s *shard) snapshot(now time.Time, ttl time.Duration) []models.TaskResult {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]models.TaskResult, 0, len(s.entries))
	for _, e := range s.entries {
		if !expired(e, now, ttl) {
			out = append(out, e.result)
		}
	}
	return out
}

func (s *shard) reset() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.entries = make(map[string]*entry)
	s.order.Init()
}
