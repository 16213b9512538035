package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"

	"insured/internal/insured/models"
	"insured/pkg/platform/circuit"
	"insured/pkg/platform/tx"
)

// Backend is the store contract the cache decorates.
type Backend interface {
	Exists(ctx context.Context, id int64) (bool, error)
	FindByID(ctx context.Context, id int64) (*models.InsuredPerson, error)
	Insert(ctx context.Context, p *models.InsuredPerson) error
	Replace(ctx context.Context, id int64, p *models.InsuredPerson, expectedVersion int64) error
	Delete(ctx context.Context, id int64, expectedVersion int64) error
	Count(ctx context.Context) (int, error)
	ListPage(ctx context.Context, offset, limit int) ([]*models.InsuredPerson, error)
}

// CacheObserver receives "hit", "miss", "error" or "bypass" for every cache lookup.
type CacheObserver interface {
	ObserveCache(result string)
}

const (
	cacheKeyPrefix = "insured:"
	// generations outlive entries so a slow fill still sees the bump
	generationTTL = time.Hour
)

// Cached is a Redis read-through cache in front of a Backend. Lookups by
// identity are served from Redis when possible; writes go to the backend and
// then evict the key. Calls made inside a transaction bypass the cache so
// version checks always see the transactional view.
//
// Every eviction bumps a per-key generation before deleting the entry. A fill
// records the generation it saw with its lookup and withdraws its own entry if
// the generation moved, so a reader that loaded a record before a concurrent
// write cannot leave that older version behind.
//
// Redis failures never fail a request: they are logged and the backend answers.
// With a breaker, repeated failures stop lookups and fills until a probe
// succeeds; evictions are always attempted. Entries expire after the
// configured TTL.
type Cached struct {
	backend  Backend
	client   redis.Cmdable
	ttl      time.Duration
	logger   *slog.Logger
	observer CacheObserver
	breaker  *circuit.Breaker
}

// CacheOption configures a Cached store.
type CacheOption func(*Cached)

func WithCacheLogger(logger *slog.Logger) CacheOption {
	return func(c *Cached) {
		c.logger = logger
	}
}

func WithCacheObserver(observer CacheObserver) CacheOption {
	return func(c *Cached) {
		c.observer = observer
	}
}

func WithCacheBreaker(b *circuit.Breaker) CacheOption {
	return func(c *Cached) {
		c.breaker = b
	}
}

// NewCached wraps backend with a Redis cache whose entries live for ttl.
func NewCached(backend Backend, client redis.Cmdable, ttl time.Duration, opts ...CacheOption) *Cached {
	c := &Cached{backend: backend, client: client, ttl: ttl}
	for _, opt := range opts {
		if opt != nil {
			opt(c)
		}
	}
	return c
}

type cacheEntry struct {
	Person  *models.InsuredPerson `json:"person"`
	Version int64                 `json:"version"`
}

func cacheKey(id int64) string {
	return cacheKeyPrefix + strconv.FormatInt(id, 10)
}

func generationKey(id int64) string {
	return cacheKey(id) + ":gen"
}

// cacheRead is the outcome of one lookup. fill is set when the lookup reached
// Redis and missed; generation is what the fill must still see afterwards.
type cacheRead struct {
	person     *models.InsuredPerson
	generation string
	fill       bool
}

func (c *Cached) Exists(ctx context.Context, id int64) (bool, error) {
	if !tx.InTx(ctx) {
		if read := c.lookup(ctx, id); read.person != nil {
			return true, nil
		}
	}
	return c.backend.Exists(ctx, id)
}

func (c *Cached) FindByID(ctx context.Context, id int64) (*models.InsuredPerson, error) {
	if tx.InTx(ctx) {
		return c.backend.FindByID(ctx, id)
	}
	read := c.lookup(ctx, id)
	if read.person != nil {
		return read.person, nil
	}
	p, err := c.backend.FindByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if read.fill {
		c.store(ctx, p, read.generation)
	}
	return p, nil
}

func (c *Cached) Insert(ctx context.Context, p *models.InsuredPerson) error {
	return c.backend.Insert(ctx, p)
}

func (c *Cached) Replace(ctx context.Context, id int64, p *models.InsuredPerson, expectedVersion int64) error {
	err := c.backend.Replace(ctx, id, p, expectedVersion)
	c.evict(ctx, id)
	return err
}

func (c *Cached) Delete(ctx context.Context, id int64, expectedVersion int64) error {
	err := c.backend.Delete(ctx, id, expectedVersion)
	c.evict(ctx, id)
	return err
}

func (c *Cached) Count(ctx context.Context) (int, error) {
	return c.backend.Count(ctx)
}

func (c *Cached) ListPage(ctx context.Context, offset, limit int) ([]*models.InsuredPerson, error) {
	return c.backend.ListPage(ctx, offset, limit)
}

func (c *Cached) lookup(ctx context.Context, id int64) cacheRead {
	if c.breaker != nil && !c.breaker.Allow() {
		c.observe("bypass")
		return cacheRead{}
	}
	vals, err := c.client.MGet(ctx, cacheKey(id), generationKey(id)).Result()
	if err == nil && len(vals) != 2 {
		err = fmt.Errorf("MGET returned %d values", len(vals))
	}
	c.recordOutcome(ctx, err)
	if err != nil {
		c.observe("error")
		c.warn(ctx, "insured cache lookup failed", id, err)
		return cacheRead{}
	}
	generation, _ := vals[1].(string)
	raw, ok := vals[0].(string)
	if !ok {
		c.observe("miss")
		return cacheRead{generation: generation, fill: true}
	}
	var entry cacheEntry
	if err := json.Unmarshal([]byte(raw), &entry); err != nil || entry.Person == nil {
		c.observe("error")
		c.warn(ctx, "insured cache entry unreadable", id, err)
		c.del(ctx, id)
		return cacheRead{generation: generation, fill: true}
	}
	c.observe("hit")
	entry.Person.Version = entry.Version
	return cacheRead{person: entry.Person}
}

// store caches p unless an eviction for the same key ran after the lookup
// that preceded the backend read.
func (c *Cached) store(ctx context.Context, p *models.InsuredPerson, generation string) {
	id := p.IdentificationNumber
	raw, err := json.Marshal(cacheEntry{Person: p, Version: p.Version})
	if err != nil {
		c.warn(ctx, "insured cache encode failed", id, err)
		return
	}
	if c.breaker != nil && c.breaker.IsOpen() {
		return
	}
	err = c.client.Set(ctx, cacheKey(id), raw, c.ttl).Err()
	c.recordOutcome(ctx, err)
	if err != nil {
		c.warn(ctx, "insured cache write failed", id, err)
		return
	}

	current, err := c.client.Get(ctx, generationKey(id)).Result()
	if errors.Is(err, redis.Nil) {
		current, err = "", nil
	}
	if err != nil || current != generation {
		// either a write raced the fill or we cannot tell; drop the entry
		c.del(ctx, id)
	}
}

// evict invalidates the key now and, inside a transaction, again after commit
// so a reader racing the uncommitted write cannot leave a stale entry behind.
func (c *Cached) evict(ctx context.Context, id int64) {
	c.invalidate(ctx, id)
	if tx.InTx(ctx) {
		detached := context.WithoutCancel(ctx)
		tx.AfterCommit(ctx, func() { c.invalidate(detached, id) })
	}
}

// invalidate bumps the generation before deleting the entry; fills rely on
// that order.
func (c *Cached) invalidate(ctx context.Context, id int64) {
	err := c.client.Incr(ctx, generationKey(id)).Err()
	if err == nil {
		err = c.client.Expire(ctx, generationKey(id), max(generationTTL, c.ttl)).Err()
	}
	if err != nil {
		c.recordOutcome(ctx, err)
		c.warn(ctx, "insured cache generation bump failed", id, err)
	}
	c.del(ctx, id)
}

func (c *Cached) del(ctx context.Context, id int64) {
	err := c.client.Del(ctx, cacheKey(id)).Err()
	c.recordOutcome(ctx, err)
	if err != nil {
		c.warn(ctx, "insured cache eviction failed", id, err)
	}
}

func (c *Cached) recordOutcome(ctx context.Context, err error) {
	if c.breaker == nil {
		return
	}
	var change circuit.StateChange
	if err != nil {
		_, change = c.breaker.RecordFailure()
	} else {
		_, change = c.breaker.RecordSuccess()
	}
	if c.logger == nil {
		return
	}
	if change.Opened {
		c.logger.WarnContext(ctx, "insured cache circuit opened", "breaker", c.breaker.Name())
	}
	if change.Closed {
		c.logger.InfoContext(ctx, "insured cache circuit closed", "breaker", c.breaker.Name())
	}
}

func (c *Cached) observe(result string) {
	if c.observer != nil {
		c.observer.ObserveCache(result)
	}
}

func (c *Cached) warn(ctx context.Context, msg string, id int64, err error) {
	if c.logger != nil {
		c.logger.WarnContext(ctx, msg,
			"identification_number", id,
			"error", err,
		)
	}
}
