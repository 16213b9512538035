package store

import (
	"context"
	"fmt"
	"strconv"
	"sync"
	"testing"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"insured/internal/insured/models"
)

// mapRedis implements the handful of commands Cached issues over a map.
// Anything else panics through the nil embedded interface.
type mapRedis struct {
	redis.Cmdable
	mu   sync.Mutex
	data map[string]string
}

func newMapRedis() *mapRedis {
	return &mapRedis{data: map[string]string{}}
}

func (m *mapRedis) MGet(_ context.Context, keys ...string) *redis.SliceCmd {
	m.mu.Lock()
	defer m.mu.Unlock()
	vals := make([]any, len(keys))
	for i, key := range keys {
		if v, ok := m.data[key]; ok {
			vals[i] = v
		}
	}
	return redis.NewSliceResult(vals, nil)
}

func (m *mapRedis) Get(_ context.Context, key string) *redis.StringCmd {
	m.mu.Lock()
	defer m.mu.Unlock()
	v, ok := m.data[key]
	if !ok {
		return redis.NewStringResult("", redis.Nil)
	}
	return redis.NewStringResult(v, nil)
}

func (m *mapRedis) Set(_ context.Context, key string, value any, _ time.Duration) *redis.StatusCmd {
	m.mu.Lock()
	defer m.mu.Unlock()
	switch v := value.(type) {
	case []byte:
		m.data[key] = string(v)
	case string:
		m.data[key] = v
	default:
		m.data[key] = fmt.Sprint(v)
	}
	return redis.NewStatusResult("OK", nil)
}

func (m *mapRedis) Del(_ context.Context, keys ...string) *redis.IntCmd {
	m.mu.Lock()
	defer m.mu.Unlock()
	var n int64
	for _, key := range keys {
		if _, ok := m.data[key]; ok {
			delete(m.data, key)
			n++
		}
	}
	return redis.NewIntResult(n, nil)
}

func (m *mapRedis) Incr(_ context.Context, key string) *redis.IntCmd {
	m.mu.Lock()
	defer m.mu.Unlock()
	n, _ := strconv.ParseInt(m.data[key], 10, 64)
	n++
	m.data[key] = strconv.FormatInt(n, 10)
	return redis.NewIntResult(n, nil)
}

func (m *mapRedis) Expire(_ context.Context, key string, _ time.Duration) *redis.BoolCmd {
	m.mu.Lock()
	defer m.mu.Unlock()
	_, ok := m.data[key]
	return redis.NewBoolResult(ok, nil)
}

func (m *mapRedis) has(key string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	_, ok := m.data[key]
	return ok
}

// pausingBackend holds the first FindByID after it has read from the
// backend until resume is closed.
type pausingBackend struct {
	Backend
	once   sync.Once
	loaded chan struct{}
	resume chan struct{}
}

func (b *pausingBackend) FindByID(ctx context.Context, id int64) (*models.InsuredPerson, error) {
	p, err := b.Backend.FindByID(ctx, id)
	b.once.Do(func() {
		close(b.loaded)
		<-b.resume
	})
	return p, err
}

func TestFillRacingAWriteIsWithdrawn(t *testing.T) {
	ctx := context.Background()
	client := newMapRedis()
	backend := &pausingBackend{
		Backend: NewInMemory(),
		loaded:  make(chan struct{}),
		resume:  make(chan struct{}),
	}
	observer := &recordingObserver{}
	cached := NewCached(backend, client, time.Minute, WithCacheObserver(observer))
	require.NoError(t, cached.Insert(ctx, newPerson(100)))

	type read struct {
		person *models.InsuredPerson
		err    error
	}
	done := make(chan read, 1)
	go func() {
		p, err := cached.FindByID(ctx, 100)
		done <- read{p, err}
	}()
	<-backend.loaded

	updated := newPerson(100)
	updated.InsuredValue = decimal.NewNullDecimal(decimal.NewFromInt(2000))
	require.NoError(t, cached.Replace(ctx, 100, updated, 0))
	close(backend.resume)

	slow := <-done
	require.NoError(t, slow.err)
	assert.Equal(t, int64(1), slow.person.Version)
	assert.False(t, client.has(cacheKey(100)), "a fill older than the write must not stay cached")

	fresh, err := cached.FindByID(ctx, 100)
	require.NoError(t, err)
	assert.Equal(t, int64(2), fresh.Version)
	assert.True(t, fresh.InsuredValue.Decimal.Equal(decimal.NewFromInt(2000)))
	assert.True(t, client.has(cacheKey(100)))

	again, err := cached.FindByID(ctx, 100)
	require.NoError(t, err)
	assert.Equal(t, int64(2), again.Version)
	assert.Equal(t, 1, observer.count("hit"))

	// a write based on what the cache served does not conflict
	next := newPerson(100)
	require.NoError(t, cached.Replace(ctx, 100, next, again.Version))
	assert.Equal(t, int64(3), next.Version)
}

func TestUndisturbedFillIsKept(t *testing.T) {
	ctx := context.Background()
	client := newMapRedis()
	cached := NewCached(NewInMemory(), client, time.Minute)
	require.NoError(t, cached.Insert(ctx, newPerson(200)))
	require.NoError(t, cached.Replace(ctx, 200, newPerson(200), 0))

	_, err := cached.FindByID(ctx, 200)
	require.NoError(t, err)

	assert.True(t, client.has(cacheKey(200)))
	assert.Equal(t, "1", client.data[generationKey(200)])
}
