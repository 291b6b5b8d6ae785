package infra

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"admission-gateway/middleware/admission/domain"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestRedis(t *testing.T) (*miniredis.Miniredis, *redis.Client) {
	t.Helper()
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })
	return mr, rdb
}

var chatKey = domain.NewClientRouteKey("203.0.113.7", "/api/v1/chat")

func TestNewRedisClient(t *testing.T) {
	_, err := NewRedisClient(RedisOptions{})
	require.Error(t, err)

	_, err = NewRedisClient(RedisOptions{URL: "://nope"})
	require.Error(t, err)

	c, err := NewRedisClient(RedisOptions{URL: "redis://:secret@localhost:6380/2", PoolSize: 7})
	require.NoError(t, err)
	defer c.Close()
	assert.Equal(t, "localhost:6380", c.Options().Addr)
	assert.Equal(t, 2, c.Options().DB)
	assert.Equal(t, "secret", c.Options().Password)
	assert.Equal(t, 7, c.Options().PoolSize)
}

func TestRedisWindowLimiter_FixedWindow(t *testing.T) {
	mr, rdb := newTestRedis(t)
	l := NewRedisWindowLimiter(rdb, "adm")
	ctx := context.Background()
	q := domain.Quota{Limit: 2, Period: time.Minute}

	for i := int64(1); i <= 2; i++ {
		dec, err := l.Admit(ctx, chatKey, q)
		require.NoError(t, err)
		assert.True(t, dec.Allowed)
		assert.Equal(t, i, dec.Count)
	}

	dec, err := l.Admit(ctx, chatKey, q)
	require.NoError(t, err)
	assert.False(t, dec.Allowed)
	assert.Equal(t, int64(2), dec.Count, "denied requests must not increment")
	assert.InDelta(t, time.Minute.Seconds(), dec.RetryAfter.Seconds(), 1)

	v, err := mr.Get("adm:window:203.0.113.7:/api/v1/chat")
	require.NoError(t, err)
	assert.Equal(t, "2", v)

	mr.FastForward(61 * time.Second)

	dec, err = l.Admit(ctx, chatKey, q)
	require.NoError(t, err)
	assert.True(t, dec.Allowed)
	assert.Equal(t, int64(1), dec.Count)
}

func TestRedisWindowLimiter_ConcurrentNeverExceedsQuota(t *testing.T) {
	_, rdb := newTestRedis(t)
	l := NewRedisWindowLimiter(rdb, "adm")
	q := domain.Quota{Limit: 5, Period: time.Minute}

	var allowed atomic.Int64
	var wg sync.WaitGroup
	for i := 0; i < 40; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			dec, err := l.Admit(context.Background(), chatKey, q)
			if err == nil && dec.Allowed {
				allowed.Add(1)
			}
		}()
	}
	wg.Wait()
	assert.Equal(t, int64(5), allowed.Load())
}

func TestRedisWindowLimiter_InvalidQuota(t *testing.T) {
	_, rdb := newTestRedis(t)
	l := NewRedisWindowLimiter(rdb, "adm")
	_, err := l.Admit(context.Background(), chatKey, domain.Quota{Limit: 0, Period: time.Second})
	assert.ErrorIs(t, err, domain.ErrInvalidQuota)
}

func TestRedisCooldownStore_ArmAndRemaining(t *testing.T) {
	mr, rdb := newTestRedis(t)
	s := NewRedisCooldownStore(rdb, "adm")
	ctx := context.Background()

	_, ok, err := s.Remaining(ctx, chatKey)
	require.NoError(t, err)
	assert.False(t, ok)

	rem, err := s.Arm(ctx, chatKey, 3*time.Minute)
	require.NoError(t, err)
	assert.Equal(t, 3*time.Minute, rem)

	mr.FastForward(10 * time.Second)
	first, ok, err := s.Remaining(ctx, chatKey)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, 170*time.Second, first)

	mr.FastForward(160 * time.Second)
	second, ok, err := s.Remaining(ctx, chatKey)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Less(t, second, first)
	assert.Equal(t, 10*time.Second, second)

	mr.FastForward(11 * time.Second)
	_, ok, err = s.Remaining(ctx, chatKey)
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestRedisCooldownStore_ArmIsIdempotent(t *testing.T) {
	mr, rdb := newTestRedis(t)
	s := NewRedisCooldownStore(rdb, "adm")
	ctx := context.Background()

	_, err := s.Arm(ctx, chatKey, 3*time.Minute)
	require.NoError(t, err)

	mr.FastForward(time.Minute)

	rem, err := s.Arm(ctx, chatKey, 3*time.Minute)
	require.NoError(t, err)
	assert.Equal(t, 2*time.Minute, rem, "re-arming must not extend the penalty")
}

func TestRedisCooldownStore_ConcurrentArmConverges(t *testing.T) {
	_, rdb := newTestRedis(t)
	s := NewRedisCooldownStore(rdb, "adm")

	var wg sync.WaitGroup
	results := make([]time.Duration, 20)
	for i := range results {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			rem, err := s.Arm(context.Background(), chatKey, 3*time.Minute)
			if err == nil {
				results[i] = rem
			}
		}(i)
	}
	wg.Wait()

	for _, r := range results {
		assert.Equal(t, 3*time.Minute, r)
	}
}

func TestRedisCooldownStore_IsolatesKeys(t *testing.T) {
	_, rdb := newTestRedis(t)
	s := NewRedisCooldownStore(rdb, "adm")
	ctx := context.Background()

	_, err := s.Arm(ctx, chatKey, time.Minute)
	require.NoError(t, err)

	for _, k := range []domain.ClientRouteKey{
		domain.NewClientRouteKey("203.0.113.7", "/api/v1/resource"),
		domain.NewClientRouteKey("203.0.113.8", "/api/v1/chat"),
	} {
		_, ok, err := s.Remaining(ctx, k)
		require.NoError(t, err)
		assert.False(t, ok, k.String())
	}
}

func TestRedisCooldownStore_List(t *testing.T) {
	mr, rdb := newTestRedis(t)
	s := NewRedisCooldownStore(rdb, "adm")
	ctx := context.Background()

	v6 := domain.NewClientRouteKey("2001:db8::1", "/api/v1/resource")
	_, err := s.Arm(ctx, chatKey, 3*time.Minute)
	require.NoError(t, err)
	_, err = s.Arm(ctx, v6, time.Minute)
	require.NoError(t, err)
	// ruído de outro namespace
	require.NoError(t, mr.Set("adm:throttle:x:/y", "1"))

	recs, err := s.List(ctx)
	require.NoError(t, err)
	require.Len(t, recs, 2)

	got := map[domain.ClientRouteKey]bool{}
	for _, r := range recs {
		got[r.Key] = true
		assert.True(t, r.ExpiresAt.After(time.Now()))
	}
	assert.True(t, got[chatKey])
	assert.True(t, got[v6])

	mr.FastForward(2 * time.Minute)
	recs, err = s.List(ctx)
	require.NoError(t, err)
	require.Len(t, recs, 1)
	assert.Equal(t, chatKey, recs[0].Key)
}

func TestRedisCounterStore_IncrementAndReset(t *testing.T) {
	mr, rdb := newTestRedis(t)
	s := NewRedisCounterStore(rdb, "adm")
	ctx := context.Background()

	for i := int64(1); i <= 6; i++ {
		n, ttl, err := s.Increment(ctx, chatKey, 2*time.Minute)
		require.NoError(t, err)
		assert.Equal(t, i, n)
		assert.Greater(t, ttl, time.Duration(0))
	}

	// a janela não desliza com novos incrementos
	mr.FastForward(90 * time.Second)
	_, ttl, err := s.Increment(ctx, chatKey, 2*time.Minute)
	require.NoError(t, err)
	assert.Equal(t, 30*time.Second, ttl)

	mr.FastForward(31 * time.Second)
	n, _, err := s.Increment(ctx, chatKey, 2*time.Minute)
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)
}

func TestRedisStores_UnavailableIsClassified(t *testing.T) {
	mr, rdb := newTestRedis(t)
	mr.Close()
	ctx := context.Background()

	_, err := NewRedisWindowLimiter(rdb, "adm").Admit(ctx, chatKey, domain.Quota{Limit: 1, Period: time.Second})
	assert.True(t, errors.Is(err, domain.ErrStoreUnavailable))

	_, _, err = NewRedisCooldownStore(rdb, "adm").Remaining(ctx, chatKey)
	assert.ErrorIs(t, err, domain.ErrStoreUnavailable)

	_, err = NewRedisCooldownStore(rdb, "adm").Arm(ctx, chatKey, time.Minute)
	assert.ErrorIs(t, err, domain.ErrStoreUnavailable)

	_, _, err = NewRedisCounterStore(rdb, "adm").Increment(ctx, chatKey, time.Minute)
	assert.ErrorIs(t, err, domain.ErrStoreUnavailable)
}
