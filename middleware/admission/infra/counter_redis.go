package infra

import (
	"context"
	"time"

	"admission-gateway/middleware/admission/domain"

	"github.com/redis/go-redis/v9"
)

var _ domain.CounterStore = (*RedisCounterStore)(nil)

// Incremento com expiração só no primeiro hit da janela.
//
// KEYS[1] = chave do contador
// ARGV[1] = janela em ms
// retorno  = {count, pttl}
var counterScript = redis.NewScript(`
local window = tonumber(ARGV[1])
local count = redis.call('INCR', KEYS[1])
if count == 1 then
	redis.call('PEXPIRE', KEYS[1], ARGV[1])
	return {count, window}
end
local ttl = redis.call('PTTL', KEYS[1])
if ttl < 0 then
	redis.call('PEXPIRE', KEYS[1], ARGV[1])
	ttl = window
end
return {count, ttl}
`)

// RedisCounterStore é o contador rolante do throttle.
type RedisCounterStore struct {
	rdb    redis.UniversalClient
	prefix string
}

func NewRedisCounterStore(rdb redis.UniversalClient, prefix string) *RedisCounterStore {
	return &RedisCounterStore{rdb: rdb, prefix: prefix}
}

func (s *RedisCounterStore) Increment(ctx context.Context, key domain.ClientRouteKey, window time.Duration) (int64, time.Duration, error) {
	k := key.Namespaced(s.prefix, domain.KindThrottle)
	res, err := counterScript.Run(ctx, s.rdb, []string{string(k)}, window.Milliseconds()).Int64Slice()
	if err != nil {
		return 0, 0, unavailable("throttle incr", k, err)
	}
	if len(res) != 2 {
		return 0, 0, unavailable("throttle incr", k, redis.Nil)
	}
	return res[0], time.Duration(res[1]) * time.Millisecond, nil
}
