package infra

import (
	"context"
	"time"

	"admission-gateway/middleware/admission/domain"

	"github.com/redis/go-redis/v9"
)

var _ domain.WindowLimiter = (*RedisWindowLimiter)(nil)

// Janela fixa atômica. A requisição negada não incrementa o contador, então
// ele nunca passa da cota.
//
// KEYS[1] = chave da janela
// ARGV[1] = limite
// ARGV[2] = período em ms
// retorno  = {allowed, count, pttl}
var windowScript = redis.NewScript(`
local limit = tonumber(ARGV[1])
local period = tonumber(ARGV[2])

local current = redis.call('GET', KEYS[1])
if not current then
	redis.call('SET', KEYS[1], '1', 'PX', ARGV[2])
	return {1, 1, period}
end

local count = tonumber(current)
local ttl = redis.call('PTTL', KEYS[1])
if ttl < 0 then
	redis.call('PEXPIRE', KEYS[1], ARGV[2])
	ttl = period
end

if count < limit then
	count = redis.call('INCR', KEYS[1])
	return {1, count, ttl}
end
return {0, count, ttl}
`)

// RedisWindowLimiter implementa o limitador de janela fixa por (cliente, rota).
type RedisWindowLimiter struct {
	rdb    redis.UniversalClient
	prefix string
}

func NewRedisWindowLimiter(rdb redis.UniversalClient, prefix string) *RedisWindowLimiter {
	return &RedisWindowLimiter{rdb: rdb, prefix: prefix}
}

func (l *RedisWindowLimiter) Admit(ctx context.Context, key domain.ClientRouteKey, q domain.Quota) (domain.WindowDecision, error) {
	if err := q.Validate(); err != nil {
		return domain.WindowDecision{}, err
	}

	k := key.Namespaced(l.prefix, domain.KindWindow)
	res, err := windowScript.Run(ctx, l.rdb, []string{string(k)}, q.Limit, q.Period.Milliseconds()).Int64Slice()
	if err != nil {
		return domain.WindowDecision{}, unavailable("window admit", k, err)
	}
	if len(res) != 3 {
		return domain.WindowDecision{}, unavailable("window admit", k, redis.Nil)
	}

	dec := domain.WindowDecision{
		Allowed: res[0] == 1,
		Count:   res[1],
	}
	if !dec.Allowed {
		dec.RetryAfter = time.Duration(res[2]) * time.Millisecond
	}
	return dec, nil
}
