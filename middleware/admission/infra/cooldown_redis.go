package infra

import (
	"context"
	"errors"
	"time"

	"admission-gateway/middleware/admission/domain"

	"github.com/redis/go-redis/v9"
)

var (
	_ domain.CooldownStore  = (*RedisCooldownStore)(nil)
	_ domain.CooldownLister = (*RedisCooldownStore)(nil)
)

const (
	pttlMissing  = -2
	pttlNoExpire = -1
)

// Set-if-absent com expiração. O valor é o instante de expiração (unix ms),
// só para inspeção; quem governa a existência é o TTL.
//
// KEYS[1] = chave do cooldown
// ARGV[1] = expiração em unix ms
// ARGV[2] = penalidade em ms
// retorno  = pttl efetivo
var armScript = redis.NewScript(`
redis.call('SET', KEYS[1], ARGV[1], 'PX', ARGV[2], 'NX')
local ttl = redis.call('PTTL', KEYS[1])
if ttl == -1 then
	redis.call('PEXPIRE', KEYS[1], ARGV[2])
	ttl = tonumber(ARGV[2])
end
return ttl
`)

// RedisCooldownStore guarda penalidades como chaves com TTL.
type RedisCooldownStore struct {
	rdb    redis.UniversalClient
	prefix string
	now    func() time.Time
}

func NewRedisCooldownStore(rdb redis.UniversalClient, prefix string) *RedisCooldownStore {
	return &RedisCooldownStore{rdb: rdb, prefix: prefix, now: time.Now}
}

func (s *RedisCooldownStore) Remaining(ctx context.Context, key domain.ClientRouteKey) (time.Duration, bool, error) {
	k := key.Namespaced(s.prefix, domain.KindCooldown)
	ttl, err := s.rdb.PTTL(ctx, string(k)).Result()
	if err != nil {
		return 0, false, unavailable("cooldown ttl", k, err)
	}
	return pttlState(ttl)
}

func (s *RedisCooldownStore) Arm(ctx context.Context, key domain.ClientRouteKey, penalty time.Duration) (time.Duration, error) {
	if penalty <= 0 {
		return 0, nil
	}
	k := key.Namespaced(s.prefix, domain.KindCooldown)
	expiresAt := domain.ExpiryFrom(s.now(), penalty)

	ms, err := armScript.Run(ctx, s.rdb, []string{string(k)}, expiresAt.UnixMilli(), penalty.Milliseconds()).Int64()
	if err != nil {
		return 0, unavailable("cooldown arm", k, err)
	}
	if ms < 0 {
		return 0, nil
	}
	return time.Duration(ms) * time.Millisecond, nil
}

// List varre as penalidades ativas com SCAN (nunca KEYS).
func (s *RedisCooldownStore) List(ctx context.Context) ([]domain.CooldownRecord, error) {
	pattern := domain.NamespacePattern(s.prefix, domain.KindCooldown)

	var keys []string
	iter := s.rdb.Scan(ctx, 0, pattern, 200).Iterator()
	for iter.Next(ctx) {
		keys = append(keys, iter.Val())
	}
	if err := iter.Err(); err != nil {
		return nil, unavailable("cooldown scan", domain.Key(pattern), err)
	}
	if len(keys) == 0 {
		return nil, nil
	}

	pipe := s.rdb.Pipeline()
	cmds := make([]*redis.DurationCmd, len(keys))
	for i, k := range keys {
		cmds[i] = pipe.PTTL(ctx, k)
	}
	if _, err := pipe.Exec(ctx); err != nil && !errors.Is(err, redis.Nil) {
		return nil, unavailable("cooldown list", domain.Key(pattern), err)
	}

	now := s.now()
	out := make([]domain.CooldownRecord, 0, len(keys))
	for i, k := range keys {
		crk, ok := domain.ParseNamespaced(s.prefix, domain.KindCooldown, k)
		if !ok {
			continue
		}
		remaining, active, err := pttlState(cmds[i].Val())
		if err != nil || !active {
			continue
		}
		out = append(out, domain.CooldownRecord{
			Key:       crk,
			ExpiresAt: domain.ExpiryFrom(now, remaining),
		})
	}
	return out, nil
}

// pttlState traduz o retorno de PTTL. go-redis devolve -1/-2 como Duration
// crua (sem multiplicar por ms), por isso a comparação com as constantes.
func pttlState(ttl time.Duration) (time.Duration, bool, error) {
	switch ttl {
	case pttlMissing:
		return 0, false, nil
	case pttlNoExpire:
		// nunca criamos registro sem TTL; se existir, ainda bloqueia
		return 0, true, nil
	}
	if ttl <= 0 {
		return 0, false, nil
	}
	return ttl, true, nil
}
