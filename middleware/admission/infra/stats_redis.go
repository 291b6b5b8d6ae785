package infra

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	"admission-gateway/middleware/admission/domain"

	"github.com/redis/go-redis/v9"
)

var (
	_ domain.StatsStore  = (*RedisStatsStore)(nil)
	_ domain.StatsReader = (*RedisStatsStore)(nil)
)

const (
	degradedField = "degraded"
	// separa rota e resultado no hash por rota; padrões de rota não contêm "|"
	routeFieldSep = "|"
)

type RedisStatsStore struct {
	rdb redis.UniversalClient

	prefix string
	// ttl aplica apenas em chaves de série temporal / por key.
	// total é cumulativo e não expira.
	ttl time.Duration

	bucket string // "minute" (padrão) ou "none"

	trackKeys bool
}

type RedisStatsOption func(*RedisStatsStore)

func WithStatsPrefix(prefix string) RedisStatsOption {
	return func(s *RedisStatsStore) {
		if p := strings.Trim(prefix, ":"); p != "" {
			s.prefix = p
		}
	}
}

func WithStatsTTL(d time.Duration) RedisStatsOption {
	return func(s *RedisStatsStore) { s.ttl = d }
}

func WithStatsBucket(bucket string) RedisStatsOption {
	return func(s *RedisStatsStore) { s.bucket = strings.ToLower(strings.TrimSpace(bucket)) }
}

func WithStatsTrackKeys(track bool) RedisStatsOption {
	return func(s *RedisStatsStore) { s.trackKeys = track }
}

func NewRedisStatsStore(rdb redis.UniversalClient, opts ...RedisStatsOption) *RedisStatsStore {
	s := &RedisStatsStore{
		rdb:    rdb,
		prefix: "admission:stats",
		ttl:    24 * time.Hour,
		bucket: "minute",
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *RedisStatsStore) totalKey() string { return s.prefix + ":total" }
func (s *RedisStatsStore) routeKey() string { return s.prefix + ":route" }

func (s *RedisStatsStore) Record(ctx context.Context, ev domain.StatsEvent) error {
	if s == nil || s.rdb == nil {
		return nil
	}

	at := ev.At
	if at.IsZero() {
		at = time.Now()
	}
	field := string(ev.Outcome)

	pipe := s.rdb.Pipeline()
	pipe.HIncrBy(ctx, s.totalKey(), field, 1)
	if ev.Degraded {
		pipe.HIncrBy(ctx, s.totalKey(), degradedField, 1)
	}

	if s.bucket == "minute" {
		bucketKey := fmt.Sprintf("%s:minute:%s", s.prefix, at.UTC().Format("200601021504"))
		pipe.HIncrBy(ctx, bucketKey, field, 1)
		if s.ttl > 0 {
			pipe.Expire(ctx, bucketKey, s.ttl)
		}
	}

	if label := ev.RouteLabel(); label != "" {
		pipe.HIncrBy(ctx, s.routeKey(), label+routeFieldSep+field, 1)
	}

	if s.trackKeys {
		keyKey := s.prefix + ":key:" + ev.Key.String()
		pipe.HIncrBy(ctx, keyKey, field, 1)
		if s.ttl > 0 {
			pipe.Expire(ctx, keyKey, s.ttl)
		}
	}

	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("record stats: %w: %w", domain.ErrStoreUnavailable, err)
	}
	return nil
}

// Snapshot lê o total cumulativo e o hash por rota.
func (s *RedisStatsStore) Snapshot(ctx context.Context) (domain.StatsSnapshot, error) {
	out := domain.NewStatsSnapshot()

	pipe := s.rdb.Pipeline()
	totalCmd := pipe.HGetAll(ctx, s.totalKey())
	routeCmd := pipe.HGetAll(ctx, s.routeKey())
	if _, err := pipe.Exec(ctx); err != nil {
		return out, fmt.Errorf("read stats: %w: %w", domain.ErrStoreUnavailable, err)
	}

	for field, raw := range totalCmd.Val() {
		n, err := strconv.ParseInt(raw, 10, 64)
		if err != nil {
			continue
		}
		if field == degradedField {
			out.Degraded = n
			continue
		}
		out.Total[domain.Outcome(field)] += n
	}

	for field, raw := range routeCmd.Val() {
		i := strings.LastIndex(field, routeFieldSep)
		if i <= 0 {
			continue
		}
		n, err := strconv.ParseInt(raw, 10, 64)
		if err != nil {
			continue
		}
		route, outcome := field[:i], domain.Outcome(field[i+1:])
		m, ok := out.ByRoute[route]
		if !ok {
			m = make(map[domain.Outcome]int64)
			out.ByRoute[route] = m
		}
		m[outcome] += n
	}
	return out, nil
}
