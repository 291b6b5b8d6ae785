package main

import (
	"net/http"
	"strings"

	"admission-gateway/middleware/admission"
	"admission-gateway/middleware/admission/domain"
	"admission-gateway/middleware/admission/infra"

	"github.com/go-chi/chi/v5"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

func newRedis(cfg StoreConfig) (*redis.Client, error) {
	return infra.NewRedisClient(infra.RedisOptions{
		URL:          cfg.URL,
		Addr:         cfg.Addr,
		Password:     cfg.Password,
		DB:           cfg.DB,
		PoolSize:     cfg.PoolSize,
		DialTimeout:  cfg.DialTimeout,
		ReadTimeout:  cfg.Timeout,
		WriteTimeout: cfg.Timeout,
	})
}

// routeIndex registra os padrões configurados num router só para resolução:
// o gateway não conhece as rotas do backend além das que têm cota.
func routeIndex(table domain.QuotaTable) chi.Routes {
	idx := chi.NewRouter()
	noop := func(http.ResponseWriter, *http.Request) {}
	for _, rq := range table {
		if m := strings.TrimSpace(rq.Method); m != "" {
			idx.MethodFunc(m, rq.Pattern, noop)
			continue
		}
		idx.HandleFunc(rq.Pattern, noop)
	}
	return idx
}

// admissionOptions monta os stores do middleware. O LocalStore devolvido
// (nil sem fallback) precisa do janitor iniciado pelo chamador.
func admissionOptions(cfg Config, rdb redis.UniversalClient, logger *zap.Logger) (admission.Options, *infra.LocalStore) {
	failure, _ := domain.ParseFailurePolicy(cfg.Admission.FailurePolicy)
	arm, _ := domain.ParseArmPolicy(cfg.Admission.ArmPolicy)
	quotas := cfg.QuotaTable()
	prefix := strings.Trim(cfg.Store.KeyPrefix, ":")

	opts := admission.Options{
		Cooldown:           infra.NewRedisCooldownStore(rdb, prefix),
		Counters:           infra.NewRedisCounterStore(rdb, prefix),
		Window:             infra.NewRedisWindowLimiter(rdb, prefix),
		Quotas:             quotas,
		Penalty:            cfg.Cooldown.Penalty,
		Throttle:           cfg.ThrottlePolicy(),
		DisableThrottle:    !cfg.Throttle.Enabled,
		ClientHeader:       cfg.Admission.ClientHeader,
		TrustXForwardedFor: cfg.Admission.TrustXForwardedFor,
		RouteFn:            admission.ChiRouteResolver(routeIndex(quotas)),
		FailurePolicy:      failure,
		ArmPolicy:          arm,
		StoreTimeout:       cfg.Store.Timeout,
		WriteBudget:        cfg.Server.WriteTimeout,
		AllowOrigin:        cfg.Admission.AllowOrigin,
		Logger:             logger.Named("admission"),
	}

	if cfg.Stats.Enabled {
		opts.Stats = newStatsStore(cfg.Stats, rdb)
	}

	var local *infra.LocalStore
	if cfg.Fallback.RPS > 0 {
		var lopts []infra.LocalStoreOption
		if cfg.Fallback.IdleTTL > 0 {
			lopts = append(lopts, infra.WithIdleTTL(cfg.Fallback.IdleTTL))
		}
		local = infra.NewLocalStore(cfg.Fallback.RPS, cfg.Fallback.Burst, lopts...)
		opts.Fallback = local
	}
	return opts, local
}

func newStatsStore(cfg StatsConfig, rdb redis.UniversalClient) *infra.RedisStatsStore {
	return infra.NewRedisStatsStore(
		rdb,
		infra.WithStatsPrefix(cfg.Prefix),
		infra.WithStatsTTL(cfg.TTL),
		infra.WithStatsBucket(cfg.Bucket),
		infra.WithStatsTrackKeys(cfg.TrackKeys),
	)
}
