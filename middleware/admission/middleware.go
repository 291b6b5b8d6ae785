package admission

import (
	"context"
	"net/http"
	"time"

	"admission-gateway/middleware/admission/application"
	"admission-gateway/middleware/admission/domain"
	"admission-gateway/middleware/requestid"

	"go.uber.org/zap"
)

type Options struct {
	// Stores compartilhados. Cooldown nil desliga o gate; Counters nil desliga
	// o throttle; Window nil desliga a cota por rota.
	Cooldown domain.CooldownStore
	Counters domain.CounterStore
	Window   domain.WindowLimiter
	Quotas   domain.QuotaTable
	// Fallback limita em processo quando o store cai (só com fail-open).
	Fallback domain.LimiterStore
	Stats    domain.StatsStore

	Penalty time.Duration
	// Throttle zerado usa application.DefaultThrottlePolicy.
	Throttle        domain.ThrottlePolicy
	DisableThrottle bool

	KeyFn KeyFunc
	// ClientHeader identifica um subject autenticado (ex: X-User-ID).
	ClientHeader       string
	TrustXForwardedFor bool
	RouteFn            RouteFunc

	FailurePolicy domain.FailurePolicy
	ArmPolicy     domain.ArmPolicy
	StoreTimeout  time.Duration
	// WriteBudget é o WriteTimeout do servidor. Um atraso de throttle que não
	// cabe no que resta dele é recusado com 503 em vez de encaminhado.
	// Zero = sem limite.
	WriteBudget time.Duration

	AllowOrigin string
	Logger      *zap.Logger

	// Sleep suspende a requisição pelo atraso de throttle. Deve retornar erro
	// se o ctx encerrar antes.
	Sleep func(ctx context.Context, d time.Duration) error
	Now   func() time.Time
}

func (o Options) withDefaults() Options {
	if o.KeyFn == nil {
		o.KeyFn = DefaultKeyFunc(o.ClientHeader, o.TrustXForwardedFor)
	}
	if o.RouteFn == nil {
		o.RouteFn = PathRoute
	}
	if o.Logger == nil {
		o.Logger = zap.NewNop()
	}
	if o.Sleep == nil {
		o.Sleep = sleepContext
	}
	if o.Now == nil {
		o.Now = time.Now
	}
	if o.AllowOrigin == "" {
		o.AllowOrigin = "*"
	}
	if o.Penalty <= 0 {
		o.Penalty = application.DefaultPenalty
	}
	if o.DisableThrottle {
		o.Throttle = domain.ThrottlePolicy{}
	} else if o.Throttle == (domain.ThrottlePolicy{}) {
		o.Throttle = application.DefaultThrottlePolicy()
	}
	if o.FailurePolicy == "" {
		o.FailurePolicy = domain.FailOpen
	}
	if o.ArmPolicy == "" {
		o.ArmPolicy = domain.ArmPostForward
	}
	if o.StoreTimeout <= 0 {
		o.StoreTimeout = application.DefaultStoreTimeout
	}
	return o
}

func (o Options) pipeline() application.Pipeline {
	return application.Pipeline{
		Cooldown:      application.CooldownGate{Store: o.Cooldown, Penalty: o.Penalty},
		Throttle:      application.ThrottleGovernor{Store: o.Counters, Policy: o.Throttle},
		Window:        application.WindowService{Limiter: o.Window, Quotas: o.Quotas},
		FailurePolicy: o.FailurePolicy,
		ArmPolicy:     o.ArmPolicy,
		StoreTimeout:  o.StoreTimeout,
		Fallback:      o.Fallback,
	}
}

// Middleware é o orquestrador de admissão. Deve ser montado uma vez, no topo
// da cadeia, antes do handler que encaminha ao backend.
func Middleware(opts Options) func(next http.Handler) http.Handler {
	opts = opts.withDefaults()
	pipe := opts.pipeline()

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx := r.Context()
			start := opts.Now()
			key := domain.NewClientRouteKey(opts.KeyFn(r), opts.RouteFn(r))

			log := opts.Logger.With(zap.String("client", key.Client), zap.String("route", key.Route))
			if id := requestid.FromContext(ctx); id != "" {
				log = log.With(zap.String("request_id", id))
			}

			w.Header().Set(HeaderAllowOrigin, opts.AllowOrigin)

			dec := pipe.Admit(ctx, r.Method, key)
			if dec.Degraded() {
				logStoreFailure(log, opts.FailurePolicy, dec.Err)
			}

			if dec.Rejected() {
				opts.record(ctx, log, r.Method, key, dec.Outcome, dec.Degraded())
				reject(w, log, dec)
				return
			}

			if dec.Delay > 0 {
				sctx := ctx
				if opts.WriteBudget > 0 {
					left := opts.WriteBudget - opts.Now().Sub(start)
					if dec.Delay >= left {
						log.Warn("throttle delay exceeds write budget",
							zap.Duration("delay", dec.Delay),
							zap.Duration("budget_left", left),
						)
						opts.record(ctx, log, r.Method, key, domain.OutcomeOverBudget, dec.Degraded())
						writeError(w, http.StatusServiceUnavailable, MessageThrottled, dec.Delay)
						return
					}
					var cancel context.CancelFunc
					sctx, cancel = context.WithTimeout(ctx, left)
					defer cancel()
				}
				w.Header().Set(HeaderDelay, formatFloat(dec.Delay.Seconds()))
				log.Debug("throttling request", zap.Duration("delay", dec.Delay))
				if err := opts.Sleep(sctx, dec.Delay); err != nil {
					// cliente desistiu ou o prazo de escrita acabou: não encaminha
					log.Info("request canceled during throttle delay", zap.Duration("delay", dec.Delay), zap.Error(err))
					return
				}
			}

			iw := &interceptWriter{ResponseWriter: w}
			var guard domain.Decision
			h := next
			if opts.ArmPolicy == domain.ArmPostForward && !dec.Degraded() {
				h = http.HandlerFunc(func(gw http.ResponseWriter, gr *http.Request) {
					guard = pipe.Guard(gr.Context(), gr.Method, key)
					if guard.Degraded() {
						logStoreFailure(log, opts.FailurePolicy, guard.Err)
					}
					switch guard.Outcome {
					case domain.OutcomeQuotaExceeded:
						gw.WriteHeader(http.StatusTooManyRequests)
						return
					case domain.OutcomeStoreUnavailable:
						writeError(gw, http.StatusServiceUnavailable, MessageUnavailable, 0)
						return
					}
					next.ServeHTTP(gw, gr)
				})
			}

			h.ServeHTTP(iw, r)

			if guard.Outcome == domain.OutcomeStoreUnavailable {
				opts.record(ctx, log, r.Method, key, guard.Outcome, true)
				return
			}
			if !iw.intercepted {
				opts.record(ctx, log, r.Method, key, dec.Outcome, dec.Degraded() || guard.Degraded())
				return
			}

			// negado pelo limitador local: sem cooldown
			if guard.Outcome == domain.OutcomeQuotaExceeded && guard.Degraded() {
				opts.record(ctx, log, r.Method, key, domain.OutcomeQuotaExceeded, true)
				writeBlocked(w, guard.RetryAfter)
				return
			}

			// 429 observado: arma o cooldown mesmo que o cliente já tenha ido embora
			remaining, err := pipe.Penalize(context.WithoutCancel(ctx), key)
			degraded := guard.Degraded()
			if err != nil || remaining <= 0 {
				if err != nil {
					degraded = true
					log.Warn("failed to arm cooldown", zap.Error(err))
				}
				remaining = guard.RetryAfter
				if remaining <= 0 {
					remaining = pipe.PenaltyDuration()
				}
			} else {
				log.Info("cooldown armed", zap.Duration("remaining", remaining))
			}

			opts.record(ctx, log, r.Method, key, domain.OutcomeQuotaExceeded, degraded)
			writeBlocked(w, remaining)
		})
	}
}

func reject(w http.ResponseWriter, log *zap.Logger, dec domain.Decision) {
	switch dec.Outcome {
	case domain.OutcomeStoreUnavailable:
		writeError(w, http.StatusServiceUnavailable, MessageUnavailable, 0)
	case domain.OutcomeCooldown:
		log.Info("request blocked by cooldown", zap.Duration("remaining", dec.RetryAfter))
		writeBlocked(w, dec.RetryAfter)
	default:
		log.Info("request over quota", zap.String("outcome", string(dec.Outcome)), zap.Duration("remaining", dec.RetryAfter))
		writeBlocked(w, dec.RetryAfter)
	}
}

func logStoreFailure(log *zap.Logger, policy domain.FailurePolicy, err error) {
	log.Warn("admission store unavailable",
		zap.String("failure_policy", string(policy)),
		zap.Error(err),
	)
}

// record é best-effort: erro de estatística nunca afeta a resposta.
func (o Options) record(ctx context.Context, log *zap.Logger, method string, key domain.ClientRouteKey, outcome domain.Outcome, degraded bool) {
	log.Debug("admission decision", zap.String("outcome", string(outcome)), zap.Bool("degraded", degraded))
	if o.Stats == nil {
		return
	}
	sctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), o.StoreTimeout)
	defer cancel()
	err := o.Stats.Record(sctx, domain.StatsEvent{
		Key:      key,
		Outcome:  outcome,
		Degraded: degraded,
		Method:   method,
		At:       o.Now(),
	})
	if err != nil {
		log.Debug("failed to record admission stats", zap.Error(err))
	}
}

func sleepContext(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
