package application

import (
	"context"
	"time"

	"admission-gateway/middleware/admission/domain"
)

const (
	// DefaultStoreTimeout limita cada chamada ao store compartilhado.
	DefaultStoreTimeout = 250 * time.Millisecond
	// FallbackRetryAfter é o Retry-After anunciado quando quem nega é o
	// limitador local (store fora, fail-open).
	FallbackRetryAfter = time.Second

	fallbackNamespace = "local"
)

// Pipeline sequencia as consultas ao store para uma requisição:
// cooldown -> throttle -> (pre_forward) cota da rota.
//
// O primeiro erro de store encerra as consultas da requisição; a política de
// falha decide se ela segue (open) ou é recusada (closed).
type Pipeline struct {
	Cooldown CooldownGate
	Throttle ThrottleGovernor
	Window   WindowService

	FailurePolicy domain.FailurePolicy
	ArmPolicy     domain.ArmPolicy
	StoreTimeout  time.Duration

	// Fallback (opcional) continua limitando em processo quando o store cai.
	Fallback domain.LimiterStore
}

func (p Pipeline) storeCtx(ctx context.Context) (context.Context, context.CancelFunc) {
	d := p.StoreTimeout
	if d <= 0 {
		d = DefaultStoreTimeout
	}
	return context.WithTimeout(ctx, d)
}

// Admit decide o que fazer antes de encaminhar.
func (p Pipeline) Admit(ctx context.Context, method string, key domain.ClientRouteKey) domain.Decision {
	cctx, cancel := p.storeCtx(ctx)
	active, remaining, err := p.Cooldown.IsActive(cctx, key)
	cancel()
	if err != nil {
		return p.degrade(key, domain.Decision{Outcome: domain.OutcomeForwarded}, err)
	}
	if active {
		return domain.Decision{Outcome: domain.OutcomeCooldown, RetryAfter: remaining}
	}

	tctx, cancel := p.storeCtx(ctx)
	delay, _, err := p.Throttle.Throttle(tctx, key)
	cancel()
	if err != nil {
		return p.degrade(key, domain.Decision{Outcome: domain.OutcomeForwarded}, err)
	}

	dec := domain.Decision{Outcome: domain.OutcomeForwarded}
	if delay > 0 {
		dec = domain.Decision{Outcome: domain.OutcomeDelayed, Delay: delay}
	}

	if p.ArmPolicy != domain.ArmPreForward {
		return dec
	}

	wdec, denied, err := p.checkWindow(ctx, method, key)
	if err != nil {
		return p.degrade(key, dec, err)
	}
	if !denied {
		return dec
	}
	return p.penalizeDenied(ctx, key, wdec)
}

// Guard é a verificação de cota usada dentro da cadeia encaminhada
// (post_forward). Só nega; quem arma o cooldown é Penalize, ao observar o 429.
func (p Pipeline) Guard(ctx context.Context, method string, key domain.ClientRouteKey) domain.Decision {
	wdec, denied, err := p.checkWindow(ctx, method, key)
	if err != nil {
		return p.degrade(key, domain.Decision{Outcome: domain.OutcomeForwarded}, err)
	}
	if denied {
		return domain.Decision{Outcome: domain.OutcomeQuotaExceeded, RetryAfter: wdec.RetryAfter}
	}
	return domain.Decision{Outcome: domain.OutcomeForwarded}
}

// Penalize arma o cooldown da chave e devolve o tempo restante efetivo.
func (p Pipeline) Penalize(ctx context.Context, key domain.ClientRouteKey) (time.Duration, error) {
	actx, cancel := p.storeCtx(ctx)
	defer cancel()
	return p.Cooldown.Arm(actx, key)
}

// PenaltyDuration é o tempo de bloqueio anunciado quando o arm falha.
func (p Pipeline) PenaltyDuration() time.Duration { return p.Cooldown.penalty() }

func (p Pipeline) checkWindow(ctx context.Context, method string, key domain.ClientRouteKey) (domain.WindowDecision, bool, error) {
	wctx, cancel := p.storeCtx(ctx)
	defer cancel()
	wdec, limited, err := p.Window.Check(wctx, method, key)
	if err != nil {
		return wdec, false, err
	}
	return wdec, limited && !wdec.Allowed, nil
}

func (p Pipeline) penalizeDenied(ctx context.Context, key domain.ClientRouteKey, wdec domain.WindowDecision) domain.Decision {
	remaining, err := p.Penalize(ctx, key)
	if err != nil || remaining <= 0 {
		// sem cooldown, o cliente ainda precisa esperar a janela
		return domain.Decision{Outcome: domain.OutcomeQuotaExceeded, RetryAfter: wdec.RetryAfter, Err: err}
	}
	return domain.Decision{Outcome: domain.OutcomeQuotaExceeded, RetryAfter: remaining}
}

// degrade aplica a política de falha a partir da decisão parcial `base`.
func (p Pipeline) degrade(key domain.ClientRouteKey, base domain.Decision, err error) domain.Decision {
	if p.FailurePolicy == domain.FailClosed {
		return domain.Decision{Outcome: domain.OutcomeStoreUnavailable, Err: err}
	}

	base.Err = err
	if p.Fallback == nil {
		return base
	}
	lim := p.Fallback.Get(key.Namespaced(fallbackNamespace, domain.KindWindow))
	if lim != nil && !lim.Allow() {
		return domain.Decision{Outcome: domain.OutcomeQuotaExceeded, RetryAfter: FallbackRetryAfter, Err: err}
	}
	return base
}
