package domain

import (
	"context"
	"time"
)

// CooldownStore guarda o registro de penalidade por (cliente, rota).
//
// A presença do registro é condição necessária e suficiente para bloquear a
// chave. O registro só desaparece por expiração de TTL.
type CooldownStore interface {
	// Remaining não altera estado. ok=false quando não há penalidade ativa.
	Remaining(ctx context.Context, key ClientRouteKey) (remaining time.Duration, ok bool, err error)
	// Arm cria o registro se ausente (set-if-absent com expiração) e devolve o
	// tempo restante efetivo. Arms concorrentes convergem para a mesma expiração.
	Arm(ctx context.Context, key ClientRouteKey, penalty time.Duration) (time.Duration, error)
}

// CooldownRecord é uma penalidade ativa, usada pelas ferramentas de inspeção.
type CooldownRecord struct {
	Key       ClientRouteKey `json:"key"`
	ExpiresAt time.Time      `json:"expires_at"`
}

// Remaining calcula o tempo restante em relação a now (nunca negativo).
func (c CooldownRecord) Remaining(now time.Time) time.Duration {
	return RemainingUntil(now, c.ExpiresAt)
}

// CooldownLister lista penalidades ativas.
type CooldownLister interface {
	List(ctx context.Context) ([]CooldownRecord, error)
}

// ExpiryFrom converte um TTL em instante absoluto de expiração.
func ExpiryFrom(now time.Time, ttl time.Duration) time.Time {
	if ttl < 0 {
		ttl = 0
	}
	return now.Add(ttl)
}

// RemainingUntil é o inverso de ExpiryFrom.
func RemainingUntil(now, expiresAt time.Time) time.Duration {
	if d := expiresAt.Sub(now); d > 0 {
		return d
	}
	return 0
}
