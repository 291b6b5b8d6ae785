package application

import (
	"context"
	"time"

	"admission-gateway/middleware/admission/domain"
)

// DefaultPenalty é a duração do cooldown armado após um 429.
const DefaultPenalty = 3 * time.Minute

// CooldownGate bloqueia uma chave (cliente, rota) por um período fixo depois
// que ela estoura a cota.
type CooldownGate struct {
	Store   domain.CooldownStore
	Penalty time.Duration
}

func (g CooldownGate) penalty() time.Duration {
	if g.Penalty <= 0 {
		return DefaultPenalty
	}
	return g.Penalty
}

// IsActive não altera estado.
func (g CooldownGate) IsActive(ctx context.Context, key domain.ClientRouteKey) (bool, time.Duration, error) {
	if g.Store == nil {
		return false, 0, nil
	}
	remaining, ok, err := g.Store.Remaining(ctx, key)
	if err != nil {
		return false, 0, err
	}
	return ok, remaining, nil
}

// Arm é idempotente: com penalidade já ativa, o tempo restante não é estendido.
func (g CooldownGate) Arm(ctx context.Context, key domain.ClientRouteKey) (time.Duration, error) {
	if g.Store == nil {
		return 0, nil
	}
	return g.Store.Arm(ctx, key, g.penalty())
}
