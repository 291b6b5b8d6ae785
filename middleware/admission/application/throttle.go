package application

import (
	"context"
	"time"

	"admission-gateway/middleware/admission/domain"
)

// DefaultThrottlePolicy: 5 requisições livres a cada 2 minutos, depois 2s de
// atraso por requisição excedente.
func DefaultThrottlePolicy() domain.ThrottlePolicy {
	return domain.ThrottlePolicy{
		Threshold: 5,
		UnitDelay: 2 * time.Second,
		Window:    2 * time.Minute,
	}
}

// ThrottleGovernor conta requisições por chave e calcula o atraso graduado.
// Nunca rejeita; quem suspende a requisição é o adapter HTTP.
type ThrottleGovernor struct {
	Store  domain.CounterStore
	Policy domain.ThrottlePolicy
}

// Throttle registra a requisição e devolve o atraso que ela deve sofrer.
func (g ThrottleGovernor) Throttle(ctx context.Context, key domain.ClientRouteKey) (time.Duration, int64, error) {
	if g.Store == nil || !g.Policy.Enabled() {
		return 0, 0, nil
	}
	count, _, err := g.Store.Increment(ctx, key, g.Policy.Window)
	if err != nil {
		return 0, 0, err
	}
	return g.Policy.Delay(count), count, nil
}
