package application

import (
	"context"

	"admission-gateway/middleware/admission/domain"
)

// WindowService aplica a cota de janela fixa da rota.
//
// Ele não sabe nada sobre HTTP (headers/status), apenas retorna uma decisão.
type WindowService struct {
	Limiter domain.WindowLimiter
	Quotas  domain.QuotaTable
}

// Check devolve limited=false quando a rota não tem cota (ou não há limiter);
// nesse caso a decisão é sempre permitida.
func (s WindowService) Check(ctx context.Context, method string, key domain.ClientRouteKey) (dec domain.WindowDecision, limited bool, err error) {
	if s.Limiter == nil {
		return domain.WindowDecision{Allowed: true}, false, nil
	}
	q, ok := s.Quotas.Lookup(method, key.Route)
	if !ok {
		return domain.WindowDecision{Allowed: true}, false, nil
	}
	dec, err = s.Limiter.Admit(ctx, key, q)
	if err != nil {
		return domain.WindowDecision{}, true, err
	}
	return dec, true, nil
}
