package application

import (
	"context"
	"sync/atomic"
	"time"

	"admission-gateway/middleware/admission/domain"
)

// ConcurrencyService controla as vagas de requisições em voo para o upstream,
// sem saber nada sobre HTTP. Use NewConcurrencyService: os contadores são
// compartilhados entre requisições.
type ConcurrencyService struct {
	pool           domain.SlotPool
	acquireTimeout time.Duration

	inFlight atomic.Int64
	rejected atomic.Int64
}

func NewConcurrencyService(pool domain.SlotPool, acquireTimeout time.Duration) *ConcurrencyService {
	return &ConcurrencyService{pool: pool, acquireTimeout: acquireTimeout}
}

// Acquire tenta adquirir uma vaga.
//   - acquireTimeout <= 0: espera até o ctx encerrar.
//   - acquireTimeout > 0: espera no máximo o timeout.
//
// Erros: domain.ErrNoSlot quando o timeout venceu; o erro do ctx quando o
// cliente foi embora antes. Sem vaga, release é nil e nada é contado em voo.
func (s *ConcurrencyService) Acquire(ctx context.Context) (release func(), err error) {
	if s.pool == nil {
		return func() {}, nil
	}

	acqCtx := ctx
	if s.acquireTimeout > 0 {
		var cancel context.CancelFunc
		acqCtx, cancel = context.WithTimeout(ctx, s.acquireTimeout)
		defer cancel()
	}

	poolRelease, ok := s.pool.Acquire(acqCtx)
	if !ok {
		if cerr := ctx.Err(); cerr != nil {
			return nil, cerr
		}
		s.rejected.Add(1)
		return nil, domain.ErrNoSlot
	}

	s.inFlight.Add(1)
	var done atomic.Bool
	return func() {
		if done.CompareAndSwap(false, true) {
			s.inFlight.Add(-1)
			poolRelease()
		}
	}, nil
}

// InFlight é o número de vagas ocupadas agora.
func (s *ConcurrencyService) InFlight() int64 { return s.inFlight.Load() }

// Rejected conta as aquisições que esgotaram o timeout.
func (s *ConcurrencyService) Rejected() int64 { return s.rejected.Load() }
