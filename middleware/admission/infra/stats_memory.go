package infra

import (
	"context"
	"sync"

	"admission-gateway/middleware/admission/domain"
)

var (
	_ domain.StatsStore  = (*MemoryStatsStore)(nil)
	_ domain.StatsReader = (*MemoryStatsStore)(nil)
)

// MemoryStatsStore é uma implementação simples em memória.
// Útil para testes e desenvolvimento.
//
// Não faz expiração e não é indicada para produção.
type MemoryStatsStore struct {
	mu     sync.Mutex
	snap   domain.StatsSnapshot
	byKey  map[string]map[domain.Outcome]int64
	events int64

	trackKeys bool
}

type MemoryStatsOption func(*MemoryStatsStore)

func WithTrackKeys(track bool) MemoryStatsOption {
	return func(s *MemoryStatsStore) { s.trackKeys = track }
}

func NewMemoryStatsStore(opts ...MemoryStatsOption) *MemoryStatsStore {
	s := &MemoryStatsStore{
		snap:  domain.NewStatsSnapshot(),
		byKey: make(map[string]map[domain.Outcome]int64),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *MemoryStatsStore) Record(_ context.Context, ev domain.StatsEvent) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.events++
	s.snap.Add(ev.RouteLabel(), ev.Outcome, 1)
	if ev.Degraded {
		s.snap.Degraded++
	}
	if s.trackKeys {
		k := ev.Key.String()
		m, ok := s.byKey[k]
		if !ok {
			m = make(map[domain.Outcome]int64)
			s.byKey[k] = m
		}
		m[ev.Outcome]++
	}
	return nil
}

// Snapshot devolve uma cópia dos agregados.
func (s *MemoryStatsStore) Snapshot(_ context.Context) (domain.StatsSnapshot, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := domain.NewStatsSnapshot()
	for o, n := range s.snap.Total {
		out.Total[o] = n
	}
	for r, m := range s.snap.ByRoute {
		cp := make(map[domain.Outcome]int64, len(m))
		for o, n := range m {
			cp[o] = n
		}
		out.ByRoute[r] = cp
	}
	out.Degraded = s.snap.Degraded
	return out, nil
}

func (s *MemoryStatsStore) Events() int64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.events
}

func (s *MemoryStatsStore) ByKey() map[string]map[domain.Outcome]int64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make(map[string]map[domain.Outcome]int64, len(s.byKey))
	for k, m := range s.byKey {
		cp := make(map[domain.Outcome]int64, len(m))
		for o, n := range m {
			cp[o] = n
		}
		out[k] = cp
	}
	return out
}
