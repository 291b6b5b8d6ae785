package infra

import (
	"context"
	"sync"
	"time"

	"admission-gateway/middleware/admission/domain"

	"golang.org/x/time/rate"
)

var _ domain.LimiterStore = (*LocalStore)(nil)

// LocalStore é um token bucket (x/time/rate) por chave, em memória do
// processo. Não é compartilhado entre réplicas: serve apenas para conter o
// tráfego enquanto o store compartilhado está fora (fail-open).
type LocalStore struct {
	mu           sync.Mutex
	entries      map[domain.Key]*localEntry
	rps          rate.Limit
	burst        int
	idleTTL      time.Duration
	cleanupEvery time.Duration
	now          func() time.Time
}

type localEntry struct {
	lim      *rate.Limiter
	lastSeen time.Time
}

type LocalStoreOption func(*LocalStore)

func WithIdleTTL(d time.Duration) LocalStoreOption {
	return func(s *LocalStore) { s.idleTTL = d }
}

func WithCleanupEvery(d time.Duration) LocalStoreOption {
	return func(s *LocalStore) { s.cleanupEvery = d }
}

func withLocalClock(now func() time.Time) LocalStoreOption {
	return func(s *LocalStore) { s.now = now }
}

func NewLocalStore(rps float64, burst int, opts ...LocalStoreOption) *LocalStore {
	if burst <= 0 {
		burst = 1
	}
	s := &LocalStore{
		entries:      make(map[domain.Key]*localEntry),
		rps:          rate.Limit(rps),
		burst:        burst,
		idleTTL:      15 * time.Minute,
		cleanupEvery: 2 * time.Minute,
		now:          time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *LocalStore) RPS() float64 { return float64(s.rps) }
func (s *LocalStore) Burst() int   { return s.burst }

// Get implementa domain.LimiterStore.
func (s *LocalStore) Get(key domain.Key) domain.Limiter {
	now := s.now()

	s.mu.Lock()
	defer s.mu.Unlock()

	if ent, ok := s.entries[key]; ok {
		ent.lastSeen = now
		return ent.lim
	}

	lim := rate.NewLimiter(s.rps, s.burst)
	s.entries[key] = &localEntry{lim: lim, lastSeen: now}
	return lim
}

func (s *LocalStore) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.entries)
}

// Cleanup remove chaves sem uso há mais de idleTTL.
func (s *LocalStore) Cleanup() {
	cutoff := s.now().Add(-s.idleTTL)

	s.mu.Lock()
	defer s.mu.Unlock()

	for k, ent := range s.entries {
		if ent.lastSeen.Before(cutoff) {
			delete(s.entries, k)
		}
	}
}

// StartJanitor limpa chaves inativas periodicamente até o ctx encerrar.
func (s *LocalStore) StartJanitor(ctx context.Context) {
	if s.cleanupEvery <= 0 {
		return
	}

	t := time.NewTicker(s.cleanupEvery)
	go func() {
		defer t.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-t.C:
				s.Cleanup()
			}
		}
	}()
}
