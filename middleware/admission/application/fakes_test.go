package application

import (
	"context"
	"errors"
	"sync"
	"time"

	"admission-gateway/middleware/admission/domain"
)

var errDown = errors.Join(domain.ErrStoreUnavailable, errors.New("dial tcp: connection refused"))

type fakeCooldownStore struct {
	mu      sync.Mutex
	now     time.Time
	expires map[domain.ClientRouteKey]time.Time
	arms    int
	err     error
}

func newFakeCooldownStore() *fakeCooldownStore {
	return &fakeCooldownStore{
		now:     time.Date(2026, time.March, 2, 10, 0, 0, 0, time.UTC),
		expires: map[domain.ClientRouteKey]time.Time{},
	}
}

func (s *fakeCooldownStore) advance(d time.Duration) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.now = s.now.Add(d)
}

func (s *fakeCooldownStore) Remaining(_ context.Context, key domain.ClientRouteKey) (time.Duration, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.err != nil {
		return 0, false, s.err
	}
	exp, ok := s.expires[key]
	if !ok {
		return 0, false, nil
	}
	rem := domain.RemainingUntil(s.now, exp)
	if rem <= 0 {
		delete(s.expires, key)
		return 0, false, nil
	}
	return rem, true, nil
}

func (s *fakeCooldownStore) Arm(_ context.Context, key domain.ClientRouteKey, penalty time.Duration) (time.Duration, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.err != nil {
		return 0, s.err
	}
	s.arms++
	if exp, ok := s.expires[key]; ok && exp.After(s.now) {
		return exp.Sub(s.now), nil
	}
	s.expires[key] = domain.ExpiryFrom(s.now, penalty)
	return penalty, nil
}

type fakeCounterStore struct {
	mu     sync.Mutex
	counts map[domain.ClientRouteKey]int64
	calls  int
	err    error
}

func newFakeCounterStore() *fakeCounterStore {
	return &fakeCounterStore{counts: map[domain.ClientRouteKey]int64{}}
}

func (s *fakeCounterStore) Increment(_ context.Context, key domain.ClientRouteKey, window time.Duration) (int64, time.Duration, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.calls++
	if s.err != nil {
		return 0, 0, s.err
	}
	s.counts[key]++
	return s.counts[key], window, nil
}

type fakeWindowLimiter struct {
	mu     sync.Mutex
	counts map[domain.ClientRouteKey]int64
	calls  int
	err    error
}

func newFakeWindowLimiter() *fakeWindowLimiter {
	return &fakeWindowLimiter{counts: map[domain.ClientRouteKey]int64{}}
}

func (l *fakeWindowLimiter) Admit(_ context.Context, key domain.ClientRouteKey, q domain.Quota) (domain.WindowDecision, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.calls++
	if l.err != nil {
		return domain.WindowDecision{}, l.err
	}
	if l.counts[key] >= q.Limit {
		return domain.WindowDecision{Allowed: false, Count: l.counts[key], RetryAfter: q.Period}, nil
	}
	l.counts[key]++
	return domain.WindowDecision{Allowed: true, Count: l.counts[key]}, nil
}

type fakeLimiter struct {
	allow bool
}

func (f fakeLimiter) Allow() bool { return f.allow }

type fakeLimiterStore struct {
	lim  domain.Limiter
	keys []domain.Key
}

func (s *fakeLimiterStore) Get(k domain.Key) domain.Limiter {
	s.keys = append(s.keys, k)
	return s.lim
}
