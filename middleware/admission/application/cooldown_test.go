package application

import (
	"context"
	"errors"
	"testing"
	"time"

	"admission-gateway/middleware/admission/domain"
)

var chatKey = domain.NewClientRouteKey("203.0.113.7", "/api/v1/chat")

func TestCooldownGate_NoStoreIsNeverActive(t *testing.T) {
	g := CooldownGate{}
	active, _, err := g.IsActive(context.Background(), chatKey)
	if err != nil || active {
		t.Fatalf("expected inactive without error, got active=%v err=%v", active, err)
	}
	if rem, err := g.Arm(context.Background(), chatKey); err != nil || rem != 0 {
		t.Fatalf("expected no-op arm, got %s %v", rem, err)
	}
}

func TestCooldownGate_ArmUsesDefaultPenalty(t *testing.T) {
	store := newFakeCooldownStore()
	g := CooldownGate{Store: store}

	rem, err := g.Arm(context.Background(), chatKey)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if rem != 3*time.Minute {
		t.Fatalf("expected 3m penalty, got %s", rem)
	}

	store.advance(10 * time.Second)
	active, left, err := g.IsActive(context.Background(), chatKey)
	if err != nil || !active {
		t.Fatalf("expected active cooldown, got active=%v err=%v", active, err)
	}
	if left != 170*time.Second {
		t.Fatalf("expected 170s remaining, got %s", left)
	}
}

func TestCooldownGate_ArmIsIdempotent(t *testing.T) {
	store := newFakeCooldownStore()
	g := CooldownGate{Store: store, Penalty: time.Minute}

	if _, err := g.Arm(context.Background(), chatKey); err != nil {
		t.Fatal(err)
	}
	store.advance(20 * time.Second)
	rem, err := g.Arm(context.Background(), chatKey)
	if err != nil {
		t.Fatal(err)
	}
	if rem != 40*time.Second {
		t.Fatalf("re-arm must keep the original expiry, got %s", rem)
	}
}

func TestCooldownGate_ExpiresAfterPenalty(t *testing.T) {
	store := newFakeCooldownStore()
	g := CooldownGate{Store: store, Penalty: time.Minute}

	_, _ = g.Arm(context.Background(), chatKey)
	store.advance(61 * time.Second)

	active, _, err := g.IsActive(context.Background(), chatKey)
	if err != nil || active {
		t.Fatalf("expected expired cooldown, got active=%v err=%v", active, err)
	}
}

func TestCooldownGate_PropagatesStoreError(t *testing.T) {
	store := newFakeCooldownStore()
	store.err = errDown
	g := CooldownGate{Store: store}

	if _, _, err := g.IsActive(context.Background(), chatKey); !errors.Is(err, domain.ErrStoreUnavailable) {
		t.Fatalf("expected ErrStoreUnavailable, got %v", err)
	}
}

func TestThrottleGovernor_DelayGrowsPastThreshold(t *testing.T) {
	g := ThrottleGovernor{Store: newFakeCounterStore(), Policy: DefaultThrottlePolicy()}

	want := []time.Duration{0, 0, 0, 0, 0, 2 * time.Second, 4 * time.Second, 6 * time.Second}
	for i, w := range want {
		delay, count, err := g.Throttle(context.Background(), chatKey)
		if err != nil {
			t.Fatalf("request %d: unexpected error: %v", i+1, err)
		}
		if count != int64(i+1) {
			t.Fatalf("request %d: expected count %d, got %d", i+1, i+1, count)
		}
		if delay != w {
			t.Fatalf("request %d: expected delay %s, got %s", i+1, w, delay)
		}
	}
}

func TestThrottleGovernor_DisabledSkipsStore(t *testing.T) {
	store := newFakeCounterStore()
	g := ThrottleGovernor{Store: store, Policy: domain.ThrottlePolicy{Threshold: 5}}

	delay, _, err := g.Throttle(context.Background(), chatKey)
	if err != nil || delay != 0 {
		t.Fatalf("expected no delay, got %s %v", delay, err)
	}
	if store.calls != 0 {
		t.Fatalf("expected no store calls when disabled, got %d", store.calls)
	}
}
