package domain

import (
	"context"
	"fmt"
	"time"
)

// ThrottlePolicy configura o throttling graduado: até Threshold requisições
// por Window não há atraso; acima disso cada requisição excedente soma
// UnitDelay, limitado a MaxDelay.
type ThrottlePolicy struct {
	Threshold int64
	UnitDelay time.Duration
	Window    time.Duration
	// MaxDelay teto do atraso por requisição. Zero = sem teto.
	MaxDelay time.Duration
}

// Enabled é falso quando a política zera o atraso por definição.
func (p ThrottlePolicy) Enabled() bool {
	return p.UnitDelay > 0 && p.Window > 0
}

func (p ThrottlePolicy) Validate() error {
	if !p.Enabled() {
		return nil
	}
	if p.Threshold < 0 {
		return fmt.Errorf("%w: throttle threshold must be >= 0 (got %d)", ErrInvalidPolicy, p.Threshold)
	}
	if p.MaxDelay < 0 {
		return fmt.Errorf("%w: throttle max delay must be >= 0 (got %s)", ErrInvalidPolicy, p.MaxDelay)
	}
	return nil
}

// Delay é (count - threshold) * unit, ou zero até o limiar, nunca acima de
// MaxDelay. Monotônico não-decrescente em count.
func (p ThrottlePolicy) Delay(count int64) time.Duration {
	if !p.Enabled() || count <= p.Threshold {
		return 0
	}
	d := time.Duration(count-p.Threshold) * p.UnitDelay
	if p.MaxDelay > 0 && d > p.MaxDelay {
		return p.MaxDelay
	}
	return d
}

// CounterStore é o contador de janela rolante do throttle.
//
// Increment deve ser atômico e iniciar a expiração no primeiro incremento de
// cada janela; o contador reinicia só por TTL.
type CounterStore interface {
	Increment(ctx context.Context, key ClientRouteKey, window time.Duration) (count int64, ttl time.Duration, err error)
}
