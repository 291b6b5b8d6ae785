package domain

// Camada de domínio do limitador de janela fixa.
//
// O limitador de janela é uma dependência consumida: o orquestrador só conhece
// o contrato abaixo.

import (
	"context"
	"fmt"
	"strings"
	"time"
)

// Quota é a configuração por rota: no máximo Limit admissões a cada Period.
type Quota struct {
	Limit  int64
	Period time.Duration
}

func (q Quota) Validate() error {
	if q.Limit <= 0 {
		return fmt.Errorf("%w: limit must be > 0 (got %d)", ErrInvalidQuota, q.Limit)
	}
	if q.Period <= 0 {
		return fmt.Errorf("%w: period must be > 0 (got %s)", ErrInvalidQuota, q.Period)
	}
	return nil
}

func (q Quota) String() string {
	return fmt.Sprintf("%d/%s", q.Limit, q.Period)
}

// WindowDecision é a resposta do limitador de janela.
type WindowDecision struct {
	Allowed bool
	// Count é o total admitido na janela corrente.
	Count int64
	// RetryAfter só é preenchido quando Allowed=false.
	RetryAfter time.Duration
}

// WindowLimiter deve ser atômico: chamadas concorrentes para a mesma chave
// nunca admitem mais que q.Limit dentro de uma janela.
type WindowLimiter interface {
	Admit(ctx context.Context, key ClientRouteKey, q Quota) (WindowDecision, error)
}

// Limiter representa um limitador local (em processo) que decide se uma ação
// é permitida agora. Usado apenas como fallback quando o store está fora.
type Limiter interface {
	Allow() bool
}

// LimiterStore obtém um limiter local por chave.
type LimiterStore interface {
	Get(Key) Limiter
}

// RouteQuota associa uma cota a um padrão de rota (e opcionalmente a um método).
type RouteQuota struct {
	// Method vazio vale para qualquer método.
	Method  string `json:"method,omitempty" yaml:"method,omitempty"`
	Pattern string `json:"pattern" yaml:"pattern"`
	Quota   Quota  `json:"quota" yaml:"quota"`
}

// QuotaTable é a tabela estática de cotas por rota. Rotas fora da tabela não
// passam pelo limitador de janela.
type QuotaTable []RouteQuota

// Lookup prefere a entrada com método exato à entrada sem método.
func (t QuotaTable) Lookup(method, route string) (Quota, bool) {
	method = strings.ToUpper(strings.TrimSpace(method))
	var (
		anyMethod Quota
		found     bool
	)
	for _, rq := range t {
		if rq.Pattern != route {
			continue
		}
		m := strings.ToUpper(strings.TrimSpace(rq.Method))
		if m == method {
			return rq.Quota, true
		}
		if m == "" && !found {
			anyMethod, found = rq.Quota, true
		}
	}
	return anyMethod, found
}

func (t QuotaTable) Validate() error {
	seen := make(map[string]struct{}, len(t))
	for i, rq := range t {
		if !strings.HasPrefix(rq.Pattern, "/") {
			return fmt.Errorf("%w: route %d: pattern must start with / (got %q)", ErrInvalidQuota, i, rq.Pattern)
		}
		if err := rq.Quota.Validate(); err != nil {
			return fmt.Errorf("route %s %s: %w", rq.Method, rq.Pattern, err)
		}
		id := strings.ToUpper(strings.TrimSpace(rq.Method)) + " " + rq.Pattern
		if _, dup := seen[id]; dup {
			return fmt.Errorf("%w: duplicate route %q", ErrInvalidQuota, strings.TrimSpace(id))
		}
		seen[id] = struct{}{}
	}
	return nil
}

// DefaultQuotaTable reproduz as cotas do backend de chat/inferência.
func DefaultQuotaTable() QuotaTable {
	return QuotaTable{
		{Method: "POST", Pattern: "/api/v1/chat", Quota: Quota{Limit: 2, Period: time.Minute}},
		{Method: "POST", Pattern: "/api/v1/generate", Quota: Quota{Limit: 15, Period: 10 * time.Minute}},
		{Method: "GET", Pattern: "/api/v1/resource", Quota: Quota{Limit: 2, Period: 5 * time.Second}},
		{Method: "GET", Pattern: "/api/v1/users/me/items/protected", Quota: Quota{Limit: 15, Period: 10 * time.Minute}},
	}
}
