package domain

import (
	"context"
	"strings"
	"time"
)

// StatsEvent representa uma decisão do pipeline de admissão.
//
// Observação: cuidado com cardinalidade. Route já é o padrão da rota (não o
// path cru), mas Client pode explodir o número de chaves se TrackKeys estiver
// ligado.
type StatsEvent struct {
	Key      ClientRouteKey
	Outcome  Outcome
	Degraded bool

	Method string

	At time.Time
}

// StatsStore é a estratégia de persistência das estatísticas.
//
// O middleware trata erro como best-effort (não derruba a request).
type StatsStore interface {
	Record(ctx context.Context, ev StatsEvent) error
}

// StatsSnapshot é a leitura agregada usada pelo CLI.
type StatsSnapshot struct {
	Total map[Outcome]int64
	// ByRoute é indexado por "METHOD /padrão".
	ByRoute map[string]map[Outcome]int64
	// Degraded conta decisões tomadas com o store fora.
	Degraded int64
}

// NewStatsSnapshot devolve um snapshot com os mapas inicializados.
func NewStatsSnapshot() StatsSnapshot {
	return StatsSnapshot{
		Total:   make(map[Outcome]int64),
		ByRoute: make(map[string]map[Outcome]int64),
	}
}

// Add soma n ao resultado da rota (e ao total).
func (s StatsSnapshot) Add(route string, o Outcome, n int64) {
	s.Total[o] += n
	if route == "" {
		return
	}
	m, ok := s.ByRoute[route]
	if !ok {
		m = make(map[Outcome]int64)
		s.ByRoute[route] = m
	}
	m[o] += n
}

// RouteLabel é o rótulo de agregação por rota de um evento.
func (ev StatsEvent) RouteLabel() string {
	m := strings.ToUpper(strings.TrimSpace(ev.Method))
	if m == "" {
		return ev.Key.Route
	}
	return m + " " + ev.Key.Route
}

// StatsReader lê os agregados.
type StatsReader interface {
	Snapshot(ctx context.Context) (StatsSnapshot, error)
}
