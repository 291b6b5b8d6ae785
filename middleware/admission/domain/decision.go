package domain

import "time"

// Outcome é o resultado final de uma requisição no pipeline de admissão.
type Outcome string

const (
	OutcomeForwarded     Outcome = "forwarded"
	OutcomeDelayed       Outcome = "delayed"
	OutcomeCooldown      Outcome = "cooldown"
	OutcomeQuotaExceeded Outcome = "quota_exceeded"
	// OutcomeStoreUnavailable só é produzido com FailClosed; com FailOpen a
	// requisição segue como forwarded/delayed e Decision.Err fica preenchido.
	OutcomeStoreUnavailable Outcome = "store_unavailable"
	// OutcomeOverBudget: o atraso de throttle não cabe no tempo de escrita do
	// servidor; a requisição é recusada sem encaminhar.
	OutcomeOverBudget Outcome = "over_budget"
)

// Outcomes lista todos os resultados (ordem estável para relatórios).
var Outcomes = []Outcome{
	OutcomeForwarded,
	OutcomeDelayed,
	OutcomeCooldown,
	OutcomeQuotaExceeded,
	OutcomeStoreUnavailable,
	OutcomeOverBudget,
}

// Decision é o que o pipeline decidiu antes de encaminhar.
type Decision struct {
	Outcome Outcome
	// RetryAfter é o tempo restante de bloqueio quando rejeitado
	// (cooldown ativo ou cota estourada).
	RetryAfter time.Duration
	// Delay é o atraso de throttle a aplicar antes de encaminhar.
	Delay time.Duration
	// Err guarda a falha do store. Com fail-open a requisição segue mesmo assim.
	Err error
}

// Rejected indica que a requisição não deve ser encaminhada.
func (d Decision) Rejected() bool {
	switch d.Outcome {
	case OutcomeCooldown, OutcomeQuotaExceeded, OutcomeStoreUnavailable:
		return true
	}
	return false
}

// Degraded indica que o store falhou e a decisão foi tomada sem ele.
func (d Decision) Degraded() bool { return d.Err != nil }
