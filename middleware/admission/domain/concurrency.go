package domain

import "context"

// SlotPool representa um recurso com capacidade finita (ex: requisições em voo
// para o backend de inferência).
//
// Acquire bloqueia até conseguir uma vaga ou até o ctx encerrar. O release
// devolvido deve ser chamado exatamente uma vez, em qualquer caminho de saída.
type SlotPool interface {
	Acquire(ctx context.Context) (release func(), ok bool)
}
