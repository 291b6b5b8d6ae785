package domain

import "errors"

var (
	// ErrStoreUnavailable indica que o store compartilhado não respondeu dentro
	// do timeout (ou devolveu erro de I/O). A política de falha decide o que fazer.
	ErrStoreUnavailable = errors.New("admission store unavailable")

	// ErrNoSlot: o limite de requisições em voo não liberou vaga a tempo.
	ErrNoSlot = errors.New("no concurrency slot available")

	ErrInvalidQuota  = errors.New("invalid quota")
	ErrInvalidPolicy = errors.New("invalid policy")
)
