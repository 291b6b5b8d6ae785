package domain

import (
	"fmt"
	"strings"
)

// FailurePolicy decide o que acontece quando o store está indisponível.
type FailurePolicy string

const (
	// FailOpen trata a falha como "permitido" (com log e estatística).
	FailOpen FailurePolicy = "open"
	// FailClosed trata a falha como "negado".
	FailClosed FailurePolicy = "closed"
)

func ParseFailurePolicy(s string) (FailurePolicy, error) {
	switch FailurePolicy(strings.ToLower(strings.TrimSpace(s))) {
	case "", FailOpen:
		return FailOpen, nil
	case FailClosed:
		return FailClosed, nil
	}
	return "", fmt.Errorf("%w: unknown failure policy %q", ErrInvalidPolicy, s)
}

// ArmPolicy decide em que momento a cota por rota é verificada e o cooldown armado.
type ArmPolicy string

const (
	// ArmPostForward verifica a cota dentro da cadeia encaminhada e arma o
	// cooldown ao observar o 429 de volta. A requisição que estoura a cota não
	// chega ao handler da rota, mas qualquer 429 vindo do próprio handler só é
	// punido depois dele executar.
	ArmPostForward ArmPolicy = "post_forward"
	// ArmPreForward verifica a cota antes de encaminhar e arma imediatamente.
	ArmPreForward ArmPolicy = "pre_forward"
)

func ParseArmPolicy(s string) (ArmPolicy, error) {
	switch ArmPolicy(strings.ToLower(strings.TrimSpace(s))) {
	case "", ArmPostForward:
		return ArmPostForward, nil
	case ArmPreForward:
		return ArmPreForward, nil
	}
	return "", fmt.Errorf("%w: unknown arm policy %q", ErrInvalidPolicy, s)
}
