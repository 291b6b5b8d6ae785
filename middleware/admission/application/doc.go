// Package application contém os casos de uso do controle de admissão:
// Cooldown Gate, Throttle Governor, verificação de cota por rota, o pipeline
// que os sequencia e o limite de concorrência.
//
// Ele depende apenas do pacote domain e não conhece net/http.
// Ex.: Pipeline.Admit(ctx, method, key) retorna uma domain.Decision
// (encaminhar / atrasar / bloquear + tempo restante).
package application
