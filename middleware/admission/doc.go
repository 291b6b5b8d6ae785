// Package admission fornece o adapter HTTP (net/http) do controle de admissão:
// cooldown punitivo, throttling graduado e cota de janela fixa por rota, além
// do limite de concorrência.
//
// Visão geral (camadas):
//
//   - domain: contratos e tipos do domínio (sem dependência de net/http)
//   - application: casos de uso (cooldown, throttle, cota, pipeline) sem net/http
//   - infra: implementações concretas (Redis + Lua, token bucket local, semáforo)
//   - admission (este pacote): middlewares HTTP, extração de chave/rota e
//     tradução das decisões para status/headers/corpo JSON
//
// Fluxo por requisição:
//
//  1. Deriva a chave (cliente, rota)
//  2. Cooldown ativo? responde 429 com o tempo restante e nada mais roda
//  3. Throttle: conta a requisição e, acima do limiar, suspende por um atraso
//  4. Encaminha para o próximo handler (ex: reverse proxy) observando o status
//  5. Um 429 vindo de baixo arma o cooldown e o corpo é trocado pelo payload
//     de bloqueio
//
// Todas as respostas levam Access-Control-Allow-Origin.
package admission
