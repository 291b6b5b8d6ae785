// Package infra contém implementações concretas (infraestrutura) para os contratos
// definidos no pacote domain.
//
// Exemplos:
//   - RedisWindowLimiter, RedisCooldownStore, RedisCounterStore: estado
//     compartilhado entre processos, cada mutação é um único script Lua atômico
//   - LocalStore: token bucket por chave (golang.org/x/time/rate), usado como
//     fallback em processo quando o Redis está fora e a política é fail-open
//   - ChanPool: semáforo simples para limite de concorrência
//   - RedisStatsStore / MemoryStatsStore: estatísticas de decisão
package infra
