// Package infra contém implementações concretas (infraestrutura) para os
// contratos definidos no pacote domain.
//
// Exemplos:
//   - RedisCounterStore: contadores duais atômicos via scripts Lua no Redis
//   - MemoryCounterStore: mesma semântica em memória, para testes e dev
//   - PrometheusRecorder / MemoryRecorder: telemetria local do processo
//   - ChanPool: semáforo simples para limite de concorrência
package infra
