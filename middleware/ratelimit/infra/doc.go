// Package infra contém implementações concretas (infraestrutura) para os contratos
// definidos no pacote domain.
//
// Exemplos:
//   - RedisCounterStore: contador de janela fixa no Redis (script Lua atômico)
//   - MemoryCounterStore: mesmo contrato em memória, para um único processo
//   - Supervisor: ciclo de vida da conexão com o store (reconexão com backoff)
//   - GuardedStore: falha fechado enquanto o store não está READY
package infra
