// Package infra contém implementações concretas (infraestrutura) para os
// contratos definidos no pacote domain.
//
// Exemplos:
//   - MemoryCounter / RedisCounter: contador de janela fixa por chave
//   - EdgeHeaderResolver / MaxMindResolver / RemoteAPIResolver: estratégias geo
//   - ChanPool: semáforo simples para limite de concorrência
//   - MemoryStatsStore / RedisStatsStore: auditoria de vereditos
package infra
