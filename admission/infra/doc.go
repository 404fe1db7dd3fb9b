// Package infra contém implementações concretas (infraestrutura) para os contratos
// definidos no pacote domain.
//
// Exemplos:
//   - MemoryCounterStore / RedisCounterStore: contadores por janela com TTL
//   - MemorySubmissionLog / RedisSubmissionLog: log de anúncios com expiração dos anônimos
//   - MemoryCatalog: catálogo de itens carregado de um arquivo JSON
//   - KafkaNotifier: publica anúncios aceitos para o serviço de mensagens
//   - FloodStore: token bucket por cliente usando golang.org/x/time/rate (flood guard)
//   - Semaphore: limite de submissões simultâneas
//   - MemoryStatsStore / RedisStatsStore: estatísticas de decisão
package infra
