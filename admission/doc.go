// Package admission fornece o adapter HTTP (net/http) do controle de admissão de anúncios.
//
// Visão geral (camadas):
//
//   - domain: contratos e tipos (sem net/http, sem drivers)
//   - application: casos de uso (identidade, rate limit, duplicatas, cota, motor, listagens)
//   - infra: stores concretos (memória e Redis), catálogo, Kafka, token bucket, semáforo
//   - admission (este pacote): rotas, extração de endereço/sessão e tradução para status/headers
//
// Fluxo de um POST /api/trades:
//
//   1) Flood guard local por endereço (opcional)
//   2) Limite de submissões simultâneas (opcional)
//   3) Decodifica o corpo e monta a TradeRequest com endereço, User-Agent e conta
//   4) Chama o Engine e traduz a Rejection para 400, 429 ou 503 com Retry-After
//
// O binário cmd/tradeboard lê a configuração do ambiente (ou de um .env).
package admission
