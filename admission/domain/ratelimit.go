package domain

import "time"

// Contratos do flood guard HTTP: um token bucket local por cliente que corta
// rajadas absurdas antes de chegar ao motor de admissão. Não substitui os
// contadores compartilhados do CounterStore.

// Limiter decide se uma ação é permitida agora.
type Limiter interface {
	Allow() bool
}

// LimiterStore obtém um limiter por chave (endereço do cliente).
type LimiterStore interface {
	Get(key string) Limiter
}

type FloodDecision struct {
	Allowed bool
	// RetryAfter vai no header Retry-After quando bloquear. 0 = sem recomendação.
	RetryAfter time.Duration
}
