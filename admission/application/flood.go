package application

import (
	"context"
	"time"

	"trade-admission/admission/domain"

	"github.com/rs/zerolog"
)

// DefaultFloodRetryAfter é o Retry-After sugerido quando o flood guard corta.
const DefaultFloodRetryAfter = time.Second

// FloodGuard corta rajadas de um mesmo cliente antes do motor de admissão.
//
// Usa um token bucket local por chave; os contadores compartilhados do RateLimiter
// continuam valendo para o que passar daqui.
type FloodGuard struct {
	Store      domain.LimiterStore
	Stats      domain.StatsStore
	RetryAfter time.Duration
	Now        func() time.Time
	Logger     zerolog.Logger
}

func (g FloodGuard) Check(ctx context.Context, key string) domain.FloodDecision {
	dec := g.decide(key)
	if g.Stats != nil {
		now := time.Now
		if g.Now != nil {
			now = g.Now
		}
		ev := domain.StatsEvent{Key: key, Allowed: dec.Allowed, Source: domain.SourceFlood, At: now()}
		if !dec.Allowed {
			ev.Class = domain.ClassThrottle
			ev.Rule = domain.RuleFlood
		}
		if err := g.Stats.Record(ctx, ev); err != nil {
			g.Logger.Debug().Err(err).Str("key", key).Msg("flood stats record failed")
		}
	}
	return dec
}

func (g FloodGuard) decide(key string) domain.FloodDecision {
	if g.Store == nil {
		return domain.FloodDecision{Allowed: true}
	}
	lim := g.Store.Get(key)
	if lim == nil || lim.Allow() {
		return domain.FloodDecision{Allowed: true}
	}

	wait := g.RetryAfter
	if wait <= 0 {
		wait = DefaultFloodRetryAfter
	}
	return domain.FloodDecision{RetryAfter: wait}
}
