package admission

import (
	"net/http"
	"time"

	"trade-admission/admission/application"
	"trade-admission/admission/domain"

	"github.com/rs/zerolog"
)

type FloodOptions struct {
	Store               domain.LimiterStore
	Stats               domain.StatsStore
	KeyFn               KeyFunc
	TrustProxy          bool
	RetryAfter          time.Duration
	AddRateLimitHeaders bool
	Logger              zerolog.Logger
}

type rateInfo interface {
	RPS() float64
	Burst() int
}

// FloodMiddleware corta rajadas por endereço com 429 antes de chegar nas rotas.
// Sem Store, é um passthrough.
func FloodMiddleware(opts FloodOptions) func(next http.Handler) http.Handler {
	if opts.Store == nil {
		return func(next http.Handler) http.Handler { return next }
	}
	if opts.KeyFn == nil {
		opts.KeyFn = ClientAddress(opts.TrustProxy)
	}

	guard := application.FloodGuard{
		Store:      opts.Store,
		Stats:      opts.Stats,
		RetryAfter: opts.RetryAfter,
		Logger:     opts.Logger,
	}

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			key := opts.KeyFn(r)

			if opts.AddRateLimitHeaders {
				if ri, ok := opts.Store.(rateInfo); ok {
					w.Header().Set("X-RateLimit-RPS", formatFloat(ri.RPS()))
					w.Header().Set("X-RateLimit-Burst", formatInt(ri.Burst()))
				}
			}

			dec := guard.Check(r.Context(), key)
			if !dec.Allowed {
				w.Header().Set("Retry-After", formatInt(retryAfterSeconds(dec.RetryAfter)))
				writeJSON(w, http.StatusTooManyRequests, errorBody{
					Error: "Too many requests.",
					Class: string(domain.ClassThrottle),
					Rule:  string(domain.RuleFlood),
				})
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}
