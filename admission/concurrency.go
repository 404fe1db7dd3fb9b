package admission

import (
	"net/http"
	"time"

	"trade-admission/admission/application"
	"trade-admission/admission/domain"
	"trade-admission/admission/infra"
)

type ConcurrencyOptions struct {
	Max            int
	AcquireTimeout time.Duration
}

// ConcurrencyMiddleware limita requisições simultâneas na instância; sem vaga a
// tempo, responde 503 com Retry-After: 1. Max <= 0 desliga.
func ConcurrencyMiddleware(opts ConcurrencyOptions) func(next http.Handler) http.Handler {
	if opts.Max <= 0 {
		return func(next http.Handler) http.Handler { return next }
	}

	slots := application.SubmissionSlots{
		Pool: infra.NewSemaphore(opts.Max),
		Wait: opts.AcquireTimeout,
	}

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			leave, ok := slots.Enter(r.Context())
			if !ok {
				writeRejection(w, domain.Unavailable())
				return
			}
			defer leave()

			next.ServeHTTP(w, r)
		})
	}
}
