package application

import (
	"context"
	"time"

	"trade-admission/admission/domain"
)

// SubmissionSlots limita quantas submissões rodam o pipeline ao mesmo tempo.
// Wait é quanto um pedido espera por vaga; <= 0 espera até o ctx do pedido acabar.
type SubmissionSlots struct {
	Pool domain.SlotPool
	Wait time.Duration
}

// Enter devolve leave (chamar uma vez) e ok=false quando não conseguiu vaga.
func (s SubmissionSlots) Enter(ctx context.Context) (leave func(), ok bool) {
	if s.Pool == nil {
		return func() {}, true
	}
	if s.Wait > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.Wait)
		defer cancel()
	}
	return s.Pool.Acquire(ctx)
}
