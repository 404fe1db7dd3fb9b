package infra

import (
	"context"
	"sync"

	"trade-admission/admission/domain"
)

// Semaphore limita submissões simultâneas na instância com um channel de vagas.
type Semaphore struct {
	slots chan struct{}
}

func NewSemaphore(size int) *Semaphore {
	if size < 1 {
		size = 1
	}
	return &Semaphore{slots: make(chan struct{}, size)}
}

var _ domain.SlotPool = (*Semaphore)(nil)

// Acquire espera uma vaga até o ctx encerrar. O release devolvido é idempotente.
func (s *Semaphore) Acquire(ctx context.Context) (func(), bool) {
	select {
	case s.slots <- struct{}{}:
	case <-ctx.Done():
		return nil, false
	}

	var once sync.Once
	return func() { once.Do(func() { <-s.slots }) }, true
}

func (s *Semaphore) InUse() int { return len(s.slots) }
func (s *Semaphore) Size() int  { return cap(s.slots) }
