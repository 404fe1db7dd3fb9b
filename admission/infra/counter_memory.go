package infra

import (
	"context"
	"sync"
	"time"

	"trade-admission/admission/domain"
)

// MemoryCounterStore é um CounterStore em memória para desenvolvimento e testes.
//
// O incremento é atômico sob o mutex. Um contador mais velho que seu ttl é
// tratado como inexistente na leitura e removido pelo janitor.
type MemoryCounterStore struct {
	mu         sync.Mutex
	entries    map[string]*counterEntry
	now        func() time.Time
	sweepEvery time.Duration
}

type counterEntry struct {
	count     int64
	createdAt time.Time
	ttl       time.Duration
}

func (e *counterEntry) dead(now time.Time) bool {
	return e.ttl > 0 && now.Sub(e.createdAt) >= e.ttl
}

type MemoryCounterOption func(*MemoryCounterStore)

func WithCounterClock(now func() time.Time) MemoryCounterOption {
	return func(s *MemoryCounterStore) { s.now = now }
}

func WithCounterSweepEvery(d time.Duration) MemoryCounterOption {
	return func(s *MemoryCounterStore) { s.sweepEvery = d }
}

func NewMemoryCounterStore(opts ...MemoryCounterOption) *MemoryCounterStore {
	s := &MemoryCounterStore{
		entries:    make(map[string]*counterEntry),
		now:        time.Now,
		sweepEvery: time.Minute,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

var (
	_ domain.CounterStore  = (*MemoryCounterStore)(nil)
	_ domain.CounterPurger = (*MemoryCounterStore)(nil)
)

func (s *MemoryCounterStore) IncrementAndGet(ctx context.Context, subjectID string, bucket domain.BucketKey, ttl time.Duration) (int64, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}

	key := bucket.String() + ":" + subjectID
	now := s.now()

	s.mu.Lock()
	defer s.mu.Unlock()

	ent, ok := s.entries[key]
	if !ok || ent.dead(now) {
		ent = &counterEntry{createdAt: now, ttl: ttl}
		s.entries[key] = ent
	}
	ent.count++
	return ent.count, nil
}

// Sweep remove fisicamente os contadores expirados.
func (s *MemoryCounterStore) Sweep() {
	now := s.now()

	s.mu.Lock()
	defer s.mu.Unlock()

	for k, ent := range s.entries {
		if ent.dead(now) {
			delete(s.entries, k)
		}
	}
}

func (s *MemoryCounterStore) Purge(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.entries = make(map[string]*counterEntry)
	return nil
}

// Len retorna quantos contadores estão guardados (vivos ou ainda não varridos).
func (s *MemoryCounterStore) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.entries)
}

// StartJanitor inicia a varredura periódica. Pare cancelando o contexto.
func (s *MemoryCounterStore) StartJanitor(ctx context.Context) {
	startJanitor(ctx, s.sweepEvery, s.Sweep)
}
