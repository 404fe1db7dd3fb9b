package infra

import (
	"context"
	"sync"
	"time"

	"trade-admission/admission/domain"

	"golang.org/x/time/rate"
)

// FloodStore guarda um token bucket (x/time/rate) por cliente para o flood guard HTTP.
//
// É estado local da instância e só corta rajadas antes do motor de admissão;
// os tetos de verdade ficam no CounterStore compartilhado.
type FloodStore struct {
	mu      sync.Mutex
	buckets map[string]*floodBucket
	limit   rate.Limit
	burst   int

	idleTTL    time.Duration
	sweepEvery time.Duration
	now        func() time.Time
}

type floodBucket struct {
	lim      *rate.Limiter
	lastSeen time.Time
}

type FloodOption func(*FloodStore)

// WithIdleTTL define depois de quanto tempo sem uso um bucket é descartado.
func WithIdleTTL(d time.Duration) FloodOption {
	return func(s *FloodStore) { s.idleTTL = d }
}

func WithFloodSweepEvery(d time.Duration) FloodOption {
	return func(s *FloodStore) { s.sweepEvery = d }
}

func WithFloodClock(now func() time.Time) FloodOption {
	return func(s *FloodStore) { s.now = now }
}

func NewFloodStore(rps float64, burst int, opts ...FloodOption) *FloodStore {
	s := &FloodStore{
		buckets:    make(map[string]*floodBucket),
		limit:      rate.Limit(rps),
		burst:      burst,
		idleTTL:    15 * time.Minute,
		sweepEvery: 2 * time.Minute,
		now:        time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

var _ domain.LimiterStore = (*FloodStore)(nil)

func (s *FloodStore) RPS() float64 { return float64(s.limit) }
func (s *FloodStore) Burst() int   { return s.burst }

// Get devolve o bucket do cliente, criando um cheio no primeiro acesso.
func (s *FloodStore) Get(key string) domain.Limiter {
	now := s.now()

	s.mu.Lock()
	defer s.mu.Unlock()

	b, ok := s.buckets[key]
	if !ok {
		b = &floodBucket{lim: rate.NewLimiter(s.limit, s.burst)}
		s.buckets[key] = b
	}
	b.lastSeen = now
	return b.lim
}

// Sweep descarta buckets ociosos. Um cliente que volta depois ganha um bucket cheio.
func (s *FloodStore) Sweep() {
	cutoff := s.now().Add(-s.idleTTL)

	s.mu.Lock()
	defer s.mu.Unlock()

	for k, b := range s.buckets {
		if b.lastSeen.Before(cutoff) {
			delete(s.buckets, k)
		}
	}
}

func (s *FloodStore) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.buckets)
}

func (s *FloodStore) StartJanitor(ctx context.Context) {
	startJanitor(ctx, s.sweepEvery, s.Sweep)
}
