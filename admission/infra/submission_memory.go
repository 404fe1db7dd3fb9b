package infra

import (
	"context"
	"sort"
	"sync"
	"time"

	"trade-admission/admission/domain"

	"github.com/google/uuid"
)

// MemorySubmissionLog é um SubmissionLog em memória.
//
// Anúncios anônimos ficam invisíveis depois de domain.AnonymousTTL e são
// removidos pelo janitor. Útil para testes e desenvolvimento; não é durável.
type MemorySubmissionLog struct {
	mu         sync.RWMutex
	subs       map[string]domain.Submission
	now        func() time.Time
	sweepEvery time.Duration
}

type MemoryLogOption func(*MemorySubmissionLog)

func WithLogClock(now func() time.Time) MemoryLogOption {
	return func(l *MemorySubmissionLog) { l.now = now }
}

func WithLogSweepEvery(d time.Duration) MemoryLogOption {
	return func(l *MemorySubmissionLog) { l.sweepEvery = d }
}

func NewMemorySubmissionLog(opts ...MemoryLogOption) *MemorySubmissionLog {
	l := &MemorySubmissionLog{
		subs:       make(map[string]domain.Submission),
		now:        time.Now,
		sweepEvery: 10 * time.Minute,
	}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

var _ domain.SubmissionLog = (*MemorySubmissionLog)(nil)

func (l *MemorySubmissionLog) expired(s domain.Submission, now time.Time) bool {
	exp := s.ExpiresAt()
	return !exp.IsZero() && !now.Before(exp)
}

func (l *MemorySubmissionLog) Find(ctx context.Context, q domain.Query) ([]domain.Submission, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	now := l.now()

	l.mu.RLock()
	out := make([]domain.Submission, 0)
	for _, s := range l.subs {
		if l.expired(s, now) || !q.Matches(s) {
			continue
		}
		out = append(out, s)
	}
	l.mu.RUnlock()

	sortNewestFirst(out)
	return domain.Page(out, q.Skip, q.Limit), nil
}

func (l *MemorySubmissionLog) Count(ctx context.Context, q domain.Query) (int, error) {
	q.Skip, q.Limit = 0, 0
	subs, err := l.Find(ctx, q)
	if err != nil {
		return 0, err
	}
	return len(subs), nil
}

func (l *MemorySubmissionLog) Insert(ctx context.Context, s *domain.Submission) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	if s.ID == "" {
		s.ID = uuid.NewString()
	}
	if s.CreatedAt.IsZero() {
		s.CreatedAt = l.now()
	}

	l.mu.Lock()
	defer l.mu.Unlock()
	l.subs[s.ID] = *s
	return s.ID, nil
}

func (l *MemorySubmissionLog) CountActiveByOwner(ctx context.Context, ownerID string) (int, error) {
	if ownerID == "" {
		return 0, nil
	}
	return l.Count(ctx, domain.Query{OwnerID: ownerID})
}

func (l *MemorySubmissionLog) Get(ctx context.Context, id string) (domain.Submission, error) {
	if err := ctx.Err(); err != nil {
		return domain.Submission{}, err
	}

	l.mu.RLock()
	defer l.mu.RUnlock()

	s, ok := l.subs[id]
	if !ok || l.expired(s, l.now()) {
		return domain.Submission{}, domain.ErrSubmissionNotFound
	}
	return s, nil
}

func (l *MemorySubmissionLog) UpdateDescription(ctx context.Context, id, ownerID, description string) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	s, ok := l.subs[id]
	if !ok || ownerID == "" || s.OwnerID != ownerID {
		return domain.ErrSubmissionNotFound
	}
	s.Description = description
	l.subs[id] = s
	return nil
}

func (l *MemorySubmissionLog) Delete(ctx context.Context, id, ownerID string) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	s, ok := l.subs[id]
	if !ok || ownerID == "" || s.OwnerID != ownerID {
		return domain.ErrSubmissionNotFound
	}
	delete(l.subs, id)
	return nil
}

func (l *MemorySubmissionLog) Purge(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	l.mu.Lock()
	defer l.mu.Unlock()
	l.subs = make(map[string]domain.Submission)
	return nil
}

// Sweep remove anúncios anônimos expirados.
func (l *MemorySubmissionLog) Sweep() {
	now := l.now()

	l.mu.Lock()
	defer l.mu.Unlock()

	for id, s := range l.subs {
		if l.expired(s, now) {
			delete(l.subs, id)
		}
	}
}

// Len inclui anúncios expirados ainda não varridos.
func (l *MemorySubmissionLog) Len() int {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return len(l.subs)
}

func (l *MemorySubmissionLog) StartJanitor(ctx context.Context) {
	startJanitor(ctx, l.sweepEvery, l.Sweep)
}

func sortNewestFirst(subs []domain.Submission) {
	sort.SliceStable(subs, func(i, j int) bool {
		if subs[i].CreatedAt.Equal(subs[j].CreatedAt) {
			return subs[i].ID > subs[j].ID
		}
		return subs[i].CreatedAt.After(subs[j].CreatedAt)
	})
}
