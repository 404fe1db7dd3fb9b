package application

import (
	"context"
	"errors"
	"sync"
	"time"

	"trade-admission/admission/domain"
	"trade-admission/admission/infra"

	"github.com/shopspring/decimal"
)

var errBoom = errors.New("boom")

// clock é um relógio manual; começa no meio de um minuto para os testes de janela.
type clock struct {
	mu sync.Mutex
	t  time.Time
}

func newClock() *clock {
	return &clock{t: time.Date(2026, 3, 2, 10, 15, 30, 0, time.UTC)}
}

func (c *clock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.t
}

func (c *clock) Advance(d time.Duration) {
	c.mu.Lock()
	c.t = c.t.Add(d)
	c.mu.Unlock()
}

func testCatalog() *infra.MemoryCatalog {
	return infra.NewMemoryCatalog(
		domain.CatalogItem{Name: "Titan Speakerman", Value: decimal.NewFromInt(100), Category: "Titan"},
		domain.CatalogItem{Name: "Astro Juggernaut", Value: decimal.NewFromInt(150), Category: "Mythic"},
		domain.CatalogItem{Name: "Titan Cameraman", Value: decimal.NewFromInt(30), Category: "Titan"},
		domain.CatalogItem{Name: "Gold Clock", Value: decimal.RequireFromString("12.5"), Category: "Legendary"},
	)
}

func refs(names ...string) []domain.ItemRef {
	out := make([]domain.ItemRef, 0, len(names))
	for _, n := range names {
		out = append(out, domain.ItemRef{Name: n})
	}
	return out
}

func items(names ...string) []domain.Item {
	out := make([]domain.Item, 0, len(names))
	for _, n := range names {
		out = append(out, domain.Item{Name: n, Category: "Titan", Value: decimal.NewFromInt(1)})
	}
	return out
}

// anonReq monta uma troca anônima de side1 por side2 vinda de addr/ua.
func anonReq(addr, ua string, side1, side2 []string) TradeRequest {
	return TradeRequest{
		Side1:    refs(side1...),
		Side2:    refs(side2...),
		Contacts: domain.ContactHandles{Discord: "trader#" + addr},
		Meta:     domain.RequestMeta{Address: addr, Signature: ua},
	}
}

// failingLog é um SubmissionLog em que toda leitura falha.
type failingLog struct {
	domain.SubmissionLog
}

func (failingLog) Find(context.Context, domain.Query) ([]domain.Submission, error) {
	return nil, errBoom
}

func (failingLog) Count(context.Context, domain.Query) (int, error) { return 0, errBoom }

func (failingLog) CountActiveByOwner(context.Context, string) (int, error) { return 0, errBoom }

// recordingNotifier guarda o que foi notificado e pode falhar sob demanda.
type recordingNotifier struct {
	mu   sync.Mutex
	got  []domain.Submission
	fail bool
}

func (n *recordingNotifier) SubmissionAccepted(_ context.Context, s domain.Submission) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.got = append(n.got, s)
	if n.fail {
		return errBoom
	}
	return nil
}

func (n *recordingNotifier) count() int {
	n.mu.Lock()
	defer n.mu.Unlock()
	return len(n.got)
}

// seed grava s no log com CreatedAt em at.
func seed(l domain.SubmissionLog, s domain.Submission, at time.Time) string {
	s.CreatedAt = at
	id, err := l.Insert(context.Background(), &s)
	if err != nil {
		panic(err)
	}
	return id
}
