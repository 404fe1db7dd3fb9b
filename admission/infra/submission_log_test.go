package infra

import (
	"context"
	"errors"
	"testing"
	"time"

	"trade-admission/admission/domain"
)

// logFixture dá a mesma bateria de testes às duas implementações.
// advance move o relógio do log e, no Redis, o TTL dos registros.
type logFixture struct {
	log     domain.SubmissionLog
	clk     *clock
	advance func(time.Duration)
}

func logFixtures(t *testing.T) map[string]func() logFixture {
	return map[string]func() logFixture{
		"memory": func() logFixture {
			clk := newClock()
			return logFixture{
				log:     NewMemorySubmissionLog(WithLogClock(clk.Now)),
				clk:     clk,
				advance: clk.Advance,
			}
		},
		"redis": func() logFixture {
			mr, rdb := newRedis(t)
			clk := newClock()
			return logFixture{
				log: NewRedisSubmissionLog(rdb, WithRedisLogClock(clk.Now)),
				clk: clk,
				advance: func(d time.Duration) {
					clk.Advance(d)
					mr.FastForward(d)
				},
			}
		},
	}
}

func sideItems(names ...string) []domain.Item {
	out := make([]domain.Item, 0, len(names))
	for _, n := range names {
		out = append(out, domain.Item{Name: n, Category: "Titan"})
	}
	return out
}

func insert(t *testing.T, l domain.SubmissionLog, s domain.Submission) string {
	t.Helper()
	id, err := l.Insert(context.Background(), &s)
	if err != nil {
		t.Fatalf("insert: %v", err)
	}
	return id
}

func TestSubmissionLog_InsertAndGet(t *testing.T) {
	for name, mk := range logFixtures(t) {
		t.Run(name, func(t *testing.T) {
			f := mk()
			id := insert(t, f.log, domain.Submission{Title: "A FOR B", Side1: sideItems("A"), Side2: sideItems("B"), Discord: "d"})
			if id == "" {
				t.Fatalf("expected generated id")
			}

			got, err := f.log.Get(context.Background(), id)
			if err != nil {
				t.Fatalf("get: %v", err)
			}
			if got.Title != "A FOR B" || got.Discord != "d" || !got.CreatedAt.Equal(f.clk.Now()) {
				t.Fatalf("unexpected record %+v", got)
			}
			if _, err := f.log.Get(context.Background(), "missing"); !errors.Is(err, domain.ErrSubmissionNotFound) {
				t.Fatalf("expected ErrSubmissionNotFound, got %v", err)
			}
		})
	}
}

func TestSubmissionLog_FindFiltersNewestFirst(t *testing.T) {
	for name, mk := range logFixtures(t) {
		t.Run(name, func(t *testing.T) {
			f := mk()
			ctx := context.Background()
			base := f.clk.Now()

			insert(t, f.log, domain.Submission{ID: "old", Title: "X FOR Y", Fingerprint: "fp1", Address: "a1",
				Side1: sideItems("X"), Side2: sideItems("Y"), CreatedAt: base.Add(-3 * time.Hour)})
			insert(t, f.log, domain.Submission{ID: "mid", Title: "X FOR Y", Fingerprint: "fp2", Address: "a1",
				Side1: sideItems("X"), Side2: sideItems("Y"), CreatedAt: base.Add(-2 * time.Hour)})
			insert(t, f.log, domain.Submission{ID: "new", Title: "X FOR —", Fingerprint: "fp2", Address: "a2", Roblox: "r",
				Side1: sideItems("X"), CreatedAt: base.Add(-1 * time.Hour)})

			subs, err := f.log.Find(ctx, domain.Query{AnyOf: domain.Identifiers{Address: "a1", Roblox: "r"}})
			if err != nil {
				t.Fatalf("find: %v", err)
			}
			if len(subs) != 3 || subs[0].ID != "new" || subs[2].ID != "old" {
				t.Fatalf("expected newest first across identifiers, got %v", ids(subs))
			}

			n, _ := f.log.Count(ctx, domain.Query{Fingerprint: "fp2", Title: "X FOR Y"})
			if n != 1 {
				t.Fatalf("expected 1 fingerprint+title match, got %d", n)
			}

			n, _ = f.log.Count(ctx, domain.Query{Title: "X FOR Y", BothSidesNonEmpty: true, Since: base.Add(-150 * time.Minute)})
			if n != 1 {
				t.Fatalf("expected 1 match inside window, got %d", n)
			}

			n, _ = f.log.Count(ctx, domain.Query{Side1Any: []string{"y"}, Side2Any: []string{"x"}})
			if n != 0 {
				t.Fatalf("expected no mirror, got %d", n)
			}
			n, _ = f.log.Count(ctx, domain.Query{Side1Any: []string{"x"}, Side2Any: []string{"y", "z"}})
			if n != 2 {
				t.Fatalf("expected 2 side matches, got %d", n)
			}

			page, _ := f.log.Find(ctx, domain.Query{Skip: 1, Limit: 1})
			if len(page) != 1 || page[0].ID != "mid" {
				t.Fatalf("expected second record on page, got %v", ids(page))
			}
		})
	}
}

func TestSubmissionLog_AnonymousExpires(t *testing.T) {
	for name, mk := range logFixtures(t) {
		t.Run(name, func(t *testing.T) {
			f := mk()
			ctx := context.Background()
			anon := insert(t, f.log, domain.Submission{Title: "anon", Address: "a"})
			owned := insert(t, f.log, domain.Submission{Title: "owned", Address: "a", OwnerID: "u1"})

			f.advance(domain.AnonymousTTL)

			if _, err := f.log.Get(ctx, anon); !errors.Is(err, domain.ErrSubmissionNotFound) {
				t.Fatalf("expected anonymous submission expired, got %v", err)
			}
			if _, err := f.log.Get(ctx, owned); err != nil {
				t.Fatalf("owned submission must not expire: %v", err)
			}
			n, _ := f.log.Count(ctx, domain.Query{AnyOf: domain.Identifiers{Address: "a"}})
			if n != 1 {
				t.Fatalf("expected only the owned submission, got %d", n)
			}
			if n, _ := f.log.CountActiveByOwner(ctx, "u1"); n != 1 {
				t.Fatalf("expected 1 active, got %d", n)
			}
		})
	}
}

func TestSubmissionLog_OwnerScopedMutations(t *testing.T) {
	for name, mk := range logFixtures(t) {
		t.Run(name, func(t *testing.T) {
			f := mk()
			ctx := context.Background()
			id := insert(t, f.log, domain.Submission{Title: "t", OwnerID: "u1", Description: "old"})
			anon := insert(t, f.log, domain.Submission{Title: "t"})

			if err := f.log.UpdateDescription(ctx, id, "u2", "x"); !errors.Is(err, domain.ErrSubmissionNotFound) {
				t.Fatalf("expected not found for other owner, got %v", err)
			}
			if err := f.log.UpdateDescription(ctx, anon, "", "x"); !errors.Is(err, domain.ErrSubmissionNotFound) {
				t.Fatalf("anonymous submissions are not editable, got %v", err)
			}
			if err := f.log.UpdateDescription(ctx, id, "u1", "new"); err != nil {
				t.Fatalf("update: %v", err)
			}
			got, _ := f.log.Get(ctx, id)
			if got.Description != "new" || got.Title != "t" {
				t.Fatalf("only description may change, got %+v", got)
			}

			if err := f.log.Delete(ctx, id, "u2"); !errors.Is(err, domain.ErrSubmissionNotFound) {
				t.Fatalf("expected not found for other owner, got %v", err)
			}
			if err := f.log.Delete(ctx, id, "u1"); err != nil {
				t.Fatalf("delete: %v", err)
			}
			if n, _ := f.log.CountActiveByOwner(ctx, "u1"); n != 0 {
				t.Fatalf("expected 0 active after delete, got %d", n)
			}
		})
	}
}

func TestSubmissionLog_Purge(t *testing.T) {
	for name, mk := range logFixtures(t) {
		t.Run(name, func(t *testing.T) {
			f := mk()
			ctx := context.Background()
			insert(t, f.log, domain.Submission{Title: "a", OwnerID: "u1"})
			insert(t, f.log, domain.Submission{Title: "b"})

			if err := f.log.Purge(ctx); err != nil {
				t.Fatalf("purge: %v", err)
			}
			if n, _ := f.log.Count(ctx, domain.Query{}); n != 0 {
				t.Fatalf("expected empty log, got %d", n)
			}
		})
	}
}

func TestRedisSubmissionLog_DropsExpiredIndexMembers(t *testing.T) {
	mr, rdb := newRedis(t)
	clk := newClock()
	l := NewRedisSubmissionLog(rdb, WithRedisLogClock(clk.Now), WithLogPrefix("t"))
	insert(t, l, domain.Submission{Title: "anon", Address: "a"})

	mr.FastForward(domain.AnonymousTTL)
	if _, err := l.Find(context.Background(), domain.Query{}); err != nil {
		t.Fatalf("find: %v", err)
	}
	if n := rdb.ZCard(context.Background(), "t:idx:all").Val(); n != 0 {
		t.Fatalf("expected orphan index member removed, got %d", n)
	}
}

func TestRedisSubmissionLog_UnavailableIsWrapped(t *testing.T) {
	mr, rdb := newRedis(t)
	l := NewRedisSubmissionLog(rdb)
	mr.Close()

	if _, err := l.Count(context.Background(), domain.Query{Title: "x"}); !errors.Is(err, domain.ErrStoreUnavailable) {
		t.Fatalf("expected ErrStoreUnavailable, got %v", err)
	}
	s := domain.Submission{Title: "x"}
	if _, err := l.Insert(context.Background(), &s); !errors.Is(err, domain.ErrStoreUnavailable) {
		t.Fatalf("expected ErrStoreUnavailable, got %v", err)
	}
}

func TestMemorySubmissionLog_SweepRemovesExpired(t *testing.T) {
	clk := newClock()
	l := NewMemorySubmissionLog(WithLogClock(clk.Now))
	insert(t, l, domain.Submission{Title: "anon"})
	insert(t, l, domain.Submission{Title: "owned", OwnerID: "u"})

	clk.Advance(domain.AnonymousTTL + time.Second)
	l.Sweep()
	if l.Len() != 1 {
		t.Fatalf("expected 1 record after sweep, got %d", l.Len())
	}
}

func ids(subs []domain.Submission) []string {
	out := make([]string, 0, len(subs))
	for _, s := range subs {
		out = append(out, s.ID)
	}
	return out
}
