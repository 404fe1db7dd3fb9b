package application

import (
	"context"
	"strconv"
	"strings"
	"testing"
	"time"

	"trade-admission/admission/domain"
	"trade-admission/admission/infra"
)

func newQuota(clk *clock) (QuotaEnforcer, *infra.MemorySubmissionLog) {
	log := infra.NewMemorySubmissionLog(infra.WithLogClock(clk.Now))
	return QuotaEnforcer{Log: log, Policy: DefaultQuotaPolicy(), Now: clk.Now}, log
}

// seedHourly grava n anúncios do endereço addr, um por hora para trás a partir de agora.
func seedHourly(log domain.SubmissionLog, clk *clock, addr string, n int) {
	for k := 0; k < n; k++ {
		seed(log, domain.Submission{Title: "ad " + strconv.Itoa(k), Address: addr, Fingerprint: addr + "_ua"}, clk.Now().Add(-time.Duration(k)*time.Hour))
	}
}

func TestQuota_AnonymousWeeklyCap(t *testing.T) {
	clk := newClock()
	q, log := newQuota(clk)
	id := domain.Identity{Address: "203.0.113.5", Fingerprint: "203.0.113.5_other-ua"}

	seedHourly(log, clk, id.Address, 13)
	if rej, err := q.Check(context.Background(), id, domain.ContactHandles{}); err != nil || rej != nil {
		t.Fatalf("13 in window must pass, got %v / %v", rej, err)
	}

	seedHourly(log, clk, id.Address, 1)
	rej, err := q.Check(context.Background(), id, domain.ContactHandles{})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if rej == nil || rej.Class != domain.ClassQuota || rej.Rule != domain.RuleAnonymousWeeklyCap {
		t.Fatalf("expected anonymous cap rejection, got %v", rej)
	}
	if rej.Count != 14 || rej.Threshold != 12 {
		t.Fatalf("expected count=14 threshold=12, got %d/%d", rej.Count, rej.Threshold)
	}
	if !strings.Contains(rej.Message, "14 in the last 7 days") || !strings.Contains(rej.Message, "below 12") {
		t.Fatalf("unexpected message %q", rej.Message)
	}
}

func TestQuota_AnonymousRetryAfterUntilBelowResumeThreshold(t *testing.T) {
	clk := newClock()
	q, log := newQuota(clk)
	id := domain.Identity{Address: "a", Fingerprint: "a_ua"}
	seedHourly(log, clk, id.Address, 14)

	st, err := q.State(context.Background(), id, domain.ContactHandles{})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	// os 3 mais antigos (13h, 12h, 11h atrás) precisam sair para ficar em 11
	want := 7*24*time.Hour - 11*time.Hour
	if st.RetryAfter != want {
		t.Fatalf("expected RetryAfter=%s, got %s", want, st.RetryAfter)
	}

	clk.Advance(st.RetryAfter + time.Second)
	st, err = q.State(context.Background(), id, domain.ContactHandles{})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if st.Count != 11 || st.Exceeded() {
		t.Fatalf("expected 11 left in window and not exceeded, got %+v", st)
	}
}

func TestQuota_AnonymousMatchesAnyIdentifier(t *testing.T) {
	clk := newClock()
	q, log := newQuota(clk)
	for k := 0; k < 14; k++ {
		seed(log, domain.Submission{Address: "10.0.0." + strconv.Itoa(k), Roblox: "rotator"}, clk.Now())
	}

	id := domain.Identity{Address: "192.0.2.1", Fingerprint: "192.0.2.1_ua"}
	rej, err := q.Check(context.Background(), id, domain.ContactHandles{Roblox: "rotator"})
	if err != nil || rej == nil {
		t.Fatalf("expected shared roblox handle to hit the cap, got %v / %v", rej, err)
	}

	if rej, _ := q.Check(context.Background(), id, domain.ContactHandles{Roblox: "someone-else"}); rej != nil {
		t.Fatalf("unrelated submitter must pass, got %v", rej)
	}
}

func TestQuota_RegisteredActiveCapHasNoTimeDecay(t *testing.T) {
	clk := newClock()
	q, log := newQuota(clk)
	id := domain.Identity{Address: "a", Fingerprint: "a_ua", AccountID: "u1"}

	for k := 0; k < 19; k++ {
		seed(log, domain.Submission{OwnerID: "u1"}, clk.Now())
	}
	if rej, _ := q.Check(context.Background(), id, domain.ContactHandles{}); rej != nil {
		t.Fatalf("19 active must pass, got %v", rej)
	}

	seed(log, domain.Submission{OwnerID: "u1"}, clk.Now())
	clk.Advance(30 * 24 * time.Hour)

	rej, err := q.Check(context.Background(), id, domain.ContactHandles{})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if rej == nil || rej.Rule != domain.RuleRegisteredActiveCap || rej.Count != 20 || rej.Threshold != 20 {
		t.Fatalf("expected registered cap rejection with 20/20, got %+v", rej)
	}
	if rej.RetryAfter != 0 {
		t.Fatalf("registered cap has no retry hint, got %s", rej.RetryAfter)
	}
}

func TestQuota_RegisteredIgnoresAnonymousHistory(t *testing.T) {
	clk := newClock()
	q, log := newQuota(clk)
	seedHourly(log, clk, "a", 14)

	id := domain.Identity{Address: "a", Fingerprint: "a_ua", AccountID: "u1"}
	if rej, err := q.Check(context.Background(), id, domain.ContactHandles{}); err != nil || rej != nil {
		t.Fatalf("registered regime must not count anonymous ads, got %v / %v", rej, err)
	}
}

func TestQuota_StateIsIdempotent(t *testing.T) {
	clk := newClock()
	q, log := newQuota(clk)
	id := domain.Identity{Address: "a", Fingerprint: "a_ua"}
	seedHourly(log, clk, id.Address, 5)

	a, err := q.State(context.Background(), id, domain.ContactHandles{})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	b, err := q.State(context.Background(), id, domain.ContactHandles{})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if a != b {
		t.Fatalf("expected same state, got %+v and %+v", a, b)
	}
}

func TestQuota_ReadFailure(t *testing.T) {
	q := QuotaEnforcer{Log: failingLog{}, Policy: DefaultQuotaPolicy()}
	if _, err := q.Check(context.Background(), domain.Identity{Address: "a"}, domain.ContactHandles{}); err == nil {
		t.Fatalf("expected error for anonymous regime")
	}
	if _, err := q.Check(context.Background(), domain.Identity{Address: "a", AccountID: "u"}, domain.ContactHandles{}); err == nil {
		t.Fatalf("expected error for registered regime")
	}
}
