package application

import (
	"context"
	"time"

	"trade-admission/admission/domain"
)

const (
	DefaultMirrorWindow = 24 * time.Hour
	DefaultExactWindow  = 24 * time.Hour
	DefaultRepeatWindow = 6 * time.Hour
	DefaultRepeatLimit  = 3
)

// DuplicateGuard consulta o log de submissões (não o CounterStore) atrás de
// trocas espelhadas, duplicatas exatas e spam distribuído do mesmo modelo.
//
// As rejeições dizem só qual regra disparou, nunca o registro que bateu.
// Erro retornado = falha de leitura; o Engine falha fechado nesse caso.
type DuplicateGuard struct {
	Log domain.SubmissionLog

	MirrorWindow time.Duration
	ExactWindow  time.Duration
	RepeatWindow time.Duration
	RepeatLimit  int

	Now func() time.Time
}

func (g DuplicateGuard) now() time.Time {
	if g.Now != nil {
		return g.Now()
	}
	return time.Now()
}

func orDefault(d, def time.Duration) time.Duration {
	if d <= 0 {
		return def
	}
	return d
}

// SelfTrade rejeita quando os dois lados têm o mesmo conjunto de nomes, em qualquer ordem.
// Não consulta histórico.
func (g DuplicateGuard) SelfTrade(t Trade) *domain.Rejection {
	sig1 := domain.NamesSignature(t.Side1)
	if sig1 != "" && sig1 == domain.NamesSignature(t.Side2) {
		return domain.Reject(domain.ClassDuplicate, domain.RuleSelfTrade, "Cannot trade the same items for the same items.")
	}
	return nil
}

// Mirror rejeita se alguém já postou o inverso desta troca dentro da janela:
// lado 1 existente cruza com o lado 2 atual e lado 2 existente cruza com o lado 1 atual.
func (g DuplicateGuard) Mirror(ctx context.Context, t Trade) (*domain.Rejection, error) {
	side1 := domain.FoldedNames(t.Side1)
	side2 := domain.FoldedNames(t.Side2)
	if len(side1) == 0 || len(side2) == 0 {
		return nil, nil
	}

	n, err := g.Log.Count(ctx, domain.Query{
		Since:    g.now().Add(-orDefault(g.MirrorWindow, DefaultMirrorWindow)),
		Side1Any: side2,
		Side2Any: side1,
	})
	if err != nil {
		return nil, err
	}
	if n > 0 {
		return domain.Reject(domain.ClassDuplicate, domain.RuleMirror, "Mirror/self trade detected (same items swapped)."), nil
	}
	return nil, nil
}

// ExactDuplicate rejeita o mesmo fingerprint repetindo o mesmo título dentro da janela.
func (g DuplicateGuard) ExactDuplicate(ctx context.Context, id domain.Identity, t Trade) (*domain.Rejection, error) {
	n, err := g.Log.Count(ctx, domain.Query{
		Since:       g.now().Add(-orDefault(g.ExactWindow, DefaultExactWindow)),
		Fingerprint: id.Fingerprint,
		Title:       t.Title,
	})
	if err != nil {
		return nil, err
	}
	if n > 0 {
		return domain.Reject(domain.ClassDuplicate, domain.RuleExactDuplicate, "Duplicate trade detected."), nil
	}
	return nil, nil
}

// RepeatedContent pega spam distribuído: o mesmo título, com os dois lados preenchidos,
// aparecendo RepeatLimit vezes ou mais na janela, de qualquer identidade.
// A tentativa atual conta como uma das ocorrências quando também tem os dois lados.
func (g DuplicateGuard) RepeatedContent(ctx context.Context, t Trade) (*domain.Rejection, error) {
	limit := g.RepeatLimit
	if limit <= 0 {
		limit = DefaultRepeatLimit
	}
	if len(t.Side1) > 0 && len(t.Side2) > 0 {
		limit--
	}

	n, err := g.Log.Count(ctx, domain.Query{
		Since:             g.now().Add(-orDefault(g.RepeatWindow, DefaultRepeatWindow)),
		Title:             t.Title,
		BothSidesNonEmpty: true,
	})
	if err != nil {
		return nil, err
	}
	if n >= limit {
		rej := domain.Reject(domain.ClassDuplicate, domain.RuleRepeatedContent, "Duplicate trade spam detected.")
		rej.RetryAfter = orDefault(g.RepeatWindow, DefaultRepeatWindow)
		return rej, nil
	}
	return nil, nil
}
