package application

import (
	"context"
	"fmt"
	"time"

	"trade-admission/admission/domain"
)

// QuotaPolicy define os dois regimes de cota, mutuamente exclusivos.
type QuotaPolicy struct {
	// Anônimos: teto na janela móvel de 7 dias.
	AnonymousWeeklyCap int
	// ResumeThreshold é informativo: diz na mensagem quando o usuário volta a postar.
	// O portão de verdade é AnonymousWeeklyCap.
	ResumeThreshold int
	AnonymousWindow time.Duration

	// Registrados: teto de anúncios ativos, sem decaimento no tempo.
	RegisteredActiveCap int
}

func DefaultQuotaPolicy() QuotaPolicy {
	return QuotaPolicy{
		AnonymousWeeklyCap:  14,
		ResumeThreshold:     12,
		AnonymousWindow:     domain.AnonymousTTL,
		RegisteredActiveCap: 20,
	}
}

// QuotaState é a visão derivada da cota de um submissor. Não é armazenada.
type QuotaState struct {
	Registered      bool
	Count           int
	Cap             int
	ResumeThreshold int
	// RetryAfter: quanto falta para cair abaixo do ResumeThreshold (só anônimos).
	RetryAfter time.Duration
}

func (s QuotaState) Exceeded() bool { return s.Cap > 0 && s.Count >= s.Cap }

// QuotaEnforcer aplica o regime do submissor. Só lê o log: duas leituras
// seguidas sem escrita no meio retornam o mesmo estado.
type QuotaEnforcer struct {
	Log    domain.SubmissionLog
	Policy QuotaPolicy
	Now    func() time.Time
}

func (q QuotaEnforcer) now() time.Time {
	if q.Now != nil {
		return q.Now()
	}
	return time.Now()
}

// State calcula a visão de cota para a identidade e contatos informados.
func (q QuotaEnforcer) State(ctx context.Context, id domain.Identity, contacts domain.ContactHandles) (QuotaState, error) {
	if id.Registered() {
		n, err := q.Log.CountActiveByOwner(ctx, id.AccountID)
		if err != nil {
			return QuotaState{}, err
		}
		return QuotaState{Registered: true, Count: n, Cap: q.Policy.RegisteredActiveCap}, nil
	}

	window := orDefault(q.Policy.AnonymousWindow, domain.AnonymousTTL)
	now := q.now()
	subs, err := q.Log.Find(ctx, domain.Query{
		Since: now.Add(-window),
		AnyOf: domain.Identifiers{
			Fingerprint: id.Fingerprint,
			Address:     id.Address,
			Discord:     contacts.Discord,
			Roblox:      contacts.Roblox,
		},
	})
	if err != nil {
		return QuotaState{}, err
	}

	st := QuotaState{
		Count:           len(subs),
		Cap:             q.Policy.AnonymousWeeklyCap,
		ResumeThreshold: q.Policy.ResumeThreshold,
	}

	// subs vem do mais novo para o mais antigo: para ficar abaixo do threshold
	// precisam sair da janela os (count - threshold + 1) mais antigos.
	if leave := st.Count - st.ResumeThreshold + 1; leave > 0 && st.ResumeThreshold >= 0 {
		if leave > st.Count {
			leave = st.Count
		}
		pivot := subs[st.Count-leave]
		if wait := pivot.CreatedAt.Add(window).Sub(now); wait > 0 {
			st.RetryAfter = wait
		}
	}
	return st, nil
}

// Check rejeita quando o regime do submissor está no teto.
func (q QuotaEnforcer) Check(ctx context.Context, id domain.Identity, contacts domain.ContactHandles) (*domain.Rejection, error) {
	st, err := q.State(ctx, id, contacts)
	if err != nil {
		return nil, err
	}
	if !st.Exceeded() {
		return nil, nil
	}

	if st.Registered {
		rej := domain.Reject(domain.ClassQuota, domain.RuleRegisteredActiveCap,
			fmt.Sprintf("You have reached the maximum of %d active trade ads.", st.Cap))
		rej.Count = st.Count
		rej.Threshold = st.Cap
		return rej, nil
	}

	rej := domain.Reject(domain.ClassQuota, domain.RuleAnonymousWeeklyCap,
		fmt.Sprintf("User trade limit reached (%d in the last 7 days). You can post again once your active trades drop below %d.",
			st.Count, st.ResumeThreshold))
	rej.Count = st.Count
	rej.Threshold = st.ResumeThreshold
	rej.RetryAfter = st.RetryAfter
	return rej, nil
}
