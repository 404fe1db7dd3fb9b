package application

import (
	"context"
	"time"

	"trade-admission/admission/domain"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

// Nomes dos estágios, na ordem do pipeline.
const (
	StageValidate        = "validate"
	StageIdentify        = "identify"
	StageRateLimit       = "rate-limit"
	StageSelfTrade       = "self-trade"
	StageMirror          = "mirror"
	StageExactDuplicate  = "exact-duplicate"
	StageRepeatedContent = "repeated-content"
	StageQuota           = "quota"
	StagePersist         = "persist"
)

const (
	DefaultStageTimeout  = 2 * time.Second
	defaultNotifyTimeout = 5 * time.Second
)

// Attempt é o estado de uma tentativa enquanto atravessa o pipeline.
// Cada estágio lê o que os anteriores preencheram.
type Attempt struct {
	Request  TradeRequest
	At       time.Time
	Trade    Trade
	Identity domain.Identity

	Submission *domain.Submission
}

// Stage é um passo do pipeline. Rejeição nil = passa.
// Erro = falha de infraestrutura; o Engine falha fechado e responde "unavailable".
type Stage interface {
	Name() string
	Evaluate(ctx context.Context, a *Attempt) (*domain.Rejection, error)
}

type stageFunc struct {
	name string
	fn   func(ctx context.Context, a *Attempt) (*domain.Rejection, error)
}

func (s stageFunc) Name() string { return s.name }

func (s stageFunc) Evaluate(ctx context.Context, a *Attempt) (*domain.Rejection, error) {
	return s.fn(ctx, a)
}

// Result é a resposta de SubmitTrade.
type Result struct {
	Accepted     bool
	SubmissionID string
	Submission   *domain.Submission
	Rejection    *domain.Rejection
	// Stage é o estágio que rejeitou (vazio quando aceito).
	Stage string
}

// Policy agrupa todos os tetos e janelas configuráveis.
type Policy struct {
	Ceilings     Ceilings
	CounterTTL   time.Duration
	Quota        QuotaPolicy
	MirrorWindow time.Duration
	ExactWindow  time.Duration
	RepeatWindow time.Duration
	RepeatLimit  int
	Validation   ValidationLimits
	StageTimeout time.Duration
}

func DefaultPolicy() Policy {
	return Policy{
		Ceilings:     DefaultCeilings(),
		CounterTTL:   DefaultCounterTTL,
		Quota:        DefaultQuotaPolicy(),
		MirrorWindow: DefaultMirrorWindow,
		ExactWindow:  DefaultExactWindow,
		RepeatWindow: DefaultRepeatWindow,
		RepeatLimit:  DefaultRepeatLimit,
		Validation:   DefaultValidationLimits(),
		StageTimeout: DefaultStageTimeout,
	}
}

// Deps são os colaboradores externos do Engine.
// Notifier e Stats são opcionais.
type Deps struct {
	Counters domain.CounterStore
	Log      domain.SubmissionLog
	Catalog  domain.Catalog
	Notifier domain.Notifier
	Stats    domain.StatsStore
	Now      func() time.Time
	Logger   zerolog.Logger
}

// Engine é o agregador de decisão: roda os estágios em ordem fixa e para na
// primeira rejeição. Não guarda estado entre requisições; todo estado
// compartilhado vive no CounterStore e no SubmissionLog.
type Engine struct {
	Validator   Validator
	Resolver    IdentityResolver
	RateLimiter RateLimiter
	Duplicates  DuplicateGuard
	Quota       QuotaEnforcer
	Log         domain.SubmissionLog
	Notifier    domain.Notifier
	Stats       domain.StatsStore

	StageTimeout time.Duration
	Now          func() time.Time
	NewID        func() string
	Logger       zerolog.Logger
}

func NewEngine(d Deps, p Policy) *Engine {
	now := d.Now
	if now == nil {
		now = time.Now
	}
	return &Engine{
		Validator: Validator{Catalog: d.Catalog, Limits: p.Validation},
		RateLimiter: RateLimiter{
			Counters: d.Counters,
			Ceilings: p.Ceilings,
			TTL:      p.CounterTTL,
			Now:      now,
			Logger:   d.Logger,
		},
		Duplicates: DuplicateGuard{
			Log:          d.Log,
			MirrorWindow: p.MirrorWindow,
			ExactWindow:  p.ExactWindow,
			RepeatWindow: p.RepeatWindow,
			RepeatLimit:  p.RepeatLimit,
			Now:          now,
		},
		Quota:        QuotaEnforcer{Log: d.Log, Policy: p.Quota, Now: now},
		Log:          d.Log,
		Notifier:     d.Notifier,
		Stats:        d.Stats,
		StageTimeout: p.StageTimeout,
		Now:          now,
		NewID:        uuid.NewString,
		Logger:       d.Logger,
	}
}

// Stages retorna o pipeline na ordem de avaliação.
func (e *Engine) Stages() []Stage {
	return []Stage{
		stageFunc{StageValidate, func(ctx context.Context, a *Attempt) (*domain.Rejection, error) {
			t, rej, err := e.Validator.Validate(ctx, a.Request)
			a.Trade = t
			return rej, err
		}},
		stageFunc{StageIdentify, func(_ context.Context, a *Attempt) (*domain.Rejection, error) {
			a.Identity = e.Resolver.Resolve(a.Request.Meta)
			return nil, nil
		}},
		stageFunc{StageRateLimit, func(ctx context.Context, a *Attempt) (*domain.Rejection, error) {
			return e.RateLimiter.Check(ctx, a.Identity), nil
		}},
		stageFunc{StageSelfTrade, func(_ context.Context, a *Attempt) (*domain.Rejection, error) {
			return e.Duplicates.SelfTrade(a.Trade), nil
		}},
		stageFunc{StageMirror, func(ctx context.Context, a *Attempt) (*domain.Rejection, error) {
			return e.Duplicates.Mirror(ctx, a.Trade)
		}},
		stageFunc{StageExactDuplicate, func(ctx context.Context, a *Attempt) (*domain.Rejection, error) {
			return e.Duplicates.ExactDuplicate(ctx, a.Identity, a.Trade)
		}},
		stageFunc{StageRepeatedContent, func(ctx context.Context, a *Attempt) (*domain.Rejection, error) {
			return e.Duplicates.RepeatedContent(ctx, a.Trade)
		}},
		stageFunc{StageQuota, func(ctx context.Context, a *Attempt) (*domain.Rejection, error) {
			return e.Quota.Check(ctx, a.Identity, a.Trade.Contacts)
		}},
		stageFunc{StagePersist, e.persist},
	}
}

func (e *Engine) persist(ctx context.Context, a *Attempt) (*domain.Rejection, error) {
	s := newSubmission(a)
	if e.NewID != nil {
		s.ID = e.NewID()
	}
	id, err := e.Log.Insert(ctx, s)
	if err != nil {
		return nil, err
	}
	s.ID = id
	a.Submission = s
	return nil, nil
}

func newSubmission(a *Attempt) *domain.Submission {
	t, id := a.Trade, a.Identity
	s := &domain.Submission{
		Title:       t.Title,
		Description: t.Description,
		Side1:       t.Side1,
		Side2:       t.Side2,
		Side1Total:  t.Side1Total,
		Side2Total:  t.Side2Total,
		Verdict:     t.Verdict,
		Discord:     t.Contacts.Discord,
		Roblox:      t.Contacts.Roblox,
		Address:     id.Address,
		Fingerprint: id.Fingerprint,
		UserAgent:   truncateRunes(a.Request.Meta.Signature, 200),
		CreatedAt:   a.At,
	}
	if id.Registered() {
		s.OwnerID = id.AccountID
		s.OwnerName = id.AccountName
		s.AccountType = id.AccountType
	}
	return s
}

// SubmitTrade decide aceitar ou rejeitar uma tentativa.
//
// Uma aceitação é gravada uma única vez; notificação e estatística depois disso
// são best-effort e nunca desfazem o anúncio.
func (e *Engine) SubmitTrade(ctx context.Context, req TradeRequest) Result {
	a := &Attempt{Request: req, At: e.now()}

	for _, st := range e.Stages() {
		rej, err := e.run(ctx, st, a)
		if err != nil {
			e.Logger.Error().Err(err).Str("stage", st.Name()).Msg("admission stage failed, rejecting")
			rej = domain.Unavailable()
		}
		if rej != nil {
			e.record(ctx, a, rej)
			e.Logger.Info().
				Str("stage", st.Name()).
				Str("class", string(rej.Class)).
				Str("rule", string(rej.Rule)).
				Str("address", a.Identity.Address).
				Msg("submission rejected")
			return Result{Rejection: rej, Stage: st.Name()}
		}
	}

	e.record(ctx, a, nil)
	e.notify(ctx, *a.Submission)
	e.Logger.Info().
		Str("id", a.Submission.ID).
		Bool("registered", a.Identity.Registered()).
		Msg("submission accepted")

	return Result{
		Accepted:     true,
		SubmissionID: a.Submission.ID,
		Submission:   a.Submission,
	}
}

func (e *Engine) run(ctx context.Context, st Stage, a *Attempt) (*domain.Rejection, error) {
	timeout := e.StageTimeout
	if timeout <= 0 {
		timeout = DefaultStageTimeout
	}
	sctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()
	return st.Evaluate(sctx, a)
}

func (e *Engine) now() time.Time {
	if e.Now != nil {
		return e.Now()
	}
	return time.Now()
}

func (e *Engine) notify(ctx context.Context, s domain.Submission) {
	if e.Notifier == nil {
		return
	}
	nctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), defaultNotifyTimeout)
	defer cancel()
	if err := e.Notifier.SubmissionAccepted(nctx, s); err != nil {
		e.Logger.Warn().Err(err).Str("id", s.ID).Msg("accepted submission notification failed")
	}
}

func (e *Engine) record(ctx context.Context, a *Attempt, rej *domain.Rejection) {
	if e.Stats == nil {
		return
	}
	ev := domain.StatsEvent{
		Key:     a.Identity.Address,
		Allowed: rej == nil,
		Source:  domain.SourceAdmission,
		At:      a.At,
	}
	if rej != nil {
		ev.Class = rej.Class
		ev.Rule = rej.Rule
	}
	if err := e.Stats.Record(ctx, ev); err != nil {
		e.Logger.Debug().Err(err).Msg("stats record failed")
	}
}
