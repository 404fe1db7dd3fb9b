package application

import (
	"context"
	"time"

	"trade-admission/admission/domain"

	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"
)

// Ceilings são os tetos por janela. Teto <= 0 desliga o contador.
// Os de endereço são mais apertados: endereço é mais difícil de rotacionar.
type Ceilings struct {
	AddressMinute     int64
	AddressHour       int64
	FingerprintMinute int64
	FingerprintHour   int64
}

func DefaultCeilings() Ceilings {
	return Ceilings{
		AddressMinute:     5,
		AddressHour:       50,
		FingerprintMinute: 60,
		FingerprintHour:   600,
	}
}

// DefaultCounterTTL é a retenção dos contadores, qualquer que seja a janela.
const DefaultCounterTTL = 48 * time.Hour

// RateLimiter avalia os quatro contadores de janela de uma tentativa.
//
// Todos os contadores são incrementados antes da comparação, mesmo que a
// tentativa vá ser rejeitada: tentativas repetidas continuam custando.
// Falha do store em um incremento abre (fail-open) só aquele contador.
type RateLimiter struct {
	Counters domain.CounterStore
	Ceilings Ceilings
	TTL      time.Duration
	Now      func() time.Time
	Logger   zerolog.Logger
}

type counterCheck struct {
	rule    domain.Rule
	subject string
	bucket  domain.BucketKey
	ceiling int64
	message string
}

// checks retorna os contadores na ordem de comparação.
func (l RateLimiter) checks(id domain.Identity, now time.Time) []counterCheck {
	return []counterCheck{
		{
			rule:    domain.RuleAddressMinute,
			subject: id.Address,
			bucket:  domain.BucketAt(domain.SubjectAddress, domain.WindowMinute, now),
			ceiling: l.Ceilings.AddressMinute,
			message: "Too many requests from this IP (minute).",
		},
		{
			rule:    domain.RuleAddressHour,
			subject: id.Address,
			bucket:  domain.BucketAt(domain.SubjectAddress, domain.WindowHour, now),
			ceiling: l.Ceilings.AddressHour,
			message: "Too many requests from this IP (hour).",
		},
		{
			rule:    domain.RuleFingerprintMinute,
			subject: id.Fingerprint,
			bucket:  domain.BucketAt(domain.SubjectFingerprint, domain.WindowMinute, now),
			ceiling: l.Ceilings.FingerprintMinute,
			message: "Too many requests (minute cap).",
		},
		{
			rule:    domain.RuleFingerprintHour,
			subject: id.Fingerprint,
			bucket:  domain.BucketAt(domain.SubjectFingerprint, domain.WindowHour, now),
			ceiling: l.Ceilings.FingerprintHour,
			message: "Too many requests (hour cap).",
		},
	}
}

// Check incrementa os contadores e retorna a primeira rejeição na ordem
// address-minute -> address-hour -> fingerprint-minute -> fingerprint-hour.
func (l RateLimiter) Check(ctx context.Context, id domain.Identity) *domain.Rejection {
	if l.Counters == nil {
		return nil
	}
	now := time.Now()
	if l.Now != nil {
		now = l.Now()
	}
	ttl := l.TTL
	if ttl <= 0 {
		ttl = DefaultCounterTTL
	}

	checks := l.checks(id, now)
	counts := make([]int64, len(checks))

	var g errgroup.Group
	for i, c := range checks {
		if c.ceiling <= 0 {
			continue
		}
		g.Go(func() error {
			n, err := l.Counters.IncrementAndGet(ctx, c.subject, c.bucket, ttl)
			if err != nil {
				l.Logger.Warn().Err(err).
					Str("rule", string(c.rule)).
					Str("bucket", c.bucket.String()).
					Msg("counter increment failed, failing open")
				return nil
			}
			counts[i] = n
			return nil
		})
	}
	_ = g.Wait()

	for i, c := range checks {
		if c.ceiling <= 0 {
			continue
		}
		if c.rule == domain.RuleAddressMinute && counts[i] == c.ceiling {
			l.Logger.Warn().Str("address", id.Address).Msg("possible bot near address minute limit")
		}
		if counts[i] > c.ceiling {
			rej := domain.Reject(domain.ClassThrottle, c.rule, c.message)
			rej.Count = int(counts[i])
			rej.Threshold = int(c.ceiling)
			rej.RetryAfter = c.bucket.End().Sub(now)
			return rej
		}
	}
	return nil
}
