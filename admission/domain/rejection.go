package domain

import (
	"errors"
	"time"
)

// ErrStoreUnavailable marca falhas de infraestrutura (store fora do ar, timeout).
var ErrStoreUnavailable = errors.New("store unavailable")

// Class é a classe de rejeição; o cliente decide se/quando tentar de novo por ela.
type Class string

const (
	ClassValidation  Class = "validation"
	ClassThrottle    Class = "throttle"
	ClassDuplicate   Class = "duplicate"
	ClassQuota       Class = "quota"
	ClassUnavailable Class = "unavailable"
)

// Rule identifica a regra específica que rejeitou.
type Rule string

const (
	RuleAddressMinute     Rule = "address-minute"
	RuleAddressHour       Rule = "address-hour"
	RuleFingerprintMinute Rule = "fingerprint-minute"
	RuleFingerprintHour   Rule = "fingerprint-hour"

	RuleSelfTrade       Rule = "self-trade"
	RuleMirror          Rule = "mirror"
	RuleExactDuplicate  Rule = "exact-duplicate"
	RuleRepeatedContent Rule = "repeated-content"

	RuleAnonymousWeeklyCap  Rule = "anonymous-weekly-cap"
	RuleRegisteredActiveCap Rule = "registered-active-cap"

	RuleMalformedBody    Rule = "malformed-body"
	RuleMissingContact   Rule = "missing-contact"
	RuleInvalidDiscord   Rule = "invalid-discord"
	RuleInvalidRoblox    Rule = "invalid-roblox"
	RuleUnknownItem      Rule = "unknown-item"
	RuleNoRealItem       Rule = "no-real-item"
	RuleTitleTooLong     Rule = "title-too-long"
	RuleStoreUnavailable Rule = "store-unavailable"

	RuleFlood Rule = "flood"
)

// Rejection é o motivo tipado de uma recusa. Nunca carrega dados de outros usuários.
type Rejection struct {
	Class   Class
	Rule    Rule
	Message string

	// Count/Threshold são preenchidos nas rejeições de cota.
	Count     int
	Threshold int

	// RetryAfter é uma dica; 0 significa sem recomendação.
	RetryAfter time.Duration
}

func (r *Rejection) Error() string {
	return string(r.Class) + "/" + string(r.Rule) + ": " + r.Message
}

// Retryable: só falhas de infraestrutura podem ser repetidas de imediato.
func (r *Rejection) Retryable() bool { return r.Class == ClassUnavailable }

func Reject(class Class, rule Rule, msg string) *Rejection {
	return &Rejection{Class: class, Rule: rule, Message: msg}
}

// Unavailable é a rejeição genérica para estágios que falham fechados.
func Unavailable() *Rejection {
	return &Rejection{
		Class:      ClassUnavailable,
		Rule:       RuleStoreUnavailable,
		Message:    "Service temporarily unavailable, try again later.",
		RetryAfter: time.Second,
	}
}

// AsRejection extrai um *Rejection de err, se houver.
func AsRejection(err error) (*Rejection, bool) {
	var rej *Rejection
	if errors.As(err, &rej) {
		return rej, true
	}
	return nil, false
}
