package application

import (
	"strings"

	"trade-admission/admission/domain"
)

const (
	// MaxSignatureLen limita quanto da assinatura do cliente entra no fingerprint.
	MaxSignatureLen = 140

	unknownAddress = "0.0.0.0"
)

// IdentityResolver deriva endereço e fingerprint da requisição. Sem estado, sem erros.
type IdentityResolver struct{}

// Resolve combina endereço e assinatura truncada de forma determinística.
// Sem assinatura, o fingerprint degrada para o próprio endereço.
func (IdentityResolver) Resolve(meta domain.RequestMeta) domain.Identity {
	addr := strings.TrimSpace(meta.Address)
	if addr == "" {
		addr = unknownAddress
	}

	id := domain.Identity{
		Address:     addr,
		Fingerprint: addr,
	}
	if sig := truncateRunes(strings.TrimSpace(meta.Signature), MaxSignatureLen); sig != "" {
		id.Fingerprint = addr + "_" + sig
	}

	if acc := meta.Account; acc != nil && strings.TrimSpace(acc.ID) != "" {
		id.AccountID = strings.TrimSpace(acc.ID)
		id.AccountName = strings.TrimSpace(acc.Name)
		id.AccountType = strings.ToLower(strings.TrimSpace(acc.Type))
	}
	return id
}

// truncateRunes corta s em n runas; n <= 0 não corta.
func truncateRunes(s string, n int) string {
	if n <= 0 {
		return s
	}
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n])
}
