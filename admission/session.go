package admission

import (
	"net/http"
	"strings"

	"trade-admission/admission/domain"
)

const (
	HeaderAccountID   = "X-Account-Id"
	HeaderAccountName = "X-Account-Name"
	HeaderAccountType = "X-Account-Type"
)

// SessionFunc devolve a conta autenticada da requisição, ou nil para anônimo.
// A autenticação em si acontece fora deste serviço.
type SessionFunc func(r *http.Request) *domain.Account

// HeaderSession lê a conta dos headers X-Account-* postos por um proxy de auth.
// Sem trust, todo pedido é anônimo: o cliente poderia forjar os headers.
func HeaderSession(trust bool) SessionFunc {
	return func(r *http.Request) *domain.Account {
		if !trust {
			return nil
		}
		id := strings.TrimSpace(r.Header.Get(HeaderAccountID))
		if id == "" {
			return nil
		}
		return &domain.Account{
			ID:   id,
			Name: strings.TrimSpace(r.Header.Get(HeaderAccountName)),
			Type: strings.TrimSpace(r.Header.Get(HeaderAccountType)),
		}
	}
}
