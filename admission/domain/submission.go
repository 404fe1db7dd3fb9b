package domain

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

var ErrSubmissionNotFound = errors.New("submission not found")

// AnonymousTTL é por quanto tempo um anúncio anônimo vive no log.
const AnonymousTTL = 7 * 24 * time.Hour

type Verdict string

const (
	VerdictFair Verdict = "Fair Trade"
	VerdictWin  Verdict = "Win for Advertiser"
	VerdictLoss Verdict = "Loss for Advertiser"
)

// VerdictFor compara os totais do ponto de vista de quem anuncia (lado 1).
func VerdictFor(side1, side2 decimal.Decimal) Verdict {
	switch side1.Cmp(side2) {
	case 0:
		return VerdictFair
	case -1:
		return VerdictWin
	default:
		return VerdictLoss
	}
}

// Submission é um anúncio de troca aceito.
//
// Depois de aceito só Description muda (pelo dono) e a remoção é feita pelo dono
// ou por purge administrativo.
type Submission struct {
	ID          string `json:"id"`
	Title       string `json:"title"`
	Description string `json:"description"`

	Side1      []Item          `json:"player1"`
	Side2      []Item          `json:"player2"`
	Side1Total decimal.Decimal `json:"p1Total"`
	Side2Total decimal.Decimal `json:"p2Total"`
	Verdict    Verdict         `json:"verdict"`

	Discord string `json:"discord"`
	Roblox  string `json:"roblox"`

	Address     string `json:"ip,omitempty"`
	Fingerprint string `json:"fingerprint,omitempty"`
	UserAgent   string `json:"ua,omitempty"`

	OwnerID     string `json:"ownerId,omitempty"`
	OwnerName   string `json:"ownerName,omitempty"`
	AccountType string `json:"accountType,omitempty"`

	CreatedAt time.Time `json:"createdAt"`
}

// Anonymous é verdadeiro quando não há dono; só esses expiram.
func (s Submission) Anonymous() bool { return s.OwnerID == "" }

// ExpiresAt retorna o instante de expiração, ou zero para anúncios com dono.
func (s Submission) ExpiresAt() time.Time {
	if !s.Anonymous() {
		return time.Time{}
	}
	return s.CreatedAt.Add(AnonymousTTL)
}

// Public remove os campos de identidade de rede antes de expor a terceiros.
func (s Submission) Public() Submission {
	s.Address = ""
	s.Fingerprint = ""
	s.UserAgent = ""
	return s
}

// Identifiers são identidades em OR usadas na contagem de cota anônima.
type Identifiers struct {
	Fingerprint string
	Address     string
	Discord     string
	Roblox      string
}

func (ids Identifiers) Empty() bool {
	return ids.Fingerprint == "" && ids.Address == "" && ids.Discord == "" && ids.Roblox == ""
}

func (ids Identifiers) match(s Submission) bool {
	return (ids.Fingerprint != "" && s.Fingerprint == ids.Fingerprint) ||
		(ids.Address != "" && s.Address == ids.Address) ||
		(ids.Discord != "" && s.Discord == ids.Discord) ||
		(ids.Roblox != "" && s.Roblox == ids.Roblox)
}

// Query é o filtro do log de submissões. Campos não-zero se combinam em AND.
type Query struct {
	// Since é o limite inferior inclusivo de CreatedAt.
	Since time.Time

	Title       string
	Fingerprint string
	OwnerID     string

	// AnyOf casa se qualquer identificador não vazio bater.
	AnyOf Identifiers

	// Side1Any/Side2Any recebem nomes já normalizados (FoldName).
	Side1Any []string
	Side2Any []string

	BothSidesNonEmpty bool

	// Search é substring sem diferenciar maiúsculas em título e descrição.
	Search string

	Skip  int
	Limit int
}

// Matches define a semântica do filtro; todas as implementações de SubmissionLog
// devem concordar com ela.
func (q Query) Matches(s Submission) bool {
	if !q.Since.IsZero() && s.CreatedAt.Before(q.Since) {
		return false
	}
	if q.Title != "" && s.Title != q.Title {
		return false
	}
	if q.Fingerprint != "" && s.Fingerprint != q.Fingerprint {
		return false
	}
	if q.OwnerID != "" && s.OwnerID != q.OwnerID {
		return false
	}
	if !q.AnyOf.Empty() && !q.AnyOf.match(s) {
		return false
	}
	if len(q.Side1Any) > 0 && !containsAny(FoldedNames(s.Side1), q.Side1Any) {
		return false
	}
	if len(q.Side2Any) > 0 && !containsAny(FoldedNames(s.Side2), q.Side2Any) {
		return false
	}
	if q.BothSidesNonEmpty && (len(s.Side1) == 0 || len(s.Side2) == 0) {
		return false
	}
	if q.Search != "" {
		needle := strings.ToLower(q.Search)
		if !strings.Contains(strings.ToLower(s.Title), needle) &&
			!strings.Contains(strings.ToLower(s.Description), needle) {
			return false
		}
	}
	return true
}

func containsAny(have, want []string) bool {
	for _, h := range have {
		for _, w := range want {
			if h == w {
				return true
			}
		}
	}
	return false
}

// SubmissionLog é o log durável de anúncios aceitos.
//
// Find retorna do mais novo para o mais antigo e respeita Skip/Limit (Limit 0 = sem limite).
// Count ignora Skip/Limit. UpdateDescription e Delete só afetam registros do ownerID
// informado e retornam ErrSubmissionNotFound caso contrário.
// Anúncios anônimos somem sozinhos depois de AnonymousTTL.
type SubmissionLog interface {
	Find(ctx context.Context, q Query) ([]Submission, error)
	Count(ctx context.Context, q Query) (int, error)
	Insert(ctx context.Context, s *Submission) (string, error)
	CountActiveByOwner(ctx context.Context, ownerID string) (int, error)
	Get(ctx context.Context, id string) (Submission, error)
	UpdateDescription(ctx context.Context, id, ownerID, description string) error
	Delete(ctx context.Context, id, ownerID string) error
	Purge(ctx context.Context) error
}

// Page aplica Skip/Limit sobre um resultado já ordenado.
func Page(subs []Submission, skip, limit int) []Submission {
	if skip > 0 {
		if skip >= len(subs) {
			return nil
		}
		subs = subs[skip:]
	}
	if limit > 0 && len(subs) > limit {
		subs = subs[:limit]
	}
	return subs
}
