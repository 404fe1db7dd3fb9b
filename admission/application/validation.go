package application

import (
	"context"
	"errors"
	"regexp"
	"strings"

	"trade-admission/admission/domain"

	"github.com/shopspring/decimal"
)

// ValidationLimits são os limites de formato dos campos livres.
type ValidationLimits struct {
	MaxDiscordLen     int
	MaxRobloxLen      int
	MaxTitleLen       int
	MaxDescriptionLen int
	TitleItemsPerSide int
}

func DefaultValidationLimits() ValidationLimits {
	return ValidationLimits{
		MaxDiscordLen:     64,
		MaxRobloxLen:      20,
		MaxTitleLen:       120,
		MaxDescriptionLen: 200,
		TitleItemsPerSide: 6,
	}
}

var robloxName = regexp.MustCompile(`^[A-Za-z0-9_.-]+$`)

// TradeRequest é a entrada de SubmitTrade, já separada do transporte.
type TradeRequest struct {
	Side1       []domain.ItemRef
	Side2       []domain.ItemRef
	Title       string
	Description string
	Contacts    domain.ContactHandles
	Meta        domain.RequestMeta
}

// Trade é a troca validada e hidratada pelo catálogo.
type Trade struct {
	Side1       []domain.Item
	Side2       []domain.Item
	Side1Total  decimal.Decimal
	Side2Total  decimal.Decimal
	Verdict     domain.Verdict
	Title       string
	Description string
	Contacts    domain.ContactHandles
}

// Validator é o colaborador de validação de campos que roda antes do core.
// Erro retornado = catálogo indisponível (o Engine falha fechado).
type Validator struct {
	Catalog domain.Catalog
	Limits  ValidationLimits
}

func (v Validator) Validate(ctx context.Context, req TradeRequest) (Trade, *domain.Rejection, error) {
	lim := v.Limits
	contacts := domain.ContactHandles{
		Discord: strings.TrimSpace(req.Contacts.Discord),
		Roblox:  strings.TrimSpace(req.Contacts.Roblox),
	}

	if contacts.Empty() {
		return Trade{}, domain.Reject(domain.ClassValidation, domain.RuleMissingContact,
			"Either Discord or Roblox username is required."), nil
	}
	if contacts.Discord != "" && lim.MaxDiscordLen > 0 && len([]rune(contacts.Discord)) > lim.MaxDiscordLen {
		return Trade{}, domain.Reject(domain.ClassValidation, domain.RuleInvalidDiscord,
			"Discord username invalid or too long."), nil
	}
	if contacts.Roblox != "" && !validRoblox(contacts.Roblox, lim.MaxRobloxLen) {
		return Trade{}, domain.Reject(domain.ClassValidation, domain.RuleInvalidRoblox,
			"Roblox username invalid. No spaces allowed."), nil
	}

	side1, rej, err := v.hydrate(ctx, req.Side1)
	if rej != nil || err != nil {
		return Trade{}, rej, err
	}
	side2, rej, err := v.hydrate(ctx, req.Side2)
	if rej != nil || err != nil {
		return Trade{}, rej, err
	}

	if !hasRealItem(side1) && !hasRealItem(side2) {
		return Trade{}, domain.Reject(domain.ClassValidation, domain.RuleNoRealItem,
			"Add at least one real unit to the trade."), nil
	}

	title := strings.TrimSpace(req.Title)
	if title == "" {
		title = DeriveTitle(side1, side2, lim.TitleItemsPerSide)
	} else if lim.MaxTitleLen > 0 && len([]rune(title)) > lim.MaxTitleLen {
		return Trade{}, domain.Reject(domain.ClassValidation, domain.RuleTitleTooLong,
			"Title is too long."), nil
	}

	t := Trade{
		Side1:       side1,
		Side2:       side2,
		Side1Total:  domain.Total(side1),
		Side2Total:  domain.Total(side2),
		Title:       title,
		Description: truncateRunes(strings.TrimSpace(req.Description), lim.MaxDescriptionLen),
		Contacts:    contacts,
	}
	t.Verdict = domain.VerdictFor(t.Side1Total, t.Side2Total)
	return t, nil, nil
}

// hydrate normaliza e resolve cada item no catálogo; cartas especiais não consultam.
func (v Validator) hydrate(ctx context.Context, refs []domain.ItemRef) ([]domain.Item, *domain.Rejection, error) {
	out := make([]domain.Item, 0, len(refs))
	for _, raw := range refs {
		ref, ok := raw.Normalize()
		if !ok {
			continue
		}

		if domain.IsMetaCard(ref.Name) {
			out = append(out, domain.Item{
				Name:     ref.Name,
				ID:       ref.ID,
				Role:     ref.Role,
				Value:    decimal.Zero,
				Category: domain.CategorySpecial,
			})
			continue
		}

		ci, err := v.Catalog.Resolve(ctx, ref.Name)
		if errors.Is(err, domain.ErrItemNotFound) {
			return nil, domain.Reject(domain.ClassValidation, domain.RuleUnknownItem,
				"Invalid or unknown unit: "+ref.Name), nil
		}
		if err != nil {
			return nil, nil, err
		}

		out = append(out, domain.Item{
			Name:        ci.Name,
			ID:          ref.ID,
			Role:        ref.Role,
			Value:       ci.Value,
			Category:    ci.Category,
			DisplayName: ci.DisplayName,
			Image:       ci.Image,
			Demand:      ci.Demand,
			ShinyType:   ci.ShinyType,
		})
	}
	return out, nil, nil
}

func validRoblox(name string, maxLen int) bool {
	if maxLen > 0 && len(name) > maxLen {
		return false
	}
	return robloxName.MatchString(name)
}

func hasRealItem(items []domain.Item) bool {
	for _, it := range items {
		if !it.Special() {
			return true
		}
	}
	return false
}

// DeriveTitle monta "A, B FOR C" com até perSide nomes por lado.
func DeriveTitle(side1, side2 []domain.Item, perSide int) string {
	n1 := titleNames(side1, perSide)
	n2 := titleNames(side2, perSide)
	if n1 == "" && n2 == "" {
		return "Untitled trade"
	}
	if n1 == "" {
		n1 = "—"
	}
	if n2 == "" {
		n2 = "—"
	}
	return n1 + " FOR " + n2
}

func titleNames(items []domain.Item, perSide int) string {
	names := make([]string, 0, len(items))
	for _, it := range items {
		if perSide > 0 && len(names) == perSide {
			break
		}
		names = append(names, it.Name)
	}
	return strings.Join(names, ", ")
}
