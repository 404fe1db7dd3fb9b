package domain

import (
	"sort"
	"strings"

	"github.com/shopspring/decimal"
)

const (
	RoleOffer = "offer"

	CategorySpecial = "Special"
)

// Valores e totais saem em JSON como número, como os clientes esperam.
func init() {
	decimal.MarshalJSONWithoutQuotes = true
}

// metaCards são cartas especiais que não existem no catálogo.
var metaCards = map[string]struct{}{
	"offers":     {},
	"upgrades":   {},
	"downgrades": {},
	"bundles":    {},
	"gamepasses": {},
}

// ItemRef é um item como chega do cliente, antes de validação.
type ItemRef struct {
	Name string `json:"Name"`
	ID   string `json:"Id"`
	Role string `json:"TradeRole"`
}

// Normalize aplica as regras de normalização do esquema: trim em todos os campos,
// papel em minúsculas com padrão "offer". ok=false quando o nome é vazio.
func (r ItemRef) Normalize() (ItemRef, bool) {
	out := ItemRef{
		Name: strings.TrimSpace(r.Name),
		ID:   strings.TrimSpace(r.ID),
		Role: strings.ToLower(strings.TrimSpace(r.Role)),
	}
	if out.Role == "" {
		out.Role = RoleOffer
	}
	return out, out.Name != ""
}

// IsMetaCard diz se o nome é uma carta especial (sem lookup no catálogo).
func IsMetaCard(name string) bool {
	_, ok := metaCards[FoldName(name)]
	return ok
}

// Item é um item hidratado pelo catálogo.
type Item struct {
	Name        string          `json:"Name"`
	ID          string          `json:"Id,omitempty"`
	Role        string          `json:"TradeRole"`
	Value       decimal.Decimal `json:"Value"`
	Category    string          `json:"Category"`
	DisplayName string          `json:"In Game Name,omitempty"`
	Image       string          `json:"Image,omitempty"`
	Demand      string          `json:"Demand,omitempty"`
	ShinyType   string          `json:"ShinyType,omitempty"`
}

func (it Item) Special() bool {
	return strings.Contains(strings.ToLower(it.Category), strings.ToLower(CategorySpecial))
}

// FoldName é a forma de comparação de nomes de item (trim + case-fold).
func FoldName(name string) string {
	return strings.ToLower(strings.TrimSpace(name))
}

// FoldedNames retorna os nomes normalizados de um lado, sem vazios.
func FoldedNames(items []Item) []string {
	out := make([]string, 0, len(items))
	for _, it := range items {
		if n := FoldName(it.Name); n != "" {
			out = append(out, n)
		}
	}
	return out
}

// NamesSignature é a assinatura de um lado: nomes normalizados, ordenados, unidos por "|".
func NamesSignature(items []Item) string {
	names := FoldedNames(items)
	sort.Strings(names)
	return strings.Join(names, "|")
}

// Total soma os valores de um lado.
func Total(items []Item) decimal.Decimal {
	sum := decimal.Zero
	for _, it := range items {
		sum = sum.Add(it.Value)
	}
	return sum
}
