package domain

import (
	"context"
	"errors"

	"github.com/shopspring/decimal"
)

var ErrItemNotFound = errors.New("item not found")

// CatalogItem é a entrada canônica do catálogo de itens.
type CatalogItem struct {
	Name        string          `json:"Name"`
	Value       decimal.Decimal `json:"Value"`
	Category    string          `json:"Category"`
	DisplayName string          `json:"In Game Name"`
	Image       string          `json:"Image"`
	Demand      string          `json:"Demand"`
	ShinyType   string          `json:"ShinyType"`
}

// Catalog resolve nomes de item (case-insensitive, nome exato).
// Retorna ErrItemNotFound quando o item não existe.
type Catalog interface {
	Resolve(ctx context.Context, name string) (CatalogItem, error)
}
