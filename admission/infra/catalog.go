package infra

import (
	"context"
	"fmt"
	"os"
	"strings"
	"sync"

	"trade-admission/admission/domain"
)

// MemoryCatalog resolve itens a partir de um mapa em memória (nome normalizado -> item).
type MemoryCatalog struct {
	mu    sync.RWMutex
	items map[string]domain.CatalogItem
}

func NewMemoryCatalog(items ...domain.CatalogItem) *MemoryCatalog {
	c := &MemoryCatalog{items: make(map[string]domain.CatalogItem, len(items))}
	c.Put(items...)
	return c
}

// LoadCatalogFile lê um array JSON de itens (mesmo formato exportado pela planilha de valores).
func LoadCatalogFile(path string) (*MemoryCatalog, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read catalog %q: %w", path, err)
	}

	var items []domain.CatalogItem
	if err := json.Unmarshal(raw, &items); err != nil {
		return nil, fmt.Errorf("decode catalog %q: %w", path, err)
	}
	return NewMemoryCatalog(items...), nil
}

var _ domain.Catalog = (*MemoryCatalog)(nil)

func (c *MemoryCatalog) Put(items ...domain.CatalogItem) {
	c.mu.Lock()
	defer c.mu.Unlock()
	for _, it := range items {
		it.Name = strings.TrimSpace(it.Name)
		if it.Name == "" {
			continue
		}
		c.items[domain.FoldName(it.Name)] = it
	}
}

func (c *MemoryCatalog) Resolve(ctx context.Context, name string) (domain.CatalogItem, error) {
	if err := ctx.Err(); err != nil {
		return domain.CatalogItem{}, err
	}

	c.mu.RLock()
	defer c.mu.RUnlock()

	it, ok := c.items[domain.FoldName(name)]
	if !ok {
		return domain.CatalogItem{}, domain.ErrItemNotFound
	}
	return it, nil
}

func (c *MemoryCatalog) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.items)
}
