// Package catalog looks up the price of referenced records.
package catalog

import (
	"context"
	"encoding/json"
	"fmt"
	"regexp"
	"sync"

	"commerce-basket/internal/domain"
	"github.com/shopspring/decimal"
)

// PriceLookup returns the unit price of the record a reference points at.
// A missing record is domain.ErrNotFound; a record without the configured
// price field is priced at zero.
type PriceLookup interface {
	Price(ctx context.Context, ref domain.TargetRef) (decimal.Decimal, error)
}

var identifierRe = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]*$`)

func validIdentifier(name string) bool {
	return identifierRe.MatchString(name)
}

// Memory holds catalog records as field maps keyed by type and id.
type Memory struct {
	mu      sync.RWMutex
	field   string
	records map[domain.TargetRef]map[string]any
}

func NewMemory(priceField string) *Memory {
	if priceField == "" {
		priceField = "price"
	}
	return &Memory{field: priceField, records: make(map[domain.TargetRef]map[string]any)}
}

// Put stores (or replaces) the record behind ref.
func (m *Memory) Put(ref domain.TargetRef, fields map[string]any) {
	cp := make(map[string]any, len(fields))
	for k, v := range fields {
		cp[k] = v
	}
	m.mu.Lock()
	m.records[ref] = cp
	m.mu.Unlock()
}

// PutProduct stores p under the product type with its price in the price field.
func (m *Memory) PutProduct(p domain.Product) {
	m.Put(p.Ref(), map[string]any{
		m.field: p.Price,
		"name":  p.Name,
		"sku":   p.SKU,
	})
}

func (m *Memory) Price(_ context.Context, ref domain.TargetRef) (decimal.Decimal, error) {
	m.mu.RLock()
	rec, ok := m.records[ref]
	m.mu.RUnlock()
	if !ok {
		return decimal.Zero, fmt.Errorf("catalog record %s: %w", ref, domain.ErrNotFound)
	}
	raw, ok := rec[m.field]
	if !ok || raw == nil {
		return decimal.Zero, nil
	}
	return toDecimal(raw)
}

func toDecimal(v any) (decimal.Decimal, error) {
	switch x := v.(type) {
	case decimal.Decimal:
		return x, nil
	case *decimal.Decimal:
		if x == nil {
			return decimal.Zero, nil
		}
		return *x, nil
	case string:
		d, err := decimal.NewFromString(x)
		if err != nil {
			return decimal.Zero, fmt.Errorf("price %q: %w", x, err)
		}
		return d, nil
	case json.Number:
		return toDecimal(x.String())
	case int:
		return decimal.NewFromInt(int64(x)), nil
	case int32:
		return decimal.NewFromInt32(x), nil
	case int64:
		return decimal.NewFromInt(x), nil
	case float64:
		return decimal.NewFromFloat(x), nil
	case float32:
		return decimal.NewFromFloat32(x), nil
	default:
		return decimal.Zero, fmt.Errorf("unsupported price value of type %T", v)
	}
}
