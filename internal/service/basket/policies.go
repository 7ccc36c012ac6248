package basket

import (
	"context"
	"fmt"

	"commerce-basket/internal/catalog"
	"commerce-basket/internal/domain"
	"commerce-basket/internal/registry"
	basketrepo "commerce-basket/internal/repository/basket"
	"github.com/shopspring/decimal"
)

// CombineDuplicates is an item_adding hook for quantity-weighted items. An
// incoming item whose target is already in the basket is folded into the
// existing line (quantity and price added) and is not associated. Absorbed
// records are left untouched since other baskets may still link them.
func CombineDuplicates(ctx context.Context, tx basketrepo.Tx, b *domain.Basket, items []domain.Item) ([]domain.Item, error) {
	lines := make([]domain.Item, len(b.Items), len(b.Items)+len(items))
	copy(lines, b.Items)
	byTarget := make(map[domain.TargetRef]int, len(lines))
	byID := make(map[string]int, len(lines))
	for i, it := range lines {
		byTarget[it.Target] = i
		byID[it.ID] = i
	}

	var (
		fresh   []string
		touched = map[int]bool{}
	)
	for _, in := range items {
		if _, ok := byID[in.ID]; ok {
			continue
		}
		if idx, ok := byTarget[in.Target]; ok {
			lines[idx].Quantity += in.Quantity
			lines[idx].Price = lines[idx].Price.Add(in.Price)
			touched[idx] = true
			continue
		}
		lines = append(lines, in)
		idx := len(lines) - 1
		byTarget[in.Target] = idx
		byID[in.ID] = idx
		fresh = append(fresh, in.ID)
	}

	for idx := range touched {
		if err := tx.UpdateItem(ctx, lines[idx]); err != nil {
			return nil, err
		}
	}
	if err := tx.Associate(ctx, b.ID, fresh); err != nil {
		return nil, err
	}

	result := make([]domain.Item, 0, len(items))
	seen := make(map[string]bool, len(items))
	for _, in := range items {
		idx, ok := byID[in.ID]
		if !ok {
			idx = byTarget[in.Target]
		}
		if !seen[lines[idx].ID] {
			seen[lines[idx].ID] = true
			result = append(result, lines[idx])
		}
	}
	return result, nil
}

// SumQuantities is an item_count hook that counts units instead of lines.
func SumQuantities(_ context.Context, _ basketrepo.Tx, b *domain.Basket) (int, error) {
	n := 0
	for _, it := range b.Items {
		n += it.Quantity
	}
	return n, nil
}

// QuantityFactory returns an item_creation hook that stores owned items priced
// at catalog unit price times quantity.
func QuantityFactory(prices catalog.PriceLookup) registry.ItemFactory {
	return func(ctx context.Context, tx basketrepo.Tx, _ *domain.Basket, specs []domain.ItemSpec) ([]domain.Item, error) {
		items := make([]domain.Item, 0, len(specs))
		for _, spec := range specs {
			qty := spec.Quantity
			if qty == 0 {
				qty = 1
			}
			if qty < 0 {
				return nil, fmt.Errorf("%w: quantity must be positive", domain.ErrInvalidInput)
			}
			if spec.Target.Type == "" || spec.Target.ID == "" {
				return nil, fmt.Errorf("%w: target type and id required", domain.ErrInvalidInput)
			}
			unit, err := prices.Price(ctx, spec.Target)
			if err != nil {
				return nil, err
			}
			items = append(items, domain.Item{
				Kind:       domain.ItemOwned,
				Target:     spec.Target,
				Quantity:   qty,
				UnitPrice:  unit,
				Price:      unit.Mul(decimal.NewFromInt(int64(qty))),
				Attributes: spec.Attributes,
			})
		}
		if len(items) == 0 {
			return nil, nil
		}
		return tx.InsertItems(ctx, items)
	}
}

var (
	_ registry.ItemAdder   = CombineDuplicates
	_ registry.ItemCounter = SumQuantities
)
