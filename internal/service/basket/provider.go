package basket

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"commerce-basket/internal/catalog"
	"commerce-basket/internal/domain"
	basketrepo "commerce-basket/internal/repository/basket"
	"github.com/shopspring/decimal"
)

// ReferenceProvider creates one line item per target and prices it from the
// catalog every time the basket is recomputed.
type ReferenceProvider struct {
	prices catalog.PriceLookup
}

func NewReferenceProvider(prices catalog.PriceLookup) *ReferenceProvider {
	return &ReferenceProvider{prices: prices}
}

func (p *ReferenceProvider) Kind() domain.ItemKind { return domain.ItemReference }

func (p *ReferenceProvider) ServerSideTotal() bool { return false }

func (p *ReferenceProvider) Materialize(ctx context.Context, tx basketrepo.Tx, targets []domain.TargetRef) ([]domain.Item, error) {
	items := make([]domain.Item, 0, len(targets))
	for _, t := range targets {
		t.Type = strings.TrimSpace(t.Type)
		t.ID = strings.TrimSpace(t.ID)
		if t.Type == "" || t.ID == "" {
			return nil, fmt.Errorf("%w: target type and id required", domain.ErrInvalidInput)
		}
		unit, err := p.prices.Price(ctx, t)
		if err != nil {
			return nil, err
		}
		items = append(items, domain.Item{
			Kind:      domain.ItemReference,
			Target:    t,
			Quantity:  1,
			UnitPrice: unit,
			Price:     unit,
		})
	}
	if len(items) == 0 {
		return nil, nil
	}
	return tx.InsertItems(ctx, items)
}

// Contribution is the live catalog price times quantity. A record that has
// disappeared from the catalog contributes zero.
func (p *ReferenceProvider) Contribution(ctx context.Context, item *domain.Item) (decimal.Decimal, error) {
	unit, err := p.prices.Price(ctx, item.Target)
	if err != nil {
		if !errors.Is(err, domain.ErrNotFound) {
			return decimal.Zero, err
		}
		unit = decimal.Zero
	}
	qty := item.Quantity
	if qty <= 0 {
		qty = 1
	}
	item.UnitPrice = unit
	item.Price = unit.Mul(decimal.NewFromInt(int64(qty)))
	return item.Price, nil
}

// OwnedProvider works with items created by an item factory. Adding means
// linking existing records, named by id in the target.
type OwnedProvider struct{}

func NewOwnedProvider() *OwnedProvider { return &OwnedProvider{} }

func (p *OwnedProvider) Kind() domain.ItemKind { return domain.ItemOwned }

func (p *OwnedProvider) ServerSideTotal() bool { return true }

func (p *OwnedProvider) Materialize(ctx context.Context, tx basketrepo.Tx, targets []domain.TargetRef) ([]domain.Item, error) {
	if len(targets) == 0 {
		return nil, nil
	}
	ids := make([]string, 0, len(targets))
	for _, t := range targets {
		id := strings.TrimSpace(t.ID)
		if id == "" {
			return nil, fmt.Errorf("%w: item id required", domain.ErrInvalidInput)
		}
		ids = append(ids, id)
	}
	items, err := tx.GetItems(ctx, ids)
	if err != nil {
		return nil, err
	}
	found := make(map[string]bool, len(items))
	for _, it := range items {
		if it.Kind != domain.ItemOwned {
			return nil, fmt.Errorf("%w: item %s is not an owned item", domain.ErrInvalidInput, it.ID)
		}
		found[it.ID] = true
	}
	for _, id := range ids {
		if !found[id] {
			return nil, fmt.Errorf("item %s: %w", id, domain.ErrNotFound)
		}
	}
	return items, nil
}

func (p *OwnedProvider) Contribution(_ context.Context, item *domain.Item) (decimal.Decimal, error) {
	return item.Price, nil
}
