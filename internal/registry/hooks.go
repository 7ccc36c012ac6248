package registry

import (
	"context"

	"commerce-basket/internal/domain"
	basketrepo "commerce-basket/internal/repository/basket"
	"github.com/shopspring/decimal"
)

// Provider materialises and prices one item representation.
type Provider interface {
	Kind() domain.ItemKind
	// Materialize turns add targets into stored items ready to be associated.
	Materialize(ctx context.Context, tx basketrepo.Tx, targets []domain.TargetRef) ([]domain.Item, error)
	// Contribution is the item's share of the basket total. Providers may
	// refresh the item's unit price and price while computing it.
	Contribution(ctx context.Context, item *domain.Item) (decimal.Decimal, error)
	// ServerSideTotal reports whether totals are summed by the store.
	ServerSideTotal() bool
}

// The hook types are aliases so plain function literals satisfy them when
// stored in an Overrides map.
type (
	PriceCalculator = func(ctx context.Context, tx basketrepo.Tx, b *domain.Basket) (decimal.Decimal, error)
	ItemAdder       = func(ctx context.Context, tx basketrepo.Tx, b *domain.Basket, items []domain.Item) ([]domain.Item, error)
	ItemRemover     = func(ctx context.Context, tx basketrepo.Tx, b *domain.Basket, itemIDs []string) error
	BasketEmptier   = func(ctx context.Context, tx basketrepo.Tx, b *domain.Basket) error
	// Merger moves source's items into target and deletes source; add is the
	// resolved item_adding hook.
	Merger        = func(ctx context.Context, tx basketrepo.Tx, target, source *domain.Basket, add ItemAdder) error
	ItemFactory   = func(ctx context.Context, tx basketrepo.Tx, b *domain.Basket, specs []domain.ItemSpec) ([]domain.Item, error)
	ItemCounter   = func(ctx context.Context, tx basketrepo.Tx, b *domain.Basket) (int, error)
	BasketCreator = func(ctx context.Context, tx basketrepo.Tx, in basketrepo.CreateBasketInput) (*domain.Basket, error)
)

// Hooks is one complete set of extension point implementations.
type Hooks struct {
	Provider        Provider
	PriceCalculator PriceCalculator
	ItemAdder       ItemAdder
	ItemRemover     ItemRemover
	BasketEmptier   BasketEmptier
	Merger          Merger
	ItemFactory     ItemFactory
	ItemCounter     ItemCounter
	BasketCreator   BasketCreator
}
