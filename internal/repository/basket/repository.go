package basket

import (
	"context"

	"commerce-basket/internal/domain"
	"github.com/shopspring/decimal"
)

// Field names a basket column usable in a lookup predicate.
type Field string

const (
	FieldSessionKey Field = "session_key"
	FieldOwnerID    Field = "owner_id"
)

// Predicate is an equality test on one basket field.
type Predicate struct {
	Field Field
	Value string
}

func SessionKeyIs(key string) Predicate { return Predicate{Field: FieldSessionKey, Value: key} }
func OwnerIs(id string) Predicate       { return Predicate{Field: FieldOwnerID, Value: id} }

type CreateBasketInput struct {
	SessionKey *string
	OwnerID    *string
	Metadata   map[string]string
}

// Store runs basket work inside a transaction. fn's error is returned
// unchanged after rollback; failures of the transaction itself surface as
// *domain.StorageError.
type Store interface {
	WithTx(ctx context.Context, fn func(tx Tx) error) error
}

// Tx is the set of basket operations available inside one transaction.
// Baskets returned by Tx carry their associated items.
type Tx interface {
	CreateBasket(ctx context.Context, in CreateBasketInput) (*domain.Basket, error)
	GetBasket(ctx context.Context, id string) (*domain.Basket, error)
	// FindMatching returns every basket satisfying any predicate, oldest first.
	FindMatching(ctx context.Context, preds ...Predicate) ([]*domain.Basket, error)
	// UpdateBasket persists session key, owner, total price and metadata.
	UpdateBasket(ctx context.Context, b *domain.Basket) error
	// DeleteBasket removes the basket and any reference items left without a basket.
	DeleteBasket(ctx context.Context, id string) error

	InsertItems(ctx context.Context, items []domain.Item) ([]domain.Item, error)
	GetItems(ctx context.Context, ids []string) ([]domain.Item, error)
	UpdateItem(ctx context.Context, item domain.Item) error
	DeleteItems(ctx context.Context, ids []string) error

	// Associate links items to the basket. Linking an already linked item is a
	// no-op; a reference item loses any link to another basket.
	Associate(ctx context.Context, basketID string, itemIDs []string) error
	Disassociate(ctx context.Context, basketID string, itemIDs []string) error
	// LinkedBaskets returns the ids of baskets linking any of the items, sorted.
	LinkedBaskets(ctx context.Context, itemIDs []string) ([]string, error)
	// SumItemPrices is the null-coalescing sum of stored item prices.
	SumItemPrices(ctx context.Context, basketID string) (decimal.Decimal, error)
}
