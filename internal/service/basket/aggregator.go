package basket

import (
	"context"

	"commerce-basket/internal/domain"
	"commerce-basket/internal/registry"
	basketrepo "commerce-basket/internal/repository/basket"
	"github.com/shopspring/decimal"
)

// AddItems materialises targets through the item provider, attaches them with
// the item_adding hook and recomputes the total.
func (s *Service) AddItems(ctx context.Context, b *domain.Basket, targets []domain.TargetRef) ([]domain.Item, error) {
	id, err := basketID(b)
	if err != nil {
		return nil, err
	}
	var (
		added   []domain.Item
		updated *domain.Basket
	)
	err = s.withTx(ctx, func(tx basketrepo.Tx) error {
		current, err := tx.GetBasket(ctx, id)
		if err != nil {
			return err
		}
		items, err := s.reg.Provider().Materialize(ctx, tx, targets)
		if err != nil {
			return err
		}
		if added, err = s.attach(ctx, tx, current, items); err != nil {
			return err
		}
		updated, err = s.recompute(ctx, tx, id)
		return err
	})
	if err != nil {
		return nil, err
	}
	*b = *updated
	return added, nil
}

// CreateItems builds items with the configured item factory and attaches them.
// Without a factory it fails with domain.ErrNotImplemented and leaves the
// basket untouched.
func (s *Service) CreateItems(ctx context.Context, b *domain.Basket, specs []domain.ItemSpec) ([]domain.Item, error) {
	id, err := basketID(b)
	if err != nil {
		return nil, err
	}
	factory, err := s.reg.ItemFactory()
	if err != nil {
		return nil, err
	}
	var (
		added   []domain.Item
		updated *domain.Basket
	)
	err = s.withTx(ctx, func(tx basketrepo.Tx) error {
		current, err := tx.GetBasket(ctx, id)
		if err != nil {
			return err
		}
		items, err := factory(ctx, tx, current, specs)
		if err != nil {
			return err
		}
		if added, err = s.attach(ctx, tx, current, items); err != nil {
			return err
		}
		updated, err = s.recompute(ctx, tx, id)
		return err
	})
	if err != nil {
		return nil, err
	}
	*b = *updated
	return added, nil
}

// RemoveItems detaches the given items; ids not in the basket are ignored.
func (s *Service) RemoveItems(ctx context.Context, b *domain.Basket, itemIDs []string) error {
	id, err := basketID(b)
	if err != nil {
		return err
	}
	var updated *domain.Basket
	err = s.withTx(ctx, func(tx basketrepo.Tx) error {
		current, err := tx.GetBasket(ctx, id)
		if err != nil {
			return err
		}
		var owned []string
		for _, itemID := range itemIDs {
			if current.HasItem(itemID) {
				owned = append(owned, itemID)
			}
		}
		if len(owned) > 0 {
			if err := s.reg.ItemRemover()(ctx, tx, current, owned); err != nil {
				return err
			}
		}
		updated, err = s.recompute(ctx, tx, id)
		return err
	})
	if err != nil {
		return err
	}
	*b = *updated
	return nil
}

// EmptyBasket removes every item and recomputes, leaving a zero total.
func (s *Service) EmptyBasket(ctx context.Context, b *domain.Basket) error {
	id, err := basketID(b)
	if err != nil {
		return err
	}
	var updated *domain.Basket
	err = s.withTx(ctx, func(tx basketrepo.Tx) error {
		current, err := tx.GetBasket(ctx, id)
		if err != nil {
			return err
		}
		if err := s.reg.BasketEmptier()(ctx, tx, current); err != nil {
			return err
		}
		updated, err = s.recompute(ctx, tx, id)
		return err
	})
	if err != nil {
		return err
	}
	*b = *updated
	return nil
}

// RecomputePrice recalculates and persists the basket total.
func (s *Service) RecomputePrice(ctx context.Context, b *domain.Basket) (decimal.Decimal, error) {
	id, err := basketID(b)
	if err != nil {
		return decimal.Zero, err
	}
	var updated *domain.Basket
	err = s.withTx(ctx, func(tx basketrepo.Tx) error {
		updated, err = s.recompute(ctx, tx, id)
		return err
	})
	if err != nil {
		return decimal.Zero, err
	}
	*b = *updated
	return updated.TotalPrice, nil
}

// ItemCount reports the item_count hook's view of the basket.
func (s *Service) ItemCount(ctx context.Context, b *domain.Basket) (int, error) {
	id, err := basketID(b)
	if err != nil {
		return 0, err
	}
	var (
		count   int
		current *domain.Basket
	)
	err = s.withTx(ctx, func(tx basketrepo.Tx) error {
		if current, err = tx.GetBasket(ctx, id); err != nil {
			return err
		}
		count, err = s.reg.ItemCounter()(ctx, tx, current)
		return err
	})
	if err != nil {
		return 0, err
	}
	*b = *current
	return count, nil
}

func (s *Service) attach(ctx context.Context, tx basketrepo.Tx, b *domain.Basket, items []domain.Item) ([]domain.Item, error) {
	if len(items) == 0 {
		return nil, nil
	}
	return s.reg.ItemAdder()(ctx, tx, b, items)
}

// AssociateItems is the default item_adding hook: it links every item to the
// basket as is.
func AssociateItems(ctx context.Context, tx basketrepo.Tx, b *domain.Basket, items []domain.Item) ([]domain.Item, error) {
	ids := make([]string, 0, len(items))
	for _, it := range items {
		ids = append(ids, it.ID)
	}
	if err := tx.Associate(ctx, b.ID, ids); err != nil {
		return nil, err
	}
	return items, nil
}

// CountItems is the default item_count hook.
func CountItems(_ context.Context, _ basketrepo.Tx, b *domain.Basket) (int, error) {
	return len(b.Items), nil
}

// CreateEmptyBasket is the default create_empty_basket hook.
func CreateEmptyBasket(ctx context.Context, tx basketrepo.Tx, in basketrepo.CreateBasketInput) (*domain.Basket, error) {
	return tx.CreateBasket(ctx, in)
}

func (s *Service) removeItems(ctx context.Context, tx basketrepo.Tx, b *domain.Basket, itemIDs []string) error {
	if err := tx.Disassociate(ctx, b.ID, itemIDs); err != nil {
		return err
	}
	if s.reg.Options().DeleteOnRemove {
		return tx.DeleteItems(ctx, itemIDs)
	}
	return nil
}

// emptyItems deletes reference items outright; owned items follow the
// delete-on-remove option.
func (s *Service) emptyItems(ctx context.Context, tx basketrepo.Tx, b *domain.Basket) error {
	ids := b.ItemIDs()
	if len(ids) == 0 {
		return nil
	}
	if s.reg.Provider().Kind() == domain.ItemReference || s.reg.Options().DeleteOnRemove {
		return tx.DeleteItems(ctx, ids)
	}
	return tx.Disassociate(ctx, b.ID, ids)
}

var (
	_ registry.ItemAdder     = AssociateItems
	_ registry.ItemCounter   = CountItems
	_ registry.BasketCreator = CreateEmptyBasket
)
