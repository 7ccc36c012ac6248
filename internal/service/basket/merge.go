package basket

import (
	"context"
	"fmt"

	"commerce-basket/internal/domain"
	"commerce-basket/internal/registry"
	basketrepo "commerce-basket/internal/repository/basket"
)

// MergeBaskets moves every item of source into target, deletes source and
// applies overrides to the result. It is all-or-nothing.
func (s *Service) MergeBaskets(ctx context.Context, target, source *domain.Basket, overrides *domain.BasketOverrides) (*domain.Basket, error) {
	targetID, err := basketID(target)
	if err != nil {
		return nil, err
	}
	sourceID, err := basketID(source)
	if err != nil {
		return nil, err
	}
	var merged *domain.Basket
	err = s.withTx(ctx, func(tx basketrepo.Tx) error {
		merged, err = s.mergeTx(ctx, tx, targetID, sourceID, overrides)
		return err
	})
	if err != nil {
		return nil, err
	}
	*target = *merged
	return target, nil
}

// MergeManyBaskets folds baskets left to right into into, or into the first
// basket when into is nil.
func (s *Service) MergeManyBaskets(ctx context.Context, baskets []*domain.Basket, into *domain.Basket) (*domain.Basket, error) {
	rest := baskets
	survivor := into
	if survivor == nil {
		if len(baskets) == 0 {
			return nil, fmt.Errorf("%w: no baskets to merge", domain.ErrEmptyInput)
		}
		survivor, rest = baskets[0], baskets[1:]
	}
	survivorID, err := basketID(survivor)
	if err != nil {
		return nil, err
	}

	var merged *domain.Basket
	err = s.withTx(ctx, func(tx basketrepo.Tx) error {
		if merged, err = tx.GetBasket(ctx, survivorID); err != nil {
			return err
		}
		for _, b := range rest {
			if b == nil || b.ID == merged.ID {
				continue
			}
			if merged, err = s.mergeTx(ctx, tx, merged.ID, b.ID, nil); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	*survivor = *merged
	return survivor, nil
}

func (s *Service) mergeTx(ctx context.Context, tx basketrepo.Tx, targetID, sourceID string, overrides *domain.BasketOverrides) (*domain.Basket, error) {
	if targetID == sourceID {
		return tx.GetBasket(ctx, targetID)
	}
	target, err := tx.GetBasket(ctx, targetID)
	if err != nil {
		return nil, err
	}
	source, err := tx.GetBasket(ctx, sourceID)
	if err != nil {
		return nil, err
	}
	moved := len(source.Items)

	if err := s.reg.Merger()(ctx, tx, target, source, s.reg.ItemAdder()); err != nil {
		return nil, err
	}
	merged, err := s.recompute(ctx, tx, targetID)
	if err != nil {
		return nil, err
	}
	if overrides != nil {
		overrides.Apply(merged)
		if err := tx.UpdateBasket(ctx, merged); err != nil {
			return nil, err
		}
	}
	s.log.Debug("baskets merged",
		"target_id", targetID,
		"source_id", sourceID,
		"moved_items", moved,
		"total_price", merged.TotalPrice.String(),
	)
	return merged, nil
}

// MoveItems is the default merging hook.
func MoveItems(ctx context.Context, tx basketrepo.Tx, target, source *domain.Basket, add registry.ItemAdder) error {
	if len(source.Items) > 0 {
		if _, err := add(ctx, tx, target, source.Items); err != nil {
			return err
		}
	}
	return tx.DeleteBasket(ctx, source.ID)
}

var _ registry.Merger = MoveItems
