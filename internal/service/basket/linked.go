package basket

import (
	"context"
	"errors"
	"sort"

	"commerce-basket/internal/domain"
	basketrepo "commerce-basket/internal/repository/basket"
)

// trackingTx notes the baskets linking every item a hook changes, deletes or
// relinks, so their totals can be recomputed before commit.
type trackingTx struct {
	basketrepo.Tx
	pending map[string]bool
}

func (t *trackingTx) note(ctx context.Context, itemIDs []string) error {
	if len(itemIDs) == 0 {
		return nil
	}
	linked, err := t.Tx.LinkedBaskets(ctx, itemIDs)
	if err != nil {
		return err
	}
	for _, id := range linked {
		t.pending[id] = true
	}
	return nil
}

func (t *trackingTx) UpdateItem(ctx context.Context, item domain.Item) error {
	if err := t.note(ctx, []string{item.ID}); err != nil {
		return err
	}
	return t.Tx.UpdateItem(ctx, item)
}

func (t *trackingTx) DeleteItems(ctx context.Context, ids []string) error {
	if err := t.note(ctx, ids); err != nil {
		return err
	}
	return t.Tx.DeleteItems(ctx, ids)
}

func (t *trackingTx) Associate(ctx context.Context, basketID string, itemIDs []string) error {
	if err := t.note(ctx, itemIDs); err != nil {
		return err
	}
	return t.Tx.Associate(ctx, basketID, itemIDs)
}

// settle marks id as freshly priced within tx.
func settle(tx basketrepo.Tx, id string) {
	if t, ok := tx.(*trackingTx); ok {
		t.pending[id] = false
	}
}

// withTx runs fn in one transaction and then recomputes every other basket
// whose items fn touched.
func (s *Service) withTx(ctx context.Context, fn func(tx basketrepo.Tx) error) error {
	return s.store.WithTx(ctx, func(tx basketrepo.Tx) error {
		tracked := &trackingTx{Tx: tx, pending: map[string]bool{}}
		if err := fn(tracked); err != nil {
			return err
		}
		ids := make([]string, 0, len(tracked.pending))
		for id, pending := range tracked.pending {
			if pending {
				ids = append(ids, id)
			}
		}
		sort.Strings(ids)
		for _, id := range ids {
			b, err := s.recompute(ctx, tx, id)
			if errors.Is(err, domain.ErrNotFound) {
				continue
			}
			if err != nil {
				return err
			}
			s.log.Debug("recomputed linked basket", "basket_id", id, "total_price", b.TotalPrice.String())
		}
		return nil
	})
}
