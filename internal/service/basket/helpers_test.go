package basket

import (
	"context"
	"errors"
	"sort"
	"testing"

	"commerce-basket/internal/catalog"
	"commerce-basket/internal/domain"
	"commerce-basket/internal/registry"
	basketrepo "commerce-basket/internal/repository/basket"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
)

func ref(id string) domain.TargetRef {
	return domain.TargetRef{Type: domain.ProductType, ID: id}
}

func dec(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

func newCatalog() *catalog.Memory {
	c := catalog.NewMemory("price")
	c.Put(ref("p1"), map[string]any{"price": "1.00"})
	c.Put(ref("p2"), map[string]any{"price": "2.00"})
	c.Put(ref("p3"), map[string]any{"price": "3.00"})
	return c
}

type engine struct {
	svc     *Service
	mem     *basketrepo.Memory
	store   *failingStore
	catalog *catalog.Memory
}

// newEngine builds a fresh engine over an in-memory store. configure may
// adjust the options and overrides before the engine is built.
func newEngine(t *testing.T, configure func(cfg *Config)) *engine {
	t.Helper()
	mem := basketrepo.NewMemory()
	store := &failingStore{Store: mem}
	cat := newCatalog()
	cfg := Config{Options: registry.DefaultOptions(), Prices: cat}
	if configure != nil {
		configure(&cfg)
	}
	svc, err := New(store, cfg, nil)
	require.NoError(t, err)
	return &engine{svc: svc, mem: mem, store: store, catalog: cat}
}

// quantityEngine mirrors a shop with amount-weighted owned items.
func quantityEngine(t *testing.T) *engine {
	t.Helper()
	return newEngine(t, func(cfg *Config) {
		cfg.Options.Mode = registry.ModeOwned
		cfg.Overrides = registry.Overrides{
			registry.PointItemCreation: QuantityFactory(cfg.Prices),
			registry.PointItemAdding:   CombineDuplicates,
			registry.PointItemCount:    SumQuantities,
		}
	})
}

func (e *engine) resolve(t *testing.T, key string) *domain.Basket {
	t.Helper()
	b, _, err := e.svc.ResolveBasket(context.Background(), ResolveInput{SessionKey: key})
	require.NoError(t, err)
	return b
}

func (e *engine) load(t *testing.T, id string) *domain.Basket {
	t.Helper()
	var b *domain.Basket
	require.NoError(t, e.mem.WithTx(context.Background(), func(tx basketrepo.Tx) error {
		var err error
		b, err = tx.GetBasket(context.Background(), id)
		return err
	}))
	return b
}

func (e *engine) exists(t *testing.T, id string) bool {
	t.Helper()
	err := e.mem.WithTx(context.Background(), func(tx basketrepo.Tx) error {
		_, err := tx.GetBasket(context.Background(), id)
		return err
	})
	if errors.Is(err, domain.ErrNotFound) {
		return false
	}
	require.NoError(t, err)
	return true
}

func (e *engine) items(t *testing.T, ids ...string) []domain.Item {
	t.Helper()
	var items []domain.Item
	require.NoError(t, e.mem.WithTx(context.Background(), func(tx basketrepo.Tx) error {
		var err error
		items, err = tx.GetItems(context.Background(), ids)
		return err
	}))
	return items
}

// createRaw inserts a basket directly, bypassing resolution.
func (e *engine) createRaw(t *testing.T, in basketrepo.CreateBasketInput) *domain.Basket {
	t.Helper()
	var b *domain.Basket
	require.NoError(t, e.mem.WithTx(context.Background(), func(tx basketrepo.Tx) error {
		var err error
		b, err = tx.CreateBasket(context.Background(), in)
		return err
	}))
	return b
}

func targetsOf(b *domain.Basket) []string {
	out := make([]string, 0, len(b.Items))
	for _, it := range b.Items {
		out = append(out, it.Target.String())
	}
	sort.Strings(out)
	return out
}

func strPtr(v string) *string { return &v }

var errInjected = &domain.StorageError{Op: "injected", Err: errors.New("connection reset")}

// failingStore fails the named Tx operation when failOn is set.
type failingStore struct {
	basketrepo.Store
	failOn string
}

func (f *failingStore) WithTx(ctx context.Context, fn func(tx basketrepo.Tx) error) error {
	return f.Store.WithTx(ctx, func(tx basketrepo.Tx) error {
		return fn(&failingTx{Tx: tx, failOn: f.failOn})
	})
}

type failingTx struct {
	basketrepo.Tx
	failOn string
}

func (t *failingTx) Associate(ctx context.Context, basketID string, itemIDs []string) error {
	if t.failOn == "associate" {
		return errInjected
	}
	return t.Tx.Associate(ctx, basketID, itemIDs)
}

func (t *failingTx) DeleteBasket(ctx context.Context, id string) error {
	if t.failOn == "delete_basket" {
		return errInjected
	}
	return t.Tx.DeleteBasket(ctx, id)
}

func (t *failingTx) UpdateBasket(ctx context.Context, b *domain.Basket) error {
	if t.failOn == "update_basket" {
		return errInjected
	}
	return t.Tx.UpdateBasket(ctx, b)
}

type mapMarkers struct {
	prior map[string]string
}

func newMarkers() *mapMarkers { return &mapMarkers{prior: map[string]string{}} }

func (m *mapMarkers) PriorKey(_ context.Context, key string) (string, error) {
	return m.prior[key], nil
}

func (m *mapMarkers) SetPriorKey(_ context.Context, key, prior string) error {
	m.prior[key] = prior
	return nil
}

func (m *mapMarkers) ClearPriorKey(_ context.Context, key string) error {
	delete(m.prior, key)
	return nil
}
