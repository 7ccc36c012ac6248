package basket

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"commerce-basket/internal/domain"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Memory is an in-process Store. Transactions are serialised by a mutex and a
// failed transaction restores the state captured when it began.
type Memory struct {
	mu    sync.Mutex
	state memState
	now   func() time.Time
	last  time.Time
}

type memState struct {
	baskets map[string]domain.Basket
	items   map[string]domain.Item
	links   map[string]map[string]struct{}
}

func NewMemory() *Memory {
	return &Memory{
		state: memState{
			baskets: make(map[string]domain.Basket),
			items:   make(map[string]domain.Item),
			links:   make(map[string]map[string]struct{}),
		},
		now: time.Now,
	}
}

// SetClock replaces the time source used for created/updated timestamps.
func (m *Memory) SetClock(now func() time.Time) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.now = now
}

func (m *Memory) WithTx(ctx context.Context, fn func(tx Tx) error) error {
	if err := ctx.Err(); err != nil {
		return &domain.StorageError{Op: "begin", Err: err}
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	snapshot := m.state.clone()
	if err := fn(&memTx{m: m}); err != nil {
		m.state = snapshot
		return err
	}
	return nil
}

// tick returns a strictly increasing timestamp at microsecond precision so
// creation order is total, as it is in Postgres.
func (m *Memory) tick() time.Time {
	t := m.now().UTC().Truncate(time.Microsecond)
	if !t.After(m.last) {
		t = m.last.Add(time.Microsecond)
	}
	m.last = t
	return t
}

func (s memState) clone() memState {
	out := memState{
		baskets: make(map[string]domain.Basket, len(s.baskets)),
		items:   make(map[string]domain.Item, len(s.items)),
		links:   make(map[string]map[string]struct{}, len(s.links)),
	}
	for id, b := range s.baskets {
		b.Metadata = copyMap(b.Metadata)
		out.baskets[id] = b
	}
	for id, it := range s.items {
		it.Attributes = copyMap(it.Attributes)
		out.items[id] = it
	}
	for id, set := range s.links {
		cp := make(map[string]struct{}, len(set))
		for itemID := range set {
			cp[itemID] = struct{}{}
		}
		out.links[id] = cp
	}
	return out
}

type memTx struct {
	m *Memory
}

func (t *memTx) st() *memState { return &t.m.state }

func (t *memTx) CreateBasket(_ context.Context, in CreateBasketInput) (*domain.Basket, error) {
	now := t.m.tick()
	b := domain.Basket{
		ID:         uuid.NewString(),
		SessionKey: copyStr(in.SessionKey),
		OwnerID:    copyStr(in.OwnerID),
		TotalPrice: decimal.Zero,
		Metadata:   copyMap(in.Metadata),
		CreatedAt:  now,
		UpdatedAt:  now,
	}
	t.st().baskets[b.ID] = b
	t.st().links[b.ID] = make(map[string]struct{})
	return t.view(b.ID), nil
}

func (t *memTx) GetBasket(_ context.Context, id string) (*domain.Basket, error) {
	if _, ok := t.st().baskets[id]; !ok {
		return nil, domain.ErrNotFound
	}
	return t.view(id), nil
}

func (t *memTx) FindMatching(_ context.Context, preds ...Predicate) ([]*domain.Basket, error) {
	for _, p := range preds {
		if _, ok := predicateColumns[p.Field]; !ok {
			return nil, fmt.Errorf("%w: unknown basket field %q", domain.ErrInvalidInput, p.Field)
		}
	}
	var matched []domain.Basket
	for _, b := range t.st().baskets {
		for _, p := range preds {
			if matches(b, p) {
				matched = append(matched, b)
				break
			}
		}
	}
	sort.Slice(matched, func(i, j int) bool {
		if !matched[i].CreatedAt.Equal(matched[j].CreatedAt) {
			return matched[i].CreatedAt.Before(matched[j].CreatedAt)
		}
		return matched[i].ID < matched[j].ID
	})
	out := make([]*domain.Basket, 0, len(matched))
	for _, b := range matched {
		out = append(out, t.view(b.ID))
	}
	return out, nil
}

func (t *memTx) UpdateBasket(_ context.Context, b *domain.Basket) error {
	stored, ok := t.st().baskets[b.ID]
	if !ok {
		return domain.ErrNotFound
	}
	stored.SessionKey = copyStr(b.SessionKey)
	stored.OwnerID = copyStr(b.OwnerID)
	stored.TotalPrice = b.TotalPrice
	stored.Metadata = copyMap(b.Metadata)
	stored.UpdatedAt = t.m.tick()
	t.st().baskets[b.ID] = stored
	b.UpdatedAt = stored.UpdatedAt
	return nil
}

func (t *memTx) DeleteBasket(_ context.Context, id string) error {
	st := t.st()
	if _, ok := st.baskets[id]; !ok {
		return domain.ErrNotFound
	}
	linked := st.links[id]
	delete(st.links, id)
	delete(st.baskets, id)
	for itemID := range linked {
		it, ok := st.items[itemID]
		if !ok || it.Kind != domain.ItemReference {
			continue
		}
		if !t.linkedAnywhere(itemID) {
			delete(st.items, itemID)
		}
	}
	return nil
}

func (t *memTx) InsertItems(_ context.Context, items []domain.Item) ([]domain.Item, error) {
	out := make([]domain.Item, 0, len(items))
	for _, it := range items {
		it.ID = uuid.NewString()
		it.CreatedAt = t.m.tick()
		if it.Quantity <= 0 {
			it.Quantity = 1
		}
		it.Attributes = copyMap(it.Attributes)
		t.st().items[it.ID] = it
		out = append(out, it)
	}
	return out, nil
}

func (t *memTx) GetItems(_ context.Context, ids []string) ([]domain.Item, error) {
	var out []domain.Item
	seen := make(map[string]struct{}, len(ids))
	for _, id := range ids {
		if _, dup := seen[id]; dup {
			continue
		}
		seen[id] = struct{}{}
		if it, ok := t.st().items[id]; ok {
			it.Attributes = copyMap(it.Attributes)
			out = append(out, it)
		}
	}
	sortItems(out)
	return out, nil
}

func (t *memTx) UpdateItem(_ context.Context, item domain.Item) error {
	stored, ok := t.st().items[item.ID]
	if !ok {
		return domain.ErrNotFound
	}
	stored.Quantity = item.Quantity
	stored.UnitPrice = item.UnitPrice
	stored.Price = item.Price
	stored.Attributes = copyMap(item.Attributes)
	t.st().items[item.ID] = stored
	return nil
}

func (t *memTx) DeleteItems(_ context.Context, ids []string) error {
	st := t.st()
	for _, id := range ids {
		delete(st.items, id)
		for _, set := range st.links {
			delete(set, id)
		}
	}
	return nil
}

func (t *memTx) Associate(_ context.Context, basketID string, itemIDs []string) error {
	st := t.st()
	set, ok := st.links[basketID]
	if !ok {
		return domain.ErrNotFound
	}
	for _, id := range itemIDs {
		it, ok := st.items[id]
		if !ok {
			return fmt.Errorf("associate item %s: %w", id, domain.ErrNotFound)
		}
		if it.Kind == domain.ItemReference {
			for other, links := range st.links {
				if other != basketID {
					delete(links, id)
				}
			}
		}
		set[id] = struct{}{}
	}
	return nil
}

func (t *memTx) Disassociate(_ context.Context, basketID string, itemIDs []string) error {
	set, ok := t.st().links[basketID]
	if !ok {
		return domain.ErrNotFound
	}
	for _, id := range itemIDs {
		delete(set, id)
	}
	return nil
}

func (t *memTx) LinkedBaskets(_ context.Context, itemIDs []string) ([]string, error) {
	var out []string
	for basketID, set := range t.st().links {
		for _, id := range itemIDs {
			if _, ok := set[id]; ok {
				out = append(out, basketID)
				break
			}
		}
	}
	sort.Strings(out)
	return out, nil
}

func (t *memTx) SumItemPrices(_ context.Context, basketID string) (decimal.Decimal, error) {
	total := decimal.Zero
	for id := range t.st().links[basketID] {
		total = total.Add(t.st().items[id].Price)
	}
	return total, nil
}

func (t *memTx) view(id string) *domain.Basket {
	b := t.st().baskets[id]
	b.SessionKey = copyStr(b.SessionKey)
	b.OwnerID = copyStr(b.OwnerID)
	b.Metadata = copyMap(b.Metadata)
	b.Items = []domain.Item{}
	for itemID := range t.st().links[id] {
		it := t.st().items[itemID]
		it.Attributes = copyMap(it.Attributes)
		b.Items = append(b.Items, it)
	}
	sortItems(b.Items)
	return &b
}

func (t *memTx) linkedAnywhere(itemID string) bool {
	for _, set := range t.st().links {
		if _, ok := set[itemID]; ok {
			return true
		}
	}
	return false
}

func matches(b domain.Basket, p Predicate) bool {
	switch p.Field {
	case FieldSessionKey:
		return b.SessionKey != nil && *b.SessionKey == p.Value
	case FieldOwnerID:
		return b.OwnerID != nil && *b.OwnerID == p.Value
	}
	return false
}

func sortItems(items []domain.Item) {
	sort.Slice(items, func(i, j int) bool {
		if !items[i].CreatedAt.Equal(items[j].CreatedAt) {
			return items[i].CreatedAt.Before(items[j].CreatedAt)
		}
		return items[i].ID < items[j].ID
	})
}

func copyStr(s *string) *string {
	if s == nil {
		return nil
	}
	v := *s
	return &v
}

func copyMap(m map[string]string) map[string]string {
	if m == nil {
		return nil
	}
	out := make(map[string]string, len(m))
	for k, v := range m {
		out[k] = v
	}
	return out
}
