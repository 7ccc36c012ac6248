package product

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"commerce-basket/internal/domain"
	"github.com/google/uuid"
)

type memoryRepo struct {
	mu    sync.RWMutex
	byKey map[string]domain.Product
}

// NewMemory returns a Repository kept in process memory.
func NewMemory() Repository {
	return &memoryRepo{byKey: make(map[string]domain.Product)}
}

func (r *memoryRepo) List(_ context.Context) ([]domain.Product, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]domain.Product, 0, len(r.byKey))
	for _, p := range r.byKey {
		out = append(out, p)
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].CreatedAt.After(out[j].CreatedAt)
		}
		return out[i].Key < out[j].Key
	})
	return out, nil
}

func (r *memoryRepo) GetByID(_ context.Context, id string) (*domain.Product, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	for _, p := range r.byKey {
		if p.ID == id {
			return &p, nil
		}
	}
	return nil, domain.ErrNotFound
}

func (r *memoryRepo) Upsert(_ context.Context, product domain.Product) (*domain.Product, error) {
	if product.Currency == "" {
		product.Currency = "USD"
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	for key, p := range r.byKey {
		if key != product.Key && p.SKU == product.SKU {
			return nil, fmt.Errorf("%w: sku %s already used by product %s", domain.ErrInvalidInput, product.SKU, key)
		}
	}
	if existing, ok := r.byKey[product.Key]; ok {
		if product.ID != "" && product.ID != existing.ID {
			return nil, fmt.Errorf("%w: product key %s already has id %s, import id %s", domain.ErrInvalidInput, product.Key, existing.ID, product.ID)
		}
		product.ID = existing.ID
		product.CreatedAt = existing.CreatedAt
	} else {
		if product.ID == "" {
			product.ID = uuid.NewString()
		}
		product.CreatedAt = time.Now().UTC()
	}
	r.byKey[product.Key] = product
	return &product, nil
}
