package product

import (
	"context"

	"commerce-basket/internal/domain"
)

// Repository persists catalog products that reference items point at.
type Repository interface {
	List(ctx context.Context) ([]domain.Product, error)
	GetByID(ctx context.Context, id string) (*domain.Product, error)
	Upsert(ctx context.Context, product domain.Product) (*domain.Product, error)
}
