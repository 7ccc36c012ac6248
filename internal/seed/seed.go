// Package seed provides a small demo catalog for manual testing.
package seed

import (
	"context"
	"fmt"

	"commerce-basket/internal/domain"
	"commerce-basket/internal/logger"
	"github.com/shopspring/decimal"
)

// ProductWriter stores catalog products.
type ProductWriter interface {
	Upsert(ctx context.Context, product domain.Product) (*domain.Product, error)
}

// DemoProducts returns the demo catalog. Ids are fixed so the same basket
// requests work against the Postgres and the in-memory catalog.
func DemoProducts() []domain.Product {
	return []domain.Product{
		{
			ID:          "7b6f4a52-1c5e-4a8e-9d0b-3f2a1c000001",
			Key:         "demo-shirt",
			SKU:         "SKU-DEMO-TSHIRT",
			Name:        "Demo T-Shirt",
			Description: "Soft cotton tee for demo purposes",
			Price:       decimal.RequireFromString("19.99"),
			Currency:    "USD",
		},
		{
			ID:          "7b6f4a52-1c5e-4a8e-9d0b-3f2a1c000002",
			Key:         "demo-mug",
			SKU:         "SKU-DEMO-MUG",
			Name:        "Demo Mug",
			Description: "Ceramic mug with demo logo",
			Price:       decimal.RequireFromString("12.99"),
			Currency:    "USD",
		},
		{
			ID:          "7b6f4a52-1c5e-4a8e-9d0b-3f2a1c000003",
			Key:         "demo-sticker",
			SKU:         "SKU-DEMO-STICKER",
			Name:        "Demo Sticker",
			Description: "Vinyl sticker",
			Price:       decimal.RequireFromString("1.50"),
			Currency:    "USD",
		},
	}
}

// Apply upserts the demo catalog. It is idempotent.
func Apply(ctx context.Context, w ProductWriter, log *logger.Logger) error {
	log = logger.OrNop(log)
	for _, p := range DemoProducts() {
		saved, err := w.Upsert(ctx, p)
		if err != nil {
			return fmt.Errorf("upsert product %s: %w", p.Key, err)
		}
		log.Info("seeded product", "key", saved.Key, "id", saved.ID)
	}
	return nil
}
