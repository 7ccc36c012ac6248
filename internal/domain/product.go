package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// ProductType is the target type under which catalog products are referenced.
const ProductType = "product"

type Product struct {
	ID          string                 `json:"id"`
	Key         string                 `json:"key"`
	SKU         string                 `json:"sku"`
	Name        string                 `json:"name"`
	Description string                 `json:"description,omitempty"`
	Price       decimal.Decimal        `json:"price"`
	Currency    string                 `json:"currency"`
	Attributes  map[string]interface{} `json:"attributes,omitempty"`
	CreatedAt   time.Time              `json:"createdAt"`
}

// Ref returns the reference pointing at p.
func (p Product) Ref() TargetRef {
	return TargetRef{Type: ProductType, ID: p.ID}
}
