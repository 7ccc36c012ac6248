package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// ItemKind discriminates the two line item representations.
type ItemKind string

const (
	// ItemReference points at a catalog record; its price is looked up.
	ItemReference ItemKind = "reference"
	// ItemOwned is an opaque record created by an item factory with a stored price.
	ItemOwned ItemKind = "owned"
)

// TargetRef is a polymorphic pointer to a priced record.
type TargetRef struct {
	Type string `json:"type"`
	ID   string `json:"id"`
}

func (t TargetRef) String() string {
	return t.Type + ":" + t.ID
}

// Item is a line item. Price is the item's contribution to its basket total.
type Item struct {
	ID         string            `json:"id"`
	Kind       ItemKind          `json:"kind"`
	Target     TargetRef         `json:"target"`
	Quantity   int               `json:"quantity"`
	UnitPrice  decimal.Decimal   `json:"unitPrice"`
	Price      decimal.Decimal   `json:"price"`
	Attributes map[string]string `json:"attributes,omitempty"`
	CreatedAt  time.Time         `json:"createdAt"`
}

// ItemSpec describes an item to be created by an item factory.
type ItemSpec struct {
	Target     TargetRef
	Quantity   int
	Attributes map[string]string
}
