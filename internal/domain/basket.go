package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// Basket is a mutable collection of line items tied to a session key and/or an
// owner. TotalPrice always reflects the items as of the last completed mutation.
type Basket struct {
	ID         string            `json:"id"`
	SessionKey *string           `json:"sessionKey,omitempty"`
	OwnerID    *string           `json:"ownerId,omitempty"`
	TotalPrice decimal.Decimal   `json:"totalPrice"`
	Metadata   map[string]string `json:"metadata,omitempty"`
	CreatedAt  time.Time         `json:"createdAt"`
	UpdatedAt  time.Time         `json:"updatedAt"`
	Items      []Item            `json:"items"`
}

// ItemIDs returns the identities of the associated items.
func (b *Basket) ItemIDs() []string {
	ids := make([]string, 0, len(b.Items))
	for _, it := range b.Items {
		ids = append(ids, it.ID)
	}
	return ids
}

// HasItem reports whether the item with the given id is associated.
func (b *Basket) HasItem(id string) bool {
	for _, it := range b.Items {
		if it.ID == id {
			return true
		}
	}
	return false
}

// BasketOverrides are applied to the surviving basket after a merge.
type BasketOverrides struct {
	SessionKey *string
	OwnerID    *string
	TotalPrice *decimal.Decimal
	Metadata   map[string]string
}

// Apply writes every non-nil override onto b.
func (o *BasketOverrides) Apply(b *Basket) {
	if o == nil {
		return
	}
	if o.SessionKey != nil {
		b.SessionKey = o.SessionKey
	}
	if o.OwnerID != nil {
		b.OwnerID = o.OwnerID
	}
	if o.TotalPrice != nil {
		b.TotalPrice = *o.TotalPrice
	}
	if len(o.Metadata) > 0 {
		if b.Metadata == nil {
			b.Metadata = make(map[string]string, len(o.Metadata))
		}
		for k, v := range o.Metadata {
			b.Metadata[k] = v
		}
	}
}
