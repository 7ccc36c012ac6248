package httpserver

import (
	"time"

	"commerce-basket/internal/domain"
)

type basketResponse struct {
	ID         string            `json:"id"`
	SessionKey string            `json:"sessionKey,omitempty"`
	OwnerID    string            `json:"ownerId,omitempty"`
	TotalPrice string            `json:"totalPrice"`
	Metadata   map[string]string `json:"metadata,omitempty"`
	Items      []itemResponse    `json:"items"`
	Merged     bool              `json:"merged,omitempty"`
	CreatedAt  time.Time         `json:"createdAt"`
	UpdatedAt  time.Time         `json:"updatedAt"`
}

type itemResponse struct {
	ID         string            `json:"id"`
	Kind       string            `json:"kind"`
	Type       string            `json:"type"`
	TargetID   string            `json:"targetId"`
	Quantity   int               `json:"quantity"`
	UnitPrice  string            `json:"unitPrice"`
	Price      string            `json:"price"`
	Attributes map[string]string `json:"attributes,omitempty"`
	AddedAt    time.Time         `json:"addedAt"`
}

func toBasketResponse(b *domain.Basket) basketResponse {
	items := make([]itemResponse, 0, len(b.Items))
	for _, it := range b.Items {
		items = append(items, itemResponse{
			ID:         it.ID,
			Kind:       string(it.Kind),
			Type:       it.Target.Type,
			TargetID:   it.Target.ID,
			Quantity:   it.Quantity,
			UnitPrice:  it.UnitPrice.StringFixed(2),
			Price:      it.Price.StringFixed(2),
			Attributes: it.Attributes,
			AddedAt:    it.CreatedAt,
		})
	}
	resp := basketResponse{
		ID:         b.ID,
		TotalPrice: b.TotalPrice.StringFixed(2),
		Metadata:   b.Metadata,
		Items:      items,
		CreatedAt:  b.CreatedAt,
		UpdatedAt:  b.UpdatedAt,
	}
	if b.SessionKey != nil {
		resp.SessionKey = *b.SessionKey
	}
	if b.OwnerID != nil {
		resp.OwnerID = *b.OwnerID
	}
	return resp
}
