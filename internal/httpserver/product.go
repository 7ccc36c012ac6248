package httpserver

import (
	"context"
	"net/http"

	"commerce-basket/internal/domain"
	"commerce-basket/internal/logger"
	"github.com/gin-gonic/gin"
)

// ProductReader lists the catalog products baskets can reference.
type ProductReader interface {
	List(ctx context.Context) ([]domain.Product, error)
	GetByID(ctx context.Context, id string) (*domain.Product, error)
}

type productHandlers struct {
	products ProductReader
	log      *logger.Logger
}

type productResponse struct {
	ID          string `json:"id"`
	Key         string `json:"key"`
	SKU         string `json:"sku"`
	Name        string `json:"name"`
	Description string `json:"description,omitempty"`
	Price       string `json:"price"`
	Currency    string `json:"currency"`
	Target      string `json:"target"`
}

func toProductResponse(p domain.Product) productResponse {
	return productResponse{
		ID:          p.ID,
		Key:         p.Key,
		SKU:         p.SKU,
		Name:        p.Name,
		Description: p.Description,
		Price:       p.Price.String(),
		Currency:    p.Currency,
		Target:      p.Ref().String(),
	}
}

func (h *productHandlers) list(c *gin.Context) {
	products, err := h.products.List(c.Request.Context())
	if err != nil {
		writeError(c, h.log, err)
		return
	}
	resp := make([]productResponse, 0, len(products))
	for _, p := range products {
		resp = append(resp, toProductResponse(p))
	}
	c.JSON(http.StatusOK, gin.H{"results": resp, "count": len(resp)})
}

func (h *productHandlers) get(c *gin.Context) {
	p, err := h.products.GetByID(c.Request.Context(), c.Param("id"))
	if err != nil {
		writeError(c, h.log, err)
		return
	}
	c.JSON(http.StatusOK, toProductResponse(*p))
}
