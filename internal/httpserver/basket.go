package httpserver

import (
	"errors"
	"fmt"
	"net/http"
	"strings"

	"commerce-basket/internal/domain"
	"commerce-basket/internal/logger"
	"commerce-basket/internal/service/session"
	"github.com/gin-gonic/gin"
)

type basketHandlers struct {
	baskets  BasketService
	sessions session.Store
	log      *logger.Logger
}

type targetRequest struct {
	Type string `json:"type"`
	ID   string `json:"id"`
}

type addItemsRequest struct {
	Targets []targetRequest `json:"targets"`
}

type itemSpecRequest struct {
	Type       string            `json:"type"`
	ID         string            `json:"id"`
	Quantity   int               `json:"quantity"`
	Attributes map[string]string `json:"attributes"`
}

type createItemsRequest struct {
	Items []itemSpecRequest `json:"items"`
}

type removeItemsRequest struct {
	ItemIDs []string `json:"itemIds"`
}

func (r targetRequest) ref() domain.TargetRef {
	typ := strings.TrimSpace(r.Type)
	if typ == "" {
		typ = domain.ProductType
	}
	return domain.TargetRef{Type: typ, ID: strings.TrimSpace(r.ID)}
}

func (h *basketHandlers) issueSession(c *gin.Context) {
	key, err := h.sessions.Issue(c.Request.Context())
	if err != nil {
		writeError(c, h.log, err)
		return
	}
	c.Header(sessionHeader, key)
	c.JSON(http.StatusCreated, gin.H{"sessionKey": key})
}

// rotateSession replaces the caller's key, typically at login, and remembers
// the old key so the next resolution can fold its anonymous basket in.
func (h *basketHandlers) rotateSession(c *gin.Context) {
	ctx := c.Request.Context()
	key := strings.TrimSpace(c.GetHeader(sessionHeader))
	if key == "" {
		writeError(c, h.log, fmt.Errorf("%w: %s header required", domain.ErrInvalidInput, sessionHeader))
		return
	}
	rot, err := h.sessions.Rotate(ctx, key)
	if err != nil {
		writeError(c, h.log, err)
		return
	}
	marked, err := h.baskets.NoteRotation(ctx, h.sessions, rot.Old, rot.New)
	if err != nil {
		writeError(c, h.log, err)
		return
	}
	c.Header(sessionHeader, rot.New)
	c.JSON(http.StatusOK, gin.H{"sessionKey": rot.New, "previousKey": rot.Old, "pendingMerge": marked})
}

func (h *basketHandlers) resolve(c *gin.Context) (*domain.Basket, bool, bool) {
	b, merged, err := h.baskets.ResolveForSession(c.Request.Context(), h.sessions, sessionKeyFrom(c), principalFrom(c))
	if err != nil {
		writeError(c, h.log, err)
		return nil, false, false
	}
	return b, merged, true
}

func (h *basketHandlers) retrieve(c *gin.Context) {
	b, merged, ok := h.resolve(c)
	if !ok {
		return
	}
	resp := toBasketResponse(b)
	resp.Merged = merged
	c.JSON(http.StatusOK, resp)
}

func (h *basketHandlers) addItems(c *gin.Context) {
	var req addItemsRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		writeError(c, h.log, fmt.Errorf("%w: %v", domain.ErrInvalidInput, err))
		return
	}
	targets := make([]domain.TargetRef, 0, len(req.Targets))
	for _, t := range req.Targets {
		targets = append(targets, t.ref())
	}
	b, _, ok := h.resolve(c)
	if !ok {
		return
	}
	if _, err := h.baskets.AddItems(c.Request.Context(), b, targets); err != nil {
		writeError(c, h.log, err)
		return
	}
	c.JSON(http.StatusOK, toBasketResponse(b))
}

func (h *basketHandlers) createItems(c *gin.Context) {
	var req createItemsRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		writeError(c, h.log, fmt.Errorf("%w: %v", domain.ErrInvalidInput, err))
		return
	}
	specs := make([]domain.ItemSpec, 0, len(req.Items))
	for _, it := range req.Items {
		specs = append(specs, domain.ItemSpec{
			Target:     targetRequest{Type: it.Type, ID: it.ID}.ref(),
			Quantity:   it.Quantity,
			Attributes: it.Attributes,
		})
	}
	b, _, ok := h.resolve(c)
	if !ok {
		return
	}
	if _, err := h.baskets.CreateItems(c.Request.Context(), b, specs); err != nil {
		writeError(c, h.log, err)
		return
	}
	c.JSON(http.StatusCreated, toBasketResponse(b))
}

func (h *basketHandlers) removeItems(c *gin.Context) {
	var req removeItemsRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		writeError(c, h.log, fmt.Errorf("%w: %v", domain.ErrInvalidInput, err))
		return
	}
	b, _, ok := h.resolve(c)
	if !ok {
		return
	}
	if err := h.baskets.RemoveItems(c.Request.Context(), b, req.ItemIDs); err != nil {
		writeError(c, h.log, err)
		return
	}
	c.JSON(http.StatusOK, toBasketResponse(b))
}

func (h *basketHandlers) clean(c *gin.Context) {
	b, _, ok := h.resolve(c)
	if !ok {
		return
	}
	if err := h.baskets.EmptyBasket(c.Request.Context(), b); err != nil {
		writeError(c, h.log, err)
		return
	}
	c.JSON(http.StatusOK, toBasketResponse(b))
}

func (h *basketHandlers) amount(c *gin.Context) {
	b, _, ok := h.resolve(c)
	if !ok {
		return
	}
	n, err := h.baskets.ItemCount(c.Request.Context(), b)
	if err != nil {
		writeError(c, h.log, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"basketId": b.ID, "amount": n})
}

// writeError maps engine errors onto HTTP statuses.
func writeError(c *gin.Context, log *logger.Logger, err error) {
	var storageErr *domain.StorageError
	switch {
	case errors.Is(err, domain.ErrNotImplemented), errors.Is(err, domain.ErrConfiguration):
		log.Error("basket engine misconfigured", "error", err)
		c.AbortWithStatusJSON(http.StatusInternalServerError, errorBody("misconfigured", err.Error()))
	case errors.Is(err, domain.ErrNotFound):
		c.AbortWithStatusJSON(http.StatusNotFound, errorBody("not_found", err.Error()))
	case errors.Is(err, domain.ErrInvalidInput), errors.Is(err, domain.ErrEmptyInput):
		c.AbortWithStatusJSON(http.StatusBadRequest, errorBody("invalid_input", err.Error()))
	case errors.As(err, &storageErr):
		log.Error("basket storage failure", "op", storageErr.Op, "error", storageErr.Err)
		c.AbortWithStatusJSON(http.StatusServiceUnavailable, errorBody("storage_unavailable", "storage temporarily unavailable"))
	default:
		log.Error("basket request failed", "error", err)
		c.AbortWithStatusJSON(http.StatusInternalServerError, errorBody("internal", "internal error"))
	}
}

func errorBody(code, message string) gin.H {
	return gin.H{"error": code, "message": message}
}
