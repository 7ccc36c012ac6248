package httpserver

import (
	"context"
	"errors"
	"strings"

	"commerce-basket/internal/domain"
	"commerce-basket/internal/logger"
	basketsvc "commerce-basket/internal/service/basket"
	"commerce-basket/internal/service/session"
	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
)

// BasketService is the subset of the basket engine the handlers drive.
type BasketService interface {
	ResolveForSession(ctx context.Context, markers basketsvc.SessionMarkers, key string, principal *domain.Principal) (*domain.Basket, bool, error)
	NoteRotation(ctx context.Context, markers basketsvc.SessionMarkers, oldKey, newKey string) (bool, error)
	AddItems(ctx context.Context, b *domain.Basket, targets []domain.TargetRef) ([]domain.Item, error)
	CreateItems(ctx context.Context, b *domain.Basket, specs []domain.ItemSpec) ([]domain.Item, error)
	RemoveItems(ctx context.Context, b *domain.Basket, itemIDs []string) error
	EmptyBasket(ctx context.Context, b *domain.Basket) error
	ItemCount(ctx context.Context, b *domain.Basket) (int, error)
}

// TokenVerifier resolves a bearer token to a principal.
type TokenVerifier interface {
	Verify(token string) (*domain.Principal, error)
}

// Deps holds the services the router needs. Verifier is optional; without it
// bearer tokens are ignored. Products is optional too.
type Deps struct {
	Baskets     BasketService
	Sessions    session.Store
	Verifier    TokenVerifier
	Products    ProductReader
	CORSOrigins []string
}

// buildRouter wires routes for the API.
func buildRouter(log *logger.Logger, db Pinger, deps Deps) (*gin.Engine, error) {
	if deps.Baskets == nil {
		return nil, errors.New("basket service is required")
	}
	if deps.Sessions == nil {
		return nil, errors.New("session store is required")
	}

	router := gin.New()
	router.Use(requestLogger(log), gin.Recovery())
	if len(deps.CORSOrigins) > 0 {
		router.Use(corsMiddleware(deps.CORSOrigins))
	}

	router.GET("/healthz", healthHandler)
	router.GET("/readyz", readyHandler(db))

	h := &basketHandlers{baskets: deps.Baskets, sessions: deps.Sessions, log: log}

	if deps.Products != nil {
		ph := &productHandlers{products: deps.Products, log: log}
		router.GET("/products", ph.list)
		router.GET("/products/:id", ph.get)
	}

	router.POST("/sessions", h.issueSession)
	router.POST("/sessions/rotate", h.rotateSession)

	basket := router.Group("/basket")
	basket.Use(sessionMiddleware(deps.Sessions, log), principalMiddleware(deps.Verifier))
	{
		basket.GET("", h.retrieve)
		basket.POST("/items", h.addItems)
		basket.POST("/items/create", h.createItems)
		basket.POST("/items/remove", h.removeItems)
		basket.POST("/clean", h.clean)
		basket.GET("/amount", h.amount)
	}

	return router, nil
}

func corsMiddleware(origins []string) gin.HandlerFunc {
	cfg := cors.Config{
		AllowMethods:  []string{"GET", "POST", "OPTIONS"},
		AllowHeaders:  []string{"Authorization", "Content-Type", sessionHeader},
		ExposeHeaders: []string{sessionHeader},
	}
	for _, o := range origins {
		if strings.TrimSpace(o) == "*" {
			cfg.AllowAllOrigins = true
		}
	}
	if !cfg.AllowAllOrigins {
		cfg.AllowOrigins = origins
		cfg.AllowCredentials = true
	}
	return cors.New(cfg)
}
