package basket

import (
	"context"
	"fmt"

	"commerce-basket/internal/catalog"
	"commerce-basket/internal/domain"
	"commerce-basket/internal/logger"
	"commerce-basket/internal/registry"
	basketrepo "commerce-basket/internal/repository/basket"
	"github.com/shopspring/decimal"
)

// Config selects the engine's mode and any hook overrides.
type Config struct {
	Options registry.Options
	// Prices backs reference items; required in reference mode.
	Prices    catalog.PriceLookup
	Overrides registry.Overrides
}

// Service is the basket aggregation, merge and resolution engine. Every
// public operation runs in one store transaction and, on success, updates the
// caller's *domain.Basket in place.
type Service struct {
	store basketrepo.Store
	reg   *registry.Registry
	log   *logger.Logger
}

func New(store basketrepo.Store, cfg Config, log *logger.Logger) (*Service, error) {
	s := &Service{store: store, log: logger.OrNop(log)}

	if err := cfg.Options.Validate(); err != nil {
		return nil, err
	}
	var provider registry.Provider
	switch cfg.Options.Mode {
	case registry.ModeReference:
		if cfg.Prices == nil {
			return nil, fmt.Errorf("%w: reference mode needs a price catalog", domain.ErrConfiguration)
		}
		provider = NewReferenceProvider(cfg.Prices)
	case registry.ModeOwned:
		provider = NewOwnedProvider()
	}

	reg, err := registry.Build(cfg.Options, registry.Hooks{
		Provider:        provider,
		PriceCalculator: s.calculatePrice,
		ItemAdder:       AssociateItems,
		ItemRemover:     s.removeItems,
		BasketEmptier:   s.emptyItems,
		Merger:          MoveItems,
		ItemCounter:     CountItems,
		BasketCreator:   CreateEmptyBasket,
	}, cfg.Overrides, s.log)
	if err != nil {
		return nil, err
	}
	s.reg = reg
	return s, nil
}

// Registry exposes the resolved extension points.
func (s *Service) Registry() *registry.Registry {
	return s.reg
}

// recompute reloads the basket, prices it and persists the new total.
func (s *Service) recompute(ctx context.Context, tx basketrepo.Tx, id string) (*domain.Basket, error) {
	b, err := tx.GetBasket(ctx, id)
	if err != nil {
		return nil, err
	}
	total, err := s.reg.PriceCalculator()(ctx, tx, b)
	if err != nil {
		return nil, err
	}
	b.TotalPrice = total
	if err := tx.UpdateBasket(ctx, b); err != nil {
		return nil, err
	}
	settle(tx, id)
	return b, nil
}

func (s *Service) calculatePrice(ctx context.Context, tx basketrepo.Tx, b *domain.Basket) (decimal.Decimal, error) {
	p := s.reg.Provider()
	if p.ServerSideTotal() {
		return tx.SumItemPrices(ctx, b.ID)
	}
	return SumContributions(ctx, p, b)
}

// SumContributions adds up every item's contribution in process.
func SumContributions(ctx context.Context, p registry.Provider, b *domain.Basket) (decimal.Decimal, error) {
	total := decimal.Zero
	for i := range b.Items {
		c, err := p.Contribution(ctx, &b.Items[i])
		if err != nil {
			return decimal.Zero, fmt.Errorf("price item %s: %w", b.Items[i].ID, err)
		}
		total = total.Add(c)
	}
	return total, nil
}

func basketID(b *domain.Basket) (string, error) {
	if b == nil || b.ID == "" {
		return "", fmt.Errorf("%w: basket required", domain.ErrInvalidInput)
	}
	return b.ID, nil
}
