package basket

import (
	"fmt"
	"strings"

	"commerce-basket/internal/catalog"
	"commerce-basket/internal/config"
	"commerce-basket/internal/domain"
	"commerce-basket/internal/registry"
)

// ConfigFrom turns file/env settings into an engine Config, installing the
// named policies as overrides.
func ConfigFrom(bc config.BasketConfig, prices catalog.PriceLookup) (Config, error) {
	opts := registry.Options{
		Mode:           registry.Mode(strings.ToLower(strings.TrimSpace(bc.Mode))),
		DeleteOnRemove: bc.DeleteOnRemove,
		MergeOnLogin:   bc.MergeOnLogin,
		Survivor:       registry.SurvivorPolicy(strings.ToLower(strings.TrimSpace(bc.Survivor))),
	}
	if err := opts.Validate(); err != nil {
		return Config{}, err
	}

	overrides := registry.Overrides{}
	if bc.CombineDuplicates {
		overrides[registry.PointItemAdding] = CombineDuplicates
	}
	if bc.CountQuantities {
		overrides[registry.PointItemCount] = SumQuantities
	}
	switch name := strings.ToLower(strings.TrimSpace(bc.ItemFactory)); name {
	case "":
	case "quantity":
		if prices == nil {
			return Config{}, fmt.Errorf("%w: quantity item factory needs a catalog", domain.ErrConfiguration)
		}
		overrides[registry.PointItemCreation] = QuantityFactory(prices)
	default:
		return Config{}, fmt.Errorf("%w: unknown item factory %q", domain.ErrConfiguration, name)
	}

	return Config{Options: opts, Prices: prices, Overrides: overrides}, nil
}
