// Package registry resolves the basket engine's extension points once, at
// startup, from defaults and caller-supplied overrides.
package registry

import (
	"fmt"
	"reflect"
	"sort"
	"strings"

	"commerce-basket/internal/domain"
	"commerce-basket/internal/logger"
)

// Point names an extension point.
type Point string

const (
	PointPriceCalculation  Point = "price_calculation"
	PointItemAdding        Point = "item_adding"
	PointItemRemoving      Point = "item_removing"
	PointEmptyBasket       Point = "empty_basket"
	PointMerging           Point = "merging"
	PointItemCreation      Point = "item_creation"
	PointItemCount         Point = "item_count"
	PointCreateEmptyBasket Point = "create_empty_basket"
	PointItemProvider      Point = "item_provider"
)

// Points lists every extension point.
var Points = []Point{
	PointPriceCalculation,
	PointItemAdding,
	PointItemRemoving,
	PointEmptyBasket,
	PointMerging,
	PointItemCreation,
	PointItemCount,
	PointCreateEmptyBasket,
	PointItemProvider,
}

type Mode string

const (
	ModeReference Mode = "reference"
	ModeOwned     Mode = "owned"
)

// SurvivorPolicy picks which of several matching baskets absorbs the others.
type SurvivorPolicy string

const (
	SurvivorOldest SurvivorPolicy = "oldest"
	SurvivorNewest SurvivorPolicy = "newest"
)

// Options is the immutable engine configuration.
type Options struct {
	Mode           Mode
	DeleteOnRemove bool
	MergeOnLogin   bool
	Survivor       SurvivorPolicy
}

func DefaultOptions() Options {
	return Options{
		Mode:         ModeReference,
		MergeOnLogin: true,
		Survivor:     SurvivorOldest,
	}
}

// Validate reports options no mode can serve.
func (o Options) Validate() error {
	switch o.Mode {
	case ModeReference, ModeOwned:
	default:
		return fmt.Errorf("%w: unknown basket mode %q", domain.ErrConfiguration, o.Mode)
	}
	switch o.Survivor {
	case SurvivorOldest, SurvivorNewest:
	default:
		return fmt.Errorf("%w: unknown survivor policy %q", domain.ErrConfiguration, o.Survivor)
	}
	return nil
}

// Overrides maps extension points to replacement implementations. Values must
// have the point's hook type (or implement Provider for item_provider).
type Overrides map[Point]any

// Registry is the resolved set of hooks. It is read-only after Build.
type Registry struct {
	opts  Options
	hooks Hooks
}

// Build validates opts, then layers overrides over defaults. Overrides of the
// wrong type or for unknown points are rejected, as is any point other than
// item_creation that ends up without an implementation.
func Build(opts Options, defaults Hooks, overrides Overrides, log *logger.Logger) (*Registry, error) {
	log = logger.OrNop(log)
	if err := opts.Validate(); err != nil {
		return nil, err
	}

	h := defaults
	var invalid []string
	for point, raw := range overrides {
		ok := true
		switch point {
		case PointItemProvider:
			var p Provider
			if p, ok = raw.(Provider); ok && p != nil {
				h.Provider = p
			} else {
				ok = false
			}
		case PointPriceCalculation:
			h.PriceCalculator, ok = pick(raw, h.PriceCalculator)
		case PointItemAdding:
			h.ItemAdder, ok = pick(raw, h.ItemAdder)
		case PointItemRemoving:
			h.ItemRemover, ok = pick(raw, h.ItemRemover)
		case PointEmptyBasket:
			h.BasketEmptier, ok = pick(raw, h.BasketEmptier)
		case PointMerging:
			h.Merger, ok = pick(raw, h.Merger)
		case PointItemCreation:
			h.ItemFactory, ok = pick(raw, h.ItemFactory)
		case PointItemCount:
			h.ItemCounter, ok = pick(raw, h.ItemCounter)
		case PointCreateEmptyBasket:
			h.BasketCreator, ok = pick(raw, h.BasketCreator)
		default:
			invalid = append(invalid, fmt.Sprintf("%s (unknown point)", point))
			continue
		}
		if !ok {
			invalid = append(invalid, fmt.Sprintf("%s (%T)", point, raw))
		}
	}
	if len(invalid) > 0 {
		sort.Strings(invalid)
		return nil, fmt.Errorf("%w: invalid overrides: %s", domain.ErrConfiguration, strings.Join(invalid, ", "))
	}

	missing := missingPoints(h)
	if len(missing) > 0 {
		return nil, fmt.Errorf("%w: no implementation for %s", domain.ErrConfiguration, strings.Join(missing, ", "))
	}
	if h.Provider.Kind() != kindFor(opts.Mode) {
		return nil, fmt.Errorf("%w: %s provider cannot serve %s mode", domain.ErrConfiguration, h.Provider.Kind(), opts.Mode)
	}
	if h.ItemFactory == nil {
		log.Debug("no item creation function configured")
	}
	log.Debug("extension points resolved", "mode", string(opts.Mode), "overrides", len(overrides))
	return &Registry{opts: opts, hooks: h}, nil
}

func (r *Registry) Options() Options                 { return r.opts }
func (r *Registry) Provider() Provider               { return r.hooks.Provider }
func (r *Registry) PriceCalculator() PriceCalculator { return r.hooks.PriceCalculator }
func (r *Registry) ItemAdder() ItemAdder             { return r.hooks.ItemAdder }
func (r *Registry) ItemRemover() ItemRemover         { return r.hooks.ItemRemover }
func (r *Registry) BasketEmptier() BasketEmptier     { return r.hooks.BasketEmptier }
func (r *Registry) Merger() Merger                   { return r.hooks.Merger }
func (r *Registry) ItemCounter() ItemCounter         { return r.hooks.ItemCounter }
func (r *Registry) BasketCreator() BasketCreator     { return r.hooks.BasketCreator }

// ItemFactory returns the configured item-creation function, or
// domain.ErrNotImplemented when there is none.
func (r *Registry) ItemFactory() (ItemFactory, error) {
	if r.hooks.ItemFactory == nil {
		return nil, fmt.Errorf("%w: no item-creation function configured", domain.ErrNotImplemented)
	}
	return r.hooks.ItemFactory, nil
}

// Resolve returns the implementation behind point.
func (r *Registry) Resolve(point Point) (any, error) {
	switch point {
	case PointItemProvider:
		return r.hooks.Provider, nil
	case PointPriceCalculation:
		return r.hooks.PriceCalculator, nil
	case PointItemAdding:
		return r.hooks.ItemAdder, nil
	case PointItemRemoving:
		return r.hooks.ItemRemover, nil
	case PointEmptyBasket:
		return r.hooks.BasketEmptier, nil
	case PointMerging:
		return r.hooks.Merger, nil
	case PointItemCreation:
		return r.ItemFactory()
	case PointItemCount:
		return r.hooks.ItemCounter, nil
	case PointCreateEmptyBasket:
		return r.hooks.BasketCreator, nil
	}
	return nil, fmt.Errorf("%w: unknown extension point %q", domain.ErrConfiguration, point)
}

// pick returns raw as a T, or current and false when raw is not a usable T.
func pick[T any](raw any, current T) (T, bool) {
	fn, ok := raw.(T)
	if !ok || isNilFunc(raw) {
		return current, false
	}
	return fn, true
}

func isNilFunc(v any) bool {
	if v == nil {
		return true
	}
	rv := reflect.ValueOf(v)
	return rv.Kind() == reflect.Func && rv.IsNil()
}

func missingPoints(h Hooks) []string {
	var missing []string
	check := func(p Point, ok bool) {
		if !ok {
			missing = append(missing, string(p))
		}
	}
	check(PointItemProvider, h.Provider != nil)
	check(PointPriceCalculation, h.PriceCalculator != nil)
	check(PointItemAdding, h.ItemAdder != nil)
	check(PointItemRemoving, h.ItemRemover != nil)
	check(PointEmptyBasket, h.BasketEmptier != nil)
	check(PointMerging, h.Merger != nil)
	check(PointItemCount, h.ItemCounter != nil)
	check(PointCreateEmptyBasket, h.BasketCreator != nil)
	return missing
}

func kindFor(m Mode) domain.ItemKind {
	if m == ModeOwned {
		return domain.ItemOwned
	}
	return domain.ItemReference
}
