package basket

import (
	"context"
	"fmt"
	"strings"

	"commerce-basket/internal/domain"
	"commerce-basket/internal/registry"
	basketrepo "commerce-basket/internal/repository/basket"
)

// SessionMarkers stores, per session key, the key the session had before its
// last rotation.
type SessionMarkers interface {
	// PriorKey returns "" when no marker is set.
	PriorKey(ctx context.Context, key string) (string, error)
	SetPriorKey(ctx context.Context, key, prior string) error
	ClearPriorKey(ctx context.Context, key string) error
}

type ResolveInput struct {
	SessionKey      string
	PriorSessionKey string
	Principal       *domain.Principal
}

// ResolveBasket returns the one basket the caller is entitled to, merging
// duplicates and the pre-rotation basket as needed. merged reports whether the
// pre-rotation basket was absorbed.
func (s *Service) ResolveBasket(ctx context.Context, in ResolveInput) (*domain.Basket, bool, error) {
	key := strings.TrimSpace(in.SessionKey)
	prior := strings.TrimSpace(in.PriorSessionKey)
	principal := in.Principal
	if !principal.IsAuthenticated() {
		principal = nil
	}

	var preds []basketrepo.Predicate
	if key != "" {
		preds = append(preds, basketrepo.SessionKeyIs(key))
	}
	if principal != nil {
		preds = append(preds, basketrepo.OwnerIs(principal.ID))
	}
	if len(preds) == 0 {
		return nil, false, fmt.Errorf("%w: session key or principal required", domain.ErrInvalidInput)
	}

	var (
		current *domain.Basket
		merged  bool
	)
	err := s.withTx(ctx, func(tx basketrepo.Tx) error {
		var old *domain.Basket
		var err error
		if prior != "" && prior != key {
			if old, err = s.lookupTx(ctx, tx, basketrepo.SessionKeyIs(prior)); err != nil {
				return err
			}
		}

		if current, err = s.lookupTx(ctx, tx, preds...); err != nil {
			return err
		}
		switch {
		case current == nil:
			create := basketrepo.CreateBasketInput{}
			if key != "" {
				create.SessionKey = &key
			}
			if principal != nil {
				create.OwnerID = &principal.ID
			}
			if current, err = s.reg.BasketCreator()(ctx, tx, create); err != nil {
				return err
			}
		case principal != nil && current.OwnerID == nil:
			owner := principal.ID
			current.OwnerID = &owner
			if err := tx.UpdateBasket(ctx, current); err != nil {
				return err
			}
		}

		if old != nil && old.ID != current.ID && old.OwnerID == nil && s.reg.Options().MergeOnLogin {
			if current, err = s.mergeTx(ctx, tx, current.ID, old.ID, nil); err != nil {
				return err
			}
			merged = true
		}
		return nil
	})
	if err != nil {
		return nil, false, err
	}
	return current, merged, nil
}

// ResolveForSession resolves the basket for a session. The session's prior-key
// marker is cleared once its basket has been merged.
func (s *Service) ResolveForSession(ctx context.Context, markers SessionMarkers, key string, principal *domain.Principal) (*domain.Basket, bool, error) {
	prior, err := markers.PriorKey(ctx, key)
	if err != nil {
		return nil, false, err
	}
	b, merged, err := s.ResolveBasket(ctx, ResolveInput{
		SessionKey:      key,
		PriorSessionKey: prior,
		Principal:       principal,
	})
	if err != nil {
		return nil, false, err
	}
	if merged && prior != "" {
		if err := markers.ClearPriorKey(ctx, key); err != nil {
			s.log.Warn("clear prior session marker failed", "error", err)
		}
	}
	return b, merged, nil
}

// NoteRotation records oldKey as newKey's prior key when an owner-less basket
// exists under oldKey. It reports whether the marker was set.
func (s *Service) NoteRotation(ctx context.Context, markers SessionMarkers, oldKey, newKey string) (bool, error) {
	if oldKey == "" || newKey == "" || oldKey == newKey {
		return false, nil
	}
	var anonymous bool
	err := s.withTx(ctx, func(tx basketrepo.Tx) error {
		found, err := tx.FindMatching(ctx, basketrepo.SessionKeyIs(oldKey))
		if err != nil {
			return err
		}
		for _, b := range found {
			if b.OwnerID == nil {
				anonymous = true
				break
			}
		}
		return nil
	})
	if err != nil || !anonymous {
		return false, err
	}
	if err := markers.SetPriorKey(ctx, newKey, oldKey); err != nil {
		return false, err
	}
	return true, nil
}

// lookupTx returns the single basket matching preds, folding duplicates into
// the survivor chosen by the survivor policy. nil means no match.
func (s *Service) lookupTx(ctx context.Context, tx basketrepo.Tx, preds ...basketrepo.Predicate) (*domain.Basket, error) {
	found, err := tx.FindMatching(ctx, preds...)
	if err != nil {
		return nil, err
	}
	if len(found) == 0 {
		return nil, nil
	}
	if s.reg.Options().Survivor == registry.SurvivorNewest {
		for i, j := 0, len(found)-1; i < j; i, j = i+1, j-1 {
			found[i], found[j] = found[j], found[i]
		}
	}
	survivor := found[0]
	for _, b := range found[1:] {
		if survivor, err = s.mergeTx(ctx, tx, survivor.ID, b.ID, nil); err != nil {
			return nil, err
		}
	}
	if len(found) > 1 {
		s.log.Info("merged duplicate baskets", "survivor_id", survivor.ID, "merged", len(found)-1)
	}
	return survivor, nil
}
