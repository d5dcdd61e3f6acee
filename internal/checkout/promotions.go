package checkout

import (
	"retail-pos-system/internal/core/domain"
)

// MatchOnAdd returns the catalog promotions triggered by product that are not applied yet.
// The caller merges the result into its applied set.
func MatchOnAdd(product domain.Product, catalog, applied []domain.Promotion) []domain.Promotion {
	var found []domain.Promotion
	for _, promo := range catalog {
		if !promo.Matches(product) {
			continue
		}
		if containsPromotion(applied, promo.ID) {
			continue
		}
		found = append(found, promo)
	}
	return found
}

// Reconcile filters applied down to the promotions still backed by a cart line.
// It never adds promotions back; only MatchOnAdd discovers them.
func Reconcile(lines []domain.CartLine, applied []domain.Promotion) []domain.Promotion {
	kept := make([]domain.Promotion, 0, len(applied))
	for _, promo := range applied {
		if promo.ApplicableToAll {
			kept = append(kept, promo)
			continue
		}
		for _, line := range lines {
			if promo.Matches(line.Product) {
				kept = append(kept, promo)
				break
			}
		}
	}
	return kept
}

// WithoutPromotion drops the promotion with the given id. ok is false when it was not applied.
func WithoutPromotion(applied []domain.Promotion, promotionID string) (remaining []domain.Promotion, ok bool) {
	remaining = make([]domain.Promotion, 0, len(applied))
	for _, promo := range applied {
		if promo.ID == promotionID {
			ok = true
			continue
		}
		remaining = append(remaining, promo)
	}
	return remaining, ok
}

func containsPromotion(set []domain.Promotion, id string) bool {
	for _, promo := range set {
		if promo.ID == id {
			return true
		}
	}
	return false
}
