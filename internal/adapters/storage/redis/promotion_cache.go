package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/shopspring/decimal"

	"retail-pos-system/internal/core/domain"
	"retail-pos-system/internal/core/ports"
)

const promotionsKey = "pos:promotions:v1"

type cachedPromotion struct {
	ID              string          `json:"id"`
	Name            string          `json:"name"`
	DiscountType    string          `json:"discount_type"`
	DiscountValue   decimal.Decimal `json:"discount_value"`
	ProductID       string          `json:"product_id,omitempty"`
	Category        string          `json:"category,omitempty"`
	ApplicableToAll bool            `json:"applicable_to_all"`
}

// PromotionCache keeps the promotion catalog snapshot in Redis in front of the source of truth.
// A Redis failure falls back to the source; stale reads are bounded by ttl.
type PromotionCache struct {
	rdb    redis.Cmdable
	source ports.PromotionCatalog
	ttl    time.Duration
	logger *slog.Logger
}

func NewPromotionCache(rdb redis.Cmdable, source ports.PromotionCatalog, ttl time.Duration, logger *slog.Logger) *PromotionCache {
	return &PromotionCache{rdb: rdb, source: source, ttl: ttl, logger: logger}
}

func (c *PromotionCache) ListPromotions(ctx context.Context) ([]domain.Promotion, error) {
	raw, err := c.rdb.Get(ctx, promotionsKey).Bytes()
	switch {
	case err == nil:
		promos, decodeErr := decodePromotions(raw)
		if decodeErr == nil {
			return promos, nil
		}
		c.logger.Warn("dropping unreadable promotion cache entry", "error", decodeErr)
	case !errors.Is(err, redis.Nil):
		c.logger.Warn("promotion cache unavailable, reading source", "error", err)
	}

	promos, err := c.source.ListPromotions(ctx)
	if err != nil {
		return nil, err
	}

	payload, err := encodePromotions(promos)
	if err != nil {
		return nil, err
	}
	if err := c.rdb.Set(ctx, promotionsKey, payload, c.ttl).Err(); err != nil {
		c.logger.Warn("failed to refresh promotion cache", "error", err)
	}
	return promos, nil
}

// Invalidate drops the cached snapshot so the next session reads the source.
func (c *PromotionCache) Invalidate(ctx context.Context) error {
	return c.rdb.Del(ctx, promotionsKey).Err()
}

func encodePromotions(promos []domain.Promotion) ([]byte, error) {
	cached := make([]cachedPromotion, 0, len(promos))
	for _, p := range promos {
		cached = append(cached, cachedPromotion{
			ID:              p.ID,
			Name:            p.Name,
			DiscountType:    string(p.DiscountType),
			DiscountValue:   p.DiscountValue,
			ProductID:       p.ProductID,
			Category:        p.Category,
			ApplicableToAll: p.ApplicableToAll,
		})
	}
	payload, err := json.Marshal(cached)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal promotions: %w", err)
	}
	return payload, nil
}

func decodePromotions(raw []byte) ([]domain.Promotion, error) {
	var cached []cachedPromotion
	if err := json.Unmarshal(raw, &cached); err != nil {
		return nil, err
	}
	promos := make([]domain.Promotion, 0, len(cached))
	for _, p := range cached {
		promos = append(promos, domain.Promotion{
			ID:              p.ID,
			Name:            p.Name,
			DiscountType:    domain.DiscountType(p.DiscountType),
			DiscountValue:   p.DiscountValue,
			ProductID:       p.ProductID,
			Category:        p.Category,
			ApplicableToAll: p.ApplicableToAll,
		})
	}
	return promos, nil
}
