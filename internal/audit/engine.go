// Package audit flags settled sales that deserve a manager's second look.
package audit

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/shopspring/decimal"

	"retail-pos-system/internal/config"
	"retail-pos-system/internal/core/domain"
)

// Result is the verdict on one sale.
type Result struct {
	Flagged bool   `json:"flagged"`
	Reason  string `json:"reason"`
}

// RuleEngine audits a settled sale.
type RuleEngine interface {
	Audit(ctx context.Context, receipt domain.Receipt) Result
}

// Counter counts events per key inside a time window.
type Counter interface {
	Increment(ctx context.Context, key string, window time.Duration) (int64, error)
}

// CachingRuleEngine implements RuleEngine with a stateless discount rule and a
// counter backed credit redemption rule.
type CachingRuleEngine struct {
	counter Counter
	cfg     config.SalesAuditConfig
	logger  *slog.Logger
}

// NewCachingRuleEngine creates a new engine on top of a window counter (Redis in production).
func NewCachingRuleEngine(counter Counter, cfg config.SalesAuditConfig, logger *slog.Logger) *CachingRuleEngine {
	return &CachingRuleEngine{
		counter: counter,
		cfg:     cfg,
		logger:  logger,
	}
}

func (e *CachingRuleEngine) Audit(ctx context.Context, receipt domain.Receipt) Result {
	sale := receipt.Sale

	// Rule 1: the discount takes too large a share of the subtotal.
	if sale.Subtotal.IsPositive() {
		ratio := sale.Discount.Div(sale.Subtotal)
		threshold := decimal.NewFromFloat(e.cfg.DiscountRatioThreshold)
		if ratio.GreaterThan(threshold) {
			return Result{
				Flagged: true,
				Reason:  fmt.Sprintf("Discount is %s%% of subtotal", ratio.Mul(decimal.NewFromInt(100)).StringFixed(1)),
			}
		}
	}

	// Rule 2: one customer redeems credits too often.
	if receipt.IsGuest() || !sale.CreditsUsed.IsPositive() {
		return Result{}
	}
	count, err := e.counter.Increment(ctx, "credit_redemptions:"+sale.CustomerID, e.cfg.CreditWindow())
	if err != nil {
		e.logger.Error("credit redemption counter failed", "customer_id", sale.CustomerID, "error", err)
		return Result{}
	}
	if count > int64(e.cfg.CreditFrequencyThreshold) {
		return Result{
			Flagged: true,
			Reason: fmt.Sprintf(
				"High frequency: %d credit redemptions in %d seconds",
				count,
				e.cfg.CreditWindowSeconds,
			),
		}
	}

	return Result{}
}
