package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/shopspring/decimal"

	"retail-pos-system/internal/core/domain"
)

// CreateSale implements the SaleRepository port. A repeated idempotency key returns the stored sale id
// without writing anything, which makes a checkout retry after a lost response safe.
func (r *Repository) CreateSale(ctx context.Context, sale domain.SaleRecord) (string, error) {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return "", fmt.Errorf("failed to begin sale transaction: %w", err)
	}
	defer tx.Rollback(ctx) //nolint:errcheck

	const insertSale = `
		INSERT INTO sales
		    (idempotency_key, customer_id, subtotal, tax, discount, total, credits_used, promotion_ids, created_at)
		VALUES
		    ($1, NULLIF($2, ''), $3::numeric, $4::numeric, $5::numeric, $6::numeric, $7::numeric, $8, $9)
		ON CONFLICT (idempotency_key) DO NOTHING
		RETURNING id::text
	`
	promotionIDs := sale.PromotionIDs
	if promotionIDs == nil {
		promotionIDs = []string{}
	}
	var saleID string
	err = tx.QueryRow(ctx, insertSale,
		sale.IdempotencyKey,
		sale.CustomerID,
		sale.Subtotal.String(),
		sale.Tax.String(),
		sale.Discount.String(),
		sale.Total.String(),
		sale.CreditsUsed.String(),
		promotionIDs,
		sale.CreatedAt,
	).Scan(&saleID)
	if errors.Is(err, pgx.ErrNoRows) {
		return r.saleIDByKey(ctx, sale)
	}
	if err != nil {
		return "", fmt.Errorf("failed to insert sale: %w", err)
	}

	batch := &pgx.Batch{}
	for i, line := range sale.Lines {
		batch.Queue(
			`INSERT INTO sale_lines (sale_id, line_no, product_id, name, quantity, price) VALUES ($1::bigint, $2, $3, $4, $5, $6::numeric)`,
			saleID, i+1, line.ProductID, line.Name, line.Quantity, line.Price.String(),
		)
	}
	if err := tx.SendBatch(ctx, batch).Close(); err != nil {
		return "", fmt.Errorf("failed to insert lines of sale %s: %w", saleID, err)
	}

	if err := tx.Commit(ctx); err != nil {
		return "", fmt.Errorf("failed to commit sale %s: %w", saleID, err)
	}
	return saleID, nil
}

func (r *Repository) saleIDByKey(ctx context.Context, sale domain.SaleRecord) (string, error) {
	var saleID string
	err := r.pool.QueryRow(ctx, `SELECT id::text FROM sales WHERE idempotency_key = $1`, sale.IdempotencyKey).Scan(&saleID)
	if err != nil {
		return "", fmt.Errorf("failed to load sale for idempotency key %s: %w", sale.IdempotencyKey, err)
	}
	return saleID, nil
}

// SetCustomerCredit implements the CustomerCreditUpdater port. The write is a plain overwrite.
func (r *Repository) SetCustomerCredit(ctx context.Context, customerID string, newBalance decimal.Decimal) error {
	tag, err := r.pool.Exec(ctx,
		`UPDATE customers SET credit_balance = $2::numeric, updated_at = now() WHERE id = $1`,
		customerID, newBalance.String(),
	)
	if err != nil {
		return fmt.Errorf("failed to update credit of customer %s: %w", customerID, err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("%w: %s", domain.ErrCustomerNotFound, customerID)
	}
	return nil
}
