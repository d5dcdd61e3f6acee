package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"

	"retail-pos-system/internal/core/domain"
)

func (r *Repository) LookupProduct(ctx context.Context, id string) (domain.Product, error) {
	const sql = `SELECT id, name, price::text, category FROM products WHERE id = $1`

	var (
		p     domain.Product
		price string
	)
	err := r.pool.QueryRow(ctx, sql, id).Scan(&p.ID, &p.Name, &price, &p.Category)
	if errors.Is(err, pgx.ErrNoRows) {
		return domain.Product{}, fmt.Errorf("%w: %s", domain.ErrProductNotFound, id)
	}
	if err != nil {
		return domain.Product{}, fmt.Errorf("failed to load product %s: %w", id, err)
	}
	if p.Price, err = parseMoney("products.price", price); err != nil {
		return domain.Product{}, err
	}
	return p, nil
}

func (r *Repository) LookupCustomer(ctx context.Context, id string) (domain.Customer, error) {
	const sql = `SELECT id, name, loyalty_points, credit_balance::text FROM customers WHERE id = $1`

	var (
		c       domain.Customer
		balance string
	)
	err := r.pool.QueryRow(ctx, sql, id).Scan(&c.ID, &c.Name, &c.LoyaltyPoints, &balance)
	if errors.Is(err, pgx.ErrNoRows) {
		return domain.Customer{}, fmt.Errorf("%w: %s", domain.ErrCustomerNotFound, id)
	}
	if err != nil {
		return domain.Customer{}, fmt.Errorf("failed to load customer %s: %w", id, err)
	}
	if c.CreditBalance, err = parseMoney("customers.credit_balance", balance); err != nil {
		return domain.Customer{}, err
	}
	return c, nil
}

// ListPromotions returns active promotions in a stable order so discovery order is deterministic.
func (r *Repository) ListPromotions(ctx context.Context) ([]domain.Promotion, error) {
	const sql = `
		SELECT id, name, discount_type, discount_value::text,
		       COALESCE(product_id, ''), COALESCE(category, ''), applicable_to_all
		FROM promotions
		WHERE active
		ORDER BY priority, id
	`
	rows, err := r.pool.Query(ctx, sql)
	if err != nil {
		return nil, fmt.Errorf("failed to query promotions: %w", err)
	}
	defer rows.Close()

	var promos []domain.Promotion
	for rows.Next() {
		var (
			p     domain.Promotion
			kind  string
			value string
		)
		if err := rows.Scan(&p.ID, &p.Name, &kind, &value, &p.ProductID, &p.Category, &p.ApplicableToAll); err != nil {
			return nil, fmt.Errorf("failed to scan promotion: %w", err)
		}
		p.DiscountType = domain.DiscountType(kind)
		if p.DiscountValue, err = parseMoney("promotions.discount_value", value); err != nil {
			return nil, err
		}
		promos = append(promos, p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to read promotions: %w", err)
	}
	return promos, nil
}
