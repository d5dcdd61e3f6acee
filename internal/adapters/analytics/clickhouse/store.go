package clickhouse

import (
	"context"
	"fmt"
	"time"

	"github.com/ClickHouse/clickhouse-go/v2"
	"github.com/ClickHouse/clickhouse-go/v2/lib/driver"
	"github.com/shopspring/decimal"

	"retail-pos-system/internal/audit"
	"retail-pos-system/internal/core/domain"
)

var schema = []string{
	`CREATE TABLE IF NOT EXISTS sale_facts (
		sale_id       String,
		customer_id   String,
		subtotal      Decimal(18, 4),
		discount      Decimal(18, 4),
		tax           Decimal(18, 4),
		total         Decimal(18, 4),
		credits_used  Decimal(18, 4),
		points_earned Int64,
		promotion_ids Array(String),
		flagged       UInt8,
		reason        String,
		created_at    DateTime64(3, 'UTC'),
		processed_at  DateTime64(3, 'UTC')
	) ENGINE = ReplacingMergeTree(processed_at) ORDER BY sale_id`,
	`CREATE TABLE IF NOT EXISTS sale_line_facts (
		sale_id    String,
		product_id String,
		name       String,
		quantity   Int32,
		price      Decimal(18, 4),
		created_at DateTime64(3, 'UTC')
	) ENGINE = MergeTree ORDER BY (product_id, created_at)`,
}

// Options mirrors the clickhouse section of the configuration.
type Options struct {
	Addr     string
	Database string
	Username string
	Password string
}

// Store writes sale facts and audit verdicts and answers the reporting queries.
type Store struct {
	conn driver.Conn
}

func Open(ctx context.Context, opts Options) (*Store, error) {
	conn, err := clickhouse.Open(&clickhouse.Options{
		Addr: []string{opts.Addr},
		Auth: clickhouse.Auth{
			Database: opts.Database,
			Username: opts.Username,
			Password: opts.Password,
		},
		DialTimeout: 5 * time.Second,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to open ClickHouse: %w", err)
	}
	if err := conn.Ping(ctx); err != nil {
		_ = conn.Close()
		return nil, fmt.Errorf("failed to ping ClickHouse: %w", err)
	}
	return &Store{conn: conn}, nil
}

func (s *Store) Close() error { return s.conn.Close() }

// EnsureSchema creates the tables when they are missing.
func (s *Store) EnsureSchema(ctx context.Context) error {
	for _, ddl := range schema {
		if err := s.conn.Exec(ctx, ddl); err != nil {
			return fmt.Errorf("failed to apply ClickHouse schema: %w", err)
		}
	}
	return nil
}

func flag(b bool) uint8 {
	if b {
		return 1
	}
	return 0
}

// RecordSale stores one settled sale, its lines and the audit verdict.
// Replays of the same sale collapse in sale_facts through ReplacingMergeTree.
func (s *Store) RecordSale(ctx context.Context, r domain.Receipt, verdict audit.Result) error {
	sale := r.Sale
	err := s.conn.Exec(ctx, `
		INSERT INTO sale_facts
		    (sale_id, customer_id, subtotal, discount, tax, total, credits_used, points_earned, promotion_ids, flagged, reason, created_at, processed_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		r.SaleID,
		sale.CustomerID,
		sale.Subtotal,
		sale.Discount,
		sale.Tax,
		sale.Total,
		sale.CreditsUsed,
		r.PointsEarned,
		sale.PromotionIDs,
		flag(verdict.Flagged),
		verdict.Reason,
		sale.CreatedAt,
		time.Now(),
	)
	if err != nil {
		return fmt.Errorf("failed to insert sale fact %s: %w", r.SaleID, err)
	}

	if len(sale.Lines) == 0 {
		return nil
	}
	batch, err := s.conn.PrepareBatch(ctx, "INSERT INTO sale_line_facts")
	if err != nil {
		return fmt.Errorf("failed to prepare line batch: %w", err)
	}
	for _, l := range sale.Lines {
		if err := batch.Append(r.SaleID, l.ProductID, l.Name, int32(l.Quantity), l.Price, sale.CreatedAt); err != nil {
			_ = batch.Abort()
			return fmt.Errorf("failed to append line of sale %s: %w", r.SaleID, err)
		}
	}
	if err := batch.Send(); err != nil {
		return fmt.Errorf("failed to send lines of sale %s: %w", r.SaleID, err)
	}
	return nil
}

// FlaggedSale is one row of the flagged report.
type FlaggedSale struct {
	SaleID      string
	CustomerID  string
	Total       decimal.Decimal
	Reason      string
	ProcessedAt time.Time
}

func (s *Store) FlaggedSales(ctx context.Context, limit int) ([]FlaggedSale, error) {
	rows, err := s.conn.Query(ctx, `
		SELECT sale_id, customer_id, total, reason, processed_at
		FROM sale_facts FINAL
		WHERE flagged = 1
		ORDER BY processed_at DESC
		LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query flagged sales: %w", err)
	}
	defer rows.Close()

	var out []FlaggedSale
	for rows.Next() {
		var f FlaggedSale
		if err := rows.Scan(&f.SaleID, &f.CustomerID, &f.Total, &f.Reason, &f.ProcessedAt); err != nil {
			return nil, fmt.Errorf("failed to scan flagged sale: %w", err)
		}
		out = append(out, f)
	}
	return out, rows.Err()
}

// ProductSales is one row of the top products report.
type ProductSales struct {
	ProductID string
	Name      string
	Units     int64
	Revenue   decimal.Decimal
}

func (s *Store) TopProducts(ctx context.Context, limit int) ([]ProductSales, error) {
	rows, err := s.conn.Query(ctx, `
		SELECT product_id, any(name), sum(quantity) AS units, sum(price * quantity) AS revenue
		FROM sale_line_facts
		GROUP BY product_id
		ORDER BY units DESC
		LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query top products: %w", err)
	}
	defer rows.Close()

	var out []ProductSales
	for rows.Next() {
		var p ProductSales
		if err := rows.Scan(&p.ProductID, &p.Name, &p.Units, &p.Revenue); err != nil {
			return nil, fmt.Errorf("failed to scan product sales: %w", err)
		}
		out = append(out, p)
	}
	return out, rows.Err()
}
