// Package receipt holds the wire and print formats of a settled sale.
package receipt

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"retail-pos-system/internal/core/domain"
)

// Line is one sold product in a Document.
type Line struct {
	ProductID string          `json:"product_id"`
	Name      string          `json:"name"`
	Quantity  int             `json:"quantity"`
	Price     decimal.Decimal `json:"price"`
}

// Document is the JSON form of a receipt. It is what goes to Kafka as the
// sale.completed payload and what the journal stores for reprints.
type Document struct {
	SaleID           string          `json:"sale_id"`
	IdempotencyKey   string          `json:"idempotency_key"`
	CustomerID       string          `json:"customer_id,omitempty"`
	CustomerName     string          `json:"customer_name,omitempty"`
	Lines            []Line          `json:"lines"`
	Subtotal         decimal.Decimal `json:"subtotal"`
	Discount         decimal.Decimal `json:"discount"`
	Tax              decimal.Decimal `json:"tax"`
	Total            decimal.Decimal `json:"total"`
	PromotionIDs     []string        `json:"promotion_ids"`
	CreditsUsed      decimal.Decimal `json:"credits_used"`
	PointsEarned     int64           `json:"points_earned"`
	RemainingCredit  decimal.Decimal `json:"remaining_credit"`
	NewCreditBalance decimal.Decimal `json:"new_credit_balance"`
	CreatedAt        string          `json:"created_at"`
}

// FromReceipt flattens a receipt into its wire form.
func FromReceipt(r domain.Receipt) Document {
	doc := Document{
		SaleID:           r.SaleID,
		IdempotencyKey:   r.Sale.IdempotencyKey.String(),
		CustomerID:       r.Sale.CustomerID,
		CustomerName:     r.CustomerName,
		Lines:            make([]Line, 0, len(r.Sale.Lines)),
		Subtotal:         r.Sale.Subtotal,
		Discount:         r.Sale.Discount,
		Tax:              r.Sale.Tax,
		Total:            r.Sale.Total,
		PromotionIDs:     append([]string{}, r.Sale.PromotionIDs...),
		CreditsUsed:      r.Sale.CreditsUsed,
		PointsEarned:     r.PointsEarned,
		RemainingCredit:  r.RemainingCredit,
		NewCreditBalance: r.NewCreditBalance,
		CreatedAt:        r.Sale.CreatedAt.UTC().Format(time.RFC3339Nano),
	}
	for _, l := range r.Sale.Lines {
		doc.Lines = append(doc.Lines, Line{ProductID: l.ProductID, Name: l.Name, Quantity: l.Quantity, Price: l.Price})
	}
	return doc
}

// Receipt rebuilds the domain receipt.
func (d Document) Receipt() (domain.Receipt, error) {
	key, err := uuid.Parse(d.IdempotencyKey)
	if err != nil {
		return domain.Receipt{}, fmt.Errorf("invalid idempotency key %q: %w", d.IdempotencyKey, err)
	}
	createdAt, err := time.Parse(time.RFC3339Nano, d.CreatedAt)
	if err != nil {
		return domain.Receipt{}, fmt.Errorf("invalid created_at %q: %w", d.CreatedAt, err)
	}

	sale := domain.SaleRecord{
		IdempotencyKey: key,
		CustomerID:     d.CustomerID,
		Lines:          make([]domain.SaleLine, 0, len(d.Lines)),
		Subtotal:       d.Subtotal,
		Tax:            d.Tax,
		Discount:       d.Discount,
		Total:          d.Total,
		PromotionIDs:   d.PromotionIDs,
		CreditsUsed:    d.CreditsUsed,
		CreatedAt:      createdAt,
	}
	for _, l := range d.Lines {
		sale.Lines = append(sale.Lines, domain.SaleLine{ProductID: l.ProductID, Name: l.Name, Quantity: l.Quantity, Price: l.Price})
	}
	return domain.Receipt{
		SaleID:           d.SaleID,
		Sale:             sale,
		CustomerName:     d.CustomerName,
		PointsEarned:     d.PointsEarned,
		RemainingCredit:  d.RemainingCredit,
		NewCreditBalance: d.NewCreditBalance,
	}, nil
}

// Encode marshals a receipt to JSON.
func Encode(r domain.Receipt) ([]byte, error) {
	payload, err := json.Marshal(FromReceipt(r))
	if err != nil {
		return nil, fmt.Errorf("failed to marshal receipt %s: %w", r.SaleID, err)
	}
	return payload, nil
}

// Decode is the inverse of Encode.
func Decode(payload []byte) (domain.Receipt, error) {
	var doc Document
	if err := json.Unmarshal(payload, &doc); err != nil {
		return domain.Receipt{}, fmt.Errorf("failed to unmarshal receipt: %w", err)
	}
	return doc.Receipt()
}
