package pebble

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"

	"github.com/cockroachdb/pebble"

	"retail-pos-system/internal/core/domain"
	"retail-pos-system/internal/receipt"
)

var receiptPrefix = []byte("receipt/")

// Journal implements the ReceiptJournal port on a local PebbleDB so a terminal can reprint
// invoices without a round trip to the sales database.
type Journal struct {
	db *pebble.DB
}

func NewJournal(dir string) (*Journal, error) {
	opts := &pebble.Options{
		MemTableSize: 16 << 20,
	}
	db, err := pebble.Open(filepath.Clean(dir), opts)
	if err != nil {
		return nil, fmt.Errorf("pebble open: %w", err)
	}
	return &Journal{db: db}, nil
}

func (j *Journal) Close() error { return j.db.Close() }

func receiptKey(saleID string) []byte {
	return append(append([]byte{}, receiptPrefix...), saleID...)
}

// Append stores the receipt under its sale id. Appending the same sale twice overwrites it.
func (j *Journal) Append(_ context.Context, r domain.Receipt) error {
	payload, err := receipt.Encode(r)
	if err != nil {
		return err
	}
	// Receipts are few and must survive a crash, so every write syncs.
	if err := j.db.Set(receiptKey(r.SaleID), payload, pebble.Sync); err != nil {
		return fmt.Errorf("failed to journal receipt %s: %w", r.SaleID, err)
	}
	return nil
}

func (j *Journal) Get(_ context.Context, saleID string) (domain.Receipt, error) {
	v, closer, err := j.db.Get(receiptKey(saleID))
	if errors.Is(err, pebble.ErrNotFound) {
		return domain.Receipt{}, fmt.Errorf("%w: %s", domain.ErrSaleNotFound, saleID)
	}
	if err != nil {
		return domain.Receipt{}, fmt.Errorf("failed to read receipt %s: %w", saleID, err)
	}
	defer closer.Close()
	return receipt.Decode(v)
}

// List returns up to limit receipts in key order. A limit <= 0 means all of them.
func (j *Journal) List(_ context.Context, limit int) ([]domain.Receipt, error) {
	upper := append(append([]byte{}, receiptPrefix[:len(receiptPrefix)-1]...), receiptPrefix[len(receiptPrefix)-1]+1)
	iter, err := j.db.NewIter(&pebble.IterOptions{LowerBound: receiptPrefix, UpperBound: upper})
	if err != nil {
		return nil, fmt.Errorf("pebble iterator: %w", err)
	}
	defer iter.Close()

	var out []domain.Receipt
	for iter.First(); iter.Valid(); iter.Next() {
		r, err := receipt.Decode(iter.Value())
		if err != nil {
			return nil, fmt.Errorf("corrupt journal entry %q: %w", iter.Key(), err)
		}
		out = append(out, r)
		if limit > 0 && len(out) >= limit {
			break
		}
	}
	return out, iter.Error()
}

// Delete removes a receipt. Used by the receipt tool to prune the journal.
func (j *Journal) Delete(_ context.Context, saleID string) error {
	return j.db.Delete(receiptKey(saleID), pebble.Sync)
}
