package store

import (
	"errors"
	"fmt"

	"github.com/bramblenode/bramble/internal/receipt"
	"github.com/bramblenode/bramble/internal/tx"
	"github.com/bramblenode/bramble/pkg/db"
	"github.com/bramblenode/bramble/pkg/db/pebble"
)

var ErrReceiptNotFound = errors.New("receipt not found")

// Receipts is the durable lookup from transaction hash to receipt for
// already-imported blocks. It is written once per block by the importer
// and read-only everywhere else.
type Receipts struct {
	db db.KVStore
}

// NewReceipts creates a new receipt store using KVStore
func NewReceipts(db db.KVStore) *Receipts {
	return &Receipts{db: db}
}

// Put stores a single receipt keyed by its transaction hash.
func (r *Receipts) Put(rec *receipt.Receipt) error {
	bytes, err := rec.Bytes()
	if err != nil {
		return fmt.Errorf("marshal receipt: %w", err)
	}
	if err := r.db.Put(makeKey(prefixReceipt, rec.TxHash[:]), bytes); err != nil {
		return fmt.Errorf("put receipt: %w", err)
	}
	return nil
}

// PutBatch writes all receipts of one block through a single atomic batch
// so a partially imported block never leaves a partial receipt set behind.
func (r *Receipts) PutBatch(receipts []*receipt.Receipt) error {
	batch := r.db.NewBatch()
	defer batch.Close()

	for _, rec := range receipts {
		bytes, err := rec.Bytes()
		if err != nil {
			return fmt.Errorf("marshal receipt %s: %w", rec.TxHash, err)
		}
		if err := batch.Put(makeKey(prefixReceipt, rec.TxHash[:]), bytes); err != nil {
			return fmt.Errorf("batch receipt %s: %w", rec.TxHash, err)
		}
	}
	if err := batch.Commit(); err != nil {
		return fmt.Errorf("commit receipts: %w", err)
	}
	return nil
}

// Get retrieves the receipt for a transaction hash. Returns
// ErrReceiptNotFound if the transaction has not been included yet.
func (r *Receipts) Get(hash tx.Hash) (*receipt.Receipt, error) {
	bytes, err := r.db.Get(makeKey(prefixReceipt, hash[:]))
	if err != nil {
		if errors.Is(err, pebble.ErrNotFound) {
			return nil, ErrReceiptNotFound
		}
		return nil, fmt.Errorf("get receipt: %w", err)
	}
	return receipt.FromBytes(bytes)
}

// Has reports whether a receipt exists for the given transaction hash.
func (r *Receipts) Has(hash tx.Hash) (bool, error) {
	ok, err := r.db.Has(makeKey(prefixReceipt, hash[:]))
	if err != nil {
		return false, fmt.Errorf("check receipt: %w", err)
	}
	return ok, nil
}
