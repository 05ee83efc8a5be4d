package sealer

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/bramblenode/bramble/internal/block"
	"github.com/bramblenode/bramble/internal/importer"
	"github.com/bramblenode/bramble/internal/receipt"
	"github.com/bramblenode/bramble/internal/store"
	"github.com/bramblenode/bramble/internal/tx"
	"github.com/bramblenode/bramble/internal/txpool"
	"github.com/bramblenode/bramble/pkg/log"
)

const (
	// DefaultInterval is the sealing period when none is configured.
	DefaultInterval = 500 * time.Millisecond
	// maxBlockTxs caps how many pool transactions go into one block.
	maxBlockTxs = 256
	// intrinsicGas is charged per transaction. Gas accounting is not
	// modelled on this node; every transaction costs the intrinsic amount.
	intrinsicGas = 21000
)

// Sealer is a development-mode block producer: it drains the transaction
// pool on an interval and feeds the resulting blocks through the import
// pipeline. It stands in for consensus so a single node is end-to-end
// runnable.
type Sealer struct {
	pool     *txpool.Pool
	chain    *store.Chain
	importer *importer.Importer
	interval time.Duration
}

func New(pool *txpool.Pool, chain *store.Chain, im *importer.Importer, interval time.Duration) *Sealer {
	if interval <= 0 {
		interval = DefaultInterval
	}
	return &Sealer{
		pool:     pool,
		chain:    chain,
		importer: im,
		interval: interval,
	}
}

// Run produces blocks until the context is cancelled. A new block is
// attempted every interval and immediately when the pool signals fresh
// transactions after an idle period.
func (s *Sealer) Run(ctx context.Context) {
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			log.Import.Info().Msg("sealer stopping")
			return
		case <-ticker.C:
		case <-s.pool.Notify():
		}
		if err := s.sealBlock(); err != nil {
			log.Import.Error().Err(err).Msg("seal block")
		}
	}
}

// sealBlock drains pending transactions into one block with synthetic
// receipts and imports it. A tick with an empty pool produces no block.
func (s *Sealer) sealBlock() error {
	txs := s.pool.Pending(maxBlockTxs)
	if len(txs) == 0 {
		return nil
	}

	var parentHash tx.Hash
	number := uint64(1)
	head, err := s.chain.Head()
	switch {
	case err == nil:
		number = head.Header.Number + 1
		parentHash, err = head.Header.Hash()
		if err != nil {
			return fmt.Errorf("hash head header: %w", err)
		}
	case errors.Is(err, store.ErrEmptyChain):
		// First block builds on the zero parent
	default:
		return fmt.Errorf("read head: %w", err)
	}

	b := &block.Block{
		Header: block.Header{
			Number:     number,
			ParentHash: parentHash,
			Timestamp:  uint64(time.Now().Unix()),
		},
		Transactions: txs,
	}
	blockHash, err := b.Header.Hash()
	if err != nil {
		return fmt.Errorf("hash header: %w", err)
	}

	receipts := make([]*receipt.Receipt, len(txs))
	cumulative := uint64(0)
	for i, transaction := range txs {
		cumulative += intrinsicGas
		receipts[i] = &receipt.Receipt{
			TxHash:            transaction.Hash(),
			TxIndex:           uint32(i),
			BlockHash:         blockHash,
			BlockNumber:       number,
			Status:            receipt.StatusSuccessful,
			GasUsed:           intrinsicGas,
			CumulativeGasUsed: cumulative,
		}
	}

	if err := s.importer.Import(b, receipts); err != nil {
		return fmt.Errorf("import sealed block: %w", err)
	}
	return nil
}
