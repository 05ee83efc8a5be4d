package txpool

import (
	"errors"
	"fmt"
	"sync"

	"github.com/bramblenode/bramble/internal/store"
	"github.com/bramblenode/bramble/internal/tx"
	"github.com/bramblenode/bramble/pkg/log"
)

var (
	ErrAlreadyKnown = errors.New("transaction already in pool")
	ErrAlreadyMined = errors.New("transaction already included in a block")
)

// Pool accepts raw signed transactions, validates them, assigns their hash
// and queues them for block production. Admission policy is deliberately
// thin: size and duplicate checks only.
type Pool struct {
	mu      sync.Mutex
	pending []*tx.Transaction
	known   map[tx.Hash]struct{}
	chain   *store.Chain
	notify  chan struct{}
}

// New creates an empty pool backed by the chain store for duplicate
// detection against already-mined transactions.
func New(chain *store.Chain) *Pool {
	return &Pool{
		known:  make(map[tx.Hash]struct{}),
		chain:  chain,
		notify: make(chan struct{}, 1),
	}
}

// Add validates the raw transaction bytes and admits the transaction to
// the pool. On success it returns the assigned transaction hash and makes
// the transaction visible to block production. Validation failures are
// returned unchanged, before any other state is touched.
func (p *Pool) Add(raw []byte) (tx.Hash, error) {
	transaction, err := tx.NewTransaction(raw)
	if err != nil {
		return tx.Hash{}, err
	}
	hash := transaction.Hash()

	mined, err := p.chain.HasMinedTx(hash)
	if err != nil {
		return tx.Hash{}, fmt.Errorf("check mined state: %w", err)
	}
	if mined {
		return tx.Hash{}, fmt.Errorf("%w: %s", ErrAlreadyMined, hash)
	}

	p.mu.Lock()
	defer p.mu.Unlock()
	if _, ok := p.known[hash]; ok {
		return tx.Hash{}, fmt.Errorf("%w: %s", ErrAlreadyKnown, hash)
	}
	p.known[hash] = struct{}{}
	p.pending = append(p.pending, transaction)

	log.TxPool.Debug().Str("tx", hash.Hex()).Int("pending", len(p.pending)).Msg("transaction admitted")

	// Non-blocking wake for the sealer
	select {
	case p.notify <- struct{}{}:
	default:
	}
	return hash, nil
}

// Pending removes and returns up to max queued transactions in admission
// order. A max of zero or less drains the whole pool.
func (p *Pool) Pending(max int) []*tx.Transaction {
	p.mu.Lock()
	defer p.mu.Unlock()

	n := len(p.pending)
	if max > 0 && max < n {
		n = max
	}
	if n == 0 {
		return nil
	}

	drained := p.pending[:n]
	p.pending = append([]*tx.Transaction(nil), p.pending[n:]...)
	for _, transaction := range drained {
		delete(p.known, transaction.Hash())
	}
	return drained
}

// Notify returns a channel that receives a signal whenever new
// transactions become available for block production.
func (p *Pool) Notify() <-chan struct{} {
	return p.notify
}

// Len returns the number of queued transactions.
func (p *Pool) Len() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.pending)
}
