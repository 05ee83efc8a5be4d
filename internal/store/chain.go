package store

import (
	"encoding/binary"
	"errors"
	"fmt"
	"math"

	"github.com/bramblenode/bramble/internal/block"
	"github.com/bramblenode/bramble/internal/tx"
	"github.com/bramblenode/bramble/pkg/db"
	"github.com/bramblenode/bramble/pkg/db/pebble"
)

var (
	ErrBlockNotFound = errors.New("block not found")
	ErrEmptyChain    = errors.New("chain has no head block")
)

// Chain manages block storage using a key-value store. Blocks are stored by
// hash with a number-to-hash index and a head pointer maintained alongside.
type Chain struct {
	db db.KVStore
}

// NewChain creates a new chain store using KVStore
func NewChain(db db.KVStore) *Chain {
	return &Chain{db: db}
}

// PutBlock stores a block, its number index and the head pointer atomically.
func (c *Chain) PutBlock(b *block.Block) error {
	hash, err := b.Header.Hash()
	if err != nil {
		return fmt.Errorf("hash header: %w", err)
	}
	blockBytes, err := b.Bytes()
	if err != nil {
		return fmt.Errorf("marshal block: %w", err)
	}

	batch := c.db.NewBatch()
	defer batch.Close()

	if err := batch.Put(makeKey(prefixBlock, hash[:]), blockBytes); err != nil {
		return fmt.Errorf("store block: %w", err)
	}
	if err := batch.Put(makeNumberKey(b.Header.Number), hash[:]); err != nil {
		return fmt.Errorf("store block number index: %w", err)
	}
	if err := batch.Put(makeKey(prefixHead, nil), hash[:]); err != nil {
		return fmt.Errorf("store head pointer: %w", err)
	}
	// Mark transactions as mined so the pool can reject resubmissions
	for _, transaction := range b.Transactions {
		txHash := transaction.Hash()
		if err := batch.Put(makeKey(prefixMinedTx, txHash[:]), hash[:]); err != nil {
			return fmt.Errorf("store mined tx index: %w", err)
		}
	}

	if err := batch.Commit(); err != nil {
		return fmt.Errorf("commit block: %w", err)
	}
	return nil
}

// GetBlock retrieves a block by its header hash
func (c *Chain) GetBlock(hash tx.Hash) (*block.Block, error) {
	blockBytes, err := c.db.Get(makeKey(prefixBlock, hash[:]))
	if err != nil {
		if errors.Is(err, pebble.ErrNotFound) {
			return nil, ErrBlockNotFound
		}
		return nil, fmt.Errorf("get block: %w", err)
	}
	return block.FromBytes(blockBytes)
}

// GetBlockByNumber retrieves a block through the number index.
func (c *Chain) GetBlockByNumber(number uint64) (*block.Block, error) {
	hashBytes, err := c.db.Get(makeNumberKey(number))
	if err != nil {
		if errors.Is(err, pebble.ErrNotFound) {
			return nil, ErrBlockNotFound
		}
		return nil, fmt.Errorf("get block number index: %w", err)
	}
	var hash tx.Hash
	copy(hash[:], hashBytes)
	return c.GetBlock(hash)
}

// Head returns the most recently imported block.
func (c *Chain) Head() (*block.Block, error) {
	hashBytes, err := c.db.Get(makeKey(prefixHead, nil))
	if err != nil {
		if errors.Is(err, pebble.ErrNotFound) {
			return nil, ErrEmptyChain
		}
		return nil, fmt.Errorf("get head pointer: %w", err)
	}
	var hash tx.Hash
	copy(hash[:], hashBytes)
	return c.GetBlock(hash)
}

// BlocksInRange returns the blocks with numbers in [from, to] in ascending
// order, walking the number index. Numbers with no stored block are skipped.
func (c *Chain) BlocksInRange(from, to uint64) ([]*block.Block, error) {
	if from > to {
		return nil, nil
	}
	upper := []byte{prefixBlockNumber + 1}
	if to < math.MaxUint64 {
		upper = makeNumberKey(to + 1)
	}
	iter, err := c.db.NewIterator(makeNumberKey(from), upper)
	if err != nil {
		return nil, fmt.Errorf("iterate block number index: %w", err)
	}
	defer iter.Close()

	var blocks []*block.Block
	for iter.Next() {
		hashBytes, err := iter.Value()
		if err != nil {
			return nil, fmt.Errorf("read block number index: %w", err)
		}
		var hash tx.Hash
		copy(hash[:], hashBytes)
		b, err := c.GetBlock(hash)
		if err != nil {
			return nil, err
		}
		blocks = append(blocks, b)
	}
	return blocks, nil
}

// HasMinedTx reports whether a transaction was already included in an
// imported block.
func (c *Chain) HasMinedTx(hash tx.Hash) (bool, error) {
	ok, err := c.db.Has(makeKey(prefixMinedTx, hash[:]))
	if err != nil {
		return false, fmt.Errorf("check mined tx: %w", err)
	}
	return ok, nil
}

// makeNumberKey creates a big-endian number index key so iteration order
// matches block order
func makeNumberKey(number uint64) []byte {
	key := make([]byte, 9)
	key[0] = prefixBlockNumber
	binary.BigEndian.PutUint64(key[1:], number)
	return key
}
