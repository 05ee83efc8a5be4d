//go:build integration

package integration

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bramblenode/bramble/internal/block"
	"github.com/bramblenode/bramble/internal/importer"
	"github.com/bramblenode/bramble/internal/receipt"
	"github.com/bramblenode/bramble/internal/sealer"
	"github.com/bramblenode/bramble/internal/store"
	"github.com/bramblenode/bramble/internal/syncwait"
	"github.com/bramblenode/bramble/internal/testutils"
	"github.com/bramblenode/bramble/internal/tx"
	"github.com/bramblenode/bramble/internal/txpool"
	"github.com/bramblenode/bramble/pkg/db/pebble"
	"github.com/bramblenode/bramble/pkg/network/blockfeed"
)

type node struct {
	chain       *store.Chain
	receipts    *store.Receipts
	pool        *txpool.Pool
	importer    *importer.Importer
	coordinator *syncwait.Coordinator
}

func newNode(t *testing.T, timeout time.Duration) (*node, context.CancelFunc) {
	t.Helper()

	kv, err := pebble.NewKVStore()
	require.NoError(t, err)
	t.Cleanup(func() { _ = kv.Close() })

	chain := store.NewChain(kv)
	receipts := store.NewReceipts(kv)
	im := importer.New(chain, receipts)
	pool := txpool.New(chain)

	registry := syncwait.NewRegistry(receipts)
	coordinator := syncwait.NewCoordinator(pool, registry, timeout)
	bridge := syncwait.NewBridge(registry, im)

	ctx, cancel := context.WithCancel(context.Background())
	go bridge.Run(ctx)

	return &node{
		chain:       chain,
		receipts:    receipts,
		pool:        pool,
		importer:    im,
		coordinator: coordinator,
	}, cancel
}

// A transaction submitted through the coordinator is resolved once the local
// sealer includes it in a block.
func TestSubmitAndWaitWithSealer(t *testing.T) {
	n, cancel := newNode(t, 5*time.Second)
	defer cancel()

	ctx, stopSealer := context.WithCancel(context.Background())
	defer stopSealer()
	go sealer.New(n.pool, n.chain, n.importer, 20*time.Millisecond).Run(ctx)

	raw := testutils.RandomTransaction(t).Raw
	rec, err := n.coordinator.SubmitAndWait(context.Background(), raw)
	require.NoError(t, err)

	require.NotNil(t, rec)
	assert.Equal(t, tx.HashData(raw), rec.TxHash)
	assert.Equal(t, receipt.StatusSuccessful, rec.Status)

	// The receipt returned to the waiter is the persisted one.
	stored, err := n.receipts.Get(rec.TxHash)
	require.NoError(t, err)
	assert.Equal(t, rec.BlockHash, stored.BlockHash)
}

// Blocks received over the feed resolve local waiters the same way locally
// sealed blocks do.
func TestSubmitAndWaitOverBlockFeed(t *testing.T) {
	n, cancel := newNode(t, 5*time.Second)
	defer cancel()

	listener := blockfeed.NewListener("127.0.0.1:0", n.importer)
	require.NoError(t, listener.Start())
	defer listener.Stop()

	transaction := testutils.RandomTransaction(t)

	done := make(chan error, 1)
	var rec *receipt.Receipt
	go func() {
		var err error
		rec, err = n.coordinator.SubmitAndWait(context.Background(), transaction.Raw)
		done <- err
	}()

	// Let the waiter register before the block arrives.
	require.Eventually(t, func() bool {
		return n.pool.Len() == 1
	}, time.Second, 5*time.Millisecond)

	b := &block.Block{
		Header:       block.Header{Number: 1, Timestamp: uint64(time.Now().Unix())},
		Transactions: []*tx.Transaction{transaction},
	}
	blockHash, err := b.Header.Hash()
	require.NoError(t, err)
	recs := []*receipt.Receipt{testutils.RandomReceipt(t, transaction.Hash())}
	recs[0].BlockHash = blockHash
	recs[0].BlockNumber = 1

	client, err := blockfeed.Dial(context.Background(), listener.Addr())
	require.NoError(t, err)
	defer client.Close()
	require.NoError(t, client.Send(context.Background(), b, recs))

	require.NoError(t, <-done)
	require.NotNil(t, rec)
	assert.Equal(t, transaction.Hash(), rec.TxHash)
	assert.Equal(t, blockHash, rec.BlockHash)
}

// A waiter whose transaction is never mined times out with the configured
// duration and leaves the pool entry intact.
func TestSubmitAndWaitTimesOutWithoutBlocks(t *testing.T) {
	n, cancel := newNode(t, 100*time.Millisecond)
	defer cancel()

	raw := testutils.RandomTransaction(t).Raw
	start := time.Now()
	rec, err := n.coordinator.SubmitAndWait(context.Background(), raw)
	elapsed := time.Since(start)

	require.Nil(t, rec)
	var timeoutErr *syncwait.TimeoutError
	require.ErrorAs(t, err, &timeoutErr)
	assert.Equal(t, tx.HashData(raw), timeoutErr.TxHash)
	assert.GreaterOrEqual(t, elapsed, 100*time.Millisecond)

	// The transaction stays pending; only the wait gave up.
	assert.Equal(t, 1, n.pool.Len())
}
