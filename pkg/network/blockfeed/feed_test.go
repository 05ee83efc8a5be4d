package blockfeed

import (
	"context"
	"testing"
	"time"

	"github.com/fxamacker/cbor/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bramblenode/bramble/internal/block"
	"github.com/bramblenode/bramble/internal/importer"
	"github.com/bramblenode/bramble/internal/receipt"
	"github.com/bramblenode/bramble/internal/store"
	"github.com/bramblenode/bramble/internal/testutils"
	"github.com/bramblenode/bramble/internal/tx"
	"github.com/bramblenode/bramble/pkg/db/pebble"
)

func newFeedFixture(t *testing.T) (*Listener, *store.Chain, *store.Receipts, *importer.Importer) {
	db, err := pebble.NewKVStore()
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })

	chain := store.NewChain(db)
	receipts := store.NewReceipts(db)
	im := importer.New(chain, receipts)

	listener := NewListener("127.0.0.1:0", im)
	require.NoError(t, listener.Start())
	t.Cleanup(func() { _ = listener.Stop() })

	return listener, chain, receipts, im
}

func makeFedBlock(t *testing.T, number uint64) (*block.Block, []*receipt.Receipt) {
	transaction := testutils.RandomTransaction(t)
	b := &block.Block{
		Header:       block.Header{Number: number, Timestamp: uint64(time.Now().Unix())},
		Transactions: []*tx.Transaction{transaction},
	}
	hash, err := b.Header.Hash()
	require.NoError(t, err)
	rec := &receipt.Receipt{
		TxHash:            transaction.Hash(),
		BlockHash:         hash,
		BlockNumber:       number,
		Status:            receipt.StatusSuccessful,
		GasUsed:           21000,
		CumulativeGasUsed: 21000,
	}
	return b, []*receipt.Receipt{rec}
}

func TestFeedDeliversBlocks(t *testing.T) {
	listener, chain, receipts, im := newFeedFixture(t)

	events, unsubscribe := im.Subscribe()
	defer unsubscribe()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	client, err := Dial(ctx, listener.Addr())
	require.NoError(t, err)
	defer client.Close()

	b, recs := makeFedBlock(t, 1)
	require.NoError(t, client.Send(ctx, b, recs))

	select {
	case ev := <-events:
		assert.Equal(t, b.Header, ev.Block.Header)
	case <-time.After(5 * time.Second):
		t.Fatal("fed block was not imported")
	}

	head, err := chain.Head()
	require.NoError(t, err)
	assert.Equal(t, uint64(1), head.Header.Number)

	got, err := receipts.Get(recs[0].TxHash)
	require.NoError(t, err)
	assert.Equal(t, recs[0], got)
}

func TestFeedDeliversSequence(t *testing.T) {
	listener, chain, _, im := newFeedFixture(t)

	events, unsubscribe := im.Subscribe()
	defer unsubscribe()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	client, err := Dial(ctx, listener.Addr())
	require.NoError(t, err)
	defer client.Close()

	const blocks = 3
	for number := uint64(1); number <= blocks; number++ {
		b, recs := makeFedBlock(t, number)
		require.NoError(t, client.Send(ctx, b, recs))
	}

	for i := 0; i < blocks; i++ {
		select {
		case <-events:
		case <-time.After(5 * time.Second):
			t.Fatalf("missing import event %d", i+1)
		}
	}

	head, err := chain.Head()
	require.NoError(t, err)
	assert.Equal(t, uint64(blocks), head.Header.Number)
}

func TestEnvelopeRoundTrip(t *testing.T) {
	b, recs := makeFedBlock(t, 7)

	content, err := cbor.Marshal(envelope{Block: b, Receipts: recs})
	require.NoError(t, err)

	var env envelope
	require.NoError(t, cbor.Unmarshal(content, &env))
	assert.Equal(t, b.Header, env.Block.Header)
	require.Len(t, env.Receipts, 1)
	assert.Equal(t, recs[0], env.Receipts[0])
}

func TestIdentityValidation(t *testing.T) {
	identity, err := newIdentity()
	require.NoError(t, err)
	require.NoError(t, validateCertificate(identity.Leaf))

	require.NoError(t, verifyPeer(identity.Certificate))
	assert.Error(t, verifyPeer(nil), "missing peer certificate must be rejected")
}
