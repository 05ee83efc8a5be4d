package importer

import (
	"fmt"
	"sync"

	"github.com/bramblenode/bramble/internal/block"
	"github.com/bramblenode/bramble/internal/receipt"
	"github.com/bramblenode/bramble/internal/store"
	"github.com/bramblenode/bramble/pkg/log"
)

// subscriberBuffer is the per-subscriber event backlog. Bursts beyond this
// are dropped with a warning; a dropped event can only cause a false
// timeout on a waiting caller, never data loss, since receipts are
// persisted before the event is published.
const subscriberBuffer = 128

// Event describes one imported block and the receipts it produced.
type Event struct {
	Block    *block.Block
	Receipts []*receipt.Receipt
}

// Importer is the block import pipeline. It persists each block with its
// receipts and then publishes an Event to every subscriber. Receipts are
// written before the event goes out, so a subscriber that misses an event
// can always fall back to the receipt store.
type Importer struct {
	chain    *store.Chain
	receipts *store.Receipts

	mu   sync.Mutex
	subs []chan Event
}

func New(chain *store.Chain, receipts *store.Receipts) *Importer {
	return &Importer{
		chain:    chain,
		receipts: receipts,
	}
}

// Import persists a block and its receipts and notifies subscribers.
// Blocks arrive ordered from a single producer (sealer or block feed).
func (im *Importer) Import(b *block.Block, receipts []*receipt.Receipt) error {
	hash, err := b.Header.Hash()
	if err != nil {
		return fmt.Errorf("hash header: %w", err)
	}

	if err := im.receipts.PutBatch(receipts); err != nil {
		return fmt.Errorf("store receipts: %w", err)
	}
	if err := im.chain.PutBlock(b); err != nil {
		return fmt.Errorf("store block: %w", err)
	}

	log.Import.Info().
		Str("block", hash.Hex()).
		Uint64("number", b.Header.Number).
		Int("txs", len(b.Transactions)).
		Msg("block imported")

	ev := Event{Block: b, Receipts: receipts}
	im.mu.Lock()
	defer im.mu.Unlock()
	for _, sub := range im.subs {
		select {
		case sub <- ev:
		default:
			log.Import.Warn().
				Str("block", hash.Hex()).
				Msg("subscriber backlog full, import event dropped")
		}
	}
	return nil
}

// Subscribe registers a new event subscriber. The returned function
// removes the subscription and closes its channel.
func (im *Importer) Subscribe() (<-chan Event, func()) {
	ch := make(chan Event, subscriberBuffer)

	im.mu.Lock()
	im.subs = append(im.subs, ch)
	im.mu.Unlock()

	unsubscribe := func() {
		im.mu.Lock()
		defer im.mu.Unlock()
		for i, sub := range im.subs {
			if sub == ch {
				im.subs = append(im.subs[:i], im.subs[i+1:]...)
				close(ch)
				return
			}
		}
	}
	return ch, unsubscribe
}
