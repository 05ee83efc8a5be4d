package syncwait

import (
	"errors"
	"fmt"
	"sync"

	"github.com/bramblenode/bramble/internal/receipt"
	"github.com/bramblenode/bramble/internal/store"
	"github.com/bramblenode/bramble/internal/tx"
	"github.com/bramblenode/bramble/pkg/log"
)

// shardCount is the number of independent locks in the registry. Sharding
// by the first hash byte keeps unrelated transactions from serializing
// behind one lock.
const shardCount = 16

// Handle identifies one registered ticket for later cancellation.
type Handle struct {
	hash   tx.Hash
	ticket *WaitTicket
}

type registryShard struct {
	mu      sync.Mutex
	waiters map[tx.Hash][]*WaitTicket
}

// Registry is the single source of truth for which tickets are waiting on
// which transaction hash. An entry exists if and only if at least one
// unfinished ticket is registered for that hash; empty entries are removed
// immediately so the registry never grows with completed waits.
type Registry struct {
	receipts *store.Receipts
	shards   [shardCount]registryShard
}

// NewRegistry creates a registry backed by the receipt store, which is
// consulted during Register to close the submit/import race.
func NewRegistry(receipts *store.Receipts) *Registry {
	r := &Registry{receipts: receipts}
	for i := range r.shards {
		r.shards[i].waiters = make(map[tx.Hash][]*WaitTicket)
	}
	return r
}

func (r *Registry) shard(hash tx.Hash) *registryShard {
	return &r.shards[hash[0]%shardCount]
}

// Register inserts the ticket under the transaction hash. If a receipt for
// the hash already exists (imported before this call, or resolved by the
// bridge in the window before the insert) the ticket is delivered
// immediately instead of waiting. The ticket is inserted before the store
// lookup so an import arriving between the two is observed either way.
func (r *Registry) Register(hash tx.Hash, ticket *WaitTicket) (Handle, error) {
	s := r.shard(hash)
	s.mu.Lock()
	s.waiters[hash] = append(s.waiters[hash], ticket)
	s.mu.Unlock()

	handle := Handle{hash: hash, ticket: ticket}

	rec, err := r.receipts.Get(hash)
	if err != nil {
		if errors.Is(err, store.ErrReceiptNotFound) {
			return handle, nil
		}
		r.remove(handle)
		return Handle{}, fmt.Errorf("receipt store lookup during register: %w", err)
	}

	// Already imported: deliver now and drop the registration.
	ticket.deliver(rec)
	r.remove(handle)
	return handle, nil
}

// Resolve delivers the receipt to every ticket currently registered for
// the hash and removes the entry. Called by the bridge for each receipt of
// each imported block. Delivery to a ticket that already timed out is a
// benign no-op; delivery to a ticket that already holds a receipt means a
// broken invariant and is logged, never propagated to other waiters.
func (r *Registry) Resolve(hash tx.Hash, rec *receipt.Receipt) {
	s := r.shard(hash)
	s.mu.Lock()
	tickets := s.waiters[hash]
	delete(s.waiters, hash)
	s.mu.Unlock()

	for _, ticket := range tickets {
		if ticket.deliver(rec) {
			continue
		}
		if ticket.delivered() {
			log.Sync.Error().
				Str("tx", hash.Hex()).
				Msg("double resolution detected for wait ticket")
		}
	}
}

// Cancel removes one ticket from its entry, deleting the entry when it was
// the last. Cancelling a ticket that Resolve already removed is a no-op.
func (r *Registry) Cancel(handle Handle) {
	r.remove(handle)
}

func (r *Registry) remove(handle Handle) {
	s := r.shard(handle.hash)
	s.mu.Lock()
	defer s.mu.Unlock()

	tickets := s.waiters[handle.hash]
	for i, ticket := range tickets {
		if ticket == handle.ticket {
			tickets = append(tickets[:i], tickets[i+1:]...)
			break
		}
	}
	if len(tickets) == 0 {
		delete(s.waiters, handle.hash)
	} else {
		s.waiters[handle.hash] = tickets
	}
}

// WaiterCount returns the total number of registered tickets. Used by
// tests and diagnostics.
func (r *Registry) WaiterCount() int {
	total := 0
	for i := range r.shards {
		s := &r.shards[i]
		s.mu.Lock()
		for _, tickets := range s.waiters {
			total += len(tickets)
		}
		s.mu.Unlock()
	}
	return total
}
