package syncwait

import (
	"sync/atomic"
	"time"

	"github.com/bramblenode/bramble/internal/receipt"
	"github.com/bramblenode/bramble/internal/tx"
)

// outcome is the terminal state of a ticket. A nil receipt means the wait
// was cancelled (timeout or abandoned caller).
type outcome struct {
	rec *receipt.Receipt
}

// WaitTicket represents one in-flight synchronous wait for a receipt.
// It is a single-fire delivery slot: two producers (the bridge and the
// timeout path) may race to finish it, but only the first write sticks.
// A ticket is owned by the coordinator call that created it and never
// outlives that call.
type WaitTicket struct {
	txHash  tx.Hash
	created time.Time

	outcome atomic.Pointer[outcome]
	done    chan struct{}
}

func newTicket(hash tx.Hash) *WaitTicket {
	return &WaitTicket{
		txHash:  hash,
		created: time.Now(),
		done:    make(chan struct{}),
	}
}

func (t *WaitTicket) finish(o *outcome) bool {
	if !t.outcome.CompareAndSwap(nil, o) {
		return false
	}
	close(t.done)
	return true
}

// deliver finishes the ticket with a receipt. Returns false if the ticket
// was already finished, in which case the receipt is discarded.
func (t *WaitTicket) deliver(rec *receipt.Receipt) bool {
	return t.finish(&outcome{rec: rec})
}

// cancel finishes the ticket with no receipt. Returns false if the ticket
// was already finished (delivered or cancelled).
func (t *WaitTicket) cancel() bool {
	return t.finish(&outcome{})
}

// Done is closed once the ticket is finished, by delivery or cancellation.
func (t *WaitTicket) Done() <-chan struct{} {
	return t.done
}

// Receipt returns the delivered receipt, or nil if the ticket is not yet
// finished or was cancelled.
func (t *WaitTicket) Receipt() *receipt.Receipt {
	o := t.outcome.Load()
	if o == nil {
		return nil
	}
	return o.rec
}

// delivered reports whether the ticket finished with a receipt.
func (t *WaitTicket) delivered() bool {
	return t.Receipt() != nil
}
