package syncwait

import (
	"context"
	"fmt"
	"time"

	"github.com/bramblenode/bramble/internal/receipt"
	"github.com/bramblenode/bramble/internal/tx"
	"github.com/bramblenode/bramble/pkg/log"
)

// DefaultTimeout is the wait duration used when the deployment does not
// configure one.
const DefaultTimeout = 2 * time.Second

// Submitter accepts raw signed transaction bytes and either returns the
// assigned transaction hash or a validation failure. The transaction pool
// implements it.
type Submitter interface {
	Add(raw []byte) (tx.Hash, error)
}

// Coordinator orchestrates one submit-and-wait request end to end:
// submit, register a wait ticket, race receipt delivery against the
// timeout, return the outcome and tear the ticket down. Each call makes
// one submission attempt and one wait, with no retries.
type Coordinator struct {
	submitter Submitter
	registry  *Registry
	timeout   time.Duration
}

// NewCoordinator creates a coordinator with the deployment-level wait
// timeout. A non-positive timeout falls back to DefaultTimeout.
func NewCoordinator(submitter Submitter, registry *Registry, timeout time.Duration) *Coordinator {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	return &Coordinator{
		submitter: submitter,
		registry:  registry,
		timeout:   timeout,
	}
}

// Timeout returns the configured wait duration.
func (c *Coordinator) Timeout() time.Duration {
	return c.timeout
}

// SubmitAndWait submits the raw transaction and blocks until its receipt
// is delivered, the configured timeout elapses, or the caller's context is
// cancelled. Submission failures return immediately, before any wait state
// exists. On timeout the returned error is a *TimeoutError carrying the
// transaction hash. First resolution wins: a receipt delivered before the
// deadline is returned even if the timer fires while it is being observed.
func (c *Coordinator) SubmitAndWait(ctx context.Context, raw []byte) (*receipt.Receipt, error) {
	hash, err := c.submitter.Add(raw)
	if err != nil {
		return nil, err
	}

	ticket := newTicket(hash)
	handle, err := c.registry.Register(hash, ticket)
	if err != nil {
		return nil, fmt.Errorf("register wait for %s: %w", hash, err)
	}

	timer := time.NewTimer(c.timeout)
	defer timer.Stop()

	select {
	case <-ticket.Done():
		c.registry.Cancel(handle)
		rec := ticket.Receipt()
		if rec == nil {
			// Nothing else cancels the ticket while we hold it.
			return nil, fmt.Errorf("wait ticket for %s finished without receipt", hash)
		}
		log.Sync.Debug().
			Str("tx", hash.Hex()).
			Dur("waited", time.Since(ticket.created)).
			Msg("receipt delivered synchronously")
		return rec, nil

	case <-timer.C:
		if !ticket.cancel() {
			// Lost the race: the receipt landed before the deadline.
			c.registry.Cancel(handle)
			return ticket.Receipt(), nil
		}
		c.registry.Cancel(handle)
		return nil, &TimeoutError{
			TxHash:     hash,
			Elapsed:    time.Since(ticket.created),
			Configured: c.timeout,
		}

	case <-ctx.Done():
		if !ticket.cancel() {
			c.registry.Cancel(handle)
			return ticket.Receipt(), nil
		}
		c.registry.Cancel(handle)
		return nil, ctx.Err()
	}
}
