package syncwait

import (
	"fmt"
	"time"

	"github.com/bramblenode/bramble/internal/tx"
)

// TimeoutError reports that no receipt was observed within the configured
// wait duration. It carries the transaction hash so the caller can resume
// polling manually; the transaction itself remains submitted.
type TimeoutError struct {
	TxHash     tx.Hash
	Elapsed    time.Duration
	Configured time.Duration
}

func (e *TimeoutError) Error() string {
	return fmt.Sprintf("no receipt for transaction %s after %s (configured wait %s)",
		e.TxHash, e.Elapsed.Round(time.Millisecond), e.Configured)
}
