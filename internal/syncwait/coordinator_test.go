package syncwait

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bramblenode/bramble/internal/receipt"
	"github.com/bramblenode/bramble/internal/testutils"
	"github.com/bramblenode/bramble/internal/tx"
)

// submitterFunc adapts a function to the Submitter interface.
type submitterFunc func(raw []byte) (tx.Hash, error)

func (f submitterFunc) Add(raw []byte) (tx.Hash, error) {
	return f(raw)
}

func hashingSubmitter() Submitter {
	return submitterFunc(func(raw []byte) (tx.Hash, error) {
		if len(raw) == 0 {
			return tx.Hash{}, tx.ErrEmptyTransaction
		}
		return tx.HashData(raw), nil
	})
}

func TestSubmitAndWaitDelivered(t *testing.T) {
	registry, _ := newTestRegistry(t)
	coordinator := NewCoordinator(hashingSubmitter(), registry, time.Second)

	raw := []byte{1, 2, 3}
	hash := tx.HashData(raw)
	rec := testutils.RandomReceipt(t, hash)

	go func() {
		time.Sleep(50 * time.Millisecond)
		registry.Resolve(hash, rec)
	}()

	got, err := coordinator.SubmitAndWait(context.Background(), raw)
	require.NoError(t, err)
	assert.Equal(t, rec, got)
	assert.Equal(t, 0, registry.WaiterCount(), "registry must be empty after delivery")
}

func TestSubmitAndWaitTimeout(t *testing.T) {
	registry, receipts := newTestRegistry(t)
	const timeout = 100 * time.Millisecond
	coordinator := NewCoordinator(hashingSubmitter(), registry, timeout)

	raw := []byte{4, 5, 6}
	hash := tx.HashData(raw)

	start := time.Now()
	got, err := coordinator.SubmitAndWait(context.Background(), raw)
	elapsed := time.Since(start)

	require.Nil(t, got)
	var timeoutErr *TimeoutError
	require.ErrorAs(t, err, &timeoutErr)
	assert.Equal(t, hash, timeoutErr.TxHash, "timeout error must carry the tx hash")
	assert.GreaterOrEqual(t, elapsed, timeout, "timeout must never fire early")
	assert.Equal(t, 0, registry.WaiterCount(), "registry must be empty after timeout")

	// A receipt arriving after the timeout is not lost: a manual lookup
	// still succeeds once import happens.
	rec := testutils.RandomReceipt(t, hash)
	require.NoError(t, receipts.Put(rec))
	registry.Resolve(hash, rec)

	later, err := receipts.Get(hash)
	require.NoError(t, err)
	assert.Equal(t, rec, later)
}

func TestSubmitAndWaitSubmissionFailure(t *testing.T) {
	registry, _ := newTestRegistry(t)

	submissionErr := errors.New("invalid signature")
	failing := submitterFunc(func(raw []byte) (tx.Hash, error) {
		return tx.Hash{}, submissionErr
	})
	coordinator := NewCoordinator(failing, registry, time.Second)

	start := time.Now()
	got, err := coordinator.SubmitAndWait(context.Background(), []byte{1})
	require.Nil(t, got)
	assert.ErrorIs(t, err, submissionErr, "submission error must surface unchanged")
	assert.Less(t, time.Since(start), 500*time.Millisecond, "submission failure must fast-fail")
	assert.Equal(t, 0, registry.WaiterCount(), "registry must never be touched on submission failure")
}

func TestSubmitAndWaitImmediateWhenAlreadyMined(t *testing.T) {
	registry, receipts := newTestRegistry(t)
	coordinator := NewCoordinator(hashingSubmitter(), registry, time.Second)

	raw := []byte{7, 8, 9}
	hash := tx.HashData(raw)
	rec := testutils.RandomReceipt(t, hash)
	require.NoError(t, receipts.Put(rec))

	start := time.Now()
	got, err := coordinator.SubmitAndWait(context.Background(), raw)
	require.NoError(t, err)
	assert.Equal(t, rec, got)
	assert.Less(t, time.Since(start), 500*time.Millisecond, "pre-existing receipt must resolve without waiting")
}

func TestSubmitAndWaitConcurrentWaitersSameTx(t *testing.T) {
	registry, _ := newTestRegistry(t)

	hash := testutils.RandomHash(t)
	fixed := submitterFunc(func(raw []byte) (tx.Hash, error) {
		return hash, nil
	})
	coordinator := NewCoordinator(fixed, registry, time.Second)

	const callers = 5
	results := make([]*receipt.Receipt, callers)
	errs := make([]error, callers)

	var started, finished sync.WaitGroup
	started.Add(callers)
	finished.Add(callers)
	for i := 0; i < callers; i++ {
		go func(i int) {
			defer finished.Done()
			started.Done()
			results[i], errs[i] = coordinator.SubmitAndWait(context.Background(), []byte{1})
		}(i)
	}

	started.Wait()
	// Give all callers time to register before resolving
	for registry.WaiterCount() < callers {
		time.Sleep(time.Millisecond)
	}

	rec := testutils.RandomReceipt(t, hash)
	registry.Resolve(hash, rec)
	finished.Wait()

	for i := 0; i < callers; i++ {
		require.NoError(t, errs[i])
		assert.Equal(t, rec, results[i], "all concurrent waiters must observe the same receipt")
	}
	assert.Equal(t, 0, registry.WaiterCount())
}

func TestSubmitAndWaitContextCancelled(t *testing.T) {
	registry, _ := newTestRegistry(t)
	coordinator := NewCoordinator(hashingSubmitter(), registry, 5*time.Second)

	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		time.Sleep(50 * time.Millisecond)
		cancel()
	}()

	got, err := coordinator.SubmitAndWait(ctx, []byte{1, 1})
	require.Nil(t, got)
	assert.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, 0, registry.WaiterCount(), "abandoned wait must not leak registry state")
}

func TestNewCoordinatorDefaultTimeout(t *testing.T) {
	registry, _ := newTestRegistry(t)
	coordinator := NewCoordinator(hashingSubmitter(), registry, 0)
	assert.Equal(t, DefaultTimeout, coordinator.Timeout())
}
