package gateway

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEnsureReadyLoadsOnce(t *testing.T) {
	var attempts int32
	release := make(chan struct{})
	loader := NewLoader(func(ctx context.Context) error {
		atomic.AddInt32(&attempts, 1)
		<-release
		return nil
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	const callers = 10
	var wg sync.WaitGroup
	errs := make([]error, callers)
	for i := 0; i < callers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			errs[i] = loader.EnsureReady(ctx)
		}(i)
	}

	// Let all callers pile onto the pending attempt before resolving it.
	time.Sleep(50 * time.Millisecond)
	close(release)
	wg.Wait()

	assert.Equal(t, int32(1), atomic.LoadInt32(&attempts))
	for _, err := range errs {
		assert.NoError(t, err)
	}

	// A later call resolves from cache without a new attempt.
	require.NoError(t, loader.EnsureReady(ctx))
	assert.Equal(t, int32(1), atomic.LoadInt32(&attempts))
}

func TestEnsureReadyCachesFailure(t *testing.T) {
	var attempts int32
	loader := NewLoader(func(ctx context.Context) error {
		atomic.AddInt32(&attempts, 1)
		return errors.New("cdn unreachable")
	})

	ctx := context.Background()

	err := loader.EnsureReady(ctx)
	require.ErrorIs(t, err, ErrLoadFailed)

	// Repeated calls fail fast on the cached outcome instead of re-loading.
	err = loader.EnsureReady(ctx)
	require.ErrorIs(t, err, ErrLoadFailed)
	assert.Equal(t, int32(1), atomic.LoadInt32(&attempts))
}

func TestRetryClearsCachedFailureOnly(t *testing.T) {
	var attempts int32
	fail := int32(1)
	loader := NewLoader(func(ctx context.Context) error {
		atomic.AddInt32(&attempts, 1)
		if atomic.LoadInt32(&fail) == 1 {
			return errors.New("cdn unreachable")
		}
		return nil
	})

	ctx := context.Background()

	require.ErrorIs(t, loader.EnsureReady(ctx), ErrLoadFailed)

	atomic.StoreInt32(&fail, 0)
	require.NoError(t, loader.Retry(ctx))
	assert.Equal(t, int32(2), atomic.LoadInt32(&attempts))

	// Retry after success must not discard the ready state.
	require.NoError(t, loader.Retry(ctx))
	assert.Equal(t, int32(2), atomic.LoadInt32(&attempts))
}

func TestOutcomeGateAdmitsFirstOnly(t *testing.T) {
	gate := NewOutcomeGate()

	assert.True(t, gate.Claim(OutcomeSuccess))
	assert.False(t, gate.Claim(OutcomeFailure))
	assert.False(t, gate.Claim(OutcomeDismiss))
	assert.False(t, gate.Claim(OutcomeSuccess))

	kind, consumed := gate.Consumed()
	assert.True(t, consumed)
	assert.Equal(t, OutcomeSuccess, kind)
}
