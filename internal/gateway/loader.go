package gateway

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"sync"
	"time"

	"checkout-service/internal/util"

	"go.uber.org/zap"
)

// ErrLoadFailed wraps the cached outcome of a failed gateway load so callers
// can tell "attempted and broken" apart from "not yet attempted".
var ErrLoadFailed = errors.New("gateway checkout library unavailable")

// ProbeFunc performs the actual load/initialization of the external
// checkout library.
type ProbeFunc func(ctx context.Context) error

type loadState int

const (
	loadUnattempted loadState = iota
	loadPending
	loadReady
	loadFailed
)

// Loader memoizes a single load attempt of the external gateway checkout
// library per process lifetime. Concurrent callers before first resolution
// share one underlying attempt; afterwards the cached outcome is returned.
// A cached failure is cleared only through Retry.
type Loader struct {
	probe   ProbeFunc
	timeout time.Duration
	logger  *zap.Logger

	mu    sync.Mutex
	state loadState
	done  chan struct{}
	err   error
}

// NewLoader creates a loader around a probe.
func NewLoader(probe ProbeFunc) *Loader {
	return &Loader{
		probe:   probe,
		timeout: 10 * time.Second,
		logger:  util.GetLogger(),
	}
}

// NewScriptLoader creates a loader that verifies the hosted checkout script
// is reachable, mirroring the script-tag injection the widget needs.
func NewScriptLoader(scriptURL string, client *http.Client) *Loader {
	if client == nil {
		client = http.DefaultClient
	}
	return NewLoader(func(ctx context.Context) error {
		req, err := http.NewRequestWithContext(ctx, http.MethodHead, scriptURL, nil)
		if err != nil {
			return err
		}
		resp, err := client.Do(req)
		if err != nil {
			return err
		}
		defer resp.Body.Close()
		if resp.StatusCode >= 400 {
			return fmt.Errorf("checkout script returned status %d", resp.StatusCode)
		}
		return nil
	})
}

// EnsureReady resolves once the gateway library is known loadable. The
// first caller triggers the load; everyone arriving before resolution waits
// on the same attempt. On a cached failure it fails fast with ErrLoadFailed.
func (l *Loader) EnsureReady(ctx context.Context) error {
	l.mu.Lock()
	switch l.state {
	case loadReady:
		l.mu.Unlock()
		return nil
	case loadFailed:
		err := l.err
		l.mu.Unlock()
		return fmt.Errorf("%w: %v", ErrLoadFailed, err)
	case loadUnattempted:
		l.state = loadPending
		l.done = make(chan struct{})
		// The attempt is shared, so it must not die with the first
		// caller's context.
		go l.attempt(l.done)
	}
	done := l.done
	l.mu.Unlock()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-done:
	}

	l.mu.Lock()
	defer l.mu.Unlock()
	if l.state == loadFailed {
		return fmt.Errorf("%w: %v", ErrLoadFailed, l.err)
	}
	return nil
}

// Retry clears a cached failure and re-attempts the load. A cached success
// is never cleared.
func (l *Loader) Retry(ctx context.Context) error {
	l.mu.Lock()
	if l.state == loadFailed {
		l.state = loadUnattempted
		l.err = nil
	}
	l.mu.Unlock()
	return l.EnsureReady(ctx)
}

func (l *Loader) attempt(done chan struct{}) {
	util.GatewayLoadAttemptsTotal.Inc()

	ctx, cancel := context.WithTimeout(context.Background(), l.timeout)
	defer cancel()

	err := l.probe(ctx)

	l.mu.Lock()
	if err != nil {
		l.state = loadFailed
		l.err = err
		util.GatewayLoadFailuresTotal.Inc()
		l.logger.Warn("Gateway library load failed", zap.Error(err))
	} else {
		l.state = loadReady
		l.logger.Info("Gateway library ready")
	}
	l.mu.Unlock()
	close(done)
}
