package chain

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum/ethclient"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/time/rate"

	"github.com/fund-ledger/internal/retry"
)

// newFailoverSource builds a source with offline HTTP endpoints. Dialing
// an http URL performs no network I/O, so the clients are distinct live
// handles without a server behind them.
func newFailoverSource(t *testing.T) *EthereumSource {
	t.Helper()
	client, err := ethclient.Dial("http://127.0.0.1:1")
	require.NoError(t, err)
	return &EthereumSource{
		client:  client,
		limiter: rate.NewLimiter(rate.Inf, 1),
		retryConfig: &retry.RetryConfig{
			MaxAttempts:  2,
			InitialDelay: time.Millisecond,
			MaxDelay:     time.Millisecond,
			Multiplier:   1,
		},
		secondaryURL: "http://127.0.0.1:2",
	}
}

func TestCallRetriesOnSecondaryAfterFailover(t *testing.T) {
	s := newFailoverSource(t)
	primary := s.client

	var seen []*ethclient.Client
	err := s.call(context.Background(), "op", func(_ context.Context, client *ethclient.Client) error {
		seen = append(seen, client)
		if client == primary {
			return fmt.Errorf("connection refused")
		}
		return nil
	})

	require.NoError(t, err)
	require.Len(t, seen, 2)
	assert.Same(t, primary, seen[0])
	assert.NotSame(t, primary, seen[1])
	assert.Same(t, s.activeClient(), seen[1])
	assert.Equal(t, "", s.secondaryURL)
	// The failed primary stays open until Close for callers mid-RPC on it.
	assert.Same(t, primary, s.retired)
}

func TestConcurrentFailingCallsRotateEndpointOnce(t *testing.T) {
	s := newFailoverSource(t)
	primary := s.client

	const goroutines = 8
	var wg sync.WaitGroup
	errs := make([]error, goroutines)
	for i := 0; i < goroutines; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			errs[i] = s.call(context.Background(), "op", func(_ context.Context, _ *ethclient.Client) error {
				return fmt.Errorf("connection refused")
			})
		}(i)
	}
	wg.Wait()

	for _, err := range errs {
		assert.Error(t, err)
	}
	assert.NotSame(t, primary, s.activeClient())
	assert.Same(t, primary, s.retired)
	assert.Equal(t, "", s.secondaryURL)
}

func TestFailoverSkipsRotationWhenAlreadyRotated(t *testing.T) {
	s := newFailoverSource(t)
	primary := s.client

	rotated := s.failover("op", primary, fmt.Errorf("connection refused"))
	require.NotNil(t, rotated)
	require.NotSame(t, primary, rotated)

	// A goroutine still holding the old client gets the rotated one back
	// instead of triggering a second rotation.
	again := s.failover("op", primary, fmt.Errorf("connection refused"))
	assert.Same(t, rotated, again)

	// With the secondary spent, a failure on the rotated client has
	// nowhere to go.
	assert.Nil(t, s.failover("op", rotated, fmt.Errorf("connection refused")))
}

func TestCloseReleasesRetiredClient(t *testing.T) {
	s := newFailoverSource(t)
	require.NotNil(t, s.failover("op", s.client, fmt.Errorf("connection refused")))
	require.NotNil(t, s.retired)

	s.Close()
	assert.Nil(t, s.retired)
	assert.Nil(t, s.client)
}
