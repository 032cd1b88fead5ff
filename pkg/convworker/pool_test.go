package convworker

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPool_DoReturnsResult(t *testing.T) {
	pool := NewConversionPool(2, 10)
	pool.Start()
	defer pool.Stop()

	result, err := pool.Do(context.Background(), "fp-1", func(ctx context.Context) (json.RawMessage, error) {
		return json.RawMessage(`{"pages":1}`), nil
	})

	require.NoError(t, err)
	assert.Equal(t, `{"pages":1}`, string(result))
}

func TestPool_DoPropagatesJobError(t *testing.T) {
	pool := NewConversionPool(2, 10)
	pool.Start()
	defer pool.Stop()

	jobErr := errors.New("conversion exploded")
	_, err := pool.Do(context.Background(), "fp-1", func(ctx context.Context) (json.RawMessage, error) {
		return nil, jobErr
	})

	assert.ErrorIs(t, err, jobErr)
}

func TestPool_SameFingerprintRunsSequentially(t *testing.T) {
	pool := NewConversionPool(4, 100)
	pool.Start()
	defer pool.Stop()

	var active int32
	var maxActive int32

	const jobs = 5
	var wg sync.WaitGroup
	for i := 0; i < jobs; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, _ = pool.Do(context.Background(), "same-fingerprint", func(ctx context.Context) (json.RawMessage, error) {
				current := atomic.AddInt32(&active, 1)
				for {
					old := atomic.LoadInt32(&maxActive)
					if current <= old || atomic.CompareAndSwapInt32(&maxActive, old, current) {
						break
					}
				}
				time.Sleep(10 * time.Millisecond)
				atomic.AddInt32(&active, -1)
				return json.RawMessage(`{}`), nil
			})
		}()
	}
	wg.Wait()

	assert.Equal(t, int32(1), atomic.LoadInt32(&maxActive),
		"jobs for one fingerprint must never run in parallel")
}

func TestPool_DoHonorsContextWhileWaiting(t *testing.T) {
	pool := NewConversionPool(1, 10)
	pool.Start()
	defer pool.Stop()

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	_, err := pool.Do(ctx, "fp-slow", func(ctx context.Context) (json.RawMessage, error) {
		time.Sleep(200 * time.Millisecond)
		return json.RawMessage(`{}`), nil
	})

	assert.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestPool_DoAfterStop(t *testing.T) {
	pool := NewConversionPool(1, 10)
	pool.Start()
	pool.Stop()

	_, err := pool.Do(context.Background(), "fp-1", func(ctx context.Context) (json.RawMessage, error) {
		return json.RawMessage(`{}`), nil
	})

	assert.ErrorIs(t, err, ErrPoolStopped)
}

func TestPool_Stats(t *testing.T) {
	pool := NewConversionPool(2, 10)
	pool.Start()
	defer pool.Stop()

	for i := 0; i < 3; i++ {
		_, err := pool.Do(context.Background(), "fp-stats", func(ctx context.Context) (json.RawMessage, error) {
			return json.RawMessage(`{}`), nil
		})
		require.NoError(t, err)
	}
	_, _ = pool.Do(context.Background(), "fp-err", func(ctx context.Context) (json.RawMessage, error) {
		return nil, errors.New("boom")
	})

	stats := pool.GetStats()
	assert.Equal(t, 2, stats.NumWorkers)
	assert.Equal(t, int64(4), stats.TotalDispatched)
	assert.Equal(t, int64(4), stats.TotalProcessed)
	assert.Equal(t, int64(1), stats.TotalErrors)
	assert.Len(t, stats.WorkerStats, 2)
}
