package queue

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

func TestPoolRunsAllTasks(t *testing.T) {
	p := NewPool(PoolConfig{Workers: 4, QueueSize: 8})
	defer p.Close()

	var done int64
	ctx := context.Background()
	for i := 0; i < 20; i++ {
		require.NoError(t, p.Submit(ctx, func(ctx context.Context) error {
			atomic.AddInt64(&done, 1)
			return nil
		}))
	}
	p.Wait()
	assert.EqualValues(t, 20, done)
}

func TestPoolCapsConcurrency(t *testing.T) {
	const workers = 3
	p := NewPool(PoolConfig{Workers: workers, QueueSize: 32})
	defer p.Close()

	var mu sync.Mutex
	inFlight, peak := 0, 0

	ctx := context.Background()
	for i := 0; i < 24; i++ {
		require.NoError(t, p.Submit(ctx, func(ctx context.Context) error {
			mu.Lock()
			inFlight++
			if inFlight > peak {
				peak = inFlight
			}
			mu.Unlock()

			time.Sleep(5 * time.Millisecond)

			mu.Lock()
			inFlight--
			mu.Unlock()
			return nil
		}))
	}
	p.Wait()
	assert.LessOrEqual(t, peak, workers)
}

func TestPoolRetries(t *testing.T) {
	p := NewPool(PoolConfig{Workers: 1, RetryLimit: 2, RetryDelay: time.Millisecond})
	defer p.Close()

	var attempts int64
	require.NoError(t, p.Submit(context.Background(), func(ctx context.Context) error {
		if atomic.AddInt64(&attempts, 1) < 3 {
			return errors.New("transient")
		}
		return nil
	}))
	p.Wait()
	assert.EqualValues(t, 3, attempts)
}

func TestPoolSubmitHonorsContext(t *testing.T) {
	p := NewPool(PoolConfig{Workers: 1, QueueSize: 1})
	defer p.Close()

	block := make(chan struct{})
	ctx := context.Background()
	// Occupy the worker and fill the buffer.
	require.NoError(t, p.Submit(ctx, func(ctx context.Context) error {
		<-block
		return nil
	}))
	require.NoError(t, p.Submit(ctx, func(ctx context.Context) error { return nil }))

	cancelled, cancel := context.WithCancel(context.Background())
	cancel()
	err := p.Submit(cancelled, func(ctx context.Context) error { return nil })
	assert.ErrorIs(t, err, context.Canceled)

	close(block)
	p.Wait()
}
