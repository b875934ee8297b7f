package admission

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

func TestAcquireWithinCapacitySucceedsImmediately(t *testing.T) {
	c := New(Requirements{CPU: 4})
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()

	require.NoError(t, c.Acquire(ctx, Requirements{CPU: 2}))
	c.Release(Requirements{CPU: 2})
}

func TestAcquireBlocksUntilCapacityFrees(t *testing.T) {
	c := New(Requirements{CPU: 1})
	ctx := context.Background()

	require.NoError(t, c.Acquire(ctx, Requirements{CPU: 1}), "first Acquire()")

	released := make(chan struct{})
	go func() {
		time.Sleep(20 * time.Millisecond)
		c.Release(Requirements{CPU: 1})
		close(released)
	}()

	waitCtx, cancel := context.WithTimeout(ctx, time.Second)
	defer cancel()
	require.NoError(t, c.Acquire(waitCtx, Requirements{CPU: 1}), "second Acquire() should unblock once capacity frees")
	<-released
}

func TestAcquireRespectsContextCancellation(t *testing.T) {
	c := New(Requirements{CPU: 1})
	require.NoError(t, c.Acquire(context.Background(), Requirements{CPU: 1}), "first Acquire()")

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()
	require.Error(t, c.Acquire(ctx, Requirements{CPU: 1}), "Acquire() should fail once its context is canceled while waiting")
}

func TestZeroCapacityIsUnbounded(t *testing.T) {
	c := New(Requirements{})
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	require.NoError(t, c.Acquire(ctx, Requirements{CPU: 1000, Memory: 1000, GPU: 1000}),
		"an unconfigured controller should admit any request")
}
