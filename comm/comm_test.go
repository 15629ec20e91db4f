package comm

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

func TestRoles(t *testing.T) {
	single := NewLocalWorld(1).Rank(0)
	assert.False(t, IsBroadcaster(single))
	assert.False(t, IsReceiver(single))
	assert.Equal(t, Root, RoleOf(single))

	w := NewLocalWorld(3)
	assert.True(t, IsBroadcaster(w.Rank(0)))
	assert.Equal(t, Root, RoleOf(w.Rank(0)))
	assert.True(t, IsReceiver(w.Rank(2)))
	assert.Equal(t, Receiver, RoleOf(w.Rank(2)))
	assert.Equal(t, "receiver", Receiver.String())

	assert.Panics(t, func() { w.Rank(3) })
	assert.Panics(t, func() { NewLocalWorld(0) })
}

func TestRunSendRecv(t *testing.T) {
	const n = 4
	var sum atomic.Int64
	err := Run(context.Background(), n, func(ctx context.Context, c Comm) error {
		if c.Rank() == 0 {
			for to := 1; to < c.Size(); to++ {
				if err := c.Send(ctx, to, to*10); err != nil {
					return err
				}
			}
			return c.Barrier(ctx)
		}
		msg, err := c.Recv(ctx, 0)
		if err != nil {
			return err
		}
		sum.Add(int64(msg.(int)))
		return c.Barrier(ctx)
	})
	require.NoError(t, err)
	assert.Equal(t, int64(10+20+30), sum.Load())
}

func TestBarrierReusable(t *testing.T) {
	var counter atomic.Int64
	err := Run(context.Background(), 3, func(ctx context.Context, c Comm) error {
		for round := 1; round <= 3; round++ {
			counter.Add(1)
			if err := c.Barrier(ctx); err != nil {
				return err
			}
			if got := counter.Load(); got < int64(3*round) {
				return errors.New("barrier released early")
			}
			if err := c.Barrier(ctx); err != nil {
				return err
			}
		}
		return nil
	})
	require.NoError(t, err)
	assert.Equal(t, int64(9), counter.Load())
}

func TestRunCancelsOnError(t *testing.T) {
	boom := errors.New("boom")
	err := Run(context.Background(), 2, func(ctx context.Context, c Comm) error {
		if c.Rank() == 1 {
			return boom
		}
		// Would block forever without cancellation
		_, err := c.Recv(ctx, 1)
		return err
	})
	require.Error(t, err)
	assert.ErrorIs(t, err, boom)
}

func TestRecvContextDeadline(t *testing.T) {
	c := NewLocalWorld(2).Rank(1)
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()
	_, err := c.Recv(ctx, 0)
	assert.ErrorIs(t, err, context.DeadlineExceeded)

	assert.Error(t, c.Send(context.Background(), 5, nil))
}
