package core

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/sync/errgroup"
)

func TestBarrier_ExactlyOneLeaderPerRound(t *testing.T) {
	const participants = 4
	b := NewBarrier(participants)

	var leaders int32
	var g errgroup.Group
	for i := 0; i < participants; i++ {
		g.Go(func() error {
			res, err := b.Wait(context.Background())
			if err != nil {
				return err
			}
			if res.Round != 0 {
				return errors.Errorf("round = %d, want 0", res.Round)
			}
			if res.Leader {
				atomic.AddInt32(&leaders, 1)
			}
			return nil
		})
	}
	require.NoError(t, g.Wait())

	assert.Equal(t, int32(1), leaders)
	assert.Equal(t, uint64(1), b.Round())
}

func TestBarrier_ResetsForNextRound(t *testing.T) {
	const participants = 3
	b := NewBarrier(participants)

	for round := uint64(0); round < 3; round++ {
		var g errgroup.Group
		for i := 0; i < participants; i++ {
			g.Go(func() error {
				res, err := b.Wait(context.Background())
				if err != nil {
					return err
				}
				if res.Round != round {
					return errors.Errorf("round = %d, want %d", res.Round, round)
				}
				return nil
			})
		}
		require.NoError(t, g.Wait())
	}
}

func TestBarrier_TimeoutFailsStalledRound(t *testing.T) {
	b := NewBarrierWithTimeout(3, 50*time.Millisecond)

	var wg sync.WaitGroup
	errs := make(chan error, 2)
	for i := 0; i < 2; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := b.Wait(context.Background())
			errs <- err
		}()
	}
	wg.Wait()
	close(errs)

	for err := range errs {
		var timeoutErr *BarrierTimeoutError
		require.True(t, errors.As(err, &timeoutErr))
		assert.Equal(t, 2, timeoutErr.Arrived)
		assert.Equal(t, 3, timeoutErr.Participants)
	}

	// The barrier is usable again after the failed round.
	var g errgroup.Group
	for i := 0; i < 3; i++ {
		g.Go(func() error {
			_, err := b.Wait(context.Background())
			return err
		})
	}
	require.NoError(t, g.Wait())
}

func TestBarrier_ContextWithdrawsSingleWaiter(t *testing.T) {
	b := NewBarrier(2)

	ctx, cancel := context.WithCancel(context.Background())
	errCh := make(chan error, 1)
	go func() {
		_, err := b.Wait(ctx)
		errCh <- err
	}()

	waitFor(t, time.Second, func() bool {
		b.mu.Lock()
		defer b.mu.Unlock()
		return b.arrived == 1
	})

	cancel()
	require.True(t, errors.Is(<-errCh, context.Canceled))

	// The withdrawn slot is free: two fresh waiters complete the round.
	var g errgroup.Group
	for i := 0; i < 2; i++ {
		g.Go(func() error {
			_, err := b.Wait(context.Background())
			return err
		})
	}
	require.NoError(t, g.Wait())
}

func TestBarrier_WithdrawalDisarmsRoundDeadline(t *testing.T) {
	b := NewBarrierWithTimeout(2, 50*time.Millisecond)

	ctx, cancel := context.WithCancel(context.Background())
	errCh := make(chan error, 1)
	go func() {
		_, err := b.Wait(ctx)
		errCh <- err
	}()

	waitFor(t, time.Second, func() bool {
		b.mu.Lock()
		defer b.mu.Unlock()
		return b.arrived == 1
	})

	cancel()
	require.True(t, errors.Is(<-errCh, context.Canceled))

	b.mu.Lock()
	assert.Nil(t, b.timer)
	b.mu.Unlock()

	// The deadline armed by the withdrawn waiter must not fire against a
	// round it no longer times. Past that deadline the round is still open.
	time.Sleep(80 * time.Millisecond)
	assert.Equal(t, uint64(0), b.Round())

	// A fresh cohort gets the full deadline and completes without error.
	var g errgroup.Group
	for i := 0; i < 2; i++ {
		g.Go(func() error {
			_, err := b.Wait(context.Background())
			return err
		})
	}
	require.NoError(t, g.Wait())
}

func TestBarrier_SingleParticipantAlwaysLeads(t *testing.T) {
	b := NewBarrier(1)

	res, err := b.Wait(context.Background())
	require.NoError(t, err)
	assert.True(t, res.Leader)
	assert.Equal(t, uint64(0), res.Round)

	res, err = b.Wait(context.Background())
	require.NoError(t, err)
	assert.True(t, res.Leader)
	assert.Equal(t, uint64(1), res.Round)
}

func TestBarrier_PanicsOnInvalidParticipants(t *testing.T) {
	assert.Panics(t, func() { NewBarrier(0) })
}
