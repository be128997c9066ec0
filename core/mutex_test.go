package core

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/sync/errgroup"
)

type counterState struct {
	Value int `json:"value"`
}

func TestMutex_MutualExclusionUnderContention(t *testing.T) {
	m := NewMutex(NewSharedBuffer(counterState{}))

	var holders int32
	var g errgroup.Group
	for i := 0; i < 8; i++ {
		g.Go(func() error {
			for j := 0; j < 100; j++ {
				err := m.WithLock(context.Background(), func(c *counterState) error {
					if n := atomic.AddInt32(&holders, 1); n != 1 {
						return errors.Errorf("observed %d concurrent holders", n)
					}
					c.Value++
					atomic.AddInt32(&holders, -1)
					return nil
				})
				if err != nil {
					return err
				}
			}
			return nil
		})
	}
	require.NoError(t, g.Wait())

	assert.Equal(t, 800, m.Shared().Value().Value)
}

func TestMutex_WaitersServedInArrivalOrder(t *testing.T) {
	m := NewMutex(NewSharedBuffer(counterState{}))

	guard, err := m.Lock(context.Background())
	require.NoError(t, err)

	const waiters = 5
	var mu sync.Mutex
	var order []int
	var wg sync.WaitGroup

	for i := 0; i < waiters; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			ctx := WithTaskID(context.Background(), TaskID(fmt.Sprintf("task-%d", i)))
			g, err := m.Lock(ctx)
			if err != nil {
				t.Error(err)
				return
			}
			mu.Lock()
			order = append(order, i)
			mu.Unlock()
			g.Unlock()
		}(i)

		// Wait until waiter i is enqueued so arrival order is fixed.
		waitFor(t, time.Second, func() bool { return waiterCount(m) == i+1 })
	}

	guard.Unlock()
	wg.Wait()

	assert.Equal(t, []int{0, 1, 2, 3, 4}, order)
}

func TestMutex_ReentrantLockFailsFast(t *testing.T) {
	m := NewMutex(NewSharedBuffer(counterState{}))
	ctx := WithTaskID(context.Background(), "task-a")

	guard, err := m.Lock(ctx)
	require.NoError(t, err)
	defer guard.Unlock()

	_, err = m.Lock(ctx)
	var reentrancy *ReentrancyError
	require.True(t, errors.As(err, &reentrancy))
	assert.Equal(t, TaskID("task-a"), reentrancy.TaskID)
}

func TestMutex_TryLock(t *testing.T) {
	m := NewMutex(NewSharedBuffer(counterState{}))

	guard, ok := m.TryLock(context.Background())
	require.True(t, ok)

	_, ok = m.TryLock(context.Background())
	assert.False(t, ok)

	guard.Unlock()
	guard2, ok := m.TryLock(context.Background())
	assert.True(t, ok)
	guard2.Unlock()
}

func TestMutex_TryLockHolderIsReentrancyChecked(t *testing.T) {
	m := NewMutex(NewSharedBuffer(counterState{}))
	ctx := WithTaskID(context.Background(), "task-b")

	guard, ok := m.TryLock(ctx)
	require.True(t, ok)
	defer guard.Unlock()

	_, err := m.Lock(ctx)
	var reentrancy *ReentrancyError
	require.True(t, errors.As(err, &reentrancy))
	assert.Equal(t, TaskID("task-b"), reentrancy.TaskID)
}

func TestMutex_WithLockReleasesOnError(t *testing.T) {
	m := NewMutex(NewSharedBuffer(counterState{}))
	boom := errors.New("boom")

	err := m.WithLock(context.Background(), func(c *counterState) error {
		return boom
	})
	require.True(t, errors.Is(err, boom))

	guard, ok := m.TryLock(context.Background())
	require.True(t, ok)
	guard.Unlock()
}

func TestMutex_WithLockReleasesOnPanic(t *testing.T) {
	m := NewMutex(NewSharedBuffer(counterState{}))

	func() {
		defer func() { _ = recover() }()
		_ = m.WithLock(context.Background(), func(c *counterState) error {
			panic("boom")
		})
	}()

	guard, ok := m.TryLock(context.Background())
	require.True(t, ok)
	guard.Unlock()
}

func TestMutex_CancelledWaiterIsSkipped(t *testing.T) {
	m := NewMutex(NewSharedBuffer(counterState{}))

	guard, err := m.Lock(context.Background())
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	errCh := make(chan error, 1)
	go func() {
		_, err := m.Lock(ctx)
		errCh <- err
	}()
	waitFor(t, time.Second, func() bool { return waiterCount(m) == 1 })

	cancel()
	require.True(t, errors.Is(<-errCh, context.Canceled))

	guard.Unlock()

	// The abandoned waiter must not hold the lock hostage.
	guard2, err := m.Lock(context.Background())
	require.NoError(t, err)
	guard2.Unlock()
}

func TestMutex_GuardUnlockIdempotent(t *testing.T) {
	m := NewMutex(NewSharedBuffer(counterState{}))

	guard, err := m.Lock(context.Background())
	require.NoError(t, err)
	guard.Unlock()
	guard.Unlock()

	g2, ok := m.TryLock(context.Background())
	require.True(t, ok)
	g2.Unlock()
}

func waiterCount[T any](m *Mutex[T]) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.waiters.Length()
}

func waitFor(t *testing.T, timeout time.Duration, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(time.Millisecond)
	}
	t.Fatal("condition not met within timeout")
}
