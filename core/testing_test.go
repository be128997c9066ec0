package core

import (
	"context"
	"sync"
	"testing"
	"time"
)

// testPool is a minimal Dispatcher backed by real worker goroutines, used to
// exercise Submit and the primitives without importing the root package.
type testPool struct {
	id        string
	scheduler *Scheduler
	registry  *TaskRegistry
	history   *ExecutionHistory
	cancel    context.CancelFunc
	wg        sync.WaitGroup
}

var _ Dispatcher = (*testPool)(nil)

func newTestPool(t *testing.T, workers int) *testPool {
	t.Helper()

	p := &testPool{
		id:        "test",
		scheduler: NewScheduler(workers),
		registry:  NewTaskRegistry(),
		history:   NewExecutionHistory(0),
	}

	ctx, cancel := context.WithCancel(context.Background())
	p.cancel = cancel
	for i := 0; i < workers; i++ {
		p.wg.Add(1)
		go func(id int) {
			defer p.wg.Done()
			workerCtx := WithWorkerID(ctx, id)
			for {
				run, ok := p.scheduler.GetWork(ctx.Done())
				if !ok {
					return
				}
				p.scheduler.OnTaskStart()
				run(workerCtx)
				p.scheduler.OnTaskEnd()
			}
		}(i)
	}

	t.Cleanup(func() {
		p.scheduler.Shutdown()
		cancel()
		p.wg.Wait()
	})
	return p
}

func (p *testPool) PostInternal(r Runnable) error { return p.scheduler.Post(r) }

func (p *testPool) PostDelayedInternal(r Runnable, delay time.Duration) error {
	return p.scheduler.PostDelayed(r, delay)
}

func (p *testPool) ID() string                 { return p.id }
func (p *testPool) GetScheduler() *Scheduler   { return p.scheduler }
func (p *testPool) Registry() *TaskRegistry    { return p.registry }
func (p *testPool) History() *ExecutionHistory { return p.history }
