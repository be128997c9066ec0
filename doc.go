// Package taskcore is a multi-threaded task execution core for Go.
//
// It provides a fixed-size worker pool with typed task handles, an
// asynchronous FIFO mutex over shared structured state, a reusable cyclic
// barrier with leader election, and single-owner transferable buffers for
// zero-copy handoff of large payloads into tasks.
//
// Quick start with the global runtime:
//
//	if err := taskcore.InitRuntime(taskcore.Config{Workers: 4}); err != nil {
//		log.Fatal(err)
//	}
//	defer taskcore.ShutdownRuntime()
//
//	handle, err := taskcore.Spawn(func(ctx context.Context, in *taskcore.Inputs) (int, error) {
//		return 21 * 2, nil
//	})
//	if err != nil {
//		log.Fatal(err)
//	}
//	result, err := handle.Join(context.Background())
//
// Pools can also be created and managed explicitly:
//
//	pool := taskcore.NewWorkerPool("render", 8)
//	pool.Start(context.Background())
//	defer pool.Stop()
//
//	handle, _ := core.Submit(pool, renderTile)
//
// Shared state is coordinated with Mutex and SharedBuffer:
//
//	state := taskcore.NewSharedBuffer(Counter{})
//	mu := taskcore.NewMutex(state)
//
//	err := mu.WithLock(ctx, func(c *Counter) error {
//		c.Value++
//		return nil
//	})
//
// The core subpackage holds the primitives; the observability/prometheus
// subpackage exports pool and registry metrics as Prometheus collectors.
package taskcore
