package prometheus

import (
	"context"
	"sync"
	"time"

	prom "github.com/prometheus/client_golang/prometheus"
	"github.com/taskcore/go-taskcore/core"
)

// RegistrySnapshotProvider provides current task-registry stat snapshots.
type RegistrySnapshotProvider interface {
	Stats() core.RegistryStats
}

// PoolSnapshotProvider provides current pool stat snapshots.
type PoolSnapshotProvider interface {
	Stats() core.PoolStats
}

// SnapshotPoller periodically exports registry/pool Stats() snapshots into Prometheus gauges.
type SnapshotPoller struct {
	interval time.Duration

	registriesMu sync.RWMutex
	registries   map[string]RegistrySnapshotProvider

	poolsMu sync.RWMutex
	pools   map[string]PoolSnapshotProvider

	tasksPending   *prom.GaugeVec
	tasksRunning   *prom.GaugeVec
	tasksCompleted *prom.GaugeVec
	tasksFailed    *prom.GaugeVec

	poolQueued  *prom.GaugeVec
	poolBusy    *prom.GaugeVec
	poolDelayed *prom.GaugeVec
	poolWorkers *prom.GaugeVec
	poolRunning *prom.GaugeVec

	stateMu sync.Mutex
	running bool
	cancel  context.CancelFunc
	done    chan struct{}
}

// NewSnapshotPoller creates a snapshot poller and registers its collectors.
func NewSnapshotPoller(reg prom.Registerer, interval time.Duration) (*SnapshotPoller, error) {
	if reg == nil {
		reg = prom.DefaultRegisterer
	}
	if interval <= 0 {
		interval = time.Second
	}

	tasksPending := prom.NewGaugeVec(prom.GaugeOpts{
		Namespace: "taskcore",
		Name:      "tasks_pending",
		Help:      "Number of pending tasks per registry.",
	}, []string{"pool"})
	tasksRunning := prom.NewGaugeVec(prom.GaugeOpts{
		Namespace: "taskcore",
		Name:      "tasks_running",
		Help:      "Number of running tasks per registry.",
	}, []string{"pool"})
	tasksCompleted := prom.NewGaugeVec(prom.GaugeOpts{
		Namespace: "taskcore",
		Name:      "tasks_completed",
		Help:      "Number of completed tasks still tracked per registry.",
	}, []string{"pool"})
	tasksFailed := prom.NewGaugeVec(prom.GaugeOpts{
		Namespace: "taskcore",
		Name:      "tasks_failed",
		Help:      "Number of failed tasks still tracked per registry.",
	}, []string{"pool"})

	poolQueued := prom.NewGaugeVec(prom.GaugeOpts{
		Namespace: "taskcore",
		Name:      "pool_queued",
		Help:      "Queued tasks per pool.",
	}, []string{"pool"})
	poolBusy := prom.NewGaugeVec(prom.GaugeOpts{
		Namespace: "taskcore",
		Name:      "pool_busy_workers",
		Help:      "Workers currently executing a task per pool.",
	}, []string{"pool"})
	poolDelayed := prom.NewGaugeVec(prom.GaugeOpts{
		Namespace: "taskcore",
		Name:      "pool_delayed",
		Help:      "Delayed tasks per pool.",
	}, []string{"pool"})
	poolWorkers := prom.NewGaugeVec(prom.GaugeOpts{
		Namespace: "taskcore",
		Name:      "pool_workers",
		Help:      "Worker count per pool.",
	}, []string{"pool"})
	poolRunning := prom.NewGaugeVec(prom.GaugeOpts{
		Namespace: "taskcore",
		Name:      "pool_running",
		Help:      "Pool running state (1=running, 0=stopped).",
	}, []string{"pool"})

	var err error
	if tasksPending, err = registerCollector(reg, tasksPending); err != nil {
		return nil, err
	}
	if tasksRunning, err = registerCollector(reg, tasksRunning); err != nil {
		return nil, err
	}
	if tasksCompleted, err = registerCollector(reg, tasksCompleted); err != nil {
		return nil, err
	}
	if tasksFailed, err = registerCollector(reg, tasksFailed); err != nil {
		return nil, err
	}
	if poolQueued, err = registerCollector(reg, poolQueued); err != nil {
		return nil, err
	}
	if poolBusy, err = registerCollector(reg, poolBusy); err != nil {
		return nil, err
	}
	if poolDelayed, err = registerCollector(reg, poolDelayed); err != nil {
		return nil, err
	}
	if poolWorkers, err = registerCollector(reg, poolWorkers); err != nil {
		return nil, err
	}
	if poolRunning, err = registerCollector(reg, poolRunning); err != nil {
		return nil, err
	}

	return &SnapshotPoller{
		interval:       interval,
		registries:     make(map[string]RegistrySnapshotProvider),
		pools:          make(map[string]PoolSnapshotProvider),
		tasksPending:   tasksPending,
		tasksRunning:   tasksRunning,
		tasksCompleted: tasksCompleted,
		tasksFailed:    tasksFailed,
		poolQueued:     poolQueued,
		poolBusy:       poolBusy,
		poolDelayed:    poolDelayed,
		poolWorkers:    poolWorkers,
		poolRunning:    poolRunning,
	}, nil
}

// AddRegistry adds or replaces a registry snapshot provider by pool name.
func (p *SnapshotPoller) AddRegistry(name string, provider RegistrySnapshotProvider) {
	if p == nil || provider == nil {
		return
	}
	name = normalizeLabel(name, "pool")
	p.registriesMu.Lock()
	p.registries[name] = provider
	p.registriesMu.Unlock()
}

// AddPool adds or replaces a pool snapshot provider by name.
func (p *SnapshotPoller) AddPool(name string, provider PoolSnapshotProvider) {
	if p == nil || provider == nil {
		return
	}
	name = normalizeLabel(name, "pool")
	p.poolsMu.Lock()
	p.pools[name] = provider
	p.poolsMu.Unlock()
}

// Start begins periodic polling; repeated calls are no-ops.
func (p *SnapshotPoller) Start(ctx context.Context) {
	if p == nil {
		return
	}

	p.stateMu.Lock()
	if p.running {
		p.stateMu.Unlock()
		return
	}
	pollCtx, cancel := context.WithCancel(ctx)
	p.cancel = cancel
	p.done = make(chan struct{})
	p.running = true
	p.stateMu.Unlock()

	go p.loop(pollCtx)
}

// Stop stops periodic polling; repeated calls are safe.
func (p *SnapshotPoller) Stop() {
	if p == nil {
		return
	}

	p.stateMu.Lock()
	if !p.running {
		p.stateMu.Unlock()
		return
	}
	cancel := p.cancel
	done := p.done
	p.stateMu.Unlock()

	if cancel != nil {
		cancel()
	}
	if done != nil {
		<-done
	}

	p.stateMu.Lock()
	p.running = false
	p.cancel = nil
	p.done = nil
	p.stateMu.Unlock()
}

func (p *SnapshotPoller) loop(ctx context.Context) {
	defer close(p.done)

	ticker := time.NewTicker(p.interval)
	defer ticker.Stop()

	p.collectOnce()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			p.collectOnce()
		}
	}
}

func (p *SnapshotPoller) collectOnce() {
	p.registriesMu.RLock()
	for name, provider := range p.registries {
		stats := provider.Stats()
		p.tasksPending.WithLabelValues(name).Set(float64(stats.Pending))
		p.tasksRunning.WithLabelValues(name).Set(float64(stats.Running))
		p.tasksCompleted.WithLabelValues(name).Set(float64(stats.Completed))
		p.tasksFailed.WithLabelValues(name).Set(float64(stats.Failed))
	}
	p.registriesMu.RUnlock()

	p.poolsMu.RLock()
	for name, provider := range p.pools {
		stats := provider.Stats()
		p.poolQueued.WithLabelValues(name).Set(float64(stats.Queued))
		p.poolBusy.WithLabelValues(name).Set(float64(stats.Busy))
		p.poolDelayed.WithLabelValues(name).Set(float64(stats.Delayed))
		p.poolWorkers.WithLabelValues(name).Set(float64(stats.Workers))
		if stats.Running {
			p.poolRunning.WithLabelValues(name).Set(1)
		} else {
			p.poolRunning.WithLabelValues(name).Set(0)
		}
	}
	p.poolsMu.RUnlock()
}
