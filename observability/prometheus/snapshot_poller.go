package prometheus

import (
	"context"
	"strconv"
	"sync"
	"time"

	"github.com/elizabethhannan/partr/core"
	prom "github.com/prometheus/client_golang/prometheus"
)

// RuntimeSnapshotProvider provides a point-in-time scheduling snapshot -
// satisfied by *core.Runtime's Stats method.
type RuntimeSnapshotProvider interface {
	Stats() core.RuntimeStats
}

// SnapshotPoller periodically exports a Runtime's Stats() snapshot into
// Prometheus gauges, for state that Metrics' hot-path counters/histograms
// don't cover well: point-in-time occupancy rather than rate.
type SnapshotPoller struct {
	interval time.Duration
	provider RuntimeSnapshotProvider

	workerSticky  *prom.GaugeVec
	workerRunning *prom.GaugeVec
	heapDepth     *prom.GaugeVec

	stateMu sync.Mutex
	running bool
	cancel  context.CancelFunc
	done    chan struct{}
}

// NewSnapshotPoller creates and registers a poller for provider, polling
// every interval (default 1s).
func NewSnapshotPoller(reg prom.Registerer, provider RuntimeSnapshotProvider, interval time.Duration) (*SnapshotPoller, error) {
	if reg == nil {
		reg = prom.DefaultRegisterer
	}
	if interval <= 0 {
		interval = time.Second
	}

	workerSticky := prom.NewGaugeVec(prom.GaugeOpts{
		Namespace: "partr",
		Name:      "worker_sticky_depth",
		Help:      "Sticky queue depth per worker.",
	}, []string{"worker"})
	workerRunning := prom.NewGaugeVec(prom.GaugeOpts{
		Namespace: "partr",
		Name:      "worker_running",
		Help:      "Whether a worker is currently dispatching a task (1) or idle (0).",
	}, []string{"worker"})
	heapDepth := prom.NewGaugeVec(prom.GaugeOpts{
		Namespace: "partr",
		Name:      "heap_depth_snapshot",
		Help:      "Multiqueue heap occupancy, sampled periodically rather than pushed on insert/delete.",
	}, []string{"heap"})

	var err error
	if workerSticky, err = registerCollector(reg, workerSticky); err != nil {
		return nil, err
	}
	if workerRunning, err = registerCollector(reg, workerRunning); err != nil {
		return nil, err
	}
	if heapDepth, err = registerCollector(reg, heapDepth); err != nil {
		return nil, err
	}

	return &SnapshotPoller{
		interval:      interval,
		provider:      provider,
		workerSticky:  workerSticky,
		workerRunning: workerRunning,
		heapDepth:     heapDepth,
	}, nil
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
	stats := p.provider.Stats()

	for _, w := range stats.Workers {
		label := strconv.Itoa(w.ID)
		p.workerSticky.WithLabelValues(label).Set(float64(w.StickyDepth))
		if w.Running {
			p.workerRunning.WithLabelValues(label).Set(1)
		} else {
			p.workerRunning.WithLabelValues(label).Set(0)
		}
	}

	for i, depth := range stats.HeapDepths {
		p.heapDepth.WithLabelValues(strconv.Itoa(i)).Set(float64(depth))
	}
}
