package prometheus

import (
	"context"
	"testing"
	"time"

	"github.com/elizabethhannan/partr/core"
	prom "github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
)

type runtimeStub struct {
	stats core.RuntimeStats
}

func (s runtimeStub) Stats() core.RuntimeStats { return s.stats }

func TestSnapshotPoller_CollectsWorkerAndHeapStats(t *testing.T) {
	reg := prom.NewRegistry()
	stub := runtimeStub{stats: core.RuntimeStats{
		Workers: []core.WorkerStats{
			{ID: 0, StickyDepth: 3, Running: true},
			{ID: 1, StickyDepth: 0, Running: false},
		},
		HeapDepths: []int{5, 0, 12, 1},
	}}

	poller, err := NewSnapshotPoller(reg, stub, 10*time.Millisecond)
	if err != nil {
		t.Fatalf("NewSnapshotPoller failed: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	poller.Start(ctx)
	defer poller.Stop()

	assertEventually(t, 2*time.Second, func() bool {
		sticky := testutil.ToFloat64(poller.workerSticky.WithLabelValues("0"))
		depth := testutil.ToFloat64(poller.heapDepth.WithLabelValues("2"))
		return sticky == 3 && depth == 12
	})

	if got := testutil.ToFloat64(poller.workerRunning.WithLabelValues("0")); got != 1 {
		t.Fatalf("worker running gauge = %v, want 1", got)
	}
	if got := testutil.ToFloat64(poller.workerRunning.WithLabelValues("1")); got != 0 {
		t.Fatalf("worker running gauge = %v, want 0", got)
	}
}

func TestSnapshotPoller_StartStop_Idempotent(t *testing.T) {
	reg := prom.NewRegistry()
	stub := runtimeStub{}
	poller, err := NewSnapshotPoller(reg, stub, 20*time.Millisecond)
	if err != nil {
		t.Fatalf("NewSnapshotPoller failed: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	poller.Start(ctx)
	poller.Start(ctx)
	poller.Stop()
	poller.Stop()
}

func assertEventually(t *testing.T, timeout time.Duration, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(10 * time.Millisecond)
	}
	t.Fatal("condition not met within timeout")
}
