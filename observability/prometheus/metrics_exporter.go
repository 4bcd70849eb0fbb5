package prometheus

import (
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/elizabethhannan/partr/core"
	prom "github.com/prometheus/client_golang/prometheus"
)

// ExporterOptions controls collector configuration.
type ExporterOptions struct {
	DurationBuckets []float64
	FanoutBuckets   []float64
}

// MetricsExporter adapts core.Metrics to Prometheus collectors, labeled
// for the scheduler's own vocabulary - heap index, worker id, grain
// fan-out size - rather than a generic task-runner's traits.
type MetricsExporter struct {
	taskDurationSeconds *prom.HistogramVec
	taskPanicTotal      *prom.CounterVec
	enqueueRejected     *prom.CounterVec
	heapDepth           *prom.GaugeVec
	grainFanoutSize     prom.Histogram
}

var _ core.Metrics = (*MetricsExporter)(nil)

// NewMetricsExporter creates and registers Prometheus collectors backing
// core.Metrics under the partr_ namespace.
func NewMetricsExporter(namespace string, reg prom.Registerer, opts ExporterOptions) (*MetricsExporter, error) {
	if namespace == "" {
		namespace = "partr"
	}
	if reg == nil {
		reg = prom.DefaultRegisterer
	}
	durationBuckets := opts.DurationBuckets
	if len(durationBuckets) == 0 {
		durationBuckets = prom.DefBuckets
	}
	fanoutBuckets := opts.FanoutBuckets
	if len(fanoutBuckets) == 0 {
		fanoutBuckets = prom.ExponentialBuckets(1, 2, 12)
	}

	durationVec := prom.NewHistogramVec(prom.HistogramOpts{
		Namespace: namespace,
		Name:      "task_duration_seconds",
		Help:      "Task callable execution duration in seconds, by priority.",
		Buckets:   durationBuckets,
	}, []string{"priority"})
	panicVec := prom.NewCounterVec(prom.CounterOpts{
		Namespace: namespace,
		Name:      "task_panic_total",
		Help:      "Total number of task callables that panicked, by worker.",
	}, []string{"worker"})
	rejectedVec := prom.NewCounterVec(prom.CounterOpts{
		Namespace: namespace,
		Name:      "enqueue_rejected_total",
		Help:      "Total number of enqueueTask calls that exhausted their retry budget.",
	}, []string{"reason"})
	heapDepthVec := prom.NewGaugeVec(prom.GaugeOpts{
		Namespace: namespace,
		Name:      "heap_depth",
		Help:      "Current occupancy of one multiqueue heap.",
	}, []string{"heap"})
	fanoutHist := prom.NewHistogram(prom.HistogramOpts{
		Namespace: namespace,
		Name:      "grain_fanout_size",
		Help:      "Observed G (grain count) per new_multi call.",
		Buckets:   fanoutBuckets,
	})

	var err error
	if durationVec, err = registerCollector(reg, durationVec); err != nil {
		return nil, err
	}
	if panicVec, err = registerCollector(reg, panicVec); err != nil {
		return nil, err
	}
	if rejectedVec, err = registerCollector(reg, rejectedVec); err != nil {
		return nil, err
	}
	if heapDepthVec, err = registerCollector(reg, heapDepthVec); err != nil {
		return nil, err
	}
	if fanoutHist, err = registerCollector(reg, fanoutHist); err != nil {
		return nil, err
	}

	return &MetricsExporter{
		taskDurationSeconds: durationVec,
		taskPanicTotal:      panicVec,
		enqueueRejected:     rejectedVec,
		heapDepth:           heapDepthVec,
		grainFanoutSize:     fanoutHist,
	}, nil
}

func (m *MetricsExporter) RecordTaskDuration(priority int16, duration time.Duration) {
	if m == nil {
		return
	}
	m.taskDurationSeconds.WithLabelValues(strconv.Itoa(int(priority))).Observe(duration.Seconds())
}

func (m *MetricsExporter) RecordTaskPanic(workerID int) {
	if m == nil {
		return
	}
	m.taskPanicTotal.WithLabelValues(strconv.Itoa(workerID)).Inc()
}

func (m *MetricsExporter) RecordHeapDepth(heapIndex, depth int) {
	if m == nil {
		return
	}
	m.heapDepth.WithLabelValues(strconv.Itoa(heapIndex)).Set(float64(depth))
}

func (m *MetricsExporter) RecordEnqueueRejected(reason string) {
	if m == nil {
		return
	}
	m.enqueueRejected.WithLabelValues(normalizeLabel(reason, "unknown")).Inc()
}

func (m *MetricsExporter) RecordGrainFanout(grains int) {
	if m == nil {
		return
	}
	m.grainFanoutSize.Observe(float64(grains))
}

func normalizeLabel(v string, fallback string) string {
	if v == "" {
		return fallback
	}
	return v
}

func registerCollector[T prom.Collector](reg prom.Registerer, collector T) (T, error) {
	err := reg.Register(collector)
	if err == nil {
		return collector, nil
	}

	var alreadyRegisteredErr prom.AlreadyRegisteredError
	if errors.As(err, &alreadyRegisteredErr) {
		existing, ok := alreadyRegisteredErr.ExistingCollector.(T)
		if !ok {
			return collector, fmt.Errorf("collector type mismatch for %T", collector)
		}
		return existing, nil
	}

	return collector, err
}
