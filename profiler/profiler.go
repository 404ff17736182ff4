// Package profiler - Periodic runtime and pipeline reports for long-running capture sessions.
package profiler

import (
	"context"
	"runtime"
	"sort"
	"sync"
	"time"

	"github.com/dustin/go-humanize"

	"github.com/nvr-ai/go-yolo/logger"
)

// MetricsCollector defines the interface for collecting custom metrics.
type MetricsCollector interface {
	CollectMetrics() map[string]float64
}

// Options configures the runtime profiler.
type Options struct {
	// ReportInterval specifies how often to log a report (default: 10s).
	ReportInterval time.Duration `yaml:"report_interval"`
	// SampleInterval specifies how often collectors are polled (default: 1s).
	SampleInterval time.Duration `yaml:"sample_interval"`
	// MaxSamples bounds the window each metric is summarised over (default: 60).
	MaxSamples int `yaml:"max_samples"`
}

// tracker keeps a sliding window of one metric.
type tracker struct {
	values []float64
	sum    float64
	min    float64
	max    float64
}

func (t *tracker) add(v float64, limit int) {
	if len(t.values) == 0 || v < t.min {
		t.min = v
	}
	if len(t.values) == 0 || v > t.max {
		t.max = v
	}
	t.values = append(t.values, v)
	t.sum += v
	if len(t.values) > limit {
		t.sum -= t.values[0]
		t.values = t.values[1:]
	}
}

func (t *tracker) avg() float64 {
	if len(t.values) == 0 {
		return 0
	}
	return t.sum / float64(len(t.values))
}

// RuntimeProfiler samples registered collectors and logs a summary with memory and GC figures.
type RuntimeProfiler struct {
	opts Options
	log  *logger.Logger

	mu         sync.Mutex
	collectors []MetricsCollector
	metrics    map[string]*tracker
	memStats   runtime.MemStats
	lastGC     uint32
	startTime  time.Time

	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// New creates a profiler. Zero options take their defaults.
func New(opts Options, log *logger.Logger) *RuntimeProfiler {
	if opts.ReportInterval <= 0 {
		opts.ReportInterval = 10 * time.Second
	}
	if opts.SampleInterval <= 0 {
		opts.SampleInterval = time.Second
	}
	if opts.MaxSamples <= 0 {
		opts.MaxSamples = 60
	}
	if log == nil {
		log = logger.NewNopLogger()
	}
	return &RuntimeProfiler{
		opts:    opts,
		log:     log.Named("profiler"),
		metrics: make(map[string]*tracker),
	}
}

// AddMetricsCollector registers a collector polled every SampleInterval.
func (rp *RuntimeProfiler) AddMetricsCollector(c MetricsCollector) {
	rp.mu.Lock()
	defer rp.mu.Unlock()
	rp.collectors = append(rp.collectors, c)
}

// RecordMetric adds one value to a named metric.
func (rp *RuntimeProfiler) RecordMetric(name string, value float64) {
	rp.mu.Lock()
	defer rp.mu.Unlock()
	rp.record(name, value)
}

func (rp *RuntimeProfiler) record(name string, value float64) {
	t, ok := rp.metrics[name]
	if !ok {
		t = &tracker{}
		rp.metrics[name] = t
	}
	t.add(value, rp.opts.MaxSamples)
}

// Start launches the sampling and reporting loops. It is a no-op when already started.
func (rp *RuntimeProfiler) Start(ctx context.Context) {
	rp.mu.Lock()
	defer rp.mu.Unlock()
	if rp.cancel != nil {
		return
	}
	ctx, rp.cancel = context.WithCancel(ctx)
	rp.startTime = time.Now()

	rp.wg.Add(1)
	go func() {
		defer rp.wg.Done()
		sample := time.NewTicker(rp.opts.SampleInterval)
		report := time.NewTicker(rp.opts.ReportInterval)
		defer sample.Stop()
		defer report.Stop()

		for {
			select {
			case <-ctx.Done():
				return
			case <-sample.C:
				rp.Sample()
			case <-report.C:
				rp.Report()
			}
		}
	}()
}

// Stop ends the loops and waits for them to exit.
func (rp *RuntimeProfiler) Stop() {
	rp.mu.Lock()
	cancel := rp.cancel
	rp.cancel = nil
	rp.mu.Unlock()

	if cancel != nil {
		cancel()
		rp.wg.Wait()
	}
}

// Sample polls every collector once.
func (rp *RuntimeProfiler) Sample() {
	rp.mu.Lock()
	collectors := append([]MetricsCollector(nil), rp.collectors...)
	rp.mu.Unlock()

	collected := make([]map[string]float64, 0, len(collectors))
	for _, c := range collectors {
		collected = append(collected, c.CollectMetrics())
	}

	rp.mu.Lock()
	defer rp.mu.Unlock()
	runtime.ReadMemStats(&rp.memStats)
	rp.record("goroutines", float64(runtime.NumGoroutine()))
	for _, m := range collected {
		for name, v := range m {
			rp.record(name, v)
		}
	}
}

// Report logs the current summary.
func (rp *RuntimeProfiler) Report() {
	stats := rp.GetCurrentStats()

	rp.mu.Lock()
	newGC := rp.memStats.NumGC - rp.lastGC
	rp.lastGC = rp.memStats.NumGC
	heap, sys := rp.memStats.HeapAlloc, rp.memStats.Sys
	rp.mu.Unlock()

	fields := []interface{}{
		"uptime", stats["uptime"],
		"heap_alloc", humanize.IBytes(heap),
		"sys", humanize.IBytes(sys),
		"gc_new", newGC,
		"cgo_calls", runtime.NumCgoCall(),
	}
	if custom, ok := stats["custom_metrics"].(map[string]map[string]float64); ok {
		names := make([]string, 0, len(custom))
		for name := range custom {
			names = append(names, name)
		}
		sort.Strings(names)
		for _, name := range names {
			fields = append(fields, name, custom[name]["avg"])
		}
	}
	rp.log.Info("runtime report", fields...)
}

// GetCurrentStats returns the uptime, memory figures and the summary of every metric.
func (rp *RuntimeProfiler) GetCurrentStats() map[string]interface{} {
	rp.mu.Lock()
	defer rp.mu.Unlock()

	custom := make(map[string]map[string]float64, len(rp.metrics))
	for name, t := range rp.metrics {
		if len(t.values) == 0 {
			continue
		}
		custom[name] = map[string]float64{
			"avg":     t.avg(),
			"min":     t.min,
			"max":     t.max,
			"samples": float64(len(t.values)),
		}
	}

	var uptime time.Duration
	if !rp.startTime.IsZero() {
		uptime = time.Since(rp.startTime).Truncate(time.Millisecond)
	}
	return map[string]interface{}{
		"uptime":     uptime,
		"goroutines": runtime.NumGoroutine(),
		"memory": map[string]uint64{
			"alloc":      rp.memStats.Alloc,
			"heap_alloc": rp.memStats.HeapAlloc,
			"sys":        rp.memStats.Sys,
			"gc_cycles":  uint64(rp.memStats.NumGC),
		},
		"custom_metrics": custom,
	}
}
