package profiler

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"

	"github.com/nvr-ai/go-yolo/logger"
)

type staticCollector map[string]float64

func (c staticCollector) CollectMetrics() map[string]float64 { return c }

func TestRecordMetric_Window(t *testing.T) {
	rp := New(Options{MaxSamples: 3}, nil)
	for _, v := range []float64{10, 1, 2, 3} {
		rp.RecordMetric("latency_ms", v)
	}

	custom := rp.GetCurrentStats()["custom_metrics"].(map[string]map[string]float64)
	require.Contains(t, custom, "latency_ms")
	assert.Equal(t, float64(3), custom["latency_ms"]["samples"])
	assert.InDelta(t, 2, custom["latency_ms"]["avg"], 1e-9)
	assert.Equal(t, float64(1), custom["latency_ms"]["min"])
	assert.Equal(t, float64(10), custom["latency_ms"]["max"])
}

func TestSampleAndReport(t *testing.T) {
	core, logs := observer.New(zap.InfoLevel)
	rp := New(Options{}, &logger.Logger{Logger: zap.New(core)})
	rp.AddMetricsCollector(staticCollector{"throughput_fps": 25})

	rp.Sample()
	rp.Sample()
	rp.Report()

	custom := rp.GetCurrentStats()["custom_metrics"].(map[string]map[string]float64)
	assert.Equal(t, float64(2), custom["throughput_fps"]["samples"])
	assert.Contains(t, custom, "goroutines")

	entries := logs.FilterMessage("runtime report").All()
	require.Len(t, entries, 1)
	fields := entries[0].ContextMap()
	assert.Equal(t, float64(25), fields["throughput_fps"])
	assert.Regexp(t, `^[0-9.]+ (B|[KMGTPE]iB)$`, fields["heap_alloc"])
}

func TestStartStop(t *testing.T) {
	rp := New(Options{SampleInterval: time.Millisecond, ReportInterval: time.Hour}, nil)
	rp.AddMetricsCollector(staticCollector{"cycles": 1})

	rp.Start(context.Background())
	rp.Start(context.Background())
	assert.Eventually(t, func() bool {
		custom := rp.GetCurrentStats()["custom_metrics"].(map[string]map[string]float64)
		_, ok := custom["cycles"]
		return ok
	}, time.Second, 5*time.Millisecond)

	rp.Stop()
	rp.Stop()
}
