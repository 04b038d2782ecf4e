package observability_test

import (
	"context"
	"errors"
	"log/slog"
	"testing"

	"go.opentelemetry.io/otel/attribute"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/metric/metricdata"

	"github.com/xraph/researchsync/ext"
	"github.com/xraph/researchsync/id"
	"github.com/xraph/researchsync/job"
	"github.com/xraph/researchsync/observability"
	"github.com/xraph/researchsync/update"
)

func setupTestMeter() (*sdkmetric.ManualReader, *sdkmetric.MeterProvider) {
	reader := sdkmetric.NewManualReader()
	mp := sdkmetric.NewMeterProvider(sdkmetric.WithReader(reader))
	return reader, mp
}

func collectMetrics(t *testing.T, reader *sdkmetric.ManualReader) metricdata.ResourceMetrics {
	t.Helper()
	var rm metricdata.ResourceMetrics
	if err := reader.Collect(context.Background(), &rm); err != nil {
		t.Fatalf("failed to collect metrics: %v", err)
	}
	return rm
}

func findMetric(rm metricdata.ResourceMetrics, name string) *metricdata.Metrics {
	for _, sm := range rm.ScopeMetrics {
		for i := range sm.Metrics {
			if sm.Metrics[i].Name == name {
				return &sm.Metrics[i]
			}
		}
	}
	return nil
}

func counterTotal(t *testing.T, rm metricdata.ResourceMetrics, name string) int64 {
	t.Helper()
	m := findMetric(rm, name)
	if m == nil {
		t.Fatalf("%s metric not found", name)
	}
	sum, ok := m.Data.(metricdata.Sum[int64])
	if !ok {
		t.Fatalf("%s: expected Sum[int64], got %T", name, m.Data)
	}
	var total int64
	for _, dp := range sum.DataPoints {
		total += dp.Value
	}
	return total
}

func TestMetricsExtension_Name(t *testing.T) {
	_, mp := setupTestMeter()
	e := observability.NewMetricsExtensionWithMeter(mp.Meter("test"))
	if e.Name() != "observability-metrics" {
		t.Errorf("expected name %q, got %q", "observability-metrics", e.Name())
	}
}

func TestMetricsExtension_Counters(t *testing.T) {
	reader, mp := setupTestMeter()
	e := observability.NewMetricsExtensionWithMeter(mp.Meter("test"))
	ctx := context.Background()
	j := &job.ResearchJob{ID: "J1", Status: job.StatusRunning}

	_ = e.OnActivated(ctx, "J1", id.NewActivation())
	_ = e.OnSnapshotApplied(ctx, j)
	_ = e.OnSnapshotApplied(ctx, j)
	_ = e.OnUpdateApplied(ctx, j, update.ProgressUpdate{JobID: "J1"})
	_ = e.OnFetchFailed(ctx, "J1", errors.New("timeout"))

	rm := collectMetrics(t, reader)
	tests := []struct {
		name string
		want int64
	}{
		{"researchsync.activations", 1},
		{"researchsync.snapshots.applied", 2},
		{"researchsync.updates.applied", 1},
		{"researchsync.fetch.failures", 1},
	}
	for _, tt := range tests {
		if got := counterTotal(t, rm, tt.name); got != tt.want {
			t.Errorf("%s = %d, want %d", tt.name, got, tt.want)
		}
	}
}

func TestMetricsExtension_DiscardAttributes(t *testing.T) {
	reader, mp := setupTestMeter()
	e := observability.NewMetricsExtensionWithMeter(mp.Meter("test"))

	_ = e.OnUpdateDiscarded(context.Background(), ext.Discard{
		Source: "update", Kind: "status_changed", JobID: "J0", Reason: "job_mismatch",
	})

	rm := collectMetrics(t, reader)
	m := findMetric(rm, "researchsync.discarded")
	if m == nil {
		t.Fatal("researchsync.discarded metric not found")
	}
	sum := m.Data.(metricdata.Sum[int64])
	if len(sum.DataPoints) != 1 {
		t.Fatalf("expected 1 data point, got %d", len(sum.DataPoints))
	}
	got, ok := sum.DataPoints[0].Attributes.Value(attribute.Key("reason"))
	if !ok || got.AsString() != "job_mismatch" {
		t.Errorf("reason attribute = %v, want job_mismatch", got)
	}
}

func TestMetricsExtension_TerminalRecordsDuration(t *testing.T) {
	reader, mp := setupTestMeter()
	e := observability.NewMetricsExtensionWithMeter(mp.Meter("test"))
	ctx := context.Background()

	_ = e.OnActivated(ctx, "J1", id.NewActivation())
	_ = e.OnJobTerminal(ctx, &job.ResearchJob{ID: "J1", Status: job.StatusCompleted})

	// No activation on record: counted, but no duration sample.
	_ = e.OnJobTerminal(ctx, &job.ResearchJob{ID: "J2", Status: job.StatusFailed})

	rm := collectMetrics(t, reader)
	if got := counterTotal(t, rm, "researchsync.jobs.terminal"); got != 2 {
		t.Errorf("terminal = %d, want 2", got)
	}

	m := findMetric(rm, "researchsync.job.duration")
	if m == nil {
		t.Fatal("researchsync.job.duration metric not found")
	}
	hist, ok := m.Data.(metricdata.Histogram[float64])
	if !ok {
		t.Fatal("expected Histogram[float64] data type")
	}
	var count uint64
	for _, dp := range hist.DataPoints {
		count += dp.Count
	}
	if count != 1 {
		t.Errorf("duration samples = %d, want 1", count)
	}
}

func TestMetricsExtension_RegistersWithRegistry(t *testing.T) {
	reader, mp := setupTestMeter()
	e := observability.NewMetricsExtensionWithMeter(mp.Meter("test"))

	reg := ext.NewRegistry(slog.Default())
	reg.Register(e)
	reg.EmitActivated(context.Background(), "J1", id.NewActivation())

	if got := counterTotal(t, collectMetrics(t, reader), "researchsync.activations"); got != 1 {
		t.Errorf("activations = %d, want 1", got)
	}
}
