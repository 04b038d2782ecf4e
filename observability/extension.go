package observability

import (
	"context"
	"sync"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"

	"github.com/xraph/researchsync/ext"
	"github.com/xraph/researchsync/id"
	"github.com/xraph/researchsync/job"
	"github.com/xraph/researchsync/update"
)

// meterName is the instrumentation scope name for researchsync metrics.
const meterName = "github.com/xraph/researchsync"

// Compile-time interface checks.
var (
	_ ext.Extension       = (*MetricsExtension)(nil)
	_ ext.Activated       = (*MetricsExtension)(nil)
	_ ext.Deactivated     = (*MetricsExtension)(nil)
	_ ext.SnapshotApplied = (*MetricsExtension)(nil)
	_ ext.UpdateApplied   = (*MetricsExtension)(nil)
	_ ext.UpdateDiscarded = (*MetricsExtension)(nil)
	_ ext.JobTerminal     = (*MetricsExtension)(nil)
	_ ext.FetchFailed     = (*MetricsExtension)(nil)
)

// MetricsExtension records engine lifecycle metrics.
//
// Instruments:
//   - researchsync.activations (Int64Counter)
//   - researchsync.snapshots.applied (Int64Counter)
//   - researchsync.updates.applied (Int64Counter), attribute kind
//   - researchsync.discarded (Int64Counter), attributes source, kind, reason
//   - researchsync.fetch.failures (Int64Counter)
//   - researchsync.jobs.terminal (Int64Counter), attribute status
//   - researchsync.job.duration (Float64Histogram): seconds from activation
//     to terminal status, attribute status
type MetricsExtension struct {
	activations      metric.Int64Counter
	snapshotsApplied metric.Int64Counter
	updatesApplied   metric.Int64Counter
	discarded        metric.Int64Counter
	fetchFailures    metric.Int64Counter
	terminal         metric.Int64Counter
	duration         metric.Float64Histogram

	mu        sync.Mutex
	activated map[string]time.Time
}

// NewMetricsExtension creates a MetricsExtension using the global
// MeterProvider.
func NewMetricsExtension() *MetricsExtension {
	return NewMetricsExtensionWithMeter(otel.Meter(meterName))
}

// NewMetricsExtensionWithMeter creates a MetricsExtension with the provided
// meter. On instrument errors the OTel API returns noop instruments.
func NewMetricsExtensionWithMeter(meter metric.Meter) *MetricsExtension {
	m := &MetricsExtension{activated: make(map[string]time.Time)}

	m.activations, _ = meter.Int64Counter("researchsync.activations",
		metric.WithDescription("Job activations"),
		metric.WithUnit("{activation}"))
	m.snapshotsApplied, _ = meter.Int64Counter("researchsync.snapshots.applied",
		metric.WithDescription("Snapshots merged into job state"),
		metric.WithUnit("{snapshot}"))
	m.updatesApplied, _ = meter.Int64Counter("researchsync.updates.applied",
		metric.WithDescription("Pushed updates merged into job state"),
		metric.WithUnit("{update}"))
	m.discarded, _ = meter.Int64Counter("researchsync.discarded",
		metric.WithDescription("Snapshots and updates rejected by the id or terminal guard"),
		metric.WithUnit("{transition}"))
	m.fetchFailures, _ = meter.Int64Counter("researchsync.fetch.failures",
		metric.WithDescription("Failed poll fetches"),
		metric.WithUnit("{fetch}"))
	m.terminal, _ = meter.Int64Counter("researchsync.jobs.terminal",
		metric.WithDescription("Jobs that reached a terminal status"),
		metric.WithUnit("{job}"))
	m.duration, _ = meter.Float64Histogram("researchsync.job.duration",
		metric.WithDescription("Time from activation to terminal status in seconds"),
		metric.WithUnit("s"))

	return m
}

// Name implements ext.Extension.
func (m *MetricsExtension) Name() string { return "observability-metrics" }

// OnActivated implements ext.Activated.
func (m *MetricsExtension) OnActivated(ctx context.Context, jobID string, _ id.ID) error {
	m.activations.Add(ctx, 1)
	m.mu.Lock()
	m.activated[jobID] = time.Now()
	m.mu.Unlock()
	return nil
}

// OnDeactivated implements ext.Deactivated.
func (m *MetricsExtension) OnDeactivated(_ context.Context, jobID string) error {
	m.mu.Lock()
	delete(m.activated, jobID)
	m.mu.Unlock()
	return nil
}

// OnSnapshotApplied implements ext.SnapshotApplied.
func (m *MetricsExtension) OnSnapshotApplied(ctx context.Context, _ *job.ResearchJob) error {
	m.snapshotsApplied.Add(ctx, 1)
	return nil
}

// OnUpdateApplied implements ext.UpdateApplied.
func (m *MetricsExtension) OnUpdateApplied(ctx context.Context, _ *job.ResearchJob, u update.Update) error {
	m.updatesApplied.Add(ctx, 1, metric.WithAttributes(attribute.String("kind", string(u.Kind()))))
	return nil
}

// OnUpdateDiscarded implements ext.UpdateDiscarded.
func (m *MetricsExtension) OnUpdateDiscarded(ctx context.Context, d ext.Discard) error {
	m.discarded.Add(ctx, 1, metric.WithAttributes(
		attribute.String("source", d.Source),
		attribute.String("kind", d.Kind),
		attribute.String("reason", d.Reason),
	))
	return nil
}

// OnFetchFailed implements ext.FetchFailed.
func (m *MetricsExtension) OnFetchFailed(ctx context.Context, _ string, _ error) error {
	m.fetchFailures.Add(ctx, 1)
	return nil
}

// OnJobTerminal implements ext.JobTerminal.
func (m *MetricsExtension) OnJobTerminal(ctx context.Context, j *job.ResearchJob) error {
	attrs := metric.WithAttributes(attribute.String("status", string(j.Status)))
	m.terminal.Add(ctx, 1, attrs)

	m.mu.Lock()
	started, ok := m.activated[j.ID]
	m.mu.Unlock()
	if ok {
		m.duration.Record(ctx, time.Since(started).Seconds(), attrs)
	}
	return nil
}
