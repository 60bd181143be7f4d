package observability

import (
	"context"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"

	"github.com/doeshing/deskgate/internal/domain"
)

// Metrics holds the pipeline instruments. A nil *Metrics records nothing.
type Metrics struct {
	actions        metric.Int64Counter
	actionDuration metric.Float64Histogram
	layerAttempts  metric.Int64Counter
	elevations     metric.Int64Counter
	auditFailures  metric.Int64Counter
	rejections     metric.Int64Counter
}

// NewMetrics registers the instruments on meter.
func NewMetrics(meter metric.Meter) (*Metrics, error) {
	m := &Metrics{}
	var err error
	if m.actions, err = meter.Int64Counter("deskgate.actions.total",
		metric.WithDescription("Executed actions by name and status"),
		metric.WithUnit("{action}"),
	); err != nil {
		return nil, err
	}
	if m.actionDuration, err = meter.Float64Histogram("deskgate.action.duration",
		metric.WithDescription("Action wall time in seconds"),
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(0.01, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30, 60),
	); err != nil {
		return nil, err
	}
	if m.layerAttempts, err = meter.Int64Counter("deskgate.automation.attempts.total",
		metric.WithDescription("Automation layer attempts by layer and outcome"),
		metric.WithUnit("{attempt}"),
	); err != nil {
		return nil, err
	}
	if m.elevations, err = meter.Int64Counter("deskgate.elevations.total",
		metric.WithDescription("Privileged action dispatches by elevation outcome"),
		metric.WithUnit("{elevation}"),
	); err != nil {
		return nil, err
	}
	if m.auditFailures, err = meter.Int64Counter("deskgate.audit.write_failures.total",
		metric.WithDescription("Audit records that could not be written"),
		metric.WithUnit("{record}"),
	); err != nil {
		return nil, err
	}
	if m.rejections, err = meter.Int64Counter("deskgate.plans.rejected.total",
		metric.WithDescription("Plans rejected by validation"),
		metric.WithUnit("{plan}"),
	); err != nil {
		return nil, err
	}
	return m, nil
}

// RecordAction counts one finished action.
func (m *Metrics) RecordAction(ctx context.Context, result domain.ExecutionResult) {
	if m == nil {
		return
	}
	attrs := []attribute.KeyValue{
		AttrAction.String(result.Action),
		AttrKind.String(string(result.Kind)),
		AttrStatus.String(string(result.Status)),
	}
	if result.Error != nil {
		attrs = append(attrs, AttrErrorKind.String(string(result.Error.Kind)))
	}
	m.actions.Add(ctx, 1, metric.WithAttributes(attrs...))
	m.actionDuration.Record(ctx, result.Duration.Seconds(), metric.WithAttributes(AttrAction.String(result.Action)))
	if result.Elevation != domain.ElevationNone {
		m.elevations.Add(ctx, 1, metric.WithAttributes(AttrElevation.String(string(result.Elevation))))
	}
}

// RecordLayerAttempt counts one automation layer attempt.
func (m *Metrics) RecordLayerAttempt(ctx context.Context, layer domain.Layer, outcome domain.AttemptOutcome) {
	if m == nil {
		return
	}
	m.layerAttempts.Add(ctx, 1, metric.WithAttributes(AttrLayer.String(string(layer)), AttrOutcome.String(string(outcome))))
}

// RecordAuditFailure counts a record the audit sink rejected.
func (m *Metrics) RecordAuditFailure(ctx context.Context, action string) {
	if m == nil {
		return
	}
	m.auditFailures.Add(ctx, 1, metric.WithAttributes(AttrAction.String(action)))
}

// RecordRejection counts a plan the validator rejected.
func (m *Metrics) RecordRejection(ctx context.Context) {
	if m == nil {
		return
	}
	m.rejections.Add(ctx, 1)
}
