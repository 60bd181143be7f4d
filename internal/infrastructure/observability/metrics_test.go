package observability

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/metric/metricdata"

	"github.com/doeshing/deskgate/internal/domain"
)

func collect(t *testing.T, reader *sdkmetric.ManualReader) map[string]int64 {
	t.Helper()
	var rm metricdata.ResourceMetrics
	require.NoError(t, reader.Collect(context.Background(), &rm))
	totals := map[string]int64{}
	for _, scope := range rm.ScopeMetrics {
		for _, m := range scope.Metrics {
			if sum, ok := m.Data.(metricdata.Sum[int64]); ok {
				for _, dp := range sum.DataPoints {
					totals[m.Name] += dp.Value
				}
			}
		}
	}
	return totals
}

func TestMetricsRecord(t *testing.T) {
	reader := sdkmetric.NewManualReader()
	provider := sdkmetric.NewMeterProvider(sdkmetric.WithReader(reader))
	metrics, err := NewMetrics(provider.Meter("test"))
	require.NoError(t, err)

	ctx := context.Background()
	metrics.RecordAction(ctx, domain.ExecutionResult{Action: "list_files", Kind: domain.KindDirect, Status: domain.StatusSuccess, Duration: time.Millisecond})
	metrics.RecordAction(ctx, domain.ExecutionResult{
		Action: "bluetooth_on", Kind: domain.KindPrivileged, Status: domain.StatusError,
		Error:     &domain.ActionError{Kind: domain.ErrElevationDenied},
		Elevation: domain.ElevationDenied,
	})
	metrics.RecordLayerAttempt(ctx, domain.LayerNativeAPI, domain.AttemptNotFound)
	metrics.RecordLayerAttempt(ctx, domain.LayerUITree, domain.AttemptSuccess)
	metrics.RecordAuditFailure(ctx, "list_files")
	metrics.RecordRejection(ctx)

	totals := collect(t, reader)
	require.Equal(t, int64(2), totals["deskgate.actions.total"])
	require.Equal(t, int64(1), totals["deskgate.elevations.total"])
	require.Equal(t, int64(2), totals["deskgate.automation.attempts.total"])
	require.Equal(t, int64(1), totals["deskgate.audit.write_failures.total"])
	require.Equal(t, int64(1), totals["deskgate.plans.rejected.total"])
}

func TestNilMetricsIsSafe(t *testing.T) {
	var metrics *Metrics
	metrics.RecordAction(context.Background(), domain.ExecutionResult{Action: "chat"})
	metrics.RecordLayerAttempt(context.Background(), domain.LayerOCR, domain.AttemptTimeout)
	metrics.RecordAuditFailure(context.Background(), "chat")
	metrics.RecordRejection(context.Background())
}

func TestDisabledProvider(t *testing.T) {
	p, err := New(context.Background(), domain.ObservabilitySettings{}, "test")
	require.NoError(t, err)
	require.False(t, p.Enabled())
	require.NoError(t, p.Shutdown(context.Background()))
}
