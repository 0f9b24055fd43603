package telemetry

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/metric/noop"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/metric/metricdata"
)

func TestNewReconciliationMetrics_Noop(t *testing.T) {
	m, err := NewReconciliationMetrics(noop.NewMeterProvider().Meter(MeterName))
	require.NoError(t, err)

	ctx := context.Background()
	assert.NotPanics(t, func() {
		m.RecordPaymentRegistered(ctx, "SALE", "CASH", 400)
		m.RecordPaymentReplayed(ctx, "SALE")
		m.RecordPaymentRejected(ctx, "INVALID_AMOUNT")
		m.RecordIntegrityMismatch(ctx, "SALE")
		m.RecordObligationOpened(ctx, "SALE", "UNPAID")
		m.RecordObligationSettled(ctx, "SALE")
		m.RecordReportBuilt(ctx, "ALL", 3)
		m.RecordDuration(ctx, "register_payment", time.Now())
	})
}

func TestReconciliationMetrics_NilSafe(t *testing.T) {
	var m *ReconciliationMetrics
	assert.NotPanics(t, func() {
		m.RecordPaymentRegistered(context.Background(), "SALE", "CASH", 1)
		m.RecordIntegrityMismatch(context.Background(), "SALE")
	})
}

func TestReconciliationMetrics_Collect(t *testing.T) {
	reader := sdkmetric.NewManualReader()
	provider := sdkmetric.NewMeterProvider(sdkmetric.WithReader(reader))
	defer func() { _ = provider.Shutdown(context.Background()) }()

	m, err := NewReconciliationMetrics(provider.Meter(MeterName))
	require.NoError(t, err)

	ctx := context.Background()
	m.RecordPaymentRegistered(ctx, "SALE", "CASH", 400)
	m.RecordPaymentRegistered(ctx, "SALE", "CASH", 600)
	m.RecordIntegrityMismatch(ctx, "PURCHASE")

	var rm metricdata.ResourceMetrics
	require.NoError(t, reader.Collect(ctx, &rm))

	sums := map[string]int64{}
	for _, sm := range rm.ScopeMetrics {
		for _, metric := range sm.Metrics {
			if data, ok := metric.Data.(metricdata.Sum[int64]); ok {
				for _, dp := range data.DataPoints {
					sums[metric.Name] += dp.Value
				}
			}
		}
	}
	assert.Equal(t, int64(2), sums["dues_payments_registered_total"])
	assert.Equal(t, int64(1), sums["dues_integrity_mismatches_total"])
}
