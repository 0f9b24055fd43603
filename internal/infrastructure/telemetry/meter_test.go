package telemetry

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/metric/metricdata"
	"go.uber.org/zap"
)

func TestNewMeterProvider_Disabled(t *testing.T) {
	mp, err := NewMeterProvider(context.Background(), Config{Enabled: false}, zap.NewNop())
	require.NoError(t, err)
	assert.False(t, mp.IsEnabled())
	assert.NotNil(t, mp.Meter(MeterName))
	assert.NoError(t, mp.ForceFlush(context.Background()))
	assert.NoError(t, mp.Shutdown(context.Background()))
}

func TestNewMeterProviderWithReader_Instruments(t *testing.T) {
	ctx := context.Background()
	reader := sdkmetric.NewManualReader()
	mp, err := NewMeterProviderWithReader(Config{ServiceName: "dues-engine"}, reader, zap.NewNop())
	require.NoError(t, err)
	t.Cleanup(func() { _ = mp.Shutdown(ctx) })
	assert.True(t, mp.IsEnabled())

	meter := mp.Meter("test")
	counter, err := NewCounter(meter, "test_total", "test counter", "{op}")
	require.NoError(t, err)
	gauge, err := NewGauge(meter, "test_in_flight", "test gauge", "{op}")
	require.NoError(t, err)

	counter.Inc(ctx)
	counter.Add(ctx, 2)
	gauge.Inc(ctx)
	gauge.Inc(ctx)
	gauge.Dec(ctx)

	var rm metricdata.ResourceMetrics
	require.NoError(t, reader.Collect(ctx, &rm))
	require.Len(t, rm.ScopeMetrics, 1)

	values := map[string]int64{}
	for _, m := range rm.ScopeMetrics[0].Metrics {
		sum, ok := m.Data.(metricdata.Sum[int64])
		require.True(t, ok, m.Name)
		require.Len(t, sum.DataPoints, 1)
		values[m.Name] = sum.DataPoints[0].Value
	}
	assert.Equal(t, int64(3), values["test_total"])
	assert.Equal(t, int64(1), values["test_in_flight"])
}
