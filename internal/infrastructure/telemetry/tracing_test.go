package telemetry

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"
	"go.opentelemetry.io/otel/trace"
)

func withRecorder(t *testing.T) *tracetest.SpanRecorder {
	t.Helper()
	recorder := tracetest.NewSpanRecorder()
	previous := otel.GetTracerProvider()
	otel.SetTracerProvider(sdktrace.NewTracerProvider(sdktrace.WithSpanProcessor(recorder)))
	t.Cleanup(func() { otel.SetTracerProvider(previous) })
	return recorder
}

func TestStartServiceSpan(t *testing.T) {
	recorder := withRecorder(t)

	ctx, span := StartServiceSpan(context.Background(), "reconciliation", "register_payment",
		WithAttribute(SpanAttrObligationKind, "SALE"),
	)
	SetAttributes(span, SpanAttrAmount, "400.00", SpanAttrReplayed, false, 42, "skipped")
	AddEvent(span, "ledger.appended", SpanAttrPaymentID, "p-1")
	assert.True(t, trace.SpanContextFromContext(ctx).IsValid())
	span.End()

	ended := recorder.Ended()
	require.Len(t, ended, 1)
	got := ended[0]
	assert.Equal(t, "reconciliation.register_payment", got.Name())
	assert.Equal(t, trace.SpanKindInternal, got.SpanKind())
	assert.Contains(t, got.Attributes(), attribute.String(SpanAttrObligationKind, "SALE"))
	assert.Contains(t, got.Attributes(), attribute.String(SpanAttrAmount, "400.00"))
	assert.Contains(t, got.Attributes(), attribute.Bool(SpanAttrReplayed, false))
	require.Len(t, got.Events(), 1)
	assert.Equal(t, "ledger.appended", got.Events()[0].Name)
}

func TestRecordError(t *testing.T) {
	recorder := withRecorder(t)

	_, span := StartSpan(context.Background(), "verify")
	RecordError(span, errors.New("ledger sum differs"))
	RecordError(span, nil)
	span.End()

	ended := recorder.Ended()
	require.Len(t, ended, 1)
	assert.Equal(t, codes.Error, ended[0].Status().Code)
	assert.Equal(t, "ledger sum differs", ended[0].Status().Description)
}

func TestSetAttributes_NilSpan(t *testing.T) {
	assert.NotPanics(t, func() {
		SetAttributes(nil, "k", "v")
		SetAttribute(nil, "k", "v")
		AddEvent(nil, "e")
		RecordError(nil, errors.New("x"))
	})
}

func TestToAttribute(t *testing.T) {
	tests := []struct {
		name  string
		value any
		want  attribute.KeyValue
	}{
		{"string", "x", attribute.String("k", "x")},
		{"int", 3, attribute.Int("k", 3)},
		{"int64", int64(3), attribute.Int64("k", 3)},
		{"float", 1.5, attribute.Float64("k", 1.5)},
		{"bool", true, attribute.Bool("k", true)},
		{"slice", []string{"a"}, attribute.StringSlice("k", []string{"a"})},
		{"fallback", struct{ A int }{1}, attribute.String("k", "{1}")},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, toAttribute("k", tt.value))
		})
	}
}
