package finance

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseObligationKind(t *testing.T) {
	tests := []struct {
		in      string
		want    ObligationKind
		wantErr bool
	}{
		{"SALE", ObligationKindSale, false},
		{"sales", ObligationKindSale, false},
		{"Purchases", ObligationKindPurchase, false},
		{"expense", ObligationKindExpense, false},
		{" payroll ", ObligationKindPayroll, false},
		{"customers", "", true},
		{"", "", true},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := ParseObligationKind(tt.in)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestObligationKind_IsValid(t *testing.T) {
	for _, k := range AllObligationKinds() {
		assert.True(t, k.IsValid(), k)
	}
	assert.False(t, ObligationKind("REFUND").IsValid())
	assert.True(t, ObligationKindSale.IsReceivable())
	assert.False(t, ObligationKindPayroll.IsReceivable())
}

func TestParseMonth(t *testing.T) {
	m, err := ParseMonth("2026-02")
	require.NoError(t, err)
	assert.Equal(t, "2026-02", m.String())
	assert.Equal(t, time.Date(2026, 2, 1, 0, 0, 0, 0, time.UTC), m.Start())
	assert.Equal(t, time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC), m.End())
	assert.True(t, m.Contains(time.Date(2026, 2, 28, 0, 0, 0, 0, time.UTC)))
	assert.False(t, m.Contains(time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)))

	dec, err := ParseMonth("2025-12")
	require.NoError(t, err)
	assert.Equal(t, time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC), dec.End())

	_, err = ParseMonth("2026-13")
	assert.Error(t, err)
	_, err = ParseMonth("March")
	assert.Error(t, err)
}

func TestCalendarDate(t *testing.T) {
	riyadh := time.FixedZone("AST", 3*60*60)
	late := time.Date(2026, 3, 31, 23, 30, 0, 0, riyadh)
	assert.Equal(t, time.Date(2026, 3, 31, 0, 0, 0, 0, time.UTC), CalendarDate(late))
}

func TestParsePaymentMethod(t *testing.T) {
	m, err := ParsePaymentMethod(" mada ")
	require.NoError(t, err)
	assert.Equal(t, PaymentMethodMada, m)

	custom, err := ParsePaymentMethod("stc pay")
	require.NoError(t, err)
	assert.Equal(t, PaymentMethod("STC PAY"), custom)

	_, err = ParsePaymentMethod("  ")
	assert.Error(t, err)
	assert.Len(t, KnownPaymentMethods(), 7)
}
