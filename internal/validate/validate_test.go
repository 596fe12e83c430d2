package validate

import (
	"errors"
	"fmt"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"

	"github.com/fkhayef/splitledger/internal/money"
)

func pcts(values ...string) []decimal.Decimal {
	out := make([]decimal.Decimal, len(values))
	for i, v := range values {
		out[i] = decimal.RequireFromString(v)
	}
	return out
}

func TestAmountsReconcile(t *testing.T) {
	tests := []struct {
		name  string
		total money.Amount
		parts []money.Amount
		want  bool
	}{
		{"exact", 10000, []money.Amount{5000, 5000}, true},
		{"equal split drift", 10000, []money.Amount{3333, 3333, 3333}, true},
		{"at tolerance", 10000, []money.Amount{9995}, true},
		{"over tolerance", 10000, []money.Amount{9994}, false},
		{"over by excess", 10000, []money.Amount{5003, 5003}, false},
		{"missing shares", 5000, []money.Amount{2000, 2000}, false},
		{"sum wraps around", 1000, []money.Amount{1 << 62, 1 << 62, 1 << 62, 1<<62 + 1000}, false},
		{"difference overflows", -(1 << 62), []money.Amount{1 << 62, 1<<62 - 1}, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, AmountsReconcile(tt.total, tt.parts))
		})
	}
}

func TestPercentagesReconcile(t *testing.T) {
	assert.True(t, PercentagesReconcile(pcts("50", "50")))
	assert.True(t, PercentagesReconcile(pcts("33.33", "33.33", "33.34")))
	assert.True(t, PercentagesReconcile(pcts("33.3", "33.3", "33.3")))
	assert.False(t, PercentagesReconcile(pcts("33", "33", "33")))
	assert.False(t, PercentagesReconcile(pcts("60", "50")))
	assert.True(t, PercentagesReconcileWithin(pcts("99"), decimal.NewFromInt(1)))
}

func TestPredicates(t *testing.T) {
	assert.True(t, IsPositiveAmount(1))
	assert.False(t, IsPositiveAmount(0))
	assert.False(t, IsPositiveAmount(-1))

	assert.True(t, IsDistinctParties(1, 2))
	assert.False(t, IsDistinctParties(3, 3))

	assert.True(t, IsSettled(1))
	assert.True(t, IsSettled(-1))
	assert.False(t, IsSettled(2))

	assert.True(t, IsPercentageInRange(decimal.Zero))
	assert.True(t, IsPercentageInRange(decimal.NewFromInt(100)))
	assert.False(t, IsPercentageInRange(decimal.NewFromInt(-1)))
	assert.False(t, IsPercentageInRange(decimal.RequireFromString("100.01")))
}

func TestSettlement(t *testing.T) {
	assert.NoError(t, Settlement(1, 2, 100))
	assert.ErrorIs(t, Settlement(1, 1, 100), ErrInvalidSettlement)
	assert.ErrorIs(t, Settlement(1, 2, 0), ErrInvalidSettlement)
	assert.ErrorIs(t, Settlement(1, 2, -5), ErrInvalidSettlement)
}

func TestCode(t *testing.T) {
	assert.Equal(t, "AMOUNT_MISMATCH", Code(fmt.Errorf("create: %w", ErrAmountMismatch)))
	assert.Equal(t, "PERCENTAGE_MISMATCH", Code(ErrPercentageMismatch))
	assert.Equal(t, "INVALID_SETTLEMENT", Code(Errorf(ErrInvalidSettlement, "self")))
	assert.Equal(t, "INVALID_LEDGER_ENTRY", Code(ErrInvalidLedgerEntry))
	assert.Equal(t, "", Code(errors.New("connection refused")))
	assert.Equal(t, "", Code(nil))
	assert.False(t, IsValidation(errors.New("boom")))
}
