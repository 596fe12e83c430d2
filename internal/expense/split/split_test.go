package split

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fkhayef/splitledger/internal/money"
	"github.com/fkhayef/splitledger/internal/validate"
)

const (
	alice int64 = 1
	bob   int64 = 2
	carol int64 = 3
)

func pct(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

func TestCompute(t *testing.T) {
	tests := []struct {
		name         string
		total        string
		mode         SplitType
		participants []int64
		in           Inputs
		want         []Share
		wantErr      error
	}{
		{
			name:         "equal three ways leaves drift",
			total:        "100.00",
			mode:         SplitTypeEqual,
			participants: []int64{alice, bob, carol},
			want:         []Share{{alice, 3333}, {bob, 3333}, {carol, 3333}},
		},
		{
			name:         "equal over involved subset",
			total:        "90.00",
			mode:         SplitTypeEqual,
			participants: []int64{alice, bob, carol},
			in:           Inputs{Involved: []int64{carol, alice}},
			want:         []Share{{alice, 4500}, {carol, 4500}},
		},
		{
			name:         "equal rounds half away from zero",
			total:        "0.05",
			mode:         SplitTypeEqual,
			participants: []int64{alice, bob},
			want:         []Share{{alice, 3}, {bob, 3}},
		},
		{
			name:         "equal involving a stranger",
			total:        "10.00",
			mode:         SplitTypeEqual,
			participants: []int64{alice, bob},
			in:           Inputs{Involved: []int64{carol}},
			wantErr:      validate.ErrInvalidLedgerEntry,
		},
		{
			name:         "equal drift beyond tolerance is rejected",
			total:        "0.12",
			mode:         SplitTypeEqual,
			participants: []int64{1, 2, 3, 4, 5, 6, 7, 8, 9, 10, 11, 12, 13, 14, 15, 16, 17, 18, 19, 20},
			wantErr:      validate.ErrAmountMismatch,
		},
		{
			name:         "exact taken as entered",
			total:        "50.00",
			mode:         SplitTypeExact,
			participants: []int64{alice, bob, carol},
			in:           Inputs{Amounts: map[int64]money.Amount{carol: 2000, alice: 3000}},
			want:         []Share{{alice, 3000}, {carol, 2000}},
		},
		{
			name:         "exact amounts that wrap around to the total",
			total:        "10.00",
			mode:         SplitTypeExact,
			participants: []int64{1, 2, 3, 4},
			in:           Inputs{Amounts: map[int64]money.Amount{1: 1 << 62, 2: 1 << 62, 3: 1 << 62, 4: 1<<62 + 1000}},
			wantErr:      validate.ErrAmountMismatch,
		},
		{
			name:         "exact within tolerance",
			total:        "50.00",
			mode:         SplitTypeExact,
			participants: []int64{alice, bob},
			in:           Inputs{Amounts: map[int64]money.Amount{alice: 2500, bob: 2497}},
			want:         []Share{{alice, 2500}, {bob, 2497}},
		},
		{
			name:         "exact sum short of total",
			total:        "50.00",
			mode:         SplitTypeExact,
			participants: []int64{alice, bob},
			in:           Inputs{Amounts: map[int64]money.Amount{alice: 2000, bob: 2000}},
			wantErr:      validate.ErrAmountMismatch,
		},
		{
			name:         "exact negative share",
			total:        "10.00",
			mode:         SplitTypeExact,
			participants: []int64{alice, bob},
			in:           Inputs{Amounts: map[int64]money.Amount{alice: 1500, bob: -500}},
			wantErr:      validate.ErrInvalidLedgerEntry,
		},
		{
			name:         "exact zero share is dropped",
			total:        "10.00",
			mode:         SplitTypeExact,
			participants: []int64{alice, bob},
			in:           Inputs{Amounts: map[int64]money.Amount{alice: 1000, bob: 0}},
			want:         []Share{{alice, 1000}},
		},
		{
			name:         "percentage halves of 99.99",
			total:        "99.99",
			mode:         SplitTypePercentage,
			participants: []int64{alice, bob},
			in:           Inputs{Percentages: map[int64]decimal.Decimal{alice: pct("50"), bob: pct("50")}},
			want:         []Share{{alice, 5000}, {bob, 5000}},
		},
		{
			name:         "percentage thirds of 100",
			total:        "100.00",
			mode:         SplitTypePercentage,
			participants: []int64{alice, bob, carol},
			in: Inputs{Percentages: map[int64]decimal.Decimal{
				alice: pct("33.33"), bob: pct("33.33"), carol: pct("33.34"),
			}},
			want: []Share{{alice, 3333}, {bob, 3333}, {carol, 3334}},
		},
		{
			name:         "percentage sum off by more than tolerance",
			total:        "100.00",
			mode:         SplitTypePercentage,
			participants: []int64{alice, bob},
			in:           Inputs{Percentages: map[int64]decimal.Decimal{alice: pct("50"), bob: pct("49.8")}},
			wantErr:      validate.ErrPercentageMismatch,
		},
		{
			name:         "percentage out of range",
			total:        "100.00",
			mode:         SplitTypePercentage,
			participants: []int64{alice, bob},
			in:           Inputs{Percentages: map[int64]decimal.Decimal{alice: pct("150"), bob: pct("-50")}},
			wantErr:      validate.ErrPercentageMismatch,
		},
		{
			name:         "percentage with zero share dropped",
			total:        "20.00",
			mode:         SplitTypePercentage,
			participants: []int64{alice, bob, carol},
			in:           Inputs{Percentages: map[int64]decimal.Decimal{alice: pct("0"), bob: pct("25"), carol: pct("75")}},
			want:         []Share{{bob, 500}, {carol, 1500}},
		},
		{
			name:         "non positive total",
			total:        "0",
			mode:         SplitTypeEqual,
			participants: []int64{alice},
			wantErr:      validate.ErrInvalidLedgerEntry,
		},
		{
			name:    "no participants",
			total:   "10.00",
			mode:    SplitTypeEqual,
			wantErr: validate.ErrInvalidLedgerEntry,
		},
		{
			name:         "duplicate participants",
			total:        "10.00",
			mode:         SplitTypeEqual,
			participants: []int64{alice, alice},
			wantErr:      validate.ErrInvalidLedgerEntry,
		},
		{
			name:         "unknown mode",
			total:        "10.00",
			mode:         SplitType("SHARES"),
			participants: []int64{alice},
			wantErr:      validate.ErrInvalidLedgerEntry,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := Compute(money.MustParse(tt.total), tt.mode, tt.participants, tt.in)
			if tt.wantErr != nil {
				require.ErrorIs(t, err, tt.wantErr)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestComputeSharesReconcileWithTotal(t *testing.T) {
	totals := []money.Amount{1, 7, 99, 100, 1001, 3333, 9999, 10000, 123457}
	groups := [][]int64{{1}, {1, 2}, {1, 2, 3}, {1, 2, 3, 4, 5, 6, 7}}

	for _, total := range totals {
		for _, participants := range groups {
			shares, err := Compute(total, SplitTypeEqual, participants, Inputs{})
			if err != nil {
				require.ErrorIs(t, err, validate.ErrInvalidLedgerEntry, "total %s", total)
				continue
			}
			diff := (money.Sum(Amounts(shares)...) - total).Abs()
			assert.LessOrEqual(t, diff, validate.AmountTolerance, "total %s over %d", total, len(participants))
		}
	}
}

func TestPercentageRemainderGoesToFirstParticipant(t *testing.T) {
	participants := make([]int64, 0, 30)
	percentages := make(map[int64]decimal.Decimal, 30)
	for i := int64(1); i <= 30; i++ {
		participants = append(participants, i)
		percentages[i] = pct("3.3")
	}
	percentages[30] = pct("4.3")

	shares, err := Compute(money.MustParse("1.00"), SplitTypePercentage, participants, Inputs{Percentages: percentages})
	require.NoError(t, err)

	// 3.3% of 1.00 rounds to 0.03 each, so 29*0.03 + 0.04 = 0.91; the first
	// participant absorbs the missing 0.09.
	require.Equal(t, int64(1), shares[0].UserID)
	assert.Equal(t, money.Amount(12), shares[0].Amount)
	assert.Equal(t, money.Amount(100), money.Sum(Amounts(shares)...))
}

func TestParseSplitType(t *testing.T) {
	for _, s := range []string{"EQUAL", "EXACT", "PERCENTAGE"} {
		got, err := ParseSplitType(s)
		require.NoError(t, err)
		assert.Equal(t, SplitType(s), got)
	}
	_, err := ParseSplitType("EVEN")
	assert.ErrorIs(t, err, validate.ErrInvalidLedgerEntry)
}

func TestFactoryCreate(t *testing.T) {
	f := NewSplitStrategyFactory()
	for _, mode := range []SplitType{SplitTypeEqual, SplitTypeExact, SplitTypePercentage} {
		s, err := f.Create(mode)
		require.NoError(t, err)
		assert.Equal(t, mode, s.Type())
	}
}
