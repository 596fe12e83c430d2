// Package validate holds the ledger's consistency predicates and the
// tolerance constants they use. Split calculation, the balance engine and
// every mutation entry point go through these helpers instead of carrying
// their own epsilon checks.
package validate

import (
	"github.com/shopspring/decimal"

	"github.com/fkhayef/splitledger/internal/money"
)

// AmountTolerance is the largest difference (0.05) allowed between an
// expense total and the sum of its shares.
const AmountTolerance money.Amount = 5

// SettledThreshold is the magnitude (0.01) at or below which a balance is
// shown as settled. Settled entries still count towards totals.
const SettledThreshold money.Amount = 1

// PercentTolerance is the largest difference allowed between the sum of
// split percentages and 100.
var PercentTolerance = decimal.New(1, -1)

var hundredPercent = decimal.NewFromInt(100)

// AmountsReconcile reports whether parts add up to total within
// AmountTolerance.
func AmountsReconcile(total money.Amount, parts []money.Amount) bool {
	return AmountsReconcileWithin(total, parts, AmountTolerance)
}

// AmountsReconcileWithin reports whether parts add up to total within
// epsilon. Parts whose sum overflows never reconcile.
func AmountsReconcileWithin(total money.Amount, parts []money.Amount, epsilon money.Amount) bool {
	sum, err := money.CheckedSum(parts...)
	if err != nil {
		return false
	}
	diff, err := money.CheckedSum(sum, total.Neg())
	if err != nil {
		return false
	}
	return diff >= -epsilon && diff <= epsilon
}

// PercentagesReconcile reports whether pcts add up to 100 within
// PercentTolerance.
func PercentagesReconcile(pcts []decimal.Decimal) bool {
	return PercentagesReconcileWithin(pcts, PercentTolerance)
}

// PercentagesReconcileWithin reports whether pcts add up to 100 within epsilon.
func PercentagesReconcileWithin(pcts []decimal.Decimal, epsilon decimal.Decimal) bool {
	sum := decimal.Zero
	for _, p := range pcts {
		sum = sum.Add(p)
	}
	return sum.Sub(hundredPercent).Abs().LessThanOrEqual(epsilon)
}

// IsPercentageInRange reports whether p lies in [0, 100].
func IsPercentageInRange(p decimal.Decimal) bool {
	return !p.IsNegative() && p.LessThanOrEqual(hundredPercent)
}

// IsPositiveAmount reports whether x is strictly greater than zero.
func IsPositiveAmount(x money.Amount) bool {
	return x > 0
}

// IsDistinctParties reports whether a payment goes between two different users.
func IsDistinctParties(payerID, payeeID int64) bool {
	return payerID != payeeID
}

// IsSettled reports whether a balance is small enough to be shown as settled.
func IsSettled(x money.Amount) bool {
	return x.Abs() <= SettledThreshold
}

// Settlement checks the invariants every settlement must hold.
func Settlement(payerID, payeeID int64, amount money.Amount) error {
	if !IsDistinctParties(payerID, payeeID) {
		return Errorf(ErrInvalidSettlement, "user %d cannot settle with themselves", payerID)
	}
	if !IsPositiveAmount(amount) {
		return Errorf(ErrInvalidSettlement, "amount must be positive, got %s", amount)
	}
	return nil
}
