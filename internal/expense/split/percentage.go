package split

import (
	"github.com/shopspring/decimal"

	"github.com/fkhayef/splitledger/internal/money"
	"github.com/fkhayef/splitledger/internal/validate"
)

// =============================================================================
// PERCENTAGE SPLIT STRATEGY
// Divides the expense based on each participant's percentage
// =============================================================================

// PercentageStrategy implements the Strategy interface for percentage-based splits
type PercentageStrategy struct{}

// Type returns the split type identifier
func (s *PercentageStrategy) Type() SplitType {
	return SplitTypePercentage
}

// Validate checks every percentage is in range and that they add up to 100.
func (s *PercentageStrategy) Validate(total money.Amount, participants []int64, in Inputs) error {
	if len(in.Percentages) == 0 {
		return validate.Errorf(validate.ErrPercentageMismatch, "percentage split needs at least one percentage")
	}

	pcts := make([]decimal.Decimal, 0, len(in.Percentages))
	for id, p := range in.Percentages {
		if !validate.IsPercentageInRange(p) {
			return validate.Errorf(validate.ErrPercentageMismatch, "percentage for user %d must be between 0 and 100, got %s", id, p)
		}
		pcts = append(pcts, p)
	}

	if !validate.PercentagesReconcile(pcts) {
		return validate.Errorf(validate.ErrPercentageMismatch, "percentages sum to %s", decimal.Sum(decimal.Zero, pcts...))
	}
	return nil
}

// Calculate converts each percentage to round(total * pct / 100). When the
// rounded shares miss the total by more than AmountTolerance, the whole
// signed difference goes to the first participant holding a percentage.
func (s *PercentageStrategy) Calculate(total money.Amount, participants []int64, in Inputs) ([]Share, error) {
	hundred := decimal.NewFromInt(100)

	shares := make([]Share, 0, len(in.Percentages))
	for _, id := range participants {
		p, ok := in.Percentages[id]
		if !ok {
			continue
		}
		amount := money.FromDecimal(total.Decimal().Mul(p).Div(hundred))
		shares = append(shares, Share{UserID: id, Amount: amount})
	}

	if len(shares) > 0 && !validate.AmountsReconcile(total, Amounts(shares)) {
		shares[0].Amount += total - money.Sum(Amounts(shares)...)
	}
	return shares, nil
}
