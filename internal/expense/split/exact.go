package split

import (
	"github.com/fkhayef/splitledger/internal/money"
	"github.com/fkhayef/splitledger/internal/validate"
)

// =============================================================================
// EXACT SPLIT STRATEGY
// Each participant owes a specific amount; the amounts must add up to the total
// =============================================================================

// ExactStrategy implements the Strategy interface for exact amount splits
type ExactStrategy struct{}

// Type returns the split type identifier
func (s *ExactStrategy) Type() SplitType {
	return SplitTypeExact
}

// Validate checks the entered amounts are non-negative and reconcile with
// the total.
func (s *ExactStrategy) Validate(total money.Amount, participants []int64, in Inputs) error {
	if len(in.Amounts) == 0 {
		return validate.Errorf(validate.ErrInvalidLedgerEntry, "exact split needs at least one amount")
	}

	parts := make([]money.Amount, 0, len(in.Amounts))
	for id, amount := range in.Amounts {
		if amount < 0 {
			return validate.Errorf(validate.ErrInvalidLedgerEntry, "amount for user %d cannot be negative", id)
		}
		parts = append(parts, amount)
	}

	if !validate.AmountsReconcile(total, parts) {
		return validate.Errorf(validate.ErrAmountMismatch,
			"amounts sum to %s, expense total is %s", money.Sum(parts...), total)
	}
	return nil
}

// Calculate returns the entered amounts in participant order.
func (s *ExactStrategy) Calculate(total money.Amount, participants []int64, in Inputs) ([]Share, error) {
	shares := make([]Share, 0, len(in.Amounts))
	for _, id := range participants {
		if amount, ok := in.Amounts[id]; ok {
			shares = append(shares, Share{UserID: id, Amount: amount})
		}
	}
	return shares, nil
}
