package split

import (
	"github.com/shopspring/decimal"

	"github.com/fkhayef/splitledger/internal/money"
	"github.com/fkhayef/splitledger/internal/validate"
)

// EqualStrategy divides the total evenly among the involved participants.
//
// Each share is rounded to the cent on its own and the remainder is left
// where it falls, so the shares may differ from the total by a few cents.
// Compute still rejects a result outside AmountTolerance.
type EqualStrategy struct{}

// Type returns the split type identifier
func (s *EqualStrategy) Type() SplitType {
	return SplitTypeEqual
}

// Validate checks the involved subset has no duplicates.
func (s *EqualStrategy) Validate(total money.Amount, participants []int64, in Inputs) error {
	seen := make(map[int64]bool, len(in.Involved))
	for _, id := range in.Involved {
		if seen[id] {
			return validate.Errorf(validate.ErrInvalidLedgerEntry, "user %d involved twice", id)
		}
		seen[id] = true
	}
	return nil
}

// Calculate gives every involved participant round(total / n).
func (s *EqualStrategy) Calculate(total money.Amount, participants []int64, in Inputs) ([]Share, error) {
	involved := involvedInOrder(participants, in.Involved)
	if len(involved) == 0 {
		return nil, validate.Errorf(validate.ErrInvalidLedgerEntry, "no participants involved")
	}

	share := money.FromDecimal(total.Decimal().Div(decimal.NewFromInt(int64(len(involved)))))

	shares := make([]Share, len(involved))
	for i, id := range involved {
		shares[i] = Share{UserID: id, Amount: share}
	}
	return shares, nil
}

// involvedInOrder returns the involved users following participant order.
func involvedInOrder(participants, involved []int64) []int64 {
	if len(involved) == 0 {
		return participants
	}
	want := make(map[int64]bool, len(involved))
	for _, id := range involved {
		want[id] = true
	}
	out := make([]int64, 0, len(involved))
	for _, id := range participants {
		if want[id] {
			out = append(out, id)
		}
	}
	return out
}
