package split

import (
	"fmt"

	"github.com/shopspring/decimal"

	"github.com/fkhayef/splitledger/internal/money"
	"github.com/fkhayef/splitledger/internal/validate"
)

// SplitType defines how an expense total is divided among participants.
type SplitType string

const (
	SplitTypeEqual      SplitType = "EQUAL"
	SplitTypeExact      SplitType = "EXACT"
	SplitTypePercentage SplitType = "PERCENTAGE"
)

// ParseSplitType validates a split type coming from an API request.
func ParseSplitType(s string) (SplitType, error) {
	switch t := SplitType(s); t {
	case SplitTypeEqual, SplitTypeExact, SplitTypePercentage:
		return t, nil
	default:
		return "", fmt.Errorf("%w: unknown split type %q", validate.ErrInvalidLedgerEntry, s)
	}
}

// Inputs carries the mode-specific data for a split. Only the field that
// matches the split type is read.
type Inputs struct {
	// Involved is the subset of participants sharing an EQUAL split.
	// Empty means every participant.
	Involved []int64 `json:"involved,omitempty"`

	// Amounts maps user id to the exact share for an EXACT split.
	Amounts map[int64]money.Amount `json:"amounts,omitempty"`

	// Percentages maps user id to a 0-100 percentage for a PERCENTAGE split.
	Percentages map[int64]decimal.Decimal `json:"percentages,omitempty"`
}

// Share is one participant's computed portion of an expense.
type Share struct {
	UserID int64        `json:"user_id"`
	Amount money.Amount `json:"amount"`
}

// Strategy is the interface that all split strategies implement.
type Strategy interface {
	// Type returns the type identifier for this strategy.
	Type() SplitType

	// Validate checks the mode-specific inputs against the total.
	Validate(total money.Amount, participants []int64, in Inputs) error

	// Calculate returns one share per involved participant, in participant
	// order. Zero shares may be present; Compute drops them.
	Calculate(total money.Amount, participants []int64, in Inputs) ([]Share, error)
}

// Factory creates split strategies based on the requested type.
type Factory struct{}

// NewSplitStrategyFactory creates a new factory instance.
func NewSplitStrategyFactory() *Factory {
	return &Factory{}
}

// Create returns the strategy implementation for splitType.
func (f *Factory) Create(splitType SplitType) (Strategy, error) {
	switch splitType {
	case SplitTypeEqual:
		return &EqualStrategy{}, nil
	case SplitTypeExact:
		return &ExactStrategy{}, nil
	case SplitTypePercentage:
		return &PercentageStrategy{}, nil
	default:
		return nil, fmt.Errorf("%w: unknown split type %q", validate.ErrInvalidLedgerEntry, splitType)
	}
}

// Compute turns an expense total into the validated list of shares.
//
// participants is the ordered list of users eligible for the split; its
// order is the order of the result and decides who absorbs a percentage
// rounding remainder. Shares of zero are dropped.
func (f *Factory) Compute(total money.Amount, mode SplitType, participants []int64, in Inputs) ([]Share, error) {
	strategy, err := f.Create(mode)
	if err != nil {
		return nil, err
	}
	if err := checkCommon(total, participants, in); err != nil {
		return nil, err
	}
	if err := strategy.Validate(total, participants, in); err != nil {
		return nil, err
	}

	shares, err := strategy.Calculate(total, participants, in)
	if err != nil {
		return nil, err
	}

	out := shares[:0]
	for _, s := range shares {
		if s.Amount < 0 {
			return nil, validate.Errorf(validate.ErrAmountMismatch, "share for user %d would be negative", s.UserID)
		}
		if s.Amount != 0 {
			out = append(out, s)
		}
	}
	if len(out) == 0 {
		return nil, validate.Errorf(validate.ErrInvalidLedgerEntry, "split leaves nobody owing anything")
	}
	if !validate.AmountsReconcile(total, Amounts(out)) {
		return nil, validate.Errorf(validate.ErrAmountMismatch,
			"shares sum to %s, expense total is %s", money.Sum(Amounts(out)...), total)
	}
	return out, nil
}

// Compute is a convenience wrapper around a zero-value Factory.
func Compute(total money.Amount, mode SplitType, participants []int64, in Inputs) ([]Share, error) {
	return (&Factory{}).Compute(total, mode, participants, in)
}

// Amounts extracts the share amounts in order.
func Amounts(shares []Share) []money.Amount {
	out := make([]money.Amount, len(shares))
	for i, s := range shares {
		out[i] = s.Amount
	}
	return out
}

func checkCommon(total money.Amount, participants []int64, in Inputs) error {
	if !validate.IsPositiveAmount(total) {
		return validate.Errorf(validate.ErrInvalidLedgerEntry, "total must be positive, got %s", total)
	}
	if len(participants) == 0 {
		return validate.Errorf(validate.ErrInvalidLedgerEntry, "at least one participant is required")
	}

	eligible := make(map[int64]bool, len(participants))
	for _, id := range participants {
		if eligible[id] {
			return validate.Errorf(validate.ErrInvalidLedgerEntry, "participant %d listed twice", id)
		}
		eligible[id] = true
	}

	for _, id := range in.Involved {
		if !eligible[id] {
			return validate.Errorf(validate.ErrInvalidLedgerEntry, "user %d is not a participant", id)
		}
	}
	for id := range in.Amounts {
		if !eligible[id] {
			return validate.Errorf(validate.ErrInvalidLedgerEntry, "user %d is not a participant", id)
		}
	}
	for id := range in.Percentages {
		if !eligible[id] {
			return validate.Errorf(validate.ErrInvalidLedgerEntry, "user %d is not a participant", id)
		}
	}
	return nil
}
