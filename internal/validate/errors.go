package validate

import (
	"errors"
	"fmt"
)

// Validation failures. All of them are detected before anything is
// persisted; callers match them with errors.Is.
var (
	ErrAmountMismatch     = errors.New("split amounts do not add up to the expense total")
	ErrPercentageMismatch = errors.New("split percentages do not add up to 100")
	ErrInvalidLedgerEntry = errors.New("invalid ledger entry")
	ErrInvalidSettlement  = errors.New("invalid settlement")
)

// Errorf wraps kind with a formatted detail message.
func Errorf(kind error, format string, args ...any) error {
	return fmt.Errorf("%w: %s", kind, fmt.Sprintf(format, args...))
}

// IsValidation reports whether err is one of the validation failures above.
func IsValidation(err error) bool {
	return Code(err) != ""
}

// Code returns the stable API code for a validation failure, or "" when err
// is not one.
func Code(err error) string {
	switch {
	case err == nil:
		return ""
	case errors.Is(err, ErrAmountMismatch):
		return "AMOUNT_MISMATCH"
	case errors.Is(err, ErrPercentageMismatch):
		return "PERCENTAGE_MISMATCH"
	case errors.Is(err, ErrInvalidSettlement):
		return "INVALID_SETTLEMENT"
	case errors.Is(err, ErrInvalidLedgerEntry):
		return "INVALID_LEDGER_ENTRY"
	default:
		return ""
	}
}
