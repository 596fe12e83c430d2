package expense

import (
	"time"

	"github.com/fkhayef/splitledger/internal/expense/split"
	"github.com/fkhayef/splitledger/internal/money"
)

// Expense represents an expense in the system
type Expense struct {
	ID          int64           `json:"id"`
	GroupID     *int64          `json:"group_id,omitempty"`
	PayerID     int64           `json:"payer_id"`
	CreatedByID int64           `json:"created_by_id"`
	Description string          `json:"description"`
	Amount      money.Amount    `json:"amount"`
	SplitType   split.SplitType `json:"split_type"`
	Date        time.Time       `json:"date"`
	ReceiptURL  *string         `json:"receipt_url,omitempty"`
	CreatedAt   time.Time       `json:"created_at"`
	UpdatedAt   time.Time       `json:"updated_at"`

	// Populated via JOIN
	PayerUsername string `json:"payer_username,omitempty"`

	Splits []*Split `json:"splits,omitempty"`
}

// Split is one participant's share of an expense. Splits only exist as
// children of an Expense and are replaced as a set whenever it is edited.
type Split struct {
	ExpenseID int64        `json:"expense_id"`
	UserID    int64        `json:"user_id"`
	Share     money.Amount `json:"share"`
	Position  int          `json:"position"`

	// Populated via JOIN
	Username string `json:"username,omitempty"`
}

// ShareOf returns userID's share, if they have one.
func (e *Expense) ShareOf(userID int64) (money.Amount, bool) {
	for _, s := range e.Splits {
		if s.UserID == userID {
			return s.Share, true
		}
	}
	return 0, false
}

// Involves reports whether userID paid for or shares in the expense.
func (e *Expense) Involves(userID int64) bool {
	if e.PayerID == userID {
		return true
	}
	_, ok := e.ShareOf(userID)
	return ok
}

// ParticipantIDs returns the split user ids in split order.
func (e *Expense) ParticipantIDs() []int64 {
	ids := make([]int64, len(e.Splits))
	for i, s := range e.Splits {
		ids[i] = s.UserID
	}
	return ids
}

// InGroup reports whether the expense belongs to groupID.
func (e *Expense) InGroup(groupID int64) bool {
	return e.GroupID != nil && *e.GroupID == groupID
}

// SplitsFromShares turns calculator output into split rows for expenseID.
func SplitsFromShares(expenseID int64, shares []split.Share) []*Split {
	splits := make([]*Split, len(shares))
	for i, s := range shares {
		splits[i] = &Split{
			ExpenseID: expenseID,
			UserID:    s.UserID,
			Share:     s.Amount,
			Position:  i,
		}
	}
	return splits
}
