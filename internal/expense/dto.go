package expense

import (
	"time"

	"github.com/fkhayef/splitledger/internal/expense/split"
	"github.com/fkhayef/splitledger/internal/money"
	"github.com/fkhayef/splitledger/internal/validate"
)

const dateLayout = "2006-01-02"

// CreateExpenseRequest represents the request to create an expense
type CreateExpenseRequest struct {
	GroupID      *int64       `json:"group_id,omitempty"`
	PayerID      *int64       `json:"payer_id,omitempty"`
	Description  string       `json:"description" validate:"required,min=1,max=255"`
	Amount       money.Amount `json:"amount" swaggertype:"string" example:"90.00"`
	SplitType    string       `json:"split_type" validate:"required,oneof=EQUAL PERCENTAGE EXACT"`
	Date         *string      `json:"date,omitempty" example:"2024-03-01"`
	ReceiptURL   *string      `json:"receipt_url,omitempty"`
	Participants []int64      `json:"participants,omitempty"`
	Split        split.Inputs `json:"split"`
}

// UpdateExpenseRequest represents the request to update an expense.
// Omitted fields keep their current value. Changing the amount, the split
// type or the split inputs recomputes every share.
type UpdateExpenseRequest struct {
	PayerID      *int64        `json:"payer_id,omitempty"`
	Description  *string       `json:"description,omitempty" validate:"omitempty,min=1,max=255"`
	Amount       *money.Amount `json:"amount,omitempty" swaggertype:"string"`
	SplitType    *string       `json:"split_type,omitempty"`
	Date         *string       `json:"date,omitempty"`
	ReceiptURL   *string       `json:"receipt_url,omitempty"`
	Participants []int64       `json:"participants,omitempty"`
	Split        *split.Inputs `json:"split,omitempty"`
}

// PreviewRequest asks for the shares an expense would produce without
// saving anything.
type PreviewRequest struct {
	Amount       money.Amount `json:"amount" swaggertype:"string" example:"100.00"`
	SplitType    string       `json:"split_type"`
	Participants []int64      `json:"participants"`
	Split        split.Inputs `json:"split"`
}

// ExpenseResponse represents the response for an expense
type ExpenseResponse struct {
	ID            int64            `json:"id"`
	GroupID       *int64           `json:"group_id,omitempty"`
	PayerID       int64            `json:"payer_id"`
	PayerUsername string           `json:"payer_username,omitempty"`
	CreatedByID   int64            `json:"created_by_id"`
	Description   string           `json:"description"`
	Amount        money.Amount     `json:"amount" swaggertype:"string"`
	SplitType     split.SplitType  `json:"split_type"`
	Date          string           `json:"date"`
	ReceiptURL    *string          `json:"receipt_url,omitempty"`
	CreatedAt     string           `json:"created_at"`
	UpdatedAt     string           `json:"updated_at"`
	Splits        []*SplitResponse `json:"splits"`
}

// SplitResponse represents the response for a split
type SplitResponse struct {
	UserID   int64        `json:"user_id"`
	Username string       `json:"username,omitempty"`
	Share    money.Amount `json:"share" swaggertype:"string"`
}

// ToResponse converts an Expense model to an ExpenseResponse DTO
func (e *Expense) ToResponse() *ExpenseResponse {
	resp := &ExpenseResponse{
		ID:            e.ID,
		GroupID:       e.GroupID,
		PayerID:       e.PayerID,
		PayerUsername: e.PayerUsername,
		CreatedByID:   e.CreatedByID,
		Description:   e.Description,
		Amount:        e.Amount,
		SplitType:     e.SplitType,
		Date:          e.Date.Format(dateLayout),
		ReceiptURL:    e.ReceiptURL,
		CreatedAt:     e.CreatedAt.Format("2006-01-02T15:04:05Z"),
		UpdatedAt:     e.UpdatedAt.Format("2006-01-02T15:04:05Z"),
		Splits:        make([]*SplitResponse, len(e.Splits)),
	}
	for i, s := range e.Splits {
		resp.Splits[i] = s.ToResponse()
	}
	return resp
}

// ToResponse converts a Split model to a SplitResponse DTO
func (s *Split) ToResponse() *SplitResponse {
	return &SplitResponse{
		UserID:   s.UserID,
		Username: s.Username,
		Share:    s.Share,
	}
}

// parseDate reads an optional YYYY-MM-DD date, defaulting to today (UTC).
func parseDate(s *string) (time.Time, error) {
	if s == nil || *s == "" {
		return time.Now().UTC().Truncate(24 * time.Hour), nil
	}
	d, err := time.Parse(dateLayout, *s)
	if err != nil {
		return time.Time{}, validate.Errorf(validate.ErrInvalidLedgerEntry, "date %q is not YYYY-MM-DD", *s)
	}
	return d, nil
}
