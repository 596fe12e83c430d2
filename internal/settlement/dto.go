package settlement

import (
	"time"

	"github.com/fkhayef/splitledger/internal/money"
	"github.com/fkhayef/splitledger/internal/validate"
)

const dateLayout = "2006-01-02"

// CreateSettlementRequest represents the request to record a payment.
// PayerID defaults to the caller. Without an amount the payer settles
// everything they currently owe the payee.
type CreateSettlementRequest struct {
	GroupID *int64        `json:"group_id,omitempty"`
	PayerID *int64        `json:"payer_id,omitempty"`
	PayeeID int64         `json:"payee_id" validate:"required"`
	Amount  *money.Amount `json:"amount,omitempty" swaggertype:"string" example:"25.00"`
	Note    *string       `json:"note,omitempty"`
	Date    *string       `json:"date,omitempty" example:"2024-03-01"`
}

// SettlementResponse represents the response for a settlement
type SettlementResponse struct {
	ID            int64        `json:"id"`
	GroupID       *int64       `json:"group_id,omitempty"`
	PayerID       int64        `json:"payer_id"`
	PayerUsername string       `json:"payer_username,omitempty"`
	PayeeID       int64        `json:"payee_id"`
	PayeeUsername string       `json:"payee_username,omitempty"`
	Amount        money.Amount `json:"amount" swaggertype:"string"`
	Note          *string      `json:"note,omitempty"`
	Date          string       `json:"date"`
	CreatedByID   int64        `json:"created_by_id"`
	CreatedAt     string       `json:"created_at"`
}

// ToResponse converts a Settlement model to a SettlementResponse DTO
func (s *Settlement) ToResponse() *SettlementResponse {
	return &SettlementResponse{
		ID:            s.ID,
		GroupID:       s.GroupID,
		PayerID:       s.PayerID,
		PayerUsername: s.PayerUsername,
		PayeeID:       s.PayeeID,
		PayeeUsername: s.PayeeUsername,
		Amount:        s.Amount,
		Note:          s.Note,
		Date:          s.Date.Format(dateLayout),
		CreatedByID:   s.CreatedByID,
		CreatedAt:     s.CreatedAt.Format("2006-01-02T15:04:05Z"),
	}
}

func parseDate(s *string) (time.Time, error) {
	if s == nil || *s == "" {
		return time.Now().UTC().Truncate(24 * time.Hour), nil
	}
	d, err := time.Parse(dateLayout, *s)
	if err != nil {
		return time.Time{}, validate.Errorf(validate.ErrInvalidSettlement, "date %q is not YYYY-MM-DD", *s)
	}
	return d, nil
}
