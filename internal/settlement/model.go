package settlement

import (
	"time"

	"github.com/fkhayef/splitledger/internal/money"
)

// Settlement is a direct payment from PayerID to PayeeID that reduces what
// the payer owed. Settlements are never edited, only created or deleted.
type Settlement struct {
	ID          int64        `json:"id"`
	GroupID     *int64       `json:"group_id,omitempty"`
	PayerID     int64        `json:"payer_id"`
	PayeeID     int64        `json:"payee_id"`
	Amount      money.Amount `json:"amount"`
	Note        *string      `json:"note,omitempty"`
	Date        time.Time    `json:"date"`
	CreatedByID int64        `json:"created_by_id"`
	CreatedAt   time.Time    `json:"created_at"`

	// Populated via JOIN
	PayerUsername string `json:"payer_username,omitempty"`
	PayeeUsername string `json:"payee_username,omitempty"`
}

// Involves reports whether userID is the payer or the payee.
func (s *Settlement) Involves(userID int64) bool {
	return s.PayerID == userID || s.PayeeID == userID
}

// Between reports whether the settlement was made between a and b, in
// either direction.
func (s *Settlement) Between(a, b int64) bool {
	return (s.PayerID == a && s.PayeeID == b) || (s.PayerID == b && s.PayeeID == a)
}

// InGroup reports whether the settlement was recorded in groupID.
func (s *Settlement) InGroup(groupID int64) bool {
	return s.GroupID != nil && *s.GroupID == groupID
}
