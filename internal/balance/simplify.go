package balance

import (
	"sort"

	"github.com/fkhayef/splitledger/internal/expense"
	"github.com/fkhayef/splitledger/internal/money"
	"github.com/fkhayef/splitledger/internal/settlement"
)

// Transfer is a suggested payment that moves a group towards settled.
type Transfer struct {
	From   int64        `json:"from_user_id"`
	To     int64        `json:"to_user_id"`
	Amount money.Amount `json:"amount"`
}

// NetPositions returns every user's net position across the snapshot:
// positive means the group owes them, negative means they owe the group.
// For any user u it equals Compute(u, ...).Total() over the rows involving u,
// and the positions always sum to zero.
func NetPositions(expenses []*expense.Expense, settlements []*settlement.Settlement, opts ...Option) (Balances, error) {
	var o options
	for _, opt := range opts {
		opt(&o)
	}

	net := make(Balances)
	for _, e := range expenses {
		if err := checkExpense(e, o.members); err != nil {
			return nil, err
		}
		if _, ok := net[e.PayerID]; !ok {
			net[e.PayerID] = 0
		}
		for _, s := range e.Splits {
			if s.UserID == e.PayerID {
				continue
			}
			net[e.PayerID] += s.Share
			net[s.UserID] -= s.Share
		}
	}

	for _, s := range settlements {
		if err := checkSettlement(s, o.members); err != nil {
			return nil, err
		}
		net[s.PayerID] += s.Amount
		net[s.PayeeID] -= s.Amount
	}
	return net, nil
}

// Simplify pairs debtors with creditors greedily, largest first, and returns
// the payments that would bring every position to zero. Ties are broken by
// user id so the result is stable.
func Simplify(net Balances) []Transfer {
	var debtors, creditors []Entry
	for id, v := range net {
		switch {
		case v < 0:
			debtors = append(debtors, Entry{UserID: id, Amount: -v})
		case v > 0:
			creditors = append(creditors, Entry{UserID: id, Amount: v})
		}
	}
	sortEntries(debtors)
	sortEntries(creditors)

	var transfers []Transfer
	i, j := 0, 0
	for i < len(debtors) && j < len(creditors) {
		amount := min(debtors[i].Amount, creditors[j].Amount)
		transfers = append(transfers, Transfer{
			From:   debtors[i].UserID,
			To:     creditors[j].UserID,
			Amount: amount,
		})

		debtors[i].Amount -= amount
		creditors[j].Amount -= amount
		if debtors[i].Amount == 0 {
			i++
		}
		if creditors[j].Amount == 0 {
			j++
		}
	}

	sort.SliceStable(transfers, func(a, b int) bool {
		return transfers[a].Amount > transfers[b].Amount
	})
	return transfers
}
