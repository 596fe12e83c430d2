// Package balance turns a snapshot of expenses and settlements into signed
// balances between people.
//
// Sign convention: a positive amount means the counterparty owes the viewer,
// a negative amount means the viewer owes the counterparty.
//
// Nothing here is stored. Every call recomputes from its inputs, so callers
// may run it concurrently and twice on the same snapshot get the same answer.
package balance

import (
	"fmt"
	"sort"

	"github.com/fkhayef/splitledger/internal/expense"
	"github.com/fkhayef/splitledger/internal/money"
	"github.com/fkhayef/splitledger/internal/settlement"
	"github.com/fkhayef/splitledger/internal/validate"
)

// Balances maps a user id to a signed amount.
type Balances map[int64]money.Amount

// Entry is one counterparty's balance.
type Entry struct {
	UserID int64        `json:"user_id"`
	Amount money.Amount `json:"amount"`
}

// Get returns the balance for userID, zero when absent.
func (b Balances) Get(userID int64) money.Amount {
	return b[userID]
}

// Total is the sum of every balance, settled ones included.
func (b Balances) Total() money.Amount {
	var total money.Amount
	for _, v := range b {
		total += v
	}
	return total
}

// Owing lists the balances that are not settled, largest magnitude first.
// Ties are ordered by user id.
func (b Balances) Owing() []Entry {
	entries := make([]Entry, 0, len(b))
	for id, v := range b {
		if validate.IsSettled(v) {
			continue
		}
		entries = append(entries, Entry{UserID: id, Amount: v})
	}
	sortEntries(entries)
	return entries
}

func sortEntries(entries []Entry) {
	sort.Slice(entries, func(i, j int) bool {
		ai, aj := entries[i].Amount.Abs(), entries[j].Amount.Abs()
		if ai != aj {
			return ai > aj
		}
		return entries[i].UserID < entries[j].UserID
	})
}

type options struct {
	members map[int64]bool
}

// Option configures a computation.
type Option func(*options)

// WithMembers restricts every payer, participant and settlement party to
// the given users. Anyone else makes the snapshot invalid.
func WithMembers(ids []int64) Option {
	return func(o *options) {
		o.members = make(map[int64]bool, len(ids))
		for _, id := range ids {
			o.members[id] = true
		}
	}
}

// Compute returns viewerID's balance with every counterparty in the
// snapshot.
//
// Every expense and settlement must involve the viewer; filtering the
// snapshot down to those rows is the caller's job. Malformed rows fail the
// whole computation with validate.ErrInvalidLedgerEntry.
func Compute(viewerID int64, expenses []*expense.Expense, settlements []*settlement.Settlement, opts ...Option) (Balances, error) {
	var o options
	for _, opt := range opts {
		opt(&o)
	}

	balances := make(Balances)

	for _, e := range expenses {
		if err := checkExpense(e, o.members); err != nil {
			return nil, err
		}

		if e.PayerID == viewerID {
			for _, s := range e.Splits {
				if s.UserID == viewerID {
					continue
				}
				balances[s.UserID] += s.Share
			}
			continue
		}

		share, ok := e.ShareOf(viewerID)
		if !ok {
			return nil, validate.Errorf(validate.ErrInvalidLedgerEntry,
				"expense %d does not involve user %d", e.ID, viewerID)
		}
		balances[e.PayerID] -= share
	}

	for _, s := range settlements {
		if err := checkSettlement(s, o.members); err != nil {
			return nil, err
		}

		switch viewerID {
		case s.PayerID:
			balances[s.PayeeID] += s.Amount
		case s.PayeeID:
			balances[s.PayerID] -= s.Amount
		default:
			return nil, validate.Errorf(validate.ErrInvalidLedgerEntry,
				"settlement %d does not involve user %d", s.ID, viewerID)
		}
	}

	return balances, nil
}

func checkExpense(e *expense.Expense, members map[int64]bool) error {
	if e == nil {
		return validate.Errorf(validate.ErrInvalidLedgerEntry, "nil expense")
	}
	if !validate.IsPositiveAmount(e.Amount) {
		return validate.Errorf(validate.ErrInvalidLedgerEntry,
			"expense %d has non-positive amount %s", e.ID, e.Amount)
	}
	if members != nil && !members[e.PayerID] {
		return validate.Errorf(validate.ErrInvalidLedgerEntry,
			"expense %d payer %d is not a member", e.ID, e.PayerID)
	}

	seen := make(map[int64]bool, len(e.Splits))
	shares := make([]money.Amount, 0, len(e.Splits))
	for _, s := range e.Splits {
		if s.Share < 0 {
			return validate.Errorf(validate.ErrInvalidLedgerEntry,
				"expense %d has negative share %s for user %d", e.ID, s.Share, s.UserID)
		}
		if seen[s.UserID] {
			return validate.Errorf(validate.ErrInvalidLedgerEntry,
				"expense %d splits user %d twice", e.ID, s.UserID)
		}
		if members != nil && !members[s.UserID] {
			return validate.Errorf(validate.ErrInvalidLedgerEntry,
				"expense %d participant %d is not a member", e.ID, s.UserID)
		}
		seen[s.UserID] = true
		shares = append(shares, s.Share)
	}

	if !validate.AmountsReconcile(e.Amount, shares) {
		return validate.Errorf(validate.ErrInvalidLedgerEntry,
			"expense %d splits sum to %s, amount is %s", e.ID, money.Sum(shares...), e.Amount)
	}
	return nil
}

func checkSettlement(s *settlement.Settlement, members map[int64]bool) error {
	if s == nil {
		return validate.Errorf(validate.ErrInvalidLedgerEntry, "nil settlement")
	}
	if err := validate.Settlement(s.PayerID, s.PayeeID, s.Amount); err != nil {
		return fmt.Errorf("%w: settlement %d: %v", validate.ErrInvalidLedgerEntry, s.ID, err)
	}
	if members != nil && (!members[s.PayerID] || !members[s.PayeeID]) {
		return validate.Errorf(validate.ErrInvalidLedgerEntry,
			"settlement %d is between non-members", s.ID)
	}
	return nil
}
