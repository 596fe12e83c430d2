// Package feed carries "balances are stale" messages from ledger mutations
// to whoever holds computed balances.
//
// A message names the smallest set of scopes a change can affect: the
// groups it touched and the pairs of users whose mutual balance moved. A
// consumer invalidates exactly those scopes instead of everything.
package feed

import (
	"cmp"
	"encoding/json"
	"fmt"
	"slices"
	"time"

	"github.com/google/uuid"
)

// Kind names the mutation that produced an invalidation.
type Kind string

const (
	KindExpenseCreated    Kind = "expense.created"
	KindExpenseUpdated    Kind = "expense.updated"
	KindExpenseDeleted    Kind = "expense.deleted"
	KindSettlementCreated Kind = "settlement.created"
	KindSettlementDeleted Kind = "settlement.deleted"
	KindMembersChanged    Kind = "group.members_changed"
	KindGroupDeleted      Kind = "group.deleted"
)

// Pair is an unordered pair of users, stored low id first.
type Pair [2]int64

// NewPair returns the normalized pair for a and b.
func NewPair(a, b int64) Pair {
	if a > b {
		a, b = b, a
	}
	return Pair{a, b}
}

// Has reports whether userID is one side of the pair.
func (p Pair) Has(userID int64) bool {
	return p[0] == userID || p[1] == userID
}

// Invalidation says that balances for the listed groups and pairs are stale.
type Invalidation struct {
	ID         uuid.UUID `json:"id"`
	Kind       Kind      `json:"kind"`
	GroupIDs   []int64   `json:"group_ids,omitempty"`
	Pairs      []Pair    `json:"pairs"`
	OccurredAt time.Time `json:"occurred_at"`
}

// NewInvalidation builds a message with a fresh id. Duplicate groups and
// pairs are collapsed, self pairs are dropped.
func NewInvalidation(kind Kind, groupIDs []int64, pairs []Pair) Invalidation {
	return Invalidation{
		ID:         uuid.New(),
		Kind:       kind,
		GroupIDs:   compactIDs(groupIDs),
		Pairs:      compactPairs(pairs),
		OccurredAt: time.Now().UTC(),
	}
}

// ExpensePairs returns the pairs whose balance an expense moves: the payer
// with every other participant.
func ExpensePairs(payerID int64, participants []int64) []Pair {
	pairs := make([]Pair, 0, len(participants))
	for _, id := range participants {
		if id == payerID {
			continue
		}
		pairs = append(pairs, NewPair(payerID, id))
	}
	return pairs
}

// TouchesGroup reports whether groupID is listed.
func (inv Invalidation) TouchesGroup(groupID int64) bool {
	return slices.Contains(inv.GroupIDs, groupID)
}

// TouchesPair reports whether the balance between a and b may have moved.
func (inv Invalidation) TouchesPair(a, b int64) bool {
	return slices.Contains(inv.Pairs, NewPair(a, b))
}

// TouchesUser reports whether any of userID's pairwise balances may have
// moved.
func (inv Invalidation) TouchesUser(userID int64) bool {
	for _, p := range inv.Pairs {
		if p.Has(userID) {
			return true
		}
	}
	return false
}

// Users returns every user named in a pair, ascending.
func (inv Invalidation) Users() []int64 {
	ids := make([]int64, 0, 2*len(inv.Pairs))
	for _, p := range inv.Pairs {
		ids = append(ids, p[0], p[1])
	}
	return compactIDs(ids)
}

// Encode serializes the message for transport.
func (inv Invalidation) Encode() ([]byte, error) {
	return json.Marshal(inv)
}

// Decode parses a message produced by Encode.
func Decode(data []byte) (Invalidation, error) {
	var inv Invalidation
	if err := json.Unmarshal(data, &inv); err != nil {
		return Invalidation{}, fmt.Errorf("decode invalidation: %w", err)
	}
	if inv.ID == uuid.Nil {
		return Invalidation{}, fmt.Errorf("decode invalidation: missing id")
	}
	inv.Pairs = compactPairs(inv.Pairs)
	return inv, nil
}

func compactIDs(ids []int64) []int64 {
	out := slices.Clone(ids)
	slices.Sort(out)
	return slices.Compact(out)
}

func compactPairs(pairs []Pair) []Pair {
	out := make([]Pair, 0, len(pairs))
	for _, p := range pairs {
		if p[0] == p[1] {
			continue
		}
		out = append(out, NewPair(p[0], p[1]))
	}
	slices.SortFunc(out, func(a, b Pair) int {
		if a[0] != b[0] {
			return cmp.Compare(a[0], b[0])
		}
		return cmp.Compare(a[1], b[1])
	})
	return slices.Compact(out)
}
