package ledger

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/fkhayef/splitledger/internal/feed"
)

func TestScopeAffectedBy(t *testing.T) {
	groupExpense := feed.NewInvalidation(feed.KindExpenseCreated, []int64{10}, feed.ExpensePairs(1, []int64{1, 2, 3}))
	personalSettlement := feed.NewInvalidation(feed.KindSettlementCreated, nil, []feed.Pair{feed.NewPair(4, 5)})
	membersChanged := feed.NewInvalidation(feed.KindMembersChanged, []int64{20}, nil)
	groupDeleted := feed.NewInvalidation(feed.KindGroupDeleted, []int64{30}, []feed.Pair{feed.NewPair(7, 6)})

	tests := []struct {
		name  string
		scope Scope
		inv   feed.Invalidation
		want  bool
	}{
		{"group listed", GroupScope(2, 10), groupExpense, true},
		{"other group", GroupScope(2, 20), groupExpense, false},
		{"friend pair moved", FriendScope(3, 1), groupExpense, true},
		{"friend pair untouched", FriendScope(2, 3), groupExpense, false},
		{"global viewer in a pair", GlobalScope(2), groupExpense, true},
		{"global viewer absent", GlobalScope(4), groupExpense, false},
		{"non-group settlement leaves groups alone", GroupScope(4, 10), personalSettlement, false},
		{"membership change hits the group", GroupScope(4, 20), membersChanged, true},
		{"membership change leaves friends alone", FriendScope(4, 5), membersChanged, false},
		{"deleted group hits its pairs", FriendScope(6, 7), groupDeleted, true},
		{"deleted group hits global totals", GlobalScope(7), groupDeleted, true},
		{"deleted group leaves other pairs", FriendScope(6, 8), groupDeleted, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.scope.AffectedBy(tt.inv))
		})
	}
}

func TestScopeKey(t *testing.T) {
	assert.Equal(t, "group:10:viewer:2", GroupScope(2, 10).Key())
	assert.Equal(t, "friend:3:viewer:1", FriendScope(1, 3).Key())
	assert.Equal(t, "global:viewer:7", GlobalScope(7).Key())
}
