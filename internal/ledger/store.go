package ledger

import (
	"context"
	"fmt"

	"github.com/fkhayef/splitledger/internal/expense"
	"github.com/fkhayef/splitledger/internal/settlement"
)

// Store is the read side of the ledger.
type Store interface {
	FetchExpenses(ctx context.Context, scope Scope) ([]*expense.Expense, error)
	FetchSettlements(ctx context.Context, scope Scope) ([]*settlement.Settlement, error)
	// FetchMembership returns everyone who may appear in the group's
	// history, including members who have since left.
	FetchMembership(ctx context.Context, groupID int64) ([]int64, error)
}

// ExpenseReader lists expenses with their splits.
type ExpenseReader interface {
	ListForGroup(ctx context.Context, groupID int64) ([]*expense.Expense, error)
	ListForUser(ctx context.Context, userID int64) ([]*expense.Expense, error)
	ListBetween(ctx context.Context, a, b int64) ([]*expense.Expense, error)
}

// SettlementReader lists settlements.
type SettlementReader interface {
	ListForGroup(ctx context.Context, groupID int64) ([]*settlement.Settlement, error)
	ListForUser(ctx context.Context, userID int64) ([]*settlement.Settlement, error)
	ListBetween(ctx context.Context, a, b int64) ([]*settlement.Settlement, error)
}

// MembershipReader lists a group's members past and present.
type MembershipReader interface {
	LedgerMemberIDs(ctx context.Context, groupID int64) ([]int64, error)
}

// RepositoryStore reads the ledger from the Postgres repositories.
type RepositoryStore struct {
	expenses    ExpenseReader
	settlements SettlementReader
	members     MembershipReader
}

// NewRepositoryStore creates a Store over the given repositories.
func NewRepositoryStore(expenses ExpenseReader, settlements SettlementReader, members MembershipReader) *RepositoryStore {
	return &RepositoryStore{expenses: expenses, settlements: settlements, members: members}
}

func (s *RepositoryStore) FetchExpenses(ctx context.Context, scope Scope) ([]*expense.Expense, error) {
	switch scope.Kind {
	case ScopeGroup:
		return s.expenses.ListForGroup(ctx, scope.GroupID)
	case ScopeFriend:
		return s.expenses.ListBetween(ctx, scope.ViewerID, scope.FriendID)
	case ScopeGlobal:
		return s.expenses.ListForUser(ctx, scope.ViewerID)
	default:
		return nil, fmt.Errorf("unknown scope kind %q", scope.Kind)
	}
}

func (s *RepositoryStore) FetchSettlements(ctx context.Context, scope Scope) ([]*settlement.Settlement, error) {
	switch scope.Kind {
	case ScopeGroup:
		return s.settlements.ListForGroup(ctx, scope.GroupID)
	case ScopeFriend:
		return s.settlements.ListBetween(ctx, scope.ViewerID, scope.FriendID)
	case ScopeGlobal:
		return s.settlements.ListForUser(ctx, scope.ViewerID)
	default:
		return nil, fmt.Errorf("unknown scope kind %q", scope.Kind)
	}
}

func (s *RepositoryStore) FetchMembership(ctx context.Context, groupID int64) ([]int64, error) {
	return s.members.LedgerMemberIDs(ctx, groupID)
}
