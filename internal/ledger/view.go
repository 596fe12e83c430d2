// Package ledger assembles computed balances into the shapes callers ask
// for: a group's balance sheet, the running balance with one friend and a
// user's totals across everything.
//
// Results are cached per scope and dropped when the change feed reports
// that a scope may be stale.
package ledger

import (
	"cmp"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/fkhayef/splitledger/internal/balance"
	"github.com/fkhayef/splitledger/internal/expense"
	"github.com/fkhayef/splitledger/internal/feed"
	"github.com/fkhayef/splitledger/internal/metrics"
	"github.com/fkhayef/splitledger/internal/money"
	"github.com/fkhayef/splitledger/internal/settlement"
	"github.com/fkhayef/splitledger/internal/validate"
)

var (
	ErrNotGroupMember = errors.New("you are not a member of this group")
	ErrSelfScope      = errors.New("cannot compute a balance with yourself")
)

// Directory resolves display names.
type Directory interface {
	Usernames(ctx context.Context, ids []int64) (map[int64]string, error)
}

// GroupBalances is one viewer's balance sheet for a group.
type GroupBalances struct {
	GroupID   int64              `json:"group_id"`
	ViewerID  int64              `json:"viewer_id"`
	Balances  []balance.Entry    `json:"balances"`
	Total     money.Amount       `json:"total"`
	Members   []balance.Entry    `json:"members"`
	Transfers []balance.Transfer `json:"suggested_transfers"`
}

// FriendBalance is the running balance between the viewer and one friend
// across every group, plus the history behind it.
type FriendBalance struct {
	FriendID       int64         `json:"friend_id"`
	FriendUsername string        `json:"friend_username"`
	Amount         money.Amount  `json:"amount"`
	Settled        bool          `json:"settled"`
	Message        string        `json:"message"`
	History        []HistoryItem `json:"history"`
}

// HistoryItem is one expense or settlement between two friends. Effect is
// the signed change it made to the viewer's balance with the friend.
type HistoryItem struct {
	Type        string       `json:"type"`
	ID          int64        `json:"id"`
	GroupID     *int64       `json:"group_id,omitempty"`
	Description string       `json:"description"`
	Date        time.Time    `json:"date"`
	Amount      money.Amount `json:"amount"`
	Effect      money.Amount `json:"effect"`
}

const (
	historyExpense    = "expense"
	historySettlement = "settlement"
)

// GlobalBalances sums up the viewer's position with everyone.
type GlobalBalances struct {
	ViewerID   int64           `json:"viewer_id"`
	Balances   []balance.Entry `json:"balances"`
	TotalOwed  money.Amount    `json:"total_owed"`
	TotalOwing money.Amount    `json:"total_owing"`
	Net        money.Amount    `json:"net"`
}

// View computes balances from a Store.
//
// Returned values may be shared with other callers through the cache and
// must not be modified.
type View struct {
	store     Store
	directory Directory
	metrics   *metrics.Recorder
	cache     *lru[Scope, any]
}

// Option configures a View.
type Option func(*View)

// WithCache keeps up to size computed scopes. Zero or less disables caching.
func WithCache(size int) Option {
	return func(v *View) {
		if size > 0 {
			v.cache = newLRU[Scope, any](size)
		}
	}
}

// WithDirectory resolves friend names for balance messages.
func WithDirectory(d Directory) Option {
	return func(v *View) { v.directory = d }
}

// WithMetrics records computations and cache lookups.
func WithMetrics(rec *metrics.Recorder) Option {
	return func(v *View) { v.metrics = rec }
}

// NewView creates a View over store.
func NewView(store Store, opts ...Option) *View {
	v := &View{store: store}
	for _, opt := range opts {
		opt(v)
	}
	return v
}

type snapshot struct {
	expenses    []*expense.Expense
	settlements []*settlement.Settlement
	members     []int64
}

func (v *View) fetch(ctx context.Context, scope Scope) (*snapshot, error) {
	var snap snapshot
	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		var err error
		if snap.expenses, err = v.store.FetchExpenses(gctx, scope); err != nil {
			return fmt.Errorf("failed to fetch expenses for %s: %w", scope.Key(), err)
		}
		return nil
	})
	g.Go(func() error {
		var err error
		if snap.settlements, err = v.store.FetchSettlements(gctx, scope); err != nil {
			return fmt.Errorf("failed to fetch settlements for %s: %w", scope.Key(), err)
		}
		return nil
	})
	if scope.Kind == ScopeGroup {
		g.Go(func() error {
			var err error
			if snap.members, err = v.store.FetchMembership(gctx, scope.GroupID); err != nil {
				return fmt.Errorf("failed to fetch members of group %d: %w", scope.GroupID, err)
			}
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nil, err
	}
	return &snap, nil
}

// involving keeps the rows the viewer paid, shares in or settled.
func (s *snapshot) involving(viewerID int64) ([]*expense.Expense, []*settlement.Settlement) {
	var expenses []*expense.Expense
	for _, e := range s.expenses {
		if e.Involves(viewerID) {
			expenses = append(expenses, e)
		}
	}
	var settlements []*settlement.Settlement
	for _, st := range s.settlements {
		if st.Involves(viewerID) {
			settlements = append(settlements, st)
		}
	}
	return expenses, settlements
}

func cached[T any](ctx context.Context, v *View, scope Scope, compute func(context.Context) (T, error)) (T, error) {
	var gen uint64
	if v.cache != nil {
		if hit, ok := v.cache.Get(scope); ok {
			if out, ok := hit.(T); ok {
				v.metrics.CacheHit()
				return out, nil
			}
		}
		v.metrics.CacheMiss()
		gen = v.cache.Generation()
	}

	start := time.Now()
	out, err := compute(ctx)
	if err != nil {
		return out, err
	}
	v.metrics.ObserveComputation(string(scope.Kind), time.Since(start))

	if v.cache != nil && !v.cache.SetIfGeneration(scope, out, gen) {
		slog.DebugContext(ctx, "Discarded balance computed across an invalidation", "scope", scope.Key())
	}
	return out, nil
}

// GroupBalances returns viewerID's balance sheet for groupID.
func (v *View) GroupBalances(ctx context.Context, viewerID, groupID int64) (*GroupBalances, error) {
	scope := GroupScope(viewerID, groupID)
	return cached(ctx, v, scope, func(ctx context.Context) (*GroupBalances, error) {
		snap, err := v.fetch(ctx, scope)
		if err != nil {
			return nil, err
		}
		if !slices.Contains(snap.members, viewerID) {
			return nil, ErrNotGroupMember
		}

		opt := balance.WithMembers(snap.members)
		expenses, settlements := snap.involving(viewerID)
		mine, err := balance.Compute(viewerID, expenses, settlements, opt)
		if err != nil {
			return nil, err
		}

		net, err := balance.NetPositions(snap.expenses, snap.settlements, opt)
		if err != nil {
			return nil, err
		}
		members := make([]balance.Entry, len(snap.members))
		for i, id := range snap.members {
			members[i] = balance.Entry{UserID: id, Amount: net.Get(id)}
		}

		return &GroupBalances{
			GroupID:   groupID,
			ViewerID:  viewerID,
			Balances:  mine.Owing(),
			Total:     mine.Total(),
			Members:   members,
			Transfers: balance.Simplify(net),
		}, nil
	})
}

// OpenBalances lists userID's unsettled balances with each counterparty in
// groupID. It can be non-empty while their net is zero.
func (v *View) OpenBalances(ctx context.Context, groupID, userID int64) ([]balance.Entry, error) {
	gb, err := v.GroupBalances(ctx, userID, groupID)
	if err != nil {
		return nil, err
	}
	return gb.Balances, nil
}

// FriendBalance returns the balance between viewerID and friendID across
// all groups. Settlements in one group offset expenses in another.
func (v *View) FriendBalance(ctx context.Context, viewerID, friendID int64) (*FriendBalance, error) {
	if viewerID == friendID {
		return nil, ErrSelfScope
	}

	scope := FriendScope(viewerID, friendID)
	return cached(ctx, v, scope, func(ctx context.Context) (*FriendBalance, error) {
		snap, err := v.fetch(ctx, scope)
		if err != nil {
			return nil, err
		}

		balances, err := balance.Compute(viewerID, snap.expenses, snap.settlements)
		if err != nil {
			return nil, err
		}
		amount := balances.Get(friendID)

		name := v.username(ctx, friendID)
		return &FriendBalance{
			FriendID:       friendID,
			FriendUsername: name,
			Amount:         amount,
			Settled:        validate.IsSettled(amount),
			Message:        friendMessage(name, amount),
			History:        history(snap, viewerID, friendID),
		}, nil
	})
}

// PairBalance returns what otherID owes viewerID across all groups.
func (v *View) PairBalance(ctx context.Context, viewerID, otherID int64) (money.Amount, error) {
	fb, err := v.FriendBalance(ctx, viewerID, otherID)
	if err != nil {
		return 0, err
	}
	return fb.Amount, nil
}

// GlobalBalances returns viewerID's position with everyone they share
// expenses with.
func (v *View) GlobalBalances(ctx context.Context, viewerID int64) (*GlobalBalances, error) {
	scope := GlobalScope(viewerID)
	return cached(ctx, v, scope, func(ctx context.Context) (*GlobalBalances, error) {
		snap, err := v.fetch(ctx, scope)
		if err != nil {
			return nil, err
		}

		expenses, settlements := snap.involving(viewerID)
		balances, err := balance.Compute(viewerID, expenses, settlements)
		if err != nil {
			return nil, err
		}

		out := &GlobalBalances{
			ViewerID: viewerID,
			Balances: balances.Owing(),
			Net:      balances.Total(),
		}
		for _, amount := range balances {
			if amount > 0 {
				out.TotalOwed += amount
			} else {
				out.TotalOwing -= amount
			}
		}
		return out, nil
	})
}

func (v *View) username(ctx context.Context, userID int64) string {
	if v.directory != nil {
		names, err := v.directory.Usernames(ctx, []int64{userID})
		if err != nil {
			slog.WarnContext(ctx, "Failed to resolve username", "user_id", userID, "error", err)
		} else if name, ok := names[userID]; ok {
			return name
		}
	}
	return fmt.Sprintf("user #%d", userID)
}

func friendMessage(name string, amount money.Amount) string {
	switch {
	case validate.IsSettled(amount):
		return fmt.Sprintf("You and %s are settled up", name)
	case amount > 0:
		return fmt.Sprintf("%s owes you %s", name, amount.Format())
	default:
		return fmt.Sprintf("You owe %s %s", name, amount.Abs().Format())
	}
}

// history merges both kinds of rows, newest first.
func history(snap *snapshot, viewerID, friendID int64) []HistoryItem {
	items := make([]HistoryItem, 0, len(snap.expenses)+len(snap.settlements))

	for _, e := range snap.expenses {
		var effect money.Amount
		switch e.PayerID {
		case viewerID:
			share, _ := e.ShareOf(friendID)
			effect = share
		case friendID:
			share, _ := e.ShareOf(viewerID)
			effect = share.Neg()
		}
		items = append(items, HistoryItem{
			Type:        historyExpense,
			ID:          e.ID,
			GroupID:     e.GroupID,
			Description: e.Description,
			Date:        e.Date,
			Amount:      e.Amount,
			Effect:      effect,
		})
	}

	for _, s := range snap.settlements {
		effect := s.Amount
		if s.PayerID != viewerID {
			effect = effect.Neg()
		}
		description := "Payment"
		if s.Note != nil && *s.Note != "" {
			description = *s.Note
		}
		items = append(items, HistoryItem{
			Type:        historySettlement,
			ID:          s.ID,
			GroupID:     s.GroupID,
			Description: description,
			Date:        s.Date,
			Amount:      s.Amount,
			Effect:      effect,
		})
	}

	slices.SortFunc(items, func(a, b HistoryItem) int {
		if c := b.Date.Compare(a.Date); c != 0 {
			return c
		}
		if c := cmp.Compare(a.Type, b.Type); c != 0 {
			return c
		}
		return cmp.Compare(b.ID, a.ID)
	})
	return items
}

// HandleInvalidation drops every cached scope inv may have changed.
func (v *View) HandleInvalidation(ctx context.Context, inv feed.Invalidation) error {
	v.metrics.Invalidation(string(inv.Kind))
	if v.cache == nil {
		return nil
	}

	n := v.cache.DeleteFunc(func(s Scope) bool { return s.AffectedBy(inv) })
	slog.DebugContext(ctx, "Invalidated balances",
		"invalidation_id", inv.ID, "kind", inv.Kind, "evicted", n)
	return nil
}
