package expense

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fkhayef/splitledger/internal/expense/split"
	"github.com/fkhayef/splitledger/internal/feed"
	"github.com/fkhayef/splitledger/internal/money"
	"github.com/fkhayef/splitledger/internal/notification"
	"github.com/fkhayef/splitledger/internal/validate"
)

type fakeStore struct {
	nextID   int64
	expenses map[int64]*Expense
}

func newFakeStore() *fakeStore {
	return &fakeStore{nextID: 1, expenses: map[int64]*Expense{}}
}

func (f *fakeStore) Create(_ context.Context, e *Expense) (*Expense, error) {
	c := *e
	c.ID = f.nextID
	f.nextID++
	c.CreatedAt = time.Now()
	c.UpdatedAt = c.CreatedAt
	c.Splits = SplitsFromShares(c.ID, sharesOf(e))
	f.expenses[c.ID] = &c
	return &c, nil
}

func (f *fakeStore) Update(_ context.Context, e *Expense) (*Expense, error) {
	if _, ok := f.expenses[e.ID]; !ok {
		return nil, nil
	}
	c := *e
	c.Splits = SplitsFromShares(c.ID, sharesOf(e))
	f.expenses[c.ID] = &c
	return &c, nil
}

func (f *fakeStore) Delete(_ context.Context, id int64) error {
	if _, ok := f.expenses[id]; !ok {
		return ErrExpenseNotFound
	}
	delete(f.expenses, id)
	return nil
}

func (f *fakeStore) GetByID(_ context.Context, id int64) (*Expense, error) {
	e, ok := f.expenses[id]
	if !ok {
		return nil, nil
	}
	c := *e
	return &c, nil
}

func (f *fakeStore) ListByGroupID(_ context.Context, groupID int64, limit, offset int) ([]*Expense, int, error) {
	var out []*Expense
	for _, e := range f.expenses {
		if e.InGroup(groupID) {
			out = append(out, e)
		}
	}
	return out, len(out), nil
}

func sharesOf(e *Expense) []split.Share {
	out := make([]split.Share, len(e.Splits))
	for i, s := range e.Splits {
		out[i] = split.Share{UserID: s.UserID, Amount: s.Share}
	}
	return out
}

type fakeMembers map[int64][]int64

func (f fakeMembers) MemberIDs(_ context.Context, groupID int64) ([]int64, error) {
	return f[groupID], nil
}

type recordingPublisher struct {
	published []feed.Invalidation
}

func (p *recordingPublisher) Publish(_ context.Context, inv feed.Invalidation) error {
	p.published = append(p.published, inv)
	return nil
}

type recordingNotifier struct {
	activity []notification.ExpenseActivity
	err      error
}

func (n *recordingNotifier) NotifyExpense(_ context.Context, a notification.ExpenseActivity) error {
	n.activity = append(n.activity, a)
	return n.err
}

type fixture struct {
	store     *fakeStore
	publisher *recordingPublisher
	notifier  *recordingNotifier
	service   *Service
}

func newFixture() *fixture {
	f := &fixture{
		store:     newFakeStore(),
		publisher: &recordingPublisher{},
		notifier:  &recordingNotifier{},
	}
	members := fakeMembers{10: {1, 2, 3}, 20: {4, 5}}
	f.service = NewService(f.store, members, split.NewSplitStrategyFactory(), f.publisher, f.notifier, nil)
	return f
}

func groupID(id int64) *int64 { return &id }

func TestServiceCreate(t *testing.T) {
	ctx := context.Background()

	t.Run("group expense defaults to every member", func(t *testing.T) {
		f := newFixture()
		e, err := f.service.Create(ctx, 1, &CreateExpenseRequest{
			GroupID:     groupID(10),
			Description: "Dinner",
			Amount:      money.MustParse("90.00"),
			SplitType:   "EQUAL",
		})
		require.NoError(t, err)

		assert.Equal(t, int64(1), e.PayerID)
		assert.Equal(t, int64(1), e.CreatedByID)
		assert.Equal(t, []int64{1, 2, 3}, e.ParticipantIDs())
		for _, s := range e.Splits {
			assert.Equal(t, money.MustParse("30.00"), s.Share)
		}

		require.Len(t, f.publisher.published, 1)
		inv := f.publisher.published[0]
		assert.Equal(t, feed.KindExpenseCreated, inv.Kind)
		assert.Equal(t, []int64{10}, inv.GroupIDs)
		assert.Equal(t, []feed.Pair{{1, 2}, {1, 3}}, inv.Pairs)

		require.Len(t, f.notifier.activity, 1)
		assert.Equal(t, notification.ActionAdded, f.notifier.activity[0].Action)
		assert.Equal(t, int64(1), f.notifier.activity[0].ActorID)
	})

	t.Run("non-member caller is refused", func(t *testing.T) {
		f := newFixture()
		_, err := f.service.Create(ctx, 4, &CreateExpenseRequest{
			GroupID:     groupID(10),
			Description: "Dinner",
			Amount:      money.MustParse("10.00"),
			SplitType:   "EQUAL",
		})
		assert.ErrorIs(t, err, ErrNotGroupMember)
		assert.Empty(t, f.publisher.published)
	})

	t.Run("participant outside the group is rejected", func(t *testing.T) {
		f := newFixture()
		_, err := f.service.Create(ctx, 1, &CreateExpenseRequest{
			GroupID:      groupID(10),
			Description:  "Dinner",
			Amount:       money.MustParse("10.00"),
			SplitType:    "EQUAL",
			Participants: []int64{1, 4},
		})
		assert.ErrorIs(t, err, validate.ErrInvalidLedgerEntry)
	})

	t.Run("exact mismatch is reported and nothing is stored", func(t *testing.T) {
		f := newFixture()
		_, err := f.service.Create(ctx, 1, &CreateExpenseRequest{
			Description:  "Taxi",
			Amount:       money.MustParse("50.00"),
			SplitType:    "EXACT",
			Participants: []int64{1, 2},
			Split: split.Inputs{Amounts: map[int64]money.Amount{
				1: money.MustParse("20.00"),
				2: money.MustParse("20.00"),
			}},
		})
		assert.Equal(t, "AMOUNT_MISMATCH", validate.Code(err))
		assert.Empty(t, f.store.expenses)
		assert.Empty(t, f.publisher.published)
	})

	t.Run("caller must be involved outside a group", func(t *testing.T) {
		f := newFixture()
		payer := int64(2)
		_, err := f.service.Create(ctx, 1, &CreateExpenseRequest{
			PayerID:      &payer,
			Description:  "Taxi",
			Amount:       money.MustParse("10.00"),
			SplitType:    "EQUAL",
			Participants: []int64{2, 3},
		})
		assert.ErrorIs(t, err, ErrNotInvolved)
	})

	t.Run("unknown split type", func(t *testing.T) {
		f := newFixture()
		_, err := f.service.Create(ctx, 1, &CreateExpenseRequest{
			Description:  "Taxi",
			Amount:       money.MustParse("10.00"),
			SplitType:    "EVEN",
			Participants: []int64{1, 2},
		})
		assert.Equal(t, "INVALID_LEDGER_ENTRY", validate.Code(err))
	})

	t.Run("bad date", func(t *testing.T) {
		f := newFixture()
		date := "01/03/2024"
		_, err := f.service.Create(ctx, 1, &CreateExpenseRequest{
			Description:  "Taxi",
			Amount:       money.MustParse("10.00"),
			SplitType:    "EQUAL",
			Date:         &date,
			Participants: []int64{1, 2},
		})
		assert.ErrorIs(t, err, validate.ErrInvalidLedgerEntry)
	})

	t.Run("notification failure does not fail the write", func(t *testing.T) {
		f := newFixture()
		f.notifier.err = errors.New("smtp down")
		_, err := f.service.Create(ctx, 1, &CreateExpenseRequest{
			Description:  "Taxi",
			Amount:       money.MustParse("10.00"),
			SplitType:    "EQUAL",
			Participants: []int64{1, 2},
		})
		assert.NoError(t, err)
		assert.Len(t, f.store.expenses, 1)
	})
}

func createDinner(t *testing.T, f *fixture) *Expense {
	t.Helper()
	e, err := f.service.Create(context.Background(), 1, &CreateExpenseRequest{
		GroupID:     groupID(10),
		Description: "Dinner",
		Amount:      money.MustParse("90.00"),
		SplitType:   "EQUAL",
	})
	require.NoError(t, err)
	return e
}

func TestServiceUpdate(t *testing.T) {
	ctx := context.Background()

	t.Run("amount change recomputes equal shares", func(t *testing.T) {
		f := newFixture()
		e := createDinner(t, f)

		amount := money.MustParse("60.00")
		updated, err := f.service.Update(ctx, e.ID, 1, &UpdateExpenseRequest{Amount: &amount})
		require.NoError(t, err)
		for _, s := range updated.Splits {
			assert.Equal(t, money.MustParse("20.00"), s.Share)
		}
		assert.Equal(t, feed.KindExpenseUpdated, f.publisher.published[1].Kind)
	})

	t.Run("dropping a participant invalidates the old pair too", func(t *testing.T) {
		f := newFixture()
		e := createDinner(t, f)

		updated, err := f.service.Update(ctx, e.ID, 1, &UpdateExpenseRequest{Participants: []int64{1, 2}})
		require.NoError(t, err)
		assert.Equal(t, []int64{1, 2}, updated.ParticipantIDs())

		inv := f.publisher.published[1]
		assert.Equal(t, []feed.Pair{{1, 2}, {1, 3}}, inv.Pairs)
	})

	t.Run("description only keeps shares", func(t *testing.T) {
		f := newFixture()
		e := createDinner(t, f)

		desc := "Team dinner"
		updated, err := f.service.Update(ctx, e.ID, 1, &UpdateExpenseRequest{Description: &desc})
		require.NoError(t, err)
		assert.Equal(t, "Team dinner", updated.Description)
		assert.Equal(t, e.Splits, updated.Splits)
	})

	t.Run("switching to percentage needs percentages", func(t *testing.T) {
		f := newFixture()
		e := createDinner(t, f)

		mode := "PERCENTAGE"
		_, err := f.service.Update(ctx, e.ID, 1, &UpdateExpenseRequest{SplitType: &mode})
		assert.ErrorIs(t, err, validate.ErrInvalidLedgerEntry)

		_, err = f.service.Update(ctx, e.ID, 1, &UpdateExpenseRequest{
			SplitType: &mode,
			Split: &split.Inputs{Percentages: map[int64]decimal.Decimal{
				1: decimal.NewFromInt(50),
				2: decimal.NewFromInt(25),
				3: decimal.NewFromInt(25),
			}},
		})
		assert.NoError(t, err)
	})

	t.Run("exact reuses shares until the amount changes", func(t *testing.T) {
		f := newFixture()
		e := createDinner(t, f)

		mode := "EXACT"
		_, err := f.service.Update(ctx, e.ID, 1, &UpdateExpenseRequest{SplitType: &mode})
		require.NoError(t, err)

		amount := money.MustParse("100.00")
		_, err = f.service.Update(ctx, e.ID, 1, &UpdateExpenseRequest{Amount: &amount})
		assert.Equal(t, "AMOUNT_MISMATCH", validate.Code(err))
	})

	t.Run("caller must stay involved outside a group", func(t *testing.T) {
		f := newFixture()
		e, err := f.service.Create(ctx, 1, &CreateExpenseRequest{
			Description:  "Taxi",
			Amount:       money.MustParse("10.00"),
			SplitType:    "EQUAL",
			Participants: []int64{1, 2},
		})
		require.NoError(t, err)

		payer := int64(2)
		_, err = f.service.Update(ctx, e.ID, 1, &UpdateExpenseRequest{PayerID: &payer, Participants: []int64{2, 3}})
		assert.ErrorIs(t, err, ErrNotInvolved)
		assert.Len(t, f.publisher.published, 1)

		stored, err := f.store.GetByID(ctx, e.ID)
		require.NoError(t, err)
		assert.Equal(t, int64(1), stored.PayerID)

		_, err = f.service.Update(ctx, e.ID, 1, &UpdateExpenseRequest{Participants: []int64{2, 3}})
		assert.NoError(t, err, "still the payer")
	})

	t.Run("only the creator may edit", func(t *testing.T) {
		f := newFixture()
		e := createDinner(t, f)

		desc := "mine now"
		_, err := f.service.Update(ctx, e.ID, 2, &UpdateExpenseRequest{Description: &desc})
		assert.ErrorIs(t, err, ErrNotCreator)
	})

	t.Run("missing expense", func(t *testing.T) {
		f := newFixture()
		_, err := f.service.Update(ctx, 99, 1, &UpdateExpenseRequest{})
		assert.ErrorIs(t, err, ErrExpenseNotFound)
	})
}

func TestServiceDelete(t *testing.T) {
	ctx := context.Background()
	f := newFixture()
	e := createDinner(t, f)

	assert.ErrorIs(t, f.service.Delete(ctx, e.ID, 2), ErrNotCreator)
	require.NoError(t, f.service.Delete(ctx, e.ID, 1))
	assert.ErrorIs(t, f.service.Delete(ctx, e.ID, 1), ErrExpenseNotFound)

	last := f.publisher.published[len(f.publisher.published)-1]
	assert.Equal(t, feed.KindExpenseDeleted, last.Kind)
	assert.Equal(t, []int64{10}, last.GroupIDs)
}

func TestServiceGetByID(t *testing.T) {
	ctx := context.Background()
	f := newFixture()
	e := createDinner(t, f)

	_, err := f.service.GetByID(ctx, e.ID, 2)
	assert.NoError(t, err)

	_, err = f.service.GetByID(ctx, e.ID, 4)
	assert.ErrorIs(t, err, ErrNotInvolved)

	_, err = f.service.GetByID(ctx, 99, 1)
	assert.ErrorIs(t, err, ErrExpenseNotFound)
}

func TestServicePreview(t *testing.T) {
	f := newFixture()
	shares, err := f.service.Preview(&PreviewRequest{
		Amount:       money.MustParse("100.00"),
		SplitType:    "EQUAL",
		Participants: []int64{1, 2, 3},
	})
	require.NoError(t, err)
	require.Len(t, shares, 3)
	assert.Equal(t, money.MustParse("33.33"), shares[0].Amount)
	assert.Empty(t, f.store.expenses)
}

func TestServiceListByGroup(t *testing.T) {
	ctx := context.Background()
	f := newFixture()
	createDinner(t, f)

	expenses, total, err := f.service.ListByGroup(ctx, 10, 3, 1, 20)
	require.NoError(t, err)
	assert.Equal(t, 1, total)
	assert.Len(t, expenses, 1)

	_, _, err = f.service.ListByGroup(ctx, 10, 4, 1, 20)
	assert.ErrorIs(t, err, ErrNotGroupMember)
}
