package feed

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewPairIsNormalized(t *testing.T) {
	assert.Equal(t, Pair{2, 7}, NewPair(7, 2))
	assert.Equal(t, NewPair(2, 7), NewPair(2, 7))
	assert.True(t, NewPair(7, 2).Has(7))
	assert.False(t, NewPair(7, 2).Has(3))
}

func TestExpensePairs(t *testing.T) {
	got := ExpensePairs(5, []int64{1, 5, 9})
	assert.Equal(t, []Pair{{1, 5}, {5, 9}}, got)
}

func TestNewInvalidation(t *testing.T) {
	inv := NewInvalidation(KindExpenseUpdated,
		[]int64{3, 1, 3},
		[]Pair{{4, 2}, {2, 4}, {6, 6}, {1, 9}})

	assert.NotEqual(t, uuid.Nil, inv.ID)
	assert.Equal(t, KindExpenseUpdated, inv.Kind)
	assert.Equal(t, []int64{1, 3}, inv.GroupIDs)
	assert.Equal(t, []Pair{{1, 9}, {2, 4}}, inv.Pairs)
	assert.WithinDuration(t, time.Now(), inv.OccurredAt, time.Minute)

	assert.True(t, inv.TouchesGroup(3))
	assert.False(t, inv.TouchesGroup(2))
	assert.True(t, inv.TouchesPair(4, 2))
	assert.False(t, inv.TouchesPair(1, 2))
	assert.True(t, inv.TouchesUser(9))
	assert.False(t, inv.TouchesUser(6))
	assert.Equal(t, []int64{1, 2, 4, 9}, inv.Users())
}

func TestEncodeDecode(t *testing.T) {
	inv := NewInvalidation(KindSettlementCreated, nil, []Pair{NewPair(1, 2)})

	body, err := inv.Encode()
	require.NoError(t, err)

	got, err := Decode(body)
	require.NoError(t, err)
	assert.Equal(t, inv.ID, got.ID)
	assert.Equal(t, inv.Kind, got.Kind)
	assert.Equal(t, inv.Pairs, got.Pairs)
	assert.Empty(t, got.GroupIDs)
	assert.True(t, inv.OccurredAt.Equal(got.OccurredAt))
}

func TestDecodeRejectsGarbage(t *testing.T) {
	_, err := Decode([]byte("not json"))
	assert.Error(t, err)

	_, err = Decode([]byte(`{"kind":"expense.created","pairs":[[1,2]]}`))
	assert.Error(t, err)
}

func TestBusPublish(t *testing.T) {
	bus := NewBus()
	var seen []string
	bus.Subscribe(func(ctx context.Context, inv Invalidation) error {
		seen = append(seen, "first:"+string(inv.Kind))
		return errors.New("boom")
	})
	bus.Subscribe(func(ctx context.Context, inv Invalidation) error {
		seen = append(seen, "second:"+string(inv.Kind))
		return nil
	})

	err := bus.Publish(context.Background(), NewInvalidation(KindExpenseDeleted, nil, nil))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "boom")
	assert.Equal(t, []string{"first:expense.deleted", "second:expense.deleted"}, seen)
}

type recordingPublisher struct {
	got []Invalidation
	err error
}

func (p *recordingPublisher) Publish(_ context.Context, inv Invalidation) error {
	p.got = append(p.got, inv)
	return p.err
}

func TestPublishersTee(t *testing.T) {
	ok := &recordingPublisher{}
	failing := &recordingPublisher{err: errors.New("broker down")}
	inv := NewInvalidation(KindExpenseCreated, []int64{1}, []Pair{{1, 2}})

	err := Publishers{failing, nil, ok}.Publish(context.Background(), inv)
	require.Error(t, err)
	assert.Len(t, ok.got, 1)
	assert.Len(t, failing.got, 1)

	assert.NoError(t, Publishers{ok}.Publish(context.Background(), inv))
}

func TestBackoff(t *testing.T) {
	tests := []struct {
		attempt  int
		expected time.Duration
	}{
		{-1, 1 * time.Second},
		{0, 1 * time.Second},
		{1, 2 * time.Second},
		{2, 4 * time.Second},
		{3, 8 * time.Second},
		{4, 16 * time.Second},
		{5, 30 * time.Second},
		{40, 30 * time.Second},
	}

	for _, tt := range tests {
		t.Run(fmt.Sprintf("attempt_%d", tt.attempt), func(t *testing.T) {
			assert.Equal(t, tt.expected, Backoff(tt.attempt))
		})
	}
}
