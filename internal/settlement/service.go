package settlement

import (
	"context"
	"errors"
	"log/slog"
	"slices"

	"github.com/fkhayef/splitledger/internal/feed"
	"github.com/fkhayef/splitledger/internal/metrics"
	"github.com/fkhayef/splitledger/internal/money"
	"github.com/fkhayef/splitledger/internal/notification"
	"github.com/fkhayef/splitledger/internal/validate"
)

// Common errors
var (
	ErrSettlementNotFound = errors.New("settlement not found")
	ErrAlreadySettled     = errors.New("already settled up - nothing is owed")
	ErrNotParty           = errors.New("only the payer or the payee can record a settlement")
	ErrNotCreator         = errors.New("only the creator can delete this settlement")
	ErrNotGroupMember     = errors.New("not a member of this group")
)

// Store is the persistence the service needs.
type Store interface {
	Create(ctx context.Context, s *Settlement) (*Settlement, error)
	GetByID(ctx context.Context, id int64) (*Settlement, error)
	Delete(ctx context.Context, id int64) error
	ListByUserID(ctx context.Context, userID int64, limit, offset int) ([]*Settlement, int, error)
}

// MembershipReader lists the members of a group.
type MembershipReader interface {
	MemberIDs(ctx context.Context, groupID int64) ([]int64, error)
}

// BalanceReader reports what otherID owes viewerID overall. Negative means
// the viewer owes.
type BalanceReader interface {
	PairBalance(ctx context.Context, viewerID, otherID int64) (money.Amount, error)
}

// Notifier tells users about payments.
type Notifier interface {
	NotifySettlement(ctx context.Context, a notification.SettlementActivity) error
}

// Service handles settlement business logic
type Service struct {
	repo      Store
	members   MembershipReader
	balances  BalanceReader
	publisher feed.Publisher
	notifier  Notifier
	metrics   *metrics.Recorder
}

// NewService creates a new settlement service. balances, publisher,
// notifier and rec may be nil; without balances every request must carry
// an amount.
func NewService(repo Store, members MembershipReader, balances BalanceReader, publisher feed.Publisher, notifier Notifier, rec *metrics.Recorder) *Service {
	return &Service{
		repo:      repo,
		members:   members,
		balances:  balances,
		publisher: publisher,
		notifier:  notifier,
		metrics:   rec,
	}
}

// Create records a payment from the payer to the payee. The caller must be
// one of the two. When no amount is given the payer settles their whole
// outstanding debt to the payee.
func (s *Service) Create(ctx context.Context, callerID int64, req *CreateSettlementRequest) (*Settlement, error) {
	payerID := callerID
	if req.PayerID != nil {
		payerID = *req.PayerID
	}
	if callerID != payerID && callerID != req.PayeeID {
		return nil, ErrNotParty
	}

	date, err := parseDate(req.Date)
	if err != nil {
		return nil, s.reject(err)
	}

	if req.GroupID != nil {
		members, err := s.members.MemberIDs(ctx, *req.GroupID)
		if err != nil {
			return nil, err
		}
		if !slices.Contains(members, callerID) {
			return nil, ErrNotGroupMember
		}
		if !slices.Contains(members, payerID) || !slices.Contains(members, req.PayeeID) {
			return nil, s.reject(validate.Errorf(validate.ErrInvalidSettlement,
				"payer and payee must both belong to group %d", *req.GroupID))
		}
	}

	var amount money.Amount
	if req.Amount != nil {
		amount = *req.Amount
	} else {
		if amount, err = s.outstanding(ctx, payerID, req.PayeeID); err != nil {
			return nil, err
		}
	}

	if err := validate.Settlement(payerID, req.PayeeID, amount); err != nil {
		return nil, s.reject(err)
	}

	created, err := s.repo.Create(ctx, &Settlement{
		GroupID:     req.GroupID,
		PayerID:     payerID,
		PayeeID:     req.PayeeID,
		Amount:      amount,
		Note:        req.Note,
		Date:        date,
		CreatedByID: callerID,
	})
	if err != nil {
		return nil, err
	}

	s.afterChange(ctx, feed.KindSettlementCreated, notification.ActionAdded, callerID, created)
	return created, nil
}

// outstanding returns what payerID currently owes payeeID.
func (s *Service) outstanding(ctx context.Context, payerID, payeeID int64) (money.Amount, error) {
	if s.balances == nil {
		return 0, s.reject(validate.Errorf(validate.ErrInvalidSettlement, "amount is required"))
	}
	if !validate.IsDistinctParties(payerID, payeeID) {
		return 0, s.reject(validate.Errorf(validate.ErrInvalidSettlement, "payer and payee must differ"))
	}

	bal, err := s.balances.PairBalance(ctx, payerID, payeeID)
	if err != nil {
		return 0, err
	}
	owed := bal.Neg()
	if owed <= 0 || validate.IsSettled(owed) {
		return 0, ErrAlreadySettled
	}
	return owed, nil
}

// GetByID retrieves a settlement. Only its two parties may see it.
func (s *Service) GetByID(ctx context.Context, id, viewerID int64) (*Settlement, error) {
	st, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if st == nil || !st.Involves(viewerID) {
		return nil, ErrSettlementNotFound
	}
	return st, nil
}

// ListByUserID retrieves a page of settlements involving a user
func (s *Service) ListByUserID(ctx context.Context, userID int64, page, perPage int) ([]*Settlement, int, error) {
	if page < 1 {
		page = 1
	}
	if perPage < 1 || perPage > 100 {
		perPage = 20
	}

	offset := (page - 1) * perPage
	return s.repo.ListByUserID(ctx, userID, perPage, offset)
}

// Delete removes a settlement. Only whoever recorded it may do so.
func (s *Service) Delete(ctx context.Context, id, callerID int64) error {
	st, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return err
	}
	if st == nil {
		return ErrSettlementNotFound
	}
	if st.CreatedByID != callerID {
		return ErrNotCreator
	}

	if err := s.repo.Delete(ctx, id); err != nil {
		return err
	}

	s.afterChange(ctx, feed.KindSettlementDeleted, notification.ActionDeleted, callerID, st)
	return nil
}

func (s *Service) reject(err error) error {
	s.metrics.Rejection(validate.Code(err))
	return err
}

func (s *Service) afterChange(ctx context.Context, kind feed.Kind, action notification.Action, actorID int64, st *Settlement) {
	if s.publisher != nil {
		var groups []int64
		if st.GroupID != nil {
			groups = append(groups, *st.GroupID)
		}
		inv := feed.NewInvalidation(kind, groups, []feed.Pair{feed.NewPair(st.PayerID, st.PayeeID)})
		if err := s.publisher.Publish(ctx, inv); err != nil {
			slog.WarnContext(ctx, "failed to publish invalidation", "kind", kind, "id", inv.ID, "error", err)
		}
	}

	if s.notifier == nil {
		return
	}
	err := s.notifier.NotifySettlement(ctx, notification.SettlementActivity{
		SettlementID: st.ID,
		ActorID:      actorID,
		Action:       action,
		PayerID:      st.PayerID,
		PayeeID:      st.PayeeID,
		Amount:       st.Amount,
	})
	if err != nil {
		slog.WarnContext(ctx, "failed to notify settlement activity", "settlement_id", st.ID, "error", err)
	}
}
