package expense

import (
	"context"
	"errors"
	"log/slog"
	"slices"
	"strings"

	"github.com/fkhayef/splitledger/internal/expense/split"
	"github.com/fkhayef/splitledger/internal/feed"
	"github.com/fkhayef/splitledger/internal/metrics"
	"github.com/fkhayef/splitledger/internal/money"
	"github.com/fkhayef/splitledger/internal/notification"
	"github.com/fkhayef/splitledger/internal/validate"
)

// Common errors
var (
	ErrExpenseNotFound = errors.New("expense not found")
	ErrNotCreator      = errors.New("only the creator can change this expense")
	ErrNotGroupMember  = errors.New("not a member of this group")
	ErrNotInvolved     = errors.New("you are not involved in this expense")
)

// Store is the persistence the service needs.
type Store interface {
	Create(ctx context.Context, e *Expense) (*Expense, error)
	Update(ctx context.Context, e *Expense) (*Expense, error)
	Delete(ctx context.Context, id int64) error
	GetByID(ctx context.Context, id int64) (*Expense, error)
	ListByGroupID(ctx context.Context, groupID int64, limit, offset int) ([]*Expense, int, error)
}

// MembershipReader lists the members of a group in join order.
type MembershipReader interface {
	MemberIDs(ctx context.Context, groupID int64) ([]int64, error)
}

// Notifier tells users about expense activity.
type Notifier interface {
	NotifyExpense(ctx context.Context, a notification.ExpenseActivity) error
}

// Service handles expense business logic
type Service struct {
	repo         Store
	members      MembershipReader
	splitFactory *split.Factory
	publisher    feed.Publisher
	notifier     Notifier
	metrics      *metrics.Recorder
}

// NewService creates a new expense service with dependencies injected.
// publisher, notifier and rec may be nil.
func NewService(repo Store, members MembershipReader, splitFactory *split.Factory, publisher feed.Publisher, notifier Notifier, rec *metrics.Recorder) *Service {
	return &Service{
		repo:         repo,
		members:      members,
		splitFactory: splitFactory,
		publisher:    publisher,
		notifier:     notifier,
		metrics:      rec,
	}
}

// Create validates and stores a new expense. The payer defaults to the
// caller and, inside a group, the participants default to every member.
func (s *Service) Create(ctx context.Context, callerID int64, req *CreateExpenseRequest) (*Expense, error) {
	mode, err := split.ParseSplitType(req.SplitType)
	if err != nil {
		return nil, s.reject(err)
	}
	date, err := parseDate(req.Date)
	if err != nil {
		return nil, s.reject(err)
	}
	description := strings.TrimSpace(req.Description)
	if description == "" {
		return nil, s.reject(validate.Errorf(validate.ErrInvalidLedgerEntry, "description is required"))
	}

	payerID := callerID
	if req.PayerID != nil {
		payerID = *req.PayerID
	}

	participants := req.Participants
	if req.GroupID != nil {
		members, err := s.groupMembers(ctx, *req.GroupID, callerID)
		if err != nil {
			return nil, err
		}
		if len(participants) == 0 {
			participants = members
		}
		if err := checkMembers(*req.GroupID, members, payerID, participants); err != nil {
			return nil, s.reject(err)
		}
	} else {
		if len(participants) == 0 {
			return nil, s.reject(validate.Errorf(validate.ErrInvalidLedgerEntry, "participants are required outside a group"))
		}
		if !involves(callerID, payerID, participants) {
			return nil, ErrNotInvolved
		}
	}

	shares, err := s.splitFactory.Compute(req.Amount, mode, participants, req.Split)
	if err != nil {
		return nil, s.reject(err)
	}

	created, err := s.repo.Create(ctx, &Expense{
		GroupID:     req.GroupID,
		PayerID:     payerID,
		CreatedByID: callerID,
		Description: description,
		Amount:      req.Amount,
		SplitType:   mode,
		Date:        date,
		ReceiptURL:  req.ReceiptURL,
		Splits:      SplitsFromShares(0, shares),
	})
	if err != nil {
		return nil, err
	}

	s.afterChange(ctx, feed.KindExpenseCreated, notification.ActionAdded, callerID, nil, created)
	return created, nil
}

// Preview computes the shares an expense would produce.
func (s *Service) Preview(req *PreviewRequest) ([]split.Share, error) {
	mode, err := split.ParseSplitType(req.SplitType)
	if err != nil {
		return nil, s.reject(err)
	}
	shares, err := s.splitFactory.Compute(req.Amount, mode, req.Participants, req.Split)
	if err != nil {
		return nil, s.reject(err)
	}
	return shares, nil
}

// Update edits an expense. Only its creator may do so. When the amount,
// split type, participants or split inputs change, every share is
// recomputed and the whole split set is replaced.
func (s *Service) Update(ctx context.Context, id, callerID int64, req *UpdateExpenseRequest) (*Expense, error) {
	existing, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if existing == nil {
		return nil, ErrExpenseNotFound
	}
	if existing.CreatedByID != callerID {
		return nil, ErrNotCreator
	}

	updated := *existing
	if req.Description != nil {
		updated.Description = strings.TrimSpace(*req.Description)
		if updated.Description == "" {
			return nil, s.reject(validate.Errorf(validate.ErrInvalidLedgerEntry, "description is required"))
		}
	}
	if req.ReceiptURL != nil {
		updated.ReceiptURL = req.ReceiptURL
	}
	if req.Date != nil {
		if updated.Date, err = parseDate(req.Date); err != nil {
			return nil, s.reject(err)
		}
	}
	if req.PayerID != nil {
		updated.PayerID = *req.PayerID
	}
	if req.Amount != nil {
		updated.Amount = *req.Amount
	}
	if req.SplitType != nil {
		if updated.SplitType, err = split.ParseSplitType(*req.SplitType); err != nil {
			return nil, s.reject(err)
		}
	}

	participants := existing.ParticipantIDs()
	if req.Participants != nil {
		participants = req.Participants
	}

	if existing.GroupID != nil {
		members, err := s.groupMembers(ctx, *existing.GroupID, callerID)
		if err != nil {
			return nil, err
		}
		if err := checkMembers(*existing.GroupID, members, updated.PayerID, participants); err != nil {
			return nil, s.reject(err)
		}
	} else if !involves(callerID, updated.PayerID, participants) {
		return nil, ErrNotInvolved
	}

	recompute := req.Amount != nil || req.SplitType != nil || req.Participants != nil || req.Split != nil
	if recompute {
		in, err := recomputeInputs(existing, updated.SplitType, req.Split)
		if err != nil {
			return nil, s.reject(err)
		}
		shares, err := s.splitFactory.Compute(updated.Amount, updated.SplitType, participants, in)
		if err != nil {
			return nil, s.reject(err)
		}
		updated.Splits = SplitsFromShares(existing.ID, shares)
	}

	saved, err := s.repo.Update(ctx, &updated)
	if err != nil {
		return nil, err
	}
	if saved == nil {
		return nil, ErrExpenseNotFound
	}

	s.afterChange(ctx, feed.KindExpenseUpdated, notification.ActionUpdated, callerID, existing, saved)
	return saved, nil
}

// involves reports whether userID pays for or takes part in an expense
// recorded outside any group.
func involves(userID, payerID int64, participants []int64) bool {
	return payerID == userID || slices.Contains(participants, userID)
}

// recomputeInputs picks the split inputs for an edit. Explicit inputs win;
// otherwise EXACT reuses the current shares and EQUAL spreads over every
// participant. A percentage split has nothing to reuse.
func recomputeInputs(existing *Expense, mode split.SplitType, explicit *split.Inputs) (split.Inputs, error) {
	if explicit != nil {
		return *explicit, nil
	}

	switch mode {
	case split.SplitTypeExact:
		amounts := make(map[int64]money.Amount, len(existing.Splits))
		for _, sp := range existing.Splits {
			amounts[sp.UserID] = sp.Share
		}
		return split.Inputs{Amounts: amounts}, nil
	case split.SplitTypePercentage:
		return split.Inputs{}, validate.Errorf(validate.ErrInvalidLedgerEntry, "percentages are required to recompute a percentage split")
	default:
		return split.Inputs{}, nil
	}
}

// Delete removes an expense. Only its creator may do so.
func (s *Service) Delete(ctx context.Context, id, callerID int64) error {
	existing, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return err
	}
	if existing == nil {
		return ErrExpenseNotFound
	}
	if existing.CreatedByID != callerID {
		return ErrNotCreator
	}

	if err := s.repo.Delete(ctx, id); err != nil {
		return err
	}

	s.afterChange(ctx, feed.KindExpenseDeleted, notification.ActionDeleted, callerID, existing, nil)
	return nil
}

// GetByID retrieves an expense with its splits. The viewer must be
// involved in it or belong to its group.
func (s *Service) GetByID(ctx context.Context, id, viewerID int64) (*Expense, error) {
	e, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if e == nil {
		return nil, ErrExpenseNotFound
	}
	if e.Involves(viewerID) || e.CreatedByID == viewerID {
		return e, nil
	}
	if e.GroupID != nil {
		if _, err := s.groupMembers(ctx, *e.GroupID, viewerID); err == nil {
			return e, nil
		} else if !errors.Is(err, ErrNotGroupMember) {
			return nil, err
		}
	}
	return nil, ErrNotInvolved
}

// ListByGroup retrieves a page of a group's expenses
func (s *Service) ListByGroup(ctx context.Context, groupID, viewerID int64, page, perPage int) ([]*Expense, int, error) {
	if _, err := s.groupMembers(ctx, groupID, viewerID); err != nil {
		return nil, 0, err
	}

	if page < 1 {
		page = 1
	}
	if perPage < 1 || perPage > 100 {
		perPage = 20
	}

	offset := (page - 1) * perPage
	return s.repo.ListByGroupID(ctx, groupID, perPage, offset)
}

func (s *Service) groupMembers(ctx context.Context, groupID, userID int64) ([]int64, error) {
	members, err := s.members.MemberIDs(ctx, groupID)
	if err != nil {
		return nil, err
	}
	if !slices.Contains(members, userID) {
		return nil, ErrNotGroupMember
	}
	return members, nil
}

func checkMembers(groupID int64, members []int64, payerID int64, participants []int64) error {
	if !slices.Contains(members, payerID) {
		return validate.Errorf(validate.ErrInvalidLedgerEntry, "payer %d is not a member of group %d", payerID, groupID)
	}
	for _, id := range participants {
		if !slices.Contains(members, id) {
			return validate.Errorf(validate.ErrInvalidLedgerEntry, "user %d is not a member of group %d", id, groupID)
		}
	}
	return nil
}

func (s *Service) reject(err error) error {
	s.metrics.Rejection(validate.Code(err))
	return err
}

// afterChange announces a committed mutation. Both the old and the new
// version contribute scopes, so moving a share from one user to another
// invalidates both pairs. Failures here never undo the write.
func (s *Service) afterChange(ctx context.Context, kind feed.Kind, action notification.Action, actorID int64, before, after *Expense) {
	var groups []int64
	var pairs []feed.Pair
	for _, e := range []*Expense{before, after} {
		if e == nil {
			continue
		}
		if e.GroupID != nil {
			groups = append(groups, *e.GroupID)
		}
		pairs = append(pairs, feed.ExpensePairs(e.PayerID, e.ParticipantIDs())...)
	}

	if s.publisher != nil {
		inv := feed.NewInvalidation(kind, groups, pairs)
		if err := s.publisher.Publish(ctx, inv); err != nil {
			slog.WarnContext(ctx, "failed to publish invalidation", "kind", kind, "id", inv.ID, "error", err)
		}
	}

	subject := after
	if subject == nil {
		subject = before
	}
	if s.notifier == nil || subject == nil {
		return
	}

	shares := make(map[int64]money.Amount, len(subject.Splits))
	for _, sp := range subject.Splits {
		shares[sp.UserID] = sp.Share
	}
	err := s.notifier.NotifyExpense(ctx, notification.ExpenseActivity{
		ExpenseID:   subject.ID,
		ActorID:     actorID,
		Action:      action,
		Description: subject.Description,
		PayerID:     subject.PayerID,
		Shares:      shares,
	})
	if err != nil {
		slog.WarnContext(ctx, "failed to notify expense activity", "expense_id", subject.ID, "error", err)
	}
}
