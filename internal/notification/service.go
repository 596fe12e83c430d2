package notification

import (
	"context"
	"errors"
	"fmt"
	"slices"

	"github.com/fkhayef/splitledger/internal/money"
)

// Common errors
var (
	ErrNotificationNotFound = errors.New("notification not found")
	ErrNotRecipient         = errors.New("not the recipient of this notification")
)

// Store is the persistence the service needs.
type Store interface {
	CreateMany(ctx context.Context, notifications []*Notification) error
	GetByID(ctx context.Context, id int64) (*Notification, error)
	ListByRecipientID(ctx context.Context, recipientID int64, limit, offset int, unreadOnly bool) ([]*Notification, int, error)
	MarkAsRead(ctx context.Context, id int64) error
	MarkAllAsRead(ctx context.Context, recipientID int64) error
	GetUnreadCount(ctx context.Context, recipientID int64) (int, error)
}

// Directory resolves user ids to display names.
type Directory interface {
	Usernames(ctx context.Context, ids []int64) (map[int64]string, error)
}

// Service handles notification business logic
type Service struct {
	repo      Store
	directory Directory
}

// NewService creates a new notification service
func NewService(repo Store, directory Directory) *Service {
	return &Service{repo: repo, directory: directory}
}

// GetByID retrieves a notification by its ID
func (s *Service) GetByID(ctx context.Context, id int64) (*Notification, error) {
	n, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if n == nil {
		return nil, ErrNotificationNotFound
	}
	return n, nil
}

// ListByRecipientID retrieves a page of a user's notifications
func (s *Service) ListByRecipientID(ctx context.Context, recipientID int64, page, perPage int, unreadOnly bool) ([]*Notification, int, error) {
	if page < 1 {
		page = 1
	}
	if perPage < 1 || perPage > 100 {
		perPage = 20
	}

	offset := (page - 1) * perPage
	return s.repo.ListByRecipientID(ctx, recipientID, perPage, offset, unreadOnly)
}

// MarkAsRead marks a notification as read
func (s *Service) MarkAsRead(ctx context.Context, id, userID int64) error {
	n, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return err
	}
	if n == nil {
		return ErrNotificationNotFound
	}
	if n.RecipientID != userID {
		return ErrNotRecipient
	}

	return s.repo.MarkAsRead(ctx, id)
}

// MarkAllAsRead marks all notifications as read for a user
func (s *Service) MarkAllAsRead(ctx context.Context, userID int64) error {
	return s.repo.MarkAllAsRead(ctx, userID)
}

// GetUnreadCount returns the count of unread notifications
func (s *Service) GetUnreadCount(ctx context.Context, userID int64) (int, error) {
	return s.repo.GetUnreadCount(ctx, userID)
}

// ExpenseActivity describes a change to an expense.
type ExpenseActivity struct {
	ExpenseID   int64
	ActorID     int64
	Action      Action
	Description string
	PayerID     int64
	Shares      map[int64]money.Amount
}

// NotifyExpense tells the payer and every participant, except whoever made
// the change, what happened to the expense.
func (s *Service) NotifyExpense(ctx context.Context, a ExpenseActivity) error {
	recipients := make([]int64, 0, len(a.Shares)+1)
	if a.PayerID != a.ActorID {
		recipients = append(recipients, a.PayerID)
	}
	for id := range a.Shares {
		if id != a.ActorID && id != a.PayerID {
			recipients = append(recipients, id)
		}
	}
	if len(recipients) == 0 {
		return nil
	}
	slices.Sort(recipients)

	names, err := s.names(ctx, append(recipients, a.ActorID))
	if err != nil {
		return err
	}
	actor := names.of(a.ActorID)

	entity := EntityExpense
	notifications := make([]*Notification, 0, len(recipients))
	for _, id := range recipients {
		var msg string
		share, hasShare := a.Shares[id]
		switch {
		case a.Action == ActionDeleted:
			msg = fmt.Sprintf("%s deleted %q", actor, a.Description)
		case hasShare:
			msg = fmt.Sprintf("%s %s %q: your share is %s", actor, a.Action, a.Description, share.Format())
		default:
			msg = fmt.Sprintf("%s %s %q, which you paid", actor, a.Action, a.Description)
		}
		notifications = append(notifications, &Notification{
			RecipientID:       id,
			Message:           msg,
			RelatedEntityType: &entity,
			RelatedEntityID:   &a.ExpenseID,
		})
	}

	return s.repo.CreateMany(ctx, notifications)
}

// SettlementActivity describes a recorded or removed payment.
type SettlementActivity struct {
	SettlementID int64
	ActorID      int64
	Action       Action
	PayerID      int64
	PayeeID      int64
	Amount       money.Amount
}

// NotifySettlement tells both parties, except whoever made the change,
// about the payment.
func (s *Service) NotifySettlement(ctx context.Context, a SettlementActivity) error {
	names, err := s.names(ctx, []int64{a.ActorID, a.PayerID, a.PayeeID})
	if err != nil {
		return err
	}

	entity := EntitySettlement
	amount := a.Amount.Format()
	var notifications []*Notification
	add := func(recipient int64, msg string) {
		if recipient == a.ActorID {
			return
		}
		notifications = append(notifications, &Notification{
			RecipientID:       recipient,
			Message:           msg,
			RelatedEntityType: &entity,
			RelatedEntityID:   &a.SettlementID,
		})
	}

	if a.Action == ActionDeleted {
		add(a.PayerID, fmt.Sprintf("%s deleted your payment of %s to %s", names.of(a.ActorID), amount, names.of(a.PayeeID)))
		add(a.PayeeID, fmt.Sprintf("%s deleted a payment of %s from %s", names.of(a.ActorID), amount, names.of(a.PayerID)))
	} else {
		add(a.PayerID, fmt.Sprintf("%s recorded that you paid %s %s", names.of(a.ActorID), names.of(a.PayeeID), amount))
		add(a.PayeeID, fmt.Sprintf("%s paid you %s", names.of(a.PayerID), amount))
	}

	return s.repo.CreateMany(ctx, notifications)
}

// MembershipActivity describes someone joining or leaving a group.
type MembershipActivity struct {
	GroupID   int64
	GroupName string
	ActorID   int64
	UserID    int64
	Action    Action
}

// NotifyMembership tells a user they were added to or removed from a group.
// People who leave on their own hear nothing.
func (s *Service) NotifyMembership(ctx context.Context, a MembershipActivity) error {
	if a.UserID == a.ActorID {
		return nil
	}
	names, err := s.names(ctx, []int64{a.ActorID})
	if err != nil {
		return err
	}

	var msg string
	switch a.Action {
	case ActionAdded:
		msg = fmt.Sprintf("%s added you to %q", names.of(a.ActorID), a.GroupName)
	case ActionDeleted:
		msg = fmt.Sprintf("%s removed you from %q", names.of(a.ActorID), a.GroupName)
	default:
		return nil
	}

	entity := EntityGroup
	return s.repo.CreateMany(ctx, []*Notification{{
		RecipientID:       a.UserID,
		Message:           msg,
		RelatedEntityType: &entity,
		RelatedEntityID:   &a.GroupID,
	}})
}

type nameMap map[int64]string

func (m nameMap) of(id int64) string {
	if name, ok := m[id]; ok && name != "" {
		return name
	}
	return fmt.Sprintf("user #%d", id)
}

func (s *Service) names(ctx context.Context, ids []int64) (nameMap, error) {
	if s.directory == nil {
		return nameMap{}, nil
	}
	names, err := s.directory.Usernames(ctx, ids)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve usernames: %w", err)
	}
	return names, nil
}
