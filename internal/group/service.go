package group

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/fkhayef/splitledger/internal/balance"
	"github.com/fkhayef/splitledger/internal/feed"
	"github.com/fkhayef/splitledger/internal/notification"
	"github.com/fkhayef/splitledger/internal/validate"
)

// Common errors
var (
	ErrGroupNotFound       = errors.New("group not found")
	ErrMemberNotFound      = errors.New("member not found")
	ErrMemberAlreadyExists = errors.New("user is already a member of this group")
	ErrNotMember           = errors.New("not a member of this group")
	ErrNotAuthorized       = errors.New("not authorized to perform this action")
	ErrOutstandingBalance  = errors.New("member still has an outstanding balance in this group")
	ErrNameRequired        = errors.New("group name is required")
	ErrInvalidRole         = errors.New("invalid member role")
)

// Store is the persistence the service needs.
type Store interface {
	Create(ctx context.Context, g *Group, memberIDs []int64) (*Group, error)
	GetByID(ctx context.Context, id int64) (*Group, error)
	ListByUserID(ctx context.Context, userID int64, limit, offset int) ([]*Group, int, error)
	Update(ctx context.Context, id int64, req *UpdateGroupRequest) (*Group, error)
	Delete(ctx context.Context, id int64) ([]feed.Pair, error)
	AddMember(ctx context.Context, groupID, userID int64, role MemberRole) (*Member, error)
	GetMember(ctx context.Context, groupID, userID int64) (*Member, error)
	GetMembers(ctx context.Context, groupID int64) ([]*Member, error)
	MemberIDs(ctx context.Context, groupID int64) ([]int64, error)
	RemoveMember(ctx context.Context, groupID, userID int64) error
}

// BalanceChecker lists a member's balances with each counterparty inside
// a group. Positive means the counterparty owes them.
type BalanceChecker interface {
	OpenBalances(ctx context.Context, groupID, userID int64) ([]balance.Entry, error)
}

// Notifier tells people about membership changes.
type Notifier interface {
	NotifyMembership(ctx context.Context, a notification.MembershipActivity) error
}

// Service handles group business logic
type Service struct {
	repo      Store
	balances  BalanceChecker
	publisher feed.Publisher
	notifier  Notifier
}

// NewService creates a new group service
func NewService(repo Store) *Service {
	return &Service{repo: repo}
}

// SetBalanceChecker wires the balance source used to guard member removal
// and group deletion. Without one both are always allowed.
func (s *Service) SetBalanceChecker(b BalanceChecker) {
	s.balances = b
}

// SetPublisher wires where membership changes are announced.
func (s *Service) SetPublisher(p feed.Publisher) {
	s.publisher = p
}

// SetNotifier wires who hears about being added or removed.
func (s *Service) SetNotifier(n Notifier) {
	s.notifier = n
}

// Create creates a new group with the creator as admin
func (s *Service) Create(ctx context.Context, creatorID int64, req *CreateGroupRequest) (*Group, error) {
	name := strings.TrimSpace(req.Name)
	if name == "" {
		return nil, ErrNameRequired
	}

	return s.repo.Create(ctx, &Group{
		Name:        name,
		Description: req.Description,
		CreatedByID: creatorID,
	}, req.MemberIDs)
}

// GetByIDWithMembers retrieves a group with all its members. Only members
// may see it.
func (s *Service) GetByIDWithMembers(ctx context.Context, id, viewerID int64) (*Group, []*Member, error) {
	g, err := s.getGroup(ctx, id)
	if err != nil {
		return nil, nil, err
	}

	members, err := s.repo.GetMembers(ctx, id)
	if err != nil {
		return nil, nil, err
	}
	for _, m := range members {
		if m.UserID == viewerID {
			return g, members, nil
		}
	}
	return nil, nil, ErrNotMember
}

// ListByUserID retrieves all groups for a user
func (s *Service) ListByUserID(ctx context.Context, userID int64, page, perPage int) ([]*Group, int, error) {
	if page < 1 {
		page = 1
	}
	if perPage < 1 || perPage > 100 {
		perPage = 20
	}

	offset := (page - 1) * perPage
	return s.repo.ListByUserID(ctx, userID, perPage, offset)
}

// Update modifies an existing group. Admins only.
func (s *Service) Update(ctx context.Context, id, callerID int64, req *UpdateGroupRequest) (*Group, error) {
	if _, err := s.requireAdmin(ctx, id, callerID); err != nil {
		return nil, err
	}
	if req.Name != nil && strings.TrimSpace(*req.Name) == "" {
		return nil, ErrNameRequired
	}

	g, err := s.repo.Update(ctx, id, req)
	if err != nil {
		return nil, err
	}
	if g == nil {
		return nil, ErrGroupNotFound
	}
	return g, nil
}

// Delete removes a group. Admins only, and only once every member is
// settled up with every other, since the group's expenses go with it.
func (s *Service) Delete(ctx context.Context, id, callerID int64) error {
	if _, err := s.requireAdmin(ctx, id, callerID); err != nil {
		return err
	}

	members, err := s.repo.MemberIDs(ctx, id)
	if err != nil {
		return err
	}
	for _, uid := range members {
		if err := s.checkSettled(ctx, id, uid); err != nil {
			return err
		}
	}

	pairs, err := s.repo.Delete(ctx, id)
	if err != nil {
		return err
	}

	s.publish(ctx, feed.NewInvalidation(feed.KindGroupDeleted, []int64{id}, pairs))
	return nil
}

// AddMember adds a user to a group. Any member may add people; only an
// admin may add another admin.
func (s *Service) AddMember(ctx context.Context, groupID, callerID int64, req *AddMemberRequest) (*Member, error) {
	g, err := s.getGroup(ctx, groupID)
	if err != nil {
		return nil, err
	}

	caller, err := s.repo.GetMember(ctx, groupID, callerID)
	if err != nil {
		return nil, err
	}
	if caller == nil {
		return nil, ErrNotMember
	}

	role := req.Role
	switch role {
	case "":
		role = MemberRoleMember
	case MemberRoleMember:
	case MemberRoleAdmin:
		if !caller.IsAdmin() {
			return nil, ErrNotAuthorized
		}
	default:
		return nil, fmt.Errorf("%w: %q", ErrInvalidRole, role)
	}

	existing, err := s.repo.GetMember(ctx, groupID, req.UserID)
	if err != nil {
		return nil, err
	}
	if existing != nil {
		return nil, ErrMemberAlreadyExists
	}

	m, err := s.repo.AddMember(ctx, groupID, req.UserID, role)
	if err != nil {
		return nil, err
	}

	s.announce(ctx, groupID)
	s.notify(ctx, g, callerID, req.UserID, notification.ActionAdded)
	return m, nil
}

// GetMembers retrieves all members of a group
func (s *Service) GetMembers(ctx context.Context, groupID, viewerID int64) ([]*Member, error) {
	_, members, err := s.GetByIDWithMembers(ctx, groupID, viewerID)
	return members, err
}

// MemberIDs lists the user ids of a group's members in join order.
func (s *Service) MemberIDs(ctx context.Context, groupID int64) ([]int64, error) {
	return s.repo.MemberIDs(ctx, groupID)
}

// RemoveMember removes a user from a group. Admins may remove anyone and
// members may leave. Nobody leaves while they owe or are owed money in the
// group.
func (s *Service) RemoveMember(ctx context.Context, groupID, callerID, userID int64) error {
	g, err := s.getGroup(ctx, groupID)
	if err != nil {
		return err
	}
	if callerID != userID {
		if _, err := s.requireAdmin(ctx, groupID, callerID); err != nil {
			return err
		}
	}

	m, err := s.repo.GetMember(ctx, groupID, userID)
	if err != nil {
		return err
	}
	if m == nil {
		return ErrMemberNotFound
	}

	if err := s.checkSettled(ctx, groupID, userID); err != nil {
		return err
	}

	if err := s.repo.RemoveMember(ctx, groupID, userID); err != nil {
		return err
	}

	s.announce(ctx, groupID)
	s.notify(ctx, g, callerID, userID, notification.ActionDeleted)
	return nil
}

func (s *Service) getGroup(ctx context.Context, id int64) (*Group, error) {
	g, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if g == nil {
		return nil, ErrGroupNotFound
	}
	return g, nil
}

func (s *Service) requireAdmin(ctx context.Context, groupID, userID int64) (*Member, error) {
	if _, err := s.getGroup(ctx, groupID); err != nil {
		return nil, err
	}
	m, err := s.repo.GetMember(ctx, groupID, userID)
	if err != nil {
		return nil, err
	}
	if m == nil {
		return nil, ErrNotMember
	}
	if !m.IsAdmin() {
		return nil, ErrNotAuthorized
	}
	return m, nil
}

func (s *Service) checkSettled(ctx context.Context, groupID, userID int64) error {
	if s.balances == nil {
		return nil
	}
	entries, err := s.balances.OpenBalances(ctx, groupID, userID)
	if err != nil {
		return err
	}
	// A zero net can hide debts that run in a circle.
	for _, e := range entries {
		if !validate.IsSettled(e.Amount) {
			return fmt.Errorf("%w: user %d is at %s with user %d", ErrOutstandingBalance, userID, e.Amount, e.UserID)
		}
	}
	return nil
}

func (s *Service) announce(ctx context.Context, groupID int64) {
	s.publish(ctx, feed.NewInvalidation(feed.KindMembersChanged, []int64{groupID}, nil))
}

func (s *Service) publish(ctx context.Context, inv feed.Invalidation) {
	if s.publisher == nil {
		return
	}
	if err := s.publisher.Publish(ctx, inv); err != nil {
		slog.WarnContext(ctx, "failed to publish invalidation", "kind", inv.Kind, "group_ids", inv.GroupIDs, "error", err)
	}
}

func (s *Service) notify(ctx context.Context, g *Group, actorID, userID int64, action notification.Action) {
	if s.notifier == nil {
		return
	}
	err := s.notifier.NotifyMembership(ctx, notification.MembershipActivity{
		GroupID:   g.ID,
		GroupName: g.Name,
		ActorID:   actorID,
		UserID:    userID,
		Action:    action,
	})
	if err != nil {
		slog.WarnContext(ctx, "failed to notify membership change", "group_id", g.ID, "user_id", userID, "error", err)
	}
}
