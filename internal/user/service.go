package user

import (
	"context"
	"errors"
	"net/mail"
	"strings"
)

// Common errors
var (
	ErrUserNotFound      = errors.New("user not found")
	ErrEmailAlreadyInUse = errors.New("email already in use")
	ErrAlreadyRegistered = errors.New("username or email already in use")
	ErrInvalidProfile    = errors.New("invalid profile")
	ErrNotSelf           = errors.New("you can only change your own profile")
)

// Store is the persistence the service needs.
type Store interface {
	Create(ctx context.Context, req *CreateUserRequest) (*User, error)
	GetByID(ctx context.Context, id int64) (*User, error)
	GetByEmail(ctx context.Context, email string) (*User, error)
	GetByIDs(ctx context.Context, ids []int64) ([]*User, error)
	List(ctx context.Context, limit, offset int) ([]*User, int, error)
	Update(ctx context.Context, id int64, req *UpdateUserRequest) (*User, error)
}

// Service handles user business logic
type Service struct {
	repo Store
}

// NewService creates a new user service with repository dependency injected
func NewService(repo Store) *Service {
	return &Service{repo: repo}
}

// Create registers a new user
func (s *Service) Create(ctx context.Context, req *CreateUserRequest) (*User, error) {
	req.Username = strings.TrimSpace(req.Username)
	req.Email = strings.ToLower(strings.TrimSpace(req.Email))

	if n := len(req.Username); n < 3 || n > 50 {
		return nil, errors.Join(ErrInvalidProfile, errors.New("username must be 3 to 50 characters"))
	}
	if _, err := mail.ParseAddress(req.Email); err != nil {
		return nil, errors.Join(ErrInvalidProfile, errors.New("email is not valid"))
	}
	if err := checkFullName(req.FullName); err != nil {
		return nil, err
	}

	existing, err := s.repo.GetByEmail(ctx, req.Email)
	if err != nil {
		return nil, err
	}
	if existing != nil {
		return nil, ErrEmailAlreadyInUse
	}

	return s.repo.Create(ctx, req)
}

// GetByID retrieves a user by their ID
func (s *Service) GetByID(ctx context.Context, id int64) (*User, error) {
	u, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if u == nil {
		return nil, ErrUserNotFound
	}
	return u, nil
}

// Usernames maps each known id to the name other people see. Unknown ids
// are left out.
func (s *Service) Usernames(ctx context.Context, ids []int64) (map[int64]string, error) {
	users, err := s.repo.GetByIDs(ctx, ids)
	if err != nil {
		return nil, err
	}
	names := make(map[int64]string, len(users))
	for _, u := range users {
		names[u.ID] = u.DisplayName()
	}
	return names, nil
}

func checkFullName(name *string) error {
	if name == nil {
		return nil
	}
	*name = strings.TrimSpace(*name)
	if len(*name) > 100 {
		return errors.Join(ErrInvalidProfile, errors.New("full name must be at most 100 characters"))
	}
	return nil
}

// List retrieves all users with pagination
func (s *Service) List(ctx context.Context, page, perPage int) ([]*User, int, error) {
	if page < 1 {
		page = 1
	}
	if perPage < 1 || perPage > 100 {
		perPage = 20
	}

	offset := (page - 1) * perPage
	return s.repo.List(ctx, perPage, offset)
}

// Update modifies the caller's own profile
func (s *Service) Update(ctx context.Context, id, callerID int64, req *UpdateUserRequest) (*User, error) {
	if id != callerID {
		return nil, ErrNotSelf
	}
	if req.Username != nil {
		name := strings.TrimSpace(*req.Username)
		if n := len(name); n < 3 || n > 50 {
			return nil, errors.Join(ErrInvalidProfile, errors.New("username must be 3 to 50 characters"))
		}
		req.Username = &name
	}
	if err := checkFullName(req.FullName); err != nil {
		return nil, err
	}

	u, err := s.repo.Update(ctx, id, req)
	if err != nil {
		return nil, err
	}
	if u == nil {
		return nil, ErrUserNotFound
	}
	return u, nil
}
