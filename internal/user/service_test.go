package user

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeStore struct {
	users []*User
}

func (f *fakeStore) Create(_ context.Context, req *CreateUserRequest) (*User, error) {
	u := &User{ID: int64(len(f.users) + 1), Username: req.Username, Email: req.Email}
	f.users = append(f.users, u)
	return u, nil
}

func (f *fakeStore) GetByID(_ context.Context, id int64) (*User, error) {
	for _, u := range f.users {
		if u.ID == id {
			return u, nil
		}
	}
	return nil, nil
}

func (f *fakeStore) GetByEmail(_ context.Context, email string) (*User, error) {
	for _, u := range f.users {
		if u.Email == email {
			return u, nil
		}
	}
	return nil, nil
}

func (f *fakeStore) GetByIDs(_ context.Context, ids []int64) ([]*User, error) {
	var out []*User
	for _, id := range ids {
		if u, _ := f.GetByID(context.Background(), id); u != nil {
			out = append(out, u)
		}
	}
	return out, nil
}

func (f *fakeStore) List(_ context.Context, limit, offset int) ([]*User, int, error) {
	return f.users, len(f.users), nil
}

func (f *fakeStore) Update(_ context.Context, id int64, req *UpdateUserRequest) (*User, error) {
	u, _ := f.GetByID(context.Background(), id)
	if u == nil {
		return nil, nil
	}
	if req.Username != nil {
		u.Username = *req.Username
	}
	return u, nil
}

func TestCreate(t *testing.T) {
	tests := []struct {
		name    string
		req     CreateUserRequest
		wantErr error
	}{
		{name: "valid", req: CreateUserRequest{Username: "alice", Email: "Alice@Example.com "}},
		{name: "short username", req: CreateUserRequest{Username: "al", Email: "al@example.com"}, wantErr: ErrInvalidProfile},
		{name: "bad email", req: CreateUserRequest{Username: "alice", Email: "not-an-email"}, wantErr: ErrInvalidProfile},
		{name: "email taken", req: CreateUserRequest{Username: "alice2", Email: "bob@example.com"}, wantErr: ErrEmailAlreadyInUse},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc := NewService(&fakeStore{users: []*User{{ID: 1, Username: "bob", Email: "bob@example.com"}}})
			u, err := svc.Create(context.Background(), &tt.req)
			if tt.wantErr != nil {
				assert.ErrorIs(t, err, tt.wantErr)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, "alice@example.com", u.Email)
		})
	}
}

func TestUsernames(t *testing.T) {
	full := "Bob Stone"
	svc := NewService(&fakeStore{users: []*User{
		{ID: 1, Username: "alice"},
		{ID: 2, Username: "bob", FullName: &full},
	}})

	names, err := svc.Usernames(context.Background(), []int64{1, 2, 3})
	require.NoError(t, err)
	assert.Equal(t, map[int64]string{1: "alice", 2: "Bob Stone"}, names)
}

func TestUpdateOnlySelf(t *testing.T) {
	svc := NewService(&fakeStore{users: []*User{{ID: 1, Username: "alice"}}})
	name := "  alicia "

	_, err := svc.Update(context.Background(), 1, 2, &UpdateUserRequest{Username: &name})
	assert.ErrorIs(t, err, ErrNotSelf)

	u, err := svc.Update(context.Background(), 1, 1, &UpdateUserRequest{Username: &name})
	require.NoError(t, err)
	assert.Equal(t, "alicia", u.Username)
}
