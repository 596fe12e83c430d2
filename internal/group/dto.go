package group

import "time"

// CreateGroupRequest creates a group with the caller as admin. MemberIDs
// join as plain members.
type CreateGroupRequest struct {
	Name        string  `json:"name"`
	Description *string `json:"description,omitempty"`
	MemberIDs   []int64 `json:"member_ids,omitempty"`
}

// UpdateGroupRequest renames or redescribes a group; nil fields are kept
type UpdateGroupRequest struct {
	Name        *string `json:"name,omitempty"`
	Description *string `json:"description,omitempty"`
}

// AddMemberRequest adds a user; Role defaults to MEMBER
type AddMemberRequest struct {
	UserID int64      `json:"user_id"`
	Role   MemberRole `json:"role,omitempty"`
}

type GroupResponse struct {
	ID          int64             `json:"id"`
	Name        string            `json:"name"`
	Description *string           `json:"description,omitempty"`
	CreatedByID int64             `json:"created_by_id"`
	CreatedAt   string            `json:"created_at"`
	MemberCount int               `json:"member_count,omitempty"`
	Members     []*MemberResponse `json:"members,omitempty"`
}

type MemberResponse struct {
	UserID   int64      `json:"user_id"`
	Username string     `json:"username"`
	Email    string     `json:"email"`
	Role     MemberRole `json:"role"`
	JoinedAt string     `json:"joined_at"`
}

func (g *Group) ToResponse() *GroupResponse {
	return &GroupResponse{
		ID:          g.ID,
		Name:        g.Name,
		Description: g.Description,
		CreatedByID: g.CreatedByID,
		CreatedAt:   g.CreatedAt.Format(time.RFC3339),
	}
}

// WithMembers returns g's response with its current members attached.
func (g *Group) WithMembers(members []*Member) *GroupResponse {
	resp := g.ToResponse()
	resp.MemberCount = len(members)
	resp.Members = make([]*MemberResponse, len(members))
	for i, m := range members {
		resp.Members[i] = m.ToResponse()
	}
	return resp
}

func (m *Member) ToResponse() *MemberResponse {
	return &MemberResponse{
		UserID:   m.UserID,
		Username: m.Username,
		Email:    m.Email,
		Role:     m.Role,
		JoinedAt: m.JoinedAt.Format(time.RFC3339),
	}
}
