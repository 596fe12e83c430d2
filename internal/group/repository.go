package group

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/fkhayef/splitledger/internal/database"
	"github.com/fkhayef/splitledger/internal/feed"
)

// Repository handles group data persistence
type Repository struct {
	db *sql.DB
}

// NewRepository creates a new group repository
func NewRepository(db *sql.DB) *Repository {
	return &Repository{db: db}
}

const groupColumns = `g.id, g.name, g.description, g.created_by, g.created_at`

func scanGroup(row interface{ Scan(...any) error }) (*Group, error) {
	g := &Group{}
	err := row.Scan(&g.ID, &g.Name, &g.Description, &g.CreatedByID, &g.CreatedAt)
	return g, err
}

// Create inserts a group, its creator as admin and any initial members in
// one transaction.
func (r *Repository) Create(ctx context.Context, g *Group, memberIDs []int64) (*Group, error) {
	var id int64
	err := database.WithTx(ctx, r.db, func(tx *sql.Tx) error {
		query := `
			INSERT INTO groups (name, description, created_by)
			VALUES ($1, $2, $3)
			RETURNING id
		`
		if err := tx.QueryRowContext(ctx, query, g.Name, g.Description, g.CreatedByID).Scan(&id); err != nil {
			return fmt.Errorf("failed to create group: %w", err)
		}

		if err := insertMember(ctx, tx, id, g.CreatedByID, MemberRoleAdmin); err != nil {
			return err
		}
		for _, uid := range memberIDs {
			if uid == g.CreatedByID {
				continue
			}
			if err := insertMember(ctx, tx, id, uid, MemberRoleMember); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return r.GetByID(ctx, id)
}

func insertMember(ctx context.Context, tx database.Tx, groupID, userID int64, role MemberRole) error {
	query := `
		INSERT INTO group_members (group_id, user_id, role)
		VALUES ($1, $2, $3)
		ON CONFLICT (group_id, user_id)
		DO UPDATE SET role = EXCLUDED.role, joined_at = NOW(), left_at = NULL
		WHERE group_members.left_at IS NOT NULL
	`
	if _, err := tx.ExecContext(ctx, query, groupID, userID, role); err != nil {
		return fmt.Errorf("failed to add member %d: %w", userID, err)
	}
	return nil
}

// GetByID retrieves a group by its ID
func (r *Repository) GetByID(ctx context.Context, id int64) (*Group, error) {
	query := `SELECT ` + groupColumns + ` FROM groups g WHERE g.id = $1`

	g, err := scanGroup(r.db.QueryRowContext(ctx, query, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to get group: %w", err)
	}
	return g, nil
}

// ListByUserID retrieves a page of the groups a user belongs to
func (r *Repository) ListByUserID(ctx context.Context, userID int64, limit, offset int) ([]*Group, int, error) {
	var total int
	countQuery := `SELECT COUNT(*) FROM group_members WHERE user_id = $1 AND left_at IS NULL`
	if err := r.db.QueryRowContext(ctx, countQuery, userID).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("failed to count groups: %w", err)
	}

	query := `
		SELECT ` + groupColumns + `
		FROM groups g
		JOIN group_members gm ON g.id = gm.group_id
		WHERE gm.user_id = $1 AND gm.left_at IS NULL
		ORDER BY g.created_at DESC, g.id DESC
		LIMIT $2 OFFSET $3
	`

	rows, err := r.db.QueryContext(ctx, query, userID, limit, offset)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to list groups: %w", err)
	}
	defer rows.Close()

	var groups []*Group
	for rows.Next() {
		g, err := scanGroup(rows)
		if err != nil {
			return nil, 0, fmt.Errorf("failed to scan group: %w", err)
		}
		groups = append(groups, g)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, fmt.Errorf("failed to list groups: %w", err)
	}

	return groups, total, nil
}

// Update modifies an existing group
func (r *Repository) Update(ctx context.Context, id int64, req *UpdateGroupRequest) (*Group, error) {
	query := `
		UPDATE groups g
		SET name = COALESCE($2, g.name),
		    description = COALESCE($3, g.description)
		WHERE g.id = $1
		RETURNING ` + groupColumns

	g, err := scanGroup(r.db.QueryRowContext(ctx, query, id, req.Name, req.Description))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to update group: %w", err)
	}
	return g, nil
}

// Delete removes a group together with its members, expenses and
// settlements, and returns the pairs of users those rows were between.
func (r *Repository) Delete(ctx context.Context, id int64) ([]feed.Pair, error) {
	var pairs []feed.Pair
	err := database.WithTx(ctx, r.db, func(tx *sql.Tx) error {
		// Locking the row blocks new expenses and settlements in the group
		// until the delete commits.
		var locked int64
		if err := tx.QueryRowContext(ctx, `SELECT id FROM groups WHERE id = $1 FOR UPDATE`, id).Scan(&locked); err != nil {
			if errors.Is(err, sql.ErrNoRows) {
				return ErrGroupNotFound
			}
			return fmt.Errorf("failed to lock group: %w", err)
		}

		var err error
		if pairs, err = ledgerPairs(ctx, tx, id); err != nil {
			return err
		}

		if _, err := tx.ExecContext(ctx, `DELETE FROM groups WHERE id = $1`, id); err != nil {
			return fmt.Errorf("failed to delete group: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return pairs, nil
}

const ledgerPairsQuery = `
	SELECT e.payer_id, s.user_id
	FROM expenses e
	JOIN expense_splits s ON s.expense_id = e.id
	WHERE e.group_id = $1 AND s.user_id <> e.payer_id
	UNION
	SELECT payer_id, payee_id FROM settlements WHERE group_id = $1`

func ledgerPairs(ctx context.Context, tx *sql.Tx, groupID int64) ([]feed.Pair, error) {
	rows, err := tx.QueryContext(ctx, ledgerPairsQuery, groupID)
	if err != nil {
		return nil, fmt.Errorf("failed to get ledger pairs: %w", err)
	}
	defer rows.Close()

	var pairs []feed.Pair
	for rows.Next() {
		var a, b int64
		if err := rows.Scan(&a, &b); err != nil {
			return nil, fmt.Errorf("failed to scan ledger pair: %w", err)
		}
		pairs = append(pairs, feed.NewPair(a, b))
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to get ledger pairs: %w", err)
	}
	return pairs, nil
}

// AddMember adds a user to a group
func (r *Repository) AddMember(ctx context.Context, groupID, userID int64, role MemberRole) (*Member, error) {
	if err := insertMember(ctx, r.db, groupID, userID, role); err != nil {
		return nil, err
	}
	return r.GetMember(ctx, groupID, userID)
}

const memberQuery = `
	SELECT gm.group_id, gm.user_id, gm.role, gm.joined_at, u.username, u.email
	FROM group_members gm
	JOIN users u ON gm.user_id = u.id`

func scanMember(row interface{ Scan(...any) error }) (*Member, error) {
	m := &Member{}
	err := row.Scan(&m.GroupID, &m.UserID, &m.Role, &m.JoinedAt, &m.Username, &m.Email)
	return m, err
}

// GetMember retrieves one membership, or nil when the user is not in the group
func (r *Repository) GetMember(ctx context.Context, groupID, userID int64) (*Member, error) {
	query := memberQuery + ` WHERE gm.group_id = $1 AND gm.user_id = $2 AND gm.left_at IS NULL`

	m, err := scanMember(r.db.QueryRowContext(ctx, query, groupID, userID))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to get member: %w", err)
	}
	return m, nil
}

// GetMembers retrieves all members of a group in the order they joined
func (r *Repository) GetMembers(ctx context.Context, groupID int64) ([]*Member, error) {
	query := memberQuery + ` WHERE gm.group_id = $1 AND gm.left_at IS NULL ORDER BY gm.joined_at, gm.user_id`

	rows, err := r.db.QueryContext(ctx, query, groupID)
	if err != nil {
		return nil, fmt.Errorf("failed to get members: %w", err)
	}
	defer rows.Close()

	var members []*Member
	for rows.Next() {
		m, err := scanMember(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan member: %w", err)
		}
		members = append(members, m)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to get members: %w", err)
	}
	return members, nil
}

// MemberIDs returns the user ids of a group's current members in join
// order.
func (r *Repository) MemberIDs(ctx context.Context, groupID int64) ([]int64, error) {
	return r.memberIDs(ctx, `SELECT user_id FROM group_members
		WHERE group_id = $1 AND left_at IS NULL ORDER BY joined_at, user_id`, groupID)
}

// LedgerMemberIDs returns everyone who has ever belonged to the group,
// former members included, since old expenses still name them.
func (r *Repository) LedgerMemberIDs(ctx context.Context, groupID int64) ([]int64, error) {
	return r.memberIDs(ctx, `SELECT user_id FROM group_members
		WHERE group_id = $1 ORDER BY joined_at, user_id`, groupID)
}

func (r *Repository) memberIDs(ctx context.Context, query string, groupID int64) ([]int64, error) {
	rows, err := r.db.QueryContext(ctx, query, groupID)
	if err != nil {
		return nil, fmt.Errorf("failed to get member ids: %w", err)
	}
	defer rows.Close()

	var ids []int64
	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("failed to scan member id: %w", err)
		}
		ids = append(ids, id)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to get member ids: %w", err)
	}
	return ids, nil
}

// RemoveMember marks a user as having left a group. The row stays so the
// group's history still validates.
func (r *Repository) RemoveMember(ctx context.Context, groupID, userID int64) error {
	result, err := r.db.ExecContext(ctx,
		`UPDATE group_members SET left_at = NOW() WHERE group_id = $1 AND user_id = $2 AND left_at IS NULL`,
		groupID, userID)
	if err != nil {
		return fmt.Errorf("failed to remove member: %w", err)
	}

	if n, _ := result.RowsAffected(); n == 0 {
		return ErrMemberNotFound
	}
	return nil
}
