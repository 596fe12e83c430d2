package settlement

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
)

// Repository handles settlement data persistence
type Repository struct {
	db *sql.DB
}

// NewRepository creates a new settlement repository
func NewRepository(db *sql.DB) *Repository {
	return &Repository{db: db}
}

const settlementColumns = `
	s.id, s.group_id, s.payer_id, s.payee_id, s.amount_cents, s.note,
	s.settlement_date, s.created_by, s.created_at,
	p.username AS payer_username, recv.username AS payee_username`

const settlementFrom = `
	FROM settlements s
	JOIN users p ON s.payer_id = p.id
	JOIN users recv ON s.payee_id = recv.id`

func scanSettlement(row interface{ Scan(...any) error }) (*Settlement, error) {
	s := &Settlement{}
	err := row.Scan(
		&s.ID,
		&s.GroupID,
		&s.PayerID,
		&s.PayeeID,
		&s.Amount,
		&s.Note,
		&s.Date,
		&s.CreatedByID,
		&s.CreatedAt,
		&s.PayerUsername,
		&s.PayeeUsername,
	)
	return s, err
}

// Create inserts a new settlement into the database
func (r *Repository) Create(ctx context.Context, s *Settlement) (*Settlement, error) {
	query := `
		INSERT INTO settlements (group_id, payer_id, payee_id, amount_cents, note, settlement_date, created_by)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		RETURNING id
	`

	var id int64
	if err := r.db.QueryRowContext(ctx, query,
		s.GroupID,
		s.PayerID,
		s.PayeeID,
		s.Amount,
		s.Note,
		s.Date,
		s.CreatedByID,
	).Scan(&id); err != nil {
		return nil, fmt.Errorf("failed to create settlement: %w", err)
	}

	return r.GetByID(ctx, id)
}

// GetByID retrieves a settlement by its ID
func (r *Repository) GetByID(ctx context.Context, id int64) (*Settlement, error) {
	query := `SELECT ` + settlementColumns + settlementFrom + ` WHERE s.id = $1`

	s, err := scanSettlement(r.db.QueryRowContext(ctx, query, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to get settlement: %w", err)
	}
	return s, nil
}

// Delete removes a settlement
func (r *Repository) Delete(ctx context.Context, id int64) error {
	result, err := r.db.ExecContext(ctx, `DELETE FROM settlements WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("failed to delete settlement: %w", err)
	}
	if n, _ := result.RowsAffected(); n == 0 {
		return ErrSettlementNotFound
	}
	return nil
}

// ListByUserID retrieves a page of settlements involving a user, newest first
func (r *Repository) ListByUserID(ctx context.Context, userID int64, limit, offset int) ([]*Settlement, int, error) {
	var total int
	countQuery := `SELECT COUNT(*) FROM settlements WHERE payer_id = $1 OR payee_id = $1`
	if err := r.db.QueryRowContext(ctx, countQuery, userID).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("failed to count settlements: %w", err)
	}

	settlements, err := r.list(ctx,
		`s.payer_id = $1 OR s.payee_id = $1 ORDER BY s.settlement_date DESC, s.id DESC LIMIT $2 OFFSET $3`,
		userID, limit, offset)
	if err != nil {
		return nil, 0, err
	}
	return settlements, total, nil
}

// ListForGroup returns every settlement recorded in a group.
func (r *Repository) ListForGroup(ctx context.Context, groupID int64) ([]*Settlement, error) {
	return r.list(ctx, `s.group_id = $1 ORDER BY s.id`, groupID)
}

// ListForUser returns every settlement the user paid or received.
func (r *Repository) ListForUser(ctx context.Context, userID int64) ([]*Settlement, error) {
	return r.list(ctx, `s.payer_id = $1 OR s.payee_id = $1 ORDER BY s.id`, userID)
}

// ListBetween returns every settlement between two users, in either
// direction and across all groups.
func (r *Repository) ListBetween(ctx context.Context, a, b int64) ([]*Settlement, error) {
	return r.list(ctx, `
		(s.payer_id = $1 AND s.payee_id = $2) OR (s.payer_id = $2 AND s.payee_id = $1)
		ORDER BY s.id`, a, b)
}

func (r *Repository) list(ctx context.Context, where string, args ...any) ([]*Settlement, error) {
	query := `SELECT ` + settlementColumns + settlementFrom + ` WHERE ` + where

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list settlements: %w", err)
	}
	defer rows.Close()

	var settlements []*Settlement
	for rows.Next() {
		s, err := scanSettlement(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan settlement: %w", err)
		}
		settlements = append(settlements, s)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to list settlements: %w", err)
	}
	return settlements, nil
}
