package expense

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/lib/pq"

	"github.com/fkhayef/splitledger/internal/database"
)

// Repository handles expense and split data persistence
type Repository struct {
	db *sql.DB
}

// NewRepository creates a new expense repository
func NewRepository(db *sql.DB) *Repository {
	return &Repository{db: db}
}

const expenseColumns = `
	e.id, e.group_id, e.payer_id, e.created_by, e.description, e.amount_cents,
	e.split_type, e.expense_date, e.receipt_url, e.created_at, e.updated_at, u.username`

func scanExpense(row interface{ Scan(...any) error }) (*Expense, error) {
	e := &Expense{}
	err := row.Scan(
		&e.ID,
		&e.GroupID,
		&e.PayerID,
		&e.CreatedByID,
		&e.Description,
		&e.Amount,
		&e.SplitType,
		&e.Date,
		&e.ReceiptURL,
		&e.CreatedAt,
		&e.UpdatedAt,
		&e.PayerUsername,
	)
	return e, err
}

// Create inserts an expense and its splits in one transaction.
func (r *Repository) Create(ctx context.Context, e *Expense) (*Expense, error) {
	var id int64
	err := database.WithTx(ctx, r.db, func(tx *sql.Tx) error {
		query := `
			INSERT INTO expenses (group_id, payer_id, created_by, description, amount_cents, split_type, expense_date, receipt_url)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
			RETURNING id
		`
		if err := tx.QueryRowContext(ctx, query,
			e.GroupID,
			e.PayerID,
			e.CreatedByID,
			e.Description,
			e.Amount,
			e.SplitType,
			e.Date,
			e.ReceiptURL,
		).Scan(&id); err != nil {
			return fmt.Errorf("failed to create expense: %w", err)
		}
		return replaceSplits(ctx, tx, id, e.Splits)
	})
	if err != nil {
		return nil, err
	}
	return r.GetByID(ctx, id)
}

// Update rewrites an expense row and replaces its whole split set in one
// transaction. It returns nil when the expense no longer exists.
func (r *Repository) Update(ctx context.Context, e *Expense) (*Expense, error) {
	found := true
	err := database.WithTx(ctx, r.db, func(tx *sql.Tx) error {
		query := `
			UPDATE expenses
			SET payer_id = $2, description = $3, amount_cents = $4, split_type = $5,
			    expense_date = $6, receipt_url = $7, updated_at = NOW()
			WHERE id = $1
		`
		result, err := tx.ExecContext(ctx, query,
			e.ID,
			e.PayerID,
			e.Description,
			e.Amount,
			e.SplitType,
			e.Date,
			e.ReceiptURL,
		)
		if err != nil {
			return fmt.Errorf("failed to update expense: %w", err)
		}
		if n, _ := result.RowsAffected(); n == 0 {
			found = false
			return nil
		}
		return replaceSplits(ctx, tx, e.ID, e.Splits)
	})
	if err != nil {
		return nil, err
	}
	if !found {
		return nil, nil
	}
	return r.GetByID(ctx, e.ID)
}

func replaceSplits(ctx context.Context, tx database.Tx, expenseID int64, splits []*Split) error {
	if _, err := tx.ExecContext(ctx, `DELETE FROM expense_splits WHERE expense_id = $1`, expenseID); err != nil {
		return fmt.Errorf("failed to delete splits: %w", err)
	}

	query := `
		INSERT INTO expense_splits (expense_id, user_id, share_cents, position)
		VALUES ($1, $2, $3, $4)
	`
	for i, s := range splits {
		if _, err := tx.ExecContext(ctx, query, expenseID, s.UserID, s.Share, i); err != nil {
			return fmt.Errorf("failed to create split for user %d: %w", s.UserID, err)
		}
	}
	return nil
}

// Delete removes an expense; its splits go with it.
func (r *Repository) Delete(ctx context.Context, id int64) error {
	result, err := r.db.ExecContext(ctx, `DELETE FROM expenses WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("failed to delete expense: %w", err)
	}

	if n, _ := result.RowsAffected(); n == 0 {
		return ErrExpenseNotFound
	}
	return nil
}

// GetByID retrieves an expense with its splits
func (r *Repository) GetByID(ctx context.Context, id int64) (*Expense, error) {
	query := `SELECT ` + expenseColumns + `
		FROM expenses e
		JOIN users u ON e.payer_id = u.id
		WHERE e.id = $1
	`

	e, err := scanExpense(r.db.QueryRowContext(ctx, query, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to get expense: %w", err)
	}

	if err := r.attachSplits(ctx, []*Expense{e}); err != nil {
		return nil, err
	}
	return e, nil
}

// ListByGroupID retrieves a page of a group's expenses, newest first
func (r *Repository) ListByGroupID(ctx context.Context, groupID int64, limit, offset int) ([]*Expense, int, error) {
	var total int
	countQuery := `SELECT COUNT(*) FROM expenses WHERE group_id = $1`
	if err := r.db.QueryRowContext(ctx, countQuery, groupID).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("failed to count expenses: %w", err)
	}

	expenses, err := r.list(ctx, `e.group_id = $1 ORDER BY e.expense_date DESC, e.id DESC LIMIT $2 OFFSET $3`,
		groupID, limit, offset)
	if err != nil {
		return nil, 0, err
	}
	return expenses, total, nil
}

// ListForGroup returns every expense in a group.
func (r *Repository) ListForGroup(ctx context.Context, groupID int64) ([]*Expense, error) {
	return r.list(ctx, `e.group_id = $1 ORDER BY e.id`, groupID)
}

// ListForUser returns every expense the user paid for or shares in, across
// all groups.
func (r *Repository) ListForUser(ctx context.Context, userID int64) ([]*Expense, error) {
	return r.list(ctx, `
		e.payer_id = $1
		OR EXISTS (SELECT 1 FROM expense_splits s WHERE s.expense_id = e.id AND s.user_id = $1)
		ORDER BY e.id`, userID)
}

// ListBetween returns every expense in which one of the two users paid and
// the other holds a share, across all groups.
func (r *Repository) ListBetween(ctx context.Context, a, b int64) ([]*Expense, error) {
	return r.list(ctx, `
		(e.payer_id = $1 AND EXISTS (SELECT 1 FROM expense_splits s WHERE s.expense_id = e.id AND s.user_id = $2))
		OR (e.payer_id = $2 AND EXISTS (SELECT 1 FROM expense_splits s WHERE s.expense_id = e.id AND s.user_id = $1))
		ORDER BY e.id`, a, b)
}

func (r *Repository) list(ctx context.Context, where string, args ...any) ([]*Expense, error) {
	query := `SELECT ` + expenseColumns + `
		FROM expenses e
		JOIN users u ON e.payer_id = u.id
		WHERE ` + where

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list expenses: %w", err)
	}
	defer rows.Close()

	var expenses []*Expense
	for rows.Next() {
		e, err := scanExpense(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan expense: %w", err)
		}
		expenses = append(expenses, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to list expenses: %w", err)
	}

	if err := r.attachSplits(ctx, expenses); err != nil {
		return nil, err
	}
	return expenses, nil
}

// attachSplits loads the splits of every expense with one query.
func (r *Repository) attachSplits(ctx context.Context, expenses []*Expense) error {
	if len(expenses) == 0 {
		return nil
	}

	ids := make([]int64, len(expenses))
	byID := make(map[int64]*Expense, len(expenses))
	for i, e := range expenses {
		ids[i] = e.ID
		byID[e.ID] = e
		e.Splits = nil
	}

	query := `
		SELECT s.expense_id, s.user_id, s.share_cents, s.position, u.username
		FROM expense_splits s
		JOIN users u ON s.user_id = u.id
		WHERE s.expense_id = ANY($1)
		ORDER BY s.expense_id, s.position
	`
	rows, err := r.db.QueryContext(ctx, query, pq.Array(ids))
	if err != nil {
		return fmt.Errorf("failed to get splits: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		s := &Split{}
		if err := rows.Scan(&s.ExpenseID, &s.UserID, &s.Share, &s.Position, &s.Username); err != nil {
			return fmt.Errorf("failed to scan split: %w", err)
		}
		if e, ok := byID[s.ExpenseID]; ok {
			e.Splits = append(e.Splits, s)
		}
	}
	if err := rows.Err(); err != nil {
		return fmt.Errorf("failed to get splits: %w", err)
	}
	return nil
}
