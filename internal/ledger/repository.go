package ledger

import (
	"context"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/taskflow/backend/internal/models"
)

// Repository is the PostgreSQL-backed Store.
type Repository struct {
	pool *pgxpool.Pool
}

func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

var _ Store = (*Repository)(nil)

// DeductCoins subtracts amount only if the balance covers it. The check and the
// write are one statement, so two concurrent debits can never both pass.
// Returns pgx.ErrNoRows when no row was updated.
func (r *Repository) DeductCoins(ctx context.Context, tx pgx.Tx, userID uuid.UUID, amount int) (int, error) {
	var balance int
	err := tx.QueryRow(ctx, `
		UPDATE users SET coins = coins - $1, updated_at = now()
		WHERE id = $2 AND coins >= $1
		RETURNING coins
	`, amount, userID).Scan(&balance)
	return balance, err
}

// AddCoins returns pgx.ErrNoRows when the user does not exist.
func (r *Repository) AddCoins(ctx context.Context, tx pgx.Tx, userID uuid.UUID, amount int) (int, error) {
	var balance int
	err := tx.QueryRow(ctx, `
		UPDATE users SET coins = coins + $1, updated_at = now()
		WHERE id = $2
		RETURNING coins
	`, amount, userID).Scan(&balance)
	return balance, err
}

func (r *Repository) UserExists(ctx context.Context, tx pgx.Tx, userID uuid.UUID) (bool, error) {
	var exists bool
	err := tx.QueryRow(ctx, `SELECT EXISTS (SELECT 1 FROM users WHERE id = $1)`, userID).Scan(&exists)
	return exists, err
}

func (r *Repository) InsertEntry(ctx context.Context, tx pgx.Tx, e *models.CoinEntry) error {
	return tx.QueryRow(ctx, `
		INSERT INTO coin_ledger (id, user_id, entry_type, amount, balance_after, task_id, submission_id, withdrawal_id, payment_id)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		RETURNING created_at
	`, e.ID, e.UserID, e.EntryType, e.Amount, e.BalanceAfter, e.TaskID, e.SubmissionID, e.WithdrawalID, e.PaymentID).Scan(&e.CreatedAt)
}

func (r *Repository) Balance(ctx context.Context, userID uuid.UUID) (int, error) {
	var balance int
	err := r.pool.QueryRow(ctx, `SELECT coins FROM users WHERE id = $1`, userID).Scan(&balance)
	return balance, err
}

func (r *Repository) History(ctx context.Context, userID uuid.UUID, limit int) ([]*models.CoinEntry, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT id, user_id, entry_type, amount, balance_after, task_id, submission_id, withdrawal_id, payment_id, created_at
		FROM coin_ledger WHERE user_id = $1 ORDER BY created_at DESC LIMIT $2
	`, userID, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var list []*models.CoinEntry
	for rows.Next() {
		var e models.CoinEntry
		if err := rows.Scan(&e.ID, &e.UserID, &e.EntryType, &e.Amount, &e.BalanceAfter, &e.TaskID, &e.SubmissionID, &e.WithdrawalID, &e.PaymentID, &e.CreatedAt); err != nil {
			return nil, err
		}
		list = append(list, &e)
	}
	return list, rows.Err()
}
