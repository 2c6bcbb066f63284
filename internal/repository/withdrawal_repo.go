package repository

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"

	"github.com/taskflow/backend/internal/models"
)

// cash_amount travels as text so decimal values round-trip exactly.
const withdrawalColumns = `id, worker_id, worker_email, worker_name, coins, cash_amount::text, payment_system, account_number,
	status, requested_at, approved_at`

type WithdrawalRepo struct {
	pool *pgxpool.Pool
}

func NewWithdrawalRepo(pool *pgxpool.Pool) *WithdrawalRepo {
	return &WithdrawalRepo{pool: pool}
}

func scanWithdrawal(row pgx.Row) (*models.Withdrawal, error) {
	var w models.Withdrawal
	var cash string
	err := row.Scan(&w.ID, &w.WorkerID, &w.WorkerEmail, &w.WorkerName, &w.Coins, &cash, &w.PaymentSystem, &w.AccountNumber,
		&w.Status, &w.RequestedAt, &w.ApprovedAt)
	if err != nil {
		return nil, err
	}
	if w.CashAmount, err = decimal.NewFromString(cash); err != nil {
		return nil, err
	}
	return &w, nil
}

func (r *WithdrawalRepo) Create(ctx context.Context, tx pgx.Tx, w *models.Withdrawal) error {
	return tx.QueryRow(ctx, `
		INSERT INTO withdrawals (id, worker_id, worker_email, worker_name, coins, cash_amount, payment_system, account_number, status)
		VALUES ($1, $2, $3, $4, $5, $6::numeric, $7, $8, $9)
		RETURNING requested_at
	`, w.ID, w.WorkerID, w.WorkerEmail, w.WorkerName, w.Coins, w.CashAmount.StringFixed(2), w.PaymentSystem, w.AccountNumber, w.Status).
		Scan(&w.RequestedAt)
}

// GetByIDForUpdate locks the withdrawal row. Call within a transaction.
func (r *WithdrawalRepo) GetByIDForUpdate(ctx context.Context, tx pgx.Tx, id uuid.UUID) (*models.Withdrawal, error) {
	return scanWithdrawal(tx.QueryRow(ctx, `SELECT `+withdrawalColumns+` FROM withdrawals WHERE id = $1 FOR UPDATE`, id))
}

// MarkApproved returns pgx.ErrNoRows if the request is missing or not pending.
func (r *WithdrawalRepo) MarkApproved(ctx context.Context, tx pgx.Tx, id uuid.UUID, at time.Time) error {
	tag, err := tx.Exec(ctx, `
		UPDATE withdrawals SET status = 'approved', approved_at = $2
		WHERE id = $1 AND status = 'pending'
	`, id, at)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return pgx.ErrNoRows
	}
	return nil
}

func (r *WithdrawalRepo) ListAll(ctx context.Context) ([]*models.Withdrawal, error) {
	return r.query(ctx, `SELECT `+withdrawalColumns+` FROM withdrawals ORDER BY requested_at DESC`)
}

func (r *WithdrawalRepo) ListByWorker(ctx context.Context, workerID uuid.UUID) ([]*models.Withdrawal, error) {
	return r.query(ctx, `SELECT `+withdrawalColumns+` FROM withdrawals WHERE worker_id = $1 ORDER BY requested_at DESC`, workerID)
}

func (r *WithdrawalRepo) query(ctx context.Context, sql string, args ...any) ([]*models.Withdrawal, error) {
	rows, err := r.pool.Query(ctx, sql, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var list []*models.Withdrawal
	for rows.Next() {
		w, err := scanWithdrawal(rows)
		if err != nil {
			return nil, err
		}
		list = append(list, w)
	}
	return list, rows.Err()
}
