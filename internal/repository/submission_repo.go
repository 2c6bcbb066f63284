package repository

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/taskflow/backend/internal/models"
)

const submissionColumns = `id, task_id, task_title, worker_id, worker_email, worker_name, buyer_id, buyer_email, buyer_name,
	payable_amount, details, status, submitted_at, reviewed_at`

type SubmissionRepo struct {
	pool *pgxpool.Pool
}

func NewSubmissionRepo(pool *pgxpool.Pool) *SubmissionRepo {
	return &SubmissionRepo{pool: pool}
}

func scanSubmission(row pgx.Row) (*models.Submission, error) {
	var s models.Submission
	err := row.Scan(&s.ID, &s.TaskID, &s.TaskTitle, &s.WorkerID, &s.WorkerEmail, &s.WorkerName, &s.BuyerID, &s.BuyerEmail, &s.BuyerName,
		&s.PayableAmount, &s.Details, &s.Status, &s.SubmittedAt, &s.ReviewedAt)
	if err != nil {
		return nil, err
	}
	return &s, nil
}

// Create inserts a pending submission. A second submission for the same
// (task, worker) fails with a unique violation (23505).
func (r *SubmissionRepo) Create(ctx context.Context, tx pgx.Tx, s *models.Submission) error {
	return tx.QueryRow(ctx, `
		INSERT INTO submissions (id, task_id, task_title, worker_id, worker_email, worker_name, buyer_id, buyer_email, buyer_name,
			payable_amount, details, status)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)
		RETURNING submitted_at
	`, s.ID, s.TaskID, s.TaskTitle, s.WorkerID, s.WorkerEmail, s.WorkerName, s.BuyerID, s.BuyerEmail, s.BuyerName,
		s.PayableAmount, s.Details, s.Status).Scan(&s.SubmittedAt)
}

func (r *SubmissionRepo) ExistsForWorker(ctx context.Context, tx pgx.Tx, taskID, workerID uuid.UUID) (bool, error) {
	var exists bool
	err := tx.QueryRow(ctx, `SELECT EXISTS (SELECT 1 FROM submissions WHERE task_id = $1 AND worker_id = $2)`, taskID, workerID).Scan(&exists)
	return exists, err
}

func (r *SubmissionRepo) GetByID(ctx context.Context, id uuid.UUID) (*models.Submission, error) {
	return scanSubmission(r.pool.QueryRow(ctx, `SELECT `+submissionColumns+` FROM submissions WHERE id = $1`, id))
}

// GetByIDForUpdate locks the submission row so that concurrent reviews queue
// behind each other. Call within a transaction.
func (r *SubmissionRepo) GetByIDForUpdate(ctx context.Context, tx pgx.Tx, id uuid.UUID) (*models.Submission, error) {
	return scanSubmission(tx.QueryRow(ctx, `SELECT `+submissionColumns+` FROM submissions WHERE id = $1 FOR UPDATE`, id))
}

// Finalize moves a pending submission to a terminal status. Returns
// pgx.ErrNoRows if the row is missing or no longer pending.
func (r *SubmissionRepo) Finalize(ctx context.Context, tx pgx.Tx, id uuid.UUID, status string, at time.Time) error {
	tag, err := tx.Exec(ctx, `
		UPDATE submissions SET status = $2, reviewed_at = $3
		WHERE id = $1 AND status = 'pending'
	`, id, status, at)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return pgx.ErrNoRows
	}
	return nil
}

func (r *SubmissionRepo) DeleteByTask(ctx context.Context, tx pgx.Tx, taskID uuid.UUID) (int64, error) {
	tag, err := tx.Exec(ctx, `DELETE FROM submissions WHERE task_id = $1`, taskID)
	if err != nil {
		return 0, err
	}
	return tag.RowsAffected(), nil
}

// ListByWorker returns one page of the worker's submissions and the total count.
func (r *SubmissionRepo) ListByWorker(ctx context.Context, workerID uuid.UUID, limit, offset int) ([]*models.Submission, int, error) {
	var total int
	if err := r.pool.QueryRow(ctx, `SELECT count(*) FROM submissions WHERE worker_id = $1`, workerID).Scan(&total); err != nil {
		return nil, 0, err
	}
	list, err := r.query(ctx, `SELECT `+submissionColumns+` FROM submissions WHERE worker_id = $1
		ORDER BY submitted_at DESC LIMIT $2 OFFSET $3`, workerID, limit, offset)
	return list, total, err
}

func (r *SubmissionRepo) ListByTask(ctx context.Context, taskID uuid.UUID) ([]*models.Submission, error) {
	return r.query(ctx, `SELECT `+submissionColumns+` FROM submissions WHERE task_id = $1 ORDER BY submitted_at DESC`, taskID)
}

func (r *SubmissionRepo) ListPendingByBuyer(ctx context.Context, buyerID uuid.UUID) ([]*models.Submission, error) {
	return r.query(ctx, `SELECT `+submissionColumns+` FROM submissions WHERE buyer_id = $1 AND status = 'pending'
		ORDER BY submitted_at DESC`, buyerID)
}

// ListPendingByWorkerForUpdate locks the worker's pending submissions, ordered
// by id so that concurrent callers lock in the same order.
func (r *SubmissionRepo) ListPendingByWorkerForUpdate(ctx context.Context, tx pgx.Tx, workerID uuid.UUID) ([]*models.Submission, error) {
	return collectSubmissions(tx.Query(ctx, `SELECT `+submissionColumns+` FROM submissions
		WHERE worker_id = $1 AND status = 'pending' ORDER BY id FOR UPDATE`, workerID))
}

func (r *SubmissionRepo) query(ctx context.Context, sql string, args ...any) ([]*models.Submission, error) {
	return collectSubmissions(r.pool.Query(ctx, sql, args...))
}

func collectSubmissions(rows pgx.Rows, err error) ([]*models.Submission, error) {
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var list []*models.Submission
	for rows.Next() {
		s, err := scanSubmission(rows)
		if err != nil {
			return nil, err
		}
		list = append(list, s)
	}
	return list, rows.Err()
}
