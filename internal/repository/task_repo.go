package repository

import (
	"context"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/taskflow/backend/internal/models"
)

const taskColumns = `id, buyer_id, buyer_email, buyer_name, title, detail, submission_info, image_url,
	required_workers, payable_amount, filled_count, completion_date, created_at, updated_at`

type TaskRepo struct {
	pool *pgxpool.Pool
}

func NewTaskRepo(pool *pgxpool.Pool) *TaskRepo {
	return &TaskRepo{pool: pool}
}

func scanTask(row pgx.Row) (*models.Task, error) {
	var t models.Task
	err := row.Scan(&t.ID, &t.BuyerID, &t.BuyerEmail, &t.BuyerName, &t.Title, &t.Detail, &t.SubmissionInfo, &t.ImageURL,
		&t.RequiredWorkers, &t.PayableAmount, &t.FilledCount, &t.CompletionDate, &t.CreatedAt, &t.UpdatedAt)
	if err != nil {
		return nil, err
	}
	return &t, nil
}

func (r *TaskRepo) Create(ctx context.Context, tx pgx.Tx, t *models.Task) error {
	return tx.QueryRow(ctx, `
		INSERT INTO tasks (id, buyer_id, buyer_email, buyer_name, title, detail, submission_info, image_url,
			required_workers, payable_amount, filled_count, completion_date)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, 0, $11)
		RETURNING filled_count, created_at, updated_at
	`, t.ID, t.BuyerID, t.BuyerEmail, t.BuyerName, t.Title, t.Detail, t.SubmissionInfo, t.ImageURL,
		t.RequiredWorkers, t.PayableAmount, t.CompletionDate).Scan(&t.FilledCount, &t.CreatedAt, &t.UpdatedAt)
}

func (r *TaskRepo) GetByID(ctx context.Context, id uuid.UUID) (*models.Task, error) {
	return scanTask(r.pool.QueryRow(ctx, `SELECT `+taskColumns+` FROM tasks WHERE id = $1`, id))
}

// GetByIDForUpdate locks the task row. Call within a transaction.
func (r *TaskRepo) GetByIDForUpdate(ctx context.Context, tx pgx.Tx, id uuid.UUID) (*models.Task, error) {
	return scanTask(tx.QueryRow(ctx, `SELECT `+taskColumns+` FROM tasks WHERE id = $1 FOR UPDATE`, id))
}

// IncrementFilled takes one slot if any remain. Returns pgx.ErrNoRows when the
// task is full or missing.
func (r *TaskRepo) IncrementFilled(ctx context.Context, tx pgx.Tx, id uuid.UUID) (int, error) {
	var filled int
	err := tx.QueryRow(ctx, `
		UPDATE tasks SET filled_count = filled_count + 1, updated_at = now()
		WHERE id = $1 AND filled_count < required_workers
		RETURNING filled_count
	`, id).Scan(&filled)
	return filled, err
}

// DecrementFilled frees one slot, never going below zero. Returns pgx.ErrNoRows
// when the task is missing.
func (r *TaskRepo) DecrementFilled(ctx context.Context, tx pgx.Tx, id uuid.UUID) (int, error) {
	var filled int
	err := tx.QueryRow(ctx, `
		UPDATE tasks SET filled_count = GREATEST(filled_count - 1, 0), updated_at = now()
		WHERE id = $1
		RETURNING filled_count
	`, id).Scan(&filled)
	return filled, err
}

// UpdateDetails rewrites the descriptive columns only. required_workers and
// payable_amount are not reachable from here.
func (r *TaskRepo) UpdateDetails(ctx context.Context, tx pgx.Tx, id uuid.UUID, d models.TaskDetails) error {
	tag, err := tx.Exec(ctx, `
		UPDATE tasks SET title = $2, detail = $3, submission_info = $4, updated_at = now()
		WHERE id = $1
	`, id, d.Title, d.Detail, d.SubmissionInfo)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return pgx.ErrNoRows
	}
	return nil
}

func (r *TaskRepo) Delete(ctx context.Context, tx pgx.Tx, id uuid.UUID) error {
	tag, err := tx.Exec(ctx, `DELETE FROM tasks WHERE id = $1`, id)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return pgx.ErrNoRows
	}
	return nil
}

// List returns tasks newest first. With availableOnly set, full tasks are skipped.
func (r *TaskRepo) List(ctx context.Context, availableOnly bool) ([]*models.Task, error) {
	sql := `SELECT ` + taskColumns + ` FROM tasks`
	if availableOnly {
		sql += ` WHERE filled_count < required_workers`
	}
	return r.query(ctx, sql+` ORDER BY created_at DESC`)
}

func (r *TaskRepo) ListByBuyer(ctx context.Context, buyerID uuid.UUID) ([]*models.Task, error) {
	return r.query(ctx, `SELECT `+taskColumns+` FROM tasks WHERE buyer_id = $1 ORDER BY created_at DESC`, buyerID)
}

func (r *TaskRepo) query(ctx context.Context, sql string, args ...any) ([]*models.Task, error) {
	rows, err := r.pool.Query(ctx, sql, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var list []*models.Task
	for rows.Next() {
		t, err := scanTask(rows)
		if err != nil {
			return nil, err
		}
		list = append(list, t)
	}
	return list, rows.Err()
}
