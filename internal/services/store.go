package services

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/taskflow/backend/internal/models"
)

// TxBeginner starts the transaction that scopes one core operation.
// *pgxpool.Pool satisfies it.
type TxBeginner interface {
	Begin(ctx context.Context) (pgx.Tx, error)
}

type UserStore interface {
	GetByIDTx(ctx context.Context, tx pgx.Tx, id uuid.UUID) (*models.User, error)
}

type TaskStore interface {
	Create(ctx context.Context, tx pgx.Tx, t *models.Task) error
	GetByID(ctx context.Context, id uuid.UUID) (*models.Task, error)
	GetByIDForUpdate(ctx context.Context, tx pgx.Tx, id uuid.UUID) (*models.Task, error)
	IncrementFilled(ctx context.Context, tx pgx.Tx, id uuid.UUID) (int, error)
	DecrementFilled(ctx context.Context, tx pgx.Tx, id uuid.UUID) (int, error)
	UpdateDetails(ctx context.Context, tx pgx.Tx, id uuid.UUID, d models.TaskDetails) error
	Delete(ctx context.Context, tx pgx.Tx, id uuid.UUID) error
	List(ctx context.Context, availableOnly bool) ([]*models.Task, error)
	ListByBuyer(ctx context.Context, buyerID uuid.UUID) ([]*models.Task, error)
}

type SubmissionStore interface {
	Create(ctx context.Context, tx pgx.Tx, s *models.Submission) error
	ExistsForWorker(ctx context.Context, tx pgx.Tx, taskID, workerID uuid.UUID) (bool, error)
	GetByID(ctx context.Context, id uuid.UUID) (*models.Submission, error)
	GetByIDForUpdate(ctx context.Context, tx pgx.Tx, id uuid.UUID) (*models.Submission, error)
	Finalize(ctx context.Context, tx pgx.Tx, id uuid.UUID, status string, at time.Time) error
	DeleteByTask(ctx context.Context, tx pgx.Tx, taskID uuid.UUID) (int64, error)
	ListByWorker(ctx context.Context, workerID uuid.UUID, limit, offset int) ([]*models.Submission, int, error)
	ListByTask(ctx context.Context, taskID uuid.UUID) ([]*models.Submission, error)
	ListPendingByBuyer(ctx context.Context, buyerID uuid.UUID) ([]*models.Submission, error)
	ListPendingByWorkerForUpdate(ctx context.Context, tx pgx.Tx, workerID uuid.UUID) ([]*models.Submission, error)
}

type WithdrawalStore interface {
	Create(ctx context.Context, tx pgx.Tx, w *models.Withdrawal) error
	GetByIDForUpdate(ctx context.Context, tx pgx.Tx, id uuid.UUID) (*models.Withdrawal, error)
	MarkApproved(ctx context.Context, tx pgx.Tx, id uuid.UUID, at time.Time) error
	ListAll(ctx context.Context) ([]*models.Withdrawal, error)
	ListByWorker(ctx context.Context, workerID uuid.UUID) ([]*models.Withdrawal, error)
}

type PaymentStore interface {
	Create(ctx context.Context, tx pgx.Tx, p *models.Payment) error
	ListByBuyer(ctx context.Context, buyerID uuid.UUID) ([]*models.Payment, error)
}

// Notifier records a user-facing event. It is called after the financial
// transaction has committed and must not fail the caller.
type Notifier interface {
	Notify(ctx context.Context, n models.Notification)
}

type nopNotifier struct{}

func (nopNotifier) Notify(context.Context, models.Notification) {}

func notifierOrNop(n Notifier) Notifier {
	if n == nil {
		return nopNotifier{}
	}
	return n
}
