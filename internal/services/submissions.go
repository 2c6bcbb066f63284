package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/taskflow/backend/internal/ledger"
	"github.com/taskflow/backend/internal/models"
)

const (
	defaultPageSize = 10
	maxPageSize     = 100
)

// SubmissionPage is one page of a worker's submissions.
type SubmissionPage struct {
	Submissions []*models.Submission `json:"submissions"`
	Total       int                  `json:"total"`
	Page        int                  `json:"page"`
	Pages       int                  `json:"pages"`
}

// SubmissionEngine records worker submissions and settles them on review.
type SubmissionEngine struct {
	DB          TxBeginner
	Users       UserStore
	Tasks       TaskStore
	Submissions SubmissionStore
	Registry    *TaskRegistry
	Ledger      ledger.Service
	Notifier    Notifier
	Logger      *slog.Logger
	Now         func() time.Time
}

func NewSubmissionEngine(db TxBeginner, users UserStore, subs SubmissionStore, registry *TaskRegistry, l ledger.Service, n Notifier, logger *slog.Logger) *SubmissionEngine {
	if logger == nil {
		logger = slog.Default()
	}
	return &SubmissionEngine{
		DB:          db,
		Users:       users,
		Tasks:       registry.Tasks,
		Submissions: subs,
		Registry:    registry,
		Ledger:      l,
		Notifier:    notifierOrNop(n),
		Logger:      logger,
		Now:         time.Now,
	}
}

// Submit reserves a slot on the task and records a pending submission. The
// payable amount is copied from the locked task row.
func (e *SubmissionEngine) Submit(ctx context.Context, actor models.Actor, taskID uuid.UUID, details string) (*models.Submission, error) {
	if !actor.Is(models.RoleWorker) {
		return nil, ErrUnauthorized
	}
	if strings.TrimSpace(details) == "" {
		return nil, invalidf("submission_details must not be empty")
	}

	tx, err := e.DB.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("submit: begin: %w", err)
	}
	defer tx.Rollback(ctx)

	task, err := e.Tasks.GetByIDForUpdate(ctx, tx, taskID)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("submit: load task: %w", err)
	}
	exists, err := e.Submissions.ExistsForWorker(ctx, tx, taskID, actor.UserID)
	if err != nil {
		return nil, fmt.Errorf("submit: duplicate check: %w", err)
	}
	if exists {
		return nil, ErrDuplicateSubmission
	}
	if err := e.Registry.ReserveSlot(ctx, tx, taskID); err != nil {
		return nil, err
	}
	worker, err := e.Users.GetByIDTx(ctx, tx, actor.UserID)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrUserNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("submit: load worker: %w", err)
	}

	sub := &models.Submission{
		ID:            uuid.New(),
		TaskID:        task.ID,
		TaskTitle:     task.Title,
		WorkerID:      worker.ID,
		WorkerEmail:   worker.Email,
		WorkerName:    worker.Name,
		BuyerID:       task.BuyerID,
		BuyerEmail:    task.BuyerEmail,
		BuyerName:     task.BuyerName,
		PayableAmount: task.PayableAmount,
		Details:       details,
		Status:        models.SubmissionPending,
	}
	if err := e.Submissions.Create(ctx, tx, sub); err != nil {
		if isUniqueViolation(err) {
			return nil, ErrDuplicateSubmission
		}
		return nil, fmt.Errorf("submit: insert: %w", err)
	}
	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("submit: commit: %w", err)
	}
	e.Logger.Info("submission created", "submission_id", sub.ID, "task_id", task.ID, "worker_id", worker.ID)

	e.Notifier.Notify(ctx, models.Notification{
		UserID:      task.BuyerID,
		Message:     fmt.Sprintf(`%s submitted work for "%s"`, worker.Name, task.Title),
		ActionRoute: "/dashboard",
	})
	return sub, nil
}

// Approve pays the worker. The slot stays consumed.
func (e *SubmissionEngine) Approve(ctx context.Context, actor models.Actor, submissionID uuid.UUID) (*models.Submission, error) {
	sub, err := e.finalize(ctx, actor, submissionID, models.SubmissionApproved, func(tx pgx.Tx, sub *models.Submission) error {
		_, err := e.Ledger.Credit(ctx, tx, sub.WorkerID, sub.PayableAmount, models.CoinEntrySubmissionPayout,
			ledger.Ref{TaskID: &sub.TaskID, SubmissionID: &sub.ID})
		return err
	})
	if err != nil {
		return nil, err
	}
	e.Notifier.Notify(ctx, models.Notification{
		UserID:      sub.WorkerID,
		Message:     fmt.Sprintf(`Your submission for "%s" was approved! You earned %d coins.`, sub.TaskTitle, sub.PayableAmount),
		ActionRoute: "/dashboard/my-submissions",
	})
	return sub, nil
}

// Reject frees the slot and refunds the buyer the submission's payable amount.
func (e *SubmissionEngine) Reject(ctx context.Context, actor models.Actor, submissionID uuid.UUID) (*models.Submission, error) {
	sub, err := e.finalize(ctx, actor, submissionID, models.SubmissionRejected, func(tx pgx.Tx, sub *models.Submission) error {
		if err := e.Registry.ReleaseSlot(ctx, tx, sub.TaskID); err != nil {
			return err
		}
		_, err := e.Ledger.Credit(ctx, tx, sub.BuyerID, sub.PayableAmount, models.CoinEntrySubmissionRefund,
			ledger.Ref{TaskID: &sub.TaskID, SubmissionID: &sub.ID})
		return err
	})
	if err != nil {
		return nil, err
	}
	e.Notifier.Notify(ctx, models.Notification{
		UserID:      sub.WorkerID,
		Message:     fmt.Sprintf(`Your submission for "%s" was rejected.`, sub.TaskTitle),
		ActionRoute: "/dashboard/my-submissions",
	})
	return sub, nil
}

// finalize locks the submission, moves it out of pending and runs settle in
// the same transaction. Concurrent reviews queue on the row lock and all but
// the first see ErrAlreadyFinalized.
func (e *SubmissionEngine) finalize(ctx context.Context, actor models.Actor, id uuid.UUID, status string, settle func(pgx.Tx, *models.Submission) error) (*models.Submission, error) {
	tx, err := e.DB.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("%s submission: begin: %w", status, err)
	}
	defer tx.Rollback(ctx)

	sub, err := e.Submissions.GetByIDForUpdate(ctx, tx, id)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("%s submission: load: %w", status, err)
	}
	if sub.BuyerID != actor.UserID && !actor.Is(models.RoleAdmin) {
		return nil, ErrUnauthorized
	}
	if !sub.IsPending() {
		return nil, ErrAlreadyFinalized
	}

	now := e.Now().UTC()
	if err := e.Submissions.Finalize(ctx, tx, id, status, now); errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrAlreadyFinalized
	} else if err != nil {
		return nil, fmt.Errorf("%s submission: update status: %w", status, err)
	}
	if err := settle(tx, sub); err != nil {
		return nil, err
	}
	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("%s submission: commit: %w", status, err)
	}

	sub.Status = status
	sub.ReviewedAt = &now
	e.Logger.Info("submission finalized", "submission_id", sub.ID, "status", status, "actor_id", actor.UserID, "amount", sub.PayableAmount)
	return sub, nil
}

// ListByWorker pages through the caller's own submissions, newest first.
func (e *SubmissionEngine) ListByWorker(ctx context.Context, actor models.Actor, page, limit int) (*SubmissionPage, error) {
	if !actor.Is(models.RoleWorker) {
		return nil, ErrUnauthorized
	}
	if page < 1 {
		page = 1
	}
	if limit < 1 {
		limit = defaultPageSize
	}
	if limit > maxPageSize {
		limit = maxPageSize
	}
	subs, total, err := e.Submissions.ListByWorker(ctx, actor.UserID, limit, (page-1)*limit)
	if err != nil {
		return nil, err
	}
	return &SubmissionPage{
		Submissions: subs,
		Total:       total,
		Page:        page,
		Pages:       (total + limit - 1) / limit,
	}, nil
}

// ListByTask returns the submissions of a task to its buyer or an admin.
func (e *SubmissionEngine) ListByTask(ctx context.Context, actor models.Actor, taskID uuid.UUID) ([]*models.Submission, error) {
	task, err := e.Tasks.GetByID(ctx, taskID)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	if task.BuyerID != actor.UserID && !actor.Is(models.RoleAdmin) {
		return nil, ErrUnauthorized
	}
	return e.Submissions.ListByTask(ctx, taskID)
}

// ListPendingForBuyer is the buyer's review queue.
func (e *SubmissionEngine) ListPendingForBuyer(ctx context.Context, actor models.Actor) ([]*models.Submission, error) {
	if !actor.Is(models.RoleBuyer) {
		return nil, ErrUnauthorized
	}
	return e.Submissions.ListPendingByBuyer(ctx, actor.UserID)
}
