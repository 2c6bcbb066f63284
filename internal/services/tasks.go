package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/taskflow/backend/internal/ledger"
	"github.com/taskflow/backend/internal/models"
)

// NewTask is the buyer-supplied part of a task.
type NewTask struct {
	Title           string
	Detail          string
	SubmissionInfo  string
	ImageURL        string
	RequiredWorkers int
	PayableAmount   int
	CompletionDate  time.Time
}

func (n NewTask) validate() error {
	if n.RequiredWorkers <= 0 {
		return invalidf("required_workers must be positive")
	}
	if n.PayableAmount <= 0 {
		return invalidf("payable_amount must be positive")
	}
	if n.RequiredWorkers > math.MaxInt32/n.PayableAmount {
		return invalidf("required_workers × payable_amount exceeds %d coins", math.MaxInt32)
	}
	if n.CompletionDate.IsZero() {
		return invalidf("completion_date is required")
	}
	return validateDetails(models.TaskDetails{Title: n.Title, Detail: n.Detail, SubmissionInfo: n.SubmissionInfo})
}

func validateDetails(d models.TaskDetails) error {
	if strings.TrimSpace(d.Title) == "" || strings.TrimSpace(d.Detail) == "" || strings.TrimSpace(d.SubmissionInfo) == "" {
		return invalidf("task_title, task_detail and submission_info must not be empty")
	}
	return nil
}

// TaskRegistry funds tasks, accounts for their slots and refunds unused
// escrow when a task is deleted.
type TaskRegistry struct {
	DB          TxBeginner
	Users       UserStore
	Tasks       TaskStore
	Submissions SubmissionStore
	Ledger      ledger.Service
	Notifier    Notifier
	Logger      *slog.Logger
}

func NewTaskRegistry(db TxBeginner, users UserStore, tasks TaskStore, subs SubmissionStore, l ledger.Service, n Notifier, logger *slog.Logger) *TaskRegistry {
	if logger == nil {
		logger = slog.Default()
	}
	return &TaskRegistry{DB: db, Users: users, Tasks: tasks, Submissions: subs, Ledger: l, Notifier: notifierOrNop(n), Logger: logger}
}

// CreateTask debits required_workers × payable_amount from the buyer and
// creates the task in the same transaction.
func (r *TaskRegistry) CreateTask(ctx context.Context, actor models.Actor, in NewTask) (*models.Task, error) {
	if !actor.Is(models.RoleBuyer) {
		return nil, ErrUnauthorized
	}
	if err := in.validate(); err != nil {
		return nil, err
	}

	tx, err := r.DB.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("create task: begin: %w", err)
	}
	defer tx.Rollback(ctx)

	buyer, err := r.Users.GetByIDTx(ctx, tx, actor.UserID)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrUserNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("create task: load buyer: %w", err)
	}

	task := &models.Task{
		ID:              uuid.New(),
		BuyerID:         buyer.ID,
		BuyerEmail:      buyer.Email,
		BuyerName:       buyer.Name,
		Title:           in.Title,
		Detail:          in.Detail,
		SubmissionInfo:  in.SubmissionInfo,
		ImageURL:        in.ImageURL,
		RequiredWorkers: in.RequiredWorkers,
		PayableAmount:   in.PayableAmount,
		CompletionDate:  in.CompletionDate,
	}
	if _, err := r.Ledger.Debit(ctx, tx, buyer.ID, task.TotalCost(), models.CoinEntryTaskEscrow, ledger.Ref{TaskID: &task.ID}); err != nil {
		return nil, err
	}
	if err := r.Tasks.Create(ctx, tx, task); err != nil {
		return nil, fmt.Errorf("create task: insert: %w", err)
	}
	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("create task: commit: %w", err)
	}
	r.Logger.Info("task created", "task_id", task.ID, "buyer_id", buyer.ID, "escrow", task.TotalCost())
	return task, nil
}

// ReserveSlot takes one slot of the task inside tx. The increment is
// conditional, so racing callers cannot overfill the task.
func (r *TaskRegistry) ReserveSlot(ctx context.Context, tx pgx.Tx, taskID uuid.UUID) error {
	_, err := r.Tasks.IncrementFilled(ctx, tx, taskID)
	if errors.Is(err, pgx.ErrNoRows) {
		if _, getErr := r.Tasks.GetByIDForUpdate(ctx, tx, taskID); errors.Is(getErr, pgx.ErrNoRows) {
			return ErrNotFound
		} else if getErr != nil {
			return fmt.Errorf("reserve slot: %w", getErr)
		}
		return ErrTaskFull
	}
	if err != nil {
		return fmt.Errorf("reserve slot: %w", err)
	}
	return nil
}

// ReleaseSlot frees one slot of the task inside tx.
func (r *TaskRegistry) ReleaseSlot(ctx context.Context, tx pgx.Tx, taskID uuid.UUID) error {
	_, err := r.Tasks.DecrementFilled(ctx, tx, taskID)
	if errors.Is(err, pgx.ErrNoRows) {
		return ErrNotFound
	}
	if err != nil {
		return fmt.Errorf("release slot: %w", err)
	}
	return nil
}

// DeleteTask refunds (required_workers - filled_count) × payable_amount to the
// buyer and removes the task with all of its submissions. Returns the refund.
func (r *TaskRegistry) DeleteTask(ctx context.Context, actor models.Actor, taskID uuid.UUID) (int, error) {
	tx, err := r.DB.Begin(ctx)
	if err != nil {
		return 0, fmt.Errorf("delete task: begin: %w", err)
	}
	defer tx.Rollback(ctx)

	task, err := r.Tasks.GetByIDForUpdate(ctx, tx, taskID)
	if errors.Is(err, pgx.ErrNoRows) {
		return 0, ErrNotFound
	}
	if err != nil {
		return 0, fmt.Errorf("delete task: load: %w", err)
	}
	if task.BuyerID != actor.UserID && !actor.Is(models.RoleAdmin) {
		return 0, ErrUnauthorized
	}

	refund := task.UnusedEscrow()
	if refund > 0 {
		if _, err := r.Ledger.Credit(ctx, tx, task.BuyerID, refund, models.CoinEntryTaskRefund, ledger.Ref{TaskID: &task.ID}); err != nil {
			return 0, err
		}
	}
	removed, err := r.Submissions.DeleteByTask(ctx, tx, task.ID)
	if err != nil {
		return 0, fmt.Errorf("delete task: delete submissions: %w", err)
	}
	if err := r.Tasks.Delete(ctx, tx, task.ID); err != nil {
		return 0, fmt.Errorf("delete task: delete: %w", err)
	}
	if err := tx.Commit(ctx); err != nil {
		return 0, fmt.Errorf("delete task: commit: %w", err)
	}
	r.Logger.Info("task deleted", "task_id", task.ID, "actor_id", actor.UserID, "refund", refund, "submissions_removed", removed)

	if actor.UserID != task.BuyerID {
		r.Notifier.Notify(ctx, models.Notification{
			UserID:      task.BuyerID,
			Message:     fmt.Sprintf(`Your task "%s" was removed by an admin. %d coins were refunded.`, task.Title, refund),
			ActionRoute: "/dashboard/my-tasks",
		})
	}
	return refund, nil
}

// UpdateTaskDetails changes the descriptive fields of a task. The financial
// fields have no update path.
func (r *TaskRegistry) UpdateTaskDetails(ctx context.Context, actor models.Actor, taskID uuid.UUID, d models.TaskDetails) (*models.Task, error) {
	if err := validateDetails(d); err != nil {
		return nil, err
	}

	tx, err := r.DB.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("update task: begin: %w", err)
	}
	defer tx.Rollback(ctx)

	task, err := r.Tasks.GetByIDForUpdate(ctx, tx, taskID)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("update task: load: %w", err)
	}
	if task.BuyerID != actor.UserID {
		return nil, ErrUnauthorized
	}
	if err := r.Tasks.UpdateDetails(ctx, tx, taskID, d); err != nil {
		return nil, fmt.Errorf("update task: %w", err)
	}
	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("update task: commit: %w", err)
	}
	task.Title, task.Detail, task.SubmissionInfo = d.Title, d.Detail, d.SubmissionInfo
	return task, nil
}

func (r *TaskRegistry) GetTask(ctx context.Context, taskID uuid.UUID) (*models.Task, error) {
	task, err := r.Tasks.GetByID(ctx, taskID)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	return task, err
}

// ListTasks returns all tasks, or only those with open slots.
func (r *TaskRegistry) ListTasks(ctx context.Context, availableOnly bool) ([]*models.Task, error) {
	return r.Tasks.List(ctx, availableOnly)
}

func (r *TaskRegistry) ListByBuyer(ctx context.Context, actor models.Actor) ([]*models.Task, error) {
	if !actor.Is(models.RoleBuyer) {
		return nil, ErrUnauthorized
	}
	return r.Tasks.ListByBuyer(ctx, actor.UserID)
}
