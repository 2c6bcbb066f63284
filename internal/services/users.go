package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/taskflow/backend/internal/ledger"
	"github.com/taskflow/backend/internal/models"
)

// AccountStore locks and removes user rows. Deleting a user cascades to their
// tasks, submissions, withdrawals and notifications.
type AccountStore interface {
	GetByIDForUpdate(ctx context.Context, tx pgx.Tx, id uuid.UUID) (*models.User, error)
	DeleteTx(ctx context.Context, tx pgx.Tx, id uuid.UUID) error
}

// UserAdmin removes accounts without stranding the escrow held by the user's
// pending submissions.
type UserAdmin struct {
	DB          TxBeginner
	Accounts    AccountStore
	Submissions SubmissionStore
	Registry    *TaskRegistry
	Ledger      ledger.Service
	Notifier    Notifier
	Logger      *slog.Logger
	Now         func() time.Time
}

func NewUserAdmin(db TxBeginner, accounts AccountStore, subs SubmissionStore, registry *TaskRegistry, l ledger.Service, n Notifier, logger *slog.Logger) *UserAdmin {
	if logger == nil {
		logger = slog.Default()
	}
	return &UserAdmin{
		DB:          db,
		Accounts:    accounts,
		Submissions: subs,
		Registry:    registry,
		Ledger:      l,
		Notifier:    notifierOrNop(n),
		Logger:      logger,
		Now:         time.Now,
	}
}

// DeleteUser removes the account. Pending submissions made by the user are
// rejected first: each frees its slot and refunds its buyer, exactly as a
// review would. Returns how many submissions were settled.
func (a *UserAdmin) DeleteUser(ctx context.Context, actor models.Actor, id uuid.UUID) (int, error) {
	if !actor.Is(models.RoleAdmin) {
		return 0, ErrUnauthorized
	}
	if id == actor.UserID {
		return 0, invalidf("admins cannot delete themselves")
	}

	tx, err := a.DB.Begin(ctx)
	if err != nil {
		return 0, fmt.Errorf("delete user: begin: %w", err)
	}
	defer tx.Rollback(ctx)

	// The row lock makes concurrent submits by this user wait on their
	// foreign key check and fail once the row is gone.
	if _, err := a.Accounts.GetByIDForUpdate(ctx, tx, id); errors.Is(err, pgx.ErrNoRows) {
		return 0, ErrUserNotFound
	} else if err != nil {
		return 0, fmt.Errorf("delete user: lock: %w", err)
	}

	pending, err := a.Submissions.ListPendingByWorkerForUpdate(ctx, tx, id)
	if err != nil {
		return 0, fmt.Errorf("delete user: pending submissions: %w", err)
	}
	now := a.Now().UTC()
	for _, sub := range pending {
		if err := a.Submissions.Finalize(ctx, tx, sub.ID, models.SubmissionRejected, now); err != nil {
			return 0, fmt.Errorf("delete user: reject submission %s: %w", sub.ID, err)
		}
		if err := a.Registry.ReleaseSlot(ctx, tx, sub.TaskID); err != nil {
			return 0, err
		}
		if _, err := a.Ledger.Credit(ctx, tx, sub.BuyerID, sub.PayableAmount, models.CoinEntrySubmissionRefund,
			ledger.Ref{TaskID: &sub.TaskID, SubmissionID: &sub.ID}); err != nil {
			return 0, err
		}
	}

	if err := a.Accounts.DeleteTx(ctx, tx, id); err != nil {
		return 0, fmt.Errorf("delete user: %w", err)
	}
	if err := tx.Commit(ctx); err != nil {
		return 0, fmt.Errorf("delete user: commit: %w", err)
	}
	a.Logger.Info("user deleted", "user_id", id, "by", actor.UserID, "settled_submissions", len(pending))

	for _, sub := range pending {
		a.Notifier.Notify(ctx, models.Notification{
			UserID:      sub.BuyerID,
			Message:     fmt.Sprintf(`A submission for "%s" was withdrawn; %d coins were returned.`, sub.TaskTitle, sub.PayableAmount),
			ActionRoute: "/dashboard",
		})
	}
	return len(pending), nil
}
