package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/taskflow/backend/internal/ledger"
	"github.com/taskflow/backend/internal/models"
)

// WithdrawalRequest is a worker's cash-out instruction.
type WithdrawalRequest struct {
	Coins         int
	PaymentSystem string
	AccountNumber string
}

// WithdrawalEngine escrows coins when a worker asks to cash out. Approval is
// bookkeeping only; the coins already left the ledger.
type WithdrawalEngine struct {
	DB          TxBeginner
	Users       UserStore
	Withdrawals WithdrawalStore
	Ledger      ledger.Service
	Notifier    Notifier
	Logger      *slog.Logger
	Now         func() time.Time
}

func NewWithdrawalEngine(db TxBeginner, users UserStore, withdrawals WithdrawalStore, l ledger.Service, n Notifier, logger *slog.Logger) *WithdrawalEngine {
	if logger == nil {
		logger = slog.Default()
	}
	return &WithdrawalEngine{
		DB:          db,
		Users:       users,
		Withdrawals: withdrawals,
		Ledger:      l,
		Notifier:    notifierOrNop(n),
		Logger:      logger,
		Now:         time.Now,
	}
}

// RequestWithdrawal debits the worker and records a pending request in one
// transaction.
func (e *WithdrawalEngine) RequestWithdrawal(ctx context.Context, actor models.Actor, req WithdrawalRequest) (*models.Withdrawal, error) {
	if !actor.Is(models.RoleWorker) {
		return nil, ErrUnauthorized
	}
	if req.Coins < models.MinWithdrawalCoins {
		return nil, fmt.Errorf("%w: at least %d coins are required", ErrBelowMinimum, models.MinWithdrawalCoins)
	}
	if !slices.Contains(models.PaymentSystems, req.PaymentSystem) {
		return nil, invalidf("unsupported payment_system %q", req.PaymentSystem)
	}
	if strings.TrimSpace(req.AccountNumber) == "" {
		return nil, invalidf("account_number must not be empty")
	}

	tx, err := e.DB.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("request withdrawal: begin: %w", err)
	}
	defer tx.Rollback(ctx)

	worker, err := e.Users.GetByIDTx(ctx, tx, actor.UserID)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrUserNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("request withdrawal: load worker: %w", err)
	}

	w := &models.Withdrawal{
		ID:            uuid.New(),
		WorkerID:      worker.ID,
		WorkerEmail:   worker.Email,
		WorkerName:    worker.Name,
		Coins:         req.Coins,
		CashAmount:    models.CashForCoins(req.Coins),
		PaymentSystem: req.PaymentSystem,
		AccountNumber: req.AccountNumber,
		Status:        models.WithdrawalPending,
	}
	if _, err := e.Ledger.Debit(ctx, tx, worker.ID, w.Coins, models.CoinEntryWithdrawalEscrow, ledger.Ref{WithdrawalID: &w.ID}); err != nil {
		return nil, err
	}
	if err := e.Withdrawals.Create(ctx, tx, w); err != nil {
		return nil, fmt.Errorf("request withdrawal: insert: %w", err)
	}
	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("request withdrawal: commit: %w", err)
	}
	e.Logger.Info("withdrawal requested", "withdrawal_id", w.ID, "worker_id", worker.ID, "coins", w.Coins, "cash", w.CashAmount.StringFixed(2))
	return w, nil
}

// ApproveWithdrawal marks a pending request as paid out.
func (e *WithdrawalEngine) ApproveWithdrawal(ctx context.Context, actor models.Actor, id uuid.UUID) (*models.Withdrawal, error) {
	if !actor.Is(models.RoleAdmin) {
		return nil, ErrUnauthorized
	}

	tx, err := e.DB.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("approve withdrawal: begin: %w", err)
	}
	defer tx.Rollback(ctx)

	w, err := e.Withdrawals.GetByIDForUpdate(ctx, tx, id)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("approve withdrawal: load: %w", err)
	}
	if w.Status != models.WithdrawalPending {
		return nil, ErrAlreadyFinalized
	}
	now := e.Now().UTC()
	if err := e.Withdrawals.MarkApproved(ctx, tx, id, now); errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrAlreadyFinalized
	} else if err != nil {
		return nil, fmt.Errorf("approve withdrawal: update: %w", err)
	}
	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("approve withdrawal: commit: %w", err)
	}

	w.Status = models.WithdrawalApproved
	w.ApprovedAt = &now
	e.Logger.Info("withdrawal approved", "withdrawal_id", w.ID, "worker_id", w.WorkerID, "cash", w.CashAmount.StringFixed(2))

	e.Notifier.Notify(ctx, models.Notification{
		UserID:      w.WorkerID,
		Message:     fmt.Sprintf("Your withdrawal request of $%s has been approved!", w.CashAmount.StringFixed(2)),
		ActionRoute: "/dashboard/withdrawals",
	})
	return w, nil
}

func (e *WithdrawalEngine) ListAll(ctx context.Context, actor models.Actor) ([]*models.Withdrawal, error) {
	if !actor.Is(models.RoleAdmin) {
		return nil, ErrUnauthorized
	}
	return e.Withdrawals.ListAll(ctx)
}

func (e *WithdrawalEngine) ListByWorker(ctx context.Context, actor models.Actor) ([]*models.Withdrawal, error) {
	if !actor.Is(models.RoleWorker) {
		return nil, ErrUnauthorized
	}
	return e.Withdrawals.ListByWorker(ctx, actor.UserID)
}
