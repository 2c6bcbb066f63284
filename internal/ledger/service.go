package ledger

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/taskflow/backend/internal/models"
)

var (
	// ErrInsufficientFunds is returned when a debit exceeds the user's balance.
	ErrInsufficientFunds = errors.New("insufficient coins")
	// ErrUserNotFound is returned when the balance owner does not exist.
	ErrUserNotFound = errors.New("user not found")
	// ErrInvalidAmount guards against sign mistakes: debits take a positive
	// amount, credits a non-negative one.
	ErrInvalidAmount = errors.New("invalid coin amount")
)

const defaultHistoryLimit = 50

// Store is the persistence the ledger needs. Every mutation runs inside the
// caller's transaction so the balance change commits with its cause.
type Store interface {
	DeductCoins(ctx context.Context, tx pgx.Tx, userID uuid.UUID, amount int) (int, error)
	AddCoins(ctx context.Context, tx pgx.Tx, userID uuid.UUID, amount int) (int, error)
	UserExists(ctx context.Context, tx pgx.Tx, userID uuid.UUID) (bool, error)
	InsertEntry(ctx context.Context, tx pgx.Tx, e *models.CoinEntry) error
	Balance(ctx context.Context, userID uuid.UUID) (int, error)
	History(ctx context.Context, userID uuid.UUID, limit int) ([]*models.CoinEntry, error)
}

// Ref ties a ledger entry to the record that caused it.
type Ref struct {
	TaskID       *uuid.UUID
	SubmissionID *uuid.UUID
	WithdrawalID *uuid.UUID
	PaymentID    *uuid.UUID
}

type Service interface {
	Debit(ctx context.Context, tx pgx.Tx, userID uuid.UUID, amount int, entryType string, ref Ref) (int, error)
	Credit(ctx context.Context, tx pgx.Tx, userID uuid.UUID, amount int, entryType string, ref Ref) (int, error)
	Balance(ctx context.Context, userID uuid.UUID) (int, error)
	History(ctx context.Context, userID uuid.UUID) ([]*models.CoinEntry, error)
}

type service struct {
	store Store
}

func NewService(store Store) Service {
	return &service{store: store}
}

var _ Service = (*service)(nil)

func (s *service) Debit(ctx context.Context, tx pgx.Tx, userID uuid.UUID, amount int, entryType string, ref Ref) (int, error) {
	if amount <= 0 {
		return 0, fmt.Errorf("%w: debit of %d", ErrInvalidAmount, amount)
	}
	balance, err := s.store.DeductCoins(ctx, tx, userID, amount)
	if errors.Is(err, pgx.ErrNoRows) {
		exists, existsErr := s.store.UserExists(ctx, tx, userID)
		if existsErr != nil {
			return 0, existsErr
		}
		if !exists {
			return 0, ErrUserNotFound
		}
		return 0, ErrInsufficientFunds
	}
	if err != nil {
		return 0, err
	}
	if err := s.journal(ctx, tx, userID, amount, balance, entryType, ref); err != nil {
		return 0, err
	}
	return balance, nil
}

func (s *service) Credit(ctx context.Context, tx pgx.Tx, userID uuid.UUID, amount int, entryType string, ref Ref) (int, error) {
	if amount < 0 {
		return 0, fmt.Errorf("%w: credit of %d", ErrInvalidAmount, amount)
	}
	balance, err := s.store.AddCoins(ctx, tx, userID, amount)
	if errors.Is(err, pgx.ErrNoRows) {
		return 0, ErrUserNotFound
	}
	if err != nil {
		return 0, err
	}
	if amount == 0 {
		return balance, nil
	}
	if err := s.journal(ctx, tx, userID, amount, balance, entryType, ref); err != nil {
		return 0, err
	}
	return balance, nil
}

func (s *service) journal(ctx context.Context, tx pgx.Tx, userID uuid.UUID, amount, balance int, entryType string, ref Ref) error {
	return s.store.InsertEntry(ctx, tx, &models.CoinEntry{
		ID:           uuid.New(),
		UserID:       userID,
		EntryType:    entryType,
		Amount:       amount,
		BalanceAfter: balance,
		TaskID:       ref.TaskID,
		SubmissionID: ref.SubmissionID,
		WithdrawalID: ref.WithdrawalID,
		PaymentID:    ref.PaymentID,
	})
}

func (s *service) Balance(ctx context.Context, userID uuid.UUID) (int, error) {
	balance, err := s.store.Balance(ctx, userID)
	if errors.Is(err, pgx.ErrNoRows) {
		return 0, ErrUserNotFound
	}
	return balance, err
}

func (s *service) History(ctx context.Context, userID uuid.UUID) ([]*models.CoinEntry, error) {
	return s.store.History(ctx, userID, defaultHistoryLimit)
}
