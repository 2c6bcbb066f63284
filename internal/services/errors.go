package services

import (
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5/pgconn"

	"github.com/taskflow/backend/internal/ledger"
)

// Business errors. Each maps to a stable kind via KindOf.
var (
	ErrInsufficientFunds   = ledger.ErrInsufficientFunds
	ErrUserNotFound        = ledger.ErrUserNotFound
	ErrBelowMinimum        = errors.New("withdrawal is below the minimum")
	ErrTaskFull            = errors.New("task has no remaining slots")
	ErrDuplicateSubmission = errors.New("worker already submitted to this task")
	ErrAlreadyFinalized    = errors.New("already finalized")
	ErrNotFound            = errors.New("not found")
	ErrUnauthorized        = errors.New("not allowed for this role")
	ErrUnauthenticated     = errors.New("authentication required")
	ErrInvalidInput        = errors.New("invalid input")
	ErrImmutableField      = errors.New("required_workers and payable_amount cannot change after creation")
)

const (
	KindInsufficientFunds   = "InsufficientFunds"
	KindBelowMinimum        = "BelowMinimum"
	KindTaskFull            = "TaskFull"
	KindDuplicateSubmission = "DuplicateSubmission"
	KindAlreadyFinalized    = "AlreadyFinalized"
	KindNotFound            = "NotFound"
	KindUserNotFound        = "UserNotFound"
	KindUnauthorized        = "Unauthorized"
	KindUnauthenticated     = "Unauthenticated"
	KindInvalidInput        = "InvalidInput"
	KindImmutableField      = "ImmutableField"
	KindInternal            = "InternalError"
)

var kinds = []struct {
	err  error
	kind string
}{
	{ErrInsufficientFunds, KindInsufficientFunds},
	{ErrBelowMinimum, KindBelowMinimum},
	{ErrTaskFull, KindTaskFull},
	{ErrDuplicateSubmission, KindDuplicateSubmission},
	{ErrAlreadyFinalized, KindAlreadyFinalized},
	{ErrNotFound, KindNotFound},
	{ErrUserNotFound, KindUserNotFound},
	{ErrUnauthorized, KindUnauthorized},
	{ErrUnauthenticated, KindUnauthenticated},
	{ErrImmutableField, KindImmutableField},
	{ErrInvalidInput, KindInvalidInput},
	{ErrValidation, KindInvalidInput},
	{ledger.ErrInvalidAmount, KindInvalidInput},
}

// KindOf classifies err. Anything unrecognised is KindInternal.
func KindOf(err error) string {
	for _, k := range kinds {
		if errors.Is(err, k.err) {
			return k.kind
		}
	}
	return KindInternal
}

func invalidf(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrInvalidInput, fmt.Sprintf(format, args...))
}

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == "23505"
}
