package models

import (
	"time"

	"github.com/google/uuid"
)

// Coin ledger entry_type values. Debits are task_escrow and withdrawal_escrow;
// everything else adds coins to the owning user.
const (
	CoinEntryTaskEscrow       = "task_escrow"
	CoinEntryTaskRefund       = "task_refund"
	CoinEntrySubmissionPayout = "submission_payout"
	CoinEntrySubmissionRefund = "submission_refund"
	CoinEntryWithdrawalEscrow = "withdrawal_escrow"
	CoinEntryCoinPurchase     = "coin_purchase"
	CoinEntrySignupBonus      = "signup_bonus"
)

// CoinEntry is one row of the append-only coin journal.
type CoinEntry struct {
	ID           uuid.UUID  `json:"id"`
	UserID       uuid.UUID  `json:"user_id"`
	EntryType    string     `json:"entry_type"`
	Amount       int        `json:"amount"`
	BalanceAfter int        `json:"balance_after"`
	TaskID       *uuid.UUID `json:"task_id,omitempty"`
	SubmissionID *uuid.UUID `json:"submission_id,omitempty"`
	WithdrawalID *uuid.UUID `json:"withdrawal_id,omitempty"`
	PaymentID    *uuid.UUID `json:"payment_id,omitempty"`
	CreatedAt    time.Time  `json:"created_at"`
}

// IsDebit reports whether the entry removed coins from the user.
func (e *CoinEntry) IsDebit() bool {
	return e.EntryType == CoinEntryTaskEscrow || e.EntryType == CoinEntryWithdrawalEscrow
}

// Signed returns the balance delta the entry represents.
func (e *CoinEntry) Signed() int {
	if e.IsDebit() {
		return -e.Amount
	}
	return e.Amount
}
