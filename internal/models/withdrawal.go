package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Withdrawal status values.
const (
	WithdrawalPending  = "pending"
	WithdrawalApproved = "approved"
)

const (
	// MinWithdrawalCoins is the smallest cash-out a worker may request ($10).
	MinWithdrawalCoins = 200
	// CoinsPerDollar is the fixed exchange rate.
	CoinsPerDollar = 20
)

// Supported payout selectors.
var PaymentSystems = []string{"stripe", "bkash", "rocket", "nagad"}

type Withdrawal struct {
	ID            uuid.UUID       `json:"id"`
	WorkerID      uuid.UUID       `json:"worker_id"`
	WorkerEmail   string          `json:"worker_email"`
	WorkerName    string          `json:"worker_name"`
	Coins         int             `json:"withdraw_coin"`
	CashAmount    decimal.Decimal `json:"withdraw_amount"`
	PaymentSystem string          `json:"payment_system"`
	AccountNumber string          `json:"account_number"`
	Status        string          `json:"status"`
	RequestedAt   time.Time       `json:"requested_at"`
	ApprovedAt    *time.Time      `json:"approved_at,omitempty"`
}

// CashForCoins converts coins to dollars at the fixed rate, rounded to cents.
func CashForCoins(coins int) decimal.Decimal {
	return decimal.NewFromInt(int64(coins)).
		Div(decimal.NewFromInt(CoinsPerDollar)).
		Round(2)
}
