package models

import (
	"time"

	"github.com/google/uuid"
)

// User roles.
const (
	RoleWorker = "worker"
	RoleBuyer  = "buyer"
	RoleAdmin  = "admin"
)

// Starting balances granted at registration.
const (
	WorkerStartingCoins = 10
	BuyerStartingCoins  = 50
)

type User struct {
	ID           uuid.UUID `json:"id"`
	Name         string    `json:"name"`
	Email        string    `json:"email"`
	PasswordHash string    `json:"-"`
	Role         string    `json:"role"`
	PhotoURL     string    `json:"photo_url"`
	Coins        int       `json:"coins"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
}

// ValidRole reports whether role is one of the known roles.
func ValidRole(role string) bool {
	switch role {
	case RoleWorker, RoleBuyer, RoleAdmin:
		return true
	}
	return false
}

// StartingCoins returns the balance a new account of the given role receives.
func StartingCoins(role string) int {
	switch role {
	case RoleWorker:
		return WorkerStartingCoins
	case RoleBuyer:
		return BuyerStartingCoins
	default:
		return 0
	}
}

// Actor is the verified identity behind a request. Every core operation takes
// one explicitly; nothing reads session state from anywhere else.
type Actor struct {
	UserID uuid.UUID
	Role   string
}

func (a Actor) Is(role string) bool { return a.Role == role }
