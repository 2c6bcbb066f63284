package models

import (
	"time"

	"github.com/google/uuid"
)

type Notification struct {
	ID          uuid.UUID `json:"id"`
	UserID      uuid.UUID `json:"to_user_id"`
	Message     string    `json:"message"`
	ActionRoute string    `json:"action_route"`
	Time        time.Time `json:"time"`
	Read        bool      `json:"read"`
}
