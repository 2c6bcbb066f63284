package models

import (
	"time"

	"github.com/google/uuid"
)

// Task is a funded batch of identical work units. RequiredWorkers and
// PayableAmount are fixed once the buyer has been debited.
type Task struct {
	ID              uuid.UUID `json:"id"`
	BuyerID         uuid.UUID `json:"buyer_id"`
	BuyerEmail      string    `json:"buyer_email"`
	BuyerName       string    `json:"buyer_name"`
	Title           string    `json:"task_title"`
	Detail          string    `json:"task_detail"`
	SubmissionInfo  string    `json:"submission_info"`
	ImageURL        string    `json:"task_image_url,omitempty"`
	RequiredWorkers int       `json:"required_workers"`
	PayableAmount   int       `json:"payable_amount"`
	FilledCount     int       `json:"filled_count"`
	CompletionDate  time.Time `json:"completion_date"`
	CreatedAt       time.Time `json:"created_at"`
	UpdatedAt       time.Time `json:"updated_at"`
}

// TotalCost is what the buyer is debited at creation.
func (t *Task) TotalCost() int { return t.RequiredWorkers * t.PayableAmount }

func (t *Task) RemainingSlots() int { return t.RequiredWorkers - t.FilledCount }

// UnusedEscrow is the refund owed to the buyer if the task is deleted now.
func (t *Task) UnusedEscrow() int {
	if r := t.RemainingSlots(); r > 0 {
		return r * t.PayableAmount
	}
	return 0
}

// TaskDetails holds the only task fields that may change after creation.
type TaskDetails struct {
	Title          string `json:"task_title"`
	Detail         string `json:"task_detail"`
	SubmissionInfo string `json:"submission_info"`
}
