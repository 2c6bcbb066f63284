package models

import (
	"time"

	"github.com/google/uuid"
)

// Submission status values. approved and rejected are terminal.
const (
	SubmissionPending  = "pending"
	SubmissionApproved = "approved"
	SubmissionRejected = "rejected"
)

// Submission is one worker's attempt at one task. Buyer fields and
// PayableAmount are copied from the task when the submission is created.
type Submission struct {
	ID            uuid.UUID  `json:"id"`
	TaskID        uuid.UUID  `json:"task_id"`
	TaskTitle     string     `json:"task_title"`
	WorkerID      uuid.UUID  `json:"worker_id"`
	WorkerEmail   string     `json:"worker_email"`
	WorkerName    string     `json:"worker_name"`
	BuyerID       uuid.UUID  `json:"buyer_id"`
	BuyerEmail    string     `json:"buyer_email"`
	BuyerName     string     `json:"buyer_name"`
	PayableAmount int        `json:"payable_amount"`
	Details       string     `json:"submission_details"`
	Status        string     `json:"status"`
	SubmittedAt   time.Time  `json:"submitted_at"`
	ReviewedAt    *time.Time `json:"reviewed_at,omitempty"`
}

func (s *Submission) IsPending() bool { return s.Status == SubmissionPending }
