package handlers

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/google/uuid"

	"github.com/taskflow/backend/internal/models"
	"github.com/taskflow/backend/internal/respond"
	"github.com/taskflow/backend/internal/services"
)

// SubmissionService is the subset of the submission engine the handler needs.
type SubmissionService interface {
	Submit(ctx context.Context, actor models.Actor, taskID uuid.UUID, details string) (*models.Submission, error)
	Approve(ctx context.Context, actor models.Actor, submissionID uuid.UUID) (*models.Submission, error)
	Reject(ctx context.Context, actor models.Actor, submissionID uuid.UUID) (*models.Submission, error)
	ListByWorker(ctx context.Context, actor models.Actor, page, limit int) (*services.SubmissionPage, error)
	ListByTask(ctx context.Context, actor models.Actor, taskID uuid.UUID) ([]*models.Submission, error)
	ListPendingForBuyer(ctx context.Context, actor models.Actor) ([]*models.Submission, error)
}

// SubmissionHandler serves /api/submissions endpoints.
type SubmissionHandler struct {
	Submissions SubmissionService
	Logger      *slog.Logger
}

type submitRequest struct {
	TaskID  string `json:"task_id"`
	Details string `json:"submission_details"`
}

// Submit handles POST /api/submissions.
func (h *SubmissionHandler) Submit(w http.ResponseWriter, r *http.Request) {
	actor, ok := callerOf(w, r)
	if !ok {
		return
	}
	var req submitRequest
	if !decode(w, r, &req) {
		return
	}
	taskID, err := uuid.Parse(req.TaskID)
	if err != nil {
		respond.Fail(w, services.KindInvalidInput, "invalid task_id")
		return
	}
	sub, err := h.Submissions.Submit(r.Context(), actor, taskID, req.Details)
	if err != nil {
		respond.Error(w, h.Logger, err, "op", "submit", "task_id", taskID, "actor", actor.UserID)
		return
	}
	respond.JSON(w, http.StatusCreated, sub)
}

// Mine handles GET /api/submissions/mine?page=&limit=.
func (h *SubmissionHandler) Mine(w http.ResponseWriter, r *http.Request) {
	actor, ok := callerOf(w, r)
	if !ok {
		return
	}
	page, err := h.Submissions.ListByWorker(r.Context(), actor, queryInt(r, "page", 1), queryInt(r, "limit", 0))
	if err != nil {
		respond.Error(w, h.Logger, err, "op", "list_my_submissions", "actor", actor.UserID)
		return
	}
	page.Submissions = nonNil(page.Submissions)
	respond.JSON(w, http.StatusOK, page)
}

// ForTask handles GET /api/submissions/task/{id}.
func (h *SubmissionHandler) ForTask(w http.ResponseWriter, r *http.Request) {
	actor, ok := callerOf(w, r)
	if !ok {
		return
	}
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	subs, err := h.Submissions.ListByTask(r.Context(), actor, id)
	if err != nil {
		respond.Error(w, h.Logger, err, "op", "list_task_submissions", "task_id", id)
		return
	}
	respond.JSON(w, http.StatusOK, nonNil(subs))
}

// Pending handles GET /api/submissions/pending.
func (h *SubmissionHandler) Pending(w http.ResponseWriter, r *http.Request) {
	actor, ok := callerOf(w, r)
	if !ok {
		return
	}
	subs, err := h.Submissions.ListPendingForBuyer(r.Context(), actor)
	if err != nil {
		respond.Error(w, h.Logger, err, "op", "list_pending", "actor", actor.UserID)
		return
	}
	respond.JSON(w, http.StatusOK, nonNil(subs))
}

// Approve handles PATCH /api/submissions/{id}/approve.
func (h *SubmissionHandler) Approve(w http.ResponseWriter, r *http.Request) {
	h.review(w, r, "approve", h.Submissions.Approve)
}

// Reject handles PATCH /api/submissions/{id}/reject.
func (h *SubmissionHandler) Reject(w http.ResponseWriter, r *http.Request) {
	h.review(w, r, "reject", h.Submissions.Reject)
}

func (h *SubmissionHandler) review(w http.ResponseWriter, r *http.Request, op string,
	fn func(context.Context, models.Actor, uuid.UUID) (*models.Submission, error)) {
	actor, ok := callerOf(w, r)
	if !ok {
		return
	}
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	sub, err := fn(r.Context(), actor, id)
	if err != nil {
		respond.Error(w, h.Logger, err, "op", op, "submission_id", id, "actor", actor.UserID)
		return
	}
	respond.JSON(w, http.StatusOK, sub)
}
