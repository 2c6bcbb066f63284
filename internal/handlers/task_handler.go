package handlers

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/google/uuid"

	"github.com/taskflow/backend/internal/models"
	"github.com/taskflow/backend/internal/respond"
	"github.com/taskflow/backend/internal/services"
)

// TaskService is the subset of the task registry the handler needs.
type TaskService interface {
	CreateTask(ctx context.Context, actor models.Actor, in services.NewTask) (*models.Task, error)
	DeleteTask(ctx context.Context, actor models.Actor, taskID uuid.UUID) (int, error)
	UpdateTaskDetails(ctx context.Context, actor models.Actor, taskID uuid.UUID, d models.TaskDetails) (*models.Task, error)
	GetTask(ctx context.Context, taskID uuid.UUID) (*models.Task, error)
	ListTasks(ctx context.Context, availableOnly bool) ([]*models.Task, error)
	ListByBuyer(ctx context.Context, actor models.Actor) ([]*models.Task, error)
}

// TaskHandler serves /api/tasks endpoints.
type TaskHandler struct {
	Tasks  TaskService
	Logger *slog.Logger
}

// --- POST /api/tasks ---

type createTaskRequest struct {
	Title           string `json:"task_title"`
	Detail          string `json:"task_detail"`
	SubmissionInfo  string `json:"submission_info"`
	ImageURL        string `json:"task_image_url"`
	RequiredWorkers int    `json:"required_workers"`
	PayableAmount   int    `json:"payable_amount"`
	CompletionDate  string `json:"completion_date"`
}

// CreateTask handles POST /api/tasks. The buyer is charged
// required_workers * payable_amount up front.
func (h *TaskHandler) CreateTask(w http.ResponseWriter, r *http.Request) {
	actor, ok := callerOf(w, r)
	if !ok {
		return
	}
	var req createTaskRequest
	if !decode(w, r, &req) {
		return
	}
	due, err := time.Parse(time.DateOnly, req.CompletionDate)
	if err != nil {
		respond.Fail(w, services.KindInvalidInput, "completion_date must be YYYY-MM-DD")
		return
	}

	task, err := h.Tasks.CreateTask(r.Context(), actor, services.NewTask{
		Title:           req.Title,
		Detail:          req.Detail,
		SubmissionInfo:  req.SubmissionInfo,
		ImageURL:        req.ImageURL,
		RequiredWorkers: req.RequiredWorkers,
		PayableAmount:   req.PayableAmount,
		CompletionDate:  due,
	})
	if err != nil {
		respond.Error(w, h.Logger, err, "op", "create_task", "actor", actor.UserID)
		return
	}
	respond.JSON(w, http.StatusCreated, task)
}

// --- GET /api/tasks ---

// ListTasks handles GET /api/tasks. ?available=true hides full tasks.
func (h *TaskHandler) ListTasks(w http.ResponseWriter, r *http.Request) {
	tasks, err := h.Tasks.ListTasks(r.Context(), r.URL.Query().Get("available") == "true")
	if err != nil {
		respond.Error(w, h.Logger, err, "op", "list_tasks")
		return
	}
	respond.JSON(w, http.StatusOK, nonNil(tasks))
}

// MyTasks handles GET /api/tasks/mine.
func (h *TaskHandler) MyTasks(w http.ResponseWriter, r *http.Request) {
	actor, ok := callerOf(w, r)
	if !ok {
		return
	}
	tasks, err := h.Tasks.ListByBuyer(r.Context(), actor)
	if err != nil {
		respond.Error(w, h.Logger, err, "op", "list_my_tasks", "actor", actor.UserID)
		return
	}
	respond.JSON(w, http.StatusOK, nonNil(tasks))
}

// --- GET /api/tasks/{id} ---

func (h *TaskHandler) GetTask(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	task, err := h.Tasks.GetTask(r.Context(), id)
	if err != nil {
		respond.Error(w, h.Logger, err, "op", "get_task", "task_id", id)
		return
	}
	respond.JSON(w, http.StatusOK, task)
}

// --- PUT /api/tasks/{id} ---

// UpdateTask changes the descriptive fields only. Bodies carrying
// required_workers or payable_amount never reach here.
func (h *TaskHandler) UpdateTask(w http.ResponseWriter, r *http.Request) {
	actor, ok := callerOf(w, r)
	if !ok {
		return
	}
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	var d models.TaskDetails
	if !decode(w, r, &d) {
		return
	}
	task, err := h.Tasks.UpdateTaskDetails(r.Context(), actor, id, d)
	if err != nil {
		respond.Error(w, h.Logger, err, "op", "update_task", "task_id", id, "actor", actor.UserID)
		return
	}
	respond.JSON(w, http.StatusOK, task)
}

// --- DELETE /api/tasks/{id} ---

type deleteTaskResponse struct {
	TaskID   uuid.UUID `json:"task_id"`
	Refunded int       `json:"refunded_coins"`
}

func (h *TaskHandler) DeleteTask(w http.ResponseWriter, r *http.Request) {
	actor, ok := callerOf(w, r)
	if !ok {
		return
	}
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	refund, err := h.Tasks.DeleteTask(r.Context(), actor, id)
	if err != nil {
		respond.Error(w, h.Logger, err, "op", "delete_task", "task_id", id, "actor", actor.UserID)
		return
	}
	respond.JSON(w, http.StatusOK, deleteTaskResponse{TaskID: id, Refunded: refund})
}

// nonNil keeps empty lists encoding as [] rather than null.
func nonNil[T any](s []T) []T {
	if s == nil {
		return []T{}
	}
	return s
}
