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

const topWorkersLimit = 6

// UserDirectory is the user administration surface. UpdateRole returns
// pgx.ErrNoRows for unknown ids.
type UserDirectory interface {
	List(ctx context.Context) ([]*models.User, error)
	TopWorkers(ctx context.Context, limit int) ([]*models.User, error)
	UpdateRole(ctx context.Context, id uuid.UUID, role string) error
}

// UserRemover deletes accounts and settles what they leave behind.
type UserRemover interface {
	DeleteUser(ctx context.Context, actor models.Actor, id uuid.UUID) (int, error)
}

// UserHandler serves /api/users endpoints.
type UserHandler struct {
	Users    UserDirectory
	Accounts UserRemover
	Logger   *slog.Logger
}

// List handles GET /api/users (admin).
func (h *UserHandler) List(w http.ResponseWriter, r *http.Request) {
	users, err := h.Users.List(r.Context())
	if err != nil {
		respond.Error(w, h.Logger, err, "op", "list_users")
		return
	}
	respond.JSON(w, http.StatusOK, nonNil(users))
}

// TopWorkers handles GET /api/users/top-workers (public).
func (h *UserHandler) TopWorkers(w http.ResponseWriter, r *http.Request) {
	users, err := h.Users.TopWorkers(r.Context(), topWorkersLimit)
	if err != nil {
		respond.Error(w, h.Logger, err, "op", "top_workers")
		return
	}
	respond.JSON(w, http.StatusOK, nonNil(users))
}

type updateRoleRequest struct {
	Role string `json:"role"`
}

// UpdateRole handles PATCH /api/users/{id}/role (admin). The new role takes
// effect on the user's next login.
func (h *UserHandler) UpdateRole(w http.ResponseWriter, r *http.Request) {
	actor, ok := callerOf(w, r)
	if !ok {
		return
	}
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	var req updateRoleRequest
	if !decode(w, r, &req) {
		return
	}
	if !models.ValidRole(req.Role) {
		respond.Fail(w, services.KindInvalidInput, "unknown role")
		return
	}
	if id == actor.UserID {
		respond.Fail(w, services.KindInvalidInput, "admins cannot change their own role")
		return
	}
	if err := h.Users.UpdateRole(r.Context(), id, req.Role); err != nil {
		respond.Error(w, h.Logger, notFound(err), "op", "update_role", "user_id", id)
		return
	}
	h.logger().Info("user role changed", "user_id", id, "role", req.Role, "by", actor.UserID)
	respond.JSON(w, http.StatusOK, map[string]any{"id": id, "role": req.Role})
}

// Delete handles DELETE /api/users/{id} (admin).
func (h *UserHandler) Delete(w http.ResponseWriter, r *http.Request) {
	actor, ok := callerOf(w, r)
	if !ok {
		return
	}
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	if id == actor.UserID {
		respond.Fail(w, services.KindInvalidInput, "admins cannot delete themselves")
		return
	}
	if _, err := h.Accounts.DeleteUser(r.Context(), actor, id); err != nil {
		respond.Error(w, h.Logger, err, "op", "delete_user", "user_id", id)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *UserHandler) logger() *slog.Logger {
	if h.Logger == nil {
		return slog.Default()
	}
	return h.Logger
}
