package handlers

import (
	"context"
	"errors"
	"log/slog"
	"net/http"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/taskflow/backend/internal/models"
	"github.com/taskflow/backend/internal/respond"
	"github.com/taskflow/backend/internal/services"
)

const notificationPageSize = 20

type NotificationStore interface {
	ListByUser(ctx context.Context, userID uuid.UUID, limit int) ([]*models.Notification, error)
	MarkRead(ctx context.Context, userID, id uuid.UUID) error
	MarkAllRead(ctx context.Context, userID uuid.UUID) (int64, error)
}

// NotificationHandler serves the caller's notification inbox.
type NotificationHandler struct {
	Notifications NotificationStore
	Logger        *slog.Logger
}

// List handles GET /api/notifications, newest first.
func (h *NotificationHandler) List(w http.ResponseWriter, r *http.Request) {
	actor, ok := callerOf(w, r)
	if !ok {
		return
	}
	list, err := h.Notifications.ListByUser(r.Context(), actor.UserID, notificationPageSize)
	if err != nil {
		respond.Error(w, h.Logger, err, "op", "list_notifications", "actor", actor.UserID)
		return
	}
	respond.JSON(w, http.StatusOK, nonNil(list))
}

// MarkRead handles PATCH /api/notifications/{id}/read. Another user's
// notification looks the same as a missing one.
func (h *NotificationHandler) MarkRead(w http.ResponseWriter, r *http.Request) {
	actor, ok := callerOf(w, r)
	if !ok {
		return
	}
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	if err := h.Notifications.MarkRead(r.Context(), actor.UserID, id); err != nil {
		respond.Error(w, h.Logger, notFound(err), "op", "mark_notification_read", "notification_id", id)
		return
	}
	respond.JSON(w, http.StatusOK, map[string]any{"id": id, "read": true})
}

// MarkAllRead handles PATCH /api/notifications/read-all.
func (h *NotificationHandler) MarkAllRead(w http.ResponseWriter, r *http.Request) {
	actor, ok := callerOf(w, r)
	if !ok {
		return
	}
	n, err := h.Notifications.MarkAllRead(r.Context(), actor.UserID)
	if err != nil {
		respond.Error(w, h.Logger, err, "op", "mark_all_read", "actor", actor.UserID)
		return
	}
	respond.JSON(w, http.StatusOK, map[string]int64{"updated": n})
}

func notFound(err error) error {
	if errors.Is(err, pgx.ErrNoRows) {
		return services.ErrNotFound
	}
	return err
}
