package notify

import (
	"context"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/taskflow/backend/internal/models"
)

// Args is the River job payload for one user-facing notification.
type Args struct {
	NotificationID uuid.UUID `json:"notification_id"`
	UserID         uuid.UUID `json:"to_user_id"`
	Message        string    `json:"message"`
	ActionRoute    string    `json:"action_route"`
	Time           time.Time `json:"time"`
}

func (Args) Kind() string { return "notify_user" }

// InsertFunc enqueues a notification job. Provided by main using river.Client.Insert.
type InsertFunc func(ctx context.Context, args Args) error

// RiverNotifier hands notifications to the job queue. It is called after the
// triggering transaction commits; a failed enqueue is logged and dropped.
type RiverNotifier struct {
	insert InsertFunc
	logger *slog.Logger
	now    func() time.Time
}

func NewRiverNotifier(insert InsertFunc, logger *slog.Logger) *RiverNotifier {
	if logger == nil {
		logger = slog.Default()
	}
	return &RiverNotifier{insert: insert, logger: logger, now: time.Now}
}

func (n *RiverNotifier) Notify(ctx context.Context, note models.Notification) {
	if note.ID == uuid.Nil {
		note.ID = uuid.New()
	}
	if note.Time.IsZero() {
		note.Time = n.now().UTC()
	}
	// The request context may be cancelled as soon as the response is written.
	ctx = context.WithoutCancel(ctx)
	err := n.insert(ctx, Args{
		NotificationID: note.ID,
		UserID:         note.UserID,
		Message:        note.Message,
		ActionRoute:    note.ActionRoute,
		Time:           note.Time,
	})
	if err != nil {
		n.logger.Error("failed to enqueue notification", "notification_id", note.ID, "user_id", note.UserID, "error", err)
	}
}
