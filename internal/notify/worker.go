package notify

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/riverqueue/river"

	"github.com/taskflow/backend/internal/models"
)

// Store persists delivered notifications. Create must be idempotent on ID
// because River retries failed jobs.
type Store interface {
	Create(ctx context.Context, n *models.Notification) error
}

type Worker struct {
	river.WorkerDefaults[Args]
	store Store
}

func NewWorker(store Store) *Worker {
	return &Worker{store: store}
}

func (w *Worker) Work(ctx context.Context, job *river.Job[Args]) error {
	args := job.Args
	err := w.store.Create(ctx, &models.Notification{
		ID:          args.NotificationID,
		UserID:      args.UserID,
		Message:     args.Message,
		ActionRoute: args.ActionRoute,
		Time:        args.Time,
	})
	if err != nil {
		err = fmt.Errorf("store notification %s: %w", args.NotificationID, err)
		if isForeignKeyViolation(err) {
			// The recipient was deleted; retrying cannot succeed.
			return river.JobCancel(err)
		}
		return err
	}
	return nil
}

func isForeignKeyViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == "23503"
}
