package router

import (
	"net/http"

	"github.com/taskflow/backend/internal/auth"
	"github.com/taskflow/backend/internal/dashboard"
	"github.com/taskflow/backend/internal/handlers"
	"github.com/taskflow/backend/internal/middleware"
	"github.com/taskflow/backend/internal/models"
	"github.com/taskflow/backend/internal/respond"
	"github.com/taskflow/backend/internal/services"
)

// Deps carries everything the route table needs.
type Deps struct {
	Tokens        middleware.TokenValidator
	Validator     middleware.BodyValidator
	Auth          *auth.Handler
	Tasks         *handlers.TaskHandler
	Submissions   *handlers.SubmissionHandler
	Withdrawals   *handlers.WithdrawalHandler
	Payments      *handlers.PaymentHandler
	Notifications *handlers.NotificationHandler
	Users         *handlers.UserHandler
	Dashboard     *dashboard.Handler
}

// New returns an http.Handler that serves the API under /api.
func New(d Deps) http.Handler {
	mux := http.NewServeMux()

	authed := middleware.Authenticate(d.Tokens)
	role := func(h http.HandlerFunc, roles ...string) http.Handler {
		return authed(middleware.RequireRole(roles...)(h))
	}
	body := func(schema string, h http.Handler, immutable ...string) http.Handler {
		return middleware.ValidateBody(d.Validator, schema, immutable...)(h)
	}
	const (
		worker = models.RoleWorker
		buyer  = models.RoleBuyer
		admin  = models.RoleAdmin
	)

	mux.HandleFunc("GET /{$}", health)

	// Auth
	mux.Handle("POST /api/auth/register", body(services.SchemaRegister, http.HandlerFunc(d.Auth.Register)))
	mux.Handle("POST /api/auth/login", body(services.SchemaLogin, http.HandlerFunc(d.Auth.Login)))
	mux.Handle("GET /api/auth/me", authed(http.HandlerFunc(d.Auth.Me)))

	// Tasks
	mux.Handle("GET /api/tasks", authed(http.HandlerFunc(d.Tasks.ListTasks)))
	mux.Handle("GET /api/tasks/mine", role(d.Tasks.MyTasks, buyer))
	mux.Handle("GET /api/tasks/{id}", authed(http.HandlerFunc(d.Tasks.GetTask)))
	mux.Handle("DELETE /api/tasks/{id}", role(d.Tasks.DeleteTask, buyer, admin))

	// Submissions
	mux.Handle("GET /api/submissions/mine", role(d.Submissions.Mine, worker))
	mux.Handle("GET /api/submissions/task/{id}", role(d.Submissions.ForTask, buyer, admin))
	mux.Handle("GET /api/submissions/pending", role(d.Submissions.Pending, buyer))
	mux.Handle("PATCH /api/submissions/{id}/approve", role(d.Submissions.Approve, buyer, admin))
	mux.Handle("PATCH /api/submissions/{id}/reject", role(d.Submissions.Reject, buyer, admin))

	// Withdrawals
	mux.Handle("GET /api/withdrawals", role(d.Withdrawals.List, admin))
	mux.Handle("GET /api/withdrawals/mine", role(d.Withdrawals.Mine, worker))
	mux.Handle("PATCH /api/withdrawals/{id}/approve", role(d.Withdrawals.Approve, admin))

	// Payments
	mux.HandleFunc("GET /api/payments/packages", handlers.Packages)
	mux.Handle("GET /api/payments/mine", role(d.Payments.Mine, buyer))

	// Body-carrying routes validate after auth so anonymous callers get 401.
	mux.Handle("POST /api/tasks", authed(middleware.RequireRole(buyer)(
		body(services.SchemaCreateTask, http.HandlerFunc(d.Tasks.CreateTask)))))
	mux.Handle("PUT /api/tasks/{id}", authed(middleware.RequireRole(buyer)(
		body(services.SchemaUpdateTask, http.HandlerFunc(d.Tasks.UpdateTask), "required_workers", "payable_amount"))))
	mux.Handle("POST /api/submissions", authed(middleware.RequireRole(worker)(
		body(services.SchemaSubmission, http.HandlerFunc(d.Submissions.Submit)))))
	mux.Handle("POST /api/withdrawals", authed(middleware.RequireRole(worker)(
		body(services.SchemaWithdrawal, http.HandlerFunc(d.Withdrawals.Request)))))
	mux.Handle("POST /api/payments", authed(middleware.RequireRole(buyer)(
		body(services.SchemaPurchase, http.HandlerFunc(d.Payments.Purchase)))))
	mux.Handle("PATCH /api/users/{id}/role", authed(middleware.RequireRole(admin)(
		body(services.SchemaUpdateRole, http.HandlerFunc(d.Users.UpdateRole)))))

	// Notifications
	mux.Handle("GET /api/notifications", authed(http.HandlerFunc(d.Notifications.List)))
	mux.Handle("PATCH /api/notifications/read-all", authed(http.HandlerFunc(d.Notifications.MarkAllRead)))
	mux.Handle("PATCH /api/notifications/{id}/read", authed(http.HandlerFunc(d.Notifications.MarkRead)))

	// Users
	mux.HandleFunc("GET /api/users/top-workers", d.Users.TopWorkers)
	mux.Handle("GET /api/users", role(d.Users.List, admin))
	mux.Handle("DELETE /api/users/{id}", role(d.Users.Delete, admin))

	// Stats
	mux.HandleFunc("GET /api/stats/public", d.Dashboard.PublicStats)
	mux.Handle("GET /api/stats/admin", role(d.Dashboard.AdminStats, admin))
	mux.Handle("GET /api/stats/worker", role(d.Dashboard.WorkerStats, worker))
	mux.Handle("GET /api/stats/buyer", role(d.Dashboard.BuyerStats, buyer))
	mux.Handle("GET /api/ledger/mine", authed(http.HandlerFunc(d.Dashboard.MyLedger)))

	mux.HandleFunc("/api/", func(w http.ResponseWriter, r *http.Request) {
		respond.Fail(w, services.KindNotFound, "no route for "+r.Method+" "+r.URL.Path)
	})
	return mux
}

func health(w http.ResponseWriter, _ *http.Request) {
	respond.JSON(w, http.StatusOK, map[string]string{"status": "ok", "service": "taskflow"})
}
