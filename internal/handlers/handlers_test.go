package handlers

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/shopspring/decimal"

	"github.com/taskflow/backend/internal/middleware"
	"github.com/taskflow/backend/internal/models"
	"github.com/taskflow/backend/internal/respond"
	"github.com/taskflow/backend/internal/services"
)

// ---------------------------------------------------------------------------
// Mocks
// ---------------------------------------------------------------------------

type stubTasks struct {
	created   services.NewTask
	task      *models.Task
	refund    int
	available bool
	err       error
}

func (s *stubTasks) CreateTask(_ context.Context, _ models.Actor, in services.NewTask) (*models.Task, error) {
	s.created = in
	return s.task, s.err
}
func (s *stubTasks) DeleteTask(context.Context, models.Actor, uuid.UUID) (int, error) {
	return s.refund, s.err
}
func (s *stubTasks) UpdateTaskDetails(context.Context, models.Actor, uuid.UUID, models.TaskDetails) (*models.Task, error) {
	return s.task, s.err
}
func (s *stubTasks) GetTask(context.Context, uuid.UUID) (*models.Task, error) { return s.task, s.err }
func (s *stubTasks) ListTasks(_ context.Context, availableOnly bool) ([]*models.Task, error) {
	s.available = availableOnly
	return nil, s.err
}
func (s *stubTasks) ListByBuyer(context.Context, models.Actor) ([]*models.Task, error) {
	return nil, s.err
}

type stubSubmissions struct {
	page, limit int
	taskID      uuid.UUID
	err         error
}

func (s *stubSubmissions) Submit(_ context.Context, a models.Actor, taskID uuid.UUID, details string) (*models.Submission, error) {
	s.taskID = taskID
	return &models.Submission{ID: uuid.New(), TaskID: taskID, WorkerID: a.UserID, Details: details, Status: models.SubmissionPending}, s.err
}
func (s *stubSubmissions) Approve(_ context.Context, _ models.Actor, id uuid.UUID) (*models.Submission, error) {
	return &models.Submission{ID: id, Status: models.SubmissionApproved}, s.err
}
func (s *stubSubmissions) Reject(_ context.Context, _ models.Actor, id uuid.UUID) (*models.Submission, error) {
	return &models.Submission{ID: id, Status: models.SubmissionRejected}, s.err
}
func (s *stubSubmissions) ListByWorker(_ context.Context, _ models.Actor, page, limit int) (*services.SubmissionPage, error) {
	s.page, s.limit = page, limit
	return &services.SubmissionPage{Page: page}, s.err
}
func (s *stubSubmissions) ListByTask(context.Context, models.Actor, uuid.UUID) ([]*models.Submission, error) {
	return nil, s.err
}
func (s *stubSubmissions) ListPendingForBuyer(context.Context, models.Actor) ([]*models.Submission, error) {
	return nil, s.err
}

type stubWithdrawals struct {
	req services.WithdrawalRequest
	err error
}

func (s *stubWithdrawals) RequestWithdrawal(_ context.Context, _ models.Actor, req services.WithdrawalRequest) (*models.Withdrawal, error) {
	s.req = req
	if s.err != nil {
		return nil, s.err
	}
	return &models.Withdrawal{ID: uuid.New(), Coins: req.Coins, CashAmount: models.CashForCoins(req.Coins)}, nil
}
func (s *stubWithdrawals) ApproveWithdrawal(_ context.Context, _ models.Actor, id uuid.UUID) (*models.Withdrawal, error) {
	return &models.Withdrawal{ID: id, Status: models.WithdrawalApproved}, s.err
}
func (s *stubWithdrawals) ListAll(context.Context, models.Actor) ([]*models.Withdrawal, error) {
	return nil, s.err
}
func (s *stubWithdrawals) ListByWorker(context.Context, models.Actor) ([]*models.Withdrawal, error) {
	return nil, s.err
}

type stubNotifications struct {
	limit int
	err   error
}

func (s *stubNotifications) ListByUser(_ context.Context, _ uuid.UUID, limit int) ([]*models.Notification, error) {
	s.limit = limit
	return nil, s.err
}
func (s *stubNotifications) MarkRead(context.Context, uuid.UUID, uuid.UUID) error { return s.err }
func (s *stubNotifications) MarkAllRead(context.Context, uuid.UUID) (int64, error) {
	return 3, s.err
}

type stubUsers struct {
	limit   int
	role    string
	deleted uuid.UUID
	settled int
	err     error
}

func (s *stubUsers) List(context.Context) ([]*models.User, error) { return nil, s.err }
func (s *stubUsers) TopWorkers(_ context.Context, limit int) ([]*models.User, error) {
	s.limit = limit
	return nil, s.err
}
func (s *stubUsers) UpdateRole(_ context.Context, _ uuid.UUID, role string) error {
	s.role = role
	return s.err
}
func (s *stubUsers) DeleteUser(_ context.Context, _ models.Actor, id uuid.UUID) (int, error) {
	s.deleted = id
	return s.settled, s.err
}

// ---------------------------------------------------------------------------
// Helpers
// ---------------------------------------------------------------------------

func as(r *http.Request, role string) (*http.Request, models.Actor) {
	a := models.Actor{UserID: uuid.New(), Role: role}
	return r.WithContext(middleware.WithActor(r.Context(), a)), a
}

func withID(r *http.Request, id string) *http.Request {
	r.SetPathValue("id", id)
	return r
}

func kindOf(t *testing.T, rec *httptest.ResponseRecorder) string {
	t.Helper()
	var body respond.ErrorBody
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatalf("decode error body %q: %v", rec.Body.String(), err)
	}
	return body.Error.Kind
}

// ---------------------------------------------------------------------------
// Tasks
// ---------------------------------------------------------------------------

func TestCreateTask_ParsesCompletionDate(t *testing.T) {
	stub := &stubTasks{task: &models.Task{ID: uuid.New()}}
	h := &TaskHandler{Tasks: stub}

	body := `{"task_title":"Watch video","task_detail":"d","submission_info":"s","required_workers":5,"payable_amount":10,"completion_date":"2026-12-31"}`
	req, _ := as(httptest.NewRequest(http.MethodPost, "/api/tasks", strings.NewReader(body)), models.RoleBuyer)
	rec := httptest.NewRecorder()
	h.CreateTask(rec, req)

	if rec.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d: %s", rec.Code, rec.Body.String())
	}
	want := time.Date(2026, 12, 31, 0, 0, 0, 0, time.UTC)
	if !stub.created.CompletionDate.Equal(want) || stub.created.RequiredWorkers != 5 || stub.created.PayableAmount != 10 {
		t.Errorf("unexpected NewTask: %+v", stub.created)
	}
}

func TestCreateTask_InsufficientFunds(t *testing.T) {
	h := &TaskHandler{Tasks: &stubTasks{err: services.ErrInsufficientFunds}}
	body := `{"task_title":"t","task_detail":"d","submission_info":"s","required_workers":5,"payable_amount":10,"completion_date":"2026-12-31"}`
	req, _ := as(httptest.NewRequest(http.MethodPost, "/", strings.NewReader(body)), models.RoleBuyer)
	rec := httptest.NewRecorder()
	h.CreateTask(rec, req)

	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", rec.Code)
	}
	if kind := kindOf(t, rec); kind != services.KindInsufficientFunds {
		t.Errorf("expected InsufficientFunds, got %q", kind)
	}
}

func TestCreateTask_BadDate(t *testing.T) {
	h := &TaskHandler{Tasks: &stubTasks{}}
	body := `{"task_title":"t","task_detail":"d","submission_info":"s","required_workers":1,"payable_amount":1,"completion_date":"2026-13-40"}`
	req, _ := as(httptest.NewRequest(http.MethodPost, "/", strings.NewReader(body)), models.RoleBuyer)
	rec := httptest.NewRecorder()
	h.CreateTask(rec, req)
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", rec.Code)
	}
}

func TestCreateTask_Unauthenticated(t *testing.T) {
	h := &TaskHandler{Tasks: &stubTasks{}}
	rec := httptest.NewRecorder()
	h.CreateTask(rec, httptest.NewRequest(http.MethodPost, "/", strings.NewReader(`{}`)))
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %d", rec.Code)
	}
}

func TestListTasks_AvailableFilterAndEmptyArray(t *testing.T) {
	stub := &stubTasks{}
	h := &TaskHandler{Tasks: stub}
	rec := httptest.NewRecorder()
	h.ListTasks(rec, httptest.NewRequest(http.MethodGet, "/api/tasks?available=true", nil))

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	if !stub.available {
		t.Error("available filter not passed through")
	}
	if strings.TrimSpace(rec.Body.String()) != "[]" {
		t.Errorf("expected [], got %s", rec.Body.String())
	}
}

func TestGetTask_InvalidAndMissing(t *testing.T) {
	h := &TaskHandler{Tasks: &stubTasks{err: services.ErrNotFound}}

	rec := httptest.NewRecorder()
	h.GetTask(rec, withID(httptest.NewRequest(http.MethodGet, "/", nil), "not-a-uuid"))
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("bad id: expected 400, got %d", rec.Code)
	}

	rec = httptest.NewRecorder()
	h.GetTask(rec, withID(httptest.NewRequest(http.MethodGet, "/", nil), uuid.NewString()))
	if rec.Code != http.StatusNotFound {
		t.Fatalf("missing: expected 404, got %d", rec.Code)
	}
}

func TestDeleteTask_ReportsRefund(t *testing.T) {
	h := &TaskHandler{Tasks: &stubTasks{refund: 30}}
	id := uuid.New()
	req, _ := as(withID(httptest.NewRequest(http.MethodDelete, "/", nil), id.String()), models.RoleBuyer)
	rec := httptest.NewRecorder()
	h.DeleteTask(rec, req)

	var resp deleteTaskResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if resp.TaskID != id || resp.Refunded != 30 {
		t.Errorf("unexpected response %+v", resp)
	}
}

func TestDeleteTask_Unauthorized(t *testing.T) {
	h := &TaskHandler{Tasks: &stubTasks{err: services.ErrUnauthorized}}
	req, _ := as(withID(httptest.NewRequest(http.MethodDelete, "/", nil), uuid.NewString()), models.RoleWorker)
	rec := httptest.NewRecorder()
	h.DeleteTask(rec, req)
	if rec.Code != http.StatusForbidden {
		t.Fatalf("expected 403, got %d", rec.Code)
	}
}

// ---------------------------------------------------------------------------
// Submissions
// ---------------------------------------------------------------------------

func TestSubmit(t *testing.T) {
	stub := &stubSubmissions{}
	h := &SubmissionHandler{Submissions: stub}
	taskID := uuid.New()
	body := `{"task_id":"` + taskID.String() + `","submission_details":"done"}`
	req, _ := as(httptest.NewRequest(http.MethodPost, "/", strings.NewReader(body)), models.RoleWorker)
	rec := httptest.NewRecorder()
	h.Submit(rec, req)

	if rec.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d: %s", rec.Code, rec.Body.String())
	}
	if stub.taskID != taskID {
		t.Errorf("task id %s not passed through", taskID)
	}
}

func TestSubmit_BusinessErrors(t *testing.T) {
	cases := []struct {
		err  error
		kind string
	}{
		{services.ErrTaskFull, services.KindTaskFull},
		{services.ErrDuplicateSubmission, services.KindDuplicateSubmission},
	}
	for _, tc := range cases {
		t.Run(tc.kind, func(t *testing.T) {
			h := &SubmissionHandler{Submissions: &stubSubmissions{err: tc.err}}
			body := `{"task_id":"` + uuid.NewString() + `","submission_details":"x"}`
			req, _ := as(httptest.NewRequest(http.MethodPost, "/", strings.NewReader(body)), models.RoleWorker)
			rec := httptest.NewRecorder()
			h.Submit(rec, req)
			if rec.Code != http.StatusBadRequest || kindOf(t, rec) != tc.kind {
				t.Fatalf("expected 400 %s, got %d %s", tc.kind, rec.Code, rec.Body.String())
			}
		})
	}
}

func TestMySubmissions_Pagination(t *testing.T) {
	stub := &stubSubmissions{}
	h := &SubmissionHandler{Submissions: stub}
	req, _ := as(httptest.NewRequest(http.MethodGet, "/api/submissions/mine?page=3&limit=25", nil), models.RoleWorker)
	rec := httptest.NewRecorder()
	h.Mine(rec, req)

	if stub.page != 3 || stub.limit != 25 {
		t.Errorf("expected page 3 limit 25, got %d %d", stub.page, stub.limit)
	}
	if !strings.Contains(rec.Body.String(), `"submissions":[]`) {
		t.Errorf("expected empty submissions array, got %s", rec.Body.String())
	}
}

func TestApprove_AlreadyFinalized(t *testing.T) {
	h := &SubmissionHandler{Submissions: &stubSubmissions{err: services.ErrAlreadyFinalized}}
	req, _ := as(withID(httptest.NewRequest(http.MethodPatch, "/", nil), uuid.NewString()), models.RoleBuyer)
	rec := httptest.NewRecorder()
	h.Approve(rec, req)
	if rec.Code != http.StatusConflict {
		t.Fatalf("expected 409, got %d", rec.Code)
	}
}

func TestReject(t *testing.T) {
	h := &SubmissionHandler{Submissions: &stubSubmissions{}}
	req, _ := as(withID(httptest.NewRequest(http.MethodPatch, "/", nil), uuid.NewString()), models.RoleBuyer)
	rec := httptest.NewRecorder()
	h.Reject(rec, req)
	if rec.Code != http.StatusOK || !strings.Contains(rec.Body.String(), `"rejected"`) {
		t.Fatalf("unexpected response %d %s", rec.Code, rec.Body.String())
	}
}

// ---------------------------------------------------------------------------
// Withdrawals / payments
// ---------------------------------------------------------------------------

func TestRequestWithdrawal(t *testing.T) {
	stub := &stubWithdrawals{}
	h := &WithdrawalHandler{Withdrawals: stub}
	body := `{"withdraw_coin":200,"payment_system":"bkash","account_number":"017"}`
	req, _ := as(httptest.NewRequest(http.MethodPost, "/", strings.NewReader(body)), models.RoleWorker)
	rec := httptest.NewRecorder()
	h.Request(rec, req)

	if rec.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d", rec.Code)
	}
	if stub.req != (services.WithdrawalRequest{Coins: 200, PaymentSystem: "bkash", AccountNumber: "017"}) {
		t.Errorf("unexpected request %+v", stub.req)
	}
	var wd models.Withdrawal
	if err := json.Unmarshal(rec.Body.Bytes(), &wd); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if !wd.CashAmount.Equal(decimal.NewFromInt(10)) {
		t.Errorf("expected $10, got %s", wd.CashAmount)
	}
}

func TestRequestWithdrawal_BelowMinimum(t *testing.T) {
	h := &WithdrawalHandler{Withdrawals: &stubWithdrawals{err: services.ErrBelowMinimum}}
	body := `{"withdraw_coin":199,"payment_system":"bkash","account_number":"017"}`
	req, _ := as(httptest.NewRequest(http.MethodPost, "/", strings.NewReader(body)), models.RoleWorker)
	rec := httptest.NewRecorder()
	h.Request(rec, req)
	if kind := kindOf(t, rec); kind != services.KindBelowMinimum {
		t.Fatalf("expected BelowMinimum, got %q", kind)
	}
}

func TestPackages(t *testing.T) {
	rec := httptest.NewRecorder()
	Packages(rec, httptest.NewRequest(http.MethodGet, "/", nil))
	var pkgs []models.CoinPackage
	if err := json.Unmarshal(rec.Body.Bytes(), &pkgs); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(pkgs) != len(models.CoinPackages) {
		t.Fatalf("expected %d packages, got %d", len(models.CoinPackages), len(pkgs))
	}
}

// ---------------------------------------------------------------------------
// Notifications / users
// ---------------------------------------------------------------------------

func TestNotifications(t *testing.T) {
	stub := &stubNotifications{}
	h := &NotificationHandler{Notifications: stub}

	req, _ := as(httptest.NewRequest(http.MethodGet, "/", nil), models.RoleWorker)
	rec := httptest.NewRecorder()
	h.List(rec, req)
	if stub.limit != 20 {
		t.Errorf("expected limit 20, got %d", stub.limit)
	}

	req, _ = as(httptest.NewRequest(http.MethodPatch, "/", nil), models.RoleWorker)
	rec = httptest.NewRecorder()
	h.MarkAllRead(rec, req)
	if !strings.Contains(rec.Body.String(), `"updated":3`) {
		t.Errorf("unexpected read-all body %s", rec.Body.String())
	}

	stub.err = pgx.ErrNoRows
	req, _ = as(withID(httptest.NewRequest(http.MethodPatch, "/", nil), uuid.NewString()), models.RoleWorker)
	rec = httptest.NewRecorder()
	h.MarkRead(rec, req)
	if rec.Code != http.StatusNotFound {
		t.Fatalf("expected 404 for someone else's notification, got %d", rec.Code)
	}
}

func TestTopWorkers_Limit(t *testing.T) {
	stub := &stubUsers{}
	h := &UserHandler{Users: stub}
	rec := httptest.NewRecorder()
	h.TopWorkers(rec, httptest.NewRequest(http.MethodGet, "/", nil))
	if stub.limit != 6 {
		t.Fatalf("expected limit 6, got %d", stub.limit)
	}
}

func TestUpdateRole(t *testing.T) {
	stub := &stubUsers{}
	h := &UserHandler{Users: stub}

	req, _ := as(withID(httptest.NewRequest(http.MethodPatch, "/", strings.NewReader(`{"role":"buyer"}`)), uuid.NewString()), models.RoleAdmin)
	rec := httptest.NewRecorder()
	h.UpdateRole(rec, req)
	if rec.Code != http.StatusOK || stub.role != models.RoleBuyer {
		t.Fatalf("expected role change, got %d %q", rec.Code, stub.role)
	}

	stub.err = pgx.ErrNoRows
	req, _ = as(withID(httptest.NewRequest(http.MethodPatch, "/", strings.NewReader(`{"role":"buyer"}`)), uuid.NewString()), models.RoleAdmin)
	rec = httptest.NewRecorder()
	h.UpdateRole(rec, req)
	if rec.Code != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", rec.Code)
	}
}

func TestDeleteUser_SelfRejected(t *testing.T) {
	stub := &stubUsers{}
	h := &UserHandler{Users: stub, Accounts: stub}
	req, admin := as(httptest.NewRequest(http.MethodDelete, "/", nil), models.RoleAdmin)
	req = withID(req, admin.UserID.String())
	rec := httptest.NewRecorder()
	h.Delete(rec, req)
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", rec.Code)
	}
	if stub.deleted != uuid.Nil {
		t.Error("delete should not reach the store")
	}
}

func TestDeleteUser(t *testing.T) {
	stub := &stubUsers{settled: 2}
	h := &UserHandler{Users: stub, Accounts: stub}
	id := uuid.New()

	req, _ := as(withID(httptest.NewRequest(http.MethodDelete, "/", nil), id.String()), models.RoleAdmin)
	rec := httptest.NewRecorder()
	h.Delete(rec, req)
	if rec.Code != http.StatusNoContent || stub.deleted != id {
		t.Fatalf("expected 204 for %s, got %d (deleted %s)", id, rec.Code, stub.deleted)
	}

	stub.err = services.ErrUserNotFound
	req, _ = as(withID(httptest.NewRequest(http.MethodDelete, "/", nil), uuid.NewString()), models.RoleAdmin)
	rec = httptest.NewRecorder()
	h.Delete(rec, req)
	if rec.Code != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", rec.Code)
	}
}
