package services

import (
	"context"
	"errors"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/taskflow/backend/internal/ledger"
	"github.com/taskflow/backend/internal/models"
)

// ---------------------------------------------------------------------------
// memDB is an in-memory transactional store. Begin takes a database-wide lock
// and hands out a private copy of the state; Commit publishes the copy and
// Rollback throws it away, so rolled-back work leaves no trace.
//
// Transactions run one at a time. Concurrency tests against memDB therefore
// check the engines' logic, not the SQL: a missing FOR UPDATE or a guard
// dropped from a conditional UPDATE would still pass here. The repository
// package runs the same races against PostgreSQL when
// TASKFLOW_TEST_DATABASE_URL is set.
// ---------------------------------------------------------------------------

type memState struct {
	users       map[uuid.UUID]*models.User
	tasks       map[uuid.UUID]*models.Task
	subs        map[uuid.UUID]*models.Submission
	withdrawals map[uuid.UUID]*models.Withdrawal
	payments    map[uuid.UUID]*models.Payment
	entries     []*models.CoinEntry
}

func newMemState() *memState {
	return &memState{
		users:       make(map[uuid.UUID]*models.User),
		tasks:       make(map[uuid.UUID]*models.Task),
		subs:        make(map[uuid.UUID]*models.Submission),
		withdrawals: make(map[uuid.UUID]*models.Withdrawal),
		payments:    make(map[uuid.UUID]*models.Payment),
	}
}

func cloneMap[T any](m map[uuid.UUID]*T) map[uuid.UUID]*T {
	out := make(map[uuid.UUID]*T, len(m))
	for k, v := range m {
		cp := *v
		out[k] = &cp
	}
	return out
}

func (s *memState) clone() *memState {
	entries := make([]*models.CoinEntry, len(s.entries))
	copy(entries, s.entries)
	return &memState{
		users:       cloneMap(s.users),
		tasks:       cloneMap(s.tasks),
		subs:        cloneMap(s.subs),
		withdrawals: cloneMap(s.withdrawals),
		payments:    cloneMap(s.payments),
		entries:     entries,
	}
}

type memDB struct {
	mu    sync.Mutex
	state *memState

	// failOn makes the named store call return errInjected, to exercise rollback.
	failOn string
}

var errInjected = errors.New("injected failure")

func newMemDB() *memDB {
	return &memDB{state: newMemState()}
}

func (db *memDB) Begin(context.Context) (pgx.Tx, error) {
	db.mu.Lock()
	return &memTx{db: db, state: db.state.clone()}, nil
}

// read runs fn against the committed state.
func (db *memDB) read(fn func(s *memState)) {
	db.mu.Lock()
	defer db.mu.Unlock()
	fn(db.state)
}

func (db *memDB) addUser(role string, coins int) *models.User {
	u := &models.User{ID: uuid.New(), Name: role + "-" + uuid.NewString()[:8], Role: role, Coins: coins, CreatedAt: time.Now()}
	u.Email = u.Name + "@example.com"
	db.read(func(s *memState) {
		cp := *u
		s.users[u.ID] = &cp
	})
	return u
}

func (db *memDB) balance(id uuid.UUID) int {
	var n int
	db.read(func(s *memState) {
		if u, ok := s.users[id]; ok {
			n = u.Coins
		}
	})
	return n
}

func (db *memDB) task(id uuid.UUID) *models.Task {
	var t *models.Task
	db.read(func(s *memState) {
		if v, ok := s.tasks[id]; ok {
			cp := *v
			t = &cp
		}
	})
	return t
}

func (db *memDB) submission(id uuid.UUID) *models.Submission {
	var out *models.Submission
	db.read(func(s *memState) {
		if v, ok := s.subs[id]; ok {
			cp := *v
			out = &cp
		}
	})
	return out
}

func (db *memDB) ledgerEntries() []*models.CoinEntry {
	var out []*models.CoinEntry
	db.read(func(s *memState) {
		out = append(out, s.entries...)
	})
	return out
}

// ---------------------------------------------------------------------------
// memTx satisfies pgx.Tx. Only Commit and Rollback do anything.
// ---------------------------------------------------------------------------

type memTx struct {
	db    *memDB
	state *memState
	done  bool
}

func (tx *memTx) Commit(context.Context) error {
	if tx.done {
		return pgx.ErrTxClosed
	}
	tx.done = true
	tx.db.state = tx.state
	tx.db.mu.Unlock()
	return nil
}

func (tx *memTx) Rollback(context.Context) error {
	if tx.done {
		return pgx.ErrTxClosed
	}
	tx.done = true
	tx.db.mu.Unlock()
	return nil
}

func (tx *memTx) Begin(context.Context) (pgx.Tx, error) { return nil, errors.New("nested tx not supported") }
func (tx *memTx) Exec(context.Context, string, ...any) (pgconn.CommandTag, error) {
	return pgconn.NewCommandTag(""), nil
}
func (tx *memTx) Query(context.Context, string, ...any) (pgx.Rows, error) { return nil, nil }
func (tx *memTx) QueryRow(context.Context, string, ...any) pgx.Row        { return nil }
func (tx *memTx) CopyFrom(context.Context, pgx.Identifier, []string, pgx.CopyFromSource) (int64, error) {
	return 0, nil
}
func (tx *memTx) SendBatch(context.Context, *pgx.Batch) pgx.BatchResults { return nil }
func (tx *memTx) LargeObjects() pgx.LargeObjects                         { return pgx.LargeObjects{} }
func (tx *memTx) Prepare(context.Context, string, string) (*pgconn.StatementDescription, error) {
	return nil, nil
}
func (tx *memTx) Conn() *pgx.Conn { return nil }

func stateOf(tx pgx.Tx) *memState {
	return tx.(*memTx).state
}

// ---------------------------------------------------------------------------
// Store implementations over memDB.
// ---------------------------------------------------------------------------

type memUsers struct{ db *memDB }

func (m memUsers) GetByIDTx(_ context.Context, tx pgx.Tx, id uuid.UUID) (*models.User, error) {
	u, ok := stateOf(tx).users[id]
	if !ok {
		return nil, pgx.ErrNoRows
	}
	cp := *u
	return &cp, nil
}

func (m memUsers) GetByIDForUpdate(ctx context.Context, tx pgx.Tx, id uuid.UUID) (*models.User, error) {
	return m.GetByIDTx(ctx, tx, id)
}

// DeleteTx mirrors the ON DELETE CASCADE foreign keys of the real schema.
func (m memUsers) DeleteTx(_ context.Context, tx pgx.Tx, id uuid.UUID) error {
	s := stateOf(tx)
	if _, ok := s.users[id]; !ok {
		return pgx.ErrNoRows
	}
	delete(s.users, id)
	for tid, t := range s.tasks {
		if t.BuyerID == id {
			delete(s.tasks, tid)
		}
	}
	for sid, sub := range s.subs {
		if _, ok := s.tasks[sub.TaskID]; !ok || sub.WorkerID == id {
			delete(s.subs, sid)
		}
	}
	for wid, w := range s.withdrawals {
		if w.WorkerID == id {
			delete(s.withdrawals, wid)
		}
	}
	for pid, p := range s.payments {
		if p.BuyerID == id {
			delete(s.payments, pid)
		}
	}
	kept := s.entries[:0:0]
	for _, e := range s.entries {
		if e.UserID != id {
			kept = append(kept, e)
		}
	}
	s.entries = kept
	return nil
}

type memLedger struct{ db *memDB }

func (m memLedger) DeductCoins(_ context.Context, tx pgx.Tx, id uuid.UUID, amount int) (int, error) {
	u, ok := stateOf(tx).users[id]
	if !ok || u.Coins < amount {
		return 0, pgx.ErrNoRows
	}
	u.Coins -= amount
	return u.Coins, nil
}

func (m memLedger) AddCoins(_ context.Context, tx pgx.Tx, id uuid.UUID, amount int) (int, error) {
	if m.db.failOn == "AddCoins" {
		return 0, errInjected
	}
	u, ok := stateOf(tx).users[id]
	if !ok {
		return 0, pgx.ErrNoRows
	}
	u.Coins += amount
	return u.Coins, nil
}

func (m memLedger) UserExists(_ context.Context, tx pgx.Tx, id uuid.UUID) (bool, error) {
	_, ok := stateOf(tx).users[id]
	return ok, nil
}

func (m memLedger) InsertEntry(_ context.Context, tx pgx.Tx, e *models.CoinEntry) error {
	s := stateOf(tx)
	cp := *e
	s.entries = append(s.entries, &cp)
	return nil
}

func (m memLedger) Balance(_ context.Context, id uuid.UUID) (int, error) {
	var (
		n  int
		ok bool
	)
	m.db.read(func(s *memState) {
		var u *models.User
		if u, ok = s.users[id]; ok {
			n = u.Coins
		}
	})
	if !ok {
		return 0, pgx.ErrNoRows
	}
	return n, nil
}

func (m memLedger) History(_ context.Context, id uuid.UUID, limit int) ([]*models.CoinEntry, error) {
	var out []*models.CoinEntry
	m.db.read(func(s *memState) {
		for i := len(s.entries) - 1; i >= 0 && len(out) < limit; i-- {
			if s.entries[i].UserID == id {
				out = append(out, s.entries[i])
			}
		}
	})
	return out, nil
}

type memTasks struct{ db *memDB }

func (m memTasks) Create(_ context.Context, tx pgx.Tx, t *models.Task) error {
	if m.db.failOn == "TaskCreate" {
		return errInjected
	}
	t.FilledCount = 0
	t.CreatedAt = time.Now()
	t.UpdatedAt = t.CreatedAt
	cp := *t
	stateOf(tx).tasks[t.ID] = &cp
	return nil
}

func (m memTasks) GetByID(_ context.Context, id uuid.UUID) (*models.Task, error) {
	if t := m.db.task(id); t != nil {
		return t, nil
	}
	return nil, pgx.ErrNoRows
}

func (m memTasks) GetByIDForUpdate(_ context.Context, tx pgx.Tx, id uuid.UUID) (*models.Task, error) {
	t, ok := stateOf(tx).tasks[id]
	if !ok {
		return nil, pgx.ErrNoRows
	}
	cp := *t
	return &cp, nil
}

func (m memTasks) IncrementFilled(_ context.Context, tx pgx.Tx, id uuid.UUID) (int, error) {
	t, ok := stateOf(tx).tasks[id]
	if !ok || t.FilledCount >= t.RequiredWorkers {
		return 0, pgx.ErrNoRows
	}
	t.FilledCount++
	return t.FilledCount, nil
}

func (m memTasks) DecrementFilled(_ context.Context, tx pgx.Tx, id uuid.UUID) (int, error) {
	t, ok := stateOf(tx).tasks[id]
	if !ok {
		return 0, pgx.ErrNoRows
	}
	if t.FilledCount > 0 {
		t.FilledCount--
	}
	return t.FilledCount, nil
}

func (m memTasks) UpdateDetails(_ context.Context, tx pgx.Tx, id uuid.UUID, d models.TaskDetails) error {
	t, ok := stateOf(tx).tasks[id]
	if !ok {
		return pgx.ErrNoRows
	}
	t.Title, t.Detail, t.SubmissionInfo = d.Title, d.Detail, d.SubmissionInfo
	return nil
}

func (m memTasks) Delete(_ context.Context, tx pgx.Tx, id uuid.UUID) error {
	s := stateOf(tx)
	if _, ok := s.tasks[id]; !ok {
		return pgx.ErrNoRows
	}
	delete(s.tasks, id)
	return nil
}

func (m memTasks) List(_ context.Context, availableOnly bool) ([]*models.Task, error) {
	var out []*models.Task
	m.db.read(func(s *memState) {
		for _, t := range s.tasks {
			if availableOnly && t.RemainingSlots() <= 0 {
				continue
			}
			cp := *t
			out = append(out, &cp)
		}
	})
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return out, nil
}

func (m memTasks) ListByBuyer(ctx context.Context, buyerID uuid.UUID) ([]*models.Task, error) {
	all, _ := m.List(ctx, false)
	var out []*models.Task
	for _, t := range all {
		if t.BuyerID == buyerID {
			out = append(out, t)
		}
	}
	return out, nil
}

type memSubmissions struct{ db *memDB }

func (m memSubmissions) Create(_ context.Context, tx pgx.Tx, sub *models.Submission) error {
	s := stateOf(tx)
	for _, existing := range s.subs {
		if existing.TaskID == sub.TaskID && existing.WorkerID == sub.WorkerID {
			return &pgconn.PgError{Code: "23505", ConstraintName: "submissions_task_id_worker_id_key"}
		}
	}
	sub.SubmittedAt = time.Now()
	cp := *sub
	s.subs[sub.ID] = &cp
	return nil
}

func (m memSubmissions) ExistsForWorker(_ context.Context, tx pgx.Tx, taskID, workerID uuid.UUID) (bool, error) {
	for _, sub := range stateOf(tx).subs {
		if sub.TaskID == taskID && sub.WorkerID == workerID {
			return true, nil
		}
	}
	return false, nil
}

func (m memSubmissions) GetByID(_ context.Context, id uuid.UUID) (*models.Submission, error) {
	if sub := m.db.submission(id); sub != nil {
		return sub, nil
	}
	return nil, pgx.ErrNoRows
}

func (m memSubmissions) GetByIDForUpdate(_ context.Context, tx pgx.Tx, id uuid.UUID) (*models.Submission, error) {
	sub, ok := stateOf(tx).subs[id]
	if !ok {
		return nil, pgx.ErrNoRows
	}
	cp := *sub
	return &cp, nil
}

func (m memSubmissions) Finalize(_ context.Context, tx pgx.Tx, id uuid.UUID, status string, at time.Time) error {
	sub, ok := stateOf(tx).subs[id]
	if !ok || sub.Status != models.SubmissionPending {
		return pgx.ErrNoRows
	}
	sub.Status = status
	sub.ReviewedAt = &at
	return nil
}

func (m memSubmissions) DeleteByTask(_ context.Context, tx pgx.Tx, taskID uuid.UUID) (int64, error) {
	s := stateOf(tx)
	var n int64
	for id, sub := range s.subs {
		if sub.TaskID == taskID {
			delete(s.subs, id)
			n++
		}
	}
	return n, nil
}

func (m memSubmissions) filter(keep func(*models.Submission) bool) []*models.Submission {
	var out []*models.Submission
	m.db.read(func(s *memState) {
		for _, sub := range s.subs {
			if keep(sub) {
				cp := *sub
				out = append(out, &cp)
			}
		}
	})
	sort.Slice(out, func(i, j int) bool { return out[i].SubmittedAt.After(out[j].SubmittedAt) })
	return out
}

func (m memSubmissions) ListByWorker(_ context.Context, workerID uuid.UUID, limit, offset int) ([]*models.Submission, int, error) {
	all := m.filter(func(s *models.Submission) bool { return s.WorkerID == workerID })
	if offset >= len(all) {
		return nil, len(all), nil
	}
	end := min(offset+limit, len(all))
	return all[offset:end], len(all), nil
}

func (m memSubmissions) ListByTask(_ context.Context, taskID uuid.UUID) ([]*models.Submission, error) {
	return m.filter(func(s *models.Submission) bool { return s.TaskID == taskID }), nil
}

func (m memSubmissions) ListPendingByBuyer(_ context.Context, buyerID uuid.UUID) ([]*models.Submission, error) {
	return m.filter(func(s *models.Submission) bool { return s.BuyerID == buyerID && s.IsPending() }), nil
}

func (m memSubmissions) ListPendingByWorkerForUpdate(_ context.Context, tx pgx.Tx, workerID uuid.UUID) ([]*models.Submission, error) {
	var out []*models.Submission
	for _, sub := range stateOf(tx).subs {
		if sub.WorkerID == workerID && sub.IsPending() {
			cp := *sub
			out = append(out, &cp)
		}
	}
	return out, nil
}

type memWithdrawals struct{ db *memDB }

func (m memWithdrawals) Create(_ context.Context, tx pgx.Tx, w *models.Withdrawal) error {
	if m.db.failOn == "WithdrawalCreate" {
		return errInjected
	}
	w.RequestedAt = time.Now()
	cp := *w
	stateOf(tx).withdrawals[w.ID] = &cp
	return nil
}

func (m memWithdrawals) GetByIDForUpdate(_ context.Context, tx pgx.Tx, id uuid.UUID) (*models.Withdrawal, error) {
	w, ok := stateOf(tx).withdrawals[id]
	if !ok {
		return nil, pgx.ErrNoRows
	}
	cp := *w
	return &cp, nil
}

func (m memWithdrawals) MarkApproved(_ context.Context, tx pgx.Tx, id uuid.UUID, at time.Time) error {
	w, ok := stateOf(tx).withdrawals[id]
	if !ok || w.Status != models.WithdrawalPending {
		return pgx.ErrNoRows
	}
	w.Status = models.WithdrawalApproved
	w.ApprovedAt = &at
	return nil
}

func (m memWithdrawals) list(keep func(*models.Withdrawal) bool) []*models.Withdrawal {
	var out []*models.Withdrawal
	m.db.read(func(s *memState) {
		for _, w := range s.withdrawals {
			if keep(w) {
				cp := *w
				out = append(out, &cp)
			}
		}
	})
	return out
}

func (m memWithdrawals) ListAll(context.Context) ([]*models.Withdrawal, error) {
	return m.list(func(*models.Withdrawal) bool { return true }), nil
}

func (m memWithdrawals) ListByWorker(_ context.Context, workerID uuid.UUID) ([]*models.Withdrawal, error) {
	return m.list(func(w *models.Withdrawal) bool { return w.WorkerID == workerID }), nil
}

type memPayments struct{ db *memDB }

func (m memPayments) Create(_ context.Context, tx pgx.Tx, p *models.Payment) error {
	p.CreatedAt = time.Now()
	cp := *p
	stateOf(tx).payments[p.ID] = &cp
	return nil
}

func (m memPayments) ListByBuyer(_ context.Context, buyerID uuid.UUID) ([]*models.Payment, error) {
	var out []*models.Payment
	m.db.read(func(s *memState) {
		for _, p := range s.payments {
			if p.BuyerID == buyerID {
				cp := *p
				out = append(out, &cp)
			}
		}
	})
	return out, nil
}

// recordingNotifier collects notifications in memory.
type recordingNotifier struct {
	mu   sync.Mutex
	sent []models.Notification
}

func (r *recordingNotifier) Notify(_ context.Context, n models.Notification) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.sent = append(r.sent, n)
}

func (r *recordingNotifier) forUser(id uuid.UUID) []models.Notification {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []models.Notification
	for _, n := range r.sent {
		if n.UserID == id {
			out = append(out, n)
		}
	}
	return out
}

// ---------------------------------------------------------------------------
// harness wires every engine to one memDB.
// ---------------------------------------------------------------------------

type harness struct {
	db          *memDB
	notifier    *recordingNotifier
	ledger      ledger.Service
	tasks       *TaskRegistry
	submissions *SubmissionEngine
	withdrawals *WithdrawalEngine
	payments    *PaymentService
	users       *UserAdmin
}

func newHarness() *harness {
	db := newMemDB()
	n := &recordingNotifier{}
	l := ledger.NewService(memLedger{db})
	registry := NewTaskRegistry(db, memUsers{db}, memTasks{db}, memSubmissions{db}, l, n, nil)
	return &harness{
		db:          db,
		notifier:    n,
		ledger:      l,
		tasks:       registry,
		submissions: NewSubmissionEngine(db, memUsers{db}, memSubmissions{db}, registry, l, n, nil),
		withdrawals: NewWithdrawalEngine(db, memUsers{db}, memWithdrawals{db}, l, n, nil),
		payments:    NewPaymentService(db, memPayments{db}, l, nil, nil),
		users:       NewUserAdmin(db, memUsers{db}, memSubmissions{db}, registry, l, n, nil),
	}
}

func actorOf(u *models.User) models.Actor {
	return models.Actor{UserID: u.ID, Role: u.Role}
}

func sampleTask(workers, payable int) NewTask {
	return NewTask{
		Title:           "Follow our page",
		Detail:          "Follow the page and leave a comment",
		SubmissionInfo:  "Screenshot of the comment",
		RequiredWorkers: workers,
		PayableAmount:   payable,
		CompletionDate:  time.Now().AddDate(0, 1, 0),
	}
}
