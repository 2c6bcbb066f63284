package dashboard

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/google/uuid"

	"github.com/taskflow/backend/internal/middleware"
	"github.com/taskflow/backend/internal/models"
	"github.com/taskflow/backend/internal/repository"
	"github.com/taskflow/backend/internal/respond"
	"github.com/taskflow/backend/internal/services"
)

// StatsSource is implemented by repository.StatsRepo.
type StatsSource interface {
	Admin(ctx context.Context) (*repository.AdminStats, error)
	Worker(ctx context.Context, workerID uuid.UUID) (*repository.WorkerStats, error)
	Buyer(ctx context.Context, buyerID uuid.UUID) (*repository.BuyerStats, error)
	Public(ctx context.Context) (*repository.PublicStats, error)
}

// Ledger is the read side of the coin ledger.
type Ledger interface {
	Balance(ctx context.Context, userID uuid.UUID) (int, error)
	History(ctx context.Context, userID uuid.UUID) ([]*models.CoinEntry, error)
}

type Handler struct {
	stats  StatsSource
	ledger Ledger
	log    *slog.Logger
}

func NewHandler(stats StatsSource, ledger Ledger, log *slog.Logger) *Handler {
	if log == nil {
		log = slog.Default()
	}
	return &Handler{stats: stats, ledger: ledger, log: log}
}

func (h *Handler) actor(w http.ResponseWriter, r *http.Request) (models.Actor, bool) {
	a, ok := middleware.ActorFrom(r.Context())
	if !ok {
		respond.Fail(w, services.KindUnauthenticated, "authentication required")
	}
	return a, ok
}

// GET /api/stats/admin
func (h *Handler) AdminStats(w http.ResponseWriter, r *http.Request) {
	s, err := h.stats.Admin(r.Context())
	if err != nil {
		respond.Error(w, h.log, err, "op", "admin_stats")
		return
	}
	respond.JSON(w, http.StatusOK, s)
}

// GET /api/stats/worker
func (h *Handler) WorkerStats(w http.ResponseWriter, r *http.Request) {
	a, ok := h.actor(w, r)
	if !ok {
		return
	}
	s, err := h.stats.Worker(r.Context(), a.UserID)
	if err != nil {
		respond.Error(w, h.log, err, "op", "worker_stats", "user_id", a.UserID)
		return
	}
	respond.JSON(w, http.StatusOK, s)
}

// GET /api/stats/buyer
func (h *Handler) BuyerStats(w http.ResponseWriter, r *http.Request) {
	a, ok := h.actor(w, r)
	if !ok {
		return
	}
	s, err := h.stats.Buyer(r.Context(), a.UserID)
	if err != nil {
		respond.Error(w, h.log, err, "op", "buyer_stats", "user_id", a.UserID)
		return
	}
	respond.JSON(w, http.StatusOK, s)
}

// GET /api/stats/public
func (h *Handler) PublicStats(w http.ResponseWriter, r *http.Request) {
	s, err := h.stats.Public(r.Context())
	if err != nil {
		respond.Error(w, h.log, err, "op", "public_stats")
		return
	}
	respond.JSON(w, http.StatusOK, s)
}

type ledgerResponse struct {
	Balance int                 `json:"balance"`
	Entries []*models.CoinEntry `json:"entries"`
}

// GET /api/ledger/mine
func (h *Handler) MyLedger(w http.ResponseWriter, r *http.Request) {
	a, ok := h.actor(w, r)
	if !ok {
		return
	}
	balance, err := h.ledger.Balance(r.Context(), a.UserID)
	if err != nil {
		respond.Error(w, h.log, err, "op", "ledger_balance", "user_id", a.UserID)
		return
	}
	entries, err := h.ledger.History(r.Context(), a.UserID)
	if err != nil {
		respond.Error(w, h.log, err, "op", "ledger_history", "user_id", a.UserID)
		return
	}
	if entries == nil {
		entries = []*models.CoinEntry{}
	}
	respond.JSON(w, http.StatusOK, ledgerResponse{Balance: balance, Entries: entries})
}
