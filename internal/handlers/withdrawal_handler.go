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

type WithdrawalService interface {
	RequestWithdrawal(ctx context.Context, actor models.Actor, req services.WithdrawalRequest) (*models.Withdrawal, error)
	ApproveWithdrawal(ctx context.Context, actor models.Actor, id uuid.UUID) (*models.Withdrawal, error)
	ListAll(ctx context.Context, actor models.Actor) ([]*models.Withdrawal, error)
	ListByWorker(ctx context.Context, actor models.Actor) ([]*models.Withdrawal, error)
}

// WithdrawalHandler serves /api/withdrawals endpoints.
type WithdrawalHandler struct {
	Withdrawals WithdrawalService
	Logger      *slog.Logger
}

type withdrawalRequest struct {
	Coins         int    `json:"withdraw_coin"`
	PaymentSystem string `json:"payment_system"`
	AccountNumber string `json:"account_number"`
}

// Request handles POST /api/withdrawals.
func (h *WithdrawalHandler) Request(w http.ResponseWriter, r *http.Request) {
	actor, ok := callerOf(w, r)
	if !ok {
		return
	}
	var req withdrawalRequest
	if !decode(w, r, &req) {
		return
	}
	wd, err := h.Withdrawals.RequestWithdrawal(r.Context(), actor, services.WithdrawalRequest(req))
	if err != nil {
		respond.Error(w, h.Logger, err, "op", "request_withdrawal", "actor", actor.UserID, "coins", req.Coins)
		return
	}
	respond.JSON(w, http.StatusCreated, wd)
}

// List handles GET /api/withdrawals (admin).
func (h *WithdrawalHandler) List(w http.ResponseWriter, r *http.Request) {
	actor, ok := callerOf(w, r)
	if !ok {
		return
	}
	list, err := h.Withdrawals.ListAll(r.Context(), actor)
	if err != nil {
		respond.Error(w, h.Logger, err, "op", "list_withdrawals")
		return
	}
	respond.JSON(w, http.StatusOK, nonNil(list))
}

// Mine handles GET /api/withdrawals/mine (worker).
func (h *WithdrawalHandler) Mine(w http.ResponseWriter, r *http.Request) {
	actor, ok := callerOf(w, r)
	if !ok {
		return
	}
	list, err := h.Withdrawals.ListByWorker(r.Context(), actor)
	if err != nil {
		respond.Error(w, h.Logger, err, "op", "list_my_withdrawals", "actor", actor.UserID)
		return
	}
	respond.JSON(w, http.StatusOK, nonNil(list))
}

// Approve handles PATCH /api/withdrawals/{id}/approve.
func (h *WithdrawalHandler) Approve(w http.ResponseWriter, r *http.Request) {
	actor, ok := callerOf(w, r)
	if !ok {
		return
	}
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	wd, err := h.Withdrawals.ApproveWithdrawal(r.Context(), actor, id)
	if err != nil {
		respond.Error(w, h.Logger, err, "op", "approve_withdrawal", "withdrawal_id", id)
		return
	}
	respond.JSON(w, http.StatusOK, wd)
}
