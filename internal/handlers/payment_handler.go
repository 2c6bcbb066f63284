package handlers

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/taskflow/backend/internal/models"
	"github.com/taskflow/backend/internal/respond"
)

type PaymentService interface {
	PurchaseCoins(ctx context.Context, actor models.Actor, coins int) (*models.Payment, error)
	ListPayments(ctx context.Context, actor models.Actor) ([]*models.Payment, error)
}

// PaymentHandler serves /api/payments endpoints.
type PaymentHandler struct {
	Payments PaymentService
	Logger   *slog.Logger
}

type purchaseRequest struct {
	Coins int `json:"coins"`
}

// Purchase handles POST /api/payments.
func (h *PaymentHandler) Purchase(w http.ResponseWriter, r *http.Request) {
	actor, ok := callerOf(w, r)
	if !ok {
		return
	}
	var req purchaseRequest
	if !decode(w, r, &req) {
		return
	}
	p, err := h.Payments.PurchaseCoins(r.Context(), actor, req.Coins)
	if err != nil {
		respond.Error(w, h.Logger, err, "op", "purchase_coins", "actor", actor.UserID, "coins", req.Coins)
		return
	}
	respond.JSON(w, http.StatusCreated, p)
}

// Mine handles GET /api/payments/mine.
func (h *PaymentHandler) Mine(w http.ResponseWriter, r *http.Request) {
	actor, ok := callerOf(w, r)
	if !ok {
		return
	}
	list, err := h.Payments.ListPayments(r.Context(), actor)
	if err != nil {
		respond.Error(w, h.Logger, err, "op", "list_payments", "actor", actor.UserID)
		return
	}
	respond.JSON(w, http.StatusOK, nonNil(list))
}

// Packages handles GET /api/payments/packages.
func Packages(w http.ResponseWriter, _ *http.Request) {
	respond.JSON(w, http.StatusOK, models.CoinPackages)
}
