package auth

import (
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/taskflow/backend/internal/middleware"
	"github.com/taskflow/backend/internal/models"
	"github.com/taskflow/backend/internal/respond"
	"github.com/taskflow/backend/internal/services"
)

// Bodies are checked against the register / login schemas before they reach
// these handlers.

type RegisterRequest struct {
	Name     string `json:"name"`
	Email    string `json:"email"`
	Password string `json:"password"`
	Role     string `json:"role"`
	PhotoURL string `json:"photo_url"`
}

type LoginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type SessionResponse struct {
	Token string       `json:"token"`
	User  *models.User `json:"user"`
}

type Handler struct {
	svc Service
	log *slog.Logger
}

func NewHandler(svc Service, log *slog.Logger) *Handler {
	if log == nil {
		log = slog.Default()
	}
	return &Handler{svc: svc, log: log}
}

// Register handles POST /api/auth/register.
func (h *Handler) Register(w http.ResponseWriter, r *http.Request) {
	var req RegisterRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respond.Fail(w, services.KindInvalidInput, "invalid JSON")
		return
	}
	u, token, err := h.svc.Register(r.Context(), RegisterInput(req))
	if err != nil {
		respond.Error(w, h.log, err, "op", "register")
		return
	}
	respond.JSON(w, http.StatusCreated, SessionResponse{Token: token, User: u})
}

// Login handles POST /api/auth/login.
func (h *Handler) Login(w http.ResponseWriter, r *http.Request) {
	var req LoginRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respond.Fail(w, services.KindInvalidInput, "invalid JSON")
		return
	}
	u, token, err := h.svc.Login(r.Context(), req.Email, req.Password)
	if err != nil {
		respond.Error(w, h.log, err, "op", "login")
		return
	}
	respond.JSON(w, http.StatusOK, SessionResponse{Token: token, User: u})
}

// Me handles GET /api/auth/me and returns the caller with a fresh balance.
func (h *Handler) Me(w http.ResponseWriter, r *http.Request) {
	actor, ok := middleware.ActorFrom(r.Context())
	if !ok {
		respond.Fail(w, services.KindUnauthenticated, "authentication required")
		return
	}
	u, err := h.svc.Me(r.Context(), actor.UserID)
	if err != nil {
		respond.Error(w, h.log, err, "op", "me", "user_id", actor.UserID)
		return
	}
	respond.JSON(w, http.StatusOK, u)
}
