package handlers

import (
	"encoding/json"
	"net/http"
	"strconv"

	"github.com/google/uuid"

	"github.com/taskflow/backend/internal/middleware"
	"github.com/taskflow/backend/internal/models"
	"github.com/taskflow/backend/internal/respond"
	"github.com/taskflow/backend/internal/services"
)

// callerOf returns the authenticated caller or writes 401.
func callerOf(w http.ResponseWriter, r *http.Request) (models.Actor, bool) {
	actor, ok := middleware.ActorFrom(r.Context())
	if !ok {
		respond.Fail(w, services.KindUnauthenticated, "authentication required")
	}
	return actor, ok
}

// pathID parses the {id} path segment or writes 400.
func pathID(w http.ResponseWriter, r *http.Request) (uuid.UUID, bool) {
	id, err := uuid.Parse(r.PathValue("id"))
	if err != nil {
		respond.Fail(w, services.KindInvalidInput, "invalid id")
		return uuid.Nil, false
	}
	return id, true
}

func decode(w http.ResponseWriter, r *http.Request, v any) bool {
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		respond.Fail(w, services.KindInvalidInput, "invalid JSON")
		return false
	}
	return true
}

// queryInt returns the named query parameter, or def when absent or malformed.
func queryInt(r *http.Request, name string, def int) int {
	n, err := strconv.Atoi(r.URL.Query().Get(name))
	if err != nil {
		return def
	}
	return n
}
