package handler

import (
	"net/http"
	"time"

	"github.com/ctm-colima/credential-service/internal/health"
	"github.com/ctm-colima/credential-service/internal/http/response"
)

// HealthHandler reports database connectivity in the shape the web client polls.
type HealthHandler struct {
	db health.Checker
}

func NewHealthHandler(db health.Checker) *HealthHandler {
	return &HealthHandler{db: db}
}

type healthPayload struct {
	Status    string    `json:"status"`
	Database  string    `json:"database"`
	Timestamp time.Time `json:"timestamp"`
	Error     string    `json:"error,omitempty"`
}

func (h *HealthHandler) Health(w http.ResponseWriter, r *http.Request) {
	out := healthPayload{Status: "ok", Database: "connected", Timestamp: time.Now().UTC()}
	if h.db != nil {
		if res := h.db.Check(r.Context()); !res.Healthy {
			out = healthPayload{Status: "error", Database: "disconnected", Timestamp: out.Timestamp, Error: "database unreachable"}
		}
	}
	response.JSON(w, r, http.StatusOK, out)
}
