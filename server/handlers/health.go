package handlers

import (
	"net/http"
	"time"

	"github.com/lakedict/lakedict/server/types"
)

// Version reported by the root endpoint.
const Version = "1.0.0"

// HealthHandler reports process liveness and the restart-detection token.
type HealthHandler struct {
	instanceID string
	startedAt  time.Time
}

// NewHealthHandler pins the instance ID and start time for the process
// lifetime.
func NewHealthHandler(instanceID string, startedAt time.Time) *HealthHandler {
	return &HealthHandler{instanceID: instanceID, startedAt: startedAt}
}

// Health reports liveness. The instance ID changes across restarts, which
// tells clients their session IDs are stale.
func (h *HealthHandler) Health(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, types.HealthResponse{
		Status:           "ok",
		ServerInstanceID: h.instanceID,
		StartedAt:        h.startedAt.UTC().Format(time.RFC3339),
	})
}

// Root identifies the API.
func (h *HealthHandler) Root(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, types.RootResponse{
		Name:    "lakedict",
		Version: Version,
		Docs:    "/health",
	})
}
