package api

import (
	"encoding/json"
	"net/http"
)

// HealthResponse reports server liveness.
type HealthResponse struct {
	Status  string `json:"status"`
	Message string `json:"message"`
}

// HandleHealth reports that the server is up and serving requests.
func (h *Handler) HandleHealth(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(HealthResponse{
		Status:  "healthy",
		Message: "snapstore is running",
	})
}
