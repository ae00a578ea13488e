package api

import (
	"github.com/gorilla/mux"
)

// RegisterRoutes registers all API routes with the given router
func (h *Handler) RegisterRoutes(router *mux.Router) {
	// Snapshot operations
	router.HandleFunc("/databases/{db}/export", h.HandleExport).Methods("POST")
	router.HandleFunc("/databases/{db}/import", h.HandleImport).Methods("POST")

	// Database inspection
	router.HandleFunc("/databases/{db}/stats", h.HandleStats).Methods("GET")

	// Health check
	router.HandleFunc("/health", h.HandleHealth).Methods("GET")
}
