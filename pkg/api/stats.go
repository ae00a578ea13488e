package api

import (
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/gorilla/mux"

	"github.com/snapstore-db/snapstore/pkg/snapshot"
)

// HandleStats handles GET requests for database statistics
func (h *Handler) HandleStats(w http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)
	dbName := vars["db"]

	if !h.engine.Exists(dbName) {
		WriteJSONError(w, http.StatusNotFound, fmt.Sprintf("database %s does not exist", dbName))
		return
	}

	conn, err := h.engine.Open(dbName, 0, nil)
	if err != nil {
		h.logger.Errorw("stats failed to open database", "database", dbName, "error", err)
		WriteJSONError(w, http.StatusNotFound, err.Error())
		return
	}
	defer conn.Close()

	stats, err := snapshot.Stats(conn)
	if err != nil {
		h.logger.Errorw("stats failed", "database", dbName, "error", err)
		WriteJSONError(w, http.StatusInternalServerError, err.Error())
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(stats)
}
