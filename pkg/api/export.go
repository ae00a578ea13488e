package api

import (
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/gorilla/mux"

	"github.com/snapstore-db/snapstore/pkg/snapshot"
)

// HandleExport handles POST requests to export a database as a snapshot document
func (h *Handler) HandleExport(w http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)
	dbName := vars["db"]

	h.logger.Infow("export requested", "database", dbName)

	if !h.engine.Exists(dbName) {
		WriteJSONError(w, http.StatusNotFound, fmt.Sprintf("database %s does not exist", dbName))
		return
	}

	conn, err := h.engine.Open(dbName, 0, nil)
	if err != nil {
		h.logger.Errorw("export failed to open database", "database", dbName, "error", err)
		WriteJSONError(w, http.StatusNotFound, err.Error())
		return
	}
	defer conn.Close()

	doc, err := snapshot.Export(conn)
	if err != nil {
		h.logger.Errorw("export failed", "database", dbName, "error", err)
		WriteJSONError(w, http.StatusInternalServerError, err.Error())
		return
	}

	h.logger.Infow("export complete", "database", dbName, "stores", len(doc.Stores))
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(doc)
}
