package api

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/snapstore-db/snapstore/pkg/domain"
	"github.com/snapstore-db/snapstore/pkg/snapshot"
)

// HandleImport handles POST requests to import a snapshot document.
//
// Query parameters: clearExisting (default true) deletes the existing
// database before the import, which is destructive and irreversible; merge
// (default false) preserves existing records and upserts snapshot records
// over them.
func (h *Handler) HandleImport(w http.ResponseWriter, r *http.Request) {
	opts := snapshot.DefaultOptions()
	if v := r.URL.Query().Get("clearExisting"); v != "" {
		opts.ClearExisting = v == "true"
	}
	if v := r.URL.Query().Get("merge"); v != "" {
		opts.Merge = v == "true"
	}

	var doc snapshot.Document
	if err := json.NewDecoder(r.Body).Decode(&doc); err != nil {
		h.logger.Errorw("import body decode failed", "error", err)
		WriteJSONError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	h.logger.Infow("import requested", "database", doc.DBName,
		"clearExisting", opts.ClearExisting, "merge", opts.Merge)

	importer := snapshot.NewImporter(h.engine, nil, h.logger)
	result, err := importer.Import(&doc, opts)
	if err != nil {
		var formatErr *domain.FormatError
		if errors.As(err, &formatErr) {
			WriteJSONError(w, http.StatusBadRequest, err.Error())
			return
		}
		h.logger.Errorw("import failed", "database", doc.DBName, "error", err)
		WriteJSONError(w, http.StatusInternalServerError, err.Error())
		return
	}

	if conn := importer.Conn(); conn != nil {
		if err := conn.Close(); err != nil {
			h.logger.Errorw("failed to close database after import", "database", doc.DBName, "error", err)
			WriteJSONError(w, http.StatusInternalServerError, err.Error())
			return
		}
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(result)
}
