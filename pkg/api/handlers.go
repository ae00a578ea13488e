package api

import (
	"go.uber.org/zap"

	"github.com/snapstore-db/snapstore/pkg/storage"
)

// Handler provides HTTP handlers for the snapshot API
type Handler struct {
	engine *storage.Engine
	logger *zap.SugaredLogger
}

// NewHandler creates a new API handler with dependency injection
func NewHandler(engine *storage.Engine, logger *zap.SugaredLogger) *Handler {
	if logger == nil {
		logger = zap.NewNop().Sugar()
	}
	return &Handler{
		engine: engine,
		logger: logger,
	}
}
