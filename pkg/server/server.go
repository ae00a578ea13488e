package server

import (
	"net/http"
	"time"

	"github.com/gorilla/mux"
	"go.uber.org/zap"

	"github.com/snapstore-db/snapstore/pkg/api"
	"github.com/snapstore-db/snapstore/pkg/storage"
)

// Server holds references to the engine, router, and logger.
type Server struct {
	router *mux.Router
	engine *storage.Engine
	logger *zap.SugaredLogger
}

// NewServer creates a new instance of Server.
func NewServer(engine *storage.Engine, logger *zap.SugaredLogger) *Server {
	if logger == nil {
		logger = zap.NewNop().Sugar()
	}
	s := &Server{
		router: mux.NewRouter(),
		engine: engine,
		logger: logger,
	}

	handler := api.NewHandler(engine, logger)
	handler.RegisterRoutes(s.router)

	// Use the logging middleware for all routes
	s.router.Use(s.requestLoggerMiddleware)

	// Customize NotFoundHandler to log 404s
	s.router.NotFoundHandler = http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		s.logger.Warnw("no route found", "method", r.Method, "path", r.URL.Path)
		http.NotFound(w, r)
	})

	return s
}

// requestLoggerMiddleware logs the method, URL path, and duration for each request.
func (s *Server) requestLoggerMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		next.ServeHTTP(w, r)
		s.logger.Infow("request", "method", r.Method, "path", r.URL.Path, "duration", time.Since(start))
	})
}

// Router exposes the internal mux.Router.
func (s *Server) Router() http.Handler {
	return s.router
}
