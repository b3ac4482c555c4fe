// Package api exposes the deployer's container inventory over HTTP.
package api

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/gorilla/mux"
	"go.uber.org/zap"

	"github.com/modbus2mqtt/oci-lxc-deployer/internal/config"
	"github.com/modbus2mqtt/oci-lxc-deployer/internal/scan"
)

// Lister is the container inventory the handlers query.
type Lister interface {
	ListManaged(ctx context.Context) ([]scan.Container, error)
	FindRunningByAppID(ctx context.Context, appID string) ([]scan.Container, error)
}

type Server struct {
	config     *config.Config
	logger     *zap.Logger
	router     *mux.Router
	httpServer *http.Server
	lister     Lister
	metrics    *Metrics
	limiter    *RateLimiter
	startTime  time.Time
}

func NewServer(cfg *config.Config, logger *zap.Logger, lister Lister) *Server {
	s := &Server{
		config:    cfg,
		logger:    logger,
		router:    mux.NewRouter(),
		lister:    lister,
		metrics:   NewMetrics(),
		limiter:   NewRateLimiter(),
		startTime: time.Now(),
	}

	s.setupRoutes()

	s.httpServer = &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Server.Port),
		Handler:      s.router,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  120 * time.Second,
	}

	return s
}

func (s *Server) setupRoutes() {
	s.router.HandleFunc("/health", s.handleHealth).Methods("GET")
	s.router.Handle("/metrics", s.metrics.Handler()).Methods("GET")

	s.router.HandleFunc("/api/v1/containers", s.handleListContainers).Methods("GET")
	s.router.HandleFunc("/api/v1/containers/find", s.handleFindContainers).Methods("GET")

	s.router.Use(s.requestIDMiddleware)
	s.router.Use(s.loggingMiddleware)
	s.router.Use(mux.MiddlewareFunc(RateLimitMiddleware(s.limiter, s.metrics)))
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"status": "healthy",
		"uptime": time.Since(s.startTime).Seconds(),
	})
}

func (s *Server) handleListContainers(w http.ResponseWriter, r *http.Request) {
	containers, err := s.lister.ListManaged(r.Context())
	if err != nil {
		s.logger.Error("list containers", zap.Error(err))
		writeError(w, http.StatusInternalServerError, "scan failed")
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"containers": containers,
		"count":      len(containers),
	})
}

func (s *Server) handleFindContainers(w http.ResponseWriter, r *http.Request) {
	appID := r.URL.Query().Get("application_id")
	if appID == "" {
		writeError(w, http.StatusBadRequest, "application_id is required")
		return
	}

	containers, err := s.lister.FindRunningByAppID(r.Context(), appID)
	if err != nil {
		s.logger.Error("find containers", zap.String("application_id", appID), zap.Error(err))
		writeError(w, http.StatusInternalServerError, "scan failed")
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"containers": containers,
		"count":      len(containers),
	})
}

func writeJSON(w http.ResponseWriter, status int, body interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, map[string]string{"error": message})
}

func (s *Server) Start() error {
	s.logger.Info("starting server", zap.Int("port", s.config.Server.Port))
	return s.httpServer.ListenAndServe()
}

func (s *Server) Shutdown(ctx context.Context) error {
	return s.httpServer.Shutdown(ctx)
}
