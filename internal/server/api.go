package server

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"paper-broker-go/internal/engine"
)

// APIServer exposes the trading engine over JSON. It is the thin collaborator
// the engine expects in front of it: it extracts the user and order fields
// from a request and renders the engine's typed results. It does no sessions,
// templating, or authentication; a verified user identity is assumed to be
// established by middleware in front of it.
type APIServer struct {
	UUID      string
	StartTime time.Time

	server *http.Server
	engine *engine.Engine
	logger *zap.Logger
}

// NewAPIServer creates a new APIServer listening on the given port.
func NewAPIServer(port int, eng *engine.Engine, logger *zap.Logger) *APIServer {
	s := &APIServer{
		UUID:      uuid.NewString(),
		StartTime: time.Now(),
		engine:    eng,
		logger:    logger.Named("api-server"),
	}
	s.server = &http.Server{
		Addr:    fmt.Sprintf(":%d", port),
		Handler: s.routes(),
	}
	return s
}

func (s *APIServer) routes() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /health", s.healthHandler)
	mux.HandleFunc("GET /status", s.statusHandler)
	mux.HandleFunc("GET /api/quote", s.quoteHandler)
	mux.HandleFunc("GET /api/portfolio", s.portfolioHandler)
	mux.HandleFunc("GET /api/history", s.historyHandler)
	mux.HandleFunc("POST /api/deposit", s.depositHandler)
	mux.HandleFunc("POST /api/buy", s.buyHandler)
	mux.HandleFunc("POST /api/sell", s.sellHandler)
	return mux
}

// Start runs the HTTP server in a new goroutine.
func (s *APIServer) Start() {
	s.logger.Info("Starting API server", zap.String("address", s.server.Addr))
	go func() {
		if err := s.server.ListenAndServe(); err != http.ErrServerClosed {
			s.logger.Error("API server failed", zap.Error(err))
		}
	}()
}

// Stop gracefully shuts down the server.
func (s *APIServer) Stop(ctx context.Context) error {
	s.logger.Info("Stopping API server...")
	return s.server.Shutdown(ctx)
}

func (s *APIServer) healthHandler(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
	fmt.Fprintln(w, "OK")
}

func (s *APIServer) statusHandler(w http.ResponseWriter, r *http.Request) {
	status := struct {
		UUID      string `json:"uuid"`
		StartTime string `json:"start_time"`
		Uptime    string `json:"uptime"`
	}{
		UUID:      s.UUID,
		StartTime: s.StartTime.Format(time.RFC3339),
		Uptime:    time.Since(s.StartTime).String(),
	}
	s.writeJSON(w, http.StatusOK, status)
}

func (s *APIServer) writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		s.logger.Error("Failed to write response", zap.Error(err))
	}
}
