package healthcheck

import (
	"context"
	"net/http"
	"time"

	"go.uber.org/zap"

	"github.com/corretorrodrigues0042-bot/ZapMarketing-Bot2345/internal/gateway"
	"github.com/corretorrodrigues0042-bot/ZapMarketing-Bot2345/pkg/utils"
)

// readyProbeTimeout bounds the gateway round-trip of one /ready call.
const readyProbeTimeout = 5 * time.Second

// Server represents a health check HTTP server
type Server struct {
	httpServer *http.Server
	mux        *http.ServeMux
	logger     *zap.Logger
	gw         gateway.Gateway
}

// HealthResponse is the response structure for health check endpoints
type HealthResponse struct {
	Status  string            `json:"status"`
	Version string            `json:"version,omitempty"`
	Details map[string]string `json:"details,omitempty"`
}

// NewServer creates a new health check server. The gateway is probed by
// the readiness endpoint; pass nil to report ready unconditionally.
func NewServer(port string, logger *zap.Logger, gw gateway.Gateway) *Server {
	mux := http.NewServeMux()

	server := &Server{
		httpServer: &http.Server{
			Addr:    ":" + port,
			Handler: mux,
		},
		mux:    mux,
		logger: logger,
		gw:     gw,
	}

	mux.HandleFunc("/health", server.handleHealth)
	mux.HandleFunc("/ready", server.handleReady)

	return server
}

// RegisterMetricsHandler adds the /metrics endpoint handler.
// Should only be called if metrics are enabled.
func (s *Server) RegisterMetricsHandler(handler http.Handler) {
	s.logger.Info("Registering /metrics endpoint")
	s.mux.Handle("/metrics", handler)
}

// Start begins the HTTP server
func (s *Server) Start() {
	go func() {
		s.logger.Info("Starting health check server", zap.String("addr", s.httpServer.Addr))
		if err := s.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			s.logger.Error("Health check server error", zap.Error(err))
		}
	}()
}

// Stop gracefully shuts down the HTTP server
func (s *Server) Stop(ctx context.Context) error {
	s.logger.Info("Stopping health check server")
	return s.httpServer.Shutdown(ctx)
}

// handleHealth handles the /health endpoint for liveness probes
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	resp := HealthResponse{
		Status:  "UP",
		Version: "1.0.0",
	}

	utils.WriteJSONResponse(w, http.StatusOK, resp)
}

// handleReady handles the /ready endpoint for readiness probes. The
// service is only ready when the messaging gateway instance is
// authorized; an unlinked instance can accept no sends.
func (s *Server) handleReady(w http.ResponseWriter, r *http.Request) {
	resp := HealthResponse{
		Status: "READY",
		Details: map[string]string{
			"timestamp": utils.FormatISO8601(utils.Now()),
		},
	}

	if s.gw != nil {
		ctx, cancel := context.WithTimeout(r.Context(), readyProbeTimeout)
		defer cancel()

		health, err := s.gw.CheckConnectionHealth(ctx)
		if err != nil {
			s.logger.Warn("Readiness gateway probe failed", zap.Error(err))
			resp.Status = "NOT_READY"
			resp.Details["gateway"] = "unreachable"
			utils.WriteJSONResponse(w, http.StatusServiceUnavailable, resp)
			return
		}
		resp.Details["gateway"] = health.State
		if !health.Authorized {
			resp.Status = "NOT_READY"
			utils.WriteJSONResponse(w, http.StatusServiceUnavailable, resp)
			return
		}
	}

	utils.WriteJSONResponse(w, http.StatusOK, resp)
}
