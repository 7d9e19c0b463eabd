// Package telemetry exposes the engine's operational surface: Prometheus
// metrics and a small read-only HTTP API over the ledger.
package telemetry

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/mux"
	"github.com/rs/zerolog"

	"github.com/statarb/reversion/internal/state"
)

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	Host string `yaml:"host"`
	Port int    `yaml:"port"`
}

// DefaultServerConfig binds to localhost only.
func DefaultServerConfig() ServerConfig {
	return ServerConfig{Host: "127.0.0.1", Port: 8090}
}

// Server is the read-only operational HTTP server.
type Server struct {
	server *http.Server
	log    zerolog.Logger
}

// NewServer wires /health, /metrics and /state onto a mux router.
func NewServer(cfg ServerConfig, metrics *Metrics, ledger *state.Manager, log zerolog.Logger) *Server {
	router := mux.NewRouter()
	srvLog := log.With().Str("component", "telemetry").Logger()

	router.Use(func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			requestID := uuid.NewString()
			w.Header().Set("X-Request-ID", requestID)
			start := time.Now()
			next.ServeHTTP(w, r)
			srvLog.Debug().Str("request_id", requestID).Str("path", r.URL.Path).
				Dur("duration", time.Since(start)).Msg("http request")
		})
	})

	router.Handle("/metrics", metrics.Handler()).Methods(http.MethodGet)
	router.HandleFunc("/health", func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, map[string]string{"status": "ok"})
	}).Methods(http.MethodGet)
	router.HandleFunc("/state", func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, ledger.Snapshot())
	}).Methods(http.MethodGet)

	return &Server{
		server: &http.Server{
			Addr:         fmt.Sprintf("%s:%d", cfg.Host, cfg.Port),
			Handler:      router,
			ReadTimeout:  10 * time.Second,
			WriteTimeout: 10 * time.Second,
			IdleTimeout:  60 * time.Second,
		},
		log: srvLog,
	}
}

// Start serves until the listener fails or Shutdown is called.
func (s *Server) Start() error {
	s.log.Info().Str("addr", s.server.Addr).Msg("telemetry server listening")
	if err := s.server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return err
	}
	return nil
}

// Shutdown drains in-flight requests.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.server.Shutdown(ctx)
}

func writeJSON(w http.ResponseWriter, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(v)
}
