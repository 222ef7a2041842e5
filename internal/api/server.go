// Package api exposes the Kimera system over HTTP: geoid creation,
// contradiction processing, cognitive cycles, proactive scans, and
// monitoring endpoints.
package api

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"kimera/internal/config"
	"kimera/internal/engine"
	"kimera/internal/entropy"
	"kimera/internal/field"
	"kimera/internal/logging"
	"kimera/internal/vault"
)

// Server wires the engines behind the HTTP surface.
type Server struct {
	cfg      *config.Config
	vault    *vault.Manager
	monitor  *entropy.Monitor
	analyzer *entropy.Analyzer
	contra   *engine.ContradictionEngine
	cycle    *engine.CognitiveCycle
	scanner  *engine.ProactiveScanner
	fields   *field.Dynamics

	httpServer *http.Server
	started    time.Time
}

// New assembles a server from config and an open vault.
func New(cfg *config.Config, v *vault.Manager) (*Server, error) {
	monitor, err := entropy.NewMonitor(cfg.Entropy.EstimationMethod, cfg.Entropy.HistorySize)
	if err != nil {
		return nil, err
	}
	dynamics, err := field.NewDynamics(cfg.Field.Dimension)
	if err != nil {
		return nil, err
	}
	if cfg.Field.BatchSize > 0 {
		dynamics.SetBatchSize(cfg.Field.BatchSize)
	}

	contra := engine.NewContradictionEngine(cfg.Contradiction.TensionThreshold)
	cycle := engine.NewCognitiveCycle(v, contra, monitor)
	scanner := engine.NewProactiveScanner(v, contra, cycle)
	if cfg.Contradiction.ScanBatchSize > 0 {
		scanner.BatchLimit = cfg.Contradiction.ScanBatchSize
	}
	scanner.Workers = cfg.Contradiction.ScanWorkers

	s := &Server{
		cfg:      cfg,
		vault:    v,
		monitor:  monitor,
		analyzer: entropy.NewAnalyzer(),
		contra:   contra,
		cycle:    cycle,
		scanner:  scanner,
		fields:   dynamics,
		started:  time.Now(),
	}
	s.httpServer = &http.Server{
		Addr:         cfg.Server.Addr,
		Handler:      s.routes(),
		ReadTimeout:  config.Duration(cfg.Server.ReadTimeout, 30*time.Second),
		WriteTimeout: config.Duration(cfg.Server.WriteTimeout, 60*time.Second),
	}
	return s, nil
}

// routes builds the mux with method-scoped patterns.
func (s *Server) routes() http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("GET /{$}", s.handleRoot)
	mux.HandleFunc("POST /geoids", s.handleCreateGeoid)
	mux.HandleFunc("GET /geoids/{id}", s.handleGetGeoid)
	mux.HandleFunc("POST /process/contradictions", s.handleProcessContradictions)
	mux.HandleFunc("POST /system/cycle", s.handleCycle)
	mux.HandleFunc("POST /system/proactive_scan", s.handleProactiveScan)
	mux.HandleFunc("GET /monitoring/status", s.handleMonitoringStatus)
	mux.HandleFunc("GET /monitoring/entropy", s.handleMonitoringEntropy)
	mux.HandleFunc("GET /system/health", s.handleHealth)
	mux.HandleFunc("GET /system/status", s.handleSystemStatus)
	mux.HandleFunc("GET /system/components", s.handleComponents)
	mux.HandleFunc("GET /system/utilization_stats", s.handleUtilizationStats)

	return withCORS(withRequestLog(mux))
}

// Handler returns the assembled HTTP handler, mainly for tests.
func (s *Server) Handler() http.Handler {
	return s.httpServer.Handler
}

// ListenAndServe runs the server until ctx is canceled, then shuts down
// gracefully.
func (s *Server) ListenAndServe(ctx context.Context) error {
	errCh := make(chan error, 1)
	go func() {
		logging.API("Listening on %s", s.cfg.Server.Addr)
		errCh <- s.httpServer.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if err == http.ErrServerClosed {
			return nil
		}
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(),
		config.Duration(s.cfg.Server.ShutdownTimeout, 10*time.Second))
	defer cancel()
	logging.API("Shutting down")
	return s.httpServer.Shutdown(shutdownCtx)
}

// JSON helpers shared by all handlers.

type errorEnvelope struct {
	Error  string `json:"error"`
	Detail string `json:"detail,omitempty"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		logging.APIDebug("Response encode failed: %v", err)
	}
}

func writeError(w http.ResponseWriter, status int, msg string, err error) {
	env := errorEnvelope{Error: msg}
	if err != nil {
		env.Detail = err.Error()
	}
	writeJSON(w, status, env)
}

// withRequestLog logs each request with its duration.
func withRequestLog(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		next.ServeHTTP(w, r)
		logging.APIDebug("%s %s (%s)", r.Method, r.URL.Path, time.Since(start))
	})
}

// withCORS allows browser tooling to hit the local API.
func withCORS(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type")
		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusNoContent)
			return
		}
		next.ServeHTTP(w, r)
	})
}
