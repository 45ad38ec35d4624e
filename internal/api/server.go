package api

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/ferrolens/ferrolens/internal/model"
	"github.com/ferrolens/ferrolens/internal/observability"
	"github.com/ferrolens/ferrolens/internal/service"
)

// Config holds API server configuration.
type Config struct {
	ListenAddr string // e.g. ":8700"
	MaxRuns    int
}

// DefaultConfig returns sensible defaults.
func DefaultConfig() *Config {
	return &Config{ListenAddr: ":8700"}
}

// Server is the analyzer HTTP server.
type Server struct {
	config  *Config
	svc     *service.Service
	store   *Store
	hub     *Hub
	metrics *observability.FerrolensMetrics
	server  *http.Server
}

// NewServer creates a new API server over the given service.
func NewServer(config *Config, svc *service.Service) *Server {
	if config == nil {
		config = DefaultConfig()
	}
	s := &Server{
		config:  config,
		svc:     svc,
		store:   NewStore(config.MaxRuns),
		hub:     NewHub(),
		metrics: observability.Metrics(),
	}

	mux := http.NewServeMux()
	mux.HandleFunc("/api/analyze", s.handleAnalyze)
	mux.HandleFunc("/api/problems", s.handleProblems)
	mux.HandleFunc("/api/docs", s.handleDocs)
	mux.HandleFunc("/api/file", s.handleFile)
	mux.HandleFunc("/api/runs", s.handleRuns)
	mux.HandleFunc("/api/runs/", s.handleRunDetail)
	mux.HandleFunc("/api/stats", s.handleStats)
	mux.HandleFunc("/api/events", s.handleSSE)
	mux.Handle("/metrics", s.metrics.Handler())

	handler := corsMiddleware(s.metricsMiddleware(loggingMiddleware(mux)))

	s.server = &http.Server{
		Addr:         config.ListenAddr,
		Handler:      handler,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 5 * time.Minute, // analyses of large trees run inline
		IdleTimeout:  60 * time.Second,
	}
	return s
}

// Store exposes the run history, mainly for tests.
func (s *Server) Store() *Store { return s.store }

// Hub exposes the event hub so other components can broadcast.
func (s *Server) Hub() *Hub { return s.hub }

// Start begins serving.
func (s *Server) Start() error {
	slog.Info("starting api server", "addr", s.config.ListenAddr)
	if err := s.server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return fmt.Errorf("api server error: %w", err)
	}
	return nil
}

// Stop gracefully shuts down the server.
func (s *Server) Stop(ctx context.Context) error {
	slog.Info("stopping api server")
	return s.server.Shutdown(ctx)
}

type analyzeRequest struct {
	RootPath string `json:"root_path"`
}

// handleAnalyze handles POST /api/analyze.
func (s *Server) handleAnalyze(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	var req analyzeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.RootPath == "" {
		http.Error(w, "root_path required", http.StatusBadRequest)
		return
	}

	run := &AnalysisRun{
		ID:        newRunID(),
		RootPath:  req.RootPath,
		Status:    StatusRunning,
		StartedAt: time.Now().UTC(),
	}
	s.store.CreateRun(run)
	s.hub.Broadcast(&Event{Type: "run_started", Timestamp: run.StartedAt, RunID: run.ID})

	ps, err := s.svc.AnalyzeProject(r.Context(), req.RootPath)
	now := time.Now().UTC()
	if err != nil {
		s.store.UpdateRun(run.ID, func(ar *AnalysisRun) {
			ar.Status = StatusFailed
			ar.CompletedAt = &now
			ar.Error = err.Error()
		})
		s.hub.Broadcast(&Event{Type: "run_failed", Timestamp: now, RunID: run.ID})
		http.Error(w, err.Error(), http.StatusUnprocessableEntity)
		return
	}

	report := s.svc.AnalyzeProblems(r.Context(), ps)
	s.store.UpdateRun(run.ID, func(ar *AnalysisRun) {
		ar.Status = StatusCompleted
		ar.CompletedAt = &now
		ar.Modules = len(ps.Modules)
		ar.Relationships = len(ps.Relationships)
		ar.Dependencies = len(ps.Dependencies)
		ar.Cycles = len(report.Cycles)
		ar.UnusedModules = len(report.UnusedModules)
	})
	s.hub.Broadcast(&Event{Type: "run_completed", Timestamp: now, RunID: run.ID})

	respondJSON(w, ps)
}

// handleProblems handles POST /api/problems with a ProjectStructure body.
func (s *Server) handleProblems(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	var ps model.ProjectStructure
	if err := json.NewDecoder(r.Body).Decode(&ps); err != nil {
		http.Error(w, "malformed project structure", http.StatusBadRequest)
		return
	}
	respondJSON(w, s.svc.AnalyzeProblems(r.Context(), &ps))
}

// handleDocs handles POST /api/docs with a ProjectStructure body.
func (s *Server) handleDocs(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	var ps model.ProjectStructure
	if err := json.NewDecoder(r.Body).Decode(&ps); err != nil {
		http.Error(w, "malformed project structure", http.StatusBadRequest)
		return
	}

	path, err := s.svc.GenerateDocumentation(r.Context(), &ps)
	if err != nil {
		http.Error(w, err.Error(), http.StatusUnprocessableEntity)
		return
	}
	respondJSON(w, map[string]string{"path": path})
}

type saveFileRequest struct {
	Path    string `json:"path"`
	Content string `json:"content"`
}

// handleFile handles GET /api/file?path=... and PUT /api/file.
func (s *Server) handleFile(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		path := r.URL.Query().Get("path")
		if path == "" {
			http.Error(w, "path required", http.StatusBadRequest)
			return
		}
		content, err := s.svc.ReadFileContent(path)
		if err != nil {
			http.Error(w, err.Error(), http.StatusNotFound)
			return
		}
		respondJSON(w, map[string]string{"path": path, "content": content})

	case http.MethodPut:
		var req saveFileRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.Path == "" {
			http.Error(w, "path required", http.StatusBadRequest)
			return
		}
		if err := s.svc.SaveFileContent(req.Path, req.Content); err != nil {
			http.Error(w, err.Error(), http.StatusUnprocessableEntity)
			return
		}
		respondJSON(w, map[string]string{"status": "saved", "path": req.Path})

	default:
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
	}
}

// handleRuns handles GET /api/runs.
func (s *Server) handleRuns(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}
	respondJSON(w, s.store.ListRuns())
}

// handleRunDetail handles GET /api/runs/{id}.
func (s *Server) handleRunDetail(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	id := strings.TrimPrefix(r.URL.Path, "/api/runs/")
	if id == "" {
		http.Error(w, "run ID required", http.StatusBadRequest)
		return
	}
	run, ok := s.store.GetRun(id)
	if !ok {
		http.Error(w, "run not found", http.StatusNotFound)
		return
	}
	respondJSON(w, run)
}

// handleStats handles GET /api/stats.
func (s *Server) handleStats(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}
	respondJSON(w, s.store.GetStats())
}

// handleSSE handles GET /api/events (Server-Sent Events).
func (s *Server) handleSSE(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	client, err := NewClient(s.hub, w)
	if err != nil {
		http.Error(w, "Streaming not supported", http.StatusInternalServerError)
		return
	}
	s.hub.Register(client)
	defer s.hub.Unregister(client)

	slog.Info("sse client connected")
	connEvent := &Event{Type: "connected", Timestamp: time.Now().UTC()}
	data, _ := json.Marshal(connEvent)
	client.send(data)

	go client.KeepAlive(30 * time.Second)

	<-r.Context().Done()
	slog.Info("sse client disconnected")
}

func respondJSON(w http.ResponseWriter, data any) {
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(data); err != nil {
		slog.Error("failed to encode json response", "error", err)
	}
}

func newRunID() string {
	var b [8]byte
	rand.Read(b[:])
	return hex.EncodeToString(b[:])
}

// corsMiddleware adds CORS headers for local development.
func corsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, PUT, DELETE, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization")

		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusOK)
			return
		}
		next.ServeHTTP(w, r)
	})
}

// loggingMiddleware logs HTTP requests.
func loggingMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		next.ServeHTTP(w, r)
		slog.Debug("http request",
			"method", r.Method,
			"path", r.URL.Path,
			"duration", time.Since(start),
		)
	})
}

// metricsMiddleware records request counts and latency.
func (s *Server) metricsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		s.metrics.APIRequestsTotal.Inc()
		s.metrics.ActiveAPIRequests.Inc()
		defer s.metrics.ActiveAPIRequests.Dec()
		next.ServeHTTP(w, r)
		s.metrics.APIRequestDuration.ObserveDuration(start)
	})
}
