package main

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"time"
)

// APIServer provides a read-only HTTP view of the scan history and the
// currently pending status checks
type APIServer struct {
	store   *ScanStore // nil when history is disabled
	tracker *TaskTracker
	server  *http.Server
	logger  *slog.Logger
}

// NewAPIServer creates a new API server
func NewAPIServer(store *ScanStore, tracker *TaskTracker, port int, logger *slog.Logger) *APIServer {
	api := &APIServer{
		store:   store,
		tracker: tracker,
		logger:  logger,
	}

	mux := http.NewServeMux()
	mux.HandleFunc("/health", api.handleHealth)
	mux.HandleFunc("/api/status", api.handleGetStatus)
	mux.HandleFunc("/api/history", api.handleGetHistory)

	api.server = &http.Server{
		Addr:         fmt.Sprintf(":%d", port),
		Handler:      api.loggingMiddleware(mux),
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 10 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	return api
}

// Start starts the HTTP server
func (a *APIServer) Start() error {
	a.logger.Info("Starting HTTP API server", "addr", a.server.Addr)

	if err := a.server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return fmt.Errorf("HTTP server error: %w", err)
	}
	return nil
}

// Shutdown gracefully shuts down the HTTP server
func (a *APIServer) Shutdown(ctx context.Context) error {
	a.logger.Info("Shutting down HTTP API server")
	return a.server.Shutdown(ctx)
}

// loggingMiddleware logs HTTP requests
func (a *APIServer) loggingMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()

		next.ServeHTTP(w, r)

		a.logger.Debug("HTTP request",
			"method", r.Method,
			"path", r.URL.Path,
			"remote_addr", r.RemoteAddr,
			"duration_ms", time.Since(start).Milliseconds(),
		)
	})
}

// writeJSON writes a JSON response
func (a *APIServer) writeJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)

	if err := json.NewEncoder(w).Encode(data); err != nil {
		a.logger.Error("Failed to encode JSON response", "error", err)
	}
}

// writeError writes an error response
func (a *APIServer) writeError(w http.ResponseWriter, status int, message string) {
	a.writeJSON(w, status, map[string]string{"error": message})
}

// handleHealth handles GET /health
func (a *APIServer) handleHealth(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		a.writeError(w, http.StatusMethodNotAllowed, "Method not allowed")
		return
	}

	a.writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// folderSummaryJSON is the /api/status per-folder payload
type folderSummaryJSON struct {
	Folder      string `json:"folder"`
	ScanCount   int    `json:"scan_count"`
	LastScan    string `json:"last_scan,omitempty"`
	LastOutcome string `json:"last_outcome,omitempty"`
	LastState   string `json:"last_state,omitempty"`
	NeedBytes   int64  `json:"need_bytes"`
	LastCheck   string `json:"last_check,omitempty"`
}

// handleGetStatus handles GET /api/status
func (a *APIServer) handleGetStatus(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		a.writeError(w, http.StatusMethodNotAllowed, "Method not allowed")
		return
	}

	folders := []folderSummaryJSON{}
	if a.store != nil {
		summaries, err := a.store.Summary()
		if err != nil {
			a.logger.Error("Failed to get history summary", "error", err)
			a.writeError(w, http.StatusInternalServerError, "Failed to retrieve history")
			return
		}
		for _, s := range summaries {
			fs := folderSummaryJSON{
				Folder:      s.Folder,
				ScanCount:   s.ScanCount,
				LastOutcome: s.LastOutcome,
				LastState:   s.LastState,
				NeedBytes:   s.NeedBytes,
			}
			if !s.LastScan.IsZero() {
				fs.LastScan = s.LastScan.Format(time.RFC3339)
			}
			if !s.LastCheck.IsZero() {
				fs.LastCheck = s.LastCheck.Format(time.RFC3339)
			}
			folders = append(folders, fs)
		}
	}

	a.writeJSON(w, http.StatusOK, map[string]interface{}{
		"folders":         folders,
		"pending_checks":  a.tracker.Len(),
		"history_enabled": a.store != nil,
	})
}

// scanEventJSON is the /api/history per-event payload
type scanEventJSON struct {
	Folder  string `json:"folder"`
	FiredAt string `json:"fired_at"`
	DryRun  bool   `json:"dry_run"`
	Outcome string `json:"outcome"`
	Detail  string `json:"detail,omitempty"`
}

// handleGetHistory handles GET /api/history?limit=N
func (a *APIServer) handleGetHistory(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		a.writeError(w, http.StatusMethodNotAllowed, "Method not allowed")
		return
	}
	if a.store == nil {
		a.writeError(w, http.StatusNotFound, "History database not configured")
		return
	}

	limit := 20
	if raw := r.URL.Query().Get("limit"); raw != "" {
		v, err := strconv.Atoi(raw)
		if err != nil || v <= 0 {
			a.writeError(w, http.StatusBadRequest, "Invalid limit")
			return
		}
		limit = v
	}

	events, err := a.store.RecentEvents(limit)
	if err != nil {
		a.logger.Error("Failed to get scan history", "error", err)
		a.writeError(w, http.StatusInternalServerError, "Failed to retrieve history")
		return
	}

	out := []scanEventJSON{}
	for _, e := range events {
		out = append(out, scanEventJSON{
			Folder:  e.Folder,
			FiredAt: e.FiredAt.Format(time.RFC3339),
			DryRun:  e.DryRun,
			Outcome: e.Outcome,
			Detail:  e.Detail,
		})
	}

	a.writeJSON(w, http.StatusOK, map[string]interface{}{
		"count":  len(out),
		"events": out,
	})
}
