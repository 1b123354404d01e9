package web

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"runtime"
	"strconv"
	"time"

	"github.com/gorilla/mux"
	"github.com/nick199910/CLMM-Liquidity-Provider/internal/config"
	"github.com/nick199910/CLMM-Liquidity-Provider/internal/logger"
	"github.com/nick199910/CLMM-Liquidity-Provider/internal/planner"
	"github.com/nick199910/CLMM-Liquidity-Provider/internal/state"
	"github.com/nick199910/CLMM-Liquidity-Provider/internal/types"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// maxBodyBytes bounds request bodies; inline price histories are the largest payloads.
const maxBodyBytes = 16 << 20

// Options configures a WebServer.
type Options struct {
	Port     string
	Store    state.Store
	Planner  *planner.Planner     // Files are never read on behalf of API clients
	Registry *prometheus.Registry // Served on /metrics; a fresh registry when nil

	// HealthCheck, when set, is reported by /health (for example a database ping).
	HealthCheck func(ctx context.Context) error
}

// WebServer serves the simulation API.
type WebServer struct {
	router      *mux.Router
	port        string
	store       state.Store
	planner     *planner.Planner
	registry    *prometheus.Registry
	healthCheck func(ctx context.Context) error
	started     time.Time

	requests *prometheus.CounterVec
	latency  *prometheus.HistogramVec
}

// NewWebServer creates a new web server instance
func NewWebServer(opts Options) *WebServer {
	if opts.Port == "" {
		opts.Port = "8080"
	}
	if opts.Registry == nil {
		opts.Registry = prometheus.NewRegistry()
	}
	if opts.Planner == nil {
		opts.Planner = &planner.Planner{}
	}
	pl := *opts.Planner
	pl.AllowFiles = false

	factory := promauto.With(opts.Registry)
	server := &WebServer{
		router:      mux.NewRouter(),
		port:        opts.Port,
		store:       opts.Store,
		planner:     &pl,
		registry:    opts.Registry,
		healthCheck: opts.HealthCheck,
		started:     time.Now(),
		requests: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: "clmm",
			Subsystem: "http",
			Name:      "requests_total",
			Help:      "HTTP requests by route, method and status",
		}, []string{"route", "method", "status"}),
		latency: factory.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "clmm",
			Subsystem: "http",
			Name:      "request_duration_seconds",
			Help:      "HTTP request latency by route",
			Buckets:   prometheus.DefBuckets,
		}, []string{"route"}),
	}

	server.setupRoutes()
	return server
}

// setupRoutes configures all HTTP routes
func (ws *WebServer) setupRoutes() {
	ws.router.HandleFunc("/health", ws.handleHealth).Methods("GET")
	ws.router.Handle("/metrics", promhttp.HandlerFor(ws.registry, promhttp.HandlerOpts{})).Methods("GET")

	// API endpoints
	api := ws.router.PathPrefix("/api").Subrouter()
	// OPTIONS is matched so that corsMiddleware can answer preflight requests
	api.HandleFunc("/health", ws.handleHealth).Methods("GET", "OPTIONS")
	api.HandleFunc("/backtest", ws.handleBacktest).Methods("POST", "OPTIONS")
	api.HandleFunc("/optimize", ws.handleOptimize).Methods("POST", "OPTIONS")
	api.HandleFunc("/montecarlo", ws.handleMonteCarlo).Methods("POST", "OPTIONS")
	api.HandleFunc("/runs", ws.handleGetRuns).Methods("GET", "OPTIONS")
	api.HandleFunc("/runs/{id}", ws.handleGetRun).Methods("GET", "OPTIONS")
	api.HandleFunc("/optimizations/{id}", ws.handleGetOptimization).Methods("GET", "OPTIONS")
	api.HandleFunc("/analytics", ws.handleGetAnalytics).Methods("GET", "OPTIONS")

	ws.router.Use(ws.corsMiddleware)
	ws.router.Use(ws.loggingMiddleware)
}

// Handler exposes the router, mainly for tests.
func (ws *WebServer) Handler() http.Handler { return ws.router }

// Start serves until ctx is done, then shuts down gracefully.
func (ws *WebServer) Start(ctx context.Context) error {
	webLogger := logger.GetForComponent("web_server")
	webLogger.Info().Str("port", ws.port).Msg("Starting web server")

	server := &http.Server{
		Addr:              ":" + ws.port,
		Handler:           ws.router,
		ReadHeaderTimeout: 15 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("web server shutdown failed: %w", err)
	}
	webLogger.Info().Msg("Web server stopped")
	return nil
}

// ===== HEALTH =====

// handleHealth returns server health status
func (ws *WebServer) handleHealth(w http.ResponseWriter, r *http.Request) {
	var memStats runtime.MemStats
	runtime.ReadMemStats(&memStats)

	status := "OK"
	statusCode := http.StatusOK
	storeHealthy := true
	if ws.healthCheck != nil {
		if err := ws.healthCheck(r.Context()); err != nil {
			lg := logger.GetForComponent("web_server")
			lg.Warn().Err(err).Msg("Health check failed")
			storeHealthy = false
			status = "DEGRADED"
			statusCode = http.StatusServiceUnavailable
		}
	}

	response := map[string]interface{}{
		"status":    status,
		"timestamp": time.Now().UTC().Format(time.RFC3339Nano),
		"system": map[string]interface{}{
			"version":          runtime.Version(),
			"goroutines_count": runtime.NumGoroutine(),
			"alloc_bytes":      memStats.Alloc,
			"sys_bytes":        memStats.Sys,
			"gc_cycles":        memStats.NumGC,
			"uptime_seconds":   int64(time.Since(ws.started).Seconds()),
		},
		"component": map[string]interface{}{
			"name":    "clmm-liquidity-provider",
			"version": "1.0.0",
		},
		"store_healthy": storeHealthy,
	}
	ws.writeJSONResponse(w, statusCode, response)
}

// ===== SIMULATION ENDPOINTS =====

// simulationRequest is the body of the POST endpoints. Scenario uses the same keys as
// the YAML scenario files.
type simulationRequest struct {
	Scenario json.RawMessage         `json:"scenario"`
	Samples  []types.PricePathSample `json:"samples,omitempty"` // Inline history for historical scenarios
	Tags     []string                `json:"tags,omitempty"`
	Runs     int                     `json:"runs,omitempty"` // Monte Carlo runs
	Top      int                     `json:"top,omitempty"`  // Ranked points to return, 0 for all
}

// plan decodes the request and builds its plan. It writes the error response itself and
// returns nil on failure.
func (ws *WebServer) plan(w http.ResponseWriter, r *http.Request) (*simulationRequest, *planner.Plan) {
	var req simulationRequest
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	dec.DisallowUnknownFields()
	if err := dec.Decode(&req); err != nil {
		ws.writeErrorResponse(w, http.StatusBadRequest, "Invalid request body: "+err.Error())
		return nil, nil
	}
	if len(req.Scenario) == 0 {
		ws.writeErrorResponse(w, http.StatusBadRequest, "Request has no scenario")
		return nil, nil
	}
	sc, err := config.DecodeScenarioJSON(bytes.NewReader(req.Scenario))
	if err != nil {
		ws.writeError(w, err)
		return nil, nil
	}
	plan, err := ws.planner.Build(r.Context(), sc, req.Samples)
	if err != nil {
		ws.writeError(w, err)
		return nil, nil
	}
	return &req, plan
}

// handleBacktest runs and stores one simulation
func (ws *WebServer) handleBacktest(w http.ResponseWriter, r *http.Request) {
	req, plan := ws.plan(w, r)
	if plan == nil {
		return
	}
	report, err := plan.Backtest(r.Context())
	if err != nil {
		ws.writeError(w, err)
		return
	}
	if err := ws.store.SaveSimulationReport(r.Context(), report, state.SourceAPI, req.Tags); err != nil {
		lg := logger.GetForComponent("web_server")
		lg.Error().Err(err).Str("run_id", report.RunID).Msg("Failed to save simulation run")
		ws.writeErrorResponse(w, http.StatusInternalServerError, "Failed to save simulation run")
		return
	}
	ws.writeJSONResponse(w, http.StatusCreated, report)
}

// handleOptimize runs and stores a grid search
func (ws *WebServer) handleOptimize(w http.ResponseWriter, r *http.Request) {
	req, plan := ws.plan(w, r)
	if plan == nil {
		return
	}
	result, err := plan.Optimize(r.Context())
	if err != nil {
		ws.writeError(w, err)
		return
	}
	id, err := ws.store.SaveOptimizationRun(r.Context(), &state.OptimizationRecord{Source: state.SourceAPI, Result: result})
	if err != nil {
		lg := logger.GetForComponent("web_server")
		lg.Error().Err(err).Msg("Failed to save optimization run")
		ws.writeErrorResponse(w, http.StatusInternalServerError, "Failed to save optimization run")
		return
	}
	if req.Top > 0 {
		trimmed := *result
		trimmed.Ranked = result.Top(req.Top)
		result = &trimmed
	}
	ws.writeJSONResponse(w, http.StatusCreated, map[string]interface{}{
		"id":     id,
		"result": result,
	})
}

// handleMonteCarlo runs a Monte Carlo batch; results are not stored
func (ws *WebServer) handleMonteCarlo(w http.ResponseWriter, r *http.Request) {
	req, plan := ws.plan(w, r)
	if plan == nil {
		return
	}
	result, err := plan.MonteCarlo(r.Context(), req.Runs)
	if err != nil {
		ws.writeError(w, err)
		return
	}
	ws.writeJSONResponse(w, http.StatusOK, result)
}

// ===== STORED DATA =====

// handleGetRuns returns recent runs
func (ws *WebServer) handleGetRuns(w http.ResponseWriter, r *http.Request) {
	limit := 20
	if limitStr := r.URL.Query().Get("limit"); limitStr != "" {
		if parsedLimit, err := strconv.Atoi(limitStr); err == nil && parsedLimit > 0 && parsedLimit <= 100 {
			limit = parsedLimit
		}
	}

	runs, err := ws.store.ListSimulationRuns(r.Context(), limit)
	if err != nil {
		lg := logger.GetForComponent("web_server")
		lg.Error().Err(err).Msg("Failed to get recent runs")
		ws.writeErrorResponse(w, http.StatusInternalServerError, "Failed to retrieve runs")
		return
	}

	ws.writeJSONResponse(w, http.StatusOK, map[string]interface{}{
		"runs":  runs,
		"count": len(runs),
		"limit": limit,
	})
}

// handleGetRun returns a specific run by ID
func (ws *WebServer) handleGetRun(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]
	rec, err := ws.store.GetSimulationRun(r.Context(), id)
	if err != nil {
		ws.writeError(w, err)
		return
	}
	ws.writeJSONResponse(w, http.StatusOK, rec)
}

// handleGetOptimization returns a stored grid search by ID
func (ws *WebServer) handleGetOptimization(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]
	rec, err := ws.store.GetOptimizationRun(r.Context(), id)
	if err != nil {
		ws.writeError(w, err)
		return
	}
	ws.writeJSONResponse(w, http.StatusOK, rec)
}

// handleGetAnalytics returns aggregate statistics over stored runs
func (ws *WebServer) handleGetAnalytics(w http.ResponseWriter, r *http.Request) {
	analytics, err := ws.store.GetAnalytics(r.Context())
	if err != nil {
		lg := logger.GetForComponent("web_server")
		lg.Error().Err(err).Msg("Failed to get analytics")
		ws.writeErrorResponse(w, http.StatusInternalServerError, "Failed to retrieve analytics")
		return
	}
	ws.writeJSONResponse(w, http.StatusOK, analytics)
}

// ===== RESPONSES =====

// statusFor maps an error to the HTTP status reported to the client.
func statusFor(err error) int {
	switch {
	case errors.Is(err, state.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, types.ErrValidation), errors.Is(err, types.ErrInsufficientData):
		return http.StatusBadRequest
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return http.StatusRequestTimeout
	case errors.Is(err, types.ErrNumericOverflow), errors.Is(err, types.ErrInvalidRebalance):
		return http.StatusUnprocessableEntity
	default:
		return http.StatusInternalServerError
	}
}

// writeError writes err with its mapped status. Internal errors are logged and hidden.
func (ws *WebServer) writeError(w http.ResponseWriter, err error) {
	status := statusFor(err)
	message := err.Error()
	if status == http.StatusInternalServerError {
		lg := logger.GetForComponent("web_server")
		lg.Error().Err(err).Msg("Request failed")
		message = "Internal error"
	}
	ws.writeErrorResponse(w, status, message)
}

// writeJSONResponse writes a JSON response
func (ws *WebServer) writeJSONResponse(w http.ResponseWriter, statusCode int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)

	if err := json.NewEncoder(w).Encode(data); err != nil {
		lg := logger.GetForComponent("web_server")
		lg.Error().Err(err).Msg("Failed to encode JSON response")
	}
}

// writeErrorResponse writes an error response
func (ws *WebServer) writeErrorResponse(w http.ResponseWriter, statusCode int, message string) {
	response := map[string]interface{}{
		"error":     true,
		"message":   message,
		"timestamp": time.Now().UTC(),
	}

	ws.writeJSONResponse(w, statusCode, response)
}

// ===== MIDDLEWARE =====

// corsMiddleware adds CORS headers
func (ws *WebServer) corsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization")

		if r.Method == "OPTIONS" {
			w.WriteHeader(http.StatusOK)
			return
		}

		next.ServeHTTP(w, r)
	})
}

// loggingMiddleware logs and counts HTTP requests
func (ws *WebServer) loggingMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()

		// Capture the status code
		wrapper := &responseWriterWrapper{ResponseWriter: w, statusCode: http.StatusOK}

		next.ServeHTTP(wrapper, r)

		duration := time.Since(start)
		route := r.URL.Path
		if current := mux.CurrentRoute(r); current != nil {
			if tmpl, err := current.GetPathTemplate(); err == nil {
				route = tmpl
			}
		}
		ws.requests.WithLabelValues(route, r.Method, strconv.Itoa(wrapper.statusCode)).Inc()
		ws.latency.WithLabelValues(route).Observe(duration.Seconds())

		lg := logger.GetForComponent("web_server")
		lg.Info().
			Str("method", r.Method).
			Str("path", r.URL.Path).
			Str("remote_addr", r.RemoteAddr).
			Int("status", wrapper.statusCode).
			Dur("duration", duration).
			Msg("HTTP request")
	})
}

// responseWriterWrapper wraps http.ResponseWriter to capture status code
type responseWriterWrapper struct {
	http.ResponseWriter
	statusCode int
}

func (w *responseWriterWrapper) WriteHeader(statusCode int) {
	w.statusCode = statusCode
	w.ResponseWriter.WriteHeader(statusCode)
}
