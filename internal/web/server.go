package web

import (
	"context"
	"encoding/json"
	"net/http"
	"runtime"
	"strconv"
	"time"

	"github.com/gorilla/mux"

	"github.com/suivoice/atm/internal/aggregator"
	"github.com/suivoice/atm/internal/atm"
	"github.com/suivoice/atm/internal/executor"
	"github.com/suivoice/atm/internal/ledger"
	"github.com/suivoice/atm/internal/logger"
	"github.com/suivoice/atm/internal/queue"
	"github.com/suivoice/atm/internal/state"
	"github.com/suivoice/atm/internal/version"
)

var webLogger = logger.GetForComponent("web_server")

// Server exposes the treasury snapshot and the command entry point over
// HTTP. It is the transport the voice layer talks to.
type Server struct {
	router    *mux.Router
	port      string
	exec      *executor.Executor
	book      *ledger.Ledger
	agg       *aggregator.Aggregator
	scheduler *atm.ATM
	queue     *queue.Queue // nil without persistence
	store     *state.Store // nil without persistence
	startedAt time.Time
}

// NewServer wires the routes. Every mutation goes through the executor;
// handlers never touch the ledger directly except to read snapshots.
func NewServer(port string, exec *executor.Executor, book *ledger.Ledger,
	agg *aggregator.Aggregator, scheduler *atm.ATM, q *queue.Queue, store *state.Store) *Server {
	if port == "" {
		port = "8080"
	}

	s := &Server{
		router:    mux.NewRouter(),
		port:      port,
		exec:      exec,
		book:      book,
		agg:       agg,
		scheduler: scheduler,
		queue:     q,
		store:     store,
		startedAt: time.Now().UTC(),
	}
	s.setupRoutes()
	return s
}

func (s *Server) setupRoutes() {
	s.router.HandleFunc("/health", s.handleHealth).Methods("GET")

	api := s.router.PathPrefix("/api").Subrouter()
	api.HandleFunc("/treasury/state", s.handleTreasuryState).Methods("GET")
	api.HandleFunc("/treasury/decisions", s.handleDecisions).Methods("GET")
	api.HandleFunc("/opportunities", s.handleOpportunities).Methods("GET")
	api.HandleFunc("/commands", s.handleCommand).Methods("POST")
	api.HandleFunc("/intents", s.handleEnqueueIntent).Methods("POST")
	api.HandleFunc("/intents/drain", s.handleDrainIntents).Methods("POST")

	// Preflight requests must match a route or the middleware chain never
	// runs; corsMiddleware answers them before this handler is reached.
	s.router.PathPrefix("/").Methods(http.MethodOptions).
		HandlerFunc(func(w http.ResponseWriter, r *http.Request) {})

	s.router.Use(s.corsMiddleware)
	s.router.Use(s.loggingMiddleware)
}

// Start blocks serving HTTP until the listener fails.
func (s *Server) Start() error {
	webLogger.Info().Str("port", s.port).Msg("Starting web server")

	server := &http.Server{
		Addr:         ":" + s.port,
		Handler:      s.router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}
	return server.ListenAndServe()
}

// Handler exposes the router for tests.
func (s *Server) Handler() http.Handler {
	return s.router
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	var memStats runtime.MemStats
	runtime.ReadMemStats(&memStats)

	dbHealthy := true
	if s.store != nil {
		if err := s.store.Ping(r.Context()); err != nil {
			dbHealthy = false
		}
	}

	status := "OK"
	statusCode := http.StatusOK
	if !dbHealthy {
		status = "DEGRADED"
		statusCode = http.StatusServiceUnavailable
	}

	schedulerRunning := false
	var cycles int64
	if s.scheduler != nil {
		schedulerRunning = s.scheduler.Running()
		cycles = s.scheduler.CycleCount()
	}

	s.writeJSON(w, statusCode, map[string]interface{}{
		"status":    status,
		"timestamp": time.Now().UTC().Format(time.RFC3339Nano),
		"component": map[string]interface{}{
			"name":    "atm-autonomous-treasury-manager",
			"version": version.Version,
		},
		"system": map[string]interface{}{
			"go_version":       runtime.Version(),
			"goroutines_count": runtime.NumGoroutine(),
			"alloc_bytes":      memStats.Alloc,
			"uptime_seconds":   int64(time.Since(s.startedAt).Seconds()),
		},
		"atm_status": map[string]interface{}{
			"database_healthy":  dbHealthy,
			"scheduler_running": schedulerRunning,
			"cycles_initiated":  cycles,
			"ledger_size":       s.book.Len(),
		},
	})
}

func (s *Server) handleTreasuryState(w http.ResponseWriter, r *http.Request) {
	s.writeJSON(w, http.StatusOK, s.book.Snapshot())
}

func (s *Server) handleDecisions(w http.ResponseWriter, r *http.Request) {
	limit := 20
	if limitStr := r.URL.Query().Get("limit"); limitStr != "" {
		if parsed, err := strconv.Atoi(limitStr); err == nil && parsed > 0 && parsed <= 100 {
			limit = parsed
		}
	}

	decisions := s.book.Decisions()
	if len(decisions) > limit {
		decisions = decisions[:limit]
	}
	s.writeJSON(w, http.StatusOK, map[string]interface{}{
		"decisions": decisions,
		"count":     len(decisions),
		"limit":     limit,
	})
}

func (s *Server) handleOpportunities(w http.ResponseWriter, r *http.Request) {
	opportunities := s.agg.Scan(r.Context())
	s.writeJSON(w, http.StatusOK, map[string]interface{}{
		"opportunities": opportunities,
		"count":         len(opportunities),
	})
}

type commandRequest struct {
	Name string          `json:"name"`
	Args json.RawMessage `json:"args"`
}

func (s *Server) handleCommand(w http.ResponseWriter, r *http.Request) {
	var req commandRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.writeError(w, http.StatusBadRequest, "invalid request body: "+err.Error())
		return
	}

	cmd, err := executor.ParseCommand(req.Name, req.Args)
	if err != nil {
		s.writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	result, err := s.exec.Execute(r.Context(), cmd)
	if err != nil {
		s.writeError(w, http.StatusUnprocessableEntity, err.Error())
		return
	}
	s.writeJSON(w, http.StatusOK, map[string]interface{}{
		"command": cmd.Kind,
		"result":  result,
	})
}

func (s *Server) handleEnqueueIntent(w http.ResponseWriter, r *http.Request) {
	if s.queue == nil {
		s.writeError(w, http.StatusServiceUnavailable, "intent queue not available")
		return
	}

	var req commandRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.writeError(w, http.StatusBadRequest, "invalid request body: "+err.Error())
		return
	}

	intent, err := s.queue.Enqueue(r.Context(), req.Name, req.Args)
	if err != nil {
		s.writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	s.writeJSON(w, http.StatusAccepted, intent)
}

// handleDrainIntents is the connectivity-restored signal: the client calls
// it once after reconnecting and queued intents replay in order.
func (s *Server) handleDrainIntents(w http.ResponseWriter, r *http.Request) {
	if s.scheduler == nil {
		s.writeError(w, http.StatusServiceUnavailable, "scheduler not available")
		return
	}

	// Drain on a detached context so a client disconnect cannot abandon
	// intents mid-replay.
	results := s.scheduler.OnConnectivityRestored(context.WithoutCancel(r.Context()))
	s.writeJSON(w, http.StatusOK, map[string]interface{}{
		"replayed": len(results),
		"results":  results,
	})
}

func (s *Server) writeJSON(w http.ResponseWriter, statusCode int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		webLogger.Error().Err(err).Msg("Failed to encode JSON response")
	}
}

func (s *Server) writeError(w http.ResponseWriter, statusCode int, message string) {
	s.writeJSON(w, statusCode, map[string]interface{}{
		"error":     true,
		"message":   message,
		"timestamp": time.Now().UTC(),
	})
}

// corsMiddleware adds CORS headers
func (s *Server) corsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, PUT, DELETE, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization")

		if r.Method == "OPTIONS" {
			w.WriteHeader(http.StatusOK)
			return
		}
		next.ServeHTTP(w, r)
	})
}

// loggingMiddleware logs HTTP requests
func (s *Server) loggingMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		wrapper := &responseWriterWrapper{ResponseWriter: w, statusCode: http.StatusOK}

		next.ServeHTTP(wrapper, r)

		webLogger.Info().
			Str("method", r.Method).
			Str("path", r.URL.Path).
			Str("remote_addr", r.RemoteAddr).
			Int("status", wrapper.statusCode).
			Dur("duration", time.Since(start)).
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
