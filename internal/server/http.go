package server

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/skypro1111/summary-chat/internal/audio"
	"github.com/skypro1111/summary-chat/internal/chat"
	"github.com/skypro1111/summary-chat/internal/config"
	"github.com/skypro1111/summary-chat/internal/metrics"
	"github.com/skypro1111/summary-chat/internal/summarizer"
)

const (
	serviceName    = "summary-chat"
	serviceVersion = "1.0.0"

	// maxJSONBody bounds JSON request bodies; uploads use the chat limit
	maxJSONBody = 4 << 20
)

// HTTPServer provides the chat API plus monitoring endpoints
type HTTPServer struct {
	server *http.Server
	router chi.Router
	logger *slog.Logger
	config *config.Config

	sessions   *chat.Manager
	summarizer summarizer.Summarizer
	assembler  *audio.Assembler
	store      *audio.Store
	metrics    *metrics.Metrics

	websockets *wsTracker
	startTime  time.Time
}

// NewHTTPServer creates the HTTP API server. m may be nil.
func NewHTTPServer(appConfig *config.Config, logger *slog.Logger, sessions *chat.Manager,
	sum summarizer.Summarizer, assembler *audio.Assembler, store *audio.Store, m *metrics.Metrics) *HTTPServer {

	h := &HTTPServer{
		logger:     logger,
		config:     appConfig,
		sessions:   sessions,
		summarizer: sum,
		assembler:  assembler,
		store:      store,
		metrics:    m,
		websockets: newWSTracker(),
		startTime:  time.Now(),
	}

	h.router = h.setupRoutes()

	h.server = &http.Server{
		Addr:         fmt.Sprintf("%s:%d", appConfig.HTTP.Address, appConfig.HTTP.Port),
		Handler:      h.router,
		ReadTimeout:  appConfig.HTTP.GetReadTimeoutDuration(),
		WriteTimeout: appConfig.HTTP.GetWriteTimeoutDuration(),
		IdleTimeout:  60 * time.Second,
	}

	return h
}

// Handler returns the router serving every endpoint
func (h *HTTPServer) Handler() http.Handler {
	return h.router
}

// setupRoutes configures HTTP API routes
func (h *HTTPServer) setupRoutes() chi.Router {
	r := chi.NewRouter()
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)

	r.Get("/", h.withMetrics("/", h.handleRoot))
	r.Get("/health", h.withMetrics("/health", h.handleHealth))
	r.Get("/config", h.withMetrics("/config", h.handleConfig))
	r.Get("/stats", h.withMetrics("/stats", h.handleStats))

	// Prometheus scrapes are not recorded
	r.Method(http.MethodGet, "/metrics", h.metrics.Handler())

	r.Post("/api/format", h.withMetrics("/api/format", h.handleFormat))
	r.Post("/api/audio", h.withMetrics("/api/audio", h.handleAssembleAudio))
	r.Get("/audio/{id}", h.withMetrics("/audio/{id}", h.handleGetAudio))
	r.Delete("/audio/{id}", h.withMetrics("/audio/{id}", h.handleReleaseAudio))

	r.Route("/api/sessions", func(r chi.Router) {
		r.Post("/", h.withMetrics("/api/sessions", h.handleCreateSession))
		r.Get("/", h.withMetrics("/api/sessions", h.handleListSessions))
		r.Get("/{id}", h.withMetrics("/api/sessions/{id}", h.handleGetSession))
		r.Delete("/{id}", h.withMetrics("/api/sessions/{id}", h.handleDeleteSession))
		r.Post("/{id}/events", h.withMetrics("/api/sessions/{id}/events", h.handleSessionEvent))
		r.Post("/{id}/submit", h.withMetrics("/api/sessions/{id}/submit", h.handleSubmit))
		r.Get("/{id}/ws", h.withMetrics("/api/sessions/{id}/ws", h.handleWebSocket))
	})

	r.NotFound(h.withMetrics("not_found", func(w http.ResponseWriter, r *http.Request) {
		writeError(w, http.StatusNotFound, "not_found", "Resource not found")
	}))
	r.MethodNotAllowed(h.withMetrics("method_not_allowed", func(w http.ResponseWriter, r *http.Request) {
		writeError(w, http.StatusMethodNotAllowed, "method_not_allowed", "Method not allowed")
	}))

	return r
}

// withMetrics wraps an HTTP handler with metrics collection
func (h *HTTPServer) withMetrics(endpoint string, handler http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		startTime := time.Now()

		ww := &responseWriter{ResponseWriter: w, statusCode: http.StatusOK}
		handler(ww, r)

		duration := time.Since(startTime).Seconds()
		statusCode := fmt.Sprintf("%d", ww.statusCode)

		h.metrics.RecordHTTPRequest(r.Method, endpoint, statusCode, duration)

		if ww.statusCode >= 400 {
			errorType := "client_error"
			if ww.statusCode >= 500 {
				errorType = "server_error"
			}
			h.metrics.RecordHTTPError(r.Method, endpoint, errorType)
		}
	}
}

// responseWriter wraps http.ResponseWriter to capture status code
type responseWriter struct {
	http.ResponseWriter
	statusCode  int
	wroteHeader bool
}

func (rw *responseWriter) WriteHeader(code int) {
	if !rw.wroteHeader {
		rw.statusCode = code
		rw.wroteHeader = true
	}
	rw.ResponseWriter.WriteHeader(code)
}

func (rw *responseWriter) Write(b []byte) (int, error) {
	rw.wroteHeader = true
	return rw.ResponseWriter.Write(b)
}

// Hijack lets the websocket upgrader take over the connection
func (rw *responseWriter) Hijack() (net.Conn, *bufio.ReadWriter, error) {
	hijacker, ok := rw.ResponseWriter.(http.Hijacker)
	if !ok {
		return nil, nil, errors.New("response writer does not support hijacking")
	}
	rw.statusCode = http.StatusSwitchingProtocols
	return hijacker.Hijack()
}

// Start starts the HTTP server
func (h *HTTPServer) Start() error {
	listener, err := net.Listen("tcp", h.server.Addr)
	if err != nil {
		return fmt.Errorf("failed to listen on %s: %w", h.server.Addr, err)
	}

	h.logger.Info("Starting HTTP API server",
		slog.String("address", listener.Addr().String()),
	)

	go func() {
		if err := h.server.Serve(listener); err != nil && !errors.Is(err, http.ErrServerClosed) {
			h.logger.Error("HTTP server error", slog.String("error", err.Error()))
		}
	}()

	return nil
}

// Stop gracefully stops the HTTP server and closes open websockets
func (h *HTTPServer) Stop(ctx context.Context) error {
	h.logger.Info("Stopping HTTP API server...")

	err := h.server.Shutdown(ctx)
	h.websockets.closeAll()
	return err
}

// errorResponse is the body of every error reply
type errorResponse struct {
	Error   string   `json:"error"`
	Message string   `json:"message"`
	Details []string `json:"details,omitempty"`
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, code, message string) {
	writeJSON(w, status, errorResponse{Error: code, Message: message})
}

// handleHealth implements the /health endpoint
func (h *HTTPServer) handleHealth(w http.ResponseWriter, r *http.Request) {
	summaryStats := h.summarizer.Stats()
	storeStats := h.store.Stats()

	health := map[string]interface{}{
		"status":    "healthy",
		"timestamp": time.Now().UTC(),
		"uptime":    time.Since(h.startTime).String(),
		"service": map[string]interface{}{
			"name":    serviceName,
			"version": serviceVersion,
		},
		"components": map[string]interface{}{
			"summarizer": map[string]interface{}{
				"status":          "running",
				"provider":        summaryStats.Provider,
				"total_requests":  summaryStats.TotalRequests,
				"success_rate":    summaryStats.SuccessRate,
				"active_requests": summaryStats.ActiveRequests,
			},
			"chat": map[string]interface{}{
				"status":          "running",
				"active_sessions": h.sessions.GetActiveSessionCount(),
				"open_websockets": h.websockets.count(),
			},
			"audio_store": map[string]interface{}{
				"status":       "running",
				"live_handles": storeStats.LiveHandles,
				"live_bytes":   storeStats.LiveBytes,
			},
		},
	}

	writeJSON(w, http.StatusOK, health)
}

// handleConfig implements the /config endpoint
func (h *HTTPServer) handleConfig(w http.ResponseWriter, r *http.Request) {
	c := h.config

	// API keys are never exposed
	sanitizedConfig := map[string]interface{}{
		"http": map[string]interface{}{
			"port":             c.HTTP.Port,
			"address":          c.HTTP.Address,
			"read_timeout":     c.HTTP.ReadTimeout,
			"write_timeout":    c.HTTP.WriteTimeout,
			"shutdown_timeout": c.HTTP.ShutdownTimeout,
			"allowed_origins":  c.HTTP.AllowedOrigins,
		},
		"summarizer": map[string]interface{}{
			"provider":         c.Summarizer.Provider,
			"endpoint":         c.Summarizer.Endpoint,
			"timeout":          c.Summarizer.Timeout,
			"max_retries":      c.Summarizer.MaxRetries,
			"max_concurrent":   c.Summarizer.MaxConcurrent,
			"default_language": c.Summarizer.DefaultLanguage,
		},
		"openai": map[string]interface{}{
			"base_url":    c.OpenAI.BaseURL,
			"model":       c.OpenAI.Model,
			"max_tokens":  c.OpenAI.MaxTokens,
			"temperature": c.OpenAI.Temperature,
		},
		"audio": map[string]interface{}{
			"max_handles":         c.Audio.MaxHandles,
			"handle_ttl":          c.Audio.HandleTTL,
			"sweep_interval":      c.Audio.SweepInterval,
			"session_audio_limit": c.Audio.SessionAudioLimit,
		},
		"chat": map[string]interface{}{
			"session_timeout": c.Chat.SessionTimeout,
			"max_sessions":    c.Chat.MaxSessions,
			"max_upload_mb":   c.Chat.MaxUploadMB,
		},
		"logging": map[string]interface{}{
			"level":  c.Logging.Level,
			"format": c.Logging.Format,
			"output": c.Logging.Output,
		},
	}

	writeJSON(w, http.StatusOK, sanitizedConfig)
}

// handleStats implements the /stats endpoint
func (h *HTTPServer) handleStats(w http.ResponseWriter, r *http.Request) {
	stats := map[string]interface{}{
		"uptime":     time.Since(h.startTime).String(),
		"timestamp":  time.Now().UTC(),
		"summarizer": h.summarizer.Stats(),
		"audio":      h.store.Stats(),
		"sessions": map[string]interface{}{
			"active_count":    h.sessions.GetActiveSessionCount(),
			"open_websockets": h.websockets.count(),
		},
		"languages": summarizer.SupportedLanguages(),
	}

	writeJSON(w, http.StatusOK, stats)
}

// handleRoot implements the / endpoint with API documentation
func (h *HTTPServer) handleRoot(w http.ResponseWriter, r *http.Request) {
	apiDoc := map[string]interface{}{
		"service": "Summary Chat Service",
		"version": serviceVersion,
		"endpoints": map[string]interface{}{
			"GET /":                          "API documentation",
			"GET /health":                    "Service health check",
			"GET /config":                    "Get service configuration",
			"GET /stats":                     "Get service statistics",
			"GET /metrics":                   "Prometheus metrics",
			"POST /api/format":               "Render summary markup to HTML",
			"POST /api/audio":                "Assemble base64 audio chunks into a playable handle",
			"GET /audio/{id}":                "Play an assembled audio resource",
			"DELETE /audio/{id}":             "Release an audio handle",
			"POST /api/sessions":             "Create a chat session",
			"GET /api/sessions":              "List chat sessions",
			"GET /api/sessions/{id}":         "Get chat session state",
			"DELETE /api/sessions/{id}":      "Close a chat session",
			"POST /api/sessions/{id}/events": "Apply a chat input event",
			"POST /api/sessions/{id}/submit": "Submit the current input for summarization",
			"GET /api/sessions/{id}/ws":      "Chat session websocket",
		},
		"timestamp": time.Now().UTC(),
	}

	writeJSON(w, http.StatusOK, apiDoc)
}
