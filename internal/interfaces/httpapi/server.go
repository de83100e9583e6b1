package httpapi

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"strconv"
	"strings"
	"time"

	"devconsole/internal/application"
	"devconsole/internal/config"
	"devconsole/internal/domain"
	"devconsole/internal/notification"

	"github.com/gorilla/websocket"
	"github.com/rs/cors"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/propagation"
	semconv "go.opentelemetry.io/otel/semconv/v1.26.0"
	"go.opentelemetry.io/otel/trace"
)

type Pinger interface {
	Ping(ctx context.Context) error
}

type Services struct {
	Interpreter *application.Interpreter
	Ledger      *application.Ledger
	History     *application.HistoryLog
	Directory   *application.Directory
	Broadcaster *notification.Broadcaster
	Store       Pinger
}

type BuildInfo struct {
	Version   string `json:"version"`
	Commit    string `json:"commit"`
	BuildTime string `json:"buildTime"`
}

type Server struct {
	cfg       config.Config
	services  Services
	metrics   *Metrics
	buildInfo BuildInfo
	upgrader  websocket.Upgrader
}

func NewServer(cfg config.Config, services Services, metrics *Metrics, buildInfo BuildInfo) (*Server, error) {
	if services.Interpreter == nil || services.Ledger == nil || services.History == nil ||
		services.Directory == nil || services.Broadcaster == nil || services.Store == nil {
		return nil, errors.New("http server dependencies must not be nil")
	}
	if metrics == nil {
		metrics = NewMetrics()
	}
	return &Server{
		cfg:       cfg,
		services:  services,
		metrics:   metrics,
		buildInfo: buildInfo,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin:     func(r *http.Request) bool { return true },
		},
	}, nil
}

func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	s.route(mux, "GET /healthz", s.handleHealth)
	s.route(mux, "GET /readyz", s.handleReady)
	s.route(mux, "GET /version", s.handleVersion)
	mux.Handle("GET /metrics", s.metrics.Handler())

	s.route(mux, "GET /api/projects", s.handleListProjects)
	s.route(mux, "POST /api/projects", s.handleCreateProject)
	s.route(mux, "GET /api/projects/{id}", s.handleGetProject)
	s.route(mux, "GET /api/projects/{id}/commands", s.handleQuickCommands)
	s.route(mux, "POST /api/projects/{id}/commands", s.handleAddQuickCommand)
	s.route(mux, "GET /api/projects/{id}/history", s.handleHistory)
	s.route(mux, "POST /api/execute", s.handleExecute)
	s.route(mux, "GET /api/transactions/pending", s.handlePending)
	s.route(mux, "PUT /api/transactions/{id}", s.handleSetStatus)
	s.route(mux, "GET /api/defi/metrics", s.handleDeFiMetrics)
	s.route(mux, "GET /api/cross-chain/status", s.handleCrossChainStatus)
	s.route(mux, "GET /api/security/analysis", s.handleSecurityAnalysis)
	s.route(mux, "GET /ws", s.handleWebSocket)

	origins := s.cfg.CORSOrigins
	if len(origins) == 0 {
		origins = []string{"*"}
	}
	return cors.New(cors.Options{
		AllowedOrigins: origins,
		AllowedMethods: []string{http.MethodGet, http.MethodPost, http.MethodPut, http.MethodOptions},
		AllowedHeaders: []string{"Content-Type", "Traceparent"},
		ExposedHeaders: []string{historyLimitHeader},
	}).Handler(mux)
}

// ListenAndServe blocks until ctx is cancelled, then closes every open
// notification session and drains in-flight requests.
func (s *Server) ListenAndServe(ctx context.Context, addr string) error {
	server := &http.Server{
		Addr:              addr,
		Handler:           s.Handler(),
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		<-ctx.Done()
		s.services.Broadcaster.Close()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = server.Shutdown(shutdownCtx)
	}()

	slog.Info("http server listening", "addr", addr)
	if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

func (s *Server) route(mux *http.ServeMux, pattern string, handler http.HandlerFunc) {
	mux.Handle(pattern, s.instrument(pattern, handler))
}

func (s *Server) instrument(route string, next http.Handler) http.Handler {
	tracer := otel.Tracer("devconsole/httpapi")
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ctx := otel.GetTextMapPropagator().Extract(r.Context(), propagation.HeaderCarrier(r.Header))
		ctx, span := tracer.Start(ctx, route,
			trace.WithSpanKind(trace.SpanKindServer),
			trace.WithAttributes(
				semconv.HTTPRequestMethodKey.String(r.Method),
				semconv.URLPath(r.URL.Path),
				attribute.String("http.route", route),
			),
		)
		defer span.End()

		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(rec, r.WithContext(ctx))

		span.SetAttributes(semconv.HTTPResponseStatusCode(rec.status))
		if rec.status >= http.StatusInternalServerError {
			span.SetStatus(codes.Error, http.StatusText(rec.status))
		}
		s.metrics.observeRequest(r.Method, route, rec.status, time.Since(start))
	})
}

type statusRecorder struct {
	http.ResponseWriter
	status      int
	wroteHeader bool
}

func (r *statusRecorder) WriteHeader(status int) {
	if !r.wroteHeader {
		r.status = status
		r.wroteHeader = true
	}
	r.ResponseWriter.WriteHeader(status)
}

func (r *statusRecorder) Hijack() (net.Conn, *bufio.ReadWriter, error) {
	hijacker, ok := r.ResponseWriter.(http.Hijacker)
	if !ok {
		return nil, nil, errors.New("response writer does not support hijacking")
	}
	r.status = http.StatusSwitchingProtocols
	return hijacker.Hijack()
}

func (r *statusRecorder) Unwrap() http.ResponseWriter {
	return r.ResponseWriter
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) handleReady(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
	defer cancel()

	if err := s.services.Store.Ping(ctx); err != nil {
		slog.Warn("readiness check failed", "err", err)
		respondError(w, http.StatusServiceUnavailable, "store not ready")
		return
	}
	respondJSON(w, http.StatusOK, map[string]any{
		"status":               "ready",
		"notificationSessions": s.services.Broadcaster.Active(),
	})
}

func (s *Server) handleVersion(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, s.buildInfo)
}

func (s *Server) handleListProjects(w http.ResponseWriter, r *http.Request) {
	projects, err := s.services.Directory.List(r.Context())
	if err != nil {
		respondServiceError(w, err, "Failed to fetch projects")
		return
	}
	respondJSON(w, http.StatusOK, projects)
}

func (s *Server) handleGetProject(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		respondError(w, http.StatusBadRequest, err.Error())
		return
	}
	project, err := s.services.Directory.Get(r.Context(), id)
	if err != nil {
		if errors.Is(err, application.ErrNotFound) {
			respondError(w, http.StatusNotFound, "Project not found")
			return
		}
		respondServiceError(w, err, "Failed to fetch project")
		return
	}
	respondJSON(w, http.StatusOK, project)
}

func (s *Server) handleCreateProject(w http.ResponseWriter, r *http.Request) {
	var input domain.ProjectInput
	if err := decodeBody(w, r, &input); err != nil {
		respondError(w, http.StatusBadRequest, "Invalid project data")
		return
	}
	project, err := s.services.Directory.Create(r.Context(), input)
	if err != nil {
		respondServiceError(w, err, "Failed to create project")
		return
	}
	respondJSON(w, http.StatusCreated, project)
}

func (s *Server) handleQuickCommands(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		respondError(w, http.StatusBadRequest, err.Error())
		return
	}
	commands, err := s.services.Directory.QuickCommands(r.Context(), id)
	if err != nil {
		respondServiceError(w, err, "Failed to fetch commands")
		return
	}
	respondJSON(w, http.StatusOK, commands)
}

func (s *Server) handleAddQuickCommand(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		respondError(w, http.StatusBadRequest, err.Error())
		return
	}
	var input domain.QuickCommandInput
	if err := decodeBody(w, r, &input); err != nil {
		respondError(w, http.StatusBadRequest, "Invalid command data")
		return
	}
	input.ProjectID = id
	command, err := s.services.Directory.AddQuickCommand(r.Context(), input)
	if err != nil {
		respondServiceError(w, err, "Failed to create command")
		return
	}
	respondJSON(w, http.StatusCreated, command)
}

const historyLimitHeader = "X-History-Limit"

func (s *Server) handleHistory(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		respondError(w, http.StatusBadRequest, err.Error())
		return
	}
	limit, err := parseLimit(r)
	if err != nil {
		respondError(w, http.StatusBadRequest, err.Error())
		return
	}
	entries, err := s.services.History.ListByProject(r.Context(), id, limit)
	if err != nil {
		respondServiceError(w, err, "Failed to fetch history")
		return
	}
	// Effective page size, capped even when no limit was given.
	w.Header().Set(historyLimitHeader, strconv.Itoa(application.NormalizeHistoryLimit(limit)))
	respondJSON(w, http.StatusOK, entries)
}

type executeRequest struct {
	Command   string `json:"command"`
	ProjectID int64  `json:"projectId"`
}

func (s *Server) handleExecute(w http.ResponseWriter, r *http.Request) {
	var req executeRequest
	if err := decodeBody(w, r, &req); err != nil {
		respondError(w, http.StatusBadRequest, "Invalid request body")
		return
	}
	if strings.TrimSpace(req.Command) == "" || req.ProjectID <= 0 {
		respondError(w, http.StatusBadRequest, "Command and project ID are required")
		return
	}
	trace.SpanFromContext(r.Context()).SetAttributes(attribute.Int64("project.id", req.ProjectID))

	result, err := s.services.Interpreter.Execute(r.Context(), req.Command, req.ProjectID)
	if err != nil {
		respondServiceError(w, err, "Failed to execute command")
		return
	}
	respondJSON(w, http.StatusOK, result)
}

func (s *Server) handlePending(w http.ResponseWriter, r *http.Request) {
	pending, err := s.services.Ledger.ListPending(r.Context())
	if err != nil {
		respondServiceError(w, err, "Failed to fetch pending transactions")
		return
	}
	respondJSON(w, http.StatusOK, pending)
}

type statusRequest struct {
	Status string `json:"status"`
}

func (s *Server) handleSetStatus(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		respondError(w, http.StatusBadRequest, err.Error())
		return
	}
	var req statusRequest
	if err := decodeBody(w, r, &req); err != nil {
		respondError(w, http.StatusBadRequest, "Invalid request body")
		return
	}
	if strings.TrimSpace(req.Status) == "" {
		respondError(w, http.StatusBadRequest, "Status is required")
		return
	}
	tx, err := s.services.Ledger.SetStatus(r.Context(), id, domain.TransactionStatus(req.Status))
	if err != nil {
		respondServiceError(w, err, "Failed to update transaction")
		return
	}
	respondJSON(w, http.StatusOK, tx)
}

func pathID(r *http.Request) (int64, error) {
	id, err := strconv.ParseInt(r.PathValue("id"), 10, 64)
	if err != nil || id <= 0 {
		return 0, errors.New("invalid id")
	}
	return id, nil
}

func parseLimit(r *http.Request) (int, error) {
	if raw := r.URL.Query().Get("limit"); raw != "" {
		value, err := strconv.Atoi(raw)
		if err != nil || value < 0 {
			return 0, errors.New("invalid limit")
		}
		return value, nil
	}
	return 0, nil
}

func decodeBody(w http.ResponseWriter, r *http.Request, dest any) error {
	if r.Body == nil {
		return errors.New("request body is required")
	}
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, 1<<20)).Decode(dest); err != nil {
		return fmt.Errorf("decode body: %w", err)
	}
	return nil
}

// respondServiceError maps application errors to status codes. Internal
// failures are logged and answered with the generic fallback message only.
func respondServiceError(w http.ResponseWriter, err error, fallback string) {
	switch {
	case errors.Is(err, application.ErrValidation):
		respondError(w, http.StatusBadRequest, err.Error())
	case errors.Is(err, application.ErrNotFound):
		respondError(w, http.StatusNotFound, err.Error())
	case errors.Is(err, application.ErrTerminalState):
		respondError(w, http.StatusConflict, err.Error())
	default:
		slog.Error(strings.ToLower(fallback), "err", err)
		respondError(w, http.StatusInternalServerError, fallback)
	}
}

func respondJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

func respondError(w http.ResponseWriter, status int, message string) {
	respondJSON(w, status, map[string]string{"message": message})
}
