package http

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/aretw0/bpmgate"
	"github.com/aretw0/bpmgate/internal/logging"
	"github.com/aretw0/bpmgate/pkg/audit"
	"github.com/aretw0/bpmgate/pkg/domain"
	"github.com/aretw0/bpmgate/pkg/observability"
	"github.com/aretw0/bpmgate/pkg/variables"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
)

// Workflow is the part of the gateway served over HTTP.
type Workflow interface {
	DeployAndStart(ctx context.Context, req variables.WorkflowRequest) bpmgate.DeploymentResponse
	ProcessInstanceDetails(ctx context.Context, id string) (map[string]any, error)
	ActiveTasks(ctx context.Context, processInstanceID string) ([]map[string]any, error)
	CompleteTask(ctx context.Context, taskID string, vars domain.Variables) error
	AssignTask(ctx context.Context, taskID, assignee string) error
	CancelProcessInstance(ctx context.Context, id, reason string) error
	AuditTrail(ctx context.Context, processInstanceID string) ([]audit.Record, error)
	HandleTaskEvent(ctx context.Context, req bpmgate.TaskEventRequest) (domain.Changes, error)
	HandleExecutionEvent(ctx context.Context, req bpmgate.ExecutionEventRequest) (domain.Changes, error)
	HandleProcessInstanceEvent(ctx context.Context, req bpmgate.ProcessInstanceEventRequest) (domain.Changes, error)
}

// Catalog serves the dual-datasource endpoints.
type Catalog interface {
	SaveUser(ctx context.Context, u domain.User) (domain.User, error)
	SaveProduct(ctx context.Context, p domain.Product) (domain.Product, error)
	FindUsersByName(ctx context.Context, name string) ([]domain.User, error)
	FindGmailUsers(ctx context.Context) ([]domain.User, error)
	FindExpensiveProducts(ctx context.Context) ([]domain.Product, error)
	FindProductsPricedAbove(ctx context.Context, price float64) ([]domain.Product, error)
}

// Server holds the handlers.
type Server struct {
	Workflow Workflow
	Catalog  Catalog

	logger     *slog.Logger
	metrics    *observability.Metrics
	version    string
	apiVersion string
}

type Option func(*Server)

func WithLogger(logger *slog.Logger) Option {
	return func(s *Server) { s.logger = logger }
}

// WithMetrics counts requests and serves /metrics.
func WithMetrics(m *observability.Metrics) Option {
	return func(s *Server) { s.metrics = m }
}

// WithVersion sets the build version reported by /info.
func WithVersion(v string) Option {
	return func(s *Server) { s.version = v }
}

// NewHandler creates the HTTP handler. Catalog may be nil, in which case its routes are not mounted.
func NewHandler(workflow Workflow, catalog Catalog, opts ...Option) http.Handler {
	s := &Server{
		Workflow: workflow,
		Catalog:  catalog,
		logger:   logging.NewNop(),
		version:  "dev",
	}
	for _, opt := range opts {
		opt(s)
	}

	if doc, err := LoadSpec(context.Background()); err != nil {
		s.logger.Error("Failed to load OpenAPI spec", "error", err)
	} else {
		s.apiVersion = doc.Info.Version
	}

	r := chi.NewRouter()
	r.Use(s.recoverer)
	r.Use(s.instrument)

	r.Get("/health", s.GetHealth)
	r.Get("/info", s.GetInfo)
	r.Get("/openapi.yaml", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/yaml")
		w.Write(rawSpec)
	})
	r.Method(http.MethodGet, "/metrics", s.metrics.Handler())

	r.Route("/api/workflow", func(r chi.Router) {
		r.Post("/deploy-and-start", s.DeployAndStart)
		r.Get("/process-instance/{id}", s.GetProcessInstance)
		r.Delete("/process-instance/{id}", s.CancelProcessInstance)
		r.Get("/process-instance/{id}/audit", s.GetAuditTrail)
		r.Get("/active-tasks/{processInstanceId}", s.GetActiveTasks)
		r.Post("/tasks/{taskId}/complete", s.CompleteTask)
		r.Post("/tasks/{taskId}/assign", s.AssignTask)
	})
	r.Route("/api/events", func(r chi.Router) {
		r.Post("/task", s.TaskEvent)
		r.Post("/execution", s.ExecutionEvent)
		r.Post("/process-instance", s.ProcessInstanceEvent)
	})
	if catalog != nil {
		r.Route("/api/users", func(r chi.Router) {
			r.Post("/", s.SaveUser)
			r.Get("/", s.FindUsersByName)
			r.Get("/gmail", s.FindGmailUsers)
		})
		r.Route("/api/products", func(r chi.Router) {
			r.Post("/", s.SaveProduct)
			r.Get("/", s.FindProductsPricedAbove)
			r.Get("/expensive", s.FindExpensiveProducts)
		})
	}

	return enableCORS(r)
}

func enableCORS(next http.Handler) http.Handler {
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

// recoverer turns panics into the JSON error body used by the workflow endpoints.
func (s *Server) recoverer(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		defer func() {
			if p := recover(); p != nil {
				if p == http.ErrAbortHandler {
					panic(p)
				}
				s.logger.Error("Handler panicked", "path", r.URL.Path, "panic", p)
				writeJSON(w, http.StatusInternalServerError, errorBody(fmt.Sprintf("Internal server error: %v", p)))
			}
		}()
		next.ServeHTTP(w, r)
	})
}

// instrument records status and latency per route pattern.
func (s *Server) instrument(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)

		route := r.URL.Path
		if rctx := chi.RouteContext(r.Context()); rctx != nil && rctx.RoutePattern() != "" {
			route = rctx.RoutePattern()
		}
		status := ww.Status()
		if status == 0 {
			status = http.StatusOK
		}
		s.metrics.HTTPRequest(route, status, time.Since(start))
		s.logger.Debug("HTTP request", "method", r.Method, "route", route, "status", status)
	})
}

// GetHealth handles GET /health.
func (s *Server) GetHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// GetInfo handles GET /info.
func (s *Server) GetInfo(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{
		"app":         "bpmgate",
		"version":     s.version,
		"api_version": s.apiVersion,
	})
}

// -- Helpers --

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if v == nil {
		return
	}
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Error("Response encode failed", "error", err)
	}
}

func errorBody(msg string) map[string]any {
	return map[string]any{"success": false, "errorMessage": msg}
}

// decodeBody decodes an optional JSON body; an empty body leaves v untouched.
func decodeBody(r *http.Request, v any) error {
	if r.Body == nil {
		return nil
	}
	err := json.NewDecoder(r.Body).Decode(v)
	if errors.Is(err, io.EOF) {
		return nil
	}
	return err
}
