package api

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/gorilla/mux"

	"github.com/integrated-assistant/mcp-go/internal/config"
	"github.com/integrated-assistant/mcp-go/internal/manager"
	"github.com/integrated-assistant/mcp-go/internal/registry"
	"github.com/integrated-assistant/mcp-go/internal/taskstore"
	"github.com/integrated-assistant/mcp-go/pkg/types"
)

// Handlers contains all HTTP handlers and their dependencies.
type Handlers struct {
	manager  *manager.Manager
	registry *registry.Registry
	store    taskstore.TaskStore
	config   *config.Config
	logger   *slog.Logger
}

// NewHandlers creates a new Handlers instance.
func NewHandlers(mgr *manager.Manager, reg *registry.Registry, store taskstore.TaskStore, cfg *config.Config, logger *slog.Logger) *Handlers {
	if logger == nil {
		logger = slog.Default()
	}
	return &Handlers{
		manager:  mgr,
		registry: reg,
		store:    store,
		config:   cfg,
		logger:   logger,
	}
}

// --- Health Endpoints ---

// Health handles the /health and /healthz endpoints.
func (h *Handlers) Health(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	json.NewEncoder(w).Encode(map[string]string{"status": "ok"})
}

// Ready handles the /ready endpoint, checking dependencies.
func (h *Handlers) Ready(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	info, err := h.store.AdapterInfo(ctx)
	if err != nil {
		writeErrorResponse(w, r, http.StatusServiceUnavailable, ErrCodeServiceUnavail, "task store unhealthy", map[string]interface{}{"cause": err.Error()})
		return
	}

	h.respondJSON(w, http.StatusOK, map[string]interface{}{
		"status":    "ready",
		"taskstore": info,
		"kinds":     h.registry.Catalog().Kinds(),
	})
}

// --- Task Management ---

// CreateTaskRequest is the request body for submitting a task.
type CreateTaskRequest struct {
	Kind    string      `json:"kind"`
	Payload types.State `json:"payload,omitempty"`
}

// CreateTaskResponse is the response body after submitting a task.
type CreateTaskResponse struct {
	TaskID string `json:"task_id"`
	Status string `json:"status"`
}

// CreateTask handles POST /api/v1/tasks
func (h *Handlers) CreateTask(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	var req CreateTaskRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeErrorResponse(w, r, http.StatusBadRequest, ErrCodeBadRequest, "invalid request body", map[string]interface{}{"cause": err.Error()})
		return
	}
	if req.Kind == "" {
		writeErrorResponse(w, r, http.StatusBadRequest, ErrCodeBadRequest, "kind is required", nil)
		return
	}

	id, err := h.manager.Submit(ctx, req.Kind, req.Payload)
	if err != nil {
		h.respondSubmitError(w, r, err)
		return
	}

	h.respondJSON(w, http.StatusAccepted, CreateTaskResponse{
		TaskID: id,
		Status: string(types.TaskStatusPending),
	})
}

// ListTasks handles GET /api/v1/tasks
func (h *Handlers) ListTasks(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	var status types.TaskStatus
	if s := r.URL.Query().Get("status"); s != "" {
		status = types.TaskStatus(s)
		if !status.Valid() {
			writeErrorResponse(w, r, http.StatusBadRequest, ErrCodeBadRequest, "unknown status filter", map[string]interface{}{"status": s})
			return
		}
	}

	limit := 100
	if l := r.URL.Query().Get("limit"); l != "" {
		n, err := strconv.Atoi(l)
		if err != nil || n < 1 {
			writeErrorResponse(w, r, http.StatusBadRequest, ErrCodeBadRequest, "limit must be a positive integer", nil)
			return
		}
		limit = n
	}

	tasks, err := h.manager.List(ctx, status, limit)
	if err != nil {
		writeErrorResponse(w, r, http.StatusInternalServerError, ErrCodeInternalError, "failed to list tasks", map[string]interface{}{"cause": err.Error()})
		return
	}

	h.respondJSON(w, http.StatusOK, map[string]interface{}{"tasks": tasks})
}

// GetTask handles GET /api/v1/tasks/{id}
func (h *Handlers) GetTask(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	id := mux.Vars(r)["id"]

	task, err := h.manager.Get(ctx, id)
	if err != nil {
		if errors.Is(err, taskstore.ErrTaskNotFound) {
			writeErrorResponse(w, r, http.StatusNotFound, ErrCodeNotFound, "task not found", nil)
			return
		}
		writeErrorResponse(w, r, http.StatusInternalServerError, ErrCodeInternalError, "failed to get task", map[string]interface{}{"cause": err.Error()})
		return
	}

	h.respondJSON(w, http.StatusOK, task)
}

// CancelTask handles POST /api/v1/tasks/{id}/cancel
func (h *Handlers) CancelTask(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	id := mux.Vars(r)["id"]

	task, err := h.manager.Cancel(ctx, id)
	if err != nil {
		if errors.Is(err, taskstore.ErrTaskNotFound) {
			writeErrorResponse(w, r, http.StatusNotFound, ErrCodeNotFound, "task not found", nil)
			return
		}
		writeErrorResponse(w, r, http.StatusInternalServerError, ErrCodeInternalError, "failed to cancel task", map[string]interface{}{"cause": err.Error()})
		return
	}

	h.respondJSON(w, http.StatusOK, task)
}

// --- Synchronous Invocation ---

// InvokeRequest is the request body for a synchronous invocation.
type InvokeRequest struct {
	Kind    string      `json:"kind"`
	Payload types.State `json:"payload,omitempty"`

	// TimeoutSeconds caps the wait; zero uses the server default.
	TimeoutSeconds int `json:"timeout_seconds,omitempty"`
}

// Invoke handles POST /api/v1/invoke. It submits a task and waits for it
// to reach a terminal state.
func (h *Handlers) Invoke(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	var req InvokeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeErrorResponse(w, r, http.StatusBadRequest, ErrCodeBadRequest, "invalid request body", map[string]interface{}{"cause": err.Error()})
		return
	}
	if req.Kind == "" {
		writeErrorResponse(w, r, http.StatusBadRequest, ErrCodeBadRequest, "kind is required", nil)
		return
	}

	timeout := h.config.SyncTimeout
	if req.TimeoutSeconds > 0 {
		timeout = time.Duration(req.TimeoutSeconds) * time.Second
	}

	task, err := h.manager.RunSync(ctx, req.Kind, req.Payload, timeout)
	if err != nil {
		if errors.Is(err, manager.ErrTimeout) {
			details := map[string]interface{}{}
			if task != nil {
				details["task_id"] = task.ID
			}
			writeErrorResponse(w, r, http.StatusGatewayTimeout, ErrCodeTimeout, "task did not finish in time", details)
			return
		}
		h.respondSubmitError(w, r, err)
		return
	}

	h.respondJSON(w, http.StatusOK, task)
}

// --- Capabilities & Registry ---

// Capabilities handles GET /api/v1/capabilities. It exposes the chain
// order and the last health probe outcome per backend.
func (h *Handlers) Capabilities(w http.ResponseWriter, r *http.Request) {
	catalog := h.registry.Catalog()
	h.respondJSON(w, http.StatusOK, map[string]interface{}{
		"capabilities": catalog.Resolver().Snapshot(),
		"kinds":        catalog.Kinds(),
	})
}

// ReloadRegistry handles POST /api/v1/registry/reload.
func (h *Handlers) ReloadRegistry(w http.ResponseWriter, r *http.Request) {
	if err := h.registry.Reload(); err != nil {
		var cfgErr *registry.ConfigurationError
		if errors.As(err, &cfgErr) {
			problems := make([]string, len(cfgErr.Problems))
			for i, p := range cfgErr.Problems {
				problems[i] = p.Error()
			}
			writeErrorResponse(w, r, http.StatusConflict, ErrCodeConflict, "new configuration is invalid; previous catalog kept", map[string]interface{}{"problems": problems})
			return
		}
		writeErrorResponse(w, r, http.StatusInternalServerError, ErrCodeInternalError, "reload failed", map[string]interface{}{"cause": err.Error()})
		return
	}

	h.respondJSON(w, http.StatusOK, map[string]interface{}{
		"status": "reloaded",
		"kinds":  h.registry.Catalog().Kinds(),
	})
}

// --- Helpers ---

func (h *Handlers) respondSubmitError(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case errors.Is(err, manager.ErrUnknownTaskKind):
		writeErrorResponse(w, r, http.StatusBadRequest, ErrCodeBadRequest, "unknown task kind", map[string]interface{}{"cause": err.Error()})
	case errors.Is(err, manager.ErrQueueFull):
		writeErrorResponse(w, r, http.StatusServiceUnavailable, ErrCodeServiceUnavail, "task queue is full", nil)
	case errors.Is(err, manager.ErrStopped):
		writeErrorResponse(w, r, http.StatusServiceUnavailable, ErrCodeServiceUnavail, "manager is shutting down", nil)
	default:
		writeErrorResponse(w, r, http.StatusInternalServerError, ErrCodeInternalError, "failed to submit task", map[string]interface{}{"cause": err.Error()})
	}
}

func (h *Handlers) respondJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		h.logger.Error("failed to encode response", "error", err)
	}
}
