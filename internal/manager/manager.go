// Package manager provides the task lifecycle manager: a bounded worker
// pool that executes catalog kinds asynchronously with pollable status,
// cooperative cancellation and a synchronous convenience wrapper.
package manager

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"runtime/debug"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/integrated-assistant/mcp-go/internal/metrics"
	"github.com/integrated-assistant/mcp-go/internal/registry"
	"github.com/integrated-assistant/mcp-go/internal/taskstore"
	"github.com/integrated-assistant/mcp-go/pkg/types"
)

// Errors returned by the manager.
var (
	ErrUnknownTaskKind = errors.New("unknown task kind")
	ErrTimeout         = errors.New("deadline exceeded waiting for task")
	ErrQueueFull       = errors.New("task queue is full")
	ErrStopped         = errors.New("manager is stopped")
)

// CatalogProvider supplies the live catalog. Each task resolves its
// executor from the catalog current at execution time, so a reload never
// affects tasks already running.
type CatalogProvider interface {
	Catalog() *registry.Catalog
}

// Config holds manager configuration.
type Config struct {
	// MaxWorkers bounds concurrent task executions. Backend capacity, not
	// CPU count, should drive this value.
	MaxWorkers int

	// QueueSize bounds the pending queue. Submissions beyond it fail with
	// ErrQueueFull.
	QueueSize int

	// PollInterval is how often RunSync re-checks for a terminal state.
	PollInterval time.Duration

	// Retention is how long terminal tasks stay visible before Reap
	// removes them (0 = keep forever).
	Retention time.Duration
}

// DefaultConfig returns sensible defaults.
func DefaultConfig() *Config {
	return &Config{
		MaxWorkers:   4,
		QueueSize:    1024,
		PollInterval: 25 * time.Millisecond,
		Retention:    24 * time.Hour,
	}
}

// Manager accepts work items, runs them on the worker pool and is the only
// writer of task status, result and error.
type Manager struct {
	store    taskstore.TaskStore
	catalogs CatalogProvider
	cfg      *Config
	logger   *slog.Logger

	queue chan string

	mu      sync.Mutex
	cancels map[string]context.CancelFunc

	baseCtx context.Context
	stop    context.CancelFunc
	wg      sync.WaitGroup
	started bool
}

// New creates a manager. Call Start before submitting work.
func New(store taskstore.TaskStore, catalogs CatalogProvider, cfg *Config, logger *slog.Logger) *Manager {
	if cfg == nil {
		cfg = DefaultConfig()
	}
	if cfg.MaxWorkers <= 0 {
		cfg.MaxWorkers = DefaultConfig().MaxWorkers
	}
	if cfg.QueueSize <= 0 {
		cfg.QueueSize = DefaultConfig().QueueSize
	}
	if cfg.PollInterval <= 0 {
		cfg.PollInterval = DefaultConfig().PollInterval
	}
	if logger == nil {
		logger = slog.Default()
	}

	baseCtx, stop := context.WithCancel(context.Background())
	return &Manager{
		store:    store,
		catalogs: catalogs,
		cfg:      cfg,
		logger:   logger,
		queue:    make(chan string, cfg.QueueSize),
		cancels:  make(map[string]context.CancelFunc),
		baseCtx:  baseCtx,
		stop:     stop,
	}
}

// Start launches the worker pool.
func (m *Manager) Start() {
	m.mu.Lock()
	if m.started {
		m.mu.Unlock()
		return
	}
	m.started = true
	m.mu.Unlock()

	for i := 0; i < m.cfg.MaxWorkers; i++ {
		m.wg.Add(1)
		go m.worker(i)
	}
	m.logger.Info("task manager started", slog.Int("max_workers", m.cfg.MaxWorkers))
}

// Stop requests cooperative cancellation of all running tasks and waits for
// the workers to drain, bounded by ctx.
func (m *Manager) Stop(ctx context.Context) error {
	m.stop()

	done := make(chan struct{})
	go func() {
		m.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return fmt.Errorf("manager stop: %w", ctx.Err())
	}
}

// Submit creates a pending task and enqueues it FIFO. Fails with
// ErrUnknownTaskKind if the kind is not in the live catalog.
func (m *Manager) Submit(ctx context.Context, kind string, payload types.State) (string, error) {
	if m.baseCtx.Err() != nil {
		return "", ErrStopped
	}
	if _, ok := m.catalogs.Catalog().Executor(kind); !ok {
		return "", fmt.Errorf("%w: %q", ErrUnknownTaskKind, kind)
	}

	task := &types.Task{
		ID:        uuid.New().String(),
		Kind:      kind,
		Payload:   payload,
		Status:    types.TaskStatusPending,
		CreatedAt: time.Now().UTC(),
	}
	if err := m.store.Put(ctx, task); err != nil {
		return "", fmt.Errorf("persist task: %w", err)
	}

	select {
	case m.queue <- task.ID:
		metrics.QueueDepth.Inc()
	default:
		m.store.Delete(ctx, task.ID)
		return "", ErrQueueFull
	}

	m.logger.Debug("task submitted",
		slog.String("task_id", task.ID),
		slog.String("kind", kind),
	)
	return task.ID, nil
}

// Get returns a snapshot of the task.
func (m *Manager) Get(ctx context.Context, id string) (*types.Task, error) {
	return m.store.Get(ctx, id)
}

// List returns task metadata, newest first.
func (m *Manager) List(ctx context.Context, status types.TaskStatus, limit int) ([]types.TaskMeta, error) {
	return m.store.List(ctx, status, limit)
}

// Cancel transitions a pending task directly to cancelled, requests
// cooperative cancellation of a running task, and is a no-op on terminal
// tasks. It always returns the task snapshot after the call.
func (m *Manager) Cancel(ctx context.Context, id string) (*types.Task, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	task, err := m.store.Get(ctx, id)
	if err != nil {
		return nil, err
	}

	switch task.Status {
	case types.TaskStatusPending:
		now := time.Now().UTC()
		task.Status = types.TaskStatusCancelled
		task.FinishedAt = &now
		if err := m.store.Update(ctx, task); err != nil {
			return nil, fmt.Errorf("persist cancellation: %w", err)
		}
		metrics.TasksTotal.WithLabelValues(string(types.TaskStatusCancelled)).Inc()
		m.logger.Info("pending task cancelled", slog.String("task_id", id))
	case types.TaskStatusRunning:
		if cancel, ok := m.cancels[id]; ok {
			cancel()
		}
		m.logger.Info("cancellation requested for running task", slog.String("task_id", id))
	default:
		// Terminal already; report the existing state.
	}
	return task, nil
}

// RunSync submits a task and waits for a terminal state within timeout.
// On expiry the task is cancelled and ErrTimeout is returned.
func (m *Manager) RunSync(ctx context.Context, kind string, payload types.State, timeout time.Duration) (*types.Task, error) {
	id, err := m.Submit(ctx, kind, payload)
	if err != nil {
		return nil, err
	}

	deadline := time.Now().Add(timeout)
	ticker := time.NewTicker(m.cfg.PollInterval)
	defer ticker.Stop()

	for {
		task, err := m.store.Get(ctx, id)
		if err != nil {
			return nil, err
		}
		if task.Status.Terminal() {
			return task, nil
		}

		if time.Now().After(deadline) {
			if _, cerr := m.Cancel(ctx, id); cerr != nil {
				m.logger.Warn("cancel after deadline failed",
					slog.String("task_id", id),
					slog.String("error", cerr.Error()),
				)
			}
			return nil, fmt.Errorf("%w: task %s", ErrTimeout, id)
		}

		select {
		case <-ctx.Done():
			m.Cancel(context.WithoutCancel(ctx), id)
			return nil, ctx.Err()
		case <-ticker.C:
		}
	}
}

// Reap removes terminal tasks older than the retention window and returns
// how many were dropped.
func (m *Manager) Reap(ctx context.Context) (int, error) {
	if m.cfg.Retention <= 0 {
		return 0, nil
	}
	cutoff := time.Now().UTC().Add(-m.cfg.Retention)

	metas, err := m.store.List(ctx, "", 0)
	if err != nil {
		return 0, err
	}

	reaped := 0
	for _, meta := range metas {
		if !meta.Status.Terminal() || meta.FinishedAt == nil || meta.FinishedAt.After(cutoff) {
			continue
		}
		if err := m.store.Delete(ctx, meta.ID); err != nil && !errors.Is(err, taskstore.ErrTaskNotFound) {
			return reaped, err
		}
		reaped++
	}
	if reaped > 0 {
		m.logger.Info("reaped terminal tasks", slog.Int("count", reaped))
	}
	return reaped, nil
}

// worker pulls task IDs in FIFO order and executes them one at a time.
func (m *Manager) worker(n int) {
	defer m.wg.Done()

	for {
		select {
		case <-m.baseCtx.Done():
			return
		case id := <-m.queue:
			metrics.QueueDepth.Dec()
			m.execute(id)
		}
	}
}

// execute drives one task through running to a terminal state. Any failure
// is caught at this boundary; nothing propagates to the pool.
func (m *Manager) execute(id string) {
	ctx := m.baseCtx

	// Claim the task. A cancel that raced us may already have finished it.
	m.mu.Lock()
	task, err := m.store.Get(ctx, id)
	if err != nil || task.Status != types.TaskStatusPending {
		m.mu.Unlock()
		return
	}
	now := time.Now().UTC()
	task.Status = types.TaskStatusRunning
	task.StartedAt = &now
	if err := m.store.Update(ctx, task); err != nil {
		m.mu.Unlock()
		m.logger.Error("claim task", slog.String("task_id", id), slog.String("error", err.Error()))
		return
	}
	taskCtx, cancel := context.WithCancel(ctx)
	m.cancels[id] = cancel
	m.mu.Unlock()

	metrics.TasksActive.Inc()
	defer func() {
		metrics.TasksActive.Dec()
		m.mu.Lock()
		delete(m.cancels, id)
		m.mu.Unlock()
		cancel()
	}()

	executor, ok := m.catalogs.Catalog().Executor(task.Kind)
	if !ok {
		// Kind disappeared in a reload between submit and execution.
		m.finish(task, nil, fmt.Errorf("%w: %q", ErrUnknownTaskKind, task.Kind))
		return
	}

	result, err := m.runProtected(taskCtx, executor, task.Payload)
	m.finish(task, result, err)
}

// runProtected invokes the executor with panic isolation.
func (m *Manager) runProtected(ctx context.Context, exec registry.Executor, payload types.State) (result types.State, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("task panicked: %v", r)
			m.logger.Error("task panic recovered",
				slog.Any("panic", r),
				slog.String("stack", string(debug.Stack())),
			)
		}
	}()
	return exec(ctx, payload)
}

// finish records the terminal state. The manager is the sole writer of
// status, result and error, so no other path can race this update.
func (m *Manager) finish(task *types.Task, result types.State, err error) {
	now := time.Now().UTC()
	task.FinishedAt = &now

	switch {
	case err == nil:
		task.Status = types.TaskStatusSucceeded
		task.Result = result
	case errors.Is(err, context.Canceled):
		task.Status = types.TaskStatusCancelled
	default:
		task.Status = types.TaskStatusFailed
		task.Error = &types.TaskError{
			Kind:    errorKind(err),
			Message: err.Error(),
		}
	}

	if uerr := m.store.Update(m.baseCtx, task); uerr != nil {
		m.logger.Error("persist terminal state",
			slog.String("task_id", task.ID),
			slog.String("error", uerr.Error()),
		)
	}

	metrics.TasksTotal.WithLabelValues(string(task.Status)).Inc()
	if task.StartedAt != nil {
		metrics.TaskDuration.WithLabelValues(task.Kind, string(task.Status)).
			Observe(now.Sub(*task.StartedAt).Seconds())
	}

	if task.Status == types.TaskStatusFailed {
		m.logger.Warn("task failed",
			slog.String("task_id", task.ID),
			slog.String("kind", task.Kind),
			slog.String("error_kind", task.Error.Kind),
			slog.String("error", task.Error.Message),
		)
		return
	}
	m.logger.Info("task finished",
		slog.String("task_id", task.ID),
		slog.String("kind", task.Kind),
		slog.String("status", string(task.Status)),
	)
}
