package manager

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/integrated-assistant/mcp-go/internal/pipeline"
	"github.com/integrated-assistant/mcp-go/internal/registry"
	"github.com/integrated-assistant/mcp-go/internal/taskstore"
	"github.com/integrated-assistant/mcp-go/pkg/types"
)

// staticCatalogs serves a fixed catalog built from the given components.
type staticCatalogs struct {
	catalog *registry.Catalog
}

func (s *staticCatalogs) Catalog() *registry.Catalog { return s.catalog }

func newTestManager(t *testing.T, cfg *Config, components map[string]pipeline.Component) (*Manager, taskstore.TaskStore) {
	t.Helper()

	builder := registry.NewBuilder(nil, nil)
	for name, comp := range components {
		if err := builder.RegisterComponent(name, comp); err != nil {
			t.Fatalf("register component: %v", err)
		}
	}
	catalog, err := builder.Build()
	if err != nil {
		t.Fatalf("build catalog: %v", err)
	}

	if cfg == nil {
		cfg = DefaultConfig()
	}
	cfg.PollInterval = 5 * time.Millisecond

	store := taskstore.NewMemoryStore()
	m := New(store, &staticCatalogs{catalog: catalog}, cfg, nil)
	m.Start()
	t.Cleanup(func() {
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		m.Stop(ctx)
	})
	return m, store
}

// waitForStatus polls until the task reaches the wanted status or times out.
func waitForStatus(t *testing.T, m *Manager, id string, want types.TaskStatus) *types.Task {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		task, err := m.Get(context.Background(), id)
		if err != nil {
			t.Fatalf("get task: %v", err)
		}
		if task.Status == want {
			return task
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatalf("task %s never reached status %s", id, want)
	return nil
}

func TestSubmit_SuccessLifecycle(t *testing.T) {
	m, _ := newTestManager(t, nil, map[string]pipeline.Component{
		"echo": pipeline.ComponentFunc(func(ctx context.Context, state types.State) (types.State, error) {
			return types.State{"echoed": state.String("msg")}, nil
		}),
	})

	id, err := m.Submit(context.Background(), "echo", types.State{"msg": "hi"})
	if err != nil {
		t.Fatalf("submit: %v", err)
	}

	task := waitForStatus(t, m, id, types.TaskStatusSucceeded)
	if got := task.Result.String("echoed"); got != "hi" {
		t.Errorf("result echoed = %q, want %q", got, "hi")
	}
	if task.StartedAt == nil || task.FinishedAt == nil {
		t.Error("terminal task must have started and finished timestamps")
	}
}

func TestSubmit_UnknownKind(t *testing.T) {
	m, _ := newTestManager(t, nil, map[string]pipeline.Component{})

	_, err := m.Submit(context.Background(), "nope", nil)
	if !errors.Is(err, ErrUnknownTaskKind) {
		t.Fatalf("expected ErrUnknownTaskKind, got %v", err)
	}
}

func TestWorkerPool_ConcurrencyBound(t *testing.T) {
	var active, peak int64
	release := make(chan struct{})

	m, _ := newTestManager(t, &Config{MaxWorkers: 2, QueueSize: 16}, map[string]pipeline.Component{
		"block": pipeline.ComponentFunc(func(ctx context.Context, state types.State) (types.State, error) {
			n := atomic.AddInt64(&active, 1)
			for {
				old := atomic.LoadInt64(&peak)
				if n <= old || atomic.CompareAndSwapInt64(&peak, old, n) {
					break
				}
			}
			defer atomic.AddInt64(&active, -1)
			select {
			case <-release:
				return types.State{}, nil
			case <-ctx.Done():
				return nil, ctx.Err()
			}
		}),
	})

	var ids []string
	for i := 0; i < 5; i++ {
		id, err := m.Submit(context.Background(), "block", nil)
		if err != nil {
			t.Fatalf("submit %d: %v", i, err)
		}
		ids = append(ids, id)
	}

	// Give the pool time to pick up whatever it can.
	time.Sleep(100 * time.Millisecond)
	if got := atomic.LoadInt64(&active); got != 2 {
		t.Errorf("active workers = %d, want 2", got)
	}

	close(release)
	for _, id := range ids {
		waitForStatus(t, m, id, types.TaskStatusSucceeded)
	}
	if got := atomic.LoadInt64(&peak); got > 2 {
		t.Errorf("peak concurrency = %d, want <= 2", got)
	}
}

func TestCancel_PendingTask(t *testing.T) {
	release := make(chan struct{})
	defer close(release)

	m, _ := newTestManager(t, &Config{MaxWorkers: 1, QueueSize: 16}, map[string]pipeline.Component{
		"block": pipeline.ComponentFunc(func(ctx context.Context, state types.State) (types.State, error) {
			select {
			case <-release:
				return types.State{}, nil
			case <-ctx.Done():
				return nil, ctx.Err()
			}
		}),
	})

	// Occupy the single worker, then queue a second task.
	if _, err := m.Submit(context.Background(), "block", nil); err != nil {
		t.Fatalf("submit blocker: %v", err)
	}
	time.Sleep(50 * time.Millisecond)

	id, err := m.Submit(context.Background(), "block", nil)
	if err != nil {
		t.Fatalf("submit pending: %v", err)
	}

	task, err := m.Cancel(context.Background(), id)
	if err != nil {
		t.Fatalf("cancel: %v", err)
	}
	if task.Status != types.TaskStatusCancelled {
		t.Errorf("status = %s, want cancelled", task.Status)
	}
	if task.FinishedAt == nil {
		t.Error("cancelled pending task must have a finished timestamp")
	}
}

func TestCancel_RunningTask(t *testing.T) {
	started := make(chan struct{}, 1)

	m, _ := newTestManager(t, nil, map[string]pipeline.Component{
		"block": pipeline.ComponentFunc(func(ctx context.Context, state types.State) (types.State, error) {
			started <- struct{}{}
			<-ctx.Done()
			return nil, ctx.Err()
		}),
	})

	id, err := m.Submit(context.Background(), "block", nil)
	if err != nil {
		t.Fatalf("submit: %v", err)
	}
	<-started

	if _, err := m.Cancel(context.Background(), id); err != nil {
		t.Fatalf("cancel: %v", err)
	}
	waitForStatus(t, m, id, types.TaskStatusCancelled)
}

func TestCancel_TerminalIsNoOp(t *testing.T) {
	m, _ := newTestManager(t, nil, map[string]pipeline.Component{
		"echo": pipeline.ComponentFunc(func(ctx context.Context, state types.State) (types.State, error) {
			return types.State{}, nil
		}),
	})

	id, err := m.Submit(context.Background(), "echo", nil)
	if err != nil {
		t.Fatalf("submit: %v", err)
	}
	waitForStatus(t, m, id, types.TaskStatusSucceeded)

	task, err := m.Cancel(context.Background(), id)
	if err != nil {
		t.Fatalf("cancel: %v", err)
	}
	if task.Status != types.TaskStatusSucceeded {
		t.Errorf("cancel of terminal task changed status to %s", task.Status)
	}
}

func TestFailedTask_RecordsErrorKind(t *testing.T) {
	m, _ := newTestManager(t, nil, map[string]pipeline.Component{
		"boom": pipeline.ComponentFunc(func(ctx context.Context, state types.State) (types.State, error) {
			return nil, fmt.Errorf("kaput")
		}),
	})

	id, err := m.Submit(context.Background(), "boom", nil)
	if err != nil {
		t.Fatalf("submit: %v", err)
	}

	task := waitForStatus(t, m, id, types.TaskStatusFailed)
	if task.Error == nil {
		t.Fatal("failed task must carry a structured error")
	}
	if task.Error.Kind != "internal_error" {
		t.Errorf("error kind = %q, want internal_error", task.Error.Kind)
	}
}

func TestPanicIsIsolated(t *testing.T) {
	m, _ := newTestManager(t, nil, map[string]pipeline.Component{
		"panic": pipeline.ComponentFunc(func(ctx context.Context, state types.State) (types.State, error) {
			panic("boom")
		}),
		"echo": pipeline.ComponentFunc(func(ctx context.Context, state types.State) (types.State, error) {
			return types.State{}, nil
		}),
	})

	id, err := m.Submit(context.Background(), "panic", nil)
	if err != nil {
		t.Fatalf("submit: %v", err)
	}
	task := waitForStatus(t, m, id, types.TaskStatusFailed)
	if task.Error == nil {
		t.Fatal("panicked task must record an error")
	}

	// The pool must survive the panic.
	id2, err := m.Submit(context.Background(), "echo", nil)
	if err != nil {
		t.Fatalf("submit after panic: %v", err)
	}
	waitForStatus(t, m, id2, types.TaskStatusSucceeded)
}

func TestRunSync_Success(t *testing.T) {
	m, _ := newTestManager(t, nil, map[string]pipeline.Component{
		"echo": pipeline.ComponentFunc(func(ctx context.Context, state types.State) (types.State, error) {
			return types.State{"done": true}, nil
		}),
	})

	task, err := m.RunSync(context.Background(), "echo", nil, 2*time.Second)
	if err != nil {
		t.Fatalf("run sync: %v", err)
	}
	if task.Status != types.TaskStatusSucceeded {
		t.Errorf("status = %s, want succeeded", task.Status)
	}
	if !task.Result.Bool("done") {
		t.Error("result not propagated")
	}
}

func TestRunSync_Timeout(t *testing.T) {
	m, _ := newTestManager(t, nil, map[string]pipeline.Component{
		"slow": pipeline.ComponentFunc(func(ctx context.Context, state types.State) (types.State, error) {
			select {
			case <-time.After(5 * time.Second):
				return types.State{}, nil
			case <-ctx.Done():
				return nil, ctx.Err()
			}
		}),
	})

	_, err := m.RunSync(context.Background(), "slow", nil, 50*time.Millisecond)
	if !errors.Is(err, ErrTimeout) {
		t.Fatalf("expected ErrTimeout, got %v", err)
	}

	// The abandoned task must be cancelled, not left running.
	metas, err := m.List(context.Background(), "", 0)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(metas) != 1 {
		t.Fatalf("tasks = %d, want 1", len(metas))
	}
	waitForStatus(t, m, metas[0].ID, types.TaskStatusCancelled)
}

func TestReap_RemovesOldTerminalTasks(t *testing.T) {
	m, _ := newTestManager(t, &Config{MaxWorkers: 2, QueueSize: 16, Retention: time.Millisecond}, map[string]pipeline.Component{
		"echo": pipeline.ComponentFunc(func(ctx context.Context, state types.State) (types.State, error) {
			return types.State{}, nil
		}),
	})

	id, err := m.Submit(context.Background(), "echo", nil)
	if err != nil {
		t.Fatalf("submit: %v", err)
	}
	waitForStatus(t, m, id, types.TaskStatusSucceeded)
	time.Sleep(10 * time.Millisecond)

	n, err := m.Reap(context.Background())
	if err != nil {
		t.Fatalf("reap: %v", err)
	}
	if n != 1 {
		t.Errorf("reaped = %d, want 1", n)
	}
	if _, err := m.Get(context.Background(), id); !errors.Is(err, taskstore.ErrTaskNotFound) {
		t.Errorf("expected ErrTaskNotFound after reap, got %v", err)
	}
}

func TestStop_WaitsForWorkers(t *testing.T) {
	var mu sync.Mutex
	finished := false

	m, _ := newTestManager(t, nil, map[string]pipeline.Component{
		"cooperative": pipeline.ComponentFunc(func(ctx context.Context, state types.State) (types.State, error) {
			<-ctx.Done()
			mu.Lock()
			finished = true
			mu.Unlock()
			return nil, ctx.Err()
		}),
	})

	if _, err := m.Submit(context.Background(), "cooperative", nil); err != nil {
		t.Fatalf("submit: %v", err)
	}
	time.Sleep(50 * time.Millisecond)

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	if err := m.Stop(ctx); err != nil {
		t.Fatalf("stop: %v", err)
	}

	mu.Lock()
	defer mu.Unlock()
	if !finished {
		t.Error("stop returned before the running task observed cancellation")
	}
}
