package taskstore

import (
	"context"
	"sort"
	"sync"

	"github.com/integrated-assistant/mcp-go/pkg/types"
)

// MemoryStore is an in-memory implementation of TaskStore. Authoritative
// while the process runs; data is lost on restart.
type MemoryStore struct {
	mu    sync.RWMutex
	tasks map[string]*types.Task
}

// NewMemoryStore creates a new in-memory TaskStore.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{tasks: make(map[string]*types.Task)}
}

func (s *MemoryStore) Put(ctx context.Context, task *types.Task) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.tasks[task.ID] = copyTask(task)
	return nil
}

func (s *MemoryStore) Get(ctx context.Context, id string) (*types.Task, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	task, ok := s.tasks[id]
	if !ok {
		return nil, ErrTaskNotFound
	}
	return copyTask(task), nil
}

func (s *MemoryStore) Update(ctx context.Context, task *types.Task) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.tasks[task.ID]; !ok {
		return ErrTaskNotFound
	}
	s.tasks[task.ID] = copyTask(task)
	return nil
}

func (s *MemoryStore) List(ctx context.Context, status types.TaskStatus, limit int) ([]types.TaskMeta, error) {
	s.mu.RLock()
	metas := make([]types.TaskMeta, 0, len(s.tasks))
	for _, task := range s.tasks {
		if status != "" && task.Status != status {
			continue
		}
		metas = append(metas, task.Meta())
	}
	s.mu.RUnlock()

	sort.Slice(metas, func(i, j int) bool {
		return metas[i].CreatedAt.After(metas[j].CreatedAt)
	})
	if limit > 0 && len(metas) > limit {
		metas = metas[:limit]
	}
	return metas, nil
}

func (s *MemoryStore) Delete(ctx context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.tasks[id]; !ok {
		return ErrTaskNotFound
	}
	delete(s.tasks, id)
	return nil
}

func (s *MemoryStore) AdapterInfo(ctx context.Context) (map[string]interface{}, error) {
	s.mu.RLock()
	count := len(s.tasks)
	s.mu.RUnlock()

	return map[string]interface{}{
		"adapter":    "memory",
		"task_count": count,
	}, nil
}

func (s *MemoryStore) Close() error {
	return nil
}

// Verify interface compliance
var _ TaskStore = (*MemoryStore)(nil)
