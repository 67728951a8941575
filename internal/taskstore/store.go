// Package taskstore provides task snapshot persistence.
package taskstore

import (
	"context"
	"errors"

	"github.com/integrated-assistant/mcp-go/pkg/types"
)

// ErrTaskNotFound is returned when a task id is unknown or has been reaped.
var ErrTaskNotFound = errors.New("task not found")

// TaskStore persists task snapshots. The task manager keeps authoritative
// state in memory while the process runs; a store is the optional durability
// layer behind it. Implementations must be safe for concurrent use and must
// return copies so callers never share memory with stored tasks.
type TaskStore interface {
	// Put stores a new task snapshot.
	Put(ctx context.Context, task *types.Task) error

	// Get returns a copy of the task. Returns ErrTaskNotFound if unknown.
	Get(ctx context.Context, id string) (*types.Task, error)

	// Update replaces the stored snapshot. Returns ErrTaskNotFound if unknown.
	Update(ctx context.Context, task *types.Task) error

	// List returns task metadata, newest first. A non-empty status filters;
	// limit 0 means no limit.
	List(ctx context.Context, status types.TaskStatus, limit int) ([]types.TaskMeta, error)

	// Delete removes a task. Returns ErrTaskNotFound if unknown.
	Delete(ctx context.Context, id string) error

	// AdapterInfo reports implementation diagnostics.
	AdapterInfo(ctx context.Context) (map[string]interface{}, error)

	// Close releases any resources.
	Close() error
}

// Config holds configuration shared by TaskStore implementations.
type Config struct {
	// TTL for terminal tasks in seconds (0 = no expiry).
	TTLSeconds int64
}

// DefaultConfig returns sensible defaults for TaskStore configuration.
func DefaultConfig() *Config {
	return &Config{
		TTLSeconds: 24 * 60 * 60,
	}
}

func copyTask(t *types.Task) *types.Task {
	cp := *t
	if t.Payload != nil {
		cp.Payload = t.Payload.Clone()
	}
	if t.Result != nil {
		cp.Result = t.Result.Clone()
	}
	if t.Error != nil {
		e := *t.Error
		cp.Error = &e
	}
	return &cp
}
