// Package types provides shared types for the MCP orchestration service.
package types

import (
	"time"
)

// TaskStatus represents the current state of a task.
type TaskStatus string

const (
	TaskStatusPending   TaskStatus = "pending"
	TaskStatusRunning   TaskStatus = "running"
	TaskStatusSucceeded TaskStatus = "succeeded"
	TaskStatusFailed    TaskStatus = "failed"
	TaskStatusCancelled TaskStatus = "cancelled"
)

// Valid reports whether the status is one of the known values.
func (s TaskStatus) Valid() bool {
	switch s {
	case TaskStatusPending, TaskStatusRunning, TaskStatusSucceeded, TaskStatusFailed, TaskStatusCancelled:
		return true
	}
	return false
}

// Terminal reports whether the status is a final state.
func (s TaskStatus) Terminal() bool {
	switch s {
	case TaskStatusSucceeded, TaskStatusFailed, TaskStatusCancelled:
		return true
	}
	return false
}

// TaskError is the structured failure recorded on a failed task.
type TaskError struct {
	Kind    string `json:"kind"`
	Message string `json:"message"`
}

func (e *TaskError) Error() string {
	if e == nil {
		return ""
	}
	return e.Kind + ": " + e.Message
}

// Task is a trackable unit of asynchronous work. The task manager is the
// only writer of Status, Result and Error.
type Task struct {
	ID         string     `json:"id"`
	Kind       string     `json:"kind"`
	Payload    State      `json:"payload,omitempty"`
	Status     TaskStatus `json:"status"`
	Result     State      `json:"result,omitempty"`
	Error      *TaskError `json:"error,omitempty"`
	CreatedAt  time.Time  `json:"created_at"`
	StartedAt  *time.Time `json:"started_at,omitempty"`
	FinishedAt *time.Time `json:"finished_at,omitempty"`
}

// TaskMeta is a lightweight representation of a task for listing.
type TaskMeta struct {
	ID         string     `json:"id"`
	Kind       string     `json:"kind"`
	Status     TaskStatus `json:"status"`
	CreatedAt  time.Time  `json:"created_at"`
	StartedAt  *time.Time `json:"started_at,omitempty"`
	FinishedAt *time.Time `json:"finished_at,omitempty"`
}

// Meta strips the payload and result from a task snapshot.
func (t *Task) Meta() TaskMeta {
	return TaskMeta{
		ID:         t.ID,
		Kind:       t.Kind,
		Status:     t.Status,
		CreatedAt:  t.CreatedAt,
		StartedAt:  t.StartedAt,
		FinishedAt: t.FinishedAt,
	}
}
