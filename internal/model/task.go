package model

import (
	"encoding/json"
	"time"
)

// TaskStatus represents the current status of a task
type TaskStatus string

const (
	TaskStatusPending    TaskStatus = "pending"
	TaskStatusProcessing TaskStatus = "processing"
	TaskStatusCompleted  TaskStatus = "completed"
	TaskStatusFailed     TaskStatus = "failed"
	TaskStatusRetrying   TaskStatus = "retrying"
)

// Terminal reports whether the status is a final state.
func (s TaskStatus) Terminal() bool {
	return s == TaskStatusCompleted || s == TaskStatusFailed
}

// TaskPriority represents the priority level of a task
type TaskPriority int

const (
	TaskPriorityLow    TaskPriority = 1
	TaskPriorityNormal TaskPriority = 2
	TaskPriorityHigh   TaskPriority = 3
	TaskPriorityUrgent TaskPriority = 4
)

// Priorities lists all priority levels from highest to lowest. Workers
// scan queues in this order.
var Priorities = []TaskPriority{
	TaskPriorityUrgent,
	TaskPriorityHigh,
	TaskPriorityNormal,
	TaskPriorityLow,
}

// String returns the priority name used in queue status reports
func (p TaskPriority) String() string {
	switch p {
	case TaskPriorityLow:
		return "LOW"
	case TaskPriorityNormal:
		return "NORMAL"
	case TaskPriorityHigh:
		return "HIGH"
	case TaskPriorityUrgent:
		return "URGENT"
	default:
		return "UNKNOWN"
	}
}

// Task represents a unit of work submitted to the processing pipeline
type Task struct {
	ID       string          `json:"id"`
	Type     string          `json:"type"`
	Payload  json.RawMessage `json:"payload,omitempty"`
	Priority TaskPriority    `json:"priority"`
	Status   TaskStatus      `json:"status"`

	RetryCount int `json:"retry_count"`
	MaxRetries int `json:"max_retries"`

	// Timing fields
	CreatedAt   time.Time  `json:"created_at"`
	StartedAt   *time.Time `json:"started_at,omitempty"`
	CompletedAt *time.Time `json:"completed_at,omitempty"`

	// Outcome fields, populated when the task reaches a terminal state
	ErrorMessage    string          `json:"error_message,omitempty"`
	Result          json.RawMessage `json:"result,omitempty"`
	ConfidenceScore *float64        `json:"confidence_score,omitempty"`
	ProcessingTime  time.Duration   `json:"processing_time,omitempty"`
}

// Clone returns a copy of the task safe for callers to inspect while the
// pipeline keeps mutating its own copy.
func (t *Task) Clone() *Task {
	c := *t
	if t.StartedAt != nil {
		started := *t.StartedAt
		c.StartedAt = &started
	}
	if t.CompletedAt != nil {
		completed := *t.CompletedAt
		c.CompletedAt = &completed
	}
	if t.ConfidenceScore != nil {
		score := *t.ConfidenceScore
		c.ConfidenceScore = &score
	}
	return &c
}

// PipelineMetrics captures aggregate counters for the processing pipeline
type PipelineMetrics struct {
	TotalTasks            int64         `json:"total_tasks"`
	CompletedTasks        int64         `json:"completed_tasks"`
	FailedTasks           int64         `json:"failed_tasks"`
	AverageProcessingTime time.Duration `json:"average_processing_time"`
	QueueSize             int           `json:"queue_size"`
	ActiveWorkers         int           `json:"active_workers"`
	Uptime                time.Duration `json:"uptime"`
}
