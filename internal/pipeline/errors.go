package pipeline

import "errors"

var (
	// ErrTaskNotFound is returned when a task id is unknown to the pipeline
	ErrTaskNotFound = errors.New("task not found")

	// ErrQueueFull is returned when a priority queue is at capacity
	ErrQueueFull = errors.New("queue full")

	// ErrInvalidPriority is returned when an unknown priority is specified
	ErrInvalidPriority = errors.New("invalid task priority")
)
