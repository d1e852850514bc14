package pipeline

import (
	"github.com/zacharias1219/gradeflow/internal/model"
)

// queueSet holds one bounded FIFO queue per priority level. Channels give
// FIFO order within a class and make enqueue/dequeue safe across workers
// without extra locking; a task id is claimed by exactly one receive.
type queueSet struct {
	queues map[model.TaskPriority]chan string
}

func newQueueSet(capacity int) *queueSet {
	s := &queueSet{queues: make(map[model.TaskPriority]chan string, len(model.Priorities))}
	for _, p := range model.Priorities {
		s.queues[p] = make(chan string, capacity)
	}
	return s
}

// enqueue adds a task id to its priority queue without blocking. Returns
// ErrQueueFull when the queue is at capacity so the caller can surface the
// backpressure instead of growing without bound.
func (s *queueSet) enqueue(priority model.TaskPriority, taskID string) error {
	q, ok := s.queues[priority]
	if !ok {
		return ErrInvalidPriority
	}
	select {
	case q <- taskID:
		return nil
	default:
		return ErrQueueFull
	}
}

// tryDequeue scans the queues in strict priority order and claims the first
// available task id. Returns false when every queue is empty.
func (s *queueSet) tryDequeue() (string, bool) {
	for _, p := range model.Priorities {
		select {
		case id := <-s.queues[p]:
			return id, true
		default:
		}
	}
	return "", false
}

// size returns the total number of queued task ids across all priorities
func (s *queueSet) size() int {
	total := 0
	for _, q := range s.queues {
		total += len(q)
	}
	return total
}

// status returns the pending count per priority name
func (s *queueSet) status() map[string]int {
	counts := make(map[string]int, len(s.queues))
	for p, q := range s.queues {
		counts[p.String()] = len(q)
	}
	return counts
}
