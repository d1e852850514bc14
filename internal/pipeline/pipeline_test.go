package pipeline

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/zacharias1219/gradeflow/internal/model"
)

func testConfig() Config {
	return Config{
		Workers:      1,
		MaxQueueSize: 10,
		PollInterval: 5 * time.Millisecond,
		RetryDelays:  []time.Duration{5 * time.Millisecond, 10 * time.Millisecond},
		MaxRetries:   3,
		StopTimeout:  2 * time.Second,
	}
}

func waitTerminal(t *testing.T, p *Pipeline, taskID string) *model.Task {
	t.Helper()

	var task *model.Task
	require.Eventually(t, func() bool {
		snapshot, err := p.TaskStatus(taskID)
		if err != nil {
			return false
		}
		if !snapshot.Status.Terminal() {
			return false
		}
		task = snapshot
		return true
	}, 5*time.Second, 5*time.Millisecond)
	return task
}

func TestPipeline_CompletesTask(t *testing.T) {
	logger := zaptest.NewLogger(t)
	p := New(testConfig(), logger)

	p.RegisterHandler("echo", HandlerFunc(func(ctx context.Context, payload json.RawMessage) (interface{}, error) {
		var msg map[string]string
		require.NoError(t, json.Unmarshal(payload, &msg))
		return msg, nil
	}))

	p.Start()
	defer p.Stop()

	id := p.Submit("echo", map[string]string{"hello": "world"}, model.TaskPriorityNormal)
	task := waitTerminal(t, p, id)

	require.Equal(t, model.TaskStatusCompleted, task.Status)
	require.NotNil(t, task.CompletedAt)
	require.NotNil(t, task.ConfidenceScore)
	require.JSONEq(t, `{"hello":"world"}`, string(task.Result))

	metrics := p.Metrics()
	require.Equal(t, int64(1), metrics.TotalTasks)
	require.Equal(t, int64(1), metrics.CompletedTasks)
	require.Equal(t, int64(0), metrics.FailedTasks)
}

func TestPipeline_PriorityOrdering(t *testing.T) {
	logger := zaptest.NewLogger(t)
	p := New(testConfig(), logger)

	var mu sync.Mutex
	var order []string

	p.RegisterHandler("record", HandlerFunc(func(ctx context.Context, payload json.RawMessage) (interface{}, error) {
		var name string
		require.NoError(t, json.Unmarshal(payload, &name))
		mu.Lock()
		order = append(order, name)
		mu.Unlock()
		return nil, nil
	}))

	// Enqueue before starting so the single worker sees a populated queue
	// set and drains it in strict priority order.
	ids := []string{
		p.Submit("record", "normal-1", model.TaskPriorityNormal),
		p.Submit("record", "urgent-1", model.TaskPriorityUrgent),
		p.Submit("record", "normal-2", model.TaskPriorityNormal),
		p.Submit("record", "urgent-2", model.TaskPriorityUrgent),
		p.Submit("record", "low-1", model.TaskPriorityLow),
	}

	p.Start()
	defer p.Stop()

	for _, id := range ids {
		waitTerminal(t, p, id)
	}

	mu.Lock()
	defer mu.Unlock()
	require.Equal(t, []string{"urgent-1", "urgent-2", "normal-1", "normal-2", "low-1"}, order)
}

func TestPipeline_RetriesThenSucceeds(t *testing.T) {
	logger := zaptest.NewLogger(t)
	p := New(testConfig(), logger)

	var mu sync.Mutex
	attempts := 0

	p.RegisterHandler("flaky", HandlerFunc(func(ctx context.Context, payload json.RawMessage) (interface{}, error) {
		mu.Lock()
		defer mu.Unlock()
		attempts++
		if attempts < 3 {
			return nil, errors.New("transient failure")
		}
		return "ok", nil
	}))

	p.Start()
	defer p.Stop()

	id := p.Submit("flaky", nil, model.TaskPriorityHigh)
	task := waitTerminal(t, p, id)

	require.Equal(t, model.TaskStatusCompleted, task.Status)
	require.Equal(t, 2, task.RetryCount)

	mu.Lock()
	require.Equal(t, 3, attempts)
	mu.Unlock()
}

func TestPipeline_RetryExhaustionFailsTask(t *testing.T) {
	logger := zaptest.NewLogger(t)
	p := New(testConfig(), logger)

	var mu sync.Mutex
	attempts := 0

	p.RegisterHandler("doomed", HandlerFunc(func(ctx context.Context, payload json.RawMessage) (interface{}, error) {
		mu.Lock()
		attempts++
		mu.Unlock()
		return nil, errors.New("permanent failure")
	}))

	p.Start()
	defer p.Stop()

	id := p.Submit("doomed", nil, model.TaskPriorityNormal)
	task := waitTerminal(t, p, id)

	require.Equal(t, model.TaskStatusFailed, task.Status)
	require.Contains(t, task.ErrorMessage, "permanent failure")
	// Initial attempt plus three retries
	require.Equal(t, 4, task.RetryCount)

	mu.Lock()
	require.Equal(t, 4, attempts)
	mu.Unlock()

	metrics := p.Metrics()
	require.Equal(t, int64(1), metrics.FailedTasks)
}

func TestPipeline_FullQueueFailsSubmission(t *testing.T) {
	logger := zaptest.NewLogger(t)
	cfg := testConfig()
	cfg.MaxQueueSize = 1
	p := New(cfg, logger)
	p.RegisterHandler("noop", HandlerFunc(func(ctx context.Context, payload json.RawMessage) (interface{}, error) {
		return nil, nil
	}))

	// Pipeline not started: nothing drains the queue.
	first := p.Submit("noop", nil, model.TaskPriorityNormal)
	second := p.Submit("noop", nil, model.TaskPriorityNormal)

	firstTask, err := p.TaskStatus(first)
	require.NoError(t, err)
	require.Equal(t, model.TaskStatusPending, firstTask.Status)

	secondTask, err := p.TaskStatus(second)
	require.NoError(t, err)
	require.Equal(t, model.TaskStatusFailed, secondTask.Status)
	require.Contains(t, secondTask.ErrorMessage, "queue")
}

func TestPipeline_UnregisteredTypeFailsWithoutRetry(t *testing.T) {
	logger := zaptest.NewLogger(t)
	p := New(testConfig(), logger)

	p.Start()
	defer p.Stop()

	id := p.Submit("nonexistent", nil, model.TaskPriorityNormal)
	task := waitTerminal(t, p, id)

	require.Equal(t, model.TaskStatusFailed, task.Status)
	require.Equal(t, 0, task.RetryCount)
	require.Contains(t, task.ErrorMessage, "no handler registered")
}

func TestPipeline_TaskStatusUnknownID(t *testing.T) {
	logger := zaptest.NewLogger(t)
	p := New(testConfig(), logger)

	_, err := p.TaskStatus("missing")
	require.ErrorIs(t, err, ErrTaskNotFound)
}

func TestPipeline_StartStopIdempotent(t *testing.T) {
	logger := zaptest.NewLogger(t)
	p := New(testConfig(), logger)

	p.Start()
	p.Start()
	p.Stop()
	p.Stop()

	// Restart after stop works
	p.Start()
	p.RegisterHandler("noop", HandlerFunc(func(ctx context.Context, payload json.RawMessage) (interface{}, error) {
		return nil, nil
	}))
	id := p.Submit("noop", nil, model.TaskPriorityNormal)
	task := waitTerminal(t, p, id)
	require.Equal(t, model.TaskStatusCompleted, task.Status)
	p.Stop()
}

func TestPipeline_ClearCompleted(t *testing.T) {
	logger := zaptest.NewLogger(t)
	p := New(testConfig(), logger)
	p.RegisterHandler("noop", HandlerFunc(func(ctx context.Context, payload json.RawMessage) (interface{}, error) {
		return nil, nil
	}))

	p.Start()
	defer p.Stop()

	id := p.Submit("noop", nil, model.TaskPriorityNormal)
	waitTerminal(t, p, id)

	// Nothing is older than an hour yet
	require.Equal(t, 0, p.ClearCompleted(time.Hour))

	// Everything is older than zero
	require.Eventually(t, func() bool {
		return p.ClearCompleted(0) == 1
	}, time.Second, 5*time.Millisecond)

	_, err := p.TaskStatus(id)
	require.ErrorIs(t, err, ErrTaskNotFound)
}

type recordingArchive struct {
	mu    sync.Mutex
	tasks []*model.Task
}

func (a *recordingArchive) ArchiveTask(ctx context.Context, task *model.Task) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.tasks = append(a.tasks, task)
	return nil
}

func (a *recordingArchive) snapshot() []*model.Task {
	a.mu.Lock()
	defer a.mu.Unlock()
	return append([]*model.Task(nil), a.tasks...)
}

func TestPipeline_ArchivesTerminalTasks(t *testing.T) {
	logger := zaptest.NewLogger(t)
	archive := &recordingArchive{}
	p := New(testConfig(), logger, WithArchive(archive))

	p.RegisterHandler("noop", HandlerFunc(func(ctx context.Context, payload json.RawMessage) (interface{}, error) {
		return nil, nil
	}))

	p.Start()
	defer p.Stop()

	completed := p.Submit("noop", nil, model.TaskPriorityNormal)
	failed := p.Submit("unknown", nil, model.TaskPriorityNormal)
	waitTerminal(t, p, completed)
	waitTerminal(t, p, failed)

	require.Eventually(t, func() bool {
		return len(archive.snapshot()) == 2
	}, time.Second, 5*time.Millisecond)

	statuses := map[string]model.TaskStatus{}
	for _, task := range archive.snapshot() {
		statuses[task.ID] = task.Status
	}
	require.Equal(t, model.TaskStatusCompleted, statuses[completed])
	require.Equal(t, model.TaskStatusFailed, statuses[failed])
}

func TestPipeline_MetricsAndQueueStatus(t *testing.T) {
	logger := zaptest.NewLogger(t)
	p := New(testConfig(), logger)
	p.RegisterHandler("noop", HandlerFunc(func(ctx context.Context, payload json.RawMessage) (interface{}, error) {
		return nil, nil
	}))

	// Not started: submissions sit in queues
	p.Submit("noop", nil, model.TaskPriorityUrgent)
	p.Submit("noop", nil, model.TaskPriorityLow)

	status := p.QueueStatus()
	require.Equal(t, 1, status["URGENT"])
	require.Equal(t, 1, status["LOW"])

	metrics := p.Metrics()
	require.Equal(t, int64(2), metrics.TotalTasks)
	require.Equal(t, 2, metrics.QueueSize)
}

func TestRetryDelaySaturates(t *testing.T) {
	schedule := []time.Duration{time.Second, 5 * time.Second, 15 * time.Second, 30 * time.Second}

	require.Equal(t, time.Second, retryDelay(schedule, 1))
	require.Equal(t, 5*time.Second, retryDelay(schedule, 2))
	require.Equal(t, 15*time.Second, retryDelay(schedule, 3))
	require.Equal(t, 30*time.Second, retryDelay(schedule, 4))
	require.Equal(t, 30*time.Second, retryDelay(schedule, 9))
	require.Equal(t, time.Second, retryDelay(schedule, 0))
}
