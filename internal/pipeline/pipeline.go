package pipeline

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/zacharias1219/gradeflow/internal/model"
)

// Handler processes the payload of one task type. Handlers must tolerate
// re-invocation because retries re-run the full handler.
type Handler interface {
	Execute(ctx context.Context, payload json.RawMessage) (interface{}, error)
}

// HandlerFunc adapts a plain function to the Handler interface
type HandlerFunc func(ctx context.Context, payload json.RawMessage) (interface{}, error)

// Execute implements Handler
func (f HandlerFunc) Execute(ctx context.Context, payload json.RawMessage) (interface{}, error) {
	return f(ctx, payload)
}

// Archive receives tasks that reached a terminal state
type Archive interface {
	ArchiveTask(ctx context.Context, task *model.Task) error
}

// Config defines the pipeline's tunables
type Config struct {
	Workers      int
	MaxQueueSize int
	PollInterval time.Duration
	RetryDelays  []time.Duration
	MaxRetries   int
	StopTimeout  time.Duration
}

func (c Config) withDefaults() Config {
	if c.Workers <= 0 {
		c.Workers = 4
	}
	if c.MaxQueueSize <= 0 {
		c.MaxQueueSize = 100
	}
	if c.PollInterval <= 0 {
		c.PollInterval = 100 * time.Millisecond
	}
	if len(c.RetryDelays) == 0 {
		c.RetryDelays = []time.Duration{1 * time.Second, 5 * time.Second, 15 * time.Second, 30 * time.Second}
	}
	if c.MaxRetries <= 0 {
		c.MaxRetries = 3
	}
	if c.StopTimeout <= 0 {
		c.StopTimeout = 10 * time.Second
	}
	return c
}

// Pipeline is an in-process task processing pipeline with four priority
// classes, a fixed worker pool, and retry with backoff. All task state is
// owned by the pipeline: pending/retrying tasks live in tasks, terminal
// tasks move to completed or failed and become immutable history.
type Pipeline struct {
	logger  *zap.Logger
	cfg     Config
	queues  *queueSet
	archive Archive

	handlersMu sync.RWMutex
	handlers   map[string]Handler

	mu        sync.RWMutex
	tasks     map[string]*model.Task
	completed map[string]*model.Task
	failed    map[string]*model.Task

	totalTasks     int64
	completedTasks int64
	failedTasks    int64
	avgProcessing  float64 // seconds, exponential moving average

	running   bool
	stop      chan struct{}
	wg        sync.WaitGroup
	startTime time.Time
}

// Option configures optional pipeline collaborators
type Option func(*Pipeline)

// WithArchive attaches a storage backend that records terminal tasks
func WithArchive(a Archive) Option {
	return func(p *Pipeline) { p.archive = a }
}

// New creates a pipeline. Call RegisterHandler for each task type, then
// Start to launch the worker pool.
func New(cfg Config, logger *zap.Logger, opts ...Option) *Pipeline {
	cfg = cfg.withDefaults()
	p := &Pipeline{
		logger:    logger.Named("pipeline"),
		cfg:       cfg,
		queues:    newQueueSet(cfg.MaxQueueSize),
		handlers:  make(map[string]Handler),
		tasks:     make(map[string]*model.Task),
		completed: make(map[string]*model.Task),
		failed:    make(map[string]*model.Task),
		startTime: time.Now(),
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// RegisterHandler registers a handler for a task type
func (p *Pipeline) RegisterHandler(taskType string, handler Handler) {
	p.handlersMu.Lock()
	p.handlers[taskType] = handler
	p.handlersMu.Unlock()

	p.logger.Info("Registered task handler", zap.String("task_type", taskType))
}

// Start launches the worker pool. Calling Start on a running pipeline is a
// no-op.
func (p *Pipeline) Start() {
	p.mu.Lock()
	if p.running {
		p.mu.Unlock()
		p.logger.Warn("Pipeline is already running")
		return
	}
	p.running = true
	p.stop = make(chan struct{})
	p.startTime = time.Now()
	p.mu.Unlock()

	for i := 0; i < p.cfg.Workers; i++ {
		p.wg.Add(1)
		go p.workerLoop(i)
	}

	p.logger.Info("Pipeline started", zap.Int("workers", p.cfg.Workers))
}

// Stop signals workers to exit after their current unit of work and joins
// them with a bounded timeout. Tasks mid-flight past the timeout remain
// PROCESSING; they are not recovered. Safe to call when not running.
func (p *Pipeline) Stop() {
	p.mu.Lock()
	if !p.running {
		p.mu.Unlock()
		return
	}
	p.running = false
	stop := p.stop
	p.mu.Unlock()

	close(stop)

	done := make(chan struct{})
	go func() {
		p.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		p.logger.Info("Pipeline stopped")
	case <-time.After(p.cfg.StopTimeout):
		p.logger.Warn("Pipeline stop timed out, abandoning in-flight workers",
			zap.Duration("timeout", p.cfg.StopTimeout))
	}
}

// Submit creates a task and enqueues it. Submission never returns an
// error: when the target queue is full the returned task id resolves to a
// FAILED task carrying the admission error message.
func (p *Pipeline) Submit(taskType string, payload interface{}, priority model.TaskPriority) string {
	task := &model.Task{
		ID:         uuid.New().String(),
		Type:       taskType,
		Priority:   priority,
		Status:     model.TaskStatusPending,
		MaxRetries: p.cfg.MaxRetries,
		CreatedAt:  time.Now(),
	}

	if payload != nil {
		data, err := json.Marshal(payload)
		if err != nil {
			p.mu.Lock()
			p.totalTasks++
			p.mu.Unlock()
			p.failTask(task, fmt.Sprintf("invalid payload: %v", err))
			return task.ID
		}
		task.Payload = data
	}

	p.mu.Lock()
	p.tasks[task.ID] = task
	p.totalTasks++
	p.mu.Unlock()

	if err := p.queues.enqueue(priority, task.ID); err != nil {
		p.mu.Lock()
		delete(p.tasks, task.ID)
		p.mu.Unlock()
		p.failTask(task, fmt.Sprintf("cannot accept task: %v", err))
		return task.ID
	}

	p.logger.Info("Task submitted",
		zap.String("task_id", task.ID),
		zap.String("task_type", taskType),
		zap.String("priority", priority.String()))

	return task.ID
}

// TaskStatus returns a snapshot of a task in any state
func (p *Pipeline) TaskStatus(taskID string) (*model.Task, error) {
	p.mu.RLock()
	defer p.mu.RUnlock()

	if task, ok := p.tasks[taskID]; ok {
		return task.Clone(), nil
	}
	if task, ok := p.completed[taskID]; ok {
		return task.Clone(), nil
	}
	if task, ok := p.failed[taskID]; ok {
		return task.Clone(), nil
	}
	return nil, ErrTaskNotFound
}

// Metrics returns current aggregate pipeline metrics
func (p *Pipeline) Metrics() model.PipelineMetrics {
	p.mu.RLock()
	defer p.mu.RUnlock()

	active := 0
	for _, task := range p.tasks {
		if task.Status == model.TaskStatusProcessing {
			active++
		}
	}

	return model.PipelineMetrics{
		TotalTasks:            p.totalTasks,
		CompletedTasks:        p.completedTasks,
		FailedTasks:           p.failedTasks,
		AverageProcessingTime: time.Duration(p.avgProcessing * float64(time.Second)),
		QueueSize:             p.queues.size(),
		ActiveWorkers:         active,
		Uptime:                time.Since(p.startTime),
	}
}

// QueueStatus returns the pending count per priority name
func (p *Pipeline) QueueStatus() map[string]int {
	return p.queues.status()
}

// ClearCompleted purges terminal task history older than the retention
// window and returns the number of records removed.
func (p *Pipeline) ClearCompleted(olderThan time.Duration) int {
	cutoff := time.Now().Add(-olderThan)

	p.mu.Lock()
	defer p.mu.Unlock()

	removed := 0
	for id, task := range p.completed {
		if task.CompletedAt != nil && task.CompletedAt.Before(cutoff) {
			delete(p.completed, id)
			removed++
		}
	}
	for id, task := range p.failed {
		if task.CompletedAt != nil && task.CompletedAt.Before(cutoff) {
			delete(p.failed, id)
			removed++
		}
	}

	if removed > 0 {
		p.logger.Info("Cleared old terminal tasks", zap.Int("removed", removed))
	}
	return removed
}

// workerLoop drains the priority queues until stopped. An empty scan blocks
// for at most the poll interval so the worker notices new work and the stop
// signal promptly while never spinning.
func (p *Pipeline) workerLoop(workerID int) {
	defer p.wg.Done()

	logger := p.logger.With(zap.Int("worker_id", workerID))
	logger.Debug("Worker started")

	stop := p.stopChan()
	for {
		taskID, ok := p.queues.tryDequeue()
		if !ok {
			select {
			case <-stop:
				logger.Debug("Worker stopped")
				return
			case <-time.After(p.cfg.PollInterval):
			}
			continue
		}

		p.processTask(taskID, logger)

		select {
		case <-stop:
			logger.Debug("Worker stopped")
			return
		default:
		}
	}
}

func (p *Pipeline) stopChan() chan struct{} {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.stop
}

// processTask runs one claimed task through its handler and routes the
// outcome. The dequeue claimed the id exclusively, so no other worker
// touches this task.
func (p *Pipeline) processTask(taskID string, logger *zap.Logger) {
	p.mu.Lock()
	task, ok := p.tasks[taskID]
	if !ok {
		p.mu.Unlock()
		logger.Error("Dequeued unknown task", zap.String("task_id", taskID))
		return
	}
	task.Status = model.TaskStatusProcessing
	now := time.Now()
	task.StartedAt = &now
	p.mu.Unlock()

	logger.Info("Processing task",
		zap.String("task_id", task.ID),
		zap.String("task_type", task.Type))

	p.handlersMu.RLock()
	handler, registered := p.handlers[task.Type]
	p.handlersMu.RUnlock()

	if !registered {
		// Configuration error, not a transient fault: never retried.
		p.mu.Lock()
		delete(p.tasks, task.ID)
		p.mu.Unlock()
		p.failTask(task, fmt.Sprintf("no handler registered for task type %q", task.Type))
		return
	}

	start := time.Now()
	result, err := handler.Execute(context.Background(), task.Payload)
	elapsed := time.Since(start)

	if err != nil {
		p.handleTaskError(task, err, elapsed, logger)
		return
	}

	p.completeTask(task, result, elapsed, logger)
}

func (p *Pipeline) completeTask(task *model.Task, result interface{}, elapsed time.Duration, logger *zap.Logger) {
	var encoded json.RawMessage
	if result != nil {
		data, err := json.Marshal(result)
		if err != nil {
			p.handleTaskError(task, fmt.Errorf("marshal result: %w", err), elapsed, logger)
			return
		}
		encoded = data
	}

	confidence := scoreConfidence(result, elapsed, task.RetryCount)

	p.mu.Lock()
	task.Status = model.TaskStatusCompleted
	now := time.Now()
	task.CompletedAt = &now
	task.Result = encoded
	task.ConfidenceScore = &confidence
	task.ProcessingTime = elapsed
	delete(p.tasks, task.ID)
	p.completed[task.ID] = task
	p.completedTasks++
	p.observeProcessingTime(elapsed)
	p.mu.Unlock()

	logger.Info("Task completed",
		zap.String("task_id", task.ID),
		zap.Duration("processing_time", elapsed),
		zap.Float64("confidence", confidence))

	p.archiveTask(task)
}

// handleTaskError applies the retry policy to a failed handler invocation
func (p *Pipeline) handleTaskError(task *model.Task, taskErr error, elapsed time.Duration, logger *zap.Logger) {
	p.mu.Lock()
	task.RetryCount++
	task.ErrorMessage = taskErr.Error()
	task.ProcessingTime = elapsed
	retrying := task.RetryCount <= task.MaxRetries
	if retrying {
		task.Status = model.TaskStatusRetrying
	} else {
		task.Status = model.TaskStatusFailed
		now := time.Now()
		task.CompletedAt = &now
		delete(p.tasks, task.ID)
		p.failed[task.ID] = task
		p.failedTasks++
	}
	p.mu.Unlock()

	if !retrying {
		logger.Error("Task failed permanently",
			zap.String("task_id", task.ID),
			zap.Int("max_retries", task.MaxRetries),
			zap.Error(taskErr))
		p.archiveTask(task)
		return
	}

	delay := retryDelay(p.cfg.RetryDelays, task.RetryCount)
	logger.Warn("Task failed, scheduling retry",
		zap.String("task_id", task.ID),
		zap.Int("attempt", task.RetryCount),
		zap.Int("max_retries", task.MaxRetries),
		zap.Duration("delay", delay),
		zap.Error(taskErr))

	// Fire-once timer; the retry does not hold a worker while pending.
	time.AfterFunc(delay, func() { p.requeueTask(task.ID) })
}

// retryDelay indexes the backoff schedule by attempt, saturating at the
// last entry for attempts beyond the schedule's length.
func retryDelay(schedule []time.Duration, attempt int) time.Duration {
	idx := attempt - 1
	if idx < 0 {
		idx = 0
	}
	if idx >= len(schedule) {
		idx = len(schedule) - 1
	}
	return schedule[idx]
}

// requeueTask moves a RETRYING task back to PENDING and re-enqueues it at
// its original priority. A full queue at retry time fails the task
// permanently; retries are not themselves retried.
func (p *Pipeline) requeueTask(taskID string) {
	p.mu.Lock()
	task, ok := p.tasks[taskID]
	if !ok || task.Status != model.TaskStatusRetrying {
		p.mu.Unlock()
		return
	}
	task.Status = model.TaskStatusPending
	task.StartedAt = nil
	task.CompletedAt = nil
	task.Result = nil
	p.mu.Unlock()

	if err := p.queues.enqueue(task.Priority, task.ID); err != nil {
		p.mu.Lock()
		delete(p.tasks, task.ID)
		p.mu.Unlock()
		p.failTask(task, fmt.Sprintf("cannot re-enqueue task: %v", err))
		return
	}

	p.logger.Info("Task re-enqueued for retry",
		zap.String("task_id", task.ID),
		zap.Int("attempt", task.RetryCount))
}

// failTask records a task as permanently failed without a retry. The task
// must no longer be present in the pending map.
func (p *Pipeline) failTask(task *model.Task, message string) {
	p.mu.Lock()
	task.Status = model.TaskStatusFailed
	task.ErrorMessage = message
	now := time.Now()
	task.CompletedAt = &now
	p.failed[task.ID] = task
	p.failedTasks++
	p.mu.Unlock()

	p.logger.Error("Task failed",
		zap.String("task_id", task.ID),
		zap.String("task_type", task.Type),
		zap.String("error", message))

	p.archiveTask(task)
}

// observeProcessingTime folds a completion into the average as an
// exponential moving average. Caller holds p.mu.
func (p *Pipeline) observeProcessingTime(elapsed time.Duration) {
	seconds := elapsed.Seconds()
	if p.completedTasks == 1 {
		p.avgProcessing = seconds
		return
	}
	const alpha = 0.1
	p.avgProcessing = alpha*seconds + (1-alpha)*p.avgProcessing
}

func (p *Pipeline) archiveTask(task *model.Task) {
	if p.archive == nil {
		return
	}
	if err := p.archive.ArchiveTask(context.Background(), task.Clone()); err != nil {
		p.logger.Error("Failed to archive task",
			zap.String("task_id", task.ID),
			zap.Error(err))
	}
}
