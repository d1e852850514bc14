package monitor

import (
	"context"
	"sync"
	"time"

	"github.com/shirou/gopsutil/v3/cpu"
	"github.com/shirou/gopsutil/v3/mem"
	"go.uber.org/zap"

	"github.com/zacharias1219/gradeflow/internal/model"
)

// MetricsSource provides pipeline metrics snapshots
type MetricsSource interface {
	Metrics() model.PipelineMetrics
	QueueStatus() map[string]int
}

// Snapshot combines system resource usage with pipeline counters at one
// point in time.
type Snapshot struct {
	Timestamp   time.Time             `json:"timestamp"`
	CPUUsage    float64               `json:"cpu_usage"`
	MemoryUsage float64               `json:"memory_usage"`
	Pipeline    model.PipelineMetrics `json:"pipeline"`
	Queues      map[string]int        `json:"queues"`
}

// MetricsCollector samples system and pipeline metrics on an interval
type MetricsCollector struct {
	logger   *zap.Logger
	source   MetricsSource
	interval time.Duration
	mu       sync.RWMutex
	latest   Snapshot
	stop     chan struct{}
}

// NewMetricsCollector creates a new metrics collector
func NewMetricsCollector(source MetricsSource, interval time.Duration, logger *zap.Logger) *MetricsCollector {
	return &MetricsCollector{
		logger:   logger.Named("metrics-collector"),
		source:   source,
		interval: interval,
		stop:     make(chan struct{}),
	}
}

// Start starts the collection loop
func (c *MetricsCollector) Start(ctx context.Context) {
	c.logger.Info("Starting metrics collector",
		zap.Duration("interval", c.interval))
	go c.collectLoop(ctx)
}

// Stop stops the metrics collector
func (c *MetricsCollector) Stop() {
	c.logger.Info("Stopping metrics collector")
	close(c.stop)
}

// Latest returns the most recent snapshot
func (c *MetricsCollector) Latest() Snapshot {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.latest
}

func (c *MetricsCollector) collectLoop(ctx context.Context) {
	ticker := time.NewTicker(c.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-c.stop:
			return
		case <-ticker.C:
			c.collect()
		}
	}
}

func (c *MetricsCollector) collect() {
	snapshot := Snapshot{
		Timestamp: time.Now(),
		Pipeline:  c.source.Metrics(),
		Queues:    c.source.QueueStatus(),
	}

	if cpuPercent, err := cpu.Percent(0, false); err != nil {
		c.logger.Error("Failed to get CPU usage", zap.Error(err))
	} else if len(cpuPercent) > 0 {
		snapshot.CPUUsage = cpuPercent[0]
	}

	if memInfo, err := mem.VirtualMemory(); err != nil {
		c.logger.Error("Failed to get memory usage", zap.Error(err))
	} else {
		snapshot.MemoryUsage = memInfo.UsedPercent
	}

	c.mu.Lock()
	c.latest = snapshot
	c.mu.Unlock()

	c.logger.Debug("Metrics collected",
		zap.Float64("cpu_usage", snapshot.CPUUsage),
		zap.Float64("memory_usage", snapshot.MemoryUsage),
		zap.Int64("completed_tasks", snapshot.Pipeline.CompletedTasks),
		zap.Int64("failed_tasks", snapshot.Pipeline.FailedTasks),
		zap.Int("queue_size", snapshot.Pipeline.QueueSize),
		zap.Int("active_workers", snapshot.Pipeline.ActiveWorkers))
}
