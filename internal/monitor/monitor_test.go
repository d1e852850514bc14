package monitor

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/zacharias1219/gradeflow/internal/model"
)

type fakeSource struct {
	metrics model.PipelineMetrics
	queues  map[string]int
}

func (f *fakeSource) Metrics() model.PipelineMetrics { return f.metrics }
func (f *fakeSource) QueueStatus() map[string]int    { return f.queues }

func TestMetricsCollector_CollectsSnapshots(t *testing.T) {
	logger := zaptest.NewLogger(t)
	source := &fakeSource{
		metrics: model.PipelineMetrics{
			TotalTasks:     10,
			CompletedTasks: 7,
			FailedTasks:    1,
			QueueSize:      2,
		},
		queues: map[string]int{"URGENT": 1, "NORMAL": 1},
	}

	collector := NewMetricsCollector(source, 10*time.Millisecond, logger)
	collector.Start(context.Background())
	defer collector.Stop()

	require.Eventually(t, func() bool {
		return !collector.Latest().Timestamp.IsZero()
	}, 2*time.Second, 10*time.Millisecond)

	snapshot := collector.Latest()
	require.Equal(t, int64(10), snapshot.Pipeline.TotalTasks)
	require.Equal(t, int64(7), snapshot.Pipeline.CompletedTasks)
	require.Equal(t, 1, snapshot.Queues["URGENT"])
	require.GreaterOrEqual(t, snapshot.CPUUsage, 0.0)
	require.GreaterOrEqual(t, snapshot.MemoryUsage, 0.0)
}

func TestMetricsCollector_StopsOnContextCancel(t *testing.T) {
	logger := zaptest.NewLogger(t)
	collector := NewMetricsCollector(&fakeSource{}, 5*time.Millisecond, logger)

	ctx, cancel := context.WithCancel(context.Background())
	collector.Start(ctx)
	cancel()

	// The loop exits; a fresh snapshot never supersedes this marker.
	time.Sleep(50 * time.Millisecond)
	before := collector.Latest()
	time.Sleep(50 * time.Millisecond)
	require.Equal(t, before.Timestamp, collector.Latest().Timestamp)
}

type fakeHistory struct {
	mu      sync.Mutex
	windows []time.Duration
	removed int
}

func (f *fakeHistory) ClearCompleted(olderThan time.Duration) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.windows = append(f.windows, olderThan)
	return f.removed
}

type fakeArchivePurger struct {
	mu      sync.Mutex
	cutoffs []time.Time
	deleted int64
	err     error
}

func (f *fakeArchivePurger) DeleteBefore(ctx context.Context, before time.Time) (int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.cutoffs = append(f.cutoffs, before)
	return f.deleted, f.err
}

func TestRetentionSweeper_Sweep(t *testing.T) {
	logger := zaptest.NewLogger(t)
	history := &fakeHistory{removed: 3}
	archive := &fakeArchivePurger{deleted: 5}

	sweeper := NewRetentionSweeper(RetentionConfig{Window: time.Hour}, history, archive, logger)
	sweeper.Sweep()

	history.mu.Lock()
	require.Equal(t, []time.Duration{time.Hour}, history.windows)
	history.mu.Unlock()

	archive.mu.Lock()
	require.Len(t, archive.cutoffs, 1)
	require.WithinDuration(t, time.Now().Add(-time.Hour), archive.cutoffs[0], time.Minute)
	archive.mu.Unlock()
}

func TestRetentionSweeper_NilArchive(t *testing.T) {
	logger := zaptest.NewLogger(t)
	history := &fakeHistory{}

	sweeper := NewRetentionSweeper(RetentionConfig{Window: time.Hour}, history, nil, logger)
	sweeper.Sweep()

	history.mu.Lock()
	require.Len(t, history.windows, 1)
	history.mu.Unlock()
}

func TestRetentionSweeper_ScheduledRun(t *testing.T) {
	logger := zaptest.NewLogger(t)
	history := &fakeHistory{}
	archive := &fakeArchivePurger{}

	// Every-second schedule so the cron fires during the test
	sweeper := NewRetentionSweeper(RetentionConfig{Schedule: "* * * * * *", Window: time.Hour}, history, archive, logger)
	require.NoError(t, sweeper.Start())
	defer sweeper.Stop()

	require.Eventually(t, func() bool {
		history.mu.Lock()
		defer history.mu.Unlock()
		return len(history.windows) >= 1
	}, 3*time.Second, 50*time.Millisecond)
}

func TestRetentionSweeper_InvalidSchedule(t *testing.T) {
	logger := zaptest.NewLogger(t)
	sweeper := NewRetentionSweeper(RetentionConfig{Schedule: "not a schedule"}, &fakeHistory{}, nil, logger)
	require.Error(t, sweeper.Start())
}

func TestRetentionConfig_Defaults(t *testing.T) {
	cfg := RetentionConfig{}.withDefaults()
	require.Equal(t, "0 0 * * * *", cfg.Schedule)
	require.Equal(t, 24*time.Hour, cfg.Window)
}
