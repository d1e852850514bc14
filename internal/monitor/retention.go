package monitor

import (
	"context"
	"fmt"
	"time"

	"github.com/robfig/cron/v3"
	"go.uber.org/zap"
)

// HistoryPurger clears in-memory terminal task history
type HistoryPurger interface {
	ClearCompleted(olderThan time.Duration) int
}

// ArchivePurger clears persisted task records
type ArchivePurger interface {
	DeleteBefore(ctx context.Context, before time.Time) (int64, error)
}

// RetentionConfig defines how long terminal task history is kept and how
// often it is swept.
type RetentionConfig struct {
	// Schedule is a cron expression with seconds; default is hourly
	Schedule string
	// Window is how long terminal tasks remain queryable
	Window time.Duration
}

func (c RetentionConfig) withDefaults() RetentionConfig {
	if c.Schedule == "" {
		c.Schedule = "0 0 * * * *"
	}
	if c.Window <= 0 {
		c.Window = 24 * time.Hour
	}
	return c
}

// RetentionSweeper periodically purges terminal task history past the
// retention window from both the pipeline's memory and the archive.
type RetentionSweeper struct {
	logger  *zap.Logger
	cfg     RetentionConfig
	cron    *cron.Cron
	history HistoryPurger
	archive ArchivePurger
}

// cronLogger adapts zap.Logger to cron.Logger
type cronLogger struct {
	logger *zap.Logger
}

func (l *cronLogger) Info(msg string, keysAndValues ...interface{}) {
	l.logger.Info(msg)
}

func (l *cronLogger) Error(err error, msg string, keysAndValues ...interface{}) {
	l.logger.Error(msg, zap.Error(err))
}

// NewRetentionSweeper creates a retention sweeper. The archive may be nil
// when only in-memory history is kept.
func NewRetentionSweeper(cfg RetentionConfig, history HistoryPurger, archive ArchivePurger, logger *zap.Logger) *RetentionSweeper {
	logger = logger.Named("retention")
	cronOptions := []cron.Option{
		cron.WithSeconds(),
		cron.WithChain(cron.Recover(&cronLogger{logger: logger.Named("cron")})),
	}

	return &RetentionSweeper{
		logger:  logger,
		cfg:     cfg.withDefaults(),
		cron:    cron.New(cronOptions...),
		history: history,
		archive: archive,
	}
}

// Start schedules the sweep and starts the cron runner
func (s *RetentionSweeper) Start() error {
	if _, err := s.cron.AddFunc(s.cfg.Schedule, s.Sweep); err != nil {
		return fmt.Errorf("invalid retention schedule %q: %w", s.cfg.Schedule, err)
	}
	s.cron.Start()

	s.logger.Info("Retention sweeper started",
		zap.String("schedule", s.cfg.Schedule),
		zap.Duration("window", s.cfg.Window))
	return nil
}

// Stop stops the cron runner and waits for a running sweep to finish
func (s *RetentionSweeper) Stop() {
	ctx := s.cron.Stop()
	<-ctx.Done()
	s.logger.Info("Retention sweeper stopped")
}

// Sweep purges everything past the retention window once
func (s *RetentionSweeper) Sweep() {
	removed := s.history.ClearCompleted(s.cfg.Window)

	var archived int64
	if s.archive != nil {
		cutoff := time.Now().Add(-s.cfg.Window)
		deleted, err := s.archive.DeleteBefore(context.Background(), cutoff)
		if err != nil {
			s.logger.Error("Failed to purge archive", zap.Error(err))
		} else {
			archived = deleted
		}
	}

	s.logger.Info("Retention sweep finished",
		zap.Int("memory_purged", removed),
		zap.Int64("archive_purged", archived))
}
