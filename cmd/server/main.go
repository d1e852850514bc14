package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/spf13/viper"
	"go.uber.org/zap"

	"github.com/zacharias1219/gradeflow/internal/ai"
	"github.com/zacharias1219/gradeflow/internal/grading"
	"github.com/zacharias1219/gradeflow/internal/handler"
	"github.com/zacharias1219/gradeflow/internal/monitor"
	"github.com/zacharias1219/gradeflow/internal/pipeline"
	"github.com/zacharias1219/gradeflow/internal/report"
	"github.com/zacharias1219/gradeflow/internal/segment"
	"github.com/zacharias1219/gradeflow/internal/storage"
)

func main() {
	// Initialize logger
	logger, err := zap.NewDevelopment()
	if err != nil {
		log.Fatalf("Failed to create logger: %v", err)
	}
	defer logger.Sync()

	// Load configuration
	viper.SetConfigName("config")
	viper.SetConfigType("yaml")
	viper.AddConfigPath("./config")
	viper.SetEnvPrefix("gradeflow")
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	viper.AutomaticEnv()
	if err := viper.ReadInConfig(); err != nil {
		logger.Fatal("Failed to read config file", zap.Error(err))
	}

	// Entity store for submissions, tests, and grading results
	store, err := storage.NewStore(logger, viper.GetString("storage.store_path"))
	if err != nil {
		logger.Fatal("Failed to create entity store", zap.Error(err))
	}
	defer store.Close()

	// Archive for terminal tasks
	archive, err := storage.NewTaskArchive(logger, viper.GetString("storage.archive_path"))
	if err != nil {
		logger.Fatal("Failed to create task archive", zap.Error(err))
	}
	defer archive.Close()

	// Vision model client
	visionClient, err := ai.NewClient(ai.Config{
		APIKey:  viper.GetString("vision.api_key"),
		BaseURL: viper.GetString("vision.base_url"),
		Model:   viper.GetString("vision.model"),
		Timeout: viper.GetDuration("vision.timeout"),
	}, logger)
	if err != nil {
		logger.Fatal("Failed to create vision client", zap.Error(err))
	}

	// Image preprocessing and question segmentation
	preprocessor := segment.NewImagePreprocessor(logger)
	segmenter := segment.NewSegmenter(segment.Config{}, logger)

	// Grading engine backed by the vision client
	engine := grading.NewEngine(visionClient, logger)

	// Report renderer
	reportWriter, err := report.NewWriter(viper.GetString("reports.dir"), logger)
	if err != nil {
		logger.Fatal("Failed to create report writer", zap.Error(err))
	}

	// Processing pipeline
	pipe := pipeline.New(pipeline.Config{
		Workers:      viper.GetInt("pipeline.workers"),
		MaxQueueSize: viper.GetInt("pipeline.max_queue_size"),
		PollInterval: viper.GetDuration("pipeline.poll_interval"),
		MaxRetries:   viper.GetInt("pipeline.max_retries"),
		StopTimeout:  viper.GetDuration("pipeline.stop_timeout"),
	}, logger, pipeline.WithArchive(archive))

	// Register the default task handlers
	pipe.RegisterHandler("ocr_extraction", handler.NewOCRHandler(visionClient, preprocessor, segmenter, store, logger))
	pipe.RegisterHandler("grading", handler.NewGradingHandler(engine, store, store, logger))
	pipe.RegisterHandler("report_generation", handler.NewReportHandler(reportWriter, logger))
	pipe.RegisterHandler("file_processing", handler.NewFileHandler(preprocessor, logger))

	pipe.Start()

	// Setup signal handling for graceful shutdown
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		sig := <-sigCh
		logger.Info("Received shutdown signal", zap.String("signal", sig.String()))
		cancel()
	}()

	// System and pipeline metrics
	collector := monitor.NewMetricsCollector(pipe, viper.GetDuration("monitor.metrics_interval"), logger)
	collector.Start(ctx)

	// Retention sweep over in-memory history and the archive
	sweeper := monitor.NewRetentionSweeper(monitor.RetentionConfig{
		Schedule: viper.GetString("monitor.retention_schedule"),
		Window:   viper.GetDuration("monitor.retention_window"),
	}, pipe, archive, logger)
	if err := sweeper.Start(); err != nil {
		logger.Fatal("Failed to start retention sweeper", zap.Error(err))
	}

	// Periodically report pipeline health
	go func() {
		ticker := time.NewTicker(30 * time.Second)
		defer ticker.Stop()

		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				metrics := pipe.Metrics()
				logger.Info("Pipeline status",
					zap.Int64("total_tasks", metrics.TotalTasks),
					zap.Int64("completed_tasks", metrics.CompletedTasks),
					zap.Int64("failed_tasks", metrics.FailedTasks),
					zap.Int("queue_size", metrics.QueueSize),
					zap.Duration("avg_processing_time", metrics.AverageProcessingTime),
					zap.Any("queues", pipe.QueueStatus()))
			}
		}
	}()

	// Wait for shutdown signal
	<-ctx.Done()

	sweeper.Stop()
	collector.Stop()
	pipe.Stop()

	logger.Info("Server shutting down gracefully")
}
