package storage

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	_ "github.com/mattn/go-sqlite3"
	"go.uber.org/zap"

	"github.com/zacharias1219/gradeflow/internal/model"
)

// TaskArchive persists terminal tasks to SQLite so completed and failed
// work survives process restarts and can be inspected after the pipeline's
// in-memory history is purged.
type TaskArchive struct {
	logger *zap.Logger
	db     *sql.DB
}

// NewTaskArchive opens (or creates) the archive database
func NewTaskArchive(logger *zap.Logger, dbPath string) (*TaskArchive, error) {
	db, err := sql.Open("sqlite3", dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open archive database: %w", err)
	}

	archive := &TaskArchive{
		logger: logger.Named("task-archive"),
		db:     db,
	}

	if err := archive.initialize(); err != nil {
		db.Close()
		return nil, err
	}

	return archive, nil
}

func (a *TaskArchive) initialize() error {
	_, err := a.db.Exec(`
		CREATE TABLE IF NOT EXISTS task_archive (
			id TEXT PRIMARY KEY,
			task_type TEXT NOT NULL,
			priority INTEGER NOT NULL,
			status TEXT NOT NULL,
			retry_count INTEGER NOT NULL,
			error_message TEXT,
			result TEXT,
			confidence_score REAL,
			processing_time INTEGER,
			created_at DATETIME NOT NULL,
			started_at DATETIME,
			completed_at DATETIME
		);
		CREATE INDEX IF NOT EXISTS idx_task_archive_type ON task_archive(task_type);
		CREATE INDEX IF NOT EXISTS idx_task_archive_status ON task_archive(status);
		CREATE INDEX IF NOT EXISTS idx_task_archive_completed_at ON task_archive(completed_at);
	`)
	if err != nil {
		return fmt.Errorf("failed to initialize archive database: %w", err)
	}
	return nil
}

// ArchiveTask stores a terminal task. Re-archiving the same id overwrites
// the previous record, which keeps retried-then-failed records current.
func (a *TaskArchive) ArchiveTask(ctx context.Context, task *model.Task) error {
	var resultStr sql.NullString
	if len(task.Result) > 0 {
		resultStr = sql.NullString{String: string(task.Result), Valid: true}
	}
	var confidence sql.NullFloat64
	if task.ConfidenceScore != nil {
		confidence = sql.NullFloat64{Float64: *task.ConfidenceScore, Valid: true}
	}
	var startedAt, completedAt sql.NullTime
	if task.StartedAt != nil {
		startedAt = sql.NullTime{Time: *task.StartedAt, Valid: true}
	}
	if task.CompletedAt != nil {
		completedAt = sql.NullTime{Time: *task.CompletedAt, Valid: true}
	}

	_, err := a.db.ExecContext(ctx, `
		INSERT OR REPLACE INTO task_archive (
			id, task_type, priority, status, retry_count, error_message,
			result, confidence_score, processing_time,
			created_at, started_at, completed_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		task.ID,
		task.Type,
		int(task.Priority),
		string(task.Status),
		task.RetryCount,
		sql.NullString{String: task.ErrorMessage, Valid: task.ErrorMessage != ""},
		resultStr,
		confidence,
		sql.NullInt64{Int64: int64(task.ProcessingTime), Valid: task.ProcessingTime != 0},
		task.CreatedAt,
		startedAt,
		completedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to archive task: %w", err)
	}
	return nil
}

// Get retrieves an archived task by id. Returns nil when not found.
func (a *TaskArchive) Get(ctx context.Context, id string) (*model.Task, error) {
	row := a.db.QueryRowContext(ctx, `
		SELECT id, task_type, priority, status, retry_count, error_message,
		       result, confidence_score, processing_time,
		       created_at, started_at, completed_at
		FROM task_archive WHERE id = ?`, id)

	task, err := scanArchivedTask(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to scan archived task: %w", err)
	}
	return task, nil
}

// List retrieves archived tasks, newest first, optionally filtered by
// status.
func (a *TaskArchive) List(ctx context.Context, status string, offset, limit int) ([]*model.Task, error) {
	query := `
		SELECT id, task_type, priority, status, retry_count, error_message,
		       result, confidence_score, processing_time,
		       created_at, started_at, completed_at
		FROM task_archive`
	args := make([]interface{}, 0, 3)
	if status != "" {
		query += " WHERE status = ?"
		args = append(args, status)
	}
	query += " ORDER BY completed_at DESC LIMIT ? OFFSET ?"
	args = append(args, limit, offset)

	rows, err := a.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list archived tasks: %w", err)
	}
	defer rows.Close()

	var tasks []*model.Task
	for rows.Next() {
		task, err := scanArchivedTask(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan archived task: %w", err)
		}
		tasks = append(tasks, task)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error during row iteration: %w", err)
	}
	return tasks, nil
}

// DeleteBefore deletes archive records completed before the given time
func (a *TaskArchive) DeleteBefore(ctx context.Context, before time.Time) (int64, error) {
	result, err := a.db.ExecContext(ctx,
		"DELETE FROM task_archive WHERE completed_at IS NOT NULL AND completed_at < ?", before)
	if err != nil {
		return 0, fmt.Errorf("failed to delete archived tasks: %w", err)
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("failed to get affected rows: %w", err)
	}

	if affected > 0 {
		a.logger.Info("Deleted old archived tasks",
			zap.Time("before", before),
			zap.Int64("deleted", affected))
	}
	return affected, nil
}

// Close closes the database connection
func (a *TaskArchive) Close() error {
	return a.db.Close()
}

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanArchivedTask(row rowScanner) (*model.Task, error) {
	var task model.Task
	var priority int
	var status string
	var errorMsg, result sql.NullString
	var confidence sql.NullFloat64
	var processingNanos sql.NullInt64
	var startedAt, completedAt sql.NullTime

	err := row.Scan(
		&task.ID,
		&task.Type,
		&priority,
		&status,
		&task.RetryCount,
		&errorMsg,
		&result,
		&confidence,
		&processingNanos,
		&task.CreatedAt,
		&startedAt,
		&completedAt,
	)
	if err != nil {
		return nil, err
	}

	task.Priority = model.TaskPriority(priority)
	task.Status = model.TaskStatus(status)
	if errorMsg.Valid {
		task.ErrorMessage = errorMsg.String
	}
	if result.Valid && result.String != "" {
		task.Result = []byte(result.String)
	}
	if confidence.Valid {
		score := confidence.Float64
		task.ConfidenceScore = &score
	}
	if processingNanos.Valid {
		task.ProcessingTime = time.Duration(processingNanos.Int64)
	}
	if startedAt.Valid {
		task.StartedAt = &startedAt.Time
	}
	if completedAt.Valid {
		task.CompletedAt = &completedAt.Time
	}

	return &task, nil
}
