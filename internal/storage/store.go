package storage

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	_ "github.com/mattn/go-sqlite3"
	"go.uber.org/zap"

	"github.com/zacharias1219/gradeflow/internal/model"
)

// ErrNotFound is returned when a requested record does not exist
var ErrNotFound = fmt.Errorf("record not found")

// Store is the SQLite-backed store for submissions, tests, and grading
// results. It implements the handler package's SubmissionStore and
// TestStore interfaces.
type Store struct {
	logger *zap.Logger
	db     *sql.DB
}

// NewStore opens (or creates) the entity database
func NewStore(logger *zap.Logger, dbPath string) (*Store, error) {
	db, err := sql.Open("sqlite3", dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open store database: %w", err)
	}

	store := &Store{
		logger: logger.Named("store"),
		db:     db,
	}

	if err := store.initialize(); err != nil {
		db.Close()
		return nil, err
	}

	return store, nil
}

func (s *Store) initialize() error {
	_, err := s.db.Exec(`
		CREATE TABLE IF NOT EXISTS submissions (
			id TEXT PRIMARY KEY,
			student_id TEXT NOT NULL,
			test_id TEXT NOT NULL,
			answer_file BLOB,
			content_type TEXT,
			extracted_text TEXT,
			status TEXT,
			submitted_at DATETIME NOT NULL
		);
		CREATE TABLE IF NOT EXISTS tests (
			id TEXT PRIMARY KEY,
			name TEXT NOT NULL,
			subject TEXT,
			questions TEXT,
			question_text TEXT,
			rubric TEXT,
			paper_file BLOB,
			content_type TEXT,
			created_at DATETIME NOT NULL
		);
		CREATE TABLE IF NOT EXISTS grading_results (
			submission_id TEXT PRIMARY KEY,
			student_id TEXT NOT NULL,
			test_id TEXT NOT NULL,
			total_score REAL NOT NULL,
			max_possible_score REAL NOT NULL,
			percentage REAL NOT NULL,
			grading_confidence REAL NOT NULL,
			result TEXT NOT NULL,
			graded_at DATETIME NOT NULL
		);
		CREATE INDEX IF NOT EXISTS idx_submissions_test_id ON submissions(test_id);
		CREATE INDEX IF NOT EXISTS idx_submissions_student_id ON submissions(student_id);
		CREATE INDEX IF NOT EXISTS idx_grading_results_test_id ON grading_results(test_id);
	`)
	if err != nil {
		return fmt.Errorf("failed to initialize store database: %w", err)
	}
	return nil
}

// PutSubmission stores or replaces a submission
func (s *Store) PutSubmission(ctx context.Context, submission *model.Submission) error {
	if submission.SubmittedAt.IsZero() {
		submission.SubmittedAt = time.Now()
	}

	_, err := s.db.ExecContext(ctx, `
		INSERT OR REPLACE INTO submissions (
			id, student_id, test_id, answer_file, content_type,
			extracted_text, status, submitted_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		submission.ID,
		submission.StudentID,
		submission.TestID,
		submission.AnswerFile,
		submission.ContentType,
		submission.ExtractedText,
		submission.Status,
		submission.SubmittedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to store submission: %w", err)
	}
	return nil
}

// GetSubmission retrieves a submission by id
func (s *Store) GetSubmission(ctx context.Context, id string) (*model.Submission, error) {
	var submission model.Submission
	var answerFile []byte
	var contentType, extractedText, status sql.NullString

	err := s.db.QueryRowContext(ctx, `
		SELECT id, student_id, test_id, answer_file, content_type,
		       extracted_text, status, submitted_at
		FROM submissions WHERE id = ?`, id).Scan(
		&submission.ID,
		&submission.StudentID,
		&submission.TestID,
		&answerFile,
		&contentType,
		&extractedText,
		&status,
		&submission.SubmittedAt,
	)
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("submission %s: %w", id, ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to scan submission: %w", err)
	}

	submission.AnswerFile = answerFile
	submission.ContentType = contentType.String
	submission.ExtractedText = extractedText.String
	submission.Status = status.String
	return &submission, nil
}

// UpdateSubmissionText records the OCR-extracted answer text and status
func (s *Store) UpdateSubmissionText(ctx context.Context, id, extractedText, status string) error {
	result, err := s.db.ExecContext(ctx,
		"UPDATE submissions SET extracted_text = ?, status = ? WHERE id = ?",
		extractedText, status, id)
	if err != nil {
		return fmt.Errorf("failed to update submission text: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get affected rows: %w", err)
	}
	if affected == 0 {
		return fmt.Errorf("submission %s: %w", id, ErrNotFound)
	}
	return nil
}

// PutTest stores or replaces a test paper
func (s *Store) PutTest(ctx context.Context, test *model.Test) error {
	if test.CreatedAt.IsZero() {
		test.CreatedAt = time.Now()
	}

	questions, err := json.Marshal(test.Questions)
	if err != nil {
		return fmt.Errorf("failed to marshal questions: %w", err)
	}
	rubric, err := json.Marshal(test.Rubric)
	if err != nil {
		return fmt.Errorf("failed to marshal rubric: %w", err)
	}

	_, err = s.db.ExecContext(ctx, `
		INSERT OR REPLACE INTO tests (
			id, name, subject, questions, question_text, rubric,
			paper_file, content_type, created_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		test.ID,
		test.Name,
		test.Subject,
		string(questions),
		test.QuestionText,
		string(rubric),
		test.PaperFile,
		test.ContentType,
		test.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to store test: %w", err)
	}
	return nil
}

// GetTest retrieves a test by id
func (s *Store) GetTest(ctx context.Context, id string) (*model.Test, error) {
	var test model.Test
	var subject, questions, questionText, rubric, contentType sql.NullString
	var paperFile []byte

	err := s.db.QueryRowContext(ctx, `
		SELECT id, name, subject, questions, question_text, rubric,
		       paper_file, content_type, created_at
		FROM tests WHERE id = ?`, id).Scan(
		&test.ID,
		&test.Name,
		&subject,
		&questions,
		&questionText,
		&rubric,
		&paperFile,
		&contentType,
		&test.CreatedAt,
	)
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("test %s: %w", id, ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to scan test: %w", err)
	}

	test.Subject = subject.String
	test.QuestionText = questionText.String
	test.PaperFile = paperFile
	test.ContentType = contentType.String

	if questions.Valid && questions.String != "" {
		if err := json.Unmarshal([]byte(questions.String), &test.Questions); err != nil {
			return nil, fmt.Errorf("failed to unmarshal questions: %w", err)
		}
	}
	if rubric.Valid && rubric.String != "" {
		if err := json.Unmarshal([]byte(rubric.String), &test.Rubric); err != nil {
			return nil, fmt.Errorf("failed to unmarshal rubric: %w", err)
		}
	}

	return &test, nil
}

// SaveGradingResult stores the full grading result for a submission.
// Re-grading a submission replaces its previous result.
func (s *Store) SaveGradingResult(ctx context.Context, result *model.GradingResult) error {
	encoded, err := json.Marshal(result)
	if err != nil {
		return fmt.Errorf("failed to marshal grading result: %w", err)
	}

	_, err = s.db.ExecContext(ctx, `
		INSERT OR REPLACE INTO grading_results (
			submission_id, student_id, test_id, total_score,
			max_possible_score, percentage, grading_confidence,
			result, graded_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		result.SubmissionID,
		result.StudentID,
		result.TestID,
		result.TotalScore,
		result.MaxPossibleScore,
		result.Percentage,
		result.GradingConfidence,
		string(encoded),
		result.GradingTime,
	)
	if err != nil {
		return fmt.Errorf("failed to store grading result: %w", err)
	}

	s.logger.Info("Grading result saved",
		zap.String("submission_id", result.SubmissionID),
		zap.Float64("percentage", result.Percentage))
	return nil
}

// GetGradingResult retrieves the grading result for a submission
func (s *Store) GetGradingResult(ctx context.Context, submissionID string) (*model.GradingResult, error) {
	var encoded string
	err := s.db.QueryRowContext(ctx,
		"SELECT result FROM grading_results WHERE submission_id = ?", submissionID).Scan(&encoded)
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("grading result %s: %w", submissionID, ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to scan grading result: %w", err)
	}

	var result model.GradingResult
	if err := json.Unmarshal([]byte(encoded), &result); err != nil {
		return nil, fmt.Errorf("failed to unmarshal grading result: %w", err)
	}
	return &result, nil
}

// Close closes the database connection
func (s *Store) Close() error {
	return s.db.Close()
}
