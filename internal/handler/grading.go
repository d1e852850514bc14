package handler

import (
	"context"
	"encoding/json"
	"fmt"

	"go.uber.org/zap"

	"github.com/zacharias1219/gradeflow/internal/grading"
	"github.com/zacharias1219/gradeflow/internal/model"
)

// GradingPayload is the payload for grading tasks
type GradingPayload struct {
	SubmissionID string `json:"submission_id"`
}

// GradingHandler grades one submission end to end: it loads the
// submission and test, runs the grading engine, and persists the result.
type GradingHandler struct {
	logger      *zap.Logger
	engine      *grading.Engine
	submissions SubmissionStore
	tests       TestStore
}

// NewGradingHandler creates the grading handler
func NewGradingHandler(engine *grading.Engine, submissions SubmissionStore, tests TestStore, logger *zap.Logger) *GradingHandler {
	return &GradingHandler{
		logger:      logger.Named("grading-handler"),
		engine:      engine,
		submissions: submissions,
		tests:       tests,
	}
}

// Execute implements pipeline.Handler
func (h *GradingHandler) Execute(ctx context.Context, payload json.RawMessage) (interface{}, error) {
	var p GradingPayload
	if err := json.Unmarshal(payload, &p); err != nil {
		return nil, fmt.Errorf("unmarshal grading payload: %w", err)
	}
	if p.SubmissionID == "" {
		return nil, fmt.Errorf("grading payload missing submission_id")
	}

	submission, err := h.submissions.GetSubmission(ctx, p.SubmissionID)
	if err != nil {
		return nil, fmt.Errorf("load submission %s: %w", p.SubmissionID, err)
	}

	test, err := h.tests.GetTest(ctx, submission.TestID)
	if err != nil {
		return nil, fmt.Errorf("load test %s: %w", submission.TestID, err)
	}

	result, err := h.engine.GradeSubmission(ctx,
		submission.ID, submission.StudentID, test.ID,
		grading.TestData{Questions: test.Questions, RawText: test.QuestionText},
		grading.AnswerData{RawText: submission.ExtractedText},
		test.Rubric,
	)
	if err != nil {
		return nil, fmt.Errorf("grade submission %s: %w", submission.ID, err)
	}

	if err := h.submissions.SaveGradingResult(ctx, result); err != nil {
		return nil, fmt.Errorf("persist grading result: %w", err)
	}

	h.logger.Info("Submission graded and persisted",
		zap.String("submission_id", submission.ID),
		zap.Float64("percentage", result.Percentage))

	return &model.GradingOutcome{
		GradingResult:     result,
		GradingConfidence: result.GradingConfidence,
		ProcessingSuccess: true,
	}, nil
}
