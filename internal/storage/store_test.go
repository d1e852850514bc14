package storage

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/zacharias1219/gradeflow/internal/model"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	store, err := NewStore(zaptest.NewLogger(t), filepath.Join(t.TempDir(), "store.db"))
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })
	return store
}

func TestStore_SubmissionRoundTrip(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	submission := &model.Submission{
		ID:          "sub-1",
		StudentID:   "student-1",
		TestID:      "test-1",
		AnswerFile:  []byte{0x89, 0x50, 0x4e, 0x47},
		ContentType: "image/png",
		Status:      "uploaded",
	}
	require.NoError(t, store.PutSubmission(ctx, submission))
	require.False(t, submission.SubmittedAt.IsZero())

	got, err := store.GetSubmission(ctx, "sub-1")
	require.NoError(t, err)
	require.Equal(t, "student-1", got.StudentID)
	require.Equal(t, "test-1", got.TestID)
	require.Equal(t, []byte{0x89, 0x50, 0x4e, 0x47}, got.AnswerFile)
	require.Equal(t, "image/png", got.ContentType)
	require.Equal(t, "uploaded", got.Status)
}

func TestStore_GetSubmissionMissing(t *testing.T) {
	store := newTestStore(t)

	_, err := store.GetSubmission(context.Background(), "nope")
	require.ErrorIs(t, err, ErrNotFound)
}

func TestStore_UpdateSubmissionText(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	require.NoError(t, store.PutSubmission(ctx, &model.Submission{
		ID:        "sub-1",
		StudentID: "student-1",
		TestID:    "test-1",
		Status:    "uploaded",
	}))

	require.NoError(t, store.UpdateSubmissionText(ctx, "sub-1", "1. x = 4", "extracted"))

	got, err := store.GetSubmission(ctx, "sub-1")
	require.NoError(t, err)
	require.Equal(t, "1. x = 4", got.ExtractedText)
	require.Equal(t, "extracted", got.Status)

	err = store.UpdateSubmissionText(ctx, "missing", "text", "extracted")
	require.ErrorIs(t, err, ErrNotFound)
}

func TestStore_TestRoundTrip(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	test := &model.Test{
		ID:      "test-1",
		Name:    "Algebra Midterm",
		Subject: "Mathematics",
		Questions: []model.Question{
			{Number: 1, Text: "Solve x + 3 = 5", Marks: 10},
			{Number: 2, Text: "Factorize x^2 - 4", Marks: 5},
		},
		Rubric: model.Rubric{
			Criteria: map[string]float64{"accuracy": 0.6, "presentation": 0.4},
			Notes:    "Award partial credit for correct method",
		},
	}
	require.NoError(t, store.PutTest(ctx, test))

	got, err := store.GetTest(ctx, "test-1")
	require.NoError(t, err)
	require.Equal(t, "Algebra Midterm", got.Name)
	require.Equal(t, "Mathematics", got.Subject)
	require.Len(t, got.Questions, 2)
	require.Equal(t, "Solve x + 3 = 5", got.Questions[0].Text)
	require.Equal(t, 10.0, got.Questions[0].Marks)
	require.Equal(t, 0.6, got.Rubric.Criteria["accuracy"])
	require.Equal(t, "Award partial credit for correct method", got.Rubric.Notes)
}

func TestStore_GetTestMissing(t *testing.T) {
	store := newTestStore(t)

	_, err := store.GetTest(context.Background(), "nope")
	require.ErrorIs(t, err, ErrNotFound)
}

func TestStore_GradingResultRoundTrip(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	result := &model.GradingResult{
		SubmissionID:     "sub-1",
		StudentID:        "student-1",
		TestID:           "test-1",
		TotalScore:       13.5,
		MaxPossibleScore: 25,
		Percentage:       54,
		QuestionScores: []model.QuestionScore{
			{QuestionNumber: 1, TotalMarks: 10, AwardedMarks: 9, Percentage: 90},
		},
		OverallFeedback:   "Satisfactory work.",
		GradingConfidence: 0.9,
		GradingTime:       time.Now().Truncate(time.Second),
		RubricCompliance:  map[string]float64{"accuracy": 0.6},
	}
	require.NoError(t, store.SaveGradingResult(ctx, result))

	got, err := store.GetGradingResult(ctx, "sub-1")
	require.NoError(t, err)
	require.Equal(t, 13.5, got.TotalScore)
	require.Equal(t, 25.0, got.MaxPossibleScore)
	require.Len(t, got.QuestionScores, 1)
	require.Equal(t, 0.6, got.RubricCompliance["accuracy"])
}

func TestStore_RegradeReplacesResult(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	first := &model.GradingResult{
		SubmissionID: "sub-1", StudentID: "s", TestID: "t",
		TotalScore: 10, MaxPossibleScore: 20, Percentage: 50,
		GradingTime: time.Now(),
	}
	require.NoError(t, store.SaveGradingResult(ctx, first))

	second := &model.GradingResult{
		SubmissionID: "sub-1", StudentID: "s", TestID: "t",
		TotalScore: 15, MaxPossibleScore: 20, Percentage: 75,
		GradingTime: time.Now(),
	}
	require.NoError(t, store.SaveGradingResult(ctx, second))

	got, err := store.GetGradingResult(ctx, "sub-1")
	require.NoError(t, err)
	require.Equal(t, 15.0, got.TotalScore)
}

func TestStore_GetGradingResultMissing(t *testing.T) {
	store := newTestStore(t)

	_, err := store.GetGradingResult(context.Background(), "nope")
	require.ErrorIs(t, err, ErrNotFound)
}
