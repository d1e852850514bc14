package handler

import (
	"context"

	"github.com/zacharias1219/gradeflow/internal/model"
	"github.com/zacharias1219/gradeflow/internal/segment"
)

// Collaborator interfaces consumed by the default task handlers. The
// pipeline's handlers own only orchestration; persistence, preprocessing,
// OCR, and rendering arrive through these narrow ports.

// VisionClient extracts text from a page image
type VisionClient interface {
	ExtractText(ctx context.Context, image []byte, prompt string) (string, error)
}

// Preprocessor converts uploaded document bytes into ordered page images
type Preprocessor interface {
	Pages(data []byte, contentType string) ([][]byte, error)
}

// Segmenter slices a page image into per-question crops
type Segmenter interface {
	Slice(imageData []byte) ([]segment.QuestionImage, error)
}

// SubmissionStore serves submissions and persists grading results
type SubmissionStore interface {
	GetSubmission(ctx context.Context, id string) (*model.Submission, error)
	SaveGradingResult(ctx context.Context, result *model.GradingResult) error
}

// SubmissionTextStore records OCR-extracted text back onto a submission
type SubmissionTextStore interface {
	UpdateSubmissionText(ctx context.Context, id, extractedText, status string) error
}

// TestStore serves test papers and their rubrics
type TestStore interface {
	GetTest(ctx context.Context, id string) (*model.Test, error)
}

// ReportWriter renders a grading result into a report file and returns
// its path.
type ReportWriter interface {
	WriteStudentReport(result *model.GradingResult, student model.StudentInfo, test model.TestInfo) (string, error)
}
