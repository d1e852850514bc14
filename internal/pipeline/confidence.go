package pipeline

import (
	"time"

	"github.com/zacharias1219/gradeflow/internal/model"
)

// Confidence scoring constants. Signals nudge a type-specific base score;
// the final value is clamped to [0,1].
const (
	baseConfidence = 0.8

	longTextBonus    = 0.1
	shortTextPenalty = 0.2
	ocrErrorPenalty  = 0.1

	fileSuccessBonus   = 0.1
	fileFailurePenalty = 0.2

	fastProcessingThreshold = 5 * time.Second
	slowProcessingThreshold = 30 * time.Second
	fastProcessingBonus     = 0.05
	slowProcessingPenalty   = 0.05

	retryPenalty = 0.1
)

// scoreConfidence rates how reliable a completed task's result is
func scoreConfidence(result interface{}, elapsed time.Duration, retryCount int) float64 {
	confidence := baseConfidence

	switch r := result.(type) {
	case *model.OCRResult:
		textLen := len(r.ExtractedText)
		if textLen > 100 {
			confidence += longTextBonus
		} else if textLen < 10 {
			confidence -= shortTextPenalty
		}
		if len(r.OCRErrors) > 0 {
			confidence -= ocrErrorPenalty
		}

	case *model.GradingOutcome:
		// The grading engine rates its own output.
		confidence = r.GradingConfidence

	case *model.FileResult:
		if r.ProcessingSuccess {
			confidence += fileSuccessBonus
		} else {
			confidence -= fileFailurePenalty
		}
	}

	if elapsed > 0 {
		if elapsed < fastProcessingThreshold {
			confidence += fastProcessingBonus
		} else if elapsed > slowProcessingThreshold {
			confidence -= slowProcessingPenalty
		}
	}

	if retryCount > 0 {
		confidence -= float64(retryCount) * retryPenalty
	}

	return clamp01(confidence)
}

func clamp01(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}
