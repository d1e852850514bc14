package grading

import (
	"context"

	"github.com/zacharias1219/gradeflow/internal/model"
)

// StepAnalysis is one solution step as broken down by the vision model
type StepAnalysis struct {
	StepNumber    int     `json:"step_number"`
	Description   string  `json:"description"`
	IsCorrect     bool    `json:"is_correct"`
	PartialCredit float64 `json:"partial_credit"`
	Feedback      string  `json:"feedback"`
	Reasoning     string  `json:"reasoning"`
	Confidence    float64 `json:"confidence,omitempty"`
}

// AnswerAnalysis is the structured breakdown the model returns for one
// question/answer pair.
type AnswerAnalysis struct {
	Steps       []StepAnalysis `json:"steps"`
	Strengths   []string       `json:"strengths"`
	Weaknesses  []string       `json:"weaknesses"`
	Suggestions []string       `json:"suggestions"`
	Feedback    string         `json:"feedback"`

	MathematicalReasoning   float64 `json:"mathematical_reasoning"`
	ConceptualUnderstanding float64 `json:"conceptual_understanding"`
	Presentation            float64 `json:"presentation"`
}

// Analyzer produces a step-level analysis of a student's answer. The
// engine treats any error as a per-question grading failure, never as a
// submission-wide one.
type Analyzer interface {
	AnalyzeAnswer(ctx context.Context, question, answer string, rubric model.Rubric) (*AnswerAnalysis, error)
}
