package model

import (
	"time"
)

// StepEvaluation is the assessment of a single solution step within an
// answer, including fractional partial credit.
type StepEvaluation struct {
	StepNumber    int     `json:"step_number"`
	Description   string  `json:"description"`
	IsCorrect     bool    `json:"is_correct"`
	PartialCredit float64 `json:"partial_credit"`
	Feedback      string  `json:"feedback"`
	Reasoning     string  `json:"reasoning"`
	Confidence    float64 `json:"confidence"`
}

// QuestionScore is the graded outcome for one question of a submission
type QuestionScore struct {
	QuestionNumber int     `json:"question_number"`
	TotalMarks     float64 `json:"total_marks"`
	AwardedMarks   float64 `json:"awarded_marks"`
	Percentage     float64 `json:"percentage"`

	StepEvaluations []StepEvaluation `json:"step_evaluations"`

	Strengths   []string `json:"strengths"`
	Weaknesses  []string `json:"weaknesses"`
	Suggestions []string `json:"suggestions"`

	MathematicalReasoningScore   float64 `json:"mathematical_reasoning_score"`
	ConceptualUnderstandingScore float64 `json:"conceptual_understanding_score"`
	PresentationScore            float64 `json:"presentation_score"`

	OverallFeedback string  `json:"overall_feedback"`
	Confidence      float64 `json:"confidence"`
}

// GradingResult is the complete graded outcome for one submission.
// TotalScore is always the sum of awarded marks and MaxPossibleScore the
// sum of total marks across QuestionScores; Percentage is derived from
// those sums and never stored independently.
type GradingResult struct {
	SubmissionID string `json:"submission_id"`
	StudentID    string `json:"student_id"`
	TestID       string `json:"test_id"`

	TotalScore       float64 `json:"total_score"`
	MaxPossibleScore float64 `json:"max_possible_score"`
	Percentage       float64 `json:"percentage"`

	QuestionScores []QuestionScore `json:"question_scores"`

	OverallFeedback     string   `json:"overall_feedback"`
	Strengths           []string `json:"strengths"`
	AreasForImprovement []string `json:"areas_for_improvement"`

	GradingConfidence float64   `json:"grading_confidence"`
	GradingTime       time.Time `json:"grading_time"`

	RubricCompliance    map[string]float64     `json:"rubric_compliance"`
	PerformanceAnalysis map[string]interface{} `json:"performance_analysis"`
}

// Question is one question of a test paper
type Question struct {
	Number int     `json:"question_no"`
	Text   string  `json:"question_text"`
	Marks  float64 `json:"marks"`
	Type   string  `json:"type,omitempty"`
}

// Answer is one extracted answer from a submission
type Answer struct {
	Number       int    `json:"question_no"`
	Text         string `json:"answer_text"`
	WorkingShown bool   `json:"working_shown"`
}

// Rubric holds the grading criteria for a test. Criteria maps criterion
// name to its weight; Notes carries free-text marking guidance.
type Rubric struct {
	Criteria map[string]float64 `json:"criteria,omitempty"`
	Notes    string             `json:"notes,omitempty"`
}
