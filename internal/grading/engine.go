package grading

import (
	"context"
	"fmt"
	"regexp"
	"sort"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/zacharias1219/gradeflow/internal/model"
)

// Scoring constants. Multi-step answers earn a credit boost to reward
// demonstrated working; later steps weigh more in the reasoning score.
const (
	multiStepCreditBoost = 1.2
	stepWeightIncrement  = 0.2

	defaultStepConfidence = 0.8
	baseAnalysisQuality   = 0.8
	multiStepQualityBonus = 0.1
	feedbackQualityBonus  = 0.1

	presentationBase           = 0.5
	presentationStructureBonus = 0.2
	presentationNotationBonus  = 0.1
	presentationLengthBonus    = 0.1
	presentationWorkingBonus   = 0.1
	presentationMinSubstantial = 20
)

// Rubric criteria with a direct scoring signal
const (
	criterionAccuracy                = "accuracy"
	criterionMathematicalReasoning   = "mathematical_reasoning"
	criterionConceptualUnderstanding = "conceptual_understanding"
	criterionPresentation            = "presentation"
)

var (
	mathNotationPattern = regexp.MustCompile(`[=+\-*/()]`)
	numberedStepPattern = regexp.MustCompile(`\d+[.)]`)
)

// TestData carries the questions of a test, either pre-parsed or as raw
// extracted text.
type TestData struct {
	Questions []model.Question
	RawText   string
}

// AnswerData carries a submission's answers, either pre-parsed or as raw
// extracted text.
type AnswerData struct {
	Answers []model.Answer
	RawText string
}

// Engine grades submissions question by question with step-level partial
// credit. A failure while grading one question degrades that question to a
// zero-credit score; it never aborts the submission.
type Engine struct {
	logger   *zap.Logger
	analyzer Analyzer
}

// NewEngine creates a grading engine backed by the given analyzer
func NewEngine(analyzer Analyzer, logger *zap.Logger) *Engine {
	return &Engine{
		logger:   logger.Named("grading"),
		analyzer: analyzer,
	}
}

// GradeSubmission grades every question of a submission and aggregates the
// per-question scores into a GradingResult.
func (e *Engine) GradeSubmission(ctx context.Context, submissionID, studentID, testID string,
	test TestData, answerData AnswerData, rubric model.Rubric) (*model.GradingResult, error) {

	questions := test.Questions
	if len(questions) == 0 {
		questions = ParseQuestions(test.RawText)
	}
	if len(questions) == 0 {
		return nil, fmt.Errorf("no questions found for test %s", testID)
	}

	answers := answerData.Answers
	if len(answers) == 0 {
		answers = ParseAnswers(answerData.RawText)
	}

	sort.SliceStable(questions, func(i, j int) bool {
		return questions[i].Number < questions[j].Number
	})

	var (
		questionScores []model.QuestionScore
		totalAwarded   float64
		totalPossible  float64
	)

	for _, question := range questions {
		answer := findAnswer(question.Number, answers)
		score := e.gradeQuestion(ctx, question, answer, rubric)
		questionScores = append(questionScores, score)
		totalAwarded += score.AwardedMarks
		totalPossible += score.TotalMarks
	}

	percentage := 0.0
	if totalPossible > 0 {
		percentage = totalAwarded / totalPossible * 100
	}

	compliance, unmeasured := rubricCompliance(questionScores, rubric)

	result := &model.GradingResult{
		SubmissionID:        submissionID,
		StudentID:           studentID,
		TestID:              testID,
		TotalScore:          totalAwarded,
		MaxPossibleScore:    totalPossible,
		Percentage:          percentage,
		QuestionScores:      questionScores,
		OverallFeedback:     overallFeedback(percentage),
		Strengths:           identifyStrengths(questionScores),
		AreasForImprovement: identifyWeaknesses(questionScores),
		GradingConfidence:   meanConfidence(questionScores),
		GradingTime:         time.Now(),
		RubricCompliance:    compliance,
		PerformanceAnalysis: performanceAnalysis(questionScores, unmeasured),
	}

	e.logger.Info("Submission graded",
		zap.String("submission_id", submissionID),
		zap.Float64("total_score", totalAwarded),
		zap.Float64("max_score", totalPossible),
		zap.Float64("percentage", percentage),
		zap.Float64("confidence", result.GradingConfidence))

	return result, nil
}

// gradeQuestion grades a single question. A missing answer awards zero
// marks without invoking the analyzer; an analyzer failure degrades the
// question to a zero-confidence zero score.
func (e *Engine) gradeQuestion(ctx context.Context, question model.Question, answer *model.Answer, rubric model.Rubric) model.QuestionScore {
	maxMarks := question.Marks
	if maxMarks <= 0 {
		maxMarks = defaultQuestionMarks
	}

	if answer == nil {
		return model.QuestionScore{
			QuestionNumber:  question.Number,
			TotalMarks:      maxMarks,
			AwardedMarks:    0,
			Percentage:      0,
			Weaknesses:      []string{"No answer provided"},
			Suggestions:     []string{"Ensure all questions are attempted"},
			OverallFeedback: "No answer provided for this question",
			Confidence:      1.0,
		}
	}

	analysis, err := e.analyzer.AnalyzeAnswer(ctx, question.Text, answer.Text, rubric)
	if err != nil {
		e.logger.Error("Failed to analyze answer",
			zap.Int("question", question.Number),
			zap.Error(err))
		return model.QuestionScore{
			QuestionNumber:  question.Number,
			TotalMarks:      maxMarks,
			AwardedMarks:    0,
			Percentage:      0,
			Weaknesses:      []string{"Error in grading"},
			Suggestions:     []string{"Please review manually"},
			OverallFeedback: "Error occurred during grading",
			Confidence:      0,
		}
	}

	steps := toStepEvaluations(analysis.Steps)
	awarded := partialCredit(steps, maxMarks)

	percentage := 0.0
	if maxMarks > 0 {
		percentage = awarded / maxMarks * 100
	}

	return model.QuestionScore{
		QuestionNumber:               question.Number,
		TotalMarks:                   maxMarks,
		AwardedMarks:                 awarded,
		Percentage:                   percentage,
		StepEvaluations:              steps,
		Strengths:                    analysis.Strengths,
		Weaknesses:                   analysis.Weaknesses,
		Suggestions:                  analysis.Suggestions,
		MathematicalReasoningScore:   mathReasoningScore(steps),
		ConceptualUnderstandingScore: clamp01(analysis.ConceptualUnderstanding),
		PresentationScore:            presentationScore(answer),
		OverallFeedback:              analysis.Feedback,
		Confidence:                   questionConfidence(steps, analysis),
	}
}

func findAnswer(questionNumber int, answers []model.Answer) *model.Answer {
	for i := range answers {
		if answers[i].Number == questionNumber {
			return &answers[i]
		}
	}
	return nil
}

func toStepEvaluations(steps []StepAnalysis) []model.StepEvaluation {
	evaluations := make([]model.StepEvaluation, 0, len(steps))
	for _, s := range steps {
		confidence := s.Confidence
		if confidence == 0 {
			confidence = defaultStepConfidence
		}
		evaluations = append(evaluations, model.StepEvaluation{
			StepNumber:    s.StepNumber,
			Description:   s.Description,
			IsCorrect:     s.IsCorrect,
			PartialCredit: clamp01(s.PartialCredit),
			Feedback:      s.Feedback,
			Reasoning:     s.Reasoning,
			Confidence:    clamp01(confidence),
		})
	}
	return evaluations
}

// partialCredit averages per-step credit, boosts multi-step work, and
// scales by the question's marks, clamped to the maximum.
func partialCredit(steps []model.StepEvaluation, maxMarks float64) float64 {
	if len(steps) == 0 {
		return 0
	}

	total := 0.0
	for _, s := range steps {
		total += s.PartialCredit
	}
	credit := total / float64(len(steps))

	if len(steps) > 1 {
		credit *= multiStepCreditBoost
	}

	awarded := credit * maxMarks
	if awarded > maxMarks {
		awarded = maxMarks
	}
	return awarded
}

// mathReasoningScore weights later steps more heavily; later steps tend to
// carry the more advanced reasoning.
func mathReasoningScore(steps []model.StepEvaluation) float64 {
	if len(steps) == 0 {
		return 0
	}
	total := 0.0
	for i, s := range steps {
		weight := 1.0 + float64(i)*stepWeightIncrement
		total += s.PartialCredit * weight
	}
	return clamp01(total / float64(len(steps)))
}

// presentationScore is a heuristic over the answer text itself
func presentationScore(answer *model.Answer) float64 {
	score := presentationBase
	text := answer.Text

	if numberedStepPattern.MatchString(text) {
		score += presentationStructureBonus
	}
	if mathNotationPattern.MatchString(text) {
		score += presentationNotationBonus
	}
	if len(strings.Fields(text)) > presentationMinSubstantial {
		score += presentationLengthBonus
	}
	if answer.WorkingShown {
		score += presentationWorkingBonus
	}

	return clamp01(score)
}

// questionConfidence averages step confidences with an analysis quality
// score that rewards multi-step breakdowns and non-empty feedback.
func questionConfidence(steps []model.StepEvaluation, analysis *AnswerAnalysis) float64 {
	if len(steps) == 0 {
		return 0
	}

	total := 0.0
	for _, s := range steps {
		total += s.Confidence
	}
	stepConfidence := total / float64(len(steps))

	quality := baseAnalysisQuality
	if len(steps) > 1 {
		quality += multiStepQualityBonus
	}
	if analysis.Feedback != "" {
		quality += feedbackQualityBonus
	}

	return clamp01((stepConfidence + quality) / 2)
}

// overallFeedback maps the overall percentage to a banded message
func overallFeedback(percentage float64) string {
	switch {
	case percentage >= 90:
		return "Excellent performance! You have demonstrated a strong understanding of the concepts."
	case percentage >= 80:
		return "Very good work! You have shown solid understanding with room for minor improvements."
	case percentage >= 70:
		return "Good effort! You have grasped the main concepts but need to work on details."
	case percentage >= 60:
		return "Satisfactory work. Focus on improving your problem-solving approach."
	case percentage >= 50:
		return "You need to review the material more thoroughly and practice problem-solving."
	default:
		return "Significant improvement needed. Consider seeking additional help and practice."
	}
}

func identifyStrengths(scores []model.QuestionScore) []string {
	var strengths []string

	highScoring := 0
	for _, qs := range scores {
		if qs.Percentage >= 80 {
			highScoring++
		}
	}
	if highScoring > 0 {
		strengths = append(strengths, fmt.Sprintf("Strong performance on %d questions", highScoring))
	}

	if mean(scores, func(qs model.QuestionScore) float64 { return qs.MathematicalReasoningScore }) >= 0.7 {
		strengths = append(strengths, "Good mathematical reasoning skills")
	}
	if mean(scores, func(qs model.QuestionScore) float64 { return qs.ConceptualUnderstandingScore }) >= 0.7 {
		strengths = append(strengths, "Solid conceptual understanding")
	}

	return strengths
}

func identifyWeaknesses(scores []model.QuestionScore) []string {
	var weaknesses []string

	lowScoring := 0
	for _, qs := range scores {
		if qs.Percentage < 60 {
			lowScoring++
		}
	}
	if lowScoring > 0 {
		weaknesses = append(weaknesses, fmt.Sprintf("Need improvement on %d questions", lowScoring))
	}

	if mean(scores, func(qs model.QuestionScore) float64 { return qs.MathematicalReasoningScore }) < 0.5 {
		weaknesses = append(weaknesses, "Mathematical reasoning needs improvement")
	}
	if mean(scores, func(qs model.QuestionScore) float64 { return qs.PresentationScore }) < 0.5 {
		weaknesses = append(weaknesses, "Work on presenting solutions more clearly")
	}

	return weaknesses
}

func meanConfidence(scores []model.QuestionScore) float64 {
	return mean(scores, func(qs model.QuestionScore) float64 { return qs.Confidence })
}

// rubricCompliance maps each measurable criterion to its mean component
// score. Criteria named by the rubric that have no scoring signal are not
// given a fabricated value; they are reported as unmeasured instead.
func rubricCompliance(scores []model.QuestionScore, rubric model.Rubric) (map[string]float64, []string) {
	compliance := map[string]float64{
		criterionAccuracy:                mean(scores, func(qs model.QuestionScore) float64 { return qs.Percentage / 100 }),
		criterionMathematicalReasoning:   mean(scores, func(qs model.QuestionScore) float64 { return qs.MathematicalReasoningScore }),
		criterionConceptualUnderstanding: mean(scores, func(qs model.QuestionScore) float64 { return qs.ConceptualUnderstandingScore }),
		criterionPresentation:            mean(scores, func(qs model.QuestionScore) float64 { return qs.PresentationScore }),
	}

	var unmeasured []string
	for name := range rubric.Criteria {
		if _, ok := compliance[name]; !ok {
			unmeasured = append(unmeasured, name)
		}
	}
	sort.Strings(unmeasured)

	return compliance, unmeasured
}

// performanceAnalysis builds the diagnostic mapping used by reports
func performanceAnalysis(scores []model.QuestionScore, unmeasured []string) map[string]interface{} {
	difficulty := make(map[int]map[string]interface{}, len(scores))
	var improvementAreas []map[string]interface{}

	for _, qs := range scores {
		band := "hard"
		if qs.Percentage >= 80 {
			band = "easy"
		} else if qs.Percentage >= 60 {
			band = "medium"
		}
		difficulty[qs.QuestionNumber] = map[string]interface{}{
			"difficulty":    band,
			"score":         qs.Percentage,
			"awarded_marks": qs.AwardedMarks,
			"total_marks":   qs.TotalMarks,
		}

		if qs.Percentage < 60 {
			improvementAreas = append(improvementAreas, map[string]interface{}{
				"question_number": qs.QuestionNumber,
				"current_score":   qs.Percentage,
				"target_score":    80,
				"focus_areas":     qs.Weaknesses,
			})
		}
	}

	analysis := map[string]interface{}{
		"question_difficulty": difficulty,
		"improvement_areas":   improvementAreas,
	}
	if len(unmeasured) > 0 {
		analysis["unmeasured_criteria"] = unmeasured
	}
	return analysis
}

func mean(scores []model.QuestionScore, pick func(model.QuestionScore) float64) float64 {
	if len(scores) == 0 {
		return 0
	}
	total := 0.0
	for _, qs := range scores {
		total += pick(qs)
	}
	return total / float64(len(scores))
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
