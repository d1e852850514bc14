package report

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"text/template"
	"time"

	"go.uber.org/zap"

	"github.com/zacharias1219/gradeflow/internal/model"
)

// Writer renders grading results into student report files on disk
type Writer struct {
	logger *zap.Logger
	dir    string
	tmpl   *template.Template
}

const studentReportTemplate = `GRADING REPORT
==============

Student:   {{.Student.Name}} ({{.Student.ID}})
Test:      {{.Test.Name}}{{if .Test.Subject}}
Subject:   {{.Test.Subject}}{{end}}
Graded:    {{.GradedAt}}

OVERALL RESULT
--------------
Score:       {{printf "%.1f" .Result.TotalScore}} / {{printf "%.1f" .Result.MaxPossibleScore}}
Percentage:  {{printf "%.1f" .Result.Percentage}}%
Confidence:  {{printf "%.2f" .Result.GradingConfidence}}

{{.Result.OverallFeedback}}

QUESTION BREAKDOWN
------------------
{{range .Result.QuestionScores}}Question {{.QuestionNumber}}: {{printf "%.1f" .AwardedMarks}} / {{printf "%.1f" .TotalMarks}} ({{printf "%.1f" .Percentage}}%, confidence {{printf "%.2f" .Confidence}})
  {{.OverallFeedback}}
{{- range .Suggestions}}
  - {{.}}
{{- end}}

{{end}}{{if .Result.Strengths}}STRENGTHS
---------
{{range .Result.Strengths}}- {{.}}
{{end}}
{{end}}{{if .Result.AreasForImprovement}}AREAS FOR IMPROVEMENT
---------------------
{{range .Result.AreasForImprovement}}- {{.}}
{{end}}
{{end}}{{if .Rubric}}RUBRIC COMPLIANCE
-----------------
{{range .Rubric}}{{.Name}}: {{printf "%.0f" .Score}}%
{{end}}{{end}}`

type rubricLine struct {
	Name  string
	Score float64
}

type reportData struct {
	Student  model.StudentInfo
	Test     model.TestInfo
	Result   *model.GradingResult
	GradedAt string
	Rubric   []rubricLine
}

// NewWriter creates a report writer that renders into dir, creating it
// when missing.
func NewWriter(dir string, logger *zap.Logger) (*Writer, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create report directory: %w", err)
	}

	tmpl, err := template.New("student_report").Parse(studentReportTemplate)
	if err != nil {
		return nil, fmt.Errorf("failed to parse report template: %w", err)
	}

	return &Writer{
		logger: logger.Named("report-writer"),
		dir:    dir,
		tmpl:   tmpl,
	}, nil
}

// WriteStudentReport renders an individual student report and returns the
// path of the written file.
func (w *Writer) WriteStudentReport(result *model.GradingResult, student model.StudentInfo, test model.TestInfo) (string, error) {
	if result == nil {
		return "", fmt.Errorf("missing grading result")
	}

	data := reportData{
		Student:  student,
		Test:     test,
		Result:   result,
		GradedAt: result.GradingTime.Format(time.RFC1123),
		Rubric:   rubricLines(result.RubricCompliance),
	}

	var sb strings.Builder
	if err := w.tmpl.Execute(&sb, data); err != nil {
		return "", fmt.Errorf("failed to render report: %w", err)
	}

	name := fmt.Sprintf("report_%s_%s_%d.txt",
		sanitize(student.ID), sanitize(test.ID), time.Now().UnixNano())
	path := filepath.Join(w.dir, name)

	if err := os.WriteFile(path, []byte(sb.String()), 0o644); err != nil {
		return "", fmt.Errorf("failed to write report file: %w", err)
	}

	w.logger.Info("Student report written",
		zap.String("student_id", student.ID),
		zap.String("test_id", test.ID),
		zap.String("path", path))
	return path, nil
}

func rubricLines(compliance map[string]float64) []rubricLine {
	if len(compliance) == 0 {
		return nil
	}
	lines := make([]rubricLine, 0, len(compliance))
	for name, score := range compliance {
		lines = append(lines, rubricLine{
			Name:  criterionLabel(name),
			Score: score,
		})
	}
	sort.Slice(lines, func(i, j int) bool { return lines[i].Name < lines[j].Name })
	return lines
}

// criterionLabel turns "mathematical_reasoning" into "Mathematical Reasoning"
func criterionLabel(name string) string {
	words := strings.Split(name, "_")
	for i, word := range words {
		if word == "" {
			continue
		}
		words[i] = strings.ToUpper(word[:1]) + word[1:]
	}
	return strings.Join(words, " ")
}

func sanitize(s string) string {
	return strings.Map(func(r rune) rune {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '-', r == '_':
			return r
		default:
			return '_'
		}
	}, s)
}
