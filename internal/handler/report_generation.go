package handler

import (
	"context"
	"encoding/json"
	"fmt"

	"go.uber.org/zap"

	"github.com/zacharias1219/gradeflow/internal/model"
)

// ReportType selects the report layout
const (
	ReportTypeIndividual = "individual"
)

// ReportPayload is the payload for report_generation tasks
type ReportPayload struct {
	GradingResult *model.GradingResult `json:"grading_result"`
	Student       model.StudentInfo    `json:"student_info"`
	Test          model.TestInfo       `json:"test_info"`
	ReportType    string               `json:"report_type,omitempty"`
}

// ReportHandler renders grading results into report files
type ReportHandler struct {
	logger *zap.Logger
	writer ReportWriter
}

// NewReportHandler creates the report_generation handler
func NewReportHandler(writer ReportWriter, logger *zap.Logger) *ReportHandler {
	return &ReportHandler{
		logger: logger.Named("report-handler"),
		writer: writer,
	}
}

// Execute implements pipeline.Handler
func (h *ReportHandler) Execute(ctx context.Context, payload json.RawMessage) (interface{}, error) {
	var p ReportPayload
	if err := json.Unmarshal(payload, &p); err != nil {
		return nil, fmt.Errorf("unmarshal report payload: %w", err)
	}
	if p.GradingResult == nil {
		return nil, fmt.Errorf("report payload missing grading_result")
	}

	reportType := p.ReportType
	if reportType == "" {
		reportType = ReportTypeIndividual
	}

	path, err := h.writer.WriteStudentReport(p.GradingResult, p.Student, p.Test)
	if err != nil {
		return nil, fmt.Errorf("write report: %w", err)
	}

	h.logger.Info("Report generated",
		zap.String("submission_id", p.GradingResult.SubmissionID),
		zap.String("path", path))

	return &model.ReportResult{
		ReportPath:        path,
		ReportType:        reportType,
		ProcessingSuccess: true,
	}, nil
}
