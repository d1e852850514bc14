package model

// Typed results for the default task types. Handlers return one of these;
// the pipeline stores the marshalled form on the task and feeds the typed
// value to confidence scoring.

// OCRResult is the outcome of an ocr_extraction task
type OCRResult struct {
	ExtractedText     string   `json:"extracted_text"`
	OCRErrors         []string `json:"ocr_errors,omitempty"`
	PagesProcessed    int      `json:"pages_processed"`
	ProcessingSuccess bool     `json:"processing_success"`
}

// GradingOutcome is the outcome of a grading task
type GradingOutcome struct {
	GradingResult     *GradingResult `json:"grading_result"`
	GradingConfidence float64        `json:"grading_confidence"`
	ProcessingSuccess bool           `json:"processing_success"`
}

// ReportResult is the outcome of a report_generation task
type ReportResult struct {
	ReportPath        string `json:"report_path"`
	ReportType        string `json:"report_type"`
	ProcessingSuccess bool   `json:"processing_success"`
}

// FileResult is the outcome of a file_processing task
type FileResult struct {
	ProcessedFiles    int   `json:"processed_files"`
	FileSize          int64 `json:"file_size"`
	ProcessingSuccess bool  `json:"processing_success"`
}
