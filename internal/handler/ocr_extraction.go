package handler

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/zacharias1219/gradeflow/internal/model"
)

const pageBreak = "\n\n--- Page Break ---\n\n"

// OCRPayload is the payload for ocr_extraction tasks
type OCRPayload struct {
	ImageData   []byte `json:"image_data"`
	ContentType string `json:"content_type"`
	Prompt      string `json:"prompt,omitempty"`
	// SubmissionID, when set, has the extracted text written back onto
	// that submission.
	SubmissionID string `json:"submission_id,omitempty"`
	// ByRegion extracts each detected question region separately instead
	// of one pass over the whole page.
	ByRegion bool `json:"by_region,omitempty"`
}

// submissionStatusExtracted marks a submission whose text has been OCRed
const submissionStatusExtracted = "extracted"

// OCRHandler extracts text from scanned answer sheets via the vision model
type OCRHandler struct {
	logger       *zap.Logger
	vision       VisionClient
	preprocessor Preprocessor
	segmenter    Segmenter
	submissions  SubmissionTextStore
}

// NewOCRHandler creates the ocr_extraction handler. The submission store
// may be nil when extracted text is only consumed from the task result.
func NewOCRHandler(vision VisionClient, preprocessor Preprocessor, segmenter Segmenter, submissions SubmissionTextStore, logger *zap.Logger) *OCRHandler {
	return &OCRHandler{
		logger:       logger.Named("ocr"),
		vision:       vision,
		preprocessor: preprocessor,
		segmenter:    segmenter,
		submissions:  submissions,
	}
}

// Execute implements pipeline.Handler
func (h *OCRHandler) Execute(ctx context.Context, payload json.RawMessage) (interface{}, error) {
	var p OCRPayload
	if err := json.Unmarshal(payload, &p); err != nil {
		return nil, fmt.Errorf("unmarshal ocr payload: %w", err)
	}

	pages, err := h.preprocessor.Pages(p.ImageData, p.ContentType)
	if err != nil {
		return nil, fmt.Errorf("preprocess document: %w", err)
	}

	var (
		texts     []string
		ocrErrors []string
	)

	for i, page := range pages {
		var text string
		var pageErr error

		if p.ByRegion && h.segmenter != nil {
			text, pageErr = h.extractByRegion(ctx, page, p.Prompt)
		} else {
			prompt := p.Prompt
			if len(pages) > 1 {
				if prompt == "" {
					prompt = fmt.Sprintf("Extract all text from this image accurately. Preserve formatting and structure. (Page %d)", i+1)
				} else {
					prompt = fmt.Sprintf("%s (Page %d)", prompt, i+1)
				}
			}
			text, pageErr = h.vision.ExtractText(ctx, page, prompt)
		}

		if pageErr != nil {
			ocrErrors = append(ocrErrors, fmt.Sprintf("Page %d: %v", i+1, pageErr))
			continue
		}
		texts = append(texts, text)
	}

	extracted := strings.Join(texts, pageBreak)

	if p.SubmissionID != "" && h.submissions != nil {
		if err := h.submissions.UpdateSubmissionText(ctx, p.SubmissionID, extracted, submissionStatusExtracted); err != nil {
			return nil, fmt.Errorf("persist extracted text for submission %s: %w", p.SubmissionID, err)
		}
	}

	h.logger.Info("OCR extraction finished",
		zap.Int("pages", len(pages)),
		zap.Int("errors", len(ocrErrors)))

	return &model.OCRResult{
		ExtractedText:     extracted,
		OCRErrors:         ocrErrors,
		PagesProcessed:    len(pages),
		ProcessingSuccess: len(ocrErrors) == 0,
	}, nil
}

// extractByRegion OCRs each detected question region separately so a noisy
// area cannot drag down the whole page's extraction.
func (h *OCRHandler) extractByRegion(ctx context.Context, page []byte, prompt string) (string, error) {
	regions, err := h.segmenter.Slice(page)
	if err != nil {
		return "", fmt.Errorf("segment page: %w", err)
	}
	if len(regions) == 0 {
		return h.vision.ExtractText(ctx, page, prompt)
	}

	var parts []string
	for _, region := range regions {
		regionPrompt := prompt
		if regionPrompt == "" {
			regionPrompt = fmt.Sprintf("Extract the text for question %d. Include the question number and all content.", region.QuestionNumber)
		}
		text, err := h.vision.ExtractText(ctx, region.ImageData, regionPrompt)
		if err != nil {
			return "", fmt.Errorf("region %d: %w", region.QuestionNumber, err)
		}
		parts = append(parts, text)
	}
	return strings.Join(parts, "\n"), nil
}
