package handler

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/zacharias1219/gradeflow/internal/model"
)

// maxFileSize is the upload size limit for processed files
const maxFileSize = 50 * 1024 * 1024

// FilePayload is the payload for file_processing tasks
type FilePayload struct {
	FileData    []byte `json:"file_data"`
	ContentType string `json:"content_type"`
}

// FileHandler validates uploads and counts their renderable pages
type FileHandler struct {
	logger       *zap.Logger
	preprocessor Preprocessor
}

// NewFileHandler creates the file_processing handler
func NewFileHandler(preprocessor Preprocessor, logger *zap.Logger) *FileHandler {
	return &FileHandler{
		logger:       logger.Named("file-handler"),
		preprocessor: preprocessor,
	}
}

// Execute implements pipeline.Handler
func (h *FileHandler) Execute(ctx context.Context, payload json.RawMessage) (interface{}, error) {
	var p FilePayload
	if err := json.Unmarshal(payload, &p); err != nil {
		return nil, fmt.Errorf("unmarshal file payload: %w", err)
	}

	if len(p.FileData) == 0 {
		return nil, fmt.Errorf("empty file data")
	}
	if len(p.FileData) > maxFileSize {
		return nil, fmt.Errorf("file too large: %d bytes", len(p.FileData))
	}

	processed := 1
	if strings.HasPrefix(strings.ToLower(p.ContentType), "image/") {
		pages, err := h.preprocessor.Pages(p.FileData, p.ContentType)
		if err != nil {
			return nil, fmt.Errorf("process file: %w", err)
		}
		processed = len(pages)
	}

	h.logger.Info("File processed",
		zap.String("content_type", p.ContentType),
		zap.Int("pages", processed),
		zap.Int("bytes", len(p.FileData)))

	return &model.FileResult{
		ProcessedFiles:    processed,
		FileSize:          int64(len(p.FileData)),
		ProcessingSuccess: true,
	}, nil
}
