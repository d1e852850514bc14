package segment

import (
	"bytes"
	"fmt"
	"image"
	"image/png"
	"strings"

	"go.uber.org/zap"
)

// ImagePreprocessor converts uploaded scans into normalized PNG page
// images. PDF rasterizing is out of scope here; PDFs must be converted to
// page images upstream before submission.
type ImagePreprocessor struct {
	logger *zap.Logger
}

// NewImagePreprocessor creates a preprocessor for image uploads
func NewImagePreprocessor(logger *zap.Logger) *ImagePreprocessor {
	return &ImagePreprocessor{logger: logger.Named("preprocess")}
}

// Pages returns the ordered page images for a document
func (p *ImagePreprocessor) Pages(data []byte, contentType string) ([][]byte, error) {
	if len(data) == 0 {
		return nil, fmt.Errorf("empty document")
	}

	switch strings.ToLower(contentType) {
	case "image/jpeg", "image/jpg", "image/png":
		img, format, err := image.Decode(bytes.NewReader(data))
		if err != nil {
			return nil, fmt.Errorf("decode %s: %w", contentType, err)
		}

		var buf bytes.Buffer
		if err := png.Encode(&buf, img); err != nil {
			return nil, fmt.Errorf("normalize image: %w", err)
		}

		p.logger.Debug("Preprocessed page image",
			zap.String("format", format),
			zap.Int("bytes", buf.Len()))

		return [][]byte{buf.Bytes()}, nil

	default:
		return nil, fmt.Errorf("unsupported content type %q", contentType)
	}
}
