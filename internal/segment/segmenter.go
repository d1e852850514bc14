package segment

import (
	"bytes"
	"fmt"
	"image"
	"image/color"
	"image/png"

	_ "image/jpeg"

	"go.uber.org/zap"
)

// Region is one detected question/answer area on a scanned page. Question
// numbers are assigned top to bottom.
type Region struct {
	QuestionNumber int     `json:"question_number"`
	X              int     `json:"x"`
	Y              int     `json:"y"`
	Width          int     `json:"width"`
	Height         int     `json:"height"`
	Confidence     float64 `json:"confidence"`
}

// QuestionImage is a per-region PNG crop ready for OCR
type QuestionImage struct {
	QuestionNumber int    `json:"question_number"`
	ImageData      []byte `json:"image_data"`
	Region         Region `json:"region"`
}

// Config defines the segmentation thresholds
type Config struct {
	// InkThreshold is the luminance below which a pixel counts as ink
	InkThreshold uint8
	// GapDensity is the maximum row ink density still treated as blank
	GapDensity float64
	// MinGapRows is how many consecutive blank rows split two regions
	MinGapRows int
	// MinRegionHeight discards bands shorter than this
	MinRegionHeight int
}

func (c Config) withDefaults() Config {
	if c.InkThreshold == 0 {
		c.InkThreshold = 128
	}
	if c.GapDensity <= 0 {
		c.GapDensity = 0.01
	}
	if c.MinGapRows <= 0 {
		c.MinGapRows = 12
	}
	if c.MinRegionHeight <= 0 {
		c.MinRegionHeight = 40
	}
	return c
}

// Segmenter splits a scanned answer sheet into per-question regions using
// row ink-density analysis: bands of content separated by sufficiently tall
// blank gaps become regions.
type Segmenter struct {
	logger *zap.Logger
	cfg    Config
}

// NewSegmenter creates a segmenter
func NewSegmenter(cfg Config, logger *zap.Logger) *Segmenter {
	return &Segmenter{
		logger: logger.Named("segment"),
		cfg:    cfg.withDefaults(),
	}
}

// DetectRegions finds content bands on the page and assigns sequential
// question numbers top to bottom.
func (s *Segmenter) DetectRegions(imageData []byte) ([]Region, error) {
	img, _, err := image.Decode(bytes.NewReader(imageData))
	if err != nil {
		return nil, fmt.Errorf("decode image: %w", err)
	}

	bounds := img.Bounds()
	width := bounds.Dx()
	height := bounds.Dy()
	if width == 0 || height == 0 {
		return nil, fmt.Errorf("empty image %dx%d", width, height)
	}

	rowInk := s.rowInkCounts(img)

	var regions []Region
	bandStart := -1
	gapRun := 0

	closeBand := func(end int) {
		if bandStart < 0 {
			return
		}
		band := s.buildRegion(img, rowInk, bandStart, end)
		if band != nil {
			band.QuestionNumber = len(regions) + 1
			regions = append(regions, *band)
		}
		bandStart = -1
	}

	for y := 0; y < height; y++ {
		density := float64(rowInk[y]) / float64(width)
		if density > s.cfg.GapDensity {
			if bandStart < 0 {
				bandStart = y
			}
			gapRun = 0
			continue
		}
		if bandStart >= 0 {
			gapRun++
			if gapRun >= s.cfg.MinGapRows {
				closeBand(y - gapRun)
				gapRun = 0
			}
		}
	}
	closeBand(height - 1)

	s.logger.Debug("Detected question regions",
		zap.Int("regions", len(regions)),
		zap.Int("page_height", height))

	return regions, nil
}

// Slice crops each detected region into its own PNG image
func (s *Segmenter) Slice(imageData []byte) ([]QuestionImage, error) {
	regions, err := s.DetectRegions(imageData)
	if err != nil {
		return nil, err
	}

	img, _, err := image.Decode(bytes.NewReader(imageData))
	if err != nil {
		return nil, fmt.Errorf("decode image: %w", err)
	}

	slices := make([]QuestionImage, 0, len(regions))
	for _, region := range regions {
		crop := cropImage(img, image.Rect(region.X, region.Y, region.X+region.Width, region.Y+region.Height))

		var buf bytes.Buffer
		if err := png.Encode(&buf, crop); err != nil {
			return nil, fmt.Errorf("encode region %d: %w", region.QuestionNumber, err)
		}

		slices = append(slices, QuestionImage{
			QuestionNumber: region.QuestionNumber,
			ImageData:      buf.Bytes(),
			Region:         region,
		})
	}

	return slices, nil
}

// rowInkCounts counts ink pixels per row
func (s *Segmenter) rowInkCounts(img image.Image) []int {
	bounds := img.Bounds()
	counts := make([]int, bounds.Dy())

	for y := bounds.Min.Y; y < bounds.Max.Y; y++ {
		count := 0
		for x := bounds.Min.X; x < bounds.Max.X; x++ {
			if s.isInk(img.At(x, y)) {
				count++
			}
		}
		counts[y-bounds.Min.Y] = count
	}
	return counts
}

func (s *Segmenter) isInk(c color.Color) bool {
	gray := color.GrayModel.Convert(c).(color.Gray)
	return gray.Y < s.cfg.InkThreshold
}

// buildRegion turns a row band into a region with horizontal bounds and a
// confidence derived from how text-like the band's ink distribution is.
func (s *Segmenter) buildRegion(img image.Image, rowInk []int, top, bottom int) *Region {
	if bottom <= top || bottom-top < s.cfg.MinRegionHeight {
		return nil
	}

	bounds := img.Bounds()
	minX, maxX := bounds.Max.X, bounds.Min.X
	inkPixels := 0

	for y := top; y <= bottom; y++ {
		if rowInk[y] == 0 {
			continue
		}
		inkPixels += rowInk[y]
		for x := bounds.Min.X; x < bounds.Max.X; x++ {
			if s.isInk(img.At(x, bounds.Min.Y+y)) {
				if x < minX {
					minX = x
				}
				if x > maxX {
					maxX = x
				}
			}
		}
	}
	if maxX < minX {
		return nil
	}

	width := maxX - minX + 1
	height := bottom - top + 1
	fillRatio := float64(inkPixels) / float64(width*height)

	confidence := 0.5
	if height >= 2*s.cfg.MinRegionHeight {
		confidence += 0.2
	}
	// Typical handwriting and print fall in this fill range; near-solid or
	// near-empty boxes are likely noise.
	if fillRatio >= 0.02 && fillRatio <= 0.4 {
		confidence += 0.2
	}
	if confidence > 0.95 {
		confidence = 0.95
	}

	return &Region{
		X:          minX - bounds.Min.X,
		Y:          top,
		Width:      width,
		Height:     height,
		Confidence: confidence,
	}
}

func cropImage(img image.Image, rect image.Rectangle) image.Image {
	type subImager interface {
		SubImage(image.Rectangle) image.Image
	}

	rect = rect.Add(img.Bounds().Min)
	if sub, ok := img.(subImager); ok {
		return sub.SubImage(rect)
	}

	// Fallback copy for decoders without SubImage support
	out := image.NewRGBA(image.Rect(0, 0, rect.Dx(), rect.Dy()))
	for y := 0; y < rect.Dy(); y++ {
		for x := 0; x < rect.Dx(); x++ {
			out.Set(x, y, img.At(rect.Min.X+x, rect.Min.Y+y))
		}
	}
	return out
}
