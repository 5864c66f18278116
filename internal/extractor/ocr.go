package extractor

import (
	"bytes"
	"fmt"
	"image"
	"image/png"
	"strings"

	"github.com/otiai10/gosseract/v2"
)

// OCRConfig controls Tesseract recognition.
type OCRConfig struct {
	Language          string
	MinWordConfidence float64
}

// Word is one recognized token with its pixel bounding box.
type Word struct {
	Text       string
	Box        image.Rectangle
	Confidence float64
}

// RecognizePage runs OCR over a rendered page twice: once in single
// column mode for clean reading-order text, then with automatic layout
// for word boxes that feed table reconstruction. Words scoring under
// MinWordConfidence are dropped, since OCR noise below that level turns
// into phantom cells. Clients are not safe for concurrent use, so each
// call builds its own.
func RecognizePage(img image.Image, cfg OCRConfig) (string, []Word, error) {
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		return "", nil, fmt.Errorf("failed to encode page image: %w", err)
	}

	client := gosseract.NewClient()
	defer client.Close()

	if cfg.Language != "" {
		if err := client.SetLanguage(cfg.Language); err != nil {
			return "", nil, fmt.Errorf("failed to set OCR language: %w", err)
		}
	}
	if err := client.SetImageFromBytes(buf.Bytes()); err != nil {
		return "", nil, fmt.Errorf("failed to set page image: %w", err)
	}

	// PSM 4 = single column of text of variable sizes, good for statements
	if err := client.SetPageSegMode(gosseract.PSM_SINGLE_COLUMN); err != nil {
		return "", nil, fmt.Errorf("failed to set page segmentation mode: %w", err)
	}
	text, err := client.Text()
	if err != nil {
		return "", nil, fmt.Errorf("OCR text pass failed: %w", err)
	}

	if err := client.SetPageSegMode(gosseract.PSM_AUTO); err != nil {
		return "", nil, fmt.Errorf("failed to reset page segmentation mode: %w", err)
	}
	boxes, err := client.GetBoundingBoxes(gosseract.RIL_WORD)
	if err != nil {
		return "", nil, fmt.Errorf("OCR word pass failed: %w", err)
	}

	return strings.TrimSpace(text), filterWords(boxes, cfg.MinWordConfidence), nil
}

// filterWords keeps recognized words that carry text and clear the
// confidence floor.
func filterWords(boxes []gosseract.BoundingBox, minConfidence float64) []Word {
	words := make([]Word, 0, len(boxes))
	for _, b := range boxes {
		w := strings.TrimSpace(b.Word)
		if w == "" || b.Confidence < minConfidence {
			continue
		}
		words = append(words, Word{Text: w, Box: b.Box, Confidence: b.Confidence})
	}
	return words
}
