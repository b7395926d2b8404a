package scanning

import (
	"context"
	"fmt"
	"image"
	"log/slog"
	"strings"
	"time"

	"github.com/otiai10/gosseract/v2"
)

// Tesseract implements the OCR interface using the Tesseract engine
type Tesseract struct {
	languages []string
}

// NewTesseract creates a new Tesseract OCR instance for the given languages
func NewTesseract(languages ...string) *Tesseract {
	if len(languages) == 0 {
		languages = []string{"eng"}
	}
	return &Tesseract{languages: languages}
}

// RecognizeText runs OCR over an image and returns its paragraphs in reading order
func (t *Tesseract) RecognizeText(ctx context.Context, img image.Image) ([]string, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	start := time.Now()

	data, err := encodePNG(img)
	if err != nil {
		return nil, err
	}

	// A client holds engine state and must not be shared across goroutines
	client := gosseract.NewClient()
	defer client.Close()

	if err := client.SetLanguage(t.languages...); err != nil {
		return nil, fmt.Errorf("setting OCR language: %w", err)
	}
	if err := client.SetVariable("preserve_interword_spaces", "1"); err != nil {
		return nil, fmt.Errorf("configuring OCR: %w", err)
	}
	if err := client.SetImageFromBytes(data); err != nil {
		return nil, fmt.Errorf("loading image into OCR: %w", err)
	}

	boxes, err := client.GetBoundingBoxes(gosseract.RIL_PARA)
	if err != nil {
		return nil, fmt.Errorf("recognizing text: %w", err)
	}

	paragraphs := make([]string, 0, len(boxes))
	for _, box := range boxes {
		if p := collapseWhitespace(box.Word); p != "" {
			paragraphs = append(paragraphs, p)
		}
	}

	slog.Debug("OCR complete",
		"paragraphs", len(paragraphs),
		"duration_ms", time.Since(start).Milliseconds(),
	)
	return paragraphs, nil
}

// collapseWhitespace joins the lines of a paragraph with single spaces
func collapseWhitespace(s string) string {
	return strings.Join(strings.Fields(s), " ")
}
