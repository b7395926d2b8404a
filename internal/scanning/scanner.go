package scanning

import (
	"context"
	"errors"
	"fmt"
	"image"
	"path/filepath"
	"strings"
)

// FileKind identifies how uploaded bytes should be turned into text
type FileKind string

const (
	KindImage     FileKind = "image"
	KindPDF       FileKind = "pdf"
	KindPlainText FileKind = "plain_text"
)

// ErrUnsupportedFileType is returned when a file kind has no extraction strategy
var ErrUnsupportedFileType = errors.New("unsupported file type")

// KindFromFilename maps a filename extension to a FileKind
func KindFromFilename(filename string) (FileKind, error) {
	ext := strings.TrimPrefix(strings.ToLower(filepath.Ext(filename)), ".")
	switch ext {
	case "jpg", "jpeg", "png":
		return KindImage, nil
	case "pdf":
		return KindPDF, nil
	case "txt":
		return KindPlainText, nil
	default:
		return "", fmt.Errorf("%w: %q", ErrUnsupportedFileType, ext)
	}
}

// ExtractionError wraps an OCR or PDF decoding failure
type ExtractionError struct {
	Op  string
	Err error
}

func (e *ExtractionError) Error() string {
	return fmt.Sprintf("extraction failed: %s: %v", e.Op, e.Err)
}

func (e *ExtractionError) Unwrap() error {
	return e.Err
}

// MissingFieldError is returned when the model response lacks a required tag
type MissingFieldError struct {
	Tag string
}

func (e *MissingFieldError) Error() string {
	return fmt.Sprintf("missing field in model response: <%s>", e.Tag)
}

// Fields holds the raw strings pulled out of a model response
type Fields struct {
	Vendor      string `json:"vendor"`
	Date        string `json:"date"`
	Amount      string `json:"amount"`
	Category    string `json:"category"`
	Description string `json:"description"`
}

// TextExtractor turns raw file bytes into plain text
type TextExtractor interface {
	Extract(ctx context.Context, data []byte, kind FileKind) (string, error)
}

// FieldParser turns extracted text into raw receipt fields
type FieldParser interface {
	Parse(ctx context.Context, text string) (*Fields, error)
}

// OCR recognizes text in a raster image and returns it grouped by paragraph
type OCR interface {
	RecognizeText(ctx context.Context, img image.Image) ([]string, error)
}

// Completer defines the interface for language model providers
type Completer interface {
	// Complete sends a prompt and returns the model's text response
	Complete(ctx context.Context, prompt string) (string, error)
	// Close closes the completer and releases resources
	Close() error
}
