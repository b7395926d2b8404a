package scanning

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"unicode/utf8"
)

const (
	// minPDFTextLength is the shortest text layer accepted before a PDF is treated as scanned
	minPDFTextLength = 10

	defaultDPI = 300
)

// Extractor implements TextExtractor using an OCR engine and MuPDF
type Extractor struct {
	ocr     OCR
	dpi     float64
	openPDF func([]byte) (pdfDocument, error)
}

// NewExtractor creates a new Extractor that renders scanned PDF pages at dpi
func NewExtractor(ocr OCR, dpi int) *Extractor {
	if dpi <= 0 {
		dpi = defaultDPI
	}
	return &Extractor{
		ocr:     ocr,
		dpi:     float64(dpi),
		openPDF: openPDF,
	}
}

// Extract converts file bytes of the given kind into plain text
func (e *Extractor) Extract(ctx context.Context, data []byte, kind FileKind) (string, error) {
	switch kind {
	case KindImage:
		return e.extractImage(ctx, data)
	case KindPDF:
		return e.extractPDF(ctx, data)
	case KindPlainText:
		if !utf8.Valid(data) {
			return "", &ExtractionError{Op: "decoding text", Err: fmt.Errorf("file is not valid UTF-8")}
		}
		return string(data), nil
	default:
		return "", fmt.Errorf("%w: %q", ErrUnsupportedFileType, kind)
	}
}

func (e *Extractor) extractImage(ctx context.Context, data []byte) (string, error) {
	img, err := decodeImage(data)
	if err != nil {
		return "", &ExtractionError{Op: "decoding image", Err: err}
	}
	paragraphs, err := e.ocr.RecognizeText(ctx, img)
	if err != nil {
		return "", &ExtractionError{Op: "running OCR", Err: err}
	}
	return strings.Join(paragraphs, "\n"), nil
}

func (e *Extractor) extractPDF(ctx context.Context, data []byte) (string, error) {
	doc, err := e.openPDF(data)
	if err != nil {
		return "", &ExtractionError{Op: "opening PDF", Err: err}
	}
	defer doc.Close()

	pages := doc.NumPage()
	blocks := make([]string, 0, pages)
	for i := 0; i < pages; i++ {
		if err := ctx.Err(); err != nil {
			return "", err
		}
		text, err := doc.Text(i)
		if err != nil {
			return "", &ExtractionError{Op: fmt.Sprintf("reading text of page %d", i+1), Err: err}
		}
		if text != "" {
			blocks = append(blocks, text)
		}
	}

	text := strings.TrimSpace(strings.Join(blocks, "\n"))
	n := utf8.RuneCountInString(text)
	if n >= minPDFTextLength {
		return text, nil
	}

	slog.Info("PDF has no usable text layer, falling back to OCR", "pages", pages, "text_length", n)
	return e.ocrPDF(ctx, doc, pages)
}

// ocrPDF rasterizes every page and joins the per-page OCR output
func (e *Extractor) ocrPDF(ctx context.Context, doc pdfDocument, pages int) (string, error) {
	outputs := make([]string, 0, pages)
	for i := 0; i < pages; i++ {
		if err := ctx.Err(); err != nil {
			return "", err
		}
		img, err := doc.ImageDPI(i, e.dpi)
		if err != nil {
			return "", &ExtractionError{Op: fmt.Sprintf("rendering page %d", i+1), Err: err}
		}
		paragraphs, err := e.ocr.RecognizeText(ctx, img)
		if err != nil {
			return "", &ExtractionError{Op: fmt.Sprintf("running OCR on page %d", i+1), Err: err}
		}
		outputs = append(outputs, strings.Join(paragraphs, "\n"))
	}
	return strings.Join(outputs, "\n"), nil
}
