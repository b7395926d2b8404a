package scanning

import (
	"context"
	"fmt"
	"log/slog"
	"regexp"
	"strings"
	"time"
)

// receiptFieldsPrompt is the shared prompt used by all model providers for field extraction.
// %s is replaced by the extracted receipt text.
const receiptFieldsPrompt = `You will be given text extracted from a receipt or invoice.
Extract the following fields from the text:
- Vendor Name: the merchant, store or business that issued the receipt
- Date: the transaction or invoice date
- Total Amount: the final total, grand total or amount due
- Category: exactly one of Food, Transport, Utilities, Entertainment, Shopping, Health, Other
- Description: a short summary including important details

Return the output strictly in this format, with no other text:
<vendor>...</vendor>
<date>...</date>
<amount>...</amount>
<category>...</category>
<description>...</description>

Text:
%s
`

// fieldTags lists the tags every model response must contain, in prompt order
var fieldTags = []string{"vendor", "date", "amount", "category", "description"}

var tagPatterns = func() map[string]*regexp.Regexp {
	patterns := make(map[string]*regexp.Regexp, len(fieldTags))
	for _, tag := range fieldTags {
		patterns[tag] = regexp.MustCompile(`(?is)<` + tag + `>(.*?)</` + tag + `>`)
	}
	return patterns
}()

// Parser implements FieldParser on top of a language model
type Parser struct {
	completer Completer
}

// NewParser creates a new Parser backed by completer
func NewParser(completer Completer) *Parser {
	return &Parser{completer: completer}
}

// BuildPrompt embeds extracted text into the field extraction prompt
func BuildPrompt(text string) string {
	return fmt.Sprintf(receiptFieldsPrompt, text)
}

// Parse asks the model for the receipt fields and pulls them out of its response
func (p *Parser) Parse(ctx context.Context, text string) (*Fields, error) {
	start := time.Now()
	response, err := p.completer.Complete(ctx, BuildPrompt(text))
	if err != nil {
		return nil, fmt.Errorf("calling language model: %w", err)
	}
	slog.Debug("Model response received",
		"response_length", len(response),
		"duration_ms", time.Since(start).Milliseconds(),
	)

	fields, err := parseTaggedFields(response)
	if err != nil {
		slog.Warn("Model response is missing fields", "error", err, "response", truncate(response, 512))
		return nil, err
	}
	return fields, nil
}

// parseTaggedFields extracts every required tag from a model response
func parseTaggedFields(response string) (*Fields, error) {
	values := make(map[string]string, len(fieldTags))
	for _, tag := range fieldTags {
		m := tagPatterns[tag].FindStringSubmatch(response)
		if m == nil {
			return nil, &MissingFieldError{Tag: tag}
		}
		values[tag] = strings.TrimSpace(m[1])
	}

	return &Fields{
		Vendor:      values["vendor"],
		Date:        values["date"],
		Amount:      values["amount"],
		Category:    values["category"],
		Description: values["description"],
	}, nil
}

func truncate(s string, max int) string {
	if len(s) <= max {
		return s
	}
	return s[:max] + "...(truncated)"
}
