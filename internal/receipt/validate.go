package receipt

import (
	"fmt"
	"log/slog"
	"math"
	"regexp"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/araddon/dateparse"
	"github.com/shopspring/decimal"

	"github.com/zombor/receipt-ledger/internal/scanning"
)

const (
	minVendorNameLength = 2
	maxVendorNameLength = 100
)

// RawFields are the unvalidated strings pulled out of a receipt
type RawFields = scanning.Fields

// Validated is a record that passed validation; Vendor.ID and Bill.VendorID are unset
type Validated struct {
	Vendor Vendor `json:"vendor"`
	Bill   Bill   `json:"bill"`
}

var amountJunk = regexp.MustCompile(`[^\d.\-]`)

// Validator turns raw extracted fields into typed records
type Validator struct {
	timeSource TimeSource
}

// NewValidator creates a Validator that resolves "today" from timeSource
func NewValidator(timeSource TimeSource) *Validator {
	if timeSource == nil {
		timeSource = &defaultTimeSource{}
	}
	return &Validator{timeSource: timeSource}
}

// Validate normalizes raw fields. Category and date are lenient, amount and vendor name are strict.
func (v *Validator) Validate(fields RawFields) (*Validated, error) {
	var problems []error

	amount, err := ParseAmount(fields.Amount)
	if err != nil {
		problems = append(problems, err)
	}

	vendor := Vendor{
		Name:     strings.TrimSpace(fields.Vendor),
		Category: ParseCategory(fields.Category),
	}
	bill := Bill{
		Amount:          amount,
		TransactionDate: v.parseDate(fields.Date),
		Description:     strings.TrimSpace(fields.Description),
	}

	problems = append(problems, v.check(vendor, bill, err == nil)...)
	if len(problems) > 0 {
		return nil, &ValidationError{Problems: problems}
	}
	return &Validated{Vendor: vendor, Bill: bill}, nil
}

// ValidateRecord re-checks a record after the user adjusted it
func (v *Validator) ValidateRecord(vendor Vendor, bill Bill) error {
	if problems := v.check(vendor, bill, true); len(problems) > 0 {
		return &ValidationError{Problems: problems}
	}
	return nil
}

func (v *Validator) check(vendor Vendor, bill Bill, checkAmount bool) []error {
	var problems []error

	n := utf8.RuneCountInString(strings.TrimSpace(vendor.Name))
	if n < minVendorNameLength || n > maxVendorNameLength {
		problems = append(problems, fmt.Errorf("vendor name must be between %d and %d characters, got %d",
			minVendorNameLength, maxVendorNameLength, n))
	}

	if checkAmount && bill.Amount <= 0 {
		problems = append(problems, fmt.Errorf("%w: must be greater than zero, got %v", ErrInvalidAmount, bill.Amount))
	}

	today := DateOf(v.timeSource.Now())
	switch {
	case bill.TransactionDate.IsZero():
		problems = append(problems, fmt.Errorf("transaction date is required"))
	case bill.TransactionDate.After(today.Time):
		problems = append(problems, fmt.Errorf("transaction date %s is in the future", bill.TransactionDate))
	}

	return problems
}

// parseDate parses a date in any common layout, falling back to today
func (v *Validator) parseDate(raw string) Date {
	today := DateOf(v.timeSource.Now())
	raw = strings.TrimSpace(raw)
	if raw == "" {
		slog.Warn("No transaction date extracted, using today", "today", today.String())
		return today
	}

	// Day-first dates such as 14/03/2024 are retried with day and month swapped
	t, err := dateparse.ParseIn(raw, time.UTC, dateparse.RetryAmbiguousDateWithSwap(true))
	if err != nil {
		slog.Warn("Could not parse transaction date, using today", "raw", raw, "today", today.String(), "error", err)
		return today
	}
	return DateOf(t)
}

// ParseAmount keeps digits, dots and minus signs and parses the rest as a decimal
func ParseAmount(raw string) (float64, error) {
	cleaned := amountJunk.ReplaceAllString(raw, "")
	if cleaned == "" {
		return 0, fmt.Errorf("%w: %q has no digits", ErrInvalidAmount, raw)
	}
	d, err := decimal.NewFromString(cleaned)
	if err != nil {
		return 0, fmt.Errorf("%w: %q", ErrInvalidAmount, raw)
	}
	if !d.IsPositive() {
		return 0, fmt.Errorf("%w: must be greater than zero, got %s", ErrInvalidAmount, d)
	}
	amount := d.InexactFloat64()
	if math.IsInf(amount, 0) {
		return 0, fmt.Errorf("%w: %q is out of range", ErrInvalidAmount, raw)
	}
	return amount, nil
}
