package receipt

import (
	"encoding/json"
	"fmt"
	"time"
)

const dateLayout = "2006-01-02"

// Date is a calendar date serialized as YYYY-MM-DD
type Date struct {
	time.Time
}

// NewDate returns the calendar date y-m-d
func NewDate(year int, month time.Month, day int) Date {
	return Date{time.Date(year, month, day, 0, 0, 0, 0, time.UTC)}
}

// DateOf returns the calendar date of t in t's own location
func DateOf(t time.Time) Date {
	return NewDate(t.Year(), t.Month(), t.Day())
}

// ParseDate parses a strict YYYY-MM-DD date
func ParseDate(s string) (Date, error) {
	t, err := time.Parse(dateLayout, s)
	if err != nil {
		return Date{}, fmt.Errorf("parsing date %q: %w", s, err)
	}
	return DateOf(t), nil
}

func (d Date) String() string {
	if d.IsZero() {
		return ""
	}
	return d.Format(dateLayout)
}

func (d Date) MarshalJSON() ([]byte, error) {
	if d.IsZero() {
		return []byte("null"), nil
	}
	return json.Marshal(d.String())
}

func (d *Date) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return err
	}
	if s == "" {
		*d = Date{}
		return nil
	}
	parsed, err := ParseDate(s)
	if err != nil {
		return err
	}
	*d = parsed
	return nil
}

// Vendor is a merchant identified by its case-insensitive name
type Vendor struct {
	ID       int64     `json:"id"`
	Name     string    `json:"name"`
	Category *Category `json:"category"` // nil until assigned
}

// Bill is a single expense paid to a vendor
type Bill struct {
	ID              int64   `json:"id"`
	VendorID        int64   `json:"vendor_id"`
	Amount          float64 `json:"amount"`
	TransactionDate Date    `json:"transaction_date"`
	Description     string  `json:"description"`
	FileReference   string  `json:"file_reference"`
}

// BillView is a bill joined with its vendor
type BillView struct {
	ID              int64     `json:"id"`
	VendorID        int64     `json:"vendor_id"`
	VendorName      string    `json:"vendor"`
	Amount          float64   `json:"amount"`
	TransactionDate Date      `json:"date"`
	Category        *Category `json:"category"`
	Description     string    `json:"description"`
	FileReference   string    `json:"file_reference"`
}

// CategoryName returns the category as a string, empty when unassigned
func (b *BillView) CategoryName() string {
	if b.Category == nil {
		return ""
	}
	return string(*b.Category)
}
