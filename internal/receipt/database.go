package receipt

import (
	"context"
	"strings"
)

// DB defines the interface for database operations
type DB interface {
	// AddOrUpdateVendor finds a vendor by name ignoring case, creating it if missing.
	// An existing vendor only gains category when it has none.
	AddOrUpdateVendor(ctx context.Context, name string, category *Category) (bool, *Vendor, error)

	// GetVendor retrieves a vendor by ID
	GetVendor(ctx context.Context, id int64) (*Vendor, error)

	// GetVendorByName retrieves a vendor by case-insensitive name
	GetVendorByName(ctx context.Context, name string) (*Vendor, error)

	// ListVendors returns all vendors ordered by name
	ListVendors(ctx context.Context) ([]*Vendor, error)

	// SetVendorCategory overwrites a vendor's category
	SetVendorCategory(ctx context.Context, id int64, category *Category) error

	// AddBill inserts a bill for an existing vendor
	AddBill(ctx context.Context, bill *Bill) (*Bill, error)

	// GetBill retrieves a bill joined with its vendor
	GetBill(ctx context.Context, id int64) (*BillView, error)

	// ListBills returns bills matching filter, newest first
	ListBills(ctx context.Context, filter BillFilter) ([]*BillView, error)

	// UpdateBill applies update and returns the stored bill, or nil if id does not exist
	UpdateBill(ctx context.Context, id int64, update BillUpdate) (*Bill, error)

	// DeleteBill removes a bill and reports whether it existed
	DeleteBill(ctx context.Context, id int64) (bool, error)

	// SaveReceipt upserts the vendor and inserts the bill in one transaction
	SaveReceipt(ctx context.Context, vendor Vendor, bill Bill) (*SavedReceipt, error)

	// Close closes the database connection
	Close() error
}

// SavedReceipt is the outcome of DB.SaveReceipt
type SavedReceipt struct {
	Vendor        *Vendor
	Bill          *Bill
	VendorCreated bool
}

// BillFilter narrows ListBills. Zero values mean "no constraint".
type BillFilter struct {
	VendorQuery   string // case-insensitive substring of the vendor name
	From          Date   // inclusive
	To            Date   // inclusive
	Category      *Category
	MinAmount     *float64
	MaxAmount     *float64
	FileReference string
	Limit         int
}

// BillUpdate holds the editable fields of a bill; nil fields are left unchanged
type BillUpdate struct {
	Amount          *float64 `json:"amount,omitempty"`
	TransactionDate *Date    `json:"transaction_date,omitempty"`
	Description     *string  `json:"description,omitempty"`
}

// IsEmpty reports whether the update changes nothing
func (u BillUpdate) IsEmpty() bool {
	return u.Amount == nil && u.TransactionDate == nil && u.Description == nil
}

// matches reports whether view satisfies every constraint of the filter except Limit
func (f BillFilter) matches(view *BillView) bool {
	if f.VendorQuery != "" && !containsFold(view.VendorName, f.VendorQuery) {
		return false
	}
	if !f.From.IsZero() && view.TransactionDate.Before(f.From.Time) {
		return false
	}
	if !f.To.IsZero() && view.TransactionDate.After(f.To.Time) {
		return false
	}
	if f.Category != nil && (view.Category == nil || *view.Category != *f.Category) {
		return false
	}
	if f.MinAmount != nil && view.Amount < *f.MinAmount {
		return false
	}
	if f.MaxAmount != nil && view.Amount > *f.MaxAmount {
		return false
	}
	if f.FileReference != "" && view.FileReference != f.FileReference {
		return false
	}
	return true
}

func containsFold(s, substr string) bool {
	return strings.Contains(strings.ToLower(s), strings.ToLower(substr))
}

// compareRecency orders bills newest first, breaking date ties by descending id
func compareRecency(a, b *BillView) int {
	if c := b.TransactionDate.Compare(a.TransactionDate.Time); c != 0 {
		return c
	}
	switch {
	case a.ID > b.ID:
		return -1
	case a.ID < b.ID:
		return 1
	}
	return 0
}
