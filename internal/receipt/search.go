package receipt

import (
	"cmp"
	"context"
	"fmt"
	"slices"
	"strings"
)

// SortKey selects the field search results are ordered by
type SortKey string

const (
	SortByDate     SortKey = "date"
	SortByVendor   SortKey = "vendor"
	SortByAmount   SortKey = "amount"
	SortByCategory SortKey = "category"
)

// ParseSortKey validates a sort key; empty means date
func ParseSortKey(s string) (SortKey, error) {
	switch key := SortKey(strings.ToLower(strings.TrimSpace(s))); key {
	case "":
		return SortByDate, nil
	case SortByDate, SortByVendor, SortByAmount, SortByCategory:
		return key, nil
	default:
		return "", fmt.Errorf("unknown sort key %q", s)
	}
}

// SearchQuery is a BillFilter plus ordering
type SearchQuery struct {
	BillFilter
	SortBy    SortKey
	Ascending bool
}

// Search returns the bills matching query in the requested order.
// Limit keeps the most recent matches; ordering is applied to that page.
func (s *Service) Search(ctx context.Context, query SearchQuery) ([]*BillView, error) {
	filter := query.BillFilter
	filter.VendorQuery = strings.TrimSpace(filter.VendorQuery)

	bills, err := s.db.ListBills(ctx, filter)
	if err != nil {
		return nil, &StorageError{Op: "listing bills", Err: err}
	}

	// The store's collation may fold case differently; keep only exact substring matches
	if filter.VendorQuery != "" {
		bills = slices.DeleteFunc(bills, func(b *BillView) bool {
			return !containsFold(b.VendorName, filter.VendorQuery)
		})
	}

	SortBills(bills, query.SortBy, query.Ascending)
	return bills, nil
}

// SortBills orders bills in place. Ties keep their existing relative order.
func SortBills(bills []*BillView, key SortKey, ascending bool) {
	compare := compareBy(key)
	slices.SortStableFunc(bills, func(a, b *BillView) int {
		if ascending {
			return compare(a, b)
		}
		return compare(b, a)
	})
}

func compareBy(key SortKey) func(a, b *BillView) int {
	switch key {
	case SortByVendor:
		return func(a, b *BillView) int {
			return strings.Compare(strings.ToLower(a.VendorName), strings.ToLower(b.VendorName))
		}
	case SortByAmount:
		return func(a, b *BillView) int {
			return cmp.Compare(a.Amount, b.Amount)
		}
	case SortByCategory:
		return func(a, b *BillView) int {
			return strings.Compare(a.CategoryName(), b.CategoryName())
		}
	default:
		return func(a, b *BillView) int {
			return a.TransactionDate.Compare(b.TransactionDate.Time)
		}
	}
}
