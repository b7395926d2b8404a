package receipt

import (
	"cmp"
	"slices"
	"strings"

	"github.com/shopspring/decimal"
)

// Statistics summarizes the amounts of a set of bills
type Statistics struct {
	Total   float64 `json:"total"`
	Average float64 `json:"average"`
	Median  float64 `json:"median"`
	Min     float64 `json:"min"`
	Max     float64 `json:"max"`
	Count   int     `json:"count"`
}

// ComputeStatistics summarizes bills, returning nil when there are none
func ComputeStatistics(bills []*BillView) *Statistics {
	if len(bills) == 0 {
		return nil
	}

	amounts := make([]decimal.Decimal, len(bills))
	for i, b := range bills {
		amounts[i] = decimal.NewFromFloat(b.Amount)
	}
	slices.SortFunc(amounts, func(a, b decimal.Decimal) int { return a.Cmp(b) })

	n := len(amounts)
	total := decimal.Sum(amounts[0], amounts[1:]...)
	median := amounts[n/2]
	if n%2 == 0 {
		median = amounts[n/2-1].Add(amounts[n/2]).Div(decimal.NewFromInt(2))
	}

	return &Statistics{
		Total:   total.InexactFloat64(),
		Average: total.Div(decimal.NewFromInt(int64(n))).InexactFloat64(),
		Median:  median.InexactFloat64(),
		Min:     amounts[0].InexactFloat64(),
		Max:     amounts[n-1].InexactFloat64(),
		Count:   n,
	}
}

// PeriodTotal is the spend within one calendar month
type PeriodTotal struct {
	Period string  `json:"period"` // YYYY-MM
	Total  float64 `json:"total"`
	Count  int     `json:"count"`
}

// CategoryTotal is the spend within one category
type CategoryTotal struct {
	Category Category `json:"category"`
	Total    float64  `json:"total"`
	Count    int      `json:"count"`
}

// VendorTotal is the spend with one vendor
type VendorTotal struct {
	Vendor string  `json:"vendor"`
	Total  float64 `json:"total"`
	Count  int     `json:"count"`
}

type bucket struct {
	total decimal.Decimal
	count int
}

// groupTotals sums amounts per key, preserving first-seen key order
func groupTotals(bills []*BillView, key func(*BillView) string) ([]string, map[string]*bucket) {
	var keys []string
	groups := make(map[string]*bucket)
	for _, b := range bills {
		k := key(b)
		g, ok := groups[k]
		if !ok {
			g = &bucket{}
			groups[k] = g
			keys = append(keys, k)
		}
		g.total = g.total.Add(decimal.NewFromFloat(b.Amount))
		g.count++
	}
	return keys, groups
}

// MonthlySpending totals bills per month, oldest month first
func MonthlySpending(bills []*BillView) []PeriodTotal {
	keys, groups := groupTotals(bills, func(b *BillView) string {
		return b.TransactionDate.Format("2006-01")
	})
	slices.Sort(keys)

	out := make([]PeriodTotal, 0, len(keys))
	for _, k := range keys {
		out = append(out, PeriodTotal{Period: k, Total: groups[k].total.InexactFloat64(), Count: groups[k].count})
	}
	return out
}

// CategorySpending totals bills per category, largest first. Uncategorized bills count as Other.
func CategorySpending(bills []*BillView) []CategoryTotal {
	keys, groups := groupTotals(bills, func(b *BillView) string {
		if b.Category == nil {
			return string(CategoryOther)
		}
		return string(*b.Category)
	})

	out := make([]CategoryTotal, 0, len(keys))
	for _, k := range keys {
		out = append(out, CategoryTotal{Category: Category(k), Total: groups[k].total.InexactFloat64(), Count: groups[k].count})
	}
	slices.SortStableFunc(out, func(a, b CategoryTotal) int {
		return cmp.Or(cmp.Compare(b.Total, a.Total), strings.Compare(string(a.Category), string(b.Category)))
	})
	return out
}

// TopVendors returns the n vendors with the largest spend; n <= 0 returns all
func TopVendors(bills []*BillView, n int) []VendorTotal {
	keys, groups := groupTotals(bills, func(b *BillView) string { return b.VendorName })

	out := make([]VendorTotal, 0, len(keys))
	for _, k := range keys {
		out = append(out, VendorTotal{Vendor: k, Total: groups[k].total.InexactFloat64(), Count: groups[k].count})
	}
	slices.SortStableFunc(out, func(a, b VendorTotal) int {
		return cmp.Or(cmp.Compare(b.Total, a.Total), strings.Compare(a.Vendor, b.Vendor))
	})
	if n > 0 && len(out) > n {
		out = out[:n]
	}
	return out
}
