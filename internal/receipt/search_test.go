package receipt

import (
	"context"
	"errors"
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
)

func billView(id int64, vendor string, amount float64, date Date, category *Category) *BillView {
	return &BillView{
		ID:              id,
		VendorID:        id,
		VendorName:      vendor,
		Amount:          amount,
		TransactionDate: date,
		Category:        category,
	}
}

func ids(bills []*BillView) []int64 {
	out := make([]int64, len(bills))
	for i, b := range bills {
		out[i] = b.ID
	}
	return out
}

var _ = Describe("ParseSortKey", func() {
	DescribeTable("known keys",
		func(raw string, expected SortKey) {
			key, err := ParseSortKey(raw)
			Expect(err).NotTo(HaveOccurred())
			Expect(key).To(Equal(expected))
		},
		Entry("empty defaults to date", "", SortByDate),
		Entry("date", "date", SortByDate),
		Entry("vendor in upper case", "VENDOR", SortByVendor),
		Entry("amount", "amount", SortByAmount),
		Entry("category", " category ", SortByCategory),
	)

	It("rejects unknown keys", func() {
		_, err := ParseSortKey("size")
		Expect(err).To(MatchError(ContainSubstring(`unknown sort key "size"`)))
	})
})

var _ = Describe("SortBills", func() {
	var bills []*BillView

	BeforeEach(func() {
		bills = []*BillView{
			billView(1, "beta", 20, NewDate(2024, time.March, 1), categoryPtr(CategoryShopping)),
			billView(2, "Alpha", 5, NewDate(2024, time.January, 1), nil),
			billView(3, "gamma", 20, NewDate(2024, time.February, 1), categoryPtr(CategoryFood)),
			billView(4, "alpha", 10, NewDate(2024, time.February, 1), categoryPtr(CategoryFood)),
		}
	})

	It("orders by date ascending", func() {
		SortBills(bills, SortByDate, true)
		Expect(ids(bills)).To(Equal([]int64{2, 3, 4, 1}))
	})

	It("orders by date descending keeping ties stable", func() {
		SortBills(bills, SortByDate, false)
		Expect(ids(bills)).To(Equal([]int64{1, 3, 4, 2}))
	})

	It("orders by vendor ignoring case", func() {
		SortBills(bills, SortByVendor, true)
		Expect(ids(bills)).To(Equal([]int64{2, 4, 1, 3}))
	})

	It("orders by amount descending", func() {
		SortBills(bills, SortByAmount, false)
		Expect(ids(bills)).To(Equal([]int64{1, 3, 4, 2}))
	})

	It("puts uncategorized bills first when ascending by category", func() {
		SortBills(bills, SortByCategory, true)
		Expect(ids(bills)).To(Equal([]int64{2, 3, 4, 1}))
	})
})

var _ = Describe("Service.Search", func() {
	var (
		db      *mockDB
		service *Service
		ctx     context.Context
	)

	BeforeEach(func() {
		ctx = context.Background()
		db = newMockDB()
		service = NewServiceWithDeps(db, newMockStorage(), &mockExtractor{}, &mockParser{}, DefaultUploadLimits(),
			&mockIDGenerator{id: "id"}, &mockTimeSource{now: fixedNow})

		for _, r := range []struct {
			vendor string
			amount float64
			date   Date
		}{
			{"Corner Cafe", 12.5, NewDate(2024, time.March, 14)},
			{"Utility Co", 80, NewDate(2024, time.May, 1)},
			{"Cafe Luna", 30, NewDate(2024, time.April, 2)},
		} {
			_, err := db.SaveReceipt(ctx, Vendor{Name: r.vendor}, Bill{Amount: r.amount, TransactionDate: r.date})
			Expect(err).NotTo(HaveOccurred())
		}
	})

	It("matches vendor substrings ignoring case and padding", func() {
		bills, err := service.Search(ctx, SearchQuery{BillFilter: BillFilter{VendorQuery: "  cafe "}})
		Expect(err).NotTo(HaveOccurred())
		Expect(bills).To(HaveLen(2))
		Expect(bills[0].VendorName).To(Equal("Cafe Luna"))
		Expect(bills[1].VendorName).To(Equal("Corner Cafe"))
	})

	It("honours the requested order", func() {
		bills, err := service.Search(ctx, SearchQuery{SortBy: SortByAmount, Ascending: true})
		Expect(err).NotTo(HaveOccurred())
		Expect(bills).To(HaveLen(3))
		Expect(bills[0].Amount).To(Equal(12.5))
		Expect(bills[2].Amount).To(Equal(80.0))
	})

	It("wraps store failures in a StorageError", func() {
		db.listErr = errors.New("disk I/O error")
		_, err := service.Search(ctx, SearchQuery{})
		var storageErr *StorageError
		Expect(errors.As(err, &storageErr)).To(BeTrue())
	})
})
