package receipt

import (
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
)

var _ = Describe("ComputeStatistics", func() {
	It("returns nil for no bills", func() {
		Expect(ComputeStatistics(nil)).To(BeNil())
	})

	It("summarizes an odd number of amounts", func() {
		stats := ComputeStatistics([]*BillView{
			billView(1, "a", 30, NewDate(2024, time.January, 1), nil),
			billView(2, "b", 10, NewDate(2024, time.January, 2), nil),
			billView(3, "c", 20, NewDate(2024, time.January, 3), nil),
		})
		Expect(stats).To(Equal(&Statistics{Total: 60, Average: 20, Median: 20, Min: 10, Max: 30, Count: 3}))
	})

	It("averages the middle pair for an even count", func() {
		stats := ComputeStatistics([]*BillView{
			billView(1, "a", 10, NewDate(2024, time.January, 1), nil),
			billView(2, "b", 40, NewDate(2024, time.January, 2), nil),
			billView(3, "c", 20, NewDate(2024, time.January, 3), nil),
			billView(4, "d", 30, NewDate(2024, time.January, 4), nil),
		})
		Expect(stats.Median).To(Equal(25.0))
		Expect(stats.Count).To(Equal(4))
	})

	It("adds cents without float drift", func() {
		stats := ComputeStatistics([]*BillView{
			billView(1, "a", 0.1, NewDate(2024, time.January, 1), nil),
			billView(2, "b", 0.2, NewDate(2024, time.January, 2), nil),
		})
		Expect(stats.Total).To(Equal(0.3))
	})
})

var _ = Describe("spending breakdowns", func() {
	var bills []*BillView

	BeforeEach(func() {
		bills = []*BillView{
			billView(1, "Corner Cafe", 12.5, NewDate(2024, time.March, 14), categoryPtr(CategoryFood)),
			billView(2, "Utility Co", 80, NewDate(2024, time.May, 1), categoryPtr(CategoryUtilities)),
			billView(3, "Corner Cafe", 7.5, NewDate(2024, time.May, 2), categoryPtr(CategoryFood)),
			billView(4, "City Cinema", 15, NewDate(2024, time.January, 20), nil),
			billView(5, "Bus Pass", 20, NewDate(2024, time.March, 1), categoryPtr(CategoryTransport)),
		}
	})

	Describe("MonthlySpending", func() {
		It("totals each month, oldest first", func() {
			Expect(MonthlySpending(bills)).To(Equal([]PeriodTotal{
				{Period: "2024-01", Total: 15, Count: 1},
				{Period: "2024-03", Total: 32.5, Count: 2},
				{Period: "2024-05", Total: 87.5, Count: 2},
			}))
		})

		It("returns an empty list for no bills", func() {
			Expect(MonthlySpending(nil)).To(BeEmpty())
		})
	})

	Describe("CategorySpending", func() {
		It("totals each category, largest first, with uncategorized as Other", func() {
			Expect(CategorySpending(bills)).To(Equal([]CategoryTotal{
				{Category: CategoryUtilities, Total: 80, Count: 1},
				{Category: CategoryFood, Total: 20, Count: 2},
				{Category: CategoryTransport, Total: 20, Count: 1},
				{Category: CategoryOther, Total: 15, Count: 1},
			}))
		})
	})

	Describe("TopVendors", func() {
		It("returns the biggest vendors", func() {
			Expect(TopVendors(bills, 2)).To(Equal([]VendorTotal{
				{Vendor: "Utility Co", Total: 80, Count: 1},
				{Vendor: "Bus Pass", Total: 20, Count: 1},
			}))
		})

		It("returns every vendor when n is not positive", func() {
			Expect(TopVendors(bills, 0)).To(HaveLen(4))
		})
	})
})
