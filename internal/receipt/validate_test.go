package receipt

import (
	"errors"
	"strings"
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
)

var _ = Describe("ParseAmount", func() {
	DescribeTable("valid amounts",
		func(raw string, expected float64) {
			amount, err := ParseAmount(raw)
			Expect(err).NotTo(HaveOccurred())
			Expect(amount).To(Equal(expected))
		},
		Entry("currency and thousands separator", "$1,234.56", 1234.56),
		Entry("plain number", "45.00", 45.0),
		Entry("trailing currency code", "12.5 USD", 12.5),
		Entry("label and spaces", "Total: 9.99", 9.99),
	)

	DescribeTable("invalid amounts",
		func(raw string) {
			_, err := ParseAmount(raw)
			Expect(errors.Is(err, ErrInvalidAmount)).To(BeTrue())
		},
		Entry("zero", "0.00"),
		Entry("negative", "-5"),
		Entry("no digits", "N/A"),
		Entry("empty", ""),
		Entry("two decimal points", "1.2.3"),
		Entry("too large for a float", strings.Repeat("9", 400)),
	)
})

var _ = Describe("Validator", func() {
	var (
		validator *Validator
		fields    RawFields
		validated *Validated
		err       error
	)

	BeforeEach(func() {
		validator = NewValidator(&mockTimeSource{now: fixedNow})
		fields = RawFields{
			Vendor:      "  ACME Store ",
			Date:        "03/14/2024",
			Amount:      "Total: $45.00",
			Category:    "shopping",
			Description: " Printer paper ",
		}
	})

	JustBeforeEach(func() {
		validated, err = validator.Validate(fields)
	})

	When("every field is well formed", func() {
		It("should not return an error", func() {
			Expect(err).NotTo(HaveOccurred())
		})

		It("should normalize the values", func() {
			Expect(validated.Vendor.Name).To(Equal("ACME Store"))
			Expect(*validated.Vendor.Category).To(Equal(CategoryShopping))
			Expect(validated.Bill.Amount).To(Equal(45.0))
			Expect(validated.Bill.TransactionDate).To(Equal(NewDate(2024, time.March, 14)))
			Expect(validated.Bill.Description).To(Equal("Printer paper"))
		})
	})

	When("the category is not recognized", func() {
		BeforeEach(func() {
			fields.Category = "groceries"
		})

		It("falls back to Other", func() {
			Expect(err).NotTo(HaveOccurred())
			Expect(*validated.Vendor.Category).To(Equal(CategoryOther))
		})
	})

	When("the category is empty", func() {
		BeforeEach(func() {
			fields.Category = ""
		})

		It("leaves it unset", func() {
			Expect(err).NotTo(HaveOccurred())
			Expect(validated.Vendor.Category).To(BeNil())
		})
	})

	When("the date cannot be parsed", func() {
		BeforeEach(func() {
			fields.Date = "sometime last week"
		})

		It("uses today", func() {
			Expect(err).NotTo(HaveOccurred())
			Expect(validated.Bill.TransactionDate).To(Equal(NewDate(2024, time.June, 15)))
		})
	})

	When("the date is written out", func() {
		BeforeEach(func() {
			fields.Date = "March 3, 2024"
		})

		It("parses it", func() {
			Expect(validated.Bill.TransactionDate).To(Equal(NewDate(2024, time.March, 3)))
		})
	})

	When("the date is written day first", func() {
		BeforeEach(func() {
			fields.Date = "14/03/2024"
		})

		It("swaps day and month", func() {
			Expect(err).NotTo(HaveOccurred())
			Expect(validated.Bill.TransactionDate).To(Equal(NewDate(2024, time.March, 14)))
		})
	})

	When("the date is in the future", func() {
		BeforeEach(func() {
			fields.Date = "2024-06-16"
		})

		It("returns a ValidationError", func() {
			var validationErr *ValidationError
			Expect(errors.As(err, &validationErr)).To(BeTrue())
			Expect(validationErr.Problems).To(HaveLen(1))
		})
	})

	When("the date is today", func() {
		BeforeEach(func() {
			fields.Date = "2024-06-15"
		})

		It("is accepted", func() {
			Expect(err).NotTo(HaveOccurred())
		})
	})

	When("the vendor name is too short", func() {
		BeforeEach(func() {
			fields.Vendor = " X "
		})

		It("returns a ValidationError", func() {
			var validationErr *ValidationError
			Expect(errors.As(err, &validationErr)).To(BeTrue())
		})
	})

	When("the vendor name is too long", func() {
		BeforeEach(func() {
			fields.Vendor = strings.Repeat("v", 101)
		})

		It("returns a ValidationError", func() {
			Expect(err).To(MatchError(ContainSubstring("between 2 and 100")))
		})
	})

	When("several rules fail", func() {
		BeforeEach(func() {
			fields.Vendor = ""
			fields.Amount = "free"
		})

		It("reports all of them", func() {
			var validationErr *ValidationError
			Expect(errors.As(err, &validationErr)).To(BeTrue())
			Expect(validationErr.Problems).To(HaveLen(2))
			Expect(errors.Is(err, ErrInvalidAmount)).To(BeTrue())
		})
	})

	Describe("ValidateRecord", func() {
		It("accepts a valid record", func() {
			Expect(validator.ValidateRecord(
				Vendor{Name: "Utility Co"},
				Bill{Amount: 80, TransactionDate: NewDate(2024, time.May, 1)},
			)).To(Succeed())
		})

		It("rejects a missing date", func() {
			err := validator.ValidateRecord(Vendor{Name: "Utility Co"}, Bill{Amount: 80})
			Expect(err).To(MatchError(ContainSubstring("date is required")))
		})

		It("rejects a non-positive amount", func() {
			err := validator.ValidateRecord(
				Vendor{Name: "Utility Co"},
				Bill{Amount: -1, TransactionDate: NewDate(2024, time.May, 1)},
			)
			Expect(errors.Is(err, ErrInvalidAmount)).To(BeTrue())
		})
	})
})
