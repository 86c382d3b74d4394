package installment_test

import (
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	"github.com/shopspring/decimal"

	"github.com/ortizpassos/trustpay/internal/installment"
)

var _ = Describe("Calculator", func() {
	var calc *installment.Calculator

	BeforeEach(func() {
		calc = installment.NewCalculator(installment.DefaultMonthlyRate, installment.DefaultMaxInstallments)
	})

	Context("when paying in a single installment", func() {
		It("should charge the base amount without interest", func() {
			// Given
			amount := decimal.RequireFromString("100.00")

			// When
			plan, err := calc.Calculate(amount, 1)

			// Then
			Expect(err).ToNot(HaveOccurred())
			Expect(plan.Mode).To(Equal(installment.ModeAVista))
			Expect(plan.InterestMonthly.IsZero()).To(BeTrue())
			Expect(plan.TotalWithInterest.Equal(amount)).To(BeTrue())
			Expect(plan.InstallmentValue.Equal(amount)).To(BeTrue())
		})
	})

	Context("when splitting into several installments", func() {
		It("should compound interest monthly and round to cents", func() {
			plan, err := calc.Calculate(decimal.RequireFromString("100"), 3)

			Expect(err).ToNot(HaveOccurred())
			Expect(plan.Mode).To(Equal(installment.ModeParcelado))
			Expect(plan.InterestMonthly.String()).To(Equal("0.03"))
			Expect(plan.TotalWithInterest.StringFixed(2)).To(Equal("109.27"))
			Expect(plan.InstallmentValue.StringFixed(2)).To(Equal("36.42"))
		})

		DescribeTable("totals for common plans",
			func(base string, quantity int, total, value string) {
				plan, err := calc.Calculate(decimal.RequireFromString(base), quantity)
				Expect(err).ToNot(HaveOccurred())
				Expect(plan.TotalWithInterest.StringFixed(2)).To(Equal(total))
				Expect(plan.InstallmentValue.StringFixed(2)).To(Equal(value))
			},
			Entry("2x on 100", "100", 2, "106.09", "53.05"),
			Entry("12x on 1000", "1000", 12, "1425.76", "118.81"),
			Entry("24x on 50", "50", 24, "101.64", "4.24"),
		)
	})

	Context("when the quantity is out of range", func() {
		It("should reject zero and values above the maximum", func() {
			_, err := calc.Calculate(decimal.NewFromInt(100), 0)
			Expect(err).To(HaveOccurred())

			_, err = calc.Calculate(decimal.NewFromInt(100), 25)
			Expect(err).To(HaveOccurred())
		})

		It("should honour a configured maximum", func() {
			small := installment.NewCalculator(0.02, 6)
			_, err := small.Calculate(decimal.NewFromInt(100), 7)
			Expect(err).To(HaveOccurred())
			Expect(small.Max()).To(Equal(6))
		})
	})
})
