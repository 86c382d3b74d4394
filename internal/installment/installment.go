package installment

import (
	"fmt"

	"github.com/shopspring/decimal"
)

type Mode string

const (
	ModeAVista    Mode = "AVISTA"
	ModeParcelado Mode = "PARCELADO"

	DefaultMonthlyRate     = 0.03
	DefaultMaxInstallments = 24
)

// Plan is the pricing of a credit-card charge split into Quantity monthly payments.
type Plan struct {
	Quantity          int             `json:"quantity"`
	InterestMonthly   decimal.Decimal `json:"interestMonthly"`
	TotalWithInterest decimal.Decimal `json:"totalWithInterest"`
	InstallmentValue  decimal.Decimal `json:"installmentValue"`
	Mode              Mode            `json:"mode"`
}

type Calculator struct {
	monthlyRate decimal.Decimal
	max         int
}

func NewCalculator(monthlyRate float64, maxInstallments int) *Calculator {
	if maxInstallments <= 0 {
		maxInstallments = DefaultMaxInstallments
	}
	return &Calculator{
		monthlyRate: decimal.NewFromFloat(monthlyRate),
		max:         maxInstallments,
	}
}

func (c *Calculator) Max() int {
	return c.max
}

// Calculate prices baseAmount over quantity months with compound monthly interest.
// Both totals are rounded half away from zero to two places.
func (c *Calculator) Calculate(baseAmount decimal.Decimal, quantity int) (*Plan, error) {
	if quantity < 1 || quantity > c.max {
		return nil, fmt.Errorf("installments must be between 1 and %d", c.max)
	}

	if quantity == 1 {
		base := baseAmount.Round(2)
		return &Plan{
			Quantity:          1,
			InterestMonthly:   decimal.Zero,
			TotalWithInterest: base,
			InstallmentValue:  base,
			Mode:              ModeAVista,
		}, nil
	}

	factor := decimal.NewFromInt(1).Add(c.monthlyRate).Pow(decimal.NewFromInt(int64(quantity)))
	total := baseAmount.Mul(factor).Round(2)
	value := total.DivRound(decimal.NewFromInt(int64(quantity)), 2)

	return &Plan{
		Quantity:          quantity,
		InterestMonthly:   c.monthlyRate,
		TotalWithInterest: total,
		InstallmentValue:  value,
		Mode:              ModeParcelado,
	}, nil
}
