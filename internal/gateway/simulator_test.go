package gateway_test

import (
	"context"
	"io"
	"log/slog"
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	"github.com/shopspring/decimal"

	"github.com/ortizpassos/trustpay/internal/gateway"
)

type fixedRNG struct {
	float float64
}

func (r fixedRNG) Float64() float64     { return r.float }
func (r fixedRNG) Int63n(n int64) int64 { return n - 1 }

var _ = Describe("Simulator", func() {
	var (
		sim    *gateway.Simulator
		now    time.Time
		logger *slog.Logger
		ctx    context.Context
	)

	BeforeEach(func() {
		ctx = context.Background()
		now = time.Date(2030, 1, 2, 15, 4, 5, 0, time.UTC)
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
		sim = gateway.NewSimulator(gateway.Config{}, logger,
			gateway.WithClock(func() time.Time { return now }),
			gateway.WithRNG(fixedRNG{float: 0.5}),
		)
	})

	authorize := func(pan string) *gateway.CardResult {
		result, err := sim.AuthorizeCard(ctx, gateway.CardAuthorization{
			OrderID:         "order-1",
			CardNumber:      pan,
			ExpirationMonth: 12,
			ExpirationYear:  2030,
			Amount:          decimal.RequireFromString("10.00"),
			Currency:        "BRL",
			Installments:    1,
		})
		Expect(err).ToNot(HaveOccurred())
		return result
	}

	Describe("AuthorizeCard", func() {
		DescribeTable("test card table",
			func(pan string, status gateway.Status, reason string) {
				result := authorize(pan)
				Expect(result.Status).To(Equal(status))
				Expect(result.Reason).To(Equal(reason))
				Expect(result.Diagnostics).To(HaveKeyWithValue("testCard", true))
			},
			Entry("visa approved", "4111111111111111", gateway.StatusApproved, "approved by issuer"),
			Entry("amex approved", "378282246310005", gateway.StatusApproved, "approved by issuer"),
			Entry("generic decline", "4000000000000002", gateway.StatusDeclined, "card declined"),
			Entry("insufficient funds", "4000000000009995", gateway.StatusDeclined, "insufficient funds"),
			Entry("processing", "4000000000000119", gateway.StatusProcessing, "pending issuer review"),
		)

		It("should always report the brand and masked card", func() {
			result := authorize("5555 5555 5555 4444")

			Expect(result.Diagnostics).To(HaveKeyWithValue("brand", "mastercard"))
			Expect(result.Diagnostics).To(HaveKeyWithValue("card", "••••••••••4444"))
			Expect(result.BankTransactionID).To(HavePrefix("TXN"))
			Expect(result.Diagnostics).To(HaveKey("authorizationCode"))
		})

		Context("when the card is not in the table", func() {
			It("should approve when the draw is under the approval rate", func() {
				Expect(authorize("4012888888881881").Status).To(Equal(gateway.StatusApproved))
			})

			It("should decline when the draw is over the approval rate", func() {
				sim = gateway.NewSimulator(gateway.Config{ApprovalRate: 0.85}, logger, gateway.WithRNG(fixedRNG{float: 0.9}))

				result := authorize("4012888888881881")
				Expect(result.Status).To(Equal(gateway.StatusDeclined))
				Expect(result.Reason).ToNot(BeEmpty())
				Expect(result.Diagnostics).To(HaveKeyWithValue("testCard", false))
			})
		})

		It("should stop waiting when the context is cancelled", func() {
			sim = gateway.NewSimulator(gateway.Config{CardLatencyMin: time.Minute, CardLatencyMax: time.Minute}, logger)
			cancelled, cancel := context.WithCancel(ctx)
			cancel()

			_, err := sim.AuthorizeCard(cancelled, gateway.CardAuthorization{CardNumber: "4111111111111111"})
			Expect(err).To(MatchError(context.Canceled))
		})
	})

	Describe("IssuePix", func() {
		It("should return a code, a png data uri and a 30 minute expiry", func() {
			sim = gateway.NewSimulator(gateway.Config{}, logger,
				gateway.WithClock(func() time.Time { return now }),
				gateway.WithIDGenerator(func() string { return "PIX0000000001" }),
			)

			charge, err := sim.IssuePix(ctx, gateway.PixRequest{
				TransactionID: "tx-1",
				Amount:        decimal.RequireFromString("50.00"),
				Currency:      "BRL",
			})

			Expect(err).ToNot(HaveOccurred())
			Expect(charge.BankPixID).To(Equal("PIX0000000001"))
			Expect(charge.PixCode).To(HavePrefix("000201"))
			Expect(charge.PixCode).To(ContainSubstring("br.gov.bcb.pix"))
			Expect(charge.QRCodeImage).To(HavePrefix("data:image/png;base64,"))
			Expect(charge.ExpiresAt).To(Equal(now.Add(30 * time.Minute)))
		})

		It("should hand out ids ending in a digit by default", func() {
			charge, err := sim.IssuePix(ctx, gateway.PixRequest{Amount: decimal.NewFromInt(1), Currency: "BRL"})
			Expect(err).ToNot(HaveOccurred())
			Expect(charge.BankPixID).To(MatchRegexp(`^PIX\d+$`))
		})
	})

	Describe("CheckPixStatus", func() {
		DescribeTable("outcome by last digit",
			func(id string, status gateway.Status) {
				result, err := sim.CheckPixStatus(ctx, id)
				Expect(err).ToNot(HaveOccurred())
				Expect(result.Status).To(Equal(status))
			},
			Entry("0", "PIX100", gateway.StatusApproved),
			Entry("3", "PIX103", gateway.StatusApproved),
			Entry("4", "PIX104", gateway.StatusPending),
			Entry("6", "PIX106", gateway.StatusPending),
			Entry("7", "PIX107", gateway.StatusDeclined),
			Entry("8", "PIX108", gateway.StatusDeclined),
			Entry("9", "PIX109", gateway.StatusExpired),
		)

		It("should reject ids without a trailing digit", func() {
			_, err := sim.CheckPixStatus(ctx, "PIXabc")
			Expect(err).To(MatchError(gateway.ErrInvalidPixID))

			_, err = sim.CheckPixStatus(ctx, "")
			Expect(err).To(MatchError(gateway.ErrInvalidPixID))
		})
	})
})
