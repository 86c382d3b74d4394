package transaction_test

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"time"

	"github.com/go-chi/chi"
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	errors "github.com/ortizpassos/trustpay/internal"
	"github.com/ortizpassos/trustpay/internal/core/events"
	"github.com/ortizpassos/trustpay/internal/gateway"
	"github.com/ortizpassos/trustpay/internal/installment"
	"github.com/ortizpassos/trustpay/internal/transaction"
	"github.com/ortizpassos/trustpay/internal/transport"
)

var _ = Describe("Handler", func() {
	var (
		router *chi.Mux
		repo   *mockTransactionRepository
		now    time.Time
	)

	withUser := func(userID string) func(http.Handler) http.Handler {
		return func(next http.Handler) http.Handler {
			return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				next.ServeHTTP(w, r.WithContext(errors.ContextWithUserID(r.Context(), userID)))
			})
		}
	}

	withMerchant := func(merchantID string) func(http.Handler) http.Handler {
		return func(next http.Handler) http.Handler {
			return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				next.ServeHTTP(w, r.WithContext(errors.ContextWithMerchantID(r.Context(), merchantID)))
			})
		}
	}

	do := func(method, path string, body interface{}) *httptest.ResponseRecorder {
		var reader io.Reader
		if body != nil {
			raw, err := json.Marshal(body)
			Expect(err).ToNot(HaveOccurred())
			reader = bytes.NewReader(raw)
		}
		req := httptest.NewRequest(method, path, reader)
		w := httptest.NewRecorder()
		router.ServeHTTP(w, req)
		return w
	}

	decode := func(w *httptest.ResponseRecorder) map[string]interface{} {
		var out map[string]interface{}
		Expect(json.Unmarshal(w.Body.Bytes(), &out)).To(Succeed())
		return out
	}

	errorCode := func(w *httptest.ResponseRecorder) string {
		body := decode(w)
		envelope, ok := body["error"].(map[string]interface{})
		Expect(ok).To(BeTrue(), "expected an error envelope in %s", w.Body.String())
		return envelope["code"].(string)
	}

	BeforeEach(func() {
		now = time.Date(2026, time.March, 10, 12, 0, 0, 0, time.UTC)
		clock := func() time.Time { return now }
		logger := slog.New(slog.NewTextHandler(io.Discard, nil))
		repo = newMockTransactionRepository(clock)

		sim := gateway.NewSimulator(gateway.Config{}, logger,
			gateway.WithClock(clock),
			gateway.WithIDGenerator(func() string { return "PIX17731440000000002" }),
		)
		svc := transaction.NewService(repo, sim,
			installment.NewCalculator(installment.DefaultMonthlyRate, installment.DefaultMaxInstallments),
			transaction.Config{}, logger,
			transaction.WithClock(clock),
			transaction.WithRecipientDirectory(&mockRecipientDirectory{byID: map[string]bool{"user-2": true}}),
		)
		handler := transaction.NewHandler(transport.NewBaseHandler(logger), svc)

		router = chi.NewRouter()
		router.Route("/api/v1/payments", func(r chi.Router) {
			r.Use(withUser("user-1"))
			handler.Routes(r, true)
		})
		router.Route("/api/merchant/v1/payment-intents", func(r chi.Router) {
			r.Use(withMerchant("merchant-1"))
			handler.Routes(r, false)
		})
		router.Route("/anonymous", func(r chi.Router) {
			handler.Routes(r, true)
		})
	})

	It("should create an intent and report idempotent repeats with 200", func() {
		// Given
		body := map[string]interface{}{
			"orderId":       "order-1",
			"amount":        "100.00",
			"currency":      "BRL",
			"paymentMethod": "credit_card",
			"installments":  3,
		}

		// When
		first := do(http.MethodPost, "/api/merchant/v1/payment-intents", body)
		second := do(http.MethodPost, "/api/merchant/v1/payment-intents", body)

		// Then
		Expect(first.Code).To(Equal(http.StatusCreated))
		created := decode(first)
		Expect(created["status"]).To(Equal("PENDING"))
		Expect(created["amount"]).To(Equal("109.27"))
		Expect(created["idempotent"]).To(BeFalse())
		Expect(created).ToNot(HaveKey("gatewayResponse"))

		Expect(second.Code).To(Equal(http.StatusOK))
		repeated := decode(second)
		Expect(repeated["id"]).To(Equal(created["id"]))
		Expect(repeated["idempotent"]).To(BeTrue())
	})

	It("should return validation errors in the error envelope", func() {
		w := do(http.MethodPost, "/api/v1/payments", map[string]interface{}{
			"orderId": "order-1", "amount": "10.00", "currency": "XYZ", "paymentMethod": "pix",
		})

		Expect(w.Code).To(Equal(http.StatusBadRequest))
		body := decode(w)
		envelope := body["error"].(map[string]interface{})
		Expect(envelope["code"]).To(Equal("VALIDATION_FAILED"))
		details := envelope["details"].(map[string]interface{})["errors"].([]interface{})
		Expect(details[0].(map[string]interface{})["code"]).To(Equal("INVALID_CURRENCY"))
	})

	It("should reject malformed bodies", func() {
		req := httptest.NewRequest(http.MethodPost, "/api/v1/payments", bytes.NewBufferString("{not json"))
		w := httptest.NewRecorder()

		router.ServeHTTP(w, req)

		Expect(w.Code).To(Equal(http.StatusBadRequest))
	})

	It("should capture a card and never echo the PAN", func() {
		created := decode(do(http.MethodPost, "/api/v1/payments", map[string]interface{}{
			"orderId": "order-1", "amount": "25.00", "currency": "BRL", "paymentMethod": "credit_card",
		}))

		w := do(http.MethodPost, "/api/v1/payments/"+created["id"].(string)+"/capture", map[string]interface{}{
			"card": map[string]interface{}{
				"cardNumber": "4242424242424242", "cardHolderName": "Maria Silva",
				"expirationMonth": 10, "expirationYear": 2031, "cvv": "321",
			},
		})

		Expect(w.Code).To(Equal(http.StatusOK))
		Expect(w.Body.String()).ToNot(ContainSubstring("4242424242424242"))
		captured := decode(w)
		Expect(captured["status"]).To(Equal("APPROVED"))
		Expect(captured["cardLastFour"]).To(Equal("4242"))
	})

	It("should run the PIX flow over HTTP", func() {
		created := decode(do(http.MethodPost, "/api/merchant/v1/payment-intents", map[string]interface{}{
			"orderId": "order-pix", "amount": "50.00", "currency": "BRL", "paymentMethod": "pix",
		}))
		id := created["id"].(string)

		started := do(http.MethodPost, "/api/merchant/v1/payment-intents/"+id+"/pix", nil)
		Expect(started.Code).To(Equal(http.StatusOK))
		pix := decode(started)
		Expect(pix["transactionId"]).To(Equal(id))
		Expect(pix["pixCode"]).To(HavePrefix("000201"))
		Expect(pix["qrCodeImage"]).To(HavePrefix("data:image/png;base64,"))

		polled := do(http.MethodGet, "/api/merchant/v1/payment-intents/"+id+"/status", nil)
		Expect(polled.Code).To(Equal(http.StatusOK))
		status := decode(polled)
		Expect(status["status"]).To(Equal("APPROVED"))
		Expect(status["changed"]).To(BeTrue())
	})

	It("should keep merchants and users apart", func() {
		created := decode(do(http.MethodPost, "/api/merchant/v1/payment-intents", map[string]interface{}{
			"orderId": "order-1", "amount": "10.00", "currency": "BRL", "paymentMethod": "pix",
		}))

		w := do(http.MethodGet, "/api/v1/payments/"+created["id"].(string), nil)

		Expect(w.Code).To(Equal(http.StatusNotFound))
		Expect(errorCode(w)).To(Equal("TRANSACTION_NOT_FOUND"))
	})

	It("should not expose transfers on the merchant API", func() {
		w := do(http.MethodPost, "/api/merchant/v1/payment-intents/any/transfer", nil)

		Expect(w.Code).To(Equal(http.StatusNotFound))
	})

	It("should map state conflicts to 409", func() {
		created := decode(do(http.MethodPost, "/api/v1/payments", map[string]interface{}{
			"orderId": "order-1", "amount": "10.00", "currency": "BRL", "paymentMethod": "credit_card",
		}))

		w := do(http.MethodPost, "/api/v1/payments/"+created["id"].(string)+"/refund", nil)

		Expect(w.Code).To(Equal(http.StatusConflict))
		Expect(errorCode(w)).To(Equal("INVALID_TRANSACTION_STATUS"))
	})

	It("should cancel without a body and settle transfers", func() {
		pending := decode(do(http.MethodPost, "/api/v1/payments", map[string]interface{}{
			"orderId": "order-1", "amount": "10.00", "currency": "BRL", "paymentMethod": "credit_card",
		}))
		cancelled := do(http.MethodPost, "/api/v1/payments/"+pending["id"].(string)+"/cancel", nil)
		Expect(cancelled.Code).To(Equal(http.StatusOK))
		Expect(decode(cancelled)["failureReason"]).To(Equal("cancelled by request"))

		transfer := decode(do(http.MethodPost, "/api/v1/payments", map[string]interface{}{
			"orderId": "t-1", "amount": "10.00", "currency": "BRL", "paymentMethod": "internal_transfer", "recipientUserId": "user-2",
		}))
		settled := do(http.MethodPost, "/api/v1/payments/"+transfer["id"].(string)+"/transfer", nil)
		Expect(settled.Code).To(Equal(http.StatusOK))
		Expect(decode(settled)["status"]).To(Equal("APPROVED"))
	})

	It("should list with pagination params", func() {
		for _, order := range []string{"a", "b", "c"} {
			do(http.MethodPost, "/api/v1/payments", map[string]interface{}{
				"orderId": order, "amount": "10.00", "currency": "BRL", "paymentMethod": "pix",
			})
			now = now.Add(time.Second)
		}

		w := do(http.MethodGet, "/api/v1/payments?limit=2&offset=0&paymentMethod=pix", nil)

		Expect(w.Code).To(Equal(http.StatusOK))
		body := decode(w)
		Expect(body["transactions"]).To(HaveLen(2))
		Expect(body["limit"]).To(BeNumerically("==", 2))
	})

	It("should refuse requests without an authenticated owner", func() {
		w := do(http.MethodGet, "/anonymous", nil)

		Expect(w.Code).To(Equal(http.StatusUnauthorized))
		Expect(errorCode(w)).To(Equal("AUTHENTICATION_FAILED"))
	})
})

var _ = Describe("EventHandler", func() {
	It("should accept transaction events and reject others", func() {
		var buf bytes.Buffer
		handler := transaction.NewEventHandler(slog.New(slog.NewJSONHandler(&buf, nil)))

		err := handler.HandleLifecycleEvent(context.Background(), newApprovedEvent())
		Expect(err).ToNot(HaveOccurred())
		Expect(buf.String()).To(ContainSubstring(`"transaction_id":"tx-9"`))

		err = handler.HandleLifecycleEvent(context.Background(), otherEvent{})
		Expect(err).To(HaveOccurred())
	})
})

type otherEvent struct {
	events.BaseEvent
}

func newApprovedEvent() events.Event {
	return events.NewTransactionEvent(events.EventTypeTransactionApproved, events.TransactionEventInput{
		TransactionID:  "tx-9",
		OrderID:        "order-9",
		OwnerScope:     "merchant:merchant-1",
		PaymentMethod:  "pix",
		Amount:         "50.00",
		Currency:       "BRL",
		PreviousStatus: "PENDING",
		Status:         "APPROVED",
	})
}
