package middleware

import (
	"bytes"
	"context"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strconv"
	"strings"
	"time"

	chiMiddleware "github.com/go-chi/chi/middleware"
	"github.com/onsi/ginkgo/v2"
	"github.com/onsi/gomega"

	errors "github.com/ortizpassos/trustpay/internal"
	"github.com/ortizpassos/trustpay/internal/merchant"
	"github.com/ortizpassos/trustpay/internal/transport"
)

type stubCredentialStore struct {
	secrets map[string]string
}

func (s stubCredentialStore) LookupMerchantSecret(_ context.Context, apiKey string) (string, string, bool, error) {
	secret, ok := s.secrets[apiKey]
	if !ok {
		return "", "", false, nil
	}
	return "merchant-" + apiKey, secret, true, nil
}

var _ = ginkgo.Describe("MerchantSignature", func() {
	const (
		apiKey = "mk_test"
		secret = "sk_test_secret"
	)

	var (
		now     time.Time
		handler http.Handler
		seen    struct {
			merchantID string
			body       string
		}
	)

	signed := func(method, path, body string, ts time.Time, key, sigSecret string) *http.Request {
		stamp := strconv.FormatInt(ts.Unix(), 10)
		req := httptest.NewRequest(method, path, strings.NewReader(body))
		req.Header.Set(merchant.HeaderAPIKey, key)
		req.Header.Set(merchant.HeaderTimestamp, stamp)
		req.Header.Set(merchant.HeaderSignature, merchant.Sign(sigSecret, method, path, stamp, []byte(body)))
		return req
	}

	ginkgo.BeforeEach(func() {
		now = time.Date(2026, time.March, 10, 12, 0, 0, 0, time.UTC)
		logger := slog.New(slog.NewTextHandler(io.Discard, nil))
		store := stubCredentialStore{secrets: map[string]string{apiKey: secret}}
		verifier := merchant.NewAuthenticator(store, 300*time.Second, logger).WithClock(func() time.Time { return now })

		seen.merchantID, seen.body = "", ""
		handler = MerchantSignature(verifier, transport.NewBaseHandler(logger))(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			raw, _ := io.ReadAll(r.Body)
			seen.merchantID = errors.MerchantIDFromContext(r.Context())
			seen.body = string(raw)
			w.WriteHeader(http.StatusOK)
		}))
	})

	ginkgo.It("passes a correctly signed request with its body intact", func() {
		// Given
		body := `{"orderId":"o-1","amount":"10.00"}`
		req := signed(http.MethodPost, "/api/merchant/v1/payment-intents", body, now, apiKey, secret)
		w := httptest.NewRecorder()

		// When
		handler.ServeHTTP(w, req)

		// Then
		gomega.Expect(w.Code).To(gomega.Equal(http.StatusOK))
		gomega.Expect(seen.merchantID).To(gomega.Equal("merchant-mk_test"))
		gomega.Expect(seen.body).To(gomega.Equal(body))
	})

	ginkgo.It("ignores the query string when verifying", func() {
		stamp := strconv.FormatInt(now.Unix(), 10)
		req := httptest.NewRequest(http.MethodGet, "/api/merchant/v1/payment-intents?limit=5", nil)
		req.Header.Set(merchant.HeaderAPIKey, apiKey)
		req.Header.Set(merchant.HeaderTimestamp, stamp)
		req.Header.Set(merchant.HeaderSignature, merchant.Sign(secret, http.MethodGet, "/api/merchant/v1/payment-intents", stamp, nil))
		w := httptest.NewRecorder()

		handler.ServeHTTP(w, req)

		gomega.Expect(w.Code).To(gomega.Equal(http.StatusOK))
	})

	ginkgo.DescribeTable("answers 401 with one generic message",
		func(build func() *http.Request) {
			w := httptest.NewRecorder()

			handler.ServeHTTP(w, build())

			gomega.Expect(w.Code).To(gomega.Equal(http.StatusUnauthorized))
			gomega.Expect(w.Body.String()).To(gomega.ContainSubstring("authentication failed"))
			gomega.Expect(seen.merchantID).To(gomega.BeEmpty())
		},
		ginkgo.Entry("tampered body", func() *http.Request {
			req := signed(http.MethodPost, "/p", `{"amount":"10.00"}`, now, apiKey, secret)
			req.Body = io.NopCloser(bytes.NewReader([]byte(`{"amount":"99.00"}`)))
			return req
		}),
		ginkgo.Entry("stale timestamp", func() *http.Request {
			return signed(http.MethodPost, "/p", `{}`, now.Add(-301*time.Second), apiKey, secret)
		}),
		ginkgo.Entry("unknown key", func() *http.Request {
			return signed(http.MethodPost, "/p", `{}`, now, "mk_other", secret)
		}),
		ginkgo.Entry("wrong secret", func() *http.Request {
			return signed(http.MethodPost, "/p", `{}`, now, apiKey, "sk_wrong")
		}),
		ginkgo.Entry("missing headers", func() *http.Request {
			return httptest.NewRequest(http.MethodPost, "/p", strings.NewReader(`{}`))
		}),
	)
})

var _ = ginkgo.Describe("RequestID", func() {
	ginkgo.It("keeps an inbound id and exposes it to chi", func() {
		var got string
		h := RequestID(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			got = chiMiddleware.GetReqID(r.Context())
		}))
		req := httptest.NewRequest(http.MethodGet, "/", nil)
		req.Header.Set(HeaderRequestID, "req-123")
		w := httptest.NewRecorder()

		h.ServeHTTP(w, req)

		gomega.Expect(got).To(gomega.Equal("req-123"))
		gomega.Expect(w.Header().Get(HeaderRequestID)).To(gomega.Equal("req-123"))
	})

	ginkgo.It("generates one when absent", func() {
		h := RequestID(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {}))
		w := httptest.NewRecorder()

		h.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/", nil))

		gomega.Expect(w.Header().Get(HeaderRequestID)).To(gomega.HaveLen(36))
	})
})

var _ = ginkgo.Describe("RecoveryMiddleware", func() {
	ginkgo.It("answers a generic 500 without the panic text", func() {
		logger := slog.New(slog.NewTextHandler(io.Discard, nil))
		h := RecoveryMiddleware(logger)(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {
			panic("secret sk_live_abc leaked")
		}))
		w := httptest.NewRecorder()

		h.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/", nil))

		gomega.Expect(w.Code).To(gomega.Equal(http.StatusInternalServerError))
		gomega.Expect(w.Body.String()).To(gomega.ContainSubstring("INTERNAL_ERROR"))
		gomega.Expect(w.Body.String()).ToNot(gomega.ContainSubstring("sk_live_abc"))
	})
})

var _ = ginkgo.Describe("LoggingMiddleware", func() {
	ginkgo.It("filters card data and credentials from logs", func() {
		// Given
		var buf bytes.Buffer
		logger := slog.New(slog.NewTextHandler(&buf, nil))
		h := LoggingMiddleware(logger)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			raw, _ := io.ReadAll(r.Body)
			gomega.Expect(string(raw)).To(gomega.ContainSubstring("4111111111111111"))
			w.WriteHeader(http.StatusCreated)
			_, _ = w.Write([]byte(`{"status":"APPROVED","lastFourDigits":"1111"}`))
		}))
		req := httptest.NewRequest(http.MethodPost, "/capture",
			strings.NewReader(`{"card":{"cardNumber":"4111111111111111","cvv":"123","cardHolderName":"Ana"}}`))
		req.Header.Set("x-signature", "deadbeef")
		req.Header.Set("Authorization", "Bearer abc")
		w := httptest.NewRecorder()

		// When
		h.ServeHTTP(w, req)

		// Then
		out := buf.String()
		gomega.Expect(w.Code).To(gomega.Equal(http.StatusCreated))
		gomega.Expect(out).ToNot(gomega.ContainSubstring("4111111111111111"))
		gomega.Expect(out).ToNot(gomega.ContainSubstring("deadbeef"))
		gomega.Expect(out).ToNot(gomega.ContainSubstring("Bearer abc"))
		gomega.Expect(out).To(gomega.ContainSubstring("Ana"))
		gomega.Expect(out).To(gomega.ContainSubstring("status_code=201"))
	})

	ginkgo.It("logs only a prefix of large bodies and forwards them whole", func() {
		// Given
		var buf bytes.Buffer
		logger := slog.New(slog.NewTextHandler(&buf, nil))
		payload := `{"description":"` + strings.Repeat("x", 64<<10) + `"}`
		var received int
		h := LoggingMiddleware(logger)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			raw, err := io.ReadAll(r.Body)
			gomega.Expect(err).ToNot(gomega.HaveOccurred())
			gomega.Expect(string(raw)).To(gomega.Equal(payload))
			received = len(raw)
			w.WriteHeader(http.StatusNoContent)
		}))
		req := httptest.NewRequest(http.MethodPost, "/capture", strings.NewReader(payload))
		w := httptest.NewRecorder()

		// When
		h.ServeHTTP(w, req)

		// Then
		gomega.Expect(received).To(gomega.Equal(len(payload)))
		gomega.Expect(buf.String()).To(gomega.ContainSubstring("[TRUNCATED]"))
		gomega.Expect(buf.Len()).To(gomega.BeNumerically("<", maxLoggedBody))
	})

	ginkgo.It("never logs non-JSON bodies verbatim", func() {
		gomega.Expect(filterSensitiveBody([]byte("cardNumber=4111111111111111"))).To(gomega.Equal("[NON-JSON BODY]"))
	})
})

var _ = ginkgo.Describe("CORS", func() {
	ginkgo.It("answers preflight for allowed origins", func() {
		h := CORS("https://shop.example")(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusTeapot)
		}))
		req := httptest.NewRequest(http.MethodOptions, "/api/v1/payments", nil)
		req.Header.Set("Origin", "https://shop.example")
		req.Header.Set("Access-Control-Request-Method", "POST")
		w := httptest.NewRecorder()

		h.ServeHTTP(w, req)

		gomega.Expect(w.Code).To(gomega.Equal(http.StatusNoContent))
		gomega.Expect(w.Header().Get("Access-Control-Allow-Origin")).To(gomega.Equal("https://shop.example"))
		gomega.Expect(w.Header().Get("Access-Control-Allow-Headers")).To(gomega.ContainSubstring("x-signature"))
	})

	ginkgo.It("does not echo unknown origins", func() {
		h := CORS("https://shop.example")(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {}))
		req := httptest.NewRequest(http.MethodGet, "/", nil)
		req.Header.Set("Origin", "https://evil.example")
		w := httptest.NewRecorder()

		h.ServeHTTP(w, req)

		gomega.Expect(w.Header().Get("Access-Control-Allow-Origin")).To(gomega.BeEmpty())
	})
})
