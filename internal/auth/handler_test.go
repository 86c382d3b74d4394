package auth

import (
	"bytes"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"time"

	"github.com/go-chi/chi"
	"github.com/onsi/ginkgo/v2"
	"github.com/onsi/gomega"
	"golang.org/x/crypto/bcrypt"

	errors "github.com/ortizpassos/trustpay/internal"
	"github.com/ortizpassos/trustpay/internal/transport"
)

var _ = ginkgo.Describe("Handler", func() {
	var (
		router  *chi.Mux
		handler *Handler
	)

	post := func(path string, body interface{}) *httptest.ResponseRecorder {
		raw, err := json.Marshal(body)
		gomega.Expect(err).ToNot(gomega.HaveOccurred())
		req := httptest.NewRequest(http.MethodPost, path, bytes.NewReader(raw))
		w := httptest.NewRecorder()
		router.ServeHTTP(w, req)
		return w
	}

	getMe := func(authorization string) *httptest.ResponseRecorder {
		req := httptest.NewRequest(http.MethodGet, "/me", nil)
		if authorization != "" {
			req.Header.Set("Authorization", authorization)
		}
		w := httptest.NewRecorder()
		router.ServeHTTP(w, req)
		return w
	}

	ginkgo.BeforeEach(func() {
		logger := slog.New(slog.NewTextHandler(io.Discard, nil))
		tokenGen := NewJWTTokenGenerator(testSecret, 15*time.Minute, time.Hour)
		service := NewService(newMockUserRepository(), tokenGen, bcrypt.MinCost, logger)
		handler = NewHandler(transport.NewBaseHandler(logger), service)

		router = chi.NewRouter()
		router.Route("/auth", handler.Routes)
		router.With(handler.AuthMiddleware).Get("/me", func(w http.ResponseWriter, r *http.Request) {
			_, _ = w.Write([]byte(errors.UserIDFromContext(r.Context())))
		})
	})

	ginkgo.It("logs in and authorizes the bearer token", func() {
		// When
		w := post("/auth/login", LoginDTO{Email: "ana@example.com", Password: "correct_password"})

		// Then
		gomega.Expect(w.Code).To(gomega.Equal(http.StatusOK))
		var tokens AuthTokens
		gomega.Expect(json.Unmarshal(w.Body.Bytes(), &tokens)).To(gomega.Succeed())

		me := getMe("Bearer " + tokens.AccessToken)
		gomega.Expect(me.Code).To(gomega.Equal(http.StatusOK))
		gomega.Expect(me.Body.String()).To(gomega.Equal("user-1"))
	})

	ginkgo.It("answers 401 with the error envelope for bad credentials", func() {
		w := post("/auth/login", LoginDTO{Email: "ana@example.com", Password: "nope"})

		gomega.Expect(w.Code).To(gomega.Equal(http.StatusUnauthorized))
		gomega.Expect(w.Body.String()).To(gomega.ContainSubstring(string(errors.ErrCodeInvalidCredentials)))
		gomega.Expect(w.Body.String()).ToNot(gomega.ContainSubstring("nope"))
	})

	ginkgo.It("answers 400 for a missing password", func() {
		w := post("/auth/login", map[string]string{"email": "ana@example.com"})

		gomega.Expect(w.Code).To(gomega.Equal(http.StatusBadRequest))
	})

	ginkgo.It("refreshes tokens", func() {
		var tokens AuthTokens
		gomega.Expect(json.Unmarshal(post("/auth/login", LoginDTO{Email: "ana@example.com", Password: "correct_password"}).Body.Bytes(), &tokens)).To(gomega.Succeed())

		w := post("/auth/refresh", RefreshTokenDTO{RefreshToken: tokens.RefreshToken})

		gomega.Expect(w.Code).To(gomega.Equal(http.StatusOK))
		gomega.Expect(w.Body.String()).To(gomega.ContainSubstring("accessToken"))
	})

	ginkgo.DescribeTable("rejects requests without a usable bearer token",
		func(authorization string) {
			w := getMe(authorization)

			gomega.Expect(w.Code).To(gomega.Equal(http.StatusUnauthorized))
		},
		ginkgo.Entry("no header", ""),
		ginkgo.Entry("wrong scheme", "Basic YW5hOnB3"),
		ginkgo.Entry("garbage token", "Bearer abc.def.ghi"),
	)
})
