package card_test

import (
	"bytes"
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
	"github.com/ortizpassos/trustpay/internal/card"
	"github.com/ortizpassos/trustpay/internal/transport"
	"github.com/ortizpassos/trustpay/internal/vault"
)

var _ = Describe("Handler", func() {
	var (
		router *chi.Mux
		repo   *mockCardRepository
	)

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

	errorCode := func(w *httptest.ResponseRecorder) string {
		var out struct {
			Error struct {
				Code string `json:"code"`
			} `json:"error"`
		}
		Expect(json.Unmarshal(w.Body.Bytes(), &out)).To(Succeed())
		return out.Error.Code
	}

	BeforeEach(func() {
		logger := slog.New(slog.NewTextHandler(io.Discard, nil))
		repo = newMockCardRepository()
		v, err := vault.New([]byte("0123456789abcdef0123456789abcdef"))
		Expect(err).ToNot(HaveOccurred())
		now := time.Date(2026, time.March, 10, 12, 0, 0, 0, time.UTC)
		service := card.NewService(repo, v, logger, card.WithClock(func() time.Time { return now }))
		handler := card.NewHandler(transport.NewBaseHandler(logger), service)

		router = chi.NewRouter()
		router.Route("/cards", func(r chi.Router) {
			r.Use(func(next http.Handler) http.Handler {
				return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
					if userID := r.Header.Get("X-Test-User"); userID != "" {
						r = r.WithContext(errors.ContextWithUserID(r.Context(), userID))
					}
					next.ServeHTTP(w, r)
				})
			})
			handler.Routes(r)
		})
	})

	doAs := func(userID, method, path string, body interface{}) *httptest.ResponseRecorder {
		var reader io.Reader
		if body != nil {
			raw, _ := json.Marshal(body)
			reader = bytes.NewReader(raw)
		}
		req := httptest.NewRequest(method, path, reader)
		req.Header.Set("X-Test-User", userID)
		w := httptest.NewRecorder()
		router.ServeHTTP(w, req)
		return w
	}

	It("saves a card and never echoes the number", func() {
		// When
		w := doAs("user-1", http.MethodPost, "/cards", saveDTO(visaNumber))

		// Then
		Expect(w.Code).To(Equal(http.StatusCreated))
		Expect(w.Body.String()).ToNot(ContainSubstring("4111 1111"))
		Expect(w.Body.String()).ToNot(ContainSubstring("4111111111111111"))
		Expect(w.Body.String()).ToNot(ContainSubstring("encrypted"))

		var resp card.SaveCardResponse
		Expect(json.Unmarshal(w.Body.Bytes(), &resp)).To(Succeed())
		Expect(resp.AlreadySaved).To(BeFalse())
		Expect(resp.IsDefault).To(BeTrue())
	})

	It("answers 200 when the card was already saved", func() {
		Expect(doAs("user-1", http.MethodPost, "/cards", saveDTO(visaNumber)).Code).To(Equal(http.StatusCreated))

		w := doAs("user-1", http.MethodPost, "/cards", saveDTO(visaNumber))

		Expect(w.Code).To(Equal(http.StatusOK))
		Expect(w.Body.String()).To(ContainSubstring(`"alreadySaved":true`))
	})

	It("rejects an invalid card with the validation envelope", func() {
		w := doAs("user-1", http.MethodPost, "/cards", saveDTO("1234567890123456"))

		Expect(w.Code).To(Equal(http.StatusBadRequest))
		Expect(errorCode(w)).To(Equal(string(errors.ErrCodeValidationFailed)))
	})

	It("lists, renames, switches default and deletes", func() {
		// Given
		var first, second card.SaveCardResponse
		Expect(json.Unmarshal(doAs("user-1", http.MethodPost, "/cards", saveDTO(visaNumber)).Body.Bytes(), &first)).To(Succeed())
		Expect(json.Unmarshal(doAs("user-1", http.MethodPost, "/cards", saveDTO(mastercardNumber)).Body.Bytes(), &second)).To(Succeed())

		// When
		renamed := doAs("user-1", http.MethodPatch, "/cards/"+second.Token, card.UpdateCardDTO{CardHolderName: "Ana Lima"})
		switched := doAs("user-1", http.MethodPost, "/cards/"+second.Token+"/default", nil)
		deleted := doAs("user-1", http.MethodDelete, "/cards/"+first.Token, nil)
		listed := doAs("user-1", http.MethodGet, "/cards", nil)

		// Then
		Expect(renamed.Code).To(Equal(http.StatusOK))
		Expect(renamed.Body.String()).To(ContainSubstring("Ana Lima"))
		Expect(switched.Code).To(Equal(http.StatusOK))
		Expect(deleted.Code).To(Equal(http.StatusNoContent))

		var list card.ListResponse
		Expect(json.Unmarshal(listed.Body.Bytes(), &list)).To(Succeed())
		Expect(list.Cards).To(HaveLen(1))
		Expect(list.Cards[0].Token).To(Equal(second.Token))
		Expect(list.Cards[0].IsDefault).To(BeTrue())
	})

	It("hides other users' cards", func() {
		var saved card.SaveCardResponse
		Expect(json.Unmarshal(doAs("user-1", http.MethodPost, "/cards", saveDTO(visaNumber)).Body.Bytes(), &saved)).To(Succeed())

		w := doAs("user-2", http.MethodDelete, "/cards/"+saved.Token, nil)

		Expect(w.Code).To(Equal(http.StatusNotFound))
		Expect(errorCode(w)).To(Equal(string(errors.ErrCodeCardNotFound)))
	})

	It("requires an authenticated user", func() {
		w := do(http.MethodGet, "/cards", nil)

		Expect(w.Code).To(Equal(http.StatusUnauthorized))
		Expect(errorCode(w)).To(Equal(string(errors.ErrCodeAuthenticationFailed)))
	})
})
