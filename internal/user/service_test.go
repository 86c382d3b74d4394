package user_test

import (
	"context"
	stdErrors "errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"

	"github.com/go-chi/chi"
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	errors "github.com/ortizpassos/trustpay/internal"
	"github.com/ortizpassos/trustpay/internal/transport"
	"github.com/ortizpassos/trustpay/internal/user"
)

type mockUserRepository struct {
	users []*user.User
	err   error
}

func (m *mockUserRepository) find(match func(*user.User) bool) (*user.User, error) {
	if m.err != nil {
		return nil, m.err
	}
	for _, u := range m.users {
		if match(u) {
			cp := *u
			return &cp, nil
		}
	}
	return nil, user.ErrNotFound
}

func (m *mockUserRepository) GetByID(_ context.Context, id string) (*user.User, error) {
	return m.find(func(u *user.User) bool { return u.ID == id })
}

func (m *mockUserRepository) GetByEmail(_ context.Context, email string) (*user.User, error) {
	return m.find(func(u *user.User) bool { return u.Email == email })
}

func (m *mockUserRepository) GetByPixKey(_ context.Context, pixKey string) (*user.User, error) {
	return m.find(func(u *user.User) bool { return u.PixKey != nil && *u.PixKey == pixKey })
}

func (m *mockUserRepository) Create(_ context.Context, u *user.User) error {
	if m.err != nil {
		return m.err
	}
	cp := *u
	m.users = append(m.users, &cp)
	return nil
}

type prefixHasher struct{}

func (prefixHasher) HashPassword(password string) (string, error) {
	return "hashed:" + password, nil
}

func strPtr(s string) *string {
	return &s
}

var _ = Describe("Service", func() {
	var (
		ctx     context.Context
		repo    *mockUserRepository
		service *user.Service
	)

	BeforeEach(func() {
		ctx = context.Background()
		repo = &mockUserRepository{users: []*user.User{
			{ID: "user-1", Email: "ana@example.com", Name: "Ana", PixKey: strPtr("ana@pix"), IsActive: true},
			{ID: "user-2", Email: "bruno@example.com", Name: "Bruno", PixKey: strPtr("+5511999990000"), IsActive: true},
			{ID: "user-3", Email: "former@example.com", Name: "Former", PixKey: strPtr("former@pix"), IsActive: false},
		}}
		service = user.NewService(repo, prefixHasher{}, slog.New(slog.NewTextHandler(io.Discard, nil)))
	})

	Describe("GetByID", func() {
		It("returns the user", func() {
			u, err := service.GetByID(ctx, "user-1")

			Expect(err).ToNot(HaveOccurred())
			Expect(u.Email).To(Equal("ana@example.com"))
		})

		It("maps unknown ids to user not found", func() {
			_, err := service.GetByID(ctx, "user-9")

			Expect(err).To(MatchError(errors.ErrUserNotFound))
		})

		It("wraps storage failures", func() {
			repo.err = stdErrors.New("db down")

			_, err := service.GetByID(ctx, "user-1")

			appErr, ok := errors.IsAppError(err)
			Expect(ok).To(BeTrue())
			Expect(appErr.StatusCode).To(Equal(http.StatusInternalServerError))
		})
	})

	Describe("ResolveRecipient", func() {
		DescribeTable("resolves active users",
			func(userID, pixKey, expected string) {
				id, err := service.ResolveRecipient(ctx, userID, pixKey)

				Expect(err).ToNot(HaveOccurred())
				Expect(id).To(Equal(expected))
			},
			Entry("by id", "user-2", "", "user-2"),
			Entry("by pix key", "", "+5511999990000", "user-2"),
			Entry("id wins over pix key", "user-1", "+5511999990000", "user-1"),
		)

		DescribeTable("reports missing recipients",
			func(userID, pixKey string) {
				_, err := service.ResolveRecipient(ctx, userID, pixKey)

				Expect(err).To(MatchError(errors.ErrUserNotFound))
			},
			Entry("unknown id", "user-9", ""),
			Entry("unknown pix key", "", "nobody@pix"),
			Entry("inactive user", "", "former@pix"),
			Entry("nothing given", "", ""),
		)

		It("passes storage failures through", func() {
			repo.err = stdErrors.New("db down")

			_, err := service.ResolveRecipient(ctx, "user-1", "")

			Expect(err).To(MatchError("db down"))
		})
	})

	Describe("EnsureUser", func() {
		It("creates a new user with a hashed password", func() {
			// When
			u, created, err := service.EnsureUser(ctx, user.CreateUserDTO{
				Email:    " Carla@Example.com ",
				Name:     "Carla",
				Password: "password123",
				PixKey:   "carla@pix",
			})

			// Then
			Expect(err).ToNot(HaveOccurred())
			Expect(created).To(BeTrue())
			Expect(u.Email).To(Equal("carla@example.com"))
			Expect(u.PasswordHash).To(Equal("hashed:password123"))
			Expect(*u.PixKey).To(Equal("carla@pix"))
			Expect(u.IsActive).To(BeTrue())
			Expect(repo.users).To(HaveLen(4))
		})

		It("returns the existing user for a known e-mail", func() {
			u, created, err := service.EnsureUser(ctx, user.CreateUserDTO{
				Email:    "ana@example.com",
				Name:     "Ana",
				Password: "password123",
			})

			Expect(err).ToNot(HaveOccurred())
			Expect(created).To(BeFalse())
			Expect(u.ID).To(Equal("user-1"))
			Expect(repo.users).To(HaveLen(3))
		})

		It("validates input", func() {
			_, _, err := service.EnsureUser(ctx, user.CreateUserDTO{Email: "not-an-email", Name: "X", Password: "short"})

			appErr, ok := errors.IsAppError(err)
			Expect(ok).To(BeTrue())
			Expect(appErr.StatusCode).To(Equal(http.StatusBadRequest))
		})
	})
})

var _ = Describe("Handler", func() {
	var router *chi.Mux

	BeforeEach(func() {
		logger := slog.New(slog.NewTextHandler(io.Discard, nil))
		repo := &mockUserRepository{users: []*user.User{
			{ID: "user-1", Email: "ana@example.com", Name: "Ana", PasswordHash: "hashed:secret", IsActive: true},
		}}
		handler := user.NewHandler(transport.NewBaseHandler(logger), user.NewService(repo, prefixHasher{}, logger))

		router = chi.NewRouter()
		router.Get("/users/me", func(w http.ResponseWriter, r *http.Request) {
			if id := r.Header.Get("X-Test-User"); id != "" {
				r = r.WithContext(errors.ContextWithUserID(r.Context(), id))
			}
			handler.GetCurrentUser(w, r)
		})
	})

	It("returns the current user without the password hash", func() {
		req := httptest.NewRequest(http.MethodGet, "/users/me", nil)
		req.Header.Set("X-Test-User", "user-1")
		w := httptest.NewRecorder()

		router.ServeHTTP(w, req)

		Expect(w.Code).To(Equal(http.StatusOK))
		Expect(w.Body.String()).To(ContainSubstring("ana@example.com"))
		Expect(w.Body.String()).ToNot(ContainSubstring("hashed:secret"))
	})

	It("answers 404 when the token outlived the user", func() {
		req := httptest.NewRequest(http.MethodGet, "/users/me", nil)
		req.Header.Set("X-Test-User", "user-9")
		w := httptest.NewRecorder()

		router.ServeHTTP(w, req)

		Expect(w.Code).To(Equal(http.StatusNotFound))
	})

	It("answers 401 without a user", func() {
		w := httptest.NewRecorder()

		router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/users/me", nil))

		Expect(w.Code).To(Equal(http.StatusUnauthorized))
	})
})
