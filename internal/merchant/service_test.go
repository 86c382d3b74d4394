package merchant_test

import (
	"context"
	"io"
	"log/slog"
	"strings"
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	errors "github.com/ortizpassos/trustpay/internal"
	merchantDatamodel "github.com/ortizpassos/trustpay/internal/core/datamodel/merchant"
	"github.com/ortizpassos/trustpay/internal/merchant"
	"github.com/ortizpassos/trustpay/internal/vault"
)

type mockMerchantRepository struct {
	byKey map[string]*merchantDatamodel.Merchant
}

func newMockMerchantRepository() *mockMerchantRepository {
	return &mockMerchantRepository{byKey: map[string]*merchantDatamodel.Merchant{}}
}

func (m *mockMerchantRepository) Create(_ context.Context, rec *merchantDatamodel.Merchant) error {
	m.byKey[rec.MerchantKey] = rec
	return nil
}

func (m *mockMerchantRepository) GetByKey(_ context.Context, key string) (*merchantDatamodel.Merchant, error) {
	rec, ok := m.byKey[key]
	if !ok {
		return nil, merchant.ErrMerchantNotFound
	}
	return rec, nil
}

func (m *mockMerchantRepository) GetByID(_ context.Context, id string) (*merchantDatamodel.Merchant, error) {
	for _, rec := range m.byKey {
		if rec.ID == id {
			return rec, nil
		}
	}
	return nil, merchant.ErrMerchantNotFound
}

func (m *mockMerchantRepository) SetActive(_ context.Context, id string, active bool) error {
	for _, rec := range m.byKey {
		if rec.ID == id {
			rec.IsActive = active
		}
	}
	return nil
}

var _ = Describe("Service", func() {
	var (
		repo    *mockMerchantRepository
		service *merchant.Service
		ctx     context.Context
	)

	BeforeEach(func() {
		ctx = context.Background()
		v, err := vault.New([]byte("0123456789abcdef0123456789abcdef"))
		Expect(err).ToNot(HaveOccurred())

		repo = newMockMerchantRepository()
		service = merchant.NewService(repo, v, slog.New(slog.NewTextHandler(io.Discard, nil)))
	})

	Describe("Create", func() {
		It("should issue a key and a secret and store only the sealed secret", func() {
			creds, err := service.Create(ctx, "Loja Exemplo")

			Expect(err).ToNot(HaveOccurred())
			Expect(creds.MerchantKey).To(MatchRegexp("^mk_[0-9a-f]{32}$"))
			Expect(creds.Secret).To(MatchRegexp("^sk_[0-9a-f]{64}$"))

			stored := repo.byKey[creds.MerchantKey]
			Expect(stored).ToNot(BeNil())
			Expect(stored.EncryptedSecret).ToNot(ContainSubstring(strings.TrimPrefix(creds.Secret, "sk_")))
		})

		It("should require a name", func() {
			_, err := service.Create(ctx, "  ")

			appErr, ok := errors.IsAppError(err)
			Expect(ok).To(BeTrue())
			Expect(appErr.Type).To(Equal(errors.ErrorTypeValidation))
		})
	})

	Describe("LookupMerchantSecret", func() {
		It("should return the decrypted secret for an active merchant", func() {
			creds, _ := service.Create(ctx, "Loja")

			id, secret, found, err := service.LookupMerchantSecret(ctx, creds.MerchantKey)

			Expect(err).ToNot(HaveOccurred())
			Expect(found).To(BeTrue())
			Expect(id).To(Equal(creds.ID))
			Expect(secret).To(Equal(creds.Secret))
		})

		It("should report unknown and inactive merchants as not found", func() {
			_, _, found, err := service.LookupMerchantSecret(ctx, "mk_nope")
			Expect(err).ToNot(HaveOccurred())
			Expect(found).To(BeFalse())

			creds, _ := service.Create(ctx, "Loja")
			Expect(service.Deactivate(ctx, creds.ID)).To(Succeed())

			_, _, found, err = service.LookupMerchantSecret(ctx, creds.MerchantKey)
			Expect(err).ToNot(HaveOccurred())
			Expect(found).To(BeFalse())
		})
	})

	It("should authenticate requests signed with freshly issued credentials", func() {
		creds, _ := service.Create(ctx, "Loja")
		auth := merchant.NewAuthenticator(service, 0, nil)

		ts := "1700000000"
		auth.WithClock(func() time.Time { return time.Unix(1700000000, 0) })
		id, err := auth.Authenticate(ctx, merchant.SignedRequest{
			Method:    "GET",
			Path:      "/api/merchant/v1/payment-intents",
			APIKey:    creds.MerchantKey,
			Timestamp: ts,
			Signature: merchant.Sign(creds.Secret, "GET", "/api/merchant/v1/payment-intents", ts, nil),
		})

		Expect(err).ToNot(HaveOccurred())
		Expect(id).To(Equal(creds.ID))
	})
})
