package merchant

import (
	"context"
	stdErrors "errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/google/uuid"

	errors "github.com/ortizpassos/trustpay/internal"
	merchantDatamodel "github.com/ortizpassos/trustpay/internal/core/datamodel/merchant"
)

var ErrMerchantNotFound = stdErrors.New("merchant not found")

type Repository interface {
	Create(ctx context.Context, m *merchantDatamodel.Merchant) error
	GetByKey(ctx context.Context, merchantKey string) (*merchantDatamodel.Merchant, error)
	GetByID(ctx context.Context, id string) (*merchantDatamodel.Merchant, error)
	SetActive(ctx context.Context, id string, active bool) error
}

// SecretSealer keeps merchant secrets encrypted at rest.
type SecretSealer interface {
	Encrypt(plaintext string) (string, error)
	Decrypt(encoded string) (string, error)
}

type Service struct {
	repo   Repository
	sealer SecretSealer
	logger *slog.Logger
}

func NewService(repo Repository, sealer SecretSealer, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{
		repo:   repo,
		sealer: sealer,
		logger: logger,
	}
}

// Create registers a merchant and returns its key and secret. The secret is not retrievable afterwards.
func (s *Service) Create(ctx context.Context, name string) (*Credentials, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, errors.NewValidationFieldError("name", "name is required", errors.ErrCodeValidationFailed)
	}

	key, err := generateKey()
	if err != nil {
		return nil, errors.NewInternalError("failed to create merchant", err)
	}
	secret, err := generateSecret()
	if err != nil {
		return nil, errors.NewInternalError("failed to create merchant", err)
	}

	sealed, err := s.sealer.Encrypt(secret)
	if err != nil {
		return nil, errors.NewCryptoError(err)
	}

	record := &merchantDatamodel.Merchant{
		ID:              uuid.NewString(),
		Name:            name,
		MerchantKey:     key,
		EncryptedSecret: sealed,
		IsActive:        true,
	}
	if err := s.repo.Create(ctx, record); err != nil {
		s.logger.Error("failed to create merchant", "error", err, "name", name)
		return nil, errors.NewInternalError("failed to create merchant", err)
	}

	s.logger.Info("merchant created", "merchant_id", record.ID, "merchant_key", record.MerchantKey)

	return &Credentials{
		Merchant: *FromDataModel(record),
		Secret:   secret,
	}, nil
}

// LookupMerchantSecret implements CredentialStore. Inactive merchants are reported as not found.
func (s *Service) LookupMerchantSecret(ctx context.Context, apiKey string) (string, string, bool, error) {
	record, err := s.repo.GetByKey(ctx, apiKey)
	if err != nil {
		if stdErrors.Is(err, ErrMerchantNotFound) {
			return "", "", false, nil
		}
		return "", "", false, fmt.Errorf("lookup merchant: %w", err)
	}
	if !record.IsActive {
		return "", "", false, nil
	}

	secret, err := s.sealer.Decrypt(record.EncryptedSecret)
	if err != nil {
		return "", "", false, fmt.Errorf("unseal merchant secret: %w", err)
	}
	return record.ID, secret, true, nil
}

func (s *Service) Deactivate(ctx context.Context, merchantID string) error {
	if _, err := s.repo.GetByID(ctx, merchantID); err != nil {
		if stdErrors.Is(err, ErrMerchantNotFound) {
			return errors.ErrMerchantNotFound
		}
		return errors.NewInternalError("failed to load merchant", err)
	}
	if err := s.repo.SetActive(ctx, merchantID, false); err != nil {
		return errors.NewInternalError("failed to deactivate merchant", err)
	}
	s.logger.Info("merchant deactivated", "merchant_id", merchantID)
	return nil
}

var _ CredentialStore = (*Service)(nil)
