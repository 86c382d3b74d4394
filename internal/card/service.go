package card

import (
	"context"
	stdErrors "errors"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"

	errors "github.com/ortizpassos/trustpay/internal"
	cardDatamodel "github.com/ortizpassos/trustpay/internal/core/datamodel/card"
	"github.com/ortizpassos/trustpay/internal/vault"
)

type Repository interface {
	Create(ctx context.Context, card *cardDatamodel.SavedCard) error
	GetByToken(ctx context.Context, userID, token string) (*cardDatamodel.SavedCard, error)
	ListByUser(ctx context.Context, userID string) ([]*cardDatamodel.SavedCard, error)
	CountByUser(ctx context.Context, userID string) (int64, error)
	UpdateHolder(ctx context.Context, userID, token, holderName, encryptedData string) error
	// SetDefault makes token the user's only default card.
	SetDefault(ctx context.Context, userID, token string) error
	// Delete removes the card and, if it was the default, promotes the most recent remaining card.
	Delete(ctx context.Context, userID, token string) error
	// DeleteExpired removes cards whose expiry month is before (year, month) and repairs defaults.
	DeleteExpired(ctx context.Context, year, month int) (int64, error)
}

// Sealer is the part of the vault the card service needs.
type Sealer interface {
	Tokenize(card vault.Card) (*vault.Tokenized, error)
	Detokenize(encryptedPayload string) (*vault.Card, error)
	MaskForDisplay(pan string) string
}

type Service struct {
	repo   Repository
	sealer Sealer
	clock  func() time.Time
	newID  func() string
	logger *slog.Logger
}

type Option func(*Service)

func WithClock(clock func() time.Time) Option {
	return func(s *Service) { s.clock = clock }
}

func NewService(repo Repository, sealer Sealer, logger *slog.Logger, opts ...Option) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	s := &Service{
		repo:   repo,
		sealer: sealer,
		clock:  time.Now,
		newID:  uuid.NewString,
		logger: logger,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Save tokenizes and stores a card. Saving the same card twice returns the stored one
// with alreadySaved=true; the comparison uses the deterministic token only.
func (s *Service) Save(ctx context.Context, userID string, dto SaveCardDTO) (*SavedCard, bool, error) {
	card := dto.ToCard()
	if appErr := ValidateCard(card, s.clock()); appErr != nil {
		return nil, false, appErr
	}

	saved, existed, err := s.store(ctx, userID, card)
	if err != nil {
		return nil, false, err
	}

	if dto.SetAsDefault && !saved.IsDefault {
		if err := s.repo.SetDefault(ctx, userID, saved.Token); err != nil {
			return nil, false, s.mapRepoError(err, "failed to set default card")
		}
		saved.IsDefault = true
	}

	return saved, existed, nil
}

func (s *Service) store(ctx context.Context, userID string, card vault.Card) (*SavedCard, bool, error) {
	tokenized, err := s.sealer.Tokenize(card)
	if err != nil {
		s.logger.Error("failed to tokenize card", "error", err, "user_id", userID)
		return nil, false, errors.NewCryptoError(err)
	}

	existing, err := s.repo.GetByToken(ctx, userID, tokenized.Token)
	if err == nil {
		return FromDataModel(existing, s.sealer.MaskForDisplay), true, nil
	}
	if !stdErrors.Is(err, ErrNotFound) {
		return nil, false, errors.NewInternalError("failed to look up saved card", err)
	}

	count, err := s.repo.CountByUser(ctx, userID)
	if err != nil {
		return nil, false, errors.NewInternalError("failed to count saved cards", err)
	}

	rec := &cardDatamodel.SavedCard{
		ID:              s.newID(),
		UserID:          userID,
		CardToken:       tokenized.Token,
		EncryptedData:   tokenized.EncryptedPayload,
		LastFourDigits:  tokenized.LastFourDigits,
		CardBrand:       string(tokenized.Brand),
		CardHolderName:  card.HolderName,
		ExpirationMonth: card.ExpirationMonth,
		ExpirationYear:  card.ExpirationYear,
		IsDefault:       count == 0,
	}
	if err := s.repo.Create(ctx, rec); err != nil {
		return nil, false, errors.NewInternalError("failed to save card", err)
	}

	s.logger.Info("card saved",
		"user_id", userID,
		"token", rec.CardToken,
		"brand", rec.CardBrand,
		"last_four", rec.LastFourDigits,
		"default", rec.IsDefault)

	return FromDataModel(rec, s.sealer.MaskForDisplay), false, nil
}

func (s *Service) List(ctx context.Context, userID string) ([]*SavedCard, error) {
	recs, err := s.repo.ListByUser(ctx, userID)
	if err != nil {
		return nil, errors.NewInternalError("failed to list saved cards", err)
	}
	cards := make([]*SavedCard, 0, len(recs))
	for _, rec := range recs {
		cards = append(cards, FromDataModel(rec, s.sealer.MaskForDisplay))
	}
	return cards, nil
}

func (s *Service) SetDefault(ctx context.Context, userID, token string) (*SavedCard, error) {
	if err := s.repo.SetDefault(ctx, userID, token); err != nil {
		return nil, s.mapRepoError(err, "failed to set default card")
	}
	rec, err := s.repo.GetByToken(ctx, userID, token)
	if err != nil {
		return nil, s.mapRepoError(err, "failed to load saved card")
	}
	s.logger.Info("default card changed", "user_id", userID, "token", token)
	return FromDataModel(rec, s.sealer.MaskForDisplay), nil
}

// UpdateHolderName re-seals the payload so the stored holder name and the encrypted copy agree.
func (s *Service) UpdateHolderName(ctx context.Context, userID, token string, dto UpdateCardDTO) (*SavedCard, error) {
	if appErr := dto.Validate(); appErr != nil {
		return nil, appErr
	}

	rec, err := s.repo.GetByToken(ctx, userID, token)
	if err != nil {
		return nil, s.mapRepoError(err, "failed to load saved card")
	}

	card, err := s.sealer.Detokenize(rec.EncryptedData)
	if err != nil {
		s.logger.Error("failed to open saved card", "error", err, "user_id", userID, "token", token)
		return nil, errors.NewCryptoError(err)
	}
	card.HolderName = strings.TrimSpace(dto.CardHolderName)

	tokenized, err := s.sealer.Tokenize(*card)
	if err != nil {
		return nil, errors.NewCryptoError(err)
	}

	if err := s.repo.UpdateHolder(ctx, userID, token, card.HolderName, tokenized.EncryptedPayload); err != nil {
		return nil, s.mapRepoError(err, "failed to update saved card")
	}

	rec.CardHolderName = card.HolderName
	rec.EncryptedData = tokenized.EncryptedPayload
	rec.UpdatedAt = s.clock()
	return FromDataModel(rec, s.sealer.MaskForDisplay), nil
}

func (s *Service) Delete(ctx context.Context, userID, token string) error {
	if err := s.repo.Delete(ctx, userID, token); err != nil {
		return s.mapRepoError(err, "failed to delete saved card")
	}
	s.logger.Info("card deleted", "user_id", userID, "token", token)
	return nil
}

// CleanupExpired deletes every card whose expiry month has passed.
func (s *Service) CleanupExpired(ctx context.Context) (int64, error) {
	now := s.clock()
	deleted, err := s.repo.DeleteExpired(ctx, now.Year(), int(now.Month()))
	if err != nil {
		return 0, errors.NewInternalError("failed to delete expired cards", err)
	}
	if deleted > 0 {
		s.logger.Info("expired cards deleted", "count", deleted)
	}
	return deleted, nil
}

// ResolveCard opens a saved card for capture.
func (s *Service) ResolveCard(ctx context.Context, userID, token string) (*vault.Card, error) {
	rec, err := s.repo.GetByToken(ctx, userID, token)
	if err != nil {
		return nil, s.mapRepoError(err, "failed to load saved card")
	}
	card, err := s.sealer.Detokenize(rec.EncryptedData)
	if err != nil {
		s.logger.Error("failed to open saved card", "error", err, "user_id", userID, "token", token)
		return nil, errors.NewCryptoError(err)
	}
	return card, nil
}

// RememberCard stores a card that was just charged successfully.
func (s *Service) RememberCard(ctx context.Context, userID string, card vault.Card) error {
	_, _, err := s.store(ctx, userID, card)
	return err
}

func (s *Service) mapRepoError(err error, message string) error {
	if stdErrors.Is(err, ErrNotFound) {
		return errors.ErrCardNotFound
	}
	return errors.NewInternalError(message, err)
}
