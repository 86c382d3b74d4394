package auth

import (
	"context"
	stdErrors "errors"
	"log/slog"
	"strings"

	"golang.org/x/crypto/bcrypt"

	errors "github.com/ortizpassos/trustpay/internal"
)

type UserRepository interface {
	GetCredentialsByEmail(ctx context.Context, email string) (*Credentials, error)
	GetCredentialsByID(ctx context.Context, userID string) (*Credentials, error)
}

type Service struct {
	userRepo       UserRepository
	tokenGenerator TokenGenerator
	bcryptCost     int
	logger         *slog.Logger
}

func NewService(userRepo UserRepository, tokenGen TokenGenerator, bcryptCost int, logger *slog.Logger) *Service {
	if bcryptCost == 0 {
		bcryptCost = bcrypt.DefaultCost
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{
		userRepo:       userRepo,
		tokenGenerator: tokenGen,
		bcryptCost:     bcryptCost,
		logger:         logger,
	}
}

// Authenticate checks e-mail and password and issues a token pair.
// Unknown e-mail and wrong password are indistinguishable to the caller.
func (s *Service) Authenticate(ctx context.Context, dto LoginDTO) (AuthTokens, error) {
	if appErr := dto.Validate(); appErr != nil {
		return AuthTokens{}, appErr
	}

	email := strings.ToLower(strings.TrimSpace(dto.Email))
	creds, err := s.userRepo.GetCredentialsByEmail(ctx, email)
	if err != nil {
		if stdErrors.Is(err, ErrNotFound) {
			s.logger.Warn("login rejected", "reason", "unknown_email")
			return AuthTokens{}, errors.ErrInvalidCredentials
		}
		return AuthTokens{}, errors.NewInternalError("failed to load credentials", err)
	}

	if err := bcrypt.CompareHashAndPassword([]byte(creds.PasswordHash), []byte(dto.Password)); err != nil {
		s.logger.Warn("login rejected", "reason", "wrong_password", "user_id", creds.UserID)
		return AuthTokens{}, errors.ErrInvalidCredentials
	}

	if !creds.IsActive {
		return AuthTokens{}, errors.ErrUserInactive
	}

	return s.issue(creds)
}

// RefreshTokens exchanges a refresh token for a new pair if the user is still active.
func (s *Service) RefreshTokens(ctx context.Context, dto RefreshTokenDTO) (AuthTokens, error) {
	if appErr := dto.Validate(); appErr != nil {
		return AuthTokens{}, appErr
	}

	claims, err := s.tokenGenerator.ValidateToken(dto.RefreshToken, TokenTypeRefresh)
	if err != nil {
		return AuthTokens{}, err
	}

	creds, err := s.userRepo.GetCredentialsByID(ctx, claims.UserID)
	if err != nil {
		if stdErrors.Is(err, ErrNotFound) {
			return AuthTokens{}, errors.ErrInvalidToken
		}
		return AuthTokens{}, errors.NewInternalError("failed to load credentials", err)
	}
	if !creds.IsActive {
		return AuthTokens{}, errors.ErrUserInactive
	}

	return s.issue(creds)
}

func (s *Service) ValidateAccessToken(tokenString string) (*Claims, error) {
	return s.tokenGenerator.ValidateToken(tokenString, TokenTypeAccess)
}

func (s *Service) HashPassword(password string) (string, error) {
	return HashPassword(password, s.bcryptCost)
}

func (s *Service) issue(creds *Credentials) (AuthTokens, error) {
	accessToken, err := s.tokenGenerator.GenerateAccessToken(creds.UserID, creds.Email)
	if err != nil {
		return AuthTokens{}, errors.NewInternalError("failed to issue token", err)
	}
	refreshToken, err := s.tokenGenerator.GenerateRefreshToken(creds.UserID, creds.Email)
	if err != nil {
		return AuthTokens{}, errors.NewInternalError("failed to issue token", err)
	}

	s.logger.Info("tokens issued", "user_id", creds.UserID)
	return AuthTokens{
		AccessToken:  accessToken,
		RefreshToken: refreshToken,
		TokenType:    "Bearer",
		ExpiresIn:    int64(s.tokenGenerator.AccessTokenTTL().Seconds()),
	}, nil
}

// HashPassword hashes with the given cost; the seed command uses it without a Service.
func HashPassword(password string, cost int) (string, error) {
	if cost == 0 {
		cost = bcrypt.DefaultCost
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(password), cost)
	if err != nil {
		return "", err
	}
	return string(hash), nil
}
