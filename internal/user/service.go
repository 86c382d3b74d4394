package user

import (
	"context"
	stdErrors "errors"
	"log/slog"

	"github.com/google/uuid"

	errors "github.com/ortizpassos/trustpay/internal"
)

type Repository interface {
	GetByID(ctx context.Context, id string) (*User, error)
	GetByEmail(ctx context.Context, email string) (*User, error)
	GetByPixKey(ctx context.Context, pixKey string) (*User, error)
	Create(ctx context.Context, u *User) error
}

// PasswordHasher is satisfied by the auth service.
type PasswordHasher interface {
	HashPassword(password string) (string, error)
}

type Service struct {
	repo   Repository
	hasher PasswordHasher
	logger *slog.Logger
}

func NewService(repo Repository, hasher PasswordHasher, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{
		repo:   repo,
		hasher: hasher,
		logger: logger,
	}
}

func (s *Service) GetByID(ctx context.Context, userID string) (*User, error) {
	u, err := s.repo.GetByID(ctx, userID)
	if err != nil {
		if stdErrors.Is(err, ErrNotFound) {
			return nil, errors.ErrUserNotFound
		}
		return nil, errors.NewInternalError("failed to get user", err)
	}
	return u, nil
}

// ResolveRecipient finds an active user by id, or by PIX key when no id is given.
// Unknown and inactive users are both errors.ErrUserNotFound.
func (s *Service) ResolveRecipient(ctx context.Context, userID, pixKey string) (string, error) {
	var (
		u   *User
		err error
	)
	switch {
	case userID != "":
		u, err = s.repo.GetByID(ctx, userID)
	case pixKey != "":
		u, err = s.repo.GetByPixKey(ctx, pixKey)
	default:
		return "", errors.ErrUserNotFound
	}

	if err != nil {
		if stdErrors.Is(err, ErrNotFound) {
			return "", errors.ErrUserNotFound
		}
		return "", err
	}
	if !u.IsActive {
		return "", errors.ErrUserNotFound
	}
	return u.ID, nil
}

// EnsureUser creates the user unless the e-mail is already taken, in which case the stored user is returned.
func (s *Service) EnsureUser(ctx context.Context, dto CreateUserDTO) (*User, bool, error) {
	dto.Normalize()
	if appErr := dto.Validate(); appErr != nil {
		return nil, false, appErr
	}

	existing, err := s.repo.GetByEmail(ctx, dto.Email)
	if err == nil {
		return existing, false, nil
	}
	if !stdErrors.Is(err, ErrNotFound) {
		return nil, false, errors.NewInternalError("failed to look up user", err)
	}

	hash, err := s.hasher.HashPassword(dto.Password)
	if err != nil {
		return nil, false, errors.NewInternalError("failed to hash password", err)
	}

	u := &User{
		ID:           uuid.NewString(),
		Email:        dto.Email,
		Name:         dto.Name,
		PasswordHash: hash,
		IsActive:     true,
	}
	if dto.PixKey != "" {
		pixKey := dto.PixKey
		u.PixKey = &pixKey
	}

	if err := s.repo.Create(ctx, u); err != nil {
		return nil, false, errors.NewInternalError("failed to create user", err)
	}

	s.logger.Info("user created", "user_id", u.ID)
	return u, true, nil
}
