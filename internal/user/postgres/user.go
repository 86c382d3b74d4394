package user

import (
	"context"
	stdErrors "errors"
	"fmt"

	"gorm.io/gorm"

	userDatamodel "github.com/ortizpassos/trustpay/internal/core/datamodel/user"
	"github.com/ortizpassos/trustpay/internal/user"
)

type Repository struct {
	db *gorm.DB
}

func NewRepository(db *gorm.DB) *Repository {
	return &Repository{db: db}
}

func (r *Repository) GetByID(ctx context.Context, id string) (*user.User, error) {
	return r.first(ctx, "id = ?", id)
}

func (r *Repository) GetByEmail(ctx context.Context, email string) (*user.User, error) {
	return r.first(ctx, "email = ?", email)
}

func (r *Repository) GetByPixKey(ctx context.Context, pixKey string) (*user.User, error) {
	return r.first(ctx, "pix_key = ?", pixKey)
}

func (r *Repository) first(ctx context.Context, query string, arg interface{}) (*user.User, error) {
	var row userDatamodel.User
	if err := r.db.WithContext(ctx).Where(query, arg).First(&row).Error; err != nil {
		if stdErrors.Is(err, gorm.ErrRecordNotFound) {
			return nil, user.ErrNotFound
		}
		return nil, fmt.Errorf("get user: %w", err)
	}
	return user.FromDataModel(&row), nil
}

func (r *Repository) Create(ctx context.Context, u *user.User) error {
	row := user.ToDataModel(u)
	if err := r.db.WithContext(ctx).Create(row).Error; err != nil {
		return fmt.Errorf("create user: %w", err)
	}
	u.CreatedAt = row.CreatedAt
	u.UpdatedAt = row.UpdatedAt
	return nil
}

var _ user.Repository = (*Repository)(nil)
