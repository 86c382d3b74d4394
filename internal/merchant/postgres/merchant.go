package postgres

import (
	"context"
	stdErrors "errors"
	"fmt"

	"gorm.io/gorm"

	merchantDatamodel "github.com/ortizpassos/trustpay/internal/core/datamodel/merchant"
	"github.com/ortizpassos/trustpay/internal/merchant"
)

type MerchantRepository struct {
	db *gorm.DB
}

func NewMerchantRepository(db *gorm.DB) *MerchantRepository {
	return &MerchantRepository{db: db}
}

func (r *MerchantRepository) Create(ctx context.Context, m *merchantDatamodel.Merchant) error {
	if err := r.db.WithContext(ctx).Create(m).Error; err != nil {
		return fmt.Errorf("create merchant: %w", err)
	}
	return nil
}

func (r *MerchantRepository) GetByKey(ctx context.Context, merchantKey string) (*merchantDatamodel.Merchant, error) {
	var m merchantDatamodel.Merchant
	err := r.db.WithContext(ctx).Where("merchant_key = ?", merchantKey).First(&m).Error
	if err != nil {
		if stdErrors.Is(err, gorm.ErrRecordNotFound) {
			return nil, merchant.ErrMerchantNotFound
		}
		return nil, fmt.Errorf("get merchant by key: %w", err)
	}
	return &m, nil
}

func (r *MerchantRepository) GetByID(ctx context.Context, id string) (*merchantDatamodel.Merchant, error) {
	var m merchantDatamodel.Merchant
	err := r.db.WithContext(ctx).Where("id = ?", id).First(&m).Error
	if err != nil {
		if stdErrors.Is(err, gorm.ErrRecordNotFound) {
			return nil, merchant.ErrMerchantNotFound
		}
		return nil, fmt.Errorf("get merchant: %w", err)
	}
	return &m, nil
}

func (r *MerchantRepository) SetActive(ctx context.Context, id string, active bool) error {
	return r.db.WithContext(ctx).Model(&merchantDatamodel.Merchant{}).
		Where("id = ?", id).
		Update("is_active", active).Error
}

var _ merchant.Repository = (*MerchantRepository)(nil)
