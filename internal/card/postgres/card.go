package postgres

import (
	"context"
	stdErrors "errors"
	"fmt"

	"gorm.io/gorm"

	"github.com/ortizpassos/trustpay/internal/card"
	cardDatamodel "github.com/ortizpassos/trustpay/internal/core/datamodel/card"
)

type CardRepository struct {
	db *gorm.DB
}

func NewCardRepository(db *gorm.DB) *CardRepository {
	return &CardRepository{db: db}
}

func (r *CardRepository) Create(ctx context.Context, rec *cardDatamodel.SavedCard) error {
	if err := r.db.WithContext(ctx).Create(rec).Error; err != nil {
		return fmt.Errorf("create saved card: %w", err)
	}
	return nil
}

func (r *CardRepository) GetByToken(ctx context.Context, userID, token string) (*cardDatamodel.SavedCard, error) {
	return getByToken(r.db.WithContext(ctx), userID, token)
}

func getByToken(db *gorm.DB, userID, token string) (*cardDatamodel.SavedCard, error) {
	var rec cardDatamodel.SavedCard
	err := db.Where("user_id = ? AND card_token = ?", userID, token).First(&rec).Error
	if err != nil {
		if stdErrors.Is(err, gorm.ErrRecordNotFound) {
			return nil, card.ErrNotFound
		}
		return nil, fmt.Errorf("get saved card: %w", err)
	}
	return &rec, nil
}

func (r *CardRepository) ListByUser(ctx context.Context, userID string) ([]*cardDatamodel.SavedCard, error) {
	var recs []*cardDatamodel.SavedCard
	err := r.db.WithContext(ctx).
		Where("user_id = ?", userID).
		Order("is_default DESC").
		Order("created_at DESC").
		Find(&recs).Error
	if err != nil {
		return nil, fmt.Errorf("list saved cards: %w", err)
	}
	return recs, nil
}

func (r *CardRepository) CountByUser(ctx context.Context, userID string) (int64, error) {
	var count int64
	err := r.db.WithContext(ctx).Model(&cardDatamodel.SavedCard{}).Where("user_id = ?", userID).Count(&count).Error
	if err != nil {
		return 0, fmt.Errorf("count saved cards: %w", err)
	}
	return count, nil
}

func (r *CardRepository) UpdateHolder(ctx context.Context, userID, token, holderName, encryptedData string) error {
	res := r.db.WithContext(ctx).Model(&cardDatamodel.SavedCard{}).
		Where("user_id = ? AND card_token = ?", userID, token).
		Updates(map[string]interface{}{
			"card_holder_name": holderName,
			"encrypted_data":   encryptedData,
		})
	if res.Error != nil {
		return fmt.Errorf("update saved card: %w", res.Error)
	}
	if res.RowsAffected == 0 {
		return card.ErrNotFound
	}
	return nil
}

// SetDefault clears the old default before setting the new one so the partial unique index never sees two.
func (r *CardRepository) SetDefault(ctx context.Context, userID, token string) error {
	return r.db.WithContext(ctx).Transaction(func(db *gorm.DB) error {
		if _, err := getByToken(db, userID, token); err != nil {
			return err
		}
		if err := db.Model(&cardDatamodel.SavedCard{}).
			Where("user_id = ? AND is_default = ?", userID, true).
			Update("is_default", false).Error; err != nil {
			return fmt.Errorf("clear default card: %w", err)
		}
		if err := db.Model(&cardDatamodel.SavedCard{}).
			Where("user_id = ? AND card_token = ?", userID, token).
			Update("is_default", true).Error; err != nil {
			return fmt.Errorf("set default card: %w", err)
		}
		return nil
	})
}

func (r *CardRepository) Delete(ctx context.Context, userID, token string) error {
	return r.db.WithContext(ctx).Transaction(func(db *gorm.DB) error {
		rec, err := getByToken(db, userID, token)
		if err != nil {
			return err
		}
		if err := db.Delete(&cardDatamodel.SavedCard{}, "id = ?", rec.ID).Error; err != nil {
			return fmt.Errorf("delete saved card: %w", err)
		}
		if rec.IsDefault {
			return promoteLatest(db, userID)
		}
		return nil
	})
}

func (r *CardRepository) DeleteExpired(ctx context.Context, year, month int) (int64, error) {
	var deleted int64
	err := r.db.WithContext(ctx).Transaction(func(db *gorm.DB) error {
		const expired = "expiration_year < ? OR (expiration_year = ? AND expiration_month < ?)"

		var orphaned []string
		if err := db.Model(&cardDatamodel.SavedCard{}).
			Where(expired, year, year, month).
			Where("is_default = ?", true).
			Pluck("user_id", &orphaned).Error; err != nil {
			return fmt.Errorf("find expired defaults: %w", err)
		}

		res := db.Where(expired, year, year, month).Delete(&cardDatamodel.SavedCard{})
		if res.Error != nil {
			return fmt.Errorf("delete expired cards: %w", res.Error)
		}
		deleted = res.RowsAffected

		for _, userID := range orphaned {
			if err := promoteLatest(db, userID); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return 0, err
	}
	return deleted, nil
}

func promoteLatest(db *gorm.DB, userID string) error {
	var next cardDatamodel.SavedCard
	err := db.Where("user_id = ?", userID).Order("created_at DESC").First(&next).Error
	if stdErrors.Is(err, gorm.ErrRecordNotFound) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("find next default card: %w", err)
	}
	if err := db.Model(&next).Update("is_default", true).Error; err != nil {
		return fmt.Errorf("promote default card: %w", err)
	}
	return nil
}

var _ card.Repository = (*CardRepository)(nil)
