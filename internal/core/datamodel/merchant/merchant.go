package merchant

import "time"

type Merchant struct {
	ID              string    `gorm:"primaryKey;size:36"`
	Name            string    `gorm:"column:name;not null"`
	MerchantKey     string    `gorm:"column:merchant_key;size:64;uniqueIndex;not null"`
	EncryptedSecret string    `gorm:"column:encrypted_secret;not null"`
	IsActive        bool      `gorm:"column:is_active;not null"`
	CreatedAt       time.Time `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt       time.Time `gorm:"column:updated_at;autoUpdateTime"`
}

func (Merchant) TableName() string {
	return "merchants"
}
