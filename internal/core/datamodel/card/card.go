package card

import "time"

type SavedCard struct {
	ID              string    `gorm:"primaryKey;size:36"`
	UserID          string    `gorm:"column:user_id;size:36;not null;uniqueIndex:idx_saved_cards_user_token;index:idx_saved_cards_one_default,unique,where:is_default = true"`
	CardToken       string    `gorm:"column:card_token;size:64;not null;uniqueIndex:idx_saved_cards_user_token"`
	EncryptedData   string    `gorm:"column:encrypted_data;not null"`
	LastFourDigits  string    `gorm:"column:last_four_digits;size:4;not null"`
	CardBrand       string    `gorm:"column:card_brand;size:16;not null"`
	CardHolderName  string    `gorm:"column:card_holder_name;not null"`
	ExpirationMonth int       `gorm:"column:expiration_month;not null"`
	ExpirationYear  int       `gorm:"column:expiration_year;not null"`
	IsDefault       bool      `gorm:"column:is_default;not null"`
	CreatedAt       time.Time `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt       time.Time `gorm:"column:updated_at;autoUpdateTime"`
}

func (SavedCard) TableName() string {
	return "saved_cards"
}
