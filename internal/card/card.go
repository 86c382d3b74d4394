package card

import (
	"errors"
	"time"

	cardDatamodel "github.com/ortizpassos/trustpay/internal/core/datamodel/card"
)

var ErrNotFound = errors.New("saved card not found")

// SavedCard is the caller-facing view of a tokenized card. The sealed payload never leaves the service.
type SavedCard struct {
	ID              string    `json:"id"`
	Token           string    `json:"token"`
	MaskedNumber    string    `json:"maskedNumber"`
	LastFourDigits  string    `json:"lastFourDigits"`
	CardBrand       string    `json:"cardBrand"`
	CardHolderName  string    `json:"cardHolderName"`
	ExpirationMonth int       `json:"expirationMonth"`
	ExpirationYear  int       `json:"expirationYear"`
	IsDefault       bool      `json:"isDefault"`
	CreatedAt       time.Time `json:"createdAt"`
	UpdatedAt       time.Time `json:"updatedAt"`
}

func FromDataModel(m *cardDatamodel.SavedCard, mask func(string) string) *SavedCard {
	return &SavedCard{
		ID:              m.ID,
		Token:           m.CardToken,
		MaskedNumber:    mask(m.LastFourDigits),
		LastFourDigits:  m.LastFourDigits,
		CardBrand:       m.CardBrand,
		CardHolderName:  m.CardHolderName,
		ExpirationMonth: m.ExpirationMonth,
		ExpirationYear:  m.ExpirationYear,
		IsDefault:       m.IsDefault,
		CreatedAt:       m.CreatedAt,
		UpdatedAt:       m.UpdatedAt,
	}
}

// IsExpired reports whether the card's expiry month lies before now's month.
func IsExpired(month, year int, now time.Time) bool {
	return year < now.Year() || (year == now.Year() && month < int(now.Month()))
}
