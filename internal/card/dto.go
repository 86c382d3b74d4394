package card

import (
	"strings"
	"time"

	errors "github.com/ortizpassos/trustpay/internal"
	"github.com/ortizpassos/trustpay/internal/core/common/cardnumber"
	"github.com/ortizpassos/trustpay/internal/core/common/validation"
	"github.com/ortizpassos/trustpay/internal/vault"
)

type SaveCardDTO struct {
	CardNumber      string `json:"cardNumber"`
	CardHolderName  string `json:"cardHolderName"`
	ExpirationMonth int    `json:"expirationMonth"`
	ExpirationYear  int    `json:"expirationYear"`
	SetAsDefault    bool   `json:"setAsDefault,omitempty"`
}

func (d SaveCardDTO) ToCard() vault.Card {
	return vault.Card{
		Number:          cardnumber.Normalize(d.CardNumber),
		HolderName:      strings.TrimSpace(d.CardHolderName),
		ExpirationMonth: d.ExpirationMonth,
		ExpirationYear:  vault.NormalizeYear(d.ExpirationYear),
	}
}

func (d SaveCardDTO) Validate(now time.Time) *errors.AppError {
	return ValidateCard(d.ToCard(), now)
}

// ValidateCard checks a card before it is sealed: Luhn, expiry and holder name.
func ValidateCard(c vault.Card, now time.Time) *errors.AppError {
	validator := validation.NewValidator()

	validator.Field("cardNumber", c.Number).
		Required().
		Custom(func(v interface{}) *errors.AppError {
			if !cardnumber.Valid(v.(string)) {
				return errors.NewValidationFieldError("cardNumber", "card number is invalid", errors.ErrCodeInvalidCard)
			}
			return nil
		})

	validator.Field("cardHolderName", c.HolderName).
		Required().
		MaxLength(100)

	validator.Field("expirationMonth", c.ExpirationMonth).
		MinInt(1, errors.ErrCodeInvalidCard).
		MaxInt(12, errors.ErrCodeInvalidCard)

	validator.Field("expirationYear", c.ExpirationYear).
		Custom(func(interface{}) *errors.AppError {
			if c.ExpirationMonth >= 1 && c.ExpirationMonth <= 12 && IsExpired(c.ExpirationMonth, c.ExpirationYear, now) {
				return errors.NewValidationFieldError("expirationYear", "card is expired", errors.ErrCodeCardExpired)
			}
			return nil
		})

	return validator.Validate()
}

type UpdateCardDTO struct {
	CardHolderName string `json:"cardHolderName"`
}

func (d UpdateCardDTO) Validate() *errors.AppError {
	validator := validation.NewValidator()
	validator.Field("cardHolderName", strings.TrimSpace(d.CardHolderName)).
		Required().
		MaxLength(100)
	return validator.Validate()
}

type SaveCardResponse struct {
	*SavedCard
	AlreadySaved bool `json:"alreadySaved"`
}

type ListResponse struct {
	Cards []*SavedCard `json:"cards"`
}
