package transaction

import (
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	errors "github.com/ortizpassos/trustpay/internal"
	"github.com/ortizpassos/trustpay/internal/core/common/cardnumber"
	"github.com/ortizpassos/trustpay/internal/core/common/validation"
	"github.com/ortizpassos/trustpay/internal/vault"
)

type CreateIntentDTO struct {
	OrderID         string          `json:"orderId"`
	Amount          decimal.Decimal `json:"amount"`
	Currency        string          `json:"currency"`
	PaymentMethod   string          `json:"paymentMethod"`
	Installments    *int            `json:"installments,omitempty"`
	Description     string          `json:"description,omitempty"`
	Customer        Customer        `json:"customer"`
	RecipientUserID string          `json:"recipientUserId,omitempty"`
	RecipientPixKey string          `json:"recipientPixKey,omitempty"`
}

func (d *CreateIntentDTO) Normalize() {
	d.OrderID = strings.TrimSpace(d.OrderID)
	d.Currency = strings.ToUpper(strings.TrimSpace(d.Currency))
	d.PaymentMethod = strings.ToLower(strings.TrimSpace(d.PaymentMethod))
	d.RecipientUserID = strings.TrimSpace(d.RecipientUserID)
	d.RecipientPixKey = strings.TrimSpace(d.RecipientPixKey)
}

func (d CreateIntentDTO) Validate(maxInstallments int) *errors.AppError {
	validator := validation.NewValidator()

	validator.Field("orderId", d.OrderID).
		Required().
		MaxLength(128)

	validator.Field("amount", d.Amount).
		Positive(errors.ErrCodeInvalidAmount).
		MaxDecimalPlaces(2, errors.ErrCodeInvalidAmount)

	validator.Field("currency", d.Currency).
		Required().
		OneOf(errors.ErrCodeInvalidCurrency, Currencies...)

	validator.Field("paymentMethod", d.PaymentMethod).
		Required().
		OneOf(errors.ErrCodeInvalidPaymentMethod, Methods...)

	validator.Field("description", d.Description).
		MaxLength(255)

	if d.Installments != nil {
		fv := validator.Field("installments", *d.Installments)
		if Method(d.PaymentMethod) != MethodCreditCard {
			fv.Custom(func(interface{}) *errors.AppError {
				return errors.NewValidationFieldError("installments", "installments are only allowed for credit_card payments", errors.ErrCodeInvalidInstallments)
			})
		}
		fv.MinInt(1, errors.ErrCodeInvalidInstallments).
			MaxInt(int64(maxInstallments), errors.ErrCodeInvalidInstallments)
	}

	if Method(d.PaymentMethod) == MethodInternalTransfer {
		validator.Field("recipient", d.RecipientUserID+d.RecipientPixKey).
			Custom(func(interface{}) *errors.AppError {
				if (d.RecipientUserID == "") == (d.RecipientPixKey == "") {
					return errors.NewValidationFieldError("recipient", "exactly one of recipientUserId or recipientPixKey is required", errors.ErrCodeInvalidRecipient)
				}
				return nil
			})
	} else if d.RecipientUserID != "" || d.RecipientPixKey != "" {
		validator.Field("recipient", d.RecipientUserID+d.RecipientPixKey).
			Custom(func(interface{}) *errors.AppError {
				return errors.NewValidationFieldError("recipient", "recipients are only allowed for internal_transfer payments", errors.ErrCodeInvalidRecipient)
			})
	}

	return validator.Validate()
}

type CardInputDTO struct {
	CardNumber      string `json:"cardNumber"`
	CardHolderName  string `json:"cardHolderName"`
	ExpirationMonth int    `json:"expirationMonth"`
	ExpirationYear  int    `json:"expirationYear"`
	CVV             string `json:"cvv"`
}

func (c CardInputDTO) ToCard() vault.Card {
	return vault.Card{
		Number:          cardnumber.Normalize(c.CardNumber),
		HolderName:      strings.TrimSpace(c.CardHolderName),
		ExpirationMonth: c.ExpirationMonth,
		ExpirationYear:  vault.NormalizeYear(c.ExpirationYear),
	}
}

func (c CardInputDTO) Validate(now time.Time) *errors.AppError {
	validator := validation.NewValidator()
	validator.Field("card.cardHolderName", strings.TrimSpace(c.CardHolderName)).
		Required().
		MaxLength(100)
	validator.Field("card.cvv", c.CVV).
		Required().
		Custom(func(v interface{}) *errors.AppError {
			cvv, _ := v.(string)
			if len(cvv) < 3 || len(cvv) > 4 || strings.Trim(cvv, "0123456789") != "" {
				return errors.NewValidationFieldError("card.cvv", "cvv must have 3 or 4 digits", errors.ErrCodeInvalidCard)
			}
			return nil
		})
	if appErr := validator.Validate(); appErr != nil {
		return appErr
	}
	return ValidateCard(c.ToCard(), now)
}

// ValidateCard checks structure and expiry. It runs before any state change or gateway call.
func ValidateCard(card vault.Card, now time.Time) *errors.AppError {
	if !cardnumber.Valid(card.Number) {
		return errors.NewValidationFieldError("card.cardNumber", "card number is invalid", errors.ErrCodeInvalidCard)
	}
	if card.ExpirationMonth < 1 || card.ExpirationMonth > 12 {
		return errors.NewValidationFieldError("card.expirationMonth", "expiration month must be between 1 and 12", errors.ErrCodeInvalidCard)
	}
	year := vault.NormalizeYear(card.ExpirationYear)
	if year < now.Year() || (year == now.Year() && card.ExpirationMonth < int(now.Month())) {
		return errors.NewValidationFieldError("card.expiration", "card is expired", errors.ErrCodeCardExpired)
	}
	return nil
}

type CaptureDTO struct {
	Card           *CardInputDTO `json:"card,omitempty"`
	SavedCardToken string        `json:"savedCardToken,omitempty"`
	SaveCard       bool          `json:"saveCard,omitempty"`
}

func (d CaptureDTO) Validate() *errors.AppError {
	if (d.Card == nil) == (d.SavedCardToken == "") {
		return errors.NewValidationFieldError("card", "exactly one of card or savedCardToken is required", errors.ErrCodeValidationFailed)
	}
	if d.SavedCardToken != "" && d.SaveCard {
		return errors.NewValidationFieldError("saveCard", "saveCard only applies to a new card", errors.ErrCodeValidationFailed)
	}
	return nil
}

type RefundDTO struct {
	Amount *decimal.Decimal `json:"amount,omitempty"`
	Reason string           `json:"reason,omitempty"`
}

func (d RefundDTO) Validate(charged decimal.Decimal) *errors.AppError {
	if d.Amount == nil {
		return nil
	}
	amount := *d.Amount
	validator := validation.NewValidator()
	validator.Field("amount", amount).
		Positive(errors.ErrCodeInvalidRefundAmount).
		MaxDecimalPlaces(2, errors.ErrCodeInvalidRefundAmount).
		Custom(func(interface{}) *errors.AppError {
			if amount.GreaterThan(charged) {
				return errors.NewValidationFieldError("amount", fmt.Sprintf("amount must not exceed %s", charged.StringFixed(2)), errors.ErrCodeInvalidRefundAmount)
			}
			return nil
		})
	validator.Field("reason", d.Reason).MaxLength(255)
	return validator.Validate()
}

type CancelDTO struct {
	Reason string `json:"reason,omitempty"`
}

type ListQuery struct {
	Status        string
	PaymentMethod string
	Limit         int
	Offset        int
}

func (q ListQuery) Validate() *errors.AppError {
	validator := validation.NewValidator()
	if q.Status != "" {
		validator.Field("status", q.Status).OneOf(errors.ErrCodeValidationFailed,
			string(StatusPending), string(StatusProcessing), string(StatusApproved), string(StatusDeclined),
			string(StatusFailed), string(StatusExpired), string(StatusRefunded))
	}
	if q.PaymentMethod != "" {
		validator.Field("paymentMethod", q.PaymentMethod).OneOf(errors.ErrCodeInvalidPaymentMethod, Methods...)
	}
	return validator.Validate()
}

type IntentResponse struct {
	*Transaction
	Idempotent bool `json:"idempotent"`
}

type PixResponse struct {
	TransactionID string     `json:"transactionId"`
	Status        Status     `json:"status"`
	PixCode       string     `json:"pixCode"`
	QRCodeImage   string     `json:"qrCodeImage"`
	ExpiresAt     *time.Time `json:"expiresAt"`
}

func NewPixResponse(t *Transaction) PixResponse {
	return PixResponse{
		TransactionID: t.ID,
		Status:        t.Status,
		PixCode:       t.PixCode,
		QRCodeImage:   t.QRCodeImage,
		ExpiresAt:     t.ExpiresAt,
	}
}

type StatusResponse struct {
	*Transaction
	Changed bool `json:"changed"`
}

type ListResponse struct {
	Transactions []*Transaction `json:"transactions"`
	Limit        int            `json:"limit"`
	Offset       int            `json:"offset"`
}
