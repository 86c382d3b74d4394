package transaction

import (
	"time"

	"github.com/shopspring/decimal"
	"gorm.io/datatypes"
)

type Transaction struct {
	ID                string           `gorm:"primaryKey;size:36"`
	OrderID           string           `gorm:"column:order_id;size:128;not null;index"`
	OwnerScope        string           `gorm:"column:owner_scope;size:64;not null;index"`
	ActiveKey         *string          `gorm:"column:active_key;size:200;uniqueIndex"`
	UserID            *string          `gorm:"column:user_id;size:36;index"`
	MerchantID        *string          `gorm:"column:merchant_id;size:36;index"`
	RecipientUserID   *string          `gorm:"column:recipient_user_id;size:36"`
	RecipientPixKey   *string          `gorm:"column:recipient_pix_key;size:140"`
	Amount            decimal.Decimal  `gorm:"column:amount;type:numeric(14,2);not null"`
	BaseAmount        *decimal.Decimal `gorm:"column:base_amount;type:numeric(14,2)"`
	Currency          string           `gorm:"column:currency;size:3;not null"`
	PaymentMethod     string           `gorm:"column:payment_method;size:32;not null"`
	Status            string           `gorm:"column:status;size:16;not null;index"`
	Description       *string          `gorm:"column:description"`
	CustomerName      *string          `gorm:"column:customer_name"`
	CustomerEmail     *string          `gorm:"column:customer_email"`
	CustomerDocument  *string          `gorm:"column:customer_document"`
	CardBrand         *string          `gorm:"column:card_brand;size:16"`
	CardLastFour      *string          `gorm:"column:card_last_four;size:4"`
	Installments      datatypes.JSON   `gorm:"column:installments"`
	BankTransactionID *string          `gorm:"column:bank_transaction_id"`
	BankPixID         *string          `gorm:"column:bank_pix_id"`
	PixCode           *string          `gorm:"column:pix_code"`
	QRCodeImage       *string          `gorm:"column:qr_code_image"`
	ExpiresAt         *time.Time       `gorm:"column:expires_at;index"`
	GatewayResponse   datatypes.JSON   `gorm:"column:gateway_response"`
	FailureReason     *string          `gorm:"column:failure_reason"`
	RefundAmount      *decimal.Decimal `gorm:"column:refund_amount;type:numeric(14,2)"`
	RefundReason      *string          `gorm:"column:refund_reason"`
	RefundedAt        *time.Time       `gorm:"column:refunded_at"`
	CreatedAt         time.Time        `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt         time.Time        `gorm:"column:updated_at;autoUpdateTime"`
}

func (Transaction) TableName() string {
	return "transactions"
}
