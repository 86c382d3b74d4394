package transaction

import (
	"encoding/json"
	"time"

	"github.com/shopspring/decimal"

	"github.com/ortizpassos/trustpay/internal/installment"
)

type Status string

const (
	StatusPending    Status = "PENDING"
	StatusProcessing Status = "PROCESSING"
	StatusApproved   Status = "APPROVED"
	StatusDeclined   Status = "DECLINED"
	StatusFailed     Status = "FAILED"
	StatusExpired    Status = "EXPIRED"
	StatusRefunded   Status = "REFUNDED"
)

// IsActive reports whether the status still claims its order id for idempotent creation.
func (s Status) IsActive() bool {
	return s == StatusPending || s == StatusProcessing || s == StatusApproved
}

func (s Status) IsTerminal() bool {
	switch s {
	case StatusDeclined, StatusFailed, StatusExpired, StatusRefunded:
		return true
	}
	return false
}

type Method string

const (
	MethodCreditCard       Method = "credit_card"
	MethodPix              Method = "pix"
	MethodInternalTransfer Method = "internal_transfer"
)

var (
	Methods    = []string{string(MethodCreditCard), string(MethodPix), string(MethodInternalTransfer)}
	Currencies = []string{"BRL", "USD", "EUR"}
)

// Owner identifies who initiated a transaction. Exactly one field is set.
type Owner struct {
	UserID     string
	MerchantID string
}

func UserOwner(userID string) Owner {
	return Owner{UserID: userID}
}

func MerchantOwner(merchantID string) Owner {
	return Owner{MerchantID: merchantID}
}

func (o Owner) Scope() string {
	if o.MerchantID != "" {
		return "merchant:" + o.MerchantID
	}
	return "user:" + o.UserID
}

func (o Owner) IsMerchant() bool {
	return o.MerchantID != ""
}

func (o Owner) Valid() bool {
	return (o.UserID == "") != (o.MerchantID == "")
}

// ActiveKey is the unique claim an active transaction holds on its order id.
func ActiveKey(ownerScope, orderID string) string {
	return ownerScope + ":" + orderID
}

type Customer struct {
	Name     string `json:"name,omitempty"`
	Email    string `json:"email,omitempty"`
	Document string `json:"document,omitempty"`
}

type Refund struct {
	Amount     decimal.Decimal `json:"amount"`
	Reason     string          `json:"reason,omitempty"`
	RefundedAt time.Time       `json:"refundedAt"`
}

type Transaction struct {
	ID                string            `json:"id"`
	OrderID           string            `json:"orderId"`
	OwnerScope        string            `json:"-"`
	UserID            string            `json:"userId,omitempty"`
	MerchantID        string            `json:"merchantId,omitempty"`
	RecipientUserID   string            `json:"recipientUserId,omitempty"`
	RecipientPixKey   string            `json:"recipientPixKey,omitempty"`
	Amount            decimal.Decimal   `json:"amount"`
	BaseAmount        *decimal.Decimal  `json:"baseAmount,omitempty"`
	Currency          string            `json:"currency"`
	PaymentMethod     Method            `json:"paymentMethod"`
	Status            Status            `json:"status"`
	Description       string            `json:"description,omitempty"`
	Customer          Customer          `json:"customer"`
	CardBrand         string            `json:"cardBrand,omitempty"`
	CardLastFour      string            `json:"cardLastFour,omitempty"`
	Installments      *installment.Plan `json:"installments,omitempty"`
	BankTransactionID string            `json:"bankTransactionId,omitempty"`
	BankPixID         string            `json:"bankPixId,omitempty"`
	PixCode           string            `json:"pixCode,omitempty"`
	QRCodeImage       string            `json:"qrCodeImage,omitempty"`
	ExpiresAt         *time.Time        `json:"expiresAt,omitempty"`
	GatewayResponse   json.RawMessage   `json:"-"`
	FailureReason     string            `json:"failureReason,omitempty"`
	Refund            *Refund           `json:"refund,omitempty"`
	CreatedAt         time.Time         `json:"createdAt"`
	UpdatedAt         time.Time         `json:"updatedAt"`
}

func (t *Transaction) Owner() Owner {
	return Owner{UserID: t.UserID, MerchantID: t.MerchantID}
}

func (t *Transaction) OwnedBy(o Owner) bool {
	return t.OwnerScope == o.Scope()
}

// ActiveKey is nil once the transaction leaves the active set.
func (t *Transaction) ActiveKey() *string {
	if !t.Status.IsActive() {
		return nil
	}
	key := ActiveKey(t.OwnerScope, t.OrderID)
	return &key
}

// HasLivePix reports whether PIX artifacts were issued and have not expired at now.
func (t *Transaction) HasLivePix(now time.Time) bool {
	return t.BankPixID != "" && t.PixCode != "" && t.ExpiresAt != nil && now.Before(*t.ExpiresAt)
}

// Update is applied together with a status transition. Nil fields are left untouched.
type Update struct {
	Status            Status
	BankTransactionID *string
	BankPixID         *string
	PixCode           *string
	QRCodeImage       *string
	ExpiresAt         *time.Time
	GatewayResponse   json.RawMessage
	FailureReason     *string
	CardBrand         *string
	CardLastFour      *string
	RecipientUserID   *string
	Refund            *Refund
}

// Apply copies the update onto t. Stores use it so both backends agree on field semantics.
func (u Update) Apply(t *Transaction, now time.Time) {
	t.Status = u.Status
	if u.BankTransactionID != nil {
		t.BankTransactionID = *u.BankTransactionID
	}
	if u.BankPixID != nil {
		t.BankPixID = *u.BankPixID
	}
	if u.PixCode != nil {
		t.PixCode = *u.PixCode
	}
	if u.QRCodeImage != nil {
		t.QRCodeImage = *u.QRCodeImage
	}
	if u.ExpiresAt != nil {
		exp := *u.ExpiresAt
		t.ExpiresAt = &exp
	}
	if u.GatewayResponse != nil {
		t.GatewayResponse = u.GatewayResponse
	}
	if u.FailureReason != nil {
		t.FailureReason = *u.FailureReason
	}
	if u.CardBrand != nil {
		t.CardBrand = *u.CardBrand
	}
	if u.CardLastFour != nil {
		t.CardLastFour = *u.CardLastFour
	}
	if u.RecipientUserID != nil {
		t.RecipientUserID = *u.RecipientUserID
	}
	if u.Refund != nil {
		r := *u.Refund
		t.Refund = &r
	}
	t.UpdatedAt = now
}

type Filter struct {
	OwnerScope    string
	Status        Status
	PaymentMethod Method
	Limit         int
	Offset        int
}

func strPtr(s string) *string {
	return &s
}
