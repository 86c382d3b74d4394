package transaction

import (
	"encoding/json"

	"gorm.io/datatypes"

	transactionDatamodel "github.com/ortizpassos/trustpay/internal/core/datamodel/transaction"
	"github.com/ortizpassos/trustpay/internal/installment"
)

func ToDataModel(t *Transaction) *transactionDatamodel.Transaction {
	m := &transactionDatamodel.Transaction{
		ID:                t.ID,
		OrderID:           t.OrderID,
		OwnerScope:        t.OwnerScope,
		ActiveKey:         t.ActiveKey(),
		UserID:            optional(t.UserID),
		MerchantID:        optional(t.MerchantID),
		RecipientUserID:   optional(t.RecipientUserID),
		RecipientPixKey:   optional(t.RecipientPixKey),
		Amount:            t.Amount,
		BaseAmount:        t.BaseAmount,
		Currency:          t.Currency,
		PaymentMethod:     string(t.PaymentMethod),
		Status:            string(t.Status),
		Description:       optional(t.Description),
		CustomerName:      optional(t.Customer.Name),
		CustomerEmail:     optional(t.Customer.Email),
		CustomerDocument:  optional(t.Customer.Document),
		CardBrand:         optional(t.CardBrand),
		CardLastFour:      optional(t.CardLastFour),
		BankTransactionID: optional(t.BankTransactionID),
		BankPixID:         optional(t.BankPixID),
		PixCode:           optional(t.PixCode),
		QRCodeImage:       optional(t.QRCodeImage),
		ExpiresAt:         t.ExpiresAt,
		FailureReason:     optional(t.FailureReason),
		CreatedAt:         t.CreatedAt,
		UpdatedAt:         t.UpdatedAt,
	}
	if t.Installments != nil {
		if raw, err := json.Marshal(t.Installments); err == nil {
			m.Installments = datatypes.JSON(raw)
		}
	}
	if len(t.GatewayResponse) > 0 {
		m.GatewayResponse = datatypes.JSON(t.GatewayResponse)
	}
	if t.Refund != nil {
		amount := t.Refund.Amount
		refundedAt := t.Refund.RefundedAt
		m.RefundAmount = &amount
		m.RefundReason = optional(t.Refund.Reason)
		m.RefundedAt = &refundedAt
	}
	return m
}

func FromDataModel(m *transactionDatamodel.Transaction) *Transaction {
	t := &Transaction{
		ID:                m.ID,
		OrderID:           m.OrderID,
		OwnerScope:        m.OwnerScope,
		UserID:            deref(m.UserID),
		MerchantID:        deref(m.MerchantID),
		RecipientUserID:   deref(m.RecipientUserID),
		RecipientPixKey:   deref(m.RecipientPixKey),
		Amount:            m.Amount,
		BaseAmount:        m.BaseAmount,
		Currency:          m.Currency,
		PaymentMethod:     Method(m.PaymentMethod),
		Status:            Status(m.Status),
		Description:       deref(m.Description),
		CardBrand:         deref(m.CardBrand),
		CardLastFour:      deref(m.CardLastFour),
		BankTransactionID: deref(m.BankTransactionID),
		BankPixID:         deref(m.BankPixID),
		PixCode:           deref(m.PixCode),
		QRCodeImage:       deref(m.QRCodeImage),
		ExpiresAt:         m.ExpiresAt,
		FailureReason:     deref(m.FailureReason),
		CreatedAt:         m.CreatedAt,
		UpdatedAt:         m.UpdatedAt,
		Customer: Customer{
			Name:     deref(m.CustomerName),
			Email:    deref(m.CustomerEmail),
			Document: deref(m.CustomerDocument),
		},
	}
	if present(m.Installments) {
		var plan installment.Plan
		if err := json.Unmarshal(m.Installments, &plan); err == nil {
			t.Installments = &plan
		}
	}
	if present(m.GatewayResponse) {
		t.GatewayResponse = json.RawMessage(m.GatewayResponse)
	}
	if m.RefundAmount != nil {
		t.Refund = &Refund{Amount: *m.RefundAmount, Reason: deref(m.RefundReason)}
		if m.RefundedAt != nil {
			t.Refund.RefundedAt = *m.RefundedAt
		}
	}
	return t
}

func FromDataModelSlice(rows []*transactionDatamodel.Transaction) []*Transaction {
	result := make([]*Transaction, len(rows))
	for i, row := range rows {
		result[i] = FromDataModel(row)
	}
	return result
}

// present treats an empty column and a JSON null the same way.
func present(raw []byte) bool {
	return len(raw) > 0 && string(raw) != "null"
}

func optional(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}
