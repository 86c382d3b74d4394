package events

import (
	"time"

	"github.com/google/uuid"
)

const (
	EventTypeTransactionApproved = "transaction.approved"
	EventTypeTransactionDeclined = "transaction.declined"
	EventTypeTransactionFailed   = "transaction.failed"
	EventTypeTransactionRefunded = "transaction.refunded"
	EventTypeTransactionExpired  = "transaction.expired"
)

// TransactionEventTypes lists every lifecycle event a transaction can emit.
var TransactionEventTypes = []string{
	EventTypeTransactionApproved,
	EventTypeTransactionDeclined,
	EventTypeTransactionFailed,
	EventTypeTransactionRefunded,
	EventTypeTransactionExpired,
}

var statusEventTypes = map[string]string{
	"APPROVED": EventTypeTransactionApproved,
	"DECLINED": EventTypeTransactionDeclined,
	"FAILED":   EventTypeTransactionFailed,
	"REFUNDED": EventTypeTransactionRefunded,
	"EXPIRED":  EventTypeTransactionExpired,
}

// EventTypeForStatus maps a transaction status to its lifecycle event. PENDING and PROCESSING have none.
func EventTypeForStatus(status string) (string, bool) {
	t, ok := statusEventTypes[status]
	return t, ok
}

type TransactionEvent struct {
	BaseEvent
	TransactionID  string `json:"transaction_id"`
	OrderID        string `json:"order_id"`
	OwnerScope     string `json:"owner_scope"`
	PaymentMethod  string `json:"payment_method"`
	Amount         string `json:"amount"`
	Currency       string `json:"currency"`
	PreviousStatus string `json:"previous_status"`
	Status         string `json:"status"`
	Reason         string `json:"reason,omitempty"`
}

type TransactionEventInput struct {
	TransactionID  string
	OrderID        string
	OwnerScope     string
	PaymentMethod  string
	Amount         string
	Currency       string
	PreviousStatus string
	Status         string
	Reason         string
}

func NewTransactionEvent(eventType string, in TransactionEventInput) *TransactionEvent {
	return &TransactionEvent{
		BaseEvent: BaseEvent{
			ID:        uuid.New().String(),
			Type:      eventType,
			Timestamp: time.Now().UTC(),
			Data: map[string]interface{}{
				"transaction_id":  in.TransactionID,
				"order_id":        in.OrderID,
				"owner_scope":     in.OwnerScope,
				"payment_method":  in.PaymentMethod,
				"amount":          in.Amount,
				"currency":        in.Currency,
				"previous_status": in.PreviousStatus,
				"status":          in.Status,
				"reason":          in.Reason,
			},
		},
		TransactionID:  in.TransactionID,
		OrderID:        in.OrderID,
		OwnerScope:     in.OwnerScope,
		PaymentMethod:  in.PaymentMethod,
		Amount:         in.Amount,
		Currency:       in.Currency,
		PreviousStatus: in.PreviousStatus,
		Status:         in.Status,
		Reason:         in.Reason,
	}
}
