// Package gateway simulates the acquirer and PIX provider the payment engine talks to.
package gateway

import (
	"context"
	"errors"
	"time"

	"github.com/shopspring/decimal"
)

type Status string

const (
	StatusApproved   Status = "APPROVED"
	StatusDeclined   Status = "DECLINED"
	StatusProcessing Status = "PROCESSING"
	StatusPending    Status = "PENDING"
	StatusExpired    Status = "EXPIRED"
)

var (
	ErrInvalidPixID = errors.New("gateway: pix id must end with a digit")
	ErrInvalidCard  = errors.New("gateway: card number is required")
)

// Gateway is the acquirer/PIX provider boundary. Swapping the simulator for a real
// provider must not require touching the transaction engine.
type Gateway interface {
	AuthorizeCard(ctx context.Context, req CardAuthorization) (*CardResult, error)
	IssuePix(ctx context.Context, req PixRequest) (*PixCharge, error)
	CheckPixStatus(ctx context.Context, bankPixID string) (*PixStatus, error)
}

type CardAuthorization struct {
	OrderID         string
	CardNumber      string
	HolderName      string
	ExpirationMonth int
	ExpirationYear  int
	Amount          decimal.Decimal
	Currency        string
	Installments    int
}

type CardResult struct {
	Status            Status
	BankTransactionID string
	Reason            string
	Diagnostics       map[string]interface{}
}

type PixRequest struct {
	TransactionID string
	OrderID       string
	Amount        decimal.Decimal
	Currency      string
}

type PixCharge struct {
	BankPixID   string
	PixCode     string
	QRCodeImage string
	ExpiresAt   time.Time
	Diagnostics map[string]interface{}
}

type PixStatus struct {
	BankPixID   string
	Status      Status
	Diagnostics map[string]interface{}
}
