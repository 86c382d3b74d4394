package transaction

import (
	"context"
	"errors"
	"time"
)

var (
	ErrNotFound       = errors.New("transaction not found")
	ErrStatusConflict = errors.New("transaction status changed concurrently")
)

type Repository interface {
	// CreateIfAbsent inserts t unless another active transaction already holds its active key.
	// In that case it returns the existing transaction and created=false.
	CreateIfAbsent(ctx context.Context, t *Transaction) (stored *Transaction, created bool, err error)
	GetByID(ctx context.Context, id string) (*Transaction, error)
	List(ctx context.Context, filter Filter) ([]*Transaction, error)
	// Transition applies update only while the stored status is one of from.
	// Otherwise it returns ErrStatusConflict and leaves the row untouched.
	Transition(ctx context.Context, id string, from []Status, update Update) (*Transaction, error)
	FindExpiredPix(ctx context.Context, now time.Time, limit int) ([]*Transaction, error)
}
