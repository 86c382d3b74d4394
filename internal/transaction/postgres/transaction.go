package postgres

import (
	"context"
	stdErrors "errors"
	"fmt"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	transactionDatamodel "github.com/ortizpassos/trustpay/internal/core/datamodel/transaction"
	"github.com/ortizpassos/trustpay/internal/transaction"
)

const createAttempts = 3

type TransactionRepository struct {
	db    *gorm.DB
	clock func() time.Time
}

func NewTransactionRepository(db *gorm.DB) *TransactionRepository {
	return &TransactionRepository{db: db, clock: time.Now}
}

// CreateIfAbsent relies on the unique active_key index: a conflicting insert does nothing
// and the row holding the key is returned instead.
func (r *TransactionRepository) CreateIfAbsent(ctx context.Context, t *transaction.Transaction) (*transaction.Transaction, bool, error) {
	key := t.ActiveKey()
	if key == nil {
		return nil, false, fmt.Errorf("create transaction: status %s is not active", t.Status)
	}

	for attempt := 0; attempt < createAttempts; attempt++ {
		row := transaction.ToDataModel(t)
		res := r.db.WithContext(ctx).
			Clauses(clause.OnConflict{Columns: []clause.Column{{Name: "active_key"}}, DoNothing: true}).
			Create(row)
		if res.Error != nil {
			return nil, false, fmt.Errorf("create transaction: %w", res.Error)
		}
		if res.RowsAffected == 1 {
			return transaction.FromDataModel(row), true, nil
		}

		var existing transactionDatamodel.Transaction
		err := r.db.WithContext(ctx).Where("active_key = ?", *key).First(&existing).Error
		if err == nil {
			return transaction.FromDataModel(&existing), false, nil
		}
		if !stdErrors.Is(err, gorm.ErrRecordNotFound) {
			return nil, false, fmt.Errorf("load active transaction: %w", err)
		}
		// the holder left the active set between our insert and lookup
	}
	return nil, false, fmt.Errorf("create transaction: active key %q kept changing", *key)
}

func (r *TransactionRepository) GetByID(ctx context.Context, id string) (*transaction.Transaction, error) {
	var row transactionDatamodel.Transaction
	err := r.db.WithContext(ctx).Where("id = ?", id).First(&row).Error
	if err != nil {
		if stdErrors.Is(err, gorm.ErrRecordNotFound) {
			return nil, transaction.ErrNotFound
		}
		return nil, fmt.Errorf("get transaction: %w", err)
	}
	return transaction.FromDataModel(&row), nil
}

func (r *TransactionRepository) List(ctx context.Context, filter transaction.Filter) ([]*transaction.Transaction, error) {
	query := r.db.WithContext(ctx).Where("owner_scope = ?", filter.OwnerScope)
	if filter.Status != "" {
		query = query.Where("status = ?", string(filter.Status))
	}
	if filter.PaymentMethod != "" {
		query = query.Where("payment_method = ?", string(filter.PaymentMethod))
	}

	var rows []*transactionDatamodel.Transaction
	err := query.
		Order("created_at DESC").
		Limit(filter.Limit).
		Offset(filter.Offset).
		Find(&rows).Error
	if err != nil {
		return nil, fmt.Errorf("list transactions: %w", err)
	}
	return transaction.FromDataModelSlice(rows), nil
}

// Transition is a compare-and-swap on status: the UPDATE only matches while the row is still in from.
func (r *TransactionRepository) Transition(ctx context.Context, id string, from []transaction.Status, update transaction.Update) (*transaction.Transaction, error) {
	allowed := make([]string, len(from))
	for i, s := range from {
		allowed[i] = string(s)
	}

	var result *transaction.Transaction
	err := r.db.WithContext(ctx).Transaction(func(db *gorm.DB) error {
		var row transactionDatamodel.Transaction
		if err := db.Where("id = ?", id).First(&row).Error; err != nil {
			if stdErrors.Is(err, gorm.ErrRecordNotFound) {
				return transaction.ErrNotFound
			}
			return err
		}

		current := transaction.FromDataModel(&row)
		if !contains(from, current.Status) {
			return transaction.ErrStatusConflict
		}

		update.Apply(current, r.clock().UTC())
		next := transaction.ToDataModel(current)

		res := db.Model(&transactionDatamodel.Transaction{}).
			Where("id = ? AND status IN ?", id, allowed).
			Updates(map[string]interface{}{
				"status":              next.Status,
				"active_key":          next.ActiveKey,
				"recipient_user_id":   next.RecipientUserID,
				"card_brand":          next.CardBrand,
				"card_last_four":      next.CardLastFour,
				"bank_transaction_id": next.BankTransactionID,
				"bank_pix_id":         next.BankPixID,
				"pix_code":            next.PixCode,
				"qr_code_image":       next.QRCodeImage,
				"expires_at":          next.ExpiresAt,
				"gateway_response":    next.GatewayResponse,
				"failure_reason":      next.FailureReason,
				"refund_amount":       next.RefundAmount,
				"refund_reason":       next.RefundReason,
				"refunded_at":         next.RefundedAt,
				"updated_at":          next.UpdatedAt,
			})
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return transaction.ErrStatusConflict
		}

		result = current
		return nil
	})
	if err != nil {
		if stdErrors.Is(err, transaction.ErrNotFound) || stdErrors.Is(err, transaction.ErrStatusConflict) {
			return nil, err
		}
		return nil, fmt.Errorf("transition transaction: %w", err)
	}
	return result, nil
}

func (r *TransactionRepository) FindExpiredPix(ctx context.Context, now time.Time, limit int) ([]*transaction.Transaction, error) {
	if limit <= 0 {
		limit = 100
	}

	var rows []*transactionDatamodel.Transaction
	err := r.db.WithContext(ctx).
		Where("payment_method = ? AND status = ? AND expires_at <= ?", string(transaction.MethodPix), string(transaction.StatusPending), now.UTC()).
		Order("expires_at ASC").
		Limit(limit).
		Find(&rows).Error
	if err != nil {
		return nil, fmt.Errorf("find expired pix: %w", err)
	}
	return transaction.FromDataModelSlice(rows), nil
}

func contains(statuses []transaction.Status, s transaction.Status) bool {
	for _, candidate := range statuses {
		if candidate == s {
			return true
		}
	}
	return false
}

var _ transaction.Repository = (*TransactionRepository)(nil)
