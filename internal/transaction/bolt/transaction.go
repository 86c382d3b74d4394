// Package bolt stores transactions in an embedded BoltDB file.
//
// Every write runs inside a single bolt Update transaction, which bolt serializes,
// so create-if-absent and status compare-and-swap are atomic without extra locking.
package bolt

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"time"

	bolt "github.com/boltdb/bolt"

	transactionDatamodel "github.com/ortizpassos/trustpay/internal/core/datamodel/transaction"
	"github.com/ortizpassos/trustpay/internal/transaction"
)

var (
	transactionsBucket = []byte("transactions")
	activeKeysBucket   = []byte("active_keys")
)

type TransactionRepository struct {
	db    *bolt.DB
	clock func() time.Time
}

// Open opens (or creates) the database file at path and ensures the buckets exist.
func Open(path string) (*TransactionRepository, error) {
	db, err := bolt.Open(path, 0600, &bolt.Options{Timeout: time.Second})
	if err != nil {
		return nil, fmt.Errorf("open bolt store: %w", err)
	}

	err = db.Update(func(tx *bolt.Tx) error {
		for _, name := range [][]byte{transactionsBucket, activeKeysBucket} {
			if _, err := tx.CreateBucketIfNotExists(name); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("create bolt buckets: %w", err)
	}

	return &TransactionRepository{db: db, clock: time.Now}, nil
}

func (r *TransactionRepository) Close() error {
	return r.db.Close()
}

// Ping reports whether the file is open and the buckets are readable.
func (r *TransactionRepository) Ping(_ context.Context) error {
	return r.db.View(func(tx *bolt.Tx) error {
		if tx.Bucket(transactionsBucket) == nil {
			return errors.New("transactions bucket missing")
		}
		return nil
	})
}

func (r *TransactionRepository) CreateIfAbsent(_ context.Context, t *transaction.Transaction) (*transaction.Transaction, bool, error) {
	key := t.ActiveKey()
	if key == nil {
		return nil, false, fmt.Errorf("create transaction: status %s is not active", t.Status)
	}

	var (
		result  *transaction.Transaction
		created bool
	)
	err := r.db.Update(func(tx *bolt.Tx) error {
		records := tx.Bucket(transactionsBucket)
		active := tx.Bucket(activeKeysBucket)

		if holder := active.Get([]byte(*key)); holder != nil {
			existing, err := decode(records.Get(holder))
			if err != nil {
				return err
			}
			result = existing
			return nil
		}

		if records.Get([]byte(t.ID)) != nil {
			return fmt.Errorf("transaction %s already exists", t.ID)
		}
		if err := put(records, t); err != nil {
			return err
		}
		if err := active.Put([]byte(*key), []byte(t.ID)); err != nil {
			return err
		}
		result = t
		created = true
		return nil
	})
	if err != nil {
		return nil, false, fmt.Errorf("create transaction: %w", err)
	}
	return result, created, nil
}

func (r *TransactionRepository) GetByID(_ context.Context, id string) (*transaction.Transaction, error) {
	var result *transaction.Transaction
	err := r.db.View(func(tx *bolt.Tx) error {
		raw := tx.Bucket(transactionsBucket).Get([]byte(id))
		if raw == nil {
			return transaction.ErrNotFound
		}
		t, err := decode(raw)
		result = t
		return err
	})
	if err != nil {
		return nil, err
	}
	return result, nil
}

// List scans the bucket; the embedded store targets sandbox volumes.
func (r *TransactionRepository) List(_ context.Context, filter transaction.Filter) ([]*transaction.Transaction, error) {
	var matched []*transaction.Transaction
	err := r.db.View(func(tx *bolt.Tx) error {
		return tx.Bucket(transactionsBucket).ForEach(func(_, v []byte) error {
			t, err := decode(v)
			if err != nil {
				return err
			}
			if t.OwnerScope != filter.OwnerScope {
				return nil
			}
			if filter.Status != "" && t.Status != filter.Status {
				return nil
			}
			if filter.PaymentMethod != "" && t.PaymentMethod != filter.PaymentMethod {
				return nil
			}
			matched = append(matched, t)
			return nil
		})
	})
	if err != nil {
		return nil, fmt.Errorf("list transactions: %w", err)
	}

	sort.SliceStable(matched, func(i, j int) bool {
		return matched[i].CreatedAt.After(matched[j].CreatedAt)
	})
	return page(matched, filter.Limit, filter.Offset), nil
}

func (r *TransactionRepository) Transition(_ context.Context, id string, from []transaction.Status, update transaction.Update) (*transaction.Transaction, error) {
	var result *transaction.Transaction
	err := r.db.Update(func(tx *bolt.Tx) error {
		records := tx.Bucket(transactionsBucket)
		active := tx.Bucket(activeKeysBucket)

		raw := records.Get([]byte(id))
		if raw == nil {
			return transaction.ErrNotFound
		}
		current, err := decode(raw)
		if err != nil {
			return err
		}
		if !contains(from, current.Status) {
			return transaction.ErrStatusConflict
		}

		before := current.ActiveKey()
		update.Apply(current, r.clock().UTC())
		if before != nil && current.ActiveKey() == nil {
			// only release the claim if this row still holds it
			if holder := active.Get([]byte(*before)); bytes.Equal(holder, []byte(id)) {
				if err := active.Delete([]byte(*before)); err != nil {
					return err
				}
			}
		}

		if err := put(records, current); err != nil {
			return err
		}
		result = current
		return nil
	})
	if err != nil {
		if errors.Is(err, transaction.ErrNotFound) || errors.Is(err, transaction.ErrStatusConflict) {
			return nil, err
		}
		return nil, fmt.Errorf("transition transaction: %w", err)
	}
	return result, nil
}

func (r *TransactionRepository) FindExpiredPix(_ context.Context, now time.Time, limit int) ([]*transaction.Transaction, error) {
	if limit <= 0 {
		limit = 100
	}

	var overdue []*transaction.Transaction
	err := r.db.View(func(tx *bolt.Tx) error {
		return tx.Bucket(transactionsBucket).ForEach(func(_, v []byte) error {
			t, err := decode(v)
			if err != nil {
				return err
			}
			if t.PaymentMethod == transaction.MethodPix && t.Status == transaction.StatusPending &&
				t.ExpiresAt != nil && !t.ExpiresAt.After(now) {
				overdue = append(overdue, t)
			}
			return nil
		})
	})
	if err != nil {
		return nil, fmt.Errorf("find expired pix: %w", err)
	}

	sort.SliceStable(overdue, func(i, j int) bool {
		return overdue[i].ExpiresAt.Before(*overdue[j].ExpiresAt)
	})
	if len(overdue) > limit {
		overdue = overdue[:limit]
	}
	return overdue, nil
}

func put(b *bolt.Bucket, t *transaction.Transaction) error {
	data, err := json.Marshal(transaction.ToDataModel(t))
	if err != nil {
		return err
	}
	return b.Put([]byte(t.ID), data)
}

func decode(raw []byte) (*transaction.Transaction, error) {
	var row transactionDatamodel.Transaction
	if err := json.Unmarshal(raw, &row); err != nil {
		return nil, fmt.Errorf("decode transaction: %w", err)
	}
	return transaction.FromDataModel(&row), nil
}

func page(items []*transaction.Transaction, limit, offset int) []*transaction.Transaction {
	if offset >= len(items) {
		return []*transaction.Transaction{}
	}
	items = items[offset:]
	if limit > 0 && len(items) > limit {
		items = items[:limit]
	}
	return items
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
