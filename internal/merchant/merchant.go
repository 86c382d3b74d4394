package merchant

import (
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"time"

	merchantDatamodel "github.com/ortizpassos/trustpay/internal/core/datamodel/merchant"
)

const (
	keyPrefix    = "mk_"
	secretPrefix = "sk_"
	keyBytes     = 16
	secretBytes  = 32
)

type Merchant struct {
	ID          string    `json:"id"`
	Name        string    `json:"name"`
	MerchantKey string    `json:"merchantKey"`
	IsActive    bool      `json:"isActive"`
	CreatedAt   time.Time `json:"createdAt"`
}

// Credentials is returned exactly once, when a merchant is created.
type Credentials struct {
	Merchant
	Secret string `json:"secret"`
}

func FromDataModel(m *merchantDatamodel.Merchant) *Merchant {
	return &Merchant{
		ID:          m.ID,
		Name:        m.Name,
		MerchantKey: m.MerchantKey,
		IsActive:    m.IsActive,
		CreatedAt:   m.CreatedAt,
	}
}

func generateKey() (string, error) {
	return randomHex(keyPrefix, keyBytes)
}

func generateSecret() (string, error) {
	return randomHex(secretPrefix, secretBytes)
}

func randomHex(prefix string, n int) (string, error) {
	buf := make([]byte, n)
	if _, err := rand.Read(buf); err != nil {
		return "", fmt.Errorf("generate random bytes: %w", err)
	}
	return prefix + hex.EncodeToString(buf), nil
}
