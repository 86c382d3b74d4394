// Package vault encrypts card data at rest and derives deterministic card tokens.
//
// Payloads are AES-256-GCM sealed and encoded as base64(nonce ∥ tag ∥ ciphertext).
// Tokens are derived from the PAN and expiry only, so the same physical card always maps
// to the same token and duplicates are detected without decrypting anything.
package vault

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"crypto/sha256"
	"crypto/subtle"
	"encoding/base64"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/ortizpassos/trustpay/internal/core/common/cardnumber"
)

const (
	KeySize   = 32
	NonceSize = 12
	TagSize   = 16

	tokenPrefix    = "card_"
	tokenHexLength = 32
)

var (
	ErrInvalidKey     = errors.New("vault: encryption key must be exactly 32 bytes")
	ErrInvalidPayload = errors.New("vault: invalid payload")
	ErrDecrypt        = errors.New("vault: decryption failed")
)

// Card is the clear-text card data the vault protects.
type Card struct {
	Number          string `json:"cardNumber"`
	HolderName      string `json:"cardHolderName"`
	ExpirationMonth int    `json:"expirationMonth"`
	ExpirationYear  int    `json:"expirationYear"`
}

// Tokenized is what callers may persist.
type Tokenized struct {
	Token            string
	LastFourDigits   string
	Brand            cardnumber.Brand
	EncryptedPayload string
}

type payload struct {
	Card
	TokenizedAt time.Time `json:"tokenizedAt"`
}

type Vault struct {
	aead  cipher.AEAD
	rand  io.Reader
	clock func() time.Time
}

type Option func(*Vault)

// WithRandom replaces the nonce source. Tests use it to make ciphertexts reproducible.
func WithRandom(r io.Reader) Option {
	return func(v *Vault) { v.rand = r }
}

func WithClock(clock func() time.Time) Option {
	return func(v *Vault) { v.clock = clock }
}

// New builds a vault from a raw 32-byte key. Any other length is a configuration error
// and callers are expected to abort startup on it.
func New(key []byte, opts ...Option) (*Vault, error) {
	if len(key) != KeySize {
		return nil, ErrInvalidKey
	}

	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, fmt.Errorf("vault: create cipher: %w", err)
	}

	aead, err := cipher.NewGCMWithNonceSize(block, NonceSize)
	if err != nil {
		return nil, fmt.Errorf("vault: create gcm: %w", err)
	}

	v := &Vault{
		aead:  aead,
		rand:  rand.Reader,
		clock: time.Now,
	}
	for _, opt := range opts {
		opt(v)
	}
	return v, nil
}

// Encrypt seals plaintext with a fresh nonce.
func (v *Vault) Encrypt(plaintext string) (string, error) {
	nonce := make([]byte, NonceSize)
	if _, err := io.ReadFull(v.rand, nonce); err != nil {
		return "", fmt.Errorf("vault: read nonce: %w", err)
	}

	// gcm appends the tag after the ciphertext; the wire format wants it first
	sealed := v.aead.Seal(nil, nonce, []byte(plaintext), nil)
	ciphertext := sealed[:len(sealed)-TagSize]
	tag := sealed[len(sealed)-TagSize:]

	out := make([]byte, 0, NonceSize+TagSize+len(ciphertext))
	out = append(out, nonce...)
	out = append(out, tag...)
	out = append(out, ciphertext...)

	return base64.StdEncoding.EncodeToString(out), nil
}

// Decrypt opens a payload produced by Encrypt. Tampering or a wrong key returns ErrDecrypt and no plaintext.
func (v *Vault) Decrypt(encoded string) (string, error) {
	raw, err := base64.StdEncoding.Strict().DecodeString(encoded)
	if err != nil {
		return "", ErrInvalidPayload
	}
	if len(raw) < NonceSize+TagSize {
		return "", ErrInvalidPayload
	}

	nonce := raw[:NonceSize]
	tag := raw[NonceSize : NonceSize+TagSize]
	ciphertext := raw[NonceSize+TagSize:]

	sealed := make([]byte, 0, len(ciphertext)+TagSize)
	sealed = append(sealed, ciphertext...)
	sealed = append(sealed, tag...)

	plaintext, err := v.aead.Open(nil, nonce, sealed, nil)
	if err != nil {
		return "", ErrDecrypt
	}
	return string(plaintext), nil
}

// Tokenize derives the card token and seals the full card data for later capture.
func (v *Vault) Tokenize(card Card) (*Tokenized, error) {
	card.Number = cardnumber.Normalize(card.Number)
	card.ExpirationYear = NormalizeYear(card.ExpirationYear)

	data, err := json.Marshal(payload{Card: card, TokenizedAt: v.clock().UTC()})
	if err != nil {
		return nil, fmt.Errorf("vault: marshal card: %w", err)
	}

	encrypted, err := v.Encrypt(string(data))
	if err != nil {
		return nil, err
	}

	return &Tokenized{
		Token:            Token(card.Number, card.ExpirationMonth, card.ExpirationYear),
		LastFourDigits:   cardnumber.LastFour(card.Number),
		Brand:            cardnumber.Classify(card.Number),
		EncryptedPayload: encrypted,
	}, nil
}

// Detokenize recovers the card sealed by Tokenize.
func (v *Vault) Detokenize(encryptedPayload string) (*Card, error) {
	plaintext, err := v.Decrypt(encryptedPayload)
	if err != nil {
		return nil, err
	}

	var p payload
	if err := json.Unmarshal([]byte(plaintext), &p); err != nil {
		return nil, ErrInvalidPayload
	}
	return &p.Card, nil
}

// MaskForDisplay hides everything but the last four digits.
func (v *Vault) MaskForDisplay(pan string) string {
	return cardnumber.Mask(pan)
}

// SameCard recomputes the deterministic token and compares it without touching any ciphertext.
func (v *Vault) SameCard(pan string, month, year int, token string) bool {
	expected := Token(cardnumber.Normalize(pan), month, NormalizeYear(year))
	return subtle.ConstantTimeCompare([]byte(expected), []byte(token)) == 1
}

// Token is "card_" followed by the first 32 hex chars of SHA-256("PAN:MM:YYYY").
func Token(pan string, month, year int) string {
	sum := sha256.Sum256([]byte(fmt.Sprintf("%s:%02d:%04d", pan, month, year)))
	return tokenPrefix + hex.EncodeToString(sum[:])[:tokenHexLength]
}

// NormalizeYear expands two-digit years into the 2000s.
func NormalizeYear(year int) int {
	if year >= 0 && year < 100 {
		return 2000 + year
	}
	return year
}
