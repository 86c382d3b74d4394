package merchant

import (
	"context"
	"crypto/hmac"
	"encoding/hex"
	"log/slog"
	"strconv"
	"strings"
	"time"

	errors "github.com/ortizpassos/trustpay/internal"
)

const DefaultTolerance = 300 * time.Second

// CredentialStore resolves a public merchant key to the merchant and its signing secret.
type CredentialStore interface {
	LookupMerchantSecret(ctx context.Context, apiKey string) (merchantID, secret string, found bool, err error)
}

// SignedRequest is the part of an inbound request covered by the signature.
type SignedRequest struct {
	Method    string
	Path      string
	APIKey    string
	Timestamp string
	Signature string
	Body      []byte
}

// reason codes only ever reach the logs
const (
	reasonMissingHeaders   = "missing_headers"
	reasonInvalidTimestamp = "invalid_timestamp"
	reasonStaleTimestamp   = "stale_timestamp"
	reasonUnknownKey       = "unknown_key"
	reasonMalformedSig     = "malformed_signature"
	reasonBadSignature     = "signature_mismatch"
)

type Authenticator struct {
	store     CredentialStore
	tolerance time.Duration
	clock     func() time.Time
	logger    *slog.Logger
}

func NewAuthenticator(store CredentialStore, tolerance time.Duration, logger *slog.Logger) *Authenticator {
	if tolerance <= 0 {
		tolerance = DefaultTolerance
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Authenticator{
		store:     store,
		tolerance: tolerance,
		clock:     time.Now,
		logger:    logger,
	}
}

// WithClock swaps the time source used for the replay window.
func (a *Authenticator) WithClock(clock func() time.Time) *Authenticator {
	a.clock = clock
	return a
}

// Authenticate returns the merchant id for a correctly signed, fresh request.
// Every rejection is errors.ErrAuthenticationFailed.
func (a *Authenticator) Authenticate(ctx context.Context, req SignedRequest) (string, error) {
	if req.APIKey == "" || req.Timestamp == "" || req.Signature == "" {
		return "", a.reject(ctx, req, reasonMissingHeaders)
	}

	ts, err := strconv.ParseInt(req.Timestamp, 10, 64)
	if err != nil {
		return "", a.reject(ctx, req, reasonInvalidTimestamp)
	}

	// whole seconds; Duration arithmetic saturates for timestamps centuries away
	now := a.clock().Unix()
	window := int64(a.tolerance / time.Second)
	if ts < now-window || ts > now+window {
		return "", a.reject(ctx, req, reasonStaleTimestamp)
	}

	merchantID, secret, found, err := a.store.LookupMerchantSecret(ctx, req.APIKey)
	if err != nil {
		a.logger.ErrorContext(ctx, "merchant credential lookup failed", "error", err)
		return "", errors.NewInternalError("internal error", err)
	}

	supplied, decodeErr := hex.DecodeString(strings.ToLower(req.Signature))
	expected := mac(secret, CanonicalString(req.Method, req.Path, req.Timestamp, req.Body))

	switch {
	case !found:
		return "", a.reject(ctx, req, reasonUnknownKey)
	case decodeErr != nil:
		return "", a.reject(ctx, req, reasonMalformedSig)
	case !hmac.Equal(expected, supplied):
		return "", a.reject(ctx, req, reasonBadSignature)
	}

	return merchantID, nil
}

func (a *Authenticator) reject(ctx context.Context, req SignedRequest, reason string) error {
	a.logger.WarnContext(ctx, "merchant authentication rejected",
		"reason", reason,
		"method", req.Method,
		"path", req.Path,
		"api_key", maskKey(req.APIKey))
	return errors.ErrAuthenticationFailed
}

func maskKey(key string) string {
	if len(key) <= 7 {
		return strings.Repeat("*", len(key))
	}
	return key[:7] + "..."
}
