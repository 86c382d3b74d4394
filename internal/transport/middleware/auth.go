package middleware

import (
	"bytes"
	"context"
	"io"
	"net/http"

	errors "github.com/ortizpassos/trustpay/internal"
	"github.com/ortizpassos/trustpay/internal/merchant"
	"github.com/ortizpassos/trustpay/internal/transport"
	"github.com/ortizpassos/trustpay/pkg/logger"
)

// MaxSignedBodyBytes caps the body read for signature verification.
const MaxSignedBodyBytes = 1 << 20

type SignatureVerifier interface {
	Authenticate(ctx context.Context, req merchant.SignedRequest) (string, error)
}

// MerchantSignature verifies the HMAC headers over the exact raw body, then restores the
// body so handlers decode the bytes that were signed.
func MerchantSignature(verifier SignatureVerifier, base *transport.BaseHandler) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			var body []byte
			if r.Body != nil {
				raw, err := io.ReadAll(io.LimitReader(r.Body, MaxSignedBodyBytes+1))
				if err != nil || len(raw) > MaxSignedBodyBytes {
					base.HandleError(w, errors.ErrAuthenticationFailed)
					return
				}
				body = raw
				r.Body.Close()
			}
			r.Body = io.NopCloser(bytes.NewReader(body))
			r.ContentLength = int64(len(body))

			merchantID, err := verifier.Authenticate(r.Context(), merchant.SignedRequest{
				Method:    r.Method,
				Path:      r.URL.Path,
				APIKey:    r.Header.Get(merchant.HeaderAPIKey),
				Timestamp: r.Header.Get(merchant.HeaderTimestamp),
				Signature: r.Header.Get(merchant.HeaderSignature),
				Body:      body,
			})
			if err != nil {
				base.HandleServiceError(w, err)
				return
			}

			ctx := errors.ContextWithMerchantID(r.Context(), merchantID)
			ctx = logger.With(ctx, "merchant_id", merchantID)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}
