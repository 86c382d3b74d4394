package merchant

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"strings"
)

const (
	HeaderAPIKey    = "x-api-key"
	HeaderTimestamp = "x-timestamp"
	HeaderSignature = "x-signature"
)

// CanonicalString builds METHOD\nPATH\nTIMESTAMP\nRAW_BODY. Any query string is dropped from path.
func CanonicalString(method, path, timestamp string, body []byte) string {
	if i := strings.IndexByte(path, '?'); i >= 0 {
		path = path[:i]
	}

	var b strings.Builder
	b.Grow(len(method) + len(path) + len(timestamp) + len(body) + 3)
	b.WriteString(strings.ToUpper(method))
	b.WriteByte('\n')
	b.WriteString(path)
	b.WriteByte('\n')
	b.WriteString(timestamp)
	b.WriteByte('\n')
	b.Write(body)
	return b.String()
}

// Sign returns the lowercase hex HMAC-SHA256 a merchant sends in x-signature.
func Sign(secret, method, path, timestamp string, body []byte) string {
	return hex.EncodeToString(mac(secret, CanonicalString(method, path, timestamp, body)))
}

func mac(secret, message string) []byte {
	h := hmac.New(sha256.New, []byte(secret))
	h.Write([]byte(message))
	return h.Sum(nil)
}
