// Package webhook computes and verifies HMAC-SHA256 checksums used by the
// payment gateway for callbacks and outbound requests.
package webhook

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"slices"
	"strings"
)

// Sign returns the hex-encoded HMAC-SHA256 of payload keyed by secret.
func Sign(secret string, payload []byte) string {
	h := hmac.New(sha256.New, []byte(secret))
	h.Write(payload)
	return hex.EncodeToString(h.Sum(nil))
}

// Verify checks signature against the HMAC-SHA256 of the raw payload.
// The comparison is constant time. An empty secret never verifies.
func Verify(secret string, payload []byte, signature string) error {
	if secret == "" {
		return ErrMissingSecret
	}
	signature = strings.TrimSpace(signature)
	if signature == "" {
		return ErrMissingSignature
	}
	expected := Sign(secret, payload)
	if !hmac.Equal([]byte(expected), []byte(strings.ToLower(signature))) {
		return ErrSignatureMismatch
	}
	return nil
}

// CanonicalFields joins fields as key=value pairs sorted by key and
// separated by '&'.
func CanonicalFields(fields map[string]string) string {
	keys := make([]string, 0, len(fields))
	for k := range fields {
		keys = append(keys, k)
	}
	slices.Sort(keys)

	var b strings.Builder
	for i, k := range keys {
		if i > 0 {
			b.WriteByte('&')
		}
		b.WriteString(k)
		b.WriteByte('=')
		b.WriteString(fields[k])
	}
	return b.String()
}

// SignFields signs the canonical form of fields.
func SignFields(secret string, fields map[string]string) string {
	return Sign(secret, []byte(CanonicalFields(fields)))
}

// VerifyFields checks signature against the canonical form of fields.
func VerifyFields(secret string, fields map[string]string, signature string) error {
	return Verify(secret, []byte(CanonicalFields(fields)), signature)
}
