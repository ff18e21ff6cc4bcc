package webhook_test

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dmitrymomot/qrmenu/pkg/webhook"
)

func hmacHex(secret, msg string) string {
	h := hmac.New(sha256.New, []byte(secret))
	h.Write([]byte(msg))
	return hex.EncodeToString(h.Sum(nil))
}

func TestSignAndVerify(t *testing.T) {
	t.Parallel()

	body := []byte(`{"success":true,"data":{"order_code":1}}`)
	sig := webhook.Sign("secret", body)
	assert.Equal(t, hmacHex("secret", string(body)), sig)

	t.Run("valid", func(t *testing.T) {
		t.Parallel()
		require.NoError(t, webhook.Verify("secret", body, sig))
	})

	t.Run("uppercase hex accepted", func(t *testing.T) {
		t.Parallel()
		require.NoError(t, webhook.Verify("secret", body, strings.ToUpper(sig)))
	})

	t.Run("tampered body", func(t *testing.T) {
		t.Parallel()
		err := webhook.Verify("secret", append(body, ' '), sig)
		assert.ErrorIs(t, err, webhook.ErrSignatureMismatch)
	})

	t.Run("wrong secret", func(t *testing.T) {
		t.Parallel()
		assert.ErrorIs(t, webhook.Verify("other", body, sig), webhook.ErrSignatureMismatch)
	})

	t.Run("missing secret fails closed", func(t *testing.T) {
		t.Parallel()
		assert.ErrorIs(t, webhook.Verify("", body, sig), webhook.ErrMissingSecret)
	})

	t.Run("missing signature", func(t *testing.T) {
		t.Parallel()
		assert.ErrorIs(t, webhook.Verify("secret", body, " "), webhook.ErrMissingSignature)
	})
}

func TestCanonicalFields(t *testing.T) {
	t.Parallel()

	fields := map[string]string{
		"returnUrl":   "https://app.test/return",
		"amount":      "218900",
		"orderCode":   "123",
		"description": "Upgrade paid",
		"cancelUrl":   "https://app.test/cancel",
	}
	canonical := webhook.CanonicalFields(fields)
	assert.Equal(t,
		"amount=218900&cancelUrl=https://app.test/cancel&description=Upgrade paid&orderCode=123&returnUrl=https://app.test/return",
		canonical,
	)
	sig := webhook.SignFields("checksum", fields)
	assert.Equal(t, hmacHex("checksum", canonical), sig)
	assert.NoError(t, webhook.VerifyFields("checksum", fields, sig))
	assert.Empty(t, webhook.CanonicalFields(nil))
}
