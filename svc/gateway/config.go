package gateway

import (
	"fmt"
	"time"
)

// MaxTimeout bounds every outbound gateway call.
const MaxTimeout = 30 * time.Second

// Config configures the hosted-checkout gateway.
type Config struct {
	AppEnv          string        `env:"APP_ENV" envDefault:"development"`
	ClientID        string        `env:"GATEWAY_CLIENT_ID"`
	APIKey          string        `env:"GATEWAY_API_KEY"`
	ChecksumKey     string        `env:"GATEWAY_CHECKSUM_KEY"`
	MockEnabled     bool          `env:"GATEWAY_MOCK_ENABLED" envDefault:"false"`
	BaseURL         string        `env:"GATEWAY_BASE_URL" envDefault:"https://api-merchant.payos.vn"`
	Timeout         time.Duration `env:"GATEWAY_TIMEOUT" envDefault:"15s"`
	SignatureHeader string        `env:"GATEWAY_SIGNATURE_HEADER" envDefault:"X-Signature"`
	MockCheckoutURL string        `env:"GATEWAY_MOCK_CHECKOUT_URL" envDefault:"http://localhost:8080/mock-checkout"`
}

// Validate fails closed: live mode needs every credential and mock mode is
// refused in production.
func (c *Config) Validate() error {
	if c.Timeout <= 0 || c.Timeout > MaxTimeout {
		c.Timeout = MaxTimeout
	}
	if c.SignatureHeader == "" {
		c.SignatureHeader = "X-Signature"
	}
	if c.MockEnabled {
		if c.AppEnv == "production" {
			return ErrMockInProduction
		}
		return nil
	}
	switch {
	case c.ClientID == "":
		return fmt.Errorf("%w: GATEWAY_CLIENT_ID", ErrMissingCredentials)
	case c.APIKey == "":
		return fmt.Errorf("%w: GATEWAY_API_KEY", ErrMissingCredentials)
	case c.ChecksumKey == "":
		return fmt.Errorf("%w: GATEWAY_CHECKSUM_KEY", ErrMissingCredentials)
	case c.BaseURL == "":
		return fmt.Errorf("%w: GATEWAY_BASE_URL", ErrMissingCredentials)
	}
	return nil
}
