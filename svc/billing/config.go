package billing

import (
	"net/url"
	"time"

	"github.com/dmitrymomot/qrmenu/svc/catalogue"
)

const (
	// MaxPendingTTL caps how long a paid signup may wait for its payment.
	MaxPendingTTL = time.Hour
	// MinBcryptCost is the lowest accepted password hashing cost.
	MinBcryptCost = 10
)

// Config holds the lifecycle knobs of the state machine.
type Config struct {
	TrialDays           int              `env:"TRIAL_DAYS" envDefault:"14"`
	TrialPlanID         catalogue.PlanID `env:"TRIAL_PLAN_ID" envDefault:"paid"`
	BillingPeriod       time.Duration    `env:"BILLING_PERIOD" envDefault:"720h"`
	RenewalWindow       time.Duration    `env:"RENEWAL_WINDOW" envDefault:"168h"`
	PendingTTL          time.Duration    `env:"PENDING_REGISTRATION_TTL" envDefault:"1h"`
	CheckoutLinkTTL     time.Duration    `env:"CHECKOUT_LINK_TTL" envDefault:"1h"`
	TrialReminderBefore time.Duration    `env:"TRIAL_REMINDER_BEFORE" envDefault:"72h"`
	FrontendURL         string           `env:"FRONTEND_URL" envDefault:"http://localhost:3000"`
	ReturnURL           string           `env:"SUBSCRIPTION_RETURN_URL"`
	CancelURL           string           `env:"SUBSCRIPTION_CANCEL_URL"`
	BcryptCost          int              `env:"BCRYPT_COST" envDefault:"12"`
	MinPasswordLength   int              `env:"MIN_PASSWORD_LENGTH" envDefault:"8"`
	SweepBatchSize      int              `env:"SWEEP_BATCH_SIZE" envDefault:"200"`
}

// DefaultConfig returns the configuration the env defaults produce.
func DefaultConfig() Config {
	return Config{
		TrialDays:           14,
		TrialPlanID:         catalogue.PlanPaid,
		BillingPeriod:       30 * 24 * time.Hour,
		RenewalWindow:       7 * 24 * time.Hour,
		PendingTTL:          time.Hour,
		CheckoutLinkTTL:     time.Hour,
		TrialReminderBefore: 72 * time.Hour,
		FrontendURL:         "http://localhost:3000",
		BcryptCost:          12,
		MinPasswordLength:   8,
		SweepBatchSize:      200,
	}
}

// normalize fills derived values and clamps unsafe ones.
func (c Config) normalize() Config {
	d := DefaultConfig()
	if c.TrialDays <= 0 {
		c.TrialDays = d.TrialDays
	}
	if !c.TrialPlanID.Valid() || c.TrialPlanID == catalogue.PlanFree {
		c.TrialPlanID = d.TrialPlanID
	}
	if c.BillingPeriod <= 0 {
		c.BillingPeriod = d.BillingPeriod
	}
	if c.RenewalWindow < 0 {
		c.RenewalWindow = 0
	}
	if c.PendingTTL <= 0 || c.PendingTTL > MaxPendingTTL {
		c.PendingTTL = MaxPendingTTL
	}
	if c.CheckoutLinkTTL <= 0 {
		c.CheckoutLinkTTL = d.CheckoutLinkTTL
	}
	if c.TrialReminderBefore <= 0 {
		c.TrialReminderBefore = d.TrialReminderBefore
	}
	if c.FrontendURL == "" {
		c.FrontendURL = d.FrontendURL
	}
	if c.ReturnURL == "" {
		c.ReturnURL = c.FrontendURL + "/subscription/success"
	}
	if c.CancelURL == "" {
		c.CancelURL = c.FrontendURL + "/subscription/cancel"
	}
	if c.BcryptCost < MinBcryptCost {
		c.BcryptCost = MinBcryptCost
	}
	if c.MinPasswordLength <= 0 {
		c.MinPasswordLength = d.MinPasswordLength
	}
	if c.SweepBatchSize <= 0 {
		c.SweepBatchSize = d.SweepBatchSize
	}
	return c
}

// withQuery appends key=value to a redirect URL.
func withQuery(raw, key, value string) string {
	u, err := url.Parse(raw)
	if err != nil {
		return raw
	}
	q := u.Query()
	q.Set(key, value)
	u.RawQuery = q.Encode()
	return u.String()
}
