package billing

import (
	"time"

	"github.com/dmitrymomot/qrmenu/svc/catalogue"
)

// SubscriptionStatus is the persisted lifecycle state of a Subscription.
type SubscriptionStatus string

const (
	StatusTrial     SubscriptionStatus = "trial"
	StatusActive    SubscriptionStatus = "active"
	StatusCancelled SubscriptionStatus = "cancelled"
	StatusExpired   SubscriptionStatus = "expired"
)

// Live reports whether the status still grants its plan.
func (s SubscriptionStatus) Live() bool {
	return s == StatusTrial || s == StatusActive
}

// EntitlementStatus is the tenant-facing entitlement state. It mirrors the
// current subscription status, or is "none" without any subscription.
type EntitlementStatus string

const (
	EntitlementNone      EntitlementStatus = "none"
	EntitlementTrial     EntitlementStatus = "trial"
	EntitlementActive    EntitlementStatus = "active"
	EntitlementCancelled EntitlementStatus = "cancelled"
	EntitlementExpired   EntitlementStatus = "expired"
)

func entitlementOf(s SubscriptionStatus) EntitlementStatus {
	switch s {
	case StatusTrial:
		return EntitlementTrial
	case StatusActive:
		return EntitlementActive
	case StatusCancelled:
		return EntitlementCancelled
	case StatusExpired:
		return EntitlementExpired
	}
	return EntitlementNone
}

// PendingStatus is the lifecycle state of a PendingRegistration.
type PendingStatus string

const (
	PendingAwaitingPayment PendingStatus = "awaiting_payment"
	PendingPaymentSettled  PendingStatus = "payment_settled"
	PendingMaterialized    PendingStatus = "materialized"
	PendingExpired         PendingStatus = "expired"
	PendingCancelled       PendingStatus = "cancelled"
)

// PaymentStatus is the lifecycle state of a Payment.
type PaymentStatus string

const (
	PaymentPending  PaymentStatus = "pending"
	PaymentPaid     PaymentStatus = "paid"
	PaymentFailed   PaymentStatus = "failed"
	PaymentExpired  PaymentStatus = "expired"
	PaymentRefunded PaymentStatus = "refunded"
)

// PaymentType says what a settled payment is for.
type PaymentType string

const (
	PaymentTypeUpgrade         PaymentType = "upgrade"
	PaymentTypeNewRegistration PaymentType = "new_registration"
)

// Facet is the denormalized entitlement cached on the tenant record. It is
// only written together with the subscription it mirrors, under the
// tenant lock.
type Facet struct {
	CurrentPlanID     catalogue.PlanID  `json:"current_plan_id" bson:"current_plan_id"`
	EntitlementStatus EntitlementStatus `json:"entitlement_status" bson:"entitlement_status"`
	MaxResourceUnits  *int64            `json:"max_resource_units" bson:"max_resource_units"`
	SubscriptionID    string            `json:"subscription_id,omitempty" bson:"subscription_id,omitempty"`
}

// Tenant is a restaurant account.
type Tenant struct {
	ID               string     `json:"tenant_id" bson:"_id"`
	Name             string     `json:"name" bson:"name"`
	Slug             string     `json:"slug" bson:"slug"`
	OwnerEmail       string     `json:"owner_email" bson:"owner_email"`
	OwnerName        string     `json:"owner_name,omitempty" bson:"owner_name,omitempty"`
	OwnerPhone       string     `json:"owner_phone,omitempty" bson:"owner_phone,omitempty"`
	PasswordHash     []byte     `json:"-" bson:"password_hash,omitempty"`
	Facet            Facet      `json:"entitlement" bson:"entitlement"`
	TrialUsed        bool       `json:"trial_used" bson:"trial_used"`
	IsSuspended      bool       `json:"is_suspended" bson:"is_suspended"`
	SuspensionReason string     `json:"suspension_reason,omitempty" bson:"suspension_reason,omitempty"`
	SuspendedAt      *time.Time `json:"suspended_at,omitempty" bson:"suspended_at,omitempty"`
	CreatedAt        time.Time  `json:"created_at" bson:"created_at"`
	UpdatedAt        time.Time  `json:"updated_at" bson:"updated_at"`
}

// Subscription binds a tenant to a plan for a period.
type Subscription struct {
	ID                  string             `json:"subscription_id" bson:"_id"`
	TenantID            string             `json:"tenant_id" bson:"tenant_id"`
	PlanID              catalogue.PlanID   `json:"plan_id" bson:"plan_id"`
	Status              SubscriptionStatus `json:"status" bson:"status"`
	TrialEndsAt         *time.Time         `json:"trial_ends_at" bson:"trial_ends_at"`
	PeriodStart         time.Time          `json:"period_start" bson:"period_start"`
	PeriodEnd           time.Time          `json:"period_end" bson:"period_end"`
	CancelAtPeriodEnd   bool               `json:"cancel_at_period_end" bson:"cancel_at_period_end"`
	MaxResourceUnits    *int64             `json:"max_resource_units" bson:"max_resource_units"`
	TrialReminderSentAt *time.Time         `json:"trial_reminder_sent_at,omitempty" bson:"trial_reminder_sent_at,omitempty"`
	CancelledAt         *time.Time         `json:"cancelled_at,omitempty" bson:"cancelled_at,omitempty"`
	CreatedAt           time.Time          `json:"created_at" bson:"created_at"`
	UpdatedAt           time.Time          `json:"updated_at" bson:"updated_at"`
}

// PendingRegistration holds a paid signup until its payment settles.
type PendingRegistration struct {
	ID             string           `json:"pending_id" bson:"_id"`
	Email          string           `json:"email" bson:"email"`
	PasswordHash   []byte           `json:"-" bson:"password_hash,omitempty"`
	TenantName     string           `json:"tenant_name" bson:"tenant_name"`
	Slug           string           `json:"slug" bson:"slug"`
	OwnerName      string           `json:"owner_name,omitempty" bson:"owner_name,omitempty"`
	OwnerPhone     string           `json:"owner_phone,omitempty" bson:"owner_phone,omitempty"`
	PlanID         catalogue.PlanID `json:"plan_id" bson:"plan_id"`
	PaymentID      string           `json:"payment_id" bson:"payment_id"`
	OrderCode      int64            `json:"gateway_order_code" bson:"gateway_order_code"`
	CheckoutURL    string           `json:"checkout_url,omitempty" bson:"checkout_url,omitempty"`
	Status         PendingStatus    `json:"status" bson:"status"`
	TenantID       string           `json:"tenant_id,omitempty" bson:"tenant_id,omitempty"`
	CreatedAt      time.Time        `json:"created_at" bson:"created_at"`
	ExpiresAt      time.Time        `json:"expires_at" bson:"expires_at"`
	MaterializedAt *time.Time       `json:"materialized_at,omitempty" bson:"materialized_at,omitempty"`
	UpdatedAt      time.Time        `json:"updated_at" bson:"updated_at"`
}

// Reserves reports whether the registration still holds its slug and email.
func (p *PendingRegistration) Reserves(now time.Time) bool {
	switch p.Status {
	case PendingPaymentSettled:
		return true
	case PendingAwaitingPayment:
		return now.Before(p.ExpiresAt)
	}
	return false
}

// PaymentMetadata describes the intent and follow-ups of a payment.
type PaymentMetadata struct {
	Type               PaymentType       `json:"type" bson:"type"`
	FromPlan           catalogue.PlanID  `json:"from_plan,omitempty" bson:"from_plan,omitempty"`
	ToPlan             catalogue.PlanID  `json:"to_plan" bson:"to_plan"`
	ResolutionRequired bool              `json:"resolution_required,omitempty" bson:"resolution_required,omitempty"`
	ResolutionReason   string            `json:"resolution_reason,omitempty" bson:"resolution_reason,omitempty"`
	FailureReason      string            `json:"failure_reason,omitempty" bson:"failure_reason,omitempty"`
	GatewayPaidAt      *time.Time        `json:"gateway_paid_at,omitempty" bson:"gateway_paid_at,omitempty"`
	Extra              map[string]string `json:"extra,omitempty" bson:"extra,omitempty"`
}

// Payment is one gateway checkout.
type Payment struct {
	ID                    string          `json:"payment_id" bson:"_id"`
	SubscriptionID        string          `json:"subscription_id,omitempty" bson:"subscription_id,omitempty"`
	PendingRegistrationID string          `json:"pending_registration_id,omitempty" bson:"pending_registration_id,omitempty"`
	TenantID              string          `json:"tenant_id,omitempty" bson:"tenant_id,omitempty"`
	AmountBase            int64           `json:"amount_base" bson:"amount_base"`
	AmountTax             int64           `json:"amount_tax" bson:"amount_tax"`
	AmountTotal           int64           `json:"amount_total" bson:"amount_total"`
	Currency              string          `json:"currency" bson:"currency"`
	Status                PaymentStatus   `json:"status" bson:"status"`
	OrderCode             int64           `json:"gateway_order_code" bson:"gateway_order_code"`
	LinkID                string          `json:"gateway_link_id,omitempty" bson:"gateway_link_id,omitempty"`
	CheckoutURL           string          `json:"checkout_url,omitempty" bson:"checkout_url,omitempty"`
	QRCode                string          `json:"-" bson:"qr_code,omitempty"`
	TransactionID         string          `json:"gateway_transaction_id,omitempty" bson:"gateway_transaction_id,omitempty"`
	PaidAt                *time.Time      `json:"paid_at,omitempty" bson:"paid_at,omitempty"`
	Metadata              PaymentMetadata `json:"metadata" bson:"metadata"`
	CreatedAt             time.Time       `json:"created_at" bson:"created_at"`
	UpdatedAt             time.Time       `json:"updated_at" bson:"updated_at"`
}

// SettlementFact is what the gateway reports about a completed payment.
type SettlementFact struct {
	TransactionID string
	Amount        int64
	PaidAt        *time.Time
}
